// Package ratelimit paces outgoing calls with a token bucket.
//
// The bench command uses it to hold a steady request rate regardless of how
// many workers are in flight:
//
//	lim, err := ratelimit.PerSecond(500)
//	if err != nil {
//	    return err
//	}
//	defer lim.Close()
//
//	for ... {
//	    if err := lim.Acquire(ctx); err != nil {
//	        break
//	    }
//	    submit(call)
//	}
//
// The bucket starts full, so the first capacity acquisitions succeed at once.
package ratelimit
