// Package provider is the typed call facade over one socket connection.
//
// # Usage
//
//	p, err := provider.Dial(ctx, "/tmp/node.ipc", provider.WithDefaultTimeout(5*time.Second))
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	block, err := provider.Call[map[string]any](ctx, p, "eth_getBlockByNumber", []any{"latest", false})
//	chainID, err := provider.CallNoParams[string](ctx, p, "eth_chainId")
//
// A Provider is safe for concurrent use; all calls share the connection and
// are matched to their replies by id. A timeout affects only its own call.
//
// # Errors
//
// Every error is an *errors.Error. SERVER errors carry the remote code and
// message, available through errors.ServerError. CLOSED means the connection
// has ended; nothing reconnects automatically.
package provider
