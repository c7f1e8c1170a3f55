// Package shutdown stops the CLI in order when it is interrupted.
//
// Handlers are registered with a phase; lower phases run first and handlers
// within a phase run concurrently. The bench command, for example, stops its
// worker pool in PhaseWork before the provider is closed in PhaseConnection,
// so in-flight calls are released with a CLOSED error rather than abandoned.
//
//	coord := shutdown.NewCoordinator(5*time.Second, log)
//	stop := coord.HandleSignals()
//	defer stop()
//
//	coord.Register("provider", shutdown.PhaseConnection, shutdown.Closer(p.Close))
//	...
//	coord.ShutdownWithTimeout(0)
package shutdown
