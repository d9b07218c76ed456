package types

import "context"

// Hooks defines callbacks for Elector lifecycle events.
//
// Hooks are an observation channel, separate from Callbacks: all hooks are
// optional and are called asynchronously in background goroutines so they
// never delay acquisition or renewal. Hooks receive the elector's lifecycle
// context which will be cancelled during shutdown.
//
// IMPORTANT: Hook execution behavior:
//   - Hooks run concurrently and may not complete before Stop() returns
//   - The context passed to hooks is cancelled when the elector stops
//   - Hook errors are logged but don't fail elector operations
//
// Best practices for hook implementation:
//   - Complete quickly (< 1 second recommended)
//   - Respect context cancellation
//   - Don't block on long I/O operations
//   - Make hooks idempotent (may be called multiple times)
//   - Handle errors gracefully (return error for logging)
//
// Example:
//
//	hooks := objelect.Hooks{
//	    OnStateChanged: func(ctx context.Context, from, to objelect.State) error {
//	        select {
//	        case <-ctx.Done():
//	            return ctx.Err() // Elector is shutting down
//	        case stateChan <- StateMetric{from, to}:
//	            return nil
//	        case <-time.After(500 * time.Millisecond):
//	            return errors.New("metric send timeout")
//	        }
//	    },
//	}
type Hooks struct {
	// OnStateChanged is called when the elector state transitions.
	OnStateChanged func(ctx context.Context, from, to State) error

	// OnError is called when a recoverable error occurs, such as a store
	// fault during acquisition or renewal. The elector keeps running.
	OnError func(ctx context.Context, err error) error
}
