// Package objelect provides lease-based leader election on top of any object
// store that offers conditional writes.
//
// Objelect needs exactly two primitives from its backing store: create a key
// only if it is absent, and replace a key's value only if its version still
// matches. Anything providing those two operations can arbitrate leadership —
// no consensus cluster, no lock service, no node-to-node communication.
// Adapters for NATS JetStream KV, Amazon S3, bbolt, and an in-memory store
// ship with the library; custom backends implement types.Store.
//
// # Quick Start
//
// Basic usage with the in-memory store:
//
//	import (
//	    "github.com/objelect/objelect"
//	    "github.com/objelect/objelect/memstore"
//	)
//
//	cfg := objelect.DefaultConfig()
//	cfg.ElectionKey = "orders-coordinator"
//	cfg.Callbacks = objelect.Callbacks{
//	    OnStartedLeading: func(ctx context.Context) { go coordinate(ctx) },
//	    OnStoppedLeading: func() { log.Println("lost leadership") },
//	    OnNewLeader:      func(id string) { log.Printf("leader is %s", id) },
//	}
//
//	elector, err := objelect.New(&cfg, memstore.New())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := elector.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer elector.Stop(context.Background())
//
// # Key Features
//
//   - Store-agnostic: leadership is arbitrated entirely by two conditional
//     writes, so any versioned object store qualifies as a backend
//   - Lease semantics: leadership expires unless renewed, so a crashed
//     leader is superseded after LeaseDuration without any cleanup
//   - Self-demotion: a leader that cannot confirm renewals within
//     RenewDeadline steps down before other candidates consider the lease
//     expired, bounding the dual-leader window
//   - Deterministic callbacks: OnStartedLeading, OnStoppedLeading, and
//     OnNewLeader run synchronously on the election goroutine
//   - Graceful handover: ReleaseOnCancel clears the lease on shutdown so a
//     successor takes over immediately instead of waiting out the lease
//
// # Architecture
//
// Each elector runs a single state machine:
//
//	Idle → Acquiring → Leading → Released → Acquiring (re-contest)
//
// While Acquiring, the elector polls the lease record and contends with a
// conditional write whenever the lease is absent, released, or expired.
// While Leading, it renews the lease every RetryPeriod. There is no
// tie-break logic: the store's single-winner guarantee on conditional
// writes is authoritative.
//
// # Advanced Usage
//
// Custom observability with options:
//
//	elector, err := objelect.New(&cfg, store,
//	    objelect.WithLogger(zap.NewExample().Sugar()),
//	    objelect.WithMetrics(myCollector),
//	    objelect.WithHooks(&objelect.Hooks{
//	        OnStateChanged: func(ctx context.Context, from, to objelect.State) error {
//	            audit.StateChange(from.String(), to.String())
//	            return nil
//	        },
//	    }),
//	)
package objelect
