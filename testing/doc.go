// Package testing provides test utilities for the objelect library.
//
// This package offers helpers for setting up test environments, particularly
// embedded NATS servers for integration testing. It follows Go's convention
// of providing testing utilities in a dedicated package (similar to net/http/httptest).
//
// Key utilities:
//   - StartEmbeddedNATS: Single NATS server with JetStream
//   - CreateJetStreamKV: Convenience wrapper for KV bucket creation
//   - RunStoreConformance: Behavioral suite every Store adapter must pass
//   - FaultStore: Store wrapper with error injection for failure testing
//
// Example usage:
//
//	import (
//	    "testing"
//	    objtest "github.com/objelect/objelect/testing"
//	)
//
//	func TestMyStore(t *testing.T) {
//	    objtest.RunStoreConformance(t, func(t *testing.T) types.Store {
//	        return memstore.New()
//	    })
//	}
package testing
