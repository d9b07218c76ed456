// Package testutil provides shared test utilities and fixtures for integration tests.
//
// This package contains common setup code and helper functions that are used
// across multiple integration tests.
//
// Examples of utilities that belong here:
//   - Cluster helpers (run several electors against one store, stop them all)
//   - Assertion helpers (verify at most one leader, check observer agreement)
//   - State tracking (record the states each elector moved through)
//
// Note: For embedded NATS server setup, use the github.com/objelect/objelect/testing
// package. This package is specifically for integration test scenarios and
// helper utilities.
package testutil
