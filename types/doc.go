// Package types provides core type definitions and interfaces for the objelect library.
//
// This package contains shared types that are used across multiple packages in the
// objelect library. By keeping these types in a separate package, we avoid import
// cycles between the main objelect package and the store adapter packages.
//
// Key types:
//   - LeaseRecord: Versioned leadership lease payload stored per election key
//   - Version: Opaque revision token used for conditional replacement
//   - Store: Conditional-write record store consumed by the elector
//   - State: Elector lifecycle state
//   - Callbacks: Leadership transition callbacks
//   - Logger: Structured logging interface
//   - MetricsCollector: Metrics recording interface
package types
