package types

// Logger defines the logging interface used throughout objelect.
//
// The interface uses structured logging with key-value pairs, compatible
// with popular logging libraries like zap, logr, and slog.
//
// Example usage:
//
//	logger.Info("leadership acquired", "key", "prod/scheduler", "holder", "api-1")
//	logger.Error("renew failed", "error", err, "attempt", 3)
type Logger interface {
	// Debug logs a debug-level message with optional key-value pairs.
	Debug(msg string, keysAndValues ...any)

	// Info logs an info-level message with optional key-value pairs.
	Info(msg string, keysAndValues ...any)

	// Warn logs a warning-level message with optional key-value pairs.
	Warn(msg string, keysAndValues ...any)

	// Error logs an error-level message with optional key-value pairs.
	Error(msg string, keysAndValues ...any)

	// Fatal logs a fatal-level message with optional key-value pairs.
	// Implementations typically exit the process after logging.
	Fatal(msg string, keysAndValues ...any)
}
