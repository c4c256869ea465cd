// Package errors provides the classified error primitives used across diffwatch.
//
// Every package declares its sentinel errors through the fluent builder so that
// callers can branch on category and retry strategy instead of matching strings.
//
// Key features:
//   - ErrorCategory: broad classification (config, validation, ingest, source, ...)
//   - ErrorSeverity: impact level (fatal, error, warning, info)
//   - RetryStrategy: whether a failed operation may be attempted again
//   - ClassifiedError: structured error with category, severity and context
//   - ErrorBuilder: fluent API for creating classified errors
//   - HTTP and CLI adapters for error presentation
//
// Example usage:
//
//	err := errors.SourceError("listen failed").
//		WithContext("channel", channel).
//		WithCause(originalErr).
//		Build()
package errors
