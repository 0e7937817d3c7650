// Package diagnostic provides structured warnings and errors for descriptor
// validation, and the warn channel the projector reports missing data on.
//
// Key capabilities:
//   - Validation results (Diagnostics) with codes, type and field context
//   - A single-method Sink receiving human-readable warnings
//   - Collector, a concurrency-safe Sink that keeps every warning
//   - LogSink, a Sink backed by log/slog, and Tee fanning out to several sinks
package diagnostic
