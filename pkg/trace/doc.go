// Package trace records the lifecycle of libnvme handles.
//
// Every wrapper in package nvme carries a handle id and reports when it is
// opened and closed, every foreign call it makes, lock state changes, and
// every failure. This is separate from operational logging (slog): the trace
// is a complete machine-readable record for debugging ordering problems such
// as a request outliving its lock.
//
// # Basic Usage
//
//	// Development: log to console via slog
//	cfg.TraceLogger = trace.NewSlogAdapter(slog.Default())
//
//	// Production: append to a binary file
//	cfg.TraceLogger, _ = trace.NewFileLogger("/var/log/nvmeadm.ntrace")
//
//	// Both, plus metrics
//	cfg.TraceLogger = trace.NewMultiLogger(fileLogger, collector)
//
// # File Format
//
// Trace files are a sequence of CBOR-encoded Event values with integer keys.
// The nvmetrace tool views, filters, summarizes and exports them.
package trace
