// Package metrics exports handle trace events as Prometheus metrics.
//
// A Collector is a trace.Logger. Pass it as nvme.Config.TraceLogger, alone
// or next to a trace.FileLogger through trace.NewMultiLogger, and serve
// Handler on /metrics.
package metrics
