// Package observability provides the mpt event log, the metrics and alerts
// derived from it, webhook notifications and the process logger. Events
// are appended as JSON Lines and metrics are computed on demand.
package observability
