// Package metrics provides Prometheus instrumentation for RTSM nodes.
//
// A Collector registers its metrics with the registerer passed to
// NewCollector, so several nodes in one process can each use their own
// registry. All Collector methods are safe on a nil receiver, which lets
// callers leave metrics disabled without guarding every call site.
package metrics
