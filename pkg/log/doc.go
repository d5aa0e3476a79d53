// Package log provides structured protocol logging for RTSM nodes.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events: envelopes sent and received, presence transitions,
// dropped traffic and transport errors. It is separate from operational
// logging (slog) - protocol capture provides a complete machine-readable
// trace of what a node saw on the broker.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/rtsm/node.rlog")
//
//	// Both: use MultiLogger
//	cfg.ProtocolLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Each event carries exactly one payload:
//   - Message: an envelope on a model topic
//   - Presence: a presence payload on an online/ topic
//   - StateChange: the node's own lifecycle (connection, presence)
//   - Drop: inbound traffic that was ignored, with the reason
//   - Error: a failed transport operation
//
// # File Format
//
// Log files use CBOR encoding with .rlog extension. The rtsm-log CLI tool
// provides viewing, statistics and export.
package log
