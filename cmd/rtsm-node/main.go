// Command rtsm-node runs an RTSM node.
//
// The node connects to an MQTT broker, announces its models, tracks the
// presence of other devices and exchanges state with them.
//
// Usage:
//
//	rtsm-node [flags]
//
// Flags:
//
//	-config string        Configuration file path (YAML)
//	-name string          Device display name
//	-broker string        Broker URL (default tcp://localhost:1883)
//	-port int             Broker port override
//	-qos int              MQTT QoS for all operations (default 2)
//	-clean                Start a clean MQTT session (default true)
//	-connect-attempts int Introduction attempts, 0 retries forever (default 5)
//	-model file           Model document file (repeatable)
//	-state-file string    Persist model state in this file
//	-auto-respond         Answer state requests automatically (default true)
//	-adopt-state          Adopt valid received state for models without state
//	-interactive          Start the interactive shell
//	-metrics-addr string  Serve Prometheus metrics on this address
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-protocol-log string  Write protocol events to this .rlog file
//	-protocol-log-max-size int  Rotate the protocol log at this size (bytes)
//	-discover             Browse mDNS for a broker when none is configured
//	-discover-timeout d   How long to browse for a broker (default 5s)
//	-advertise            Advertise the node on mDNS
//	-iface string         Network interface for mDNS
//
// Examples:
//
//	# Join the local broker with a chat model
//	rtsm-node -model chat.json
//
//	# Use a config file and the interactive shell
//	rtsm-node -config /etc/rtsm/node.yaml -interactive
//
//	# Find the broker via mDNS and expose metrics
//	rtsm-node -model chat.json -discover -metrics-addr :9100
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rtsm-protocol/rtsm-go/cmd/rtsm-node/interactive"
)

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var shell *interactive.Shell
	var out io.Writer = os.Stderr
	if cfg.Interactive {
		shell, err = interactive.New()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to start shell: %v\n", err)
			os.Exit(1)
		}
		out = shell.Stderr()
	}

	logger := setupLogging(out, cfg.LogLevel)
	logger.Info("RTSM node", "name", cfg.Name, "models", len(cfg.Models))

	if err := run(ctx, cfg, logger, shell); err != nil {
		logger.Error("node stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("Goodbye!")
}

func setupLogging(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}))
}
