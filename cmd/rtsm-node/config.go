package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rtsm-protocol/rtsm-go/pkg/topic"
	"github.com/rtsm-protocol/rtsm-go/pkg/transport"
)

// Config holds the node configuration.
type Config struct {
	Name         string `yaml:"name"`
	Broker       string `yaml:"broker"`
	Port         int    `yaml:"port"`
	QoS          int    `yaml:"qos"`
	CleanSession bool   `yaml:"clean_session"`

	// ConnectAttempts bounds the introduction attempts while the broker is
	// unreachable. Zero retries forever.
	ConnectAttempts int `yaml:"connect_attempts"`

	// Models lists model document files (JSON) to register.
	Models []string `yaml:"models"`

	// States maps model names to files holding the initial state (JSON).
	States map[string]string `yaml:"states"`

	// StateFile persists model state across restarts. Configured States
	// take precedence over saved state.
	StateFile string `yaml:"state_file"`

	// AutoRespond answers request-state with the local state.
	AutoRespond bool `yaml:"auto_respond"`

	// AdoptState takes over valid received state for models without local
	// state, and requests it from joining devices that hold it.
	AdoptState bool `yaml:"adopt_state"`

	Interactive bool   `yaml:"interactive"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
	ProtocolLog string `yaml:"protocol_log"`

	// ProtocolLogMaxSize rotates the protocol log at this many bytes.
	// Zero disables rotation.
	ProtocolLogMaxSize int64 `yaml:"protocol_log_max_size"`

	// Discover browses mDNS for a broker when none is configured.
	Discover        bool          `yaml:"discover"`
	DiscoverTimeout time.Duration `yaml:"discover_timeout"`

	// Advertise registers the node on mDNS.
	Advertise bool   `yaml:"advertise"`
	Interface string `yaml:"interface"`
}

func defaultConfig() Config {
	return Config{
		QoS:             int(transport.DefaultQoS),
		CleanSession:    true,
		ConnectAttempts: 5,
		AutoRespond:     true,
		LogLevel:        "info",
		DiscoverTimeout: 5 * time.Second,
	}
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func registerFlags(fs *flag.FlagSet, cfg *Config, configFile *string) {
	fs.StringVar(configFile, "config", "", "Configuration file path (YAML)")
	fs.StringVar(&cfg.Name, "name", cfg.Name, "Device display name")
	fs.StringVar(&cfg.Broker, "broker", cfg.Broker, "Broker URL (default tcp://localhost:1883)")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "Broker port override")
	fs.IntVar(&cfg.QoS, "qos", cfg.QoS, "MQTT QoS for all operations: 0, 1, 2")
	fs.BoolVar(&cfg.CleanSession, "clean", cfg.CleanSession, "Request a clean broker session")
	fs.IntVar(&cfg.ConnectAttempts, "connect-attempts", cfg.ConnectAttempts, "Introduction attempts while the broker is unreachable (0: forever)")
	fs.Var((*stringList)(&cfg.Models), "model", "Model document file (repeatable)")
	fs.BoolVar(&cfg.AutoRespond, "auto-respond", cfg.AutoRespond, "Answer state requests automatically")
	fs.BoolVar(&cfg.AdoptState, "adopt-state", cfg.AdoptState, "Adopt valid state received for models without state")
	fs.BoolVar(&cfg.Interactive, "interactive", cfg.Interactive, "Start the interactive shell")
	fs.StringVar(&cfg.StateFile, "state-file", cfg.StateFile, "Persist model state in this file")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Serve Prometheus metrics on this address")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.ProtocolLog, "protocol-log", cfg.ProtocolLog, "Write protocol events to this .rlog file")
	fs.Int64Var(&cfg.ProtocolLogMaxSize, "protocol-log-max-size", cfg.ProtocolLogMaxSize, "Rotate the protocol log at this size in bytes (0: never)")
	fs.BoolVar(&cfg.Discover, "discover", cfg.Discover, "Browse mDNS for a broker when none is configured")
	fs.DurationVar(&cfg.DiscoverTimeout, "discover-timeout", cfg.DiscoverTimeout, "mDNS broker browse timeout")
	fs.BoolVar(&cfg.Advertise, "advertise", cfg.Advertise, "Advertise the node on mDNS")
	fs.StringVar(&cfg.Interface, "iface", cfg.Interface, "Network interface for mDNS (default: all)")
}

// loadConfig parses args. A config file is applied first; flags given
// explicitly on the command line override it.
func loadConfig(args []string) (Config, error) {
	fs := flag.NewFlagSet("rtsm-node", flag.ContinueOnError)

	var configFile string
	flags := defaultConfig()
	registerFlags(fs, &flags, &configFile)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := defaultConfig()
	if configFile != "" {
		if err := readConfigFile(configFile, &cfg); err != nil {
			return Config{}, err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		overrideFromFlag(&cfg, &flags, f.Name)
	})

	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func overrideFromFlag(cfg, flags *Config, name string) {
	switch name {
	case "name":
		cfg.Name = flags.Name
	case "broker":
		cfg.Broker = flags.Broker
	case "port":
		cfg.Port = flags.Port
	case "qos":
		cfg.QoS = flags.QoS
	case "clean":
		cfg.CleanSession = flags.CleanSession
	case "connect-attempts":
		cfg.ConnectAttempts = flags.ConnectAttempts
	case "model":
		cfg.Models = flags.Models
	case "auto-respond":
		cfg.AutoRespond = flags.AutoRespond
	case "adopt-state":
		cfg.AdoptState = flags.AdoptState
	case "interactive":
		cfg.Interactive = flags.Interactive
	case "state-file":
		cfg.StateFile = flags.StateFile
	case "metrics-addr":
		cfg.MetricsAddr = flags.MetricsAddr
	case "log-level":
		cfg.LogLevel = flags.LogLevel
	case "protocol-log":
		cfg.ProtocolLog = flags.ProtocolLog
	case "protocol-log-max-size":
		cfg.ProtocolLogMaxSize = flags.ProtocolLogMaxSize
	case "discover":
		cfg.Discover = flags.Discover
	case "discover-timeout":
		cfg.DiscoverTimeout = flags.DiscoverTimeout
	case "advertise":
		cfg.Advertise = flags.Advertise
	case "iface":
		cfg.Interface = flags.Interface
	}
}

func validateConfig(cfg *Config) error {
	if cfg.QoS < 0 || cfg.QoS > 2 {
		return fmt.Errorf("qos must be 0-2, got %d", cfg.QoS)
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("port must be 0-65535, got %d", cfg.Port)
	}
	if cfg.ConnectAttempts < 0 {
		return fmt.Errorf("connect attempts must not be negative, got %d", cfg.ConnectAttempts)
	}
	if cfg.ProtocolLogMaxSize < 0 {
		return fmt.Errorf("protocol log max size must not be negative, got %d", cfg.ProtocolLogMaxSize)
	}
	if len(cfg.Models) == 0 {
		return errors.New("at least one model file is required")
	}
	for name := range cfg.States {
		if err := topic.ValidateModelName(name); err != nil {
			return fmt.Errorf("states: %w", err)
		}
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %s", cfg.LogLevel)
	}
	if cfg.Discover && cfg.DiscoverTimeout <= 0 {
		return fmt.Errorf("discover timeout must be positive, got %s", cfg.DiscoverTimeout)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Name == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "node"
		}
		cfg.Name = fmt.Sprintf("rtsm-%s", host)
	}
	if cfg.Broker == "" && !cfg.Discover {
		cfg.Broker = transport.DefaultBroker
	}
}
