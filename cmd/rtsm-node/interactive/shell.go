// Package interactive provides the interactive command-line interface
// for the RTSM node.
package interactive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/rtsm-protocol/rtsm-go/pkg/discovery"
	"github.com/rtsm-protocol/rtsm-go/pkg/model"
	"github.com/rtsm-protocol/rtsm-go/pkg/presence"
	"github.com/rtsm-protocol/rtsm-go/pkg/service"
)

const (
	commandTimeout = 10 * time.Second
	browseTimeout  = 3 * time.Second
)

// Node is the part of service.Node the shell drives.
type Node interface {
	ID() string
	State() service.NodeState
	PresenceState() presence.State
	Device() model.Device
	Models() []*model.Model
	Model(name string) (*model.Model, bool)
	Devices(modelName string, requireHasState bool) ([]model.Device, error)
	SetState(modelName string, state json.RawMessage) error
	SendState(ctx context.Context, modelName, deviceID string) error
	RequestState(ctx context.Context, modelName, deviceID string) error
	RequestMigration(ctx context.Context, modelName, deviceID string) error
	AnnounceHasState(ctx context.Context, modelName string, value bool) error
}

var _ Node = (*service.Node)(nil)

// NodeBrowser finds nodes advertised on the local network.
type NodeBrowser interface {
	BrowseNodes(ctx context.Context) <-chan *discovery.NodeService
}

var _ NodeBrowser = (*discovery.MDNSBrowser)(nil)

// Shell handles interactive mode for rtsm-node.
type Shell struct {
	rl      *readline.Instance
	browser NodeBrowser
}

// SetBrowser enables the nearby command.
func (s *Shell) SetBrowser(b NodeBrowser) {
	s.browser = b
}

// New creates the readline instance. It is created before the node so that
// log output can be routed through Stderr.
func New() (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "rtsm> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Shell{rl: rl}, nil
}

// Stdout returns a writer that properly coordinates with the readline input.
func (s *Shell) Stdout() io.Writer {
	return s.rl.Stdout()
}

// Stderr returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (s *Shell) Stderr() io.Writer {
	return s.rl.Stderr()
}

// Run starts the interactive command loop. It returns when the user quits,
// input ends, or ctx is done; quitting calls cancel.
func (s *Shell) Run(ctx context.Context, node Node, cancel context.CancelFunc) {
	defer s.rl.Close()

	// Unblock Readline on shutdown.
	stop := context.AfterFunc(ctx, func() { _ = s.rl.Close() })
	defer stop()

	sess := &session{node: node, browser: s.browser, out: s.rl.Stdout()}
	sess.printHelp()

	for {
		line, err := s.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if ctx.Err() == nil {
				fmt.Fprintln(sess.out, "Exiting...")
				cancel()
			}
			return
		}

		if !sess.exec(ctx, line) {
			cancel()
			return
		}
	}
}

// session executes commands against a node.
type session struct {
	node    Node
	browser NodeBrowser
	out     io.Writer
}

// exec runs one command line. It returns false when the user quits.
func (s *session) exec(ctx context.Context, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return true
	}

	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		s.printHelp()

	case "status", "s":
		s.cmdStatus()

	case "models", "m":
		s.cmdModels()

	case "devices", "d":
		s.cmdDevices(args)

	case "request", "req":
		s.cmdDirected(ctx, "request", args, s.node.RequestState)

	case "send":
		s.cmdDirected(ctx, "send", args, s.node.SendState)

	case "migrate":
		s.cmdDirected(ctx, "migrate", args, s.node.RequestMigration)

	case "set":
		s.cmdSet(args)

	case "hasstate", "hs":
		s.cmdHasState(ctx, args)

	case "state":
		s.cmdState(args)

	case "nearby", "n":
		s.cmdNearby(ctx, args)

	case "quit", "exit", "q":
		fmt.Fprintln(s.out, "Exiting...")
		return false

	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return true
}

func (s *session) printHelp() {
	fmt.Fprintln(s.out, `
RTSM Node Commands:
  Inspection:
    status                     - Show node status
    models                     - List registered models
    devices [model] [--has-state]
                               - List known remote devices
    state <model>              - Show the local state of a model
    nearby [seconds]           - Browse for nodes advertised via mDNS

  State Exchange:
    request <model> <device>   - Ask a device for its state
    send <model> <device>      - Send the local state to a device
    migrate <model> <device>   - Ask a device to take over a model
    set <model> <json|@file>   - Replace the local state
    hasstate <model> <on|off>  - Announce whether this node holds state

  General:
    help                       - Show this help
    quit                       - Exit node

  Device IDs may be abbreviated to a unique prefix.`)
}

func (s *session) cmdStatus() {
	dev := s.node.Device()
	fmt.Fprintln(s.out, "\nNode Status:")
	fmt.Fprintln(s.out, "-------------------------------------------")
	fmt.Fprintf(s.out, "  ID:       %s\n", s.node.ID())
	fmt.Fprintf(s.out, "  Name:     %s\n", dev.Name)
	fmt.Fprintf(s.out, "  State:    %s\n", s.node.State())
	fmt.Fprintf(s.out, "  Presence: %s\n", s.node.PresenceState())
	fmt.Fprintf(s.out, "  Models:   %d\n", len(s.node.Models()))

	for _, m := range s.node.Models() {
		devices, err := s.node.Devices(m.Name, false)
		if err != nil {
			continue
		}
		fmt.Fprintf(s.out, "    %-20s %d device(s)\n", m.Name, len(devices))
	}
}

func (s *session) cmdModels() {
	models := s.node.Models()
	if len(models) == 0 {
		fmt.Fprintln(s.out, "No models registered")
		return
	}

	local := s.node.Device()
	fmt.Fprintf(s.out, "\nModels (%d):\n", len(models))
	fmt.Fprintln(s.out, "-------------------------------------------")
	for _, m := range models {
		fmt.Fprintf(s.out, "  %s\n", m.Name)
		fmt.Fprintf(s.out, "      ID: %s\n", m.ID)
		fmt.Fprintf(s.out, "      State: %d bytes (has-state: %t)\n", len(m.State), local.HoldsState(m.Name))
	}
}

func (s *session) cmdDevices(args []string) {
	var names []string
	hasState := false
	for _, a := range args {
		if a == "--has-state" {
			hasState = true
			continue
		}
		names = append(names, a)
	}
	if len(names) == 0 {
		for _, m := range s.node.Models() {
			names = append(names, m.Name)
		}
	}

	for _, name := range names {
		devices, err := s.node.Devices(name, hasState)
		if err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
			continue
		}
		fmt.Fprintf(s.out, "\n%s (%d):\n", name, len(devices))
		if len(devices) == 0 {
			fmt.Fprintln(s.out, "  No devices")
			continue
		}
		for _, d := range devices {
			marker := " "
			if d.HoldsState(name) {
				marker = "*"
			}
			fmt.Fprintf(s.out, "  %s %s  %s\n", marker, d.ID, d.Name)
		}
	}
}

func (s *session) cmdState(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "Usage: state <model>")
		return
	}
	m, ok := s.node.Model(args[0])
	if !ok {
		fmt.Fprintf(s.out, "Error: unknown model %q\n", args[0])
		return
	}
	if len(m.State) == 0 {
		fmt.Fprintln(s.out, "(no state)")
		return
	}
	fmt.Fprintln(s.out, string(m.State))
}

func (s *session) cmdDirected(ctx context.Context, name string, args []string,
	op func(context.Context, string, string) error) {
	if len(args) != 2 {
		fmt.Fprintf(s.out, "Usage: %s <model> <device>\n", name)
		return
	}

	deviceID, err := s.resolveDevice(args[0], args[1])
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	if err := op(ctx, args[0], deviceID); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "OK: %s %s -> %s\n", name, args[0], deviceID)
}

func (s *session) cmdSet(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.out, "Usage: set <model> <json|@file>")
		return
	}

	value := strings.Join(args[1:], " ")
	var state []byte
	if path, ok := strings.CutPrefix(value, "@"); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
			return
		}
		state = data
	} else {
		state = []byte(value)
	}

	if !json.Valid(state) {
		fmt.Fprintln(s.out, "Error: state is not valid JSON")
		return
	}
	if err := s.node.SetState(args[0], state); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "OK: state of %s set (%d bytes)\n", args[0], len(state))
}

func (s *session) cmdHasState(ctx context.Context, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(s.out, "Usage: hasstate <model> <on|off>")
		return
	}

	var value bool
	switch strings.ToLower(args[1]) {
	case "on", "true", "1":
		value = true
	case "off", "false", "0":
		value = false
	default:
		fmt.Fprintf(s.out, "Error: expected on or off, got %q\n", args[1])
		return
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	if err := s.node.AnnounceHasState(ctx, args[0], value); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "OK: has-state of %s = %t\n", args[0], value)
}

func (s *session) cmdNearby(ctx context.Context, args []string) {
	if s.browser == nil {
		fmt.Fprintln(s.out, "Error: node browsing is not available")
		return
	}
	timeout := browseTimeout
	if len(args) > 0 {
		secs, err := strconv.Atoi(args[0])
		if err != nil || secs <= 0 {
			fmt.Fprintln(s.out, "Usage: nearby [seconds]")
			return
		}
		timeout = time.Duration(secs) * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fmt.Fprintf(s.out, "Browsing for %s...\n", timeout)
	found := 0
	for svc := range s.browser.BrowseNodes(ctx) {
		marker := " "
		if svc.ID == s.node.ID() {
			marker = "*"
		}
		fmt.Fprintf(s.out, "  %s %s  %-12s %s  %v\n", marker, svc.ID, svc.Name,
			strings.Join(svc.Models, ","), svc.Addresses)
		found++
	}
	fmt.Fprintf(s.out, "%d node(s) found\n", found)
}

// resolveDevice expands a unique device ID prefix among the devices known
// for a model.
func (s *session) resolveDevice(modelName, prefix string) (string, error) {
	devices, err := s.node.Devices(modelName, false)
	if err != nil {
		return "", err
	}

	var matches []string
	for _, d := range devices {
		if d.ID == prefix {
			return d.ID, nil
		}
		if strings.HasPrefix(d.ID, prefix) {
			matches = append(matches, d.ID)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("unknown device %q for model %s", prefix, modelName)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("ambiguous device prefix %q (%d matches)", prefix, len(matches))
	}
}
