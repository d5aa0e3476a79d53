// Package commands implements the rtsm-log CLI commands.
package commands

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rtsm-protocol/rtsm-go/pkg/log"
)

const timestampLayout = "2006-01-02T15:04:05.000000Z"

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [node:id] DIRECTION CATEGORY label
	ts := event.Timestamp.UTC().Format(timestampLayout)
	fmt.Fprintf(w, "%s [node:%s] %-3s %s %s\n",
		ts, shortenID(event.NodeID), event.Direction.String(), event.Category.String(), eventLabel(event))

	if event.Topic != "" {
		fmt.Fprintf(w, "  Topic: %s\n", event.Topic)
	}
	if event.Model != "" {
		fmt.Fprintf(w, "  Model: %s\n", event.Model)
	}
	if event.PeerID != "" {
		fmt.Fprintf(w, "  Peer: %s\n", event.PeerID)
	}

	switch {
	case event.Message != nil:
		formatMessageDetails(w, event.Message)
	case event.Presence != nil:
		formatPresenceDetails(w, event.Presence)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Drop != nil:
		formatDropDetails(w, event.Drop)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w) // Blank line between events
}

// eventLabel returns a short description of the event payload.
func eventLabel(event log.Event) string {
	switch {
	case event.Message != nil:
		return event.Message.Action
	case event.Presence != nil:
		if event.Presence.Online {
			return "online"
		}
		return "offline"
	case event.StateChange != nil:
		return event.StateChange.Entity.String()
	case event.Drop != nil:
		return string(event.Drop.Reason)
	case event.Error != nil:
		return event.Error.Operation
	default:
		return "unknown"
	}
}

// shortenID returns the first 8 characters of an ID.
func shortenID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

// formatMessageDetails writes message-specific details. JSON payloads are
// printed as text, anything else as hex.
func formatMessageDetails(w io.Writer, msg *log.MessageEvent) {
	fmt.Fprintf(w, "  Size: %d bytes\n", msg.Size)
	if len(msg.Payload) == 0 {
		return
	}
	if !msg.Truncated && json.Valid(msg.Payload) {
		fmt.Fprintf(w, "  Payload: %s\n", string(msg.Payload))
		return
	}
	fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(msg.Payload))
	if msg.Truncated {
		fmt.Fprintf(w, " (truncated)")
	}
	fmt.Fprintln(w)
}

func formatPresenceDetails(w io.Writer, p *log.PresenceEvent) {
	fmt.Fprintf(w, "  Device: %s\n", p.DeviceID)
	if p.Retained {
		fmt.Fprintln(w, "  Retained: yes")
	}
}

// formatStateChangeDetails writes state change details.
func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatDropDetails(w io.Writer, d *log.DropEvent) {
	if d.Detail != "" {
		fmt.Fprintf(w, "  Detail: %s\n", d.Detail)
	}
	if d.Size > 0 {
		fmt.Fprintf(w, "  Size: %d bytes\n", d.Size)
	}
}

// formatErrorDetails writes error details.
func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
}

// RunView executes the view command.
func RunView(path string, opts FilterOptions, output io.Writer) error {
	filter, err := BuildFilter(opts)
	if err != nil {
		return err
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}
	return nil
}
