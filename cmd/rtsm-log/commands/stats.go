package commands

import (
	"fmt"
	"io"
	"slices"
	"sort"
	"time"

	"github.com/rtsm-protocol/rtsm-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	MessagesByAction  map[string]int
	DropsByReason     map[log.DropReason]int
	Nodes             map[string]int
	Peers             map[string]*PeerStats
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// PeerStats holds statistics for a single remote device.
type PeerStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Models    map[string]struct{}

	// Presence is the last presence value seen, nil if none was logged.
	Presence *bool
}

// CollectStats reads every event of the log file.
func CollectStats(path string) (*Stats, error) {
	reader, err := log.NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		MessagesByAction:  make(map[string]int),
		DropsByReason:     make(map[log.DropReason]int),
		Nodes:             make(map[string]int),
		Peers:             make(map[string]*PeerStats),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}
	return stats, nil
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++
	if event.NodeID != "" {
		s.Nodes[event.NodeID]++
	}

	// Track time range
	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	switch {
	case event.Message != nil:
		s.MessagesByAction[event.Message.Action]++
	case event.Drop != nil:
		s.DropsByReason[event.Drop.Reason]++
	case event.Error != nil:
		s.Errors++
	}

	peerID := event.PeerID
	if event.Presence != nil {
		peerID = event.Presence.DeviceID
	}
	if peerID == "" || peerID == event.NodeID {
		return
	}

	peer, ok := s.Peers[peerID]
	if !ok {
		peer = &PeerStats{
			FirstSeen: event.Timestamp,
			LastSeen:  event.Timestamp,
			Models:    make(map[string]struct{}),
		}
		s.Peers[peerID] = peer
	}
	peer.Events++
	if event.Timestamp.After(peer.LastSeen) {
		peer.LastSeen = event.Timestamp
	}
	if event.Model != "" {
		peer.Models[event.Model] = struct{}{}
	}
	if event.Presence != nil {
		online := event.Presence.Online
		peer.Presence = &online
	}
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	stats, err := CollectStats(path)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== RTSM Protocol Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintf(w, "Nodes:        %d\n", len(stats.Nodes))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategoryPresence, log.CategoryState, log.CategoryDrop, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-16s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-16s %d\n", dir.String()+":", count)
		}
	}

	if len(stats.MessagesByAction) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Messages by Action:")
		for _, action := range sortedKeys(stats.MessagesByAction) {
			fmt.Fprintf(w, "  %-16s %d\n", action+":", stats.MessagesByAction[action])
		}
	}

	if len(stats.DropsByReason) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Drops by Reason:")
		for _, reason := range sortedKeys(stats.DropsByReason) {
			fmt.Fprintf(w, "  %-20s %d\n", string(reason)+":", stats.DropsByReason[reason])
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Peers: %d\n", len(stats.Peers))
	if len(stats.Peers) > 0 {
		type peerInfo struct {
			id    string
			stats *PeerStats
		}
		peers := make([]peerInfo, 0, len(stats.Peers))
		for id, ps := range stats.Peers {
			peers = append(peers, peerInfo{id, ps})
		}
		sort.Slice(peers, func(i, j int) bool {
			return peers[i].stats.FirstSeen.Before(peers[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, p := range peers {
			duration := p.stats.LastSeen.Sub(p.stats.FirstSeen).Round(time.Millisecond)
			status := "unknown"
			if p.stats.Presence != nil {
				status = "offline"
				if *p.stats.Presence {
					status = "online"
				}
			}
			fmt.Fprintf(w, "  [%s] %d events, duration %s, last presence %s\n",
				shortenID(p.id), p.stats.Events, duration, status)
			if len(p.stats.Models) > 0 {
				fmt.Fprintf(w, "           Models: %v\n", sortedKeys(p.stats.Models))
			}
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
