package commands

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rtsm-protocol/rtsm-go/pkg/log"
)

func TestExportToJSONL(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	outPath := filepath.Join(t.TempDir(), "out.jsonl")

	if err := RunExport(path, "jsonl", outPath, FilterOptions{Category: "message"}); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var event log.Event
	if err := json.Unmarshal([]byte(lines[1]), &event); err != nil {
		t.Fatalf("line is not valid JSON: %v", err)
	}
	if event.Message == nil || event.Message.Action != "request-state" {
		t.Errorf("unexpected event: %+v", event)
	}
	if !bytes.Equal(event.Message.Payload, []byte(`{"action":"request-state","data":{}}`)) {
		t.Errorf("payload not preserved: %s", event.Message.Payload)
	}
}

func TestExportToCSV(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	outPath := filepath.Join(t.TempDir(), "out.csv")

	if err := RunExport(path, "csv", outPath, FilterOptions{}); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(records) != 7 {
		t.Fatalf("expected header + 6 rows, got %d", len(records))
	}
	if strings.Join(records[0], ",") != strings.Join(csvHeader, ",") {
		t.Errorf("unexpected header: %v", records[0])
	}

	tests := []struct {
		row  int
		typ  string
		size string
		info string
	}{
		{1, "CONNECTION", "", "IDLE->RUNNING"},
		{2, "device", "39", ""},
		{4, "online", "", peerC},
		{5, "unknown-model", "12", ""},
		{6, "publish", "", "not connected"},
	}
	for _, tt := range tests {
		rec := records[tt.row]
		if rec[7] != tt.typ || rec[8] != tt.size || rec[9] != tt.info {
			t.Errorf("row %d: got type=%q size=%q detail=%q", tt.row, rec[7], rec[8], rec[9])
		}
	}
	if records[2][0] != "2026-10-01T10:15:33.123456Z" {
		t.Errorf("unexpected timestamp: %s", records[2][0])
	}
}

func TestExportUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	err := RunExport(path, "xml", "", FilterOptions{})
	if err == nil || !strings.Contains(err.Error(), "unknown format") {
		t.Errorf("expected unknown format error, got %v", err)
	}
}
