package journal

import (
	"encoding/json"
	"testing"
	"time"
)

func TestWriterRoundTripAndRotation(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "events")
	clock := time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)
	w.now = func() time.Time { return clock }

	if err := w.Record(Entry{Kind: "create", ExternalID: "T1", Outcome: "first_seen", Payload: json.RawMessage(`{"name":"Fix bug"}`)}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := w.Record(Entry{Kind: "create", ExternalID: "T1", Outcome: "already_processed"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	clock = clock.Add(time.Hour)
	if err := w.Record(Entry{Kind: "complete", ExternalID: "T1", Outcome: "completed"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := Files(dir, "events")
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected hourly rotation into 2 files, got %v", files)
	}

	var entries []Entry
	for _, f := range files {
		if err := Read(f, func(e Entry) error {
			entries = append(entries, e)
			return nil
		}); err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Outcome != "first_seen" || string(entries[0].Payload) != `{"name":"Fix bug"}` {
		t.Fatalf("unexpected first entry %+v", entries[0])
	}
	if entries[2].Kind != "complete" || !entries[2].At.Equal(clock) {
		t.Fatalf("unexpected last entry %+v", entries[2])
	}
}

func TestDiscard(t *testing.T) {
	if err := Discard.Record(Entry{Kind: "create"}); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
