package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/loykin/ideshell/internal/history"
)

func TestSQLiteSink_File(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	sink, err := New("sqlite://" + dbPath)
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			t.Errorf("Failed to close sink: %v", err)
		}
	}()

	ctx := context.Background()
	rec := history.Record{ServiceID: "svc-1", ServiceName: "service-1", Port: 3001, PID: 4242, Status: "running"}
	if err := sink.Send(ctx, history.Event{Type: history.EventPreviewStart, OccurredAt: time.Now(), Record: rec}); err != nil {
		t.Fatalf("send start: %v", err)
	}
	rec.Status = "stopped"
	if err := sink.Send(ctx, history.Event{Type: history.EventPreviewStop, OccurredAt: time.Now(), Record: rec}); err != nil {
		t.Fatalf("send stop: %v", err)
	}

	n, err := sink.Count(ctx, history.EventPreviewStart, "svc-1")
	if err != nil || n != 1 {
		t.Fatalf("start count: n=%d err=%v", n, err)
	}
	n, err = sink.Count(ctx, history.EventPreviewStop, "svc-1")
	if err != nil || n != 1 {
		t.Fatalf("stop count: n=%d err=%v", n, err)
	}
}

func TestSQLiteSink_InMemory(t *testing.T) {
	sink, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create in-memory sink: %v", err)
	}
	defer func() { _ = sink.Close() }()

	ctx := context.Background()
	e := history.Event{
		Type:       history.EventFileSave,
		OccurredAt: time.Now(),
		Record:     history.Record{ServiceID: "svc-1", FileID: "f-1", Path: "app/page.tsx", Status: "ok"},
	}
	for i := 0; i < 3; i++ {
		if err := sink.Send(ctx, e); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	n, err := sink.Count(ctx, history.EventFileSave, "svc-1")
	if err != nil || n != 3 {
		t.Fatalf("count: n=%d err=%v", n, err)
	}
}

func TestSQLiteSink_EmptyDSN(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
}
