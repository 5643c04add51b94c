package history

import (
	"context"
	"log/slog"
	"time"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventPreviewStart EventType = "preview_start"
	EventPreviewStop  EventType = "preview_stop"
	EventPreviewExit  EventType = "preview_exit"
	EventFileSave     EventType = "file_save"
)

// Record is the payload of an event. Fields that do not apply to the event
// type are left zero.
type Record struct {
	ServiceID   string `json:"service_id"`
	ServiceName string `json:"service_name,omitempty"`
	Port        int    `json:"port,omitempty"`
	PID         int    `json:"pid,omitempty"`
	Status      string `json:"status"`
	FileID      string `json:"file_id,omitempty"`
	Path        string `json:"path,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Event represents a lifecycle event to be exported to external systems.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Record     Record    `json:"record"`
}

// Sink is a destination for history events (analytics/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// Emit stamps e and sends it to every sink. Sink failures are logged and
// otherwise ignored; history never fails the operation it describes.
func Emit(ctx context.Context, sinks []Sink, e Event) {
	if len(sinks) == 0 {
		return
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	for _, s := range sinks {
		if err := s.Send(ctx, e); err != nil {
			slog.Debug("history sink send failed", "type", e.Type, "service", e.Record.ServiceID, "error", err)
		}
	}
}
