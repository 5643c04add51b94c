// Package status pushes service lifecycle status to the metadata store.
package status

import (
	"context"
	"log/slog"

	"github.com/loykin/ideshell/internal/metastore"
	"github.com/loykin/ideshell/internal/metrics"
)

// Store is the part of the metadata store client the synchronizer needs.
type Store interface {
	UpdateServiceStatus(ctx context.Context, id string, status metastore.Status) (metastore.Service, error)
}

// Synchronizer writes status changes without retrying. A failed write leaves
// the stored status out of sync with the local process; that is logged and
// counted, never returned to the caller.
type Synchronizer struct {
	store  Store
	logger *slog.Logger
}

func New(store Store, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{store: store, logger: logger}
}

// SetStatus issues a partial update of the service's status field.
// It reports whether the store accepted the write.
func (s *Synchronizer) SetStatus(ctx context.Context, serviceID string, st metastore.Status) bool {
	if _, err := s.store.UpdateServiceStatus(ctx, serviceID, st); err != nil {
		metrics.IncStatusSyncFailure(string(st))
		s.logger.Warn("service status out of sync", "service", serviceID, "status", st, "error", err)
		return false
	}
	s.logger.Debug("service status updated", "service", serviceID, "status", st)
	return true
}
