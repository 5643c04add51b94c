// Package files saves editor content to the metadata store and to the
// service's working tree on disk.
package files

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/loykin/ideshell/internal/apperr"
	"github.com/loykin/ideshell/internal/history"
	"github.com/loykin/ideshell/internal/metastore"
	"github.com/loykin/ideshell/internal/metrics"
)

const MsgSaved = "File saved successfully"

// Store is the part of the metadata store client used for saves.
type Store interface {
	GetFile(ctx context.Context, id string) (metastore.File, error)
	UpdateFileContent(ctx context.Context, id, content string) (metastore.File, error)
}

// PathResolver maps a file record to its absolute location on disk.
type PathResolver interface {
	FilePath(serviceID, rel string) (string, error)
}

type Config struct {
	Store    Store
	Paths    PathResolver
	Rollback bool // restore the previous store content when the disk write fails
	Sinks    []history.Sink
	Logger   *slog.Logger
}

// Coordinator performs the store-then-disk dual write. A save succeeds only
// when both writes succeed.
type Coordinator struct {
	store    Store
	paths    PathResolver
	rollback bool
	sinks    []history.Sink
	logger   *slog.Logger
}

func New(cfg Config) *Coordinator {
	c := &Coordinator{
		store:    cfg.Store,
		paths:    cfg.Paths,
		rollback: cfg.Rollback,
		sinks:    append([]history.Sink(nil), cfg.Sinks...),
		logger:   cfg.Logger,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Save writes content to file fileID. Failures carry an apperr kind naming
// the step that failed; with rollback enabled a disk failure whose store
// restore also fails is reported as apperr.KindPartialSave.
func (c *Coordinator) Save(ctx context.Context, fileID, content string) (err error) {
	start := time.Now()
	var rec metastore.File
	defer func() {
		result := "ok"
		if err != nil {
			result = string(apperr.KindOf(err))
		}
		metrics.ObserveSave(result, time.Since(start).Seconds())
		hr := history.Record{ServiceID: rec.ServiceID, FileID: fileID, Path: rec.Path, Status: result}
		if err != nil {
			hr.Error = err.Error()
		}
		history.Emit(ctx, c.sinks, history.Event{Type: history.EventFileSave, Record: hr})
	}()

	var previous string
	if c.rollback {
		prev, gerr := c.store.GetFile(ctx, fileID)
		if gerr != nil {
			return apperr.New(apperr.KindMetadataReadFailure, "read previous content", gerr)
		}
		previous = prev.Content
	}

	if _, err := c.store.UpdateFileContent(ctx, fileID, content); err != nil {
		return apperr.New(apperr.KindMetadataWriteFailure, "update file content", err)
	}

	rec, err = c.store.GetFile(ctx, fileID)
	if err != nil {
		return apperr.New(apperr.KindMetadataReadFailure, "read file record", err)
	}

	path, err := c.paths.FilePath(rec.ServiceID, rec.Path)
	if err == nil {
		// Direct overwrite; the file is not replaced by rename.
		err = os.WriteFile(path, []byte(content), 0o644)
	}
	if err != nil {
		diskErr := apperr.New(apperr.KindDiskWriteFailure, "write file", err)
		if !c.rollback {
			c.logger.Warn("file content ahead of disk", "file", fileID, "service", rec.ServiceID, "path", rec.Path, "error", err)
			return diskErr
		}
		if _, rerr := c.store.UpdateFileContent(ctx, fileID, previous); rerr != nil {
			c.logger.Error("file save rollback failed", "file", fileID, "service", rec.ServiceID, "path", rec.Path, "error", rerr)
			return apperr.New(apperr.KindPartialSave, "roll back file content", errors.Join(err, rerr))
		}
		c.logger.Info("file save rolled back", "file", fileID, "path", rec.Path)
		return diskErr
	}

	c.logger.Debug("file saved", "file", fileID, "service", rec.ServiceID, "path", path, "bytes", len(content))
	return nil
}
