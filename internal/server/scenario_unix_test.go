//go:build !windows

package server

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/ideshell/internal/files"
	"github.com/loykin/ideshell/internal/metastore"
	"github.com/loykin/ideshell/internal/metastore/metastoretest"
	"github.com/loykin/ideshell/internal/preview"
	"github.com/loykin/ideshell/internal/status"
	"github.com/loykin/ideshell/internal/workspace"
)

// setupStack wires the real supervisor and coordinator against a fake
// metadata store seeded with svc-1 and f-1.
func setupStack(t *testing.T) (http.Handler, *metastoretest.Server, *preview.Supervisor, workspace.Layout) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	layout := workspace.Layout{
		Root:        t.TempDir(),
		WorkspaceID: "ws-1",
		AppsDir:     "apps",
		Services:    map[string]string{"svc-1": "service-1", "svc-2": "service-2"},
	}
	if err := os.MkdirAll(filepath.Join(layout.AppsRoot(), "service-1", "app"), 0o755); err != nil {
		t.Fatal(err)
	}

	store := metastoretest.New(t)
	store.PutService(metastore.Service{ID: "svc-1", Name: "service-1", WorkspaceID: "ws-1", Port: 3001, Status: metastore.StatusStopped})
	store.PutFile(metastore.File{ID: "f-1", ServiceID: "svc-1", Path: "app/page.tsx", Name: "page.tsx", Content: "old"})
	cfg := metastore.DefaultConfig()
	cfg.BaseURL = store.URL
	client := metastore.New(cfg)

	sup := preview.New(preview.Config{
		Dirs:    layout,
		Status:  status.New(client, nil),
		Command: "sleep 30",
		Grace:   100 * time.Millisecond,
	})
	t.Cleanup(func() {
		sup.Shutdown(context.Background())
		sup.Close()
	})
	coord := files.New(files.Config{Store: client, Paths: layout, Rollback: true})
	return NewRouter(sup, coord, "/api").Handler(), store, sup, layout
}

func TestScenarioStartTwiceThenStop(t *testing.T) {
	h, store, sup, _ := setupStack(t)
	start := map[string]any{"serviceId": "svc-1", "serviceName": "service-1", "port": 3001, "action": "start"}

	rec := doReq(t, h, http.MethodPost, "/api/preview", start)
	env := decode(t, rec)
	if rec.Code != http.StatusOK || env.URL != "http://localhost:3001" || env.Message != "Dev server started" {
		t.Fatalf("first start: %d %+v", rec.Code, env)
	}
	if got := store.Service("svc-1").Status; got != metastore.StatusRunning {
		t.Fatalf("status=%s", got)
	}

	rec = doReq(t, h, http.MethodPost, "/api/preview", start)
	env = decode(t, rec)
	if env.URL != "http://localhost:3001" || env.Message != "Server already running" {
		t.Fatalf("second start: %+v", env)
	}
	if sup.Registry().Len() != 1 {
		t.Fatalf("expected one registered preview, got %d", sup.Registry().Len())
	}

	rec = doReq(t, h, http.MethodPost, "/api/preview", map[string]any{"serviceId": "svc-1", "action": "stop"})
	env = decode(t, rec)
	if rec.Code != http.StatusOK || env.Message != "Dev server stopped" {
		t.Fatalf("stop: %d %+v", rec.Code, env)
	}
	if _, ok := sup.Registry().Lookup("svc-1"); ok {
		t.Fatalf("handle still registered after stop")
	}
	if got := store.Service("svc-1").Status; got != metastore.StatusStopped {
		t.Fatalf("status=%s", got)
	}
}

func TestScenarioStopUnknownService(t *testing.T) {
	h, store, _, _ := setupStack(t)
	rec := doReq(t, h, http.MethodPost, "/api/preview", map[string]any{"serviceId": "svc-2", "action": "stop"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if w := store.Writes(); len(w) != 0 {
		t.Fatalf("expected no metadata writes, got %v", w)
	}
}

func TestScenarioInvalidActionHasNoEffect(t *testing.T) {
	h, store, sup, _ := setupStack(t)
	rec := doReq(t, h, http.MethodPost, "/api/preview", map[string]any{
		"serviceId": "svc-1", "serviceName": "service-1", "port": 3001, "action": "restart",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if sup.Registry().Len() != 0 || len(store.Writes()) != 0 {
		t.Fatalf("invalid action mutated state")
	}
}

func TestScenarioSaveWritesStoreAndDisk(t *testing.T) {
	h, store, _, layout := setupStack(t)
	content := "export default function Page() { return <main>hi</main> }\n"

	rec := doReq(t, h, http.MethodPost, "/api/files/save", map[string]any{"fileId": "f-1", "content": content})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.File("f-1").Content != content {
		t.Fatalf("store content not updated")
	}
	b, err := os.ReadFile(filepath.Join(layout.Root, "ws-1", "apps", "service-1", "app", "page.tsx"))
	if err != nil {
		t.Fatalf("read disk: %v", err)
	}
	if string(b) != content {
		t.Fatalf("disk content %q", b)
	}
}
