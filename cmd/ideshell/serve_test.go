package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/ideshell/internal/config"
	"github.com/loykin/ideshell/internal/metastore"
	"github.com/loykin/ideshell/internal/metastore/metastoretest"
	"github.com/loykin/ideshell/pkg/client"
)

type testDaemon struct {
	d     *daemon
	srv   *httptest.Server
	store *metastoretest.Server
	root  string
}

// startTestDaemon loads a TOML config pointing at a fake metadata store and
// serves the wired handler on an httptest server.
func startTestDaemon(t *testing.T) *testDaemon {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := metastoretest.New(t)
	store.PutService(metastore.Service{ID: "svc-1", Name: "service-1", WorkspaceID: "ws-1", Port: 3001, Status: metastore.StatusRunning})
	store.PutFile(metastore.File{ID: "f-1", ServiceID: "svc-1", Path: "app/page.tsx", Name: "page.tsx", Content: "old"})

	dir := t.TempDir()
	root := filepath.Join(dir, "workspace")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "ws-1", "apps", "service-1", "app"), 0o755))

	toml := `
[server]
listen = "127.0.0.1:0"
base_path = "/api"

[metastore]
url = "` + store.URL + `"
timeout = "2s"

[workspace]
root = "` + filepath.ToSlash(root) + `"
id = "ws-1"

[preview]
command = "sleep 30 {port}"
grace_period = "100ms"

[log]
level = "error"

[history]
enabled = true
dsn = "sqlite://` + filepath.ToSlash(filepath.Join(dir, "history.db")) + `"
`
	path := filepath.Join(dir, "ideshell.toml")
	require.NoError(t, os.WriteFile(path, []byte(toml), 0o600))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	d, err := buildDaemon(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	srv := httptest.NewServer(d.handler)
	t.Cleanup(func() {
		srv.Close()
		d.sup.Shutdown(context.Background())
		d.close()
	})
	return &testDaemon{d: d, srv: srv, store: store, root: root}
}

func TestBuildDaemonServesHealthAndMetrics(t *testing.T) {
	td := startTestDaemon(t)

	resp, err := http.Get(td.srv.URL + "/api/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(td.srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "ideshell_")
}

func TestReconcileResetsStaleStatus(t *testing.T) {
	td := startTestDaemon(t)
	td.d.reconcile(context.Background())
	assert.Equal(t, metastore.StatusStopped, td.store.Service("svc-1").Status)
}

func TestBuildDaemonRejectsBadHistoryDSN(t *testing.T) {
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.History.Enabled = true
	cfg.History.DSN = "clickhouse://%zz"
	_, err = buildDaemon(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
}

func TestCommandsAgainstDaemon(t *testing.T) {
	td := startTestDaemon(t)
	flags := &GlobalFlags{APIUrl: td.srv.URL + "/api"}

	run := func(args ...string) (string, error) {
		root := buildRoot()
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetErr(io.Discard)
		root.SetIn(strings.NewReader("export default function Page() {}\n"))
		root.SetArgs(append([]string{"--api-url", flags.APIUrl}, args...))
		err := root.Execute()
		return out.String(), err
	}

	out, err := run("save", "--file-id=f-1")
	require.NoError(t, err)
	var res client.Response
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Success)
	assert.Equal(t, "File saved successfully", res.Message)

	b, err := os.ReadFile(filepath.Join(td.root, "ws-1", "apps", "service-1", "app", "page.tsx"))
	require.NoError(t, err)
	assert.Equal(t, "export default function Page() {}\n", string(b))

	out, err = run("preview", "status")
	require.NoError(t, err)
	var st client.PreviewStatus
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.True(t, st.Success)
	assert.False(t, st.Running)

	_, err = run("save", "--file-id=missing")
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "metadata_read_failure", apiErr.Kind)
}
