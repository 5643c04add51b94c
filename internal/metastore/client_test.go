package metastore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/ideshell/internal/metastore"
	"github.com/loykin/ideshell/internal/metastore/metastoretest"
)

func newClient(t *testing.T) (*metastore.Client, *metastoretest.Server) {
	t.Helper()
	srv := metastoretest.New(t)
	return metastore.New(metastore.Config{BaseURL: srv.URL, Timeout: 2 * time.Second}), srv
}

func TestServiceStatusPatch(t *testing.T) {
	c, srv := newClient(t)
	srv.PutService(metastore.Service{ID: "svc-1", Name: "service-1", WorkspaceID: "ws-1", Port: 3001, Status: metastore.StatusStopped})

	got, err := c.UpdateServiceStatus(context.Background(), "svc-1", metastore.StatusRunning)
	require.NoError(t, err)
	assert.Equal(t, metastore.StatusRunning, got.Status)
	assert.Equal(t, "service-1", got.Name, "partial update keeps other fields")

	svc, err := c.GetService(context.Background(), "svc-1")
	require.NoError(t, err)
	assert.Equal(t, metastore.StatusRunning, svc.Status)
	assert.Equal(t, 3001, svc.Port)
}

func TestFileContentPatch(t *testing.T) {
	c, srv := newClient(t)
	srv.PutFile(metastore.File{ID: "f-1", ServiceID: "svc-1", Path: "app/page.tsx", Name: "page.tsx", Content: "old"})

	f, err := c.UpdateFileContent(context.Background(), "f-1", "export default 1;")
	require.NoError(t, err)
	assert.Equal(t, "export default 1;", f.Content)
	assert.Equal(t, "app/page.tsx", f.Path)

	f, err = c.GetFile(context.Background(), "f-1")
	require.NoError(t, err)
	assert.Equal(t, "export default 1;", f.Content)
}

func TestNotFound(t *testing.T) {
	c, _ := newClient(t)
	_, err := c.GetFile(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, metastore.ErrNotFound))

	var se *metastore.HTTPError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 404, se.Code)
}

func TestServerErrorIsNotNotFound(t *testing.T) {
	c, srv := newClient(t)
	srv.PutService(metastore.Service{ID: "svc-1"})
	srv.FailServicePatch = true
	_, err := c.UpdateServiceStatus(context.Background(), "svc-1", metastore.StatusStopped)
	require.Error(t, err)
	assert.False(t, errors.Is(err, metastore.ErrNotFound))
}

func TestListServicesByWorkspace(t *testing.T) {
	c, srv := newClient(t)
	srv.PutService(metastore.Service{ID: "svc-1", WorkspaceID: "ws-1"})
	srv.PutService(metastore.Service{ID: "svc-2", WorkspaceID: "ws-1"})
	srv.PutService(metastore.Service{ID: "svc-9", WorkspaceID: "ws-2"})

	out, err := c.ListServices(context.Background(), "ws-1")
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestUnreachable(t *testing.T) {
	c := metastore.New(metastore.Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	_, err := c.GetService(context.Background(), "svc-1")
	require.Error(t, err)
}
