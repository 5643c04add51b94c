package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDaemon(t *testing.T) (*httptest.Server, *[]PreviewRequest) {
	t.Helper()
	var got []PreviewRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/api/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	mux.HandleFunc("/api/preview", func(w http.ResponseWriter, r *http.Request) {
		var req PreviewRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		got = append(got, req)
		switch req.Action {
		case "start":
			_ = json.NewEncoder(w).Encode(Response{Success: true, Message: "Dev server started", URL: "http://localhost:3001"})
		case "stop":
			_ = json.NewEncoder(w).Encode(Response{Success: true, Message: "Dev server stopped"})
		default:
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(Response{Error: "Invalid action", Kind: "invalid_action"})
		}
	})
	mux.HandleFunc("/api/files/save", func(w http.ResponseWriter, r *http.Request) {
		var req SaveRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.FileID == "f-bad" {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(Response{Error: "Failed to save file: disk full", Kind: "disk_write_failure"})
			return
		}
		_ = json.NewEncoder(w).Encode(Response{Success: true, Message: "File saved successfully"})
	})
	mux.HandleFunc("/api/preview/status", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("serviceId") == "svc-1" {
			_ = json.NewEncoder(w).Encode(PreviewStatus{Success: true, Running: true, PID: 7, URL: "http://localhost:3001"})
			return
		}
		_ = json.NewEncoder(w).Encode(PreviewStatus{Success: true})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestClientPreviewRoundTrip(t *testing.T) {
	srv, got := newTestDaemon(t)
	c := New(Config{BaseURL: srv.URL + "/api/"})
	ctx := context.Background()

	require.True(t, c.IsReachable(ctx))

	res, err := c.StartPreview(ctx, "svc-1", "service-1", 3001)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3001", res.URL)

	res, err = c.StopPreview(ctx, "svc-1")
	require.NoError(t, err)
	assert.Equal(t, "Dev server stopped", res.Message)

	require.Len(t, *got, 2)
	assert.Equal(t, PreviewRequest{ServiceID: "svc-1", ServiceName: "service-1", Port: 3001, Action: "start"}, (*got)[0])
	assert.Equal(t, "stop", (*got)[1].Action)
}

func TestClientSaveFailureCarriesKind(t *testing.T) {
	srv, _ := newTestDaemon(t)
	c := New(Config{BaseURL: srv.URL + "/api"})

	_, err := c.SaveFile(context.Background(), "f-1", "x")
	require.NoError(t, err)

	_, err = c.SaveFile(context.Background(), "f-bad", "x")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "disk_write_failure", apiErr.Kind)
}

func TestClientPreviewStatus(t *testing.T) {
	srv, _ := newTestDaemon(t)
	c := New(Config{BaseURL: srv.URL + "/api"})

	st, err := c.PreviewStatus(context.Background(), "svc-1")
	require.NoError(t, err)
	assert.True(t, st.Running)
	assert.Equal(t, 7, st.PID)

	st, err = c.PreviewStatus(context.Background(), "svc-2")
	require.NoError(t, err)
	assert.False(t, st.Running)
}

func TestClientUnreachable(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:1/api"})
	assert.False(t, c.IsReachable(context.Background()))
	_, err := c.StopPreview(context.Background(), "svc-1")
	assert.Error(t, err)
}
