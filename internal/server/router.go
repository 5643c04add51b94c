package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/ideshell/internal/apperr"
	"github.com/loykin/ideshell/internal/preview"
)

// Router provides embeddable HTTP handlers for the IDE shell.
// Endpoints:
//   POST {basePath}/preview         body: {serviceId, serviceName, port, action}
//   GET  {basePath}/preview/status  query: serviceId=... (single) or none (list)
//   POST {basePath}/files/save      body: {fileId, content}
//   GET  {basePath}/healthz
// basePath may be empty or start with '/'; no trailing slash.

// Previews is the preview lifecycle the router drives.
type Previews interface {
	Start(ctx context.Context, req preview.Request) (preview.Result, error)
	Stop(ctx context.Context, serviceID string) (preview.Result, error)
	Status(serviceID string) (preview.Info, bool)
	List() []preview.Info
}

// Files saves editor content.
type Files interface {
	Save(ctx context.Context, fileID, content string) error
}

type Router struct {
	previews    Previews
	files       Files
	basePath    string
	metricsPath string
	metrics     http.Handler
	logger      *slog.Logger
}

// NewRouter constructs a new Router with configurable basePath.
// Example basePath: "/api" results in /api/preview, /api/files/save.
func NewRouter(previews Previews, files Files, basePath string) *Router {
	return &Router{
		previews: previews,
		files:    files,
		basePath: sanitizeBase(basePath),
		logger:   slog.Default(),
	}
}

// WithMetrics serves h at path, outside basePath.
func (r *Router) WithMetrics(path string, h http.Handler) *Router {
	r.metricsPath = sanitizeBase(path)
	r.metrics = h
	return r
}

func (r *Router) WithLogger(l *slog.Logger) *Router {
	if l != nil {
		r.logger = l
	}
	return r
}

// BasePath returns the sanitized base path.
func (r *Router) BasePath() string { return r.basePath }

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.POST("/preview", r.handlePreview)
	group.GET("/preview/status", r.handlePreviewStatus)
	group.POST("/files/save", r.handleSave)
	group.GET("/healthz", r.handleHealth)
	if r.metrics != nil && r.metricsPath != "" {
		g.GET(r.metricsPath, gin.WrapH(r.metrics))
	}
	return g
}

// NewServer returns an HTTP server for h with the daemon's timeouts. The
// write timeout leaves room for the preview grace period.
func NewServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// --- Handlers ---

type previewReq struct {
	ServiceID   string `json:"serviceId"`
	ServiceName string `json:"serviceName"`
	Port        *int   `json:"port"`
	Action      string `json:"action"`
}

type saveReq struct {
	FileID  string  `json:"fileId"`
	Content *string `json:"content"`
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	URL     string `json:"url,omitempty"`
	Error   string `json:"error,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

type statusResp struct {
	Success  bool           `json:"success"`
	Running  bool           `json:"running"`
	URL      string         `json:"url,omitempty"`
	PID      int            `json:"pid,omitempty"`
	Previews []preview.Info `json:"previews,omitempty"`
}

type okResp struct {
	OK bool `json:"ok"`
}

func (r *Router) handlePreview(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		r.fail(c, "Invalid request", apperr.New(apperr.KindMissingField, "read preview request", err))
		return
	}
	// The action decides between 400 and 500, so it is read on its own
	// before mistyped fields can fail the whole body.
	var head struct {
		Action any `json:"action"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		r.fail(c, "Invalid request", apperr.New(apperr.KindMissingField, "decode preview request", err))
		return
	}
	if a, _ := head.Action.(string); a != "start" && a != "stop" {
		r.fail(c, "Invalid action", apperr.New(apperr.KindInvalidAction, "validate preview action", errors.New("action must be start or stop")))
		return
	}
	var req previewReq
	if err := json.Unmarshal(raw, &req); err != nil {
		r.fail(c, "Invalid request", apperr.New(apperr.KindMissingField, "decode preview request", err))
		return
	}
	switch req.Action {
	case "start":
		if req.ServiceID == "" || req.ServiceName == "" || req.Port == nil || *req.Port <= 0 {
			r.fail(c, "serviceId, serviceName and port are required", apperr.New(apperr.KindMissingField, "validate preview start", nil))
			return
		}
		res, err := r.previews.Start(detached(c), preview.Request{
			ServiceID:   req.ServiceID,
			ServiceName: req.ServiceName,
			Port:        *req.Port,
		})
		if err != nil {
			r.fail(c, "Failed to manage preview server", err)
			return
		}
		writeJSON(c, http.StatusOK, envelope{Success: true, Message: res.Message, URL: res.URL})
	case "stop":
		if req.ServiceID == "" {
			r.fail(c, "serviceId is required", apperr.New(apperr.KindMissingField, "validate preview stop", nil))
			return
		}
		res, err := r.previews.Stop(detached(c), req.ServiceID)
		if err != nil {
			r.fail(c, "Failed to manage preview server", err)
			return
		}
		writeJSON(c, http.StatusOK, envelope{Success: true, Message: res.Message})
	default:
		r.fail(c, "Invalid action", apperr.New(apperr.KindInvalidAction, "validate preview action", errors.New("action must be start or stop")))
	}
}

func (r *Router) handlePreviewStatus(c *gin.Context) {
	id := c.Query("serviceId")
	if id == "" {
		list := r.previews.List()
		writeJSON(c, http.StatusOK, statusResp{Success: true, Running: len(list) > 0, Previews: list})
		return
	}
	info, ok := r.previews.Status(id)
	if !ok {
		writeJSON(c, http.StatusOK, statusResp{Success: true})
		return
	}
	writeJSON(c, http.StatusOK, statusResp{Success: true, Running: info.Alive, URL: info.URL, PID: info.PID})
}

func (r *Router) handleSave(c *gin.Context) {
	var req saveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		r.fail(c, "Invalid request", apperr.New(apperr.KindMissingField, "decode save request", err))
		return
	}
	if req.FileID == "" || req.Content == nil {
		r.fail(c, "fileId and content are required", apperr.New(apperr.KindMissingField, "validate save request", nil))
		return
	}
	if err := r.files.Save(detached(c), req.FileID, *req.Content); err != nil {
		r.fail(c, "Failed to save file", err)
		return
	}
	writeJSON(c, http.StatusOK, envelope{Success: true, Message: "File saved successfully"})
}

func (r *Router) handleHealth(c *gin.Context) {
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

// detached keeps request values but not cancellation: a client that hangs
// up does not abort a spawn, a grace wait or a half-finished save.
func detached(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

// fail writes the error envelope. msg is the caller-facing summary; the
// kind tells callers which step failed.
func (r *Router) fail(c *gin.Context, msg string, err error) {
	kind := apperr.KindOf(err)
	code := apperr.HTTPStatus(kind)
	text := msg
	if code >= http.StatusInternalServerError {
		r.logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "kind", kind, "error", err)
		text = msg + ": " + err.Error()
	}
	writeJSON(c, code, envelope{Success: false, Error: text, Kind: string(kind)})
}
