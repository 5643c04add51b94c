// Package metastoretest provides an in-memory metadata store served over HTTP
// for tests. It speaks the same per-record GET/PATCH protocol as json-server.
package metastoretest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/loykin/ideshell/internal/metastore"
)

// Server is a fake metadata store. Fail* fields inject HTTP 500 answers.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	services map[string]metastore.Service
	files    map[string]metastore.File
	writes   []string // "PATCH /services/svc-1" in arrival order

	FailServicePatch bool
	FailFilePatch    bool
	FailFileGet      bool
	// FailFilePatchAfter makes every file PATCH after the first n fail.
	FailFilePatchAfter int
}

// New starts a fake store and registers Close with t.Cleanup.
func New(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := &Server{
		services:           make(map[string]metastore.Service),
		files:              make(map[string]metastore.File),
		FailFilePatchAfter: -1,
	}
	g := gin.New()
	g.GET("/services", s.listServices)
	g.GET("/services/:id", s.getService)
	g.PATCH("/services/:id", s.patchService)
	g.GET("/files/:id", s.getFile)
	g.PATCH("/files/:id", s.patchFile)
	s.Server = httptest.NewServer(g)
	t.Cleanup(s.Close)
	return s
}

func (s *Server) PutService(svc metastore.Service) {
	s.mu.Lock()
	s.services[svc.ID] = svc
	s.mu.Unlock()
}

func (s *Server) PutFile(f metastore.File) {
	s.mu.Lock()
	s.files[f.ID] = f
	s.mu.Unlock()
}

func (s *Server) Service(id string) metastore.Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.services[id]
}

func (s *Server) File(id string) metastore.File {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.files[id]
}

// Writes returns every PATCH received so far.
func (s *Server) Writes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.writes...)
}

func (s *Server) listServices(c *gin.Context) {
	ws := c.Query("workspaceId")
	s.mu.Lock()
	out := make([]metastore.Service, 0, len(s.services))
	for _, svc := range s.services {
		if ws == "" || svc.WorkspaceID == ws {
			out = append(out, svc)
		}
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, out)
}

func (s *Server) getService(c *gin.Context) {
	s.mu.Lock()
	svc, ok := s.services[c.Param("id")]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{})
		return
	}
	c.JSON(http.StatusOK, svc)
}

func (s *Server) patchService(c *gin.Context) {
	id := c.Param("id")
	var patch map[string]json.RawMessage
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, "PATCH /services/"+id)
	if s.FailServicePatch {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "injected"})
		return
	}
	svc, ok := s.services[id]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{})
		return
	}
	if raw, ok := patch["status"]; ok {
		_ = json.Unmarshal(raw, &svc.Status)
	}
	s.services[id] = svc
	c.JSON(http.StatusOK, svc)
}

func (s *Server) getFile(c *gin.Context) {
	s.mu.Lock()
	f, ok := s.files[c.Param("id")]
	fail := s.FailFileGet
	s.mu.Unlock()
	if fail {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "injected"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{})
		return
	}
	c.JSON(http.StatusOK, f)
}

func (s *Server) patchFile(c *gin.Context) {
	id := c.Param("id")
	var patch map[string]json.RawMessage
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, "PATCH /files/"+id)
	if s.FailFilePatch {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "injected"})
		return
	}
	if s.FailFilePatchAfter >= 0 {
		if s.FailFilePatchAfter == 0 {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "injected"})
			return
		}
		s.FailFilePatchAfter--
	}
	f, ok := s.files[id]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{})
		return
	}
	if raw, ok := patch["content"]; ok {
		_ = json.Unmarshal(raw, &f.Content)
	}
	s.files[id] = f
	c.JSON(http.StatusOK, f)
}
