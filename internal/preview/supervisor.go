// Package preview runs one dev server per service and keeps the registry and
// the stored service status in step with the processes it owns.
package preview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/loykin/ideshell/internal/apperr"
	"github.com/loykin/ideshell/internal/history"
	"github.com/loykin/ideshell/internal/metastore"
	"github.com/loykin/ideshell/internal/metrics"
	"github.com/loykin/ideshell/internal/process"
	"github.com/loykin/ideshell/internal/registry"
)

const (
	MsgAlreadyRunning = "Server already running"
	MsgStarted        = "Dev server started"
	MsgStopped        = "Dev server stopped"

	DefaultGracePeriod = 3 * time.Second
	DefaultHost        = "localhost"
)

// StatusSetter receives best-effort status transitions.
type StatusSetter interface {
	SetStatus(ctx context.Context, serviceID string, st metastore.Status) bool
}

// DirResolver maps a service name to the directory its dev server runs in.
type DirResolver interface {
	ServiceDir(name string) (string, error)
}

// ServiceLister lists the stored services of a workspace.
type ServiceLister interface {
	ListServices(ctx context.Context, workspaceID string) ([]metastore.Service, error)
}

type Config struct {
	Registry   *registry.Registry
	Dirs       DirResolver
	Terminator process.Terminator // nil selects process.NewTerminator()
	Status     StatusSetter
	Command    string        // {port} is expanded; empty selects process.DefaultCommand
	Grace      time.Duration // zero selects DefaultGracePeriod
	Host       string        // preview URL host; empty selects DefaultHost
	Env        []string      // extra dev-server environment
	Sinks      []history.Sink
	Logger     *slog.Logger
}

type Request struct {
	ServiceID   string
	ServiceName string
	Port        int
}

type Result struct {
	URL            string
	Message        string
	AlreadyRunning bool
}

// Info describes a registered preview.
type Info struct {
	ServiceID   string    `json:"serviceId"`
	ServiceName string    `json:"serviceName"`
	Port        int       `json:"port"`
	PID         int       `json:"pid"`
	URL         string    `json:"url"`
	StartedAt   time.Time `json:"startedAt"`
	Alive       bool      `json:"alive"`
}

// Supervisor owns the registry. Exits of confirmed previews are delivered to a
// single event loop, which is the only place an unexpected exit changes status.
type Supervisor struct {
	reg    *registry.Registry
	dirs   DirResolver
	term   process.Terminator
	status StatusSetter
	cmd    string
	grace  time.Duration
	host   string
	env    []string
	sinks  []history.Sink
	logger *slog.Logger

	exits chan *process.Handle
	quit  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

// New builds a supervisor and starts its exit loop. Call Close to stop it.
func New(cfg Config) *Supervisor {
	s := &Supervisor{
		reg:    cfg.Registry,
		dirs:   cfg.Dirs,
		term:   cfg.Terminator,
		status: cfg.Status,
		cmd:    cfg.Command,
		grace:  cfg.Grace,
		host:   cfg.Host,
		env:    append([]string(nil), cfg.Env...),
		sinks:  append([]history.Sink(nil), cfg.Sinks...),
		logger: cfg.Logger,
		exits:  make(chan *process.Handle),
		quit:   make(chan struct{}),
	}
	if s.reg == nil {
		s.reg = registry.New()
	}
	if s.term == nil {
		s.term = process.NewTerminator()
	}
	if s.cmd == "" {
		s.cmd = process.DefaultCommand
	}
	if s.grace <= 0 {
		s.grace = DefaultGracePeriod
	}
	if s.host == "" {
		s.host = DefaultHost
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.wg.Add(1)
	go s.loop()
	return s
}

// Registry returns the registry owned by s.
func (s *Supervisor) Registry() *registry.Registry { return s.reg }

func (s *Supervisor) url(port int) string {
	return fmt.Sprintf("http://%s:%d", s.host, port)
}

// Start launches the dev server for req unless one is already registered.
// The handle is registered before the spawn so a concurrent Start for the same
// service observes it and spawns nothing. Success is reported after the grace
// period whether or not the server accepts connections yet.
func (s *Supervisor) Start(ctx context.Context, req Request) (Result, error) {
	if h, ok := s.reg.Lookup(req.ServiceID); ok {
		return s.alreadyRunning(h), nil
	}

	dir, err := s.dirs.ServiceDir(req.ServiceName)
	if err == nil {
		err = checkDir(dir)
	}
	if err != nil {
		metrics.IncSpawnFailure(req.ServiceID)
		return Result{}, apperr.New(apperr.KindSpawnFailure, "resolve service directory", err)
	}

	h := process.NewHandle(process.Spec{
		ServiceID:   req.ServiceID,
		ServiceName: req.ServiceName,
		Port:        req.Port,
		WorkDir:     dir,
		Command:     s.cmd,
		Env:         s.env,
	})
	if err := s.reg.Insert(req.ServiceID, h); err != nil {
		var are *registry.AlreadyRunningError
		if errors.As(err, &are) {
			return s.alreadyRunning(are.Existing), nil
		}
		return Result{}, apperr.New(apperr.KindInternal, "register preview", err)
	}
	s.updateGauge()

	if err := h.Spawn(); err != nil {
		s.reg.RemoveIf(req.ServiceID, h)
		s.updateGauge()
		if errors.Is(err, process.ErrCancelled) {
			return Result{}, apperr.New(apperr.KindSpawnFailure, "spawn dev server", errors.New("stopped before start"))
		}
		metrics.IncSpawnFailure(req.ServiceID)
		s.logger.Error("dev server spawn failed", "service", req.ServiceID, "dir", dir, "error", err)
		return Result{}, apperr.New(apperr.KindSpawnFailure, "spawn dev server", err)
	}
	go s.watch(h)
	s.logger.Info("dev server spawned", "service", req.ServiceID, "pid", h.PID(), "port", req.Port, "command", h.Spec().CommandLine())

	t := time.NewTimer(s.grace)
	select {
	case <-t.C:
	case <-h.Done():
		t.Stop()
		// An exit inside the grace period is how a missing command surfaces
		// when the line runs under a shell.
		if s.reg.RemoveIf(req.ServiceID, h) {
			s.updateGauge()
			metrics.IncSpawnFailure(req.ServiceID)
			exitErr := h.ExitErr()
			if exitErr == nil {
				exitErr = errors.New("exited during startup")
			}
			s.logger.Error("dev server exited during startup", "service", req.ServiceID, "pid", h.PID(), "error", exitErr)
			return Result{}, apperr.New(apperr.KindSpawnFailure, "start dev server", exitErr)
		}
		return Result{}, apperr.New(apperr.KindSpawnFailure, "start dev server", errors.New("stopped during startup"))
	}

	if cur, ok := s.reg.Lookup(req.ServiceID); !ok || cur != h {
		return Result{}, apperr.New(apperr.KindSpawnFailure, "start dev server", errors.New("stopped during startup"))
	}
	s.status.SetStatus(ctx, req.ServiceID, metastore.StatusRunning)
	// A Stop that removed h while the running write was in flight may have
	// had its stopped write overtaken. Writing stopped again leaves the store
	// at stopped whichever request landed last.
	if cur, ok := s.reg.Lookup(req.ServiceID); !ok || cur != h {
		s.status.SetStatus(ctx, req.ServiceID, metastore.StatusStopped)
		return Result{}, apperr.New(apperr.KindSpawnFailure, "start dev server", errors.New("stopped during startup"))
	}
	h.Confirm()
	// The loop ignores exits of unconfirmed handles; pick up one that raced
	// with Confirm here. handleExit is idempotent through RemoveIf.
	if h.Exited() {
		s.handleExit(h)
	}

	metrics.IncPreviewStart(req.ServiceID)
	s.emit(ctx, history.EventPreviewStart, h, string(metastore.StatusRunning), nil)
	return Result{URL: s.url(req.Port), Message: MsgStarted}, nil
}

func (s *Supervisor) alreadyRunning(h *process.Handle) Result {
	return Result{URL: s.url(h.Port()), Message: MsgAlreadyRunning, AlreadyRunning: true}
}

// Stop terminates the service's dev server. Only the caller that wins the
// registry remove terminates; a missing handle is a successful no-op that
// leaves the stored status alone. Stop does not wait for the exit.
func (s *Supervisor) Stop(ctx context.Context, serviceID string) (Result, error) {
	h, ok := s.reg.Remove(serviceID)
	if !ok {
		return Result{Message: MsgStopped}, nil
	}
	s.updateGauge()
	if err := s.term.Terminate(h); err != nil {
		s.logger.Warn("dev server terminate failed", "service", serviceID, "pid", h.PID(), "error", err)
	}
	s.status.SetStatus(ctx, serviceID, metastore.StatusStopped)
	metrics.IncPreviewStop(serviceID)
	s.emit(ctx, history.EventPreviewStop, h, string(metastore.StatusStopped), nil)
	s.logger.Info("dev server stopped", "service", serviceID, "pid", h.PID())
	return Result{Message: MsgStopped}, nil
}

// Status reports the registered preview for serviceID.
func (s *Supervisor) Status(serviceID string) (Info, bool) {
	h, ok := s.reg.Lookup(serviceID)
	if !ok {
		return Info{}, false
	}
	return s.info(h), true
}

// List reports every registered preview ordered by service id.
func (s *Supervisor) List() []Info {
	hs := s.reg.List()
	out := make([]Info, 0, len(hs))
	for _, h := range hs {
		out = append(out, s.info(h))
	}
	return out
}

func (s *Supervisor) info(h *process.Handle) Info {
	return Info{
		ServiceID:   h.ServiceID(),
		ServiceName: h.ServiceName(),
		Port:        h.Port(),
		PID:         h.PID(),
		URL:         s.url(h.Port()),
		StartedAt:   h.StartedAt(),
		Alive:       h.Alive(),
	}
}

// Reconcile marks services of workspaceID stored as running or starting but
// without a local preview as stopped. It returns how many were corrected.
func (s *Supervisor) Reconcile(ctx context.Context, store ServiceLister, workspaceID string) (int, error) {
	svcs, err := store.ListServices(ctx, workspaceID)
	if err != nil {
		return 0, fmt.Errorf("list services: %w", err)
	}
	n := 0
	for _, svc := range svcs {
		if svc.Status != metastore.StatusRunning && svc.Status != metastore.StatusStarting {
			continue
		}
		if _, ok := s.reg.Lookup(svc.ID); ok {
			continue
		}
		if s.status.SetStatus(ctx, svc.ID, metastore.StatusStopped) {
			n++
			s.logger.Info("stale service status reset", "service", svc.ID, "was", svc.Status)
		}
	}
	return n, nil
}

// Shutdown stops every registered preview.
func (s *Supervisor) Shutdown(ctx context.Context) {
	for _, h := range s.reg.List() {
		if ctx.Err() != nil {
			return
		}
		_, _ = s.Stop(ctx, h.ServiceID())
	}
}

// Close stops the exit loop. It does not touch running previews.
func (s *Supervisor) Close() {
	s.once.Do(func() { close(s.quit) })
	s.wg.Wait()
}

func (s *Supervisor) watch(h *process.Handle) {
	<-h.Done()
	select {
	case s.exits <- h:
	case <-s.quit:
	}
}

func (s *Supervisor) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.quit:
			return
		case h := <-s.exits:
			if h.Confirmed() {
				s.handleExit(h)
			}
		}
	}
}

// handleExit treats h's exit as unexpected when h is still registered.
func (s *Supervisor) handleExit(h *process.Handle) {
	id := h.ServiceID()
	if !s.reg.RemoveIf(id, h) {
		return
	}
	s.updateGauge()
	st := metastore.StatusStopped
	exitErr := h.ExitErr()
	if exitErr != nil {
		st = metastore.StatusError
	}
	s.logger.Warn("dev server exited", "service", id, "pid", h.PID(), "status", st, "error", exitErr)
	metrics.IncUnexpectedExit(id, string(st))
	ctx := context.Background()
	s.status.SetStatus(ctx, id, st)
	s.emit(ctx, history.EventPreviewExit, h, string(st), exitErr)
}

func (s *Supervisor) updateGauge() { metrics.SetRunningPreviews(s.reg.Len()) }

func (s *Supervisor) emit(ctx context.Context, t history.EventType, h *process.Handle, st string, err error) {
	rec := history.Record{
		ServiceID:   h.ServiceID(),
		ServiceName: h.ServiceName(),
		Port:        h.Port(),
		PID:         h.PID(),
		Status:      st,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	history.Emit(ctx, s.sinks, history.Event{Type: t, Record: rec})
}

func checkDir(dir string) error {
	fi, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}
