package registry

import (
	"errors"
	"sort"
	"sync"

	"github.com/loykin/ideshell/internal/process"
)

// ErrAlreadyRunning is returned by Insert when the service already has a handle.
var ErrAlreadyRunning = errors.New("preview already running")

// AlreadyRunningError carries the handle that won the insert.
type AlreadyRunningError struct {
	ServiceID string
	Existing  *process.Handle
}

func (e *AlreadyRunningError) Error() string {
	return "service " + e.ServiceID + ": " + ErrAlreadyRunning.Error()
}

func (e *AlreadyRunningError) Unwrap() error { return ErrAlreadyRunning }

// Registry maps service id to its running preview handle.
// Every mutation is a single critical section: there is no lookup-then-insert
// window for two callers to slip through.
type Registry struct {
	mu      sync.Mutex
	handles map[string]*process.Handle
}

func New() *Registry {
	return &Registry{handles: make(map[string]*process.Handle)}
}

func (r *Registry) Lookup(serviceID string) (*process.Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[serviceID]
	return h, ok
}

// Insert stores h unless a handle already exists, in which case it returns an
// *AlreadyRunningError holding the existing one.
func (r *Registry) Insert(serviceID string, h *process.Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.handles[serviceID]; ok {
		return &AlreadyRunningError{ServiceID: serviceID, Existing: cur}
	}
	r.handles[serviceID] = h
	return nil
}

// Remove deletes and returns the handle. Only one of several concurrent
// callers observes ok == true.
func (r *Registry) Remove(serviceID string) (*process.Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[serviceID]
	if ok {
		delete(r.handles, serviceID)
	}
	return h, ok
}

// RemoveIf deletes the entry only while it still points at h, so a late exit
// event for an old process never evicts its replacement.
func (r *Registry) RemoveIf(serviceID string, h *process.Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.handles[serviceID]; ok && cur == h {
		delete(r.handles, serviceID)
		return true
	}
	return false
}

// List returns the handles sorted by service id.
func (r *Registry) List() []*process.Handle {
	r.mu.Lock()
	out := make([]*process.Handle, 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, h)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ServiceID() < out[j].ServiceID() })
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}
