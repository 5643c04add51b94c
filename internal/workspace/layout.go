package workspace

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	ErrUnknownService = errors.New("no directory mapped for service")
	ErrUnsafePath     = errors.New("path escapes service directory")
)

// Layout resolves service and file locations on disk:
//
//	<Root>/<WorkspaceID>/<AppsDir>/<service-dir>/<file path>
//
// Services maps service ids to directory names for the file path; the
// preview path takes the service name directly.
type Layout struct {
	Root        string
	WorkspaceID string
	AppsDir     string
	Services    map[string]string
}

// AppsRoot returns <Root>/<WorkspaceID>/<AppsDir>.
func (l Layout) AppsRoot() string {
	apps := l.AppsDir
	if apps == "" {
		apps = "apps"
	}
	return filepath.Join(l.Root, l.WorkspaceID, apps)
}

// ServiceDir returns the working directory of the service named name.
func (l Layout) ServiceDir(name string) (string, error) {
	if !isSafeName(name) {
		return "", fmt.Errorf("service name %q: %w", name, ErrUnsafePath)
	}
	return filepath.Join(l.AppsRoot(), name), nil
}

// DirFor returns the directory name mapped to serviceID. Keys loaded from a
// config file arrive lower-cased, so a miss is retried with the lower-cased id.
func (l Layout) DirFor(serviceID string) (string, error) {
	dir, ok := l.Services[serviceID]
	if !ok {
		dir, ok = l.Services[strings.ToLower(serviceID)]
	}
	if !ok || dir == "" {
		return "", fmt.Errorf("service %q: %w", serviceID, ErrUnknownService)
	}
	return dir, nil
}

// FilePath resolves a file record's relative path to an absolute location
// inside its service directory.
func (l Layout) FilePath(serviceID, rel string) (string, error) {
	dir, err := l.DirFor(serviceID)
	if err != nil {
		return "", err
	}
	base, err := l.ServiceDir(dir)
	if err != nil {
		return "", err
	}
	rel = filepath.FromSlash(strings.TrimSpace(rel))
	if rel == "" || filepath.IsAbs(rel) {
		return "", fmt.Errorf("file path %q: %w", rel, ErrUnsafePath)
	}
	full := filepath.Join(base, rel)
	within, err := filepath.Rel(base, full)
	if err != nil || within == "." || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("file path %q: %w", rel, ErrUnsafePath)
	}
	return full, nil
}

// isSafeName allows [A-Za-z0-9._-] with no "..".
func isSafeName(s string) bool {
	if s == "" || strings.Contains(s, "..") {
		return false
	}
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '_' || r == '-' {
			continue
		}
		return false
	}
	return true
}
