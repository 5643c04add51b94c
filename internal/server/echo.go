package server

import (
	"github.com/labstack/echo/v4"
)

// MountEcho serves the router's endpoints from an existing echo instance.
// The metrics path, when configured, is mounted too.
func MountEcho(e *echo.Echo, r *Router) {
	h := echo.WrapHandler(r.Handler())
	base := r.BasePath()
	e.Any(base, h)
	e.Any(base+"/*", h)
	if r.metrics != nil && r.metricsPath != "" {
		e.GET(r.metricsPath, h)
	}
}
