package client

import "time"

// PreviewRequest is the body of POST /preview.
type PreviewRequest struct {
	ServiceID   string `json:"serviceId"`
	ServiceName string `json:"serviceName,omitempty"`
	Port        int    `json:"port,omitempty"`
	Action      string `json:"action"`
}

// SaveRequest is the body of POST /files/save.
type SaveRequest struct {
	FileID  string `json:"fileId"`
	Content string `json:"content"`
}

// Response is the envelope every mutating endpoint answers with.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	URL     string `json:"url,omitempty"`
	Error   string `json:"error,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

// PreviewInfo describes one running preview.
type PreviewInfo struct {
	ServiceID   string    `json:"serviceId"`
	ServiceName string    `json:"serviceName"`
	Port        int       `json:"port"`
	PID         int       `json:"pid"`
	URL         string    `json:"url"`
	StartedAt   time.Time `json:"startedAt"`
	Alive       bool      `json:"alive"`
}

// PreviewStatus is the answer of GET /preview/status.
type PreviewStatus struct {
	Success  bool          `json:"success"`
	Running  bool          `json:"running"`
	URL      string        `json:"url,omitempty"`
	PID      int           `json:"pid,omitempty"`
	Previews []PreviewInfo `json:"previews,omitempty"`
}
