package metastore

// Status is the lifecycle status stored on a service record.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusError    Status = "error"
)

// Service is a service record. fileTree is carried through untouched.
type Service struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	WorkspaceID string         `json:"workspaceId"`
	Port        int            `json:"port"`
	Status      Status         `json:"status"`
	FileTree    []FileTreeItem `json:"fileTree,omitempty"`
}

type FileTreeItem struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Type     string         `json:"type"` // file or folder
	Path     string         `json:"path"`
	Children []FileTreeItem `json:"children,omitempty"`
}

// File is a file record; Content is the authoritative text.
type File struct {
	ID        string `json:"id"`
	ServiceID string `json:"serviceId"`
	Path      string `json:"path"`
	Name      string `json:"name"`
	Content   string `json:"content"`
}
