package filetree

import "context"

// Source returns a JSON-serializable snapshot of a container's project files.
type Source interface {
	FileContentTree(ctx context.Context, containerID string) (any, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, containerID string) (any, error)

// FileContentTree calls f.
func (f SourceFunc) FileContentTree(ctx context.Context, containerID string) (any, error) {
	return f(ctx, containerID)
}

// NodeType distinguishes files from directories.
type NodeType string

const (
	NodeFile      NodeType = "file"
	NodeDirectory NodeType = "directory"
)

// Node is one entry of a file tree. Content is set for files only; it is
// left empty and Truncated is set when the file is too large or not text.
type Node struct {
	Name      string   `json:"name"`
	Path      string   `json:"path"`
	Type      NodeType `json:"type"`
	Content   string   `json:"content,omitempty"`
	Truncated bool     `json:"truncated,omitempty"`
	Children  []*Node  `json:"children,omitempty"`
}
