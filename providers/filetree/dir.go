package filetree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	// ContainerPlaceholder in a DirSource root is replaced by the container id.
	ContainerPlaceholder = "{container}"

	DefaultMaxFileSize int64 = 256 * 1024
)

// DefaultSkipDirs are never descended into.
var DefaultSkipDirs = []string{".git", "node_modules", ".next"}

// DirSource reads the project tree from the local filesystem, for setups
// where container workspaces are bind-mounted on the host.
type DirSource struct {
	root        string
	maxFileSize int64
	skip        map[string]bool
}

// DirOption configures a DirSource.
type DirOption func(*DirSource)

// WithMaxFileSize sets the size above which file content is omitted.
func WithMaxFileSize(n int64) DirOption {
	return func(d *DirSource) {
		if n > 0 {
			d.maxFileSize = n
		}
	}
}

// WithSkipDirs replaces the default list of skipped directory names.
func WithSkipDirs(names ...string) DirOption {
	return func(d *DirSource) {
		d.skip = make(map[string]bool, len(names))
		for _, name := range names {
			d.skip[name] = true
		}
	}
}

// NewDirSource returns a DirSource rooted at root, e.g. "/srv/workspaces/{container}".
func NewDirSource(root string, opts ...DirOption) *DirSource {
	d := &DirSource{
		root:        root,
		maxFileSize: DefaultMaxFileSize,
	}
	WithSkipDirs(DefaultSkipDirs...)(d)
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var _ Source = (*DirSource)(nil)

// FileContentTree walks the container's directory and returns its root Node.
func (d *DirSource) FileContentTree(ctx context.Context, containerID string) (any, error) {
	if strings.Contains(containerID, "..") || strings.ContainsRune(containerID, filepath.Separator) {
		return nil, fmt.Errorf("invalid container id %q", containerID)
	}

	root := strings.ReplaceAll(d.root, ContainerPlaceholder, containerID)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("project root for container %s: %w", containerID, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project root %s is not a directory", root)
	}

	return d.walk(ctx, root, "")
}

func (d *DirSource) walk(ctx context.Context, absPath, relPath string) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	node := &Node{
		Name: filepath.Base(absPath),
		Path: relPath,
		Type: NodeDirectory,
	}
	if relPath == "" {
		node.Path = "."
	}

	entries, err := os.ReadDir(absPath)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", relPath, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		name := entry.Name()
		childAbs := filepath.Join(absPath, name)
		childRel := filepath.ToSlash(filepath.Join(relPath, name))

		switch {
		case entry.IsDir():
			if d.skip[name] {
				continue
			}
			child, err := d.walk(ctx, childAbs, childRel)
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, child)

		case entry.Type().IsRegular():
			child, err := d.readFile(childAbs, childRel)
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, child)
		}
	}

	return node, nil
}

func (d *DirSource) readFile(absPath, relPath string) (*Node, error) {
	node := &Node{Name: filepath.Base(absPath), Path: relPath, Type: NodeFile}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", relPath, err)
	}
	if info.Size() > d.maxFileSize {
		node.Truncated = true
		return node, nil
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", relPath, err)
	}
	if !utf8.Valid(data) {
		node.Truncated = true
		return node, nil
	}
	node.Content = string(data)
	return node, nil
}
