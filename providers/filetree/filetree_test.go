package filetree

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leofalp/devchat/internal/utils"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDirSource_Tree(t *testing.T) {
	base := t.TempDir()
	project := filepath.Join(base, "c1")
	writeFile(t, filepath.Join(project, "package.json"), `{"name":"app"}`)
	writeFile(t, filepath.Join(project, "app", "page.tsx"), "export default function Page() {}")
	writeFile(t, filepath.Join(project, "node_modules", "react", "index.js"), "ignored")
	writeFile(t, filepath.Join(project, ".git", "HEAD"), "ref: refs/heads/main")
	writeFile(t, filepath.Join(project, "big.txt"), strings.Repeat("x", 64))
	writeFile(t, filepath.Join(project, "logo.bin"), string([]byte{0xff, 0xfe, 0x00}))

	source := NewDirSource(filepath.Join(base, ContainerPlaceholder), WithMaxFileSize(32))
	tree, err := source.FileContentTree(context.Background(), "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	root := tree.(*Node)
	if root.Type != NodeDirectory || root.Path != "." || root.Name != "c1" {
		t.Fatalf("unexpected root %+v", root)
	}

	var names []string
	for _, child := range root.Children {
		names = append(names, child.Name)
	}
	if strings.Join(names, ",") != "app,big.txt,logo.bin,package.json" {
		t.Errorf("unexpected children %v", names)
	}

	app := root.Children[0]
	if len(app.Children) != 1 || app.Children[0].Path != "app/page.tsx" || app.Children[0].Content == "" {
		t.Errorf("unexpected app dir %+v", app.Children)
	}

	big := root.Children[1]
	if !big.Truncated || big.Content != "" {
		t.Errorf("expected large file to be truncated, got %+v", big)
	}
	if bin := root.Children[2]; !bin.Truncated {
		t.Errorf("expected non UTF-8 file to be truncated, got %+v", bin)
	}

	body, err := json.Marshal(tree)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(body), `"content":"{\"name\":\"app\"}"`) {
		t.Errorf("expected file content in JSON, got %s", body)
	}
}

func TestDirSource_Errors(t *testing.T) {
	source := NewDirSource(filepath.Join(t.TempDir(), ContainerPlaceholder))

	if _, err := source.FileContentTree(context.Background(), "missing"); err == nil {
		t.Error("expected error for missing project root")
	}
	if _, err := source.FileContentTree(context.Background(), "../etc"); err == nil {
		t.Error("expected path traversal to be rejected")
	}
}

func TestDirSource_CancelledContext(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "c1", "a.txt"), "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDirSource(filepath.Join(base, ContainerPlaceholder)).FileContentTree(ctx, "c1")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestHTTPSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/containers/c1/files/tree" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		// trailing comma on purpose
		fmt.Fprint(w, `{"name": "app", "children": [{"name": "page.tsx", "content": "x"},]}`)
	}))
	defer server.Close()

	tree, err := NewHTTPSource(server.URL+"/").WithHttpClient(server.Client()).FileContentTree(context.Background(), "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	root, ok := tree.(map[string]any)
	if !ok || root["name"] != "app" {
		t.Fatalf("unexpected tree %v", tree)
	}
	if children := root["children"].([]any); len(children) != 1 {
		t.Errorf("expected one child, got %v", children)
	}
}

func TestHTTPSource_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such container", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewHTTPSource(server.URL).FileContentTree(context.Background(), "c9")
	var statusErr *utils.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 StatusError, got %v", err)
	}
}

func TestHTTPSource_OversizedTreeIsNotRepaired(t *testing.T) {
	chunk := strings.Repeat("x", 1<<20)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name": "app", "children": [`)
		for i := 0; i < 11; i++ {
			fmt.Fprintf(w, `{"name": "f%d", "content": "%s"},`, i, chunk)
		}
		fmt.Fprint(w, `]}`)
	}))
	defer server.Close()

	tree, err := NewHTTPSource(server.URL).WithHttpClient(server.Client()).FileContentTree(context.Background(), "c1")
	if !errors.Is(err, utils.ErrResponseTooLarge) {
		t.Fatalf("expected ErrResponseTooLarge, got tree=%T err=%v", tree, err)
	}
}

func TestSourceFunc(t *testing.T) {
	source := SourceFunc(func(_ context.Context, containerID string) (any, error) {
		return map[string]string{"container": containerID}, nil
	})

	tree, err := source.FileContentTree(context.Background(), "c1")
	if err != nil || tree.(map[string]string)["container"] != "c1" {
		t.Errorf("unexpected result %v, %v", tree, err)
	}
}
