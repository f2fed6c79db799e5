package integration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mbatori/treeforge/internal/fsops"
)

// recordingOps implements metadata.Ops by recording every call instead
// of touching the filesystem, so the suite runs without root.
type recordingOps struct {
	mu       sync.Mutex
	owners   map[string]string // path -> "uid:gid"
	modes    map[string]os.FileMode
	restores map[string]string // dir -> description
}

func newRecordingOps() *recordingOps {
	return &recordingOps{
		owners:   make(map[string]string),
		modes:    make(map[string]os.FileMode),
		restores: make(map[string]string),
	}
}

func (o *recordingOps) SetOwner(path string, uid, gid int, followLinks bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.owners[path] = fmt.Sprintf("%d:%d", uid, gid)
	return nil
}

func (o *recordingOps) SetMode(path string, mode os.FileMode) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.modes[path] = mode
	return nil
}

func (o *recordingOps) RestoreACL(dir string, description []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.restores[dir] = string(description)
	return nil
}

func (o *recordingOps) GetACL(path string) (string, error) {
	return "", nil
}

// mergingStore implements ostree.Store by materializing the union into
// a target directory, later trees overriding earlier ones, which lets
// the suite assert the merged-tree precedence invariant on real files.
type mergingStore struct {
	target  string
	fs      *fsops.RealFS
	subject string
	body    string
}

func newMergingStore(target string) *mergingStore {
	return &mergingStore{target: target, fs: fsops.NewRealFS()}
}

func (s *mergingStore) Merge(ctx context.Context, dirs []string, repoDir, branch, subject, body string) (string, error) {
	for _, dir := range dirs {
		if err := s.fs.CopyTree(dir, s.target); err != nil {
			return "", err
		}
	}
	s.subject = subject
	s.body = body
	return "commit-0001", nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// writeTree creates files beneath root from rel-path -> content.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("MkdirAll failed: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}
}
