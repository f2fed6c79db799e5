package reconcile

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mbatori/treeforge/internal/fsops"
)

// opCall records one metadata operation applied by the reconciler.
type opCall struct {
	kind   string // "chown", "chmod" or "restore"
	path   string // path for chown/chmod, dir for restore
	uid    int
	gid    int
	follow bool
	mode   os.FileMode
	desc   string
}

// fakeOps records metadata operations instead of applying them.
type fakeOps struct {
	calls  []opCall
	failOn string
}

func (f *fakeOps) SetOwner(path string, uid, gid int, followLinks bool) error {
	if f.failOn == path {
		return fmt.Errorf("injected chown failure on %q", path)
	}
	f.calls = append(f.calls, opCall{kind: "chown", path: path, uid: uid, gid: gid, follow: followLinks})
	return nil
}

func (f *fakeOps) SetMode(path string, mode os.FileMode) error {
	if f.failOn == path {
		return fmt.Errorf("injected chmod failure on %q", path)
	}
	f.calls = append(f.calls, opCall{kind: "chmod", path: path, mode: mode})
	return nil
}

func (f *fakeOps) RestoreACL(dir string, description []byte) error {
	if f.failOn == dir {
		return fmt.Errorf("injected restore failure in %q", dir)
	}
	f.calls = append(f.calls, opCall{kind: "restore", path: dir, desc: string(description)})
	return nil
}

func (f *fakeOps) GetACL(path string) (string, error) {
	return "", nil
}

// modeFor returns the chmod mode recorded for path, or 0 if none.
func (f *fakeOps) modeFor(path string) os.FileMode {
	for _, c := range f.calls {
		if c.kind == "chmod" && c.path == path {
			return c.mode
		}
	}
	return os.FileMode(0)
}

func (f *fakeOps) has(kind, path string) bool {
	for _, c := range f.calls {
		if c.kind == kind && c.path == path {
			return true
		}
	}
	return false
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeFile(t *testing.T, path, content string, mode os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := os.Chmod(path, mode); err != nil {
		t.Fatalf("Chmod failed: %v", err)
	}
}

func TestReconcile_DefaultPolicy(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "etc", "passwd"), "root:x:0:0\n", 0644)
	writeFile(t, filepath.Join(dir, "etc", "cron.d", "job"), "#!/bin/sh\n", 0750)

	ops := &fakeOps{}
	rec := New(fsops.NewRealFS(), ops, testLogger())
	if err := rec.Reconcile(dir); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	// Every path chowned root:root without following links
	for _, rel := range []string{"etc", "etc/passwd", "etc/cron.d", "etc/cron.d/job"} {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		found := false
		for _, c := range ops.calls {
			if c.kind == "chown" && c.path == path {
				found = true
				if c.uid != 0 || c.gid != 0 {
					t.Errorf("chown %s = %d:%d, want 0:0", rel, c.uid, c.gid)
				}
				if c.follow {
					t.Errorf("chown %s followed links", rel)
				}
			}
		}
		if !found {
			t.Errorf("no chown recorded for %s", rel)
		}
	}

	if mode := ops.modeFor(filepath.Join(dir, "etc", "passwd")); mode != 0o660 {
		t.Errorf("etc/passwd mode = %o, want 0660", mode)
	}
	if mode := ops.modeFor(filepath.Join(dir, "etc", "cron.d", "job")); mode != 0o770 {
		t.Errorf("etc/cron.d/job mode = %o, want 0770", mode)
	}
	if mode := ops.modeFor(filepath.Join(dir, "etc")); mode != 0o755 {
		t.Errorf("etc mode = %o, want 0755", mode)
	}
}

func TestReconcile_SidecarSupersedesDefaults(t *testing.T) {
	dir := t.TempDir()
	etc := filepath.Join(dir, "etc")
	writeFile(t, filepath.Join(etc, "shadow"), "root:!::\n", 0644)
	writeFile(t, filepath.Join(etc, "hosts"), "127.0.0.1\n", 0644)
	writeFile(t, filepath.Join(etc, ".tcattr"),
		"# file: shadow\nuser::rw-\ngroup::---\nother::---\n", 0644)

	ops := &fakeOps{}
	rec := New(fsops.NewRealFS(), ops, testLogger())
	if err := rec.Reconcile(dir); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	// The recorded description is restored verbatim in the sidecar's dir
	restored := false
	for _, c := range ops.calls {
		if c.kind == "restore" && c.path == etc {
			restored = true
			want := "# file: shadow\nuser::rw-\ngroup::---\nother::---\n"
			if c.desc != want {
				t.Errorf("restored description = %q, want %q", c.desc, want)
			}
		}
	}
	if !restored {
		t.Error("no ACL restore recorded for etc")
	}

	// Recorded path gets no default chmod; uncovered sibling does
	if ops.has("chmod", filepath.Join(etc, "shadow")) {
		t.Error("sidecar-covered path received a default chmod")
	}
	if mode := ops.modeFor(filepath.Join(etc, "hosts")); mode != 0o660 {
		t.Errorf("etc/hosts mode = %o, want 0660", mode)
	}

	// The sidecar itself is chowned but keeps its mode
	if !ops.has("chown", filepath.Join(etc, ".tcattr")) {
		t.Error("sidecar file was not chowned")
	}
	if ops.has("chmod", filepath.Join(etc, ".tcattr")) {
		t.Error("sidecar file received a default chmod")
	}
}

func TestReconcile_SymlinksOwnershipOnly(t *testing.T) {
	dir := t.TempDir()
	etc := filepath.Join(dir, "etc")
	writeFile(t, filepath.Join(etc, "localtime.real"), "TZif\n", 0644)
	link := filepath.Join(etc, "localtime")
	if err := os.Symlink("localtime.real", link); err != nil {
		t.Fatalf("Symlink failed: %v", err)
	}
	// Raw sidecar listing the symlink; normalization must drop it
	writeFile(t, filepath.Join(etc, ".tcattr"),
		"# file: localtime.real\nuser::rw-\n\n# file: localtime\nuser::rwx\n", 0644)

	ops := &fakeOps{}
	rec := New(fsops.NewRealFS(), ops, testLogger())
	if err := rec.Reconcile(dir); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if !ops.has("chown", link) {
		t.Error("symlink was not chowned")
	}
	if ops.has("chmod", link) {
		t.Error("symlink received a chmod")
	}
	for _, c := range ops.calls {
		if c.kind == "restore" && strings.Contains(c.desc, "# file: localtime\n") {
			t.Errorf("symlink stanza survived normalization: %q", c.desc)
		}
	}
}

func TestReconcile_OwnershipBeforeModes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "etc", "passwd"), "root:x:0:0\n", 0644)
	writeFile(t, filepath.Join(dir, "etc", ".tcattr"), "# file: passwd\nuser::rw-\n", 0644)

	ops := &fakeOps{}
	rec := New(fsops.NewRealFS(), ops, testLogger())
	if err := rec.Reconcile(dir); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	lastChown := -1
	firstOther := len(ops.calls)
	for i, c := range ops.calls {
		if c.kind == "chown" {
			lastChown = i
		} else if i < firstOther {
			firstOther = i
		}
	}
	if lastChown > firstOther {
		t.Errorf("ownership call at %d after ACL/mode call at %d", lastChown, firstOther)
	}
}

func TestReconcile_FailFast(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "etc", "a"), "a\n", 0644)
	writeFile(t, filepath.Join(dir, "etc", "b"), "b\n", 0644)

	ops := &fakeOps{failOn: filepath.Join(dir, "etc", "a")}
	rec := New(fsops.NewRealFS(), ops, testLogger())

	err := rec.Reconcile(dir)
	if !errors.Is(err, ErrMetadataApply) {
		t.Fatalf("Reconcile error = %v, want ErrMetadataApply", err)
	}
	if !strings.Contains(err.Error(), filepath.Join(dir, "etc", "a")) {
		t.Errorf("error does not name the offending path: %v", err)
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	dir := t.TempDir()
	etc := filepath.Join(dir, "etc")
	writeFile(t, filepath.Join(etc, "shadow"), "root:!::\n", 0644)
	if err := os.Symlink("shadow", filepath.Join(etc, "link")); err != nil {
		t.Fatalf("Symlink failed: %v", err)
	}
	writeFile(t, filepath.Join(etc, ".tcattr"),
		"# file: shadow\nuser::rw-\n\n# file: link\nuser::rwx\n", 0644)

	first := &fakeOps{}
	rec := New(fsops.NewRealFS(), first, testLogger())
	if err := rec.Reconcile(dir); err != nil {
		t.Fatalf("first Reconcile failed: %v", err)
	}

	second := &fakeOps{}
	rec = New(fsops.NewRealFS(), second, testLogger())
	if err := rec.Reconcile(dir); err != nil {
		t.Fatalf("second Reconcile failed: %v", err)
	}

	if len(first.calls) != len(second.calls) {
		t.Fatalf("second run recorded %d calls, first recorded %d", len(second.calls), len(first.calls))
	}
	for i := range first.calls {
		if first.calls[i] != second.calls[i] {
			t.Errorf("call %d differs: first %+v, second %+v", i, first.calls[i], second.calls[i])
		}
	}
}
