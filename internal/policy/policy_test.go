package policy

import (
	"os"
	"path/filepath"
	"testing"
)

func TestClassify(t *testing.T) {
	dir := t.TempDir()

	mustWrite := func(name string, mode os.FileMode) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("x"), mode); err != nil {
			t.Fatalf("WriteFile(%q) failed: %v", name, err)
		}
		// WriteFile is subject to umask, force the mode
		if err := os.Chmod(path, mode); err != nil {
			t.Fatalf("Chmod(%q) failed: %v", name, err)
		}
		return path
	}

	subdir := filepath.Join(dir, "sub")
	if err := os.Mkdir(subdir, 0755); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}
	plain := mustWrite("plain.conf", 0644)
	script := mustWrite("run.sh", 0750)
	groupExec := mustWrite("hook", 0610)
	link := filepath.Join(dir, "link")
	if err := os.Symlink(script, link); err != nil {
		t.Fatalf("Symlink failed: %v", err)
	}

	tests := []struct {
		name string
		path string
		want Classification
	}{
		{
			name: "directory",
			path: subdir,
			want: ClassDirectory,
		},
		{
			name: "regular file",
			path: plain,
			want: ClassRegular,
		},
		{
			name: "owner-executable file",
			path: script,
			want: ClassExecutable,
		},
		{
			name: "group-executable file",
			path: groupExec,
			want: ClassExecutable,
		},
		{
			name: "symlink to executable",
			path: link,
			want: ClassSymlink,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := os.Lstat(tt.path)
			if err != nil {
				t.Fatalf("Lstat(%q) failed: %v", tt.path, err)
			}
			if got := Classify(info); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		class    Classification
		wantMode os.FileMode
		hasMode  bool
	}{
		{
			name:     "directory gets 0755",
			class:    ClassDirectory,
			wantMode: 0o755,
			hasMode:  true,
		},
		{
			name:     "executable gets 0770",
			class:    ClassExecutable,
			wantMode: 0o770,
			hasMode:  true,
		},
		{
			name:     "regular file gets 0660",
			class:    ClassRegular,
			wantMode: 0o660,
			hasMode:  true,
		},
		{
			name:    "symlink gets ownership only",
			class:   ClassSymlink,
			hasMode: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Resolve(tt.class)
			if out.UID != 0 || out.GID != 0 {
				t.Errorf("Resolve(%v) owner = %d:%d, want 0:0", tt.class, out.UID, out.GID)
			}
			if out.HasMode != tt.hasMode {
				t.Errorf("Resolve(%v) HasMode = %v, want %v", tt.class, out.HasMode, tt.hasMode)
			}
			if tt.hasMode && out.Mode != tt.wantMode {
				t.Errorf("Resolve(%v) mode = %o, want %o", tt.class, out.Mode, tt.wantMode)
			}
		})
	}
}
