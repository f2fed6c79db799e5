// Package metadata applies file ownership, mode and ACL metadata.
//
// The Ops interface is the only way the reconciler touches permission
// metadata, so the implementation can be swapped between native syscalls,
// tool subprocesses, or a recording fake in tests.
package metadata

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Ops applies permission metadata to paths.
type Ops interface {
	// SetOwner changes the owner of path. When followLinks is false the
	// link itself is changed, not its target.
	SetOwner(path string, uid, gid int, followLinks bool) error

	// SetMode changes the mode bits of path. Symlinks cannot carry a
	// mode on Linux; callers must not invoke SetMode on a symlink.
	SetMode(path string, mode os.FileMode) error

	// RestoreACL applies a recorded ACL description to files beneath
	// dir. The description names files relative to dir, in the sidecar
	// stanza format, and is consumed verbatim.
	RestoreACL(dir string, description []byte) error

	// GetACL reads the current ACL description of path.
	GetACL(path string) (string, error)
}

// ExecOps implements Ops with native chown/chmod syscalls and the acl
// tool suite (setfacl/getfacl) for ACL restoration.
type ExecOps struct{}

// NewExecOps creates a new ExecOps.
func NewExecOps() *ExecOps {
	return &ExecOps{}
}

// SetOwner changes ownership of path via chown or lchown.
func (o *ExecOps) SetOwner(path string, uid, gid int, followLinks bool) error {
	var err error
	if followLinks {
		err = os.Chown(path, uid, gid)
	} else {
		err = os.Lchown(path, uid, gid)
	}
	if err != nil {
		return fmt.Errorf("failed to set owner of %q to %d:%d: %w", path, uid, gid, err)
	}
	return nil
}

// SetMode changes the mode bits of path.
func (o *ExecOps) SetMode(path string, mode os.FileMode) error {
	if err := os.Chmod(path, mode); err != nil {
		return fmt.Errorf("failed to set mode of %q to %o: %w", path, mode, err)
	}
	return nil
}

// RestoreACL writes the description to a scratch file and runs
// setfacl --restore from dir, the inverse of the getfacl capture that
// produced the sidecar.
func (o *ExecOps) RestoreACL(dir string, description []byte) error {
	scratch, err := os.CreateTemp("", "treeforge-acl-*")
	if err != nil {
		return fmt.Errorf("failed to create ACL scratch file: %w", err)
	}
	defer func() {
		_ = os.Remove(scratch.Name())
	}()

	if _, err := scratch.Write(description); err != nil {
		_ = scratch.Close()
		return fmt.Errorf("failed to write ACL scratch file: %w", err)
	}
	if err := scratch.Close(); err != nil {
		return fmt.Errorf("failed to close ACL scratch file: %w", err)
	}

	cmd := exec.Command("setfacl", "--restore="+scratch.Name())
	cmd.Dir = dir
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("setfacl --restore failed in %q: %w: %s",
			dir, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// GetACL reads the ACL description of path via getfacl, relative to the
// file's directory so the output matches the sidecar stanza format.
func (o *ExecOps) GetACL(path string) (string, error) {
	cmd := exec.Command("getfacl", filepath.Base(path))
	cmd.Dir = filepath.Dir(path)
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("getfacl failed for %q: %w", path, err)
	}
	return string(output), nil
}
