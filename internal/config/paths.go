// Package config manages treeforge configuration and storage-root paths.
//
// The storage root is the working volume an unpacked image lives in. It
// holds the base ostree repository plus the conventional change-set
// subdirectories produced by the capture tooling.
package config

import (
	"os"
	"path/filepath"

	"github.com/mbatori/treeforge/internal/ostree"
)

// Conventional change-set subdirectory names beneath the storage root,
// listed lowest to highest precedence. Only Changes carries ACL sidecars;
// the others are produced by tooling and carry no permission intent.
const (
	ChangesDirName    = "changes"
	SplashDirName     = "splash"
	DeviceTreeDirName = "dt"
	KernelDirName     = "kernel"
)

// Paths contains the filesystem paths used by treeforge, all rooted at
// the storage directory.
type Paths struct {
	// Storage is the storage root.
	Storage string

	// Repo is the base versioned-store repository.
	Repo string

	// Config is the optional YAML config file.
	Config string
}

// NewPaths builds the path layout for a storage root.
func NewPaths(storageDir string) *Paths {
	return &Paths{
		Storage: storageDir,
		Repo:    filepath.Join(storageDir, ostree.RepoDirName),
		Config:  filepath.Join(storageDir, "treeforge.yaml"),
	}
}

// DefaultStorageDir returns the storage root, which can be overridden
// with the TREEFORGE_STORAGE environment variable.
func DefaultStorageDir() string {
	if dir := os.Getenv("TREEFORGE_STORAGE"); dir != "" {
		return dir
	}
	return "/storage"
}

// ConventionalChangeDirs returns the conventional change-set directories
// beneath the storage root in precedence order, lowest first.
func (p *Paths) ConventionalChangeDirs() []string {
	return []string{
		filepath.Join(p.Storage, ChangesDirName),
		filepath.Join(p.Storage, SplashDirName),
		filepath.Join(p.Storage, DeviceTreeDirName),
		filepath.Join(p.Storage, KernelDirName),
	}
}

// ChangesDir returns the conventional generic-changes directory, the
// only conventional directory subject to ACL reconciliation.
func (p *Paths) ChangesDir() string {
	return filepath.Join(p.Storage, ChangesDirName)
}
