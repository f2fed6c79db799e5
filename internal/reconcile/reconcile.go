// Package reconcile restores permission metadata across a change-set tree.
//
// Change-sets arrive through metadata-lossy transports, so on-disk
// ownership and mode bits are untrustworthy. Reconciliation rebuilds them
// deterministically: every path is chowned root:root first, then paths
// with a sidecar record get their recorded ACL restored verbatim while
// everything else falls back to the fixed default policy.
package reconcile

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/mbatori/treeforge/internal/fsops"
	"github.com/mbatori/treeforge/internal/metadata"
	"github.com/mbatori/treeforge/internal/policy"
	"github.com/mbatori/treeforge/internal/tcattr"
)

// ErrMetadataApply indicates an ownership, mode or ACL-restore operation
// failed. Reconciliation is fail-fast and non-partial: the first failure
// aborts the whole change-set.
var ErrMetadataApply = errors.New("metadata apply failed")

// Reconciler applies ACL records and default permissions to change-sets.
type Reconciler struct {
	fs     fsops.FS
	meta   metadata.Ops
	acls   *tcattr.Store
	logger *slog.Logger
}

// New creates a Reconciler with the given dependencies.
func New(fs fsops.FS, meta metadata.Ops, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		fs:     fs,
		meta:   meta,
		acls:   tcattr.NewStore(fs),
		logger: logger,
	}
}

// Reconcile restores ownership, modes and ACLs across the change-set at
// dir, mutating it in place.
//
// Ownership is applied to every path before any ACL or mode work so a
// failure partway through a large tree never leaves mixed ownership
// behind. Sidecar files themselves are chowned but keep their mode; they
// are carriers of metadata, not subjects of it.
func (r *Reconciler) Reconcile(dir string) error {
	sidecars, err := r.acls.LoadTree(dir)
	if err != nil {
		return err
	}

	entries, err := r.fs.ListTree(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if err := r.meta.SetOwner(entry.Path, policy.RootUID, policy.RootGID, false); err != nil {
			return fmt.Errorf("%w: %v", ErrMetadataApply, err)
		}
	}

	covered := make(map[string]bool)
	for _, sc := range sidecars {
		for path := range sc.Covers() {
			covered[path] = true
		}
	}

	for _, sc := range sidecars {
		if len(sc.Records) == 0 {
			continue
		}
		if err := r.meta.RestoreACL(sc.Dir, tcattr.Format(sc.Records)); err != nil {
			return fmt.Errorf("%w: %v", ErrMetadataApply, err)
		}
	}

	defaulted := 0
	for _, entry := range entries {
		if filepath.Base(entry.Path) == tcattr.SidecarName {
			continue
		}
		if covered[entry.Path] {
			continue
		}

		out := policy.Resolve(policy.Classify(entry.Info))
		if !out.HasMode {
			continue
		}
		if err := r.meta.SetMode(entry.Path, out.Mode); err != nil {
			return fmt.Errorf("%w: %v", ErrMetadataApply, err)
		}
		defaulted++
	}

	r.logger.Debug("reconciled change-set",
		"dir", dir,
		"paths", len(entries),
		"sidecars", len(sidecars),
		"recorded", len(covered),
		"defaulted", defaulted)

	return nil
}
