package tcattr

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mbatori/treeforge/internal/fsops"
)

// Sidecar is one discovered .tcattr file: the directory that contains it
// and its parsed records.
type Sidecar struct {
	// Dir is the directory containing the sidecar. Record paths are
	// relative to it.
	Dir string

	// Records are the parsed stanzas, in file order.
	Records []Record
}

// Path returns the sidecar's own file path.
func (s Sidecar) Path() string {
	return filepath.Join(s.Dir, SidecarName)
}

// Covers returns the set of absolute paths the sidecar carries records
// for, keyed for membership tests during reconciliation.
func (s Sidecar) Covers() map[string]bool {
	covered := make(map[string]bool, len(s.Records))
	for _, rec := range s.Records {
		covered[filepath.Join(s.Dir, rec.Path)] = true
	}
	return covered
}

// Store discovers, normalizes and rewrites ACL sidecars beneath a
// change-set root.
type Store struct {
	fs fsops.FS
}

// NewStore creates a Store backed by the given filesystem.
func NewStore(fs fsops.FS) *Store {
	return &Store{fs: fs}
}

// LoadTree finds every sidecar beneath root and returns it normalized:
// stanzas naming symlinks are dropped (symlinks cannot carry POSIX ACLs)
// and the on-disk sidecar is rewritten without them, so a repeated load
// returns the same result with no further writes.
func (s *Store) LoadTree(root string) ([]Sidecar, error) {
	entries, err := s.fs.ListTree(root)
	if err != nil {
		return nil, err
	}

	var sidecars []Sidecar
	for _, entry := range entries {
		if entry.Info.IsDir() || filepath.Base(entry.Path) != SidecarName {
			continue
		}

		sc, err := s.load(filepath.Dir(entry.Path))
		if err != nil {
			return nil, err
		}
		sidecars = append(sidecars, sc)
	}

	return sidecars, nil
}

// load reads, parses and normalizes the sidecar in dir.
func (s *Store) load(dir string) (Sidecar, error) {
	path := filepath.Join(dir, SidecarName)

	data, err := s.fs.ReadFile(path)
	if err != nil {
		return Sidecar{}, fmt.Errorf("failed to read sidecar %q: %w", path, err)
	}

	records, err := Parse(data)
	if err != nil {
		return Sidecar{}, fmt.Errorf("sidecar %q: %w", path, err)
	}

	kept, dropped, err := s.normalize(dir, records)
	if err != nil {
		return Sidecar{}, err
	}

	if dropped {
		if err := s.fs.AtomicWrite(path, Format(kept), 0644); err != nil {
			return Sidecar{}, fmt.Errorf("failed to rewrite sidecar %q: %w", path, err)
		}
	}

	return Sidecar{Dir: dir, Records: kept}, nil
}

// normalize validates record paths and drops records whose target is a
// symbolic link. Missing targets are kept: the restore step reports them
// with the offending path, which beats silently forgetting intent here.
func (s *Store) normalize(dir string, records []Record) ([]Record, bool, error) {
	kept := make([]Record, 0, len(records))
	dropped := false

	for _, rec := range records {
		if err := s.fs.ValidateRelPath(rec.Path); err != nil {
			return nil, false, fmt.Errorf("sidecar %q: %w: %v",
				filepath.Join(dir, SidecarName), ErrMalformedSidecar, err)
		}

		info, err := s.fs.Lstat(filepath.Join(dir, rec.Path))
		if err != nil {
			if os.IsNotExist(err) {
				kept = append(kept, rec)
				continue
			}
			return nil, false, fmt.Errorf("failed to stat sidecar target %q: %w",
				filepath.Join(dir, rec.Path), err)
		}

		if info.Mode()&os.ModeSymlink != 0 {
			dropped = true
			continue
		}

		kept = append(kept, rec)
	}

	return kept, dropped, nil
}
