// Package policy decides the target ownership and mode for files that carry
// no explicit ACL record.
//
// The policy is a fixed table keyed by file classification:
//   - directories:       0755
//   - executable files:  0770 (any executable bit set)
//   - other files:       0660
//   - symlinks:          ownership only, no mode
//
// Everything is owned by root:root. The policy is total: every path in a
// change-set resolves to exactly one outcome.
package policy

import "os"

// Default modes applied to paths without an explicit ACL record.
const (
	DirMode  os.FileMode = 0o755
	ExecMode os.FileMode = 0o770
	FileMode os.FileMode = 0o660

	// AnyExecutable is the set of mode bits that mark a file executable.
	// If any of them is set the file is classified as executable.
	AnyExecutable os.FileMode = 0o111
)

// Ownership applied to every path in a change-set.
const (
	RootUID = 0
	RootGID = 0
)

// Classification is the file-kind bucket used to look up the default policy.
type Classification int

const (
	// ClassDirectory is a directory.
	ClassDirectory Classification = iota

	// ClassSymlink is a symbolic link. Symlinks cannot carry a mode.
	ClassSymlink

	// ClassExecutable is a regular file with at least one executable bit set.
	ClassExecutable

	// ClassRegular is any other regular file.
	ClassRegular
)

// String returns a human-readable name for the classification.
func (c Classification) String() string {
	switch c {
	case ClassDirectory:
		return "directory"
	case ClassSymlink:
		return "symlink"
	case ClassExecutable:
		return "executable"
	case ClassRegular:
		return "file"
	default:
		return "unknown"
	}
}

// Outcome is the resolved default permission for a classification.
type Outcome struct {
	// UID and GID are the target owner. Always root:root.
	UID int
	GID int

	// Mode is the target mode. Only meaningful when HasMode is true.
	Mode os.FileMode

	// HasMode is false for symlinks, which cannot carry a mode.
	HasMode bool
}

// Classify buckets a path by its lstat info. The info must come from a
// link-aware stat so symlinks classify as symlinks, not as their targets.
func Classify(info os.FileInfo) Classification {
	mode := info.Mode()
	switch {
	case mode.IsDir():
		return ClassDirectory
	case mode&os.ModeSymlink != 0:
		return ClassSymlink
	case mode&AnyExecutable != 0:
		return ClassExecutable
	default:
		return ClassRegular
	}
}

// Resolve returns the default permission outcome for a classification.
func Resolve(c Classification) Outcome {
	out := Outcome{UID: RootUID, GID: RootGID, HasMode: true}
	switch c {
	case ClassDirectory:
		out.Mode = DirMode
	case ClassExecutable:
		out.Mode = ExecMode
	case ClassSymlink:
		out.HasMode = false
	default:
		out.Mode = FileMode
	}
	return out
}
