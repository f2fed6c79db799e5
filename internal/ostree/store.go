// Package ostree talks to the content-addressed versioned store that
// merged change-set trees are committed into.
//
// The store is an external collaborator reached through the Store
// interface; the production implementation shells out to the ostree
// binary the same way image tooling does.
package ostree

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// RepoDirName is the conventional subdirectory of the storage root that
// holds the base repository.
const RepoDirName = "ostree-archive"

// ErrStoreMerge indicates the versioned store rejected or failed the
// final merge. The merge is not retried: partial application is not
// idempotent, so failures need human correction.
var ErrStoreMerge = errors.New("store merge failed")

// Store merges ordered directory trees onto a branch of a base
// repository and returns the resulting commit identifier. Later
// directories override earlier ones path-for-path.
type Store interface {
	Merge(ctx context.Context, dirs []string, repoDir, branch, subject, body string) (string, error)
}

// ExecStore implements Store using the ostree command-line tool.
type ExecStore struct {
	binary string
}

// NewExecStore creates an ExecStore using the default ostree binary.
func NewExecStore() *ExecStore {
	return &ExecStore{binary: "ostree"}
}

// NewExecStoreWithBinary creates an ExecStore using a specific binary,
// e.g. from a config override.
func NewExecStoreWithBinary(binary string) *ExecStore {
	if binary == "" {
		binary = "ostree"
	}
	return &ExecStore{binary: binary}
}

// Merge commits the ordered trees onto branch. When the branch already
// exists its current tip is layered first, so paths untouched by any
// change-set carry over unchanged.
func (s *ExecStore) Merge(ctx context.Context, dirs []string, repoDir, branch, subject, body string) (string, error) {
	args := commitArgs(dirs, repoDir, branch, subject, body, s.branchExists(ctx, repoDir, branch))

	cmd := exec.CommandContext(ctx, s.binary, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%w: ostree commit on branch %q in %q: %v: %s",
			ErrStoreMerge, branch, repoDir, err, strings.TrimSpace(stderr.String()))
	}

	commit := strings.TrimSpace(string(output))
	if commit == "" {
		return "", fmt.Errorf("%w: ostree commit returned no commit identifier", ErrStoreMerge)
	}
	return commit, nil
}

// branchExists reports whether branch resolves to a commit in repoDir.
func (s *ExecStore) branchExists(ctx context.Context, repoDir, branch string) bool {
	cmd := exec.CommandContext(ctx, s.binary, "--repo="+repoDir, "rev-parse", branch)
	return cmd.Run() == nil
}

// commitArgs builds the argument list for an ostree commit that layers
// the branch tip (when present) followed by the ordered change-set
// trees, later trees overriding earlier ones.
func commitArgs(dirs []string, repoDir, branch, subject, body string, baseExists bool) []string {
	args := []string{"--repo=" + repoDir, "commit", "--branch=" + branch}
	if subject != "" {
		args = append(args, "--subject="+subject)
	}
	if body != "" {
		args = append(args, "--body="+body)
	}
	if baseExists {
		args = append(args, "--tree=ref="+branch)
	}
	for _, dir := range dirs {
		args = append(args, "--tree=dir="+dir)
	}
	return args
}
