// Package union merges one or more change-sets into a single commit of
// the versioned store.
//
// Change-sets are ordered by precedence: when several touch the same
// path, the last-processed change-set wins wholesale, content and
// metadata. The coordinator validates every input before mutating
// anything, stages caller-supplied directories into an isolated work
// area, reconciles permission metadata per change-set, and hands the
// ordered result to the store in one blocking merge call.
package union

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/mbatori/treeforge/internal/clock"
	"github.com/mbatori/treeforge/internal/config"
	"github.com/mbatori/treeforge/internal/fsops"
	"github.com/mbatori/treeforge/internal/ostree"
)

// Reconciler restores permission metadata across a change-set tree.
type Reconciler interface {
	Reconcile(dir string) error
}

// Request describes one union invocation.
type Request struct {
	// ChangesDirs are caller-supplied change-set directories, lowest
	// precedence first. When empty, the conventional subdirectories of
	// the storage root are used instead.
	ChangesDirs []string

	// ExtraChangesDirs are appended after ChangesDirs and therefore
	// take the highest precedence.
	ExtraChangesDirs []string

	// StorageDir is the storage root holding the base repository.
	StorageDir string

	// Branch is the store branch the merged tree is committed to.
	Branch string

	// Subject and Body are the optional human-readable commit message.
	// An empty Subject gets a generated "<prefix> <timestamp>" default.
	Subject string
	Body    string
}

// Result is the outcome of a successful union.
type Result struct {
	// Commit is the identifier returned by the versioned store.
	Commit string

	// Subject and Body are the message the commit was created with.
	Subject string
	Body    string
}

// Coordinator stages, reconciles and merges change-sets.
type Coordinator struct {
	fs            fsops.FS
	reconciler    Reconciler
	store         ostree.Store
	clock         clock.Clock
	logger        *slog.Logger
	subjectPrefix string
}

// New creates a Coordinator with the given dependencies.
func New(fs fsops.FS, rec Reconciler, store ostree.Store, clk clock.Clock, logger *slog.Logger, subjectPrefix string) *Coordinator {
	if subjectPrefix == "" {
		subjectPrefix = "treeforge"
	}
	return &Coordinator{
		fs:            fs,
		reconciler:    rec,
		store:         store,
		clock:         clk,
		logger:        logger,
		subjectPrefix: subjectPrefix,
	}
}

// Union merges the requested change-sets onto req.Branch and returns the
// new commit. Each change-set is staged and reconciled strictly before
// the next; the store merge is a single blocking call at the end.
func (c *Coordinator) Union(ctx context.Context, req *Request) (*Result, error) {
	if req.Branch == "" {
		return nil, fmt.Errorf("union branch must not be empty")
	}

	storageDir, err := filepath.Abs(req.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage directory: %w", err)
	}
	paths := config.NewPaths(storageDir)

	if err := c.validateInputs(paths, req); err != nil {
		return nil, err
	}

	// The staging root is created fresh per invocation and removed on
	// every exit path; an aborted run leaves nothing to collide with.
	stagingRoot, err := os.MkdirTemp("", "treeforge-union-*")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create staging root: %v", ErrStaging, err)
	}
	defer func() {
		_ = c.fs.RemoveAll(stagingRoot)
	}()

	var ordered []string
	if len(req.ChangesDirs) == 0 {
		ordered, err = c.collectConventional(paths)
	} else {
		ordered, err = c.stageAll(req.ChangesDirs, stagingRoot)
	}
	if err != nil {
		return nil, err
	}

	extra, err := c.stageAll(req.ExtraChangesDirs, stagingRoot)
	if err != nil {
		return nil, err
	}
	ordered = append(ordered, extra...)

	if len(ordered) == 0 {
		return nil, fmt.Errorf("%w: no change-set directories found under %q", ErrPathNotFound, storageDir)
	}

	subject := req.Subject
	if subject == "" {
		subject = fmt.Sprintf("%s %s", c.subjectPrefix, c.clock.Now().Format(time.RFC3339))
	}

	c.logger.Debug("merging change-sets", "dirs", ordered, "branch", req.Branch, "subject", subject)

	commit, err := c.store.Merge(ctx, ordered, paths.Repo, req.Branch, subject, req.Body)
	if err != nil {
		return nil, err
	}

	c.logger.Info("commit generated for changes and ready to be deployed", "commit", commit)

	return &Result{Commit: commit, Subject: subject, Body: req.Body}, nil
}

// validateInputs checks every named directory before any staging or
// reconciliation, so a missing input never leaves partial work behind.
func (c *Coordinator) validateInputs(paths *config.Paths, req *Request) error {
	required := []string{paths.Storage, paths.Repo}
	required = append(required, req.ChangesDirs...)
	required = append(required, req.ExtraChangesDirs...)

	for _, dir := range required {
		exists, err := c.fs.Exists(dir)
		if err != nil {
			return fmt.Errorf("failed to check directory %q: %w", dir, err)
		}
		if !exists {
			return fmt.Errorf("%w: directory %q does not exist", ErrPathNotFound, dir)
		}
	}
	return nil
}

// collectConventional gathers whichever conventional change-set
// directories exist beneath the storage root, in fixed precedence order.
// Only the generic changes directory carries ACL sidecars; the others
// are tool output with no permission intent to reconcile.
func (c *Coordinator) collectConventional(paths *config.Paths) ([]string, error) {
	var ordered []string
	for _, dir := range paths.ConventionalChangeDirs() {
		info, err := c.fs.Lstat(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to check directory %q: %w", dir, err)
		}
		if !info.IsDir() {
			continue
		}

		if dir == paths.ChangesDir() {
			if err := c.reconciler.Reconcile(dir); err != nil {
				return nil, err
			}
		}
		ordered = append(ordered, dir)
	}
	return ordered, nil
}

// stageAll copies each directory into its own staging area and
// reconciles the staged copy, leaving the caller's input untouched.
func (c *Coordinator) stageAll(dirs []string, stagingRoot string) ([]string, error) {
	var staged []string
	for _, dir := range dirs {
		dst := filepath.Join(stagingRoot, uuid.NewString())

		if err := c.fs.CopyTree(dir, dst); err != nil {
			return nil, fmt.Errorf("%w: failed to stage %q: %v", ErrStaging, dir, err)
		}
		c.logger.Debug("staged change-set", "src", dir, "staged", dst)

		if err := c.reconciler.Reconcile(dst); err != nil {
			return nil, fmt.Errorf("change-set %q: %w", dir, err)
		}
		staged = append(staged, dst)
	}
	return staged, nil
}
