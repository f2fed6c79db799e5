package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mbatori/treeforge/internal/clock"
	"github.com/mbatori/treeforge/internal/config"
	"github.com/mbatori/treeforge/internal/fsops"
	"github.com/mbatori/treeforge/internal/metadata"
	"github.com/mbatori/treeforge/internal/ostree"
	"github.com/mbatori/treeforge/internal/reconcile"
	"github.com/mbatori/treeforge/internal/union"
)

var (
	unionChangesDirs []string
	unionExtraDirs   []string
	unionBranch      string
	unionSubject     string
	unionBody        string
)

var unionCmd = &cobra.Command{
	Use:   "union",
	Short: "Create a commit out of captured change-sets",
	Long: `Merge change-set directories onto a branch of the base repository.

Without --changes-directory, the conventional subdirectories of the
storage root (changes, splash, dt, kernel) are merged in that precedence
order. Explicitly named directories are copied into an isolated staging
area first, so the inputs are never mutated. Later directories win on
path collision; --extra-changes-directory entries win over everything.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		paths := config.NewPaths(storageDir)

		cfg, err := config.Load(paths.Config)
		if err != nil {
			return err
		}

		branch := unionBranch
		if branch == "" {
			branch = cfg.DefaultBranch
		}
		if branch == "" {
			return fmt.Errorf("no union branch given: set --union-branch or default_branch in %s", paths.Config)
		}

		logger := newLogger()
		fs := fsops.NewRealFS()
		rec := reconcile.New(fs, metadata.NewExecOps(), logger)
		store := ostree.NewExecStoreWithBinary(cfg.OSTreeBinary)
		coordinator := union.New(fs, rec, store, &clock.RealClock{}, logger, cfg.SubjectPrefix)

		result, err := coordinator.Union(context.Background(), &union.Request{
			ChangesDirs:      unionChangesDirs,
			ExtraChangesDirs: unionExtraDirs,
			StorageDir:       storageDir,
			Branch:           branch,
			Subject:          unionSubject,
			Body:             unionBody,
		})
		if err != nil {
			return err
		}

		PrintSuccess(fmt.Sprintf("Commit %s generated and ready to be deployed", result.Commit))
		PrintLabelValue("Branch", branch)
		PrintLabelValue("Subject", result.Subject)
		return nil
	},
}

func init() {
	unionCmd.Flags().StringArrayVar(&unionChangesDirs, "changes-directory", nil,
		"Directory containing user changes; can be given multiple times, later entries take precedence")
	unionCmd.Flags().StringArrayVar(&unionExtraDirs, "extra-changes-directory", nil,
		"Additional changes directory appended with the highest precedence; can be given multiple times")
	unionCmd.Flags().StringVar(&unionBranch, "union-branch", "",
		"Branch name the merged changes are committed to")
	unionCmd.Flags().StringVar(&unionSubject, "subject", "",
		"Commit subject; defaults to \"treeforge <timestamp>\"")
	unionCmd.Flags().StringVar(&unionBody, "body", "", "Commit body message")
}
