// Package cli wires the treeforge commands.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mbatori/treeforge/internal/config"
)

var (
	// Global flags
	storageDir string
	verbose    bool
)

// rootCmd is the root command for treeforge.
var rootCmd = &cobra.Command{
	Use:     "treeforge",
	Version: "dev",
	Short:   "Merge captured change-sets into a versioned image commit",
	Long: `treeforge builds customized embedded-Linux images by merging captured
change-sets on top of a base content-addressed tree.

Change-sets captured over metadata-lossy transports get their ownership,
modes and POSIX ACLs restored deterministically before the merge.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// SetVersion overrides the version reported by the root command.
func SetVersion(v string) {
	if v == "" {
		return
	}
	rootCmd.Version = v
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

// newLogger builds the logger used by the engine packages. The --verbose
// flag lowers the level to debug.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storageDir, "storage-directory",
		config.DefaultStorageDir(), "Storage root holding the base repository and captured changes")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(unionCmd)
}
