package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/genstage/apply"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Project  string
	StateDir string

	// Reviewer replaces the terminal conflict reviewer (for testing).
	Reviewer apply.Reviewer

	// ReviewInput feeds the terminal reviewer instead of stdin (for testing).
	ReviewInput io.Reader
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the genstage CLI.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWithOptions(&RootOptions{})
}

// NewRootCommandWithOptions creates the root command around opts, so tests
// can inject a reviewer.
func NewRootCommandWithOptions(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "genstage",
		Short: "Stage, preview and safely apply generated code",
		Long: `genstage stores machine-generated source files as features, shows what
they would change, and applies them to a project with conflict detection,
backups and rollback.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Project, "project", "C", "", "project directory (default: current directory)")
	cmd.PersistentFlags().StringVar(&opts.StateDir, "state-dir", "", "state directory (default: <project>/.genstage)")

	cmd.AddCommand(newStageCommand(opts))
	cmd.AddCommand(newGenerateCommand(opts))
	cmd.AddCommand(newRunsCommand(opts))
	cmd.AddCommand(newFeaturesCommand(opts))
	cmd.AddCommand(newPreviewCommand(opts))
	cmd.AddCommand(newApplyCommand(opts))
	cmd.AddCommand(newConflictsCommand(opts))
	cmd.AddCommand(newRollbackCommand(opts))
	cmd.AddCommand(newBackupsCommand(opts))
	cmd.AddCommand(newPatchCommand(opts))
	cmd.AddCommand(newStatsCommand(opts))
	cmd.AddCommand(newCleanupCommand(opts))
	cmd.AddCommand(newArchiveCommand(opts))
	cmd.AddCommand(newConfigCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
