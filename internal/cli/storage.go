package cli

import (
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show state directory usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, rootOpts)
			if err != nil {
				return err
			}
			stats, err := e.store.Stats()
			if err != nil {
				return err
			}
			return e.out.emit(stats, func() {
				e.out.title("Storage " + mutedStyle.Render(e.store.BaseDir()))
				e.out.field("runs", formatCount(stats.Runs, stats.RunBytes))
				e.out.field("archived", formatCount(stats.Archives, stats.ArchiveBytes))
				e.out.field("features", formatCount(stats.Features, stats.FeatureBytes))
				e.out.field("total", bytesString(stats.TotalBytes()))
				if stats.Oldest != nil {
					e.out.field("oldest", relTime(*stats.Oldest))
				}
				if stats.Newest != nil {
					e.out.field("newest", relTime(*stats.Newest))
				}
			})
		},
	}
}

func newCleanupCommand(rootOpts *RootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Apply the retention policy to old runs",
		Long: `Cleanup keeps the newest max_runs runs and deletes the rest. Of the runs
kept, those older than max_age are moved to the archive.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, rootOpts)
			if err != nil {
				return err
			}
			result, err := e.store.Cleanup(cmd.Context(), dryRun)
			if err != nil {
				return err
			}
			return e.out.emit(result, func() {
				verb := "Cleaned up"
				if dryRun {
					verb = "Would clean up"
				}
				e.out.printf("%s %s\n", successStyle.Render(verb), mutedStyle.Render(e.store.BaseDir()))
				e.out.field("deleted", len(result.Deleted))
				e.out.field("archived", len(result.Archived))
				e.out.field("kept", len(result.Kept))
				e.out.field("freed", bytesString(result.SpaceSaved))
				for _, msg := range result.Errors {
					e.out.printf("  %s %s\n", errorStyle.Render("!"), msg)
				}
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be removed without removing it")
	return cmd
}

func newArchiveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "List archived runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, rootOpts)
			if err != nil {
				return err
			}
			ids, err := e.store.ListArchives()
			if err != nil {
				return err
			}
			return e.out.emit(ids, func() {
				if len(ids) == 0 {
					e.out.println(mutedStyle.Render("No archived runs."))
					return
				}
				for _, id := range ids {
					run, err := e.store.LoadArchivedRun(id)
					if err != nil {
						e.out.printf("%s  %s\n", id, errorStyle.Render("unreadable"))
						continue
					}
					e.out.printf("%s  %s  %s  %s\n", titleStyle.Render(id), statusText(string(run.Status)),
						mutedStyle.Render(relTime(run.StartedAt)), featureNames(run.Features))
				}
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <run-id>",
		Short: "Move a run into the archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, rootOpts)
			if err != nil {
				return err
			}
			if err := e.store.ArchiveRun(args[0]); err != nil {
				return err
			}
			return e.out.emit(map[string]string{"archived": args[0]}, func() {
				e.out.printf("%s %s\n", successStyle.Render("Archived"), args[0])
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "restore <run-id>",
		Short: "Move an archived run back to the runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, rootOpts)
			if err != nil {
				return err
			}
			if err := e.store.RestoreArchive(args[0]); err != nil {
				return err
			}
			return e.out.emit(map[string]string{"restored": args[0]}, func() {
				e.out.printf("%s %s\n", successStyle.Render("Restored"), args[0])
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete an archived run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, rootOpts)
			if err != nil {
				return err
			}
			if err := e.store.DeleteArchive(args[0]); err != nil {
				return err
			}
			return e.out.emit(map[string]string{"deleted": args[0]}, func() {
				e.out.printf("%s %s\n", successStyle.Render("Deleted"), args[0])
			})
		},
	})
	return cmd
}

func formatCount(n int, size int64) string {
	return humanize.Comma(int64(n)) + "  " + mutedStyle.Render(bytesString(size))
}
