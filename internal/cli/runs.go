package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/genstage/artifact"
)

func newRunsCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, rootOpts)
			if err != nil {
				return err
			}
			runs, err := e.store.RecentRuns(limit)
			if runs == nil {
				return err
			}
			if err != nil {
				e.logger.Warn("some runs could not be read", "error", err)
			}

			return e.out.emit(runs, func() {
				if len(runs) == 0 {
					e.out.println(mutedStyle.Render("No runs yet."))
					return
				}
				for _, r := range runs {
					e.out.printf("%s  %s  %s  %s\n",
						titleStyle.Render(r.ID),
						statusText(string(r.Status)),
						mutedStyle.Render(relTime(r.StartedAt)),
						featureNames(r.Features))
				}
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show (-1 for all)")

	cmd.AddCommand(newRunsShowCommand(rootOpts))
	cmd.AddCommand(newRunsDeleteCommand(rootOpts))
	return cmd
}

func newRunsShowCommand(rootOpts *RootOptions) *cobra.Command {
	var showFiles bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run's metadata, features, errors and logs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, rootOpts)
			if err != nil {
				return err
			}
			run, err := e.store.LoadRunMetadata(args[0])
			if err != nil {
				return err
			}

			return e.out.emit(run, func() {
				e.out.title("Run " + run.ID)
				e.out.field("status", statusText(string(run.Status)))
				e.out.field("started", relTime(run.StartedAt))
				if run.CompletedAt != nil {
					e.out.field("duration", run.Duration())
				}
				for k, v := range run.Metadata {
					e.out.field(k, v)
				}

				if len(run.Features) > 0 {
					e.out.println()
					e.out.title("Features")
					for _, f := range run.Features {
						e.out.printf("  %s  %d files, %d diffs\n", f.Name, f.Files, f.Diffs)
					}
				}
				if len(run.Errors) > 0 {
					e.out.println()
					e.out.title("Errors")
					for _, er := range run.Errors {
						e.out.printf("  %s %s\n", errorStyle.Render("•"), er.Message)
					}
				}
				if len(run.Logs) > 0 {
					e.out.println()
					e.out.title("Log")
					for _, l := range run.Logs {
						e.out.printf("  %s %-5s %s\n", mutedStyle.Render(l.Timestamp.Format("15:04:05")), l.Level, l.Message)
					}
				}

				if showFiles {
					files, err := e.store.RunFiles(run.ID)
					if err != nil {
						e.logger.Warn("list run files", "error", err)
					}
					e.out.println()
					e.out.title(fmt.Sprintf("Generated files (%d)", len(files)))
					for _, f := range files {
						e.out.println("  " + f)
					}
				}
			})
		},
	}
	cmd.Flags().BoolVar(&showFiles, "files", false, "list the generated files saved in the run")
	return cmd
}

func newRunsDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, rootOpts)
			if err != nil {
				return err
			}
			if err := e.store.DeleteRun(args[0]); err != nil {
				return err
			}
			return e.out.emit(map[string]string{"deleted": args[0]}, func() {
				e.out.printf("%s %s\n", successStyle.Render("Deleted"), args[0])
			})
		},
	}
}

func newFeaturesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "features",
		Short: "List staged features",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, rootOpts)
			if err != nil {
				return err
			}
			features, err := e.store.ListFeatures()
			if features == nil {
				return err
			}
			if err != nil {
				e.logger.Warn("some features could not be read", "error", err)
			}

			return e.out.emit(features, func() {
				if len(features) == 0 {
					e.out.println(mutedStyle.Render("No features staged."))
					return
				}
				for _, f := range features {
					applied := mutedStyle.Render("not applied")
					if f.Applied != nil {
						applied = successStyle.Render("applied " + relTime(f.Applied.AppliedAt))
					}
					e.out.printf("%s  %d files  %s  %s\n",
						titleStyle.Render(f.Name), len(f.Files), mutedStyle.Render("run "+f.RunID), applied)
				}
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <feature>",
		Short: "Show a feature's files and stored diffs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, rootOpts)
			if err != nil {
				return err
			}
			f, err := e.store.LoadFeature(args[0])
			if err != nil {
				return err
			}
			return e.out.emit(f, func() {
				e.out.title("Feature " + f.Name)
				e.out.field("run", f.RunID)
				e.out.field("staged", relTime(f.Timestamp))
				if f.Applied != nil {
					e.out.field("applied", fmt.Sprintf("%s to %s", relTime(f.Applied.AppliedAt), f.Applied.Target))
					if f.Applied.Commit != "" {
						e.out.field("commit", f.Applied.Commit)
					}
				}
				e.out.println()
				for _, file := range f.Files {
					e.out.printf("  %s  %s\n", file.RelativePath, mutedStyle.Render(bytesString(int64(len(file.Content)))))
				}
				for _, d := range f.Diffs {
					e.out.println()
					e.out.diff(d.Content)
				}
			})
		},
	})
	return cmd
}

func statusText(status string) string {
	switch status {
	case string(artifact.RunSuccess), "applied":
		return successStyle.Render(status)
	case string(artifact.RunFailed):
		return errorStyle.Render(status)
	default:
		return warningStyle.Render(status)
	}
}

func featureNames(features []artifact.FeatureSummary) string {
	if len(features) == 0 {
		return mutedStyle.Render("(no features)")
	}
	s := ""
	for i, f := range features {
		if i > 0 {
			s += ", "
		}
		s += f.Name
	}
	return s
}
