package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/genstage/apply"
	"github.com/randalmurphal/genstage/artifact"
	"github.com/randalmurphal/genstage/config"
)

type applyOptions struct {
	*RootOptions
	Mode        string
	Resolution  string
	Interactive bool
	NoBackup    bool
	Validate    bool
	Git         bool
	Branch      string
	Message     string
	DryRun      bool
}

func newApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &applyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply <feature> [target]",
		Short: "Apply a staged feature to a project",
		Long: `Apply writes a staged feature into the target project. Files that exist and
differ are conflicts: safe mode stops on them unless a resolution is given,
force mode overwrites them, and merge mode three-way merges them against
the committed version. A backup of the touched subtrees is taken first and
restored automatically if writing fails. Each apply is recorded as a run.

Example:
  genstage apply login
  genstage apply login --resolution skip
  genstage apply login --interactive
  genstage apply login --mode merge --git --branch genstage/login`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, opts.RootOptions)
			if err != nil {
				return err
			}
			applyOpts, err := opts.resolve(cmd, e.settings)
			if err != nil {
				return err
			}
			engine, err := e.engine()
			if err != nil {
				return err
			}

			target := e.target(argAt(args, 1))
			meta := map[string]any{"command": "apply", "feature": args[0], "target": target}
			return withRun(e, meta, func(*artifact.Session) error {
				result, execErr := engine.Execute(cmd.Context(), args[0], target, applyOpts)
				if result != nil {
					if err := e.out.emit(result, func() { printResult(e.out, result) }); err != nil {
						return err
					}
				}
				if execErr != nil {
					return execErr
				}
				if !result.Applied() {
					return NewExitError(ExitFailure, fmt.Sprintf("apply %s: %s", args[0], result.Status))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&opts.Mode, "mode", "", "safe, force or merge (default from config)")
	cmd.Flags().StringVar(&opts.Resolution, "resolution", "", "conflict resolution: overwrite, skip, review or cancel")
	cmd.Flags().BoolVarP(&opts.Interactive, "interactive", "i", false, "review each conflict in the terminal")
	cmd.Flags().BoolVar(&opts.NoBackup, "no-backup", false, "do not back up the target first")
	cmd.Flags().BoolVar(&opts.Validate, "validate", false, "run the configured validator before writing")
	cmd.Flags().BoolVar(&opts.Git, "git", false, "commit the written files")
	cmd.Flags().StringVar(&opts.Branch, "branch", "", "commit onto this branch (implies --git)")
	cmd.Flags().StringVarP(&opts.Message, "message", "m", "", "commit message (implies --git)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report what would be written without writing")

	return cmd
}

// resolve merges flags over configured defaults. Flags only ever switch
// features on; configuration supplies the baseline.
func (o *applyOptions) resolve(cmd *cobra.Command, s config.Settings) (apply.Options, error) {
	modeName := s.Mode
	if o.Mode != "" {
		modeName = o.Mode
	}
	mode, err := apply.ParseMode(modeName)
	if err != nil {
		return apply.Options{}, WrapExitError(ExitCommandError, "invalid --mode", err)
	}

	resName := s.Resolution
	if cmd.Flags().Changed("resolution") {
		resName = o.Resolution
	}
	res, err := apply.ParseResolution(resName)
	if err != nil {
		return apply.Options{}, WrapExitError(ExitCommandError, "invalid --resolution", err)
	}

	return apply.Options{
		Mode:           mode,
		Resolution:     res,
		Interactive:    o.Interactive,
		Backup:         s.Backup && !o.NoBackup,
		Validate:       s.Validate || o.Validate,
		GitIntegration: s.GitIntegration || o.Git || o.Branch != "" || o.Message != "",
		Branch:         o.Branch,
		CommitMessage:  o.Message,
		DryRun:         o.DryRun,
	}, nil
}

func printResult(p *printer, r *apply.Result) {
	switch {
	case r.Status == apply.StatusSuccess:
		p.printf("%s %s\n", successStyle.Render("Applied"), titleStyle.Render(r.Feature))
	case r.Status == apply.StatusPartial:
		p.printf("%s %s\n", warningStyle.Render("Partially applied"), titleStyle.Render(r.Feature))
	case r.Status == apply.StatusConflicts || r.Status == apply.StatusCancelled:
		p.printf("%s %s\n", warningStyle.Render(statusLabel(r.Status)), titleStyle.Render(r.Feature))
	default:
		p.printf("%s %s\n", errorStyle.Render(statusLabel(r.Status)), titleStyle.Render(r.Feature))
	}

	if r.Message != "" {
		p.printf("  %s\n", r.Message)
	}
	if r.DryRun {
		p.field("would write", len(r.AppliedFiles))
	} else {
		p.field("written", len(r.AppliedFiles))
	}
	for _, f := range r.AppliedFiles {
		p.printf("    %s %s\n", addStyle.Render("+"), f)
	}
	if len(r.UnchangedFiles) > 0 {
		p.field("unchanged", len(r.UnchangedFiles))
	}
	if r.SkippedFiles > 0 {
		p.field("skipped", r.SkippedFiles)
		for _, f := range r.Skipped {
			p.printf("    %s %s\n", mutedStyle.Render("-"), f)
		}
	}
	if len(r.Conflicts) > 0 {
		p.field("conflicts", len(r.Conflicts))
		for _, c := range r.Conflicts {
			p.printf("    %s %s %s\n", warningStyle.Render("!"), c.Path, mutedStyle.Render("("+string(c.Kind)+")"))
		}
	}
	if r.Backup != nil {
		p.field("backup", r.Backup.ID)
	}
	if r.RolledBack {
		p.field("rolled back", "yes")
	}
	if r.Commit != "" {
		p.field("commit", r.Commit)
	}
	for _, a := range r.Actions {
		state := successStyle.Render("ok")
		switch {
		case a.Skipped:
			state = mutedStyle.Render("skipped")
		case !a.Success:
			state = errorStyle.Render("failed: " + a.Error)
		}
		p.field(a.Name, state)
	}
	if r.Validation != "" {
		p.println()
		p.println(mutedStyle.Render(strings.TrimRight(r.Validation, "\n")))
	}
	if r.Suggestion != "" {
		p.println()
		p.println(r.Suggestion)
	}
}

func statusLabel(s apply.Status) string {
	label := strings.ReplaceAll(string(s), "_", " ")
	return strings.ToUpper(label[:1]) + label[1:]
}

func newPreviewCommand(rootOpts *RootOptions) *cobra.Command {
	var stat bool

	cmd := &cobra.Command{
		Use:   "preview <feature> [target]",
		Short: "Show what applying a feature would change",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, rootOpts)
			if err != nil {
				return err
			}
			engine, err := e.engine()
			if err != nil {
				return err
			}
			preview, err := engine.Preview(args[0], e.target(argAt(args, 1)))
			if err != nil {
				return err
			}

			return e.out.emit(preview, func() {
				e.out.printf("%s %s  %s\n", titleStyle.Render("Preview"), preview.Feature,
					mutedStyle.Render(fmt.Sprintf("%d new, %d modified, %d unchanged, +%d -%d",
						preview.Count(apply.ChangeNew), preview.Count(apply.ChangeModified),
						preview.Count(apply.ChangeUnchanged), preview.Stats.Additions, preview.Stats.Deletions)))
				for _, f := range preview.Files {
					if stat || f.Diff == "" {
						e.out.printf("  %-9s %s\n", f.Change, f.Path)
						continue
					}
					e.out.println()
					e.out.diff(f.Diff)
				}
			})
		},
	}
	cmd.Flags().BoolVar(&stat, "stat", false, "list files only")
	return cmd
}

func newConflictsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "conflicts <feature> [target]",
		Short: "List target files a feature would conflict with",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, rootOpts)
			if err != nil {
				return err
			}
			engine, err := e.engine()
			if err != nil {
				return err
			}
			conflicts, err := engine.CheckConflicts(args[0], e.target(argAt(args, 1)))
			if err != nil {
				return err
			}

			return e.out.emit(conflicts, func() {
				if len(conflicts) == 0 {
					e.out.println(successStyle.Render("No conflicts."))
					return
				}
				e.out.println(warningStyle.Render(fmt.Sprintf("%d conflicting file(s)", len(conflicts))))
				for _, c := range conflicts {
					e.out.printf("  %s %s\n", warningStyle.Render("!"), c.Path)
				}
			})
		},
	}
}

func newRollbackCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback [backup-id]",
		Short: "Restore a backup (default: the newest)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, rootOpts)
			if err != nil {
				return err
			}
			engine, err := e.engine()
			if err != nil {
				return err
			}
			b, err := engine.Rollback(cmd.Context(), argAt(args, 0))
			if err != nil {
				return err
			}
			return e.out.emit(b, func() {
				e.out.printf("%s %s\n", successStyle.Render("Restored"), b.ID)
				e.out.field("target", b.Target)
				e.out.field("feature", b.Feature)
				e.out.field("subtrees", len(b.Manifest.Subtrees))
			})
		},
	}
}

func newBackupsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backups",
		Short: "List backups taken before applies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, rootOpts)
			if err != nil {
				return err
			}
			engine, err := e.engine()
			if err != nil {
				return err
			}
			backups, err := engine.Backups().List()
			if backups == nil {
				return err
			}
			if err != nil {
				e.logger.Warn("some backups could not be read", "error", err)
			}

			return e.out.emit(backups, func() {
				if len(backups) == 0 {
					e.out.println(mutedStyle.Render("No backups."))
					return
				}
				for _, b := range backups {
					e.out.printf("%s  %s  %s  %s\n", titleStyle.Render(b.ID), b.Feature,
						mutedStyle.Render(relTime(b.Timestamp)), mutedStyle.Render(b.Target))
				}
			})
		},
	}

	var keep int
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest backups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, rootOpts)
			if err != nil {
				return err
			}
			engine, err := e.engine()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("keep") {
				keep = e.settings.KeepBackups
			}
			deleted, err := engine.Backups().Prune(keep)
			if err != nil {
				return err
			}
			return e.out.emit(map[string]any{"deleted": deleted}, func() {
				e.out.printf("%s %d backup(s)\n", successStyle.Render("Pruned"), len(deleted))
			})
		},
	}
	prune.Flags().IntVar(&keep, "keep", 0, "backups to keep (default: keep_backups)")
	cmd.AddCommand(prune)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <backup-id>",
		Short: "Delete a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, rootOpts)
			if err != nil {
				return err
			}
			engine, err := e.engine()
			if err != nil {
				return err
			}
			if err := engine.Backups().Delete(args[0]); err != nil {
				return err
			}
			return e.out.emit(map[string]string{"deleted": args[0]}, func() {
				e.out.printf("%s %s\n", successStyle.Render("Deleted"), args[0])
			})
		},
	})
	return cmd
}

func argAt(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
