package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/genstage/diff"
	gserrors "github.com/randalmurphal/genstage/errors"
	"github.com/randalmurphal/genstage/git"
)

func newPatchCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patch",
		Short: "Export applied features as patches and apply patches",
	}
	cmd.AddCommand(newPatchCreateCommand(rootOpts))
	cmd.AddCommand(newPatchApplyCommand(rootOpts))
	return cmd
}

func newPatchCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "create <feature>",
		Short: "Write the uncommitted changes to a feature's files as a patch",
		Long: `Create diffs the feature's files in the working tree against HEAD and writes
a binary-safe patch. Run it after applying without --git to hand the change
to someone else. Files the repository does not track yet are included as
new files; the index is left as it was.

Example:
  genstage patch create login -o login.patch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, rootOpts)
			if err != nil {
				return err
			}
			feature, err := e.store.LoadFeature(args[0])
			if err != nil {
				return err
			}
			if output == "" {
				output = filepath.Join(e.store.BaseDir(), "patches", feature.Name+".patch")
			}

			g, err := git.NewContext(e.project, e.gitOptions()...)
			if err != nil {
				return err
			}
			if err := g.GeneratePatch(cmd.Context(), feature.FilePaths(), output); err != nil {
				return err
			}

			data, err := os.ReadFile(output)
			if err != nil {
				return gserrors.IO("read patch", err)
			}
			stats, err := diff.Parse(string(data))
			if err != nil {
				return fmt.Errorf("parse patch: %w", err)
			}

			return e.out.emit(map[string]any{"path": output, "stats": stats}, func() {
				if len(stats.Files) == 0 {
					e.out.println(warningStyle.Render("Patch is empty: ") + "no uncommitted changes to the feature's files")
					return
				}
				e.out.printf("%s %s\n", successStyle.Render("Wrote"), output)
				for _, f := range stats.Files {
					e.out.printf("  %s %s %s\n", addStyle.Render(fmt.Sprintf("+%d", f.Additions)),
						delStyle.Render(fmt.Sprintf("-%d", f.Deletions)), f.Path())
				}
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "patch file (default: <state>/patches/<feature>.patch)")
	return cmd
}

func newPatchApplyCommand(rootOpts *RootOptions) *cobra.Command {
	var opts git.ApplyOptions

	cmd := &cobra.Command{
		Use:   "apply <patch-file>",
		Short: "Apply a patch to the project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, rootOpts)
			if err != nil {
				return err
			}
			g, err := git.NewContext(e.project, e.gitOptions()...)
			if err != nil {
				return err
			}
			if err := g.ValidateWorkingTree(cmd.Context()); err != nil {
				return err
			}

			result, err := g.ApplyPatch(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			if err := e.out.emit(result, func() {
				switch {
				case result.Success && opts.Check:
					e.out.println(successStyle.Render("Patch applies cleanly."))
				case result.Success:
					e.out.printf("%s %s\n", successStyle.Render("Applied"), args[0])
				default:
					e.out.println(errorStyle.Render("Patch did not apply."))
					if result.Error != "" {
						e.out.println(mutedStyle.Render(result.Error))
					}
					for _, c := range result.Conflicts {
						e.out.printf("  %s %s\n", warningStyle.Render("!"), c)
					}
				}
			}); err != nil {
				return err
			}
			if !result.Success {
				return NewExitError(ExitFailure, "patch did not apply")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.ThreeWay, "3way", false, "fall back to a three-way merge")
	cmd.Flags().BoolVar(&opts.Check, "check", false, "only check whether the patch applies")
	cmd.Flags().BoolVarP(&opts.Reverse, "reverse", "R", false, "apply in reverse")
	return cmd
}
