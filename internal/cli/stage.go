package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/genstage/artifact"
	"github.com/randalmurphal/genstage/notify"
	"github.com/randalmurphal/genstage/producer"
)

type stageOptions struct {
	*RootOptions
	From   string
	Target string
	Meta   []string
}

func newStageCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &stageOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stage <feature>",
		Short: "Stage a directory of generated files as a feature",
		Long: `Stage reads every file under --from, diffs it against the target project
and stores the result as a feature in a new run.

Example:
  genstage stage login --from ./out/login
  genstage stage login --from ./out/login --meta source=figma`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, opts.RootOptions)
			if err != nil {
				return err
			}
			meta, err := parseMeta(opts.Meta)
			if err != nil {
				return err
			}
			files, err := producer.FilesFromDir(opts.From)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return NewExitError(ExitCommandError, fmt.Sprintf("no files found in %s", opts.From))
			}
			meta["source"] = opts.From

			return withRun(e, meta, func(session *artifact.Session) error {
				b := producer.NewBuilder(e.target(opts.Target), producer.WithBuilderLogger(e.logger))
				bundle, err := b.Build(files, meta)
				if err != nil {
					return err
				}
				if err := b.Stage(session, args[0], bundle); err != nil {
					return err
				}
				return printStaged(e, session, args[0], bundle)
			})
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "directory holding the generated files (required)")
	cmd.Flags().StringVar(&opts.Target, "target", "", "project the files will be applied to (default: project)")
	cmd.Flags().StringArrayVar(&opts.Meta, "meta", nil, "metadata key=value recorded on the run and feature")
	_ = cmd.MarkFlagRequired("from")

	return cmd
}

type generateOptions struct {
	*RootOptions
	Prompt     string
	Kind       string
	Target     string
	ShowPrompt bool
}

func newGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &generateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "generate <feature>",
		Short: "Generate a feature with Claude and stage it",
		Long: `Generate renders the feature prompt, sends it to the Claude CLI, parses the
files it returns and stages them as a feature. Prompts are read from
<state_dir>/prompts and <project>/prompts before the built-in defaults.

Example:
  genstage generate login --prompt "Add a login page with email and password"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, opts.RootOptions)
			if err != nil {
				return err
			}
			kind := producer.Kind(opts.Kind)
			if _, ok := producer.DefaultModelMap[kind]; !ok {
				return NewExitError(ExitCommandError, fmt.Sprintf("unknown kind %q", opts.Kind))
			}

			target := e.target(opts.Target)
			b := producer.NewBuilder(target, producer.WithBuilderLogger(e.logger))
			loader := e.prompts()
			system, err := loader.SystemPrompt()
			if err != nil {
				return err
			}
			data, err := b.PromptDataFor(args[0], kind, opts.Prompt)
			if err != nil {
				return err
			}
			prompt, err := loader.FeaturePrompt(data)
			if err != nil {
				return err
			}
			if opts.ShowPrompt {
				out := map[string]string{"system": system, "prompt": prompt}
				return e.out.emit(out, func() {
					e.out.title("System prompt")
					e.out.println(system)
					e.out.println()
					e.out.title("Prompt")
					e.out.println(prompt)
				})
			}

			gen := producer.NewClaudeGenerator(kind, target,
				producer.WithLogger(e.logger),
				producer.WithSystemPrompt(system),
			)
			meta := map[string]any{"kind": opts.Kind, "model": string(gen.Model())}

			return withRun(e, meta, func(session *artifact.Session) error {
				bundle, err := b.Produce(cmd.Context(), session, args[0], gen, prompt)
				if err != nil {
					return err
				}
				usage := gen.Usage()
				_ = session.Log(artifact.LevelInfo, "generation usage", map[string]any{
					"inputTokens":  usage.InputTokens,
					"outputTokens": usage.OutputTokens,
				})
				return printStaged(e, session, args[0], bundle)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Prompt, "prompt", "", "what to generate (required)")
	cmd.Flags().StringVar(&opts.Kind, "kind", string(producer.KindGenerate), "kind of work; selects the model")
	cmd.Flags().StringVar(&opts.Target, "target", "", "project the files will be applied to (default: project)")
	cmd.Flags().BoolVar(&opts.ShowPrompt, "show-prompt", false, "print the rendered prompts and exit")
	_ = cmd.MarkFlagRequired("prompt")

	return cmd
}

// withRun applies the retention policy, starts a run, calls fn, and ends the
// run with a status matching fn's outcome. Run start and end are sent to the
// notifier.
func withRun(e *env, meta map[string]any, fn func(*artifact.Session) error) error {
	notifier := e.notifier()
	enforceRetention(e)

	session, err := e.store.StartRun(meta)
	if err != nil {
		return err
	}
	sendEvent(e, notifier, notify.Event{
		Type:     notify.EventRunStarted,
		RunID:    session.ID(),
		Message:  "Run " + session.ID() + " started",
		Severity: notify.SeverityInfo,
	})

	status := artifact.RunSuccess
	fnErr := fn(session)
	if fnErr != nil {
		status = artifact.RunFailed
		_ = session.LogError(fnErr, nil)
	}
	run, endErr := session.End(status)
	if endErr != nil {
		e.logger.Warn("end run", "run", session.ID(), "error", endErr)
	}

	ev := notify.Event{
		Type:     notify.EventRunEnded,
		RunID:    session.ID(),
		Status:   string(status),
		Message:  fmt.Sprintf("Run %s ended: %s", session.ID(), status),
		Severity: notify.SeverityInfo,
	}
	if fnErr != nil {
		ev.Severity = notify.SeverityError
		ev.Message += ": " + fnErr.Error()
	}
	if run != nil {
		ev.Metadata = map[string]any{
			"features": len(run.Features),
			"errors":   len(run.Errors),
			"duration": run.Duration().String(),
		}
		for _, f := range run.Features {
			sendEvent(e, notifier, notify.Event{
				Type:     notify.EventFeatureSaved,
				RunID:    session.ID(),
				Feature:  f.Name,
				Message:  fmt.Sprintf("Staged %s (%d files)", f.Name, f.Files),
				Severity: notify.SeverityInfo,
			})
		}
	}
	sendEvent(e, notifier, ev)

	if fnErr != nil {
		return fnErr
	}
	return endErr
}

// enforceRetention runs the store cleanup before a new run starts. Failures
// are logged; they never block the run.
func enforceRetention(e *env) {
	result, err := e.store.Cleanup(e.cmd.Context(), false)
	if err != nil {
		e.logger.Warn("cleanup", "error", err)
	}
	if result == nil {
		return
	}
	for _, msg := range result.Errors {
		e.logger.Warn("cleanup", "error", msg)
	}
	if len(result.Deleted)+len(result.Archived) > 0 {
		e.logger.Debug("cleanup", "deleted", len(result.Deleted), "archived", len(result.Archived))
	}
}

// sendEvent delivers ev, logging and otherwise ignoring delivery failures.
func sendEvent(e *env, n notify.Notifier, ev notify.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if err := n.Notify(e.cmd.Context(), ev); err != nil {
		e.logger.Debug("notification failed", "event", ev.Type, "error", err)
	}
}

func printStaged(e *env, session *artifact.Session, name string, bundle artifact.Bundle) error {
	summary := map[string]any{
		"run":     session.ID(),
		"feature": name,
		"files":   len(bundle.Files),
		"diffs":   len(bundle.Diffs),
	}
	return e.out.emit(summary, func() {
		e.out.printf("%s %s %s\n", successStyle.Render("Staged"), titleStyle.Render(name), mutedStyle.Render("in run "+session.ID()))
		e.out.field("files", len(bundle.Files))
		e.out.field("new", bundle.Metadata["newFiles"])
		e.out.field("modified", bundle.Metadata["modifiedFiles"])
		e.out.field("unchanged", bundle.Metadata["unchangedFiles"])
	})
}

func parseMeta(pairs []string) (map[string]any, error) {
	meta := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid --meta %q: want key=value", pair))
		}
		meta[k] = v
	}
	return meta, nil
}
