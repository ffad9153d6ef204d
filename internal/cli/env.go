package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/genstage/apply"
	"github.com/randalmurphal/genstage/artifact"
	"github.com/randalmurphal/genstage/config"
	gserrors "github.com/randalmurphal/genstage/errors"
	"github.com/randalmurphal/genstage/git"
	"github.com/randalmurphal/genstage/notify"
	"github.com/randalmurphal/genstage/producer"
)

// env is everything a command needs, built from flags and configuration.
type env struct {
	opts     *RootOptions
	cmd      *cobra.Command
	project  string
	resolver *config.Resolver
	resolved *config.Resolved
	settings config.Settings
	logger   *slog.Logger
	store    *artifact.Store
	out      *printer
}

// loadEnv resolves the project directory and configuration, installs the
// logger, and opens the store.
func loadEnv(cmd *cobra.Command, opts *RootOptions) (*env, error) {
	e, err := loadConfigEnv(cmd, opts)
	if err != nil {
		return nil, err
	}

	store, err := artifact.NewStore(artifact.Config{
		BaseDir:       e.settings.StatePath(e.project),
		CompressAbove: e.settings.CompressAbove,
		Retention: artifact.RetentionConfig{
			MaxRuns: e.settings.MaxRuns,
			MaxAge:  e.settings.MaxAge,
		},
		Logger: e.logger,
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open state directory", err)
	}
	e.store = store
	return e, nil
}

// loadConfigEnv is loadEnv without the store, for commands that only touch
// configuration.
func loadConfigEnv(cmd *cobra.Command, opts *RootOptions) (*env, error) {
	project := opts.Project
	if project == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "determine working directory", err)
		}
		project = wd
	}
	project, err := filepath.Abs(project)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "resolve project directory", err)
	}

	resolver := config.NewGenstageResolver(project)
	resolved := resolver.ResolveWithFlags(map[string]string{
		config.KeyStateDir: opts.StateDir,
	})
	settings, err := config.Load(resolved)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration",
			fmt.Errorf("%w: %v", gserrors.ErrValidation, err))
	}

	level := parseLevel(settings.LogLevel)
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	for _, w := range resolver.Warnings {
		logger.Warn("config", "warning", w)
	}

	return &env{
		opts:     opts,
		cmd:      cmd,
		project:  project,
		resolver: resolver,
		resolved: resolved,
		settings: settings,
		logger:   logger,
		out:      &printer{w: cmd.OutOrStdout(), format: opts.Format},
	}, nil
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (e *env) runner() git.CommandRunner {
	return &git.ExecRunner{Timeout: e.settings.CommandTimeout}
}

func (e *env) gitOptions() []git.Option {
	return []git.Option{
		git.WithRunner(e.runner()),
		git.WithTimeout(e.settings.CommandTimeout),
		git.WithRequireClean(e.settings.RequireClean),
		git.WithLogger(e.logger),
	}
}

// notifier logs every event and posts those at or above
// webhook_min_severity to the webhook and Slack when they are configured.
func (e *env) notifier() notify.Notifier {
	notifiers := []notify.Notifier{notify.NewLogNotifier(e.logger)}
	if e.settings.WebhookURL != "" {
		webhook := notify.NewWebhookNotifier(e.settings.WebhookURL, nil)
		notifiers = append(notifiers, notify.NewSeverityFilter(webhook, e.settings.WebhookLevel))
	}
	if e.settings.SlackWebhook != "" {
		slack := notify.NewSlackNotifier(e.settings.SlackWebhook, notify.WithSlackChannel(e.settings.SlackChannel))
		notifiers = append(notifiers, notify.NewSeverityFilter(slack, e.settings.WebhookLevel))
	}
	multi := notify.NewMultiNotifier(notifiers...)
	multi.Logger = e.logger
	return multi
}

// engine builds an apply engine from the settings: validator, formatter and
// dependency actions, notifications and the conflict reviewer.
func (e *env) engine() (*apply.Engine, error) {
	opts := []apply.Option{
		apply.WithLogger(e.logger),
		apply.WithNotifier(e.notifier()),
		apply.WithGitOptions(e.gitOptions()...),
		apply.WithKeepBackups(e.settings.KeepBackups),
		apply.WithReviewer(e.reviewer()),
	}

	runner := e.runner()
	if e.settings.Validator != "" {
		v, err := apply.NewCommandValidator(e.settings.Validator, runner)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "configure validator", err)
		}
		v.InWorktree = e.settings.ValidateInTree
		opts = append(opts, apply.WithValidator(v))
	}

	var actions []apply.Action
	if e.settings.Formatter != "" {
		a, err := apply.NewFormatAction(e.settings.Formatter, runner)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "configure formatter", err)
		}
		actions = append(actions, a)
	}
	if e.settings.DepsCommand != "" {
		a, err := apply.NewDependencyAction(e.settings.DepsCommand, e.settings.ManifestFiles, runner)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "configure dependency command", err)
		}
		actions = append(actions, a)
	}
	if len(actions) > 0 {
		opts = append(opts, apply.WithActions(actions...))
	}

	return apply.New(e.store, opts...), nil
}

func (e *env) reviewer() apply.Reviewer {
	if e.opts.Reviewer != nil {
		return e.opts.Reviewer
	}
	return newTerminalReviewer(e.opts.ReviewInput, e.cmd.OutOrStdout())
}

// prompts searches the state directory, then the project, for prompt
// overrides.
func (e *env) prompts() *producer.PromptLoader {
	return producer.NewPromptLoader(
		filepath.Join(e.settings.StatePath(e.project), "prompts"),
		filepath.Join(e.project, "prompts"),
	)
}

// target resolves a target argument against the project, defaulting to the
// project itself.
func (e *env) target(arg string) string {
	if arg == "" {
		return e.project
	}
	if filepath.IsAbs(arg) {
		return arg
	}
	return filepath.Join(e.project, arg)
}
