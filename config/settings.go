package config

import (
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Configuration keys.
const (
	KeyStateDir       = "state_dir"
	KeyMaxRuns        = "max_runs"
	KeyMaxAge         = "max_age"
	KeyCompressAbove  = "compress_above"
	KeyMode           = "mode"
	KeyResolution     = "resolution"
	KeyBackup         = "backup"
	KeyValidate       = "validate"
	KeyGitIntegration = "git_integration"
	KeyRequireClean   = "require_clean"
	KeyCommandTimeout = "command_timeout"
	KeyFormatter      = "formatter"
	KeyValidator      = "validator"
	KeyValidateInTree = "validate_in_worktree"
	KeyDepsCommand    = "deps_command"
	KeyManifestFiles  = "manifest_files"
	KeyKeepBackups    = "keep_backups"
	KeyWebhookURL     = "webhook_url"
	KeyWebhookLevel   = "webhook_min_severity"
	KeySlackWebhook   = "slack_webhook_url"
	KeySlackChannel   = "slack_channel"
	KeyLogLevel       = "log_level"
)

const (
	envPrefix       = "GENSTAGE_"
	appDir          = "genstage"
	localConfigName = ".genstage.yaml"
)

// Defaults returns the built-in default for every key.
func Defaults() map[string]string {
	return map[string]string{
		KeyStateDir:       ".genstage",
		KeyMaxRuns:        "50",
		KeyMaxAge:         "720h",
		KeyCompressAbove:  "10240",
		KeyMode:           "safe",
		KeyResolution:     "",
		KeyBackup:         "true",
		KeyValidate:       "false",
		KeyGitIntegration: "false",
		KeyRequireClean:   "false",
		KeyCommandTimeout: "60s",
		KeyFormatter:      "",
		KeyValidator:      "",
		KeyValidateInTree: "false",
		KeyDepsCommand:    "",
		KeyManifestFiles:  "",
		KeyKeepBackups:    "10",
		KeyWebhookURL:     "",
		KeyWebhookLevel:   "info",
		KeySlackWebhook:   "",
		KeySlackChannel:   "",
		KeyLogLevel:       "info",
	}
}

// Keys returns every known key, sorted.
func Keys() []string {
	return slices.Sorted(maps.Keys(Defaults()))
}

// NewGenstageResolver returns the resolver for genstage's config layout:
// ~/.config/genstage/config.yaml, .genstage.yaml in the git root of
// startDir, and GENSTAGE_* environment variables.
func NewGenstageResolver(startDir string) *Resolver {
	opts := []ResolverOption{
		WithDefaults(Defaults()),
		WithKnownKeys(Keys()),
		WithEnvPrefix(envPrefix),
	}
	if path, err := globalConfigPath("", appDir, ""); err == nil {
		opts = append(opts, WithFile(SourceGlobal, path))
	}
	if root := findGitRoot(startDir); root != "" {
		opts = append(opts,
			WithProjectRoot(root),
			WithFile(SourceLocal, filepath.Join(root, localConfigName)))
	}
	return NewResolver(opts...)
}

// NewGenstageSaver returns the SaveConfig matching NewGenstageResolver.
func NewGenstageSaver() SaveConfig {
	return SaveConfig{
		GlobalConfigDir: appDir,
		LocalConfigName: localConfigName,
		ValidKeys:       Keys(),
	}
}

// Settings is the typed view of a resolved configuration.
type Settings struct {
	StateDir       string
	MaxRuns        int
	MaxAge         time.Duration
	CompressAbove  int64
	Mode           string
	Resolution     string
	Backup         bool
	Validate       bool
	GitIntegration bool
	RequireClean   bool
	CommandTimeout time.Duration
	Formatter      string
	Validator      string
	ValidateInTree bool
	DepsCommand    string
	ManifestFiles  []string
	KeepBackups    int
	WebhookURL     string
	WebhookLevel   string
	SlackWebhook   string
	SlackChannel   string
	LogLevel       string
}

var (
	validModes       = []string{"safe", "force", "merge"}
	validResolutions = []string{"", "overwrite", "skip", "review", "cancel"}
	validLogLevels   = []string{"debug", "info", "warn", "error"}
	validSeverities  = []string{"info", "warning", "error", "critical"}
)

// Load converts resolved values into Settings. Every malformed key is
// reported in the returned error.
func Load(resolved *Resolved) (Settings, error) {
	p := parser{resolved: resolved}

	s := Settings{
		StateDir:       p.str(KeyStateDir),
		MaxRuns:        p.integer(KeyMaxRuns),
		MaxAge:         p.duration(KeyMaxAge),
		CompressAbove:  int64(p.integer(KeyCompressAbove)),
		Mode:           p.oneOf(KeyMode, validModes),
		Resolution:     p.oneOf(KeyResolution, validResolutions),
		Backup:         p.boolean(KeyBackup),
		Validate:       p.boolean(KeyValidate),
		GitIntegration: p.boolean(KeyGitIntegration),
		RequireClean:   p.boolean(KeyRequireClean),
		CommandTimeout: p.duration(KeyCommandTimeout),
		Formatter:      p.str(KeyFormatter),
		Validator:      p.str(KeyValidator),
		ValidateInTree: p.boolean(KeyValidateInTree),
		DepsCommand:    p.str(KeyDepsCommand),
		ManifestFiles:  p.list(KeyManifestFiles),
		KeepBackups:    p.integer(KeyKeepBackups),
		WebhookURL:     p.str(KeyWebhookURL),
		WebhookLevel:   p.oneOf(KeyWebhookLevel, validSeverities),
		SlackWebhook:   p.str(KeySlackWebhook),
		SlackChannel:   p.str(KeySlackChannel),
		LogLevel:       p.oneOf(KeyLogLevel, validLogLevels),
	}
	if s.StateDir == "" {
		p.fail(KeyStateDir, "must not be empty")
	}
	return s, errors.Join(p.errs...)
}

// StatePath resolves the state directory against the project root.
func (s Settings) StatePath(projectRoot string) string {
	if filepath.IsAbs(s.StateDir) {
		return s.StateDir
	}
	return filepath.Join(projectRoot, s.StateDir)
}

type parser struct {
	resolved *Resolved
	errs     []error
}

func (p *parser) fail(key, msg string) {
	p.errs = append(p.errs, fmt.Errorf("%s (from %s): %s", key, p.resolved.Source(key), msg))
}

func (p *parser) str(key string) string {
	return strings.TrimSpace(p.resolved.Get(key))
}

func (p *parser) integer(key string) int {
	v := p.str(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, fmt.Sprintf("%q is not an integer", v))
	}
	return n
}

func (p *parser) duration(key string) time.Duration {
	v := p.str(key)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, fmt.Sprintf("%q is not a duration", v))
	}
	return d
}

func (p *parser) boolean(key string) bool {
	v := p.str(key)
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, fmt.Sprintf("%q is not a boolean", v))
	}
	return b
}

func (p *parser) oneOf(key string, allowed []string) string {
	v := strings.ToLower(p.str(key))
	if !slices.Contains(allowed, v) {
		p.fail(key, fmt.Sprintf("%q is not one of %s", v, strings.Join(allowed, ", ")))
	}
	return v
}

func (p *parser) list(key string) []string {
	var out []string
	for _, item := range strings.Split(p.str(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
