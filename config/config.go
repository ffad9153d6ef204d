package config

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// layer is one config file and the source its values are attributed to.
type layer struct {
	source Source
	path   string
}

// Resolver merges configuration from defaults, yaml files, environment
// variables and flag overrides, remembering where each value came from.
type Resolver struct {
	defaults    map[string]string
	layers      []layer // ascending priority
	envPrefix   string
	known       []string
	projectRoot string

	// Warnings collects non-fatal problems found while resolving: unreadable
	// yaml and keys that are not recognised.
	Warnings []string
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithDefaults sets the lowest-priority values.
func WithDefaults(defaults map[string]string) ResolverOption {
	return func(r *Resolver) { r.defaults = maps.Clone(defaults) }
}

// WithFile adds a yaml file layer. Files added later take priority over
// earlier ones. A missing file contributes nothing.
func WithFile(source Source, path string) ResolverOption {
	return func(r *Resolver) {
		if path != "" {
			r.layers = append(r.layers, layer{source: source, path: path})
		}
	}
}

// WithEnvPrefix enables environment overrides: with prefix "GENSTAGE_",
// key "max_runs" is read from GENSTAGE_MAX_RUNS.
func WithEnvPrefix(prefix string) ResolverOption {
	return func(r *Resolver) { r.envPrefix = prefix }
}

// WithKnownKeys restricts the keys config files may set.
func WithKnownKeys(keys []string) ResolverOption {
	return func(r *Resolver) { r.known = slices.Clone(keys) }
}

// WithProjectRoot records the root the local layer was found in.
func WithProjectRoot(root string) ResolverOption {
	return func(r *Resolver) { r.projectRoot = root }
}

// NewResolver creates a resolver from opts.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ProjectRoot returns the git root holding the local config file, or "" when
// startDir was not inside a repository.
func (r *Resolver) ProjectRoot() string {
	return r.projectRoot
}

// Resolved is a merged configuration.
type Resolved struct {
	values  map[string]string
	sources map[string]Source
}

func newResolved() *Resolved {
	return &Resolved{values: make(map[string]string), sources: make(map[string]Source)}
}

// Get returns the value for key, or "" when unset.
func (c *Resolved) Get(key string) string {
	return c.values[key]
}

// Source returns where key's value came from.
func (c *Resolved) Source(key string) Source {
	return c.sources[key]
}

// Lookup returns key's value and source.
func (c *Resolved) Lookup(key string) (string, Source) {
	return c.values[key], c.sources[key]
}

// Values returns a copy of every value.
func (c *Resolved) Values() map[string]string {
	return maps.Clone(c.values)
}

// Keys returns every key, sorted.
func (c *Resolved) Keys() []string {
	return slices.Sorted(maps.Keys(c.values))
}

func (c *Resolved) set(key, value string, source Source) {
	c.values[key] = value
	c.sources[key] = source
}

// Resolve merges defaults, file layers and the environment, in that order.
func (r *Resolver) Resolve() *Resolved {
	r.Warnings = nil
	cfg := newResolved()
	for key, value := range r.defaults {
		cfg.set(key, value, SourceDefault)
	}
	for _, l := range r.layers {
		r.readLayer(cfg, l)
	}
	r.readEnv(cfg)
	return cfg
}

// ResolveWithFlags resolves and then applies every non-empty flag value.
func (r *Resolver) ResolveWithFlags(flags map[string]string) *Resolved {
	cfg := r.Resolve()
	for key, value := range flags {
		if value != "" {
			cfg.set(key, value, SourceFlag)
		}
	}
	return cfg
}

func (r *Resolver) readLayer(cfg *Resolved, l layer) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if !os.IsNotExist(err) {
			r.Warnings = append(r.Warnings, fmt.Sprintf("read %s: %v", l.path, err))
		}
		return
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		r.Warnings = append(r.Warnings, fmt.Sprintf("parse %s: %v", l.path, err))
		return
	}

	for _, key := range slices.Sorted(maps.Keys(doc)) {
		if r.known != nil && !slices.Contains(r.known, key) {
			r.Warnings = append(r.Warnings, fmt.Sprintf("unknown key %q in %s", key, l.path))
			continue
		}
		if s := scalarString(doc[key]); s != "" {
			cfg.set(key, s, l.source)
		}
	}
}

func (r *Resolver) readEnv(cfg *Resolved) {
	if r.envPrefix == "" {
		return
	}
	for _, key := range cfg.Keys() {
		if value, ok := os.LookupEnv(EnvName(r.envPrefix, key)); ok && value != "" {
			cfg.set(key, value, SourceEnv)
		}
	}
}

// EnvName returns the environment variable consulted for key.
func EnvName(prefix, key string) string {
	return prefix + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

// scalarString flattens a yaml value into the string form the resolver
// stores. Sequences become comma-separated lists; maps are not supported.
func scalarString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool, int, int64, uint64, float64:
		return fmt.Sprint(val)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := scalarString(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ",")
	}
	return ""
}

// globalConfigPath returns ~/.config/<dir>/<file> for home, or the current
// user's home when home is empty.
func globalConfigPath(home, dir, file string) (string, error) {
	if home == "" {
		var err error
		if home, err = os.UserHomeDir(); err != nil {
			return "", err
		}
	}
	if file == "" {
		file = "config.yaml"
	}
	return filepath.Join(home, ".config", dir, file), nil
}

// findGitRoot walks up from startDir looking for a .git entry.
func findGitRoot(startDir string) string {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
