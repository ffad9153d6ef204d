// Package config resolves genstage configuration from layered sources.
//
// Precedence, highest first:
//  1. Command-line flags (ResolveWithFlags)
//  2. GENSTAGE_* environment variables
//  3. .genstage.yaml in the git root
//  4. ~/.config/genstage/config.yaml
//  5. Built-in defaults
//
// # Basic Usage
//
//	resolved := config.NewGenstageResolver(".").ResolveWithFlags(map[string]string{
//	    config.KeyMode: flagMode,
//	})
//	settings, err := config.Load(resolved)
//
// Each resolved value tracks where it came from (default, global, local,
// env or flag), and Load names that source when a value is malformed.
//
// The generic Resolver and SaveConfig types work for any key set; the
// genstage layout is wired by NewGenstageResolver and NewGenstageSaver.
package config
