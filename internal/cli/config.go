package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/genstage/config"
	gserrors "github.com/randalmurphal/genstage/errors"
)

func newConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and change configuration",
		Long: `Configuration is resolved from, lowest to highest priority: built-in
defaults, ~/.config/genstage/config.yaml, .genstage.yaml in the git root,
GENSTAGE_* environment variables, and command-line flags.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every key with its value and source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadConfigEnv(cmd, rootOpts)
			if err != nil {
				return err
			}
			type entry struct {
				Key    string        `json:"key"`
				Value  string        `json:"value"`
				Source config.Source `json:"source"`
			}
			keys := e.resolved.Keys()
			entries := make([]entry, 0, len(keys))
			for _, k := range keys {
				v, src := e.resolved.Lookup(k)
				entries = append(entries, entry{Key: k, Value: v, Source: src})
			}
			return e.out.emit(entries, func() {
				for _, en := range entries {
					e.out.printf("%-16s %-24s %s\n", en.Key, en.Value, mutedStyle.Render(string(en.Source)))
				}
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print one configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadConfigEnv(cmd, rootOpts)
			if err != nil {
				return err
			}
			if !knownKey(args[0]) {
				return unknownKey(args[0])
			}
			v, src := e.resolved.Lookup(args[0])
			return e.out.emit(map[string]any{"key": args[0], "value": v, "source": src}, func() {
				e.out.println(v)
			})
		},
	})

	var global bool
	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Save a value to the local (default) or global config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadConfigEnv(cmd, rootOpts)
			if err != nil {
				return err
			}
			key, value := args[0], args[1]
			if !knownKey(key) {
				return unknownKey(key)
			}
			if _, err := config.Load(e.resolver.ResolveWithFlags(map[string]string{key: value})); err != nil {
				return WrapExitError(ExitCommandError, "invalid value", err)
			}

			saver := config.NewGenstageSaver()
			where := "local"
			if global {
				where = "global"
				err = saver.SaveGlobal(key, value)
			} else {
				root := e.resolver.ProjectRoot()
				if root == "" {
					return NewExitError(ExitCommandError, "not in a git repository; use --global")
				}
				err = saver.SaveLocal(root, key, value)
			}
			if err != nil {
				return gserrors.IO("save config", err)
			}
			return e.out.emit(map[string]string{"key": key, "value": value, "scope": where}, func() {
				e.out.printf("%s %s = %s %s\n", successStyle.Render("Set"), key, value, mutedStyle.Render("("+where+")"))
			})
		},
	}
	set.Flags().BoolVar(&global, "global", false, "write ~/.config/genstage/config.yaml")
	cmd.AddCommand(set)

	cmd.AddCommand(&cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a value from the global config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadConfigEnv(cmd, rootOpts)
			if err != nil {
				return err
			}
			if !knownKey(args[0]) {
				return unknownKey(args[0])
			}
			if err := config.NewGenstageSaver().DeleteGlobalKey(args[0]); err != nil {
				return gserrors.IO("save config", err)
			}
			return e.out.emit(map[string]string{"unset": args[0]}, func() {
				e.out.printf("%s %s\n", successStyle.Render("Unset"), args[0])
			})
		},
	})

	return cmd
}

func knownKey(key string) bool {
	for _, k := range config.Keys() {
		if k == key {
			return true
		}
	}
	return false
}

func unknownKey(key string) error {
	return NewExitError(ExitCommandError, fmt.Sprintf("unknown config key %q; see 'genstage config list'", key))
}
