package config

// Source indicates where a configuration value came from.
type Source string

// Configuration source constants.
const (
	SourceDefault Source = "default" // built-in default
	SourceGlobal  Source = "global"  // ~/.config/genstage/config.yaml
	SourceLocal   Source = "local"   // .genstage.yaml in the git root
	SourceEnv     Source = "env"     // GENSTAGE_* environment variable
	SourceFlag    Source = "flag"    // command-line flag
)
