// Package config loads the MathAgent runtime configuration from a YAML, JSON
// or TOML file through viper, overlays MATHAGENT_* environment variables and
// resolves relative paths against the config file directory.
package config
