// Package config provides configuration loading and validation for the joke coaching service.
// It handles YAML-based configuration over built-in defaults, environment fallbacks for
// API secrets, and exposes the analysis tuning knobs as named values.
package config
