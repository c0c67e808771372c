// Package config provides configuration loading and validation for the
// meeting assistant service. It handles YAML-based configuration with
// per-section struct validation.
package config
