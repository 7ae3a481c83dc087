// Package config resolves the process-wide settings from multiple sources
// (profile defaults, an optional YAML file, an env file, the process
// environment and CLI flags) with precedence: CLI flags > Environment
// variables > YAML config > Defaults. Settings are resolved once at start-up
// and treated as read-only afterwards.
package config
