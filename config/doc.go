// Package config handles loading and parsing of configuration from YAML files,
// environment variables and bound command-line flags. It defines the settings
// of the status backend (listen address, state file), the dashboard (backend
// URL, refresh cadence, notification lifetime) and logging.
package config
