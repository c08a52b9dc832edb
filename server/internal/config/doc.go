// Package config loads and validates buoywatch-server's config.yaml.
//
// Secrets are never stored in the file; fields ending in _env name the
// environment variable that holds the value. Load fills defaults, parses and
// validates. Watch reloads the file on change so rule edits apply without a
// restart.
package config
