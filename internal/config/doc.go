// Package config loads and validates vodstitch configuration.
//
// Configuration is assembled once at startup from three layers, later layers
// winning: built-in defaults, an optional TOML file, and environment
// variables (PORT, DOWNLOAD_DIR, TD_TEMP_DIR/TMPDIR, ADMIN_TOKEN). The
// resulting Config value is passed explicitly to every component that needs
// paths, ports, or limits; nothing else reads the environment.
package config
