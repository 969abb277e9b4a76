// Package config loads, normalizes, and validates setlist configuration.
//
// Configuration is TOML. Load resolves the file from an explicit path, the
// SETLIST_CONFIG environment variable, or ~/.config/setlist/config.toml, in
// that order, and falls back to built-in defaults when no file exists. All
// tunable matching parameters (fuzzy cutoffs, tier bands, similarity weights,
// debounce window) live here rather than as constants in the packages that
// consume them.
package config
