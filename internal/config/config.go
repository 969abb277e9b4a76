package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Scanner contains configuration for file enumeration.
type Scanner struct {
	// ExcludedDirNames are directory names skipped during enumeration.
	// Matched case-insensitively against the directory base name.
	ExcludedDirNames []string `toml:"excluded_dir_names"`
	FollowSymlinks   bool     `toml:"follow_symlinks"`
}

// Watcher contains configuration for filesystem change watching.
type Watcher struct {
	DebounceMillis        int  `toml:"debounce_millis"`
	BackoffInitialSeconds int  `toml:"backoff_initial_seconds"`
	BackoffMaxSeconds     int  `toml:"backoff_max_seconds"`
	DegradedAfterFailures int  `toml:"degraded_after_failures"`
	VolumeMonitor         bool `toml:"volume_monitor"`
}

// Correlator contains configuration for export-to-project link matching.
type Correlator struct {
	// FuzzyCutoff discards fuzzy-tier candidates scoring below it entirely.
	FuzzyCutoff float64 `toml:"fuzzy_cutoff"`
	// TokenBandLow and TokenBandHigh bound the confidence assigned to
	// token-overlap matches.
	TokenBandLow  float64 `toml:"token_band_low"`
	TokenBandHigh float64 `toml:"token_band_high"`
	// AudioExtensions is the recognized set of export container extensions.
	AudioExtensions []string `toml:"audio_extensions"`
	// ExportDirNames are folder names treated as export destinations for the
	// path-proximity bonus.
	ExportDirNames []string `toml:"export_dir_names"`
	// RecencyWindowHours bounds the mtime delta granting the recency bonus.
	RecencyWindowHours int `toml:"recency_window_hours"`
}

// Similarity contains the weighted sub-metric configuration for project
// similarity ranking.
type Similarity struct {
	PluginWeight      float64 `toml:"plugin_weight"`
	DeviceWeight      float64 `toml:"device_weight"`
	TempoWeight       float64 `toml:"tempo_weight"`
	StructureWeight   float64 `toml:"structure_weight"`
	FeatureWeight     float64 `toml:"feature_weight"`
	TempoToleranceBPM float64 `toml:"tempo_tolerance_bpm"`
	MinScore          float64 `toml:"min_score"`
	// FeatureCacheTTLMinutes bounds how long computed feature vectors stay
	// cached before recomputation.
	FeatureCacheTTLMinutes int `toml:"feature_cache_ttl_minutes"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	ScanComplete   bool   `toml:"scan_complete"`
	Errors         bool   `toml:"errors"`
	Degraded       bool   `toml:"degraded"`
}

// Config encapsulates all configuration values for setlist.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Logging: log format and level
//   - Scanner: enumeration exclusion rules
//   - Watcher: debounce window and resubscription backoff
//   - Correlator: export link matching cutoffs and recognized formats
//   - Similarity: sub-metric weights and tolerances
//   - Notifications: ntfy push notification settings
type Config struct {
	Paths         Paths         `toml:"paths"`
	Logging       Logging       `toml:"logging"`
	Scanner       Scanner       `toml:"scanner"`
	Watcher       Watcher       `toml:"watcher"`
	Correlator    Correlator    `toml:"correlator"`
	Similarity    Similarity    `toml:"similarity"`
	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/setlist/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and numeric fields clamped. The second
// return is the resolved path, the third reports whether a file was found.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		path = strings.TrimSpace(os.Getenv("SETLIST_CONFIG"))
	}
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err = os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories when missing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite index file path under the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "index.db")
}

// LockPath returns the daemon lock file path under the data directory.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "setlist.lock")
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
