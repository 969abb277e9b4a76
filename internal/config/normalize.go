package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeScanner()
	c.normalizeWatcher()
	c.normalizeCorrelator()
	c.normalizeSimilarity()
	c.normalizeNotifications()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeScanner() {
	if len(c.Scanner.ExcludedDirNames) == 0 {
		c.Scanner.ExcludedDirNames = defaultExcludedDirNames()
	}
	cleaned := make([]string, 0, len(c.Scanner.ExcludedDirNames))
	for _, name := range c.Scanner.ExcludedDirNames {
		if name = strings.TrimSpace(name); name != "" {
			cleaned = append(cleaned, name)
		}
	}
	c.Scanner.ExcludedDirNames = cleaned
}

func (c *Config) normalizeWatcher() {
	c.Watcher.DebounceMillis = clampInt(c.Watcher.DebounceMillis, 100, 10000, defaultDebounceMillis)
	c.Watcher.BackoffInitialSeconds = clampInt(c.Watcher.BackoffInitialSeconds, 1, 60, defaultBackoffInitialSeconds)
	c.Watcher.BackoffMaxSeconds = clampInt(c.Watcher.BackoffMaxSeconds, c.Watcher.BackoffInitialSeconds, 3600, defaultBackoffMaxSeconds)
	c.Watcher.DegradedAfterFailures = clampInt(c.Watcher.DegradedAfterFailures, 1, 100, defaultDegradedAfterFailures)
}

func (c *Config) normalizeCorrelator() {
	if len(c.Correlator.AudioExtensions) == 0 {
		c.Correlator.AudioExtensions = defaultAudioExtensions()
	}
	normalized := make([]string, 0, len(c.Correlator.AudioExtensions))
	for _, ext := range c.Correlator.AudioExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized = append(normalized, ext)
	}
	c.Correlator.AudioExtensions = normalized

	if len(c.Correlator.ExportDirNames) == 0 {
		c.Correlator.ExportDirNames = defaultExportDirNames()
	}
	if c.Correlator.RecencyWindowHours <= 0 {
		c.Correlator.RecencyWindowHours = defaultRecencyWindowHours
	}
}

func (c *Config) normalizeSimilarity() {
	if c.Similarity.TempoToleranceBPM <= 0 {
		c.Similarity.TempoToleranceBPM = defaultTempoToleranceBPM
	}
	if c.Similarity.FeatureCacheTTLMinutes <= 0 {
		c.Similarity.FeatureCacheTTLMinutes = defaultFeatureCacheTTL
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyRequestTimeout
	}
}

func clampInt(value, low, high, fallback int) int {
	if value == 0 {
		return fallback
	}
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
