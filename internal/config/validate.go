package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateCorrelator(); err != nil {
		return err
	}
	if err := c.validateSimilarity(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateCorrelator() error {
	if c.Correlator.FuzzyCutoff < 0 || c.Correlator.FuzzyCutoff > 1 {
		return errors.New("correlator.fuzzy_cutoff must be between 0 and 1")
	}
	if c.Correlator.TokenBandLow < 0 || c.Correlator.TokenBandLow > 1 {
		return errors.New("correlator.token_band_low must be between 0 and 1")
	}
	if c.Correlator.TokenBandHigh < c.Correlator.TokenBandLow || c.Correlator.TokenBandHigh > 1 {
		return errors.New("correlator.token_band_high must be between token_band_low and 1")
	}
	// Fuzzy confidences are rescaled into [fuzzy_cutoff, token_band_low); an
	// inverted range would assign fuzzy matches confidences below the cutoff.
	if c.Correlator.FuzzyCutoff >= c.Correlator.TokenBandLow {
		return errors.New("correlator.fuzzy_cutoff must be below token_band_low")
	}
	if len(c.Correlator.AudioExtensions) == 0 {
		return errors.New("correlator.audio_extensions must not be empty")
	}
	return nil
}

func (c *Config) validateSimilarity() error {
	weights := map[string]float64{
		"similarity.plugin_weight":    c.Similarity.PluginWeight,
		"similarity.device_weight":    c.Similarity.DeviceWeight,
		"similarity.tempo_weight":     c.Similarity.TempoWeight,
		"similarity.structure_weight": c.Similarity.StructureWeight,
		"similarity.feature_weight":   c.Similarity.FeatureWeight,
	}
	total := 0.0
	for name, weight := range weights {
		if weight < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
		total += weight
	}
	if total <= 0 {
		return errors.New("similarity weights must not all be zero")
	}
	if c.Similarity.MinScore < 0 || c.Similarity.MinScore > 1 {
		return errors.New("similarity.min_score must be between 0 and 1")
	}
	return nil
}
