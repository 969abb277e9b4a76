package config

const (
	defaultDataDir               = "~/.local/share/setlist"
	defaultLogDir                = "~/.local/share/setlist/logs"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultDebounceMillis        = 1000
	defaultBackoffInitialSeconds = 1
	defaultBackoffMaxSeconds     = 120
	defaultDegradedAfterFailures = 5
	defaultFuzzyCutoff           = 0.6
	defaultTokenBandLow          = 0.80
	defaultTokenBandHigh         = 0.95
	defaultRecencyWindowHours    = 48
	defaultTempoToleranceBPM     = 30.0
	defaultFeatureCacheTTL       = 30
	defaultNtfyRequestTimeout    = 10
)

func defaultExcludedDirNames() []string {
	return []string{
		"Backup",
		"Samples",
		"Ableton Project Info",
		".git",
		".svn",
		"node_modules",
	}
}

func defaultAudioExtensions() []string {
	return []string{".wav", ".aif", ".aiff", ".flac", ".mp3", ".ogg", ".m4a"}
}

func defaultExportDirNames() []string {
	return []string{"Exports", "Renders", "Bounces", "Mixdowns"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Scanner: Scanner{
			ExcludedDirNames: defaultExcludedDirNames(),
		},
		Watcher: Watcher{
			DebounceMillis:        defaultDebounceMillis,
			BackoffInitialSeconds: defaultBackoffInitialSeconds,
			BackoffMaxSeconds:     defaultBackoffMaxSeconds,
			DegradedAfterFailures: defaultDegradedAfterFailures,
			VolumeMonitor:         true,
		},
		Correlator: Correlator{
			FuzzyCutoff:        defaultFuzzyCutoff,
			TokenBandLow:       defaultTokenBandLow,
			TokenBandHigh:      defaultTokenBandHigh,
			AudioExtensions:    defaultAudioExtensions(),
			ExportDirNames:     defaultExportDirNames(),
			RecencyWindowHours: defaultRecencyWindowHours,
		},
		Similarity: Similarity{
			PluginWeight:           0.30,
			DeviceWeight:           0.25,
			TempoWeight:            0.15,
			StructureWeight:        0.15,
			FeatureWeight:          0.15,
			TempoToleranceBPM:      defaultTempoToleranceBPM,
			MinScore:               0,
			FeatureCacheTTLMinutes: defaultFeatureCacheTTL,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
			ScanComplete:   true,
			Errors:         true,
			Degraded:       true,
		},
	}
}
