package config

// ChangeSet describes what changed between two configs. Only fields that
// can be safely hot-reloaded are tracked; everything else needs a restart.
type ChangeSet struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// SensitivityChanged is set per detector when its sensitivity moved.
	BasicSensitivityChanged    bool
	AcousticSensitivityChanged bool
	SpeechSensitivityChanged   bool

	// QualityChanged is set when any scoring or rate-limit parameter
	// moved.
	QualityChanged bool

	// StreamTitleChanged is set when the clip title prefix moved.
	StreamTitleChanged bool
}

// Any reports whether the change set contains anything to apply.
func (c ChangeSet) Any() bool {
	return c.LogLevelChanged ||
		c.BasicSensitivityChanged ||
		c.AcousticSensitivityChanged ||
		c.SpeechSensitivityChanged ||
		c.QualityChanged ||
		c.StreamTitleChanged
}

// Diff compares old and new configs and returns what changed. Only tracks
// changes that are safe to apply without restart.
func Diff(old, new *Config) ChangeSet {
	d := ChangeSet{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Detectors.BasicEmotion.Sensitivity != new.Detectors.BasicEmotion.Sensitivity {
		d.BasicSensitivityChanged = true
	}
	if old.Detectors.Acoustic.Sensitivity != new.Detectors.Acoustic.Sensitivity {
		d.AcousticSensitivityChanged = true
	}
	if old.Detectors.Speech.Sensitivity != new.Detectors.Speech.Sensitivity {
		d.SpeechSensitivityChanged = true
	}

	if old.Quality != new.Quality {
		d.QualityChanged = true
	}

	if old.Clips.StreamTitle != new.Clips.StreamTitle {
		d.StreamTitleChanged = true
	}

	return d
}
