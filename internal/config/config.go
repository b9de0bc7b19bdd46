// Package config defines the YAML configuration schema, validation, and
// hot-reload support for the SmartClip service.
package config

import "time"

// LogLevel is the minimum severity emitted by the logger.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a known log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Audio     AudioConfig     `yaml:"audio"`
	Detectors DetectorsConfig `yaml:"detectors"`
	Quality   QualityConfig   `yaml:"quality"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Clips     ClipsConfig     `yaml:"clips"`
	Profiles  ProfilesConfig  `yaml:"profiles"`
}

// ServerConfig configures the HTTP endpoint and logging.
type ServerConfig struct {
	// ListenAddr is the address for the health/metrics/stats endpoint.
	// Empty disables the HTTP server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel is the minimum log severity. Default: info.
	LogLevel LogLevel `yaml:"log_level"`
}

// AudioConfig configures the capture input.
type AudioConfig struct {
	// SampleRate of the incoming PCM stream in Hz. Default 16000.
	SampleRate int `yaml:"sample_rate"`

	// FrameSize is the number of samples per frame. Default 1024.
	FrameSize int `yaml:"frame_size"`

	// Input is the PCM source: "-" for stdin or a path to a pipe/file.
	// Default "-".
	Input string `yaml:"input"`
}

// DetectorsConfig configures the three detectors.
type DetectorsConfig struct {
	BasicEmotion BasicEmotionConfig `yaml:"basic_emotion"`
	Acoustic     AcousticConfig     `yaml:"acoustic"`
	Speech       SpeechConfig       `yaml:"speech"`
}

// BasicEmotionConfig configures the heuristic emotion classifier.
type BasicEmotionConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Sensitivity float64 `yaml:"sensitivity"`

	// Emotions lists the enabled emotion names. Empty enables the
	// default positive set.
	Emotions []string `yaml:"emotions"`
}

// AcousticConfig configures the windowed acoustic classifier.
type AcousticConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Sensitivity float64 `yaml:"sensitivity"`
}

// SpeechConfig configures the trigger-phrase matcher.
type SpeechConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Sensitivity float64 `yaml:"sensitivity"`

	// ModelPath is the whisper.cpp model file.
	ModelPath string `yaml:"model_path"`

	// Languages lists the recognition languages and their phrases.
	Languages []LanguageConfig `yaml:"languages"`
}

// LanguageConfig is one recognition language and its trigger phrases.
type LanguageConfig struct {
	Language string   `yaml:"language"`
	Phrases  []string `yaml:"phrases"`
}

// QualityConfig configures clip decision scoring and rate limiting.
type QualityConfig struct {
	// Threshold is the minimum overall quality score. Default 0.7.
	Threshold float64 `yaml:"threshold"`

	// MinConfidence is the minimum raw detector confidence. Default 0.6.
	MinConfidence float64 `yaml:"min_confidence"`

	// MinSecondsBetweenClips is the cooldown after an accepted clip.
	// Default 30.
	MinSecondsBetweenClips float64 `yaml:"min_seconds_between_clips"`

	// MaxClipsPerHour caps accepted clips per rolling hour. Default 12.
	MaxClipsPerHour int `yaml:"max_clips_per_hour"`
}

// MinTimeBetweenClips returns the cooldown as a duration.
func (q QualityConfig) MinTimeBetweenClips() time.Duration {
	return time.Duration(q.MinSecondsBetweenClips * float64(time.Second))
}

// PipelineConfig configures the coordinator.
type PipelineConfig struct {
	// QueueSize bounds each detector's frame queue. Default 100.
	QueueSize int `yaml:"queue_size"`

	// CooldownSeconds is the cross-detector detection cooldown.
	// Default 2.
	CooldownSeconds float64 `yaml:"cooldown_seconds"`

	// StopTimeoutSeconds bounds shutdown waits. Default 5.
	StopTimeoutSeconds float64 `yaml:"stop_timeout_seconds"`
}

// Cooldown returns the cross-detector cooldown as a duration.
func (p PipelineConfig) Cooldown() time.Duration {
	return time.Duration(p.CooldownSeconds * float64(time.Second))
}

// StopTimeout returns the shutdown bound as a duration.
func (p PipelineConfig) StopTimeout() time.Duration {
	return time.Duration(p.StopTimeoutSeconds * float64(time.Second))
}

// ClipsConfig configures clip recording.
type ClipsConfig struct {
	// HistoryPath persists the attempt history. Empty disables
	// persistence.
	HistoryPath string `yaml:"history_path"`

	// MaxHistory bounds the retained attempts. Default 1000.
	MaxHistory int `yaml:"max_history"`

	// StreamTitle is used in generated clip titles.
	StreamTitle string `yaml:"stream_title"`
}

// ProfilesConfig holds named activity profiles and the active selection.
// A profile overrides detector tuning for one kind of stream content
// (a quiet chatting stream wants different sensitivities than a loud
// shooter).
type ProfilesConfig struct {
	// Active names the profile applied at startup. Empty applies none.
	Active string `yaml:"active"`

	// Available maps profile names to their overrides.
	Available map[string]Profile `yaml:"available"`
}

// Profile overrides parts of the detector tuning. Nil pointer fields leave
// the base configuration untouched.
type Profile struct {
	// Sensitivity overrides every detector's sensitivity.
	Sensitivity *float64 `yaml:"sensitivity"`

	// CooldownSeconds overrides the cross-detector cooldown.
	CooldownSeconds *float64 `yaml:"cooldown_seconds"`

	// Emotions overrides the enabled emotion set.
	Emotions []string `yaml:"emotions"`

	// Phrases overrides trigger phrases per language code.
	Phrases map[string][]string `yaml:"phrases"`
}

// ApplyDefaults fills in unset fields.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.FrameSize == 0 {
		cfg.Audio.FrameSize = 1024
	}
	if cfg.Audio.Input == "" {
		cfg.Audio.Input = "-"
	}
	applySensitivityDefault(&cfg.Detectors.BasicEmotion.Sensitivity)
	applySensitivityDefault(&cfg.Detectors.Acoustic.Sensitivity)
	applySensitivityDefault(&cfg.Detectors.Speech.Sensitivity)
	if cfg.Quality.Threshold == 0 {
		cfg.Quality.Threshold = 0.7
	}
	if cfg.Quality.MinConfidence == 0 {
		cfg.Quality.MinConfidence = 0.6
	}
	if cfg.Quality.MinSecondsBetweenClips == 0 {
		cfg.Quality.MinSecondsBetweenClips = 30
	}
	if cfg.Quality.MaxClipsPerHour == 0 {
		cfg.Quality.MaxClipsPerHour = 12
	}
	if cfg.Pipeline.QueueSize == 0 {
		cfg.Pipeline.QueueSize = 100
	}
	if cfg.Pipeline.CooldownSeconds == 0 {
		cfg.Pipeline.CooldownSeconds = 2
	}
	if cfg.Pipeline.StopTimeoutSeconds == 0 {
		cfg.Pipeline.StopTimeoutSeconds = 5
	}
	if cfg.Clips.MaxHistory == 0 {
		cfg.Clips.MaxHistory = 1000
	}
}

func applySensitivityDefault(s *float64) {
	if *s == 0 {
		*s = 0.5
	}
}

// ApplyProfile overlays the named profile onto cfg. Unknown names are a
// no-op; Validate reports them.
func ApplyProfile(cfg *Config, name string) {
	p, ok := cfg.Profiles.Available[name]
	if !ok {
		return
	}
	if p.Sensitivity != nil {
		cfg.Detectors.BasicEmotion.Sensitivity = *p.Sensitivity
		cfg.Detectors.Acoustic.Sensitivity = *p.Sensitivity
		cfg.Detectors.Speech.Sensitivity = *p.Sensitivity
	}
	if p.CooldownSeconds != nil {
		cfg.Pipeline.CooldownSeconds = *p.CooldownSeconds
	}
	if len(p.Emotions) > 0 {
		cfg.Detectors.BasicEmotion.Emotions = p.Emotions
	}
	if len(p.Phrases) > 0 {
		for i, lang := range cfg.Detectors.Speech.Languages {
			if phrases, ok := p.Phrases[lang.Language]; ok {
				cfg.Detectors.Speech.Languages[i].Phrases = phrases
			}
		}
	}
}
