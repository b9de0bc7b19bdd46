package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/LordBoos/smartclip/internal/detect/emotion"
	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults and the active profile applied. It is a
// convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and the
// active profile, and validates the result. Useful in tests where configs
// are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if cfg.Profiles.Active != "" {
		ApplyProfile(cfg, cfg.Profiles.Active)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found. Conditions that only
// degrade a single detector are logged as warnings instead; the pipeline
// runs with whatever detectors remain usable.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Audio
	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", cfg.Audio.SampleRate))
	}
	if cfg.Audio.FrameSize <= 0 {
		errs = append(errs, fmt.Errorf("audio.frame_size %d must be positive", cfg.Audio.FrameSize))
	}

	// Detector sensitivities
	validateSensitivity(&errs, "detectors.basic_emotion.sensitivity", cfg.Detectors.BasicEmotion.Sensitivity)
	validateSensitivity(&errs, "detectors.acoustic.sensitivity", cfg.Detectors.Acoustic.Sensitivity)
	validateSensitivity(&errs, "detectors.speech.sensitivity", cfg.Detectors.Speech.Sensitivity)

	// Emotion names — unknown names are warnings; the classifier skips them.
	for _, name := range cfg.Detectors.BasicEmotion.Emotions {
		if !emotion.Emotion(name).IsValid() {
			slog.Warn("unknown emotion name — it will be ignored", "emotion", name)
		}
	}

	// Speech detector
	if cfg.Detectors.Speech.Enabled {
		if cfg.Detectors.Speech.ModelPath == "" {
			slog.Warn("detectors.speech.enabled is true but model_path is empty; speech detection will be unavailable")
		}
		if len(cfg.Detectors.Speech.Languages) == 0 {
			slog.Warn("detectors.speech.enabled is true but no languages are configured; speech detection will be unavailable")
		}
		langsSeen := make(map[string]int, len(cfg.Detectors.Speech.Languages))
		for i, lang := range cfg.Detectors.Speech.Languages {
			prefix := fmt.Sprintf("detectors.speech.languages[%d]", i)
			if lang.Language == "" {
				errs = append(errs, fmt.Errorf("%s.language is required", prefix))
			} else if prev, ok := langsSeen[lang.Language]; ok {
				errs = append(errs, fmt.Errorf("%s.language %q is a duplicate of languages[%d]", prefix, lang.Language, prev))
			} else {
				langsSeen[lang.Language] = i
			}
			if len(lang.Phrases) == 0 {
				slog.Warn("speech language has no trigger phrases", "language", lang.Language)
			}
		}
	}

	// Quality
	if cfg.Quality.Threshold < 0 || cfg.Quality.Threshold > 1 {
		errs = append(errs, fmt.Errorf("quality.threshold %.2f is out of range [0, 1]", cfg.Quality.Threshold))
	}
	if cfg.Quality.MinConfidence < 0 || cfg.Quality.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("quality.min_confidence %.2f is out of range [0, 1]", cfg.Quality.MinConfidence))
	}
	if cfg.Quality.MinSecondsBetweenClips < 0 {
		errs = append(errs, fmt.Errorf("quality.min_seconds_between_clips %.1f must not be negative", cfg.Quality.MinSecondsBetweenClips))
	}
	if cfg.Quality.MaxClipsPerHour <= 0 {
		errs = append(errs, fmt.Errorf("quality.max_clips_per_hour %d must be positive", cfg.Quality.MaxClipsPerHour))
	}

	// Pipeline
	if cfg.Pipeline.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.queue_size %d must be positive", cfg.Pipeline.QueueSize))
	}
	if cfg.Pipeline.CooldownSeconds < 0 {
		errs = append(errs, fmt.Errorf("pipeline.cooldown_seconds %.1f must not be negative", cfg.Pipeline.CooldownSeconds))
	}

	// Profiles
	if cfg.Profiles.Active != "" {
		if _, ok := cfg.Profiles.Available[cfg.Profiles.Active]; !ok {
			errs = append(errs, fmt.Errorf("profiles.active %q is not defined in profiles.available", cfg.Profiles.Active))
		}
	}
	for name, p := range cfg.Profiles.Available {
		if p.Sensitivity != nil && (*p.Sensitivity < 0 || *p.Sensitivity > 1) {
			errs = append(errs, fmt.Errorf("profiles.available.%s.sensitivity %.2f is out of range [0, 1]", name, *p.Sensitivity))
		}
	}

	// No detector at all — the pipeline would have nothing to do.
	if !cfg.Detectors.BasicEmotion.Enabled && !cfg.Detectors.Acoustic.Enabled && !cfg.Detectors.Speech.Enabled {
		errs = append(errs, errors.New("no detector is enabled"))
	}

	return errors.Join(errs...)
}

func validateSensitivity(errs *[]error, field string, v float64) {
	if v < 0 || v > 1 {
		*errs = append(*errs, fmt.Errorf("%s %.2f is out of range [0, 1]", field, v))
	}
}
