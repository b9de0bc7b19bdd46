// Command smartclip is the SmartClip detection service. It reads live PCM
// audio, runs the emotion, acoustic, and speech detectors over it, and
// publishes rate-limited clip triggers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LordBoos/smartclip/internal/clips"
	"github.com/LordBoos/smartclip/internal/config"
	"github.com/LordBoos/smartclip/internal/detect"
	"github.com/LordBoos/smartclip/internal/detect/acoustic"
	"github.com/LordBoos/smartclip/internal/detect/emotion"
	"github.com/LordBoos/smartclip/internal/detect/speech"
	"github.com/LordBoos/smartclip/internal/detect/speech/whisper"
	"github.com/LordBoos/smartclip/internal/health"
	"github.com/LordBoos/smartclip/internal/observe"
	"github.com/LordBoos/smartclip/internal/pipeline"
	"github.com/LordBoos/smartclip/internal/quality"
	"github.com/LordBoos/smartclip/pkg/audio"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "smartclip: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "smartclip: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("smartclip starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "smartclip",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Detectors ─────────────────────────────────────────────────────────────
	var (
		classifiers []pipeline.Classifier
		checkers    []health.Checker
		basicCls    *emotion.Classifier
		acousticCls *acoustic.Classifier
		speechCls   *speech.Matcher
		recognizer  *whisper.Recognizer
	)

	if cfg.Detectors.BasicEmotion.Enabled {
		basicCls = emotion.New(
			cfg.Audio.SampleRate,
			emotionList(cfg.Detectors.BasicEmotion.Emotions),
			cfg.Detectors.BasicEmotion.Sensitivity,
		)
		cl := pipeline.NewSyncClassifier(detect.KindBasicEmotion, basicCls.Classify)
		classifiers = append(classifiers, cl)
		checkers = append(checkers, health.DetectorChecker("basic_emotion", cl.Available))
		slog.Info("detector enabled", "detector", detect.KindBasicEmotion)
	}

	if cfg.Detectors.Acoustic.Enabled {
		backend, err := acoustic.NewDSPBackend(cfg.Audio.SampleRate)
		if err != nil {
			slog.Warn("acoustic detector unavailable", "err", err)
		} else if acousticCls, err = acoustic.New(backend, cfg.Audio.SampleRate, cfg.Detectors.Acoustic.Sensitivity); err != nil {
			slog.Warn("acoustic detector unavailable", "err", err)
		} else {
			classifiers = append(classifiers, acousticCls)
			checkers = append(checkers, health.DetectorChecker("acoustic", acousticCls.Available))
			slog.Info("detector enabled", "detector", detect.KindAcousticML)
		}
	}

	if cfg.Detectors.Speech.Enabled {
		speechCls, recognizer = buildSpeechMatcher(ctx, cfg)
		if speechCls != nil {
			classifiers = append(classifiers, speechCls)
			checkers = append(checkers, health.DetectorChecker("speech", speechCls.Available))
			slog.Info("detector enabled", "detector", detect.KindSpeech)
		}
	}
	if recognizer != nil {
		defer func() {
			if err := recognizer.Close(); err != nil {
				slog.Warn("recognizer close error", "err", err)
			}
		}()
	}

	if len(classifiers) == 0 {
		slog.Error("no detector could be started")
		return 1
	}

	// ── Scoring, clips, pipeline ──────────────────────────────────────────────
	scorer := quality.NewScorer(quality.Config{
		Threshold:           cfg.Quality.Threshold,
		MinConfidence:       cfg.Quality.MinConfidence,
		MinTimeBetweenClips: cfg.Quality.MinTimeBetweenClips(),
		MaxClipsPerHour:     cfg.Quality.MaxClipsPerHour,
	})

	manager := clips.NewManager(
		clips.WithHistoryPath(cfg.Clips.HistoryPath),
		clips.WithMaxHistory(cfg.Clips.MaxHistory),
		clips.WithStreamTitle(cfg.Clips.StreamTitle),
	)

	bus := evbus.New()
	if err := bus.Subscribe(pipeline.TopicClipTrigger, func(ev pipeline.TriggerEvent) {
		slog.Info("clip trigger",
			"label", ev.Label,
			"detector", ev.Detector,
			"confidence", ev.Confidence,
		)
	}); err != nil {
		slog.Error("failed to subscribe to trigger topic", "err", err)
		return 1
	}

	monitor := audio.NewLevelMonitor(100)
	coord, err := pipeline.New(scorer, classifiers,
		pipeline.WithBus(bus),
		pipeline.WithSink(manager),
		pipeline.WithLevelMonitor(monitor),
		pipeline.WithQueueSize(cfg.Pipeline.QueueSize),
		pipeline.WithCooldown(cfg.Pipeline.Cooldown()),
		pipeline.WithStopTimeout(cfg.Pipeline.StopTimeout()),
	)
	if err != nil {
		slog.Error("failed to build pipeline", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		applyReload(config.Diff(old, new), new, level, basicCls, acousticCls, speechCls)
	})
	if err != nil {
		slog.Warn("config hot reload unavailable", "err", err)
	} else {
		defer watcher.Stop()
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	var server *http.Server
	if cfg.Server.ListenAddr != "" {
		server = newServer(cfg.Server.ListenAddr, checkers, coord, manager, monitor, scorer)
		go func() {
			slog.Info("http server listening", "addr", cfg.Server.ListenAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http server error", "err", err)
			}
		}()
	}

	// ── Audio source ──────────────────────────────────────────────────────────
	input, closeInput, err := openInput(cfg.Audio.Input)
	if err != nil {
		slog.Error("failed to open audio input", "err", err)
		return 1
	}
	defer closeInput()

	source, err := audio.NewReaderSource(input,
		audio.WithSampleRate(cfg.Audio.SampleRate),
		audio.WithFrameSize(cfg.Audio.FrameSize),
	)
	if err != nil {
		slog.Error("failed to build audio source", "err", err)
		return 1
	}

	printStartupSummary(cfg, len(classifiers))

	// ── Run ───────────────────────────────────────────────────────────────────
	coord.Start(ctx)
	slog.Info("pipeline ready — press Ctrl+C to shut down")

	frames, err := source.Frames(ctx)
	if err != nil {
		slog.Error("failed to start audio capture", "err", err)
		return 1
	}
	for frame := range frames {
		coord.Ingest(frame)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("audio input finished, stopping…")

	if err := coord.Stop(); err != nil {
		slog.Warn("pipeline stop error", "err", err)
	}
	if server != nil {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shCtx); err != nil {
			slog.Warn("http server shutdown error", "err", err)
		}
	}
	slog.Info("goodbye")
	return 0
}

// buildSpeechMatcher loads the whisper model and opens the per-language
// sessions. Any failure degrades the speech detector instead of aborting
// startup.
func buildSpeechMatcher(ctx context.Context, cfg *config.Config) (*speech.Matcher, *whisper.Recognizer) {
	sc := cfg.Detectors.Speech
	if sc.ModelPath == "" || len(sc.Languages) == 0 {
		slog.Warn("speech detector unavailable: model_path and languages are required")
		return nil, nil
	}

	rec, err := whisper.New(sc.ModelPath)
	if err != nil {
		slog.Warn("speech detector unavailable", "err", err)
		return nil, nil
	}

	langs := make([]speech.LanguageConfig, 0, len(sc.Languages))
	for _, l := range sc.Languages {
		langs = append(langs, speech.LanguageConfig{
			Language: l.Language,
			Phrases:  l.Phrases,
		})
	}
	matcher, err := speech.NewMatcher(ctx, rec, speech.MatcherConfig{
		SampleRate:  cfg.Audio.SampleRate,
		Sensitivity: sc.Sensitivity,
		Languages:   langs,
	})
	if err != nil {
		slog.Warn("speech detector unavailable", "err", err)
		if cerr := rec.Close(); cerr != nil {
			slog.Warn("recognizer close error", "err", cerr)
		}
		return nil, nil
	}
	return matcher, rec
}

// applyReload pushes hot-reloadable config changes into the running
// components.
func applyReload(d config.ChangeSet, cfg *config.Config, level *slog.LevelVar,
	basic *emotion.Classifier, ac *acoustic.Classifier, sp *speech.Matcher) {

	if !d.Any() {
		return
	}
	if d.LogLevelChanged {
		level.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.BasicSensitivityChanged && basic != nil {
		basic.SetSensitivity(cfg.Detectors.BasicEmotion.Sensitivity)
		slog.Info("sensitivity changed", "detector", detect.KindBasicEmotion,
			"sensitivity", cfg.Detectors.BasicEmotion.Sensitivity)
	}
	if d.AcousticSensitivityChanged && ac != nil {
		ac.SetSensitivity(cfg.Detectors.Acoustic.Sensitivity)
		slog.Info("sensitivity changed", "detector", detect.KindAcousticML,
			"sensitivity", cfg.Detectors.Acoustic.Sensitivity)
	}
	if d.SpeechSensitivityChanged && sp != nil {
		sp.SetSensitivity(cfg.Detectors.Speech.Sensitivity)
		slog.Info("sensitivity changed", "detector", detect.KindSpeech,
			"sensitivity", cfg.Detectors.Speech.Sensitivity)
	}
	if d.QualityChanged || d.StreamTitleChanged {
		slog.Warn("quality and clip settings need a restart to take effect")
	}
}

// newServer assembles the HTTP endpoint: health probes, Prometheus
// metrics, and the stats dashboard JSON.
func newServer(addr string, checkers []health.Checker,
	coord *pipeline.Coordinator, manager *clips.Manager,
	monitor *audio.LevelMonitor, scorer *quality.Scorer) *http.Server {

	mux := http.NewServeMux()
	health.New(checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /statsz", func(w http.ResponseWriter, _ *http.Request) {
		health.WriteJSON(w, http.StatusOK, map[string]any{
			"pipeline":  coord.Stats(),
			"clips":     manager.Stats(),
			"audio":     monitor.Snapshot(),
			"decisions": scorer.Decisions(),
		})
	})

	return &http.Server{
		Addr:              addr,
		Handler:           observe.Middleware(observe.DefaultMetrics())(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// openInput opens the configured PCM input. "-" means stdin.
func openInput(input string) (io.Reader, func(), error) {
	if input == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(input)
	if err != nil {
		return nil, nil, fmt.Errorf("open %q: %w", input, err)
	}
	return f, func() {
		if err := f.Close(); err != nil {
			slog.Warn("audio input close error", "err", err)
		}
	}, nil
}

// emotionList converts configured emotion names to typed values, dropping
// unknown names.
func emotionList(names []string) []emotion.Emotion {
	out := make([]emotion.Emotion, 0, len(names))
	for _, n := range names {
		e := emotion.Emotion(n)
		if e.IsValid() {
			out = append(out, e)
		}
	}
	return out
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, detectors int) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        SmartClip — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Detectors", fmt.Sprintf("%d enabled", detectors))
	printRow("Sample rate", fmt.Sprintf("%d Hz", cfg.Audio.SampleRate))
	printRow("Frame size", fmt.Sprintf("%d samples", cfg.Audio.FrameSize))
	printRow("Input", cfg.Audio.Input)
	printRow("Max clips/hour", fmt.Sprintf("%d", cfg.Quality.MaxClipsPerHour))
	if cfg.Profiles.Active != "" {
		printRow("Profile", cfg.Profiles.Active)
	}
	if cfg.Server.ListenAddr != "" {
		printRow("Listen addr", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(label, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", label, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
