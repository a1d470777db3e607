package bootstrap

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"livemic/internal/audio"
	"livemic/internal/clock"
	"livemic/internal/config"
	"livemic/internal/logging"
	"livemic/internal/metrics"
	"livemic/internal/ports"
	"livemic/internal/providers/gemini"
	"livemic/internal/rules"
	"livemic/internal/tools"
	"livemic/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.LiveController
	Tools      *tools.Registry
	Devices    *tools.DeviceTable
	Metrics    *metrics.Metrics
	Config     config.Config
	Logger     *slog.Logger
}

// Build wires all backend dependencies for the current runtime. A nil
// registerer keeps metrics unregistered.
func Build(eventSink ports.EventSink, clipboard ports.Clipboard, reg prometheus.Registerer) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	logger := logging.Setup(cfg.LogLevel)

	rulesEngine, err := rules.NewEngine(cfg.Rules.Path, cfg.Rules.IterationLimit)
	if err != nil {
		return Services{}, err
	}

	m := metrics.New(reg)
	devices := tools.NewDeviceTable()
	registry := tools.NewRegistry(logging.For("tools"), m)
	if err := tools.RegisterBuiltins(registry, devices); err != nil {
		return Services{}, err
	}

	clk := clock.Real()
	controller := usecase.NewLiveController(
		usecase.Dependencies{
			Audio:    audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand),
			Camera:   audio.NewFFMPEGCamera(cfg.Audio.RecorderCommand),
			Speakers: audio.NewFFPlaySpeakers(cfg.Playback.PlayerCommand),
			Provider: gemini.NewProvider(gemini.Config{
				APIKey:         cfg.Gemini.APIKey,
				URL:            cfg.Gemini.LiveURL,
				ConstrainedURL: cfg.Gemini.ConstrainedURL,
				Model:          cfg.Gemini.Model,
				Logger:         logging.For("gemini"),
			}),
			Credentials: gemini.NewTokenProvisioner(cfg.Gemini.APIKey, clk),
			Tools:       registry,
			Rules:       rulesEngine,
			Clipboard:   clipboard,
			Events:      eventSink,
			Clock:       clk,
			Metrics:     m,
			Logger:      logging.For("session"),
		},
		usecase.Config{
			Model: cfg.Gemini.Model,
			Live: ports.LiveConfig{
				SystemInstruction: cfg.Live.SystemInstruction,
				Transcription:     cfg.Live.Transcription,
				ThinkingBudget:    cfg.Live.ThinkingBudget,
				SearchTool:        cfg.Live.SearchTool,
				Voice:             cfg.Live.Voice,
				ResponseModality:  cfg.Live.ResponseModality,
			},
			Ephemeral:     cfg.Session.Ephemeral,
			TokenLifetime: cfg.Session.TokenLifetime,
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			Camera: ports.CameraConfig{
				InputFormat: cfg.Camera.InputFormat,
				Device:      cfg.Camera.Device,
				Width:       cfg.Camera.Width,
				Height:      cfg.Camera.Height,
				FrameRate:   cfg.Camera.FrameRate,
			},
			FrameSamples:     cfg.Session.FrameSamples,
			VideoInterval:    cfg.Session.VideoInterval,
			OutputSampleRate: cfg.Playback.SampleRate,
		},
	)

	logger.Debug("services assembled", "model", cfg.Gemini.Model, "ephemeral", cfg.Session.Ephemeral, "rules", cfg.Rules.Path)
	return Services{
		Controller: controller,
		Tools:      registry,
		Devices:    devices,
		Metrics:    m,
		Config:     cfg,
		Logger:     logger,
	}, nil
}
