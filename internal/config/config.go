package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores runtime configuration for the live client.
type Config struct {
	Gemini   GeminiConfig
	Live     LiveConfig
	Audio    AudioConfig
	Playback PlaybackConfig
	Camera   CameraConfig
	Rules    RulesConfig
	Session  SessionConfig
	LogLevel string
}

type GeminiConfig struct {
	APIKey         string
	LiveURL        string
	ConstrainedURL string
	Model          string
}

type LiveConfig struct {
	Voice             string
	SystemInstruction string
	Transcription     bool
	ThinkingBudget    int
	SearchTool        bool
	ResponseModality  string
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
}

type PlaybackConfig struct {
	PlayerCommand string
	SampleRate    int
}

type CameraConfig struct {
	InputFormat string
	Device      string
	Width       int
	Height      int
	FrameRate   int
}

type RulesConfig struct {
	Path           string
	IterationLimit int
}

type SessionConfig struct {
	Ephemeral     bool
	TokenLifetime time.Duration
	FrameSamples  int
	VideoInterval time.Duration
}

// Load resolves configuration from .env files, environment variables and
// sensible defaults. Variables already set in the environment win over .env.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	if err := loadDotEnv(".env", filepath.Join(home, ".config", "livemic", ".env")); err != nil {
		return Config{}, err
	}

	rulesPath := strings.TrimSpace(os.Getenv("LIVEMIC_RULES_FILE"))
	if rulesPath == "" {
		rulesPath = filepath.Join(home, ".config", "livemic", "substitutions.rules")
	}

	videoFPS := envOrDefaultInt("LIVEMIC_VIDEO_FPS", 2)
	if videoFPS <= 0 {
		videoFPS = 2
	}

	cfg := Config{
		Gemini: GeminiConfig{
			APIKey:         firstNonEmpty(os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY")),
			LiveURL:        strings.TrimSpace(os.Getenv("LIVEMIC_GEMINI_WS_URL")),
			ConstrainedURL: strings.TrimSpace(os.Getenv("LIVEMIC_GEMINI_CONSTRAINED_WS_URL")),
			Model:          strings.TrimSpace(os.Getenv("LIVEMIC_MODEL")),
		},
		Live: LiveConfig{
			Voice:             envOrDefault("LIVEMIC_VOICE", "Zephyr"),
			SystemInstruction: strings.TrimSpace(os.Getenv("LIVEMIC_SYSTEM_INSTRUCTION")),
			Transcription:     envOrDefaultBool("LIVEMIC_TRANSCRIPTION", true),
			ThinkingBudget:    envOrDefaultInt("LIVEMIC_THINKING_BUDGET", 0),
			SearchTool:        envOrDefaultBool("LIVEMIC_SEARCH_TOOL", false),
			ResponseModality:  envOrDefault("LIVEMIC_RESPONSE_MODALITY", "AUDIO"),
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("LIVEMIC_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     envOrDefault("LIVEMIC_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice:     firstNonEmpty(os.Getenv("LIVEMIC_AUDIO_INPUT_DEVICE"), "default"),
			SampleRate:      16000,
			Channels:        1,
		},
		Playback: PlaybackConfig{
			PlayerCommand: envOrDefault("LIVEMIC_FFPLAY_COMMAND", "ffplay"),
			SampleRate:    24000,
		},
		Camera: CameraConfig{
			InputFormat: envOrDefault("LIVEMIC_CAMERA_INPUT_FORMAT", "v4l2"),
			Device:      envOrDefault("LIVEMIC_CAMERA_DEVICE", "/dev/video0"),
			Width:       640,
			Height:      480,
			FrameRate:   videoFPS,
		},
		Rules: RulesConfig{
			Path:           rulesPath,
			IterationLimit: envOrDefaultInt("LIVEMIC_RULE_ITERATION_LIMIT", 30),
		},
		Session: SessionConfig{
			Ephemeral:     envOrDefaultBool("LIVEMIC_EPHEMERAL", false),
			TokenLifetime: time.Duration(envOrDefaultInt("LIVEMIC_TOKEN_MINUTES", 30)) * time.Minute,
			FrameSamples:  envOrDefaultInt("LIVEMIC_FRAME_SAMPLES", 4096),
			VideoInterval: time.Second / time.Duration(videoFPS),
		},
		LogLevel: firstNonEmpty(os.Getenv("LIVEMIC_LOG_LEVEL"), os.Getenv("LOG_LEVEL"), "info"),
	}

	if cfg.Rules.IterationLimit <= 0 {
		cfg.Rules.IterationLimit = 30
	}
	if cfg.Session.FrameSamples < 256 {
		cfg.Session.FrameSamples = 4096
	}
	if cfg.Session.TokenLifetime <= 0 {
		cfg.Session.TokenLifetime = 30 * time.Minute
	}

	return cfg, nil
}

// loadDotEnv loads the given files in order, skipping missing ones.
func loadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return err
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
