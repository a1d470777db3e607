package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("LIVEMIC_RULES_FILE", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Rules.Path != filepath.Join(home, ".config", "livemic", "substitutions.rules") {
		t.Fatalf("unexpected default rules path: %q", cfg.Rules.Path)
	}
	if cfg.Audio.SampleRate != 16000 || cfg.Audio.Channels != 1 || cfg.Playback.SampleRate != 24000 {
		t.Fatalf("unexpected audio rates: %+v %+v", cfg.Audio, cfg.Playback)
	}
	if !cfg.Live.Transcription || cfg.Live.ResponseModality != "AUDIO" {
		t.Fatalf("unexpected live defaults: %+v", cfg.Live)
	}
	if cfg.Session.Ephemeral || cfg.Session.TokenLifetime != 30*time.Minute {
		t.Fatalf("unexpected session defaults: %+v", cfg.Session)
	}
	if cfg.Session.VideoInterval != 500*time.Millisecond || cfg.Camera.FrameRate != 2 {
		t.Fatalf("expected 2 fps video, got %+v", cfg.Session)
	}
}

func TestLoadRespectsOverridesAndFallbacks(t *testing.T) {
	home := t.TempDir()
	rules := filepath.Join(home, "my.rules")
	if err := os.WriteFile(rules, []byte("x => y\n"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	t.Setenv("HOME", home)
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "google-key")
	t.Setenv("LIVEMIC_GEMINI_WS_URL", "ws://127.0.0.1:9000/live")
	t.Setenv("LIVEMIC_MODEL", "gemini-live-test")
	t.Setenv("LIVEMIC_VOICE", "Puck")
	t.Setenv("LIVEMIC_SYSTEM_INSTRUCTION", "Be brief.")
	t.Setenv("LIVEMIC_TRANSCRIPTION", "off")
	t.Setenv("LIVEMIC_THINKING_BUDGET", "1024")
	t.Setenv("LIVEMIC_SEARCH_TOOL", "yes")
	t.Setenv("LIVEMIC_EPHEMERAL", "true")
	t.Setenv("LIVEMIC_TOKEN_MINUTES", "5")
	t.Setenv("LIVEMIC_FFMPEG_COMMAND", "my-ffmpeg")
	t.Setenv("LIVEMIC_AUDIO_INPUT_FORMAT", "alsa")
	t.Setenv("LIVEMIC_AUDIO_INPUT_DEVICE", "mic0")
	t.Setenv("LIVEMIC_FFPLAY_COMMAND", "my-ffplay")
	t.Setenv("LIVEMIC_CAMERA_DEVICE", "/dev/video2")
	t.Setenv("LIVEMIC_VIDEO_FPS", "4")
	t.Setenv("LIVEMIC_FRAME_SAMPLES", "2048")
	t.Setenv("LIVEMIC_RULES_FILE", rules)
	t.Setenv("LIVEMIC_RULE_ITERATION_LIMIT", "42")
	t.Setenv("LIVEMIC_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Gemini.APIKey != "google-key" || cfg.Gemini.LiveURL != "ws://127.0.0.1:9000/live" || cfg.Gemini.Model != "gemini-live-test" {
		t.Fatalf("unexpected gemini config: %+v", cfg.Gemini)
	}
	if cfg.Live.Voice != "Puck" || cfg.Live.SystemInstruction != "Be brief." || cfg.Live.Transcription {
		t.Fatalf("unexpected live config: %+v", cfg.Live)
	}
	if cfg.Live.ThinkingBudget != 1024 || !cfg.Live.SearchTool {
		t.Fatalf("unexpected thinking/search config: %+v", cfg.Live)
	}
	if !cfg.Session.Ephemeral || cfg.Session.TokenLifetime != 5*time.Minute || cfg.Session.FrameSamples != 2048 {
		t.Fatalf("unexpected session config: %+v", cfg.Session)
	}
	if cfg.Audio.RecorderCommand != "my-ffmpeg" || cfg.Audio.InputFormat != "alsa" || cfg.Audio.InputDevice != "mic0" {
		t.Fatalf("unexpected audio config: %+v", cfg.Audio)
	}
	if cfg.Playback.PlayerCommand != "my-ffplay" {
		t.Fatalf("unexpected playback config: %+v", cfg.Playback)
	}
	if cfg.Camera.Device != "/dev/video2" || cfg.Camera.FrameRate != 4 || cfg.Session.VideoInterval != 250*time.Millisecond {
		t.Fatalf("unexpected camera config: %+v %+v", cfg.Camera, cfg.Session)
	}
	if cfg.Rules.Path != rules || cfg.Rules.IterationLimit != 42 {
		t.Fatalf("unexpected rules config: %+v", cfg.Rules)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("unexpected log level: %q", cfg.LogLevel)
	}
}

func TestLoadInvalidNumericValuesFallback(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LIVEMIC_RULE_ITERATION_LIMIT", "0")
	t.Setenv("LIVEMIC_FRAME_SAMPLES", "5")
	t.Setenv("LIVEMIC_TOKEN_MINUTES", "bad")
	t.Setenv("LIVEMIC_VIDEO_FPS", "-3")
	t.Setenv("LIVEMIC_TRANSCRIPTION", "not-bool")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Rules.IterationLimit != 30 {
		t.Fatalf("expected default iteration limit, got %d", cfg.Rules.IterationLimit)
	}
	if cfg.Session.FrameSamples != 4096 {
		t.Fatalf("expected frame size fallback, got %d", cfg.Session.FrameSamples)
	}
	if cfg.Session.TokenLifetime != 30*time.Minute {
		t.Fatalf("expected default token lifetime, got %s", cfg.Session.TokenLifetime)
	}
	if cfg.Session.VideoInterval != 500*time.Millisecond {
		t.Fatalf("expected default video interval, got %s", cfg.Session.VideoInterval)
	}
	if !cfg.Live.Transcription {
		t.Fatalf("expected default transcription true")
	}
}

func TestLoadReadsDotEnvWithoutOverridingEnvironment(t *testing.T) {
	home := t.TempDir()
	dotenv := filepath.Join(home, ".config", "livemic", ".env")
	if err := os.MkdirAll(filepath.Dir(dotenv), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	content := "LIVEMIC_SYSTEM_INSTRUCTION=from dotenv\nLIVEMIC_MODEL=dotenv-model\n"
	if err := os.WriteFile(dotenv, []byte(content), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	t.Setenv("HOME", home)
	t.Setenv("LIVEMIC_MODEL", "env-model")
	if err := os.Unsetenv("LIVEMIC_SYSTEM_INSTRUCTION"); err != nil {
		t.Fatalf("unsetenv failed: %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("LIVEMIC_SYSTEM_INSTRUCTION") })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Live.SystemInstruction != "from dotenv" {
		t.Fatalf("expected value from .env, got %q", cfg.Live.SystemInstruction)
	}
	if cfg.Gemini.Model != "env-model" {
		t.Fatalf("expected environment to win over .env, got %q", cfg.Gemini.Model)
	}
}
