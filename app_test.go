package main

import (
	"errors"
	"testing"
	"time"

	"livemic/internal/domain"
)

func TestSessionReasonMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.SessionStateReason]string{
		domain.SessionReasonReady:              "Ready",
		domain.SessionReasonProvisioning:       "Requesting session credential...",
		domain.SessionReasonConnecting:         "Connecting...",
		domain.SessionReasonResuming:           "Resuming previous session...",
		domain.SessionReasonConnected:          "Live",
		domain.SessionReasonStopped:            "Session ended",
		domain.SessionReasonCancelled:          "Connection cancelled",
		domain.SessionReasonRemoteClosed:       "Session closed by server",
		domain.SessionReasonTransportFailed:    "Connection failed",
		domain.SessionReasonProvisioningFailed: "Could not obtain a session credential",
		domain.SessionReasonCredentialExpired:  "Session credential expired",
		domain.SessionReasonDeviceUnavailable:  "Microphone or speaker unavailable",
	}

	for reason, want := range cases {
		t.Run(string(reason), func(t *testing.T) {
			t.Parallel()
			if got := sessionReasonMessage(reason); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := sessionReasonMessage("unknown"); got != "" {
		t.Fatalf("expected empty unknown reason message, got %q", got)
	}
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.ErrorCode]string{
		domain.ErrorCodeStartup:      "Startup failed",
		domain.ErrorCodeDeviceAccess: "Device access denied",
		domain.ErrorCodeProvisioning: "Credential provisioning failed",
		domain.ErrorCodeTransport:    "Connection error",
		domain.ErrorCodeAudioStream:  "Audio streaming issue",
		domain.ErrorCodeVideoStream:  "Video streaming issue",
		domain.ErrorCodeDecode:       "Could not decode model audio",
		domain.ErrorCodeTool:         "Tool call failed",
		domain.ErrorCodeClipboard:    "Clipboard write failed",
		domain.ErrorCodeRules:        "Rules processing failed",
	}
	for code, want := range cases {
		t.Run(string(code), func(t *testing.T) {
			t.Parallel()
			if got := errorMessage(code, "ignored"); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := errorMessage("unknown", "detail"); got != "detail" {
		t.Fatalf("expected detail fallback, got %q", got)
	}
	if got := errorMessage("unknown", ""); got != "Unknown error" {
		t.Fatalf("expected unknown fallback, got %q", got)
	}
}

func TestRequireReady(t *testing.T) {
	t.Parallel()

	app := &App{}
	if err := app.requireReady(); err == nil {
		t.Fatalf("expected uninitialized error")
	}

	bootErr := errors.New("boot")
	app.bootErr = bootErr
	if err := app.requireReady(); !errors.Is(err, bootErr) {
		t.Fatalf("expected boot error, got %v", err)
	}
	if _, err := app.StartLive(); !errors.Is(err, bootErr) {
		t.Fatalf("expected StartLive to surface boot error, got %v", err)
	}
	if _, err := app.ToggleMute(); !errors.Is(err, bootErr) {
		t.Fatalf("expected ToggleMute to surface boot error, got %v", err)
	}
}

func TestGetSnapshotWhenNotInitialized(t *testing.T) {
	t.Parallel()

	app := &App{}
	snapshot := app.GetSnapshot()
	if snapshot.Status != domain.SessionStatusIdle || snapshot.Active {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}

	app.bootErr = errors.New("boot")
	snapshot = app.GetSnapshot()
	if snapshot.Status != domain.SessionStatusIdle || snapshot.Message != "boot" {
		t.Fatalf("unexpected boot snapshot: %+v", snapshot)
	}
	if info := app.GetRuntimeInfo(); info["error"] != "boot" {
		t.Fatalf("expected boot error in runtime info, got %v", info)
	}
}

func TestEventsBeforeStartupAreDropped(t *testing.T) {
	t.Parallel()

	app := &App{}
	app.SessionStateChanged(domain.SessionStatusLive, domain.SessionReasonConnected)
	app.TranscriptChanged([]domain.TranscriptEntry{{Role: domain.TranscriptRoleUser, Text: "hi"}})
	app.ReasoningChanged("thinking")
	app.InputLevel(0.5)
	app.CredentialCountdown(time.Minute)
	app.GoAway(5 * time.Second)
	app.SessionError(domain.ErrorCodeTransport, "boom")
}
