package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"livemic/internal/domain"
)

func TestBuildSuccess(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("LIVEMIC_RULES_FILE", "")

	services, err := Build(noopEventSink{}, noopClipboard{}, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if services.Controller == nil {
		t.Fatalf("expected controller")
	}
	if got := len(services.Tools.Declarations()); got != 2 {
		t.Fatalf("expected builtin tools, got %d", got)
	}
	if snapshot := services.Controller.Snapshot(); snapshot.Status != domain.SessionStatusIdle {
		t.Fatalf("expected idle controller, got %s", snapshot.Status)
	}
}

func TestBuildFailsOnInvalidRules(t *testing.T) {
	home := t.TempDir()
	rules := filepath.Join(home, "bad.rules")
	if err := os.WriteFile(rules, []byte("not a valid rule\n"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	t.Setenv("HOME", home)
	t.Setenv("LIVEMIC_RULES_FILE", rules)

	_, err := Build(noopEventSink{}, noopClipboard{}, nil)
	if err == nil {
		t.Fatalf("expected build error due to invalid rules")
	}
}

type noopEventSink struct{}

func (noopEventSink) SessionStateChanged(_ domain.SessionStatus, _ domain.SessionStateReason) {}
func (noopEventSink) TranscriptChanged(_ []domain.TranscriptEntry)                            {}
func (noopEventSink) ReasoningChanged(_ string)                                               {}
func (noopEventSink) InputLevel(_ float64)                                                    {}
func (noopEventSink) CredentialCountdown(_ time.Duration)                                     {}
func (noopEventSink) GoAway(_ time.Duration)                                                  {}
func (noopEventSink) SessionError(_ domain.ErrorCode, _ string)                               {}

type noopClipboard struct{}

func (noopClipboard) SetText(_ context.Context, _ string) error { return nil }
