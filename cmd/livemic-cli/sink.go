package main

import (
	"log/slog"
	"sync"
	"time"

	"livemic/internal/credential"
	"livemic/internal/domain"
	"livemic/internal/ports"
)

var _ ports.EventSink = (*logSink)(nil)

// logSink renders session events as log lines. Transcript entries are logged
// once they are complete, i.e. when a later entry starts.
type logSink struct {
	mu      sync.Mutex
	logger  *slog.Logger
	printed int
}

func (s *logSink) setLogger(logger *slog.Logger) {
	s.mu.Lock()
	s.logger = logger
	s.mu.Unlock()
}

func (s *logSink) log() *slog.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.logger == nil {
		return slog.Default()
	}
	return s.logger
}

func (s *logSink) SessionStateChanged(status domain.SessionStatus, reason domain.SessionStateReason) {
	s.log().Info("session state", "status", status, "reason", reason)
}

func (s *logSink) TranscriptChanged(entries []domain.TranscriptEntry) {
	s.mu.Lock()
	if len(entries) < s.printed {
		s.printed = 0
	}
	var complete []domain.TranscriptEntry
	if done := len(entries) - 1; done > s.printed {
		complete = entries[s.printed:done]
		s.printed = done
	}
	s.mu.Unlock()

	logger := s.log()
	for _, entry := range complete {
		logger.Info("transcript", "role", entry.Role, "text", entry.Text)
	}
}

func (s *logSink) ReasoningChanged(text string) {
	if text == "" {
		return
	}
	s.log().Debug("reasoning", "text", text)
}

func (s *logSink) InputLevel(float64) {}

func (s *logSink) CredentialCountdown(remaining time.Duration) {
	seconds := credential.Seconds(remaining)
	if seconds%60 == 0 || seconds <= 10 {
		s.log().Info("credential remaining", "seconds", seconds)
	}
}

func (s *logSink) GoAway(timeLeft time.Duration) {
	s.log().Warn("server is closing the session", "seconds_left", credential.Seconds(timeLeft))
}

func (s *logSink) SessionError(code domain.ErrorCode, detail string) {
	s.log().Error("session error", "code", code, "detail", detail)
}
