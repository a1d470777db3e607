package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"livemic/internal/bootstrap"
	"livemic/internal/config"
	"livemic/internal/credential"
	"livemic/internal/domain"
	"livemic/internal/ports"
	"livemic/internal/usecase"
)

const (
	eventSession    = "livemic:session"
	eventTranscript = "livemic:transcript"
	eventReasoning  = "livemic:reasoning"
	eventLevel      = "livemic:level"
	eventCredential = "livemic:credential"
	eventGoAway     = "livemic:goaway"
	eventError      = "livemic:error"
)

var _ ports.EventSink = (*App)(nil)

// App is the Wails application root.
type App struct {
	ctx context.Context

	controller *usecase.LiveController
	cfg        config.Config
	toolCount  int
	bootErr    error
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a, &wailsClipboard{}, nil)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.cfg = services.Config
	a.controller = services.Controller
	a.toolCount = len(services.Tools.Declarations())
	a.SessionStateChanged(domain.SessionStatusIdle, domain.SessionReasonReady)
}

func (a *App) shutdown(context.Context) {
	if a.controller == nil {
		return
	}
	_ = a.controller.Stop()
}

// StartLive provisions, connects and starts streaming. Failures are also
// reported through the error event by the controller.
func (a *App) StartLive() (domain.Snapshot, error) {
	if err := a.requireReady(); err != nil {
		return domain.Snapshot{}, err
	}
	if err := a.controller.Start(a.ctx); err != nil {
		return a.controller.Snapshot(), err
	}
	return a.controller.Snapshot(), nil
}

// StopLive ends the current session, or cancels one still connecting.
func (a *App) StopLive() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.Stop()
}

// ToggleMute flips the microphone mute flag and returns the new value.
func (a *App) ToggleMute() (bool, error) {
	if err := a.requireReady(); err != nil {
		return false, err
	}
	return a.controller.ToggleMute(), nil
}

// ToggleCamera flips the camera flag and returns the new value.
func (a *App) ToggleCamera() (bool, error) {
	if err := a.requireReady(); err != nil {
		return false, err
	}
	return a.controller.ToggleCamera()
}

func (a *App) ClearTranscript() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.controller.ClearTranscript()
	return nil
}

// ResetSession forgets the resumption handle and the transcript.
func (a *App) ResetSession() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.ResetSession()
}

// CopyTranscript applies substitution rules and copies the transcript.
func (a *App) CopyTranscript() (domain.ExportResult, error) {
	if err := a.requireReady(); err != nil {
		return domain.ExportResult{}, err
	}
	result, err := a.controller.CopyTranscript(a.ctx)
	if errors.Is(err, usecase.ErrEmptyTranscript) {
		return result, nil
	}
	return result, err
}

// GetSnapshot returns everything the UI renders.
func (a *App) GetSnapshot() domain.Snapshot {
	if a.controller == nil {
		snapshot := domain.Snapshot{Status: domain.SessionStatusIdle}
		if a.bootErr != nil {
			snapshot.Message = a.bootErr.Error()
		}
		return snapshot
	}
	return a.controller.Snapshot()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"provider":         "Gemini Live",
		"model":            a.cfg.Gemini.Model,
		"voice":            a.cfg.Live.Voice,
		"ephemeral":        strconv.FormatBool(a.cfg.Session.Ephemeral),
		"transcription":    strconv.FormatBool(a.cfg.Live.Transcription),
		"tools":            strconv.Itoa(a.toolCount),
		"rulesFile":        a.cfg.Rules.Path,
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
		"camera":           a.cfg.Camera.Device,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// SessionStateChanged emits session lifecycle updates to the frontend.
func (a *App) SessionStateChanged(status domain.SessionStatus, reason domain.SessionStateReason) {
	a.emit(eventSession, map[string]string{
		"status":  string(status),
		"reason":  string(reason),
		"message": sessionReasonMessage(reason),
	})
}

func (a *App) TranscriptChanged(entries []domain.TranscriptEntry) {
	a.emit(eventTranscript, entries)
}

func (a *App) ReasoningChanged(text string) {
	a.emit(eventReasoning, map[string]string{"text": text})
}

func (a *App) InputLevel(level float64) {
	a.emit(eventLevel, map[string]float64{"level": level})
}

func (a *App) CredentialCountdown(remaining time.Duration) {
	a.emit(eventCredential, map[string]int{"seconds": credential.Seconds(remaining)})
}

func (a *App) GoAway(timeLeft time.Duration) {
	a.emit(eventGoAway, map[string]int{"seconds": credential.Seconds(timeLeft)})
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	a.emit(eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func (a *App) emit(name string, payload any) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, name, payload)
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonReady:
		return "Ready"
	case domain.SessionReasonProvisioning:
		return "Requesting session credential..."
	case domain.SessionReasonConnecting:
		return "Connecting..."
	case domain.SessionReasonResuming:
		return "Resuming previous session..."
	case domain.SessionReasonConnected:
		return "Live"
	case domain.SessionReasonStopped:
		return "Session ended"
	case domain.SessionReasonCancelled:
		return "Connection cancelled"
	case domain.SessionReasonRemoteClosed:
		return "Session closed by server"
	case domain.SessionReasonTransportFailed:
		return "Connection failed"
	case domain.SessionReasonProvisioningFailed:
		return "Could not obtain a session credential"
	case domain.SessionReasonCredentialExpired:
		return "Session credential expired"
	case domain.SessionReasonDeviceUnavailable:
		return "Microphone or speaker unavailable"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeDeviceAccess:
		return "Device access denied"
	case domain.ErrorCodeProvisioning:
		return "Credential provisioning failed"
	case domain.ErrorCodeTransport:
		return "Connection error"
	case domain.ErrorCodeAudioStream:
		return "Audio streaming issue"
	case domain.ErrorCodeVideoStream:
		return "Video streaming issue"
	case domain.ErrorCodeDecode:
		return "Could not decode model audio"
	case domain.ErrorCodeTool:
		return "Tool call failed"
	case domain.ErrorCodeClipboard:
		return "Clipboard write failed"
	case domain.ErrorCodeRules:
		return "Rules processing failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}

type wailsClipboard struct{}

func (c *wailsClipboard) SetText(ctx context.Context, text string) error {
	return runtime.ClipboardSetText(ctx, text)
}
