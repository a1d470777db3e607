package ports

import (
	"context"
	"image"
	"io"
	"time"

	"livemic/internal/domain"
	"livemic/internal/pcm"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live microphone capture producing s16le PCM.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// CameraConfig describes how the camera should be captured.
type CameraConfig struct {
	InputFormat string
	Device      string
	Width       int
	Height      int
	FrameRate   int
}

// CameraSession is a live camera feed.
type CameraSession interface {
	// Snapshot returns the most recent frame, or nil before the first frame arrives.
	Snapshot() (image.Image, error)
	Stop() error
}

// CameraCapture creates camera capture sessions.
type CameraCapture interface {
	Start(ctx context.Context, cfg CameraConfig) (CameraSession, error)
}

// AudioSink plays decoded audio chunks.
type AudioSink interface {
	Play(chunk pcm.AudioChunk) error
	// Flush drops audio that was handed to the device but not yet heard.
	Flush() error
	Close() error
}

// SpeakerFactory opens an audio output for one session.
type SpeakerFactory interface {
	Open(ctx context.Context, sampleRate int, channels int) (AudioSink, error)
}

// LiveConfig is the per-connect session configuration.
type LiveConfig struct {
	SystemInstruction string
	Transcription     bool
	ThinkingBudget    int
	SearchTool        bool
	Tools             []domain.ToolDeclaration
	ResumptionHandle  string
	AuthToken         string
	Voice             string
	ResponseModality  string
}

// LiveConnection is an established bidirectional stream to the remote service.
type LiveConnection interface {
	// Events delivers server events in arrival order and is closed when the connection ends.
	Events() <-chan domain.LiveEvent
	SendRealtimeInput(media domain.MediaBlob) error
	SendToolResponse(results []domain.ToolResult) error
	// Wait blocks until the connection ends and returns the transport error, if any.
	Wait() error
	Close() error
}

// LiveProvider opens live connections.
type LiveProvider interface {
	Connect(ctx context.Context, model string, cfg LiveConfig) (LiveConnection, error)
}

// CredentialProvisioner issues short-lived, single-use access tokens.
type CredentialProvisioner interface {
	Provision(ctx context.Context, lifetime time.Duration) (domain.Credential, error)
}

// ToolDispatcher executes locally registered function tools.
type ToolDispatcher interface {
	Declarations() []domain.ToolDeclaration
	Dispatch(ctx context.Context, call domain.ToolCall) domain.ToolResult
}

// RulesEngine transforms exported transcripts using deterministic rules.
type RulesEngine interface {
	Apply(text string) (string, error)
}

// Clipboard writes text into the system clipboard.
type Clipboard interface {
	SetText(ctx context.Context, text string) error
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	SessionStateChanged(status domain.SessionStatus, reason domain.SessionStateReason)
	TranscriptChanged(entries []domain.TranscriptEntry)
	ReasoningChanged(text string)
	InputLevel(level float64)
	CredentialCountdown(remaining time.Duration)
	GoAway(timeLeft time.Duration)
	SessionError(code domain.ErrorCode, detail string)
}
