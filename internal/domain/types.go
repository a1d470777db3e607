package domain

import (
	"fmt"
	"time"
)

// SessionStatus models the live session lifecycle.
type SessionStatus string

const (
	SessionStatusIdle         SessionStatus = "idle"
	SessionStatusProvisioning SessionStatus = "provisioning"
	SessionStatusConnecting   SessionStatus = "connecting"
	SessionStatusLive         SessionStatus = "live"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonReady              SessionStateReason = "ready"
	SessionReasonProvisioning       SessionStateReason = "provisioning"
	SessionReasonConnecting         SessionStateReason = "connecting"
	SessionReasonResuming           SessionStateReason = "resuming"
	SessionReasonConnected          SessionStateReason = "connected"
	SessionReasonStopped            SessionStateReason = "stopped"
	SessionReasonCancelled          SessionStateReason = "cancelled"
	SessionReasonRemoteClosed       SessionStateReason = "remote_closed"
	SessionReasonTransportFailed    SessionStateReason = "transport_failed"
	SessionReasonProvisioningFailed SessionStateReason = "provisioning_failed"
	SessionReasonCredentialExpired  SessionStateReason = "credential_expired"
	SessionReasonDeviceUnavailable  SessionStateReason = "device_unavailable"
)

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup      ErrorCode = "startup"
	ErrorCodeDeviceAccess ErrorCode = "device_access"
	ErrorCodeProvisioning ErrorCode = "provisioning"
	ErrorCodeTransport    ErrorCode = "transport"
	ErrorCodeAudioStream  ErrorCode = "audio_stream"
	ErrorCodeVideoStream  ErrorCode = "video_stream"
	ErrorCodeDecode       ErrorCode = "decode"
	ErrorCodeTool         ErrorCode = "tool"
	ErrorCodeRules        ErrorCode = "rules"
	ErrorCodeClipboard    ErrorCode = "clipboard"
)

// TranscriptRole identifies who produced a transcript line.
type TranscriptRole string

const (
	TranscriptRoleUser  TranscriptRole = "user"
	TranscriptRoleModel TranscriptRole = "model"
	TranscriptRoleTool  TranscriptRole = "tool"
)

// TranscriptEntry is one line of the interaction transcript.
type TranscriptEntry struct {
	Role TranscriptRole `json:"role"`
	Text string         `json:"text"`
}

// Credential is a short-lived, single-use access token.
type Credential struct {
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Remaining returns the time left before expiry, never negative.
func (c Credential) Remaining(now time.Time) time.Duration {
	left := c.ExpiresAt.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// ToolCall is a function invocation requested by the remote model.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// ToolResult is the answer returned to the model for one ToolCall.
type ToolResult struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// ToolDeclaration describes a locally executable function tool.
type ToolDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// MediaBlob is a transport-ready media payload. Data is base64 encoded.
type MediaBlob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// ExportResult is returned once the transcript is rendered and copied.
type ExportResult struct {
	RawTranscript   string `json:"rawTranscript"`
	FinalTranscript string `json:"finalTranscript"`
	Copied          bool   `json:"copied"`
}

// Snapshot summarizes everything the UI renders.
type Snapshot struct {
	Status              SessionStatus     `json:"status"`
	Active              bool              `json:"active"`
	Muted               bool              `json:"muted"`
	CameraOn            bool              `json:"cameraOn"`
	Transcript          []TranscriptEntry `json:"transcript"`
	Reasoning           string            `json:"reasoning"`
	CredentialSeconds   int               `json:"credentialSeconds"`
	ResumptionAvailable bool              `json:"resumptionAvailable"`
	GoAwaySeconds       int               `json:"goAwaySeconds"`
	InputLevel          float64           `json:"inputLevel"`
	Message             string            `json:"message,omitempty"`
}

// DeviceAccessError reports a denied or unavailable capture device.
type DeviceAccessError struct {
	Device string
	Err    error
}

func (e *DeviceAccessError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s unavailable", e.Device)
	}
	return fmt.Sprintf("%s unavailable: %v", e.Device, e.Err)
}

func (e *DeviceAccessError) Unwrap() error { return e.Err }

// ProvisioningError reports a rejected ephemeral credential request.
type ProvisioningError struct {
	Err error
}

func (e *ProvisioningError) Error() string {
	if e.Err == nil {
		return "credential provisioning failed"
	}
	return fmt.Sprintf("credential provisioning failed: %v", e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }
