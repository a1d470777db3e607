package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"livemic/internal/clock"
	"livemic/internal/credential"
	"livemic/internal/domain"
	"livemic/internal/metrics"
	"livemic/internal/pcm"
	"livemic/internal/playback"
	"livemic/internal/ports"
	"livemic/internal/resumption"
	"livemic/internal/video"
)

var (
	ErrSessionActive    = errors.New("a live session is already active")
	ErrNoActiveSession  = errors.New("no active live session")
	ErrSessionCancelled = errors.New("live session start cancelled")
	ErrEmptyTranscript  = errors.New("transcript is empty")
)

const (
	defaultTokenLifetime    = 30 * time.Minute
	defaultOutputSampleRate = 24000
)

// Config controls live session behavior.
type Config struct {
	Model string
	// Live is the base connect configuration. Tools, resumption handle and
	// auth token are filled in per attempt.
	Live             ports.LiveConfig
	Ephemeral        bool
	TokenLifetime    time.Duration
	Audio            ports.AudioConfig
	Camera           ports.CameraConfig
	FrameSamples     int
	VideoInterval    time.Duration
	OutputSampleRate int
}

// Dependencies are the adapters a LiveController drives.
type Dependencies struct {
	Audio       ports.AudioCapture
	Camera      ports.CameraCapture
	Speakers    ports.SpeakerFactory
	Provider    ports.LiveProvider
	Credentials ports.CredentialProvisioner
	Tools       ports.ToolDispatcher
	Rules       ports.RulesEngine
	Clipboard   ports.Clipboard
	Events      ports.EventSink
	Clock       clock.Clock
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// LiveController owns the live session state machine:
// IDLE -> PROVISIONING -> CONNECTING -> LIVE -> IDLE.
type LiveController struct {
	audio       ports.AudioCapture
	camera      ports.CameraCapture
	speakers    ports.SpeakerFactory
	provider    ports.LiveProvider
	credentials ports.CredentialProvisioner
	tools       ports.ToolDispatcher
	events      ports.EventSink
	clock       clock.Clock
	metrics     *metrics.Metrics
	logger      *slog.Logger
	finalizer   transcriptFinalizer
	encoder     *video.Encoder
	cfg         Config

	resumption *resumption.Tracker
	transcript *transcriptLog

	mu                sync.Mutex
	status            domain.SessionStatus
	current           *activeSession
	muted             bool
	cameraOn          bool
	goAway            time.Duration
	credentialSeconds int
	inputLevel        float64
	message           string
}

func NewLiveController(deps Dependencies, cfg Config) *LiveController {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.FrameSamples < 256 {
		cfg.FrameSamples = defaultFrameSamples
	}
	if cfg.VideoInterval <= 0 {
		cfg.VideoInterval = defaultVideoInterval
	}
	if cfg.TokenLifetime <= 0 {
		cfg.TokenLifetime = defaultTokenLifetime
	}
	if cfg.OutputSampleRate <= 0 {
		cfg.OutputSampleRate = defaultOutputSampleRate
	}

	return &LiveController{
		audio:       deps.Audio,
		camera:      deps.Camera,
		speakers:    deps.Speakers,
		provider:    deps.Provider,
		credentials: deps.Credentials,
		tools:       deps.Tools,
		events:      deps.Events,
		clock:       deps.Clock,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		finalizer:   newTranscriptFinalizer(deps.Rules, deps.Clipboard, deps.Events),
		encoder:     video.NewEncoder(),
		cfg:         cfg,
		resumption:  resumption.NewTracker(),
		transcript:  newTranscriptLog(),
		status:      domain.SessionStatusIdle,
	}
}

// Start provisions a credential when ephemeral mode is on and connects. It
// returns once the connection is established; the session goes LIVE when the
// server confirms setup.
func (c *LiveController) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.current != nil {
		c.mu.Unlock()
		return ErrSessionActive
	}
	active := newActiveSession(ctx, uuid.NewString())
	c.current = active
	c.message = ""
	resuming := c.resumption.Available()
	connectReason := domain.SessionReasonConnecting
	if resuming {
		connectReason = domain.SessionReasonResuming
	}
	status, reason := domain.SessionStatusConnecting, connectReason
	if c.cfg.Ephemeral {
		status, reason = domain.SessionStatusProvisioning, domain.SessionReasonProvisioning
	}
	c.status = status
	c.mu.Unlock()

	if !resuming {
		c.transcript.Clear()
		c.events.TranscriptChanged([]domain.TranscriptEntry{})
		c.events.ReasoningChanged("")
	}
	c.logger.Info("starting live session", "session", active.id, "ephemeral", c.cfg.Ephemeral, "resuming", resuming)
	c.transitioned(status, reason)

	token := ""
	if c.cfg.Ephemeral {
		var err error
		token, err = c.provision(active, connectReason)
		if err != nil {
			return err
		}
	}

	live := c.cfg.Live
	live.Tools = c.tools.Declarations()
	live.ResumptionHandle = c.resumption.Handle()
	live.AuthToken = token

	conn, err := c.provider.Connect(active.ctx, c.cfg.Model, live)

	c.mu.Lock()
	if c.current != active {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return ErrSessionCancelled
	}
	if err != nil {
		c.mu.Unlock()
		c.logger.Error("live connect failed", "session", active.id, "error", err)
		c.reportError(domain.ErrorCodeTransport, err.Error())
		c.teardown(active, domain.SessionReasonTransportFailed)
		return err
	}
	active.conn = conn
	active.workers.Add(1)
	c.mu.Unlock()

	go c.consumeEvents(active, conn)
	return nil
}

// provision obtains a fresh credential, starts its countdown and moves the
// session to CONNECTING.
func (c *LiveController) provision(active *activeSession, connectReason domain.SessionStateReason) (string, error) {
	cred, err := c.credentials.Provision(active.ctx, c.cfg.TokenLifetime)
	if !c.isCurrent(active) {
		return "", ErrSessionCancelled
	}
	if err != nil {
		c.logger.Error("credential provisioning failed", "session", active.id, "error", err)
		c.reportError(domain.ErrorCodeProvisioning, err.Error())
		c.teardown(active, domain.SessionReasonProvisioningFailed)
		return "", err
	}

	countdown := credential.NewCountdown(
		c.clock,
		func(remaining time.Duration) { c.credentialTick(active, remaining) },
		func() { c.credentialExpired(active) },
	)
	countdown.Start(cred)

	c.mu.Lock()
	if c.current != active {
		c.mu.Unlock()
		countdown.Stop()
		return "", ErrSessionCancelled
	}
	active.countdown = countdown
	c.status = domain.SessionStatusConnecting
	c.mu.Unlock()

	c.transitioned(domain.SessionStatusConnecting, connectReason)
	return cred.Token, nil
}

// Stop ends the current session. It is a no-op while IDLE. A start still
// provisioning or connecting is cancelled and its late result discarded.
func (c *LiveController) Stop() error {
	c.mu.Lock()
	active := c.current
	status := c.status
	c.mu.Unlock()

	if active == nil {
		return nil
	}

	reason := domain.SessionReasonStopped
	if status == domain.SessionStatusProvisioning || status == domain.SessionStatusConnecting {
		reason = domain.SessionReasonCancelled
	}
	c.teardown(active, reason)
	active.workers.Wait()
	return nil
}

// Wait blocks until the current session returns to IDLE.
func (c *LiveController) Wait(ctx context.Context) error {
	c.mu.Lock()
	active := c.current
	c.mu.Unlock()

	if active == nil {
		return ErrNoActiveSession
	}
	select {
	case <-active.finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ToggleMute flips the mute flag. Muted frames are dropped, not queued.
func (c *LiveController) ToggleMute() bool {
	c.mu.Lock()
	c.muted = !c.muted
	muted := c.muted
	c.mu.Unlock()

	c.logger.Info("microphone mute toggled", "muted", muted)
	return muted
}

// ToggleCamera flips the camera. Turning it on while LIVE starts capture; a
// capture failure leaves the camera off without affecting the session.
func (c *LiveController) ToggleCamera() (bool, error) {
	c.mu.Lock()
	c.cameraOn = !c.cameraOn
	on := c.cameraOn
	active := c.current
	live := active != nil && c.status == domain.SessionStatusLive
	var stale ports.CameraSession
	if !on && active != nil {
		stale = active.camera
		active.camera = nil
	}
	c.mu.Unlock()

	if stale != nil {
		_ = stale.Stop()
	}
	if on && live {
		if err := c.startCamera(active); err != nil {
			return false, err
		}
	}
	return on, nil
}

// ClearTranscript empties the transcript and reasoning buffer.
func (c *LiveController) ClearTranscript() {
	c.transcript.Clear()
	c.events.TranscriptChanged([]domain.TranscriptEntry{})
	c.events.ReasoningChanged("")
}

// ResetSession discards the resumption handle and transcript so the next
// Start begins a fresh conversation. Only allowed while IDLE.
func (c *LiveController) ResetSession() error {
	c.mu.Lock()
	busy := c.current != nil
	c.mu.Unlock()
	if busy {
		return ErrSessionActive
	}

	c.resumption.Reset()
	c.ClearTranscript()
	c.logger.Info("live session reset")
	return nil
}

// CopyTranscript renders the transcript, applies substitution rules and
// writes the result to the clipboard.
func (c *LiveController) CopyTranscript(ctx context.Context) (domain.ExportResult, error) {
	raw := c.transcript.Render()
	if raw == "" {
		return domain.ExportResult{}, ErrEmptyTranscript
	}
	return c.finalizer.Finalize(ctx, raw)
}

// Snapshot returns everything the UI renders.
func (c *LiveController) Snapshot() domain.Snapshot {
	c.mu.Lock()
	snapshot := domain.Snapshot{
		Status:            c.status,
		Active:            c.current != nil,
		Muted:             c.muted,
		CameraOn:          c.cameraOn,
		CredentialSeconds: c.credentialSeconds,
		GoAwaySeconds:     credential.Seconds(c.goAway),
		InputLevel:        c.inputLevel,
		Message:           c.message,
	}
	c.mu.Unlock()

	snapshot.Transcript = c.transcript.Entries()
	snapshot.Reasoning = c.transcript.Reasoning()
	snapshot.ResumptionAvailable = c.resumption.Available()
	return snapshot
}

func (c *LiveController) consumeEvents(active *activeSession, conn ports.LiveConnection) {
	defer active.workers.Done()

	for event := range conn.Events() {
		c.handleEvent(active, conn, event)
	}

	err := conn.Wait()
	if !c.isCurrent(active) {
		return
	}
	if err != nil {
		c.logger.Warn("live connection failed", "session", active.id, "error", err)
		c.reportError(domain.ErrorCodeTransport, err.Error())
		c.teardown(active, domain.SessionReasonTransportFailed)
		return
	}
	c.logger.Info("live connection closed by server", "session", active.id)
	c.teardown(active, domain.SessionReasonRemoteClosed)
}

// goLive opens the speaker and microphone once setup completes.
func (c *LiveController) goLive(active *activeSession) {
	sink, err := c.speakers.Open(active.ctx, c.cfg.OutputSampleRate, 1)
	if err != nil {
		c.deviceFailure(active, err)
		return
	}
	speaker := playback.NewScheduler(c.clock, sink, c.logger)

	mic, err := c.audio.Start(active.ctx, c.cfg.Audio)
	if err != nil {
		_ = speaker.Close()
		c.deviceFailure(active, err)
		return
	}

	c.mu.Lock()
	if c.current != active {
		c.mu.Unlock()
		_ = mic.Stop()
		_ = speaker.Close()
		return
	}
	active.speaker = speaker
	active.mic = mic
	active.video = startVideoPump(c.clock, c.cfg.VideoInterval, func() { c.sendVideoFrame(active) })
	active.workers.Add(1)
	c.status = domain.SessionStatusLive
	wantCamera := c.cameraOn
	c.mu.Unlock()

	go pumpAudioFrames(
		mic,
		c.cfg.FrameSamples,
		func(samples []float32) error { return c.sendAudioFrame(active, samples) },
		func(err error) { c.audioEnded(active, err) },
		c.events,
		active.workers.Done,
	)

	c.logger.Info("live session established", "session", active.id)
	c.transitioned(domain.SessionStatusLive, domain.SessionReasonConnected)

	if wantCamera {
		_ = c.startCamera(active)
	}
}

func (c *LiveController) startCamera(active *activeSession) error {
	var (
		camera ports.CameraSession
		err    error
	)
	if c.camera == nil {
		err = &domain.DeviceAccessError{Device: "camera", Err: errors.New("no camera capture configured")}
	} else {
		camera, err = c.camera.Start(active.ctx, c.cfg.Camera)
	}
	if err != nil {
		c.mu.Lock()
		c.cameraOn = false
		c.mu.Unlock()
		c.logger.Warn("camera unavailable", "session", active.id, "error", err)
		c.reportError(domain.ErrorCodeDeviceAccess, err.Error())
		return err
	}

	c.mu.Lock()
	if c.current != active || !c.cameraOn {
		c.mu.Unlock()
		_ = camera.Stop()
		return nil
	}
	previous := active.camera
	active.camera = camera
	c.mu.Unlock()

	if previous != nil {
		_ = previous.Stop()
	}
	return nil
}

func (c *LiveController) sendAudioFrame(active *activeSession, samples []float32) error {
	level := pcm.RMS(samples)

	c.mu.Lock()
	if c.current != active || c.status != domain.SessionStatusLive || active.conn == nil {
		c.mu.Unlock()
		return nil
	}
	c.inputLevel = level
	muted := c.muted
	conn := active.conn
	c.mu.Unlock()

	c.events.InputLevel(level)
	if muted {
		c.metrics.FrameDropped("muted")
		return nil
	}

	blob := domain.MediaBlob{MimeType: pcm.MIMEType(micSampleRate), Data: pcm.EncodeBase64(samples)}
	if err := conn.SendRealtimeInput(blob); err != nil {
		if !c.isCurrent(active) {
			return nil
		}
		return err
	}
	c.metrics.FrameSent("audio")
	return nil
}

func (c *LiveController) sendVideoFrame(active *activeSession) {
	c.mu.Lock()
	if c.current != active || c.status != domain.SessionStatusLive || active.camera == nil || active.conn == nil {
		c.mu.Unlock()
		return
	}
	camera := active.camera
	conn := active.conn
	c.mu.Unlock()

	frame, err := camera.Snapshot()
	if err != nil {
		c.logger.Debug("camera snapshot unavailable", "session", active.id, "error", err)
		c.metrics.FrameDropped("snapshot")
		return
	}
	if frame == nil {
		c.metrics.FrameDropped("not_ready")
		return
	}

	blob, err := c.encoder.EncodeBlob(frame)
	if err != nil {
		c.logger.Debug("video frame encode failed", "session", active.id, "error", err)
		c.metrics.FrameDropped("encode")
		return
	}
	if err := conn.SendRealtimeInput(blob); err != nil {
		if c.isCurrent(active) {
			c.reportError(domain.ErrorCodeVideoStream, "failed to stream video: "+err.Error())
		}
		return
	}
	c.metrics.FrameSent("video")
}

func (c *LiveController) audioEnded(active *activeSession, err error) {
	if !c.isCurrent(active) {
		return
	}
	var deviceErr *domain.DeviceAccessError
	if !errors.As(err, &deviceErr) {
		err = &domain.DeviceAccessError{Device: "microphone", Err: err}
	}
	c.deviceFailure(active, err)
}

func (c *LiveController) deviceFailure(active *activeSession, err error) {
	c.logger.Error("capture device unavailable", "session", active.id, "error", err)
	c.reportError(domain.ErrorCodeDeviceAccess, err.Error())
	c.teardown(active, domain.SessionReasonDeviceUnavailable)
}

func (c *LiveController) credentialTick(active *activeSession, remaining time.Duration) {
	c.mu.Lock()
	if c.current != active {
		c.mu.Unlock()
		return
	}
	c.credentialSeconds = credential.Seconds(remaining)
	c.mu.Unlock()

	c.events.CredentialCountdown(remaining)
}

func (c *LiveController) credentialExpired(active *activeSession) {
	if !c.isCurrent(active) {
		return
	}
	c.logger.Warn("session credential expired", "session", active.id)
	c.teardown(active, domain.SessionReasonCredentialExpired)
}

// teardown is the only place session resources are released. Producers are
// stopped before anything they write to is closed. It reports false when
// active was already torn down.
func (c *LiveController) teardown(active *activeSession, reason domain.SessionStateReason) bool {
	c.mu.Lock()
	if c.current != active {
		c.mu.Unlock()
		return false
	}
	c.current = nil
	c.status = domain.SessionStatusIdle
	c.goAway = 0
	c.credentialSeconds = 0
	c.inputLevel = 0
	res := active.detachLocked()
	c.mu.Unlock()

	if res.video != nil {
		res.video.Stop()
	}
	if res.countdown != nil {
		res.countdown.Stop()
	}

	var g errgroup.Group
	if res.mic != nil {
		g.Go(res.mic.Stop)
	}
	if res.camera != nil {
		g.Go(res.camera.Stop)
	}
	if res.conn != nil {
		g.Go(res.conn.Close)
	}
	if err := g.Wait(); err != nil {
		c.logger.Debug("session teardown reported an error", "session", active.id, "error", err)
	}
	if res.speaker != nil {
		_ = res.speaker.Close()
	}
	active.cancel()
	close(active.finished)

	c.logger.Info("live session ended", "session", active.id, "reason", reason)
	if res.countdown != nil {
		c.events.CredentialCountdown(0)
	}
	c.transitioned(domain.SessionStatusIdle, reason)
	return true
}

func (c *LiveController) isCurrent(active *activeSession) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current == active
}

func (c *LiveController) transitioned(status domain.SessionStatus, reason domain.SessionStateReason) {
	c.metrics.Transition(string(status))
	c.metrics.SetLive(status == domain.SessionStatusLive)
	c.events.SessionStateChanged(status, reason)
}

func (c *LiveController) reportError(code domain.ErrorCode, detail string) {
	c.mu.Lock()
	c.message = detail
	c.mu.Unlock()
	c.events.SessionError(code, detail)
}
