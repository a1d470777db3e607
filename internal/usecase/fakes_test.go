package usecase

import (
	"context"
	"errors"
	"image"
	"io"
	"sync"
	"testing"
	"time"

	"livemic/internal/clock"
	"livemic/internal/domain"
	"livemic/internal/pcm"
	"livemic/internal/playback"
	"livemic/internal/ports"
)

type harness struct {
	controller  *LiveController
	clock       *clock.Manual
	audio       *fakeAudioCapture
	camera      *fakeCameraCapture
	speakers    *fakeSpeakers
	provider    *fakeProvider
	credentials *fakeProvisioner
	tools       *fakeTools
	rules       *fakeRules
	clipboard   *fakeClipboard
	events      *fakeEventSink
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()

	clk := clock.NewManual(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
	h := &harness{
		clock:    clk,
		audio:    &fakeAudioCapture{},
		camera:   &fakeCameraCapture{},
		speakers: &fakeSpeakers{},
		provider: &fakeProvider{},
		credentials: &fakeProvisioner{
			cred: domain.Credential{Token: "ephemeral-token", ExpiresAt: clk.Now().Add(10 * time.Minute)},
		},
		tools:     &fakeTools{},
		rules:     &fakeRules{},
		clipboard: &fakeClipboard{},
		events:    &fakeEventSink{},
	}
	if cfg.FrameSamples == 0 {
		cfg.FrameSamples = 256
	}
	h.controller = NewLiveController(Dependencies{
		Audio:       h.audio,
		Camera:      h.camera,
		Speakers:    h.speakers,
		Provider:    h.provider,
		Credentials: h.credentials,
		Tools:       h.tools,
		Rules:       h.rules,
		Clipboard:   h.clipboard,
		Events:      h.events,
		Clock:       clk,
	}, cfg)
	t.Cleanup(func() { _ = h.controller.Stop() })
	return h
}

// goLive starts a session and delivers the setup-complete event.
func (h *harness) goLive(t *testing.T) *fakeLiveConnection {
	t.Helper()
	if err := h.controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	conn := h.provider.last()
	conn.push(domain.LiveEvent{Kind: domain.LiveEventOpen})
	waitFor(t, "live status", func() bool {
		return h.controller.Snapshot().Status == domain.SessionStatusLive
	})
	return conn
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func currentSpeaker(c *LiveController) *playback.Scheduler {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	return c.current.speaker
}

func cameraAttached(c *LiveController) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil && c.current.camera != nil
}

func audioEvent(samples int) domain.LiveEvent {
	return domain.LiveEvent{
		Kind:  domain.LiveEventAudio,
		Audio: domain.MediaBlob{MimeType: pcm.MIMEType(24000), Data: pcm.EncodeBase64(make([]float32, samples))},
	}
}

type fakeAudioCapture struct {
	mu       sync.Mutex
	err      error
	sessions []*fakeMicSession
}

func (f *fakeAudioCapture) Start(_ context.Context, _ ports.AudioConfig) (ports.AudioSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	session := newFakeMicSession()
	f.sessions = append(f.sessions, session)
	return session, nil
}

func (f *fakeAudioCapture) last() *fakeMicSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sessions) == 0 {
		return nil
	}
	return f.sessions[len(f.sessions)-1]
}

func (f *fakeAudioCapture) started() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

// fakeMicSession blocks reads until samples are fed or the session stops.
type fakeMicSession struct {
	reader *io.PipeReader
	writer *io.PipeWriter

	mu        sync.Mutex
	stopCalls int
}

func newFakeMicSession() *fakeMicSession {
	r, w := io.Pipe()
	return &fakeMicSession{reader: r, writer: w}
}

func (f *fakeMicSession) Read(p []byte) (int, error) { return f.reader.Read(p) }

func (f *fakeMicSession) Close() error { return f.reader.Close() }

func (f *fakeMicSession) Stop() error {
	f.mu.Lock()
	f.stopCalls++
	f.mu.Unlock()
	return f.writer.Close()
}

func (f *fakeMicSession) feed(samples []float32) {
	data := pcm.Encode(samples)
	go func() { _, _ = f.writer.Write(data) }()
}

func (f *fakeMicSession) stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls
}

// fakeAudioSession replays fixed chunks and then reports EOF.
type fakeAudioSession struct {
	mu        sync.Mutex
	chunks    [][]byte
	index     int
	stopCalls int
}

func (f *fakeAudioSession) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index >= len(f.chunks) {
		return 0, io.EOF
	}
	n := copy(p, f.chunks[f.index])
	if n < len(f.chunks[f.index]) {
		f.chunks[f.index] = f.chunks[f.index][n:]
		return n, nil
	}
	f.index++
	return n, nil
}

func (f *fakeAudioSession) Close() error { return nil }

func (f *fakeAudioSession) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	return nil
}

type fakeCameraCapture struct {
	mu       sync.Mutex
	err      error
	frame    image.Image
	sessions []*fakeCameraSession
}

func (f *fakeCameraCapture) Start(_ context.Context, _ ports.CameraConfig) (ports.CameraSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	session := &fakeCameraSession{frame: f.frame}
	f.sessions = append(f.sessions, session)
	return session, nil
}

func (f *fakeCameraCapture) started() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

type fakeCameraSession struct {
	mu        sync.Mutex
	frame     image.Image
	stopCalls int
}

func (f *fakeCameraSession) Snapshot() (image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frame, nil
}

func (f *fakeCameraSession) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	return nil
}

func (f *fakeCameraSession) stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls
}

type fakeSpeakers struct {
	mu    sync.Mutex
	err   error
	sinks []*fakeSink
}

func (f *fakeSpeakers) Open(_ context.Context, _ int, _ int) (ports.AudioSink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	sink := &fakeSink{}
	f.sinks = append(f.sinks, sink)
	return sink, nil
}

func (f *fakeSpeakers) last() *fakeSink {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sinks) == 0 {
		return nil
	}
	return f.sinks[len(f.sinks)-1]
}

type fakeSink struct {
	mu      sync.Mutex
	plays   []pcm.AudioChunk
	flushes int
	closed  bool
}

func (f *fakeSink) Play(chunk pcm.AudioChunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays = append(f.plays, chunk)
	return nil
}

func (f *fakeSink) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
	return nil
}

func (f *fakeSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSink) snapshot() (plays int, flushes int, closed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.plays), f.flushes, f.closed
}

type fakeProvider struct {
	mu      sync.Mutex
	err     error
	release chan struct{}
	conns   []*fakeLiveConnection
	configs []ports.LiveConfig
	calls   int
}

func (f *fakeProvider) Connect(_ context.Context, _ string, cfg ports.LiveConfig) (ports.LiveConnection, error) {
	f.mu.Lock()
	f.calls++
	f.configs = append(f.configs, cfg)
	release := f.release
	err := f.err
	conn := newFakeLiveConnection()
	if err == nil {
		f.conns = append(f.conns, conn)
	}
	f.mu.Unlock()

	if release != nil {
		<-release
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (f *fakeProvider) last() *fakeLiveConnection {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.conns) == 0 {
		return nil
	}
	return f.conns[len(f.conns)-1]
}

func (f *fakeProvider) lastConfig() ports.LiveConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.configs[len(f.configs)-1]
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeLiveConnection struct {
	events chan domain.LiveEvent

	mu            sync.Mutex
	sent          []domain.MediaBlob
	toolResponses [][]domain.ToolResult
	closeCalls    int
	closed        bool
	waitErr       error
}

func newFakeLiveConnection() *fakeLiveConnection {
	return &fakeLiveConnection{events: make(chan domain.LiveEvent, 64)}
}

func (f *fakeLiveConnection) Events() <-chan domain.LiveEvent { return f.events }

func (f *fakeLiveConnection) SendRealtimeInput(media domain.MediaBlob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("connection closed")
	}
	f.sent = append(f.sent, media)
	return nil
}

func (f *fakeLiveConnection) SendToolResponse(results []domain.ToolResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("connection closed")
	}
	f.toolResponses = append(f.toolResponses, results)
	return nil
}

func (f *fakeLiveConnection) Wait() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waitErr
}

func (f *fakeLiveConnection) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	f.closeLocked()
	return nil
}

func (f *fakeLiveConnection) closeLocked() {
	if !f.closed {
		f.closed = true
		close(f.events)
	}
}

func (f *fakeLiveConnection) push(event domain.LiveEvent) {
	f.events <- event
}

// finish simulates the server ending the connection.
func (f *fakeLiveConnection) finish(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waitErr = err
	f.closeLocked()
}

func (f *fakeLiveConnection) sentBlobs() []domain.MediaBlob {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.MediaBlob, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeLiveConnection) sentOfType(mimeType string) int {
	count := 0
	for _, blob := range f.sentBlobs() {
		if blob.MimeType == mimeType {
			count++
		}
	}
	return count
}

func (f *fakeLiveConnection) responses() [][]domain.ToolResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]domain.ToolResult, len(f.toolResponses))
	copy(out, f.toolResponses)
	return out
}

func (f *fakeLiveConnection) closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCalls
}

type fakeProvisioner struct {
	mu    sync.Mutex
	cred  domain.Credential
	err   error
	block bool
	calls int
}

func (f *fakeProvisioner) Provision(ctx context.Context, _ time.Duration) (domain.Credential, error) {
	f.mu.Lock()
	f.calls++
	block, cred, err := f.block, f.cred, f.err
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return domain.Credential{}, &domain.ProvisioningError{Err: ctx.Err()}
	}
	return cred, err
}

type fakeTools struct {
	mu    sync.Mutex
	calls []domain.ToolCall
}

func (f *fakeTools) Declarations() []domain.ToolDeclaration {
	return []domain.ToolDeclaration{{Name: "get_weather"}}
}

func (f *fakeTools) Dispatch(_ context.Context, call domain.ToolCall) domain.ToolResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return domain.ToolResult{ID: call.ID, Name: call.Name, Response: map[string]any{"result": "ok"}}
}

type fakeRules struct {
	transform string
	err       error
}

func (f *fakeRules) Apply(text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.transform != "" {
		return f.transform, nil
	}
	return text, nil
}

type fakeClipboard struct {
	mu       sync.Mutex
	lastText string
	err      error
}

func (f *fakeClipboard) SetText(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastText = text
	return f.err
}

type fakeEventSink struct {
	mu sync.Mutex

	states      []stateEvent
	errors      []errEvent
	transcripts [][]domain.TranscriptEntry
	reasoning   []string
	levels      []float64
	countdowns  []time.Duration
	goAways     []time.Duration
}

type stateEvent struct {
	status domain.SessionStatus
	reason domain.SessionStateReason
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

func (f *fakeEventSink) SessionStateChanged(status domain.SessionStatus, reason domain.SessionStateReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, stateEvent{status: status, reason: reason})
}

func (f *fakeEventSink) TranscriptChanged(entries []domain.TranscriptEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcripts = append(f.transcripts, entries)
}

func (f *fakeEventSink) ReasoningChanged(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reasoning = append(f.reasoning, text)
}

func (f *fakeEventSink) InputLevel(level float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.levels = append(f.levels, level)
}

func (f *fakeEventSink) CredentialCountdown(remaining time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countdowns = append(f.countdowns, remaining)
}

func (f *fakeEventSink) GoAway(timeLeft time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.goAways = append(f.goAways, timeLeft)
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotStates() []stateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]stateEvent, len(f.states))
	copy(out, f.states)
	return out
}

func (f *fakeEventSink) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]errEvent, len(f.errors))
	copy(out, f.errors)
	return out
}

func (f *fakeEventSink) levelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.levels)
}

func (f *fakeEventSink) lastState() stateEvent {
	states := f.snapshotStates()
	if len(states) == 0 {
		return stateEvent{}
	}
	return states[len(states)-1]
}

func (f *fakeEventSink) hasError(code domain.ErrorCode) bool {
	for _, e := range f.snapshotErrors() {
		if e.code == code {
			return true
		}
	}
	return false
}
