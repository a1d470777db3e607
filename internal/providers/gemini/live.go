package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"livemic/internal/domain"
	"livemic/internal/ports"
)

const (
	DefaultLiveURL        = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"
	DefaultConstrainedURL = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1alpha.GenerativeService.BidiGenerateContentConstrained"
	DefaultModel          = "gemini-2.5-flash-native-audio-preview-09-2025"

	setupTimeout   = 10 * time.Second
	maxMessageSize = 16 * 1024 * 1024
	closeWait      = time.Second
)

// ErrConnectionClosed is returned when sending on a closed connection.
var ErrConnectionClosed = errors.New("live connection closed")

// Config controls the Live API websocket.
type Config struct {
	APIKey         string
	URL            string
	ConstrainedURL string
	Model          string
	Logger         *slog.Logger
}

// Provider implements ports.LiveProvider for the Gemini Live API.
type Provider struct {
	cfg    Config
	dialer *websocket.Dialer
}

func NewProvider(cfg Config) *Provider {
	if cfg.URL == "" {
		cfg.URL = DefaultLiveURL
	}
	if cfg.ConstrainedURL == "" {
		cfg.ConstrainedURL = DefaultConstrainedURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Provider{cfg: cfg, dialer: websocket.DefaultDialer}
}

// Connect dials the service, sends the setup message and waits for
// setupComplete. The returned connection's first event is LiveEventOpen.
func (p *Provider) Connect(ctx context.Context, model string, cfg ports.LiveConfig) (ports.LiveConnection, error) {
	if model == "" {
		model = p.cfg.Model
	}

	wsURL, headers, err := p.endpoint(cfg.AuthToken)
	if err != nil {
		return nil, err
	}

	conn, _, err := p.dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Live API websocket: %w", err)
	}
	conn.SetReadLimit(maxMessageSize)

	if err := handshake(ctx, conn, buildSetup(model, cfg)); err != nil {
		_ = conn.Close()
		return nil, err
	}

	session := &liveSession{
		conn:     conn,
		logger:   p.cfg.Logger,
		events:   make(chan domain.LiveEvent, 64),
		outbound: make(chan []byte, 32),
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	session.events <- domain.LiveEvent{Kind: domain.LiveEventOpen}

	session.wg.Add(2)
	go session.readLoop()
	go session.writeLoop()
	go func() {
		session.wg.Wait()
		close(session.events)
		close(session.done)
		_ = conn.Close()
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = session.Close()
		case <-session.done:
		}
	}()

	return session, nil
}

func (p *Provider) endpoint(token string) (string, http.Header, error) {
	headers := http.Header{}
	if token != "" {
		u, err := url.Parse(p.cfg.ConstrainedURL)
		if err != nil {
			return "", nil, fmt.Errorf("invalid Live API constrained URL: %w", err)
		}
		query := u.Query()
		query.Set("access_token", token)
		u.RawQuery = query.Encode()
		return u.String(), headers, nil
	}

	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return "", nil, errors.New("GEMINI_API_KEY is not configured")
	}
	headers.Set("x-goog-api-key", p.cfg.APIKey)
	return p.cfg.URL, headers, nil
}

func handshake(ctx context.Context, conn *websocket.Conn, setup *setupMessage) error {
	deadline := time.Now().Add(setupTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(clientMessage{Setup: setup}); err != nil {
		return fmt.Errorf("failed to send setup message: %w", err)
	}
	_ = conn.SetWriteDeadline(time.Time{})

	_ = conn.SetReadDeadline(deadline)
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("failed to receive setup response: %w", err)
		}
		var msg serverMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("invalid setup response: %w", err)
		}
		if msg.SetupComplete != nil {
			break
		}
	}
	_ = conn.SetReadDeadline(time.Time{})
	return nil
}

type liveSession struct {
	conn   *websocket.Conn
	logger *slog.Logger

	events   chan domain.LiveEvent
	outbound chan []byte
	closing  chan struct{}
	done     chan struct{}

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeOnce  sync.Once
	sendOnce   sync.Once
	sendMu     sync.RWMutex
	sendClosed bool
}

func (s *liveSession) Events() <-chan domain.LiveEvent {
	return s.events
}

func (s *liveSession) SendRealtimeInput(media domain.MediaBlob) error {
	return s.send(clientMessage{RealtimeInput: &realtimeInputMessage{MediaChunks: []domain.MediaBlob{media}}})
}

// SendToolResponse sends every result in a single toolResponse message.
func (s *liveSession) SendToolResponse(results []domain.ToolResult) error {
	if len(results) == 0 {
		return nil
	}
	return s.send(clientMessage{ToolResponse: &toolResponseMessage{FunctionResponses: results}})
}

func (s *liveSession) send(msg clientMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode client message: %w", err)
	}

	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.sendClosed {
		return ErrConnectionClosed
	}

	select {
	case s.outbound <- payload:
		return nil
	case <-s.done:
		if err := s.waitErr(); err != nil {
			return err
		}
		return ErrConnectionClosed
	}
}

func (s *liveSession) Wait() error {
	<-s.done
	return s.waitErr()
}

func (s *liveSession) Close() error {
	s.closeOnce.Do(func() {
		close(s.closing)
	})
	s.stopSending()

	select {
	case <-s.done:
	case <-time.After(closeWait):
		_ = s.conn.Close()
		<-s.done
	}
	return s.waitErr()
}

// stopSending closes the outbound queue so the write loop can finish.
func (s *liveSession) stopSending() {
	s.sendOnce.Do(func() {
		s.sendMu.Lock()
		s.sendClosed = true
		close(s.outbound)
		s.sendMu.Unlock()
	})
}

func (s *liveSession) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *liveSession) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}
	select {
	case <-s.closing:
		// Errors after a local close are the close itself.
		return
	default:
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *liveSession) writeLoop() {
	defer s.wg.Done()

	for payload := range s.outbound {
		if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			s.setErr(fmt.Errorf("failed to send client message: %w", err))
			_ = s.conn.Close()
			for range s.outbound {
			}
			return
		}
	}

	message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := s.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(closeWait)); err != nil {
		_ = s.conn.Close()
	}
}

func (s *liveSession) readLoop() {
	defer s.wg.Done()
	defer s.stopSending()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(fmt.Errorf("failed to read server message: %w", err))
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.logger.Warn("ignoring malformed server message", "error", err, "bytes", len(payload))
			continue
		}

		for _, event := range translate(msg) {
			if !s.emit(event) {
				return
			}
		}
	}
}

// emit blocks until the consumer takes the event; events are never dropped
// while the connection is open.
func (s *liveSession) emit(event domain.LiveEvent) bool {
	select {
	case s.events <- event:
		return true
	case <-s.closing:
		return false
	}
}
