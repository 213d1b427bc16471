package transcribe

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// ErrNotConfigured is returned by a Provider when no credential is present.
// It is a configuration error, not a transient one: the session reports it
// and stays closed instead of retrying.
var ErrNotConfigured = errors.New("transcription provider not configured")

// ErrSessionClosed is returned for operations on a closed session.
var ErrSessionClosed = errors.New("transcription session closed")

// ErrEmptyFrame is returned when SendAudio is called with no payload.
var ErrEmptyFrame = errors.New("empty audio frame")

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Provider opens streaming transcription connections. Open blocks until the
// connection is established or fails; lifecycle events after that arrive on
// the supplied ProviderEvents.
type Provider interface {
	Open(ctx context.Context, events ProviderEvents) (Stream, error)
}

// Stream is one live provider connection.
type Stream interface {
	Send(frame []byte) error
	Close() error
}

// ProviderEvents receives callbacks from a provider connection.
type ProviderEvents interface {
	Opened()
	Transcript(text string, isFinal bool)
	Errored(err error)
	Closed()
}

// Handler receives session-level events. Interim and final transcripts are
// delivered in provider order; Errored and Closed are informational and
// never mean the session has given up (reconnection is internal).
type Handler interface {
	TranscriptReceived(text string, isFinal bool)
	Opened()
	Errored(msg string)
	Closed()
}

// Config bounds the reconnect backoff.
type Config struct {
	ReconnectBase time.Duration
	ReconnectMax  time.Duration
}

func (c Config) withDefaults() Config {
	if c.ReconnectBase <= 0 {
		c.ReconnectBase = time.Second
	}
	if c.ReconnectMax <= 0 {
		c.ReconnectMax = 10 * time.Second
	}
	return c
}

// Session owns one provider connection for the lifetime of its parent
// client connection. On provider error or unexpected close it reconnects
// with exponential backoff and jitter, indefinitely, until Close is called:
// transcription is best-effort and sessions are short-lived, so giving up
// after a fixed attempt count would silently kill captions mid-interview.
type Session struct {
	provider Provider
	handler  Handler
	cfg      Config
	log      *slog.Logger
	randF    func() float64

	mu       sync.Mutex
	state    State
	stream   Stream
	attempts int
	retry    *time.Timer
	gen      int
	ctx      context.Context
}

func NewSession(provider Provider, handler Handler, cfg Config, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		provider: provider,
		handler:  handler,
		cfg:      cfg.withDefaults(),
		log:      log,
		randF:    rand.Float64,
		state:    StateIdle,
	}
}

// Open starts the session. The context should be tied to the parent
// connection; its cancellation stops all future reconnect attempts.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state != StateIdle {
		s.mu.Unlock()
		return nil
	}
	s.ctx = ctx
	s.state = StateConnecting
	gen := s.gen
	s.mu.Unlock()

	s.connect(ctx, gen)
	return nil
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SendAudio forwards a frame to the provider. Frames arriving while the
// session is not open are dropped: audio is real-time and lossy, and
// buffering during a reconnect would grow without bound.
func (s *Session) SendAudio(frame []byte) error {
	if len(frame) == 0 {
		return ErrEmptyFrame
	}

	s.mu.Lock()
	if s.state != StateOpen || s.stream == nil {
		state := s.state
		s.mu.Unlock()
		s.log.Debug("audio frame dropped", "state", state.String(), "bytes", len(frame))
		return nil
	}
	stream := s.stream
	s.mu.Unlock()

	if err := stream.Send(frame); err != nil {
		s.log.Warn("audio frame send failed", "error", err)
		return nil
	}
	return nil
}

// Close finalizes the provider session and cancels any pending reconnect
// timer. It is idempotent and safe to call mid-reconnect.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.gen++
	if s.retry != nil {
		s.retry.Stop()
		s.retry = nil
	}
	stream := s.stream
	s.stream = nil
	s.mu.Unlock()

	if stream != nil {
		_ = stream.Close()
	}
}

func (s *Session) connect(ctx context.Context, gen int) {
	stream, err := s.provider.Open(ctx, &sessionEvents{s: s, gen: gen})

	s.mu.Lock()
	if s.state == StateClosed || gen != s.gen {
		s.mu.Unlock()
		if stream != nil {
			_ = stream.Close()
		}
		return
	}

	if err != nil {
		s.mu.Unlock()
		if errors.Is(err, ErrNotConfigured) {
			s.failPermanently(err)
			return
		}
		s.log.Warn("transcription open failed", "error", err)
		if s.handler != nil {
			s.handler.Errored(err.Error())
		}
		s.scheduleReconnect()
		return
	}

	s.stream = stream
	s.mu.Unlock()
}

// failPermanently closes the session without retry. Configuration errors
// are not transient; retrying would loop on the same missing credential.
func (s *Session) failPermanently(err error) {
	s.mu.Lock()
	s.state = StateClosed
	s.gen++
	s.mu.Unlock()

	s.log.Warn("transcription unavailable", "error", err)
	if s.handler != nil {
		s.handler.Errored(err.Error())
	}
}

// backoffDelay returns the delay before the given retry attempt (1-based):
// min(base * 2^(attempt-1), max) with ±25% multiplicative jitter.
func (s *Session) backoffDelay(attempt int) time.Duration {
	d := s.cfg.ReconnectBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= s.cfg.ReconnectMax {
			d = s.cfg.ReconnectMax
			break
		}
	}
	if d > s.cfg.ReconnectMax {
		d = s.cfg.ReconnectMax
	}
	jitter := 0.75 + 0.5*s.randF()
	return time.Duration(float64(d) * jitter)
}

func (s *Session) scheduleReconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return
	}
	if s.ctx != nil && s.ctx.Err() != nil {
		return
	}
	// At most one pending retry timer per session.
	if s.retry != nil {
		return
	}

	s.attempts++
	attempt := s.attempts
	delay := s.backoffDelay(attempt)
	s.state = StateReconnecting

	s.log.Info("transcription reconnect scheduled", "attempt", attempt, "delay", delay)

	s.retry = time.AfterFunc(delay, func() {
		s.mu.Lock()
		s.retry = nil
		if s.state == StateClosed || (s.ctx != nil && s.ctx.Err() != nil) {
			s.mu.Unlock()
			return
		}
		s.gen++
		gen := s.gen
		ctx := s.ctx
		s.state = StateConnecting
		s.mu.Unlock()

		s.connect(ctx, gen)
	})
}

// sessionEvents routes provider callbacks back into the session, tagged
// with the generation that opened the connection so callbacks from a
// superseded connection are ignored.
type sessionEvents struct {
	s   *Session
	gen int
}

func (e *sessionEvents) current() bool {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	return e.gen == e.s.gen && e.s.state != StateClosed
}

func (e *sessionEvents) Opened() {
	e.s.mu.Lock()
	if e.gen != e.s.gen || e.s.state == StateClosed {
		e.s.mu.Unlock()
		return
	}
	e.s.state = StateOpen
	e.s.attempts = 0
	e.s.mu.Unlock()

	e.s.log.Info("transcription session opened")
	if e.s.handler != nil {
		e.s.handler.Opened()
	}
}

func (e *sessionEvents) Transcript(text string, isFinal bool) {
	if !e.current() {
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if e.s.handler != nil {
		e.s.handler.TranscriptReceived(text, isFinal)
	}
}

func (e *sessionEvents) Errored(err error) {
	if !e.current() {
		return
	}
	e.s.log.Warn("transcription provider error", "error", err)
	if e.s.handler != nil {
		e.s.handler.Errored(err.Error())
	}
	e.s.dropStream(e.gen)
	e.s.scheduleReconnect()
}

func (e *sessionEvents) Closed() {
	if !e.current() {
		return
	}
	e.s.log.Info("transcription provider closed")
	if e.s.handler != nil {
		e.s.handler.Closed()
	}
	e.s.dropStream(e.gen)
	e.s.scheduleReconnect()
}

func (s *Session) dropStream(gen int) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	stream := s.stream
	s.stream = nil
	s.mu.Unlock()

	if stream != nil {
		_ = stream.Close()
	}
}
