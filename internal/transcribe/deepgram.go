package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listen "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/avezina/parley/internal/config"
)

// DeepgramProvider opens live transcription sessions against Deepgram.
// Each Open creates a fresh websocket client; reconnection re-creates the
// client wholesale rather than re-subscribing handlers on a stale one.
type DeepgramProvider struct {
	apiKey string
	cfg    config.Deepgram
}

func NewDeepgramProvider(apiKey string, cfg config.Deepgram) *DeepgramProvider {
	return &DeepgramProvider{apiKey: apiKey, cfg: cfg}
}

func (p *DeepgramProvider) Open(ctx context.Context, events ProviderEvents) (Stream, error) {
	if p.apiKey == "" {
		return nil, ErrNotConfigured
	}

	// Keep-alive pings ride on the SDK connection so an idle interviewer
	// pause does not drop the session.
	cOptions := &interfaces.ClientOptions{APIKey: p.apiKey, EnableKeepAlive: true}
	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          p.cfg.Model,
		Language:       p.cfg.Language,
		Punctuate:      true,
		SmartFormat:    true,
		InterimResults: true,
		Endpointing:    strconv.Itoa(p.cfg.Endpointing),
	}

	client, err := listen.NewWSUsingCallback(ctx, p.apiKey, cOptions, tOptions, deepgramCallback{events: events})
	if err != nil {
		return nil, fmt.Errorf("create deepgram client: %w", err)
	}

	var conn deepgramConn = client
	if ok := conn.Connect(); !ok {
		return nil, errors.New("deepgram connect failed")
	}

	return &deepgramStream{client: conn}, nil
}

// deepgramConn is the slice of the SDK client the stream needs: it writes
// audio like an io.Writer and is stopped, not closed.
type deepgramConn interface {
	io.Writer
	Connect() bool
	Stop()
}

type deepgramStream struct {
	client deepgramConn
}

func (s *deepgramStream) Send(frame []byte) error {
	if _, err := s.client.Write(frame); err != nil {
		return fmt.Errorf("deepgram write: %w", err)
	}
	return nil
}

func (s *deepgramStream) Close() error {
	s.client.Stop()
	return nil
}

// deepgramCallback adapts the SDK's callback surface to ProviderEvents.
type deepgramCallback struct {
	events ProviderEvents
}

func (c deepgramCallback) Open(*api.OpenResponse) error {
	c.events.Opened()
	return nil
}

func (c deepgramCallback) Message(mr *api.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	c.events.Transcript(mr.Channel.Alternatives[0].Transcript, mr.IsFinal)
	return nil
}

func (c deepgramCallback) Metadata(*api.MetadataResponse) error { return nil }

func (c deepgramCallback) SpeechStarted(*api.SpeechStartedResponse) error { return nil }

func (c deepgramCallback) UtteranceEnd(*api.UtteranceEndResponse) error { return nil }

func (c deepgramCallback) Close(*api.CloseResponse) error {
	c.events.Closed()
	return nil
}

func (c deepgramCallback) Error(er *api.ErrorResponse) error {
	c.events.Errored(fmt.Errorf("deepgram %s: %s", er.ErrCode, er.Description))
	return nil
}

func (c deepgramCallback) UnhandledEvent([]byte) error { return nil }
