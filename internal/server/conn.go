package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/avezina/parley/internal/audio"
	"github.com/avezina/parley/internal/chat"
	"github.com/avezina/parley/internal/memory"
	"github.com/avezina/parley/internal/transcribe"
)

// Conn owns everything tied to one client websocket: the transcription
// session, the conversational memory, and the at-most-one active answer
// stream. A single writer goroutine serializes outbound frames; events that
// arrive after teardown are dropped.
type Conn struct {
	id   string
	ws   *websocket.Conn
	log  *slog.Logger
	deps Deps

	mem     *memory.Store
	session *transcribe.Session

	ctx    context.Context
	cancel context.CancelFunc

	send chan []byte

	mu           sync.Mutex
	closed       bool
	cancelStream context.CancelFunc
}

func newConn(id string, ws *websocket.Conn, deps Deps) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		id:     id,
		ws:     ws,
		log:    deps.Log.With("conn", id),
		deps:   deps,
		mem:    memory.NewStore(deps.MemoryMaxTurns),
		ctx:    ctx,
		cancel: cancel,
		send:   make(chan []byte, 256),
	}
	c.session = transcribe.NewSession(deps.Provider, c, deps.Reconnect, c.log)
	return c
}

// run drives the connection until the client goes away, then tears
// everything down.
func (c *Conn) run() {
	go c.writeLoop()

	if err := c.session.Open(c.ctx); err != nil {
		c.Errored(err.Error())
	}

	c.readLoop()
	c.Close()
}

func (c *Conn) readLoop() {
	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			c.forwardAudio(audio.Normalize(msgType, data))
		case websocket.TextMessage:
			c.handleMessage(data)
		}
	}
}

func (c *Conn) writeLoop() {
	for msg := range c.send {
		if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.log.Debug("write failed", "error", err)
			return
		}
	}
}

func (c *Conn) handleMessage(data []byte) {
	var msg InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.log.Debug("malformed inbound message dropped", "error", err)
		return
	}

	switch msg.Type {
	case MsgAudio:
		c.forwardAudio(audio.FromText(msg.Data))
	case MsgDetectUtterance:
		go c.handleDetect(msg)
	case MsgStartAnswer:
		c.startAnswer(msg)
	default:
		c.log.Debug("unknown inbound message type dropped", "type", msg.Type)
	}
}

func (c *Conn) forwardAudio(frame audio.Frame, err error) {
	if err != nil {
		c.log.Debug("audio frame dropped", "error", err)
		return
	}
	if err := c.session.SendAudio(frame); err != nil {
		c.log.Debug("audio frame rejected", "error", err)
	}
}

// startAnswer cancels any in-flight answer stream before launching the next
// one, so at most one primary stream is active per connection.
func (c *Conn) startAnswer(msg InboundMessage) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.cancelStream != nil {
		c.cancelStream()
	}
	streamCtx, cancel := context.WithCancel(c.ctx)
	c.cancelStream = cancel
	c.mu.Unlock()

	go c.deps.Orchestrator.StreamAnswer(streamCtx, c, c.mem, msg.Question, contextOf(msg), msg.SessionID)
}

// handleDetect classifies a typed utterance and prompts the client when it
// is a question.
func (c *Conn) handleDetect(msg InboundMessage) {
	ctx, cancel := context.WithTimeout(c.ctx, c.deps.SideCallTimeout)
	defer cancel()

	c.mem.Append(memory.SpeakerUser, msg.Utterance)

	effective := c.deps.Orchestrator.ResolveContext(ctx, contextOf(msg), msg.SessionID)
	det, err := c.deps.Orchestrator.DetectQuestion(ctx, msg.Utterance, msg.Source, effective)
	if err != nil {
		c.log.Warn("question detection failed", "error", err)
		return
	}
	if det.IsQuestion {
		c.enqueueEvent(QuestionDetectedEvent{
			Event:    newEvent(EventQuestionDetected, time.Time{}),
			ID:       det.ID,
			Question: det.Question,
			Answer:   det.Answer,
			Source:   det.Source,
		})
	}
}

// detectFromSpeech runs opportunistic detection on a finalized transcript
// and, when it finds a question, also proposes what the interviewer might
// ask next.
func (c *Conn) detectFromSpeech(text string) {
	ctx, cancel := context.WithTimeout(c.ctx, c.deps.SideCallTimeout)
	defer cancel()

	det, err := c.deps.Orchestrator.DetectQuestion(ctx, text, chat.SourceSpeech, chat.Context{})
	if err != nil {
		c.log.Warn("speech question detection failed", "error", err)
		return
	}
	if !det.IsQuestion {
		return
	}

	c.enqueueEvent(QuestionDetectedEvent{
		Event:    newEvent(EventQuestionDetected, time.Time{}),
		ID:       det.ID,
		Question: det.Question,
		Answer:   det.Answer,
		Source:   det.Source,
	})

	questions, err := c.deps.Orchestrator.SuggestNextQuestions(ctx, text, chat.Context{})
	if err != nil {
		c.log.Debug("next-question suggestions skipped", "error", err)
		return
	}
	c.Suggestions(questions)
}

// transcribe.Handler

func (c *Conn) Opened() {
	c.enqueueEvent(TranscriptionOpenedEvent{Event: newEvent(EventTranscriptionOpened, time.Time{})})
}

func (c *Conn) TranscriptReceived(text string, isFinal bool) {
	c.enqueueEvent(TranscriptEvent{
		Event:   newEvent(EventTranscript, time.Time{}),
		Text:    text,
		IsFinal: isFinal,
	})

	if !isFinal {
		return
	}
	c.mem.Append(memory.SpeakerInterviewer, text)
	go c.detectFromSpeech(text)
}

func (c *Conn) Errored(msg string) {
	c.enqueueEvent(TranscriptionErrorEvent{
		Event:   newEvent(EventTranscriptionError, time.Time{}),
		Message: msg,
	})
}

func (c *Conn) Closed() {
	c.enqueueEvent(TranscriptionClosedEvent{Event: newEvent(EventTranscriptionClosed, time.Time{})})
}

// chat.Sink

func (c *Conn) AnswerDelta(text string) error {
	c.enqueueEvent(AnswerDeltaEvent{
		Event: newEvent(EventAnswerDelta, time.Time{}),
		Text:  text,
	})
	return nil
}

func (c *Conn) AnswerDone() {
	c.enqueueEvent(AnswerDoneEvent{Event: newEvent(EventAnswerDone, time.Time{})})
}

func (c *Conn) AnswerError(message string) {
	c.enqueueEvent(AnswerErrorEvent{
		Event:   newEvent(EventAnswerError, time.Time{}),
		Message: message,
	})
}

func (c *Conn) Suggestions(questions []string) {
	if len(questions) == 0 {
		return
	}
	c.enqueueEvent(SuggestionsEvent{
		Event:     newEvent(EventSuggestions, time.Time{}),
		Questions: questions,
	})
}

func (c *Conn) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// enqueueEvent hands an event to the writer goroutine. Writes after close
// and writes against a saturated client are both silent drops; outbound
// events are best-effort.
func (c *Conn) enqueueEvent(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		c.log.Error("event marshal failed", "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- payload:
	default:
		c.log.Debug("slow client, event dropped")
	}
}

// Close tears the connection down: the transcription session (with any
// pending reconnect timer), the active answer stream, and the memory record
// all go. Idempotent.
func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.cancelStream != nil {
		c.cancelStream()
		c.cancelStream = nil
	}
	c.mu.Unlock()

	c.cancel()
	c.session.Close()
	c.mem.Clear()
	close(c.send)
	_ = c.ws.Close()
	c.log.Info("connection closed")
}

func contextOf(msg InboundMessage) chat.Context {
	if msg.Context == nil {
		return chat.Context{}
	}
	return *msg.Context
}
