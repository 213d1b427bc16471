package server

import (
	"time"

	"github.com/avezina/parley/internal/chat"
)

const EventVersion = 1

// Inbound message types.
const (
	MsgAudio           = "audio"
	MsgDetectUtterance = "detect_utterance"
	MsgStartAnswer     = "start_answer"
)

// Outbound event types.
const (
	EventTranscript          = "transcript"
	EventQuestionDetected    = "question_detected"
	EventAnswerDelta         = "answer_delta"
	EventAnswerDone          = "answer_done"
	EventAnswerError         = "answer_error"
	EventSuggestions         = "suggestions"
	EventTranscriptionOpened = "transcription_opened"
	EventTranscriptionError  = "transcription_error"
	EventTranscriptionClosed = "transcription_closed"
)

// InboundMessage is the single envelope for client text frames. Unknown
// types are dropped at the boundary; payload fields beyond the ones a type
// uses are ignored.
type InboundMessage struct {
	Type string `json:"type"`

	// audio: base64-encoded frame
	Data string `json:"data,omitempty"`

	// detect_utterance
	Utterance string `json:"utterance,omitempty"`
	Source    string `json:"source,omitempty"`

	// start_answer
	Question string `json:"question,omitempty"`

	// shared by detect_utterance and start_answer
	Context   *chat.Context `json:"context,omitempty"`
	SessionID string        `json:"sessionId,omitempty"`
}

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

type TranscriptEvent struct {
	Event
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
}

type QuestionDetectedEvent struct {
	Event
	ID       string `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer,omitempty"`
	Source   string `json:"source"`
}

type AnswerDeltaEvent struct {
	Event
	Text string `json:"text"`
}

type AnswerDoneEvent struct {
	Event
}

type AnswerErrorEvent struct {
	Event
	Message string `json:"message"`
}

type SuggestionsEvent struct {
	Event
	Questions []string `json:"questions"`
}

type TranscriptionOpenedEvent struct {
	Event
}

type TranscriptionErrorEvent struct {
	Event
	Message string `json:"message"`
}

type TranscriptionClosedEvent struct {
	Event
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}
