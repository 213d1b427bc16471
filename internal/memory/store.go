package memory

import (
	"strings"
	"sync"
)

// Speaker tags a conversation turn.
type Speaker string

const (
	SpeakerUser        Speaker = "user"
	SpeakerInterviewer Speaker = "interviewer"
)

// Defaults for the compaction policy. Summary plus the recent tail must
// remain a valid substitute for the full history in downstream prompts.
const (
	DefaultMaxTurns           = 1000
	DefaultSummarizeThreshold = 30
	DefaultRecentKeep         = 10
	SummaryMaxChars           = 1800
)

type Turn struct {
	Speaker Speaker `json:"speaker"`
	Content string  `json:"content"`
}

// Store is the bounded conversational record for one connection. Appends
// from the transcription session race appends from the answer orchestrator,
// so every operation is serialized by the mutex.
type Store struct {
	mu       sync.Mutex
	turns    []Turn
	summary  string
	maxTurns int
}

func NewStore(maxTurns int) *Store {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Store{maxTurns: maxTurns}
}

// Append records a turn. Empty or whitespace-only text is a no-op, as is an
// exact duplicate of the immediately preceding turn from the same speaker
// (providers retransmit final segments). Oldest turns are evicted past the
// hard cap.
func (s *Store) Append(speaker Speaker, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.turns); n > 0 {
		last := s.turns[n-1]
		if last.Speaker == speaker && last.Content == text {
			return
		}
	}

	s.turns = append(s.turns, Turn{Speaker: speaker, Content: text})
	if len(s.turns) > s.maxTurns {
		s.turns = append([]Turn(nil), s.turns[len(s.turns)-s.maxTurns:]...)
	}
}

// Recent returns the last n turns in chronological order.
func (s *Store) Recent(n int) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 || len(s.turns) == 0 {
		return nil
	}
	if n > len(s.turns) {
		n = len(s.turns)
	}
	return append([]Turn(nil), s.turns[len(s.turns)-n:]...)
}

// All returns the full current record.
func (s *Store) All() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Turn(nil), s.turns...)
}

// Len returns the stored turn count.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// Summary returns the rolling summary.
func (s *Store) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// SetSummary replaces the rolling summary. Blank input is ignored so a
// failed regeneration never wipes usable context.
func (s *Store) SetSummary(summary string) {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary = summary
}

// PruneRecent drops all but the last keep turns.
func (s *Store) PruneRecent(keep int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keep <= 0 {
		s.turns = nil
		return
	}
	if len(s.turns) > keep {
		s.turns = append([]Turn(nil), s.turns[len(s.turns)-keep:]...)
	}
}

// Clear releases the record on connection teardown.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
	s.summary = ""
}
