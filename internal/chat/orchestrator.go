package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avezina/parley/internal/llm"
	"github.com/avezina/parley/internal/memory"
	"github.com/avezina/parley/internal/sessioncache"
)

// Sink receives orchestrator output for one connection. Alive reports
// whether the connection still accepts writes; detached side operations
// check it before touching connection-owned state.
type Sink interface {
	AnswerDelta(text string) error
	AnswerDone()
	AnswerError(message string)
	Suggestions(questions []string)
	Alive() bool
}

// Settings are the orchestrator policy knobs; zero values take defaults.
type Settings struct {
	MaxTokens          int
	SummarizeThreshold int
	RecentKeep         int
	RecentWindow       int
	StreamTimeout      time.Duration
	SideCallTimeout    time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.MaxTokens <= 0 {
		s.MaxTokens = 1000
	}
	if s.SummarizeThreshold <= 0 {
		s.SummarizeThreshold = memory.DefaultSummarizeThreshold
	}
	if s.RecentKeep <= 0 {
		s.RecentKeep = memory.DefaultRecentKeep
	}
	if s.RecentWindow <= 0 {
		s.RecentWindow = 12
	}
	if s.StreamTimeout <= 0 {
		s.StreamTimeout = 60 * time.Second
	}
	if s.SideCallTimeout <= 0 {
		s.SideCallTimeout = 30 * time.Second
	}
	return s
}

// Orchestrator turns explicit questions into token streams while refreshing
// memory and follow-up suggestions in the background.
type Orchestrator struct {
	client   llm.Client
	cache    *sessioncache.Cache
	log      *slog.Logger
	settings Settings
}

func NewOrchestrator(client llm.Client, cache *sessioncache.Cache, log *slog.Logger, settings Settings) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		client:   client,
		cache:    cache,
		log:      log,
		settings: settings.withDefaults(),
	}
}

// ResolveContext merges the cached session context under the explicit one.
// Explicit fields win; a cache miss leaves the explicit context as-is.
func (o *Orchestrator) ResolveContext(ctx context.Context, explicit Context, sessionID string) Context {
	if sessionID == "" || o.cache == nil {
		return explicit
	}

	rec, err := o.cache.GetOrFetch(ctx, sessionID)
	if err != nil {
		o.log.Warn("session context unavailable", "session", sessionID, "error", err)
		return explicit
	}

	base := Context{
		Resume:            rec.Resume,
		JobDescription:    rec.JobDescription,
		AdditionalContext: rec.AdditionalContext,
	}
	return Merge(base, explicit)
}

// StreamAnswer streams an answer to question into sink. The question is
// recorded as a user turn first; summarization and follow-up suggestions run
// detached so the first token is never delayed by them. Deltas are relayed
// in provider order, AnswerDone fires exactly once on success, and a
// mid-stream failure produces AnswerError without retracting sent output.
// Cancelling ctx stops the stream silently; the caller owns at-most-one
// active stream per connection by cancelling the previous context first.
func (o *Orchestrator) StreamAnswer(ctx context.Context, sink Sink, mem *memory.Store, question string, explicit Context, sessionID string) {
	question = strings.TrimSpace(question)
	if question == "" {
		sink.AnswerError("question is empty")
		return
	}

	effective := o.ResolveContext(ctx, explicit, sessionID)
	mem.Append(memory.SpeakerUser, question)

	go o.summarizeDetached(sink, mem, effective)
	go o.suggestDetached(sink, question, effective)

	streamCtx, cancel := context.WithTimeout(ctx, o.settings.StreamTimeout)
	defer cancel()

	messages := []llm.Message{
		{Role: "system", Content: streamPreamble(effective, mem.Summary(), mem.Recent(o.settings.RecentWindow))},
		{Role: "user", Content: questionPrompt(question)},
	}
	params := llm.Params{
		Temperature: temperatureFor(effective),
		TopP:        topPFor(effective),
		MaxTokens:   maxTokensFor(effective, o.settings.MaxTokens),
	}

	err := o.client.Stream(streamCtx, messages, params, sink.AnswerDelta)
	switch {
	case err == nil:
		sink.AnswerDone()
	case errors.Is(err, context.Canceled):
		// Superseded by a newer stream or connection teardown.
	default:
		o.log.Warn("answer stream failed", "error", err)
		sink.AnswerError(err.Error())
	}
}

// SummarizeIfDue compresses the conversation once it crosses the threshold:
// the previous summary plus the transcript so far collapse into a bounded
// summary, then the turn record is pruned to a short tail. Failure leaves
// both untouched.
func (o *Orchestrator) SummarizeIfDue(ctx context.Context, mem *memory.Store, chatCtx Context) error {
	return o.summarize(ctx, mem, chatCtx, nil)
}

func (o *Orchestrator) summarize(ctx context.Context, mem *memory.Store, chatCtx Context, alive func() bool) error {
	if mem.Len() < o.settings.SummarizeThreshold {
		return nil
	}

	var transcript strings.Builder
	for _, turn := range mem.All() {
		transcript.WriteString(speakerLabel(turn.Speaker))
		transcript.WriteString(": ")
		transcript.WriteString(turn.Content)
		transcript.WriteByte('\n')
	}

	prompt := fmt.Sprintf(
		"Summarize the conversation so far in <=%d characters as compact sentences without bullets.\nPrev:\n%s\n\nTranscript:\n%s",
		memory.SummaryMaxChars, mem.Summary(), transcript.String(),
	)

	summary, err := o.client.Complete(ctx,
		[]llm.Message{
			{Role: "system", Content: systemPrompt(chatCtx)},
			{Role: "user", Content: prompt},
		},
		llm.Params{Temperature: temperatureFor(chatCtx), TopP: topPFor(chatCtx), MaxTokens: o.settings.MaxTokens},
	)
	if err != nil {
		return fmt.Errorf("summarize conversation: %w", err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return errors.New("summarize conversation: empty summary")
	}

	// The connection may have closed during the provider round trip; its
	// memory must not be mutated afterwards.
	if alive != nil && !alive() {
		return nil
	}
	mem.SetSummary(summary)
	mem.PruneRecent(o.settings.RecentKeep)
	return nil
}

func (o *Orchestrator) summarizeDetached(sink Sink, mem *memory.Store, chatCtx Context) {
	ctx, cancel := context.WithTimeout(context.Background(), o.settings.SideCallTimeout)
	defer cancel()

	if err := o.summarize(ctx, mem, chatCtx, sink.Alive); err != nil {
		o.log.Debug("summarize skipped", "error", err)
	}
}

func (o *Orchestrator) suggestDetached(sink Sink, question string, chatCtx Context) {
	ctx, cancel := context.WithTimeout(context.Background(), o.settings.SideCallTimeout)
	defer cancel()

	questions, err := o.SuggestFollowUps(ctx, question, chatCtx)
	if err != nil {
		o.log.Debug("suggestions skipped", "error", err)
		return
	}
	if len(questions) > 0 && sink.Alive() {
		sink.Suggestions(questions)
	}
}
