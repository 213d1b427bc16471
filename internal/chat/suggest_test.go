package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/avezina/parley/internal/llm"
)

func TestSanitizeSuggestions(t *testing.T) {
	got := sanitizeSuggestions([]string{
		"1. is this a thing",
		"What is X???",
		"what is x?",
	})

	if len(got) != 2 {
		t.Fatalf("got %d suggestions, want 2: %v", len(got), got)
	}
	if got[0] != "is this a thing?" {
		t.Fatalf("numbering not stripped: %q", got[0])
	}
	if got[1] != "What is X?" {
		t.Fatalf("trailing question marks not collapsed: %q", got[1])
	}
	for _, q := range got {
		if !strings.HasSuffix(q, "?") || strings.HasSuffix(q, "??") {
			t.Fatalf("%q must end with exactly one question mark", q)
		}
	}
}

func TestSanitizeSuggestionsStripsDecoration(t *testing.T) {
	got := sanitizeSuggestions([]string{
		`- "How did you handle it"`,
		"* What changed after that.",
		"  3) 'Why that approach' ",
		"",
		"   ",
	})
	want := []string{"How did you handle it?", "What changed after that?", "Why that approach?"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSanitizeSuggestionsCapsAtThree(t *testing.T) {
	got := sanitizeSuggestions([]string{"a?", "b?", "c?", "d?", "e?"})
	if len(got) != 3 {
		t.Fatalf("got %d, want 3", len(got))
	}
}

func TestSuggestParsesJSONContract(t *testing.T) {
	client := &scriptedClient{
		completeFn: func(_ context.Context, msgs []llm.Message, params llm.Params) (string, error) {
			if params.MaxTokens != 400 {
				t.Errorf("maxTokens = %d, want 400", params.MaxTokens)
			}
			return `{"questions":["How big was the team","2. What broke first?","how big was the team?"]}`, nil
		},
	}
	o := NewOrchestrator(client, nil, nil, Settings{})

	got, err := o.SuggestFollowUps(context.Background(), "Tell me about the migration", Context{})
	if err != nil {
		t.Fatalf("SuggestFollowUps: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d suggestions, want 3: %v", len(got), got)
	}
	if got[0] != "How big was the team?" || got[1] != "What broke first?" {
		t.Fatalf("unexpected suggestions: %v", got)
	}
	// Deduped down to two real questions, padded with a generic fallback.
	if got[2] != fallbackSuggestions[0] {
		t.Fatalf("got[2] = %q, want fallback", got[2])
	}
}

func TestSuggestFallsBackToLineSplitting(t *testing.T) {
	client := &scriptedClient{
		completeFn: func(context.Context, []llm.Message, llm.Params) (string, error) {
			return "What was the hardest part\nHow long did it take?\nWho owned the rollout", nil
		},
	}
	o := NewOrchestrator(client, nil, nil, Settings{})

	got, err := o.SuggestFollowUps(context.Background(), "seed", Context{})
	if err != nil {
		t.Fatalf("SuggestFollowUps: %v", err)
	}
	want := []string{"What was the hardest part?", "How long did it take?", "Who owned the rollout?"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSuggestPadsWithFallbacks(t *testing.T) {
	client := &scriptedClient{
		completeFn: func(context.Context, []llm.Message, llm.Params) (string, error) {
			return `{"questions":[]}`, nil
		},
	}
	o := NewOrchestrator(client, nil, nil, Settings{})

	got, err := o.SuggestFollowUps(context.Background(), "seed", Context{})
	if err != nil {
		t.Fatalf("SuggestFollowUps: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d, want 3", len(got))
	}
	for i, fb := range fallbackSuggestions {
		if got[i] != fb {
			t.Errorf("got[%d] = %q, want %q", i, got[i], fb)
		}
	}
}

func TestSuggestPropagatesProviderError(t *testing.T) {
	client := &scriptedClient{
		completeFn: func(context.Context, []llm.Message, llm.Params) (string, error) {
			return "", errors.New("provider down")
		},
	}
	o := NewOrchestrator(client, nil, nil, Settings{})

	if _, err := o.SuggestFollowUps(context.Background(), "seed", Context{}); err == nil {
		t.Fatal("expected provider error")
	}
}

func TestSuggestLanguageClause(t *testing.T) {
	var system string
	client := &scriptedClient{
		completeFn: func(_ context.Context, msgs []llm.Message, _ llm.Params) (string, error) {
			system = msgs[0].Content
			return `{"questions":["a?","b?","c?"]}`, nil
		},
	}
	o := NewOrchestrator(client, nil, nil, Settings{})

	if _, err := o.SuggestFollowUps(context.Background(), "seed", Context{Language: "Spanish"}); err != nil {
		t.Fatalf("SuggestFollowUps: %v", err)
	}
	if !strings.Contains(system, "Spanish") {
		t.Fatal("language rule missing from system prompt")
	}
}
