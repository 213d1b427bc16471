package chat

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/avezina/parley/internal/llm"
)

// Generic follow-ups used to pad short suggestion lists.
var fallbackSuggestions = []string{
	"Could you provide a specific example?",
	"What was the outcome or impact?",
	"How did you measure success?",
}

const suggestSystemPrompt = `You output EXACTLY three interview questions as minified JSON. Respond ONLY with: {"questions":["q1","q2","q3"]} and nothing else.
Rules:
- Each item must be a single, clear question ending with a question mark.
- No numbering, bullets, quotes, or extra commentary.
- Keep each question under 20 words.`

type suggestPayload struct {
	Task    string   `json:"task"`
	Seed    string   `json:"seed"`
	Context *Context `json:"context"`
}

// SuggestFollowUps asks for three follow-up questions seeded by the answered
// question. The result is always exactly three sanitized suggestions.
func (o *Orchestrator) SuggestFollowUps(ctx context.Context, question string, chatCtx Context) ([]string, error) {
	return o.suggest(ctx, "followup", question, chatCtx)
}

// SuggestNextQuestions proposes questions the interviewer might ask next,
// seeded by a finalized utterance.
func (o *Orchestrator) SuggestNextQuestions(ctx context.Context, utterance string, chatCtx Context) ([]string, error) {
	return o.suggest(ctx, "next", utterance, chatCtx)
}

func (o *Orchestrator) suggest(ctx context.Context, task, seed string, chatCtx Context) ([]string, error) {
	system := suggestSystemPrompt
	if chatCtx.Language != "" {
		system += "\n- All questions must be written in " + chatCtx.Language + "."
	}

	encoded, err := json.Marshal(suggestPayload{Task: task, Seed: seed, Context: &chatCtx})
	if err != nil {
		return nil, err
	}

	text, err := o.client.Complete(ctx,
		[]llm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: string(encoded)},
		},
		llm.Params{Temperature: 0.3, TopP: 0.7, MaxTokens: 400},
	)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)

	var parsed struct {
		Questions []string `json:"questions"`
	}
	var questions []string
	if err := json.Unmarshal([]byte(text), &parsed); err == nil {
		questions = sanitizeSuggestions(parsed.Questions)
	} else {
		// Some models ignore the JSON contract; fall back to line splitting.
		questions = sanitizeSuggestions(strings.Split(text, "\n"))
	}

	return padSuggestions(questions), nil
}

// sanitizeSuggestions normalizes raw model output into client-ready
// questions: bullets, numbering, and wrapping quotes are stripped, each entry
// ends with exactly one question mark, case-insensitive duplicates collapse,
// and at most three survive.
func sanitizeSuggestions(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, 3)
	for _, q := range raw {
		q = strings.TrimSpace(q)
		q = strings.TrimLeft(q, "-*0123456789.) \t")
		q = strings.Trim(q, `"'“”‘’`)
		q = strings.TrimRight(q, "?.! \t")
		if q == "" {
			continue
		}
		q += "?"

		key := strings.ToLower(q)
		if seen[key] {
			continue
		}
		seen[key] = true

		out = append(out, q)
		if len(out) == 3 {
			break
		}
	}
	return out
}

func padSuggestions(questions []string) []string {
	for _, fb := range fallbackSuggestions {
		if len(questions) >= 3 {
			break
		}
		dup := false
		for _, q := range questions {
			if strings.EqualFold(q, fb) {
				dup = true
				break
			}
		}
		if !dup {
			questions = append(questions, fb)
		}
	}
	return questions[:min(len(questions), 3)]
}
