package chat

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/avezina/parley/internal/llm"
)

// Question sources for client-side attribution.
const (
	SourceTyped  = "typed"
	SourceSpeech = "speech"
)

const detectSystemPrompt = `You analyze a short utterance and decide if it is a question addressed to an interview assistant. If it is a question, answer it concisely (2-4 sentences) using any provided context. Respond ONLY as minified JSON with keys: isQuestion (boolean), question (string|null), answer (string|null). Do not include any extra text.`

// Detection is the structured result of one detector call. ID is a fresh
// identifier the client uses to deduplicate prompts.
type Detection struct {
	ID         string `json:"id"`
	IsQuestion bool   `json:"isQuestion"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Source     string `json:"source"`
}

type detectPayload struct {
	Utterance string   `json:"utterance"`
	Context   *Context `json:"context"`
	Schema    struct {
		IsQuestion string `json:"isQuestion"`
		Question   string `json:"question"`
		Answer     string `json:"answer"`
	} `json:"schema"`
}

type detectResult struct {
	IsQuestion bool   `json:"isQuestion"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
}

// DetectQuestion classifies utterance with one provider call. Malformed
// provider output degrades to a non-question detection rather than an error;
// only transport failures are returned.
func (o *Orchestrator) DetectQuestion(ctx context.Context, utterance, source string, chatCtx Context) (Detection, error) {
	utterance = strings.TrimSpace(utterance)
	if source != SourceSpeech {
		source = SourceTyped
	}
	det := Detection{ID: uuid.NewString(), Source: source}
	if utterance == "" {
		return det, nil
	}

	payload := detectPayload{Utterance: utterance, Context: &chatCtx}
	payload.Schema.IsQuestion = "boolean"
	payload.Schema.Question = "string|null"
	payload.Schema.Answer = "string|null"
	encoded, err := json.Marshal(payload)
	if err != nil {
		return det, err
	}

	text, err := o.client.Complete(ctx,
		[]llm.Message{
			{Role: "system", Content: detectSystemPrompt},
			{Role: "user", Content: string(encoded)},
		},
		llm.Params{Temperature: 0.4, TopP: 0.6, MaxTokens: 800},
	)
	if err != nil {
		return det, err
	}

	var result detectResult
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &result); err != nil {
		// Malformed output means "not a question", never a failure.
		return det, nil
	}

	det.IsQuestion = result.IsQuestion && strings.TrimSpace(result.Question) != ""
	if det.IsQuestion {
		det.Question = strings.TrimSpace(result.Question)
		det.Answer = strings.TrimSpace(result.Answer)
	}
	return det, nil
}
