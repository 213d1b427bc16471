package chat

import (
	"fmt"
	"strings"

	"github.com/avezina/parley/internal/memory"
)

const coachPrompt = `You are an expert interview coaching assistant with persistent conversation memory. Your job is to make the candidate sound like the strongest possible fit for their target role.

Operating rules:
- Use the conversation summary and recent history for continuity.
- Never say the candidate lacks experience; construct a credible, specific example that fits their background and timeline.
- Ground answers in the resume whenever it covers the topic.
- Answers follow the shape: confident opener, specific example, quantified impact, relevance to the target role.
- Keep the tone human, confident, and professional.`

// truncate cuts s after limit bytes and marks the cut.
func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

// systemPrompt assembles the coach prompt plus the merged context, with
// resume and job description truncated per the performance policy.
func systemPrompt(c Context) string {
	var b strings.Builder
	b.WriteString(coachPrompt)

	if c.Resume != "" {
		b.WriteString("\n\nCANDIDATE'S RESUME:\n")
		b.WriteString(truncate(c.Resume, resumeLimitFor(c)))
		b.WriteString("\n\nUse details from the resume to ground the response in real experience. If the resume does not mention the required skill, invent a believable example that fits the candidate's background.")
	} else {
		b.WriteString("\n\nNo resume was provided. Assume the candidate has all relevant experience and produce specific, realistic answers for the field.")
	}

	if c.JobDescription != "" {
		b.WriteString("\n\nTARGET JOB DESCRIPTION:\n")
		b.WriteString(truncate(c.JobDescription, jdLimitFor(c)))
		b.WriteString("\n\nTailor the response to this role. Emphasize matching skills, results, and impact.")
	} else {
		b.WriteString("\n\nNo job description was provided. Adapt the response to typical expectations for the role implied by the question.")
	}

	switch c.Verbosity {
	case VerbosityConcise:
		b.WriteString("\n\nStyle: strictly 1-2 complete sentences that directly address the question. No extra explanation.")
	case VerbosityLengthy:
		b.WriteString("\n\nStyle: 4-6 sentences with concrete details and outcomes.")
	default:
		b.WriteString("\n\nStyle: 2-4 sentences with at least one concrete example or outcome.")
	}

	switch c.Performance {
	case PerformanceSpeed:
		b.WriteString("\n\nOptimize for speed and brevity. Avoid unnecessary detail.")
	case PerformanceQuality:
		b.WriteString("\n\nOptimize for completeness and clarity. Provide helpful, accurate detail.")
	}

	if c.Language != "" {
		fmt.Fprintf(&b, "\n\nRespond in %s with natural phrasing for that locale.", c.Language)
	}

	if c.AdditionalContext != "" {
		fmt.Fprintf(&b, "\n\nAdditional context (important): %s", c.AdditionalContext)
	}

	return b.String()
}

// streamPreamble extends the system prompt with the rolling summary and the
// recent turn window. Summary plus recent turns stand in for the full
// history, keeping the prompt bounded as the conversation grows.
func streamPreamble(c Context, summary string, recent []memory.Turn) string {
	pieces := []string{systemPrompt(c)}

	if s := strings.TrimSpace(summary); s != "" {
		pieces = append(pieces, "Conversation summary so far (use for context): "+s)
	}
	for _, turn := range recent {
		pieces = append(pieces, speakerLabel(turn.Speaker)+": "+turn.Content)
	}

	return strings.Join(pieces, "\n")
}

func speakerLabel(s memory.Speaker) string {
	if s == memory.SpeakerInterviewer {
		return "Interviewer"
	}
	return "User"
}

func questionPrompt(question string) string {
	return fmt.Sprintf("Interview Question: %q", question)
}
