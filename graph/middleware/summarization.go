package middleware

import (
	"context"
	"fmt"
	"strings"
)

// Summarization keeps chat_history bounded by collapsing the oldest
// messages into a single synthetic summary message once the history grows
// past KeepRecentMessages+1. A history whose first entry is already a
// summary message (marked "_summary") is passed through unchanged and is
// not folded again, however long it has grown. There is no equivalent in the reference
// middleware set this was ported from; the shape (condense-oldest,
// preserve-newest, synthetic marker message) follows the same
// before_agent_plan rewrite-or-pass-through convention the rest of this
// package uses.
type Summarization struct {
	Base

	// KeepRecentMessages is how many of the most recent chat_history
	// entries are left untouched; everything older is folded into one
	// summary message.
	KeepRecentMessages int

	// Summarize condenses the given messages into a short text summary.
	// Defaults to a naive concatenation-and-truncation if nil; callers
	// wanting LLM-generated summaries should set this to a function that
	// calls their model.
	Summarize func(ctx context.Context, messages []any) (string, error)

	// MaxSummaryChars bounds the fallback summarizer's output length.
	MaxSummaryChars int
}

// NewSummarization returns a Summarization middleware keeping the most
// recent 20 messages verbatim and folding anything older with the
// built-in naive summarizer.
func NewSummarization() *Summarization {
	return &Summarization{KeepRecentMessages: 20, MaxSummaryChars: 2000}
}

func (s *Summarization) naiveSummarize(messages []any) string {
	var b strings.Builder
	for _, m := range messages {
		mm, ok := m.(map[string]any)
		if !ok {
			continue
		}
		role, _ := mm["message_type"].(string)
		content, _ := mm["content"].(string)
		if content == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", role, content)
	}
	out := b.String()
	max := s.MaxSummaryChars
	if max <= 0 {
		max = 2000
	}
	runes := []rune(out)
	if len(runes) > max {
		out = string(runes[:max]) + "..."
	}
	return strings.TrimSpace(out)
}

func (s *Summarization) BeforeAgentPlan(ctx context.Context, input PromptArgs, _ []Step, _ *Context) (PromptArgs, error) {
	history, ok := input["chat_history"].([]any)
	if !ok {
		return nil, nil
	}
	keep := s.KeepRecentMessages
	if keep <= 0 {
		keep = 20
	}
	if len(history) <= keep+1 {
		return nil, nil
	}

	// Already-summarized history starts with our marker; don't re-fold it.
	if len(history) > 0 {
		if m, ok := history[0].(map[string]any); ok {
			if marker, _ := m["_summary"].(bool); marker {
				return nil, nil
			}
		}
	}

	toFold := history[:len(history)-keep]
	recent := history[len(history)-keep:]

	var summaryText string
	var err error
	if s.Summarize != nil {
		summaryText, err = s.Summarize(ctx, toFold)
		if err != nil {
			return nil, ExecutionError("summarization failed", err)
		}
	} else {
		summaryText = s.naiveSummarize(toFold)
	}
	if summaryText == "" {
		return nil, nil
	}

	summaryMsg := map[string]any{
		"message_type": "system",
		"content":      fmt.Sprintf("[Summary of %d earlier messages]\n%s", len(toFold), summaryText),
		"_summary":     true,
	}

	newHistory := append([]any{summaryMsg}, recent...)

	out := make(PromptArgs, len(input))
	for k, v := range input {
		out[k] = v
	}
	out["chat_history"] = newHistory
	return out, nil
}

var _ Middleware = (*Summarization)(nil)
