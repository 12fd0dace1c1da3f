package middleware

import (
	"context"
	"strings"
)

// ContentFilter blocks requests whose input text contains any banned
// keyword, checked against both the "input" and "messages" fields of the
// PromptArgs the same way the reference guardrail does.
type ContentFilter struct {
	Base
	BannedKeywords []string
	CaseSensitive  bool
	BlockMessage   string
}

// NewContentFilter builds a ContentFilter with the reference default
// block message.
func NewContentFilter(keywords ...string) *ContentFilter {
	return &ContentFilter{
		BannedKeywords: keywords,
		BlockMessage:   "I cannot process requests containing inappropriate content. Please rephrase your request.",
	}
}

func (f *ContentFilter) extractText(input PromptArgs) string {
	var parts []string
	if s, ok := input["input"].(string); ok {
		parts = append(parts, s)
	}
	if msgs, ok := input["messages"].([]any); ok {
		for _, m := range msgs {
			if mm, ok := m.(map[string]any); ok {
				if c, ok := mm["content"].(string); ok {
					parts = append(parts, c)
				}
			}
		}
	}
	return strings.Join(parts, " ")
}

func (f *ContentFilter) matchedKeyword(text string) string {
	search := text
	if !f.CaseSensitive {
		search = strings.ToLower(search)
	}
	for _, kw := range f.BannedKeywords {
		needle := kw
		if !f.CaseSensitive {
			needle = strings.ToLower(needle)
		}
		if strings.Contains(search, needle) {
			return kw
		}
	}
	return ""
}

func (f *ContentFilter) BeforeAgentPlan(_ context.Context, input PromptArgs, _ []Step, _ *Context) (PromptArgs, error) {
	if kw := f.matchedKeyword(f.extractText(input)); kw != "" {
		return nil, Aborted(f.BlockMessage)
	}
	return nil, nil
}

var _ Middleware = (*ContentFilter)(nil)
