package middleware

import (
	"context"
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"

	"github.com/dshills/langgraph-go/graph/tool"
)

// PIIType names a category of personally identifiable information.
type PIIType string

const (
	PIIEmail      PIIType = "EMAIL"
	PIICreditCard PIIType = "CREDIT_CARD"
	PIIIPAddress  PIIType = "IP_ADDRESS"
	PIIMACAddress PIIType = "MAC_ADDRESS"
	PIIURL        PIIType = "URL"
)

var piiPatterns = map[PIIType]*regexp.Regexp{
	PIIEmail:      regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
	PIICreditCard: regexp.MustCompile(`\b(?:\d{4}[-\s]?){3}\d{4}\b`),
	PIIIPAddress:  regexp.MustCompile(`\b(?:(?:\d{1,3}\.){3}\d{1,3}|(?:[0-9a-fA-F]{1,4}:){7}[0-9a-fA-F]{1,4})\b`),
	PIIMACAddress: regexp.MustCompile(`\b(?:[0-9a-fA-F]{2}[:-]){5}[0-9a-fA-F]{2}\b`),
	PIIURL:        regexp.MustCompile(`https?://\S+`),
}

// PIIMatch is a single detected span of PII text.
type PIIMatch struct {
	Start, End int
	Text       string
	Type       PIIType
}

// PIIDetector finds instances of one PII type in text, via a built-in
// pattern or a custom one.
type PIIDetector struct {
	Type    PIIType
	pattern *regexp.Regexp
}

// NewPIIDetector builds a detector for a built-in PII type.
func NewPIIDetector(t PIIType) *PIIDetector {
	return &PIIDetector{Type: t, pattern: piiPatterns[t]}
}

// NewCustomPIIDetector builds a detector for a caller-supplied type and
// regex pattern.
func NewCustomPIIDetector(t PIIType, pattern string) (*PIIDetector, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &PIIDetector{Type: t, pattern: re}, nil
}

// Detect returns every match of this detector's pattern in text. Credit
// card matches are additionally validated with the Luhn checksum so
// plausible-but-invalid digit runs are not flagged.
func (d *PIIDetector) Detect(text string) []PIIMatch {
	if d.pattern == nil {
		return nil
	}
	var matches []PIIMatch
	for _, loc := range d.pattern.FindAllStringIndex(text, -1) {
		candidate := text[loc[0]:loc[1]]
		if d.Type == PIICreditCard && !luhnValid(onlyDigits(candidate)) {
			continue
		}
		matches = append(matches, PIIMatch{Start: loc[0], End: loc[1], Text: candidate, Type: d.Type})
	}
	return matches
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func luhnValid(digits string) bool {
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	sum := 0
	parity := len(digits) % 2
	for i, r := range digits {
		d := int(r - '0')
		if i%2 == parity {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return sum%10 == 0
}

// DetectAllPII runs every built-in detector over text and returns the
// matches grouped by type, omitting types with no hits.
func DetectAllPII(text string) map[PIIType][]PIIMatch {
	out := make(map[PIIType][]PIIMatch)
	for _, t := range []PIIType{PIIEmail, PIICreditCard, PIIIPAddress, PIIMACAddress, PIIURL} {
		if matches := NewPIIDetector(t).Detect(text); len(matches) > 0 {
			out[t] = matches
		}
	}
	return out
}

// PIIStrategy is how detected PII should be handled.
type PIIStrategy int

const (
	PIIRedact PIIStrategy = iota
	PIIMask
	PIIHash
	PIIBlock
)

// PII detects and handles a single PII type across agent input, output,
// and/or tool results according to Strategy.
type PII struct {
	Base
	Type               PIIType
	Strategy           PIIStrategy
	ApplyToInput       bool
	ApplyToOutput      bool
	ApplyToToolResults bool
	detector           *PIIDetector
}

// NewPII builds a PII middleware for a built-in type, applied to input by
// default (matching the reference default).
func NewPII(t PIIType, strategy PIIStrategy) *PII {
	return &PII{Type: t, Strategy: strategy, ApplyToInput: true, detector: NewPIIDetector(t)}
}

// NewCustomPII builds a PII middleware around a custom regex pattern.
func NewCustomPII(t PIIType, strategy PIIStrategy, pattern string) (*PII, error) {
	d, err := NewCustomPIIDetector(t, pattern)
	if err != nil {
		return nil, err
	}
	return &PII{Type: t, Strategy: strategy, ApplyToInput: true, detector: d}, nil
}

func (p *PII) processText(text string) (string, error) {
	matches := p.detector.Detect(text)
	if len(matches) == 0 {
		return text, nil
	}
	if p.Strategy == PIIBlock {
		return "", Aborted(fmt.Sprintf("PII detected: %d instances of %s found", len(matches), p.Type))
	}

	result := []rune(text)
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		replacement := p.replacement(m.Text)
		result = append(result[:m.Start], append([]rune(replacement), result[m.End:]...)...)
	}
	return string(result), nil
}

func (p *PII) replacement(matched string) string {
	switch p.Strategy {
	case PIIRedact:
		return fmt.Sprintf("[REDACTED_%s]", p.Type)
	case PIIHash:
		sum := sha256.Sum256([]byte(matched))
		return fmt.Sprintf("%x", sum)
	case PIIMask:
		return p.mask(matched)
	default:
		return matched
	}
}

func (p *PII) mask(pii string) string {
	switch p.Type {
	case PIICreditCard:
		digits := onlyDigits(pii)
		if len(digits) >= 4 {
			return "****-****-****-" + digits[len(digits)-4:]
		}
		return "****-****-****-****"
	case PIIEmail:
		if at := strings.Index(pii, "@"); at > 0 {
			return pii[:1] + "***" + pii[at:]
		}
		return "***@***"
	case PIIIPAddress:
		if last := strings.LastIndex(pii, "."); last >= 0 {
			if second := strings.LastIndex(pii[:last], "."); second >= 0 {
				return pii[:second+1] + "***.***"
			}
			return pii[:last] + ".***"
		}
		return "***.***.***.***"
	default:
		if len(pii) > 2 {
			return pii[:1] + "***" + pii[len(pii)-1:]
		}
		return "***"
	}
}

func (p *PII) extractText(input PromptArgs) string {
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

func (p *PII) BeforeAgentPlan(_ context.Context, input PromptArgs, _ []Step, _ *Context) (PromptArgs, error) {
	if !p.ApplyToInput {
		return nil, nil
	}
	text := p.extractText(input)
	processed, err := p.processText(text)
	if err != nil {
		return nil, err
	}
	if processed == text {
		return nil, nil
	}
	out := make(PromptArgs, len(input))
	for k, v := range input {
		out[k] = v
	}
	if msgs, ok := out["messages"].([]any); ok {
		newMsgs := make([]any, len(msgs))
		for i, m := range msgs {
			if mm, ok := m.(map[string]any); ok {
				copied := make(map[string]any, len(mm))
				for k, v := range mm {
					copied[k] = v
				}
				if c, ok := copied["content"].(string); ok {
					scrubbed, err := p.processText(c)
					if err != nil {
						return nil, err
					}
					copied["content"] = scrubbed
				}
				newMsgs[i] = copied
				continue
			}
			newMsgs[i] = m
		}
		out["messages"] = newMsgs
	}
	if _, ok := out["input"].(string); ok {
		out["input"] = processed
	}
	return out, nil
}

func (p *PII) AfterAgentPlan(_ context.Context, _ PromptArgs, event AgentEvent, _ *Context) (*AgentEvent, error) {
	if !p.ApplyToOutput || event.Finish == nil {
		return nil, nil
	}
	processed, err := p.processText(event.Finish.Output)
	if err != nil {
		return nil, err
	}
	if processed == event.Finish.Output {
		return nil, nil
	}
	finish := *event.Finish
	finish.Output = processed
	return &AgentEvent{Finish: &finish}, nil
}

func (p *PII) AfterToolCall(_ context.Context, _ AgentAction, observation string, _ *tool.Runtime, _ *Context) (*string, error) {
	if !p.ApplyToToolResults {
		return nil, nil
	}
	processed, err := p.processText(observation)
	if err != nil {
		return nil, err
	}
	if processed == observation {
		return nil, nil
	}
	return &processed, nil
}

var _ Middleware = (*PII)(nil)
