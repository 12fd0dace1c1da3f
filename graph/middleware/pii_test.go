package middleware

import (
	"context"
	"strings"
	"testing"
)

func TestLuhnValidatesKnownTestNumber(t *testing.T) {
	if !luhnValid("4111111111111111") {
		t.Fatal("expected valid Luhn test card number to pass")
	}
	if luhnValid("4111111111111112") {
		t.Fatal("expected mutated card number to fail Luhn check")
	}
}

func TestPIIDetectorCreditCardRejectsNonLuhn(t *testing.T) {
	d := NewPIIDetector(PIICreditCard)
	matches := d.Detect("card: 1234 5678 9012 3456")
	if len(matches) != 0 {
		t.Fatalf("expected no matches for non-Luhn digit run, got %v", matches)
	}
}

func TestPIIDetectorEmail(t *testing.T) {
	d := NewPIIDetector(PIIEmail)
	matches := d.Detect("contact me at jane.doe@example.com please")
	if len(matches) != 1 || matches[0].Text != "jane.doe@example.com" {
		t.Fatalf("unexpected matches: %v", matches)
	}
}

func TestDetectAllPIIGroupsbyType(t *testing.T) {
	text := "email jane@example.com and ip 192.168.1.1"
	all := DetectAllPII(text)
	if _, ok := all[PIIEmail]; !ok {
		t.Fatal("expected email match")
	}
	if _, ok := all[PIIIPAddress]; !ok {
		t.Fatal("expected ip match")
	}
}

func TestPIIRedactStrategy(t *testing.T) {
	p := NewPII(PIIEmail, PIIRedact)
	out, err := p.BeforeAgentPlan(context.Background(), PromptArgs{"input": "email jane@example.com now"}, nil, NewContext())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out == nil {
		t.Fatal("expected rewritten input")
	}
	if !strings.Contains(out["input"].(string), "REDACTED_EMAIL") {
		t.Fatalf("expected redaction marker, got %q", out["input"])
	}
}

func TestPIIMaskStrategyEmail(t *testing.T) {
	p := NewPII(PIIEmail, PIIMask)
	out, err := p.BeforeAgentPlan(context.Background(), PromptArgs{"input": "jane@example.com"}, nil, NewContext())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := out["input"].(string)
	if !strings.HasPrefix(got, "j***@") {
		t.Fatalf("expected masked email, got %q", got)
	}
}

func TestPIIBlockStrategyAborts(t *testing.T) {
	p := NewPII(PIIEmail, PIIBlock)
	_, err := p.BeforeAgentPlan(context.Background(), PromptArgs{"input": "jane@example.com"}, nil, NewContext())
	if err == nil {
		t.Fatal("expected abort error")
	}
}

func TestPIINoApplyToInputLeavesUnchanged(t *testing.T) {
	p := &PII{Type: PIIEmail, Strategy: PIIRedact, detector: NewPIIDetector(PIIEmail)}
	out, err := p.BeforeAgentPlan(context.Background(), PromptArgs{"input": "jane@example.com"}, nil, NewContext())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != nil {
		t.Fatalf("expected no change when ApplyToInput is false, got %v", out)
	}
}

func TestPIIAfterToolCallAppliesOnlyWhenConfigured(t *testing.T) {
	p := NewPII(PIIEmail, PIIRedact)
	p.ApplyToToolResults = true
	out, err := p.AfterToolCall(context.Background(), AgentAction{}, "contact jane@example.com", nil, NewContext())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out == nil || !strings.Contains(*out, "REDACTED_EMAIL") {
		t.Fatalf("expected redacted observation, got %v", out)
	}
}
