package middleware

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSkill(t *testing.T, dir, name, description, body string) string {
	t.Helper()
	skillDir := filepath.Join(dir, name)
	if err := os.MkdirAll(skillDir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := "---\nname: " + name + "\ndescription: " + description + "\n---\n" + body
	if err := os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return skillDir
}

func TestLoadSkillIndexParsesFrontmatter(t *testing.T) {
	dir := t.TempDir()
	d1 := writeSkill(t, dir, "pdf-export", "export documents to PDF", "Use pdfgen to export.")

	index, err := LoadSkillIndex([]string{d1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(index) != 1 || index[0].Name != "pdf-export" {
		t.Fatalf("unexpected index: %v", index)
	}
}

func TestLoadSkillIndexSkipsMissingSkillMD(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "no-skill")
	if err := os.MkdirAll(empty, 0o755); err != nil {
		t.Fatal(err)
	}
	index, err := LoadSkillIndex([]string{empty})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(index) != 0 {
		t.Fatalf("expected no entries, got %v", index)
	}
}

func TestMatchSkillsScoresByKeywordOverlap(t *testing.T) {
	dir := t.TempDir()
	d1 := writeSkill(t, dir, "pdf-export", "export documents to PDF format", "body one")
	d2 := writeSkill(t, dir, "image-resize", "resize images and photos", "body two")
	index, err := LoadSkillIndex([]string{d1, d2})
	if err != nil {
		t.Fatal(err)
	}

	matched := MatchSkills(index, "please export this document to pdf")
	if len(matched) == 0 || matched[0].Name != "pdf-export" {
		t.Fatalf("expected pdf-export to match first, got %v", matched)
	}
}

func TestMatchSkillsNoOverlapReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	d1 := writeSkill(t, dir, "pdf-export", "export documents to PDF format", "body")
	index, err := LoadSkillIndex([]string{d1})
	if err != nil {
		t.Fatal(err)
	}
	matched := MatchSkills(index, "completely unrelated query about weather")
	if len(matched) != 0 {
		t.Fatalf("expected no matches, got %v", matched)
	}
}

func TestLoadSkillFullContentStripsFrontmatter(t *testing.T) {
	dir := t.TempDir()
	d1 := writeSkill(t, dir, "pdf-export", "export documents", "Detailed instructions here.")
	index, err := LoadSkillIndex([]string{d1})
	if err != nil || len(index) != 1 {
		t.Fatalf("setup failed: %v %v", index, err)
	}
	body, err := LoadSkillFullContent(index[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(body, "---") || !strings.Contains(body, "Detailed instructions here.") {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestSkillInjectionInjectsOnFirstPlanOnly(t *testing.T) {
	dir := t.TempDir()
	d1 := writeSkill(t, dir, "pdf-export", "export documents to PDF format", "Use pdfgen.")
	index, err := LoadSkillIndex([]string{d1})
	if err != nil {
		t.Fatal(err)
	}
	s := NewSkillInjection(index)

	out, err := s.BeforeAgentPlan(context.Background(), PromptArgs{"input": "export this to pdf please"}, nil, NewContext())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out == nil {
		t.Fatal("expected skills block injected")
	}
	history, ok := out["chat_history"].([]any)
	if !ok || len(history) != 1 {
		t.Fatalf("expected one injected chat_history entry, got %v", out["chat_history"])
	}

	// With prior steps present, injection should not repeat.
	out2, err := s.BeforeAgentPlan(context.Background(), PromptArgs{"input": "export this to pdf please"}, []Step{{}}, NewContext())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out2 != nil {
		t.Fatalf("expected no injection once steps are non-empty, got %v", out2)
	}
}
