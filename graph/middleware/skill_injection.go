package middleware

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Skill is one directory-based skill: a SKILL.md with YAML-ish frontmatter
// (name, description) followed by an instructions body, loaded lazily.
type Skill struct {
	Dir         string
	SkillMDPath string
	Name        string
	Description string
}

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]+`)

func splitWords(s string) []string {
	var out []string
	for _, w := range nonAlphanumeric.Split(strings.ToLower(s), -1) {
		if len(w) > 1 {
			out = append(out, w)
		}
	}
	return out
}

func parseFrontmatter(content string) (name, description string, ok bool) {
	parts := strings.SplitN(content, "---", 3)
	if len(parts) < 2 {
		return "", "", false
	}
	for _, line := range strings.Split(strings.TrimSpace(parts[1]), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		k, v, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		v = strings.Trim(strings.TrimSpace(v), `"'`)
		switch strings.TrimSpace(k) {
		case "name":
			name = v
		case "description":
			description = v
		}
	}
	return name, description, name != "" && description != ""
}

// LoadSkillIndex scans skillDirs for a SKILL.md each and parses only its
// frontmatter, deferring the (possibly large) body until a skill matches.
func LoadSkillIndex(skillDirs []string) ([]Skill, error) {
	var index []Skill
	for _, dir := range skillDirs {
		path := filepath.Join(dir, "SKILL.md")
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		if name, desc, ok := parseFrontmatter(string(data)); ok {
			index = append(index, Skill{Dir: dir, SkillMDPath: path, Name: name, Description: desc})
		}
	}
	return index, nil
}

// LoadSkillFullContent reads the body of a skill's SKILL.md (everything
// after the frontmatter block).
func LoadSkillFullContent(s Skill) (string, error) {
	data, err := os.ReadFile(s.SkillMDPath)
	if err != nil {
		return "", err
	}
	parts := strings.SplitN(string(data), "---", 3)
	switch {
	case len(parts) >= 3:
		return strings.TrimSpace(parts[2]), nil
	case len(parts) == 2:
		return strings.TrimSpace(parts[1]), nil
	default:
		return strings.TrimSpace(string(data)), nil
	}
}

type scoredSkill struct {
	score int
	skill Skill
}

// MatchSkills scores every indexed skill against userMessage by keyword
// overlap in its name/description, with a bonus when a message of at most
// 100 bytes is wholly contained in the name or description, and returns
// matches ordered by descending score.
func MatchSkills(index []Skill, userMessage string) []Skill {
	msgLower := strings.ToLower(userMessage)
	msgWords := splitWords(userMessage)

	var scored []scoredSkill
	for _, s := range index {
		nameLower := strings.ToLower(s.Name)
		descLower := strings.ToLower(s.Description)
		nameWords := splitWords(s.Name)
		descWords := splitWords(s.Description)

		score := 0
		for _, w := range msgWords {
			if strings.Contains(nameLower, w) || containsWord(nameWords, w) {
				score += 2
			}
			if strings.Contains(descLower, w) || containsWord(descWords, w) {
				score += 1
			}
		}
		if len(msgLower) <= 100 && (strings.Contains(descLower, msgLower) || strings.Contains(nameLower, msgLower)) {
			score += 5
		}
		if score > 0 {
			scored = append(scored, scoredSkill{score: score, skill: s})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	out := make([]Skill, len(scored))
	for i, s := range scored {
		out[i] = s.skill
	}
	return out
}

func containsWord(words []string, w string) bool {
	for _, x := range words {
		if x == w {
			return true
		}
	}
	return false
}

// SkillInjection prepends matched skills' full content as a system-style
// message to chat_history the first time the agent plans in a turn (no
// intermediate steps yet), following progressive disclosure: only
// frontmatter is held in memory until a skill's description matches.
type SkillInjection struct {
	Base
	Index []Skill
}

// NewSkillInjection wraps a pre-built skill index.
func NewSkillInjection(index []Skill) *SkillInjection {
	return &SkillInjection{Index: index}
}

func userMessageFrom(input PromptArgs) string {
	if s, ok := input["input"].(string); ok && s != "" {
		return s
	}
	if history, ok := input["chat_history"].([]any); ok {
		for i := len(history) - 1; i >= 0; i-- {
			m, ok := history[i].(map[string]any)
			if !ok {
				continue
			}
			if role, _ := m["message_type"].(string); role == "human" {
				if c, ok := m["content"].(string); ok {
					return c
				}
			}
		}
	}
	return ""
}

func (s *SkillInjection) BeforeAgentPlan(_ context.Context, input PromptArgs, steps []Step, _ *Context) (PromptArgs, error) {
	if len(steps) > 0 {
		return nil, nil
	}
	userText := userMessageFrom(input)
	matched := MatchSkills(s.Index, userText)
	if len(matched) == 0 {
		return nil, nil
	}

	var parts []string
	for _, m := range matched {
		body, err := LoadSkillFullContent(m)
		if err != nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("### %s\n\n%s", m.Name, body))
	}
	if len(parts) == 0 {
		return nil, nil
	}

	skillsBlock := "\n\n## Skills\n\n" + strings.Join(parts, "\n\n")
	skillsMessage := map[string]any{"message_type": "system", "content": skillsBlock}

	out := make(PromptArgs, len(input))
	for k, v := range input {
		out[k] = v
	}
	history, _ := out["chat_history"].([]any)
	out["chat_history"] = append([]any{skillsMessage}, history...)
	return out, nil
}

var _ Middleware = (*SkillInjection)(nil)
