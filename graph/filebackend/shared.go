package filebackend

import (
	"fmt"
	"strings"
)

// formatNumberedLines implements the 1-indexed line-numbered excerpt
// contract (§4.4 read, §8 testable property): offsetLines=0 starts at
// line 1, limitLines=0 means "to end", and offsets past EOF yield empty
// output rather than an error.
func formatNumberedLines(content string, offsetLines, limitLines int) string {
	lines := strings.Split(content, "\n")
	// A trailing newline produces one spurious empty final element; drop
	// it so "a\nb\n" is two lines, not three.
	if len(lines) > 0 && lines[len(lines)-1] == "" && strings.HasSuffix(content, "\n") {
		lines = lines[:len(lines)-1]
	}

	n := len(lines)
	start := 0
	if offsetLines > 0 {
		start = offsetLines - 1
		if start > n {
			start = n
		}
	}
	end := n
	if limitLines > 0 {
		end = start + limitLines
		if end > n {
			end = n
		}
	}

	out := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, fmt.Sprintf("%6d\t%s", start+(i-start)+1, lines[i]))
	}
	return strings.Join(out, "\n")
}

// applyEdit implements the shared exactly-one-occurrence-unless-replace_all
// contract (§4.4 edit).
func applyEdit(content, oldStr, newStr string, replaceAll bool) (string, int, error) {
	count := strings.Count(content, oldStr)
	if replaceAll {
		return strings.ReplaceAll(content, oldStr, newStr), count, nil
	}
	if count != 1 {
		return "", 0, fmt.Errorf("expected exactly one occurrence of old_string (use replace_all for multiple), found %d", count)
	}
	return strings.Replace(content, oldStr, newStr, 1), 1, nil
}

// matchGlob reports whether name (a forward-slashed relative path) matches
// a shell-style glob pattern including "**" recursive segments.
func matchGlob(pattern, name string) bool {
	return doublestarMatch(pattern, name)
}
