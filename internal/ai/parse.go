package ai

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	flagPattern    = regexp.MustCompile(`(?i)^\W*FLAG(?:GED)?\W*[:\-]\s*(.*)$`)
	okPattern      = regexp.MustCompile(`(?i)^\W*OK\b`)
	ErrParseFailed = errors.New("parse_failed")
)

// ParseVerdict reads a moderation answer. The first non-empty line decides:
// "FLAG: <reason>" flags the text, "OK" passes it.
func ParseVerdict(text string) (bool, string, error) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := flagPattern.FindStringSubmatch(line); len(m) >= 2 {
			reason := strings.Trim(strings.TrimSpace(m[1]), `"'*`)
			if reason == "" {
				reason = "flagged by moderation"
			}
			return true, reason, nil
		}
		if okPattern.MatchString(line) {
			return false, "", nil
		}
		return false, "", fmt.Errorf("%w: unexpected verdict %q", ErrParseFailed, truncate(line, 80))
	}
	return false, "", fmt.Errorf("%w: empty verdict", ErrParseFailed)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
