package llm

import "strings"

// StripThinkingTags removes <think>...</think> blocks from LLM output.
// Reasoning models wrap their chain of thought in these tags; the score
// parser must never see the reasoning text, only the final answer.
func StripThinkingTags(s string) string {
	for {
		start := strings.Index(s, "<think>")
		if start == -1 {
			break
		}
		end := strings.Index(s, "</think>")
		if end == -1 {
			s = strings.TrimSpace(s[:start])
			break
		}
		s = s[:start] + s[end+len("</think>"):]
	}
	return strings.TrimSpace(s)
}
