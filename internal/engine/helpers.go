// Utility functions for the engine.
package engine

import (
	"strings"
	"time"

	"github.com/taskmill/taskmill/internal/state"
)

// newTrace creates a trace entry stamped with the current time.
func newTrace(node, action, message, taskID string, details map[string]any) state.TraceEntry {
	return state.TraceEntry{
		Timestamp: time.Now().UTC(),
		Node:      node,
		Action:    action,
		TaskID:    taskID,
		Message:   message,
		Details:   details,
	}
}

// assistantMessage creates a conversation entry from the generator.
func assistantMessage(content string) state.Message {
	return state.Message{
		Role:      "assistant",
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// truncate shortens a string for trace messages and prompts.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// stripCodeFence removes a surrounding markdown code fence, with or
// without a language tag.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		// Drop the language tag line (e.g. "json").
		first := strings.TrimSpace(s[:i])
		if first == "" || !strings.ContainsAny(first, "{}[]") {
			s = s[i+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// extractJSON extracts the first balanced JSON object from content that may
// contain surrounding prose.
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	for i := start; i < len(content); i++ {
		switch content[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}
	return ""
}
