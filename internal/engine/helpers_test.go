package engine

import (
	"strings"
	"testing"
)

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no fence", `{"a": 1}`, `{"a": 1}`},
		{"plain fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"json tag", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"leading whitespace", "  ```json\n{\"a\": 1}\n```  ", `{"a": 1}`},
		{"fence on same line as body", "```{\"a\": 1}```", `{"a": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripCodeFence(tt.input); got != tt.want {
				t.Errorf("stripCodeFence(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`},
		{"surrounding prose", `Here you go: {"a": {"b": 2}} hope that helps`, `{"a": {"b": 2}}`},
		{"no object", "nothing here", ""},
		{"unbalanced", `{"a": 1`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractJSON(tt.input); got != tt.want {
				t.Errorf("extractJSON(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParsePlan(t *testing.T) {
	plan, err := parsePlan("```json\n" + threeTaskPlan + "\n```")
	if err != nil {
		t.Fatalf("parsePlan: %v", err)
	}
	if len(plan.Tasks) != 3 {
		t.Errorf("expected 3 tasks, got %d", len(plan.Tasks))
	}
	if plan.Tasks[0].Title != "Write headline" {
		t.Errorf("unexpected first task: %q", plan.Tasks[0].Title)
	}
	if plan.Reasoning == "" {
		t.Error("expected reasoning to survive parsing")
	}
}

func TestParsePlan_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"prose only", "I think we should start with research."},
		{"empty list", `{"tasks": [], "reasoning": "nothing to do"}`},
		{"missing title", `{"tasks": [{"description": "no title"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parsePlan(tt.input); err == nil {
				t.Errorf("expected parse error for %q", tt.input)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 100); got != "short" {
		t.Errorf("truncate should leave short strings alone, got %q", got)
	}
	long := strings.Repeat("x", 200)
	got := truncate(long, 100)
	if len(got) != 103 || !strings.HasSuffix(got, "...") {
		t.Errorf("unexpected truncation: %d chars", len(got))
	}
}
