package render

import (
	"fmt"
	"strings"

	"github.com/muesli/reflow/wordwrap"

	"github.com/taskmill/taskmill/internal/state"
)

// DefaultWidth is used when the terminal width is unknown.
const DefaultWidth = 100

// Transcript renders a full session view: header, task board, trace
// timeline and conversation.
func Transcript(sess *state.Session, width int) string {
	if width <= 0 {
		width = DefaultWidth
	}

	var b strings.Builder
	writeHeader(&b, sess, width)
	writeTasks(&b, sess)
	writeTraces(&b, sess, width)
	writeMessages(&b, sess, width)
	return b.String()
}

func writeHeader(b *strings.Builder, sess *state.Session, width int) {
	b.WriteString(titleStyle.Render("Session "+sess.ID) + "\n")
	b.WriteString(dimStyle.Render(strings.Repeat("─", min(width, 60))) + "\n")

	b.WriteString(dimStyle.Render("Goal:  ") + goalStyle.Render(sess.Goal) + "\n")
	b.WriteString(dimStyle.Render("Phase: ") + phaseStyle(sess.Phase).Render(string(sess.Phase)))
	if sess.Paused {
		b.WriteString("  " + pausedStyle.Render("(pause requested)"))
	}
	b.WriteString("\n")

	if sess.Error != "" {
		b.WriteString(dimStyle.Render("Error: ") + errorStyle.Render(sess.Error) + "\n")
	}
	completed, failed := sess.Counts()
	if len(sess.Tasks) > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("Tasks: %d/%d completed", completed, len(sess.Tasks))))
		if failed > 0 {
			b.WriteString(errorStyle.Render(fmt.Sprintf(", %d failed", failed)))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func writeTasks(b *strings.Builder, sess *state.Session) {
	if len(sess.Tasks) == 0 {
		return
	}
	b.WriteString(titleStyle.Render("Tasks") + "\n")
	for i, t := range sess.Tasks {
		current := " "
		if i == sess.CurrentTask {
			current = runningStyle.Render("▸")
		}
		b.WriteString(fmt.Sprintf("%s %s %s %s\n",
			current, statusMarker(t.Status), dimStyle.Render(t.ID), t.Title))
		if t.Error != "" {
			b.WriteString("      " + errorStyle.Render(t.Error) + "\n")
		}
	}
	b.WriteString("\n")
}

func writeTraces(b *strings.Builder, sess *state.Session, width int) {
	if len(sess.Traces) == 0 {
		return
	}
	b.WriteString(titleStyle.Render("Timeline") + "\n")
	for _, tr := range sess.Traces {
		ts := dimStyle.Render(tr.Timestamp.Format("15:04:05"))
		node := traceNodeStyle.Render(tr.Node)
		b.WriteString(fmt.Sprintf("%s %s %s\n", ts, node, firstLine(tr.Message)))
	}
	b.WriteString("\n")
}

func writeMessages(b *strings.Builder, sess *state.Session, width int) {
	if len(sess.Messages) == 0 {
		return
	}
	b.WriteString(titleStyle.Render("Conversation") + "\n")
	for _, m := range sess.Messages {
		label := assistantStyle.Render(m.Role)
		if m.Role == "user" {
			label = userStyle.Render(m.Role)
		}
		b.WriteString(label + dimStyle.Render(" "+m.Timestamp.Format("15:04:05")) + "\n")
		b.WriteString(indent(wordwrap.String(m.Content, width-2), "  ") + "\n\n")
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = prefix + l
		}
	}
	return strings.Join(lines, "\n")
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
