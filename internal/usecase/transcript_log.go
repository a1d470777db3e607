package usecase

import (
	"encoding/json"
	"strings"
	"sync"

	"livemic/internal/domain"
)

// transcriptLog is the ordered, append-only interaction transcript plus the
// transient reasoning buffer of the current model turn.
type transcriptLog struct {
	mu        sync.Mutex
	entries   []domain.TranscriptEntry
	reasoning strings.Builder
}

func newTranscriptLog() *transcriptLog {
	return &transcriptLog{}
}

// AppendDelta concatenates text onto the latest entry when it has the same
// role, otherwise starts a new entry. Empty deltas are ignored.
func (l *transcriptLog) AppendDelta(role domain.TranscriptRole, text string) bool {
	if text == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if n := len(l.entries); n > 0 && l.entries[n-1].Role == role && role != domain.TranscriptRoleTool {
		l.entries[n-1].Text += text
		return true
	}
	l.entries = append(l.entries, domain.TranscriptEntry{Role: role, Text: text})
	return true
}

// AddToolCall records an invocation as its own entry.
func (l *transcriptLog) AddToolCall(call domain.ToolCall) {
	text := call.Name + "()"
	if len(call.Args) > 0 {
		if args, err := json.Marshal(call.Args); err == nil {
			text = call.Name + "(" + string(args) + ")"
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, domain.TranscriptEntry{Role: domain.TranscriptRoleTool, Text: text})
}

func (l *transcriptLog) Entries() []domain.TranscriptEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.TranscriptEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *transcriptLog) AppendReasoning(text string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reasoning.WriteString(text)
	return l.reasoning.String()
}

// ClearReasoning empties the reasoning buffer and reports whether it held text.
func (l *transcriptLog) ClearReasoning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	had := l.reasoning.Len() > 0
	l.reasoning.Reset()
	return had
}

func (l *transcriptLog) Reasoning() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reasoning.String()
}

// Clear drops all entries and the reasoning buffer.
func (l *transcriptLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
	l.reasoning.Reset()
}

// Render formats the transcript as "Role: text" lines.
func (l *transcriptLog) Render() string {
	entries := l.Entries()
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		text := strings.TrimSpace(entry.Text)
		if text == "" {
			continue
		}
		lines = append(lines, roleLabel(entry.Role)+": "+text)
	}
	return strings.Join(lines, "\n")
}

func roleLabel(role domain.TranscriptRole) string {
	switch role {
	case domain.TranscriptRoleUser:
		return "User"
	case domain.TranscriptRoleModel:
		return "Model"
	case domain.TranscriptRoleTool:
		return "Tool"
	default:
		return string(role)
	}
}
