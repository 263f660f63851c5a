package diag

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

const pathSeparator = os.PathSeparator

// Message is one distinct warning or error line, ready for printing.
type Message struct {
	Text         string
	FirstCommand string
	Count        uint64
}

// ShaderSummary is one shader's messages, split by severity.
type ShaderSummary struct {
	Shader   string
	Warnings []Message
	Errors   []Message
}

// Summary snapshots an Aggregator's state for printing, independent of
// further Report calls.
type Summary struct {
	TotalWarnings int
	TotalErrors   int
	Shaders       []ShaderSummary
}

// Snapshot builds a Summary from the aggregator's current state,
// stripping cwd from message text where it appears before sourceFile +
// "(", matching the original's path-normalization behavior. cwd should
// be the absolute working directory, without a trailing separator.
func (a *Aggregator) Snapshot(cwd, sourceFile string) Summary {
	names := a.ShaderNames()

	a.mu.Lock()
	defer a.mu.Unlock()

	var s Summary
	searchPat := sourceFile + "("
	prefix := cwd + string(pathSeparator)

	for _, name := range names {
		sm := a.shaders[name]
		ss := ShaderSummary{
			Shader:   name,
			Warnings: snapshotBucket(sm.warnings, prefix, searchPat),
			Errors:   snapshotBucket(sm.errors, prefix, searchPat),
		}
		s.TotalWarnings += len(ss.Warnings)
		s.TotalErrors += len(ss.Errors)
		s.Shaders = append(s.Shaders, ss)
	}
	return s
}

func snapshotBucket(bucket map[string]*messageInfo, prefix, searchPat string) []Message {
	msgs := make([]Message, 0, len(bucket))
	for text, info := range bucket {
		msgs = append(msgs, Message{
			Text:         normalizeMessage(text, prefix, searchPat),
			FirstCommand: info.firstCommand,
			Count:        info.count,
		})
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].Text < msgs[j].Text })
	return msgs
}

// normalizeMessage trims trailing whitespace from text, then, if it
// contains searchPat (the source file name followed by an opening
// parenthesis, as compiler diagnostics render "file(line): ..."),
// strips the leading cwd prefix immediately before that point.
func normalizeMessage(text, prefix, searchPat string) string {
	text = strings.TrimRight(text, " \t\r\n")

	idx := strings.Index(text, searchPat)
	if idx < 0 || idx < len(prefix) {
		return text
	}
	if text[idx-len(prefix):idx] != prefix {
		return text
	}
	return text[:idx-len(prefix)] + text[idx:]
}

// Print writes a human-readable summary to w, matching the original's
// layout: a totals line, then per-shader warning and error sections
// with a sample reporting command for each error.
func (s Summary) Print(w io.Writer) {
	if s.TotalWarnings == 0 && s.TotalErrors == 0 {
		return
	}
	fmt.Fprintf(w, "WARNINGS/ERRORS %d/%d\n", s.TotalWarnings, s.TotalErrors)

	for _, ss := range s.Shaders {
		if len(ss.Warnings) > 0 {
			fmt.Fprintf(w, "%s %d WARNING(S):\n", ss.Shader, len(ss.Warnings))
			for _, m := range ss.Warnings {
				fmt.Fprintf(w, "%s\nReported %d time(s)\n", m.Text, m.Count)
			}
		}
		if len(ss.Errors) > 0 {
			fmt.Fprintf(w, "%s %d ERROR(S):\n", ss.Shader, len(ss.Errors))
			for _, m := range ss.Errors {
				fmt.Fprintf(w, "%s\nReported %d time(s), example command:\n    %s\n", m.Text, m.Count, m.FirstCommand)
			}
		}
	}
}
