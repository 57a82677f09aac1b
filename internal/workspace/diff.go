package workspace

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// LineKind marks a diff line.
type LineKind int

const (
	LineContext LineKind = iota
	LineAdded
	LineRemoved
)

// DiffLine is one line of a line-level diff.
type DiffLine struct {
	Kind    LineKind
	Content string
}

// Prefix returns the unified-diff marker for the line.
func (l DiffLine) Prefix() string {
	switch l.Kind {
	case LineAdded:
		return "+"
	case LineRemoved:
		return "-"
	default:
		return " "
	}
}

// LineDiff compares two texts line by line.
func LineDiff(before, after string) []DiffLine {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	var out []DiffLine
	for _, d := range diffs {
		if d.Text == "" {
			continue
		}
		kind := LineContext
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			kind = LineAdded
		case diffmatchpatch.DiffDelete:
			kind = LineRemoved
		}
		text := strings.TrimSuffix(d.Text, "\n")
		for _, line := range strings.Split(text, "\n") {
			out = append(out, DiffLine{Kind: kind, Content: line})
		}
	}
	return out
}

// Changed reports whether any line was added or removed.
func Changed(lines []DiffLine) bool {
	for _, l := range lines {
		if l.Kind != LineContext {
			return true
		}
	}
	return false
}
