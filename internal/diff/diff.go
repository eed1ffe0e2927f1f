// Package diff renders unified diffs of a document before and after patching,
// computed line-wise with sergi/go-diff.
package diff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DefaultContext is the number of unchanged lines shown around a change
const DefaultContext = 3

// LineType classifies a diff line
type LineType int

const (
	LineContext LineType = iota
	LineAdded
	LineRemoved
)

// Line is one line of a hunk
type Line struct {
	Type      LineType
	Content   string
	NoNewline bool // the line is the last of its side and has no terminator
}

// Hunk is a group of nearby changes with surrounding context
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []Line
}

// Stats counts added and removed lines
type Stats struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
}

// Compute returns the hunks turning oldText into newText
func Compute(oldText, newText string, context int) []Hunk {
	if oldText == newText {
		return nil
	}
	if context < 0 {
		context = 0
	}
	return group(operations(oldText, newText), context)
}

// Unified renders a unified diff with the given file labels. Identical
// inputs render as an empty string.
func Unified(oldName, newName, oldText, newText string) string {
	hunks := Compute(oldText, newText, DefaultContext)
	if len(hunks) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- %s\n+++ %s\n", oldName, newName)
	for _, h := range hunks {
		fmt.Fprintf(&b, "@@ -%s +%s @@\n", span(h.OldStart, h.OldCount), span(h.NewStart, h.NewCount))
		for _, l := range h.Lines {
			switch l.Type {
			case LineAdded:
				b.WriteByte('+')
			case LineRemoved:
				b.WriteByte('-')
			default:
				b.WriteByte(' ')
			}
			b.WriteString(l.Content)
			b.WriteByte('\n')
			if l.NoNewline {
				b.WriteString("\\ No newline at end of file\n")
			}
		}
	}
	return b.String()
}

// Summarize counts added and removed lines between the two texts
func Summarize(oldText, newText string) Stats {
	var s Stats
	for _, op := range operations(oldText, newText) {
		switch op.Type {
		case LineAdded:
			s.Added++
		case LineRemoved:
			s.Removed++
		}
	}
	return s
}

func span(start, count int) string {
	// an empty side points at the line before the change
	if count == 0 {
		return fmt.Sprintf("%d,0", start-1)
	}
	if count == 1 {
		return fmt.Sprintf("%d", start)
	}
	return fmt.Sprintf("%d,%d", start, count)
}

func operations(oldText, newText string) []Line {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	a, b, lineArray := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var ops []Line
	for _, d := range diffs {
		typ := LineContext
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			typ = LineAdded
		case diffmatchpatch.DiffDelete:
			typ = LineRemoved
		}
		for _, raw := range strings.SplitAfter(d.Text, "\n") {
			if raw == "" {
				continue
			}
			content, terminated := strings.CutSuffix(raw, "\n")
			ops = append(ops, Line{Type: typ, Content: content, NoNewline: !terminated})
		}
	}
	return ops
}

// group splits operations into hunks, merging changes whose context overlaps
func group(ops []Line, context int) []Hunk {
	var hunks []Hunk
	oldLine, newLine := 1, 1
	i := 0
	for i < len(ops) {
		if ops[i].Type == LineContext {
			oldLine++
			newLine++
			i++
			continue
		}

		start := max(0, i-context)
		h := Hunk{
			OldStart: oldLine - (i - start),
			NewStart: newLine - (i - start),
		}
		for _, l := range ops[start:i] {
			h.Lines = append(h.Lines, l)
			h.OldCount++
			h.NewCount++
		}

		trailing := 0
		for i < len(ops) {
			l := ops[i]
			if l.Type == LineContext {
				if trailing >= context && nextChangeBeyond(ops, i, context) {
					break
				}
				trailing++
				oldLine++
				newLine++
				h.OldCount++
				h.NewCount++
			} else {
				trailing = 0
				if l.Type == LineRemoved {
					oldLine++
					h.OldCount++
				} else {
					newLine++
					h.NewCount++
				}
			}
			h.Lines = append(h.Lines, l)
			i++
		}
		hunks = append(hunks, h)
	}
	return hunks
}

// nextChangeBeyond reports whether the next change after index i is more than
// context lines away, or there is none.
func nextChangeBeyond(ops []Line, i, context int) bool {
	for j := i; j < len(ops) && j <= i+context; j++ {
		if ops[j].Type != LineContext {
			return false
		}
	}
	return true
}
