package patcher

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/freewebtopdf/source-patcher/internal/document"
	"github.com/freewebtopdf/source-patcher/internal/domain"
)

// LocateAnchor returns the zero-based index of the line an insert targets.
// The anchor is the first line containing any marker. With a seek, up to
// window lines away from the anchor are scanned for the nearest line matching
// the predicate; when none matches the anchor line itself is returned.
func LocateAnchor(lines []string, spec domain.AnchorSpec) (int, bool) {
	_, target, ok := locate(lines, spec)
	return target, ok
}

// locate returns both the anchor line and the line the seek settled on.
func locate(lines []string, spec domain.AnchorSpec) (anchor, target int, ok bool) {
	anchor = -1
	for i, line := range lines {
		if containsAny(line, spec.Markers) {
			anchor = i
			break
		}
	}
	if anchor < 0 {
		return 0, 0, false
	}
	if spec.Seek == nil {
		return anchor, anchor, true
	}
	if j, found := seek(lines, anchor, spec.Seek); found {
		return anchor, j, true
	}
	return anchor, anchor, true
}

func seek(lines []string, from int, s *domain.Seek) (int, bool) {
	window := s.EffectiveWindow()
	if window > domain.MaxSeekWindow {
		window = domain.MaxSeekWindow
	}
	step := -1
	if s.EffectiveDirection() == domain.SeekForward {
		step = 1
	}
	for k := 1; k <= window; k++ {
		j := from + k*step
		if j < 0 || j >= len(lines) {
			break
		}
		if matches(lines[j], s) {
			return j, true
		}
	}
	return 0, false
}

func matches(line string, s *domain.Seek) bool {
	switch s.Match {
	case domain.SeekBlank:
		return strings.TrimSpace(line) == ""
	case domain.SeekContains:
		return s.Token != "" && strings.Contains(line, s.Token)
	}
	return false
}

func containsAny(line string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(line, m) {
			return true
		}
	}
	return false
}

// ApplyInsert inserts rule.Payload as a block of whole lines before or after
// the located line. One trailing newline on the payload terminates the block.
func ApplyInsert(doc *document.Document, rule *domain.PatchRule) (*document.Document, domain.EditResult) {
	if rule.Anchor == nil {
		return doc, domain.EditResult{Status: domain.StatusNotFound, Message: "rule has no anchor"}
	}
	lines := doc.Lines()
	spec := *rule.Anchor
	spec.Markers = make([]string, len(rule.Anchor.Markers))
	for i, m := range rule.Anchor.Markers {
		spec.Markers[i] = doc.Normalize(m)
	}

	anchor, target, ok := locate(lines, spec)
	if !ok {
		return doc, domain.EditResult{
			Status:  domain.StatusNotFound,
			Message: fmt.Sprintf("no line contains any of %q", rule.Anchor.Markers),
		}
	}

	block := payloadLines(doc.Normalize(rule.Payload))
	if rule.Indent == domain.IndentAuto {
		block = reindent(block, leadingWhitespace(lines[anchor]))
	}

	at := target
	if rule.EffectivePosition() == domain.PositionAfter {
		at = target + 1
	}

	out := make([]string, 0, len(lines)+len(block))
	out = append(out, lines[:at]...)
	out = append(out, block...)
	out = append(out, lines[at:]...)

	inserted := make([]int, len(block))
	for i := range block {
		inserted[i] = at + i
	}

	return doc.WithLines(out), domain.EditResult{
		Status:  domain.StatusApplied,
		Offsets: []int{doc.ByteOffset(lineOffset(lines, at))},
		Lines:   inserted,
		Count:   1,
		Message: fmt.Sprintf("inserted %d lines %s line %d", len(block), rule.EffectivePosition(), target),
	}
}

// payloadLines splits a payload into the lines it inserts
func payloadLines(payload string) []string {
	payload = strings.TrimSuffix(payload, "\n")
	return strings.Split(payload, "\n")
}

// lineOffset returns the byte offset at which line index at starts
func lineOffset(lines []string, at int) int {
	off := 0
	for i := 0; i < at && i < len(lines); i++ {
		off += len(lines[i]) + 1
	}
	return off
}

func leadingWhitespace(line string) string {
	return line[:len(line)-len(strings.TrimLeftFunc(line, unicode.IsSpace))]
}

// reindent strips the indentation shared by the non-blank lines of block and
// prefixes base instead. Blank lines are left empty.
func reindent(block []string, base string) []string {
	common := ""
	first := true
	for _, line := range block {
		if strings.TrimSpace(line) == "" {
			continue
		}
		ws := leadingWhitespace(line)
		if first {
			common, first = ws, false
			continue
		}
		common = commonPrefix(common, ws)
	}

	out := make([]string, len(block))
	for i, line := range block {
		if strings.TrimSpace(line) == "" {
			out[i] = ""
			continue
		}
		out[i] = base + strings.TrimPrefix(line, common)
	}
	return out
}

func commonPrefix(a, b string) string {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[:i]
		}
	}
	return a[:n]
}
