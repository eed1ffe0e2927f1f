package patcher

import (
	"fmt"
	"strings"

	"github.com/freewebtopdf/source-patcher/internal/document"
	"github.com/freewebtopdf/source-patcher/internal/domain"
)

// FindLiteral returns the byte offset of the first case-sensitive occurrence
// of needle in text. An empty needle is never found.
func FindLiteral(text, needle string) (int, bool) {
	if needle == "" {
		return 0, false
	}
	i := strings.Index(text, needle)
	if i < 0 {
		return 0, false
	}
	return i, true
}

// findAll returns the offsets of non-overlapping occurrences, left to right.
// limit <= 0 means no limit.
func findAll(text, needle string, limit int) []int {
	var offsets []int
	if needle == "" {
		return offsets
	}
	pos := 0
	for limit <= 0 || len(offsets) < limit {
		i := strings.Index(text[pos:], needle)
		if i < 0 {
			break
		}
		offsets = append(offsets, pos+i)
		pos += i + len(needle)
	}
	return offsets
}

// ApplyReplace rewrites the first, or every, occurrence of rule.Find. When the
// literal is absent the document is returned unmodified with status not_found.
func ApplyReplace(doc *document.Document, rule *domain.PatchRule) (*document.Document, domain.EditResult) {
	text := doc.Text()
	limit := 1
	if rule.EffectiveOccurrence() == domain.OccurrenceAll {
		limit = 0
	}

	find, replace := doc.Normalize(rule.Find), doc.Normalize(rule.Replace)

	offsets := findAll(text, find, limit)
	if len(offsets) == 0 {
		return doc, domain.EditResult{
			Status:  domain.StatusNotFound,
			Message: fmt.Sprintf("literal %q not found", truncate(rule.Find)),
		}
	}

	var b strings.Builder
	b.Grow(len(text) + len(offsets)*(len(replace)-len(find)))
	last := 0
	lines := make([]int, 0, len(offsets))
	encoded := make([]int, 0, len(offsets))
	for _, off := range offsets {
		b.WriteString(text[last:off])
		b.WriteString(replace)
		last = off + len(find)
		lines = append(lines, document.LineAt(text, off))
		encoded = append(encoded, doc.ByteOffset(off))
	}
	b.WriteString(text[last:])

	return doc.WithText(b.String()), domain.EditResult{
		Status:  domain.StatusApplied,
		Offsets: encoded,
		Lines:   lines,
		Count:   len(offsets),
	}
}

// ApplyReplaceBetween replaces the span from the start of rule.StartMarker
// through the end of the first rule.EndMarker that follows it.
func ApplyReplaceBetween(doc *document.Document, rule *domain.PatchRule) (*document.Document, domain.EditResult) {
	text := doc.Text()
	startMarker, endMarker := doc.Normalize(rule.StartMarker), doc.Normalize(rule.EndMarker)
	start, ok := FindLiteral(text, startMarker)
	if !ok {
		return doc, domain.EditResult{
			Status:  domain.StatusNotFound,
			Message: fmt.Sprintf("start marker %q not found", truncate(rule.StartMarker)),
		}
	}
	searchFrom := start + len(startMarker)
	rel, ok := FindLiteral(text[searchFrom:], endMarker)
	if !ok {
		return doc, domain.EditResult{
			Status:  domain.StatusNotFound,
			Message: fmt.Sprintf("end marker %q not found after start marker", truncate(rule.EndMarker)),
		}
	}
	end := searchFrom + rel + len(endMarker)

	firstLine := document.LineAt(text, start)
	lastLine := document.LineAt(text, end-1)
	lines := make([]int, 0, lastLine-firstLine+1)
	for l := firstLine; l <= lastLine; l++ {
		lines = append(lines, l)
	}

	return doc.WithText(text[:start] + doc.Normalize(rule.Replace) + text[end:]), domain.EditResult{
		Status:  domain.StatusApplied,
		Offsets: []int{doc.ByteOffset(start)},
		Lines:   lines,
		Count:   1,
	}
}

func truncate(s string) string {
	const max = 60
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
