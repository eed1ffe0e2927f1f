package patcher

import (
	"fmt"

	"github.com/freewebtopdf/source-patcher/internal/document"
	"github.com/freewebtopdf/source-patcher/internal/domain"
)

// DeleteLineRange removes the zero-based, end-exclusive range [start, end).
// A range that does not fit the document is a RANGE_ERROR; it is never clamped.
func DeleteLineRange(doc *document.Document, start, end int) (*document.Document, error) {
	lines := doc.Lines()
	total := len(lines)
	if start < 0 || start > end || end > total {
		return doc, domain.NewRangeError(start, end, total)
	}
	if start == end {
		return doc, nil
	}

	out := make([]string, 0, total-(end-start))
	out = append(out, lines[:start]...)
	out = append(out, lines[end:]...)
	return doc.WithLines(out), nil
}

func applyDeleteRange(doc *document.Document, rule *domain.PatchRule) (*document.Document, domain.EditResult, error) {
	start, end := *rule.Start, *rule.End
	next, err := DeleteLineRange(doc, start, end)
	if err != nil {
		return doc, domain.EditResult{Status: domain.StatusNotFound, Message: err.Error()}, err
	}

	removed := make([]int, 0, end-start)
	for l := start; l < end; l++ {
		removed = append(removed, l)
	}
	return next, domain.EditResult{
		Status:  domain.StatusApplied,
		Offsets: []int{doc.ByteOffset(lineOffset(doc.Lines(), start))},
		Lines:   removed,
		Count:   end - start,
		Message: fmt.Sprintf("deleted lines [%d, %d)", start, end),
	}, nil
}
