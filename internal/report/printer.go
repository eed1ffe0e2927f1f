// Package report prints patch reports for people and for machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/freewebtopdf/source-patcher/internal/domain"
)

// Format selects how a report is rendered
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat validates a --format value
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatText, "":
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown format %q (want text or json)", s)
}

// Printer writes reports to one writer
type Printer struct {
	w      io.Writer
	format Format

	applied  *color.Color
	notFound *color.Color
	skipped  *color.Color
	added    *color.Color
	removed  *color.Color
	hunk     *color.Color
}

// NewPrinter creates a printer. Colour is used only for text output to a
// terminal.
func NewPrinter(w io.Writer, format Format) *Printer {
	p := &Printer{
		w:        w,
		format:   format,
		applied:  color.New(color.FgGreen),
		notFound: color.New(color.FgYellow),
		skipped:  color.New(color.FgCyan),
		added:    color.New(color.FgGreen),
		removed:  color.New(color.FgRed),
		hunk:     color.New(color.FgMagenta),
	}
	p.SetColor(format == FormatText && isTerminal(w))
	return p
}

// SetColor forces colour on or off
func (p *Printer) SetColor(enabled bool) {
	for _, c := range []*color.Color{p.applied, p.notFound, p.skipped, p.added, p.removed, p.hunk} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Print renders the report. In text mode that is one line per rule followed
// by the diff when present; in JSON mode a single indented object.
func (p *Printer) Print(rep *domain.PatchReport) error {
	if p.format == FormatJSON {
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	for _, res := range rep.Results {
		if _, err := fmt.Fprintln(p.w, p.Line(res)); err != nil {
			return err
		}
	}
	if rep.Diff != "" {
		return p.printDiff(rep.Diff)
	}
	return nil
}

// Line formats one rule result
func (p *Printer) Line(res domain.EditResult) string {
	var status string
	switch res.Status {
	case domain.StatusApplied:
		status = p.applied.Sprint(res.Status)
	case domain.StatusNotFound:
		status = p.notFound.Sprint(res.Status)
	default:
		status = p.skipped.Sprint(res.Status)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%d] %s %s: %s", res.Index, res.Type, res.RuleID, status)
	if res.Status == domain.StatusApplied {
		fmt.Fprintf(&b, " count=%d", res.Count)
		if len(res.Lines) > 0 {
			fmt.Fprintf(&b, " lines=%s", formatLines(res.Lines))
		}
	}
	if res.Message != "" {
		fmt.Fprintf(&b, " (%s)", res.Message)
	}
	return b.String()
}

func (p *Printer) printDiff(diff string) error {
	for _, line := range strings.SplitAfter(diff, "\n") {
		if line == "" {
			continue
		}
		var err error
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			_, err = io.WriteString(p.w, line)
		case strings.HasPrefix(line, "+"):
			_, err = p.added.Fprint(p.w, line)
		case strings.HasPrefix(line, "-"):
			_, err = p.removed.Fprint(p.w, line)
		case strings.HasPrefix(line, "@@"):
			_, err = p.hunk.Fprint(p.w, line)
		default:
			_, err = io.WriteString(p.w, line)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// formatLines renders zero-based line numbers compactly, collapsing runs
// such as 4,5,6 into 4-6.
func formatLines(lines []int) string {
	var parts []string
	for i := 0; i < len(lines); {
		j := i
		for j+1 < len(lines) && lines[j+1] == lines[j]+1 {
			j++
		}
		if j > i {
			parts = append(parts, fmt.Sprintf("%d-%d", lines[i], lines[j]))
		} else {
			parts = append(parts, fmt.Sprintf("%d", lines[i]))
		}
		i = j + 1
	}
	return strings.Join(parts, ",")
}
