// Package document holds the in-memory text of one file together with the
// byte-level details needed to write it back the way it was read.
package document

import (
	"bytes"
	"strings"
)

// Newline is the line terminator a document was read with
type Newline string

const (
	LF   Newline = "\n"
	CRLF Newline = "\r\n"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Document is an immutable view of a file's text. Text is always held with
// "\n" terminators; a document read with uniform "\r\n" terminators is
// converted back on Bytes.
type Document struct {
	path    string
	text    string
	newline Newline
	bom     bool
}

// Parse builds a document from raw file bytes
func Parse(path string, data []byte) *Document {
	doc := &Document{path: path, newline: LF}
	if bytes.HasPrefix(data, utf8BOM) {
		doc.bom = true
		data = data[len(utf8BOM):]
	}
	text := string(data)
	if lf := strings.Count(text, "\n"); lf > 0 && strings.Count(text, "\r\n") == lf {
		doc.newline = CRLF
		text = strings.ReplaceAll(text, "\r\n", "\n")
	}
	doc.text = text
	return doc
}

// New builds an LF document from text, mostly for tests and previews
func New(text string) *Document {
	return Parse("", []byte(text))
}

// Path returns the path the document was loaded from, if any
func (d *Document) Path() string { return d.path }

// Text returns the normalized text
func (d *Document) Text() string { return d.text }

// Newline returns the detected line terminator
func (d *Document) Newline() Newline { return d.newline }

// HasBOM reports whether the source started with a UTF-8 byte order mark
func (d *Document) HasBOM() bool { return d.bom }

// Bytes returns the document encoded as it was read: original terminator
// style and BOM.
func (d *Document) Bytes() []byte {
	text := d.text
	if d.newline == CRLF {
		text = strings.ReplaceAll(text, "\n", "\r\n")
	}
	if !d.bom {
		return []byte(text)
	}
	out := make([]byte, 0, len(utf8BOM)+len(text))
	out = append(out, utf8BOM...)
	return append(out, text...)
}

// Lines returns the document split into lines without terminators
func (d *Document) Lines() []string {
	lines, _ := SplitLines(d.text)
	return lines
}

// LineCount returns the number of lines. A final terminator does not start
// a new line.
func (d *Document) LineCount() int {
	if d.text == "" {
		return 0
	}
	n := strings.Count(d.text, "\n")
	if !strings.HasSuffix(d.text, "\n") {
		n++
	}
	return n
}

// TrailingNewline reports whether the text ends with a terminator
func (d *Document) TrailingNewline() bool {
	return strings.HasSuffix(d.text, "\n")
}

// WithText returns a document with the same path and encoding holding text
func (d *Document) WithText(text string) *Document {
	if d.newline == CRLF {
		text = strings.ReplaceAll(text, "\r\n", "\n")
	}
	return &Document{path: d.path, text: text, newline: d.newline, bom: d.bom}
}

// WithLines returns a document built from lines, keeping the trailing
// terminator state of d.
func (d *Document) WithLines(lines []string) *Document {
	return d.WithText(JoinLines(lines, d.TrailingNewline()))
}

// Normalize converts s to the document's internal terminator form so that
// literals written with "\r\n" still match a CRLF document.
func (d *Document) Normalize(s string) string {
	if d.newline == CRLF {
		return strings.ReplaceAll(s, "\r\n", "\n")
	}
	return s
}

// ByteOffset maps an offset in the normalized text to the offset of the same
// byte in the encoded document, counting the BOM and every CR that Bytes
// writes before it
func (d *Document) ByteOffset(off int) int {
	off = max(0, min(off, len(d.text)))
	encoded := off
	if d.bom {
		encoded += len(utf8BOM)
	}
	if d.newline == CRLF {
		encoded += strings.Count(d.text[:off], "\n")
	}
	return encoded
}

// Equal reports whether both documents encode to the same bytes
func (d *Document) Equal(other *Document) bool {
	if other == nil {
		return false
	}
	return bytes.Equal(d.Bytes(), other.Bytes())
}

// SplitLines splits text on "\n". The second result reports whether text
// ended with a terminator, which does not produce a trailing empty line.
func SplitLines(text string) ([]string, bool) {
	if text == "" {
		return nil, false
	}
	trailing := strings.HasSuffix(text, "\n")
	if trailing {
		text = text[:len(text)-1]
	}
	return strings.Split(text, "\n"), trailing
}

// JoinLines is the inverse of SplitLines
func JoinLines(lines []string, trailing bool) string {
	if len(lines) == 0 {
		return ""
	}
	s := strings.Join(lines, "\n")
	if trailing {
		s += "\n"
	}
	return s
}

// LineAt returns the zero-based line number containing byte offset
func LineAt(text string, offset int) int {
	if offset > len(text) {
		offset = len(text)
	}
	return strings.Count(text[:offset], "\n")
}
