package document

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_DetectsNewlineStyle(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		newline Newline
		text    string
		lines   int
	}{
		{"empty", "", LF, "", 0},
		{"lf", "a\nb\n", LF, "a\nb\n", 2},
		{"crlf", "a\r\nb\r\n", CRLF, "a\nb\n", 2},
		{"mixed stays raw", "a\r\nb\n", LF, "a\r\nb\n", 2},
		{"no trailing newline", "a\nb", LF, "a\nb", 2},
		{"single newline", "\n", LF, "\n", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := Parse("f.txt", []byte(tt.input))
			assert.Equal(t, tt.newline, doc.Newline())
			assert.Equal(t, tt.text, doc.Text())
			assert.Equal(t, tt.lines, doc.LineCount())
			assert.Equal(t, tt.input, string(doc.Bytes()))
			assert.Equal(t, "f.txt", doc.Path())
		})
	}
}

func TestParse_PreservesBOM(t *testing.T) {
	raw := append([]byte{0xEF, 0xBB, 0xBF}, []byte("x\r\ny\r\n")...)
	doc := Parse("", raw)

	assert.True(t, doc.HasBOM())
	assert.Equal(t, "x\ny\n", doc.Text())
	assert.Equal(t, raw, doc.Bytes())
}

func TestWithText_KeepsEncoding(t *testing.T) {
	doc := Parse("f", []byte("a\r\nb\r\n"))
	edited := doc.WithText("a\nX\r\nb\n")

	assert.Equal(t, "a\nX\nb\n", edited.Text())
	assert.Equal(t, "a\r\nX\r\nb\r\n", string(edited.Bytes()))
	assert.Equal(t, "f", edited.Path())
	assert.Equal(t, "a\r\nb\r\n", string(doc.Bytes()), "original must not change")
}

func TestWithLines_KeepsTrailingNewline(t *testing.T) {
	doc := New("a\nb\nc\n")
	assert.Equal(t, "a\nc\n", doc.WithLines([]string{"a", "c"}).Text())

	doc = New("a\nb")
	assert.Equal(t, "a\nb\nc", doc.WithLines([]string{"a", "b", "c"}).Text())
	assert.Equal(t, "", doc.WithLines(nil).Text())
}

func TestLines(t *testing.T) {
	doc := New("A\nB\nC\n")
	if diff := cmp.Diff([]string{"A", "B", "C"}, doc.Lines()); diff != "" {
		t.Errorf("Lines() mismatch (-want +got):\n%s", diff)
	}
	assert.Nil(t, New("").Lines())
}

func TestLineAt(t *testing.T) {
	text := "ab\ncd\nef"
	assert.Equal(t, 0, LineAt(text, 0))
	assert.Equal(t, 0, LineAt(text, 2))
	assert.Equal(t, 1, LineAt(text, 3))
	assert.Equal(t, 2, LineAt(text, 7))
	assert.Equal(t, 2, LineAt(text, 100))
}

func TestByteOffset(t *testing.T) {
	data := []byte("\xEF\xBB\xBFab\r\ncd\r\n")
	doc := Parse("x", data)
	require.Equal(t, "ab\ncd\n", doc.Text())

	assert.Equal(t, 3, doc.ByteOffset(0))
	assert.Equal(t, 7, doc.ByteOffset(3))
	assert.Equal(t, byte('c'), data[doc.ByteOffset(3)])
	assert.Equal(t, len(data), doc.ByteOffset(len(doc.Text())))
	assert.Equal(t, len(data), doc.ByteOffset(100))

	plain := New("ab\ncd")
	assert.Equal(t, 3, plain.ByteOffset(3))
}

func TestEqual(t *testing.T) {
	a := Parse("x", []byte("a\r\n"))
	b := Parse("y", []byte("a\r\n"))
	c := Parse("x", []byte("a\n"))

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))
}

func TestProperty_SplitJoinRoundTrip(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("joining split lines restores the text", prop.ForAll(
		func(parts []string, trailing bool) bool {
			text := JoinLines(parts, trailing)
			lines, gotTrailing := SplitLines(text)
			return JoinLines(lines, gotTrailing) == text
		},
		gen.SliceOf(gen.AlphaString()),
		gen.Bool(),
	))

	properties.Property("line count matches the number of split lines", prop.ForAll(
		func(parts []string, trailing bool) bool {
			doc := New(JoinLines(parts, trailing))
			return doc.LineCount() == len(doc.Lines())
		},
		gen.SliceOf(gen.AlphaString()),
		gen.Bool(),
	))

	properties.Property("bytes round-trip through Parse", prop.ForAll(
		func(parts []string, crlf bool) bool {
			sep := "\n"
			if crlf {
				sep = "\r\n"
			}
			raw := ""
			for _, p := range parts {
				raw += p + sep
			}
			return string(Parse("", []byte(raw)).Bytes()) == raw
		},
		gen.SliceOf(gen.AlphaString()),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
