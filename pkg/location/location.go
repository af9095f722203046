// Package location provides source positions and spans for FSH text.
//
// Positions are 1-indexed (human-readable) and are used only for diagnostics,
// never for semantics.
package location

import (
	"fmt"
	"sort"
)

// Position is a line/column pair in a source file.
type Position struct {
	Line   int
	Column int
}

// IsZero reports whether the position was never set.
func (p Position) IsZero() bool {
	return p.Line == 0 && p.Column == 0
}

// Span represents a range of text in a named source file.
type Span struct {
	File  string
	Start Position
	End   Position
}

// NewSpan creates a span in file from start to end.
func NewSpan(file string, start, end Position) Span {
	return Span{File: file, Start: start, End: end}
}

// IsZero reports whether the span carries no position information.
func (s Span) IsZero() bool {
	return s.File == "" && s.Start.IsZero() && s.End.IsZero()
}

// WithFile returns a copy of the span attributed to file.
func (s Span) WithFile(file string) Span {
	s.File = file
	return s
}

// Through returns a span from the start of s to the end of other.
func (s Span) Through(other Span) Span {
	return Span{File: s.File, Start: s.Start, End: other.End}
}

// String formats the span as "file:line:col - line:col".
func (s Span) String() string {
	if s.Start.IsZero() {
		return s.File
	}
	pos := fmt.Sprintf("%d:%d", s.Start.Line, s.Start.Column)
	if !s.End.IsZero() && s.End != s.Start {
		pos += fmt.Sprintf(" - %d:%d", s.End.Line, s.End.Column)
	}
	if s.File == "" {
		return pos
	}
	return s.File + ":" + pos
}

// Index maps byte offsets of one source text to line/column positions.
// Building the index is O(n); each lookup is O(log lines).
type Index struct {
	lineStarts []int
}

// NewIndex builds an Index over input.
func NewIndex(input []byte) *Index {
	starts := []int{0}
	for i, b := range input {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &Index{lineStarts: starts}
}

// Position converts a byte offset to a Position.
func (x *Index) Position(offset int) Position {
	line := sort.Search(len(x.lineStarts), func(i int) bool {
		return x.lineStarts[i] > offset
	})
	if line == 0 {
		return Position{Line: 1, Column: offset + 1}
	}
	return Position{Line: line, Column: offset - x.lineStarts[line-1] + 1}
}

// OffsetToPosition converts a byte offset to line and column numbers by
// scanning input from the start.
func OffsetToPosition(input []byte, offset int) Position {
	line := 1
	col := 1
	for i := 0; i < offset && i < len(input); i++ {
		if input[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return Position{Line: line, Column: col}
}
