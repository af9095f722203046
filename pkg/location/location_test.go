package location

import (
	"testing"
)

func TestIndexPosition(t *testing.T) {
	input := []byte("Profile: Foo\nParent: Patient\n* name 1..1\n")
	idx := NewIndex(input)

	tests := []struct {
		name   string
		offset int
		want   Position
	}{
		{name: "start of file", offset: 0, want: Position{Line: 1, Column: 1}},
		{name: "inside first line", offset: 9, want: Position{Line: 1, Column: 10}},
		{name: "start of second line", offset: 13, want: Position{Line: 2, Column: 1}},
		{name: "star on third line", offset: 29, want: Position{Line: 3, Column: 1}},
		{name: "card on third line", offset: 36, want: Position{Line: 3, Column: 8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := idx.Position(tt.offset)
			if got != tt.want {
				t.Errorf("Position(%d) = %+v; want %+v", tt.offset, got, tt.want)
			}
			if scanned := OffsetToPosition(input, tt.offset); scanned != got {
				t.Errorf("OffsetToPosition(%d) = %+v; index gave %+v", tt.offset, scanned, got)
			}
		})
	}
}

func TestSpanString(t *testing.T) {
	tests := []struct {
		name string
		span Span
		want string
	}{
		{
			name: "file only",
			span: Span{File: "a.fsh"},
			want: "a.fsh",
		},
		{
			name: "single position",
			span: NewSpan("a.fsh", Position{Line: 3, Column: 1}, Position{Line: 3, Column: 1}),
			want: "a.fsh:3:1",
		},
		{
			name: "range",
			span: NewSpan("a.fsh", Position{Line: 3, Column: 1}, Position{Line: 5, Column: 12}),
			want: "a.fsh:3:1 - 5:12",
		},
		{
			name: "no file",
			span: NewSpan("", Position{Line: 2, Column: 4}, Position{}),
			want: "2:4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.span.String(); got != tt.want {
				t.Errorf("String() = %q; want %q", got, tt.want)
			}
		})
	}
}

func TestSpanThrough(t *testing.T) {
	a := NewSpan("a.fsh", Position{Line: 1, Column: 1}, Position{Line: 1, Column: 8})
	b := NewSpan("a.fsh", Position{Line: 4, Column: 1}, Position{Line: 4, Column: 20})

	got := a.Through(b)
	if got.Start != a.Start || got.End != b.End {
		t.Errorf("Through() = %+v; want start %+v end %+v", got, a.Start, b.End)
	}
	if (Span{}).IsZero() != true {
		t.Error("zero span should report IsZero")
	}
}
