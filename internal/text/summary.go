package text

import (
	"unicode/utf16"
	"unicode/utf8"
)

// Summary aggregates the metrics of a span of text. Summaries form a
// monoid under Add, which is what lets transform trees answer extent
// queries without touching the text itself.
type Summary struct {
	// Lines is the span as a relative extent: Row counts newlines,
	// Column is the byte length of the final line.
	Lines Point

	// FirstLineChars and LastLineChars count runes on the first and
	// last lines of the span.
	FirstLineChars uint32
	LastLineChars  uint32

	// LongestRow is the row (relative to the span start) with the most
	// runes, LongestRowChars that rune count.
	LongestRow      uint32
	LongestRowChars uint32

	// Len is the byte length, LenUTF16 the UTF-16 code unit length.
	Len      int
	LenUTF16 int
}

// SummaryOf computes the summary of a string in one pass.
func SummaryOf(s string) Summary {
	var sum Summary
	sum.Len = len(s)

	var rowChars uint32
	for _, r := range s {
		if r == '\n' {
			if sum.Lines.Row == 0 {
				sum.FirstLineChars = rowChars
			}
			if rowChars > sum.LongestRowChars {
				sum.LongestRow = sum.Lines.Row
				sum.LongestRowChars = rowChars
			}
			sum.Lines.Row++
			sum.Lines.Column = 0
			rowChars = 0
		} else {
			sum.Lines.Column += uint32(utf8.RuneLen(r))
			rowChars++
		}
		sum.LenUTF16 += len(utf16.Encode([]rune{r}))
	}
	if sum.Lines.Row == 0 {
		sum.FirstLineChars = rowChars
	}
	sum.LastLineChars = rowChars
	if rowChars > sum.LongestRowChars {
		sum.LongestRow = sum.Lines.Row
		sum.LongestRowChars = rowChars
	}
	return sum
}

// Add concatenates other onto s, as if other's text immediately followed.
func (s *Summary) Add(other Summary) {
	joined := s.LastLineChars + other.FirstLineChars
	if joined > s.LongestRowChars {
		s.LongestRow = s.Lines.Row
		s.LongestRowChars = joined
	}
	if other.LongestRowChars > s.LongestRowChars {
		s.LongestRow = s.Lines.Row + other.LongestRow
		s.LongestRowChars = other.LongestRowChars
	}

	if s.Lines.Row == 0 {
		s.FirstLineChars += other.FirstLineChars
	}
	if other.Lines.Row == 0 {
		s.LastLineChars += other.FirstLineChars
	} else {
		s.LastLineChars = other.LastLineChars
	}

	s.Lines = s.Lines.Add(other.Lines)
	s.Len += other.Len
	s.LenUTF16 += other.LenUTF16
}

// Added returns the concatenation without mutating s.
func (s Summary) Added(other Summary) Summary {
	s.Add(other)
	return s
}
