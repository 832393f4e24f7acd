package text

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSummaryOf(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Summary
	}{
		{
			name: "empty",
			text: "",
			want: Summary{},
		},
		{
			name: "single line",
			text: "hello",
			want: Summary{
				Lines:          NewPoint(0, 5),
				FirstLineChars: 5, LastLineChars: 5,
				LongestRowChars: 5,
				Len:             5, LenUTF16: 5,
			},
		},
		{
			name: "two lines",
			text: "ab\nlonger",
			want: Summary{
				Lines:          NewPoint(1, 6),
				FirstLineChars: 2, LastLineChars: 6,
				LongestRow: 1, LongestRowChars: 6,
				Len: 9, LenUTF16: 9,
			},
		},
		{
			name: "trailing newline",
			text: "ab\n",
			want: Summary{
				Lines:          NewPoint(1, 0),
				FirstLineChars: 2, LastLineChars: 0,
				LongestRowChars: 2,
				Len:             3, LenUTF16: 3,
			},
		},
		{
			name: "multibyte runes",
			text: "héllo",
			want: Summary{
				Lines:          NewPoint(0, 6),
				FirstLineChars: 5, LastLineChars: 5,
				LongestRowChars: 5,
				Len:             6, LenUTF16: 5,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, SummaryOf(tt.text))
		})
	}
}

func TestSummaryAddMatchesConcatenation(t *testing.T) {
	// Add must behave exactly like summarizing the concatenated text.
	rapid.Check(t, func(t *rapid.T) {
		alphabet := []string{"a", "b", "é", "\n", " "}
		gen := rapid.SliceOfN(rapid.SampledFrom(alphabet), 0, 40)

		left := strings.Join(gen.Draw(t, "left"), "")
		right := strings.Join(gen.Draw(t, "right"), "")

		sum := SummaryOf(left)
		sum.Add(SummaryOf(right))
		require.Equal(t, SummaryOf(left+right), sum)
	})
}

func TestSummaryAddAssociativity(t *testing.T) {
	a := SummaryOf("one\ntwo")
	b := SummaryOf("three")
	c := SummaryOf("\nfour\n")

	left := a.Added(b).Added(c)
	right := a.Added(b.Added(c))
	require.Equal(t, left, right, "summary addition must be associative")
}
