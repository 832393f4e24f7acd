// Package metrics is the rendering collaborator of the display
// pipeline. It answers the two questions the wrap layer asks: how wide
// is this text, and where may this line break.
package metrics

// Pixels is a physical width. The display core never interprets it, it
// only compares widths against the configured wrap width.
type Pixels float64

// MaxIndent caps the indent carried onto soft-wrapped continuation
// rows.
const MaxIndent uint32 = 256

// Font identifies the face and size used for measurement.
type Font struct {
	Family string
	Size   Pixels
}

// TextMeasurer measures rendered text width for one font.
type TextMeasurer interface {
	// Width returns the rendered width of a single line of text.
	Width(s string) Pixels
}

// Boundary marks one soft-wrap position within a line.
type Boundary struct {
	// Offset is the byte offset where the continuation row starts.
	Offset int
	// NextIndent is the column indent of the continuation row.
	NextIndent uint32
}

// LineBreaker computes the soft-wrap boundaries of a single line at a
// given available width. Boundaries are returned in ascending order and
// never split a grapheme cluster.
type LineBreaker interface {
	WrapLine(line string, width Pixels) []Boundary
}
