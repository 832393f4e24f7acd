package metrics

import (
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/patrickmn/go-cache"
	"github.com/rivo/uniseg"
)

// Monospace cell width as a fraction of the font size. A fixed advance
// is exact for monospaced faces and a serviceable estimate otherwise.
const cellWidthRatio = 0.6

// Monospace measures and breaks text assuming a fixed advance per
// terminal cell. Wide runes (CJK, many emoji) count as two cells.
// Measured line widths are cached; the wrap layer measures the same
// lines repeatedly while rewrapping.
type Monospace struct {
	font  Font
	cell  Pixels
	cache *cache.Cache
}

// NewMonospace creates a measurer and breaker for the given font.
func NewMonospace(font Font) *Monospace {
	return &Monospace{
		font:  font,
		cell:  font.Size * cellWidthRatio,
		cache: cache.New(5*time.Minute, 10*time.Minute),
	}
}

// Font returns the font this measurer was built for.
func (m *Monospace) Font() Font { return m.font }

// CellWidth returns the advance of one cell.
func (m *Monospace) CellWidth() Pixels { return m.cell }

// Width implements TextMeasurer.
func (m *Monospace) Width(s string) Pixels {
	if w, ok := m.cache.Get(s); ok {
		return w.(Pixels)
	}
	w := Pixels(runewidth.StringWidth(s)) * m.cell
	m.cache.Set(s, w, cache.DefaultExpiration)
	return w
}

// WrapLine implements LineBreaker. Breaks prefer word starts; a word
// wider than the available width breaks mid-word at cluster
// granularity. Continuation rows inherit the line's leading indent.
func (m *Monospace) WrapLine(line string, width Pixels) []Boundary {
	if width <= 0 || m.cell <= 0 {
		return nil
	}

	indent := m.continuationIndent(line, width)
	budget := width

	var boundaries []Boundary
	rowStart := 0
	rowWidth := Pixels(0)
	lastWordStart := -1
	prevWasSpace := false

	gr := uniseg.NewGraphemes(line)
	for gr.Next() {
		cl := gr.Str()
		start, _ := gr.Positions()
		cw := Pixels(runewidth.StringWidth(cl)) * m.cell
		isSpace := cl == " " || cl == "\t"

		if prevWasSpace && !isSpace {
			lastWordStart = start
		}
		prevWasSpace = isSpace

		if rowWidth+cw > budget && rowWidth > 0 {
			breakAt := start
			if lastWordStart > rowStart {
				breakAt = lastWordStart
			}
			boundaries = append(boundaries, Boundary{Offset: breakAt, NextIndent: indent})
			rowStart = breakAt
			budget = width - Pixels(indent)*m.cell
			rowWidth = m.Width(line[breakAt:start]) + cw
			lastWordStart = -1
			continue
		}
		rowWidth += cw
	}
	return boundaries
}

// continuationIndent returns the indent to carry onto wrapped rows:
// the line's leading whitespace in cells, unless that would consume
// half the available width or exceed the hard cap.
func (m *Monospace) continuationIndent(line string, width Pixels) uint32 {
	var cols uint32
leading:
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case ' ':
			cols++
		case '\t':
			cols += 4
		default:
			break leading
		}
	}
	if cols > MaxIndent {
		cols = MaxIndent
	}
	if Pixels(cols)*m.cell >= width/2 {
		return 0
	}
	return cols
}
