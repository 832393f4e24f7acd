package display

import (
	"strings"

	"github.com/zjrosen/lamina/internal/display/block"
	"github.com/zjrosen/lamina/internal/display/fold"
	"github.com/zjrosen/lamina/internal/display/hint"
	"github.com/zjrosen/lamina/internal/display/tab"
	"github.com/zjrosen/lamina/internal/display/wrap"
	"github.com/zjrosen/lamina/internal/metrics"
	"github.com/zjrosen/lamina/internal/text"
)

// Snapshot is an immutable view of the fully composed display. It holds
// the block layer's snapshot, which in turn pins every layer above it.
type Snapshot struct {
	blocks  *block.Snapshot
	version int
}

// Version increments with every sync of the owning map.
func (s *Snapshot) Version() int { return s.version }

// Blocks exposes the underlying block layer snapshot.
func (s *Snapshot) Blocks() *block.Snapshot { return s.blocks }

func (s *Snapshot) wraps() *wrap.Snapshot { return s.blocks.Wraps() }
func (s *Snapshot) tabs() *tab.Snapshot   { return s.wraps().Tabs() }
func (s *Snapshot) folds() *fold.Snapshot { return s.tabs().Folds() }
func (s *Snapshot) hints() *hint.Snapshot { return s.folds().Hints() }

// Buffer returns the buffer snapshot this view was built from.
func (s *Snapshot) Buffer() *text.Snapshot { return s.hints().Buffer() }

// MaxPoint returns the largest valid display point.
func (s *Snapshot) MaxPoint() Point {
	return Point(s.blocks.MaxPoint())
}

// LongestRow returns the display row with the most columns.
func (s *Snapshot) LongestRow() uint32 { return s.blocks.LongestRow() }

// LongestRowWidth returns the column count of the longest display row.
func (s *Snapshot) LongestRowWidth() uint32 {
	return s.blocks.Summary().LongestRowChars
}

// RowText returns the fully transformed text of one display row: hint
// text spliced in, folded rows hidden, tabs expanded, soft-wrap indent
// applied, and invisible characters swapped for visible glyphs. Block
// rows are empty.
func (s *Snapshot) RowText(row uint32) string {
	return replaceInvisibles(s.blocks.RowText(row))
}

func replaceInvisibles(line string) string {
	clean := true
	for _, r := range line {
		if metrics.IsInvisible(r) {
			clean = false
			break
		}
	}
	if clean {
		return line
	}
	var b strings.Builder
	b.Grow(len(line))
	for _, r := range line {
		if metrics.IsInvisible(r) {
			if glyph, ok := metrics.ReplacementGlyph(r); ok {
				b.WriteString(glyph)
				continue
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

// BlockForRow returns the block occupying a display row, if any.
func (s *Snapshot) BlockForRow(row uint32) (block.Block, bool) {
	return s.blocks.BlockForRow(row)
}

// PointToDisplayPoint converts a buffer point to display coordinates.
// At layer boundaries Left rests before inserted or hidden content and
// Right after it; points inside folded ranges collapse onto the fold.
func (s *Snapshot) PointToDisplayPoint(p text.Point, bias text.Bias) Point {
	hp := s.hints().ToHintPoint(p, bias)
	fp := s.folds().ToFoldPoint(hp, bias)
	tp := s.tabs().ToTabPoint(fp)
	wp := s.wraps().ToWrapPoint(tp, bias)
	return Point(s.blocks.ToBlockPoint(wp, bias))
}

// DisplayPointToPoint converts a display point back to buffer
// coordinates. Positions on inserted rows or virtual text resolve to
// the nearest real buffer position in the bias direction.
func (s *Snapshot) DisplayPointToPoint(dp Point, bias text.Bias) text.Point {
	wp := s.blocks.ToWrapPoint(block.Point(dp), bias)
	tp := s.wraps().ToTabPoint(wp, bias)
	fp := s.tabs().ToFoldPoint(tp, bias)
	hp := s.folds().ToHintPoint(fp, bias)
	return s.hints().ToPoint(hp, bias)
}

// ClipPoint snaps an arbitrary display point to a valid position: one
// that round-trips through buffer coordinates unchanged.
func (s *Snapshot) ClipPoint(dp Point, bias text.Bias) Point {
	p := s.DisplayPointToPoint(dp, bias)
	p = s.Buffer().ClipPoint(p, bias)
	return s.PointToDisplayPoint(p, bias)
}
