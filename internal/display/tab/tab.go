// Package tab implements the third display layer: expanding tab
// characters into runs of spaces reaching the next tab stop. The layer
// is row-preserving and carries no anchored state; every conversion
// derives from the upstream text and the configured width.
package tab

import (
	"strings"

	"github.com/zjrosen/lamina/internal/display/fold"
	"github.com/zjrosen/lamina/internal/text"
)

// DefaultWidth is the tab stop width used until configured otherwise.
const DefaultWidth uint32 = 4

// Point is a position in tab space: fold coordinates with tabs
// expanded to spaces.
type Point text.Point

// Text converts back to the underlying point representation.
func (p Point) Text() text.Point { return text.Point(p) }

// Map holds the tab width and the current snapshot.
type Map struct {
	tabWidth uint32
	snapshot *Snapshot
}

// NewMap creates a tab map over the fold snapshot.
func NewMap(folds *fold.Snapshot, tabWidth uint32) *Map {
	if tabWidth == 0 {
		tabWidth = DefaultWidth
	}
	m := &Map{tabWidth: tabWidth}
	m.snapshot = &Snapshot{folds: folds, tabWidth: tabWidth}
	return m
}

// Snapshot returns the current immutable snapshot.
func (m *Map) Snapshot() *Snapshot { return m.snapshot }

// TabWidth returns the configured tab stop width.
func (m *Map) TabWidth() uint32 { return m.tabWidth }

// SetTabWidth changes the tab stop width, reporting the change as one
// whole-range edit. A zero or unchanged width is a no-op.
func (m *Map) SetTabWidth(width uint32) (*Snapshot, []text.PointEdit) {
	if width == 0 || width == m.tabWidth {
		return m.snapshot, nil
	}
	old := m.snapshot
	m.tabWidth = width
	m.snapshot = &Snapshot{folds: old.folds, tabWidth: width, version: old.version + 1}
	return m.snapshot, []text.PointEdit{{
		OldEnd: old.MaxPoint().Text(),
		NewEnd: m.snapshot.MaxPoint().Text(),
	}}
}

// Sync adopts a new fold snapshot, translating the fold edits into tab
// space by expanding their endpoints.
func (m *Map) Sync(folds *fold.Snapshot, edits []text.PointEdit) (*Snapshot, []text.PointEdit) {
	old := m.snapshot
	m.snapshot = &Snapshot{folds: folds, tabWidth: m.tabWidth, version: old.version + 1}

	var tabEdits []text.PointEdit
	for _, e := range edits {
		tabEdits = append(tabEdits, text.PointEdit{
			OldStart: old.ToTabPoint(fold.Point(e.OldStart)).Text(),
			OldEnd:   old.ToTabPoint(fold.Point(e.OldEnd)).Text(),
			NewStart: m.snapshot.ToTabPoint(fold.Point(e.NewStart)).Text(),
			NewEnd:   m.snapshot.ToTabPoint(fold.Point(e.NewEnd)).Text(),
		})
	}
	return m.snapshot, tabEdits
}

// Snapshot is an immutable view of the tab layer.
type Snapshot struct {
	folds    *fold.Snapshot
	tabWidth uint32
	version  int
}

// Folds returns the fold snapshot this layer was built against.
func (s *Snapshot) Folds() *fold.Snapshot { return s.folds }

// TabWidth returns the tab stop width this snapshot was built with.
func (s *Snapshot) TabWidth() uint32 { return s.tabWidth }

// Version increments every sync and width change.
func (s *Snapshot) Version() int { return s.version }

// MaxPoint returns the last valid tab-space point.
func (s *Snapshot) MaxPoint() Point {
	maxFold := s.folds.MaxPoint().Text()
	return s.ToTabPoint(fold.Point(maxFold))
}

// ToTabPoint converts a fold-space point into tab space by expanding
// the tabs before it on its row.
func (s *Snapshot) ToTabPoint(p fold.Point) Point {
	line := s.folds.Line(p.Text().Row)
	target := p.Text().Column

	var display uint32
	for i := uint32(0); i < uint32(len(line)) && i < target; i++ {
		if line[i] == '\t' {
			display = (display/s.tabWidth + 1) * s.tabWidth
		} else {
			display++
		}
	}
	return Point(text.NewPoint(p.Text().Row, display))
}

// ToFoldPoint converts a tab-space point back to fold space. A point
// inside a tab's expansion clamps to the tab under Left bias and to
// the position after it under Right bias.
func (s *Snapshot) ToFoldPoint(p Point, bias text.Bias) fold.Point {
	line := s.folds.Line(p.Text().Row)
	target := p.Text().Column

	var display, byteOff uint32
	for byteOff < uint32(len(line)) && display < target {
		if line[byteOff] == '\t' {
			next := (display/s.tabWidth + 1) * s.tabWidth
			if next > target {
				if bias == text.Right {
					byteOff++
				}
				break
			}
			display = next
		} else {
			display++
		}
		byteOff++
	}
	return fold.Point(text.NewPoint(p.Text().Row, byteOff))
}

// Line returns one row with tabs expanded and fold placeholders
// omitted, so byte indexes coincide with tab-space columns.
func (s *Snapshot) Line(row uint32) string {
	line := s.folds.Line(row)
	if !strings.ContainsRune(line, '\t') {
		return line
	}
	var out strings.Builder
	var display uint32
	for i := 0; i < len(line); i++ {
		if line[i] == '\t' {
			next := (display/s.tabWidth + 1) * s.tabWidth
			for ; display < next; display++ {
				out.WriteByte(' ')
			}
		} else {
			out.WriteByte(line[i])
			display++
		}
	}
	return out.String()
}

// TextSummaryForRange summarizes the expanded text between two
// tab-space points.
func (s *Snapshot) TextSummaryForRange(start, end Point) text.Summary {
	if end.Text().Cmp(start.Text()) <= 0 {
		return text.Summary{}
	}
	var out strings.Builder
	for row := start.Text().Row; row <= end.Text().Row; row++ {
		line := s.Line(row)
		lo, hi := uint32(0), uint32(len(line))
		if row == start.Text().Row {
			lo = min(start.Text().Column, hi)
		}
		if row == end.Text().Row {
			hi = min(end.Text().Column, hi)
		}
		if lo > hi {
			lo = hi
		}
		if row > start.Text().Row {
			out.WriteByte('\n')
		}
		out.WriteString(line[lo:hi])
	}
	return text.SummaryOf(out.String())
}

// RowText returns the display text of one row with tabs expanded.
// Fold placeholders count toward tab stops by their byte width.
func (s *Snapshot) RowText(row uint32) string {
	line := s.folds.RowText(row)
	if !strings.ContainsRune(line, '\t') {
		return line
	}
	var out strings.Builder
	var display uint32
	for i := 0; i < len(line); i++ {
		if line[i] == '\t' {
			next := (display/s.tabWidth + 1) * s.tabWidth
			for ; display < next; display++ {
				out.WriteByte(' ')
			}
		} else {
			out.WriteByte(line[i])
			display++
		}
	}
	return out.String()
}
