// Package fold implements the second display layer: hiding anchored
// ranges of the upstream content behind a placeholder. Folded text
// contributes no display rows or columns; only the placeholder is
// rendered, outside the coordinate space.
package fold

import (
	"sort"
	"sync/atomic"

	"github.com/zjrosen/lamina/internal/display/hint"
	"github.com/zjrosen/lamina/internal/log"
	"github.com/zjrosen/lamina/internal/sumtree"
	"github.com/zjrosen/lamina/internal/text"
)

// Placeholder is the display text used for folds that do not carry
// their own.
const Placeholder = "⋯"

// Point is a position in fold space: hint coordinates with folded
// ranges removed.
type Point text.Point

// Text converts back to the underlying point representation.
func (p Point) Text() text.Point { return text.Point(p) }

// ID identifies a fold within its map.
type ID uint64

// Fold is one hidden range, anchored so it tracks through edits.
type Fold struct {
	ID         ID
	Start, End text.Anchor
	// Placeholder is the text rendered in place of the hidden range.
	// Empty means the package default.
	Placeholder string
}

// Range is an anchored range used for unfolding and queries.
type Range struct {
	Start, End text.Anchor
}

// transform is a leaf of the fold layer's tree: either an isomorphic
// span of upstream content or a consumed span with zero output.
type transform struct {
	summary     sumtree.Summary
	isFold      bool
	placeholder string
}

func (t transform) Transform() sumtree.Summary { return t.summary }

func isomorphic(sum text.Summary) transform {
	return transform{summary: sumtree.Summary{Input: sum, Output: sum}}
}

func consumed(sum text.Summary, placeholder string) transform {
	return transform{
		summary:     sumtree.Summary{Input: sum},
		isFold:      true,
		placeholder: placeholder,
	}
}

func pushIsomorphic(items *[]transform, sum text.Summary) {
	if sum.Len == 0 && sum.Lines.Zero() {
		return
	}
	if n := len(*items); n > 0 && !(*items)[n-1].isFold {
		merged := (*items)[n-1].summary.Input
		merged.Add(sum)
		(*items)[n-1] = isomorphic(merged)
		return
	}
	*items = append(*items, isomorphic(sum))
}

// Map owns the fold records and rebuilds the transform tree when they
// or the upstream layer change.
type Map struct {
	nextID       atomic.Uint64
	nextCreaseID atomic.Uint64
	snapshot     *Snapshot
	folds        []Fold
	creases      []Crease
}

// NewMap creates a fold map over the hint snapshot with no folds.
func NewMap(hints *hint.Snapshot) *Map {
	return &Map{snapshot: newSnapshot(hints)}
}

// Snapshot returns the current immutable snapshot.
func (m *Map) Snapshot() *Snapshot { return m.snapshot }

// Fold hides the given anchored ranges. The ID fields of the given
// folds are ignored and reassigned; empty and stale ranges are
// skipped. Returns the ids assigned, the new snapshot, and the change
// as one whole-range edit in fold space.
func (m *Map) Fold(folds []Fold) ([]ID, *Snapshot, []text.PointEdit) {
	buffer := m.snapshot.hints.Buffer()

	var ids []ID
	for _, f := range folds {
		start, err1 := buffer.AnchorToOffset(f.Start)
		end, err2 := buffer.AnchorToOffset(f.End)
		if err1 != nil || err2 != nil {
			log.Debug(log.CatFold, "skipping fold with stale anchors")
			continue
		}
		if start >= end {
			continue
		}
		f.ID = ID(m.nextID.Add(1))
		if f.Placeholder == "" {
			f.Placeholder = Placeholder
		}
		ids = append(ids, f.ID)
		m.folds = append(m.folds, f)
	}
	if len(ids) == 0 {
		return nil, m.snapshot, nil
	}
	snap, edits := m.remap()
	return ids, snap, edits
}

// UnfoldIntersecting removes every fold that overlaps one of the given
// ranges. An empty range unfolds the folds strictly containing it.
func (m *Map) UnfoldIntersecting(ranges []Range) (*Snapshot, []text.PointEdit) {
	buffer := m.snapshot.hints.Buffer()

	kept := m.folds[:0]
	removed := 0
	for _, f := range m.folds {
		foldStart, err1 := buffer.AnchorToOffset(f.Start)
		foldEnd, err2 := buffer.AnchorToOffset(f.End)
		drop := false
		if err1 == nil && err2 == nil {
			for _, r := range ranges {
				rangeStart, err3 := buffer.AnchorToOffset(r.Start)
				rangeEnd, err4 := buffer.AnchorToOffset(r.End)
				if err3 != nil || err4 != nil {
					continue
				}
				if foldEnd > rangeStart && foldStart < rangeEnd {
					drop = true
					break
				}
			}
		}
		if drop {
			removed++
		} else {
			kept = append(kept, f)
		}
	}
	m.folds = kept
	if removed == 0 {
		return m.snapshot, nil
	}
	return m.remap()
}

// Folds returns the fold records in buffer order.
func (m *Map) Folds() []Fold {
	return m.FoldsInRange(text.Point{}, m.snapshot.hints.Buffer().MaxPoint())
}

// FoldsInRange returns the folds overlapping the given buffer range,
// ordered by position. Folds with stale anchors are omitted.
func (m *Map) FoldsInRange(start, end text.Point) []Fold {
	buffer := m.snapshot.hints.Buffer()
	rangeStart := buffer.PointToOffset(start)
	rangeEnd := buffer.PointToOffset(end)

	type placed struct {
		start, end int
		fold       Fold
	}
	var out []placed
	for _, f := range m.folds {
		foldStart, err1 := buffer.AnchorToOffset(f.Start)
		foldEnd, err2 := buffer.AnchorToOffset(f.End)
		if err1 != nil || err2 != nil {
			continue
		}
		if foldEnd >= rangeStart && foldStart <= rangeEnd {
			out = append(out, placed{foldStart, foldEnd, f})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].start != out[j].start {
			return out[i].start < out[j].start
		}
		return out[i].end < out[j].end
	})
	folds := make([]Fold, len(out))
	for i, p := range out {
		folds[i] = p.fold
	}
	return folds
}

// Sync adopts a new hint snapshot, rebuilding the transforms from the
// fold anchors. The hint edits are reported downstream as one
// consolidated whole-range edit in fold space.
func (m *Map) Sync(hints *hint.Snapshot, edits []text.Edit[int]) (*Snapshot, []text.PointEdit) {
	old := m.snapshot
	m.snapshot = &Snapshot{hints: hints, version: old.version + 1}
	m.rebuild()
	if len(edits) == 0 {
		return m.snapshot, nil
	}
	return m.snapshot, []text.PointEdit{{
		OldEnd: old.MaxPoint().Text(),
		NewEnd: m.snapshot.MaxPoint().Text(),
	}}
}

// remap rebuilds after a fold mutation against the unchanged upstream
// snapshot and reports the change as one whole-range edit.
func (m *Map) remap() (*Snapshot, []text.PointEdit) {
	old := m.snapshot
	m.snapshot = &Snapshot{hints: old.hints, version: old.version + 1}
	m.rebuild()
	return m.snapshot, []text.PointEdit{{
		OldEnd: old.MaxPoint().Text(),
		NewEnd: m.snapshot.MaxPoint().Text(),
	}}
}

// rebuild reconstructs the transform tree from the fold anchors.
// Folds whose anchors no longer resolve are dropped; overlapping folds
// are clipped against the ones before them.
func (m *Map) rebuild() {
	hints := m.snapshot.hints
	buffer := hints.Buffer()

	type span struct {
		start, end  int
		placeholder string
	}
	spans := make([]span, 0, len(m.folds))
	kept := m.folds[:0]
	for _, f := range m.folds {
		start, err1 := buffer.AnchorToOffset(f.Start)
		end, err2 := buffer.AnchorToOffset(f.End)
		if err1 != nil || err2 != nil {
			log.Debug(log.CatFold, "dropping fold with stale anchors", "id", f.ID)
			continue
		}
		kept = append(kept, f)
		if end <= start {
			// The folded text was deleted; keep the record but hide
			// nothing.
			continue
		}
		hintStart := hints.ToOffset(hints.ToHintPoint(buffer.OffsetToPoint(start), text.Left))
		hintEnd := hints.ToOffset(hints.ToHintPoint(buffer.OffsetToPoint(end), text.Right))
		spans = append(spans, span{hintStart, hintEnd, f.Placeholder})
	}
	m.folds = kept

	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end < spans[j].end
	})

	var items []transform
	content := hints.Text()
	cur := 0
	for _, sp := range spans {
		start := max(sp.start, cur)
		if sp.end <= start {
			continue
		}
		if start > cur {
			pushIsomorphic(&items, text.SummaryOf(content[cur:start]))
		}
		items = append(items, consumed(text.SummaryOf(content[start:sp.end]), sp.placeholder))
		cur = sp.end
	}
	if cur < len(content) || len(items) == 0 {
		pushIsomorphic(&items, text.SummaryOf(content[cur:]))
	}

	m.snapshot.transforms = sumtree.FromItems(items)
}

// Snapshot is an immutable view of the fold layer.
type Snapshot struct {
	hints      *hint.Snapshot
	transforms sumtree.Tree[transform]
	version    int
}

func newSnapshot(hints *hint.Snapshot) *Snapshot {
	s := &Snapshot{hints: hints}
	s.transforms = sumtree.FromItems([]transform{isomorphic(hints.Summary())})
	return s
}

// Hints returns the hint snapshot this layer was built against.
func (s *Snapshot) Hints() *hint.Snapshot { return s.hints }

// Buffer returns the underlying buffer snapshot.
func (s *Snapshot) Buffer() *text.Snapshot { return s.hints.Buffer() }

// Version increments every rebuild.
func (s *Snapshot) Version() int { return s.version }

// MaxPoint returns the last valid fold-space point.
func (s *Snapshot) MaxPoint() Point {
	return Point(s.transforms.Summary().Output.Lines)
}

// Len returns the fold-space length in bytes.
func (s *Snapshot) Len() int {
	return s.transforms.Summary().Output.Len
}

// Summary returns the text summary of the visible content.
func (s *Snapshot) Summary() text.Summary {
	return s.transforms.Summary().Output
}

// ToFoldPoint converts a hint-space point into fold space. Inside a
// hidden range, Left bias yields the fold's start and Right bias its
// end; the two coincide because folds occupy no output space.
func (s *Snapshot) ToFoldPoint(p hint.Point, bias text.Bias) Point {
	c := s.transforms.Cursor()
	c.Seek(sumtree.Input, p.Text(), text.Right)

	item, ok := c.Item()
	if !ok {
		return Point(c.Start().Point(sumtree.Output))
	}
	if item.isFold {
		if bias == text.Left || p.Text().Cmp(c.Start().Point(sumtree.Input)) == 0 {
			return Point(c.Start().Point(sumtree.Output))
		}
		return Point(c.End().Point(sumtree.Output))
	}
	overshoot := p.Text().Sub(c.Start().Point(sumtree.Input))
	result := c.Start().Point(sumtree.Output).Add(overshoot)
	return Point(text.Min(result, c.End().Point(sumtree.Output)))
}

// ToHintPoint converts a fold-space point back to hint space. At the
// zero-width position of a fold, Left bias resolves to the hidden
// range's start and Right bias to its end.
func (s *Snapshot) ToHintPoint(p Point, bias text.Bias) hint.Point {
	c := s.transforms.Cursor()
	c.Seek(sumtree.Output, p.Text(), bias)

	item, ok := c.Item()
	if !ok || item.isFold {
		return hint.Point(c.Start().Point(sumtree.Input))
	}
	overshoot := p.Text().Sub(c.Start().Point(sumtree.Output))
	return hint.Point(c.Start().Point(sumtree.Input).Add(overshoot))
}

// ToOffset converts a fold-space point to a fold-space byte offset.
func (s *Snapshot) ToOffset(p Point) int {
	c := s.transforms.Cursor()
	c.Seek(sumtree.Output, p.Text(), text.Left)

	base := c.Start().Offset(sumtree.Output)
	item, ok := c.Item()
	if !ok || item.isFold {
		return base
	}
	rel := p.Text().Sub(c.Start().Point(sumtree.Output))
	inputStart := c.Start().Point(sumtree.Input)
	return base + s.hints.ToOffset(hint.Point(inputStart.Add(rel))) - s.hints.ToOffset(hint.Point(inputStart))
}

// FromOffset converts a fold-space byte offset to a fold-space point.
func (s *Snapshot) FromOffset(off int) Point {
	c := s.transforms.Cursor()
	c.SeekOffset(sumtree.Output, off, text.Left)

	base := c.Start().Point(sumtree.Output)
	item, ok := c.Item()
	if !ok || item.isFold {
		return Point(base)
	}
	rel := off - c.Start().Offset(sumtree.Output)
	inputStart := c.Start().Point(sumtree.Input)
	target := s.hints.FromOffset(s.hints.ToOffset(hint.Point(inputStart)) + rel)
	return Point(base.Add(target.Text().Sub(inputStart)))
}

// TextInRange returns the display text between two fold-space points.
// Hidden ranges contribute their placeholder, which occupies no
// columns.
func (s *Snapshot) TextInRange(start, end Point) string {
	return s.textInOffsetRange(s.ToOffset(start), s.ToOffset(end))
}

// RowText returns the display text of one fold-space row.
func (s *Snapshot) RowText(row uint32) string {
	start, end, ok := s.rowBounds(row)
	if !ok {
		return ""
	}
	return s.textInOffsetRange(start, end)
}

// Line returns the visible text of one fold-space row without
// placeholders, so byte indexes into it are fold-space columns.
func (s *Snapshot) Line(row uint32) string {
	start, end, ok := s.rowBounds(row)
	if !ok {
		return ""
	}
	var out []byte
	c := s.transforms.Cursor()
	c.SeekOffset(sumtree.Output, start, text.Left)
	for {
		item, ok := c.Item()
		if !ok {
			break
		}
		itemStart := c.Start().Offset(sumtree.Output)
		if itemStart >= end {
			break
		}
		if !item.isFold {
			itemEnd := c.End().Offset(sumtree.Output)
			from := max(start, itemStart)
			to := min(end, itemEnd)
			if to > from {
				a := s.hints.ToOffset(hint.Point(c.Start().Point(sumtree.Input)))
				out = append(out, s.hints.TextInRange(s.hints.FromOffset(a+from-itemStart), s.hints.FromOffset(a+to-itemStart))...)
			}
		}
		c.Next()
	}
	return string(out)
}

func (s *Snapshot) rowBounds(row uint32) (start, end int, ok bool) {
	maxPoint := s.MaxPoint().Text()
	if row > maxPoint.Row {
		return 0, 0, false
	}
	start = s.ToOffset(Point(text.NewPoint(row, 0)))
	if row == maxPoint.Row {
		end = s.Len()
	} else {
		end = s.ToOffset(Point(text.NewPoint(row+1, 0))) - 1
	}
	return start, end, true
}

func (s *Snapshot) textInOffsetRange(start, end int) string {
	if end < start {
		return ""
	}
	var out []byte
	c := s.transforms.Cursor()
	c.SeekOffset(sumtree.Output, start, text.Left)
	for {
		item, ok := c.Item()
		if !ok {
			break
		}
		itemStart := c.Start().Offset(sumtree.Output)
		if itemStart > end {
			break
		}

		if item.isFold {
			// Folds occupy no output space, so one sitting exactly on
			// the range end still renders its placeholder.
			if itemStart >= start {
				out = append(out, item.placeholder...)
			}
		} else {
			itemEnd := c.End().Offset(sumtree.Output)
			from := max(start, itemStart)
			to := min(end, itemEnd)
			if to > from {
				a := s.hints.ToOffset(hint.Point(c.Start().Point(sumtree.Input)))
				out = append(out, s.hints.TextInRange(s.hints.FromOffset(a+from-itemStart), s.hints.FromOffset(a+to-itemStart))...)
			}
		}
		c.Next()
	}
	return string(out)
}
