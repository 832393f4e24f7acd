package wrap

import (
	"strings"

	"github.com/zjrosen/lamina/internal/display/tab"
	"github.com/zjrosen/lamina/internal/metrics"
	"github.com/zjrosen/lamina/internal/sumtree"
	"github.com/zjrosen/lamina/internal/text"
)

// Point is a position in wrap space: tab coordinates with soft wrap
// rows inserted.
type Point text.Point

// Text converts back to the underlying point representation.
func (p Point) Text() text.Point { return text.Point(p) }

// transform is a leaf of the wrap layer's tree: either an isomorphic
// span of upstream content or an inserted soft wrap, which produces a
// newline plus the continuation indent while consuming nothing.
type transform struct {
	summary sumtree.Summary
	isWrap  bool
}

func (t transform) Transform() sumtree.Summary { return t.summary }

func isomorphic(sum text.Summary) transform {
	return transform{summary: sumtree.Summary{Input: sum, Output: sum}}
}

func softWrap(indent uint32) transform {
	return transform{
		isWrap: true,
		summary: sumtree.Summary{Output: text.Summary{
			Lines:           text.NewPoint(1, indent),
			LastLineChars:   indent,
			LongestRow:      1,
			LongestRowChars: indent,
			Len:             1 + int(indent),
			LenUTF16:        1 + int(indent),
		}},
	}
}

func push(items *[]transform, t transform) {
	if n := len(*items); n > 0 && !t.isWrap && !(*items)[n-1].isWrap {
		(*items)[n-1].summary.Add(t.summary)
		return
	}
	*items = append(*items, t)
}

func pushIsomorphic(items *[]transform, sum text.Summary) {
	if sum.Len == 0 && sum.Lines.Zero() {
		return
	}
	push(items, isomorphic(sum))
}

// Snapshot is an immutable view of the wrap layer. An interpolated
// snapshot has correct coordinates but stale soft wrap positions in
// recently edited rows; the exact snapshot follows once the background
// rewrap lands.
type Snapshot struct {
	tabs         *tab.Snapshot
	transforms   sumtree.Tree[transform]
	interpolated bool
	version      int
}

func newSnapshot(tabs *tab.Snapshot) *Snapshot {
	var items []transform
	pushIsomorphic(&items, tabs.TextSummaryForRange(tab.Point{}, tabs.MaxPoint()))
	return &Snapshot{tabs: tabs, transforms: sumtree.FromItems(items)}
}

// Tabs returns the tab snapshot this layer was built against.
func (s *Snapshot) Tabs() *tab.Snapshot { return s.tabs }

// Version increments every sync, rewrap, and interpolation.
func (s *Snapshot) Version() int { return s.version }

// Interpolated reports whether soft wrap positions may be stale.
func (s *Snapshot) Interpolated() bool { return s.interpolated }

// MaxPoint returns the last valid wrap-space point.
func (s *Snapshot) MaxPoint() Point {
	if s.transforms.IsEmpty() {
		return Point(s.tabs.MaxPoint().Text())
	}
	return Point(s.transforms.Summary().Output.Lines)
}

// Summary returns the aggregate metrics of the wrapped text.
func (s *Snapshot) Summary() text.Summary {
	return s.transforms.Summary().Output
}

// LongestRow returns the wrap row with the most characters.
func (s *Snapshot) LongestRow() uint32 {
	return s.transforms.Summary().Output.LongestRow
}

// ToWrapPoint converts a tab-space point into wrap space. At a soft
// wrap boundary, Left rests at the end of the broken row and Right at
// the start of the continuation, after its indent.
func (s *Snapshot) ToWrapPoint(p tab.Point, bias text.Bias) Point {
	if s.transforms.IsEmpty() {
		return Point(p.Text())
	}
	c := s.transforms.Cursor()
	c.Seek(sumtree.Input, p.Text(), bias)
	start := c.Start()
	overshoot := p.Text().Sub(start.Input.Lines)
	return Point(start.Output.Lines.Add(overshoot))
}

// ToTabPoint converts a wrap-space point back to tab space. A point
// within a continuation indent clamps to the soft wrap position.
func (s *Snapshot) ToTabPoint(p Point, bias text.Bias) tab.Point {
	if s.transforms.IsEmpty() {
		return tab.Point(p.Text())
	}
	c := s.transforms.Cursor()
	c.Seek(sumtree.Output, p.Text(), bias)
	item, ok := c.Item()
	if !ok || item.isWrap {
		return tab.Point(c.Start().Input.Lines)
	}
	overshoot := p.Text().Sub(c.Start().Output.Lines)
	return tab.Point(c.Start().Input.Lines.Add(overshoot))
}

// rowSpan locates one wrap row in tab space: the start of its content,
// the column it runs to, and the indent prefix carried by a
// continuation row.
func (s *Snapshot) rowSpan(row uint32) (start text.Point, endCol, indent uint32, ok bool) {
	c := s.transforms.Cursor()
	c.Seek(sumtree.Output, text.NewPoint(row, 0), text.Right)
	item, found := c.Item()
	if !found {
		return text.Point{}, 0, 0, false
	}

	if item.isWrap {
		indent = item.summary.Output.Lines.Column
		start = c.Start().Input.Lines
		c.Next()
	} else {
		start = c.Start().Input.Lines.Add(text.NewPoint(row, 0).Sub(c.Start().Output.Lines))
	}

	// The row runs to the next soft wrap on it, or to the line end.
	endCol = uint32(len(s.tabs.Line(start.Row)))
	c.Next()
	if next, found := c.Item(); found && next.isWrap && c.Start().Output.Lines.Row == row {
		endCol = c.Start().Input.Lines.Column
	}
	return start, endCol, indent, true
}

// RowText returns the display text of one wrap row, including the
// indent of a continuation row. Rows split by a soft wrap render
// without fold placeholders.
func (s *Snapshot) RowText(row uint32) string {
	if s.transforms.IsEmpty() {
		return s.tabs.RowText(row)
	}
	if row > s.MaxPoint().Text().Row {
		return ""
	}
	start, endCol, indent, ok := s.rowSpan(row)
	if !ok {
		return ""
	}
	line := s.tabs.Line(start.Row)
	if indent == 0 && start.Column == 0 && endCol == uint32(len(line)) {
		return s.tabs.RowText(start.Row)
	}
	return strings.Repeat(" ", int(indent)) + sliceLine(line, start.Column, endCol)
}

// rowRaw is RowText measured the way coordinates count it: indent
// included, fold placeholders never.
func (s *Snapshot) rowRaw(row uint32) string {
	start, endCol, indent, ok := s.rowSpan(row)
	if !ok {
		return ""
	}
	line := s.tabs.Line(start.Row)
	return strings.Repeat(" ", int(indent)) + sliceLine(line, start.Column, endCol)
}

func sliceLine(line string, lo, hi uint32) string {
	lo = min(lo, uint32(len(line)))
	hi = min(hi, uint32(len(line)))
	if lo > hi {
		lo = hi
	}
	return line[lo:hi]
}

// TextSummaryForRows summarizes the wrapped text of the half-open row
// range, in the same placeholder-free measure the coordinates use.
func (s *Snapshot) TextSummaryForRows(start, end uint32) text.Summary {
	maxRow := s.MaxPoint().Text().Row
	if end > maxRow+1 {
		end = maxRow + 1
	}
	if s.transforms.IsEmpty() {
		a := text.NewPoint(start, 0)
		b := text.Min(text.NewPoint(end, 0), s.tabs.MaxPoint().Text())
		return s.tabs.TextSummaryForRange(tab.Point(a), tab.Point(b))
	}
	var b strings.Builder
	for row := start; row < end; row++ {
		b.WriteString(s.rowRaw(row))
		if row < maxRow {
			b.WriteByte('\n')
		}
	}
	return text.SummaryOf(b.String())
}

// rowPatch reports the transition between two snapshots as one edit
// covering every row of each.
func rowPatch(old, next *Snapshot) text.Patch[uint32] {
	return text.Patch[uint32]{{
		OldEnd: old.MaxPoint().Text().Row + 1,
		NewEnd: next.MaxPoint().Text().Row + 1,
	}}
}

// interpolate adopts a new tab snapshot without computing soft wraps:
// edited regions become isomorphic, so their coordinates stay valid
// while the exact rewrap runs.
func (s *Snapshot) interpolate(tabs *tab.Snapshot, edits []text.PointEdit) (*Snapshot, text.Patch[uint32]) {
	next := &Snapshot{tabs: tabs, interpolated: true, version: s.version + 1}
	if len(edits) == 0 {
		next.transforms = s.transforms
		next.interpolated = s.interpolated
		return next, nil
	}
	next.transforms = s.splice(tabs, edits, func(items *[]transform, e text.PointEdit) {
		pushIsomorphic(items, tabs.TextSummaryForRange(tab.Point(e.NewStart), tab.Point(e.NewEnd)))
	})
	return next, rowPatch(s, next)
}

// update adopts a new tab snapshot and rewraps every edited row.
func (s *Snapshot) update(tabs *tab.Snapshot, edits []text.PointEdit, width metrics.Pixels, breaker metrics.LineBreaker) (*Snapshot, text.Patch[uint32]) {
	next := &Snapshot{tabs: tabs, version: s.version + 1}
	if len(edits) == 0 {
		next.transforms = s.transforms
		next.interpolated = s.interpolated
		return next, nil
	}

	// Wrapping is a per-line computation, so widen each edit to whole
	// rows before splicing.
	oldMax := s.tabs.MaxPoint().Text()
	newMax := tabs.MaxPoint().Text()
	var rowEdits []text.PointEdit
	for _, re := range coalesceRows(edits) {
		rowEdits = append(rowEdits, text.PointEdit{
			OldStart: text.NewPoint(re.oldStart, 0),
			OldEnd:   text.Min(text.NewPoint(re.oldEnd, 0), oldMax),
			NewStart: text.NewPoint(re.newStart, 0),
			NewEnd:   text.Min(text.NewPoint(re.newEnd, 0), newMax),
		})
	}

	next.transforms = s.splice(tabs, rowEdits, func(items *[]transform, e text.PointEdit) {
		appendWrappedRows(items, tabs, e.NewStart.Row, e.NewEnd, width, breaker)
	})
	return next, rowPatch(s, next)
}

type rowEdit struct {
	oldStart, oldEnd uint32
	newStart, newEnd uint32
}

// coalesceRows converts point edits to half-open row ranges, merging
// edits whose row ranges touch.
func coalesceRows(edits []text.PointEdit) []rowEdit {
	var out []rowEdit
	for _, e := range edits {
		re := rowEdit{
			oldStart: e.OldStart.Row, oldEnd: e.OldEnd.Row + 1,
			newStart: e.NewStart.Row, newEnd: e.NewEnd.Row + 1,
		}
		if n := len(out); n > 0 && re.oldStart <= out[n-1].oldEnd {
			out[n-1].oldEnd = max(out[n-1].oldEnd, re.oldEnd)
			out[n-1].newEnd = max(out[n-1].newEnd, re.newEnd)
			continue
		}
		out = append(out, re)
	}
	return out
}

// splice rebuilds the transform sequence around a set of tab edits.
// Unedited transforms are reused; fill produces the replacement for
// each edited region. Gaps between reused transforms and an edit come
// from the new tab snapshot, the tail of a transform extending past an
// edit from the old one.
func (s *Snapshot) splice(tabs *tab.Snapshot, edits []text.PointEdit, fill func(items *[]transform, e text.PointEdit)) sumtree.Tree[transform] {
	old := s.transforms.Items()
	var items []transform
	var oldPos, newPos text.Point
	i := 0

	for _, e := range edits {
		for i < len(old) {
			end := oldPos.Add(old[i].summary.Input.Lines)
			if end.Cmp(e.OldStart) > 0 {
				break
			}
			push(&items, old[i])
			newPos = newPos.Add(old[i].summary.Input.Lines)
			oldPos = end
			i++
		}
		if newPos.Cmp(e.NewStart) < 0 {
			pushIsomorphic(&items, tabs.TextSummaryForRange(tab.Point(newPos), tab.Point(e.NewStart)))
			newPos = e.NewStart
		}

		fill(&items, e)
		newPos = e.NewEnd

		for i < len(old) {
			end := oldPos.Add(old[i].summary.Input.Lines)
			if end.Cmp(e.OldEnd) > 0 {
				break
			}
			oldPos = end
			i++
		}
		if i < len(old) && oldPos.Cmp(e.OldEnd) < 0 {
			end := oldPos.Add(old[i].summary.Input.Lines)
			if !old[i].isWrap {
				tail := s.tabs.TextSummaryForRange(tab.Point(e.OldEnd), tab.Point(end))
				pushIsomorphic(&items, tail)
				newPos = newPos.Add(tail.Lines)
			}
			oldPos = end
			i++
		}
	}
	for ; i < len(old); i++ {
		push(&items, old[i])
	}
	return sumtree.FromItems(items)
}

// appendWrappedRows wraps the tab rows from startRow up to end,
// emitting an isomorphic transform per segment and a soft wrap per
// break.
func appendWrappedRows(items *[]transform, tabs *tab.Snapshot, startRow uint32, end text.Point, width metrics.Pixels, breaker metrics.LineBreaker) {
	for row := startRow; row < end.Row || (row == end.Row && end.Column > 0); row++ {
		line := tabs.Line(row)
		if row == end.Row && int(end.Column) < len(line) {
			line = line[:end.Column]
		}
		seg := 0
		for _, b := range breaker.WrapLine(line, width) {
			if b.Offset <= seg || b.Offset >= len(line) {
				continue
			}
			pushIsomorphic(items, text.SummaryOf(line[seg:b.Offset]))
			*items = append(*items, softWrap(min(b.NextIndent, metrics.MaxIndent)))
			seg = b.Offset
		}
		if row < end.Row {
			pushIsomorphic(items, text.SummaryOf(line[seg:]+"\n"))
		} else if seg < len(line) {
			pushIsomorphic(items, text.SummaryOf(line[seg:]))
		}
	}
}
