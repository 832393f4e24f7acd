// Package hint implements the first display layer: virtual text
// spliced into the buffer at anchored positions. Hint text exists only
// in display coordinates; the buffer never contains it.
package hint

import (
	"sort"
	"sync/atomic"

	"github.com/zjrosen/lamina/internal/log"
	"github.com/zjrosen/lamina/internal/sumtree"
	"github.com/zjrosen/lamina/internal/text"
)

// Point is a position in hint space: buffer coordinates with hint text
// spliced in.
type Point text.Point

// Text converts back to the underlying point representation.
func (p Point) Text() text.Point { return text.Point(p) }

// ID identifies a hint within its map.
type ID uint64

// Hint is one piece of anchored virtual text.
type Hint struct {
	ID       ID
	Position text.Anchor
	Text     string
	// Bias controls which side of the insertion point the hint sticks
	// to, and which side a forward conversion lands on at the boundary.
	Bias text.Bias
}

// transform is a leaf of the hint layer's tree: either an isomorphic
// span of buffer text or a hint insertion.
type transform struct {
	summary sumtree.Summary
	isHint  bool
	content string
	bias    text.Bias
}

func (t transform) Transform() sumtree.Summary { return t.summary }

func isomorphic(sum text.Summary) transform {
	return transform{summary: sumtree.Summary{Input: sum, Output: sum}}
}

func hintTransform(h Hint) transform {
	return transform{
		summary: sumtree.Summary{Output: text.SummaryOf(h.Text)},
		isHint:  true,
		content: h.Text,
		bias:    h.Bias,
	}
}

// pushIsomorphic appends an isomorphic span, merging with a trailing
// isomorphic so adjacent ones never survive a rebuild.
func pushIsomorphic(items *[]transform, sum text.Summary) {
	if sum.Len == 0 && sum.Lines.Zero() {
		return
	}
	if n := len(*items); n > 0 && !(*items)[n-1].isHint {
		merged := (*items)[n-1].summary.Input
		merged.Add(sum)
		(*items)[n-1] = isomorphic(merged)
		return
	}
	*items = append(*items, isomorphic(sum))
}

// Map owns the hints and rebuilds the transform tree when they or the
// buffer change.
type Map struct {
	nextID   atomic.Uint64
	snapshot *Snapshot
	hints    []Hint
}

// NewMap creates a hint map over the buffer with no hints.
func NewMap(buffer *text.Snapshot) *Map {
	return &Map{snapshot: newSnapshot(buffer)}
}

// Snapshot returns the current immutable snapshot.
func (m *Map) Snapshot() *Snapshot { return m.snapshot }

// Insert adds one hint and returns its id.
func (m *Map) Insert(position text.Anchor, content string, bias text.Bias) ID {
	ids := m.InsertBatch([]Hint{{Position: position, Text: content, Bias: bias}})
	return ids[0]
}

// InsertBatch adds several hints with one rebuild. The ID fields of the
// given hints are ignored and reassigned.
func (m *Map) InsertBatch(hints []Hint) []ID {
	ids := make([]ID, len(hints))
	for i, h := range hints {
		h.ID = ID(m.nextID.Add(1))
		ids[i] = h.ID
		m.hints = append(m.hints, h)
	}
	m.rebuild()
	return ids
}

// Remove deletes hints by id. Unknown ids are ignored.
func (m *Map) Remove(ids []ID) {
	drop := make(map[ID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := m.hints[:0]
	for _, h := range m.hints {
		if !drop[h.ID] {
			kept = append(kept, h)
		}
	}
	m.hints = kept
	m.rebuild()
}

// Hints returns the hints in buffer order as of the last rebuild.
func (m *Map) Hints() []Hint {
	out := make([]Hint, len(m.hints))
	copy(out, m.hints)
	return out
}

// Sync adopts a new buffer snapshot, translating the buffer edits into
// hint-space offset edits and rebuilding the transforms from anchors.
func (m *Map) Sync(buffer *text.Snapshot, edits []text.PointEdit) (*Snapshot, []text.Edit[int]) {
	old := m.snapshot

	var hintEdits []text.Edit[int]
	for _, e := range edits {
		hintEdits = append(hintEdits, old.translateEdit(buffer, e))
	}

	m.snapshot = &Snapshot{buffer: buffer, version: old.version + 1}
	m.rebuild()
	return m.snapshot, hintEdits
}

// translateEdit maps one buffer edit into hint-offset space. Hints
// inside a replaced range survive proportionally to how much of the
// range's text survives; a pure deletion removes them.
func (s *Snapshot) translateEdit(newBuffer *text.Snapshot, e text.PointEdit) text.Edit[int] {
	oldStart := s.ToOffset(s.ToHintPoint(e.OldStart, text.Left))
	oldEnd := s.ToOffset(s.ToHintPoint(e.OldEnd, text.Right))

	oldBufferLen := s.buffer.PointToOffset(e.OldEnd) - s.buffer.PointToOffset(e.OldStart)
	hintBytesInRange := (oldEnd - oldStart) - oldBufferLen
	newBufferLen := newBuffer.PointToOffset(e.NewEnd) - newBuffer.PointToOffset(e.NewStart)

	newEnd := oldStart + newBufferLen
	if newBufferLen > 0 && oldBufferLen > 0 && hintBytesInRange > 0 {
		ratio := float64(newBufferLen) / float64(oldBufferLen)
		newEnd += int(float64(hintBytesInRange) * ratio)
	}

	return text.Edit[int]{
		OldStart: oldStart, OldEnd: oldEnd,
		NewStart: oldStart, NewEnd: newEnd,
	}
}

// rebuild reconstructs the transform tree from the hint anchors against
// the snapshot's buffer. Hints whose anchors no longer resolve are
// dropped.
func (m *Map) rebuild() {
	buffer := m.snapshot.buffer

	type placed struct {
		offset int
		hint   Hint
	}
	resolved := make([]placed, 0, len(m.hints))
	kept := m.hints[:0]
	for _, h := range m.hints {
		off, err := buffer.AnchorToOffset(h.Position)
		if err != nil {
			log.Debug(log.CatHint, "dropping hint with stale anchor", "id", h.ID)
			continue
		}
		kept = append(kept, h)
		resolved = append(resolved, placed{offset: off, hint: h})
	}
	m.hints = kept

	sort.SliceStable(resolved, func(i, j int) bool {
		if resolved[i].offset != resolved[j].offset {
			return resolved[i].offset < resolved[j].offset
		}
		if resolved[i].hint.Bias != resolved[j].hint.Bias {
			return resolved[i].hint.Bias == text.Left
		}
		return resolved[i].hint.ID < resolved[j].hint.ID
	})

	var items []transform
	content := buffer.Text()
	cur := 0
	for _, p := range resolved {
		if p.offset > cur {
			pushIsomorphic(&items, text.SummaryOf(content[cur:p.offset]))
			cur = p.offset
		}
		items = append(items, hintTransform(p.hint))
	}
	if cur < len(content) || len(items) == 0 {
		pushIsomorphic(&items, text.SummaryOf(content[cur:]))
	}

	m.snapshot.transforms = sumtree.FromItems(items)
}

// Snapshot is an immutable view of the hint layer.
type Snapshot struct {
	buffer     *text.Snapshot
	transforms sumtree.Tree[transform]
	version    int
}

func newSnapshot(buffer *text.Snapshot) *Snapshot {
	s := &Snapshot{buffer: buffer}
	s.transforms = sumtree.FromItems([]transform{isomorphic(buffer.TextSummary())})
	return s
}

// Buffer returns the buffer snapshot this layer was built against.
func (s *Snapshot) Buffer() *text.Snapshot { return s.buffer }

// Version increments every sync.
func (s *Snapshot) Version() int { return s.version }

// MaxPoint returns the last valid hint-space point.
func (s *Snapshot) MaxPoint() Point {
	return Point(s.transforms.Summary().Output.Lines)
}

// Len returns the hint-space length in bytes.
func (s *Snapshot) Len() int {
	return s.transforms.Summary().Output.Len
}

// Summary returns the text summary of the full hint-space content.
func (s *Snapshot) Summary() text.Summary {
	return s.transforms.Summary().Output
}

// Text returns the full hint-space content: buffer text with hint text
// spliced in.
func (s *Snapshot) Text() string {
	return s.textInOffsetRange(0, s.Len())
}

// ToHintPoint converts a buffer point into hint space. At a position
// carrying hints, Left bias lands after hints that are themselves
// left-biased, Right bias lands after every hint at the position.
func (s *Snapshot) ToHintPoint(p text.Point, bias text.Bias) Point {
	c := s.transforms.Cursor()
	c.Seek(sumtree.Input, p, bias)

	for {
		item, ok := c.Item()
		if !ok {
			return Point(c.Start().Point(sumtree.Output))
		}
		if item.isHint {
			if item.bias == text.Left {
				c.Next()
				continue
			}
			return Point(c.Start().Point(sumtree.Output))
		}

		if p.Cmp(c.End().Point(sumtree.Input)) == 0 {
			// At the end of an isomorphic span: step over trailing
			// hints whose bias matches the request.
			for {
				c.Next()
				next, ok := c.Item()
				if !ok || !next.isHint || next.bias != bias {
					return Point(c.Start().Point(sumtree.Output))
				}
			}
		}

		overshoot := p.Sub(c.Start().Point(sumtree.Input))
		return Point(c.Start().Point(sumtree.Output).Add(overshoot))
	}
}

// ToPoint converts a hint-space point back to a buffer point. Positions
// inside hint text collapse to the hint's insertion point.
func (s *Snapshot) ToPoint(p Point, bias text.Bias) text.Point {
	c := s.transforms.Cursor()
	c.Seek(sumtree.Output, p.Text(), bias)

	item, ok := c.Item()
	if !ok || item.isHint {
		return c.Start().Point(sumtree.Input)
	}
	overshoot := p.Text().Sub(c.Start().Point(sumtree.Output))
	return c.Start().Point(sumtree.Input).Add(overshoot)
}

// ToOffset converts a hint-space point to a hint-space byte offset.
func (s *Snapshot) ToOffset(p Point) int {
	c := s.transforms.Cursor()
	c.Seek(sumtree.Output, p.Text(), text.Left)

	base := c.Start().Offset(sumtree.Output)
	item, ok := c.Item()
	if !ok {
		return base
	}
	rel := p.Text().Sub(c.Start().Point(sumtree.Output))
	if item.isHint {
		return base + offsetWithin(item.content, rel)
	}
	inputStart := c.Start().Point(sumtree.Input)
	return base + s.buffer.PointToOffset(inputStart.Add(rel)) - s.buffer.PointToOffset(inputStart)
}

// FromOffset converts a hint-space byte offset to a hint-space point.
func (s *Snapshot) FromOffset(off int) Point {
	c := s.transforms.Cursor()
	c.SeekOffset(sumtree.Output, off, text.Left)

	base := c.Start().Point(sumtree.Output)
	item, ok := c.Item()
	if !ok {
		return Point(base)
	}
	rel := off - c.Start().Offset(sumtree.Output)
	if item.isHint {
		return Point(base.Add(pointWithin(item.content, rel)))
	}
	inputStart := c.Start().Point(sumtree.Input)
	target := s.buffer.OffsetToPoint(s.buffer.PointToOffset(inputStart) + rel)
	return Point(base.Add(target.Sub(inputStart)))
}

// TextInRange returns the display text between two hint-space points,
// buffer text and hint text interleaved.
func (s *Snapshot) TextInRange(start, end Point) string {
	return s.textInOffsetRange(s.ToOffset(start), s.ToOffset(end))
}

// RowText returns the display text of one hint-space row.
func (s *Snapshot) RowText(row uint32) string {
	maxPoint := s.MaxPoint().Text()
	if row > maxPoint.Row {
		return ""
	}
	start := s.ToOffset(Point(text.NewPoint(row, 0)))
	var end int
	if row == maxPoint.Row {
		end = s.Len()
	} else {
		end = s.ToOffset(Point(text.NewPoint(row+1, 0))) - 1
	}
	return s.textInOffsetRange(start, end)
}

func (s *Snapshot) textInOffsetRange(start, end int) string {
	if end <= start {
		return ""
	}
	var out []byte
	c := s.transforms.Cursor()
	c.SeekOffset(sumtree.Output, start, text.Right)
	for {
		item, ok := c.Item()
		if !ok {
			break
		}
		itemStart := c.Start().Offset(sumtree.Output)
		itemEnd := c.End().Offset(sumtree.Output)
		if itemStart >= end {
			break
		}

		var content string
		if item.isHint {
			content = item.content
		} else {
			a := s.buffer.PointToOffset(c.Start().Point(sumtree.Input))
			content = s.buffer.Text()[a : a+item.summary.Input.Len]
		}
		from := max(start, itemStart) - itemStart
		to := min(end, itemEnd) - itemStart
		out = append(out, content[from:to]...)
		c.Next()
	}
	return string(out)
}

// offsetWithin returns the byte offset of a relative point inside s.
func offsetWithin(s string, rel text.Point) int {
	off := 0
	for row := uint32(0); row < rel.Row; row++ {
		for off < len(s) && s[off] != '\n' {
			off++
		}
		if off < len(s) {
			off++
		}
	}
	off += int(rel.Column)
	if off > len(s) {
		off = len(s)
	}
	return off
}

// pointWithin returns the relative point at a byte offset inside s.
func pointWithin(s string, off int) text.Point {
	if off > len(s) {
		off = len(s)
	}
	var p text.Point
	for i := 0; i < off; i++ {
		if s[i] == '\n' {
			p.Row++
			p.Column = 0
		} else {
			p.Column++
		}
	}
	return p
}
