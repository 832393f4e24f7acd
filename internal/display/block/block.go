// Package block implements the fifth display layer: inserting
// decoration rows between, or in place of, the wrapped content rows.
// Blocks are anchored so they track through edits, and their rows carry
// no text of their own; the owner renders into them.
package block

import (
	"sort"
	"sync/atomic"

	"github.com/zjrosen/lamina/internal/display/tab"
	"github.com/zjrosen/lamina/internal/display/wrap"
	"github.com/zjrosen/lamina/internal/log"
	"github.com/zjrosen/lamina/internal/sumtree"
	"github.com/zjrosen/lamina/internal/text"
)

// Point is a position in block space: wrap coordinates with block rows
// inserted and replaced rows removed.
type Point text.Point

// Text converts back to the underlying point representation.
func (p Point) Text() text.Point { return text.Point(p) }

// ID identifies a block within its map.
type ID uint64

// Placement says where a block's rows go relative to its anchors.
// At one position, placements order Replace, Above, Near, Below, then
// by ascending Priority.
type Placement int

const (
	// PlacementReplace hides every row of the anchored range and shows
	// the block's rows in their place.
	PlacementReplace Placement = iota
	// PlacementAbove puts the block before the first row of the line
	// holding the start anchor.
	PlacementAbove
	// PlacementNear puts the block after the last row of that line,
	// ahead of any Below blocks there.
	PlacementNear
	// PlacementBelow puts the block after the last row of that line.
	PlacementBelow
)

// Block is one decoration. End is only consulted for Replace
// placements, where the range is inclusive of both anchors' lines.
type Block struct {
	ID         ID
	Placement  Placement
	Start, End text.Anchor
	// Height is the number of display rows the block occupies.
	Height uint32
	// Style is opaque to the layer; the owner interprets it when
	// rendering the block's rows.
	Style    string
	Priority int
}

// transform is a leaf of the block layer's tree: an isomorphic span of
// wrapped rows, or a block's rows, which consume the replaced range
// (empty for non-replace placements) and produce Height empty rows.
type transform struct {
	summary sumtree.Summary
	isBlock bool
	id      ID
}

func (t transform) Transform() sumtree.Summary { return t.summary }

func isomorphic(sum text.Summary) transform {
	return transform{summary: sumtree.Summary{Input: sum, Output: sum}}
}

// rowsSummary is the output of height empty rows: one newline each.
func rowsSummary(height uint32) text.Summary {
	return text.Summary{
		Lines:    text.NewPoint(height, 0),
		Len:      int(height),
		LenUTF16: int(height),
	}
}

func pushIsomorphic(items *[]transform, sum text.Summary) {
	if sum.Len == 0 && sum.Lines.Zero() {
		return
	}
	if n := len(*items); n > 0 && !(*items)[n-1].isBlock {
		merged := (*items)[n-1].summary.Input
		merged.Add(sum)
		(*items)[n-1] = isomorphic(merged)
		return
	}
	*items = append(*items, isomorphic(sum))
}

// Map owns the block records and rebuilds the transform tree when they
// or the upstream layer change.
type Map struct {
	nextID   atomic.Uint64
	snapshot *Snapshot
	blocks   []Block
}

// NewMap creates a block map over the wrap snapshot with no blocks.
func NewMap(wraps *wrap.Snapshot) *Map {
	m := &Map{}
	m.snapshot = m.rebuild(wraps, 0)
	return m
}

// Snapshot returns the current immutable snapshot.
func (m *Map) Snapshot() *Snapshot { return m.snapshot }

// Blocks returns the live block records.
func (m *Map) Blocks() []Block {
	out := make([]Block, len(m.blocks))
	copy(out, m.blocks)
	return out
}

// Insert adds blocks. The ID fields of the given blocks are ignored
// and reassigned; zero-height blocks and blocks with stale anchors are
// skipped. Returns the ids assigned, the new snapshot, and the change
// as one whole-range row edit.
func (m *Map) Insert(blocks []Block) ([]ID, *Snapshot, text.Patch[uint32]) {
	buffer := m.snapshot.wraps.Tabs().Folds().Hints().Buffer()

	var ids []ID
	for _, b := range blocks {
		if b.Height == 0 {
			continue
		}
		if _, err := buffer.AnchorToOffset(b.Start); err != nil {
			log.Debug(log.CatBlock, "skipping block with stale anchor")
			continue
		}
		if b.Placement == PlacementReplace {
			if _, err := buffer.AnchorToOffset(b.End); err != nil {
				log.Debug(log.CatBlock, "skipping block with stale anchor")
				continue
			}
		}
		b.ID = ID(m.nextID.Add(1))
		ids = append(ids, b.ID)
		m.blocks = append(m.blocks, b)
	}
	if len(ids) == 0 {
		return nil, m.snapshot, nil
	}
	snap, edits := m.remap()
	return ids, snap, edits
}

// Remove deletes blocks by id. Unknown ids are ignored; removing
// nothing is a no-op.
func (m *Map) Remove(ids []ID) (*Snapshot, text.Patch[uint32]) {
	drop := make(map[ID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := m.blocks[:0]
	for _, b := range m.blocks {
		if !drop[b.ID] {
			kept = append(kept, b)
		}
	}
	if len(kept) == len(m.blocks) {
		return m.snapshot, nil
	}
	m.blocks = kept
	return m.remap()
}

// Resize changes block heights. Unknown ids are ignored; a height of
// zero hides the block without removing its record.
func (m *Map) Resize(heights map[ID]uint32) (*Snapshot, text.Patch[uint32]) {
	changed := false
	for i, b := range m.blocks {
		if h, ok := heights[b.ID]; ok && h != b.Height {
			m.blocks[i].Height = h
			changed = true
		}
	}
	if !changed {
		return m.snapshot, nil
	}
	return m.remap()
}

// Sync adopts a new wrap snapshot, re-anchoring every block. The
// change is reported as one whole-range row edit when the upstream
// reported any.
func (m *Map) Sync(wraps *wrap.Snapshot, edits text.Patch[uint32]) (*Snapshot, text.Patch[uint32]) {
	old := m.snapshot
	m.snapshot = m.rebuild(wraps, old.version+1)
	if len(edits) == 0 {
		return m.snapshot, nil
	}
	return m.snapshot, text.Patch[uint32]{{
		OldEnd: old.MaxPoint().Text().Row + 1,
		NewEnd: m.snapshot.MaxPoint().Text().Row + 1,
	}}
}

// remap rebuilds against the current wrap snapshot after a mutation.
func (m *Map) remap() (*Snapshot, text.Patch[uint32]) {
	old := m.snapshot
	m.snapshot = m.rebuild(old.wraps, old.version+1)
	return m.snapshot, text.Patch[uint32]{{
		OldEnd: old.MaxPoint().Text().Row + 1,
		NewEnd: m.snapshot.MaxPoint().Text().Row + 1,
	}}
}

// entry is a block resolved to wrap rows: the row its output goes
// before, and for Replace the half-open row range it consumes. after
// marks blocks hanging off the end of the previous line, which sort
// ahead of blocks heading the next one at the same row.
type entry struct {
	row    uint32
	endRow uint32
	after  bool
	block  Block
}

func (m *Map) rebuild(wraps *wrap.Snapshot, version int) *Snapshot {
	var entries []entry
	for _, b := range m.blocks {
		e, ok := resolve(wraps, b)
		if !ok {
			log.Debug(log.CatBlock, "dropping block with stale anchors", "id", uint64(b.ID))
			continue
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.row != b.row {
			return a.row < b.row
		}
		if a.after != b.after {
			return a.after
		}
		if a.block.Placement != b.block.Placement {
			return a.block.Placement < b.block.Placement
		}
		if a.block.Priority != b.block.Priority {
			return a.block.Priority < b.block.Priority
		}
		return a.block.ID < b.block.ID
	})

	maxRow := wraps.MaxPoint().Text().Row
	var items []transform
	cur := uint32(0)
	for _, e := range entries {
		if e.block.Placement == PlacementReplace {
			// Overlapping replacements clip; a fully shadowed one is
			// dropped along with its rows.
			start := max(e.row, cur)
			end := max(e.endRow, start)
			if end == start {
				log.Debug(log.CatBlock, "skipping block shadowed by a replacement", "id", uint64(e.block.ID))
				continue
			}
			if start > cur {
				pushIsomorphic(&items, wraps.TextSummaryForRows(cur, start))
				cur = start
			}
			items = append(items, transform{
				summary: sumtree.Summary{
					Input:  wraps.TextSummaryForRows(cur, end),
					Output: rowsSummary(e.block.Height),
				},
				isBlock: true,
				id:      e.block.ID,
			})
			cur = end
			continue
		}
		if e.row < cur {
			log.Debug(log.CatBlock, "skipping block shadowed by a replacement", "id", uint64(e.block.ID))
			continue
		}
		if e.row > cur {
			pushIsomorphic(&items, wraps.TextSummaryForRows(cur, e.row))
			cur = e.row
		}
		items = append(items, transform{
			summary: sumtree.Summary{Output: rowsSummary(e.block.Height)},
			isBlock: true,
			id:      e.block.ID,
		})
	}
	pushIsomorphic(&items, wraps.TextSummaryForRows(cur, maxRow+1))

	blocks := make([]Block, len(m.blocks))
	copy(blocks, m.blocks)
	return &Snapshot{
		wraps:      wraps,
		transforms: sumtree.FromItems(items),
		blocks:     blocks,
		version:    version,
	}
}

// resolve converts a block's anchors to wrap rows. Above placements
// resolve to the first wrap row of the anchor's line, Near and Below
// to just past its last; Replace consumes both anchors' lines whole.
func resolve(wraps *wrap.Snapshot, b Block) (entry, bool) {
	switch b.Placement {
	case PlacementAbove:
		row, ok := lineFirstRow(wraps, b.Start)
		return entry{row: row, block: b}, ok
	case PlacementReplace:
		start, ok := lineFirstRow(wraps, b.Start)
		if !ok {
			return entry{}, false
		}
		end, ok := lineLastRow(wraps, b.End)
		if !ok {
			return entry{}, false
		}
		if end < start {
			end = start
		}
		return entry{row: start, endRow: end + 1, block: b}, true
	default:
		row, ok := lineLastRow(wraps, b.Start)
		return entry{row: row + 1, after: true, block: b}, ok
	}
}

// anchorTabRow resolves an anchor down the chain to its tab row.
func anchorTabRow(wraps *wrap.Snapshot, a text.Anchor) (uint32, bool) {
	tabs := wraps.Tabs()
	folds := tabs.Folds()
	hints := folds.Hints()

	off, err := hints.Buffer().AnchorToOffset(a)
	if err != nil {
		return 0, false
	}
	p := hints.Buffer().OffsetToPoint(off)
	hp := hints.ToHintPoint(p, text.Left)
	fp := folds.ToFoldPoint(hp, text.Left)
	return tabs.ToTabPoint(fp).Text().Row, true
}

func lineFirstRow(wraps *wrap.Snapshot, a text.Anchor) (uint32, bool) {
	tabRow, ok := anchorTabRow(wraps, a)
	if !ok {
		return 0, false
	}
	start := tab.Point(text.NewPoint(tabRow, 0))
	return wraps.ToWrapPoint(start, text.Right).Text().Row, true
}

func lineLastRow(wraps *wrap.Snapshot, a text.Anchor) (uint32, bool) {
	tabRow, ok := anchorTabRow(wraps, a)
	if !ok {
		return 0, false
	}
	endCol := uint32(len(wraps.Tabs().Line(tabRow)))
	end := tab.Point(text.NewPoint(tabRow, endCol))
	return wraps.ToWrapPoint(end, text.Left).Text().Row, true
}

// Snapshot is an immutable view of the block layer.
type Snapshot struct {
	wraps      *wrap.Snapshot
	transforms sumtree.Tree[transform]
	blocks     []Block
	version    int
}

// Wraps returns the wrap snapshot this layer was built against.
func (s *Snapshot) Wraps() *wrap.Snapshot { return s.wraps }

// Version increments every sync and mutation.
func (s *Snapshot) Version() int { return s.version }

// MaxPoint returns the last valid block-space point.
func (s *Snapshot) MaxPoint() Point {
	if s.transforms.IsEmpty() {
		return Point(s.wraps.MaxPoint().Text())
	}
	return Point(s.transforms.Summary().Output.Lines)
}

// Summary returns the aggregate metrics of the displayed text.
func (s *Snapshot) Summary() text.Summary {
	return s.transforms.Summary().Output
}

// LongestRow returns the display row with the most characters.
func (s *Snapshot) LongestRow() uint32 {
	return s.transforms.Summary().Output.LongestRow
}

// ToBlockPoint converts a wrap-space point into block space. A point
// at a block's position lands above it under Left bias and below it
// under Right; a point inside a replaced range collapses the same way.
func (s *Snapshot) ToBlockPoint(p wrap.Point, bias text.Bias) Point {
	if s.transforms.IsEmpty() {
		return Point(p.Text())
	}
	c := s.transforms.Cursor()
	c.Seek(sumtree.Input, p.Text(), bias)
	item, ok := c.Item()
	if !ok {
		return Point(s.transforms.Summary().Output.Lines)
	}
	if item.isBlock {
		if bias == text.Left {
			return Point(c.Start().Output.Lines)
		}
		return Point(c.End().Output.Lines)
	}
	overshoot := p.Text().Sub(c.Start().Input.Lines)
	return Point(c.Start().Output.Lines.Add(overshoot))
}

// ToWrapPoint converts a block-space point back to wrap space. Block
// rows map to the block's position; rows of a replaced range are not
// addressable and resolve to the range's start.
func (s *Snapshot) ToWrapPoint(p Point, bias text.Bias) wrap.Point {
	if s.transforms.IsEmpty() {
		return wrap.Point(p.Text())
	}
	c := s.transforms.Cursor()
	c.Seek(sumtree.Output, p.Text(), bias)
	item, ok := c.Item()
	if !ok || item.isBlock {
		return wrap.Point(c.Start().Input.Lines)
	}
	overshoot := p.Text().Sub(c.Start().Output.Lines)
	return wrap.Point(c.Start().Input.Lines.Add(overshoot))
}

// BlockForRow returns the block occupying a display row, if any.
func (s *Snapshot) BlockForRow(row uint32) (Block, bool) {
	if s.transforms.IsEmpty() {
		return Block{}, false
	}
	c := s.transforms.Cursor()
	c.Seek(sumtree.Output, text.NewPoint(row, 0), text.Right)
	item, ok := c.Item()
	if !ok || !item.isBlock {
		return Block{}, false
	}
	for _, b := range s.blocks {
		if b.ID == item.id {
			return b, true
		}
	}
	return Block{}, false
}

// RowText returns the display text of one row. Block rows are empty.
func (s *Snapshot) RowText(row uint32) string {
	if s.transforms.IsEmpty() {
		return s.wraps.RowText(row)
	}
	if row > s.MaxPoint().Text().Row {
		return ""
	}
	c := s.transforms.Cursor()
	c.Seek(sumtree.Output, text.NewPoint(row, 0), text.Right)
	item, ok := c.Item()
	if !ok || item.isBlock {
		return ""
	}
	wrapRow := c.Start().Input.Lines.Row + (row - c.Start().Output.Lines.Row)
	return s.wraps.RowText(wrapRow)
}
