package block

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/lamina/internal/display/fold"
	"github.com/zjrosen/lamina/internal/display/hint"
	"github.com/zjrosen/lamina/internal/display/tab"
	"github.com/zjrosen/lamina/internal/display/wrap"
	"github.com/zjrosen/lamina/internal/metrics"
	"github.com/zjrosen/lamina/internal/text"
)

var testFont = metrics.Font{Family: "mono", Size: 10}

func bp(row, col uint32) Point { return Point(text.NewPoint(row, col)) }

func wrapPt(row, col uint32) wrap.Point { return wrap.Point(text.NewPoint(row, col)) }

// stack wires a buffer through every upstream layer into a block map.
type stack struct {
	buf    *text.Buffer
	hints  *hint.Map
	folds  *fold.Map
	tabs   *tab.Map
	wraps  *wrap.Map
	blocks *Map
}

func newStack(t *testing.T, content string, width metrics.Pixels) *stack {
	t.Helper()
	buf := text.NewBuffer(content)
	t.Cleanup(buf.Close)
	hints := hint.NewMap(buf.Snapshot())
	folds := fold.NewMap(hints.Snapshot())
	tabs := tab.NewMap(folds.Snapshot(), 4)
	wraps := wrap.NewMap(tabs.Snapshot(), testFont, width, nil)
	t.Cleanup(wraps.Close)
	deadline := time.Now().Add(30 * time.Second)
	for wraps.IsRewrapping() {
		require.False(t, time.Now().After(deadline), "rewrap did not settle")
		time.Sleep(time.Millisecond)
	}
	return &stack{
		buf: buf, hints: hints, folds: folds,
		tabs: tabs, wraps: wraps, blocks: NewMap(wraps.Snapshot()),
	}
}

// edit applies a buffer edit and pushes it through the layer chain.
func (s *stack) edit(start, end text.Point, newText string) (*Snapshot, text.Patch[uint32]) {
	s.buf.EditPoints(start, end, newText)
	pe := text.PointEdit{
		OldStart: start, OldEnd: end,
		NewStart: start, NewEnd: start.Add(text.SummaryOf(newText).Lines),
	}
	hsnap, hedits := s.hints.Sync(s.buf.Snapshot(), []text.PointEdit{pe})
	fsnap, fedits := s.folds.Sync(hsnap, hedits)
	tsnap, tedits := s.tabs.Sync(fsnap, fedits)
	wsnap, wedits := s.wraps.Sync(tsnap, tedits)
	return s.blocks.Sync(wsnap, wedits)
}

func TestBlockAboveAddsRows(t *testing.T) {
	s := newStack(t, "alpha\nbravo\ncharlie", 0)
	bufSnap := s.buf.Snapshot()

	ids, snap, edits := s.blocks.Insert([]Block{{
		Placement: PlacementAbove,
		Start:     bufSnap.AnchorBefore(text.NewPoint(1, 0)),
		Height:    2,
	}})
	require.Len(t, ids, 1)
	require.Equal(t, bp(4, 7), snap.MaxPoint(), "a height 2 block adds two display rows")
	require.Len(t, edits, 1)
	assert.Equal(t, uint32(3), edits[0].OldEnd)
	assert.Equal(t, uint32(5), edits[0].NewEnd)

	require.Equal(t, bp(1, 0), snap.ToBlockPoint(wrapPt(1, 0), text.Left),
		"left bias stays above the block")
	require.Equal(t, bp(3, 0), snap.ToBlockPoint(wrapPt(1, 0), text.Right),
		"right bias lands below the block")
	require.Equal(t, wrapPt(1, 0), snap.ToWrapPoint(bp(2, 0), text.Left),
		"block rows map back to the block's position")

	require.Equal(t, "alpha", snap.RowText(0))
	require.Equal(t, "", snap.RowText(1))
	require.Equal(t, "", snap.RowText(2))
	require.Equal(t, "bravo", snap.RowText(3))
	require.Equal(t, "charlie", snap.RowText(4))

	b, ok := snap.BlockForRow(1)
	require.True(t, ok)
	assert.Equal(t, ids[0], b.ID)
	_, ok = snap.BlockForRow(3)
	require.False(t, ok)
}

func TestPlacementOrdering(t *testing.T) {
	s := newStack(t, "one\ntwo", 0)
	bufSnap := s.buf.Snapshot()
	lineZero := bufSnap.AnchorBefore(text.NewPoint(0, 0))
	lineOne := bufSnap.AnchorBefore(text.NewPoint(1, 0))

	ids, snap, _ := s.blocks.Insert([]Block{
		{Placement: PlacementBelow, Start: lineZero, Height: 1},
		{Placement: PlacementAbove, Start: lineOne, Height: 1},
		{Placement: PlacementNear, Start: lineZero, Height: 1},
		{Placement: PlacementAbove, Start: lineZero, Height: 1},
	})
	require.Len(t, ids, 4)
	below, aboveOne, near, aboveZero := ids[0], ids[1], ids[2], ids[3]

	require.Equal(t, bp(5, 3), snap.MaxPoint())
	require.Equal(t, "one", snap.RowText(1))
	require.Equal(t, "two", snap.RowText(5))

	wantRows := map[uint32]ID{0: aboveZero, 2: near, 3: below, 4: aboveOne}
	for row, id := range wantRows {
		b, ok := snap.BlockForRow(row)
		require.True(t, ok, "row %d holds a block", row)
		assert.Equal(t, id, b.ID,
			"near sorts before below, and both hang off line zero ahead of line one's above block")
	}
}

func TestPriorityBreaksTies(t *testing.T) {
	s := newStack(t, "one\ntwo", 0)
	anchor := s.buf.Snapshot().AnchorBefore(text.NewPoint(0, 0))

	ids, snap, _ := s.blocks.Insert([]Block{
		{Placement: PlacementBelow, Start: anchor, Height: 1, Priority: 5},
		{Placement: PlacementBelow, Start: anchor, Height: 1, Priority: 1},
	})
	require.Len(t, ids, 2)

	first, ok := snap.BlockForRow(1)
	require.True(t, ok)
	assert.Equal(t, ids[1], first.ID, "lower priority sorts first")
	second, ok := snap.BlockForRow(2)
	require.True(t, ok)
	assert.Equal(t, ids[0], second.ID)
}

func TestReplaceConsumesRows(t *testing.T) {
	s := newStack(t, "a\nb\nc\nd", 0)
	bufSnap := s.buf.Snapshot()

	ids, snap, _ := s.blocks.Insert([]Block{{
		Placement: PlacementReplace,
		Start:     bufSnap.AnchorBefore(text.NewPoint(1, 0)),
		End:       bufSnap.AnchorBefore(text.NewPoint(2, 0)),
		Height:    1,
	}})
	require.Len(t, ids, 1)

	require.Equal(t, bp(2, 1), snap.MaxPoint(), "two rows replaced by one")
	require.Equal(t, "a", snap.RowText(0))
	require.Equal(t, "", snap.RowText(1))
	require.Equal(t, "d", snap.RowText(2))

	require.Equal(t, bp(1, 0), snap.ToBlockPoint(wrapPt(2, 0), text.Left),
		"a point inside the replaced range collapses to the block")
	require.Equal(t, bp(2, 0), snap.ToBlockPoint(wrapPt(2, 0), text.Right))
	require.Equal(t, bp(2, 1), snap.ToBlockPoint(wrapPt(3, 1), text.Right),
		"rows after the replacement shift up")
	require.Equal(t, wrapPt(1, 0), snap.ToWrapPoint(bp(1, 0), text.Left))
	require.Equal(t, wrapPt(3, 0), snap.ToWrapPoint(bp(2, 0), text.Right))
}

func TestRemoveAndResize(t *testing.T) {
	s := newStack(t, "alpha\nbravo", 0)
	anchor := s.buf.Snapshot().AnchorBefore(text.NewPoint(1, 0))

	ids, snap, _ := s.blocks.Insert([]Block{{
		Placement: PlacementAbove, Start: anchor, Height: 2,
	}})
	require.Equal(t, bp(3, 5), snap.MaxPoint())

	snap, edits := s.blocks.Resize(map[ID]uint32{ids[0]: 3})
	require.Equal(t, bp(4, 5), snap.MaxPoint())
	require.Len(t, edits, 1)
	assert.Equal(t, uint32(4), edits[0].OldEnd)
	assert.Equal(t, uint32(5), edits[0].NewEnd)

	snap, edits = s.blocks.Resize(map[ID]uint32{ids[0]: 3})
	require.Empty(t, edits, "resizing to the current height is a no-op")

	snap, edits = s.blocks.Remove(ids)
	require.Equal(t, bp(1, 5), snap.MaxPoint())
	require.NotEmpty(t, edits)

	same, edits := s.blocks.Remove(ids)
	require.Same(t, snap, same, "removing unknown ids is a no-op")
	require.Empty(t, edits)
}

func TestSyncCarriesBlocksAcrossEdits(t *testing.T) {
	s := newStack(t, "alpha\nbravo", 0)
	anchor := s.buf.Snapshot().AnchorBefore(text.NewPoint(1, 0))

	_, snap, _ := s.blocks.Insert([]Block{{
		Placement: PlacementAbove, Start: anchor, Height: 1,
	}})
	require.Equal(t, "", snap.RowText(1))
	require.Equal(t, "bravo", snap.RowText(2))

	snap, edits := s.edit(text.NewPoint(0, 0), text.NewPoint(0, 0), "zero\n")
	require.Equal(t, bp(3, 5), snap.MaxPoint())
	require.Equal(t, "zero", snap.RowText(0))
	require.Equal(t, "alpha", snap.RowText(1))
	require.Equal(t, "", snap.RowText(2), "the block tracks its anchor through the edit")
	require.Equal(t, "bravo", snap.RowText(3))
	require.Len(t, edits, 1)
	assert.Equal(t, uint32(3), edits[0].OldEnd)
	assert.Equal(t, uint32(4), edits[0].NewEnd)
}

func TestStaleAnchorsAreSkipped(t *testing.T) {
	s := newStack(t, "alpha", 0)
	other := text.NewBuffer("unrelated")
	defer other.Close()

	before := s.blocks.Snapshot()
	ids, snap, edits := s.blocks.Insert([]Block{{
		Placement: PlacementAbove,
		Start:     other.Snapshot().AnchorBefore(text.NewPoint(0, 0)),
		Height:    1,
	}})
	require.Empty(t, ids)
	require.Same(t, before, snap)
	require.Empty(t, edits)
}

func TestBlockBelowSoftWrappedLine(t *testing.T) {
	s := newStack(t, "hello world foo", metrics.Pixels(12)*6)
	anchor := s.buf.Snapshot().AnchorBefore(text.NewPoint(0, 0))

	_, snap, _ := s.blocks.Insert([]Block{{
		Placement: PlacementBelow, Start: anchor, Height: 1,
	}})
	require.Equal(t, bp(2, 0), snap.MaxPoint(),
		"the block lands after the line's last soft-wrapped row")
	require.Equal(t, "hello world ", snap.RowText(0))
	require.Equal(t, "foo", snap.RowText(1))
	_, ok := snap.BlockForRow(2)
	require.True(t, ok)
}
