package text

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/lamina/internal/pubsub"
)

func TestSnapshotCoordinates(t *testing.T) {
	buf := NewBuffer("one\ntwo\nthree")
	defer buf.Close()
	snap := buf.Snapshot()

	require.Equal(t, 13, snap.Len())
	require.Equal(t, NewPoint(2, 5), snap.MaxPoint())

	// =========================================================
	// Offset to point and back
	// =========================================================
	require.Equal(t, NewPoint(0, 0), snap.OffsetToPoint(0))
	require.Equal(t, NewPoint(0, 3), snap.OffsetToPoint(3))
	require.Equal(t, NewPoint(1, 0), snap.OffsetToPoint(4))
	require.Equal(t, NewPoint(2, 5), snap.OffsetToPoint(13))
	require.Equal(t, NewPoint(2, 5), snap.OffsetToPoint(999), "offsets clamp")

	require.Equal(t, 4, snap.PointToOffset(NewPoint(1, 0)))
	require.Equal(t, 7, snap.PointToOffset(NewPoint(1, 99)), "columns clamp to line end")
	require.Equal(t, 13, snap.PointToOffset(NewPoint(99, 0)), "rows clamp to buffer end")

	// =========================================================
	// Line access
	// =========================================================
	assert.Equal(t, "one", snap.Line(0))
	assert.Equal(t, "two", snap.Line(1))
	assert.Equal(t, "three", snap.Line(2))
	assert.Equal(t, "", snap.Line(99))
	assert.Equal(t, uint32(3), snap.LineLen(1))

	assert.Equal(t, "two\nth", snap.TextInRange(NewPoint(1, 0), NewPoint(2, 2)))
}

func TestSnapshotClipPoint(t *testing.T) {
	buf := NewBuffer("aé\nb")
	defer buf.Close()
	snap := buf.Snapshot()

	// Column 2 splits the two-byte é.
	require.Equal(t, NewPoint(0, 1), snap.ClipPoint(NewPoint(0, 2), Left))
	require.Equal(t, NewPoint(0, 3), snap.ClipPoint(NewPoint(0, 2), Right))
	require.Equal(t, NewPoint(0, 3), snap.ClipPoint(NewPoint(0, 99), Left))
	require.Equal(t, NewPoint(1, 1), snap.ClipPoint(NewPoint(9, 9), Left))
}

func TestBufferEdit(t *testing.T) {
	buf := NewBuffer("hello world")
	defer buf.Close()

	buf.Edit(6, 11, "there")
	require.Equal(t, "hello there", buf.Snapshot().Text())

	buf.Edit(5, 5, ",")
	require.Equal(t, "hello, there", buf.Snapshot().Text())

	buf.EditPoints(NewPoint(0, 0), NewPoint(0, 5), "goodbye")
	require.Equal(t, "goodbye, there", buf.Snapshot().Text())
}

func TestBufferSetTextProducesMinimalEdits(t *testing.T) {
	buf := NewBuffer("the quick brown fox")
	defer buf.Close()
	sub := buf.Subscribe()

	buf.SetText("the slow brown fox")
	require.Equal(t, "the slow brown fox", buf.Snapshot().Text())

	edits := sub.Consume()
	require.NotEmpty(t, edits)
	var oldTotal, newTotal int
	for _, e := range edits {
		oldTotal += e.OldLen()
		newTotal += e.NewLen()
	}
	assert.Less(t, oldTotal, len("the quick brown fox"),
		"a one-word change must not be reported as a whole-buffer edit")
	assert.Equal(t, oldTotal-newTotal, len("quick")-len("slow"))
}

func TestSubscriptionAccumulatesAcrossEdits(t *testing.T) {
	buf := NewBuffer("abcdef")
	defer buf.Close()
	sub := buf.Subscribe()

	buf.Edit(0, 0, "xx")   // "xxabcdef"
	buf.Edit(4, 6, "")     // "xxabef"
	buf.Edit(6, 6, "done") // "xxabefdone"

	edits := sub.Consume()
	require.NotEmpty(t, edits)
	for i := 1; i < len(edits); i++ {
		require.GreaterOrEqual(t, edits[i].OldStart, edits[i-1].OldEnd,
			"consumed edits must be sorted and disjoint")
	}

	require.Empty(t, sub.Consume(), "consume must drain the subscription")
}

// applyDrained rebuilds the post-edit text from the pre-edit text, a
// drained patch, and the content the patch's new ranges refer to.
func applyDrained(old string, edits Patch[int], next string) string {
	var b strings.Builder
	last := 0
	for _, e := range edits {
		b.WriteString(old[last:e.OldStart])
		b.WriteString(next[e.NewStart:e.NewEnd])
		last = e.OldEnd
	}
	b.WriteString(old[last:])
	return b.String()
}

func TestConsumeSnapshotPairsEditsWithSnapshot(t *testing.T) {
	buf := NewBuffer("0123456789")
	defer buf.Close()
	sub := buf.Subscribe()
	last := buf.Snapshot()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			buf.Edit(i%5, i%5, "ab")
		}
	}()

	check := func() {
		edits, snap := sub.ConsumeSnapshot()
		require.Equal(t, snap.Text(), applyDrained(last.Text(), edits, snap.Text()),
			"drained edits must map the previous snapshot onto the paired one")
		last = snap
	}
	for {
		check()
		select {
		case <-done:
			check()
			require.Equal(t, 10+500*2, last.Len())
			return
		default:
		}
	}
}

func TestBufferPublishesChanges(t *testing.T) {
	buf := NewBuffer("abc")
	defer buf.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := buf.Events().Subscribe(ctx)

	buf.Edit(3, 3, "d")

	select {
	case ev := <-events:
		require.Equal(t, pubsub.BufferEditedEvent, ev.Type)
		require.NotEmpty(t, ev.Payload.Edits)
	case <-time.After(100 * time.Millisecond):
		require.Fail(t, "timeout waiting for buffer change event")
	}
}

func TestAnchorResolution(t *testing.T) {
	buf := NewBuffer("hello world")
	defer buf.Close()
	snap := buf.Snapshot()

	anchorAtWorld := snap.AnchorBefore(NewPoint(0, 6))
	anchorAtEnd := snap.AnchorAfter(NewPoint(0, 11))

	// Insert before both anchors; they shift right.
	buf.Edit(0, 0, ">> ")
	newSnap := buf.Snapshot()

	off, err := newSnap.AnchorToOffset(anchorAtWorld)
	require.NoError(t, err)
	require.Equal(t, 9, off)

	p, err := newSnap.AnchorToPoint(anchorAtEnd)
	require.NoError(t, err)
	require.Equal(t, NewPoint(0, 14), p)

	// Resolving in the snapshot it was taken from is the identity.
	off, err = snap.AnchorToOffset(anchorAtWorld)
	require.NoError(t, err)
	require.Equal(t, 6, off)
}

func TestAnchorBiasAtInsertionPoint(t *testing.T) {
	buf := NewBuffer("ab")
	defer buf.Close()
	snap := buf.Snapshot()

	before := snap.AnchorBefore(NewPoint(0, 1))
	after := snap.AnchorAfter(NewPoint(0, 1))

	buf.Edit(1, 1, "XY")
	newSnap := buf.Snapshot()

	offBefore, err := newSnap.AnchorToOffset(before)
	require.NoError(t, err)
	offAfter, err := newSnap.AnchorToOffset(after)
	require.NoError(t, err)

	require.Equal(t, 1, offBefore, "left-biased anchor stays before the insertion")
	require.Equal(t, 3, offAfter, "right-biased anchor moves after the insertion")
}

func TestAnchorInsideDeletedRange(t *testing.T) {
	buf := NewBuffer("abcdef")
	defer buf.Close()
	anchor := buf.Snapshot().AnchorBefore(NewPoint(0, 3))

	buf.Edit(1, 5, "")
	off, err := buf.Snapshot().AnchorToOffset(anchor)
	require.NoError(t, err)
	require.Equal(t, 1, off, "anchors inside a deleted range collapse to its edge")
}

func TestStaleAnchor(t *testing.T) {
	buf := NewBuffer("abc")
	defer buf.Close()
	other := NewBuffer("abc")
	defer other.Close()

	anchor := other.Snapshot().AnchorBefore(NewPoint(0, 1))
	_, err := buf.Snapshot().AnchorToOffset(anchor)
	require.ErrorIs(t, err, ErrStaleAnchor)

	// An anchor from a newer version than the snapshot is also stale.
	oldSnap := buf.Snapshot()
	buf.Edit(0, 0, "x")
	fresh := buf.Snapshot().AnchorBefore(NewPoint(0, 0))
	_, err = oldSnap.AnchorToOffset(fresh)
	require.ErrorIs(t, err, ErrStaleAnchor)
}
