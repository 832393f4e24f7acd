package wrap

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zjrosen/lamina/internal/display/fold"
	"github.com/zjrosen/lamina/internal/display/hint"
	"github.com/zjrosen/lamina/internal/display/tab"
	"github.com/zjrosen/lamina/internal/metrics"
	"github.com/zjrosen/lamina/internal/text"
)

// testFont has a 6px cell, so a width of n cells is n*6 pixels.
var testFont = metrics.Font{Family: "mono", Size: 10}

func cells(n int) metrics.Pixels { return metrics.Pixels(n) * 6 }

func wp(row, col uint32) Point { return Point(text.NewPoint(row, col)) }

func tabp(row, col uint32) tab.Point { return tab.Point(text.NewPoint(row, col)) }

// stack wires a buffer through every upstream layer into a wrap map.
type stack struct {
	buf   *text.Buffer
	hints *hint.Map
	folds *fold.Map
	tabs  *tab.Map
	wraps *Map
}

func newStack(t *testing.T, content string, width metrics.Pixels) *stack {
	t.Helper()
	buf := text.NewBuffer(content)
	t.Cleanup(buf.Close)
	hints := hint.NewMap(buf.Snapshot())
	folds := fold.NewMap(hints.Snapshot())
	tabs := tab.NewMap(folds.Snapshot(), 4)
	wraps := NewMap(tabs.Snapshot(), testFont, width, nil)
	t.Cleanup(wraps.Close)
	return &stack{buf: buf, hints: hints, folds: folds, tabs: tabs, wraps: wraps}
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
	return s.wraps.Sync(tsnap, tedits)
}

// settled waits out any background rewrap and returns the exact
// snapshot.
func settled(t require.TestingT, m *Map) *Snapshot {
	deadline := time.Now().Add(30 * time.Second)
	for m.IsRewrapping() || m.Snapshot().Interpolated() {
		require.False(t, time.Now().After(deadline), "rewrap did not settle")
		time.Sleep(time.Millisecond)
	}
	return m.Snapshot()
}

func TestUnwrappedIsIdentity(t *testing.T) {
	s := newStack(t, "hello\nworld", 0)
	snap := s.wraps.Snapshot()

	require.Equal(t, wp(1, 5), snap.MaxPoint())
	require.Equal(t, wp(1, 3), snap.ToWrapPoint(tabp(1, 3), text.Right))
	require.Equal(t, tabp(0, 4), snap.ToTabPoint(wp(0, 4), text.Left))
	require.Equal(t, "hello", snap.RowText(0))
	require.Equal(t, "world", snap.RowText(1))
	assert.False(t, snap.Interpolated())
}

func TestSoftWrapAtWordBoundary(t *testing.T) {
	s := newStack(t, "hello world foo", cells(12))
	snap := settled(t, s.wraps)

	require.Equal(t, wp(1, 3), snap.MaxPoint(), "fifteen columns wrap into two rows at width 12")
	require.Equal(t, "hello world ", snap.RowText(0))
	require.Equal(t, "foo", snap.RowText(1))
	require.Equal(t, uint32(0), snap.LongestRow())
	require.Equal(t, text.NewPoint(1, 3), snap.Summary().Lines)

	require.Equal(t, wp(0, 5), snap.ToWrapPoint(tabp(0, 5), text.Right))
	require.Equal(t, wp(1, 2), snap.ToWrapPoint(tabp(0, 14), text.Right))
	require.Equal(t, tabp(0, 15), snap.ToTabPoint(wp(1, 3), text.Right))
}

func TestWrapBoundaryBias(t *testing.T) {
	s := newStack(t, "hello world foo", cells(12))
	snap := settled(t, s.wraps)

	require.Equal(t, wp(0, 12), snap.ToWrapPoint(tabp(0, 12), text.Left),
		"left bias stays at the end of the broken row")
	require.Equal(t, wp(1, 0), snap.ToWrapPoint(tabp(0, 12), text.Right),
		"right bias moves to the continuation row")
	require.Equal(t, tabp(0, 12), snap.ToTabPoint(wp(0, 12), text.Left))
	require.Equal(t, tabp(0, 12), snap.ToTabPoint(wp(1, 0), text.Right),
		"both sides of the soft wrap name the same upstream position")
}

func TestContinuationIndent(t *testing.T) {
	s := newStack(t, "    alpha beta gamma", cells(14))
	snap := settled(t, s.wraps)

	require.Equal(t, wp(1, 14), snap.MaxPoint())
	require.Equal(t, "    alpha ", snap.RowText(0))
	require.Equal(t, "    beta gamma", snap.RowText(1),
		"the continuation row carries the line's leading indent")

	require.Equal(t, wp(1, 4), snap.ToWrapPoint(tabp(0, 10), text.Right),
		"right bias lands after the continuation indent")
	require.Equal(t, tabp(0, 10), snap.ToTabPoint(wp(1, 2), text.Left),
		"a point inside the indent clamps to the soft wrap position")
	require.Equal(t, tabp(0, 20), snap.ToTabPoint(wp(1, 14), text.Right))
}

func TestSyncRewrapsEditedRows(t *testing.T) {
	s := newStack(t, "hello world foo", cells(12))
	settled(t, s.wraps)

	s.edit(text.NewPoint(0, 12), text.NewPoint(0, 15), "beta gamma quux")
	snap := settled(t, s.wraps)

	require.Equal(t, wp(2, 4), snap.MaxPoint())
	require.Equal(t, "hello world ", snap.RowText(0))
	require.Equal(t, "beta gamma ", snap.RowText(1))
	require.Equal(t, "quux", snap.RowText(2))
	require.Equal(t, wp(2, 0), snap.ToWrapPoint(tabp(0, 23), text.Right))
}

func TestSetWrapWidth(t *testing.T) {
	s := newStack(t, "hello world foo", 0)

	s.wraps.SetWrapWidth(cells(12))
	snap := settled(t, s.wraps)
	require.Equal(t, wp(1, 3), snap.MaxPoint())
	s.wraps.Sync(s.tabs.Snapshot(), nil)

	snap, edits := s.wraps.SetWrapWidth(0)
	require.Equal(t, wp(0, 15), snap.MaxPoint(), "disabling the width restores one row per line")
	require.Len(t, edits, 1)
	assert.Equal(t, uint32(2), edits[0].OldEnd)
	assert.Equal(t, uint32(1), edits[0].NewEnd)

	same, edits := s.wraps.SetWrapWidth(0)
	require.Same(t, snap, same, "an unchanged width is a no-op")
	require.Empty(t, edits)
}

func TestBackgroundRewrap(t *testing.T) {
	line := strings.Repeat("x", 120)
	content := strings.Repeat(line+"\n", 4999) + line
	s := newStack(t, content, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates := s.wraps.Updates(ctx)

	s.wraps.SetWrapWidth(cells(100))
	require.True(t, s.wraps.IsRewrapping(),
		"wrapping five thousand rows does not finish within the deadline")

	select {
	case ev := <-updates:
		require.Equal(t, wp(9999, 20), ev.Payload.MaxPoint(),
			"every 120 column line splits into a 100 and a 20 column row")
		assert.False(t, ev.Payload.Interpolated())
	case <-time.After(30 * time.Second):
		t.Fatal("background rewrap never landed")
	}
	assert.False(t, s.wraps.IsRewrapping())
}

func TestSyncWhileRewrappingInterpolates(t *testing.T) {
	line := strings.Repeat("x", 120)
	content := strings.Repeat(line+"\n", 4999) + line
	s := newStack(t, content, 0)

	s.wraps.SetWrapWidth(cells(100))
	require.True(t, s.wraps.IsRewrapping())

	snap, _ := s.edit(text.NewPoint(0, 0), text.NewPoint(0, 0), strings.Repeat("y", 120))
	require.True(t, snap.Interpolated(),
		"edits during a background rewrap produce an interpolated snapshot")
	require.Equal(t, wp(4999, 120), snap.MaxPoint(),
		"interpolation keeps coordinates consistent without soft wraps")

	snap = settled(t, s.wraps)
	require.Equal(t, wp(10000, 20), snap.MaxPoint(),
		"the widened first line wraps to three rows once the exact result lands")
	require.Equal(t, strings.Repeat("y", 100), snap.RowText(0))
	require.Equal(t, strings.Repeat("y", 20)+strings.Repeat("x", 80), snap.RowText(1))
}

func TestWrapRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		runes := rapid.SliceOfN(rapid.SampledFrom([]rune("ab de\n")), 0, 80).Draw(t, "content")
		width := cells(rapid.IntRange(3, 16).Draw(t, "cells"))

		buf := text.NewBuffer(string(runes))
		defer buf.Close()
		hints := hint.NewMap(buf.Snapshot())
		folds := fold.NewMap(hints.Snapshot())
		tabs := tab.NewMap(folds.Snapshot(), 4)
		m := NewMap(tabs.Snapshot(), testFont, width, nil)
		defer m.Close()
		snap := settled(t, m)

		tsnap := tabs.Snapshot()
		prev := wp(0, 0)
		for row := uint32(0); row <= tsnap.MaxPoint().Text().Row; row++ {
			for col := uint32(0); col <= uint32(len(tsnap.Line(row))); col++ {
				p := tabp(row, col)
				left := snap.ToWrapPoint(p, text.Left)
				right := snap.ToWrapPoint(p, text.Right)
				require.Equal(t, p, snap.ToTabPoint(left, text.Left),
					"left conversions round-trip")
				require.Equal(t, p, snap.ToTabPoint(right, text.Right),
					"right conversions round-trip")
				require.LessOrEqual(t, left.Text().Cmp(right.Text()), 0)
				require.GreaterOrEqual(t, left.Text().Cmp(prev.Text()), 0,
					"wrap points are ordered like their tab points")
				prev = left
			}
		}
	})
}
