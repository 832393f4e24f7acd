package text

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/zjrosen/lamina/internal/pubsub"
)

// Change is published on a buffer's broker after every mutation.
type Change struct {
	Version uint64
	Edits   Patch[int]
}

// Buffer is a line-indexed text buffer. It records its edit history so
// anchors taken against older snapshots can be resolved against newer
// ones, and it fans edits out to subscriptions and a change broker.
type Buffer struct {
	mu         sync.Mutex
	id         uuid.UUID
	version    uint64
	content    string
	lineStarts []int
	history    []versionedEdit
	subs       []*Subscription
	broker     *pubsub.Broker[Change]
}

type versionedEdit struct {
	version uint64
	edit    Edit[int]
}

// NewBuffer creates a buffer with the given initial content.
func NewBuffer(content string) *Buffer {
	return &Buffer{
		id:         uuid.New(),
		content:    content,
		lineStarts: computeLineStarts(content),
		broker:     pubsub.NewBroker[Change](),
	}
}

// ID returns the buffer's identity. Anchors embed it so anchors from a
// different buffer are detectable.
func (b *Buffer) ID() uuid.UUID { return b.id }

// Events returns the broker that publishes a Change after each mutation.
func (b *Buffer) Events() *pubsub.Broker[Change] { return b.broker }

// Close shuts down the change broker.
func (b *Buffer) Close() { b.broker.Close() }

// Subscribe registers a synchronous edit accumulator. Every subsequent
// mutation appends its edits; Consume drains them.
func (b *Buffer) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &Subscription{buffer: b}
	b.subs = append(b.subs, sub)
	return sub
}

// Edit replaces the byte range [start, end) with newText. The range is
// clamped to the buffer.
func (b *Buffer) Edit(start, end int, newText string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	start = clampOffset(start, len(b.content))
	end = clampOffset(end, len(b.content))
	if end < start {
		start, end = end, start
	}

	edit := Edit[int]{
		OldStart: start, OldEnd: end,
		NewStart: start, NewEnd: start + len(newText),
	}
	b.content = b.content[:start] + newText + b.content[end:]
	b.lineStarts = computeLineStarts(b.content)
	b.record(edit)
	b.publish(Patch[int]{edit})
}

// EditPoints is Edit with a point range.
func (b *Buffer) EditPoints(start, end Point, newText string) {
	snap := b.Snapshot()
	b.Edit(snap.PointToOffset(start), snap.PointToOffset(end), newText)
}

// SetText replaces the entire content, reporting the difference between
// old and new as a minimal edit list rather than one whole-buffer edit.
func (b *Buffer) SetText(content string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(b.content, content, false)

	var edits Patch[int]
	pos := 0
	for i := 0; i < len(diffs); i++ {
		d := diffs[i]
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			pos += len(d.Text)
		case diffmatchpatch.DiffDelete:
			edit := Edit[int]{
				OldStart: pos, OldEnd: pos + len(d.Text),
				NewStart: pos, NewEnd: pos,
			}
			// A delete followed by an insert at the same position is
			// one replacement.
			if i+1 < len(diffs) && diffs[i+1].Type == diffmatchpatch.DiffInsert {
				edit.NewEnd = pos + len(diffs[i+1].Text)
				pos = edit.NewEnd
				i++
			}
			edits = append(edits, edit)
		case diffmatchpatch.DiffInsert:
			edits = append(edits, Edit[int]{
				OldStart: pos, OldEnd: pos,
				NewStart: pos, NewEnd: pos + len(d.Text),
			})
			pos += len(d.Text)
		}
	}

	b.content = content
	b.lineStarts = computeLineStarts(content)
	for _, e := range edits {
		b.record(e)
	}
	if len(edits) > 0 {
		b.publish(edits)
	}
}

// record must be called with b.mu held.
func (b *Buffer) record(edit Edit[int]) {
	b.version++
	b.history = append(b.history, versionedEdit{version: b.version, edit: edit})
}

// publish must be called with b.mu held.
func (b *Buffer) publish(edits Patch[int]) {
	for _, sub := range b.subs {
		sub.push(edits)
	}
	b.broker.Publish(pubsub.BufferEditedEvent, Change{Version: b.version, Edits: edits})
}

// Snapshot returns an immutable view of the current content and history.
func (b *Buffer) Snapshot() *Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

// snapshotLocked must be called with b.mu held.
func (b *Buffer) snapshotLocked() *Snapshot {
	return &Snapshot{
		id:         b.id,
		version:    b.version,
		content:    b.content,
		lineStarts: b.lineStarts,
		history:    b.history[:len(b.history):len(b.history)],
	}
}

// Subscription accumulates buffer edits between drains. The display map
// drains it at the start of every snapshot.
type Subscription struct {
	buffer *Buffer
	mu     sync.Mutex
	edits  Patch[int]
}

func (s *Subscription) push(edits Patch[int]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edits = s.edits.Compose(edits)
}

// Consume returns the accumulated edits and resets the subscription.
func (s *Subscription) Consume() Patch[int] {
	s.mu.Lock()
	defer s.mu.Unlock()
	edits := s.edits
	s.edits = nil
	return edits
}

// ConsumeSnapshot drains the subscription and snapshots the buffer in
// one step under the buffer's lock, so no concurrent edit can land
// between the drained patch and the returned snapshot. The patch's new
// ranges are always valid against the snapshot.
func (s *Subscription) ConsumeSnapshot() (Patch[int], *Snapshot) {
	s.buffer.mu.Lock()
	defer s.buffer.mu.Unlock()
	return s.Consume(), s.buffer.snapshotLocked()
}

func computeLineStarts(s string) []int {
	starts := []int{0}
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func clampOffset(off, max int) int {
	if off < 0 {
		return 0
	}
	if off > max {
		return max
	}
	return off
}

// Snapshot is an immutable view of a buffer at a version. All coordinate
// queries clamp out-of-range inputs instead of failing.
type Snapshot struct {
	id         uuid.UUID
	version    uint64
	content    string
	lineStarts []int
	history    []versionedEdit
}

// ID returns the identity of the buffer this snapshot came from.
func (s *Snapshot) ID() uuid.UUID { return s.id }

// Version returns the edit version this snapshot captures.
func (s *Snapshot) Version() uint64 { return s.version }

// Len returns the content length in bytes.
func (s *Snapshot) Len() int { return len(s.content) }

// Text returns the full content.
func (s *Snapshot) Text() string { return s.content }

// MaxPoint returns the last valid point.
func (s *Snapshot) MaxPoint() Point {
	row := uint32(len(s.lineStarts) - 1)
	return Point{Row: row, Column: uint32(len(s.content) - s.lineStarts[row])}
}

// OffsetToPoint converts a byte offset (clamped) to a point.
func (s *Snapshot) OffsetToPoint(offset int) Point {
	offset = clampOffset(offset, len(s.content))
	row := sort.Search(len(s.lineStarts), func(i int) bool {
		return s.lineStarts[i] > offset
	}) - 1
	return Point{Row: uint32(row), Column: uint32(offset - s.lineStarts[row])}
}

// PointToOffset converts a point (clamped) to a byte offset.
func (s *Snapshot) PointToOffset(p Point) int {
	if int(p.Row) >= len(s.lineStarts) {
		return len(s.content)
	}
	start := s.lineStarts[p.Row]
	return start + int(min32(p.Column, s.lineLen(p.Row)))
}

// Line returns the content of a row without its trailing newline.
func (s *Snapshot) Line(row uint32) string {
	if int(row) >= len(s.lineStarts) {
		return ""
	}
	start := s.lineStarts[row]
	return s.content[start : start+int(s.lineLen(row))]
}

// LineLen returns the byte length of a row, excluding the newline.
func (s *Snapshot) LineLen(row uint32) uint32 {
	if int(row) >= len(s.lineStarts) {
		return 0
	}
	return s.lineLen(row)
}

func (s *Snapshot) lineLen(row uint32) uint32 {
	start := s.lineStarts[row]
	if int(row)+1 < len(s.lineStarts) {
		return uint32(s.lineStarts[row+1] - start - 1)
	}
	return uint32(len(s.content) - start)
}

// TextInRange returns the content between two points.
func (s *Snapshot) TextInRange(start, end Point) string {
	a := s.PointToOffset(start)
	b := s.PointToOffset(end)
	if b < a {
		a, b = b, a
	}
	return s.content[a:b]
}

// TextSummary summarizes the whole content.
func (s *Snapshot) TextSummary() Summary {
	return SummaryOf(s.content)
}

// TextSummaryForRange summarizes the content between two points.
func (s *Snapshot) TextSummaryForRange(start, end Point) Summary {
	return SummaryOf(s.TextInRange(start, end))
}

// ClipPoint clamps a point into the snapshot and onto a rune boundary.
// Bias picks the side when the column splits a multi-byte rune.
func (s *Snapshot) ClipPoint(p Point, bias Bias) Point {
	maxPoint := s.MaxPoint()
	if p.Cmp(maxPoint) >= 0 {
		return maxPoint
	}
	if int(p.Row) >= len(s.lineStarts) {
		return maxPoint
	}
	line := s.Line(p.Row)
	col := int(min32(p.Column, uint32(len(line))))
	for col > 0 && col < len(line) && !isRuneStart(line[col]) {
		if bias == Left {
			col--
		} else {
			col++
		}
	}
	return Point{Row: p.Row, Column: uint32(col)}
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}
