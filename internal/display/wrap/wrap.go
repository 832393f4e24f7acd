// Package wrap implements the fourth display layer: soft-wrapping rows
// that exceed the configured width. Wrapping a large buffer is too slow
// to block the caller, so the layer computes exact results with a
// deadline; when the deadline passes the computation continues in the
// background while an interpolated snapshot keeps coordinates usable.
package wrap

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/lamina/internal/display/tab"
	"github.com/zjrosen/lamina/internal/log"
	"github.com/zjrosen/lamina/internal/metrics"
	"github.com/zjrosen/lamina/internal/pubsub"
	"github.com/zjrosen/lamina/internal/text"
	"github.com/zjrosen/lamina/internal/tracing"
)

// rewrapDeadline bounds how long a width or font change may block the
// caller before the rewrap moves to the background. flushDeadline is
// the tighter bound applied to ordinary edits, which usually touch only
// a few rows.
const (
	rewrapDeadline = 5 * time.Millisecond
	flushDeadline  = time.Millisecond
)

// pendingSync is one upstream sync not yet folded into an exact
// snapshot. Edits are in tab space; Old endpoints refer to the tab
// snapshot of the previous entry in the queue.
type pendingSync struct {
	tabs  *tab.Snapshot
	edits []text.PointEdit
}

// rewrapResult carries a computed snapshot and the row patch that maps
// the snapshot it replaces onto it.
type rewrapResult struct {
	snapshot *Snapshot
	edits    text.Patch[uint32]
}

// Map owns the wrap state. Unlike the layers above it, its snapshot can
// lag its inputs: while a background rewrap runs, Snapshot returns an
// interpolated view whose coordinates are valid but whose soft wrap
// positions are stale.
type Map struct {
	mu              sync.Mutex
	snapshot        *Snapshot
	pending         []pendingSync
	interpEdits     text.Patch[uint32]
	editsSinceSync  text.Patch[uint32]
	wrapWidth       metrics.Pixels
	font            metrics.Font
	breaker         metrics.LineBreaker
	generation      uint64
	rewrapping      bool
	broker          *pubsub.Broker[*Snapshot]
	tracer          trace.Tracer
}

// NewMap creates a wrap map over the tab snapshot. A zero width
// disables soft wrapping. A nil tracer uses the global provider.
func NewMap(tabs *tab.Snapshot, font metrics.Font, width metrics.Pixels, tracer trace.Tracer) *Map {
	if tracer == nil {
		tracer = otel.Tracer("lamina/wrap")
	}
	m := &Map{
		font:    font,
		breaker: metrics.NewMonospace(font),
		broker:  pubsub.NewBroker[*Snapshot](),
		tracer:  tracer,
	}
	m.snapshot = newSnapshot(tabs)
	if width > 0 {
		m.mu.Lock()
		m.wrapWidth = width
		m.rewrapLocked()
		m.mu.Unlock()
	}
	return m
}

// Snapshot returns the current snapshot, which may be interpolated
// while a background rewrap is in flight.
func (m *Map) Snapshot() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

// WrapWidth returns the configured width; zero means wrapping is off.
func (m *Map) WrapWidth() metrics.Pixels {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wrapWidth
}

// Font returns the font used for measurement.
func (m *Map) Font() metrics.Font {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.font
}

// IsRewrapping reports whether a background rewrap is in flight, which
// is when the current snapshot may be interpolated.
func (m *Map) IsRewrapping() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rewrapping
}

// Updates delivers the snapshot produced by each background rewrap as
// it lands. The subscription ends when ctx is cancelled or the map is
// closed.
func (m *Map) Updates(ctx context.Context) <-chan pubsub.Event[*Snapshot] {
	return m.broker.Subscribe(ctx)
}

// Close abandons any in-flight rewrap and closes the update stream.
func (m *Map) Close() {
	m.mu.Lock()
	m.generation++
	m.rewrapping = false
	m.mu.Unlock()
	m.broker.Close()
}

// SetWrapWidth changes the wrap width and rewraps. Returns the new
// snapshot and the accumulated row patch.
func (m *Map) SetWrapWidth(width metrics.Pixels) (*Snapshot, text.Patch[uint32]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if width == m.wrapWidth {
		return m.snapshot, m.takeEditsLocked()
	}
	m.wrapWidth = width
	log.Debug(log.CatWrap, "wrap width changed", "width", float64(width))
	m.rewrapLocked()
	return m.snapshot, m.takeEditsLocked()
}

// SetFont changes the measurement font and rewraps.
func (m *Map) SetFont(font metrics.Font) (*Snapshot, text.Patch[uint32]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if font == m.font {
		return m.snapshot, m.takeEditsLocked()
	}
	m.font = font
	m.breaker = metrics.NewMonospace(font)
	log.Debug(log.CatWrap, "font changed", "family", font.Family, "size", float64(font.Size))
	m.rewrapLocked()
	return m.snapshot, m.takeEditsLocked()
}

// Sync adopts a new tab snapshot. With wrapping off the result is exact
// and immediate; with wrapping on the edits queue up and the snapshot
// is exact only if the rewrap beats its deadline.
func (m *Map) Sync(tabs *tab.Snapshot, edits []text.PointEdit) (*Snapshot, text.Patch[uint32]) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.wrapWidth > 0 {
		m.pending = append(m.pending, pendingSync{tabs: tabs, edits: edits})
		m.flushLocked()
	} else {
		snap, patch := m.snapshot.interpolate(tabs, edits)
		snap.interpolated = false
		m.snapshot = snap
		m.editsSinceSync = m.editsSinceSync.Compose(patch)
	}
	return m.snapshot, m.takeEditsLocked()
}

func (m *Map) takeEditsLocked() text.Patch[uint32] {
	edits := m.editsSinceSync
	m.editsSinceSync = nil
	return edits
}

// rewrapLocked recomputes every soft wrap position. Any queued edits
// and in-flight background work are superseded.
func (m *Map) rewrapLocked() {
	m.generation++
	m.rewrapping = false
	m.interpEdits = nil
	m.pending = nil

	old := m.snapshot
	if m.wrapWidth <= 0 {
		next := newSnapshot(old.tabs)
		next.version = old.version + 1
		m.snapshot = next
		m.editsSinceSync = m.editsSinceSync.Compose(rowPatch(old, next))
		return
	}

	tabs := old.tabs
	edits := []text.PointEdit{{
		OldEnd: tabs.MaxPoint().Text(),
		NewEnd: tabs.MaxPoint().Text(),
	}}
	width, breaker := m.wrapWidth, m.breaker
	m.runLocked(rewrapDeadline, func() rewrapResult {
		snap, patch := old.update(tabs, edits, width, breaker)
		return rewrapResult{snapshot: snap, edits: patch}
	})
}

// flushLocked folds queued syncs into the snapshot: exactly when
// possible, by interpolation while exact results are pending.
func (m *Map) flushLocked() {
	if !m.snapshot.interpolated {
		for len(m.pending) > 0 && m.pending[0].tabs.Version() <= m.snapshot.tabs.Version() {
			m.pending = m.pending[1:]
		}
	}

	if len(m.pending) > 0 && m.wrapWidth > 0 && !m.rewrapping {
		queued := append([]pendingSync(nil), m.pending...)
		base := m.snapshot
		width, breaker := m.wrapWidth, m.breaker
		m.runLocked(flushDeadline, func() rewrapResult {
			snap := base
			var patch text.Patch[uint32]
			for _, p := range queued {
				var edits text.Patch[uint32]
				snap, edits = snap.update(p.tabs, p.edits, width, breaker)
				patch = patch.Compose(edits)
			}
			return rewrapResult{snapshot: snap, edits: patch}
		})
	}

	// Whatever the exact snapshot does not cover yet becomes visible
	// through interpolation.
	for _, p := range m.pending {
		if p.tabs.Version() <= m.snapshot.tabs.Version() {
			continue
		}
		snap, edits := m.snapshot.interpolate(p.tabs, p.edits)
		m.snapshot = snap
		m.editsSinceSync = m.editsSinceSync.Compose(edits)
		m.interpEdits = m.interpEdits.Compose(edits)
	}
}

// runLocked executes compute off the calling goroutine, adopting the
// result inline when it beats the deadline. Otherwise the computation
// keeps running and lands through finishBackground, unless a newer
// generation supersedes it first.
func (m *Map) runLocked(deadline time.Duration, compute func() rewrapResult) {
	m.generation++
	gen := m.generation

	_, span := m.tracer.Start(context.Background(), tracing.SpanWrapRewrap)
	span.SetAttributes(attribute.Float64(tracing.AttrWrapWidth, float64(m.wrapWidth)))

	done := make(chan rewrapResult, 1)
	go func() { done <- compute() }()

	select {
	case res := <-done:
		m.snapshot = res.snapshot
		m.editsSinceSync = m.editsSinceSync.Compose(res.edits)
		span.SetAttributes(
			attribute.Int(tracing.AttrWrapRows, int(res.snapshot.MaxPoint().Text().Row)+1),
			attribute.Bool(tracing.AttrInterpolate, false),
		)
		span.End()
	case <-time.After(deadline):
		m.rewrapping = true
		span.SetAttributes(attribute.Bool(tracing.AttrInterpolate, true))
		log.Debug(log.CatWrap, "rewrap moved to background")
		go m.finishBackground(gen, done, span)
	}
}

// finishBackground waits for an exact result and installs it,
// replacing the interpolated edits published in the meantime with the
// exact ones.
func (m *Map) finishBackground(gen uint64, done <-chan rewrapResult, span trace.Span) {
	res := <-done
	defer span.End()

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return
	}
	span.SetAttributes(attribute.Int(tracing.AttrWrapRows,
		int(res.snapshot.MaxPoint().Text().Row)+1))
	m.snapshot = res.snapshot
	m.editsSinceSync = m.editsSinceSync.
		Compose(m.interpEdits.Invert()).
		Compose(res.edits)
	m.interpEdits = nil
	m.rewrapping = false
	m.flushLocked()
	snap := m.snapshot
	m.mu.Unlock()

	log.Debug(log.CatWrap, "background rewrap landed",
		"rows", snap.MaxPoint().Text().Row+1)
	m.broker.Publish(pubsub.WrapUpdatedEvent, snap)
}
