// Package display assembles the five coordinate layers into a single
// map from buffer points to display points. Edits flow through the
// layers in a fixed order: hints splice virtual text in, folds hide
// rows, tabs expand to stops, wraps split long rows, and blocks insert
// decoration rows. The Map owns all five layers and the buffer
// subscription; Snapshot drains pending edits and returns an immutable
// view that converts points in both directions.
package display

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/lamina/internal/display/block"
	"github.com/zjrosen/lamina/internal/display/fold"
	"github.com/zjrosen/lamina/internal/display/hint"
	"github.com/zjrosen/lamina/internal/display/tab"
	"github.com/zjrosen/lamina/internal/display/wrap"
	"github.com/zjrosen/lamina/internal/log"
	"github.com/zjrosen/lamina/internal/metrics"
	"github.com/zjrosen/lamina/internal/pubsub"
	"github.com/zjrosen/lamina/internal/text"
	"github.com/zjrosen/lamina/internal/tracing"
)

// Point is a position in display space, the output of the block layer.
type Point text.Point

// Text converts back to the underlying point representation.
func (p Point) Text() text.Point { return text.Point(p) }

// Config carries the initial rendering settings for a Map.
type Config struct {
	// TabWidth in columns. Zero means the default of 4.
	TabWidth uint32
	Font     metrics.Font
	// WrapWidth in pixels. Zero disables soft wrapping.
	WrapWidth metrics.Pixels
	// Tracer for sync spans. Nil uses the global provider.
	Tracer trace.Tracer
}

// Map owns the layer chain over one buffer. All methods are safe for
// concurrent use; snapshots they return are immutable.
type Map struct {
	mu      sync.Mutex
	buffer  *text.Buffer
	sub     *text.Subscription
	lastBuf *text.Snapshot

	hints  *hint.Map
	folds  *fold.Map
	tabs   *tab.Map
	wraps  *wrap.Map
	blocks *block.Map

	tracer   trace.Tracer
	broker   *pubsub.Broker[*Snapshot]
	cancel   context.CancelFunc
	snapshot *Snapshot
}

// NewMap builds the layer chain over the buffer's current content.
// The buffer stays owned by the caller; Close does not close it.
func NewMap(buffer *text.Buffer, cfg Config) *Map {
	if cfg.TabWidth == 0 {
		cfg.TabWidth = 4
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("lamina/display")
	}

	sub := buffer.Subscribe()
	buf := buffer.Snapshot()
	hints := hint.NewMap(buf)
	folds := fold.NewMap(hints.Snapshot())
	tabs := tab.NewMap(folds.Snapshot(), cfg.TabWidth)
	wraps := wrap.NewMap(tabs.Snapshot(), cfg.Font, cfg.WrapWidth, cfg.Tracer)
	blocks := block.NewMap(wraps.Snapshot())

	m := &Map{
		buffer:  buffer,
		sub:     sub,
		lastBuf: buf,
		hints:   hints,
		folds:   folds,
		tabs:    tabs,
		wraps:   wraps,
		blocks:  blocks,
		tracer:  cfg.Tracer,
		broker:  pubsub.NewBroker[*Snapshot](),
	}
	m.snapshot = &Snapshot{blocks: blocks.Snapshot()}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.watchWrap(ctx)
	return m
}

// Close stops the background wrap listener and the event broker. The
// buffer is left open.
func (m *Map) Close() {
	m.cancel()
	m.wraps.Close()
	m.broker.Close()
}

// Events delivers a fresh snapshot whenever the display changes
// underneath the owner, currently when a background rewrap lands.
func (m *Map) Events(ctx context.Context) <-chan pubsub.Event[*Snapshot] {
	return m.broker.Subscribe(ctx)
}

// IsRewrapping reports whether an exact rewrap is running in the
// background, meaning the current snapshot's wrap rows are estimates.
func (m *Map) IsRewrapping() bool { return m.wraps.IsRewrapping() }

// watchWrap re-syncs the chain when an exact rewrap result lands and
// announces the superseding snapshot.
func (m *Map) watchWrap(ctx context.Context) {
	for range m.wraps.Updates(ctx) {
		m.mu.Lock()
		snap := m.syncLocked(ctx)
		m.mu.Unlock()
		m.broker.Publish(pubsub.DisplayInvalidatedEvent, snap)
	}
}

// Snapshot drains pending buffer edits through every layer and returns
// the resulting immutable view.
func (m *Map) Snapshot() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.syncLocked(context.Background())
}

func (m *Map) syncLocked(ctx context.Context) *Snapshot {
	_, span := m.tracer.Start(ctx, tracing.SpanDisplaySync)
	defer span.End()

	raw, buf := m.sub.ConsumeSnapshot()
	edits := make([]text.PointEdit, len(raw))
	for i, e := range raw {
		edits[i] = text.PointEdit{
			OldStart: m.lastBuf.OffsetToPoint(e.OldStart),
			OldEnd:   m.lastBuf.OffsetToPoint(e.OldEnd),
			NewStart: buf.OffsetToPoint(e.NewStart),
			NewEnd:   buf.OffsetToPoint(e.NewEnd),
		}
	}
	m.lastBuf = buf
	span.SetAttributes(attribute.Int(tracing.AttrEditCount, len(raw)))
	if len(raw) > 0 {
		log.Debug(log.CatDisplay, "syncing buffer edits", "count", len(raw))
	}

	hsnap, hedits := m.hints.Sync(buf, edits)
	m.syncFromHints(hsnap, hedits)
	return m.snapshot
}

func (m *Map) syncFromHints(hsnap *hint.Snapshot, hedits []text.Edit[int]) {
	fsnap, fedits := m.folds.Sync(hsnap, hedits)
	m.syncFromFolds(fsnap, fedits)
}

func (m *Map) syncFromFolds(fsnap *fold.Snapshot, fedits []text.PointEdit) {
	tsnap, tedits := m.tabs.Sync(fsnap, fedits)
	m.syncFromTabs(tsnap, tedits)
}

func (m *Map) syncFromTabs(tsnap *tab.Snapshot, tedits []text.PointEdit) {
	wsnap, wedits := m.wraps.Sync(tsnap, tedits)
	m.syncFromWraps(wsnap, wedits)
}

func (m *Map) syncFromWraps(wsnap *wrap.Snapshot, wedits text.Patch[uint32]) {
	bsnap, _ := m.blocks.Sync(wsnap, wedits)
	m.setBlocks(bsnap)
}

func (m *Map) setBlocks(bsnap *block.Snapshot) {
	m.snapshot = &Snapshot{blocks: bsnap, version: m.snapshot.version + 1}
}

// InsertHints adds virtual text and re-syncs the layers below the hint
// layer. Returns the assigned ids and the updated snapshot.
func (m *Map) InsertHints(hints []hint.Hint) ([]hint.ID, *Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncLocked(context.Background())

	oldLen := m.hints.Snapshot().Len()
	ids := m.hints.InsertBatch(hints)
	m.propagateHints(oldLen)
	return ids, m.snapshot
}

// RemoveHints deletes hints by id and re-syncs downstream.
func (m *Map) RemoveHints(ids []hint.ID) *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncLocked(context.Background())

	oldLen := m.hints.Snapshot().Len()
	m.hints.Remove(ids)
	m.propagateHints(oldLen)
	return m.snapshot
}

// propagateHints pushes a hint-layer change downstream as one
// whole-range edit in hint offsets.
func (m *Map) propagateHints(oldLen int) {
	hsnap := m.hints.Snapshot()
	m.syncFromHints(hsnap, []text.Edit[int]{{
		OldEnd: oldLen,
		NewEnd: hsnap.Len(),
	}})
}

// Fold hides the given ranges and re-syncs downstream.
func (m *Map) Fold(folds []fold.Fold) ([]fold.ID, *Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncLocked(context.Background())

	ids, fsnap, fedits := m.folds.Fold(folds)
	m.syncFromFolds(fsnap, fedits)
	return ids, m.snapshot
}

// Unfold removes every fold intersecting the given ranges.
func (m *Map) Unfold(ranges []fold.Range) *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncLocked(context.Background())

	fsnap, fedits := m.folds.UnfoldIntersecting(ranges)
	m.syncFromFolds(fsnap, fedits)
	return m.snapshot
}

// InsertCreases records foldable regions without folding them.
func (m *Map) InsertCreases(creases []fold.Crease) []fold.CreaseID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.folds.InsertCreases(creases)
}

// RemoveCreases drops crease records by id.
func (m *Map) RemoveCreases(ids []fold.CreaseID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.folds.RemoveCreases(ids)
}

// CreasesInRange returns the creases intersecting a buffer point range.
func (m *Map) CreasesInRange(start, end text.Point) []fold.Crease {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.folds.CreasesInRange(start, end)
}

// SetTabWidth changes the tab stop width and re-syncs downstream.
func (m *Map) SetTabWidth(width uint32) *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncLocked(context.Background())

	tsnap, tedits := m.tabs.SetTabWidth(width)
	m.syncFromTabs(tsnap, tedits)
	return m.snapshot
}

// SetWrapWidth changes the soft-wrap width, zero to disable. The
// returned snapshot may be interpolated while the exact rewrap runs;
// Events announces the final one.
func (m *Map) SetWrapWidth(width metrics.Pixels) *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncLocked(context.Background())

	wsnap, wedits := m.wraps.SetWrapWidth(width)
	m.syncFromWraps(wsnap, wedits)
	return m.snapshot
}

// SetFont changes the font used for wrap measurement.
func (m *Map) SetFont(font metrics.Font) *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncLocked(context.Background())

	wsnap, wedits := m.wraps.SetFont(font)
	m.syncFromWraps(wsnap, wedits)
	return m.snapshot
}

// InsertBlocks adds decoration blocks below the wrap layer.
func (m *Map) InsertBlocks(blocks []block.Block) ([]block.ID, *Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncLocked(context.Background())

	ids, bsnap, _ := m.blocks.Insert(blocks)
	m.setBlocks(bsnap)
	return ids, m.snapshot
}

// RemoveBlocks deletes blocks by id.
func (m *Map) RemoveBlocks(ids []block.ID) *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncLocked(context.Background())

	bsnap, _ := m.blocks.Remove(ids)
	m.setBlocks(bsnap)
	return m.snapshot
}

// ResizeBlocks changes block heights by id.
func (m *Map) ResizeBlocks(heights map[block.ID]uint32) *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncLocked(context.Background())

	bsnap, _ := m.blocks.Resize(heights)
	m.setBlocks(bsnap)
	return m.snapshot
}
