package fold

import (
	"sort"

	"github.com/zjrosen/lamina/internal/log"
	"github.com/zjrosen/lamina/internal/text"
)

// CreaseID identifies a crease within its map.
type CreaseID uint64

// CreaseKind distinguishes how a crease collapses.
type CreaseKind int

const (
	// CreaseInline collapses its range into an inline placeholder.
	CreaseInline CreaseKind = iota
	// CreaseBlock collapses its range behind a block of fixed height.
	CreaseBlock
)

// Crease marks a range as foldable. Creases do not hide anything by
// themselves; callers query them to decide what to pass to Fold.
type Crease struct {
	ID         CreaseID
	Kind       CreaseKind
	Start, End text.Anchor
	// Placeholder is shown when an inline crease is folded.
	Placeholder string
	// Height and Priority apply to block creases.
	Height   uint32
	Priority int
}

// InsertCreases registers foldable ranges and returns their ids. The
// ID fields of the given creases are ignored and reassigned.
func (m *Map) InsertCreases(creases []Crease) []CreaseID {
	ids := make([]CreaseID, len(creases))
	for i, c := range creases {
		c.ID = CreaseID(m.nextCreaseID.Add(1))
		ids[i] = c.ID
		m.creases = append(m.creases, c)
	}
	return ids
}

// RemoveCreases deletes creases by id. Unknown ids are ignored.
func (m *Map) RemoveCreases(ids []CreaseID) {
	drop := make(map[CreaseID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := m.creases[:0]
	for _, c := range m.creases {
		if !drop[c.ID] {
			kept = append(kept, c)
		}
	}
	m.creases = kept
}

// CreasesInRange returns the creases overlapping the given buffer
// range, ordered by position. Creases with stale anchors are omitted.
func (m *Map) CreasesInRange(start, end text.Point) []Crease {
	buffer := m.snapshot.hints.Buffer()
	rangeStart := buffer.PointToOffset(start)
	rangeEnd := buffer.PointToOffset(end)

	type placed struct {
		start, end int
		crease     Crease
	}
	var out []placed
	for _, c := range m.creases {
		creaseStart, err1 := buffer.AnchorToOffset(c.Start)
		creaseEnd, err2 := buffer.AnchorToOffset(c.End)
		if err1 != nil || err2 != nil {
			log.Debug(log.CatFold, "skipping crease with stale anchors", "id", c.ID)
			continue
		}
		if creaseEnd >= rangeStart && creaseStart <= rangeEnd {
			out = append(out, placed{creaseStart, creaseEnd, c})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].start != out[j].start {
			return out[i].start < out[j].start
		}
		return out[i].end < out[j].end
	})
	creases := make([]Crease, len(out))
	for i, p := range out {
		creases[i] = p.crease
	}
	return creases
}
