package text

import (
	"errors"

	"github.com/google/uuid"
)

// ErrStaleAnchor is returned when an anchor cannot be resolved against a
// snapshot: it belongs to a different buffer, or to a version the
// snapshot's history does not reach.
var ErrStaleAnchor = errors.New("anchor is stale for this snapshot")

// Anchor is a position that stays logically in place across edits. It
// records the buffer it was taken from, the offset at that time, and a
// bias deciding which way it moves when text is inserted exactly at it.
type Anchor struct {
	BufferID uuid.UUID
	Offset   int
	Bias     Bias
	Version  uint64
}

// AnchorBefore returns an anchor at the point that stays before text
// inserted at its position.
func (s *Snapshot) AnchorBefore(p Point) Anchor {
	return s.anchor(p, Left)
}

// AnchorAfter returns an anchor at the point that moves after text
// inserted at its position.
func (s *Snapshot) AnchorAfter(p Point) Anchor {
	return s.anchor(p, Right)
}

func (s *Snapshot) anchor(p Point, bias Bias) Anchor {
	return Anchor{
		BufferID: s.id,
		Offset:   s.PointToOffset(p),
		Bias:     bias,
		Version:  s.version,
	}
}

// AnchorToOffset resolves an anchor to a byte offset in this snapshot by
// replaying the edits recorded after the anchor's version.
func (s *Snapshot) AnchorToOffset(a Anchor) (int, error) {
	if a.BufferID != s.id {
		return 0, ErrStaleAnchor
	}
	if a.Version > s.version {
		return 0, ErrStaleAnchor
	}
	off := a.Offset
	for _, entry := range s.history {
		if entry.version <= a.Version {
			continue
		}
		off = resolveThrough(off, a.Bias, entry.edit)
	}
	return clampOffset(off, len(s.content)), nil
}

// AnchorToPoint resolves an anchor to a point in this snapshot.
func (s *Snapshot) AnchorToPoint(a Anchor) (Point, error) {
	off, err := s.AnchorToOffset(a)
	if err != nil {
		return Point{}, err
	}
	return s.OffsetToPoint(off), nil
}

func resolveThrough(off int, bias Bias, e Edit[int]) int {
	if off < e.OldStart || (off == e.OldStart && bias == Left) {
		return off
	}
	delta := e.NewLen() - e.OldLen()
	if off > e.OldEnd || (off == e.OldEnd && bias == Right) {
		return off + delta
	}
	// Inside the replaced range: collapse to one side of the new text.
	if bias == Left {
		return e.NewStart
	}
	return e.NewEnd
}
