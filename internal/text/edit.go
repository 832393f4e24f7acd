package text

// Edit records a replaced span: Old is the range in the coordinates before
// the edit, New the range it became. Used with int for byte offsets and
// uint32 for row indices.
type Edit[T ~int | ~uint32] struct {
	OldStart, OldEnd T
	NewStart, NewEnd T
}

// OldLen returns the length of the replaced range.
func (e Edit[T]) OldLen() T { return e.OldEnd - e.OldStart }

// NewLen returns the length of the replacement.
func (e Edit[T]) NewLen() T { return e.NewEnd - e.NewStart }

func (e Edit[T]) empty() bool {
	return e.OldStart == e.OldEnd && e.NewStart == e.NewEnd
}

// PointEdit is an edit expressed in point coordinates.
type PointEdit struct {
	OldStart, OldEnd Point
	NewStart, NewEnd Point
}

// Patch is a sorted, non-overlapping sequence of edits describing the
// difference between two versions of a coordinate space.
type Patch[T ~int | ~uint32] []Edit[T]

// Invert returns the patch mapping in the opposite direction.
func (p Patch[T]) Invert() Patch[T] {
	inverted := make(Patch[T], len(p))
	for i, e := range p {
		inverted[i] = Edit[T]{
			OldStart: e.NewStart, OldEnd: e.NewEnd,
			NewStart: e.OldStart, NewEnd: e.OldEnd,
		}
	}
	return inverted
}

// Compose merges a later patch into this one. The old coordinates of
// other live in p's new coordinate space; the result maps p's old space
// directly to other's new space. Overlapping or touching edits coalesce.
func (p Patch[T]) Compose(other Patch[T]) Patch[T] {
	if len(p) == 0 {
		return append(Patch[T]{}, other...).normalized()
	}
	if len(other) == 0 {
		return append(Patch[T]{}, p...).normalized()
	}

	var composed Patch[T]
	i, j := 0, 0
	// Running deltas from old space to mid space (edits of p consumed so
	// far) and from mid space to new space (edits of other consumed).
	var deltaOldMid, deltaMidNew int64

	for i < len(p) || j < len(other) {
		// Begin a cluster at the smaller mid-space start.
		var midStart, midEnd int64
		var oldStart, oldEnd, newStart, newEnd int64
		startIsOld := j >= len(other) ||
			(i < len(p) && int64(p[i].NewStart) <= int64(other[j].OldStart))

		if startIsOld {
			midStart = int64(p[i].NewStart)
			oldStart = int64(p[i].OldStart)
			newStart = midStart + deltaMidNew
		} else {
			midStart = int64(other[j].OldStart)
			oldStart = midStart - deltaOldMid
			newStart = int64(other[j].NewStart)
		}
		midEnd = midStart

		// Absorb every edit from either side that touches the cluster.
		// The side that last extends midEnd fixes that side's end
		// exactly; the other side's end falls out of the running deltas
		// once the cluster closes.
		var endFromOld, endFromNew int64
		haveOldEnd, haveNewEnd := false, false
		for {
			if i < len(p) && int64(p[i].NewStart) <= midEnd {
				e := p[i]
				i++
				deltaOldMid += int64(e.NewLen()) - int64(e.OldLen())
				if end := int64(e.NewEnd); end >= midEnd {
					midEnd = end
					endFromOld = int64(e.OldEnd)
					haveOldEnd, haveNewEnd = true, false
				}
				continue
			}
			if j < len(other) && int64(other[j].OldStart) <= midEnd {
				e := other[j]
				j++
				deltaMidNew += int64(e.NewLen()) - int64(e.OldLen())
				if end := int64(e.OldEnd); end >= midEnd {
					midEnd = end
					endFromNew = int64(e.NewEnd)
					haveNewEnd, haveOldEnd = true, false
				}
				continue
			}
			break
		}

		if haveOldEnd {
			oldEnd = endFromOld
		} else {
			oldEnd = midEnd - deltaOldMid
		}
		if haveNewEnd {
			newEnd = endFromNew
		} else {
			newEnd = midEnd + deltaMidNew
		}

		edit := Edit[T]{
			OldStart: T(oldStart), OldEnd: T(oldEnd),
			NewStart: T(newStart), NewEnd: T(newEnd),
		}
		if !edit.empty() {
			composed = append(composed, edit)
		}
	}
	return composed
}

// normalized drops empty edits and merges touching neighbors.
func (p Patch[T]) normalized() Patch[T] {
	var out Patch[T]
	for _, e := range p {
		if e.empty() {
			continue
		}
		if n := len(out); n > 0 && out[n-1].OldEnd >= e.OldStart {
			if e.OldEnd > out[n-1].OldEnd {
				out[n-1].OldEnd = e.OldEnd
			}
			if e.NewEnd > out[n-1].NewEnd {
				out[n-1].NewEnd = e.NewEnd
			}
			continue
		}
		out = append(out, e)
	}
	return out
}
