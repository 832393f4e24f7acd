// Package text provides the buffer collaborator for the display pipeline:
// points, summaries, edits, anchors, and a line-oriented buffer with
// edit subscriptions.
package text

// Point is a zero-based buffer coordinate. Column is a byte offset within
// the row, never a cell or glyph count.
type Point struct {
	Row    uint32
	Column uint32
}

// NewPoint returns the point at the given row and column.
func NewPoint(row, column uint32) Point {
	return Point{Row: row, Column: column}
}

// Zero reports whether p is the origin.
func (p Point) Zero() bool {
	return p.Row == 0 && p.Column == 0
}

// Cmp returns -1, 0, or 1 depending on whether p is before, equal to, or
// after other in document order.
func (p Point) Cmp(other Point) int {
	if p.Row != other.Row {
		if p.Row < other.Row {
			return -1
		}
		return 1
	}
	if p.Column != other.Column {
		if p.Column < other.Column {
			return -1
		}
		return 1
	}
	return 0
}

// Add concatenates two relative extents. When other spans rows, its column
// is absolute within its final row and replaces p's column.
func (p Point) Add(other Point) Point {
	if other.Row == 0 {
		return Point{Row: p.Row, Column: p.Column + other.Column}
	}
	return Point{Row: p.Row + other.Row, Column: other.Column}
}

// Sub returns the extent from other to p. Requires other <= p.
func (p Point) Sub(other Point) Point {
	if p.Row == other.Row {
		return Point{Row: 0, Column: p.Column - other.Column}
	}
	return Point{Row: p.Row - other.Row, Column: p.Column}
}

// Min returns the earlier of the two points.
func Min(a, b Point) Point {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// Max returns the later of the two points.
func Max(a, b Point) Point {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}
