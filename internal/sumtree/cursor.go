package sumtree

import "github.com/zjrosen/lamina/internal/text"

// Axis selects which coordinate space a seek measures against.
type Axis int

const (
	Input Axis = iota
	Output
)

// Point projects the summary onto one axis as a point extent.
func (s Summary) Point(axis Axis) text.Point {
	if axis == Input {
		return s.Input.Lines
	}
	return s.Output.Lines
}

// Offset projects the summary onto one axis as a byte length.
func (s Summary) Offset(axis Axis) int {
	if axis == Input {
		return s.Input.Len
	}
	return s.Output.Len
}

// Cursor walks a tree's transforms in order while accumulating the
// summary of everything before the current transform, in both axes.
type Cursor[T Transform] struct {
	root    *node[T]
	agg     Summary
	current *node[T]
	pending []*node[T]
}

// Cursor returns a cursor positioned before the first transform. Seek
// or Next must be called before Item.
func (t Tree[T]) Cursor() *Cursor[T] {
	c := &Cursor[T]{root: t.root}
	if t.root != nil {
		c.pending = append(c.pending, t.root)
	}
	return c
}

// Seek positions the cursor at the transform containing target along
// the given axis. At a boundary, Left bias rests on the transform
// ending there and Right bias on the transform starting there. A target
// at or past the total extent lands on the last transform.
func (c *Cursor[T]) Seek(axis Axis, target text.Point, bias text.Bias) {
	c.seek(func(leftEnd Summary) bool {
		cmp := target.Cmp(leftEnd.Point(axis))
		return cmp < 0 || (cmp == 0 && bias == text.Left)
	})
}

// SeekOffset is Seek measured in bytes instead of points.
func (c *Cursor[T]) SeekOffset(axis Axis, target int, bias text.Bias) {
	c.seek(func(leftEnd Summary) bool {
		end := leftEnd.Offset(axis)
		return target < end || (target == end && bias == text.Left)
	})
}

// seek descends from the root; goLeft reports whether the target falls
// within the accumulated summary through the left subtree.
func (c *Cursor[T]) seek(goLeft func(leftEnd Summary) bool) {
	c.agg = Summary{}
	c.pending = c.pending[:0]
	n := c.root
	for n != nil && !n.leaf() {
		if goLeft(c.agg.Added(n.left.summary)) {
			c.pending = append(c.pending, n.right)
			n = n.left
		} else {
			c.agg.Add(n.left.summary)
			n = n.right
		}
	}
	c.current = n
}

// Item returns the current transform.
func (c *Cursor[T]) Item() (T, bool) {
	if c.current == nil {
		var zero T
		return zero, false
	}
	return c.current.item, true
}

// Start returns the accumulated summary of everything before the
// current transform.
func (c *Cursor[T]) Start() Summary { return c.agg }

// End returns Start plus the current transform's summary.
func (c *Cursor[T]) End() Summary {
	if c.current == nil {
		return c.agg
	}
	return c.agg.Added(c.current.summary)
}

// Next advances to the following transform, accumulating the current
// one into Start. After the last transform, Item reports false.
func (c *Cursor[T]) Next() {
	if c.current != nil {
		c.agg.Add(c.current.summary)
		c.current = nil
	}
	if len(c.pending) == 0 {
		return
	}
	n := c.pending[len(c.pending)-1]
	c.pending = c.pending[:len(c.pending)-1]
	for !n.leaf() {
		c.pending = append(c.pending, n.right)
		n = n.left
	}
	c.current = n
}
