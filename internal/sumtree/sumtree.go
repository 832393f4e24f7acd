// Package sumtree implements the persistent summary tree shared by the
// display layers. Each layer stores its transforms as leaves; interior
// nodes carry aggregated summaries so a cursor can seek by either the
// input or the output dimension in O(log n).
package sumtree

import "github.com/zjrosen/lamina/internal/text"

// Summary carries the extent of a transform in both coordinate spaces.
// Isomorphic transforms have equal input and output; a fold consumes
// input without producing output, a wrap or block produces output
// without consuming input.
type Summary struct {
	Input  text.Summary
	Output text.Summary
}

// Add concatenates another summary onto s.
func (s *Summary) Add(other Summary) {
	s.Input.Add(other.Input)
	s.Output.Add(other.Output)
}

// Added returns the concatenation without mutating s.
func (s Summary) Added(other Summary) Summary {
	s.Add(other)
	return s
}

// Transform is a leaf of the tree.
type Transform interface {
	Transform() Summary
}

// Tree is an immutable balanced tree of transforms. The zero value is
// an empty tree. Sharing a Tree value shares its nodes, which is what
// makes layer snapshots cheap.
type Tree[T Transform] struct {
	root *node[T]
}

type node[T Transform] struct {
	summary Summary
	count   int

	// Interior nodes have both children; leaves have neither.
	left, right *node[T]
	item        T
}

func (n *node[T]) leaf() bool { return n.left == nil }

// FromItems builds a balanced tree over the items in order.
func FromItems[T Transform](items []T) Tree[T] {
	return Tree[T]{root: build(items)}
}

func build[T Transform](items []T) *node[T] {
	switch len(items) {
	case 0:
		return nil
	case 1:
		return &node[T]{summary: items[0].Transform(), count: 1, item: items[0]}
	}
	mid := len(items) / 2
	left := build(items[:mid])
	right := build(items[mid:])
	return &node[T]{
		summary: left.summary.Added(right.summary),
		count:   left.count + right.count,
		left:    left,
		right:   right,
	}
}

// Summary returns the aggregate over all transforms.
func (t Tree[T]) Summary() Summary {
	if t.root == nil {
		return Summary{}
	}
	return t.root.summary
}

// Len returns the number of transforms.
func (t Tree[T]) Len() int {
	if t.root == nil {
		return 0
	}
	return t.root.count
}

// IsEmpty reports whether the tree holds no transforms.
func (t Tree[T]) IsEmpty() bool { return t.root == nil }

// Items returns the transforms in order.
func (t Tree[T]) Items() []T {
	items := make([]T, 0, t.Len())
	var walk func(n *node[T])
	walk = func(n *node[T]) {
		if n == nil {
			return
		}
		if n.leaf() {
			items = append(items, n.item)
			return
		}
		walk(n.left)
		walk(n.right)
	}
	walk(t.root)
	return items
}
