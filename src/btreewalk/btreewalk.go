// Package btreewalk implements the one depth-first B+-tree walker shared by
// the Record Iterator and the Long-Value Assembler's segment iteration.
// Rather than duplicate the traversal once per tree kind, it is factored
// into a single engine parametrized by how a popped leaf range turns into
// the caller's item — D for tables, the range itself (with its key) for
// long values.
package btreewalk

import (
	"sync/atomic"

	"esedb/src/btreenode"
	"esedb/src/esedberr"
	"esedb/src/rangekey"
	"esedb/src/stackengine"
)

// ReadNode fetches and decodes the node r points at. The implementations in
// this module fetch the page with NoCache|IgnoreCache, so a traversal
// neither reads nor fills the page cache. src/esedb's table scans put a
// btreenode.Cache in front of that read, so there a node decoded by an
// earlier read can be returned from the node cache.
type ReadNode func(r rangekey.R) (*btreenode.Node, error)

// LeafMapper turns a popped leaf range into the caller's item type.
type LeafMapper[D any] func(leaf rangekey.R) (D, error)

// Engine is the generic depth-first walker. It owns the two pending-range
// stacks and alternates between draining pending leaves and expanding the
// next pending node.
type Engine[D any] struct {
	pendingNodes  *stackengine.Stack[rangekey.R]
	pendingLeaves *stackengine.Stack[D]
	readNode      ReadNode
	mapLeaf       LeafMapper[D]
	abort         *atomic.Bool

	terminal error
}

// New starts a walker rooted at root. abort may be nil, meaning the walker
// is never externally cancellable.
func New[D any](root rangekey.R, readNode ReadNode, mapLeaf LeafMapper[D], abort *atomic.Bool, expectedHeight int) *Engine[D] {
	e := &Engine[D]{
		pendingNodes:  stackengine.New[rangekey.R](expectedHeight + 1),
		pendingLeaves: stackengine.New[D](16),
		readNode:      readNode,
		mapLeaf:       mapLeaf,
		abort:         abort,
	}
	e.pendingNodes.Push(root.Clone())
	return e
}

// NewSeeded builds an Engine from already-primed stacks instead of a single
// root range. The Long-Value Assembler's find_first uses this: it descends
// the tree once to locate the first matching segment, seeding
// pendingLeaves with that leaf's ranges and pendingNodes with the
// right-sibling subtrees at every level of the descent, so the walker
// continues in ascending key order exactly as if it had walked there from
// the root.
func NewSeeded[D any](pendingNodes []rangekey.R, pendingLeaves []D, readNode ReadNode, mapLeaf LeafMapper[D], abort *atomic.Bool) *Engine[D] {
	e := &Engine[D]{
		pendingNodes:  stackengine.New[rangekey.R](len(pendingNodes) + 4),
		pendingLeaves: stackengine.New[D](len(pendingLeaves) + 4),
		readNode:      readNode,
		mapLeaf:       mapLeaf,
		abort:         abort,
	}
	for _, r := range pendingNodes {
		e.pendingNodes.Push(r)
	}
	for _, d := range pendingLeaves {
		e.pendingLeaves.Push(d)
	}
	return e
}

// Next delivers a buffered leaf if one is pending; otherwise it pops and
// expands the next node range, pushing its children (reverse order, so
// ascending-key pops result) or its leaves (likewise reversed) onto the
// matching stack, and tries again.
//
// Once any error (including esedberr.ErrEndOfTable / ErrAborted) has been
// returned, the walker is terminal: every subsequent call returns the
// same error.
func (e *Engine[D]) Next() (D, error) {
	var zero D

	for {
		if e.terminal != nil {
			return zero, e.terminal
		}

		if e.abort != nil && e.abort.Load() {
			e.terminal = esedberr.ErrAborted
			e.pendingNodes.Drain()
			e.pendingLeaves.Drain()
			return zero, e.terminal
		}

		if d, ok := e.pendingLeaves.Pop(); ok {
			return d, nil
		}

		r, ok := e.pendingNodes.Pop()
		if !ok {
			e.terminal = esedberr.ErrEndOfTable
			return zero, e.terminal
		}

		node, err := e.readNode(r)
		if err != nil {
			e.fail(err)
			return zero, err
		}

		if node.Kind == btreenode.Leaf {
			for i := len(node.Ranges) - 1; i >= 0; i-- {
				d, err := e.mapLeaf(node.Ranges[i])
				if err != nil {
					e.fail(err)
					return zero, err
				}
				e.pendingLeaves.Push(d)
			}
		} else {
			for i := len(node.Ranges) - 1; i >= 0; i-- {
				e.pendingNodes.Push(node.Ranges[i].Clone())
			}
		}
		// r and node are dropped here. Children were deep-cloned above;
		// leaf items are whatever mapLeaf returned, and the mappers in
		// this module keep the leaf's key slice as is, which points into
		// the store's read-only file mapping rather than into node.
	}
}

func (e *Engine[D]) fail(err error) {
	e.terminal = err
	e.pendingNodes.Drain()
	e.pendingLeaves.Drain()
}

// StackDepth reports the combined size of both stacks, for the stack-bound
// property test.
func (e *Engine[D]) StackDepth() int {
	return e.pendingNodes.Len() + e.pendingLeaves.Len()
}
