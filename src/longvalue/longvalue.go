// Package longvalue implements the Long-Value Assembler: a second
// depth-first walker over the long-values B+-tree, keyed by (column_id,
// long_value_id, segment_offset), plus a joiner that resolves a record
// column's long-value reference to one contiguous byte buffer.
package longvalue

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"esedb/src/btreenode"
	"esedb/src/btreewalk"
	"esedb/src/esedberr"
	"esedb/src/pagestore"
	"esedb/src/rangekey"
)

// KeyLen is the fixed width of a long-values leaf key: column_id (4 bytes)
// || long_value_id (4 bytes) || segment_offset (4 bytes), all big-endian.
const KeyLen = 12

// Assembler walks one table's long-values tree.
type Assembler struct {
	store          *pagestore.Store
	rootPageNumber uint32
	height         int
}

// NewAssembler builds an Assembler over the long-values tree rooted at
// rootPageNumber. height is only a stack-preallocation hint.
func NewAssembler(store *pagestore.Store, rootPageNumber uint32, height int) *Assembler {
	if height <= 0 {
		height = 6
	}
	return &Assembler{store: store, rootPageNumber: rootPageNumber, height: height}
}

func (a *Assembler) readNode(r rangekey.R) (*btreenode.Node, error) {
	return btreenode.Read(a.store, r, pagestore.NoCache|pagestore.IgnoreCache)
}

func prefix(columnID, longValueID uint32) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], columnID)
	binary.BigEndian.PutUint32(buf[4:8], longValueID)
	return buf
}

// segments walks the tree starting at the first leaf whose key carries the
// given 8-byte prefix, yielding every matching leaf range in ascending key
// order, stopping as soon as the prefix no longer matches. abort lets a
// caller cancel mid-assembly the same way a table scan can be aborted.
func (a *Assembler) segments(want []byte, abort *atomic.Bool) ([]rangekey.R, error) {
	pageSize := a.store.PageSize()
	root := pagestore.ChildRange(a.rootPageNumber, pageSize, -1, nil)

	seedNodes, seedLeaves, err := findFirst(a.readNode, root, want)
	if err != nil {
		return nil, err
	}

	identity := func(leaf rangekey.R) (rangekey.R, error) { return leaf, nil }
	walker := btreewalk.NewSeeded[rangekey.R](seedNodes, seedLeaves, a.readNode, identity, abort)

	var out []rangekey.R
	for {
		r, err := walker.Next()
		if err != nil {
			if err == esedberr.ErrEndOfTable {
				return out, nil
			}
			return nil, err
		}
		if bytes.Compare(r.Key, want) < 0 {
			// The first leaf findFirst lands on may begin with keys that
			// sort before the wanted prefix; skip them.
			continue
		}
		if len(r.Key) < len(want) || !bytes.Equal(r.Key[:len(want)], want) {
			return out, nil
		}
		out = append(out, r)
	}
}

// findFirst descends the tree once, picking at each branch level the
// rightmost child whose separator key is <= want, accumulating the
// right-sibling subtrees passed over at every level so the caller can
// resume a normal ascending walk from the matched leaf onward. Because
// keys are big-endian and the tree is ordered, matching leaves always
// form one contiguous range.
func findFirst(readNode btreewalk.ReadNode, root rangekey.R, want []byte) (pendingNodes []rangekey.R, pendingLeaves []rangekey.R, err error) {
	type level struct{ rightSiblings []rangekey.R }
	var levels []level

	cur := root
	for {
		node, err := readNode(cur)
		if err != nil {
			return nil, nil, err
		}
		if node.Kind == btreenode.Leaf {
			// Ranges is ascending; NewSeeded wants bottom-to-top push
			// order, i.e. descending, so the smallest key ends on top.
			leaves := make([]rangekey.R, len(node.Ranges))
			for i, r := range node.Ranges {
				leaves[len(node.Ranges)-1-i] = r
			}
			pendingLeaves = leaves
			break
		}

		idx := chooseChild(node.Ranges, want)
		levels = append(levels, level{rightSiblings: cloneAll(node.Ranges[idx+1:])})
		cur = node.Ranges[idx]
	}

	// Shallowest level's right siblings must be visited last, so push
	// them first (bottom of stack); deepest level pushed last (top),
	// popped first.
	for i := 0; i < len(levels); i++ {
		sib := levels[i].rightSiblings
		// within a level, push in reverse so ascending pop order
		for j := len(sib) - 1; j >= 0; j-- {
			pendingNodes = append(pendingNodes, sib[j])
		}
	}
	return pendingNodes, pendingLeaves, nil
}

// chooseChild returns the rightmost index whose key is <= want, or 0 if
// every key exceeds want (branch keys are the minimum key of their
// subtree, the convention src/btreenode's slot decode produces).
func chooseChild(children []rangekey.R, want []byte) int {
	best := 0
	for i, c := range children {
		if bytes.Compare(c.Key, want) <= 0 {
			best = i
		} else {
			break
		}
	}
	return best
}

func cloneAll(rs []rangekey.R) []rangekey.R {
	out := make([]rangekey.R, len(rs))
	for i, r := range rs {
		out[i] = r.Clone()
	}
	return out
}

// Get assembles the logical long value identified by (columnID,
// longValueID): every leaf segment sharing that 8-byte key prefix,
// concatenated in segment-offset order.
//
// It appends in order when segments already arrive in ascending offset
// (the common case, since the tree's key order already sorts by
// segment_offset) and falls back to scatter-writing into the output
// buffer only when a segment arrives out of order.
func (a *Assembler) Get(columnID, longValueID uint32, abort *atomic.Bool) ([]byte, error) {
	want := prefix(columnID, longValueID)
	segs, err := a.segments(want, abort)
	if err != nil {
		return nil, fmt.Errorf("longvalue.Get: %w", err)
	}
	if len(segs) == 0 {
		return nil, fmt.Errorf("longvalue.Get: %w: long value %d/%d has no segments", esedberr.ErrNotFound, columnID, longValueID)
	}

	type fragment struct {
		offset  uint32
		payload []byte
	}
	frags := make([]fragment, 0, len(segs))
	totalSize := uint32(0)
	inOrder := true
	prevEnd := uint32(0)

	for i, seg := range segs {
		if len(seg.Key) != KeyLen {
			return nil, fmt.Errorf("longvalue.Get: %w: key length %d, want %d", esedberr.ErrCorruptNode, len(seg.Key), KeyLen)
		}
		segOffset := binary.BigEndian.Uint32(seg.Key[8:12])
		payload, err := a.readPayload(seg)
		if err != nil {
			return nil, fmt.Errorf("longvalue.Get: %w", err)
		}
		frags = append(frags, fragment{offset: segOffset, payload: payload})
		end := segOffset + uint32(len(payload))
		if end > totalSize {
			totalSize = end
		}
		if i > 0 && segOffset != prevEnd {
			inOrder = false
		}
		prevEnd = end
	}

	buf := make([]byte, totalSize)
	covered := make([]bool, totalSize)

	mark := func(start uint32, payload []byte) error {
		for i := range payload {
			pos := start + uint32(i)
			if covered[pos] {
				return fmt.Errorf("longvalue.Get: %w: long value %d/%d has overlapping segments at offset %d", esedberr.ErrLongValueGap, columnID, longValueID, pos)
			}
			covered[pos] = true
		}
		return nil
	}

	if inOrder {
		cursor := uint32(0)
		for _, f := range frags {
			if err := mark(cursor, f.payload); err != nil {
				return nil, err
			}
			copy(buf[cursor:], f.payload)
			cursor += uint32(len(f.payload))
		}
	} else {
		for _, f := range frags {
			if err := mark(f.offset, f.payload); err != nil {
				return nil, err
			}
			copy(buf[f.offset:], f.payload)
		}
	}

	for _, c := range covered {
		if !c {
			return nil, fmt.Errorf("longvalue.Get: %w: long value %d/%d has a gap", esedberr.ErrLongValueGap, columnID, longValueID)
		}
	}
	return buf, nil
}

func (a *Assembler) readPayload(seg rangekey.R) ([]byte, error) {
	pageNumber := uint32(seg.Offset/a.store.PageSize()) + 1
	page, err := a.store.ReadPage(pageNumber, 0)
	if err != nil {
		return nil, err
	}
	pageOffset := (seg.Offset / a.store.PageSize()) * a.store.PageSize()
	dataOffset := seg.Offset - pageOffset
	if dataOffset < 0 || dataOffset+seg.Size > int64(len(page.Data)) {
		return nil, fmt.Errorf("%w: segment bounds exceed page", esedberr.ErrCorruptPointer)
	}
	out := make([]byte, seg.Size)
	copy(out, page.Data[dataOffset:dataOffset+seg.Size])
	return out, nil
}
