// Package btreenode implements the Node Reader: it fetches a page through
// the Paged Store and decodes it into a Node — a branch's child ranges or
// a leaf's value ranges — validating the invariants every decoded node
// must satisfy (slot count > 0, declared lengths fit the page, keys
// monotonically non-decreasing).
package btreenode

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"esedb/src/esedberr"
	"esedb/src/pagestore"
	"esedb/src/rangekey"
)

// Kind distinguishes a branch page (holding child pointers) from a leaf
// page (holding record/segment values).
type Kind int

const (
	Branch Kind = iota
	Leaf
)

// Node is the decoded form of a branch or leaf page: an ordered sequence of
// ranges, one per slot, in ascending slot-index order.
type Node struct {
	Kind   Kind
	Ranges []rangekey.R
}

// slotPayload splits a page value into its length-prefixed key and the
// trailing bytes (a 4-byte child page number for a branch slot, raw
// record/segment bytes for a leaf slot).
func slotPayload(value []byte) (key, trailer []byte, err error) {
	if len(value) < 2 {
		return nil, nil, fmt.Errorf("%w: slot value too short for key length", esedberr.ErrCorruptNode)
	}
	keyLen := int(binary.LittleEndian.Uint16(value[0:2]))
	if 2+keyLen > len(value) {
		return nil, nil, fmt.Errorf("%w: key length %d exceeds slot value", esedberr.ErrCorruptNode, keyLen)
	}
	return value[2 : 2+keyLen], value[2+keyLen:], nil
}

// Read fetches the page r points at through store and decodes it into a
// Node. flags are forwarded to the Paged Store's ReadPage; the traversal
// always passes NoCache|IgnoreCache since the node is needed only for the
// duration of one expansion.
func Read(store *pagestore.Store, r rangekey.R, flags pagestore.ReadFlags) (*Node, error) {
	if r.IsLeaf() {
		return nil, fmt.Errorf("btreenode.Read: %w: range is not a child pointer", esedberr.ErrCorruptPointer)
	}
	pageNumber := r.PageNumber(store.PageSize())
	if pageNumber == 0 {
		return nil, fmt.Errorf("btreenode.Read: %w: page number 0", esedberr.ErrCorruptPointer)
	}

	page, err := store.ReadPage(pageNumber, flags)
	if err != nil {
		return nil, esedberr.Wrap("btreenode.Read", pageNumber, -1, err)
	}

	if len(page.Tags) == 0 {
		return nil, esedberr.Wrap("btreenode.Read", pageNumber, -1, fmt.Errorf("%w: zero slots", esedberr.ErrCorruptNode))
	}

	kind := Branch
	if page.Flags&pagestore.FlagIsLeaf != 0 {
		kind = Leaf
	}

	ranges := make([]rangekey.R, 0, len(page.Tags))
	var prevKey []byte
	pageSize := store.PageSize()
	pageBase := int64(pageNumber-1) * pageSize

	for slot := range page.Tags {
		value := page.Value(slot)
		key, trailer, err := slotPayload(value)
		if err != nil {
			return nil, esedberr.Wrap("btreenode.Read", pageNumber, slot, err)
		}
		if prevKey != nil && bytes.Compare(key, prevKey) < 0 {
			return nil, esedberr.Wrap("btreenode.Read", pageNumber, slot, fmt.Errorf("%w: keys out of order", esedberr.ErrCorruptNode))
		}
		prevKey = key

		if kind == Branch {
			if len(trailer) != 4 {
				return nil, esedberr.Wrap("btreenode.Read", pageNumber, slot, fmt.Errorf("%w: malformed child pointer", esedberr.ErrCorruptNode))
			}
			childPage := binary.LittleEndian.Uint32(trailer)
			if childPage == 0 {
				return nil, esedberr.Wrap("btreenode.Read", pageNumber, slot, fmt.Errorf("%w: child page 0", esedberr.ErrCorruptPointer))
			}
			ranges = append(ranges, pagestore.ChildRange(childPage, pageSize, slot, key))
		} else {
			tag := page.Tags[slot]
			valueOffsetInPage := int64(tag.Offset) + 2 + int64(len(key))
			ranges = append(ranges, rangekey.R{
				FileIndex: int32(slot),
				Offset:    pageBase + valueOffsetInPage,
				Size:      int64(len(trailer)),
				Flags:     0,
				Key:       key,
			})
		}
	}

	return &Node{Kind: kind, Ranges: ranges}, nil
}
