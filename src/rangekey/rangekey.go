// Package rangekey implements the immutable file-range descriptor used by
// the B+-tree walker: a child-node pointer or a leaf value, identified by a
// file offset and carrying an owned copy of its sort key.
package rangekey

// Flags bits describe what an R names and how it should be read.
type Flags uint16

const (
	// IsChild marks an R that names a child node (branch pointer). When
	// unset, the R names a leaf value living inside the page it was read
	// from.
	IsChild Flags = 1 << iota

	// NoCache instructs btreenode.Cache to skip storing the decoded node
	// once read.
	NoCache

	// IgnoreCache instructs btreenode.Cache to skip the node-cache lookup,
	// forcing a fresh decode.
	IgnoreCache

	// LongValue marks a column value whose payload is a 4-byte long-value
	// id rather than inline bytes.
	LongValue

	// MultiValue marks a column flagged multi-valued. Combined with
	// LongValue this is explicitly unsupported.
	MultiValue
)

// R is an immutable descriptor of a child node or a leaf value:
// (file_index, offset, size, flags, key). Offsets are arena-relative (the
// Paged Store adds the file-header base once, on the way to disk).
//
// An R is self-contained: Clone deep-copies Key so a popped R outlives the
// node it was read from.
type R struct {
	FileIndex int32
	Offset    int64
	Size      int64
	Flags     Flags
	Key       []byte
}

// Clone deep-copies r, in particular its Key, so the result remains valid
// after the node r was read from is freed. An R with a zero-length key
// clones to an R with a zero-length (but non-nil-aliasing) key.
func (r R) Clone() R {
	var key []byte
	if len(r.Key) > 0 {
		key = make([]byte, len(r.Key))
		copy(key, r.Key)
	}
	return R{
		FileIndex: r.FileIndex,
		Offset:    r.Offset,
		Size:      r.Size,
		Flags:     r.Flags,
		Key:       key,
	}
}

// IsLeaf reports whether r names a leaf value rather than a child node.
func (r R) IsLeaf() bool { return r.Flags&IsChild == 0 }

// PageNumber recovers the 1-based page number a child range points at,
// given the page size the range was read under. Only meaningful when
// r.Flags&IsChild is set, where Offset == (pageNumber-1)*pageSize and
// Size == pageSize by construction.
func (r R) PageNumber(pageSize int64) uint32 {
	return uint32(r.Offset/pageSize) + 1
}
