// Package datadef derives the leaf-level Data Definition D from a leaf
// value's file range R: the (page_number, page_offset, data_offset,
// data_size, page_value_index) tuple a Record is ultimately built from.
package datadef

import (
	"fmt"

	"esedb/src/esedberr"
	"esedb/src/rangekey"
)

const maxUint16 = 1<<16 - 1

// D is the leaf-level decoded descriptor.
type D struct {
	PageNumber     uint32
	PageOffset     int64
	DataOffset     int64
	DataSize       int64
	PageValueIndex int32
	Key            []byte // carried through for key-order assertions and long-value prefix matching
}

// Derive computes D from a leaf range r read under the given page size,
// enforcing the invariants every derived D must satisfy: 0 <= data_offset
// < page_size, data_offset+data_size <= page_size, page_number <=
// 2^32-1, data_size <= 2^16-1.
func Derive(r rangekey.R, pageSize int64) (D, error) {
	pageOffset := (r.Offset / pageSize) * pageSize
	pageNumber := pageOffset/pageSize + 1
	dataOffset := r.Offset - pageOffset
	dataSize := r.Size

	if dataOffset < 0 || dataOffset >= pageSize {
		return D{}, fmt.Errorf("datadef.Derive: %w: data_offset %d out of [0,%d)", esedberr.ErrCorruptPointer, dataOffset, pageSize)
	}
	if dataOffset+dataSize > pageSize {
		return D{}, fmt.Errorf("datadef.Derive: %w: data_offset+data_size %d exceeds page_size %d", esedberr.ErrCorruptPointer, dataOffset+dataSize, pageSize)
	}
	if pageNumber <= 0 || pageNumber > 1<<32-1 {
		return D{}, fmt.Errorf("datadef.Derive: %w: page_number %d out of range", esedberr.ErrCorruptPointer, pageNumber)
	}
	if dataSize < 0 || dataSize > maxUint16 {
		return D{}, fmt.Errorf("datadef.Derive: %w: data_size %d out of range", esedberr.ErrCorruptPointer, dataSize)
	}

	return D{
		PageNumber:     uint32(pageNumber),
		PageOffset:     pageOffset,
		DataOffset:     dataOffset,
		DataSize:       dataSize,
		PageValueIndex: r.FileIndex,
		Key:            r.Key,
	}, nil
}

// Clone deep-copies d's owned key bytes.
func (d D) Clone() D {
	var key []byte
	if len(d.Key) > 0 {
		key = make([]byte, len(d.Key))
		copy(key, d.Key)
	}
	d.Key = key
	return d
}
