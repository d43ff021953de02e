// Package testhelper synthesizes esedb file images for the test suites in
// src/pagestore, src/btreenode, src/esedb, src/longvalue and src/catalog.
// The production core only ever reads a database, never writes one; this
// builder exists so tests can construct known-shape B+-trees without a
// real ESE file on disk, the same role SimonWaldherr-tinySQL/internal/testhelper
// plays for its own suites.
package testhelper

import (
	"encoding/binary"
	"hash/crc32"
	"os"
	"path/filepath"
	"testing"
)

const (
	pageHeaderSize = 16
	tagSize        = 6
)

// Page flag bits, mirroring src/pagestore's PageFlags without importing it
// (keeps this helper a leaf package usable from every package's tests,
// including src/pagestore's own).
const (
	FlagIsLeaf         uint32 = 1 << 0
	FlagIsRoot         uint32 = 1 << 1
	FlagIsParentOfLeaf uint32 = 1 << 2
	FlagIsLongValue    uint32 = 1 << 3
)

// Slot is one tag/value pair pending assembly into a page.
type Slot struct {
	Key     []byte
	Trailer []byte // child page number (branch) or record/segment bytes (leaf)
}

// LeafSlot builds the slot format src/btreenode expects for a data- or
// long-value-tree leaf: a length-prefixed key followed by raw payload.
func LeafSlot(key, payload []byte) Slot { return Slot{Key: key, Trailer: payload} }

// BranchSlot builds the slot format for a branch page: a length-prefixed
// key followed by the 4-byte little-endian child page number.
func BranchSlot(key []byte, childPageNumber uint32) Slot {
	trailer := make([]byte, 4)
	binary.LittleEndian.PutUint32(trailer, childPageNumber)
	return Slot{Key: key, Trailer: trailer}
}

// FileBuilder assembles a complete esedb file image page by page.
type FileBuilder struct {
	pageSize int64
	pages    map[uint32][]byte
	maxPage  uint32
}

// NewFileBuilder starts a builder for the given page size (must be a valid
// esedb page size: 2^n, 10<=n<=15).
func NewFileBuilder(pageSize int64) *FileBuilder {
	return &FileBuilder{pageSize: pageSize, pages: make(map[uint32][]byte)}
}

// AddPage encodes pageNumber with the given flags and slots and stores it.
func (b *FileBuilder) AddPage(pageNumber uint32, flags uint32, slots []Slot) {
	data := make([]byte, b.pageSize)
	binary.LittleEndian.PutUint32(data[0:4], flags)
	binary.LittleEndian.PutUint16(data[4:6], uint16(len(slots)))

	cursor := pageHeaderSize
	for i, slot := range slots {
		value := make([]byte, 0, 2+len(slot.Key)+len(slot.Trailer))
		keyLen := make([]byte, 2)
		binary.LittleEndian.PutUint16(keyLen, uint16(len(slot.Key)))
		value = append(value, keyLen...)
		value = append(value, slot.Key...)
		value = append(value, slot.Trailer...)

		copy(data[cursor:], value)

		tagOff := len(data) - (i+1)*tagSize
		binary.LittleEndian.PutUint16(data[tagOff:tagOff+2], uint16(cursor))
		binary.LittleEndian.PutUint16(data[tagOff+2:tagOff+4], uint16(len(value)))
		binary.LittleEndian.PutUint16(data[tagOff+4:tagOff+6], 0)

		cursor += len(value)
	}

	checksum := crc32.ChecksumIEEE(data[pageHeaderSize:])
	binary.LittleEndian.PutUint32(data[8:12], checksum)

	b.pages[pageNumber] = data
	if pageNumber > b.maxPage {
		b.maxPage = pageNumber
	}
}

// Bytes assembles the full file image: a one-page header block followed by
// every page up to the highest one added, gaps zero-filled.
func (b *FileBuilder) Bytes() []byte {
	header := make([]byte, b.pageSize)
	copy(header[0:4], []byte{'E', 'S', 'D', 'B'})
	binary.LittleEndian.PutUint32(header[4:8], uint32(b.pageSize))

	out := make([]byte, 0, int64(b.maxPage+1)*b.pageSize)
	out = append(out, header...)
	for n := uint32(1); n <= b.maxPage; n++ {
		p, ok := b.pages[n]
		if !ok {
			p = make([]byte, b.pageSize)
		}
		out = append(out, p...)
	}
	return out
}

// WriteTempFile writes the assembled image to a temp file and returns its
// path; the file is removed automatically at test cleanup.
func (b *FileBuilder) WriteTempFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "testdb.edb")
	if err := os.WriteFile(path, b.Bytes(), 0o644); err != nil {
		t.Fatalf("testhelper: write temp file: %v", err)
	}
	return path
}
