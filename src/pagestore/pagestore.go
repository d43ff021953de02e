// Package pagestore implements the Paged Store: it resolves file-offset
// <-> (page_number, page_offset), and fetches decoded pages
// through a bounded, clock-swept cache. The whole database file is mapped
// read-only with unix.Mmap (src/engine/database_storage_engine.go's and
// src/engine/bundle_storage_engine.go's idiom for data files), so a page
// fetch is a bounds-checked slice of the mapping rather than a seek+read
// syscall pair.
package pagestore

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"esedb/src/esedberr"
	"esedb/src/rangekey"
)

// Magic is the 4-byte signature every esedb file header begins with.
var Magic = [4]byte{'E', 'S', 'D', 'B'}

const (
	// minHeaderSize is the smallest file, in bytes, Open accepts before it
	// reads the magic and page-size fields. The reserved file-header block
	// itself ("page 0": pages are indexed from 1, and page 0 is reserved
	// header material) is one page_size-sized block; see headerBase, which
	// Open checks once the page size is known.
	//
	// DESIGN.md records the reasoning: the page-offset formula and the
	// "page 0 reserved" convention are only simultaneously satisfiable if
	// the header's base offset is added once, outside the arena-relative
	// addressing the formula describes.
	minHeaderSize = 32

	pageHeaderSize = 16 // per-page header: Flags(4) TagCount(2) Reserved(2) Checksum(4) Reserved(4)
	tagSize        = 6  // (offset uint16, size uint16, flags uint16)
)

// PageFlags is the per-page bitmask.
type PageFlags uint32

const (
	FlagIsLeaf PageFlags = 1 << iota
	FlagIsRoot
	FlagIsParentOfLeaf
	FlagIsLongValue
)

// ReadFlags controls cache participation for a single ReadPage call.
type ReadFlags uint8

const (
	// NoCache skips inserting the fetched page into the cache.
	NoCache ReadFlags = 1 << iota
	// IgnoreCache additionally skips the cache lookup, forcing a fresh
	// decode even if a (possibly stale) entry is cached.
	IgnoreCache
)

// Tag names a value's byte range within its page, plus a small flags word:
// (offset, size, flags), each a 16-bit field.
type Tag struct {
	Offset uint16
	Size   uint16
	Flags  uint16
}

// Page is the decoded form of one page_size-sized block: header fields plus
// its tag array. Value bytes are looked up lazily from Data via a Tag.
type Page struct {
	Number   uint32
	Flags    PageFlags
	Tags     []Tag
	Data     []byte // the full page_size bytes, header and tag array included
	Checksum uint32
}

// Value returns the byte range tag i names within p.
func (p *Page) Value(i int) []byte {
	t := p.Tags[i]
	return p.Data[t.Offset : t.Offset+t.Size]
}

// Store is an open esedb file: its memory mapping, page geometry, and
// bounded page cache.
type Store struct {
	file     *os.File
	data     []byte // mmap of the whole file
	pageSize int64
	logger   *zap.SugaredLogger

	cache *pageCache
}

// Open reads the file header, validates the magic and page size, and maps
// the file read-only.
func Open(path string, cacheCapacity int, logger *zap.SugaredLogger) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pagestore.Open: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pagestore.Open: stat: %w", err)
	}
	size := info.Size()
	if size < minHeaderSize {
		f.Close()
		return nil, fmt.Errorf("pagestore.Open: %w", esedberr.ErrShortRead)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pagestore.Open: mmap: %w", err)
	}

	if [4]byte(data[0:4]) != Magic {
		unix.Munmap(data)
		f.Close()
		return nil, fmt.Errorf("pagestore.Open: %w: bad magic", esedberr.ErrCorruptPointer)
	}
	pageSize := int64(binary.LittleEndian.Uint32(data[4:8]))
	if !validPageSize(pageSize) {
		unix.Munmap(data)
		f.Close()
		return nil, fmt.Errorf("pagestore.Open: %w: invalid page size %d", esedberr.ErrCorruptPointer, pageSize)
	}
	if headerBase(pageSize) > size {
		unix.Munmap(data)
		f.Close()
		return nil, fmt.Errorf("pagestore.Open: %w", esedberr.ErrShortRead)
	}

	if err := unix.Madvise(data, unix.MADV_RANDOM); err != nil && logger != nil {
		// B+-tree descent is inherently random-access; this is an
		// optimization hint only, never fatal.
		logger.Debugw("madvise MADV_RANDOM failed", "error", err)
	}

	s := &Store{
		file:     f,
		data:     data,
		pageSize: pageSize,
		logger:   logger,
		cache:    newPageCache(cacheCapacity),
	}
	return s, nil
}

func validPageSize(n int64) bool {
	for shift := uint(10); shift <= 15; shift++ {
		if n == 1<<shift {
			return true
		}
	}
	return false
}

// headerBase is the number of bytes reserved for the file header, i.e. the
// absolute file offset at which arena-relative offset 0 (page 1) begins.
// We reserve exactly one page_size block, so the header never competes
// with page data for cache-friendly alignment.
func headerBase(pageSize int64) int64 { return pageSize }

// PageSize returns the page size established at Open.
func (s *Store) PageSize() int64 { return s.pageSize }

// Close releases the memory mapping and closes the file, aggregating
// failures from both steps instead of stopping at the first.
func (s *Store) Close() error {
	var err error
	if s.data != nil {
		if e := unix.Munmap(s.data); e != nil {
			err = multierr.Append(err, fmt.Errorf("pagestore.Close: munmap: %w", e))
		}
		s.data = nil
	}
	if e := s.file.Close(); e != nil {
		err = multierr.Append(err, fmt.Errorf("pagestore.Close: %w", e))
	}
	return err
}

// ReadPage returns the decoded page_number, consulting/populating the
// cache according to flags.
func (s *Store) ReadPage(pageNumber uint32, flags ReadFlags) (*Page, error) {
	if pageNumber == 0 {
		return nil, fmt.Errorf("pagestore.ReadPage: %w: page number 0", esedberr.ErrCorruptPointer)
	}

	if flags&IgnoreCache == 0 {
		if p, ok := s.cache.get(pageNumber); ok {
			return p, nil
		}
	}

	start := headerBase(s.pageSize) + int64(pageNumber-1)*s.pageSize
	end := start + s.pageSize
	if end > int64(len(s.data)) {
		return nil, esedberr.Wrap("pagestore.ReadPage", pageNumber, -1, esedberr.ErrShortRead)
	}

	page, err := decodePage(pageNumber, s.data[start:end])
	if err != nil {
		return nil, esedberr.Wrap("pagestore.ReadPage", pageNumber, -1, err)
	}

	if flags&NoCache == 0 {
		s.cache.put(pageNumber, page)
	}
	return page, nil
}

func decodePage(number uint32, data []byte) (*Page, error) {
	flags := PageFlags(binary.LittleEndian.Uint32(data[0:4]))
	tagCount := binary.LittleEndian.Uint16(data[4:6])
	checksum := binary.LittleEndian.Uint32(data[8:12])

	if int(tagCount)*tagSize+pageHeaderSize > len(data) {
		return nil, fmt.Errorf("%w: tag array overruns page", esedberr.ErrCorruptNode)
	}

	if computed := crc32.ChecksumIEEE(data[pageHeaderSize:]); computed != checksum {
		return nil, esedberr.Wrap("pagestore.decodePage", number, -1, fmt.Errorf("%w: got %08x want %08x", esedberr.ErrBadChecksum, computed, checksum))
	}

	tags := make([]Tag, tagCount)
	for i := 0; i < int(tagCount); i++ {
		off := len(data) - (i+1)*tagSize
		tags[i] = Tag{
			Offset: binary.LittleEndian.Uint16(data[off : off+2]),
			Size:   binary.LittleEndian.Uint16(data[off+2 : off+4]),
			Flags:  binary.LittleEndian.Uint16(data[off+4 : off+6]),
		}
		if int(tags[i].Offset)+int(tags[i].Size) > len(data) {
			return nil, esedberr.Wrap("pagestore.decodePage", number, i, fmt.Errorf("%w: exceeds page bounds", esedberr.ErrCorruptNode))
		}
	}

	return &Page{Number: number, Flags: flags, Tags: tags, Data: data, Checksum: checksum}, nil
}

// ChildRange builds a node-range R pointing at childPageNumber, the shape
// the Node Reader emits for a branch slot.
func ChildRange(childPageNumber uint32, pageSize int64, slotIndex int, key []byte) rangekey.R {
	return rangekey.R{
		FileIndex: int32(slotIndex),
		Offset:    int64(childPageNumber-1) * pageSize,
		Size:      pageSize,
		Flags:     rangekey.IsChild,
		Key:       key,
	}
}

// Stats exposes the page cache's hit/miss/eviction counters.
func (s *Store) Stats() (hits, misses, evicted uint64) { return s.cache.stats() }
