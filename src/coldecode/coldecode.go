// Package coldecode decodes a raw (bytes, codepage, type) column value
// triple into a native Go value. The Record Iterator core only yields raw
// column bytes with a codepage hint; this package is the decoder that
// turns those bytes into native values, grounded on original_source's
// libfguid (GUID layout) and libuna (codepage-aware text) headers.
package coldecode

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
	"unicode/utf16"

	"esedb/src/catalog"
	"esedb/src/esedberr"
)

// GUID is a 16-byte globally unique identifier in the mixed-endian layout
// original_source/libfguid/libfguid_support.h documents: Data1 as a
// little-endian uint32, Data2/Data3 as little-endian uint16s, and Data4 as
// 8 raw bytes.
type GUID [16]byte

func (g GUID) String() string {
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
		binary.LittleEndian.Uint32(g[0:4]),
		binary.LittleEndian.Uint16(g[4:6]),
		binary.LittleEndian.Uint16(g[6:8]),
		binary.BigEndian.Uint16(g[8:10]),
		g[10:16])
}

// Decode turns raw bytes tagged with typ/codePage into a native Go value:
// bool, an integer, a float, time.Time, string, GUID, or []byte for an
// opaque binary column.
func Decode(typ catalog.ColumnType, codePage uint16, raw []byte) (any, error) {
	switch typ {
	case catalog.TypeBoolean:
		if len(raw) != 1 {
			return nil, fmt.Errorf("coldecode.Decode: %w: bool column needs 1 byte, got %d", esedberr.ErrCorruptPointer, len(raw))
		}
		return raw[0] != 0, nil

	case catalog.TypeInt8:
		if len(raw) != 1 {
			return nil, shortErr("int8", 1, len(raw))
		}
		return int8(raw[0]), nil

	case catalog.TypeInt16:
		if len(raw) != 2 {
			return nil, shortErr("int16", 2, len(raw))
		}
		return int16(binary.LittleEndian.Uint16(raw)), nil

	case catalog.TypeInt32:
		if len(raw) != 4 {
			return nil, shortErr("int32", 4, len(raw))
		}
		return int32(binary.LittleEndian.Uint32(raw)), nil

	case catalog.TypeInt64:
		if len(raw) != 8 {
			return nil, shortErr("int64", 8, len(raw))
		}
		return int64(binary.LittleEndian.Uint64(raw)), nil

	case catalog.TypeFloat32:
		if len(raw) != 4 {
			return nil, shortErr("float32", 4, len(raw))
		}
		return math.Float32frombits(binary.LittleEndian.Uint32(raw)), nil

	case catalog.TypeFloat64:
		if len(raw) != 8 {
			return nil, shortErr("float64", 8, len(raw))
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(raw)), nil

	case catalog.TypeDateTime:
		if len(raw) != 8 {
			return nil, shortErr("datetime", 8, len(raw))
		}
		// OLE Automation date: a float64 day count from 1899-12-30.
		days := math.Float64frombits(binary.LittleEndian.Uint64(raw))
		epoch := time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)
		return epoch.Add(time.Duration(days * float64(24*time.Hour))), nil

	case catalog.TypeGUID:
		if len(raw) != 16 {
			return nil, shortErr("guid", 16, len(raw))
		}
		var g GUID
		copy(g[:], raw)
		return g, nil

	case catalog.TypeText:
		return decodeText(codePage, raw)

	case catalog.TypeBinary:
		out := make([]byte, len(raw))
		copy(out, raw)
		return out, nil

	default:
		return nil, fmt.Errorf("coldecode.Decode: %w: unknown column type %d", esedberr.ErrUnsupported, typ)
	}
}

// codepage ids recognized by decodeText. Real ESE carries the full Windows
// codepage table (original_source/libuna/libuna_codepage_windows_1258.c is
// one of dozens); only the two the standard library already supports
// without a third-party table are implemented (see DESIGN.md).
const (
	CodePageASCII   uint16 = 20127
	CodePageUnicode uint16 = 1200 // UTF-16LE, ESE's "Unicode" codepage id
	CodePageUnspec  uint16 = 0
)

func decodeText(codePage uint16, raw []byte) (string, error) {
	switch codePage {
	case CodePageASCII, CodePageUnspec:
		return string(raw), nil
	case CodePageUnicode:
		if len(raw)%2 != 0 {
			return "", fmt.Errorf("coldecode.decodeText: %w: odd-length UTF-16LE column", esedberr.ErrCorruptPointer)
		}
		units := make([]uint16, len(raw)/2)
		for i := range units {
			units[i] = binary.LittleEndian.Uint16(raw[2*i : 2*i+2])
		}
		return string(utf16.Decode(units)), nil
	default:
		return "", fmt.Errorf("coldecode.decodeText: %w: codepage %d", esedberr.ErrUnsupported, codePage)
	}
}

func shortErr(kind string, want, got int) error {
	return fmt.Errorf("coldecode.Decode: %w: %s column needs %d bytes, got %d", esedberr.ErrCorruptPointer, kind, want, got)
}
