// Package catalog bootstraps table and column descriptors from the special
// catalog table, whose root page is fixed at page 4. Loading it uses
// exactly the same depth-first walker the Record Iterator uses for
// ordinary tables — only the row encoding and the fixed root page differ.
package catalog

import (
	"encoding/binary"
	"fmt"

	"esedb/src/btreenode"
	"esedb/src/btreewalk"
	"esedb/src/datadef"
	"esedb/src/esedberr"
	"esedb/src/pagestore"
	"esedb/src/rangekey"
)

// RootPageNumber is the fixed root of the catalog table's B+-tree.
const RootPageNumber = 4

// ColumnType is the decoded column value's wire shape, the minimal tag set
// the column decoder (src/coldecode) needs.
type ColumnType uint8

const (
	TypeBoolean ColumnType = iota
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeFloat32
	TypeFloat64
	TypeDateTime
	TypeText
	TypeBinary
	TypeGUID
)

// ColumnFlags mirror the bits in rangekey.Flags relevant to a column value:
// LONG_VALUE and MULTI_VALUE.
type ColumnFlags uint16

const (
	ColumnLongValue ColumnFlags = 1 << iota
	ColumnMultiValue
)

// ColumnDef is one column's metadata, as decoded from a catalog column row.
type ColumnDef struct {
	Name     string
	ColumnID uint32
	Type     ColumnType
	CodePage uint16
	Flags    ColumnFlags
}

// TableDef is one table's metadata: its name, object id, data B+-tree root,
// optional long-value tree root, and column list in catalog order.
type TableDef struct {
	Name                    string
	ObjectID                uint32
	RootPageNumber          uint32
	LongValueRootPageNumber uint32 // 0 if the table has no long-value tree
	Columns                 []ColumnDef
}

const (
	recordTypeTable        = 1
	recordTypeColumn       = 2
	recordTypeLongValueRef = 3
)

// row is the fixed, self-describing encoding a catalog leaf record's bytes
// follow. The real ESE catalog (MSysObjects/MSysColumns) has a far richer
// schema; this is the simplified format this module defines for its own
// synthesized file layout (see DESIGN.md).
type row struct {
	recordType      uint8
	objectID        uint32
	ownerObjectID   uint32
	rootPageOrColID uint32
	typeOrCodePage  uint16
	columnFlags     uint16
	codePage        uint16
	name            string
}

func decodeRow(data []byte) (row, error) {
	if len(data) < 21 {
		return row{}, fmt.Errorf("%w: catalog row too short", esedberr.ErrCorruptNode)
	}
	nameLen := int(binary.LittleEndian.Uint16(data[19:21]))
	if 21+nameLen > len(data) {
		return row{}, fmt.Errorf("%w: catalog row name length exceeds record", esedberr.ErrCorruptNode)
	}
	return row{
		recordType:      data[0],
		objectID:        binary.LittleEndian.Uint32(data[1:5]),
		ownerObjectID:   binary.LittleEndian.Uint32(data[5:9]),
		rootPageOrColID: binary.LittleEndian.Uint32(data[9:13]),
		typeOrCodePage:  binary.LittleEndian.Uint16(data[13:15]),
		columnFlags:     binary.LittleEndian.Uint16(data[15:17]),
		codePage:        binary.LittleEndian.Uint16(data[17:19]),
		name:            string(data[21 : 21+nameLen]),
	}, nil
}

// Load walks the catalog table once and assembles every TableDef it names.
func Load(store *pagestore.Store) (map[string]*TableDef, error) {
	pageSize := store.PageSize()
	root := pagestore.ChildRange(RootPageNumber, pageSize, -1, nil)

	readNode := func(r rangekey.R) (*btreenode.Node, error) {
		return btreenode.Read(store, r, pagestore.NoCache|pagestore.IgnoreCache)
	}
	mapLeaf := func(leaf rangekey.R) (datadef.D, error) {
		return datadef.Derive(leaf, pageSize)
	}

	walker := btreewalk.New[datadef.D](root, readNode, mapLeaf, nil, 6)

	tables := make(map[uint32]*TableDef)
	var longValueRoots []row

	for {
		d, err := walker.Next()
		if err != nil {
			if err == esedberr.ErrEndOfTable {
				break
			}
			return nil, fmt.Errorf("catalog.Load: %w", err)
		}

		page, err := store.ReadPage(d.PageNumber, 0)
		if err != nil {
			return nil, fmt.Errorf("catalog.Load: %w", err)
		}
		data := page.Data[d.DataOffset : d.DataOffset+d.DataSize]

		r, err := decodeRow(data)
		if err != nil {
			return nil, esedberr.Wrap("catalog.Load", d.PageNumber, int(d.PageValueIndex), err)
		}

		switch r.recordType {
		case recordTypeTable:
			tables[r.objectID] = &TableDef{
				Name:           r.name,
				ObjectID:       r.objectID,
				RootPageNumber: r.rootPageOrColID,
			}
		case recordTypeColumn:
			t, ok := tables[r.ownerObjectID]
			if !ok {
				return nil, fmt.Errorf("catalog.Load: %w: column %q references unknown table %d", esedberr.ErrCorruptPointer, r.name, r.ownerObjectID)
			}
			t.Columns = append(t.Columns, ColumnDef{
				Name:     r.name,
				ColumnID: r.rootPageOrColID,
				Type:     ColumnType(r.typeOrCodePage),
				CodePage: r.codePage,
				Flags:    ColumnFlags(r.columnFlags),
			})
		case recordTypeLongValueRef:
			longValueRoots = append(longValueRoots, r)
		default:
			return nil, fmt.Errorf("catalog.Load: %w: unknown catalog record type %d", esedberr.ErrCorruptNode, r.recordType)
		}
	}

	for _, r := range longValueRoots {
		t, ok := tables[r.ownerObjectID]
		if !ok {
			return nil, fmt.Errorf("catalog.Load: %w: long-value root references unknown table %d", esedberr.ErrCorruptPointer, r.ownerObjectID)
		}
		t.LongValueRootPageNumber = r.rootPageOrColID
	}

	byName := make(map[string]*TableDef, len(tables))
	for _, t := range tables {
		byName[t.Name] = t
	}
	return byName, nil
}
