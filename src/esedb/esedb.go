// Package esedb is the public facade: Database/Table/Record wire together
// the Paged Store, Node Reader, depth-first walker, catalog loader, and
// Long-Value Assembler into the record-iteration API a caller actually
// uses.
package esedb

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"esedb/src/btreenode"
	"esedb/src/btreewalk"
	"esedb/src/catalog"
	"esedb/src/coldecode"
	"esedb/src/datadef"
	"esedb/src/esedberr"
	"esedb/src/longvalue"
	"esedb/src/pagestore"
	"esedb/src/rangekey"
)

// ProgressFunc is called periodically during a table scan, e.g. to drive a
// CLI progress indicator. n is the number of records delivered so far.
type ProgressFunc func(table string, n int)

// Database is one open esedb file.
type Database struct {
	store     *pagestore.Store
	nodeCache *btreenode.Cache
	tables    map[string]*catalog.TableDef
	logger    *zap.SugaredLogger
	sessionID string
}

// Open reads the file header, loads the catalog, and returns a ready
// Database. cachePages/cacheNodes size the page and node caches; 0
// disables the corresponding cache.
func Open(path string, cachePages, cacheNodes int, logger *zap.SugaredLogger) (*Database, error) {
	sessionID := uuid.NewString()
	if logger != nil {
		logger = logger.With("session", sessionID)
	}

	store, err := pagestore.Open(path, cachePages, logger)
	if err != nil {
		return nil, fmt.Errorf("esedb.Open: %w", err)
	}

	tables, err := catalog.Load(store)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("esedb.Open: %w", err)
	}

	if logger != nil {
		logger.Infow("opened database", "path", path, "tables", len(tables))
	}

	return &Database{
		store:     store,
		nodeCache: btreenode.NewCache(store, cacheNodes),
		tables:    tables,
		logger:    logger,
		sessionID: sessionID,
	}, nil
}

// Close releases the page store's memory mapping and file handle.
func (d *Database) Close() error {
	if err := d.store.Close(); err != nil {
		return fmt.Errorf("esedb.Database.Close: %w", err)
	}
	return nil
}

// Tables lists every table name the catalog names.
func (d *Database) Tables() []string {
	names := make([]string, 0, len(d.tables))
	for name := range d.tables {
		names = append(names, name)
	}
	return names
}

// Table opens a scan over the named table.
func (d *Database) Table(name string) (*Table, error) {
	def, ok := d.tables[name]
	if !ok {
		return nil, fmt.Errorf("esedb.Database.Table(%q): %w", name, esedberr.ErrNotFound)
	}

	pageSize := d.store.PageSize()
	root := pagestore.ChildRange(def.RootPageNumber, pageSize, -1, nil)

	readNode := func(r rangekey.R) (*btreenode.Node, error) {
		return d.nodeCache.Read(r)
	}
	mapLeaf := func(leaf rangekey.R) (datadef.D, error) {
		return datadef.Derive(leaf, pageSize)
	}

	abort := &atomic.Bool{}
	walker := btreewalk.New[datadef.D](root, readNode, mapLeaf, abort, 6)

	var assembler *longvalue.Assembler
	if def.LongValueRootPageNumber != 0 {
		assembler = longvalue.NewAssembler(d.store, def.LongValueRootPageNumber, 6)
	}

	return &Table{
		db:        d,
		def:       def,
		walker:    walker,
		abort:     abort,
		assembler: assembler,
	}, nil
}

// Table is an open scan over one table's records.
type Table struct {
	db        *Database
	def       *catalog.TableDef
	walker    *btreewalk.Engine[datadef.D]
	abort     *atomic.Bool
	assembler *longvalue.Assembler

	progress ProgressFunc
	count    int
	terminal error
}

// Name returns the table's name.
func (t *Table) Name() string { return t.def.Name }

// Columns returns the table's column metadata in catalog order.
func (t *Table) Columns() []catalog.ColumnDef { return t.def.Columns }

// OnProgress installs a callback invoked every 1000 records delivered.
func (t *Table) OnProgress(fn ProgressFunc) { t.progress = fn }

// Abort cancels the scan. The next (and every subsequent) call to Next
// returns esedberr.ErrAborted; records already buffered are discarded.
func (t *Table) Abort() { t.abort.Store(true) }

// Next returns the next record, or esedberr.ErrEndOfTable once the scan is
// complete. Once Next returns any error, every subsequent call returns
// that same error.
func (t *Table) Next() (*Record, error) {
	if t.terminal != nil {
		return nil, t.terminal
	}
	d, err := t.walker.Next()
	if err != nil {
		return nil, err
	}

	page, err := t.db.store.ReadPage(d.PageNumber, 0)
	if err != nil {
		t.terminal = fmt.Errorf("esedb.Table.Next: %w", err)
		return nil, t.terminal
	}
	raw := page.Data[d.DataOffset : d.DataOffset+d.DataSize]

	t.count++
	if t.progress != nil && t.count%1000 == 0 {
		t.progress(t.def.Name, t.count)
	}
	if t.db.logger != nil {
		t.db.logger.Debugw("delivered record", "table", t.def.Name, "page", d.PageNumber, "slot", d.PageValueIndex)
	}

	return &Record{table: t, d: d, raw: raw}, nil
}

// Record is one decoded row: raw bytes sliced out of its owning page, plus
// the column layout needed to split and decode them on demand.
type Record struct {
	table *Table
	d     datadef.D
	raw   []byte
}

// ColumnValue is one column's undecoded bytes plus the hints coldecode
// needs to turn them into a native value.
type ColumnValue struct {
	Bytes    []byte
	CodePage uint16
	Type     catalog.ColumnType
}

// Column returns columnName's raw bytes and type/codepage hints, resolving
// a long-value reference through the table's Long-Value Assembler when the
// column is flagged LONG_VALUE. A column flagged MULTI_VALUE fails with
// esedberr.ErrUnsupported; multi-valued columns are not decoded.
func (r *Record) Column(columnName string) (ColumnValue, error) {
	col, offset, length, err := r.locate(columnName)
	if err != nil {
		return ColumnValue{}, err
	}
	payload := r.raw[offset : offset+length]

	if col.Flags&catalog.ColumnMultiValue != 0 {
		return ColumnValue{}, fmt.Errorf("esedb.Record.Column(%q): %w: multi-valued columns are not supported", columnName, esedberr.ErrUnsupported)
	}

	if col.Flags&catalog.ColumnLongValue != 0 {
		if len(payload) != 4 {
			return ColumnValue{}, fmt.Errorf("esedb.Record.Column(%q): %w: long-value ref must be 4 bytes", columnName, esedberr.ErrCorruptNode)
		}
		if r.table.assembler == nil {
			return ColumnValue{}, fmt.Errorf("esedb.Record.Column(%q): %w: table has no long-value tree", columnName, esedberr.ErrCorruptPointer)
		}
		longValueID := leU32(payload)
		data, err := r.table.assembler.Get(col.ColumnID, longValueID, r.table.abort)
		if err != nil {
			return ColumnValue{}, fmt.Errorf("esedb.Record.Column(%q): %w", columnName, err)
		}
		return ColumnValue{Bytes: data, CodePage: col.CodePage, Type: col.Type}, nil
	}

	return ColumnValue{Bytes: payload, CodePage: col.CodePage, Type: col.Type}, nil
}

// Value decodes columnName's value into a native Go value via coldecode.
func (r *Record) Value(columnName string) (any, error) {
	cv, err := r.Column(columnName)
	if err != nil {
		return nil, err
	}
	return coldecode.Decode(cv.Type, cv.CodePage, cv.Bytes)
}

// locate splits r.raw into its per-column length-prefixed fields (fixed
// catalog column order) and returns columnName's definition, byte offset,
// and length within r.raw.
func (r *Record) locate(columnName string) (catalog.ColumnDef, int, int, error) {
	offset := 0
	for _, col := range r.table.def.Columns {
		if offset+2 > len(r.raw) {
			return catalog.ColumnDef{}, 0, 0, fmt.Errorf("esedb.Record: %w: record shorter than its column layout", esedberr.ErrCorruptNode)
		}
		length := int(leU16(r.raw[offset : offset+2]))
		offset += 2
		if offset+length > len(r.raw) {
			return catalog.ColumnDef{}, 0, 0, fmt.Errorf("esedb.Record: %w: column %q length exceeds record", esedberr.ErrCorruptNode, col.Name)
		}
		if col.Name == columnName {
			return col, offset, length, nil
		}
		offset += length
	}
	return catalog.ColumnDef{}, 0, 0, fmt.Errorf("esedb.Record.locate(%q): %w", columnName, esedberr.ErrNotFound)
}

func leU16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func leU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
