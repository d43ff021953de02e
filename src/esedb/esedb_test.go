package esedb

import (
	"encoding/binary"
	"errors"
	"testing"

	"esedb/src/esedberr"
	"esedb/src/testhelper"
)

const (
	catalogRecordTable        = 1
	catalogRecordColumn       = 2
	catalogRecordLongValueRef = 3
)

func encodeCatalogRow(recordType uint8, objectID, ownerObjectID, rootPageOrColID uint32, typeOrCodePage, columnFlags, codePage uint16, name string) []byte {
	buf := make([]byte, 21+len(name))
	buf[0] = recordType
	binary.LittleEndian.PutUint32(buf[1:5], objectID)
	binary.LittleEndian.PutUint32(buf[5:9], ownerObjectID)
	binary.LittleEndian.PutUint32(buf[9:13], rootPageOrColID)
	binary.LittleEndian.PutUint16(buf[13:15], typeOrCodePage)
	binary.LittleEndian.PutUint16(buf[15:17], columnFlags)
	binary.LittleEndian.PutUint16(buf[17:19], codePage)
	binary.LittleEndian.PutUint16(buf[19:21], uint16(len(name)))
	copy(buf[21:], name)
	return buf
}

// field encodes one record column as the 2-byte-length-prefixed wire format
// esedb.Record.locate expects.
func field(raw []byte) []byte {
	out := make([]byte, 2+len(raw))
	binary.LittleEndian.PutUint16(out[0:2], uint16(len(raw)))
	copy(out[2:], raw)
	return out
}

func int32Field(v int32) []byte {
	raw := make([]byte, 4)
	binary.LittleEndian.PutUint32(raw, uint32(v))
	return field(raw)
}

func textField(s string) []byte { return field([]byte(s)) }

func longValueRefField(id uint32) []byte {
	raw := make([]byte, 4)
	binary.LittleEndian.PutUint32(raw, id)
	return field(raw)
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

const asciiCodePage = 20127

// buildDatabase synthesizes a one-table database: table "Widgets" with
// columns ID (int32), Name (text), Notes (long-value text), plus a
// long-value tree holding two distinct long values.
func buildDatabase(t *testing.T) string {
	t.Helper()
	b := testhelper.NewFileBuilder(4096)

	b.AddPage(4, testhelper.FlagIsLeaf|testhelper.FlagIsRoot, []testhelper.Slot{
		testhelper.LeafSlot([]byte("a"), encodeCatalogRow(catalogRecordTable, 10, 0, 100, 0, 0, 0, "Widgets")),
		testhelper.LeafSlot([]byte("c1"), encodeCatalogRow(catalogRecordColumn, 0, 10, 1, 3 /*TypeInt32*/, 0, 0, "ID")),
		testhelper.LeafSlot([]byte("c2"), encodeCatalogRow(catalogRecordColumn, 0, 10, 2, 8 /*TypeText*/, 0, asciiCodePage, "Name")),
		testhelper.LeafSlot([]byte("c3"), encodeCatalogRow(catalogRecordColumn, 0, 10, 3, 8 /*TypeText*/, 1 /*ColumnLongValue*/, asciiCodePage, "Notes")),
		testhelper.LeafSlot([]byte("lv"), encodeCatalogRow(catalogRecordLongValueRef, 0, 10, 200, 0, 0, 0, "")),
	})

	b.AddPage(100, testhelper.FlagIsLeaf|testhelper.FlagIsRoot, []testhelper.Slot{
		testhelper.LeafSlot([]byte("rec1"), concat(int32Field(42), textField("Alice"), longValueRefField(77))),
		testhelper.LeafSlot([]byte("rec2"), concat(int32Field(7), textField("Bob"), longValueRefField(78))),
	})

	b.AddPage(200, testhelper.FlagIsLeaf|testhelper.FlagIsRoot, []testhelper.Slot{
		testhelper.LeafSlot(longValueKey(3, 77, 0), []byte("Hello ")),
		testhelper.LeafSlot(longValueKey(3, 77, 6), []byte("World")),
		testhelper.LeafSlot(longValueKey(3, 78, 0), []byte("Hi")),
	})

	return b.WriteTempFile(t)
}

func longValueKey(columnID, longValueID, segmentOffset uint32) []byte {
	key := make([]byte, 12)
	binary.BigEndian.PutUint32(key[0:4], columnID)
	binary.BigEndian.PutUint32(key[4:8], longValueID)
	binary.BigEndian.PutUint32(key[8:12], segmentOffset)
	return key
}

func openTestDatabase(t *testing.T) *Database {
	t.Helper()
	path := buildDatabase(t)
	db, err := Open(path, 8, 8, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenListsTables(t *testing.T) {
	db := openTestDatabase(t)
	tables := db.Tables()
	if len(tables) != 1 || tables[0] != "Widgets" {
		t.Fatalf("got %v, want [Widgets]", tables)
	}
}

func TestTableUnknownName(t *testing.T) {
	db := openTestDatabase(t)
	_, err := db.Table("Gadgets")
	if !errors.Is(err, esedberr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTableIterationAndColumnDecode(t *testing.T) {
	db := openTestDatabase(t)
	table, err := db.Table("Widgets")
	if err != nil {
		t.Fatalf("Table: %v", err)
	}

	rec1, err := table.Next()
	if err != nil {
		t.Fatalf("Next (rec1): %v", err)
	}
	id, err := rec1.Value("ID")
	if err != nil {
		t.Fatalf("Value(ID): %v", err)
	}
	assertEqual(t, int32(42), id.(int32), "")

	name, err := rec1.Value("Name")
	if err != nil {
		t.Fatalf("Value(Name): %v", err)
	}
	assertEqual(t, "Alice", name.(string), "")

	notes, err := rec1.Value("Notes")
	if err != nil {
		t.Fatalf("Value(Notes): %v", err)
	}
	assertEqual(t, "Hello World", notes.(string), "long value did not assemble across its two segments")

	rec2, err := table.Next()
	if err != nil {
		t.Fatalf("Next (rec2): %v", err)
	}
	notes2, err := rec2.Value("Notes")
	if err != nil {
		t.Fatalf("Value(Notes) rec2: %v", err)
	}
	assertEqual(t, "Hi", notes2.(string), "")

	_, err = table.Next()
	if !errors.Is(err, esedberr.ErrEndOfTable) {
		t.Fatalf("expected ErrEndOfTable, got %v", err)
	}
}

// buildMultiValueDatabase synthesizes a minimal database whose one column
// is flagged MULTI_VALUE, to exercise Record.Column's rejection of it.
func buildMultiValueDatabase(t *testing.T) string {
	t.Helper()
	b := testhelper.NewFileBuilder(4096)

	b.AddPage(4, testhelper.FlagIsLeaf|testhelper.FlagIsRoot, []testhelper.Slot{
		testhelper.LeafSlot([]byte("a"), encodeCatalogRow(catalogRecordTable, 20, 0, 300, 0, 0, 0, "Tagged")),
		testhelper.LeafSlot([]byte("c1"), encodeCatalogRow(catalogRecordColumn, 0, 20, 1, 3 /*TypeInt32*/, 2 /*ColumnMultiValue*/, 0, "Tags")),
	})

	b.AddPage(300, testhelper.FlagIsLeaf|testhelper.FlagIsRoot, []testhelper.Slot{
		testhelper.LeafSlot([]byte("rec1"), int32Field(1)),
	})

	return b.WriteTempFile(t)
}

func TestColumnRejectsMultiValue(t *testing.T) {
	path := buildMultiValueDatabase(t)
	db, err := Open(path, 8, 8, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	table, err := db.Table("Tagged")
	if err != nil {
		t.Fatalf("Table: %v", err)
	}
	rec, err := table.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	_, err = rec.Value("Tags")
	if !errors.Is(err, esedberr.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestColumnUnknownName(t *testing.T) {
	db := openTestDatabase(t)
	table, err := db.Table("Widgets")
	if err != nil {
		t.Fatalf("Table: %v", err)
	}
	rec, err := table.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	_, err = rec.Value("DoesNotExist")
	if !errors.Is(err, esedberr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAbortStopsIteration(t *testing.T) {
	db := openTestDatabase(t)
	table, err := db.Table("Widgets")
	if err != nil {
		t.Fatalf("Table: %v", err)
	}
	if _, err := table.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	table.Abort()
	_, err = table.Next()
	if !errors.Is(err, esedberr.ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
}

func TestProgressCallbackFiresEvery1000Records(t *testing.T) {
	db := openTestDatabase(t)
	table, err := db.Table("Widgets")
	if err != nil {
		t.Fatalf("Table: %v", err)
	}
	var calls int
	table.OnProgress(func(name string, n int) { calls++ })

	for {
		_, err := table.Next()
		if err != nil {
			break
		}
	}
	// Only two records in this fixture, well under the 1000-record cadence.
	assertEqual(t, 0, calls, "")
}

func assertEqual[T comparable](t *testing.T, expected, actual T, msg string) {
	t.Helper()
	if expected == actual {
		return
	}
	if msg != "" {
		t.Errorf("expected (%+v), got (%+v): %s", expected, actual, msg)
	} else {
		t.Errorf("expected (%+v), got (%+v)", expected, actual)
	}
}
