// Package exportfmt renders a decoded record as text, in one of the three
// output modes esedbexport supports: hex (raw bytes), escaped-text
// (printable with non-printables backslash-escaped, the esedbtools
// convention), or ejson (MongoDB Extended JSON via
// go.mongodb.org/mongo-driver/bson, additive to the two above because
// ExtJSON's typed wrappers round-trip GUID/date/int64 values the plain
// JSON the other two modes can't express losslessly).
package exportfmt

import (
	"encoding/hex"
	"fmt"
	"io"
	"unicode"

	"go.mongodb.org/mongo-driver/bson"
)

// Mode selects how WriteRow renders a record.
type Mode string

const (
	ModeHex    Mode = "hex"
	ModeText   Mode = "text"
	ModeEJSON  Mode = "ejson"
	ModeTables Mode = "tables"
)

// Row is the per-record input WriteRow needs: an ordered list of decoded
// (name, value) pairs.
type Row struct {
	Table  string
	Fields []NamedValue
}

// NamedValue is one column's name and already-decoded native value (the
// output of coldecode.Decode).
type NamedValue struct {
	Name  string
	Value any
	Raw   []byte // original bytes, used by hex/text modes
}

// WriteRow renders one row in the given mode.
func WriteRow(w io.Writer, mode Mode, row Row) error {
	switch mode {
	case ModeHex:
		return writeHex(w, row)
	case ModeText:
		return writeText(w, row)
	case ModeEJSON:
		return writeEJSON(w, row)
	default:
		return fmt.Errorf("exportfmt.WriteRow: unknown mode %q", mode)
	}
}

func writeHex(w io.Writer, row Row) error {
	for _, f := range row.Fields {
		if _, err := fmt.Fprintf(w, "%s: %s\n", f.Name, hex.EncodeToString(f.Raw)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}

func writeText(w io.Writer, row Row) error {
	for _, f := range row.Fields {
		if _, err := fmt.Fprintf(w, "%s: %s\n", f.Name, escapeText(f.Raw)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}

// escapeText renders raw bytes as a string, backslash-escaping any byte
// that doesn't decode to a printable rune, the convention
// esedbtools/export.c's text mode uses so binary columns stay one line.
func escapeText(raw []byte) string {
	out := make([]byte, 0, len(raw))
	for _, b := range raw {
		if unicode.IsPrint(rune(b)) && b < utf8RuneSelf {
			out = append(out, b)
			continue
		}
		out = append(out, []byte(fmt.Sprintf("\\x%02x", b))...)
	}
	return string(out)
}

const utf8RuneSelf = 0x80

func writeEJSON(w io.Writer, row Row) error {
	doc := bson.M{}
	for _, f := range row.Fields {
		doc[f.Name] = f.Value
	}
	data, err := bson.MarshalExtJSON(doc, true, false)
	if err != nil {
		return fmt.Errorf("exportfmt.writeEJSON: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
