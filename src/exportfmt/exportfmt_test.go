package exportfmt

import (
	"bytes"
	"strings"
	"testing"
)

func sampleRow() Row {
	return Row{
		Table: "Widgets",
		Fields: []NamedValue{
			{Name: "ID", Value: int32(42), Raw: []byte{0x2a, 0, 0, 0}},
			{Name: "Name", Value: "Al\x01ice", Raw: []byte("Al\x01ice")},
		},
	}
}

func TestWriteRowHex(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRow(&buf, ModeHex, sampleRow()); err != nil {
		t.Fatalf("WriteRow: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "ID: 2a000000") {
		t.Fatalf("missing hex-encoded ID field: %q", out)
	}
}

func TestWriteRowTextEscapesNonPrintable(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRow(&buf, ModeText, sampleRow()); err != nil {
		t.Fatalf("WriteRow: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `Al\x01ice`) {
		t.Fatalf("expected escaped control byte, got %q", out)
	}
}

func TestWriteRowEJSONProducesValidDocument(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRow(&buf, ModeEJSON, sampleRow()); err != nil {
		t.Fatalf("WriteRow: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"ID"`) || !strings.Contains(out, `"Name"`) {
		t.Fatalf("expected both fields in ejson output, got %q", out)
	}
}

func TestWriteRowUnknownMode(t *testing.T) {
	var buf bytes.Buffer
	err := WriteRow(&buf, Mode("bogus"), sampleRow())
	if err == nil {
		t.Fatal("expected an error for an unknown mode")
	}
}
