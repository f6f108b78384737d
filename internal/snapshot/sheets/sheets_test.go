package sheets

import (
	"context"
	"testing"
)

func TestNewRequiresSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil {
		t.Fatal("expected error without spreadsheet ID")
	}
}

func TestToStringRows(t *testing.T) {
	values := [][]interface{}{
		{"country", "year"},
		{"Portugal ", 2021},
		{"Brazil", "2020"},
	}
	rows := toStringRows(values)
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if rows[1][0] != "Portugal" {
		t.Errorf("cell not trimmed: %q", rows[1][0])
	}
	if rows[1][1] != "2021" {
		t.Errorf("numeric cell = %q, want 2021", rows[1][1])
	}
}
