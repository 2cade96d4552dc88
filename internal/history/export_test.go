package history

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
)

func TestExportCSV(t *testing.T) {
	records := []Record{
		{
			FileName:         "holiday.mp4",
			OriginalSize:     100 * 1024 * 1024,
			CompressedSize:   40 * 1024 * 1024,
			CompressionRatio: 0.6,
			Preset:           "balanced",
			Date:             "2026-08-30",
			Time:             "10:30:00",
			Status:           "completed",
		},
		{FileName: "skipped.mp4", Status: "error"},
	}

	out, err := ExportCSV(records)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	rows, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header plus 1 completed row, got %d rows", len(rows))
	}

	header := strings.Join(rows[0], ",")
	want := "File Name,Original Size (MB),Compressed Size (MB),Compression Ratio (%),Preset,Date,Time,Status"
	if header != want {
		t.Errorf("unexpected header: %s", header)
	}

	row := rows[1]
	if row[0] != "holiday.mp4" {
		t.Errorf("unexpected file name: %s", row[0])
	}
	if row[1] != "100.00" || row[2] != "40.00" {
		t.Errorf("expected MB with two decimals, got %s / %s", row[1], row[2])
	}
	if row[3] != "60.00" {
		t.Errorf("expected ratio 60.00, got %s", row[3])
	}
}

func TestExportCSV_Empty(t *testing.T) {
	out, err := ExportCSV(nil)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	rows, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("expected header only, got %d rows", len(rows))
	}
}

func TestExportXLSX(t *testing.T) {
	records := []Record{
		{FileName: "clip.mp4", Status: "completed", Preset: "fast"},
	}

	out, err := ExportXLSX(records)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(out) == 0 {
		t.Error("expected workbook bytes")
	}
	// XLSX containers are zip archives.
	if !bytes.HasPrefix(out, []byte("PK")) {
		t.Error("expected zip container signature")
	}
}
