package history

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/xuri/excelize/v2"
)

var csvHeader = []string{
	"File Name",
	"Original Size (MB)",
	"Compressed Size (MB)",
	"Compression Ratio (%)",
	"Preset",
	"Date",
	"Time",
	"Status",
}

func toMB(bytes int64) string {
	return fmt.Sprintf("%.2f", float64(bytes)/(1024*1024))
}

// ExportCSV renders one row per completed record with sizes in MB.
func ExportCSV(records []Record) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}

	for _, r := range records {
		if r.Status != "completed" {
			continue
		}
		row := []string{
			r.FileName,
			toMB(r.OriginalSize),
			toMB(r.CompressedSize),
			fmt.Sprintf("%.2f", r.CompressionRatio*100),
			r.Preset,
			r.Date,
			r.Time,
			r.Status,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}

// ExportXLSX renders the same table as a spreadsheet workbook.
func ExportXLSX(records []Record) ([]byte, error) {
	f := excelize.NewFile()
	const sheet = "History"

	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	for i, h := range csvHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, r := range records {
		if r.Status != "completed" {
			continue
		}

		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, r.FileName)
		write(2, toMB(r.OriginalSize))
		write(3, toMB(r.CompressedSize))
		write(4, fmt.Sprintf("%.2f", r.CompressionRatio*100))
		write(5, r.Preset)
		write(6, r.Date)
		write(7, r.Time)
		write(8, r.Status)
		row++
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
