// Package normalize turns uploaded bank statements (CSV or XLSX) into
// the canonical transaction records consumed by the classification
// engine. Parsing is lenient: unknown columns are ignored and rows
// missing every recognized field are dropped, but a file whose format
// cannot be read at all is an error.
package normalize

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Shauryaditya/aml-case-processor/internal/domain"
)

// ErrUnsupportedFormat reports a file extension the normalizer cannot read.
type ErrUnsupportedFormat struct {
	Ext string
}

func (e *ErrUnsupportedFormat) Error() string {
	return fmt.Sprintf("unsupported statement format %q", e.Ext)
}

// Extract parses a statement file by extension and returns its
// transactions in row order.
func Extract(fileName string, data []byte) ([]domain.Transaction, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return FromCSV(bytes.NewReader(data))
	case ".xlsx", ".xls":
		return FromXLSX(bytes.NewReader(data))
	default:
		return nil, &ErrUnsupportedFormat{Ext: filepath.Ext(fileName)}
	}
}

// Header variants accepted for each canonical field. Matching is
// case-insensitive on the trimmed header cell.
var headerAliases = map[string]string{
	"date":        "Date",
	"amount":      "amount",
	"type":        "Type",
	"channel":     "Type",
	"details":     "Details",
	"description": "Details",
	"direction":   "direction",
}

// FromCSV reads a comma-separated statement with a header row.
func FromCSV(r io.Reader) ([]domain.Transaction, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return fromRows(records[0], records[1:]), nil
}

// FromXLSX reads the first sheet of a workbook with a header row.
func FromXLSX(r io.Reader) ([]domain.Transaction, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return fromRows(rows[0], rows[1:]), nil
}

// fromRows maps header cells to canonical fields and builds one
// transaction per data row. Rows with no recognized non-empty cell are
// skipped.
func fromRows(header []string, rows [][]string) []domain.Transaction {
	cols := make(map[int]string, len(header))
	for i, cell := range header {
		cell = strings.TrimSpace(cell)
		// A UTF-8 BOM on the first header cell survives csv parsing.
		cell = strings.TrimPrefix(cell, "\ufeff")
		if field, ok := headerAliases[strings.ToLower(cell)]; ok {
			cols[i] = field
		}
	}

	var txs []domain.Transaction
	for _, row := range rows {
		var tx domain.Transaction
		filled := false
		for i, cell := range row {
			field, ok := cols[i]
			if !ok {
				continue
			}
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			filled = true
			switch field {
			case "Date":
				tx.Date = cell
			case "amount":
				tx.Amount = cell
			case "Type":
				tx.Type = cell
			case "Details":
				tx.Details = cell
			case "direction":
				tx.Direction = cell
			}
		}
		if filled {
			txs = append(txs, tx)
		}
	}
	return txs
}
