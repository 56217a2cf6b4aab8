// Package source reads the list of URLs to download from a spreadsheet.
package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"ytbatch/internal/entity"
	"ytbatch/internal/errs"
	"ytbatch/pkg/gen"

	"github.com/xuri/excelize/v2"
)

const utf8BOM = "\ufeff"

// Request describes where the URLs live.
type Request struct {
	Path   string
	Sheet  entity.Sheet
	Column string
	// Limit keeps only the first Limit valid rows. Zero means no limit.
	Limit int
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (r Request) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("path", r.Path),
		slog.String("sheet", r.Sheet.String()),
		slog.String("column", r.Column),
		slog.Int("limit", r.Limit),
	)
}

// cell is a raw spreadsheet value plus whether the reader typed it as text.
type cell struct {
	value string
	text  bool
}

// table is a header row plus data rows in original order.
type table struct {
	header []string
	rows   [][]cell
}

// Reader extracts work items from xlsx and csv files.
type Reader struct {
	log *slog.Logger
}

// New creates a new Reader.
func New(log *slog.Logger) *Reader {
	return &Reader{log: log.With(slog.String("package", "source"))}
}

// ReadURLs returns one WorkItem per row whose URL cell is non-empty text.
// Row numbers are 1-based data row positions, header excluded, and are kept
// even when earlier rows are skipped.
func (r *Reader) ReadURLs(ctx context.Context, req Request) ([]entity.WorkItem, error) {
	tbl, err := load(req.Path, req.Sheet)
	if err != nil {
		return nil, err
	}

	col := columnIndex(tbl.header, req.Column)
	if col < 0 {
		return nil, fmt.Errorf("%w: %w: %q is not in %s, available columns: %s",
			errs.ErrSource, errs.ErrColumnNotFound, req.Column, req.Path, strings.Join(tbl.header, ", "))
	}

	var items []entity.WorkItem

	for i, row := range tbl.rows {
		rowNo := i + 1

		var c cell
		if col < len(row) {
			c = row[col]
		}

		url := strings.TrimSpace(c.value)
		if !c.text || url == "" {
			r.log.WarnContext(ctx, "row has no valid YouTube URL, skipping",
				slog.Int("row", rowNo), slog.String("value", c.value))

			continue
		}

		items = append(items, entity.WorkItem{
			ID:  gen.ItemID(url, rowNo),
			Row: rowNo,
			URL: url,
		})

		if req.Limit > 0 && len(items) == req.Limit {
			break
		}
	}

	r.log.InfoContext(ctx, "urls loaded", slog.Any("request", req), slog.Int("count", len(items)))

	return items, nil
}

func load(path string, sheet entity.Sheet) (*table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return loadXLSX(path, sheet)
	case ".csv":
		return loadCSV(path, sheet)
	default:
		return nil, fmt.Errorf("%w: %w: %q", errs.ErrSource, errs.ErrUnsupportedInput, path)
	}
}

func loadXLSX(path string, sheet entity.Sheet) (*table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %q: %w", errs.ErrSource, path, err)
	}
	defer f.Close()

	name, err := sheetName(f.GetSheetList(), sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", errs.ErrSource, path, err)
	}

	rows, err := f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %w", errs.ErrSource, name, err)
	}

	tbl := &table{}
	if len(rows) == 0 {
		return tbl, nil
	}

	tbl.header = rows[0]

	for r, values := range rows[1:] {
		row := make([]cell, len(values))

		for c, value := range values {
			row[c] = cell{value: value, text: isTextCell(f, name, c+1, r+2)}
		}

		tbl.rows = append(tbl.rows, row)
	}

	return tbl, nil
}

// isTextCell reports whether the workbook stores the cell as a string.
// Numbers, booleans and dates are not URLs even if they render as text.
func isTextCell(f *excelize.File, sheet string, col, row int) bool {
	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return false
	}

	typ, err := f.GetCellType(sheet, axis)
	if err != nil {
		return false
	}

	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString:
		return true
	case excelize.CellTypeFormula:
		value, err := f.GetCellValue(sheet, axis)

		return err == nil && !isNumeric(value)
	default:
		return false
	}
}

func sheetName(sheets []string, sheet entity.Sheet) (string, error) {
	if sheet.ByName {
		for _, name := range sheets {
			if name == sheet.Name {
				return name, nil
			}
		}

		return "", fmt.Errorf("%w: %q, available sheets: %s", errs.ErrSheetNotFound, sheet.Name, strings.Join(sheets, ", "))
	}

	if sheet.Index < 0 || sheet.Index >= len(sheets) {
		return "", fmt.Errorf("%w: index %d, workbook has %d sheets", errs.ErrSheetNotFound, sheet.Index, len(sheets))
	}

	return sheets[sheet.Index], nil
}

func loadCSV(path string, sheet entity.Sheet) (*table, error) {
	if sheet.ByName || sheet.Index != 0 {
		return nil, fmt.Errorf("%w: %w: csv files have a single sheet, got %q", errs.ErrSource, errs.ErrSheetNotFound, sheet)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %q: %w", errs.ErrSource, path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	tbl := &table{}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("%w: parse %q: %w", errs.ErrSource, path, err)
		}

		if tbl.header == nil {
			if len(record) > 0 {
				record[0] = strings.TrimPrefix(record[0], utf8BOM)
			}

			tbl.header = record

			continue
		}

		row := make([]cell, len(record))
		for c, value := range record {
			row[c] = cell{value: value, text: !isNumeric(value)}
		}

		tbl.rows = append(tbl.rows, row)
	}

	return tbl, nil
}

func columnIndex(header []string, column string) int {
	column = strings.TrimSpace(column)

	for i, name := range header {
		if strings.TrimSpace(name) == column {
			return i
		}
	}

	return -1
}

func isNumeric(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}

	_, err := strconv.ParseFloat(value, 64)

	return err == nil
}
