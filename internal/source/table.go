package source

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"bills/internal/textutil"
)

// Extensions lists the file types ReadTable understands.
var Extensions = []string{".csv", ".xls", ".xlsx"}

// ErrUnsupportedFormat is returned for files ReadTable cannot decode.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Supported reports whether path has an extension ReadTable can decode.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ReadTable loads the first sheet of a bill export as rows of cells. The
// file is fully read and closed before ReadTable returns.
func ReadTable(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSV(path)
	case ".xls":
		return readXLS(path)
	case ".xlsx":
		return readXLSX(path)
	}
	return nil, fmt.Errorf("%w %q", ErrUnsupportedFormat, filepath.Ext(path))
}

func readCSV(path string) ([][]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data, err := textutil.ToUTF8(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return rows, nil
}

func readXLS(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	book, err := xls.OpenReader(f, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("error opening XLS file: %w", err)
	}
	if book.NumSheets() == 0 {
		return nil, errors.New("no sheets found in XLS file")
	}
	sheet := book.GetSheet(0)
	if sheet == nil {
		return nil, errors.New("could not get first sheet")
	}

	// ReadAllCells skips a sheet whose only row is row 0 and moves on to
	// the next one.
	if sheet.MaxRow == 0 {
		return nil, errors.New("first sheet has no rows after the first")
	}
	// Sheet.Row panics on rows without cells, so read through
	// ReadAllCells, capped at the first sheet's rows.
	return book.ReadAllCells(int(sheet.MaxRow) + 1), nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("error opening XLSX file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("no sheets found in XLSX file")
	}
	// Raw values keep dates as serial numbers instead of locale formatting.
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}
