// Package ledger reads and writes the merged ledger CSV. The column order
// and formats are a contract with downstream report tooling.
package ledger

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bills/internal/core"
)

// Header is the exact first line of every ledger file.
var Header = []string{"date", "type", "category", "subcategory", "amount", "platform", "merchant", "item", "method", "status", "note"}

const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
)

var (
	ErrHeaderMismatch = errors.New("ledger header does not match")
	ErrEmptyLedger    = errors.New("ledger is empty")
)

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// RowError reports a ledger line that could not be decoded.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("ledger line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

type Options struct {
	// BOM prefixes the file with a UTF-8 byte order mark for spreadsheet apps.
	BOM bool
}

// FormatDate writes date-only values without a time of day.
func FormatDate(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format(DateLayout)
	}
	return t.Format(DateTimeLayout)
}

// FormatRow renders one record in column order.
func FormatRow(tx core.Transaction) []string {
	return []string{
		FormatDate(tx.Date),
		string(tx.Type),
		tx.Category,
		tx.Subcategory,
		tx.Amount.String(),
		string(tx.Platform),
		tx.Merchant,
		tx.Item,
		tx.Method,
		tx.Status,
		tx.Note,
	}
}

// ParseRow decodes one ledger row. The amount accepts currency signs and
// thousands separators the same way export adapters do.
func ParseRow(row []string) (core.Transaction, error) {
	if len(row) != len(Header) {
		return core.Transaction{}, fmt.Errorf("expected %d fields, got %d", len(Header), len(row))
	}

	var (
		tx  core.Transaction
		err error
	)
	if tx.Date, err = parseDate(row[0]); err != nil {
		return core.Transaction{}, err
	}
	if tx.Type, err = core.ParseTxType(row[1]); err != nil {
		return core.Transaction{}, fmt.Errorf("%w %q", err, row[1])
	}
	cents, err := core.ParseAmount(row[4])
	if err != nil {
		return core.Transaction{}, fmt.Errorf("%w %q", err, row[4])
	}
	tx.Amount = core.Money{Cents: cents}
	if tx.Platform, err = core.ParsePlatform(row[5]); err != nil {
		return core.Transaction{}, fmt.Errorf("%w %q", err, row[5])
	}

	tx.Category = row[2]
	tx.Subcategory = row[3]
	tx.Merchant = row[6]
	tx.Item = row[7]
	tx.Method = row[8]
	tx.Status = row[9]
	tx.Note = row[10]
	return tx, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{DateTimeLayout, DateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w %q", core.ErrInvalidDate, s)
}

// Write encodes records with the header line, comma separated, "\n" line
// endings and minimal quoting.
func Write(w io.Writer, records []core.Transaction, opts Options) error {
	bw := bufio.NewWriter(w)
	if opts.BOM {
		if _, err := bw.Write(utf8BOM); err != nil {
			return err
		}
	}

	cw := csv.NewWriter(bw)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, tx := range records {
		if err := cw.Write(FormatRow(tx)); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return bw.Flush()
}

// WriteFile replaces path with the encoded records. The data goes to a
// temporary file in the same directory first, so readers never see a
// partial ledger.
func WriteFile(path string, records []core.Transaction, opts Options) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp ledger: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = Write(tmp, records, opts); err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync ledger: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close ledger: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to set ledger permissions: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace ledger: %w", err)
	}
	return nil
}

// Read decodes a ledger. A leading BOM is ignored; the header must match
// Header exactly.
func Read(r io.Reader) ([]core.Transaction, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmptyLedger
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger header: %w", err)
	}
	if strings.Join(header, ",") != strings.Join(Header, ",") {
		return nil, fmt.Errorf("%w: got %q", ErrHeaderMismatch, strings.Join(header, ","))
	}

	var records []core.Transaction
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read ledger: %w", err)
		}
		line, _ := cr.FieldPos(0)
		tx, err := ParseRow(row)
		if err != nil {
			return nil, &RowError{Line: line, Err: err}
		}
		records = append(records, tx)
	}
	return records, nil
}

// ReadFile opens, decodes and closes a ledger file.
func ReadFile(path string) ([]core.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return records, nil
}
