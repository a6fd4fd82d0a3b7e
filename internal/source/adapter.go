// Package source turns bill exports into canonical, not yet categorized,
// transactions.
package source

import (
	"fmt"
	"path/filepath"
	"strings"

	"bills/internal/core"
	"bills/internal/textutil"
)

// HeaderScanLimit bounds how far into a file the header row is searched.
const HeaderScanLimit = 100

// Adapter parses one export format.
type Adapter interface {
	Platform() core.Platform
	// Match reports whether header is this format's header row.
	Match(header []string) bool
	// Parse converts the rows of one file. Records carry no category.
	// file is the export's base name; a workbook extension enables serial
	// day numbers in the date column.
	Parse(file string, rows [][]string) ([]core.Transaction, []RowWarning, error)
}

// ParseError reports a file that could not be parsed at all.
type ParseError struct {
	File   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.File, e.Reason)
}

type WarningKind string

const (
	WarnBadAmount WarningKind = "bad_amount"
	WarnBadDate   WarningKind = "bad_date"
)

// RowWarning flags a row that was coerced (bad amount) or will be dropped
// (bad date). Row is the 1-based row number in the file.
type RowWarning struct {
	File  string
	Row   int
	Kind  WarningKind
	Value string
}

func (w RowWarning) String() string {
	return fmt.Sprintf("%s row %d: %s %q", w.File, w.Row, w.Kind, w.Value)
}

type column int

const (
	colDate column = iota
	colAmount
	colDirection
	colKind
	colMerchant
	colItem
	colStatus
	colMethod
	colNote
	numColumns
)

var columnNames = [numColumns]string{"date", "amount", "direction", "type", "merchant", "item", "status", "method", "note"}

// schema describes one export format by its header aliases. Aliases and
// markers are stored cleaned (see newTableAdapter).
type schema struct {
	platform core.Platform
	aliases  [numColumns][]string
	// required lists column groups of which at least one member must exist.
	required [][]column
	// markers are header cells only this format uses; they break ties
	// between formats whose required columns overlap.
	markers   []string
	direction func(dir, kind string) core.TxType
}

// layout maps each column to its index in the header row, or -1.
type layout [numColumns]int

func (s *schema) locate(header []string) (layout, []string) {
	var l layout
	for c := range l {
		l[c] = -1
	}

	cells := make(map[string]int, len(header))
	for i, h := range header {
		h = textutil.Clean(h)
		if _, dup := cells[h]; !dup && h != "" {
			cells[h] = i
		}
	}
	for c := column(0); c < numColumns; c++ {
		for _, alias := range s.aliases[c] {
			if i, ok := cells[alias]; ok {
				l[c] = i
				break
			}
		}
	}

	var missing []string
	for _, group := range s.required {
		found := false
		var names []string
		for _, c := range group {
			if l[c] >= 0 {
				found = true
			}
			names = append(names, columnNames[c])
		}
		if !found {
			missing = append(missing, strings.Join(names, "/"))
		}
	}
	return l, missing
}

func (s *schema) score(header []string) int {
	n := 0
	for _, h := range header {
		h = textutil.Clean(h)
		for _, m := range s.markers {
			if h == m {
				n++
			}
		}
	}
	return n
}

// tableAdapter implements Adapter for a schema.
type tableAdapter struct {
	schema
	hints []string
}

func (a *tableAdapter) Platform() core.Platform {
	return a.platform
}

func (a *tableAdapter) Match(header []string) bool {
	_, missing := a.locate(header)
	return len(missing) == 0
}

// Score counts format-specific header cells.
func (a *tableAdapter) Score(header []string) int {
	return a.score(header)
}

// Hinted reports whether the file name suggests this format.
func (a *tableAdapter) Hinted(file string) bool {
	name := strings.ToLower(filepath.Base(file))
	for _, h := range a.hints {
		if strings.Contains(name, h) {
			return true
		}
	}
	return false
}

func (a *tableAdapter) Parse(file string, rows [][]string) ([]core.Transaction, []RowWarning, error) {
	headerAt, l, err := a.findHeader(file, rows)
	if err != nil {
		return nil, nil, err
	}

	parseDate := ParseDate
	if spreadsheet(file) {
		parseDate = ParseSheetDate
	}

	var (
		records  []core.Transaction
		warnings []RowWarning
	)
	for i := headerAt + 1; i < len(rows); i++ {
		row := rows[i]
		if footer(row) {
			continue
		}
		get := func(c column) string {
			if idx := l[c]; idx >= 0 && idx < len(row) {
				return strings.TrimSpace(row[idx])
			}
			return ""
		}

		tx := core.Transaction{
			Type:     a.direction(get(colDirection), get(colKind)),
			Platform: a.platform,
			Merchant: core.MerchantOrDefault(cellText(get(colMerchant))),
			Item:     cellText(get(colItem)),
			Method:   cellText(get(colMethod)),
			Status:   cellText(get(colStatus)),
			Note:     cellText(get(colNote)),
		}

		rawDate := get(colDate)
		if d, ok := parseDate(rawDate); ok {
			tx.Date = d
		} else {
			warnings = append(warnings, RowWarning{File: file, Row: i + 1, Kind: WarnBadDate, Value: rawDate})
		}

		rawAmount := get(colAmount)
		if cents, err := core.ParseAmount(rawAmount); err == nil {
			tx.Amount = core.Money{Cents: cents}
		} else {
			warnings = append(warnings, RowWarning{File: file, Row: i + 1, Kind: WarnBadAmount, Value: rawAmount})
		}

		records = append(records, tx)
	}
	return records, warnings, nil
}

// findHeader returns the first row within HeaderScanLimit that carries
// every required column. When none does, the closest candidate names the
// missing columns in the error.
func (a *tableAdapter) findHeader(file string, rows [][]string) (int, layout, error) {
	var (
		best        []string
		bestMissing = len(a.required)
	)
	for i := 0; i < len(rows) && i < HeaderScanLimit; i++ {
		l, missing := a.locate(rows[i])
		if len(missing) == 0 {
			return i, l, nil
		}
		if len(missing) < bestMissing {
			best, bestMissing = missing, len(missing)
		}
	}

	if best != nil {
		return 0, layout{}, &ParseError{File: file, Reason: fmt.Sprintf("%s export is missing mandatory column(s): %s", a.platform, strings.Join(best, ", "))}
	}
	return 0, layout{}, &ParseError{File: file, Reason: fmt.Sprintf("no %s header row in the first %d rows", a.platform, HeaderScanLimit)}
}

// footer reports rows after the header that are not transactions: blank
// rows, separators and summary lines.
func footer(row []string) bool {
	if len(row) == 0 {
		return true
	}
	first := strings.TrimSpace(row[0])
	if first == "" {
		return true
	}
	for _, p := range []string{"-", "=", "共", "总"} {
		if strings.HasPrefix(first, p) {
			return true
		}
	}
	return false
}

var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// cellText maps the "/" the exports use for absent values to "" and turns
// CRLF and lone CR line breaks into LF. CSV cells arrive that way already;
// spreadsheet cells do not.
func cellText(s string) string {
	if s == "/" {
		return ""
	}
	return lineEndings.Replace(s)
}

// spreadsheet reports whether file came from a workbook, whose date cells
// may be serial day numbers.
func spreadsheet(file string) bool {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".xls", ".xlsx":
		return true
	}
	return false
}

func newTableAdapter(s schema, hints ...string) *tableAdapter {
	for c, list := range s.aliases {
		cleaned := make([]string, len(list))
		for i, a := range list {
			cleaned[i] = textutil.Clean(a)
		}
		s.aliases[c] = cleaned
	}
	markers := make([]string, len(s.markers))
	for i, m := range s.markers {
		markers[i] = textutil.Clean(m)
	}
	s.markers = markers
	return &tableAdapter{schema: s, hints: hints}
}
