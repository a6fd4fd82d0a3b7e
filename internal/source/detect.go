package source

import (
	"fmt"
	"path/filepath"

	"bills/internal/core"
)

// DefaultAdapters returns the built-in adapters in detection order. The
// payment format goes first because its direction column is mandatory.
func DefaultAdapters() []Adapter {
	return []Adapter{NewPaymentAdapter(), NewWalletAdapter()}
}

type hinter interface {
	Hinted(file string) bool
}

type scorer interface {
	Score(header []string) int
}

// Detect picks the adapter for a file. The earliest row any adapter
// accepts as header decides; among adapters accepting that row, one
// suggested by the file name wins, then the one with more format-specific
// columns, then list order.
//
// When no row matches but the file name suggests a format, that adapter is
// returned so its Parse can report the missing columns.
func Detect(file string, rows [][]string, adapters []Adapter) (Adapter, error) {
	name := filepath.Base(file)
	hinted := make([]bool, len(adapters))
	for i, a := range adapters {
		if h, ok := a.(hinter); ok {
			hinted[i] = h.Hinted(name)
		}
	}

	for r := 0; r < len(rows) && r < HeaderScanLimit; r++ {
		best, bestScore, bestHinted := -1, -1, false
		for i, a := range adapters {
			if !a.Match(rows[r]) {
				continue
			}
			score := 0
			if s, ok := a.(scorer); ok {
				score = s.Score(rows[r])
			}
			switch {
			case best < 0,
				hinted[i] && !bestHinted,
				hinted[i] == bestHinted && score > bestScore:
				best, bestScore, bestHinted = i, score, hinted[i]
			}
		}
		if best >= 0 {
			return adapters[best], nil
		}
	}

	for i, a := range adapters {
		if hinted[i] {
			return a, nil
		}
	}
	return nil, &ParseError{File: name, Reason: fmt.Sprintf("unrecognized format: no known header row in the first %d rows", HeaderScanLimit)}
}

// ParseFile reads, detects and parses one export file. Any failure is
// returned as a *ParseError naming the file.
func ParseFile(path string, adapters []Adapter) (core.Platform, []core.Transaction, []RowWarning, error) {
	name := filepath.Base(path)
	rows, err := ReadTable(path)
	if err != nil {
		return "", nil, nil, &ParseError{File: name, Reason: err.Error()}
	}

	a, err := Detect(name, rows, adapters)
	if err != nil {
		return "", nil, nil, err
	}
	records, warnings, err := a.Parse(name, rows)
	if err != nil {
		return a.Platform(), nil, nil, err
	}
	return a.Platform(), records, warnings, nil
}
