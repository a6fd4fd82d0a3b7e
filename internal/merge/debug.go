package merge

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"bills/internal/category"
	"bills/internal/core"
	"bills/internal/ledger"
	"bills/internal/textutil"
)

const (
	RulesFile     = "rules_loaded.csv"
	UnmatchedFile = "unmatched_preview.csv"
	BrandHitsFile = "debug_brand_hits.csv"

	// unmatchedLimit caps the rows written to the unmatched preview.
	unmatchedLimit = 200
)

// writeDebugArtifacts dumps the compiled rules and a sample of records no
// rule matched, to help tune the mapping table. With brands set it also
// lists every record mentioning one of them.
func writeDebugArtifacts(dir string, rules *category.RuleSet, records []core.Transaction, brands []string, bom bool) error {
	ruleRows := [][]string{{"priority", "merchant", "keyword", "category", "subcategory", "regex", "line"}}
	if rules != nil {
		for _, r := range rules.Rules {
			ruleRows = append(ruleRows, []string{
				strconv.Itoa(r.Priority),
				r.Merchant,
				r.Keyword,
				r.Category,
				r.Subcategory,
				strconv.FormatBool(r.Regex),
				strconv.Itoa(r.Line),
			})
		}
	}
	if err := writeCSV(filepath.Join(dir, RulesFile), ruleRows, bom); err != nil {
		return err
	}

	unmatched := [][]string{{"date", "platform", "merchant", "item", "note", "amount"}}
	for _, r := range records {
		if r.Category != core.Uncategorized {
			continue
		}
		if len(unmatched) > unmatchedLimit {
			break
		}
		unmatched = append(unmatched, []string{
			ledger.FormatDate(r.Date),
			string(r.Platform),
			r.Merchant,
			r.Item,
			r.Note,
			r.Amount.String(),
		})
	}
	if err := writeCSV(filepath.Join(dir, UnmatchedFile), unmatched, bom); err != nil {
		return err
	}

	if hits := brandHits(records, brands); len(hits) > 1 {
		return writeCSV(filepath.Join(dir, BrandHitsFile), hits, bom)
	}
	return nil
}

// brandHits returns the header plus one row per record whose normalized
// merchant, item or note contains a normalized brand.
func brandHits(records []core.Transaction, brands []string) [][]string {
	var needles []string
	for _, b := range brands {
		if n := textutil.Normalize(b); n != "" {
			needles = append(needles, n)
		}
	}
	if len(needles) == 0 {
		return nil
	}

	rows := [][]string{{"date", "platform", "merchant", "item", "note", "amount", "category", "subcategory", "brand", "merchant_norm", "item_norm", "note_norm"}}
	for _, r := range records {
		merchant, item, note := textutil.Normalize(r.Merchant), textutil.Normalize(r.Item), textutil.Normalize(r.Note)
		text := merchant + " " + item + " " + note
		for _, n := range needles {
			if !strings.Contains(text, n) {
				continue
			}
			rows = append(rows, []string{
				ledger.FormatDate(r.Date),
				string(r.Platform),
				r.Merchant,
				r.Item,
				r.Note,
				r.Amount.String(),
				r.Category,
				r.Subcategory,
				n,
				merchant,
				item,
				note,
			})
			break
		}
	}
	return rows
}

func writeCSV(path string, rows [][]string, bom bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if bom {
		if _, err := bw.WriteString("\ufeff"); err != nil {
			return err
		}
	}
	w := csv.NewWriter(bw)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return f.Close()
}
