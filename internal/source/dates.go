package source

import (
	"math"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = func() []string {
	var out []string
	for _, sep := range []string{"-", "/", "."} {
		d := "2006" + sep + "1" + sep + "2"
		out = append(out, d+" 15:04:05", d+" 15:04", d)
	}
	return append(out, "2006-01-02T15:04:05", time.RFC3339)
}()

// excelEpoch is day zero of the 1900 date system, shifted for the
// spreadsheet leap-year bug.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// ParseDate reads the textual timestamp formats found in bill exports.
// Wall-clock values are kept as exported and labelled UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(strings.Trim(s, "\t\""))
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if layout == time.RFC3339 {
				t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
			}
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseSheetDate is ParseDate for spreadsheet cells, which may also hold
// serial day numbers. CSV text never goes through here, so a bare "2025"
// in a CSV export stays a bad date.
func ParseSheetDate(s string) (time.Time, bool) {
	if t, ok := ParseDate(s); ok {
		return t, true
	}
	return parseSerial(strings.TrimSpace(strings.Trim(s, "\t\"")))
}

// Serials below 61 fall before the phantom 1900-02-29 and map to different
// days depending on the reader, so they are rejected.
const (
	minSerial = 61      // 1900-03-01
	maxSerial = 2958465 // 9999-12-31
)

func parseSerial(s string) (time.Time, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || f < minSerial || f > maxSerial {
		return time.Time{}, false
	}
	days := math.Floor(f)
	secs := math.Round((f - days) * 86400)
	return excelEpoch.AddDate(0, 0, int(days)).Add(time.Duration(secs) * time.Second), true
}
