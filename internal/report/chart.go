package report

import (
	"fmt"
	"os"
	"path/filepath"

	chart "github.com/wcharczuk/go-chart/v2"

	"bills/internal/core"
)

// WriteCharts renders one PNG bar chart of expenses by category per month
// into dir and returns the written paths. Months without expenses get no
// chart.
func WriteCharts(dir string, r Report) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create chart directory: %w", err)
	}

	var paths []string
	for _, m := range r.Months {
		bc, ok := categoryChart(m, r.Options.Currency)
		if !ok {
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("categories_%s.png", m.Label()))
		if err := renderPNG(path, bc); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func categoryChart(m core.MonthOverview, currency string) (chart.BarChart, bool) {
	var (
		bars []chart.Value
		peak float64
	)
	for _, c := range m.ByCategory {
		if c.Amount.Cents <= 0 {
			continue
		}
		v := c.Amount.Yuan()
		bars = append(bars, chart.Value{Label: c.Name, Value: v})
		if v > peak {
			peak = v
		}
	}
	if len(bars) == 0 {
		return chart.BarChart{}, false
	}

	width := 160 * len(bars)
	if width < 640 {
		width = 640
	}
	bc := chart.BarChart{
		Title: fmt.Sprintf("Expenses by category %s", m.Label()),
		Background: chart.Style{
			Padding: chart.Box{
				Top:    40,
				Left:   20,
				Right:  20,
				Bottom: 20,
			},
		},
		Width:  width,
		Height: 400,
		Bars:   bars,
	}
	// A fixed range from zero keeps single-bar months renderable.
	bc.YAxis.Range = &chart.ContinuousRange{Min: 0, Max: peak * 1.1}
	bc.YAxis.ValueFormatter = func(v interface{}) string {
		if vf, isFloat := v.(float64); isFloat {
			return fmt.Sprintf("%s%.0f", currency, vf)
		}
		return ""
	}
	return bc, true
}

func renderPNG(path string, bc chart.BarChart) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if err := bc.Render(chart.PNG, f); err != nil {
		return fmt.Errorf("failed to render chart %s: %w", filepath.Base(path), err)
	}
	return nil
}
