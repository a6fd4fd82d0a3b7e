package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"bills/internal/core"
	"bills/internal/ledger"
)

// Output formats accepted by Render.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatChart    = "chart"
	FormatAll      = "all"
)

// Render writes r in format to w. Chart images go to chartDir; their paths
// are returned.
func Render(w io.Writer, chartDir, format string, r Report) ([]string, error) {
	switch format {
	case FormatText, "":
		return nil, WriteText(w, r)
	case FormatMarkdown:
		return nil, WriteMarkdown(w, r)
	case FormatChart:
		return WriteCharts(chartDir, r)
	case FormatAll:
		if err := WriteText(w, r); err != nil {
			return nil, err
		}
		return WriteCharts(chartDir, r)
	}
	return nil, fmt.Errorf("unknown report format %q", format)
}

type style struct {
	markdown bool
}

// WriteText renders the report as console tables.
func WriteText(w io.Writer, r Report) error {
	return style{}.write(w, r)
}

// WriteMarkdown renders the report as markdown headings and pipe tables.
func WriteMarkdown(w io.Writer, r Report) error {
	return style{markdown: true}.write(w, r)
}

func (s style) write(w io.Writer, r Report) error {
	ew := &errWriter{w: w}
	cur := r.Options.Currency

	s.heading(ew, 1, "Bill report")
	if r.Records == 0 {
		ew.printf("Ledger is empty.\n")
		return ew.err
	}
	ew.printf("Ledger: %s to %s, %d records\n", ledger.FormatDate(r.First), ledger.FormatDate(r.Last), r.Records)
	ew.printf("Window: last %d month(s) to %s\n\n", r.Options.MonthsBack, r.GeneratedAt.Format("2006-01"))

	if r.Empty() {
		ew.printf("No transactions in the window.\n")
		return ew.err
	}

	s.heading(ew, 2, "Overview")
	t := s.table(ew, "Month", "Expense", "Income", "Net")
	for _, m := range r.Months {
		t.Append([]string{m.Label(), money(cur, m.Expense), money(cur, m.Income), money(cur, m.Net)})
	}
	t.Append([]string{"Total", money(cur, r.Window.Expense), money(cur, r.Window.Income), money(cur, r.Window.Net)})
	t.Render()
	ew.printf("\n%d transaction(s) in the window\n\n", r.Window.Count)

	for _, m := range r.Months {
		s.month(ew, m, cur)
	}
	return ew.err
}

func (s style) month(ew *errWriter, m core.MonthOverview, cur string) {
	s.heading(ew, 2, m.Label())
	ew.printf("Expense %s, income %s, net %s\n\n", money(cur, m.Expense), money(cur, m.Income), money(cur, m.Net))

	if len(m.ByCategory) > 0 {
		s.heading(ew, 3, "By category")
		t := s.table(ew, "Category", "Amount", "Share")
		for _, c := range m.ByCategory {
			t.Append([]string{c.Name, money(cur, c.Amount), share(c.Amount, m.Expense)})
		}
		t.Render()
		ew.printf("\n")
	}

	if len(m.Merchants) > 0 {
		s.heading(ew, 3, "Top merchants")
		t := s.table(ew, "Merchant", "Count", "Amount")
		for _, ma := range m.Merchants {
			t.Append([]string{ma.Merchant, strconv.Itoa(ma.Count), money(cur, ma.Amount)})
		}
		t.Render()
		ew.printf("\n")
	}

	if len(m.Large) > 0 {
		s.heading(ew, 3, "Large expenses")
		t := s.table(ew, "Date", "Merchant", "Category", "Amount")
		for _, tx := range m.Large {
			t.Append([]string{ledger.FormatDate(tx.Date), tx.Merchant, tx.Category, money(cur, tx.Amount)})
		}
		t.Render()
		ew.printf("\n")
	}
}

func (s style) heading(ew *errWriter, level int, title string) {
	if s.markdown {
		for i := 0; i < level; i++ {
			ew.printf("#")
		}
		ew.printf(" %s\n\n", title)
		return
	}
	switch level {
	case 1:
		ew.printf("%s\n\n", title)
	case 2:
		ew.printf("== %s ==\n", title)
	default:
		ew.printf("%s:\n", title)
	}
}

func (s style) table(ew *errWriter, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(ew)
	t.SetHeader(header)
	t.SetAutoFormatHeaders(false)
	t.SetAutoWrapText(false)
	if s.markdown {
		t.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
		t.SetCenterSeparator("|")
	}
	return t
}

func money(cur string, m core.Money) string {
	if m.Cents < 0 {
		return "-" + cur + core.Money{Cents: -m.Cents}.String()
	}
	return cur + m.String()
}

func share(part, total core.Money) string {
	if total.Cents == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", float64(part.Cents)*100/float64(total.Cents))
}

// errWriter keeps the first write error so rendering code stays linear.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	e.err = err
	return n, err
}

func (e *errWriter) printf(format string, args ...any) {
	fmt.Fprintf(e, format, args...)
}
