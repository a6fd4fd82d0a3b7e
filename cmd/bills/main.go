package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"bills/internal/amqp"
	"bills/internal/category"
	"bills/internal/cli"
	"bills/internal/config"
	"bills/internal/core"
	"bills/internal/log"
	"bills/internal/merge"
	"bills/internal/report"
	"bills/internal/services"
	"bills/internal/sheets"
	gsheet "bills/internal/sheets/google"
	"bills/internal/storage"
)

const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

const usage = `Usage: bills [command] [flags]

Commands:
  merge     merge every export in the input directory into the ledger (default)
  report    summarize the ledger
  run       merge, then report
  history   list recent merges and monthly totals from the SQLite mirror
  help      show this message

Flags:
  -input DIR      directory holding the bill exports (INPUT_DIR)
  -output FILE    merged ledger CSV (OUTPUT_PATH)
  -mapping FILE   category mapping table, CSV or YAML (MAPPING_FILE)
  -months N       months covered by report and history (MONTHS_BACK)
  -format F       report format: text, markdown, chart or all (REPORT_FORMAT)

Settings are read from the environment and an optional .env file; flags
take precedence.
`

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

type flags struct {
	input   string
	output  string
	mapping string
	months  int
	format  string
}

func (f flags) apply(c *config.Config) {
	if f.input != "" {
		c.InputDir = f.input
	}
	if f.output != "" {
		c.OutputPath = f.output
	}
	if f.mapping != "" {
		c.MappingFile = f.mapping
	}
	if f.months != 0 {
		c.MonthsBack = f.months
	}
	if f.format != "" {
		c.ReportFormat = strings.ToLower(f.format)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	command := "merge"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}

	switch command {
	case "help":
		fmt.Fprint(stdout, usage)
		return exitOK
	case "merge", "report", "run", "history":
	default:
		fmt.Fprintf(stderr, "bills: unknown command %q\n\n%s", command, usage)
		return exitUsage
	}

	var f flags
	fs := flag.NewFlagSet("bills "+command, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	fs.StringVar(&f.input, "input", "", "input directory")
	fs.StringVar(&f.output, "output", "", "ledger file")
	fs.StringVar(&f.mapping, "mapping", "", "category mapping file")
	fs.IntVar(&f.months, "months", 0, "months to report")
	fs.StringVar(&f.format, "format", "", "report format")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "bills: unexpected arguments %v\n\n%s", fs.Args(), usage)
		return exitUsage
	}

	cli.LoadEnvFile()
	logger := cli.SetupLogger(stderr, config.LogLevel(), config.LogFormat())

	cfg, err := cli.LoadAndValidateConfig(logger, f.apply)
	if err != nil {
		return exitFatal
	}

	ctx, cancel := cli.SignalContext(ctx, logger)
	defer cancel()

	switch command {
	case "merge":
		err = mergeLedger(ctx, cfg, logger, stdout)
	case "report":
		err = reportLedger(cfg, logger, stdout)
	case "run":
		if err = mergeLedger(ctx, cfg, logger, stdout); err == nil {
			err = reportLedger(cfg, logger, stdout)
		}
	case "history":
		err = history(ctx, cfg, logger, stdout)
	}
	if err != nil {
		logger.Error("Command failed", "command", command, log.FieldError, err)
		return exitFatal
	}
	return exitOK
}

func mergeOptions(cfg *config.Config) (merge.Options, error) {
	order, err := category.ParseOrder(cfg.MatchOrder)
	if err != nil {
		return merge.Options{}, err
	}
	return merge.Options{
		InputDir:    cfg.InputDir,
		OutputPath:  cfg.OutputPath,
		MappingFile: cfg.MappingFile,
		MatchOrder:  order,
		Dedupe:      merge.Policy(cfg.Dedupe),
		Workers:     cfg.Workers,
		BOM:         cfg.LedgerBOM,
		Debug:       cfg.Debug,
		DebugBrands: cfg.DebugBrands,
	}, nil
}

func reportOptions(cfg *config.Config) report.Options {
	return report.Options{
		MonthsBack:   cfg.MonthsBack,
		TopMerchants: cfg.TopMerchants,
		BigTop:       cfg.BigTop,
		BigMin:       core.Money{Cents: cfg.BigMinCents},
		Currency:     cfg.Currency,
	}
}

// newLedgerService builds the merge pipeline. The mirror, AMQP and Sheets
// targets are optional and a failure to reach one only costs that target.
func newLedgerService(ctx context.Context, cfg *config.Config, logger *log.Logger) (*services.LedgerService, error) {
	opts, err := mergeOptions(cfg)
	if err != nil {
		return nil, err
	}
	engine := merge.NewEngine(opts, logger)

	var mirror services.Mirror
	if cfg.LedgerDBPath != "" {
		repo, err := cli.InitSQLite(logger, cfg.LedgerDBPath)
		if err != nil {
			logger.Warn("Ledger mirror disabled", log.FieldError, err)
		} else {
			mirror = repo
		}
	}

	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("Merge events disabled", log.FieldError, err)
		} else {
			publisher = client
		}
	}

	var sinks []sheets.LedgerSink
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			logger.Warn("Google Sheets export disabled", log.FieldError, err)
		} else {
			sinks = append(sinks, client)
		}
	}

	return services.NewLedgerService(engine, mirror, publisher, logger, sinks...), nil
}

func mergeLedger(ctx context.Context, cfg *config.Config, logger *log.Logger, stdout io.Writer) error {
	svc, err := newLedgerService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warn("Failed to close ledger service", log.FieldError, err)
		}
	}()

	out, err := svc.Merge(ctx)
	if err != nil {
		return err
	}

	res := out.Result
	fmt.Fprintf(stdout, "Merged %d record(s) from %d file(s) into %s\n", len(res.Records), len(res.Files), res.OutputPath)
	fmt.Fprintf(stdout, "  dropped %d, duplicates %d, uncategorized %d, warnings %d\n",
		res.Dropped, res.Duplicates, res.Uncategorized, len(res.Warnings))
	for _, ferr := range res.FileErrors {
		fmt.Fprintf(stdout, "  skipped: %v\n", ferr)
	}
	for _, ref := range out.SheetRefs {
		fmt.Fprintf(stdout, "  exported to %s\n", ref)
	}
	return nil
}

func reportLedger(cfg *config.Config, logger *log.Logger, stdout io.Writer) error {
	r, err := report.Generate(cfg.OutputPath, time.Now(), reportOptions(cfg))
	if err != nil {
		return err
	}

	charts, err := report.Render(stdout, cfg.ReportDir, cfg.ReportFormat, r)
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	for _, c := range charts {
		logger.WithComponent(log.ComponentReport).Info("Chart written", log.FieldPath, c)
	}
	return nil
}

func history(ctx context.Context, cfg *config.Config, logger *log.Logger, stdout io.Writer) error {
	if cfg.LedgerDBPath == "" {
		return errors.New("history needs the SQLite mirror: set LEDGER_DB_PATH")
	}
	repo, err := cli.InitSQLite(logger, cfg.LedgerDBPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	runs, err := repo.Runs(ctx, 10)
	if err != nil {
		return err
	}
	writeRuns(stdout, runs)

	now := time.Now().UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	var months []core.MonthOverview
	for i := 0; i < cfg.MonthsBack; i++ {
		m := first.AddDate(0, -i, 0)
		overview, err := repo.ReadMonthOverview(ctx, m.Year(), int(m.Month()))
		if err != nil {
			return err
		}
		months = append(months, overview)
	}
	writeMonths(stdout, months, cfg.Currency)
	return nil
}

func writeRuns(w io.Writer, runs []storage.RunRecord) {
	fmt.Fprintln(w, "Recent merges")
	if len(runs) == 0 {
		fmt.Fprintln(w, "No merges recorded.")
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Finished", "Files", "Failed", "Records", "Dropped", "Duplicates", "Ledger"})
	table.SetAutoFormatHeaders(false)
	for _, r := range runs {
		table.Append([]string{
			r.FinishedAt.Local().Format("2006-01-02 15:04:05"),
			fmt.Sprint(r.Files),
			fmt.Sprint(r.FailedFiles),
			fmt.Sprint(r.Records),
			fmt.Sprint(r.Dropped),
			fmt.Sprint(r.Duplicates),
			filepath.Base(r.OutputPath),
		})
	}
	table.Render()
}

func writeMonths(w io.Writer, months []core.MonthOverview, currency string) {
	fmt.Fprintln(w, "\nMirrored months")
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Month", "Expense", "Income", "Net", "Top category"})
	table.SetAutoFormatHeaders(false)
	for _, m := range months {
		top := ""
		if len(m.ByCategory) > 0 {
			top = m.ByCategory[0].Name
		}
		table.Append([]string{
			m.Label(),
			currency + m.Expense.String(),
			currency + m.Income.String(),
			signed(currency, m.Net),
			top,
		})
	}
	table.Render()
}

func signed(currency string, m core.Money) string {
	if m.Cents < 0 {
		return "-" + currency + core.Money{Cents: -m.Cents}.String()
	}
	return currency + m.String()
}
