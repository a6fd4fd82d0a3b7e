package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bills/internal/core"
	"bills/internal/ledger"
	"bills/internal/log"

	_ "modernc.org/sqlite"
)

// RunRecord is one row of the merge history.
type RunRecord struct {
	RunID       string
	StartedAt   time.Time
	FinishedAt  time.Time
	Files       int
	FailedFiles int
	Records     int
	Warnings    int
	Dropped     int
	Duplicates  int
	OutputPath  string
}

// SQLiteRepository mirrors the latest merged ledger into SQLite. The
// mirror is rebuilt from the ledger file on every run and is never read
// back by the merge.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if logger == nil {
		logger = log.Discard()
	}
	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  logger.WithComponent(log.ComponentStorage),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ReplaceLedger swaps the mirrored ledger for records and appends run to
// the history, in one transaction.
func (r *SQLiteRepository) ReplaceLedger(ctx context.Context, run RunRecord, records []core.Transaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	if err := q.DeleteLedger(ctx); err != nil {
		return fmt.Errorf("clear ledger: %w", err)
	}
	for i, t := range records {
		if err := q.InsertLedgerRow(ctx, toLedgerRow(i, t)); err != nil {
			return fmt.Errorf("insert ledger row %d: %w", i+1, err)
		}
	}
	if err := q.InsertMergeRun(ctx, MergeRun{
		RunID:       run.RunID,
		StartedAt:   run.StartedAt.UTC().Format(time.RFC3339Nano),
		FinishedAt:  run.FinishedAt.UTC().Format(time.RFC3339Nano),
		Files:       int64(run.Files),
		FailedFiles: int64(run.FailedFiles),
		Records:     int64(run.Records),
		Warnings:    int64(run.Warnings),
		Dropped:     int64(run.Dropped),
		Duplicates:  int64(run.Duplicates),
		OutputPath:  run.OutputPath,
	}); err != nil {
		return fmt.Errorf("insert merge run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger mirror: %w", err)
	}

	r.logger.InfoContext(ctx, "Ledger mirrored to SQLite",
		log.FieldRunID, run.RunID,
		log.FieldRecords, len(records))
	return nil
}

// Ledger returns the mirrored records in ledger order.
func (r *SQLiteRepository) Ledger(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.queries.ListLedger(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}

	records := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := fromLedgerRow(row)
		if err != nil {
			return nil, fmt.Errorf("ledger position %d: %w", row.Position, err)
		}
		records = append(records, t)
	}
	return records, nil
}

// ReadMonthOverview sums mirrored expenses and income for one month.
func (r *SQLiteRepository) ReadMonthOverview(ctx context.Context, year int, month int) (core.MonthOverview, error) {
	overview := core.MonthOverview{
		Year:  year,
		Month: month,
	}
	label := overview.Label()

	expenses, err := r.queries.GetCategorySums(ctx, string(core.Expense), label)
	if err != nil {
		return overview, fmt.Errorf("get category sums: %w", err)
	}
	for _, cs := range expenses {
		overview.Expense = overview.Expense.Add(core.Money{Cents: cs.TotalAmount})
		overview.ByCategory = append(overview.ByCategory, core.CategoryAmount{
			Name:   cs.Category,
			Amount: core.Money{Cents: cs.TotalAmount},
		})
	}

	income, err := r.queries.GetCategorySums(ctx, string(core.Income), label)
	if err != nil {
		return overview, fmt.Errorf("get income sums: %w", err)
	}
	for _, cs := range income {
		overview.Income = overview.Income.Add(core.Money{Cents: cs.TotalAmount})
	}
	overview.Net = overview.Income.Sub(overview.Expense)

	return overview, nil
}

// Runs returns up to limit merge runs, newest first.
func (r *SQLiteRepository) Runs(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := r.queries.ListMergeRuns(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list merge runs: %w", err)
	}

	runs := make([]RunRecord, 0, len(rows))
	for _, row := range rows {
		started, err := time.Parse(time.RFC3339Nano, row.StartedAt)
		if err != nil {
			return nil, fmt.Errorf("run %s started_at: %w", row.RunID, err)
		}
		finished, err := time.Parse(time.RFC3339Nano, row.FinishedAt)
		if err != nil {
			return nil, fmt.Errorf("run %s finished_at: %w", row.RunID, err)
		}
		runs = append(runs, RunRecord{
			RunID:       row.RunID,
			StartedAt:   started,
			FinishedAt:  finished,
			Files:       int(row.Files),
			FailedFiles: int(row.FailedFiles),
			Records:     int(row.Records),
			Warnings:    int(row.Warnings),
			Dropped:     int(row.Dropped),
			Duplicates:  int(row.Duplicates),
			OutputPath:  row.OutputPath,
		})
	}
	return runs, nil
}

func toLedgerRow(pos int, t core.Transaction) LedgerRow {
	return LedgerRow{
		Position:    int64(pos),
		Date:        ledger.FormatDate(t.Date),
		Type:        string(t.Type),
		Category:    t.Category,
		Subcategory: t.Subcategory,
		AmountCents: t.Amount.Cents,
		Platform:    string(t.Platform),
		Merchant:    t.Merchant,
		Item:        t.Item,
		Method:      t.Method,
		Status:      t.Status,
		Note:        t.Note,
	}
}

func fromLedgerRow(row LedgerRow) (core.Transaction, error) {
	layout := ledger.DateLayout
	if len(row.Date) > len(ledger.DateLayout) {
		layout = ledger.DateTimeLayout
	}
	date, err := time.Parse(layout, row.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("%w %q", core.ErrInvalidDate, row.Date)
	}
	return core.Transaction{
		Date:        date,
		Type:        core.TxType(row.Type),
		Category:    row.Category,
		Subcategory: row.Subcategory,
		Amount:      core.Money{Cents: row.AmountCents},
		Platform:    core.Platform(row.Platform),
		Merchant:    row.Merchant,
		Item:        row.Item,
		Method:      row.Method,
		Status:      row.Status,
		Note:        row.Note,
	}, nil
}
