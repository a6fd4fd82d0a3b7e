package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type LedgerRow struct {
	Position    int64
	Date        string
	Type        string
	Category    string
	Subcategory string
	AmountCents int64
	Platform    string
	Merchant    string
	Item        string
	Method      string
	Status      string
	Note        string
}

type MergeRun struct {
	RunID       string
	StartedAt   string
	FinishedAt  string
	Files       int64
	FailedFiles int64
	Records     int64
	Warnings    int64
	Dropped     int64
	Duplicates  int64
	OutputPath  string
}

const deleteLedger = `DELETE FROM ledger`

func (q *Queries) DeleteLedger(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteLedger)
	return err
}

const insertLedgerRow = `INSERT INTO ledger (
    position, date, type, category, subcategory, amount_cents, platform, merchant, item, method, status, note
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertLedgerRow(ctx context.Context, arg LedgerRow) error {
	_, err := q.db.ExecContext(ctx, insertLedgerRow,
		arg.Position,
		arg.Date,
		arg.Type,
		arg.Category,
		arg.Subcategory,
		arg.AmountCents,
		arg.Platform,
		arg.Merchant,
		arg.Item,
		arg.Method,
		arg.Status,
		arg.Note,
	)
	return err
}

const listLedger = `SELECT position, date, type, category, subcategory, amount_cents, platform, merchant, item, method, status, note
FROM ledger
ORDER BY position`

func (q *Queries) ListLedger(ctx context.Context) ([]LedgerRow, error) {
	rows, err := q.db.QueryContext(ctx, listLedger)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []LedgerRow
	for rows.Next() {
		var i LedgerRow
		if err := rows.Scan(
			&i.Position,
			&i.Date,
			&i.Type,
			&i.Category,
			&i.Subcategory,
			&i.AmountCents,
			&i.Platform,
			&i.Merchant,
			&i.Item,
			&i.Method,
			&i.Status,
			&i.Note,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countLedger = `SELECT COUNT(*) FROM ledger`

func (q *Queries) CountLedger(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countLedger).Scan(&count)
	return count, err
}

type CategorySum struct {
	Category    string
	TotalAmount int64
}

const getCategorySums = `SELECT category, CAST(SUM(amount_cents) AS INTEGER) AS total_amount
FROM ledger
WHERE type = ? AND substr(date, 1, 7) = ?
GROUP BY category
ORDER BY total_amount DESC, category`

func (q *Queries) GetCategorySums(ctx context.Context, txType, month string) ([]CategorySum, error) {
	rows, err := q.db.QueryContext(ctx, getCategorySums, txType, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []CategorySum
	for rows.Next() {
		var i CategorySum
		if err := rows.Scan(&i.Category, &i.TotalAmount); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertMergeRun = `INSERT INTO merge_runs (
    run_id, started_at, finished_at, files, failed_files, records, warnings, dropped, duplicates, output_path
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertMergeRun(ctx context.Context, arg MergeRun) error {
	_, err := q.db.ExecContext(ctx, insertMergeRun,
		arg.RunID,
		arg.StartedAt,
		arg.FinishedAt,
		arg.Files,
		arg.FailedFiles,
		arg.Records,
		arg.Warnings,
		arg.Dropped,
		arg.Duplicates,
		arg.OutputPath,
	)
	return err
}

const listMergeRuns = `SELECT run_id, started_at, finished_at, files, failed_files, records, warnings, dropped, duplicates, output_path
FROM merge_runs
ORDER BY started_at DESC
LIMIT ?`

func (q *Queries) ListMergeRuns(ctx context.Context, limit int64) ([]MergeRun, error) {
	rows, err := q.db.QueryContext(ctx, listMergeRuns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []MergeRun
	for rows.Next() {
		var i MergeRun
		if err := rows.Scan(
			&i.RunID,
			&i.StartedAt,
			&i.FinishedAt,
			&i.Files,
			&i.FailedFiles,
			&i.Records,
			&i.Warnings,
			&i.Dropped,
			&i.Duplicates,
			&i.OutputPath,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
