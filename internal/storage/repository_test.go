package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"bills/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "db", "ledger.db"), nil)
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func mirrorRecords() []core.Transaction {
	return []core.Transaction{
		{Date: time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), Type: core.Expense, Category: "Dining", Subcategory: "Cafe", Amount: core.Money{Cents: 2350}, Platform: core.PlatformWallet, Merchant: "Coffee Shop"},
		{Date: time.Date(2025, 1, 6, 18, 45, 9, 0, time.UTC), Type: core.Expense, Category: "Shopping", Amount: core.Money{Cents: 5000}, Platform: core.PlatformPayment, Merchant: "Market", Note: "a, b"},
		{Date: time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC), Type: core.Income, Category: "Salary", Amount: core.Money{Cents: 100000}, Platform: core.PlatformPayment, Merchant: "Employer"},
		{Date: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), Type: core.Expense, Category: "Dining", Amount: core.Money{Cents: 1000}, Platform: core.PlatformWallet, Merchant: "Noodles"},
	}
}

func TestReplaceLedger(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	started := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	run := RunRecord{RunID: "run-1", StartedAt: started, FinishedAt: started.Add(time.Second), Files: 2, Records: 4, OutputPath: "output/merged.csv"}
	if err := repo.ReplaceLedger(ctx, run, mirrorRecords()); err != nil {
		t.Fatalf("ReplaceLedger() error = %v", err)
	}

	got, err := repo.Ledger(ctx)
	if err != nil {
		t.Fatalf("Ledger() error = %v", err)
	}
	want := mirrorRecords()
	if len(got) != len(want) {
		t.Fatalf("Ledger() = %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Date.Equal(want[i].Date) {
			t.Errorf("record %d date = %v, want %v", i, got[i].Date, want[i].Date)
		}
		a, b := got[i], want[i]
		a.Date, b.Date = time.Time{}, time.Time{}
		if a != b {
			t.Errorf("record %d = %+v, want %+v", i, a, b)
		}
	}

	// a second run replaces the mirror and extends the history
	second := RunRecord{RunID: "run-2", StartedAt: started.Add(time.Hour), FinishedAt: started.Add(time.Hour), Records: 1}
	if err := repo.ReplaceLedger(ctx, second, want[:1]); err != nil {
		t.Fatalf("ReplaceLedger() error = %v", err)
	}
	got, err = repo.Ledger(ctx)
	if err != nil {
		t.Fatalf("Ledger() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Ledger() = %d records after replace, want 1", len(got))
	}

	runs, err := repo.Runs(ctx, 10)
	if err != nil {
		t.Fatalf("Runs() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Runs() = %d, want 2", len(runs))
	}
	if runs[0].RunID != "run-2" || runs[1].RunID != "run-1" {
		t.Errorf("run order = %s, %s", runs[0].RunID, runs[1].RunID)
	}
	if !runs[1].StartedAt.Equal(started) || runs[1].Files != 2 || runs[1].OutputPath != "output/merged.csv" {
		t.Errorf("run-1 = %+v", runs[1])
	}
}

func TestReplaceLedger_DuplicateRunRollsBack(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	run := RunRecord{RunID: "same", StartedAt: time.Now(), FinishedAt: time.Now()}

	if err := repo.ReplaceLedger(ctx, run, mirrorRecords()); err != nil {
		t.Fatalf("ReplaceLedger() error = %v", err)
	}
	if err := repo.ReplaceLedger(ctx, run, mirrorRecords()[:1]); err == nil {
		t.Fatal("expected error for duplicate run id")
	}

	count, err := repo.queries.CountLedger(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 4 {
		t.Errorf("ledger rows = %d, want 4 after rollback", count)
	}
}

func TestReadMonthOverview(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	if err := repo.ReplaceLedger(ctx, RunRecord{RunID: "r", StartedAt: time.Now(), FinishedAt: time.Now()}, mirrorRecords()); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		month       int
		wantExpense int64
		wantIncome  int64
		wantFirst   string
	}{
		{1, 7350, 100000, "Shopping"},
		{2, 1000, 0, "Dining"},
		{3, 0, 0, ""},
	}
	for _, tt := range tests {
		ov, err := repo.ReadMonthOverview(ctx, 2025, tt.month)
		if err != nil {
			t.Fatalf("ReadMonthOverview(%d) error = %v", tt.month, err)
		}
		if ov.Expense.Cents != tt.wantExpense || ov.Income.Cents != tt.wantIncome {
			t.Errorf("month %d = %v/%v, want %d/%d", tt.month, ov.Expense, ov.Income, tt.wantExpense, tt.wantIncome)
		}
		if ov.Net.Cents != tt.wantIncome-tt.wantExpense {
			t.Errorf("month %d net = %v", tt.month, ov.Net)
		}
		first := ""
		if len(ov.ByCategory) > 0 {
			first = ov.ByCategory[0].Name
		}
		if first != tt.wantFirst {
			t.Errorf("month %d top category = %q, want %q", tt.month, first, tt.wantFirst)
		}
	}
}

func TestRunMigrations_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	for i := 0; i < 2; i++ {
		if err := RunMigrations(path); err != nil {
			t.Fatalf("RunMigrations() pass %d error = %v", i, err)
		}
	}
}
