package core

import (
	"testing"
	"time"
)

func TestParseTxType(t *testing.T) {
	cases := []struct {
		in   string
		want TxType
		ok   bool
	}{
		{"支出", Expense, true},
		{" expense ", Expense, true},
		{"转出", Expense, true},
		{"收入", Income, true},
		{"Income", Income, true},
		{"不计收支", Transfer, true},
		{"/", Transfer, true},
		{"transfer", Transfer, true},
		{"", "", false},
		{"refund", "", false},
	}
	for _, tc := range cases {
		got, err := ParseTxType(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("%q: got %q err=%v, want %q", tc.in, got, err, tc.want)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%q: expected error", tc.in)
		}
	}
}

func TestParsePlatform(t *testing.T) {
	if p, err := ParsePlatform("Wallet"); err != nil || p != PlatformWallet {
		t.Fatalf("wallet: %q %v", p, err)
	}
	if p, err := ParsePlatform("payment"); err != nil || p != PlatformPayment {
		t.Fatalf("payment: %q %v", p, err)
	}
	if _, err := ParsePlatform("bank"); err == nil {
		t.Fatalf("expected error for unknown platform")
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Date:     time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC),
		Type:     Expense,
		Category: "Dining",
		Amount:   Money{Cents: 2350},
		Platform: PlatformWallet,
		Merchant: "Coffee Shop",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []func(tx *Transaction){
		func(tx *Transaction) { tx.Date = time.Time{} },
		func(tx *Transaction) { tx.Amount = Money{Cents: -1} },
		func(tx *Transaction) { tx.Category = " " },
		func(tx *Transaction) { tx.Type = "refund" },
		func(tx *Transaction) { tx.Platform = "" },
	}
	for i, mutate := range bads {
		tx := good
		mutate(&tx)
		if err := tx.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestMerchantOrDefault(t *testing.T) {
	if got := MerchantOrDefault("  "); got != NoMerchant {
		t.Fatalf("got %q", got)
	}
	if got := MerchantOrDefault(" 星巴克 "); got != "星巴克" {
		t.Fatalf("got %q", got)
	}
}

func TestMonthOverviewLabel(t *testing.T) {
	if got := (MonthOverview{Year: 2025, Month: 3}).Label(); got != "2025-03" {
		t.Fatalf("Label() = %q", got)
	}
}
