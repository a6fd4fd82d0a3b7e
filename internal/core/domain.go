package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Expense  TxType = "支出"
	Income   TxType = "收入"
	Transfer TxType = "不计收支"

	PlatformWallet  Platform = "wallet"
	PlatformPayment Platform = "payment"

	// Uncategorized is the category assigned when no mapping rule matches.
	Uncategorized = "uncategorized"
	// NoMerchant stands in for an empty counterparty.
	NoMerchant = "(no merchant)"
)

type (
	// TxType is the direction of money flow, using the labels the bill exports use.
	TxType string

	// Platform tags the adapter that produced a record.
	Platform string

	Money struct {
		Cents int64
	}

	// Transaction is the canonical record every source adapter produces.
	Transaction struct {
		Date        time.Time
		Type        TxType
		Category    string
		Subcategory string
		Amount      Money
		Platform    Platform
		Merchant    string
		Item        string
		Method      string
		Status      string
		Note        string
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidType     = errors.New("invalid transaction type")
	ErrInvalidPlatform = errors.New("invalid platform")
	ErrEmptyCategory   = errors.New("empty category")
)

// ParseTxType accepts both the export labels and their English names.
func ParseTxType(s string) (TxType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(Expense), "expense", "转出":
		return Expense, nil
	case string(Income), "income", "转入":
		return Income, nil
	case string(Transfer), "transfer", "other", "/":
		return Transfer, nil
	}
	return "", ErrInvalidType
}

// ParsePlatform returns the platform tag for s.
func ParsePlatform(s string) (Platform, error) {
	switch Platform(strings.ToLower(strings.TrimSpace(s))) {
	case PlatformWallet:
		return PlatformWallet, nil
	case PlatformPayment:
		return PlatformPayment, nil
	}
	return "", ErrInvalidPlatform
}

// Validate reports whether t satisfies the canonical record invariants.
func (t Transaction) Validate() error {
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	if t.Amount.Cents < 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if _, err := ParseTxType(string(t.Type)); err != nil {
		return err
	}
	if _, err := ParsePlatform(string(t.Platform)); err != nil {
		return err
	}
	return nil
}

// MerchantOrDefault returns the merchant, or NoMerchant when it is blank.
func MerchantOrDefault(m string) string {
	if m = strings.TrimSpace(m); m == "" {
		return NoMerchant
	}
	return m
}
