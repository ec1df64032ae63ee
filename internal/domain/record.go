package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type RecordKind string

const (
	RecordExpense    RecordKind = "EXPENSE"
	RecordIncome     RecordKind = "INCOME"
	RecordTransfer   RecordKind = "TRANSFER"
	RecordRepayment  RecordKind = "REPAYMENT"
	RecordInvestBuy  RecordKind = "INVEST_BUY"
	RecordInvestSell RecordKind = "INVEST_SELL"
	RecordPayment    RecordKind = "PAYMENT"
)

// NeedsTargetAccount reports whether the kind moves money into a second
// account.
func (k RecordKind) NeedsTargetAccount() bool {
	return k == RecordTransfer || k == RecordRepayment || k == RecordPayment
}

// NeedsHolding reports whether the kind changes an investment position.
func (k RecordKind) NeedsHolding() bool {
	return k == RecordInvestBuy || k == RecordInvestSell
}

// LedgerRecord is one booked monetary or holding-quantity movement. Records
// are immutable; the only way to undo one is engine.DeleteTransaction, which
// rolls the balances back and removes the record.
type LedgerRecord struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Kind            RecordKind      `json:"kind"`
	Amount          decimal.Decimal `json:"amount"`
	Category        string          `json:"category"`
	Note            string          `json:"note,omitempty"`
	SourceAccountID string          `json:"source_account_id"`
	TargetAccountID string          `json:"target_account_id,omitempty"`
	HoldingID       string          `json:"holding_id,omitempty"`
	Quantity        decimal.Decimal `json:"quantity,omitempty"`
	UnitPrice       decimal.Decimal `json:"unit_price,omitempty"`
	Date            time.Time       `json:"date"`
	CreatedAt       time.Time       `json:"created_at"`
}

// TransactionRequest is the validated input the engine receives from the
// (out of scope) API or parsing layers.
type TransactionRequest struct {
	Kind            RecordKind      `json:"kind"`
	Amount          decimal.Decimal `json:"amount"`
	SourceAccountID string          `json:"source_account_id"`
	TargetAccountID string          `json:"target_account_id,omitempty"`
	HoldingID       string          `json:"holding_id,omitempty"`
	Quantity        decimal.Decimal `json:"quantity,omitempty"`
	UnitPrice       decimal.Decimal `json:"unit_price,omitempty"`
	Category        string          `json:"category"`
	Note            string          `json:"note,omitempty"`
	Date            time.Time       `json:"date,omitempty"`
}

func NewRecordID() string {
	return uuid.NewString()
}
