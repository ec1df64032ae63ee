package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountKind string

const (
	AccountBank          AccountKind = "BANK"
	AccountCash          AccountKind = "CASH"
	AccountDigitalWallet AccountKind = "DIGITAL_WALLET"
	AccountSavings       AccountKind = "SAVINGS"
	AccountRetirement    AccountKind = "RETIREMENT"
	AccountCrypto        AccountKind = "CRYPTO"
	AccountProperty      AccountKind = "PROPERTY"
	AccountVehicle       AccountKind = "VEHICLE"
	AccountOtherAsset    AccountKind = "OTHER_ASSET"
	AccountCreditCard    AccountKind = "CREDIT_CARD"
	AccountLoan          AccountKind = "LOAN"
	AccountMortgage      AccountKind = "MORTGAGE"
	AccountOtherDebt     AccountKind = "OTHER_LIABILITY"
)

type Account struct {
	ID      string          `json:"id"`
	UserID  string          `json:"user_id"`
	Name    string          `json:"name"`
	Kind    AccountKind     `json:"kind"`
	Balance decimal.Decimal `json:"balance"`
	// MonthlyPayment is the fixed installment for LOAN/MORTGAGE accounts,
	// zero for everything else. When it is zero the installment is derived
	// from InterestRate and TermMonths instead.
	MonthlyPayment decimal.Decimal `json:"monthly_payment,omitempty"`
	// InterestRate is the annual rate in percent for LOAN/MORTGAGE accounts.
	InterestRate   float64   `json:"interest_rate,omitempty"`
	TermMonths     int       `json:"term_months,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// IsLiquid reports whether the account holds spendable cash. Only liquid
// accounts may fund auto-payments or receive auto-incomes.
func (k AccountKind) IsLiquid() bool {
	switch k {
	case AccountBank, AccountCash, AccountDigitalWallet, AccountSavings:
		return true
	}
	return false
}

// IsLiability reports whether the account balance represents debt.
func (k AccountKind) IsLiability() bool {
	switch k {
	case AccountCreditCard, AccountLoan, AccountMortgage, AccountOtherDebt:
		return true
	}
	return false
}

type BalanceChange struct {
	AccountID       string          `json:"account_id"`
	AccountName     string          `json:"account_name"`
	PreviousBalance decimal.Decimal `json:"previous_balance"`
	NewBalance      decimal.Decimal `json:"new_balance"`
	Change          decimal.Decimal `json:"change"`
}
