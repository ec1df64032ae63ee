package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Frequency string

const (
	FrequencyDaily   Frequency = "DAILY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
	FrequencyYearly  Frequency = "YEARLY"
)

// Schedule describes a recurrence: a frequency unit plus the calendar anchors
// it needs and a wall-clock execute time ("HH:MM", 24h).
type Schedule struct {
	Frequency   Frequency    `json:"frequency"`
	DayOfMonth  int          `json:"day_of_month,omitempty"`
	Weekday     time.Weekday `json:"weekday,omitempty"`
	MonthOfYear time.Month   `json:"month_of_year,omitempty"`
	ExecuteTime string       `json:"execute_time"`
}

type PaymentType string

const (
	PaymentFixed           PaymentType = "FIXED"
	PaymentCreditFull      PaymentType = "CREDIT_CARD_FULL"
	PaymentCreditMin       PaymentType = "CREDIT_CARD_MIN"
	PaymentLoanInstallment PaymentType = "LOAN_INSTALLMENT"
)

// InsufficientFundsPolicy governs the unmet remainder of a required payment.
type InsufficientFundsPolicy string

const (
	PolicyNotify        InsufficientFundsPolicy = "NOTIFY"
	PolicyRetryNextDay  InsufficientFundsPolicy = "RETRY_NEXT_DAY"
	PolicyTryNextSource InsufficientFundsPolicy = "TRY_NEXT_SOURCE"
	PolicySkip          InsufficientFundsPolicy = "SKIP"
)

// FundingSource ties an auto-payment to one account it may draw from.
// Lower priority values are drained first.
type FundingSource struct {
	AccountID string `json:"account_id"`
	Priority  int    `json:"priority"`
}

// AutoPayment is a recurring monthly obligation settled by the waterfall
// allocator: a subscription, credit-card auto-repayment or loan installment.
type AutoPayment struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	Name        string      `json:"name"`
	PaymentType PaymentType `json:"payment_type"`
	// FixedAmount applies to PaymentFixed; for the credit/loan types the
	// required amount is derived from the linked account at execution time.
	FixedAmount        decimal.Decimal         `json:"fixed_amount,omitempty"`
	CreditAccountID    string                  `json:"credit_account_id,omitempty"`
	LoanAccountID      string                  `json:"loan_account_id,omitempty"`
	DayOfMonth         int                     `json:"day_of_month"`
	ExecuteTime        string                  `json:"execute_time"`
	Policy             InsufficientFundsPolicy `json:"policy"`
	Sources            []FundingSource         `json:"sources"`
	TotalPeriods       int                     `json:"total_periods,omitempty"`
	CompletedPeriods   int                     `json:"completed_periods"`
	ReminderDaysBefore int                     `json:"reminder_days_before"`
	IsEnabled          bool                    `json:"is_enabled"`
	NextRunAt          time.Time               `json:"next_run_at"`
	LastRunAt          time.Time               `json:"last_run_at,omitempty"`
	CreatedAt          time.Time               `json:"created_at"`
}

// TargetAccountID returns the liability account the payment settles,
// empty for plain fixed outflows.
func (p *AutoPayment) TargetAccountID() string {
	if p.CreditAccountID != "" {
		return p.CreditAccountID
	}
	return p.LoanAccountID
}

// AutoIncome is a recurring monthly credit into one liquid account, such as
// a salary or rental income.
type AutoIncome struct {
	ID                 string          `json:"id"`
	UserID             string          `json:"user_id"`
	Name               string          `json:"name"`
	Amount             decimal.Decimal `json:"amount"`
	TargetAccountID    string          `json:"target_account_id"`
	Category           string          `json:"category"`
	DayOfMonth         int             `json:"day_of_month"`
	ExecuteTime        string          `json:"execute_time"`
	ReminderDaysBefore int             `json:"reminder_days_before"`
	IsEnabled          bool            `json:"is_enabled"`
	NextRunAt          time.Time       `json:"next_run_at"`
	LastRunAt          time.Time       `json:"last_run_at,omitempty"`
	RunCount           int             `json:"run_count"`
	CreatedAt          time.Time       `json:"created_at"`
}

// ScheduledTask periodically books a plain income or expense record against
// one account, on any of the four frequency units.
type ScheduledTask struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Name      string          `json:"name"`
	Kind      RecordKind      `json:"kind"`
	Amount    decimal.Decimal `json:"amount"`
	Category  string          `json:"category"`
	AccountID string          `json:"account_id"`
	Schedule  Schedule        `json:"schedule"`
	StartDate time.Time       `json:"start_date"`
	EndDate   time.Time       `json:"end_date,omitempty"`
	IsEnabled bool            `json:"is_enabled"`
	NextRunAt time.Time       `json:"next_run_at"`
	LastRunAt time.Time       `json:"last_run_at,omitempty"`
	RunCount  int             `json:"run_count"`
	CreatedAt time.Time       `json:"created_at"`
}

type ExecutionStatus string

const (
	ExecutionSuccess           ExecutionStatus = "SUCCESS"
	ExecutionPartial           ExecutionStatus = "PARTIAL"
	ExecutionFailed            ExecutionStatus = "FAILED"
	ExecutionSkipped           ExecutionStatus = "SKIPPED"
	ExecutionInsufficientFunds ExecutionStatus = "INSUFFICIENT_FUNDS"
)

// ExecutionLogEntry is the audit trail of one scheduler run for one
// recurring definition.
type ExecutionLogEntry struct {
	ID           string          `json:"id"`
	DefinitionID string          `json:"definition_id"`
	Status       ExecutionStatus `json:"status"`
	Amount       decimal.Decimal `json:"amount"`
	RecordID     string          `json:"record_id,omitempty"`
	Message      string          `json:"message,omitempty"`
	ExecutedAt   time.Time       `json:"executed_at"`
}
