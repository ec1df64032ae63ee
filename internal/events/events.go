package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"finance_ledger/internal/domain"
)

const (
	TopicTransactionCompleted = "transaction_completed"
	TopicExecutionCompleted   = "recurring_execution_completed"
)

// Publisher emits domain events to an external broker. Implementations must
// tolerate being handed a nil receiver so callers can stay unconditional.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
}

// TransactionCompleted is published after every successful engine mutation.
type TransactionCompleted struct {
	RecordID        string          `json:"record_id"`
	UserID          string          `json:"user_id"`
	Kind            string          `json:"kind"`
	Amount          decimal.Decimal `json:"amount"`
	SourceAccountID string          `json:"source_account_id"`
	TargetAccountID string          `json:"target_account_id,omitempty"`
	CompletedAt     time.Time       `json:"completed_at"`
}

// ExecutionCompleted is published after each recurring-definition run.
type ExecutionCompleted struct {
	DefinitionID string                 `json:"definition_id"`
	Scheduler    string                 `json:"scheduler"`
	Status       domain.ExecutionStatus `json:"status"`
	Amount       decimal.Decimal        `json:"amount"`
	ExecutedAt   time.Time              `json:"executed_at"`
}
