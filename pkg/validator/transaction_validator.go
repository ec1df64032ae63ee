package validator

import (
	"errors"
	"fmt"
	"time"

	"finance_ledger/internal/domain"
)

var (
	ErrInvalidAmount   = errors.New("invalid transaction amount")
	ErrUnknownKind     = errors.New("unknown transaction kind")
	ErrMissingTarget   = errors.New("target account required")
	ErrMissingHolding  = errors.New("holding required")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrSameAccount     = errors.New("cannot transfer to same account")
	ErrMissingSource   = errors.New("source account required")
)

// TransactionValidator performs the shape checks on a request before the
// engine touches any data. Ownership checks live in the engine because they
// need the store.
type TransactionValidator struct{}

func NewTransactionValidator() *TransactionValidator {
	return &TransactionValidator{}
}

func (v *TransactionValidator) ValidateRequest(req *domain.TransactionRequest) error {
	var errs []error

	switch req.Kind {
	case domain.RecordExpense, domain.RecordIncome, domain.RecordTransfer,
		domain.RecordRepayment, domain.RecordInvestBuy, domain.RecordInvestSell,
		domain.RecordPayment:
	default:
		errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownKind, req.Kind))
	}

	if !req.Amount.IsPositive() {
		errs = append(errs, ErrInvalidAmount)
	}

	if req.SourceAccountID == "" {
		errs = append(errs, ErrMissingSource)
	}

	if req.Kind.NeedsTargetAccount() {
		if req.TargetAccountID == "" {
			errs = append(errs, fmt.Errorf("%w for %s", ErrMissingTarget, req.Kind))
		}
		if req.TargetAccountID != "" && req.TargetAccountID == req.SourceAccountID {
			errs = append(errs, ErrSameAccount)
		}
	}

	if req.Kind.NeedsHolding() {
		if req.HoldingID == "" {
			errs = append(errs, fmt.Errorf("%w for %s", ErrMissingHolding, req.Kind))
		}
		if !req.Quantity.IsPositive() {
			errs = append(errs, ErrInvalidQuantity)
		}
	}

	if !req.Date.IsZero() && req.Date.After(time.Now().Add(5*time.Minute)) {
		errs = append(errs, errors.New("transaction date cannot be in the future"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors: %v", errs)
	}

	return nil
}
