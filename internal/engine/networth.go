package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"finance_ledger/internal/domain"
)

// NetWorthSnapshot buckets a user's balances and positions at one instant.
// Pure aggregation, nothing is mutated.
type NetWorthSnapshot struct {
	TotalAssets      decimal.Decimal   `json:"total_assets"`
	TotalLiabilities decimal.Decimal   `json:"total_liabilities"`
	NetWorth         decimal.Decimal   `json:"net_worth"`
	Breakdown        NetWorthBreakdown `json:"breakdown"`
	Accounts         []*domain.Account `json:"accounts"`
	Investments      []HoldingValue    `json:"investments"`
}

type NetWorthBreakdown struct {
	LiquidAssets      decimal.Decimal `json:"liquid_assets"`
	FixedAssets       decimal.Decimal `json:"fixed_assets"`
	AlternativeAssets decimal.Decimal `json:"alternative_assets"`
	OtherAssets       decimal.Decimal `json:"other_assets"`
	InvestmentValue   decimal.Decimal `json:"investment_value"`
	CreditCardDebt    decimal.Decimal `json:"credit_card_debt"`
	LoanDebt          decimal.Decimal `json:"loan_debt"`
	MortgageDebt      decimal.Decimal `json:"mortgage_debt"`
	OtherLiabilities  decimal.Decimal `json:"other_liabilities"`
}

type HoldingValue struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Quantity     decimal.Decimal `json:"quantity"`
	AvgCost      decimal.Decimal `json:"avg_cost"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	MarketValue  decimal.Decimal `json:"market_value"`
	ProfitLoss   decimal.Decimal `json:"profit_loss"`
}

// CalculateNetWorth sums signed balances per bucket plus holdings market
// value. Credit card debt only counts the overdrawn part; loans and
// mortgages count their full outstanding balance.
func (e *Engine) CalculateNetWorth(ctx context.Context, userID string) (*NetWorthSnapshot, error) {
	accounts, err := e.accounts.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	holdings, err := e.holdings.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var b NetWorthBreakdown
	for _, account := range accounts {
		switch account.Kind {
		case domain.AccountBank, domain.AccountCash, domain.AccountDigitalWallet, domain.AccountSavings:
			b.LiquidAssets = b.LiquidAssets.Add(account.Balance)
		case domain.AccountProperty, domain.AccountVehicle:
			b.FixedAssets = b.FixedAssets.Add(account.Balance)
		case domain.AccountCrypto, domain.AccountRetirement:
			b.AlternativeAssets = b.AlternativeAssets.Add(account.Balance)
		case domain.AccountOtherAsset:
			b.OtherAssets = b.OtherAssets.Add(account.Balance)
		case domain.AccountCreditCard:
			// Only a negative balance is debt; a positive one is a
			// prepaid credit balance.
			if account.Balance.IsNegative() {
				b.CreditCardDebt = b.CreditCardDebt.Add(account.Balance.Abs())
			}
		case domain.AccountLoan:
			b.LoanDebt = b.LoanDebt.Add(account.Balance.Abs())
		case domain.AccountMortgage:
			b.MortgageDebt = b.MortgageDebt.Add(account.Balance.Abs())
		case domain.AccountOtherDebt:
			b.OtherLiabilities = b.OtherLiabilities.Add(account.Balance.Abs())
		}
	}

	investments := make([]HoldingValue, 0, len(holdings))
	for _, h := range holdings {
		price := h.CurrentPrice
		if price.IsZero() {
			price = h.AvgCost
		}
		marketValue := h.Quantity.Mul(price)
		costValue := h.Quantity.Mul(h.AvgCost)

		investments = append(investments, HoldingValue{
			ID:           h.ID,
			Name:         h.Name,
			Quantity:     h.Quantity,
			AvgCost:      h.AvgCost,
			CurrentPrice: price,
			MarketValue:  marketValue,
			ProfitLoss:   marketValue.Sub(costValue),
		})
		b.InvestmentValue = b.InvestmentValue.Add(marketValue)
	}

	totalAssets := b.LiquidAssets.
		Add(b.FixedAssets).
		Add(b.AlternativeAssets).
		Add(b.OtherAssets).
		Add(b.InvestmentValue)
	totalLiabilities := b.CreditCardDebt.
		Add(b.LoanDebt).
		Add(b.MortgageDebt).
		Add(b.OtherLiabilities)

	return &NetWorthSnapshot{
		TotalAssets:      totalAssets,
		TotalLiabilities: totalLiabilities,
		NetWorth:         totalAssets.Sub(totalLiabilities),
		Breakdown:        b,
		Accounts:         accounts,
		Investments:      investments,
	}, nil
}
