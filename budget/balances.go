package budget

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dwcoa/finance-engine/ledger"
)

// =============================================================================
// ACCOUNT BALANCES - Bank-authoritative, never recomputed
// =============================================================================

// AccountBalances reports each account's balance as of a date. The figure
// is the bank's own running-balance column from the latest transaction on
// or before asOf (same-day ties go to the last-inserted row). Transfers
// are already reflected in the bank's column, which is why summing debits
// and credits would be wrong.
func (c *Calculator) AccountBalances(ctx context.Context, asOf ledger.Date) ([]ledger.AccountBalance, error) {
	return c.store.AccountBalances(ctx, asOf)
}

// TotalCash sums all account balances as of a date.
func (c *Calculator) TotalCash(ctx context.Context, asOf ledger.Date) (decimal.Decimal, error) {
	balances, err := c.store.AccountBalances(ctx, asOf)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, b := range balances {
		total = total.Add(b.Balance)
	}
	return total, nil
}

// =============================================================================
// RESERVE FUND
// =============================================================================

// ReserveStatus tracks the reserve fund for a year as of a date.
type ReserveStatus struct {
	Year          int
	AsOf          ledger.Date
	Budget        decimal.Decimal // prorated reserve-contribution budget
	Contributions decimal.Decimal // credits into the contribution category
	Expenses      decimal.Decimal // debits from the reserve account
	Net           decimal.Decimal
}

// ReserveFundStatus computes reserve-fund health: budgeted contributions
// (prorated), actual contributions through asOf, and spending out of the
// reserve account through asOf. A missing reserve category yields an
// all-zero status, not an error.
func (c *Calculator) ReserveFundStatus(ctx context.Context, year int, asOf ledger.Date) (*ReserveStatus, error) {
	status := &ReserveStatus{Year: year, AsOf: asOf}

	cat, err := c.store.CategoryByName(ctx, c.ReserveCategoryName)
	if err != nil {
		return nil, fmt.Errorf("load reserve category: %w", err)
	}

	if cat != nil {
		lines, err := c.store.BudgetLines(ctx, year)
		if err != nil {
			return nil, fmt.Errorf("load budget lines: %w", err)
		}
		for _, line := range lines {
			if line.CategoryID == cat.ID {
				status.Budget = Prorate(line.AnnualAmount, line.EffectiveTiming(), asOf)
				break
			}
		}

		status.Contributions, err = c.store.CategoryCredits(ctx, cat.ID, year, asOf)
		if err != nil {
			return nil, fmt.Errorf("sum reserve contributions: %w", err)
		}
	}

	status.Expenses, err = c.store.AccountDebits(ctx, c.ReserveAccountName, year, asOf)
	if err != nil {
		return nil, fmt.Errorf("sum reserve expenses: %w", err)
	}

	status.Net = status.Contributions.Sub(status.Expenses)
	return status, nil
}
