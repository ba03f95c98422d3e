package dues

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dwcoa/finance-engine/ledger"
)

// suggestedPaymentCutoffDay is the day of month on which the current
// month stops counting toward the remaining payment schedule.
const suggestedPaymentCutoffDay = 15

var monthsPerYear = decimal.NewFromInt(12)

// =============================================================================
// STATEMENT TYPES
// =============================================================================

// PriorYearSummary recaps the year before the statement year. Nil when the
// prior year had no operating budget.
type PriorYearSummary struct {
	Year                  int
	AnnualDuesBudgeted    decimal.Decimal
	TotalPaid             decimal.Decimal
	BalanceCarriedForward decimal.Decimal // positive = underpaid, negative = credit
}

// CurrentYearSummary is the statement year's position plus payment guidance.
type CurrentYearSummary struct {
	Year             int
	BudgetLocked     bool
	CarryoverBalance decimal.Decimal
	AnnualDues       decimal.Decimal
	TotalDue         decimal.Decimal
	PaidYTD          decimal.Decimal
	RemainingBalance decimal.Decimal

	// OriginalMonthly is annual dues / 12: the on-schedule payment.
	OriginalMonthly decimal.Decimal
	// MonthsRemaining applies the mid-month cutoff: before the 15th the
	// current month still counts; floored at 1 so late December still
	// yields a payable suggestion.
	MonthsRemaining int
	// SuggestedMonthly spreads the remaining balance over the remaining
	// months; zero when nothing (or less) is owed.
	SuggestedMonthly decimal.Decimal
}

// Statement is a unit's full financial statement.
type Statement struct {
	Unit           string
	OwnershipPct   decimal.Decimal
	AsOf           ledger.Date
	CurrentYear    CurrentYearSummary
	PriorYear      *PriorYearSummary
	RecentPayments []ledger.Payment
}

// =============================================================================
// STATEMENT ASSEMBLY
// =============================================================================

// Statement builds the per-unit statement for a year, as of a date. The
// as-of date drives both the paid-to-date figure and the months-remaining
// guidance, so historical statements reproduce past advice.
func (c *Calculator) Statement(ctx context.Context, unitNumber string, year int, asOf ledger.Date) (*Statement, error) {
	unit, err := c.store.UnitByNumber(ctx, unitNumber)
	if err != nil {
		return nil, err
	}
	if unit == nil {
		return nil, &ledger.NotFoundError{Kind: "unit", Key: unitNumber}
	}

	st := &Statement{Unit: unit.Number, OwnershipPct: unit.OwnershipPct, AsOf: asOf}

	// Prior year recap.
	priorYear := year - 1
	carriedForward := decimal.Zero
	priorBudget, err := c.budgets.OperatingBudgetAnnual(ctx, priorYear)
	if err != nil {
		return nil, err
	}
	if priorBudget.IsPositive() {
		priorBudgeted := priorBudget.Mul(unit.OwnershipPct)
		priorSeeded, err := c.store.UnitPastDue(ctx, unit.Number, priorYear)
		if err != nil {
			return nil, err
		}
		priorPaid, err := c.paymentsForYear(ctx, *unit, priorYear, ledger.EndOfYear(priorYear))
		if err != nil {
			return nil, err
		}
		carriedForward = priorBudgeted.Add(priorSeeded).Sub(priorPaid)
		st.PriorYear = &PriorYearSummary{
			Year:                  priorYear,
			AnnualDuesBudgeted:    priorBudgeted,
			TotalPaid:             priorPaid,
			BalanceCarriedForward: carriedForward,
		}
	}

	// Current year.
	currentBudget, err := c.budgets.OperatingBudgetAnnual(ctx, year)
	if err != nil {
		return nil, err
	}
	annualDues := decimal.Zero
	if currentBudget.IsPositive() {
		annualDues = currentBudget.Mul(unit.OwnershipPct)
	}

	carryover := decimal.Zero
	if st.PriorYear != nil {
		carryover = carriedForward
	}
	// The base tracked year has no walkable history; a seeded debt stands
	// in for it. Same when later years lack prior budget data.
	if year == c.cfg.BaseYear || (st.PriorYear == nil && year > c.cfg.BaseYear) {
		seeded, err := c.store.UnitPastDue(ctx, unit.Number, year)
		if err != nil {
			return nil, err
		}
		if seeded.IsPositive() {
			carryover = seeded
		}
	}

	paidYTD, err := c.paymentsForYear(ctx, *unit, year, asOf)
	if err != nil {
		return nil, err
	}

	lock, err := c.store.BudgetLock(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("check budget lock: %w", err)
	}

	totalDue := carryover.Add(annualDues)
	remaining := totalDue.Sub(paidYTD)

	originalMonthly := decimal.Zero
	if annualDues.IsPositive() {
		originalMonthly = annualDues.Div(monthsPerYear)
	}

	monthsRemaining := MonthsRemaining(asOf)

	suggested := decimal.Zero
	if remaining.IsPositive() {
		suggested = remaining.Div(decimal.NewFromInt(int64(monthsRemaining)))
	}

	st.CurrentYear = CurrentYearSummary{
		Year:             year,
		BudgetLocked:     lock.Locked,
		CarryoverBalance: carryover,
		AnnualDues:       annualDues,
		TotalDue:         totalDue,
		PaidYTD:          paidYTD,
		RemainingBalance: remaining,
		OriginalMonthly:  originalMonthly,
		MonthsRemaining:  monthsRemaining,
		SuggestedMonthly: suggested,
	}

	if unit.DuesCategoryID != nil {
		st.RecentPayments, err = c.store.RecentPayments(ctx, *unit.DuesCategoryID, year, 10)
		if err != nil {
			return nil, err
		}
	}

	return st, nil
}

// MonthsRemaining counts the months left to pay as of a date, using the
// mid-month cutoff: the current month counts only before the 15th. Never
// less than 1.
func MonthsRemaining(asOf ledger.Date) int {
	month := int(asOf.Month())
	remaining := 12 - month
	if asOf.Day() < suggestedPaymentCutoffDay {
		remaining++
	}
	if remaining < 1 {
		remaining = 1
	}
	return remaining
}

// PaymentHistory returns a unit's dues payments for a year, newest first.
func (c *Calculator) PaymentHistory(ctx context.Context, unitNumber string, year int, limit int) ([]ledger.Payment, error) {
	unit, err := c.store.UnitByNumber(ctx, unitNumber)
	if err != nil {
		return nil, err
	}
	if unit == nil {
		return nil, &ledger.NotFoundError{Kind: "unit", Key: unitNumber}
	}
	if unit.DuesCategoryID == nil {
		return nil, nil
	}
	return c.store.RecentPayments(ctx, *unit.DuesCategoryID, year, limit)
}
