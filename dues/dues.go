/*
Package dues computes per-unit dues obligations: the multi-year carryover
balance, the current-year obligation, outstanding amounts, and the
per-unit financial statement with payment guidance.

TEMPORAL RULES:
  - Carryover for year Y depends only on years strictly before Y. It is
    never computed from transactions dated in Y or later.
  - A unit's paid-to-date figure counts only credits whose post date falls
    in the target year, through the as-of date. Prior-year payments are
    reflected through carryover instead.
  - Carryover may be negative: an overpaying unit carries a credit.

REGIMES:
  From Config.StartYear on, a unit's annual obligation is the operating
  budget times its ownership percentage. Before that, each unit had an
  independently budgeted dues category ("legacy" dues).
*/
package dues

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dwcoa/finance-engine/budget"
	"github.com/dwcoa/finance-engine/ledger"
)

// BaseTrackedYear is the first year with transaction data; the carryover
// walk starts here. Overridable via Config.
const BaseTrackedYear = 2025

// Config carries the regime boundaries.
type Config struct {
	// StartYear is the first calculated-dues year.
	StartYear int
	// BaseYear is the first year with tracked transactions.
	BaseYear int
}

func DefaultConfig() Config {
	return Config{StartYear: budget.CalculatedDuesStartYear, BaseYear: BaseTrackedYear}
}

// Store is the persistence slice the dues calculator needs.
type Store interface {
	ledger.UnitStore
	ledger.BudgetStore
	ledger.TransactionStore
}

// Calculator computes dues status and statements. Budget totals come from
// the budget calculator so both sides share one operating-budget
// definition.
type Calculator struct {
	store   Store
	budgets *budget.Calculator
	cfg     Config
}

func NewCalculator(store Store, budgets *budget.Calculator, cfg Config) *Calculator {
	return &Calculator{store: store, budgets: budgets, cfg: cfg}
}

// =============================================================================
// CARRYOVER
// =============================================================================

// Carryover computes the balance a unit carries into targetYear from all
// prior years.
//
// For targetYear at or before the base tracked year there is no history to
// walk; the seeded past-due figure (if any) is the carryover. Later years
// accumulate, per intermediate year y:
//
//	carryover = carryover + seeded_debt(y) + annual_dues(y) - payments(y)
//
// Payments for an intermediate year cover that entire year; the as-of
// date only constrains the target year's paid figure, never history.
func (c *Calculator) Carryover(ctx context.Context, unit ledger.Unit, targetYear int) (decimal.Decimal, error) {
	if targetYear <= c.cfg.BaseYear {
		return c.store.UnitPastDue(ctx, unit.Number, targetYear)
	}

	// A directly seeded figure for the target year wins over the walk:
	// it exists to apply manual corrections.
	if seeded, err := c.store.HasUnitPastDue(ctx, unit.Number, targetYear); err != nil {
		return decimal.Zero, err
	} else if seeded {
		return c.store.UnitPastDue(ctx, unit.Number, targetYear)
	}

	carryover := decimal.Zero
	for year := c.cfg.BaseYear; year < targetYear; year++ {
		seeded, err := c.store.UnitPastDue(ctx, unit.Number, year)
		if err != nil {
			return decimal.Zero, err
		}

		annualDues, err := c.annualDues(ctx, unit, year)
		if err != nil {
			return decimal.Zero, err
		}

		paid, err := c.paymentsForYear(ctx, unit, year, ledger.EndOfYear(year))
		if err != nil {
			return decimal.Zero, err
		}

		owed := carryover.Add(seeded).Add(annualDues)
		carryover = owed.Sub(paid)
	}
	return carryover, nil
}

// annualDues returns the unit's full-year obligation for a year under
// whichever regime applies.
func (c *Calculator) annualDues(ctx context.Context, unit ledger.Unit, year int) (decimal.Decimal, error) {
	if year >= c.cfg.StartYear {
		total, err := c.budgets.OperatingBudgetAnnual(ctx, year)
		if err != nil {
			return decimal.Zero, err
		}
		return total.Mul(unit.OwnershipPct), nil
	}
	return c.legacyDuesBudget(ctx, unit, year)
}

// legacyDuesBudget looks up the unit's own dues-category budget row.
func (c *Calculator) legacyDuesBudget(ctx context.Context, unit ledger.Unit, year int) (decimal.Decimal, error) {
	if unit.DuesCategoryID == nil {
		return decimal.Zero, nil
	}
	lines, err := c.store.BudgetLines(ctx, year)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load budget lines: %w", err)
	}
	for _, line := range lines {
		if line.CategoryID == *unit.DuesCategoryID {
			return line.AnnualAmount, nil
		}
	}
	return decimal.Zero, nil
}

// paymentsForYear sums credits into the unit's dues category for a year,
// through asOf.
func (c *Calculator) paymentsForYear(ctx context.Context, unit ledger.Unit, year int, asOf ledger.Date) (decimal.Decimal, error) {
	if unit.DuesCategoryID == nil {
		return decimal.Zero, nil
	}
	return c.store.CategoryCredits(ctx, *unit.DuesCategoryID, year, asOf)
}

// =============================================================================
// DUES STATUS
// =============================================================================

// UnitStatus is one unit's dues position.
type UnitStatus struct {
	Unit          string
	OwnershipPct  decimal.Decimal
	Carryover     decimal.Decimal // balance from prior years (negative = credit)
	AnnualBudget  decimal.Decimal // this year's obligation
	ExpectedTotal decimal.Decimal // carryover + annual budget
	PaidYTD       decimal.Decimal
	Outstanding   decimal.Decimal // expected - paid (negative = ahead)
}

// Status is the association-wide dues picture for a year.
type Status struct {
	Year                 int
	AsOf                 ledger.Date
	TotalAnnualBudget    decimal.Decimal // sum of per-unit expected totals
	TotalOperatingBudget decimal.Decimal // annual operating budget (calculated years)
	Calculated           bool
	Units                []UnitStatus
}

// Status computes every unit's dues position for a year as of a date.
func (c *Calculator) Status(ctx context.Context, year int, asOf ledger.Date) (*Status, error) {
	units, err := c.store.Units(ctx)
	if err != nil {
		return nil, fmt.Errorf("load units: %w", err)
	}

	status := &Status{
		Year:       year,
		AsOf:       asOf,
		Calculated: year >= c.cfg.StartYear,
	}

	if status.Calculated {
		status.TotalOperatingBudget, err = c.budgets.OperatingBudgetAnnual(ctx, year)
		if err != nil {
			return nil, err
		}
	}

	for _, unit := range units {
		carryover, err := c.Carryover(ctx, unit, year)
		if err != nil {
			return nil, fmt.Errorf("carryover for unit %s: %w", unit.Number, err)
		}

		var annualBudget decimal.Decimal
		if status.Calculated {
			annualBudget = status.TotalOperatingBudget.Mul(unit.OwnershipPct)
		} else {
			annualBudget, err = c.legacyDuesBudget(ctx, unit, year)
			if err != nil {
				return nil, err
			}
		}

		paid, err := c.paymentsForYear(ctx, unit, year, asOf)
		if err != nil {
			return nil, fmt.Errorf("payments for unit %s: %w", unit.Number, err)
		}

		expected := carryover.Add(annualBudget)
		status.TotalAnnualBudget = status.TotalAnnualBudget.Add(expected)

		status.Units = append(status.Units, UnitStatus{
			Unit:          unit.Number,
			OwnershipPct:  unit.OwnershipPct,
			Carryover:     carryover,
			AnnualBudget:  annualBudget,
			ExpectedTotal: expected,
			PaidYTD:       paid,
			Outstanding:   expected.Sub(paid),
		})
	}

	return status, nil
}

// =============================================================================
// PAST-DUE SEEDING
// =============================================================================

// SeedPastDue records a manually determined starting-debt figure for a
// unit and year. Negative seeds are rejected; credits arise from the
// carryover walk, not manual seeding.
func (c *Calculator) SeedPastDue(ctx context.Context, unitNumber string, year int, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return &ledger.ValidationError{Field: "past_due_balance", Reason: "cannot be negative"}
	}
	if year <= 0 {
		return &ledger.ValidationError{Field: "year", Reason: "must be a positive year"}
	}
	unit, err := c.store.UnitByNumber(ctx, unitNumber)
	if err != nil {
		return err
	}
	if unit == nil {
		return &ledger.NotFoundError{Kind: "unit", Key: unitNumber}
	}
	return c.store.SetUnitPastDue(ctx, unitNumber, year, amount)
}
