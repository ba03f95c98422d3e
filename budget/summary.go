package budget

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dwcoa/finance-engine/ledger"
)

// CalculatedDuesStartYear is the first year in which unit dues are derived
// from the operating budget instead of independently budgeted per-unit
// amounts. Overridable via Calculator.StartYear.
const CalculatedDuesStartYear = 2025

// Store is the slice of persistence the budget calculator needs.
type Store interface {
	ledger.CategoryStore
	ledger.BudgetStore
	ledger.TransactionStore
	ledger.UnitStore
}

// Calculator computes budget summaries, operating-budget totals, account
// balances and reserve status against an explicitly provided store.
type Calculator struct {
	store Store

	// StartYear is the cutover year for calculated dues.
	StartYear int

	// ReserveCategoryName / ReserveAccountName identify the reserve
	// contribution category and the reserve bank account.
	ReserveCategoryName string
	ReserveAccountName  string
}

func NewCalculator(store Store) *Calculator {
	return &Calculator{
		store:               store,
		StartYear:           CalculatedDuesStartYear,
		ReserveCategoryName: "Reserve Contribution",
		ReserveAccountName:  "Reserve Fund",
	}
}

// =============================================================================
// SUMMARY TYPES
// =============================================================================

// CategoryLine is one category's budget-vs-actual detail.
type CategoryLine struct {
	CategoryID ledger.CategoryID
	Category   string
	Type       ledger.CategoryType
	Timing     ledger.Timing
	Annual     decimal.Decimal
	YTDBudget  decimal.Decimal
	YTDActual  decimal.Decimal
	Remaining  decimal.Decimal
}

type IncomeSummary struct {
	YTDBudget decimal.Decimal
	YTDActual decimal.Decimal

	// Calculated is set for years in the calculated-dues regime, where
	// the income budget is derived from the operating budget rather than
	// summed from dues-category budget rows.
	Calculated      bool
	OperatingBudget decimal.Decimal // annual operating budget, when Calculated

	Categories []CategoryLine
}

type ExpenseSummary struct {
	YTDBudget  decimal.Decimal
	YTDActual  decimal.Decimal
	Remaining  decimal.Decimal
	Categories []CategoryLine
}

type Summary struct {
	Year    int
	AsOf    ledger.Date
	Income  IncomeSummary
	Expense ExpenseSummary
}

// =============================================================================
// SUMMARY BUILDER
// =============================================================================

// Summary builds the income/expense budget summary for a year as of a
// date. A year with no budget rows yields a well-formed zero summary.
func (c *Calculator) Summary(ctx context.Context, year int, asOf ledger.Date) (*Summary, error) {
	lines, err := c.store.BudgetLines(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("load budget lines: %w", err)
	}

	actuals, err := c.store.ActualsByCategory(ctx, year, asOf)
	if err != nil {
		return nil, fmt.Errorf("load actuals: %w", err)
	}

	calculated := year >= c.StartYear
	duesCategories, err := c.duesCategorySet(ctx, calculated)
	if err != nil {
		return nil, err
	}

	s := &Summary{Year: year, AsOf: asOf}
	s.Income.Calculated = calculated

	// Accumulated across ALL expense lines, including zero/zero lines the
	// detail omits: the operating budget is defined over every active
	// expense category.
	operatingAnnual := decimal.Zero
	operatingYTD := decimal.Zero

	// Income budget from categories outside the dues scheme (e.g. interest).
	nonDuesIncomeYTD := decimal.Zero

	for _, line := range lines {
		timing := line.EffectiveTiming()
		ytdBudget := Prorate(line.AnnualAmount, timing, asOf)
		ytdActual := actuals[line.CategoryID]

		if line.CategoryType == ledger.TypeExpense {
			operatingAnnual = operatingAnnual.Add(line.AnnualAmount)
			operatingYTD = operatingYTD.Add(ytdBudget)
		}

		// A category budgeted at zero with no activity is noise.
		if ytdBudget.IsZero() && ytdActual.IsZero() {
			continue
		}

		detail := CategoryLine{
			CategoryID: line.CategoryID,
			Category:   line.CategoryName,
			Type:       line.CategoryType,
			Timing:     timing,
			Annual:     line.AnnualAmount,
			YTDBudget:  ytdBudget,
			YTDActual:  ytdActual,
			Remaining:  ytdBudget.Sub(ytdActual),
		}

		switch line.CategoryType {
		case ledger.TypeExpense:
			s.Expense.Categories = append(s.Expense.Categories, detail)
			s.Expense.YTDBudget = s.Expense.YTDBudget.Add(ytdBudget)
			s.Expense.YTDActual = s.Expense.YTDActual.Add(ytdActual)
		case ledger.TypeIncome:
			s.Income.Categories = append(s.Income.Categories, detail)
			s.Income.YTDActual = s.Income.YTDActual.Add(ytdActual)
			if calculated {
				if !duesCategories[line.CategoryID] {
					nonDuesIncomeYTD = nonDuesIncomeYTD.Add(ytdBudget)
				}
			} else {
				s.Income.YTDBudget = s.Income.YTDBudget.Add(ytdBudget)
			}
		}
	}

	if calculated {
		// From the cutover year on, dues income is by definition whatever
		// the association costs to run: the prorated operating budget
		// plus the real (non-dues) income budgets.
		s.Income.YTDBudget = operatingYTD.Add(nonDuesIncomeYTD)
		s.Income.OperatingBudget = operatingAnnual
	}

	s.Expense.Remaining = s.Expense.YTDBudget.Sub(s.Expense.YTDActual)
	return s, nil
}

// duesCategorySet returns the income categories that are some unit's dues
// category. Empty for legacy years.
func (c *Calculator) duesCategorySet(ctx context.Context, calculated bool) (map[ledger.CategoryID]bool, error) {
	set := make(map[ledger.CategoryID]bool)
	if !calculated {
		return set, nil
	}
	units, err := c.store.Units(ctx)
	if err != nil {
		return nil, fmt.Errorf("load units: %w", err)
	}
	for _, u := range units {
		if u.DuesCategoryID != nil {
			set[*u.DuesCategoryID] = true
		}
	}
	return set, nil
}

// =============================================================================
// OPERATING BUDGET TOTALS
// =============================================================================

// OperatingBudgetAnnual is the full-year operating budget: the sum of
// every active expense category's annual budget. This is the amount units
// collectively owe under calculated dues.
func (c *Calculator) OperatingBudgetAnnual(ctx context.Context, year int) (decimal.Decimal, error) {
	lines, err := c.store.BudgetLines(ctx, year)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load budget lines: %w", err)
	}
	total := decimal.Zero
	for _, line := range lines {
		if line.CategoryType == ledger.TypeExpense {
			total = total.Add(line.AnnualAmount)
		}
	}
	return total, nil
}

// OperatingBudgetYTD is the prorated operating budget as of a date.
func (c *Calculator) OperatingBudgetYTD(ctx context.Context, year int, asOf ledger.Date) (decimal.Decimal, error) {
	lines, err := c.store.BudgetLines(ctx, year)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load budget lines: %w", err)
	}
	total := decimal.Zero
	for _, line := range lines {
		if line.CategoryType == ledger.TypeExpense {
			total = total.Add(Prorate(line.AnnualAmount, line.EffectiveTiming(), asOf))
		}
	}
	return total, nil
}

// =============================================================================
// BUDGET WRITES - Lock-aware
// =============================================================================

// UpsertBudget creates or updates one (year, category) budget entry.
// Rejected with LockedBudgetError when the year is locked; the existing
// row is left untouched.
func (c *Calculator) UpsertBudget(ctx context.Context, b ledger.Budget) (*ledger.Budget, error) {
	if b.Year <= 0 {
		return nil, &ledger.ValidationError{Field: "year", Reason: "must be a positive year"}
	}
	if b.Timing != nil && !b.Timing.Valid() {
		return nil, &ledger.ValidationError{Field: "timing", Reason: "must be monthly, quarterly or annual"}
	}

	lock, err := c.store.BudgetLock(ctx, b.Year)
	if err != nil {
		return nil, fmt.Errorf("check budget lock: %w", err)
	}
	if lock.Locked {
		return nil, &ledger.LockedBudgetError{Year: b.Year}
	}

	cat, err := c.store.CategoryByID(ctx, b.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("load category: %w", err)
	}
	if cat == nil {
		return nil, &ledger.NotFoundError{Kind: "category", Key: fmt.Sprint(b.CategoryID)}
	}

	return c.store.UpsertBudget(ctx, b)
}

// CopyBudgets copies all budget rows from one year into another. The
// target year must be unlocked and the source year must have budgets.
func (c *Calculator) CopyBudgets(ctx context.Context, fromYear, toYear int) (int, error) {
	if fromYear == toYear {
		return 0, &ledger.ValidationError{Field: "to_year", Reason: "must differ from from_year"}
	}

	lock, err := c.store.BudgetLock(ctx, toYear)
	if err != nil {
		return 0, fmt.Errorf("check budget lock: %w", err)
	}
	if lock.Locked {
		return 0, &ledger.LockedBudgetError{Year: toYear}
	}

	lines, err := c.store.BudgetLines(ctx, fromYear)
	if err != nil {
		return 0, fmt.Errorf("load source budgets: %w", err)
	}
	hasRows := false
	for _, line := range lines {
		if line.HasBudgetRow {
			hasRows = true
			break
		}
	}
	if !hasRows {
		return 0, &ledger.ValidationError{Field: "from_year", Reason: fmt.Sprintf("no budgets found for %d", fromYear)}
	}

	return c.store.CopyBudgets(ctx, fromYear, toYear)
}

// Lock returns the lock status for a year.
func (c *Calculator) Lock(ctx context.Context, year int) (ledger.BudgetLock, error) {
	return c.store.BudgetLock(ctx, year)
}

// SetLock locks or unlocks a year's budget.
func (c *Calculator) SetLock(ctx context.Context, year int, locked bool, lockedBy string) (ledger.BudgetLock, error) {
	if year <= 0 {
		return ledger.BudgetLock{}, &ledger.ValidationError{Field: "year", Reason: "must be a positive year"}
	}
	return c.store.SetBudgetLock(ctx, year, locked, lockedBy)
}
