// Package report assembles the dashboard and the year-end report data, the
// two read views that join budget, dues and account figures into a single
// payload.
package report

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/dwcoa/finance-engine/budget"
	"github.com/dwcoa/finance-engine/dues"
	"github.com/dwcoa/finance-engine/ledger"
)

// Store is the slice of the ledger store the assembler reads directly;
// the heavy lifting goes through the calculators.
type Store interface {
	ConfigValue(ctx context.Context, key string) (string, error)
	NeedsReviewCount(ctx context.Context) (int, error)
}

// Assembler builds composite read views.
type Assembler struct {
	store   Store
	budgets *budget.Calculator
	dues    *dues.Calculator
}

func NewAssembler(store Store, budgets *budget.Calculator, duesCalc *dues.Calculator) *Assembler {
	return &Assembler{store: store, budgets: budgets, dues: duesCalc}
}

// ResolveYear returns the requested year, or the configured current year,
// or the as-of date's year, in that order.
func (a *Assembler) ResolveYear(ctx context.Context, requested int, asOf ledger.Date) (int, error) {
	if requested > 0 {
		return requested, nil
	}
	raw, err := a.store.ConfigValue(ctx, ledger.ConfigCurrentYear)
	if err != nil {
		return 0, err
	}
	if raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("config %s: bad year %q", ledger.ConfigCurrentYear, raw)
		}
		return year, nil
	}
	return asOf.Year(), nil
}

// =============================================================================
// DASHBOARD
// =============================================================================

// Dashboard is the landing-page payload.
type Dashboard struct {
	Year        int
	AsOf        ledger.Date
	LastUpload  string
	TotalCash   decimal.Decimal
	Accounts    []ledger.AccountBalance
	Income      budget.IncomeSummary
	Expenses    budget.ExpenseSummary
	Dues        *dues.Status
	ReviewCount int
}

func (a *Assembler) Dashboard(ctx context.Context, year int, asOf ledger.Date) (*Dashboard, error) {
	resolved, err := a.ResolveYear(ctx, year, asOf)
	if err != nil {
		return nil, err
	}

	summary, err := a.budgets.Summary(ctx, resolved, asOf)
	if err != nil {
		return nil, fmt.Errorf("budget summary: %w", err)
	}
	accounts, err := a.budgets.AccountBalances(ctx, asOf)
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	for _, ab := range accounts {
		total = total.Add(ab.Balance)
	}
	duesStatus, err := a.dues.Status(ctx, resolved, asOf)
	if err != nil {
		return nil, fmt.Errorf("dues status: %w", err)
	}
	reviewCount, err := a.store.NeedsReviewCount(ctx)
	if err != nil {
		return nil, err
	}
	lastUpload, err := a.store.ConfigValue(ctx, ledger.ConfigLastUploadAt)
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		Year:        resolved,
		AsOf:        asOf,
		LastUpload:  lastUpload,
		TotalCash:   total,
		Accounts:    accounts,
		Income:      summary.Income,
		Expenses:    summary.Expense,
		Dues:        duesStatus,
		ReviewCount: reviewCount,
	}, nil
}

// =============================================================================
// REPORT DATA
// =============================================================================

// Report is the full financial report for a year: everything the dashboard
// shows plus the reserve fund and per-unit statements, suitable for
// rendering or export.
type Report struct {
	Year       int
	AsOf       ledger.Date
	Summary    *budget.Summary
	Accounts   []ledger.AccountBalance
	TotalCash  decimal.Decimal
	Reserve    *budget.ReserveStatus
	Dues       *dues.Status
	Statements []*dues.Statement
}

func (a *Assembler) Report(ctx context.Context, year int, asOf ledger.Date) (*Report, error) {
	resolved, err := a.ResolveYear(ctx, year, asOf)
	if err != nil {
		return nil, err
	}

	summary, err := a.budgets.Summary(ctx, resolved, asOf)
	if err != nil {
		return nil, err
	}
	accounts, err := a.budgets.AccountBalances(ctx, asOf)
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	for _, ab := range accounts {
		total = total.Add(ab.Balance)
	}
	reserve, err := a.budgets.ReserveFundStatus(ctx, resolved, asOf)
	if err != nil {
		return nil, err
	}
	duesStatus, err := a.dues.Status(ctx, resolved, asOf)
	if err != nil {
		return nil, err
	}

	rep := &Report{
		Year:      resolved,
		AsOf:      asOf,
		Summary:   summary,
		Accounts:  accounts,
		TotalCash: total,
		Reserve:   reserve,
		Dues:      duesStatus,
	}
	for _, u := range duesStatus.Units {
		st, err := a.dues.Statement(ctx, u.Unit, resolved, asOf)
		if err != nil {
			return nil, fmt.Errorf("statement for unit %s: %w", u.Unit, err)
		}
		rep.Statements = append(rep.Statements, st)
	}
	return rep, nil
}
