/*
Package ledger provides the core domain model for the association's
financial-tracking engine.

PURPOSE:
  This package contains the entities and store interfaces shared by every
  calculation component: categories, budgets, the bank-transaction ledger,
  units and their dues records, categorization rules, and budget locks.

KEY CONCEPTS IN THIS FILE (types.go):
  - Category: classification of money movement (Income/Expense/Transfer/Internal)
  - Budget: annual amount per (year, category) with an optional timing override
  - Transaction: an immutable bank-ledger row (only review state mutates)
  - Unit: a condominium unit with its ownership share and dues category
  - Timing: the proration schedule for a budget line

DESIGN PRINCIPLES:
  1. Precision: all money is decimal.Decimal; rounding to two places
     happens only at the serialization boundary.
  2. Explicitness: fallbacks (budget timing -> category timing -> monthly)
     and the unit-to-dues-category link are typed fields, not string
     conventions.
  3. Totality: a year with no data yields zero-valued results, not errors.

SEE ALSO:
  - store.go: persistence interfaces consumed by the engine
  - errors.go: error taxonomy
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY HELPERS
// =============================================================================

// Round2 rounds to two decimal places. Presentation-boundary use only;
// intermediate arithmetic stays at full precision.
func Round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// MustDecimal parses a decimal literal, returning zero on bad input.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// CATEGORY
// =============================================================================

type CategoryType string

const (
	TypeIncome   CategoryType = "Income"
	TypeExpense  CategoryType = "Expense"
	TypeTransfer CategoryType = "Transfer"
	TypeInternal CategoryType = "Internal"
)

// IsBudgetable reports whether the type participates in income/expense
// summaries. Transfer and Internal move money between accounts and only
// ever affect account balances.
func (t CategoryType) IsBudgetable() bool {
	return t == TypeIncome || t == TypeExpense
}

func (t CategoryType) Valid() bool {
	switch t {
	case TypeIncome, TypeExpense, TypeTransfer, TypeInternal:
		return true
	}
	return false
}

type CategoryID int64

type Category struct {
	ID             CategoryID
	Name           string // unique
	Type           CategoryType
	DefaultAccount string
	Active         bool
	DefaultTiming  *Timing // nil = no category-level default
}

// =============================================================================
// TIMING - Proration schedule for a budget line
// =============================================================================

type Timing string

const (
	TimingMonthly   Timing = "monthly"
	TimingQuarterly Timing = "quarterly"
	TimingAnnual    Timing = "annual"
)

func (t Timing) Valid() bool {
	switch t {
	case TimingMonthly, TimingQuarterly, TimingAnnual:
		return true
	}
	return false
}

// =============================================================================
// BUDGET
// =============================================================================

// Budget is one (year, category) budget entry. Timing overrides the
// category default when set.
type Budget struct {
	ID           int64
	Year         int
	CategoryID   CategoryID
	AnnualAmount decimal.Decimal
	Timing       *Timing
}

// BudgetLine is the joined view the summary builder consumes: every active
// category appears for the requested year, zero-filled when no budget row
// exists.
type BudgetLine struct {
	CategoryID     CategoryID
	CategoryName   string
	CategoryType   CategoryType
	AnnualAmount   decimal.Decimal
	BudgetTiming   *Timing // from the budget row
	CategoryTiming *Timing // category default
	HasBudgetRow   bool
}

// EffectiveTiming resolves the timing fallback chain:
// budget row override -> category default -> monthly.
func (l BudgetLine) EffectiveTiming() Timing {
	if l.BudgetTiming != nil {
		return *l.BudgetTiming
	}
	if l.CategoryTiming != nil {
		return *l.CategoryTiming
	}
	return TimingMonthly
}

// BudgetLock marks a finalized year. Locked years reject budget writes;
// reads are unaffected.
type BudgetLock struct {
	Year     int
	Locked   bool
	LockedAt *time.Time
	LockedBy string
}

// =============================================================================
// TRANSACTION - Immutable bank-ledger row
// =============================================================================

// Transaction mirrors one row of a bank CSV export. The running Balance is
// bank-supplied and authoritative; it is never recomputed from debits and
// credits. Only the category assignment and review flag mutate after import.
type Transaction struct {
	ID            int64
	AccountNumber string
	AccountName   string
	PostDate      Date
	Description   string
	CheckNumber   string
	Debit         *decimal.Decimal
	Credit        *decimal.Decimal
	Status        string
	Balance       decimal.Decimal

	CategoryID     *CategoryID
	AutoCategoryID *CategoryID
	Confidence     int
	NeedsReview    bool

	// ImportID groups rows from a single CSV upload.
	ImportID  string
	CreatedAt time.Time
}

// Amount returns the transaction's magnitude: credit if present, else debit.
func (t Transaction) Amount() decimal.Decimal {
	if t.Credit != nil {
		return *t.Credit
	}
	if t.Debit != nil {
		return *t.Debit
	}
	return decimal.Zero
}

// AccountBalance is one account's bank-reported balance at a point in time.
type AccountBalance struct {
	Name    string
	Balance decimal.Decimal
}

// Payment is a dues credit into a unit's dues category.
type Payment struct {
	Date        Date
	Amount      decimal.Decimal
	Description string
	Year        int
}

// =============================================================================
// UNITS AND DUES
// =============================================================================

// Unit is a condominium unit. OwnershipPct is the unit's fraction of the
// operating budget (all units sum to just under 1.0; the remainder is
// non-dues income such as interest). DuesCategoryID links the unit to the
// income category its dues payments land in.
type Unit struct {
	Number         string // e.g. "101"
	OwnershipPct   decimal.Decimal
	DuesCategoryID *CategoryID
}

// UnitPastDue is a manually seeded starting-debt figure for (unit, year),
// used to bootstrap the first tracked year or apply year-specific
// corrections. It is independent of the computed carryover.
type UnitPastDue struct {
	UnitNumber string
	Year       int
	Amount     decimal.Decimal
}

// =============================================================================
// CATEGORIZATION RULES
// =============================================================================

// Rule is a categorization rule consumed by the rules engine. Pattern is a
// case-insensitive regular expression matched against the description.
type Rule struct {
	ID           int64
	Pattern      string
	CategoryID   CategoryID
	CategoryName string
	Confidence   int
	Priority     int
	Active       bool
}

// Account maps a masked bank account number to its friendly name.
type Account struct {
	ID           int64
	MaskedNumber string
	Name         string
}
