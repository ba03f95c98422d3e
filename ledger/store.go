/*
store.go - Persistence interfaces consumed by the engine

PURPOSE:
  Defines the boundary between the calculation engine and the database.
  The engine receives a store handle as an explicit constructor argument;
  there is no package-level connection state. Lifecycle belongs to the
  caller.

INTERFACE SEGREGATION:
  Each concern gets its own interface so engine components can declare the
  narrow dependency they actually use. Store is the union implemented by
  the real backends.

AGGREGATE QUERIES:
  The aggregation queries (ActualsByCategory, AccountBalances,
  CategoryCredits, AccountDebits) encode the spec's temporal filters:
  year of post_date, post_date <= as-of, and the Income/Expense-only rule
  for actuals. Implementations must preserve those filters exactly.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite backend
  - ledger/store: in-memory backend for tests and dev
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CATEGORY STORE
// =============================================================================

type CategoryStore interface {
	// Categories lists categories, optionally restricted to active ones
	// and/or a single type.
	Categories(ctx context.Context, activeOnly bool, typ *CategoryType) ([]Category, error)

	// CategoryByID returns nil, nil when the category does not exist.
	CategoryByID(ctx context.Context, id CategoryID) (*Category, error)

	// CategoryByName returns nil, nil when no category has that name.
	CategoryByName(ctx context.Context, name string) (*Category, error)

	// SaveCategory inserts (ID zero) or updates a category. On insert the
	// assigned ID is written back.
	SaveCategory(ctx context.Context, c *Category) error

	// TransactionCountByCategory reports how many ledger rows reference
	// the category. Used to decide deactivate-vs-delete.
	TransactionCountByCategory(ctx context.Context, id CategoryID) (int, error)
}

// =============================================================================
// BUDGET STORE
// =============================================================================

type BudgetStore interface {
	// BudgetLines returns one line per ACTIVE category for the year,
	// zero-filled where no budget row exists.
	BudgetLines(ctx context.Context, year int) ([]BudgetLine, error)

	// UpsertBudget inserts or updates the (year, category) entry.
	// Lock enforcement happens above the store.
	UpsertBudget(ctx context.Context, b Budget) (*Budget, error)

	// CopyBudgets copies every budget row from one year to another,
	// replacing existing target rows. Returns the target row count.
	CopyBudgets(ctx context.Context, fromYear, toYear int) (int, error)

	// BudgetLock returns the lock state for a year (unlocked when unset).
	BudgetLock(ctx context.Context, year int) (BudgetLock, error)

	// SetBudgetLock locks or unlocks a year.
	SetBudgetLock(ctx context.Context, year int, locked bool, lockedBy string) (BudgetLock, error)
}

// =============================================================================
// TRANSACTION STORE
// =============================================================================

// TxFilter is an AND-only predicate set for transaction listings. Filters
// apply in a fixed order; ordering of results is post_date DESC, id DESC.
type TxFilter struct {
	Year        *int
	Account     string
	CategoryID  *CategoryID
	NeedsReview *bool
	Limit       int
	Offset      int
}

type TransactionStore interface {
	// InsertTransactions appends imported rows, skipping duplicates
	// (same account, post date, description, debit and credit).
	// Returns inserted and skipped counts.
	InsertTransactions(ctx context.Context, txs []Transaction) (inserted, skipped int, err error)

	// ListTransactions returns a page of rows plus the unpaginated total.
	ListTransactions(ctx context.Context, f TxFilter) ([]Transaction, int, error)

	// SetTransactionCategory reassigns a row's category and review flag.
	// Everything else on a transaction is immutable.
	SetTransactionCategory(ctx context.Context, id int64, categoryID *CategoryID, needsReview bool) error

	// NeedsReviewCount counts rows awaiting review.
	NeedsReviewCount(ctx context.Context) (int, error)

	// ActualsByCategory sums credits (Income) / debits (Expense) per
	// category for year(post_date) == year AND post_date <= asOf.
	// Transfer/Internal categories and uncategorized rows are excluded.
	// Categories with no activity are absent from the map.
	ActualsByCategory(ctx context.Context, year int, asOf Date) (map[CategoryID]decimal.Decimal, error)

	// AccountBalances returns, per account, the bank-supplied running
	// balance of the latest row with post_date <= asOf (ties broken by
	// highest id). Balances are reported verbatim, never recomputed.
	AccountBalances(ctx context.Context, asOf Date) ([]AccountBalance, error)

	// CategoryCredits sums credits into one category for the year,
	// through asOf.
	CategoryCredits(ctx context.Context, id CategoryID, year int, asOf Date) (decimal.Decimal, error)

	// AccountDebits sums debits from one account for the year, through asOf.
	AccountDebits(ctx context.Context, accountName string, year int, asOf Date) (decimal.Decimal, error)

	// RecentPayments returns the latest credits into a category for the
	// year, newest first.
	RecentPayments(ctx context.Context, id CategoryID, year int, limit int) ([]Payment, error)
}

// =============================================================================
// ACCOUNT / UNIT / RULE / CONFIG STORES
// =============================================================================

type AccountStore interface {
	Accounts(ctx context.Context) ([]Account, error)

	// AccountName resolves a masked account number to its friendly name,
	// or "" when unmapped.
	AccountName(ctx context.Context, maskedNumber string) (string, error)
}

type UnitStore interface {
	Units(ctx context.Context) ([]Unit, error)

	// UnitByNumber returns nil, nil when the unit does not exist.
	UnitByNumber(ctx context.Context, number string) (*Unit, error)

	// UnitPastDue returns the seeded past-due amount for (unit, year),
	// zero when unset.
	UnitPastDue(ctx context.Context, unitNumber string, year int) (decimal.Decimal, error)

	// HasUnitPastDue reports whether a seeded figure exists for (unit, year).
	HasUnitPastDue(ctx context.Context, unitNumber string, year int) (bool, error)

	SetUnitPastDue(ctx context.Context, unitNumber string, year int, amount decimal.Decimal) error

	// UnitPastDues lists all units with their seeded figure for a year
	// (zero when unset).
	UnitPastDues(ctx context.Context, year int) ([]UnitPastDue, error)
}

type RuleStore interface {
	// Rules lists rules ordered by priority descending, then id.
	Rules(ctx context.Context, activeOnly bool) ([]Rule, error)

	// RuleByID returns nil, nil when the rule does not exist.
	RuleByID(ctx context.Context, id int64) (*Rule, error)

	// SaveRule inserts (ID zero) or updates a rule.
	SaveRule(ctx context.Context, r *Rule) error

	// DeleteRule removes a rule. Existing transactions keep their
	// categories.
	DeleteRule(ctx context.Context, id int64) (bool, error)

	// RulePatternExists checks for a case-insensitive duplicate pattern.
	RulePatternExists(ctx context.Context, pattern string, excludeID int64) (bool, error)
}

type ConfigStore interface {
	// ConfigValue returns "" when the key is unset.
	ConfigValue(ctx context.Context, key string) (string, error)
	SetConfigValue(ctx context.Context, key, value string) error
}

// Well-known config keys.
const (
	ConfigCurrentYear  = "current_year"
	ConfigLastUploadAt = "last_upload_at"
)

// =============================================================================
// STORE - Union of all persistence concerns
// =============================================================================

type Store interface {
	CategoryStore
	BudgetStore
	TransactionStore
	AccountStore
	UnitStore
	RuleStore
	ConfigStore
}
