/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements ledger.Store (categories, budgets, transactions, accounts,
  units, rules, config) on SQLite. The same SQL shapes would port to
  PostgreSQL with minor dialect changes.

DECIMAL HANDLING:
  Money columns are TEXT holding exact decimal strings. Aggregates that
  must stay exact (actuals, credits, debits) are summed in Go with
  decimal.Decimal rather than with SQL SUM over floats.

DEDUPE:
  A unique index over (account_number, post_date, description, debit,
  credit) enforces idempotent CSV re-uploads; constraint violations are
  counted as skips, not errors.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of WAL mode. With a
  server-grade database the database's own concurrency control would
  replace this.

MIGRATION:
  Schema and seed data are embedded golang-migrate files applied on
  New(). See migrate.go.

SEE ALSO:
  - ledger/store.go: interface definitions
  - ledger/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/dwcoa/finance-engine/ledger"
)

// Store implements ledger.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at dbPath and applies migrations.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Writes are serialized by the mutex; a single connection also keeps
	// ":memory:" databases from evaporating between pooled connections.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// CATEGORY STORE
// =============================================================================

const categoryColumns = "id, name, type, default_account, active, default_timing"

func (s *Store) Categories(ctx context.Context, activeOnly bool, typ *ledger.CategoryType) ([]ledger.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + categoryColumns + " FROM categories"
	var conds []string
	var args []any
	if activeOnly {
		conds = append(conds, "active = 1")
	}
	if typ != nil {
		conds = append(conds, "type = ?")
		args = append(args, string(*typ))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY type, name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var cats []ledger.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (s *Store) CategoryByID(ctx context.Context, id ledger.CategoryID) (*ledger.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.categoryWhere(ctx, "id = ?", int64(id))
}

func (s *Store) CategoryByName(ctx context.Context, name string) (*ledger.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.categoryWhere(ctx, "name = ?", name)
}

func (s *Store) categoryWhere(ctx context.Context, cond string, arg any) (*ledger.Category, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+categoryColumns+" FROM categories WHERE "+cond, arg)

	var c ledger.Category
	var active int
	var timing sql.NullString
	err := row.Scan(&c.ID, &c.Name, &c.Type, &c.DefaultAccount, &active, &timing)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan category: %w", err)
	}
	c.Active = active != 0
	c.DefaultTiming = timingPtr(timing)
	return &c, nil
}

func (s *Store) SaveCategory(ctx context.Context, c *ledger.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == 0 {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO categories (name, type, default_account, active, default_timing)
			 VALUES (?, ?, ?, ?, ?)`,
			c.Name, string(c.Type), c.DefaultAccount, boolInt(c.Active), timingString(c.DefaultTiming),
		)
		if err != nil {
			return fmt.Errorf("failed to insert category: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		c.ID = ledger.CategoryID(id)
		return nil
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, type = ?, default_account = ?, active = ?, default_timing = ?
		 WHERE id = ?`,
		c.Name, string(c.Type), c.DefaultAccount, boolInt(c.Active), timingString(c.DefaultTiming), int64(c.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}
	return nil
}

func (s *Store) TransactionCountByCategory(ctx context.Context, id ledger.CategoryID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE category_id = ?", int64(id),
	).Scan(&count)
	return count, err
}

func scanCategory(rows *sql.Rows) (ledger.Category, error) {
	var c ledger.Category
	var active int
	var timing sql.NullString
	if err := rows.Scan(&c.ID, &c.Name, &c.Type, &c.DefaultAccount, &active, &timing); err != nil {
		return c, fmt.Errorf("failed to scan category: %w", err)
	}
	c.Active = active != 0
	c.DefaultTiming = timingPtr(timing)
	return c, nil
}

// =============================================================================
// BUDGET STORE
// =============================================================================

func (s *Store) BudgetLines(ctx context.Context, year int) ([]ledger.BudgetLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT c.id, c.name, c.type, c.default_timing, b.annual_amount, b.timing
		FROM categories c
		LEFT JOIN budgets b ON b.category_id = c.id AND b.year = ?
		WHERE c.active = 1
		ORDER BY c.type, c.name
	`
	rows, err := s.db.QueryContext(ctx, query, year)
	if err != nil {
		return nil, fmt.Errorf("failed to query budget lines: %w", err)
	}
	defer rows.Close()

	var lines []ledger.BudgetLine
	for rows.Next() {
		var l ledger.BudgetLine
		var catTiming, amount, budTiming sql.NullString
		if err := rows.Scan(&l.CategoryID, &l.CategoryName, &l.CategoryType, &catTiming, &amount, &budTiming); err != nil {
			return nil, fmt.Errorf("failed to scan budget line: %w", err)
		}
		l.CategoryTiming = timingPtr(catTiming)
		l.BudgetTiming = timingPtr(budTiming)
		if amount.Valid {
			l.AnnualAmount = ledger.MustDecimal(amount.String)
			l.HasBudgetRow = true
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (s *Store) UpsertBudget(ctx context.Context, b ledger.Budget) (*ledger.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO budgets (year, category_id, annual_amount, timing)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(year, category_id) DO UPDATE SET
			annual_amount = excluded.annual_amount,
			timing = excluded.timing
	`
	_, err := s.db.ExecContext(ctx, query,
		b.Year, int64(b.CategoryID), b.AnnualAmount.String(), timingString(b.Timing),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert budget: %w", err)
	}

	row := s.db.QueryRowContext(ctx,
		"SELECT id, year, category_id, annual_amount, timing FROM budgets WHERE year = ? AND category_id = ?",
		b.Year, int64(b.CategoryID),
	)
	var saved ledger.Budget
	var amount string
	var timing sql.NullString
	if err := row.Scan(&saved.ID, &saved.Year, &saved.CategoryID, &amount, &timing); err != nil {
		return nil, fmt.Errorf("failed to reload budget: %w", err)
	}
	saved.AnnualAmount = ledger.MustDecimal(amount)
	saved.Timing = timingPtr(timing)
	return &saved, nil
}

func (s *Store) CopyBudgets(ctx context.Context, fromYear, toYear int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM budgets WHERE year = ?", toYear); err != nil {
		return 0, fmt.Errorf("failed to clear target year: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO budgets (year, category_id, annual_amount, timing)
		 SELECT ?, category_id, annual_amount, timing FROM budgets WHERE year = ?`,
		toYear, fromYear,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to copy budgets: %w", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(count), tx.Commit()
}

func (s *Store) BudgetLock(ctx context.Context, year int) (ledger.BudgetLock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lock := ledger.BudgetLock{Year: year}
	var locked int
	var lockedAt, lockedBy sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT locked, locked_at, locked_by FROM budget_locks WHERE year = ?", year,
	).Scan(&locked, &lockedAt, &lockedBy)
	if err == sql.ErrNoRows {
		return lock, nil
	}
	if err != nil {
		return lock, fmt.Errorf("failed to query budget lock: %w", err)
	}
	lock.Locked = locked != 0
	lock.LockedBy = lockedBy.String
	if lockedAt.Valid {
		if t, err := time.Parse(time.RFC3339, lockedAt.String); err == nil {
			lock.LockedAt = &t
		}
	}
	return lock, nil
}

func (s *Store) SetBudgetLock(ctx context.Context, year int, locked bool, lockedBy string) (ledger.BudgetLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var lockedAt, by any
	if locked {
		lockedAt = now.Format(time.RFC3339)
		by = lockedBy
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO budget_locks (year, locked, locked_at, locked_by)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(year) DO UPDATE SET
			locked = excluded.locked,
			locked_at = excluded.locked_at,
			locked_by = excluded.locked_by`,
		year, boolInt(locked), lockedAt, by,
	)
	if err != nil {
		return ledger.BudgetLock{}, fmt.Errorf("failed to set budget lock: %w", err)
	}

	lock := ledger.BudgetLock{Year: year, Locked: locked}
	if locked {
		lock.LockedAt = &now
		lock.LockedBy = lockedBy
	}
	return lock, nil
}

// =============================================================================
// TRANSACTION STORE
// =============================================================================

const txColumns = `id, account_number, account_name, post_date, description, check_number,
	debit, credit, status, balance, category_id, auto_category_id, confidence,
	needs_review, import_id, created_at`

func (s *Store) InsertTransactions(ctx context.Context, txs []ledger.Transaction) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	query := `
		INSERT INTO transactions
		(account_number, account_name, post_date, description, check_number,
		 debit, credit, status, balance, category_id, auto_category_id,
		 confidence, needs_review, import_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	inserted, skipped := 0, 0
	for _, t := range txs {
		createdAt := t.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := sqlTx.ExecContext(ctx, query,
			t.AccountNumber, t.AccountName, t.PostDate.String(), t.Description, t.CheckNumber,
			decimalString(t.Debit), decimalString(t.Credit), t.Status, t.Balance.String(),
			categoryIDValue(t.CategoryID), categoryIDValue(t.AutoCategoryID),
			t.Confidence, boolInt(t.NeedsReview), t.ImportID,
			createdAt.Format(time.RFC3339),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				skipped++
				continue
			}
			return 0, 0, fmt.Errorf("failed to insert transaction: %w", err)
		}
		inserted++
	}
	return inserted, skipped, sqlTx.Commit()
}

func (s *Store) ListTransactions(ctx context.Context, f ledger.TxFilter) ([]ledger.Transaction, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var conds []string
	var args []any
	if f.Year != nil {
		conds = append(conds, "strftime('%Y', post_date) = ?")
		args = append(args, fmt.Sprintf("%04d", *f.Year))
	}
	if f.Account != "" {
		conds = append(conds, "account_name = ?")
		args = append(args, f.Account)
	}
	if f.CategoryID != nil {
		conds = append(conds, "category_id = ?")
		args = append(args, int64(*f.CategoryID))
	}
	if f.NeedsReview != nil {
		conds = append(conds, "needs_review = ?")
		args = append(args, boolInt(*f.NeedsReview))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	query := "SELECT " + txColumns + " FROM transactions" + where + " ORDER BY post_date DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []ledger.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		txs = append(txs, t)
	}
	return txs, total, rows.Err()
}

func (s *Store) SetTransactionCategory(ctx context.Context, id int64, categoryID *ledger.CategoryID, needsReview bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE transactions SET category_id = ?, needs_review = ? WHERE id = ?",
		categoryIDValue(categoryID), boolInt(needsReview), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction category: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &ledger.NotFoundError{Kind: "transaction", Key: fmt.Sprintf("%d", id)}
	}
	return nil
}

func (s *Store) NeedsReviewCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions WHERE needs_review = 1").Scan(&count)
	return count, err
}

func (s *Store) ActualsByCategory(ctx context.Context, year int, asOf ledger.Date) (map[ledger.CategoryID]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Decimal sums happen in Go; SQL SUM would go through floats.
	query := `
		SELECT t.category_id, c.type, t.debit, t.credit
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.category_id IS NOT NULL
		  AND c.type IN ('Income', 'Expense')
		  AND strftime('%Y', t.post_date) = ?
		  AND t.post_date <= ?
	`
	rows, err := s.db.QueryContext(ctx, query, fmt.Sprintf("%04d", year), asOf.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query actuals: %w", err)
	}
	defer rows.Close()

	actuals := make(map[ledger.CategoryID]decimal.Decimal)
	for rows.Next() {
		var id ledger.CategoryID
		var typ ledger.CategoryType
		var debit, credit sql.NullString
		if err := rows.Scan(&id, &typ, &debit, &credit); err != nil {
			return nil, fmt.Errorf("failed to scan actuals row: %w", err)
		}
		var amount decimal.Decimal
		switch typ {
		case ledger.TypeIncome:
			if credit.Valid {
				amount = ledger.MustDecimal(credit.String)
			}
		case ledger.TypeExpense:
			if debit.Valid {
				amount = ledger.MustDecimal(debit.String)
			}
		}
		if !amount.IsZero() {
			actuals[id] = actuals[id].Add(amount)
		}
	}
	return actuals, rows.Err()
}

func (s *Store) AccountBalances(ctx context.Context, asOf ledger.Date) ([]ledger.AccountBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Latest row per account by post_date, ties broken by highest id.
	query := `
		SELECT t.account_name, t.balance
		FROM transactions t
		WHERE t.account_name != ''
		  AND t.id = (
			SELECT t2.id FROM transactions t2
			WHERE t2.account_name = t.account_name AND t2.post_date <= ?
			ORDER BY t2.post_date DESC, t2.id DESC
			LIMIT 1
		  )
		ORDER BY t.account_name
	`
	rows, err := s.db.QueryContext(ctx, query, asOf.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query account balances: %w", err)
	}
	defer rows.Close()

	var balances []ledger.AccountBalance
	for rows.Next() {
		var ab ledger.AccountBalance
		var balance string
		if err := rows.Scan(&ab.Name, &balance); err != nil {
			return nil, fmt.Errorf("failed to scan account balance: %w", err)
		}
		ab.Balance = ledger.MustDecimal(balance)
		balances = append(balances, ab)
	}
	return balances, rows.Err()
}

func (s *Store) CategoryCredits(ctx context.Context, id ledger.CategoryID, year int, asOf ledger.Date) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT credit FROM transactions
		WHERE category_id = ? AND credit IS NOT NULL
		  AND strftime('%Y', post_date) = ? AND post_date <= ?
	`
	return s.sumColumn(ctx, query, int64(id), fmt.Sprintf("%04d", year), asOf.String())
}

func (s *Store) AccountDebits(ctx context.Context, accountName string, year int, asOf ledger.Date) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT debit FROM transactions
		WHERE account_name = ? AND debit IS NOT NULL
		  AND strftime('%Y', post_date) = ? AND post_date <= ?
	`
	return s.sumColumn(ctx, query, accountName, fmt.Sprintf("%04d", year), asOf.String())
}

func (s *Store) sumColumn(ctx context.Context, query string, args ...any) (decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query sum: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, err
		}
		total = total.Add(ledger.MustDecimal(raw))
	}
	return total, rows.Err()
}

func (s *Store) RecentPayments(ctx context.Context, id ledger.CategoryID, year int, limit int) ([]ledger.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT post_date, credit, description FROM transactions
		WHERE category_id = ? AND credit IS NOT NULL
		  AND strftime('%Y', post_date) = ?
		ORDER BY post_date DESC, id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, int64(id), fmt.Sprintf("%04d", year), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []ledger.Payment
	for rows.Next() {
		var p ledger.Payment
		var date, credit string
		if err := rows.Scan(&date, &credit, &p.Description); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		p.Date, _ = ledger.ParseDate(date)
		p.Amount = ledger.MustDecimal(credit)
		p.Year = year
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func scanTransaction(rows *sql.Rows) (ledger.Transaction, error) {
	var (
		t                     ledger.Transaction
		postDate, balance     string
		debit, credit         sql.NullString
		categoryID, autoCatID sql.NullInt64
		needsReview           int
		createdAt             string
	)
	err := rows.Scan(
		&t.ID, &t.AccountNumber, &t.AccountName, &postDate, &t.Description, &t.CheckNumber,
		&debit, &credit, &t.Status, &balance, &categoryID, &autoCatID, &t.Confidence,
		&needsReview, &t.ImportID, &createdAt,
	)
	if err != nil {
		return t, fmt.Errorf("failed to scan transaction: %w", err)
	}
	t.PostDate, _ = ledger.ParseDate(postDate)
	t.Balance = ledger.MustDecimal(balance)
	t.Debit = nullDecimal(debit)
	t.Credit = nullDecimal(credit)
	t.CategoryID = nullCategoryID(categoryID)
	t.AutoCategoryID = nullCategoryID(autoCatID)
	t.NeedsReview = needsReview != 0
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return t, nil
}

// =============================================================================
// ACCOUNT STORE
// =============================================================================

func (s *Store) Accounts(ctx context.Context) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, masked_number, name FROM accounts ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		var a ledger.Account
		if err := rows.Scan(&a.ID, &a.MaskedNumber, &a.Name); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (s *Store) AccountName(ctx context.Context, maskedNumber string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var name string
	err := s.db.QueryRowContext(ctx,
		"SELECT name FROM accounts WHERE masked_number = ?", maskedNumber,
	).Scan(&name)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query account name: %w", err)
	}
	return name, nil
}

// =============================================================================
// UNIT STORE
// =============================================================================

func (s *Store) Units(ctx context.Context) ([]ledger.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT number, ownership_pct, dues_category_id FROM units ORDER BY number")
	if err != nil {
		return nil, fmt.Errorf("failed to query units: %w", err)
	}
	defer rows.Close()

	var units []ledger.Unit
	for rows.Next() {
		var u ledger.Unit
		var pct string
		var duesCat sql.NullInt64
		if err := rows.Scan(&u.Number, &pct, &duesCat); err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		u.OwnershipPct = ledger.MustDecimal(pct)
		u.DuesCategoryID = nullCategoryID(duesCat)
		units = append(units, u)
	}
	return units, rows.Err()
}

func (s *Store) UnitByNumber(ctx context.Context, number string) (*ledger.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var u ledger.Unit
	var pct string
	var duesCat sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT number, ownership_pct, dues_category_id FROM units WHERE number = ?", number,
	).Scan(&u.Number, &pct, &duesCat)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query unit: %w", err)
	}
	u.OwnershipPct = ledger.MustDecimal(pct)
	u.DuesCategoryID = nullCategoryID(duesCat)
	return &u, nil
}

func (s *Store) UnitPastDue(ctx context.Context, unitNumber string, year int) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var amount string
	err := s.db.QueryRowContext(ctx,
		"SELECT amount FROM unit_past_dues WHERE unit_number = ? AND year = ?",
		unitNumber, year,
	).Scan(&amount)
	if err == sql.ErrNoRows {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query past due: %w", err)
	}
	return ledger.MustDecimal(amount), nil
}

func (s *Store) HasUnitPastDue(ctx context.Context, unitNumber string, year int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM unit_past_dues WHERE unit_number = ? AND year = ?",
		unitNumber, year,
	).Scan(&count)
	return count > 0, err
}

func (s *Store) SetUnitPastDue(ctx context.Context, unitNumber string, year int, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO unit_past_dues (unit_number, year, amount)
		 VALUES (?, ?, ?)
		 ON CONFLICT(unit_number, year) DO UPDATE SET amount = excluded.amount`,
		unitNumber, year, amount.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to set past due: %w", err)
	}
	return nil
}

func (s *Store) UnitPastDues(ctx context.Context, year int) ([]ledger.UnitPastDue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT u.number, COALESCE(p.amount, '0')
		FROM units u
		LEFT JOIN unit_past_dues p ON p.unit_number = u.number AND p.year = ?
		ORDER BY u.number
	`
	rows, err := s.db.QueryContext(ctx, query, year)
	if err != nil {
		return nil, fmt.Errorf("failed to query past dues: %w", err)
	}
	defer rows.Close()

	var dues []ledger.UnitPastDue
	for rows.Next() {
		var d ledger.UnitPastDue
		var amount string
		if err := rows.Scan(&d.UnitNumber, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan past due: %w", err)
		}
		d.Year = year
		d.Amount = ledger.MustDecimal(amount)
		dues = append(dues, d)
	}
	return dues, rows.Err()
}

// =============================================================================
// RULE STORE
// =============================================================================

const ruleColumns = `r.id, r.pattern, r.category_id, c.name, r.confidence, r.priority, r.active`

func (s *Store) Rules(ctx context.Context, activeOnly bool) ([]ledger.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + ruleColumns + " FROM rules r JOIN categories c ON c.id = r.category_id"
	if activeOnly {
		query += " WHERE r.active = 1"
	}
	query += " ORDER BY r.priority DESC, r.id"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []ledger.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func (s *Store) RuleByID(ctx context.Context, id int64) (*ledger.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+ruleColumns+" FROM rules r JOIN categories c ON c.id = r.category_id WHERE r.id = ?", id)

	var r ledger.Rule
	var active int
	err := row.Scan(&r.ID, &r.Pattern, &r.CategoryID, &r.CategoryName, &r.Confidence, &r.Priority, &active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan rule: %w", err)
	}
	r.Active = active != 0
	return &r, nil
}

func (s *Store) SaveRule(ctx context.Context, r *ledger.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == 0 {
		res, err := s.db.ExecContext(ctx,
			"INSERT INTO rules (pattern, category_id, confidence, priority, active) VALUES (?, ?, ?, ?, ?)",
			r.Pattern, int64(r.CategoryID), r.Confidence, r.Priority, boolInt(r.Active),
		)
		if err != nil {
			return fmt.Errorf("failed to insert rule: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		r.ID = id
		return nil
	}

	_, err := s.db.ExecContext(ctx,
		"UPDATE rules SET pattern = ?, category_id = ?, confidence = ?, priority = ?, active = ? WHERE id = ?",
		r.Pattern, int64(r.CategoryID), r.Confidence, r.Priority, boolInt(r.Active), r.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	return nil
}

func (s *Store) DeleteRule(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM rules WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete rule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *Store) RulePatternExists(ctx context.Context, pattern string, excludeID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM rules WHERE LOWER(pattern) = LOWER(?) AND id != ?",
		pattern, excludeID,
	).Scan(&count)
	return count > 0, err
}

func scanRule(rows *sql.Rows) (ledger.Rule, error) {
	var r ledger.Rule
	var active int
	if err := rows.Scan(&r.ID, &r.Pattern, &r.CategoryID, &r.CategoryName, &r.Confidence, &r.Priority, &active); err != nil {
		return r, fmt.Errorf("failed to scan rule: %w", err)
	}
	r.Active = active != 0
	return r, nil
}

// =============================================================================
// CONFIG STORE
// =============================================================================

func (s *Store) ConfigValue(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM app_config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query config: %w", err)
	}
	return value, nil
}

func (s *Store) SetConfigValue(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO app_config (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set config: %w", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func timingString(t *ledger.Timing) any {
	if t == nil {
		return nil
	}
	return string(*t)
}

func timingPtr(ns sql.NullString) *ledger.Timing {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := ledger.Timing(ns.String)
	return &t
}

func decimalString(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func nullDecimal(ns sql.NullString) *decimal.Decimal {
	if !ns.Valid {
		return nil
	}
	d := ledger.MustDecimal(ns.String)
	return &d
}

func categoryIDValue(id *ledger.CategoryID) any {
	if id == nil {
		return nil
	}
	return int64(*id)
}

func nullCategoryID(ni sql.NullInt64) *ledger.CategoryID {
	if !ni.Valid {
		return nil
	}
	id := ledger.CategoryID(ni.Int64)
	return &id
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ ledger.Store = (*Store)(nil)
