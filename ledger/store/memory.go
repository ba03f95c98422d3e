// Package store provides an in-memory ledger.Store implementation for
// tests and development. The SQLite backend in store/sqlite is the
// production implementation; both must satisfy the same query semantics.
package store

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dwcoa/finance-engine/ledger"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	categories   []ledger.Category
	nextCategory ledger.CategoryID

	budgets    []ledger.Budget
	nextBudget int64
	locks      map[int]ledger.BudgetLock

	transactions []ledger.Transaction
	nextTx       int64

	accounts []ledger.Account

	units    []ledger.Unit
	pastDues map[pastDueKey]decimal.Decimal

	rules    []ledger.Rule
	nextRule int64

	config map[string]string
}

type pastDueKey struct {
	Unit string
	Year int
}

func NewMemory() *Memory {
	return &Memory{
		nextCategory: 1,
		nextBudget:   1,
		nextTx:       1,
		nextRule:     1,
		locks:        make(map[int]ledger.BudgetLock),
		pastDues:     make(map[pastDueKey]decimal.Decimal),
		config:       make(map[string]string),
	}
}

var _ ledger.Store = (*Memory)(nil)

// =============================================================================
// CATEGORIES
// =============================================================================

func (m *Memory) Categories(_ context.Context, activeOnly bool, typ *ledger.CategoryType) ([]ledger.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.Category
	for _, c := range m.categories {
		if activeOnly && !c.Active {
			continue
		}
		if typ != nil && c.Type != *typ {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *Memory) CategoryByID(_ context.Context, id ledger.CategoryID) (*ledger.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.categories {
		if c.ID == id {
			cc := c
			return &cc, nil
		}
	}
	return nil, nil
}

func (m *Memory) CategoryByName(_ context.Context, name string) (*ledger.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.categories {
		if c.Name == name {
			cc := c
			return &cc, nil
		}
	}
	return nil, nil
}

func (m *Memory) SaveCategory(_ context.Context, c *ledger.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.ID == 0 {
		c.ID = m.nextCategory
		m.nextCategory++
		m.categories = append(m.categories, *c)
		return nil
	}
	for i := range m.categories {
		if m.categories[i].ID == c.ID {
			m.categories[i] = *c
			return nil
		}
	}
	m.categories = append(m.categories, *c)
	return nil
}

func (m *Memory) TransactionCountByCategory(_ context.Context, id ledger.CategoryID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, tx := range m.transactions {
		if tx.CategoryID != nil && *tx.CategoryID == id {
			count++
		}
	}
	return count, nil
}

// =============================================================================
// BUDGETS
// =============================================================================

func (m *Memory) BudgetLines(ctx context.Context, year int) ([]ledger.BudgetLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byCategory := make(map[ledger.CategoryID]ledger.Budget)
	for _, b := range m.budgets {
		if b.Year == year {
			byCategory[b.CategoryID] = b
		}
	}

	var lines []ledger.BudgetLine
	for _, c := range m.categories {
		if !c.Active {
			continue
		}
		line := ledger.BudgetLine{
			CategoryID:     c.ID,
			CategoryName:   c.Name,
			CategoryType:   c.Type,
			AnnualAmount:   decimal.Zero,
			CategoryTiming: c.DefaultTiming,
		}
		if b, ok := byCategory[c.ID]; ok {
			line.AnnualAmount = b.AnnualAmount
			line.BudgetTiming = b.Timing
			line.HasBudgetRow = true
		}
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].CategoryType != lines[j].CategoryType {
			return lines[i].CategoryType < lines[j].CategoryType
		}
		return lines[i].CategoryName < lines[j].CategoryName
	})
	return lines, nil
}

func (m *Memory) UpsertBudget(_ context.Context, b ledger.Budget) (*ledger.Budget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.budgets {
		if m.budgets[i].Year == b.Year && m.budgets[i].CategoryID == b.CategoryID {
			m.budgets[i].AnnualAmount = b.AnnualAmount
			m.budgets[i].Timing = b.Timing
			out := m.budgets[i]
			return &out, nil
		}
	}
	b.ID = m.nextBudget
	m.nextBudget++
	m.budgets = append(m.budgets, b)
	out := b
	return &out, nil
}

func (m *Memory) CopyBudgets(_ context.Context, fromYear, toYear int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Replace semantics: drop existing target rows for copied categories.
	var copied int
	for _, src := range m.budgets {
		if src.Year != fromYear {
			continue
		}
		replaced := false
		for i := range m.budgets {
			if m.budgets[i].Year == toYear && m.budgets[i].CategoryID == src.CategoryID {
				m.budgets[i].AnnualAmount = src.AnnualAmount
				m.budgets[i].Timing = src.Timing
				replaced = true
				break
			}
		}
		if !replaced {
			m.budgets = append(m.budgets, ledger.Budget{
				ID:           m.nextBudget,
				Year:         toYear,
				CategoryID:   src.CategoryID,
				AnnualAmount: src.AnnualAmount,
				Timing:       src.Timing,
			})
			m.nextBudget++
		}
		copied++
	}

	var total int
	for _, b := range m.budgets {
		if b.Year == toYear {
			total++
		}
	}
	return total, nil
}

func (m *Memory) BudgetLock(_ context.Context, year int) (ledger.BudgetLock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if lock, ok := m.locks[year]; ok {
		return lock, nil
	}
	return ledger.BudgetLock{Year: year}, nil
}

func (m *Memory) SetBudgetLock(_ context.Context, year int, locked bool, lockedBy string) (ledger.BudgetLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	lock := ledger.BudgetLock{Year: year, Locked: locked, LockedAt: &now, LockedBy: lockedBy}
	m.locks[year] = lock
	return lock, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (m *Memory) InsertTransactions(_ context.Context, txs []ledger.Transaction) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var inserted, skipped int
	for _, tx := range txs {
		if m.duplicateLocked(tx) {
			skipped++
			continue
		}
		tx.ID = m.nextTx
		m.nextTx++
		if tx.CreatedAt.IsZero() {
			tx.CreatedAt = time.Now().UTC()
		}
		m.transactions = append(m.transactions, tx)
		inserted++
	}
	return inserted, skipped, nil
}

func (m *Memory) duplicateLocked(tx ledger.Transaction) bool {
	for _, ex := range m.transactions {
		if ex.AccountNumber == tx.AccountNumber &&
			ex.PostDate.Equal(tx.PostDate) &&
			ex.Description == tx.Description &&
			decimalPtrEqual(ex.Debit, tx.Debit) &&
			decimalPtrEqual(ex.Credit, tx.Credit) {
			return true
		}
	}
	return false
}

func decimalPtrEqual(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func (m *Memory) ListTransactions(_ context.Context, f ledger.TxFilter) ([]ledger.Transaction, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []ledger.Transaction
	for _, tx := range m.transactions {
		if f.Year != nil && tx.PostDate.Year() != *f.Year {
			continue
		}
		if f.Account != "" && tx.AccountName != f.Account {
			continue
		}
		if f.CategoryID != nil && (tx.CategoryID == nil || *tx.CategoryID != *f.CategoryID) {
			continue
		}
		if f.NeedsReview != nil && tx.NeedsReview != *f.NeedsReview {
			continue
		}
		matched = append(matched, tx)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].PostDate.Equal(matched[j].PostDate) {
			return matched[i].PostDate.After(matched[j].PostDate)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	start := f.Offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (m *Memory) SetTransactionCategory(_ context.Context, id int64, categoryID *ledger.CategoryID, needsReview bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.transactions {
		if m.transactions[i].ID == id {
			m.transactions[i].CategoryID = categoryID
			m.transactions[i].NeedsReview = needsReview
			return nil
		}
	}
	return &ledger.NotFoundError{Kind: "transaction", Key: formatInt(id)}
}

func (m *Memory) NeedsReviewCount(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, tx := range m.transactions {
		if tx.NeedsReview {
			count++
		}
	}
	return count, nil
}

func (m *Memory) ActualsByCategory(_ context.Context, year int, asOf ledger.Date) (map[ledger.CategoryID]decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	types := make(map[ledger.CategoryID]ledger.CategoryType, len(m.categories))
	for _, c := range m.categories {
		types[c.ID] = c.Type
	}

	out := make(map[ledger.CategoryID]decimal.Decimal)
	for _, tx := range m.transactions {
		if tx.CategoryID == nil || tx.PostDate.Year() != year || tx.PostDate.After(asOf) {
			continue
		}
		typ, ok := types[*tx.CategoryID]
		if !ok || !typ.IsBudgetable() {
			continue
		}
		var amt decimal.Decimal
		if typ == ledger.TypeIncome {
			if tx.Credit != nil {
				amt = *tx.Credit
			}
		} else if tx.Debit != nil {
			amt = *tx.Debit
		}
		out[*tx.CategoryID] = out[*tx.CategoryID].Add(amt)
	}
	return out, nil
}

func (m *Memory) AccountBalances(_ context.Context, asOf ledger.Date) ([]ledger.AccountBalance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	latest := make(map[string]ledger.Transaction)
	for _, tx := range m.transactions {
		if tx.PostDate.After(asOf) {
			continue
		}
		cur, ok := latest[tx.AccountName]
		if !ok || tx.PostDate.After(cur.PostDate) ||
			(tx.PostDate.Equal(cur.PostDate) && tx.ID > cur.ID) {
			latest[tx.AccountName] = tx
		}
	}

	names := make([]string, 0, len(latest))
	for name := range latest {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]ledger.AccountBalance, 0, len(names))
	for _, name := range names {
		out = append(out, ledger.AccountBalance{Name: name, Balance: latest[name].Balance})
	}
	return out, nil
}

func (m *Memory) CategoryCredits(_ context.Context, id ledger.CategoryID, year int, asOf ledger.Date) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := decimal.Zero
	for _, tx := range m.transactions {
		if tx.CategoryID == nil || *tx.CategoryID != id || tx.Credit == nil {
			continue
		}
		if tx.PostDate.Year() != year || tx.PostDate.After(asOf) {
			continue
		}
		total = total.Add(*tx.Credit)
	}
	return total, nil
}

func (m *Memory) AccountDebits(_ context.Context, accountName string, year int, asOf ledger.Date) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := decimal.Zero
	for _, tx := range m.transactions {
		if tx.AccountName != accountName || tx.Debit == nil {
			continue
		}
		if tx.PostDate.Year() != year || tx.PostDate.After(asOf) {
			continue
		}
		total = total.Add(*tx.Debit)
	}
	return total, nil
}

func (m *Memory) RecentPayments(_ context.Context, id ledger.CategoryID, year int, limit int) ([]ledger.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var payments []ledger.Payment
	for _, tx := range m.transactions {
		if tx.CategoryID == nil || *tx.CategoryID != id || tx.Credit == nil || tx.Credit.IsZero() {
			continue
		}
		if tx.PostDate.Year() != year {
			continue
		}
		payments = append(payments, ledger.Payment{
			Date:        tx.PostDate,
			Amount:      *tx.Credit,
			Description: tx.Description,
			Year:        year,
		})
	}
	sort.Slice(payments, func(i, j int) bool {
		return payments[i].Date.After(payments[j].Date)
	})
	if limit > 0 && len(payments) > limit {
		payments = payments[:limit]
	}
	return payments, nil
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (m *Memory) Accounts(_ context.Context) ([]ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledger.Account, len(m.accounts))
	copy(out, m.accounts)
	return out, nil
}

func (m *Memory) AccountName(_ context.Context, maskedNumber string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.accounts {
		if a.MaskedNumber == maskedNumber {
			return a.Name, nil
		}
	}
	return "", nil
}

// AddAccount seeds an account mapping (test/dev helper).
func (m *Memory) AddAccount(a ledger.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = int64(len(m.accounts) + 1)
	m.accounts = append(m.accounts, a)
}

// =============================================================================
// UNITS
// =============================================================================

func (m *Memory) Units(_ context.Context) ([]ledger.Unit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledger.Unit, len(m.units))
	copy(out, m.units)
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (m *Memory) UnitByNumber(_ context.Context, number string) (*ledger.Unit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.units {
		if u.Number == number {
			uu := u
			return &uu, nil
		}
	}
	return nil, nil
}

func (m *Memory) UnitPastDue(_ context.Context, unitNumber string, year int) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if amt, ok := m.pastDues[pastDueKey{unitNumber, year}]; ok {
		return amt, nil
	}
	return decimal.Zero, nil
}

func (m *Memory) HasUnitPastDue(_ context.Context, unitNumber string, year int) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.pastDues[pastDueKey{unitNumber, year}]
	return ok, nil
}

func (m *Memory) SetUnitPastDue(_ context.Context, unitNumber string, year int, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pastDues[pastDueKey{unitNumber, year}] = amount
	return nil
}

func (m *Memory) UnitPastDues(_ context.Context, year int) ([]ledger.UnitPastDue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.UnitPastDue
	for _, u := range m.units {
		amt := decimal.Zero
		if v, ok := m.pastDues[pastDueKey{u.Number, year}]; ok {
			amt = v
		}
		out = append(out, ledger.UnitPastDue{UnitNumber: u.Number, Year: year, Amount: amt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UnitNumber < out[j].UnitNumber })
	return out, nil
}

// AddUnit seeds a unit (test/dev helper).
func (m *Memory) AddUnit(u ledger.Unit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.units = append(m.units, u)
}

// =============================================================================
// RULES
// =============================================================================

func (m *Memory) Rules(_ context.Context, activeOnly bool) ([]ledger.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make(map[ledger.CategoryID]string, len(m.categories))
	for _, c := range m.categories {
		names[c.ID] = c.Name
	}

	var out []ledger.Rule
	for _, r := range m.rules {
		if activeOnly && !r.Active {
			continue
		}
		r.CategoryName = names[r.CategoryID]
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) RuleByID(_ context.Context, id int64) (*ledger.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rules {
		if r.ID == id {
			rr := r
			for _, c := range m.categories {
				if c.ID == r.CategoryID {
					rr.CategoryName = c.Name
				}
			}
			return &rr, nil
		}
	}
	return nil, nil
}

func (m *Memory) SaveRule(_ context.Context, r *ledger.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r.ID == 0 {
		r.ID = m.nextRule
		m.nextRule++
		m.rules = append(m.rules, *r)
		return nil
	}
	for i := range m.rules {
		if m.rules[i].ID == r.ID {
			m.rules[i] = *r
			return nil
		}
	}
	m.rules = append(m.rules, *r)
	return nil
}

func (m *Memory) DeleteRule(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rules {
		if m.rules[i].ID == id {
			m.rules = append(m.rules[:i], m.rules[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) RulePatternExists(_ context.Context, pattern string, excludeID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rules {
		if r.ID != excludeID && strings.EqualFold(r.Pattern, pattern) {
			return true, nil
		}
	}
	return false, nil
}

// =============================================================================
// CONFIG
// =============================================================================

func (m *Memory) ConfigValue(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config[key], nil
}

func (m *Memory) SetConfigValue(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config[key] = value
	return nil
}

func formatInt(id int64) string { return strconv.FormatInt(id, 10) }
