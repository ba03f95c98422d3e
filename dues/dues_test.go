package dues_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwcoa/finance-engine/budget"
	"github.com/dwcoa/finance-engine/dues"
	"github.com/dwcoa/finance-engine/ledger"
	"github.com/dwcoa/finance-engine/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func d(s string) decimal.Decimal {
	return ledger.MustDecimal(s)
}

func date(year int, month time.Month, day int) ledger.Date {
	return ledger.NewDate(year, month, day)
}

type fixture struct {
	mem     *store.Memory
	calc    *dues.Calculator
	duesCat ledger.CategoryID
	unit    ledger.Unit
}

// newFixture builds a memory store with one unit (101, 11.7%) linked to
// its dues category, under the default regime (2025 base year).
func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithConfig(t, dues.DefaultConfig())
}

func newFixtureWithConfig(t *testing.T, cfg dues.Config) *fixture {
	t.Helper()
	mem := store.NewMemory()
	duesCat := addCategory(t, mem, "Dues 101", ledger.TypeIncome)
	unit := ledger.Unit{Number: "101", OwnershipPct: d("0.117"), DuesCategoryID: &duesCat}
	mem.AddUnit(unit)

	budgets := budget.NewCalculator(mem)
	budgets.StartYear = cfg.StartYear

	return &fixture{
		mem:     mem,
		calc:    dues.NewCalculator(mem, budgets, cfg),
		duesCat: duesCat,
		unit:    unit,
	}
}

func addCategory(t *testing.T, mem *store.Memory, name string, typ ledger.CategoryType) ledger.CategoryID {
	t.Helper()
	c := ledger.Category{Name: name, Type: typ, Active: true}
	require.NoError(t, mem.SaveCategory(context.Background(), &c))
	return c.ID
}

func (f *fixture) addExpenseBudget(t *testing.T, year int, name, amount string) {
	t.Helper()
	cat, err := f.mem.CategoryByName(context.Background(), name)
	require.NoError(t, err)
	id := ledger.CategoryID(0)
	if cat != nil {
		id = cat.ID
	} else {
		id = addCategory(t, f.mem, name, ledger.TypeExpense)
	}
	_, err = f.mem.UpsertBudget(context.Background(), ledger.Budget{Year: year, CategoryID: id, AnnualAmount: d(amount)})
	require.NoError(t, err)
}

func (f *fixture) addDuesPayment(t *testing.T, postDate ledger.Date, amount string) {
	t.Helper()
	credit := d(amount)
	id := f.duesCat
	_, _, err := f.mem.InsertTransactions(context.Background(), []ledger.Transaction{{
		AccountNumber: "****0001",
		AccountName:   "Savings",
		PostDate:      postDate,
		Description:   "DEPOSIT unit 101 " + postDate.String(),
		Credit:        &credit,
		CategoryID:    &id,
	}})
	require.NoError(t, err)
}

// =============================================================================
// CARRYOVER
// =============================================================================

func TestCarryover_BaseYear_IsSeededDebtOnly(t *testing.T) {
	// The base tracked year has no prior transaction history: its
	// carryover is whatever was manually seeded, defaulting to zero.

	f := newFixture(t)
	ctx := context.Background()

	c, err := f.calc.Carryover(ctx, f.unit, 2025)
	require.NoError(t, err)
	assert.True(t, c.IsZero())

	require.NoError(t, f.mem.SetUnitPastDue(ctx, "101", 2025, d("732.50")))
	c, err = f.calc.Carryover(ctx, f.unit, 2025)
	require.NoError(t, err)
	assert.True(t, c.Equal(d("732.50")), "got %s", c)
}

func TestCarryover_UnderpaidYearCarriesDebt(t *testing.T) {
	// GIVEN: 2025 operating budget $50,000, unit owns 11.7% ($5,850 dues),
	//   and the unit paid $4,000 during 2025
	// WHEN: Computing carryover into 2026
	// THEN: $1,850 of debt carries forward

	f := newFixture(t)
	f.addExpenseBudget(t, 2025, "Landscaping", "50000")
	f.addDuesPayment(t, date(2025, time.March, 5), "2000")
	f.addDuesPayment(t, date(2025, time.November, 20), "2000")

	c, err := f.calc.Carryover(context.Background(), f.unit, 2026)
	require.NoError(t, err)
	assert.True(t, c.Equal(d("1850")), "got %s", c)
}

func TestCarryover_OverpaidYearCarriesCredit(t *testing.T) {
	// Overpayment carries forward as a negative balance.

	f := newFixture(t)
	f.addExpenseBudget(t, 2025, "Landscaping", "50000")
	f.addDuesPayment(t, date(2025, time.June, 1), "7000")

	c, err := f.calc.Carryover(context.Background(), f.unit, 2026)
	require.NoError(t, err)
	assert.True(t, c.Equal(d("-1150")), "got %s", c)
}

func TestCarryover_SeededIntermediateDebtAccumulates(t *testing.T) {
	// A seeded figure on an intermediate year adds to that year's
	// obligation during the walk.

	f := newFixture(t)
	ctx := context.Background()
	f.addExpenseBudget(t, 2025, "Landscaping", "50000")
	f.addDuesPayment(t, date(2025, time.June, 1), "4000")
	require.NoError(t, f.mem.SetUnitPastDue(ctx, "101", 2025, d("500")))

	c, err := f.calc.Carryover(ctx, f.unit, 2026)
	require.NoError(t, err)
	assert.True(t, c.Equal(d("2350")), "got %s", c)
}

func TestCarryover_SeededTargetYearOverridesWalk(t *testing.T) {
	// A figure seeded directly on the target year is a manual correction:
	// it wins over the computed walk.

	f := newFixture(t)
	ctx := context.Background()
	f.addExpenseBudget(t, 2025, "Landscaping", "50000")
	f.addDuesPayment(t, date(2025, time.June, 1), "4000")
	require.NoError(t, f.mem.SetUnitPastDue(ctx, "101", 2026, d("1200")))

	c, err := f.calc.Carryover(ctx, f.unit, 2026)
	require.NoError(t, err)
	assert.True(t, c.Equal(d("1200")), "got %s", c)
}

func TestCarryover_ZeroActivityYearChangesNothing(t *testing.T) {
	// A year with no budget and no payments passes the balance through
	// unchanged.

	f := newFixture(t)
	f.addExpenseBudget(t, 2025, "Landscaping", "50000")
	f.addDuesPayment(t, date(2025, time.June, 1), "4000")
	ctx := context.Background()

	into2026, err := f.calc.Carryover(ctx, f.unit, 2026)
	require.NoError(t, err)
	into2027, err := f.calc.Carryover(ctx, f.unit, 2027)
	require.NoError(t, err)
	assert.True(t, into2026.Equal(into2027), "2026=%s 2027=%s", into2026, into2027)
}

func TestCarryover_LegacyYears_UsePerUnitDuesBudget(t *testing.T) {
	// GIVEN: Tracking starts in 2023, before the calculated regime; the
	//   unit's dues category is budgeted $6,000/year
	// WHEN: 2023 is paid in full and 2024 is short $1,000
	// THEN: $1,000 carries into 2025

	cfg := dues.Config{StartYear: 2025, BaseYear: 2023}
	f := newFixtureWithConfig(t, cfg)
	ctx := context.Background()

	for _, year := range []int{2023, 2024} {
		_, err := f.mem.UpsertBudget(ctx, ledger.Budget{Year: year, CategoryID: f.duesCat, AnnualAmount: d("6000")})
		require.NoError(t, err)
	}
	f.addDuesPayment(t, date(2023, time.June, 1), "6000")
	f.addDuesPayment(t, date(2024, time.June, 1), "5000")

	c, err := f.calc.Carryover(ctx, f.unit, 2025)
	require.NoError(t, err)
	assert.True(t, c.Equal(d("1000")), "got %s", c)
}

// =============================================================================
// DUES STATUS
// =============================================================================

func TestStatus_CalculatedYear_ObligationFromOwnership(t *testing.T) {
	// 11.7% of a $50,000 operating budget is $5,850.

	f := newFixture(t)
	f.addExpenseBudget(t, 2025, "Landscaping", "50000")
	f.addDuesPayment(t, date(2025, time.February, 1), "1500")

	status, err := f.calc.Status(context.Background(), 2025, date(2025, time.June, 30))
	require.NoError(t, err)

	assert.True(t, status.Calculated)
	assert.True(t, status.TotalOperatingBudget.Equal(d("50000")))
	require.Len(t, status.Units, 1)

	u := status.Units[0]
	assert.Equal(t, "101", u.Unit)
	assert.True(t, u.AnnualBudget.Equal(d("5850")), "got %s", u.AnnualBudget)
	assert.True(t, u.ExpectedTotal.Equal(d("5850")), "got %s", u.ExpectedTotal)
	assert.True(t, u.PaidYTD.Equal(d("1500")), "got %s", u.PaidYTD)
	assert.True(t, u.Outstanding.Equal(d("4350")), "got %s", u.Outstanding)
}

func TestStatus_AsOfLimitsCurrentYearPaidOnly(t *testing.T) {
	// Payments after the as-of date are invisible to the paid figure, but
	// prior-year history always counts in full through carryover.

	f := newFixture(t)
	f.addExpenseBudget(t, 2025, "Landscaping", "50000")
	f.addExpenseBudget(t, 2026, "Landscaping", "50000")
	f.addDuesPayment(t, date(2025, time.December, 28), "5850") // full 2025
	f.addDuesPayment(t, date(2026, time.January, 10), "500")
	f.addDuesPayment(t, date(2026, time.August, 10), "500") // after as-of

	status, err := f.calc.Status(context.Background(), 2026, date(2026, time.June, 30))
	require.NoError(t, err)
	require.Len(t, status.Units, 1)

	u := status.Units[0]
	assert.True(t, u.Carryover.IsZero(), "got %s", u.Carryover)
	assert.True(t, u.PaidYTD.Equal(d("500")), "got %s", u.PaidYTD)
}

func TestStatus_UnitWithoutDuesCategory_PaysNothing(t *testing.T) {
	// A unit with no dues-category link still owes its share but can have
	// no recorded payments.

	f := newFixture(t)
	f.mem.AddUnit(ledger.Unit{Number: "102", OwnershipPct: d("0.104")})
	f.addExpenseBudget(t, 2025, "Landscaping", "50000")

	status, err := f.calc.Status(context.Background(), 2025, date(2025, time.June, 30))
	require.NoError(t, err)
	require.Len(t, status.Units, 2)

	assert.Equal(t, "102", status.Units[1].Unit)
	assert.True(t, status.Units[1].AnnualBudget.Equal(d("5200")), "got %s", status.Units[1].AnnualBudget)
	assert.True(t, status.Units[1].PaidYTD.IsZero())
}

// =============================================================================
// PAST-DUE SEEDING
// =============================================================================

func TestSeedPastDue_NegativeRejected(t *testing.T) {
	f := newFixture(t)
	err := f.calc.SeedPastDue(context.Background(), "101", 2025, d("-10"))
	var valErr *ledger.ValidationError
	assert.ErrorAs(t, err, &valErr)
}

func TestSeedPastDue_UnknownUnit(t *testing.T) {
	f := newFixture(t)
	err := f.calc.SeedPastDue(context.Background(), "999", 2025, d("100"))
	assert.True(t, ledger.IsNotFound(err), "got %v", err)
}

func TestSeedPastDue_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.calc.SeedPastDue(ctx, "101", 2025, d("732.50")))

	amt, err := f.mem.UnitPastDue(ctx, "101", 2025)
	require.NoError(t, err)
	assert.True(t, amt.Equal(d("732.50")), "got %s", amt)
}
