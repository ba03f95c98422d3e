package budget_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwcoa/finance-engine/ledger"
	"github.com/dwcoa/finance-engine/ledger/store"
)

func addBankRow(t *testing.T, mem *store.Memory, account string, postDate ledger.Date, desc string, balance string) {
	t.Helper()
	credit := d("1")
	_, _, err := mem.InsertTransactions(context.Background(), []ledger.Transaction{{
		AccountNumber: "****" + account,
		AccountName:   account,
		PostDate:      postDate,
		Description:   desc,
		Credit:        &credit,
		Balance:       d(balance),
	}})
	require.NoError(t, err)
}

// =============================================================================
// ACCOUNT BALANCES - Bank-authoritative running balance
// =============================================================================

func TestAccountBalances_LatestRowWins(t *testing.T) {
	// GIVEN: Checking rows in January and March, and a later Savings row
	// WHEN: Asking for balances as of February vs June
	// THEN: Each account reports the bank balance from its latest row on
	//   or before the as-of date

	calc, mem := newCalc(t)
	addBankRow(t, mem, "Checking", date(2025, time.January, 10), "jan", "10000")
	addBankRow(t, mem, "Checking", date(2025, time.March, 10), "mar", "8000")
	addBankRow(t, mem, "Savings", date(2025, time.April, 1), "apr", "25000")

	balances, err := calc.AccountBalances(context.Background(), date(2025, time.February, 1))
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.Equal(t, "Checking", balances[0].Name)
	assert.True(t, balances[0].Balance.Equal(d("10000")), "got %s", balances[0].Balance)

	balances, err = calc.AccountBalances(context.Background(), date(2025, time.June, 1))
	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.True(t, balances[0].Balance.Equal(d("8000")), "got %s", balances[0].Balance)
	assert.True(t, balances[1].Balance.Equal(d("25000")), "got %s", balances[1].Balance)
}

func TestAccountBalances_SameDayTie_LastInsertedWins(t *testing.T) {
	// Two rows on the same post date: the later-inserted row carries the
	// later running balance.

	calc, mem := newCalc(t)
	addBankRow(t, mem, "Checking", date(2025, time.March, 10), "first", "9000")
	addBankRow(t, mem, "Checking", date(2025, time.March, 10), "second", "8500")

	balances, err := calc.AccountBalances(context.Background(), date(2025, time.March, 10))
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.True(t, balances[0].Balance.Equal(d("8500")), "got %s", balances[0].Balance)
}

func TestTotalCash_SumsAllAccounts(t *testing.T) {
	calc, mem := newCalc(t)
	addBankRow(t, mem, "Checking", date(2025, time.March, 10), "c", "8000")
	addBankRow(t, mem, "Savings", date(2025, time.March, 10), "s", "25000")
	addBankRow(t, mem, "Reserve Fund", date(2025, time.March, 10), "r", "40000")

	total, err := calc.TotalCash(context.Background(), date(2025, time.June, 1))
	require.NoError(t, err)
	assert.True(t, total.Equal(d("73000")), "got %s", total)
}

// =============================================================================
// RESERVE FUND
// =============================================================================

func TestReserveFundStatus(t *testing.T) {
	// GIVEN: A $12,000 reserve-contribution budget (monthly), $5,000 of
	//   contributions and $1,200 spent from the reserve account
	// WHEN: Checking as of June 30
	// THEN: Budget $6,000, net $3,800

	calc, mem := newCalc(t)
	ctx := context.Background()
	reserve := addCategory(t, mem, "Reserve Contribution", ledger.TypeExpense, nil)
	addBudget(t, mem, 2025, reserve, "12000")
	addCredit(t, mem, reserve, date(2025, time.February, 1), "2500")
	addCredit(t, mem, reserve, date(2025, time.May, 1), "2500")

	debit := d("1200")
	_, _, err := mem.InsertTransactions(ctx, []ledger.Transaction{{
		AccountNumber: "****5883",
		AccountName:   "Reserve Fund",
		PostDate:      date(2025, time.April, 10),
		Description:   "roof repair",
		Debit:         &debit,
	}})
	require.NoError(t, err)

	status, err := calc.ReserveFundStatus(ctx, 2025, date(2025, time.June, 30))
	require.NoError(t, err)

	assert.True(t, status.Budget.Equal(d("6000")), "got %s", status.Budget)
	assert.True(t, status.Contributions.Equal(d("5000")), "got %s", status.Contributions)
	assert.True(t, status.Expenses.Equal(d("1200")), "got %s", status.Expenses)
	assert.True(t, status.Net.Equal(d("3800")), "got %s", status.Net)
}

func TestReserveFundStatus_MissingCategory_AllZero(t *testing.T) {
	// No reserve category configured: a zero status, not an error.

	calc, _ := newCalc(t)
	status, err := calc.ReserveFundStatus(context.Background(), 2025, date(2025, time.June, 30))
	require.NoError(t, err)
	assert.True(t, status.Budget.IsZero())
	assert.True(t, status.Contributions.IsZero())
	assert.True(t, status.Expenses.IsZero())
	assert.True(t, status.Net.IsZero())
}
