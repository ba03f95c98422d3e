/*
Package budget implements the budget-side calculations: YTD proration,
actual-vs-budget summaries, operating-budget totals, point-in-time account
balances and reserve-fund tracking.

Everything here is read-only arithmetic over a store snapshot. The
calculator holds no state beyond its configuration; it is safe to share
across request handlers.
*/
package budget

import (
	"github.com/shopspring/decimal"

	"github.com/dwcoa/finance-engine/ledger"
)

var (
	four   = decimal.NewFromInt(4)
	twelve = decimal.NewFromInt(12)
)

// Prorate converts an annual budget amount into the portion considered
// available as of a date, according to the line's timing pattern.
//
//   - monthly: annual * month / 12
//   - quarterly: annual * quarter / 4. The whole quarter's share unlocks at
//     quarter start. A competing historical formula unlocked it at quarter
//     end; that behavior was a bug and is not supported.
//   - annual: the full amount all year (the expense may land any time)
//
// Unknown timings fall back to annual, the safe over-estimate.
//
// Multiplication happens before division so that month 12 and Q4 return
// the annual amount exactly.
func Prorate(annual decimal.Decimal, timing ledger.Timing, asOf ledger.Date) decimal.Decimal {
	switch timing {
	case ledger.TimingMonthly:
		month := decimal.NewFromInt(int64(asOf.Month()))
		return annual.Mul(month).Div(twelve)
	case ledger.TimingQuarterly:
		quarter := decimal.NewFromInt(int64(asOf.Quarter()))
		return annual.Mul(quarter).Div(four)
	case ledger.TimingAnnual:
		return annual
	default:
		return annual
	}
}
