/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  All decimal amounts are rounded to two places and emitted as JSON
  numbers here, at the serialization boundary. Internal arithmetic is
  full-precision decimal throughout the engine.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/dwcoa/finance-engine/budget"
	"github.com/dwcoa/finance-engine/dues"
	"github.com/dwcoa/finance-engine/ledger"
)

// money converts a decimal to the two-place JSON number the API emits.
func money(d decimal.Decimal) float64 {
	return ledger.Round2(d).InexactFloat64()
}

func moneyPtr(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	v := money(*d)
	return &v
}

// =============================================================================
// ERRORS
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// BUDGETS
// =============================================================================

type BudgetLineDTO struct {
	CategoryID   int64   `json:"category_id"`
	Category     string  `json:"category"`
	Type         string  `json:"type"`
	AnnualAmount float64 `json:"annual_amount"`
	Timing       string  `json:"timing"`
	HasBudget    bool    `json:"has_budget"`
}

type UpsertBudgetRequest struct {
	Year         int     `json:"year"`
	CategoryID   int64   `json:"category_id"`
	AnnualAmount float64 `json:"annual_amount"`
	Timing       string  `json:"timing,omitempty"`
}

type CopyBudgetsRequest struct {
	FromYear int `json:"from_year"`
	ToYear   int `json:"to_year"`
}

type SetLockRequest struct {
	Locked   bool   `json:"locked"`
	LockedBy string `json:"locked_by,omitempty"`
}

type BudgetLockDTO struct {
	Year     int    `json:"year"`
	Locked   bool   `json:"locked"`
	LockedAt string `json:"locked_at,omitempty"`
	LockedBy string `json:"locked_by,omitempty"`
}

// =============================================================================
// SUMMARIES
// =============================================================================

type CategoryLineDTO struct {
	CategoryID int64   `json:"category_id"`
	Category   string  `json:"category"`
	Timing     string  `json:"timing"`
	Annual     float64 `json:"annual"`
	YTDBudget  float64 `json:"ytd_budget"`
	YTDActual  float64 `json:"ytd_actual"`
	Remaining  float64 `json:"remaining"`
}

type IncomeSummaryDTO struct {
	YTDBudget       float64           `json:"ytd_budget"`
	YTDActual       float64           `json:"ytd_actual"`
	Calculated      bool              `json:"calculated"`
	OperatingBudget float64           `json:"operating_budget"`
	Categories      []CategoryLineDTO `json:"categories"`
}

type ExpenseSummaryDTO struct {
	YTDBudget  float64           `json:"ytd_budget"`
	YTDActual  float64           `json:"ytd_actual"`
	Remaining  float64           `json:"remaining"`
	Categories []CategoryLineDTO `json:"categories"`
}

type SummaryDTO struct {
	Year     int               `json:"year"`
	AsOf     string            `json:"as_of"`
	Income   IncomeSummaryDTO  `json:"income"`
	Expenses ExpenseSummaryDTO `json:"expenses"`
}

type AccountBalanceDTO struct {
	Name    string  `json:"name"`
	Balance float64 `json:"balance"`
}

type BalancesDTO struct {
	AsOf      string              `json:"as_of"`
	Accounts  []AccountBalanceDTO `json:"accounts"`
	TotalCash float64             `json:"total_cash"`
}

type ReserveStatusDTO struct {
	Year          int     `json:"year"`
	AsOf          string  `json:"as_of"`
	Budget        float64 `json:"budget"`
	Contributions float64 `json:"contributions"`
	Expenses      float64 `json:"expenses"`
	Net           float64 `json:"net"`
}

// =============================================================================
// DUES
// =============================================================================

type UnitStatusDTO struct {
	Unit         string  `json:"unit"`
	OwnershipPct float64 `json:"ownership_pct"`
	Carryover    float64 `json:"carryover"`
	AnnualBudget float64 `json:"annual_budget"`
	ExpectedTotal float64 `json:"expected_total"`
	PaidYTD      float64 `json:"paid_ytd"`
	Outstanding  float64 `json:"outstanding"`
}

type DuesStatusDTO struct {
	Year                 int             `json:"year"`
	AsOf                 string          `json:"as_of"`
	Calculated           bool            `json:"calculated"`
	TotalAnnualBudget    float64         `json:"total_annual_budget"`
	TotalOperatingBudget float64         `json:"total_operating_budget"`
	Units                []UnitStatusDTO `json:"units"`
}

type PaymentDTO struct {
	Date        string  `json:"date"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

type PriorYearDTO struct {
	Year                  int     `json:"year"`
	AnnualDuesBudgeted    float64 `json:"annual_dues_budgeted"`
	TotalPaid             float64 `json:"total_paid"`
	BalanceCarriedForward float64 `json:"balance_carried_forward"`
}

type CurrentYearDTO struct {
	Year             int     `json:"year"`
	BudgetLocked     bool    `json:"budget_locked"`
	CarryoverBalance float64 `json:"carryover_balance"`
	AnnualDues       float64 `json:"annual_dues"`
	TotalDue         float64 `json:"total_due"`
	PaidYTD          float64 `json:"paid_ytd"`
	RemainingBalance float64 `json:"remaining_balance"`
	OriginalMonthly  float64 `json:"original_monthly"`
	MonthsRemaining  int     `json:"months_remaining"`
	SuggestedMonthly float64 `json:"suggested_monthly"`
}

type StatementDTO struct {
	Unit           string        `json:"unit"`
	OwnershipPct   float64       `json:"ownership_pct"`
	AsOf           string        `json:"as_of"`
	CurrentYear    CurrentYearDTO `json:"current_year"`
	PriorYear      *PriorYearDTO `json:"prior_year,omitempty"`
	RecentPayments []PaymentDTO  `json:"recent_payments"`
}

type SeedPastDueRequest struct {
	Year   int     `json:"year"`
	Amount float64 `json:"amount"`
}

type UnitDTO struct {
	Number         string  `json:"number"`
	OwnershipPct   float64 `json:"ownership_pct"`
	DuesCategoryID *int64  `json:"dues_category_id,omitempty"`
}

type UnitPastDueDTO struct {
	Unit   string  `json:"unit"`
	Year   int     `json:"year"`
	Amount float64 `json:"amount"`
}

// =============================================================================
// CATEGORIES
// =============================================================================

type CategoryDTO struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	DefaultAccount string `json:"default_account,omitempty"`
	Active         bool   `json:"active"`
	DefaultTiming  string `json:"default_timing,omitempty"`
}

type SaveCategoryRequest struct {
	ID             int64  `json:"id,omitempty"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	DefaultAccount string `json:"default_account,omitempty"`
	Active         *bool  `json:"active,omitempty"`
	DefaultTiming  string `json:"default_timing,omitempty"`
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

type TransactionDTO struct {
	ID           int64    `json:"id"`
	Account      string   `json:"account"`
	PostDate     string   `json:"post_date"`
	Description  string   `json:"description"`
	CheckNumber  string   `json:"check_number,omitempty"`
	Debit        *float64 `json:"debit,omitempty"`
	Credit       *float64 `json:"credit,omitempty"`
	Balance      float64  `json:"balance"`
	CategoryID   *int64   `json:"category_id,omitempty"`
	Category     string   `json:"category,omitempty"`
	Confidence   int      `json:"confidence"`
	NeedsReview  bool     `json:"needs_review"`
}

type TransactionListDTO struct {
	Transactions []TransactionDTO `json:"transactions"`
	Total        int              `json:"total"`
}

type RecategorizeRequest struct {
	CategoryID *int64 `json:"category_id"`
}

type ImportResultDTO struct {
	ImportID    string `json:"import_id"`
	Parsed      int    `json:"parsed"`
	Inserted    int    `json:"inserted"`
	Skipped     int    `json:"skipped"`
	Categorized int    `json:"categorized"`
	NeedsReview int    `json:"needs_review"`
}

// =============================================================================
// RULES
// =============================================================================

type RuleDTO struct {
	ID         int64  `json:"id"`
	Pattern    string `json:"pattern"`
	CategoryID int64  `json:"category_id"`
	Category   string `json:"category"`
	Confidence int    `json:"confidence"`
	Priority   int    `json:"priority"`
	Active     bool   `json:"active"`
}

type SaveRuleRequest struct {
	Pattern    string `json:"pattern"`
	CategoryID int64  `json:"category_id"`
	Confidence int    `json:"confidence"`
	Priority   int    `json:"priority"`
	Active     *bool  `json:"active,omitempty"`
}

// =============================================================================
// DASHBOARD
// =============================================================================

type DashboardDTO struct {
	Year        int                 `json:"year"`
	AsOf        string              `json:"as_of"`
	LastUpload  string              `json:"last_upload,omitempty"`
	TotalCash   float64             `json:"total_cash"`
	Accounts    []AccountBalanceDTO `json:"accounts"`
	Income      IncomeSummaryDTO    `json:"income"`
	Expenses    ExpenseSummaryDTO   `json:"expenses"`
	Dues        DuesStatusDTO       `json:"dues"`
	ReviewCount int                 `json:"review_count"`
}

type ReportDTO struct {
	Year       int                 `json:"year"`
	AsOf       string              `json:"as_of"`
	Summary    SummaryDTO          `json:"summary"`
	Accounts   []AccountBalanceDTO `json:"accounts"`
	TotalCash  float64             `json:"total_cash"`
	Reserve    ReserveStatusDTO    `json:"reserve"`
	Dues       DuesStatusDTO       `json:"dues"`
	Statements []StatementDTO      `json:"statements"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toCategoryLineDTOs(lines []budget.CategoryLine) []CategoryLineDTO {
	dtos := make([]CategoryLineDTO, 0, len(lines))
	for _, l := range lines {
		dtos = append(dtos, CategoryLineDTO{
			CategoryID: int64(l.CategoryID),
			Category:   l.Category,
			Timing:     string(l.Timing),
			Annual:     money(l.Annual),
			YTDBudget:  money(l.YTDBudget),
			YTDActual:  money(l.YTDActual),
			Remaining:  money(l.Remaining),
		})
	}
	return dtos
}

func toIncomeSummaryDTO(s budget.IncomeSummary) IncomeSummaryDTO {
	return IncomeSummaryDTO{
		YTDBudget:       money(s.YTDBudget),
		YTDActual:       money(s.YTDActual),
		Calculated:      s.Calculated,
		OperatingBudget: money(s.OperatingBudget),
		Categories:      toCategoryLineDTOs(s.Categories),
	}
}

func toExpenseSummaryDTO(s budget.ExpenseSummary) ExpenseSummaryDTO {
	return ExpenseSummaryDTO{
		YTDBudget:  money(s.YTDBudget),
		YTDActual:  money(s.YTDActual),
		Remaining:  money(s.Remaining),
		Categories: toCategoryLineDTOs(s.Categories),
	}
}

func toSummaryDTO(s *budget.Summary) SummaryDTO {
	return SummaryDTO{
		Year:     s.Year,
		AsOf:     s.AsOf.String(),
		Income:   toIncomeSummaryDTO(s.Income),
		Expenses: toExpenseSummaryDTO(s.Expense),
	}
}

func toAccountBalanceDTOs(balances []ledger.AccountBalance) []AccountBalanceDTO {
	dtos := make([]AccountBalanceDTO, 0, len(balances))
	for _, b := range balances {
		dtos = append(dtos, AccountBalanceDTO{Name: b.Name, Balance: money(b.Balance)})
	}
	return dtos
}

func toReserveStatusDTO(r *budget.ReserveStatus) ReserveStatusDTO {
	return ReserveStatusDTO{
		Year:          r.Year,
		AsOf:          r.AsOf.String(),
		Budget:        money(r.Budget),
		Contributions: money(r.Contributions),
		Expenses:      money(r.Expenses),
		Net:           money(r.Net),
	}
}

func toDuesStatusDTO(s *dues.Status) DuesStatusDTO {
	dto := DuesStatusDTO{
		Year:                 s.Year,
		AsOf:                 s.AsOf.String(),
		Calculated:           s.Calculated,
		TotalAnnualBudget:    money(s.TotalAnnualBudget),
		TotalOperatingBudget: money(s.TotalOperatingBudget),
		Units:                make([]UnitStatusDTO, 0, len(s.Units)),
	}
	for _, u := range s.Units {
		dto.Units = append(dto.Units, UnitStatusDTO{
			Unit:          u.Unit,
			OwnershipPct:  u.OwnershipPct.InexactFloat64(),
			Carryover:     money(u.Carryover),
			AnnualBudget:  money(u.AnnualBudget),
			ExpectedTotal: money(u.ExpectedTotal),
			PaidYTD:       money(u.PaidYTD),
			Outstanding:   money(u.Outstanding),
		})
	}
	return dto
}

func toPaymentDTOs(payments []ledger.Payment) []PaymentDTO {
	dtos := make([]PaymentDTO, 0, len(payments))
	for _, p := range payments {
		dtos = append(dtos, PaymentDTO{
			Date:        p.Date.String(),
			Amount:      money(p.Amount),
			Description: p.Description,
		})
	}
	return dtos
}

func toStatementDTO(st *dues.Statement) StatementDTO {
	dto := StatementDTO{
		Unit:         st.Unit,
		OwnershipPct: st.OwnershipPct.InexactFloat64(),
		AsOf:         st.AsOf.String(),
		CurrentYear: CurrentYearDTO{
			Year:             st.CurrentYear.Year,
			BudgetLocked:     st.CurrentYear.BudgetLocked,
			CarryoverBalance: money(st.CurrentYear.CarryoverBalance),
			AnnualDues:       money(st.CurrentYear.AnnualDues),
			TotalDue:         money(st.CurrentYear.TotalDue),
			PaidYTD:          money(st.CurrentYear.PaidYTD),
			RemainingBalance: money(st.CurrentYear.RemainingBalance),
			OriginalMonthly:  money(st.CurrentYear.OriginalMonthly),
			MonthsRemaining:  st.CurrentYear.MonthsRemaining,
			SuggestedMonthly: money(st.CurrentYear.SuggestedMonthly),
		},
		RecentPayments: toPaymentDTOs(st.RecentPayments),
	}
	if st.PriorYear != nil {
		dto.PriorYear = &PriorYearDTO{
			Year:                  st.PriorYear.Year,
			AnnualDuesBudgeted:    money(st.PriorYear.AnnualDuesBudgeted),
			TotalPaid:             money(st.PriorYear.TotalPaid),
			BalanceCarriedForward: money(st.PriorYear.BalanceCarriedForward),
		}
	}
	return dto
}

func toCategoryDTO(c ledger.Category) CategoryDTO {
	dto := CategoryDTO{
		ID:             int64(c.ID),
		Name:           c.Name,
		Type:           string(c.Type),
		DefaultAccount: c.DefaultAccount,
		Active:         c.Active,
	}
	if c.DefaultTiming != nil {
		dto.DefaultTiming = string(*c.DefaultTiming)
	}
	return dto
}

func toTransactionDTO(t ledger.Transaction, categoryName string) TransactionDTO {
	dto := TransactionDTO{
		ID:          t.ID,
		Account:     t.AccountName,
		PostDate:    t.PostDate.String(),
		Description: t.Description,
		CheckNumber: t.CheckNumber,
		Debit:       moneyPtr(t.Debit),
		Credit:      moneyPtr(t.Credit),
		Balance:     money(t.Balance),
		Category:    categoryName,
		Confidence:  t.Confidence,
		NeedsReview: t.NeedsReview,
	}
	if t.CategoryID != nil {
		id := int64(*t.CategoryID)
		dto.CategoryID = &id
	}
	return dto
}

func toRuleDTO(r ledger.Rule) RuleDTO {
	return RuleDTO{
		ID:         r.ID,
		Pattern:    r.Pattern,
		CategoryID: int64(r.CategoryID),
		Category:   r.CategoryName,
		Confidence: r.Confidence,
		Priority:   r.Priority,
		Active:     r.Active,
	}
}

func toUnitDTO(u ledger.Unit) UnitDTO {
	dto := UnitDTO{
		Number:       u.Number,
		OwnershipPct: u.OwnershipPct.InexactFloat64(),
	}
	if u.DuesCategoryID != nil {
		id := int64(*u.DuesCategoryID)
		dto.DuesCategoryID = &id
	}
	return dto
}
