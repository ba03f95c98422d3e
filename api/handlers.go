/*
handlers.go - HTTP API handlers for the association finance engine

PURPOSE:
  Exposes the budget, dues and ledger engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Views:
    GET    /api/dashboard                 Landing-page payload
    GET    /api/report                    Full report data (for rendering/export)

  Budgets:
    GET    /api/budgets                   Budget lines for a year
    POST   /api/budgets                   Upsert a budget entry
    POST   /api/budgets/copy              Copy one year's budgets to another
    GET    /api/budgets/lock              Lock state for a year
    POST   /api/budgets/lock              Lock or unlock a year
    GET    /api/budgets/summary           Income/expense summary

  Dues:
    GET    /api/dues                      Per-unit dues status
    GET    /api/units                     Unit roster
    GET    /api/units/{number}/statement  Per-unit statement
    GET    /api/units/{number}/payments   Payment history
    POST   /api/units/{number}/past-due   Seed a starting debt
    GET    /api/units/past-dues           Seeded debts for a year

  Ledger:
    GET    /api/balances                  Account balances as of a date
    GET    /api/reserve                   Reserve fund status
    GET    /api/accounts                  Known bank accounts
    GET    /api/transactions              Filtered transaction listing
    POST   /api/transactions/upload       CSV import
    PUT    /api/transactions/{id}/category Recategorize one row

  Reference data:
    GET    /api/categories                Category list
    POST   /api/categories                Create/update a category
    GET    /api/rules                     Categorization rules
    POST   /api/rules                     Create a rule
    PUT    /api/rules/{id}                Update a rule
    DELETE /api/rules/{id}                Delete a rule
    PUT    /api/config/current-year       Set the default reporting year

QUERY PARAMETERS:
  year:  reporting year; defaults to the configured current year, then
         the as-of date's year.
  as_of: YYYY-MM-DD evaluation date; defaults to today. Historical dates
         reproduce historical results.

ERROR HANDLING:
  Errors map to JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Budget locked
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/dwcoa/finance-engine/budget"
	"github.com/dwcoa/finance-engine/csvimport"
	"github.com/dwcoa/finance-engine/dues"
	"github.com/dwcoa/finance-engine/ledger"
	"github.com/dwcoa/finance-engine/report"
	"github.com/dwcoa/finance-engine/rules"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    ledger.Store
	Budgets  *budget.Calculator
	Dues     *dues.Calculator
	Reports  *report.Assembler
	Rules    *rules.Engine
	Importer *csvimport.Importer
}

// NewHandler wires the engine components around a store.
func NewHandler(store ledger.Store) *Handler {
	return NewHandlerWithDues(store, dues.DefaultConfig())
}

// NewHandlerWithDues creates a handler with a custom dues configuration,
// for deployments that track transactions from a different base year.
func NewHandlerWithDues(store ledger.Store, duesCfg dues.Config) *Handler {
	budgets := budget.NewCalculator(store)
	duesCalc := dues.NewCalculator(store, budgets, duesCfg)
	engine := rules.NewEngine(store)
	return &Handler{
		Store:    store,
		Budgets:  budgets,
		Dues:     duesCalc,
		Reports:  report.NewAssembler(store, budgets, duesCalc),
		Rules:    engine,
		Importer: csvimport.NewImporter(store, engine),
	}
}

// =============================================================================
// REQUEST HELPERS
// =============================================================================

// asOfParam parses the as_of query parameter, defaulting to today.
func asOfParam(r *http.Request) (ledger.Date, error) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return ledger.Today(), nil
	}
	d, err := ledger.ParseDate(raw)
	if err != nil {
		return ledger.Date{}, &ledger.ValidationError{Field: "as_of", Reason: "expected YYYY-MM-DD"}
	}
	return d, nil
}

// yearParam parses the year query parameter; zero means "use the default".
func yearParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("year")
	if raw == "" {
		return 0, nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < 1900 || year > 3000 {
		return 0, &ledger.ValidationError{Field: "year", Reason: "expected a four-digit year"}
	}
	return year, nil
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &ledger.ValidationError{Field: "body", Reason: "invalid JSON"}
	}
	return nil
}

// =============================================================================
// VIEWS
// =============================================================================

// GetDashboard returns the landing-page payload.
// GET /api/dashboard?year=&as_of=
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	asOf, err := asOfParam(r)
	if err != nil {
		h.error(w, err)
		return
	}
	year, err := yearParam(r)
	if err != nil {
		h.error(w, err)
		return
	}

	dash, err := h.Reports.Dashboard(ctx, year, asOf)
	if err != nil {
		h.error(w, err)
		return
	}

	writeJSON(w, http.StatusOK, DashboardDTO{
		Year:        dash.Year,
		AsOf:        dash.AsOf.String(),
		LastUpload:  dash.LastUpload,
		TotalCash:   money(dash.TotalCash),
		Accounts:    toAccountBalanceDTOs(dash.Accounts),
		Income:      toIncomeSummaryDTO(dash.Income),
		Expenses:    toExpenseSummaryDTO(dash.Expenses),
		Dues:        toDuesStatusDTO(dash.Dues),
		ReviewCount: dash.ReviewCount,
	})
}

// GetReport returns the full report payload for a year.
// GET /api/report?year=&as_of=
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	asOf, err := asOfParam(r)
	if err != nil {
		h.error(w, err)
		return
	}
	year, err := yearParam(r)
	if err != nil {
		h.error(w, err)
		return
	}

	rep, err := h.Reports.Report(ctx, year, asOf)
	if err != nil {
		h.error(w, err)
		return
	}

	dto := ReportDTO{
		Year:      rep.Year,
		AsOf:      rep.AsOf.String(),
		Summary:   toSummaryDTO(rep.Summary),
		Accounts:  toAccountBalanceDTOs(rep.Accounts),
		TotalCash: money(rep.TotalCash),
		Reserve:   toReserveStatusDTO(rep.Reserve),
		Dues:      toDuesStatusDTO(rep.Dues),
	}
	for _, st := range rep.Statements {
		dto.Statements = append(dto.Statements, toStatementDTO(st))
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// BUDGET ENDPOINTS
// =============================================================================

// ListBudgets returns the per-category budget lines for a year.
// GET /api/budgets?year=
func (h *Handler) ListBudgets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	year, err := h.resolveYear(r)
	if err != nil {
		h.error(w, err)
		return
	}

	lines, err := h.Store.BudgetLines(ctx, year)
	if err != nil {
		h.error(w, err)
		return
	}

	dtos := make([]BudgetLineDTO, 0, len(lines))
	for _, l := range lines {
		dtos = append(dtos, BudgetLineDTO{
			CategoryID:   int64(l.CategoryID),
			Category:     l.CategoryName,
			Type:         string(l.CategoryType),
			AnnualAmount: money(l.AnnualAmount),
			Timing:       string(l.EffectiveTiming()),
			HasBudget:    l.HasBudgetRow,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpsertBudget creates or updates one (year, category) budget entry.
// POST /api/budgets
func (h *Handler) UpsertBudget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req UpsertBudgetRequest
	if err := decodeJSON(r, &req); err != nil {
		h.error(w, err)
		return
	}

	b := ledger.Budget{
		Year:         req.Year,
		CategoryID:   ledger.CategoryID(req.CategoryID),
		AnnualAmount: decimal.NewFromFloat(req.AnnualAmount),
	}
	if req.Timing != "" {
		t := ledger.Timing(req.Timing)
		b.Timing = &t
	}

	saved, err := h.Budgets.UpsertBudget(ctx, b)
	if err != nil {
		h.error(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":            saved.ID,
		"year":          saved.Year,
		"category_id":   int64(saved.CategoryID),
		"annual_amount": money(saved.AnnualAmount),
	})
}

// CopyBudgets copies all budget entries from one year to another.
// POST /api/budgets/copy
func (h *Handler) CopyBudgets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req CopyBudgetsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.error(w, err)
		return
	}

	count, err := h.Budgets.CopyBudgets(ctx, req.FromYear, req.ToYear)
	if err != nil {
		h.error(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"from_year": req.FromYear,
		"to_year":   req.ToYear,
		"copied":    count,
	})
}

// GetBudgetLock reports the lock state for a year.
// GET /api/budgets/lock?year=
func (h *Handler) GetBudgetLock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	year, err := h.resolveYear(r)
	if err != nil {
		h.error(w, err)
		return
	}

	lock, err := h.Budgets.Lock(ctx, year)
	if err != nil {
		h.error(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetLockDTO(lock))
}

// SetBudgetLock locks or unlocks a year.
// POST /api/budgets/lock?year=
func (h *Handler) SetBudgetLock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	year, err := h.resolveYear(r)
	if err != nil {
		h.error(w, err)
		return
	}
	var req SetLockRequest
	if err := decodeJSON(r, &req); err != nil {
		h.error(w, err)
		return
	}

	lock, err := h.Budgets.SetLock(ctx, year, req.Locked, req.LockedBy)
	if err != nil {
		h.error(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetLockDTO(lock))
}

// GetSummary returns the income/expense budget summary.
// GET /api/budgets/summary?year=&as_of=
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	asOf, err := asOfParam(r)
	if err != nil {
		h.error(w, err)
		return
	}
	year, err := h.resolveYear(r)
	if err != nil {
		h.error(w, err)
		return
	}

	summary, err := h.Budgets.Summary(ctx, year, asOf)
	if err != nil {
		h.error(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(summary))
}

func toBudgetLockDTO(lock ledger.BudgetLock) BudgetLockDTO {
	dto := BudgetLockDTO{Year: lock.Year, Locked: lock.Locked, LockedBy: lock.LockedBy}
	if lock.LockedAt != nil {
		dto.LockedAt = lock.LockedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return dto
}

// =============================================================================
// DUES ENDPOINTS
// =============================================================================

// GetDuesStatus returns every unit's dues position.
// GET /api/dues?year=&as_of=
func (h *Handler) GetDuesStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	asOf, err := asOfParam(r)
	if err != nil {
		h.error(w, err)
		return
	}
	year, err := h.resolveYear(r)
	if err != nil {
		h.error(w, err)
		return
	}

	status, err := h.Dues.Status(ctx, year, asOf)
	if err != nil {
		h.error(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDuesStatusDTO(status))
}

// ListUnits returns the unit roster.
// GET /api/units
func (h *Handler) ListUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.Store.Units(r.Context())
	if err != nil {
		h.error(w, err)
		return
	}
	dtos := make([]UnitDTO, 0, len(units))
	for _, u := range units {
		dtos = append(dtos, toUnitDTO(u))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetStatement returns a unit's financial statement.
// GET /api/units/{number}/statement?year=&as_of=
func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	number := chi.URLParam(r, "number")
	asOf, err := asOfParam(r)
	if err != nil {
		h.error(w, err)
		return
	}
	year, err := h.resolveYear(r)
	if err != nil {
		h.error(w, err)
		return
	}

	st, err := h.Dues.Statement(ctx, number, year, asOf)
	if err != nil {
		h.error(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatementDTO(st))
}

// GetPayments returns a unit's dues payment history for a year.
// GET /api/units/{number}/payments?year=&limit=
func (h *Handler) GetPayments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	number := chi.URLParam(r, "number")
	year, err := h.resolveYear(r)
	if err != nil {
		h.error(w, err)
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	payments, err := h.Dues.PaymentHistory(ctx, number, year, limit)
	if err != nil {
		h.error(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTOs(payments))
}

// SeedPastDue records a starting debt for a unit and year.
// POST /api/units/{number}/past-due
func (h *Handler) SeedPastDue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	number := chi.URLParam(r, "number")
	var req SeedPastDueRequest
	if err := decodeJSON(r, &req); err != nil {
		h.error(w, err)
		return
	}

	amount := decimal.NewFromFloat(req.Amount)
	if err := h.Dues.SeedPastDue(ctx, number, req.Year, amount); err != nil {
		h.error(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UnitPastDueDTO{Unit: number, Year: req.Year, Amount: money(amount)})
}

// ListPastDues returns every unit's seeded debt for a year.
// GET /api/units/past-dues?year=
func (h *Handler) ListPastDues(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	year, err := h.resolveYear(r)
	if err != nil {
		h.error(w, err)
		return
	}

	list, err := h.Store.UnitPastDues(ctx, year)
	if err != nil {
		h.error(w, err)
		return
	}
	dtos := make([]UnitPastDueDTO, 0, len(list))
	for _, d := range list {
		dtos = append(dtos, UnitPastDueDTO{Unit: d.UnitNumber, Year: d.Year, Amount: money(d.Amount)})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// LEDGER ENDPOINTS
// =============================================================================

// GetBalances returns per-account balances and total cash.
// GET /api/balances?as_of=
func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	asOf, err := asOfParam(r)
	if err != nil {
		h.error(w, err)
		return
	}

	balances, err := h.Budgets.AccountBalances(ctx, asOf)
	if err != nil {
		h.error(w, err)
		return
	}
	total := decimal.Zero
	for _, b := range balances {
		total = total.Add(b.Balance)
	}
	writeJSON(w, http.StatusOK, BalancesDTO{
		AsOf:      asOf.String(),
		Accounts:  toAccountBalanceDTOs(balances),
		TotalCash: money(total),
	})
}

// GetReserve returns reserve fund status for a year.
// GET /api/reserve?year=&as_of=
func (h *Handler) GetReserve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	asOf, err := asOfParam(r)
	if err != nil {
		h.error(w, err)
		return
	}
	year, err := h.resolveYear(r)
	if err != nil {
		h.error(w, err)
		return
	}

	status, err := h.Budgets.ReserveFundStatus(ctx, year, asOf)
	if err != nil {
		h.error(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReserveStatusDTO(status))
}

// ListAccounts returns the known bank accounts.
// GET /api/accounts
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Store.Accounts(r.Context())
	if err != nil {
		h.error(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

// ListTransactions returns a filtered, paginated transaction listing.
// GET /api/transactions?year=&account=&category_id=&needs_review=&limit=&offset=
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	f := ledger.TxFilter{Account: q.Get("account"), Limit: 100}
	if raw := q.Get("year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			h.error(w, &ledger.ValidationError{Field: "year", Reason: "expected a number"})
			return
		}
		f.Year = &year
	}
	if raw := q.Get("category_id"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.error(w, &ledger.ValidationError{Field: "category_id", Reason: "expected a number"})
			return
		}
		id := ledger.CategoryID(n)
		f.CategoryID = &id
	}
	if raw := q.Get("needs_review"); raw != "" {
		review := raw == "true" || raw == "1"
		f.NeedsReview = &review
	}
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			f.Limit = n
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			f.Offset = n
		}
	}

	txs, total, err := h.Store.ListTransactions(ctx, f)
	if err != nil {
		h.error(w, err)
		return
	}

	names, err := h.categoryNames(ctx)
	if err != nil {
		h.error(w, err)
		return
	}

	dto := TransactionListDTO{Total: total, Transactions: make([]TransactionDTO, 0, len(txs))}
	for _, t := range txs {
		name := ""
		if t.CategoryID != nil {
			name = names[*t.CategoryID]
		}
		dto.Transactions = append(dto.Transactions, toTransactionDTO(t, name))
	}
	writeJSON(w, http.StatusOK, dto)
}

// UploadTransactions imports a bank CSV export.
// POST /api/transactions/upload  (body: raw CSV or multipart "file" field)
func (h *Handler) UploadTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body := r.Body
	if err := r.ParseMultipartForm(32 << 20); err == nil {
		if file, _, err := r.FormFile("file"); err == nil {
			defer file.Close()
			body = file
		}
	}

	res, err := h.Importer.Import(ctx, body)
	if err != nil {
		h.error(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ImportResultDTO{
		ImportID:    res.ImportID,
		Parsed:      res.Parsed,
		Inserted:    res.Inserted,
		Skipped:     res.Skipped,
		Categorized: res.Categorized,
		NeedsReview: res.NeedsReview,
	})
}

// RecategorizeTransaction assigns a category to a ledger row and clears
// its review flag. A null category clears the assignment.
// PUT /api/transactions/{id}/category
func (h *Handler) RecategorizeTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.error(w, &ledger.ValidationError{Field: "id", Reason: "expected a number"})
		return
	}
	var req RecategorizeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.error(w, err)
		return
	}

	var categoryID *ledger.CategoryID
	if req.CategoryID != nil {
		cid := ledger.CategoryID(*req.CategoryID)
		cat, err := h.Store.CategoryByID(ctx, cid)
		if err != nil {
			h.error(w, err)
			return
		}
		if cat == nil {
			h.error(w, &ledger.NotFoundError{Kind: "category", Key: strconv.FormatInt(*req.CategoryID, 10)})
			return
		}
		categoryID = &cid
	}

	if err := h.Store.SetTransactionCategory(ctx, id, categoryID, false); err != nil {
		h.error(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "category_id": req.CategoryID})
}

// =============================================================================
// CATEGORY ENDPOINTS
// =============================================================================

// ListCategories returns categories, optionally filtered.
// GET /api/categories?active=&type=
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	activeOnly := q.Get("active") == "true" || q.Get("active") == "1"
	var typ *ledger.CategoryType
	if raw := q.Get("type"); raw != "" {
		t := ledger.CategoryType(raw)
		if !t.Valid() {
			h.error(w, &ledger.ValidationError{Field: "type", Reason: "unknown category type"})
			return
		}
		typ = &t
	}

	cats, err := h.Store.Categories(ctx, activeOnly, typ)
	if err != nil {
		h.error(w, err)
		return
	}
	dtos := make([]CategoryDTO, 0, len(cats))
	for _, c := range cats {
		dtos = append(dtos, toCategoryDTO(c))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveCategory creates or updates a category.
// POST /api/categories
func (h *Handler) SaveCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req SaveCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		h.error(w, err)
		return
	}
	if req.Name == "" {
		h.error(w, &ledger.ValidationError{Field: "name", Reason: "must not be empty"})
		return
	}
	typ := ledger.CategoryType(req.Type)
	if !typ.Valid() {
		h.error(w, &ledger.ValidationError{Field: "type", Reason: "unknown category type"})
		return
	}

	c := ledger.Category{
		ID:             ledger.CategoryID(req.ID),
		Name:           req.Name,
		Type:           typ,
		DefaultAccount: req.DefaultAccount,
		Active:         true,
	}
	if req.Active != nil {
		c.Active = *req.Active
	}
	if req.DefaultTiming != "" {
		t := ledger.Timing(req.DefaultTiming)
		if !t.Valid() {
			h.error(w, &ledger.ValidationError{Field: "default_timing", Reason: "unknown timing"})
			return
		}
		c.DefaultTiming = &t
	}

	if err := h.Store.SaveCategory(ctx, &c); err != nil {
		h.error(w, err)
		return
	}
	status := http.StatusOK
	if req.ID == 0 {
		status = http.StatusCreated
	}
	writeJSON(w, status, toCategoryDTO(c))
}

// =============================================================================
// RULE ENDPOINTS
// =============================================================================

// ListRules returns categorization rules, highest priority first.
// GET /api/rules?active=
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	list, err := h.Rules.Rules(r.Context(), activeOnly)
	if err != nil {
		h.error(w, err)
		return
	}
	dtos := make([]RuleDTO, 0, len(list))
	for _, rule := range list {
		dtos = append(dtos, toRuleDTO(rule))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateRule adds a categorization rule.
// POST /api/rules
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	h.saveRule(w, r, 0)
}

// UpdateRule modifies an existing rule.
// PUT /api/rules/{id}
func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.error(w, &ledger.ValidationError{Field: "id", Reason: "expected a number"})
		return
	}
	h.saveRule(w, r, id)
}

func (h *Handler) saveRule(w http.ResponseWriter, r *http.Request, id int64) {
	ctx := r.Context()
	var req SaveRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		h.error(w, err)
		return
	}

	rule := ledger.Rule{
		ID:         id,
		Pattern:    req.Pattern,
		CategoryID: ledger.CategoryID(req.CategoryID),
		Confidence: req.Confidence,
		Priority:   req.Priority,
		Active:     true,
	}
	if req.Active != nil {
		rule.Active = *req.Active
	}

	if err := h.Rules.SaveRule(ctx, &rule); err != nil {
		h.error(w, err)
		return
	}
	status := http.StatusOK
	if id == 0 {
		status = http.StatusCreated
	}
	writeJSON(w, status, toRuleDTO(rule))
}

// DeleteRule removes a rule.
// DELETE /api/rules/{id}
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.error(w, &ledger.ValidationError{Field: "id", Reason: "expected a number"})
		return
	}
	if err := h.Rules.DeleteRule(r.Context(), id); err != nil {
		h.error(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// =============================================================================
// CONFIG ENDPOINTS
// =============================================================================

// SetCurrentYear sets the default reporting year.
// PUT /api/config/current-year
func (h *Handler) SetCurrentYear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req struct {
		Year int `json:"year"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.error(w, err)
		return
	}
	if req.Year < 1900 || req.Year > 3000 {
		h.error(w, &ledger.ValidationError{Field: "year", Reason: "expected a four-digit year"})
		return
	}
	if err := h.Store.SetConfigValue(ctx, ledger.ConfigCurrentYear, strconv.Itoa(req.Year)); err != nil {
		h.error(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"current_year": req.Year})
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// resolveYear applies the year defaulting chain for endpoints that need a
// concrete year.
func (h *Handler) resolveYear(r *http.Request) (int, error) {
	year, err := yearParam(r)
	if err != nil {
		return 0, err
	}
	return h.Reports.ResolveYear(r.Context(), year, ledger.Today())
}

// categoryNames builds an id-to-name lookup for transaction listings.
func (h *Handler) categoryNames(ctx context.Context) (map[ledger.CategoryID]string, error) {
	cats, err := h.Store.Categories(ctx, false, nil)
	if err != nil {
		return nil, err
	}
	names := make(map[ledger.CategoryID]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	return names, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// error maps domain errors onto HTTP statuses.
func (h *Handler) error(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrBudgetLocked):
		writeError(w, http.StatusConflict, "budget locked", err)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not found", err)
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, "invalid request", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
