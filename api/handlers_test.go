/*
handlers_test.go - End-to-end tests for the HTTP API

Runs the full router against a migrated in-memory SQLite database, so the
seeded reference data (accounts, categories, units, rules) is present.
*/
package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwcoa/finance-engine/api"
	"github.com/dwcoa/finance-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	handler := api.NewHandler(store)
	srv := httptest.NewServer(api.NewRouter(handler, []string{"*"}))
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, srv *httptest.Server, path string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	} else {
		io.Copy(io.Discard, resp.Body)
	}
	return resp
}

func postJSON(t *testing.T, srv *httptest.Server, path string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp
}

// categoryID looks up a seeded category's id by name.
func categoryID(t *testing.T, srv *httptest.Server, name string) int64 {
	t.Helper()
	var cats []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	resp := getJSON(t, srv, "/api/categories", &cats)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	for _, c := range cats {
		if c.Name == name {
			return c.ID
		}
	}
	t.Fatalf("seeded category %q not found", name)
	return 0
}

// =============================================================================
// BUDGETS
// =============================================================================

func TestAPI_BudgetLock_BlocksWrites(t *testing.T) {
	// GIVEN: A budget entry for 2025, then the year is locked
	// WHEN: Posting a new amount
	// THEN: 409, and the stored amount is unchanged

	srv := newTestServer(t)
	landscaping := categoryID(t, srv, "Landscaping")

	resp := postJSON(t, srv, "/api/budgets", map[string]any{
		"year": 2025, "category_id": landscaping, "annual_amount": 30000,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, srv, "/api/budgets/lock?year=2025", map[string]any{
		"locked": true, "locked_by": "treasurer",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, srv, "/api/budgets", map[string]any{
		"year": 2025, "category_id": landscaping, "annual_amount": 45000,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var lines []struct {
		CategoryID   int64   `json:"category_id"`
		AnnualAmount float64 `json:"annual_amount"`
	}
	resp = getJSON(t, srv, "/api/budgets?year=2025", &lines)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	for _, l := range lines {
		if l.CategoryID == landscaping {
			assert.Equal(t, 30000.0, l.AnnualAmount)
			return
		}
	}
	t.Fatal("landscaping line missing from budget listing")
}

func TestAPI_BudgetSummary_CalculatedIncome(t *testing.T) {
	// A 2025 expense budget drives the derived income budget.

	srv := newTestServer(t)
	landscaping := categoryID(t, srv, "Landscaping")

	resp := postJSON(t, srv, "/api/budgets", map[string]any{
		"year": 2025, "category_id": landscaping, "annual_amount": 50000,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary struct {
		Year   int `json:"year"`
		Income struct {
			Calculated      bool    `json:"calculated"`
			OperatingBudget float64 `json:"operating_budget"`
			YTDBudget       float64 `json:"ytd_budget"`
		} `json:"income"`
	}
	resp = getJSON(t, srv, "/api/budgets/summary?year=2025&as_of=2025-06-30", &summary)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, 2025, summary.Year)
	assert.True(t, summary.Income.Calculated)
	assert.Equal(t, 50000.0, summary.Income.OperatingBudget)
	assert.Equal(t, 25000.0, summary.Income.YTDBudget) // monthly, June
}

func TestAPI_CopyBudgets_EmptySourceRejected(t *testing.T) {
	srv := newTestServer(t)
	resp := postJSON(t, srv, "/api/budgets/copy", map[string]any{
		"from_year": 2019, "to_year": 2026,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// DASHBOARD AND DUES
// =============================================================================

func TestAPI_Dashboard_EmptyYearIsWellFormed(t *testing.T) {
	srv := newTestServer(t)

	var dash struct {
		Year      int     `json:"year"`
		TotalCash float64 `json:"total_cash"`
		Dues      struct {
			Units []any `json:"units"`
		} `json:"dues"`
	}
	resp := getJSON(t, srv, "/api/dashboard?year=2031&as_of=2031-06-30", &dash)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, 2031, dash.Year)
	assert.Equal(t, 0.0, dash.TotalCash)
	assert.Len(t, dash.Dues.Units, 9) // seeded units
}

func TestAPI_DuesStatus_OwnershipShares(t *testing.T) {
	// 11.7% of a $50,000 operating budget is $5,850 for unit 101.

	srv := newTestServer(t)
	landscaping := categoryID(t, srv, "Landscaping")
	resp := postJSON(t, srv, "/api/budgets", map[string]any{
		"year": 2025, "category_id": landscaping, "annual_amount": 50000,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var dues struct {
		Calculated bool `json:"calculated"`
		Units      []struct {
			Unit         string  `json:"unit"`
			AnnualBudget float64 `json:"annual_budget"`
		} `json:"units"`
	}
	resp = getJSON(t, srv, "/api/dues?year=2025&as_of=2025-06-30", &dues)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.True(t, dues.Calculated)
	require.Len(t, dues.Units, 9)
	assert.Equal(t, "101", dues.Units[0].Unit)
	assert.Equal(t, 5850.0, dues.Units[0].AnnualBudget)
}

func TestAPI_Statement_UnknownUnit404(t *testing.T) {
	srv := newTestServer(t)
	resp := getJSON(t, srv, "/api/units/999/statement?year=2025", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_SeedPastDue_NegativeRejected(t *testing.T) {
	srv := newTestServer(t)
	resp := postJSON(t, srv, "/api/units/101/past-due", map[string]any{
		"year": 2025, "amount": -50,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_SeedPastDue_AppearsOnStatement(t *testing.T) {
	srv := newTestServer(t)
	resp := postJSON(t, srv, "/api/units/101/past-due", map[string]any{
		"year": 2025, "amount": 900,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st struct {
		CurrentYear struct {
			CarryoverBalance float64 `json:"carryover_balance"`
		} `json:"current_year"`
	}
	resp = getJSON(t, srv, "/api/units/101/statement?year=2025&as_of=2025-03-10", &st)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 900.0, st.CurrentYear.CarryoverBalance)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

const uploadCSV = "Account Number,Post Date,Check,Description,Debit,Credit,Status,Balance\n" +
	"****9242,01/15/2025,,SEATTLE CITY LIGHT AUTOPAY,142.50,,Posted,9857.50\n" +
	"****9242,01/20/2025,,UNKNOWN VENDOR,25.00,,Posted,9832.50\n"

func uploadTransactions(t *testing.T, srv *httptest.Server, csv string) map[string]any {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/transactions/upload", "text/csv", strings.NewReader(csv))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

func TestAPI_Upload_CategorizesAndDedupes(t *testing.T) {
	// The seeded SEATTLE CITY LIGHT rule categorizes the first row; a
	// re-upload of the same file inserts nothing.

	srv := newTestServer(t)

	first := uploadTransactions(t, srv, uploadCSV)
	assert.Equal(t, 2.0, first["inserted"])
	assert.Equal(t, 1.0, first["categorized"])

	second := uploadTransactions(t, srv, uploadCSV)
	assert.Equal(t, 0.0, second["inserted"])
	assert.Equal(t, 2.0, second["skipped"])

	var list struct {
		Total        int `json:"total"`
		Transactions []struct {
			Description string `json:"description"`
			Category    string `json:"category"`
			Account     string `json:"account"`
		} `json:"transactions"`
	}
	resp := getJSON(t, srv, "/api/transactions?year=2025", &list)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 2, list.Total)

	for _, tx := range list.Transactions {
		assert.Equal(t, "Checking", tx.Account)
		if tx.Description == "SEATTLE CITY LIGHT AUTOPAY" {
			assert.Equal(t, "Utilities", tx.Category)
		}
	}
}

func TestAPI_Upload_BadHeaderRejected(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Post(srv.URL+"/api/transactions/upload", "text/csv",
		strings.NewReader("Date,Amount\n01/15/2025,10\n"))
	require.NoError(t, err)
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_Recategorize(t *testing.T) {
	srv := newTestServer(t)
	uploadTransactions(t, srv, uploadCSV)

	var list struct {
		Transactions []struct {
			ID          int64  `json:"id"`
			Description string `json:"description"`
		} `json:"transactions"`
	}
	resp := getJSON(t, srv, "/api/transactions?year=2025", &list)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, list.Transactions)

	var target int64
	for _, tx := range list.Transactions {
		if tx.Description == "UNKNOWN VENDOR" {
			target = tx.ID
		}
	}
	require.NotZero(t, target)

	repairs := categoryID(t, srv, "Repairs & Maintenance")
	body, _ := json.Marshal(map[string]any{"category_id": repairs})
	req, err := http.NewRequest(http.MethodPut,
		fmt.Sprintf("%s/api/transactions/%d/category", srv.URL, target), bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	putResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer putResp.Body.Close()
	io.Copy(io.Discard, putResp.Body)
	assert.Equal(t, http.StatusOK, putResp.StatusCode)
}

// =============================================================================
// RULES
// =============================================================================

func TestAPI_Rules_CreateAndDelete(t *testing.T) {
	srv := newTestServer(t)
	utilities := categoryID(t, srv, "Utilities")

	resp, err := http.Post(srv.URL+"/api/rules", "application/json",
		strings.NewReader(fmt.Sprintf(`{"pattern":"PUGET SOUND ENERGY","category_id":%d,"confidence":95,"priority":80}`, utilities)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		ID       int64  `json:"id"`
		Category string `json:"category"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "Utilities", created.Category)

	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/rules/%d", srv.URL, created.ID), nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer delResp.Body.Close()
	io.Copy(io.Discard, delResp.Body)
	assert.Equal(t, http.StatusOK, delResp.StatusCode)
}

func TestAPI_Rules_InvalidPatternRejected(t *testing.T) {
	srv := newTestServer(t)
	utilities := categoryID(t, srv, "Utilities")

	resp := postJSON(t, srv, "/api/rules", map[string]any{
		"pattern": "WATER[", "category_id": utilities, "confidence": 90,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// CONFIG
// =============================================================================

func TestAPI_CurrentYear_DrivesDefaults(t *testing.T) {
	// Setting the current year changes which year endpoints default to.

	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/config/current-year",
		strings.NewReader(`{"year":2027}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var dash struct {
		Year int `json:"year"`
	}
	getResp := getJSON(t, srv, "/api/dashboard", &dash)
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	assert.Equal(t, 2027, dash.Year)
}
