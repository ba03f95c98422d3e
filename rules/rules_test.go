package rules_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwcoa/finance-engine/ledger"
	"github.com/dwcoa/finance-engine/ledger/store"
	"github.com/dwcoa/finance-engine/rules"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newEngine(t *testing.T) (*rules.Engine, *store.Memory, map[string]ledger.CategoryID) {
	t.Helper()
	mem := store.NewMemory()
	cats := make(map[string]ledger.CategoryID)
	for _, name := range []string{"Utilities", "Water/Sewer/Garbage", "Insurance", "Transfers"} {
		c := ledger.Category{Name: name, Type: ledger.TypeExpense, Active: true}
		require.NoError(t, mem.SaveCategory(context.Background(), &c))
		cats[name] = c.ID
	}
	return rules.NewEngine(mem), mem, cats
}

func seedRule(t *testing.T, mem *store.Memory, pattern string, categoryID ledger.CategoryID, confidence, priority int) {
	t.Helper()
	require.NoError(t, mem.SaveRule(context.Background(), &ledger.Rule{
		Pattern:    pattern,
		CategoryID: categoryID,
		Confidence: confidence,
		Priority:   priority,
		Active:     true,
	}))
}

// =============================================================================
// MATCHING
// =============================================================================

func TestMatcher_FirstMatchByPriority(t *testing.T) {
	// GIVEN: A broad low-priority rule and a specific high-priority rule
	//   that both match the description
	// WHEN: Matching
	// THEN: The higher-priority rule wins

	engine, mem, cats := newEngine(t)
	seedRule(t, mem, "SEATTLE", cats["Utilities"], 90, 10)
	seedRule(t, mem, "SEATTLE PUBLIC UTIL", cats["Water/Sewer/Garbage"], 95, 80)

	m, err := engine.Load(context.Background())
	require.NoError(t, err)

	got := m.Match("SEATTLE PUBLIC UTIL AUTOPAY")
	require.NotNil(t, got)
	assert.Equal(t, cats["Water/Sewer/Garbage"], got.Rule.CategoryID)
}

func TestMatcher_CaseInsensitive(t *testing.T) {
	engine, mem, cats := newEngine(t)
	seedRule(t, mem, "state farm", cats["Insurance"], 95, 80)

	m, err := engine.Load(context.Background())
	require.NoError(t, err)

	got := m.Match("STATE FARM RO 27 PAYMENT")
	require.NotNil(t, got)
	assert.Equal(t, cats["Insurance"], got.Rule.CategoryID)
}

func TestMatcher_Alternation(t *testing.T) {
	engine, mem, cats := newEngine(t)
	seedRule(t, mem, "Internet Transfer|Reserve Funds", cats["Transfers"], 95, 100)

	m, err := engine.Load(context.Background())
	require.NoError(t, err)

	assert.NotNil(t, m.Match("Internet Transfer to Savings"))
	assert.NotNil(t, m.Match("RESERVE FUNDS monthly"))
	assert.Nil(t, m.Match("CHECK 1042"))
}

func TestMatcher_LowConfidenceFlagsReview(t *testing.T) {
	// Confidence below the threshold still categorizes, but flags the
	// transaction for review.

	engine, mem, cats := newEngine(t)
	seedRule(t, mem, "LANDSCAP", cats["Utilities"], rules.ReviewThreshold-5, 50)
	seedRule(t, mem, "STATE FARM", cats["Insurance"], rules.ReviewThreshold, 80)

	m, err := engine.Load(context.Background())
	require.NoError(t, err)

	low := m.Match("EVERGREEN LANDSCAPING LLC")
	require.NotNil(t, low)
	assert.True(t, low.NeedsReview)

	high := m.Match("STATE FARM RO 27")
	require.NotNil(t, high)
	assert.False(t, high.NeedsReview)
}

func TestMatcher_InvalidStoredPatternSkipped(t *testing.T) {
	// A stored rule with a broken pattern must not poison the run; later
	// rules still match.

	engine, mem, cats := newEngine(t)
	seedRule(t, mem, "BROKEN[", cats["Utilities"], 95, 100)
	seedRule(t, mem, "STATE FARM", cats["Insurance"], 95, 80)

	m, err := engine.Load(context.Background())
	require.NoError(t, err)

	got := m.Match("STATE FARM RO 27")
	require.NotNil(t, got)
	assert.Equal(t, cats["Insurance"], got.Rule.CategoryID)
}

func TestMatcher_InactiveRulesExcluded(t *testing.T) {
	engine, mem, cats := newEngine(t)
	require.NoError(t, mem.SaveRule(context.Background(), &ledger.Rule{
		Pattern: "STATE FARM", CategoryID: cats["Insurance"], Confidence: 95, Priority: 80, Active: false,
	}))

	m, err := engine.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, m.Match("STATE FARM RO 27"))
}

// =============================================================================
// RULE CRUD
// =============================================================================

func TestSaveRule_Valid(t *testing.T) {
	engine, _, cats := newEngine(t)
	ctx := context.Background()

	r := &ledger.Rule{Pattern: "  WM CORPORATE  ", CategoryID: cats["Utilities"], Confidence: 95, Priority: 80, Active: true}
	require.NoError(t, engine.SaveRule(ctx, r))

	assert.NotZero(t, r.ID)
	assert.Equal(t, "WM CORPORATE", r.Pattern, "pattern should be trimmed")
	assert.Equal(t, "Utilities", r.CategoryName)
}

func TestSaveRule_Invalid(t *testing.T) {
	engine, _, cats := newEngine(t)
	ctx := context.Background()

	cases := []struct {
		name string
		rule ledger.Rule
	}{
		{"empty pattern", ledger.Rule{Pattern: "   ", CategoryID: cats["Utilities"], Confidence: 90}},
		{"bad regex", ledger.Rule{Pattern: "WATER[", CategoryID: cats["Utilities"], Confidence: 90}},
		{"confidence too high", ledger.Rule{Pattern: "WATER", CategoryID: cats["Utilities"], Confidence: 101}},
		{"confidence negative", ledger.Rule{Pattern: "WATER", CategoryID: cats["Utilities"], Confidence: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := tc.rule
			err := engine.SaveRule(ctx, &r)
			var valErr *ledger.ValidationError
			assert.ErrorAs(t, err, &valErr)
		})
	}
}

func TestSaveRule_DuplicatePattern(t *testing.T) {
	engine, mem, cats := newEngine(t)
	ctx := context.Background()
	seedRule(t, mem, "STATE FARM", cats["Insurance"], 95, 80)

	err := engine.SaveRule(ctx, &ledger.Rule{Pattern: "state farm", CategoryID: cats["Insurance"], Confidence: 90, Active: true})
	var valErr *ledger.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "pattern", valErr.Field)
}

func TestSaveRule_UpdateKeepsOwnPattern(t *testing.T) {
	// Updating a rule without changing its pattern must not trip the
	// duplicate check against itself.

	engine, _, cats := newEngine(t)
	ctx := context.Background()

	r := &ledger.Rule{Pattern: "STATE FARM", CategoryID: cats["Insurance"], Confidence: 90, Priority: 80, Active: true}
	require.NoError(t, engine.SaveRule(ctx, r))

	r.Confidence = 95
	require.NoError(t, engine.SaveRule(ctx, r))
}

func TestSaveRule_UnknownCategory(t *testing.T) {
	engine, _, _ := newEngine(t)
	err := engine.SaveRule(context.Background(), &ledger.Rule{Pattern: "WATER", CategoryID: 999, Confidence: 90})
	assert.True(t, ledger.IsNotFound(err), "got %v", err)
}

func TestSaveRule_UpdateUnknownRule(t *testing.T) {
	engine, _, cats := newEngine(t)
	err := engine.SaveRule(context.Background(), &ledger.Rule{ID: 77, Pattern: "WATER", CategoryID: cats["Utilities"], Confidence: 90})
	assert.True(t, ledger.IsNotFound(err), "got %v", err)
}

func TestDeleteRule(t *testing.T) {
	engine, mem, cats := newEngine(t)
	ctx := context.Background()
	seedRule(t, mem, "STATE FARM", cats["Insurance"], 95, 80)

	listed, err := engine.Rules(ctx, false)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	require.NoError(t, engine.DeleteRule(ctx, listed[0].ID))
	assert.True(t, ledger.IsNotFound(engine.DeleteRule(ctx, listed[0].ID)))
}
