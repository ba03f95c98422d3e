// Package rules matches transaction descriptions against regex
// categorization rules and manages the rule set itself.
//
// Matching walks the active rules in descending priority and stops at the
// first hit. A match below the review threshold still categorizes the
// transaction but flags it for manual review.
package rules

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/dwcoa/finance-engine/ledger"
)

// ReviewThreshold is the confidence below which a matched transaction is
// flagged for manual review.
const ReviewThreshold = 80

// Store is the slice of the ledger store the engine needs.
type Store interface {
	ledger.RuleStore
	CategoryByID(ctx context.Context, id ledger.CategoryID) (*ledger.Category, error)
}

// Engine categorizes transactions and owns rule CRUD validation.
type Engine struct {
	store Store
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// =============================================================================
// MATCHING
// =============================================================================

// Match is the outcome of running a description through the rule set.
type Match struct {
	Rule        ledger.Rule
	NeedsReview bool
}

// compiled pairs a rule with its compiled pattern.
type compiled struct {
	rule ledger.Rule
	re   *regexp.Regexp
}

// Load snapshots the active rules for a categorization run. Rules whose
// patterns fail to compile are skipped rather than failing the run; they
// are caught at save time, but an old row could still carry one.
func (e *Engine) Load(ctx context.Context) (*Matcher, error) {
	rows, err := e.store.Rules(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	m := &Matcher{}
	for _, r := range rows {
		re, err := compilePattern(r.Pattern)
		if err != nil {
			continue
		}
		m.rules = append(m.rules, compiled{rule: r, re: re})
	}
	return m, nil
}

// Matcher is an immutable snapshot of compiled rules, ordered by priority.
type Matcher struct {
	rules []compiled
}

// Match returns the first rule whose pattern matches the description, or
// nil when nothing matches.
func (m *Matcher) Match(description string) *Match {
	for _, c := range m.rules {
		if c.re.MatchString(description) {
			return &Match{
				Rule:        c.rule,
				NeedsReview: c.rule.Confidence < ReviewThreshold,
			}
		}
	}
	return nil
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("(?i)" + pattern)
}

// =============================================================================
// RULE CRUD
// =============================================================================

// SaveRule validates and persists a rule. ID zero inserts.
func (e *Engine) SaveRule(ctx context.Context, r *ledger.Rule) error {
	r.Pattern = strings.TrimSpace(r.Pattern)
	if r.Pattern == "" {
		return &ledger.ValidationError{Field: "pattern", Reason: "must not be empty"}
	}
	if _, err := compilePattern(r.Pattern); err != nil {
		return &ledger.ValidationError{Field: "pattern", Reason: fmt.Sprintf("invalid regex: %v", err)}
	}
	if r.Confidence < 0 || r.Confidence > 100 {
		return &ledger.ValidationError{Field: "confidence", Reason: "must be between 0 and 100"}
	}
	if r.ID != 0 {
		existing, err := e.store.RuleByID(ctx, r.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			return &ledger.NotFoundError{Kind: "rule", Key: fmt.Sprintf("%d", r.ID)}
		}
	}
	dup, err := e.store.RulePatternExists(ctx, r.Pattern, r.ID)
	if err != nil {
		return err
	}
	if dup {
		return &ledger.ValidationError{Field: "pattern", Reason: "a rule with this pattern already exists"}
	}
	cat, err := e.store.CategoryByID(ctx, r.CategoryID)
	if err != nil {
		return err
	}
	if cat == nil {
		return &ledger.NotFoundError{Kind: "category", Key: fmt.Sprintf("%d", r.CategoryID)}
	}
	r.CategoryName = cat.Name
	return e.store.SaveRule(ctx, r)
}

// DeleteRule removes a rule. Transactions it categorized keep their
// category.
func (e *Engine) DeleteRule(ctx context.Context, id int64) error {
	ok, err := e.store.DeleteRule(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return &ledger.NotFoundError{Kind: "rule", Key: fmt.Sprintf("%d", id)}
	}
	return nil
}

// Rules lists rules, highest priority first.
func (e *Engine) Rules(ctx context.Context, activeOnly bool) ([]ledger.Rule, error) {
	return e.store.Rules(ctx, activeOnly)
}
