// Package csvimport parses bank transaction export CSVs into ledger rows,
// auto-categorizes them through the rules engine and records the upload.
package csvimport

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dwcoa/finance-engine/ledger"
	"github.com/dwcoa/finance-engine/rules"
)

// Expected header columns, in order. Matching is case-insensitive and
// ignores surrounding whitespace.
var expectedHeader = []string{
	"Account Number", "Post Date", "Check", "Description",
	"Debit", "Credit", "Status", "Balance",
}

// dateLayouts are the post-date formats banks have been seen exporting.
var dateLayouts = []string{
	"01/02/2006",
	"1/2/2006",
	"2006-01-02",
	"01/02/06",
}

// Store is the slice of the ledger store the importer needs.
type Store interface {
	ledger.TransactionStore
	ledger.AccountStore
	ledger.ConfigStore
}

// Importer turns CSV uploads into persisted transactions.
type Importer struct {
	store Store
	rules *rules.Engine
	now   func() time.Time
}

func NewImporter(store Store, engine *rules.Engine) *Importer {
	return &Importer{store: store, rules: engine, now: time.Now}
}

// Result summarizes a single upload.
type Result struct {
	ImportID    string
	Parsed      int
	Inserted    int
	Skipped     int
	Categorized int
	NeedsReview int
}

// Import parses r, categorizes and persists the rows, and stamps the
// last-upload marker. Duplicate rows already in the ledger are skipped,
// so re-uploading an overlapping export is safe.
func (im *Importer) Import(ctx context.Context, r io.Reader) (*Result, error) {
	txs, err := im.parse(ctx, r)
	if err != nil {
		return nil, err
	}

	res := &Result{ImportID: uuid.NewString(), Parsed: len(txs)}

	matcher, err := im.rules.Load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range txs {
		txs[i].ImportID = res.ImportID
		m := matcher.Match(txs[i].Description)
		if m == nil {
			continue
		}
		id := m.Rule.CategoryID
		txs[i].CategoryID = &id
		txs[i].AutoCategoryID = &id
		txs[i].Confidence = m.Rule.Confidence
		txs[i].NeedsReview = m.NeedsReview
		res.Categorized++
		if m.NeedsReview {
			res.NeedsReview++
		}
	}

	res.Inserted, res.Skipped, err = im.store.InsertTransactions(ctx, txs)
	if err != nil {
		return nil, err
	}

	uploadedAt := im.now().UTC().Format(time.RFC3339)
	if err := im.store.SetConfigValue(ctx, ledger.ConfigLastUploadAt, uploadedAt); err != nil {
		return nil, fmt.Errorf("record upload time: %w", err)
	}
	return res, nil
}

// =============================================================================
// PARSING
// =============================================================================

func (im *Importer) parse(ctx context.Context, r io.Reader) ([]ledger.Transaction, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &ledger.ValidationError{Field: "file", Reason: "empty CSV"}
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	var txs []ledger.Transaction
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		tx, err := im.parseRecord(ctx, record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		txs = append(txs, tx)
	}
	if len(txs) == 0 {
		return nil, &ledger.ValidationError{Field: "file", Reason: "no transaction rows"}
	}
	return txs, nil
}

func checkHeader(header []string) error {
	if len(header) < len(expectedHeader) {
		return &ledger.ValidationError{Field: "header", Reason: fmt.Sprintf("expected %d columns, got %d", len(expectedHeader), len(header))}
	}
	for i, want := range expectedHeader {
		got := strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
		if !strings.EqualFold(got, want) {
			return &ledger.ValidationError{Field: "header", Reason: fmt.Sprintf("column %d: expected %q, got %q", i+1, want, got)}
		}
	}
	return nil
}

func (im *Importer) parseRecord(ctx context.Context, record []string) (ledger.Transaction, error) {
	var tx ledger.Transaction
	if len(record) < len(expectedHeader) {
		return tx, &ledger.ValidationError{Field: "row", Reason: "too few columns"}
	}

	tx.AccountNumber = strings.TrimSpace(record[0])
	if tx.AccountNumber == "" {
		return tx, &ledger.ValidationError{Field: "account number", Reason: "must not be empty"}
	}
	name, err := im.store.AccountName(ctx, tx.AccountNumber)
	if err != nil {
		return tx, err
	}
	tx.AccountName = name

	tx.PostDate, err = parseDate(record[1])
	if err != nil {
		return tx, err
	}
	tx.CheckNumber = strings.TrimSpace(record[2])
	tx.Description = strings.TrimSpace(record[3])
	tx.Status = strings.TrimSpace(record[6])

	tx.Debit, err = parseOptionalAmount(record[4])
	if err != nil {
		return tx, &ledger.ValidationError{Field: "debit", Reason: err.Error()}
	}
	tx.Credit, err = parseOptionalAmount(record[5])
	if err != nil {
		return tx, &ledger.ValidationError{Field: "credit", Reason: err.Error()}
	}

	balance, err := parseOptionalAmount(record[7])
	if err != nil {
		return tx, &ledger.ValidationError{Field: "balance", Reason: err.Error()}
	}
	if balance != nil {
		tx.Balance = *balance
	}
	return tx, nil
}

func parseDate(raw string) (ledger.Date, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return ledger.DateOf(t), nil
		}
	}
	return ledger.Date{}, &ledger.ValidationError{Field: "post date", Reason: fmt.Sprintf("unrecognized date %q", raw)}
}

// parseOptionalAmount cleans currency formatting ($, commas, parentheses
// for negatives) and parses the remainder. Blank means absent.
func parseOptionalAmount(raw string) (*decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("unparseable amount %q", raw)
	}
	if negative {
		d = d.Neg()
	}
	return &d, nil
}
