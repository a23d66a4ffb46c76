package sheetsync

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ctrlix/bookkeeper/internal/domain"
)

// Fixed column order of the remote transaction sheet. All schema revisions of
// the remote script are folded into this single mapping table.
const (
	colID = iota
	colDate
	colType
	colAmount
	colSummary
	colCategoryName
	colProjectName
	colMethodName
	colHasTaxID
	colRecordedByName
	colStatus
	colCreatedAt
	colAttachmentURL

	// minRowLen is the shortest row still considered well-formed; the
	// attachment column is optional on older rows.
	minRowLen = 12
)

// Localized boolean tokens used in spreadsheet cells.
const (
	cellYes = "是"
	cellNo  = "否"
)

// MapTransactionTable column-maps a tabular remote payload into transactions.
// Malformed rows are skipped rather than aborting the whole snapshot; the
// second return value reports how many were dropped.
func MapTransactionTable(table *TransactionTable) ([]domain.Transaction, int) {
	if table == nil {
		return nil, 0
	}

	var (
		out     []domain.Transaction
		skipped int
	)
	for _, row := range table.Data {
		tx, err := ParseTransactionRow(row)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, tx)
	}
	return out, skipped
}

// ParseTransactionRow maps one raw sheet row into a transaction. The remote
// schema carries only display names for category, project and payment method,
// so the foreign keys are tagged with the unresolved sentinel and downstream
// name resolution falls back to the shadow display fields.
func ParseTransactionRow(row []interface{}) (domain.Transaction, error) {
	if len(row) < minRowLen {
		return domain.Transaction{}, fmt.Errorf("row has %d columns, want at least %d", len(row), minRowLen)
	}

	id := cellString(row[colID])
	if id == "" {
		return domain.Transaction{}, fmt.Errorf("row has empty id")
	}

	txType := domain.TypeExpense
	if cellString(row[colType]) == string(domain.TypeIncome) {
		txType = domain.TypeIncome
	}

	tx := domain.Transaction{
		ID:             id,
		Date:           cellDate(row[colDate]),
		Type:           txType,
		Amount:         cellAmount(row[colAmount]),
		Summary:        cellString(row[colSummary]),
		CategoryName:   cellString(row[colCategoryName]),
		ProjectName:    cellString(row[colProjectName]),
		MethodName:     cellString(row[colMethodName]),
		HasTaxID:       cellBool(row[colHasTaxID]),
		RecordedByName: cellString(row[colRecordedByName]),
		Status:         domain.NormalizeStatus(cellString(row[colStatus])),
		CreatedAt:      cellMillis(row[colCreatedAt]),

		CategoryID:      domain.SyncedID,
		ProjectDeptID:   domain.SyncedID,
		PaymentMethodID: domain.SyncedID,
		RecordedByID:    domain.UnknownUserID,
	}

	if len(row) > colAttachmentURL {
		tx.AttachmentURL = cellString(row[colAttachmentURL])
	}
	return tx, nil
}

// BuildTransactionUpsert renders a transaction into the remote vocabulary.
// Display names are passed in by the caller, resolved from the reference
// lists at replay time so a rename between submit and replay is reflected.
func BuildTransactionUpsert(tx domain.Transaction, catName, projName, methodName, recordedBy string) TransactionUpsert {
	hasTaxID := cellNo
	if tx.HasTaxID {
		hasTaxID = cellYes
	}

	date := ""
	if !tx.Date.IsZero() {
		date = tx.Date.Format(domain.DateOnly)
	}

	createdAt := tx.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return TransactionUpsert{
		ID:             tx.ID,
		Date:           date,
		Type:           string(tx.Type),
		Amount:         tx.Amount.InexactFloat64(),
		Summary:        tx.Summary,
		CategoryName:   catName,
		ProjectName:    projName,
		MethodName:     methodName,
		HasTaxID:       hasTaxID,
		RecordedByName: recordedBy,
		Status:         string(tx.Status),
		CreatedAt:      createdAt.UnixMilli(),
		AttachmentURL:  tx.AttachmentURL,
	}
}

func cellString(v interface{}) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(c)
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(c)
	default:
		return strings.TrimSpace(fmt.Sprint(c))
	}
}

func cellAmount(v interface{}) decimal.Decimal {
	switch c := v.(type) {
	case float64:
		return decimal.NewFromFloat(c)
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(c))
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

// cellDate accepts either a plain calendar date or a full timestamp, which is
// how spreadsheet date cells round-trip. Unparseable dates yield the zero
// time; the row itself stays valid.
func cellDate(v interface{}) time.Time {
	s := cellString(v)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{domain.DateOnly, time.RFC3339, "2006/01/02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		}
	}
	return time.Time{}
}

func cellBool(v interface{}) bool {
	switch c := v.(type) {
	case bool:
		return c
	case string:
		s := strings.TrimSpace(c)
		return s == cellYes || strings.EqualFold(s, "true")
	default:
		return false
	}
}

func cellMillis(v interface{}) time.Time {
	switch c := v.(type) {
	case float64:
		if c > 0 {
			return time.UnixMilli(int64(c)).UTC()
		}
	case string:
		if ms, err := strconv.ParseInt(strings.TrimSpace(c), 10, 64); err == nil && ms > 0 {
			return time.UnixMilli(ms).UTC()
		}
	}
	return time.Now().UTC()
}
