// Package records loads the raw tabular record sources a customer profile
// is merged from. The pipeline only sees the Store interface; the CSV and
// Postgres backends are interchangeable.
package records

import (
	"context"
	"strings"

	"loan-rag/internal/models"
)

// Source names one of the three record tables.
type Source string

const (
	SourceCredit    Source = "credit_scores"
	SourceAccounts  Source = "account_status"
	SourceResidency Source = "pr_status"
)

// Record is one row of a record source. Sources carry different columns,
// so absent columns are left at their zero value and HasCreditScore marks
// whether the credit column was present and numeric.
type Record struct {
	ID             string
	Name           string
	Email          string
	Nationality    string
	AccountStatus  string
	PRStatus       string
	CreditScore    int
	HasCreditScore bool
}

// Store reads a snapshot of one record source. Implementations cache the
// snapshot for the process lifetime.
type Store interface {
	Read(ctx context.Context, src Source) ([]Record, error)
}

// Clean trims a raw field value and coerces the usual spreadsheet garbage
// ("nan", "none", empty) to the Unknown placeholder.
func Clean(value string) string {
	value = strings.TrimSpace(value)
	switch strings.ToLower(value) {
	case "", "nan", "none", "null":
		return models.UnknownValue
	}
	return value
}
