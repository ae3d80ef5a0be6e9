package models

import "fmt"

// UnknownValue replaces blank or garbage record fields.
const UnknownValue = "Unknown"

// ResidencyNotRequired is the residency status of local-nationality
// customers, who never need a residency record.
const ResidencyNotRequired = "Not Required"

// CustomerProfile is the merged, validated view of one identity across the
// credit, account and residency record sources. Immutable once built.
type CustomerProfile struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	Nationality     string `json:"nationality"`
	AccountStatus   string `json:"account_status"`
	CreditScore     int    `json:"credit_score"`
	ResidencyStatus string `json:"residency_status"`

	// Ineligible is the hard eligibility flag: a non-local customer
	// without a residency grant. Flagged profiles never reach
	// decision-generation.
	Ineligible       bool   `json:"ineligible,omitempty"`
	IneligibleReason string `json:"ineligible_reason,omitempty"`
}

// PolicyChunk is one span of a policy document, with its order preserved so
// neighbouring chunks can be referenced for context.
type PolicyChunk struct {
	DocID     string    `json:"doc_id"`
	Seq       int       `json:"seq"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"-"`
}

// Ref is the citation form of the chunk, e.g. "loan_policy.pdf#3".
func (c PolicyChunk) Ref() string {
	return fmt.Sprintf("%s#%d", c.DocID, c.Seq)
}
