// Package customer merges the credit, account and residency record sources
// into one validated profile and applies the jurisdiction eligibility rule.
package customer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"loan-rag/internal/models"
	"loan-rag/internal/records"
)

var (
	ErrEmptyIdentity     = errors.New("identity must not be empty")
	ErrNotFound          = errors.New("customer not found")
	ErrAmbiguousIdentity = errors.New("multiple customers match the given name, provide a unique ID")
	ErrRecordConflict    = errors.New("record sources conflict")
	ErrMissingAccount    = errors.New("account status record missing")
)

// residencyDenied lists the statuses that do not grant work/credit
// eligibility. Ambiguity about data presence never defaults to eligible.
var residencyDenied = map[string]bool{
	"":        true,
	"no":      true,
	"false":   true,
	"0":       true,
	"none":    true,
	"nan":     true,
	"unknown": true,
}

type Resolver struct {
	store records.Store
	local string
}

// NewResolver builds a resolver over the given record store. local is the
// nationality that needs no residency record.
func NewResolver(store records.Store, local string) *Resolver {
	return &Resolver{store: store, local: local}
}

// Resolve looks an identity (unique ID or exact display name) up across the
// three record sources and merges the rows into one profile. The returned
// profile is flagged Ineligible when the residency rule fails; hard errors
// (not found, ambiguous, conflicting records) are returned as errors.
func (r *Resolver) Resolve(ctx context.Context, identity string) (models.CustomerProfile, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return models.CustomerProfile{}, ErrEmptyIdentity
	}

	credit, err := r.store.Read(ctx, records.SourceCredit)
	if err != nil {
		return models.CustomerProfile{}, err
	}
	accounts, err := r.store.Read(ctx, records.SourceAccounts)
	if err != nil {
		return models.CustomerProfile{}, err
	}

	creditRec, creditOK, err := match(credit, identity)
	if err != nil {
		return models.CustomerProfile{}, err
	}
	accountRec, accountOK, err := match(accounts, identity)
	if err != nil {
		return models.CustomerProfile{}, err
	}

	if !creditOK && !accountOK {
		return models.CustomerProfile{}, ErrNotFound
	}

	// Anchor the identity on whichever source matched, then re-resolve the
	// other by the now-known unique ID.
	id := creditRec.ID
	if !creditOK {
		id = accountRec.ID
	}
	if !creditOK {
		creditRec, creditOK, err = matchID(credit, id)
		if err != nil {
			return models.CustomerProfile{}, err
		}
	}
	if !accountOK {
		accountRec, accountOK, err = matchID(accounts, id)
		if err != nil {
			return models.CustomerProfile{}, err
		}
	}
	if creditOK && accountOK && creditRec.ID != accountRec.ID {
		return models.CustomerProfile{}, fmt.Errorf("%w: identity %q resolves to IDs %s and %s",
			ErrRecordConflict, identity, creditRec.ID, accountRec.ID)
	}
	if !accountOK {
		return models.CustomerProfile{}, fmt.Errorf("%w: ID %s", ErrMissingAccount, id)
	}

	profile := models.CustomerProfile{
		ID:            id,
		Name:          firstKnown(creditRec.Name, accountRec.Name),
		Email:         firstKnown(creditRec.Email, accountRec.Email),
		Nationality:   accountRec.Nationality,
		AccountStatus: accountRec.AccountStatus,
	}
	if creditOK && creditRec.HasCreditScore {
		profile.CreditScore = creditRec.CreditScore
	}

	if err := r.applyResidency(ctx, &profile); err != nil {
		return models.CustomerProfile{}, err
	}

	log.Debug().Str("id", profile.ID).Str("name", profile.Name).
		Bool("ineligible", profile.Ineligible).Msg("Resolved customer profile")
	return profile, nil
}

// applyResidency enforces the jurisdiction rule: a non-local customer needs
// a residency record whose status grants eligibility. Missing or denying
// records flag the profile, which short-circuits the pipeline to rejection.
func (r *Resolver) applyResidency(ctx context.Context, profile *models.CustomerProfile) error {
	if strings.EqualFold(profile.Nationality, r.local) {
		profile.ResidencyStatus = models.ResidencyNotRequired
		return nil
	}

	residency, err := r.store.Read(ctx, records.SourceResidency)
	if err != nil {
		return err
	}
	rec, ok, err := matchID(residency, profile.ID)
	if err != nil {
		return err
	}
	if !ok {
		profile.ResidencyStatus = models.UnknownValue
		profile.Ineligible = true
		profile.IneligibleReason = fmt.Sprintf(
			"residency record required for non-%s customer %s but none exists", r.local, profile.ID)
		return nil
	}

	profile.ResidencyStatus = rec.PRStatus
	if residencyDenied[strings.ToLower(strings.TrimSpace(rec.PRStatus))] {
		profile.Ineligible = true
		profile.IneligibleReason = fmt.Sprintf(
			"residency status %q does not grant credit eligibility", rec.PRStatus)
	}
	return nil
}

// match finds the rows for an identity within one source: by ID when the
// identity is numeric, otherwise by exact (case-insensitive) name. A name
// resolving to more than one ID is ambiguous; two rows for the same ID with
// conflicting fields is a data integrity error.
func match(rows []records.Record, identity string) (records.Record, bool, error) {
	return matchRows(rows, identity, isDigits(identity))
}

// matchID always matches by exact ID, for lookups where the identity is
// already anchored and the ID heuristic must not apply.
func matchID(rows []records.Record, id string) (records.Record, bool, error) {
	return matchRows(rows, id, true)
}

func matchRows(rows []records.Record, identity string, byID bool) (records.Record, bool, error) {
	var found []records.Record
	for _, row := range rows {
		if byID && row.ID == identity {
			found = append(found, row)
		}
		if !byID && strings.EqualFold(row.Name, identity) {
			found = append(found, row)
		}
	}
	if len(found) == 0 {
		return records.Record{}, false, nil
	}
	first := found[0]
	for _, row := range found[1:] {
		if row.ID != first.ID {
			return records.Record{}, false, fmt.Errorf("%w: %q", ErrAmbiguousIdentity, identity)
		}
		if row.HasCreditScore && first.HasCreditScore && row.CreditScore != first.CreditScore {
			return records.Record{}, false, fmt.Errorf(
				"%w: ID %s has credit scores %d and %d", ErrRecordConflict, first.ID, first.CreditScore, row.CreditScore)
		}
	}
	return first, true, nil
}

func firstKnown(values ...string) string {
	for _, v := range values {
		if v != "" && v != models.UnknownValue {
			return v
		}
	}
	return models.UnknownValue
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
