package tracker

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-rag/internal/models"
)

func loanDecision() models.NormalizedDecision {
	rate := 4.2
	return models.NormalizedDecision{
		Kind: models.KindLoanApplication,
		Application: &models.ApplicationResult{
			Decision: models.DecisionApproved,
			Risk:     models.RiskLow,
			Rate:     &rate,
			Cited:    []string{"loan_policy.pdf#0"},
			Customer: &models.CustomerProfile{
				ID:          "101",
				Name:        "Alice Tan",
				Nationality: "Singaporean",
			},
		},
	}
}

func TestSubmit(t *testing.T) {
	t.Run("stores pending application", func(t *testing.T) {
		s := NewSession(nil)
		pending, err := s.Submit(loanDecision(), "101")
		require.NoError(t, err)
		assert.NotEmpty(t, pending.ID)

		got, ok := s.Pending()
		require.True(t, ok)
		assert.Equal(t, pending.ID, got.ID)
	})

	t.Run("second submit rejected while pending", func(t *testing.T) {
		s := NewSession(nil)
		_, err := s.Submit(loanDecision(), "101")
		require.NoError(t, err)

		_, err = s.Submit(loanDecision(), "102")
		assert.ErrorIs(t, err, ErrAlreadyPending)
	})

	t.Run("only loan applications accepted", func(t *testing.T) {
		s := NewSession(nil)
		_, err := s.Submit(models.NormalizedDecision{Kind: models.KindQA, Answer: "hi"}, "101")
		assert.ErrorIs(t, err, ErrInvalidKind)
	})
}

func TestFinalize(t *testing.T) {
	t.Run("officer decision is authoritative and counted once", func(t *testing.T) {
		s := NewSession(nil)
		_, err := s.Submit(loanDecision(), "101")
		require.NoError(t, err)

		finalized, err := s.Finalize("rejected", "income docs missing")
		require.NoError(t, err)
		assert.Equal(t, models.DecisionRejected, finalized.OfficerDecision)
		assert.Equal(t, models.DecisionApproved, finalized.AIRecommendation)

		stats := s.Stats()
		assert.Equal(t, 1, stats.Total)
		assert.Equal(t, 0, stats.Approved)
		assert.Equal(t, 1, stats.Rejected)
	})

	t.Run("justification required", func(t *testing.T) {
		s := NewSession(nil)
		_, err := s.Submit(loanDecision(), "101")
		require.NoError(t, err)

		_, err = s.Finalize("approved", "   ")
		assert.ErrorIs(t, err, ErrJustificationRequired)

		// Nothing mutated: still pending, stats untouched.
		_, ok := s.Pending()
		assert.True(t, ok)
		assert.Equal(t, Stats{}, s.Stats())
	})

	t.Run("finalize without pending", func(t *testing.T) {
		s := NewSession(nil)
		_, err := s.Finalize("approved", "fine")
		assert.ErrorIs(t, err, ErrNoPending)
	})

	t.Run("invalid officer decision", func(t *testing.T) {
		s := NewSession(nil)
		_, err := s.Submit(loanDecision(), "101")
		require.NoError(t, err)

		_, err = s.Finalize("maybe", "because")
		assert.ErrorIs(t, err, ErrInvalidOfficerDecision)
	})

	t.Run("second finalize fails and stats unchanged", func(t *testing.T) {
		s := NewSession(nil)
		_, err := s.Submit(loanDecision(), "101")
		require.NoError(t, err)

		_, err = s.Finalize("approved", "meets criteria")
		require.NoError(t, err)
		stats := s.Stats()
		assert.Equal(t, 1, stats.Total)
		assert.Equal(t, 1, stats.Approved)

		_, err = s.Finalize("approved", "meets criteria")
		assert.ErrorIs(t, err, ErrNoPending)
		assert.Equal(t, stats, s.Stats())
	})

	t.Run("session returns to idle for the next application", func(t *testing.T) {
		s := NewSession(nil)
		_, err := s.Submit(loanDecision(), "101")
		require.NoError(t, err)
		_, err = s.Finalize("approved", "meets criteria")
		require.NoError(t, err)

		_, err = s.Submit(loanDecision(), "102")
		assert.NoError(t, err)
	})

	t.Run("concurrent finalize counts exactly once", func(t *testing.T) {
		s := NewSession(nil)
		_, err := s.Submit(loanDecision(), "101")
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = s.Finalize("approved", "double click")
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
			}
		}
		assert.Equal(t, 1, succeeded)
		assert.Equal(t, 1, s.Stats().Total)
	})
}

func TestApprovalRate(t *testing.T) {
	assert.Equal(t, 0.0, Stats{}.ApprovalRate())
	assert.Equal(t, 0.5, Stats{Total: 4, Approved: 2, Rejected: 2}.ApprovalRate())
}

func TestRecent(t *testing.T) {
	s := NewSession(nil)
	for _, id := range []string{"first", "second", "third"} {
		_, err := s.Submit(loanDecision(), id)
		require.NoError(t, err)
		_, err = s.Finalize("approved", "ok")
		require.NoError(t, err)
	}

	recent := s.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "third", recent[0].Request)
	assert.Equal(t, "second", recent[1].Request)
}

func TestLedgerRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger", "loan_decisions.json")

	s := NewSession(NewLedger(path))
	_, err := s.Submit(loanDecision(), "101")
	require.NoError(t, err)
	_, err = s.Finalize("approved", "meets criteria")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entries map[string]LedgerEntry
	require.NoError(t, json.Unmarshal(data, &entries))
	entry, ok := entries["101"]
	require.True(t, ok)
	assert.Equal(t, "Alice Tan", entry.Name)
	assert.Equal(t, models.DecisionApproved, entry.Decision)
	assert.Equal(t, models.RiskLow, entry.Risk)
	assert.Equal(t, "meets criteria", entry.Justification)
}
