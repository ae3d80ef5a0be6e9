// Package tracker holds the session-scoped lifecycle of a pending loan
// decision: Idle -> Pending -> Finalized (then back to Idle), with running
// statistics counted exactly once per finalized application.
package tracker

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"loan-rag/internal/helper"
	"loan-rag/internal/models"
)

var (
	ErrAlreadyPending         = errors.New("an application is already pending officer review")
	ErrNoPending              = errors.New("no application is pending officer review")
	ErrJustificationRequired  = errors.New("a justification is required to finalize a decision")
	ErrInvalidKind            = errors.New("only loan_application decisions can be submitted for review")
	ErrInvalidOfficerDecision = errors.New("officer decision must be approved or rejected")
)

// PendingDecision is a loan_application decision awaiting the officer.
type PendingDecision struct {
	ID          string                    `json:"id"`
	Request     string                    `json:"request"`
	Decision    models.NormalizedDecision `json:"decision"`
	SubmittedAt time.Time                 `json:"submitted_at"`
}

// FinalizedDecision records the officer's authoritative choice next to the
// AI recommendation it confirmed or overrode.
type FinalizedDecision struct {
	PendingDecision
	AIRecommendation string    `json:"ai_recommendation"`
	OfficerDecision  string    `json:"officer_decision"`
	Justification    string    `json:"justification"`
	FinalizedAt      time.Time `json:"finalized_at"`
}

// Stats are the session's running counts. Counts only ever grow.
type Stats struct {
	Total    int `json:"total"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// ApprovalRate is approved/total, 0 when nothing has been finalized.
func (s Stats) ApprovalRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Approved) / float64(s.Total)
}

// Session tracks at most one pending application at a time. All mutation is
// mutex-guarded so near-simultaneous finalize attempts cannot double-count.
type Session struct {
	mu      sync.Mutex
	pending *PendingDecision
	stats   Stats
	history []FinalizedDecision
	ledger  *Ledger
}

// NewSession creates an idle session. ledger may be nil to skip persistence.
func NewSession(ledger *Ledger) *Session {
	return &Session{ledger: ledger}
}

// Submit stores a loan_application decision for officer review. Valid only
// while idle; a second submit is rejected until the first is finalized.
func (s *Session) Submit(decision models.NormalizedDecision, request string) (PendingDecision, error) {
	if decision.Kind != models.KindLoanApplication || decision.Application == nil {
		return PendingDecision{}, ErrInvalidKind
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		return PendingDecision{}, ErrAlreadyPending
	}

	id, err := helper.GenerateUUID()
	if err != nil {
		return PendingDecision{}, err
	}
	pending := PendingDecision{
		ID:          id,
		Request:     request,
		Decision:    decision,
		SubmittedAt: time.Now(),
	}
	s.pending = &pending
	log.Debug().Str("id", id).Str("request", request).Msg("Application pending officer review")
	return pending, nil
}

// Finalize applies the officer's decision. The officer's choice, not the AI
// recommendation, is what the stats count. On success the session returns
// to idle.
func (s *Session) Finalize(officerDecision, justification string) (FinalizedDecision, error) {
	officerDecision = strings.ToLower(strings.TrimSpace(officerDecision))
	if officerDecision != models.DecisionApproved && officerDecision != models.DecisionRejected {
		return FinalizedDecision{}, ErrInvalidOfficerDecision
	}
	if strings.TrimSpace(justification) == "" {
		return FinalizedDecision{}, ErrJustificationRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return FinalizedDecision{}, ErrNoPending
	}

	finalized := FinalizedDecision{
		PendingDecision:  *s.pending,
		AIRecommendation: s.pending.Decision.Application.Decision,
		OfficerDecision:  officerDecision,
		Justification:    strings.TrimSpace(justification),
		FinalizedAt:      time.Now(),
	}

	s.stats.Total++
	if officerDecision == models.DecisionApproved {
		s.stats.Approved++
	} else {
		s.stats.Rejected++
	}
	s.history = append(s.history, finalized)
	s.pending = nil

	if s.ledger != nil {
		if err := s.ledger.Record(finalized); err != nil {
			log.Warn().Err(err).Msg("Failed to persist finalized decision")
		}
	}

	log.Info().Str("id", finalized.ID).Str("officer_decision", officerDecision).
		Str("ai_recommendation", finalized.AIRecommendation).Msg("Application finalized")
	return finalized, nil
}

// Pending returns the active application, if any.
func (s *Session) Pending() (PendingDecision, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return PendingDecision{}, false
	}
	return *s.pending, true
}

// Stats returns a copy of the running counts.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Recent returns up to n finalized applications, newest first.
func (s *Session) Recent(n int) []FinalizedDecision {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.history) {
		n = len(s.history)
	}
	out := make([]FinalizedDecision, 0, n)
	for i := len(s.history) - 1; i >= len(s.history)-n; i-- {
		out = append(out, s.history[i])
	}
	return out
}
