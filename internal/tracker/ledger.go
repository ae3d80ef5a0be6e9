package tracker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"loan-rag/internal/models"
)

// LedgerEntry is the persisted form of one finalized decision, keyed by
// customer ID in the ledger file.
type LedgerEntry struct {
	Name             string   `json:"name"`
	Nationality      string   `json:"nationality"`
	ResidencyStatus  string   `json:"residency_status"`
	AIRecommendation string   `json:"ai_recommendation"`
	Decision         string   `json:"decision"`
	Risk             string   `json:"risk"`
	Rate             *float64 `json:"rate"`
	Justification    string   `json:"justification"`
	Timestamp        string   `json:"timestamp"`
}

// Ledger appends finalized decisions to a JSON file so they survive the
// session. Writes are whole-file (read, merge, rewrite) like any small
// audit log.
type Ledger struct {
	mu   sync.Mutex
	path string
}

func NewLedger(path string) *Ledger {
	return &Ledger{path: path}
}

func (l *Ledger) Record(fd FinalizedDecision) error {
	app := fd.Decision.Application
	if app == nil {
		return fmt.Errorf("finalized decision has no application body")
	}

	key := fd.ID
	entry := LedgerEntry{
		AIRecommendation: fd.AIRecommendation,
		Decision:         fd.OfficerDecision,
		Risk:             app.Risk,
		Rate:             app.Rate,
		Justification:    fd.Justification,
		Timestamp:        fd.FinalizedAt.Format(time.RFC3339),
	}
	if app.Customer != nil {
		key = app.Customer.ID
		entry.Name = app.Customer.Name
		entry.Nationality = app.Customer.Nationality
		entry.ResidencyStatus = app.Customer.ResidencyStatus
	} else {
		entry.Name = models.UnknownValue
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}

	entries := map[string]LedgerEntry{}
	if data, err := os.ReadFile(l.path); err == nil {
		// A corrupt ledger is replaced rather than blocking the decision.
		_ = json.Unmarshal(data, &entries)
	}
	entries[key] = entry

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(l.path, data, 0o644)
}
