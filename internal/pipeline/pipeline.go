// Package pipeline sequences the loan evaluation per request: profile
// resolution, policy retrieval, decision generation and normalization.
// Every failure leaves through the uniform {kind: error, code, message}
// shape so callers never need kind-specific handling.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"loan-rag/internal/customer"
	"loan-rag/internal/llmservice"
	"loan-rag/internal/models"
	"loan-rag/internal/normalizer"
	"loan-rag/internal/policyindex"
)

// defaultLoanQuery retrieves general lending policy when the request text
// gives nothing to search with.
const defaultLoanQuery = "loan eligibility criteria risk rating interest rate"

type Pipeline struct {
	customers *customer.Resolver
	policies  *policyindex.Cache
	generator llmservice.Generator
	local     string
	topK      int
}

func New(customers *customer.Resolver, policies *policyindex.Cache, generator llmservice.Generator, local string, topK int) *Pipeline {
	if topK <= 0 {
		topK = 5
	}
	return &Pipeline{
		customers: customers,
		policies:  policies,
		generator: generator,
		local:     local,
		topK:      topK,
	}
}

// WarmPolicyCache is the explicit startup hook for building the policy
// index ahead of the first request.
func (p *Pipeline) WarmPolicyCache(ctx context.Context, forceRebuild bool) error {
	_, err := p.policies.Warm(ctx, forceRebuild)
	return err
}

// HandleRequest evaluates one request. With an identity hint it runs the
// loan application flow; without one it answers a policy question.
func (p *Pipeline) HandleRequest(ctx context.Context, text, identityHint string) models.NormalizedDecision {
	if strings.TrimSpace(identityHint) != "" {
		return p.evaluateLoan(ctx, text, identityHint)
	}
	return p.answerQuestion(ctx, text)
}

func (p *Pipeline) evaluateLoan(ctx context.Context, text, identity string) models.NormalizedDecision {
	profile, err := p.customers.Resolve(ctx, identity)
	if err != nil {
		return errorDecision(err)
	}

	// Flagged profiles never reach retrieval or generation: the rejection
	// is deterministic and non-overridable downstream.
	if profile.Ineligible {
		log.Info().Str("id", profile.ID).Str("reason", profile.IneligibleReason).
			Msg("Profile ineligible, auto-rejecting")
		return models.NormalizedDecision{
			Kind: models.KindLoanApplication,
			Application: &models.ApplicationResult{
				Decision: models.DecisionRejected,
				Risk:     models.RiskHigh,
				Rate:     nil,
				Letter: fmt.Sprintf(
					"Dear %s, we regret to inform you that your loan application has been rejected: %s.",
					profile.Name, profile.IneligibleReason),
				Cited:    []string{},
				Customer: &profile,
			},
		}
	}

	query := strings.TrimSpace(text)
	if query == "" {
		query = defaultLoanQuery
	}
	idx, matches, err := p.retrieve(ctx, query)
	if err != nil {
		return errorDecision(err)
	}

	profileJSON, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return errorDecision(err)
	}
	prompt := fmt.Sprintf(models.LoanDecisionPromptTemplate,
		string(profileJSON), renderEvidence(idx, matches), p.local)

	decision := normalizer.Normalize(p.generator.Generate(ctx, prompt))
	if decision.Kind == models.KindLoanApplication {
		if decision.Application.Customer == nil {
			decision.Application.Customer = &profile
		}
		if len(decision.Application.Cited) == 0 {
			for _, m := range matches {
				decision.Application.Cited = append(decision.Application.Cited, m.Chunk.Ref())
			}
		}
	}
	return decision
}

func (p *Pipeline) answerQuestion(ctx context.Context, text string) models.NormalizedDecision {
	if strings.TrimSpace(text) == "" {
		return models.ErrorDecision(models.ErrorCodeEmptyRequest, "request text must not be empty")
	}

	idx, matches, err := p.retrieve(ctx, text)
	if err != nil {
		return errorDecision(err)
	}

	prompt := fmt.Sprintf(models.PolicyQAPromptTemplate, renderEvidence(idx, matches), text)
	return normalizer.Normalize(p.generator.Generate(ctx, prompt))
}

func (p *Pipeline) retrieve(ctx context.Context, query string) (*policyindex.Index, []policyindex.Match, error) {
	idx, err := p.policies.Warm(ctx, false)
	if err != nil {
		return nil, nil, err
	}
	matches, err := idx.Query(ctx, query, p.topK)
	if err != nil {
		return nil, nil, err
	}
	return idx, matches, nil
}

// renderEvidence lays out each match with one neighbouring chunk of context
// on either side, so clauses split across a chunk boundary stay readable.
func renderEvidence(idx *policyindex.Index, matches []policyindex.Match) string {
	if len(matches) == 0 {
		return "No relevant policy sections found."
	}
	var evidence strings.Builder
	for i, m := range matches {
		evidence.WriteString(fmt.Sprintf("[Match %d: %s]\n", i+1, m.Chunk.Ref()))
		for _, chunk := range idx.Window(m.Chunk, 1, 1) {
			evidence.WriteString(strings.TrimSpace(chunk.Content))
			evidence.WriteString("\n")
		}
		evidence.WriteString("\n")
	}
	return evidence.String()
}

// errorDecision maps internal errors onto the uniform boundary shape.
func errorDecision(err error) models.NormalizedDecision {
	code := models.ErrorCodeUpstream
	switch {
	case errors.Is(err, customer.ErrEmptyIdentity):
		code = models.ErrorCodeEmptyIdentity
	case errors.Is(err, customer.ErrAmbiguousIdentity):
		code = models.ErrorCodeAmbiguousIdentity
	case errors.Is(err, customer.ErrNotFound):
		code = models.ErrorCodeNotFound
	case errors.Is(err, customer.ErrRecordConflict):
		code = models.ErrorCodeRecordConflict
	case errors.Is(err, customer.ErrMissingAccount):
		code = models.ErrorCodeMissingAccount
	case errors.Is(err, policyindex.ErrEmptyCorpus):
		code = models.ErrorCodeEmptyCorpus
	case errors.Is(err, policyindex.ErrEmbeddingUnavailable):
		code = models.ErrorCodeEmbeddingFailed
	}
	return models.ErrorDecision(code, err.Error())
}
