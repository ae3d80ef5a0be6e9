// Package normalizer converts the unvalidated output of the
// decision-generation step into a strictly-shaped NormalizedDecision.
// Normalize never fails: payloads that cannot be salvaged downgrade to an
// error-kind decision, and ambiguous loan decisions fail toward rejection.
package normalizer

import (
	"encoding/json"
	"strconv"
	"strings"

	"loan-rag/internal/models"
)

// Normalize turns a raw payload into a guaranteed-shape decision. It is
// idempotent: feeding a serialized NormalizedDecision back through yields
// the same decision.
func Normalize(payload models.RawDecisionPayload) models.NormalizedDecision {
	if payload.Err != nil {
		return models.ErrorDecision(models.ErrorCodeGenerationFailed, payload.Err.Error())
	}

	obj, ok := extractObject(payload.Text)
	if !ok {
		return models.ErrorDecision(models.ErrorCodeUnparsableResponse,
			"no JSON object found in upstream response")
	}

	switch detectKind(obj) {
	case models.KindLoanApplication:
		return normalizeApplication(obj)
	case models.KindQA:
		return normalizeQA(obj)
	default:
		codeRaw, _ := lookup(obj, "code")
		msgRaw, _ := lookup(obj, "message")
		return models.ErrorDecision(str(codeRaw), str(msgRaw))
	}
}

// detectKind uses an explicit kind field when it is one of the known kinds,
// otherwise infers: a decision field means loan_application, an answer
// field means qa, anything else is an error.
func detectKind(obj map[string]any) models.DecisionKind {
	switch models.DecisionKind(strings.ToLower(str(obj["kind"]))) {
	case models.KindQA:
		return models.KindQA
	case models.KindLoanApplication:
		return models.KindLoanApplication
	case models.KindError:
		return models.KindError
	}
	if _, ok := lookup(obj, "decision"); ok {
		return models.KindLoanApplication
	}
	if _, ok := getFold(obj, "answer"); ok {
		return models.KindQA
	}
	return models.KindError
}

func normalizeQA(obj map[string]any) models.NormalizedDecision {
	answerRaw, _ := getFold(obj, "answer")
	answer := strings.TrimSpace(str(answerRaw))
	fallbackRaw, _ := getFold(obj, "fallback")
	fallback, _ := fallbackRaw.(bool)
	if answer == "" {
		answer = models.FallbackAnswer
		fallback = true
	}
	return models.NormalizedDecision{
		Kind:     models.KindQA,
		Answer:   answer,
		Fallback: fallback,
	}
}

func normalizeApplication(obj map[string]any) models.NormalizedDecision {
	app := &models.ApplicationResult{Cited: []string{}}

	decisionRaw, _ := lookup(obj, "decision")
	decision := strings.ToLower(strings.TrimSpace(str(decisionRaw)))
	forcedReject := false
	switch decision {
	case models.DecisionApproved, models.DecisionRejected:
		app.Decision = decision
	default:
		// An ambiguous upstream decision is never an approval.
		app.Decision = models.DecisionRejected
		forcedReject = true
	}

	riskRaw, _ := lookup(obj, "risk")
	app.Risk = canonRisk(str(riskRaw))
	if forcedReject {
		app.Risk = models.RiskHigh
	}

	// Rejections never carry a rate.
	if app.Decision == models.DecisionApproved {
		rateRaw, ok := lookup(obj, "rate")
		if !ok {
			rateRaw, _ = lookup(obj, "interest_rate")
		}
		app.Rate = parseRate(rateRaw)
	}

	letterRaw, ok := lookup(obj, "letter")
	if !ok {
		letterRaw, _ = lookup(obj, "formal_letter")
	}
	app.Letter = str(letterRaw)

	citedRaw, ok := lookup(obj, "citations")
	if !ok {
		citedRaw, _ = lookup(obj, "cited")
	}
	if list, isList := citedRaw.([]any); isList {
		for _, item := range list {
			if s := strings.TrimSpace(str(item)); s != "" {
				app.Cited = append(app.Cited, s)
			}
		}
	}

	if custRaw, ok := lookup(obj, "customer"); ok {
		if custMap, isMap := custRaw.(map[string]any); isMap {
			if data, err := json.Marshal(custMap); err == nil {
				var profile models.CustomerProfile
				if err := json.Unmarshal(data, &profile); err == nil {
					app.Customer = &profile
				}
			}
		}
	}

	return models.NormalizedDecision{
		Kind:        models.KindLoanApplication,
		Application: app,
	}
}

// lookup finds a key case-insensitively, first at the top level, then under
// a nested "application" or "error" object so normalized output re-parses
// to itself.
func lookup(obj map[string]any, key string) (any, bool) {
	if v, ok := getFold(obj, key); ok {
		return v, true
	}
	for _, nested := range []string{"application", "error"} {
		if sub, ok := obj[nested].(map[string]any); ok {
			if v, ok := getFold(sub, key); ok {
				return v, true
			}
		}
	}
	return nil, false
}

func getFold(obj map[string]any, key string) (any, bool) {
	if v, ok := obj[key]; ok {
		return v, true
	}
	for k, v := range obj {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

// canonRisk maps free-form risk wording onto the fixed enumeration, biased
// toward High Risk for anything unrecognized.
func canonRisk(raw string) string {
	switch strings.TrimSuffix(strings.ToLower(strings.TrimSpace(raw)), " risk") {
	case "low", "minimal":
		return models.RiskLow
	case "medium", "moderate", "mid":
		return models.RiskMedium
	case "high":
		return models.RiskHigh
	default:
		return models.RiskHigh
	}
}

// parseRate accepts a numeric or numeric-string rate; anything else, or a
// negative value, yields nil.
func parseRate(raw any) *float64 {
	var rate float64
	switch v := raw.(type) {
	case float64:
		rate = v
	case int:
		rate = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil
		}
		rate = f
	case string:
		s := strings.TrimSuffix(strings.TrimSpace(v), "%")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		rate = f
	default:
		return nil
	}
	if rate < 0 {
		return nil
	}
	return &rate
}

func str(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}
