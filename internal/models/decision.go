package models

// DecisionKind tags the shape of a NormalizedDecision.
type DecisionKind string

const (
	KindQA              DecisionKind = "qa"
	KindLoanApplication DecisionKind = "loan_application"
	KindError           DecisionKind = "error"
)

// Decision values for a loan application. Anything else coming from
// upstream is mapped to rejected by the normalizer.
const (
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// Risk rating enumeration. Unrecognized upstream ratings map to RiskHigh.
const (
	RiskLow    = "Low Risk"
	RiskMedium = "Medium Risk"
	RiskHigh   = "High Risk"
)

// RawDecisionPayload is the unvalidated result of the decision-generation
// step. Err is set when the upstream call failed outright, in which case
// Text is empty.
type RawDecisionPayload struct {
	Text string
	Err  error
}

// ApplicationResult is the structured body of a loan_application decision.
type ApplicationResult struct {
	Decision string           `json:"decision"`
	Risk     string           `json:"risk"`
	Rate     *float64         `json:"rate"`
	Letter   string           `json:"letter,omitempty"`
	Cited    []string         `json:"citations"`
	Customer *CustomerProfile `json:"customer,omitempty"`
}

// DecisionError is the uniform failure shape exposed at the boundary.
type DecisionError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NormalizedDecision is the guaranteed-shape output of the normalizer.
// Exactly the fields required by Kind are populated.
type NormalizedDecision struct {
	Kind DecisionKind `json:"kind"`

	// qa
	Answer   string `json:"answer,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`

	// loan_application
	Application *ApplicationResult `json:"application,omitempty"`

	// error
	Error *DecisionError `json:"error,omitempty"`
}

// ErrorDecision builds the uniform error-kind decision.
func ErrorDecision(code, message string) NormalizedDecision {
	if code == "" {
		code = ErrorCodeUpstream
	}
	if message == "" {
		message = ErrorMessageGeneric
	}
	return NormalizedDecision{
		Kind:  KindError,
		Error: &DecisionError{Code: code, Message: message},
	}
}
