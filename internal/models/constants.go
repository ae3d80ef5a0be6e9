package models

// Boundary error codes. Every failure surfaced to the caller uses
// {kind: error, code, message}.
const (
	ErrorCodeEmptyIdentity      = "EmptyIdentity"
	ErrorCodeEmptyRequest       = "EmptyRequest"
	ErrorCodeAmbiguousIdentity  = "AmbiguousIdentity"
	ErrorCodeNotFound           = "CustomerNotFound"
	ErrorCodeRecordConflict     = "RecordConflict"
	ErrorCodeMissingAccount     = "MissingAccountRecord"
	ErrorCodeEmptyCorpus        = "EmptyCorpus"
	ErrorCodeEmbeddingFailed    = "EmbeddingUnavailable"
	ErrorCodeGenerationFailed   = "GenerationFailed"
	ErrorCodeUnparsableResponse = "UnparsableResponse"
	ErrorCodeUpstream           = "UpstreamError"
)

// ErrorMessageGeneric is the placeholder message when upstream supplies none.
const ErrorMessageGeneric = "upstream response could not be interpreted"

// FallbackAnswer substitutes an empty qa answer so the caller can still
// render something, flagged as reduced confidence.
const FallbackAnswer = "I could not find a confident answer in the policy documents. Please rephrase the question or consult a loan officer."

var LoanDecisionPromptTemplate = `You are a senior loan officer who balances risk, policy, and responsible lending.

Customer record:
%s

Relevant policy sections:
%s

Using the customer data and policy rules, determine:
- Risk Rating (Low Risk / Medium Risk / High Risk)
- Recommended Interest Rate
- Final Decision (approved/rejected)
- A formal letter to the customer

MANDATORY HARD RULE:
If nationality is NOT %s AND the residency status does not grant eligibility,
the risk MUST be "High Risk" AND the decision MUST be "rejected".

Return ONLY valid JSON:
{
 "decision": "approved" or "rejected",
 "risk": "<risk rating>",
 "rate": <rate or null>,
 "letter": "<formal letter>",
 "citations": ["<policy reference>", ...]
}
`

var PolicyQAPromptTemplate = `You are a helpful assistant for a lending team. Use the provided policy context to answer the query.

Context:
%s

Query: %s

Return ONLY valid JSON:
{
 "answer": "<your answer>"
}
`
