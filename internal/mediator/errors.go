package mediator

import "fmt"

// ValidationError reports malformed caller input. Its message is shown to
// the caller verbatim as a short corrective hint.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "mediator: validation: " + e.Message
}

// DenialReason identifies which authorization stage rejected a call.
type DenialReason string

// Denial reasons.
const (
	DeniedFunction  DenialReason = "function"
	DeniedRowLevel  DenialReason = "row_level"
	DeniedRateLimit DenialReason = "rate_limit"
)

// AuthorizationError reports a function-level, row-level or rate-limit
// denial. Callers only ever see the fixed denial message; the fields exist
// for logs and tests.
type AuthorizationError struct {
	Reason    DenialReason
	CallerID  string
	Role      string
	Operation string
	ClientID  string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("mediator: denied (%s): caller=%s role=%s operation=%s", e.Reason, e.CallerID, e.Role, e.Operation)
}

// ConfigurationError reports a missing query template or registry entry: a
// deployment defect, not a transient condition.
type ConfigurationError struct {
	Operation string
}

func (e *ConfigurationError) Error() string {
	return "mediator: no query configured for operation " + e.Operation
}

// Fixed user-facing messages. Store-level failures deliberately collapse to
// one generic message so schema and driver internals never leak.
const (
	msgAccessDenied  = "Access denied. You don't have permission to view this data."
	msgRateLimited   = "Rate limit exceeded. Please try again later."
	msgConfigMissing = "Query configuration missing. Please contact your administrator."
	msgUnavailable   = "I encountered an error while retrieving the data. Please try again or contact support if the issue persists."
)
