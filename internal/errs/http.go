// Package errs defines the error shapes returned to API clients.
//
// Every failure that reaches a client is an *HTTPError serialised as JSON:
//
//	{
//	  "code": "BAD_REQUEST",
//	  "message": "Validation failed",
//	  "status": 400,
//	  "override": true,
//	  "errors": [{ "field": "price", "error": "expected number, but got string" }],
//	  "action": null
//	}
//
// Schema-validation failures fill Errors with one entry per reported problem.
package errs

import "strings"

// FieldError is one field-level problem in a submitted record.
type FieldError struct {
	// Field is the record field (or schema location) the problem relates to.
	Field string `json:"field"`

	// Error is the human-readable reason.
	Error string `json:"error"`
}

// ActionType names something the client should do next.
type ActionType string

const (
	// ActionTypeRedirect asks the client to navigate to Action.Value.
	ActionTypeRedirect ActionType = "redirect"
)

// Action is an optional follow-up instruction attached to an error.
type Action struct {
	Type    ActionType `json:"type"`
	Message string     `json:"message"`
	Value   string     `json:"value"`
}

// HTTPError is the error type understood by the global error handler.
//
//   - Code: machine-friendly code, e.g. "NOT_FOUND" or "PRODUCT_NOT_FOUND".
//   - Message: human-friendly message.
//   - Status: HTTP status code written to the response.
//   - Override: the message is safe to show to end users as-is.
//   - Errors: field-level problems (validation).
//   - Action: optional client instruction.
type HTTPError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Status   int    `json:"status"`
	Override bool   `json:"override"`

	Errors []FieldError `json:"errors"`

	Action *Action `json:"action"`
}

func (e *HTTPError) Error() string {
	return e.Message
}

// Is reports whether target is an *HTTPError of any code or status.
func (e *HTTPError) Is(target error) bool {
	_, ok := target.(*HTTPError)
	return ok
}

// WithMessage returns a copy of e with Message replaced.
func (e *HTTPError) WithMessage(message string) *HTTPError {
	return &HTTPError{
		Code:     e.Code,
		Message:  message,
		Status:   e.Status,
		Override: e.Override,
		Errors:   e.Errors,
		Action:   e.Action,
	}
}

// MakeUpperCaseWithUnderscores turns "Bad Request" into "BAD_REQUEST".
func MakeUpperCaseWithUnderscores(str string) string {
	return strings.ToUpper(strings.ReplaceAll(str, " ", "_"))
}
