// Package apperr defines the protocol-level error taxonomy tool handlers
// surface to MCP callers (spec §6.4, §7).
package apperr

import "fmt"

// Code is one of the fixed protocol-level error codes.
type Code string

const (
	InvalidParams Code = "InvalidParams"
	NodeExists    Code = "NodeExists"
	NodeNotFound  Code = "NodeNotFound"
	LinkIntegrity Code = "LinkIntegrity"
	ProviderError Code = "ProviderError"
)

// MCPError is the structured error shape returned to MCP callers; it is
// distinct from internal Go errors, which are wrapped with fmt.Errorf and
// never cross the tool-handler boundary directly (spec §7).
type MCPError struct {
	Code    Code                   `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New constructs an MCPError.
func New(code Code, message string, details map[string]interface{}) *MCPError {
	return &MCPError{Code: code, Message: message, Details: details}
}

// Invalid builds an InvalidParams error naming the offending field.
func Invalid(field, reason string) *MCPError {
	return New(InvalidParams, fmt.Sprintf("%s: %s", field, reason), map[string]interface{}{"field": field})
}

// Provider wraps an infrastructure failure as a ProviderError.
func Provider(err error) *MCPError {
	return New(ProviderError, err.Error(), nil)
}
