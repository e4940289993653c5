package vendure

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Request is a single GraphQL operation.
type Request struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

func (r Request) operation() string {
	if r.OperationName != "" {
		return r.OperationName
	}
	fields := strings.Fields(r.Query)
	for i, field := range fields {
		if (field == "query" || field == "mutation") && i+1 < len(fields) {
			name := fields[i+1]
			if idx := strings.IndexAny(name, "({"); idx >= 0 {
				name = name[:idx]
			}
			if name != "" {
				return name
			}
		}
	}
	return "anonymous"
}

// GraphQLError is one entry of a GraphQL errors array.
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Code returns extensions.code when the backend set one.
func (e GraphQLError) Code() string {
	if e.Extensions == nil {
		return ""
	}
	code, _ := e.Extensions["code"].(string)
	return code
}

// Result is the uniform outcome of Execute.
type Result struct {
	Data       json.RawMessage `json:"data,omitempty"`
	Errors     []GraphQLError  `json:"errors,omitempty"`
	SetCookies []string        `json:"-"`
}

// HasErrors reports whether the backend or the transport reported any error.
func (r Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// FirstMessage returns the first error message, or fallback when there is none.
func (r Result) FirstMessage(fallback string) string {
	for _, e := range r.Errors {
		if e.Message != "" {
			return e.Message
		}
	}
	return fallback
}

// HasErrorCode reports whether any error carries the extensions code.
func (r Result) HasErrorCode(code string) bool {
	for _, e := range r.Errors {
		if e.Code() == code {
			return true
		}
	}
	return false
}

// Decode unmarshals the data payload into v. A missing payload leaves v untouched.
func (r Result) Decode(v any) error {
	if len(r.Data) == 0 || string(r.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("decode graphql data: %w", err)
	}
	return nil
}
