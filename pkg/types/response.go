package types

// ErrorEnvelope is the body of every failed API response.
type ErrorEnvelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// Pagination describes a page of a list response.
type Pagination struct {
	TotalItems      int  `json:"totalItems"`
	CurrentPage     int  `json:"currentPage"`
	TotalPages      int  `json:"totalPages"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
	Limit           int  `json:"limit,omitempty"`
}
