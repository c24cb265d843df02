package dto

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// ListResponse wraps a collection with its size
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}
