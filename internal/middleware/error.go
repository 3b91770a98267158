package middleware

// ErrorResponse is the standardized error body emitted by middleware
// that aborts a request before it reaches a handler.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}
