package types

// SuccessEnvelope wraps every 2xx body.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// CursorEnvelope is one page of a cursor list; Cursor is empty on the last
// page.
type CursorEnvelope struct {
	Data   any    `json:"data"`
	Cursor string `json:"cursor,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// PartialEnvelope carries a result that was computed but not fully applied.
type PartialEnvelope struct {
	Data  any      `json:"data"`
	Error APIError `json:"error"`
}

// APIError is the client-facing error. RequestID echoes X-Request-Id so a
// report can be matched to the server log.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Retryable bool   `json:"retryable"`
}
