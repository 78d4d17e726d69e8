package core

// Error codes for domain errors.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotRegistered    = "not_registered"
	ErrCodeStoreUnavailable = "store_unavailable"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeSuperseded       = "superseded"
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
