package errs

// Error codes grouped by concern. Codes are part of the wire contract of the
// `error` frame, so existing values must never be renumbered.
const (
	CodeInternal       = 1000
	CodeArgs           = 1001
	CodeAuthentication = 1101
	CodeNotAuthorized  = 1102
	CodeForbidden      = 1103
	CodeNotFound       = 1104
	CodeInvalidState   = 1105
	CodeTokenExpired   = 1106
)

var (
	ErrInternal       = NewCodeError(CodeInternal, "internal error")
	ErrArgs           = NewCodeError(CodeArgs, "invalid argument")
	ErrAuthentication = NewCodeError(CodeAuthentication, "authentication failed")
	ErrNotAuthorized  = NewCodeError(CodeNotAuthorized, "not a participant of this conversation")
	ErrForbidden      = NewCodeError(CodeForbidden, "operation not permitted")
	ErrNotFound       = NewCodeError(CodeNotFound, "record not found")
	ErrInvalidState   = NewCodeError(CodeInvalidState, "invalid message state")
	ErrTokenExpired   = NewCodeError(CodeTokenExpired, "token is expired")
)
