package errs

// CodeError is a protocol-level error carrying a stable numeric code and a
// client-safe message. Detail is for server logs only and never leaves the
// process.
type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func NewCodeError(code int, msg string) *CodeError {
	return &CodeError{Code: code, Msg: msg}
}

func (e *CodeError) Error() string { return e.Msg }

func (e *CodeError) WithDetail(detail string) *CodeError {
	d := detail
	if e.Detail != "" {
		d = e.Detail + ", " + detail
	}
	return &CodeError{Code: e.Code, Msg: e.Msg, Detail: d}
}

// Protocol errors returned by frame handlers; the ws loop turns these into
// error frames on the originating socket.
var (
	ErrUnknownType    = NewCodeError(1000, "unknown message type")
	ErrAlreadyJoined  = NewCodeError(1001, "connection already joined")
	ErrNotJoined      = NewCodeError(1002, "join required")
	ErrNoConversation = NewCodeError(1003, "no conversation bound")
	ErrEmptyMessage   = NewCodeError(1004, "message body required")
	ErrNotAgent       = NewCodeError(1005, "agent connection required")
	ErrRateLimited    = NewCodeError(1006, "message rate limit exceeded")
	ErrReplaced       = NewCodeError(1007, "connection replaced")
	ErrBadPayload     = NewCodeError(1008, "malformed payload")
)
