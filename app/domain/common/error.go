package common

// Error is a failure carrying a stable code clients can match on.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

func (e *Error) String() string {
	if e == nil {
		return ""
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Error() string {
	return e.String()
}
