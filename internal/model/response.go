package model

// Response is the envelope every JSON endpoint writes.
type Response struct {
	Data    any     `json:"data,omitempty"`
	Error   *string `json:"error,omitempty"`
	Message string  `json:"message"`
}

// Success wraps data with the given message.
func Success(data any, message string) Response {
	return Response{Data: data, Message: message}
}

// Failure carries a user-facing error text.
func Failure(errMsg, message string) Response {
	return Response{Error: &errMsg, Message: message}
}
