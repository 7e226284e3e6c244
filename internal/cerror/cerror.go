// Package cerror carries results across the native capture boundary as an
// explicit code plus message instead of an in-band panic or sentinel value.
// Code 0 means success; callers branch on the code and may log the message,
// but must never parse it.
package cerror

import "fmt"

// Well-known codes reported by native backends. Anything nonzero that is not
// listed here is a fatal failure.
const (
	CodeSuccess = 0
	// CodeFailure is the generic fatal code for native calls that have no
	// more specific classification.
	CodeFailure = 1
	// CodeNoCapturables is reported by target enumeration when the display
	// has nothing to offer. It is advisory: log it and carry on with an
	// empty list. The value is fixed by the native contract.
	CodeNoCapturables = 2
)

// CError is the outcome of a single native-boundary call. A nil *CError
// means the call succeeded.
type CError struct {
	Code    int32
	Message string
}

// New returns a fatal error with the generic failure code.
func New(message string) *CError {
	return &CError{Code: CodeFailure, Message: message}
}

// Newf returns a fatal error with the given code and a formatted message.
func Newf(code int32, format string, args ...interface{}) *CError {
	return &CError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *CError) Error() string {
	return fmt.Sprintf("native error %d: %s", e.Code, e.Message)
}

// IsNoCapturables reports whether the error is the advisory
// "no capturable targets" condition from target enumeration.
func IsNoCapturables(e *CError) bool {
	return e != nil && e.Code == CodeNoCapturables
}
