package rvbridge

import "fmt"

// ErrorDomain 适配器自身错误的域
const ErrorDomain = "com.jiaxwu.rvbridge"

const (
	ErrCodeInvalidServerParameters = 101
	ErrCodeAdAlreadyLoaded         = 103
	ErrCodeAdNotReady              = 104
)

// AdError 适配器层面的错误，按Domain和Code判等
type AdError struct {
	Code    int
	Domain  string
	Message string
}

var (
	ErrInvalidServerParameters = &AdError{Code: ErrCodeInvalidServerParameters, Domain: ErrorDomain, Message: "invalid server parameters"}
	ErrAdAlreadyLoaded         = &AdError{Code: ErrCodeAdAlreadyLoaded, Domain: ErrorDomain, Message: "ad already requested"}
	ErrAdNotReady              = &AdError{Code: ErrCodeAdNotReady, Domain: ErrorDomain, Message: "ad not ready"}
)

func newAdError(code int, format string, args ...any) *AdError {
	return &AdError{Code: code, Domain: ErrorDomain, Message: fmt.Sprintf(format, args...)}
}

func (e *AdError) Error() string {
	return fmt.Sprintf("%s(%d): %s", e.Domain, e.Code, e.Message)
}

func (e *AdError) Is(target error) bool {
	t, ok := target.(*AdError)
	return ok && t.Code == e.Code && t.Domain == e.Domain
}
