package domain

import "fmt"

// NotFoundError represents a missing (or not visible) resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

// ValidationError represents malformed input. Not retryable.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e ValidationError) Is(target error) bool {
	_, ok := target.(ValidationError)
	if ok {
		return true
	}
	_, ok = target.(*ValidationError)
	return ok
}

var ErrValidation = ValidationError{}

// DuplicateCodeError represents a composite-code collision. Retryable when
// the suffix was allocated by the gateway, permanent when the caller chose it.
type DuplicateCodeError struct {
	Code string
}

func (e DuplicateCodeError) Error() string {
	if e.Code == "" {
		return "duplicate composite code"
	}
	return fmt.Sprintf("duplicate composite code: %s", e.Code)
}

func (e DuplicateCodeError) Is(target error) bool {
	_, ok := target.(DuplicateCodeError)
	if ok {
		return true
	}
	_, ok = target.(*DuplicateCodeError)
	return ok
}

var ErrDuplicateCode = DuplicateCodeError{}

// UnauthorizedError represents an ownership or permission failure.
type UnauthorizedError struct {
	Message string
}

func (e UnauthorizedError) Error() string {
	if e.Message == "" {
		return "unauthorized"
	}
	return e.Message
}

func (e UnauthorizedError) Is(target error) bool {
	_, ok := target.(UnauthorizedError)
	if ok {
		return true
	}
	_, ok = target.(*UnauthorizedError)
	return ok
}

var ErrUnauthorized = UnauthorizedError{}
