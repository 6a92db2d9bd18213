package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNotFound is returned both when a row does not exist and when it
// exists but the caller is not allowed to see it. The two cases are
// deliberately indistinguishable.
var ErrNotFound = errors.New("record not found")

// ErrInvalidCredentials is returned on a failed login. It does not say
// whether the email or the password was wrong.
var ErrInvalidCredentials = errors.New("incorrect email or password")

// ErrInvalidToken is returned for refresh tokens that are malformed,
// expired, revoked, or otherwise not honored.
var ErrInvalidToken = errors.New("invalid token")

// ValidationError reports per-field problems with a write payload. No
// write is attempted when one is returned.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return strings.Join(parts, "; ")
}

// IsValidationError reports whether err is a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
