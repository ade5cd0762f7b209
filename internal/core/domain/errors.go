package domain

import (
	"errors"
	"fmt"
)

var (
	ErrPhotoNotFound   = errors.New("photo not found")
	ErrRunNotFound     = errors.New("regeneration run not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrTemporary       = errors.New("temporary failure")
	ErrConflict        = errors.New("conflict")
	ErrRateLimited     = errors.New("ai rate limit exceeded")
	ErrContentFiltered = errors.New("content filter response")
	ErrParse           = errors.New("invalid ai response")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
