package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("conflict")
)

var (
	ErrAlreadyCompleted = fmt.Errorf("%w: membership is already completed", ErrValidation)
	ErrIncompleteItems  = fmt.Errorf("%w: batch has incomplete items", ErrValidation)
)
