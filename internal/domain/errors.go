package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInsufficientCredit = errors.New("insufficient credit")
	ErrValidation         = errors.New("invalid input")
	ErrUpstreamFailure    = errors.New("upstream failure")
	ErrConflict           = errors.New("conflict")
)
