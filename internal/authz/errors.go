package authz

import "errors"

var (
	ErrInvalidInput = errors.New("authz: invalid input")
	ErrNotFound     = errors.New("authz: not found")
)
