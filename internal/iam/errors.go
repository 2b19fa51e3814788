package iam

import "errors"

var (
	ErrNotFound         = errors.New("iam: not found")
	ErrConflict         = errors.New("iam: resource conflict")
	ErrInvalidInput     = errors.New("iam: invalid input")
	ErrPermissionDenied = errors.New("iam: permission denied")
)
