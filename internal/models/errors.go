package models

import "errors"

var (
	// ErrNotFound is returned by stores when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidStatus is returned when a status value is not allowed.
	ErrInvalidStatus = errors.New("invalid status")
)
