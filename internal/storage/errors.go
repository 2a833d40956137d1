package storage

import "errors"

// ErrNotFound reports a cache miss, an unset flag or cursor, or an empty price series.
var ErrNotFound = errors.New("storage: not found")

// ErrInvalidInput rejects empty tokens and keys before they reach a backend.
var ErrInvalidInput = errors.New("storage: invalid input")
