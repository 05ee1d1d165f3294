package services

import "errors"

// ErrInvalidInput marks validation failures detected before any
// persistence attempt. Wrapped errors carry the specific reason.
var ErrInvalidInput = errors.New("invalid input")

// ErrInvalidCredentials is the single outcome for both an unknown email
// and a wrong password, so a caller cannot probe which one it was.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrCoverStorageDisabled is returned when no object storage backend is
// configured for cover images.
var ErrCoverStorageDisabled = errors.New("cover storage is not configured")
