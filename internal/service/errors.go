package service

import "errors"

// Sentinel errors callers branch on with errors.Is. Store I/O failures pass
// through wrapped as-is; reminder scheduling failures are never returned at
// all, only logged, because reminders are best-effort.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("invalid input")
)
