// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a conflicting concurrent operation, such as a second
// generation trigger for a month that already has a batch in flight.
var ErrConflict = errors.New("conflict")

// ErrValidation indicates invalid caller input (bad month format, unknown
// export format, unknown consent status).
var ErrValidation = errors.New("validation")

// ErrNotReady indicates a batch download was requested before the batch
// reached the ready state.
var ErrNotReady = errors.New("batch not ready")
