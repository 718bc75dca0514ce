package domain

import "errors"

// ErrNotFound is returned by backends when a document id is unknown.
var ErrNotFound = errors.New("not found")

// ErrNotConnected is returned by a ConnectionManager when sending on an account that is not online.
var ErrNotConnected = errors.New("account is not connected")

// ErrAccountNotFound is returned when an account alias is not registered with the manager.
var ErrAccountNotFound = errors.New("account not found")

// ErrSealed is returned when a Performance is mutated or sealed after it was sealed.
var ErrSealed = errors.New("performance already sealed")

// ErrRunStopped marks work aborted by an explicit stop request.
var ErrRunStopped = errors.New("playback stopped")
