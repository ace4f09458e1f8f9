// Package apperrors defines the closed error taxonomy shared by services and
// handlers. Services return these sentinels (usually wrapped); the HTTP layer
// maps each kind to a status code and treats anything else as unexpected.
package apperrors

import "errors"

var (
	// ErrNotFound: a release, share, track or setting is absent or revoked.
	// Never conflated with RoleNone; "no access" and "does not exist" are
	// different answers.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized: the resolved role denies the attempted action.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidTransition: the approval state machine rejected a move.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrConflict is reserved for optimistic locking. Nothing returns it
	// today; the store is last-write-wins.
	ErrConflict = errors.New("conflict")

	// ErrTransient: a write failed for a recoverable reason. Always
	// retryable, never silently discarded.
	ErrTransient = errors.New("transient failure")
)

func IsNotFound(err error) bool          { return errors.Is(err, ErrNotFound) }
func IsUnauthorized(err error) bool      { return errors.Is(err, ErrUnauthorized) }
func IsInvalidTransition(err error) bool { return errors.Is(err, ErrInvalidTransition) }
func IsTransient(err error) bool         { return errors.Is(err, ErrTransient) }
