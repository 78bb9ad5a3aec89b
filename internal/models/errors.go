package models

import "errors"

// Sentinel errors shared by the identity and registry layers. Callers use
// errors.Is against these; the dispatcher and api/rest layers translate them
// to HTTP status codes once at the boundary.
var (
	ErrNotFound             = errors.New("entity not found")
	ErrAlreadyExists        = errors.New("entity already exists")
	ErrReferencedEntityGone = errors.New("referenced entity does not exist")
	ErrInvalidState         = errors.New("entity is in an invalid state for this operation")
)

// ErrInvalidPayload wraps a human-readable validation message. It is a
// distinct type, not a sentinel, because the message varies per call site.
type ErrInvalidPayload string

func (e ErrInvalidPayload) Error() string { return string(e) }

// InvalidNameError reports that an entity name failed the whitespace/control
// character restriction shared by Policy, Group and User names.
type InvalidNameError struct {
	Field string
	Value string
}

func (e *InvalidNameError) Error() string {
	return "invalid " + e.Field + ": " + e.Value + " contains whitespace or control characters"
}
