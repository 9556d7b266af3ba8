package settings

import (
	"context"
	"errors"
)

// Gateway is the remote persistence contract the engine depends on. The
// concrete wire format belongs to the implementation; the engine only sees
// section documents. Implementations must enforce authorization on their own
// side: the client policy table is never the security boundary.
type Gateway interface {
	// FetchSettings returns the stored record for a user. A user with no
	// stored record yields an empty record, not an error.
	FetchSettings(ctx context.Context, userID string) (SettingsRecord, error)

	// UpdateSection persists one section's payload and returns the canonical
	// section as the server now holds it, after any normalization or clamping.
	UpdateSection(ctx context.Context, userID string, sectionID SectionID, payload SectionData) (SectionData, error)
}

var (
	// ErrSectionBusy rejects a submit while one is already in flight for the
	// same section. Recoverable by waiting for the in-flight one to resolve.
	ErrSectionBusy = errors.New("section has a submit in flight")

	// ErrUnknownSection rejects operations against an undeclared section id.
	ErrUnknownSection = errors.New("unknown settings section")

	// ErrUnauthorized is returned by the gateway when the caller's role
	// disallows the mutation.
	ErrUnauthorized = errors.New("role does not permit this change")

	// ErrInvalidCredentials is returned by the gateway when a password change
	// carries the wrong current password.
	ErrInvalidCredentials = errors.New("current password is incorrect")
)
