package entities

import "errors"

var (
	// ErrDecode marks a malformed audio or image payload. The unit is
	// discarded and the session continues.
	ErrDecode = errors.New("malformed media payload")

	// ErrProviderUnavailable marks a failed link, connect, or timeout to a
	// collaborator. The cycle is abandoned; retry happens on the next
	// naturally arriving frame.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrLinkClosed is returned by in-flight cycles that observe the
	// persistent face link being torn down.
	ErrLinkClosed = errors.New("face link closed")
)
