package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized indicates the upstream API rejected the session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUpstream indicates the backoffice API failed or was unreachable.
	ErrUpstream = errors.New("upstream unavailable")
)
