package api

import "errors"

// Transport-level sentinels. The store layer classifies these into its own
// user-facing taxonomy with errors.Is.
var (
	ErrBadRequest   = errors.New("api: bad request")
	ErrUnauthorized = errors.New("api: unauthorized")
	ErrForbidden    = errors.New("api: forbidden")
	ErrNotFound     = errors.New("api: not found")
	ErrUnavailable  = errors.New("api: service unavailable")
)
