package dav

import (
	"errors"
	"strconv"
)

// Sentinel errors surfaced by the request base (C2) and method requests
// (C4). Callers use errors.Is/errors.As to classify a failure, the idiom
// used throughout the example pack's HTTP clients.
var (
	// ErrAuthenticationFailed is returned for SSL handshake failures, 401,
	// and 403-on-read: anything that should mark the account's credentials
	// stale rather than just failing one request.
	ErrAuthenticationFailed = errors.New("dav: authentication failed")

	// ErrSoftFailure is returned for 403 on a mutating request (PUT/DELETE)
	// against a read-only collection. The caller must not abort the sync;
	// the local change simply isn't propagated this cycle.
	ErrSoftFailure = errors.New("dav: request not permitted (soft failure)")

	// ErrCollectionGone is returned for 404 on a calendar-level PROPFIND or
	// REPORT: the remote collection no longer exists and the notebook
	// should be scheduled for local deletion.
	ErrCollectionGone = errors.New("dav: calendar collection no longer exists")

	// ErrParseFailed wraps a multistatus XML parse failure.
	ErrParseFailed = errors.New("dav: failed to parse multistatus response")

	// ErrNotSupported is returned by boundary operations this core
	// deliberately declines (see the invitation-plugin boundary).
	ErrNotSupported = errors.New("dav: operation not supported")
)

// StatusError carries the verbatim HTTP status and response body of a
// failing request, packaged for internal diagnostics and log storage.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return "dav: " + e.Method + " " + e.Path + ": unexpected status " + strconv.Itoa(e.Status)
}
