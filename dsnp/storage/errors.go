package storage

import "errors"

var (
	ErrNotFound    = errors.New("object not found")
	ErrNoOpener    = errors.New("no opener registered for locator")
	ErrSinkClosed  = errors.New("sink already ended or aborted")
	ErrBadLocator  = errors.New("locator does not belong to this store")
	ErrHTTPStatus  = errors.New("unexpected http status")
	ErrEmptyPrefix = errors.New("opener prefix cannot be empty")
)
