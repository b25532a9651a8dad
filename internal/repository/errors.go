package repository

import "errors"

// Failure taxonomy shared by the fetcher, the store and the search resolver.
var (
	ErrNetworkFailure    = errors.New("network failure")
	ErrNotFound          = errors.New("not found")
	ErrMalformedResponse = errors.New("malformed response")
	ErrNoData            = errors.New("no data")
	ErrAPIKeyMissing     = errors.New("API key missing")
	ErrCorruptStore      = errors.New("corrupt stored data")
)
