package session

import "errors"

var (
	// ErrNotInitialised is returned by Update before Init has succeeded.
	ErrNotInitialised = errors.New("session: not initialised")

	// ErrNoCredential is returned by Open when the config carries no API key.
	ErrNoCredential = errors.New("session: no api key configured")
)
