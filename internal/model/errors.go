package model

import "errors"

var (
	// ErrStaleRefresh is returned by Apply for a refresh that started
	// before the most recently applied one.
	ErrStaleRefresh = errors.New("model: stale refresh discarded")

	// ErrUnknownActivity is returned when an activity id is not in the model.
	ErrUnknownActivity = errors.New("model: unknown activity")

	// ErrInvalidTarget is returned for a transition target other than ON or OFF.
	ErrInvalidTarget = errors.New("model: transition target must be ON or OFF")
)
