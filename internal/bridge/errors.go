package bridge

import "errors"

var (
	// ErrInvalidCommand is returned for command payloads that cannot be
	// decoded or name an unknown command.
	ErrInvalidCommand = errors.New("bridge: invalid command")

	// ErrStopping is reported for commands that arrive after Stop.
	ErrStopping = errors.New("bridge: stopping")

	// ErrMissingDependency is returned by New when a required option is nil.
	ErrMissingDependency = errors.New("bridge: missing dependency")
)
