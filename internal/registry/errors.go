package registry

import "errors"

var (
	// ErrUnknownAgent is returned when a target key does not resolve.
	ErrUnknownAgent = errors.New("registry: unknown agent")
	// ErrDuplicateKey is returned when two agents share a key.
	ErrDuplicateKey = errors.New("registry: duplicate agent key")
)
