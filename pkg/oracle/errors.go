package oracle

import "errors"

var (
	// ErrDuplicateSource indicates a source name is already registered.
	ErrDuplicateSource = errors.New("source already registered")
	// ErrUnknownSource indicates a source name is not registered.
	ErrUnknownSource = errors.New("unknown source")
	// ErrNoSourcesRegistered indicates the engine has zero sources configured.
	ErrNoSourcesRegistered = errors.New("no sources registered")
	// ErrInsufficientSources indicates too few valid observations survived the
	// pipeline and no cache fallback was available. This is the one condition
	// callers handle for "can't get a trustworthy price right now".
	ErrInsufficientSources = errors.New("insufficient sources")
)
