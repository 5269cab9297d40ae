package aggregator

import "errors"

var (
	// ErrEmptyObservationSet indicates a strategy was given zero observations.
	ErrEmptyObservationSet = errors.New("empty observation set")
	// ErrUnknownMode indicates an unsupported strategy mode.
	ErrUnknownMode = errors.New("unknown aggregation mode")
	// ErrUnknownOutlierMethod indicates an unsupported outlier method.
	ErrUnknownOutlierMethod = errors.New("unknown outlier method")
)
