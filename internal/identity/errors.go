package identity

import "errors"

var (
	// ErrInvalidObservation is returned when an observation carries neither an email nor a phone
	// number. It is a client error.
	ErrInvalidObservation = errors.New("either email or phoneNumber must be provided")

	// ErrInconsistent is returned when stored contacts violate the cluster invariants, e.g. a
	// secondary without a primary. It is never patched by guessing.
	ErrInconsistent = errors.New("inconsistent contact cluster")
)
