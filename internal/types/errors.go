package types

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks failures that must stop the process at startup
	ErrConfiguration = errors.New("configuration error")

	// ErrResolution is the parent of every address resolution failure
	ErrResolution = errors.New("address resolution failed")

	// ErrNoSources is returned when the source list is empty
	ErrNoSources = fmt.Errorf("%w: no address sources available", ErrResolution)

	// ErrAllSourcesFailed is returned when every source failed or returned garbage
	ErrAllSourcesFailed = fmt.Errorf("%w: all address sources failed or returned invalid data", ErrResolution)

	// ErrStoreRead wraps history read failures
	ErrStoreRead = errors.New("history read failed")

	// ErrStoreWrite wraps history write failures
	ErrStoreWrite = errors.New("history write failed")

	// ErrNotify wraps notification delivery failures
	ErrNotify = errors.New("notification failed")

	ErrInvalidDriver = errors.New("invalid history driver")
)
