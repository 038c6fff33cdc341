package domain

import "errors"

var (
	// ErrUnknownChannel is returned when a channel name is neither "route" nor "space".
	ErrUnknownChannel = errors.New("unknown channel")
	// ErrUnknownProvider is returned for map providers the engine has no adapter profile for.
	ErrUnknownProvider = errors.New("unknown map provider")
	// ErrSurfaceNotFound is returned when a rendering surface id is not registered.
	ErrSurfaceNotFound = errors.New("surface not found")
)

// ErrPayloadNotFound is returned by payload sources that have nothing stored for an id.
var ErrPayloadNotFound = errors.New("coordinate payload not found")
