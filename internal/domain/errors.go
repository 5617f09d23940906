package domain

import "errors"

var (
	// ErrMalformedTemplate is returned when a raw template URL has too few segments or no product token.
	ErrMalformedTemplate = errors.New("malformed template url")

	// ErrResourceNotFound is returned when the exterior code table cannot be read.
	ErrResourceNotFound = errors.New("exterior table resource not found")

	// ErrUnknownExteriorCode is returned when a selected code is absent from the exterior table.
	ErrUnknownExteriorCode = errors.New("unknown exterior code")

	// ErrInvalidRequest is returned when a download request fails validation.
	ErrInvalidRequest = errors.New("invalid download request")

	// ErrFetchFailed is returned when an image could not be retrieved or written.
	ErrFetchFailed = errors.New("fetch failed")
)
