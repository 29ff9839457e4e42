package service

import "errors"

// Sentinel errors returned by the services. Handlers map them onto HTTP status
// codes.
var (
	ErrNotFound           = errors.New("service: not found")
	ErrInvalidCoordinates = errors.New("service: invalid coordinates")
	ErrInvalidInput       = errors.New("service: invalid input")
)
