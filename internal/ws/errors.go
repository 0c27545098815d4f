package ws

import "errors"

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrWriteTimeout     = errors.New("write timeout")
	ErrInvalidJSON      = errors.New("invalid JSON payload")
	ErrNilConnection    = errors.New("nil connection")
	ErrNoIdentity       = errors.New("connection has no identity")
)
