package hub

import "errors"

var (
	ErrAlreadyRunning   = errors.New("hub already running")
	ErrNotRunning       = errors.New("hub not running")
	ErrEventChannelFull = errors.New("event channel full")
)
