package commitlog

import "errors"

var (
	ErrOffsetOutOfRange = errors.New("commitlog: offset out of range")
	ErrQueueEmpty       = errors.New("commitlog: no segments present")
	ErrClosed           = errors.New("commitlog: engine is closed")
)
