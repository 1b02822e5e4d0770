package wire

import "errors"

var (
	ErrMessageTooLarge    = errors.New("message exceeds configured maximum size")
	ErrTopicTooLong       = errors.New("topic exceeds 127 bytes")
	ErrPropertiesTooLong  = errors.New("properties blob exceeds 32767 bytes")
	ErrInsufficientBuffer = errors.New("buffer too small to hold encoded record")
	ErrTruncatedRecord    = errors.New("truncated or unparsable record")
	ErrBadMagic           = errors.New("record has an unrecognized magic code")
	ErrCRCMismatch        = errors.New("body CRC mismatch")
)
