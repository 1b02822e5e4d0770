package segment

import "errors"

var (
	// ErrEndOfFile means the record being appended does not fit in the
	// remaining space of this segment; the caller must pad the tail with
	// a blank frame and roll to the next segment.
	ErrEndOfFile = errors.New("segment: not enough room for record, roll to next file")

	// ErrMessageSizeExceeded means the record would never fit even in an
	// empty segment of this size.
	ErrMessageSizeExceeded = errors.New("segment: record larger than segment size")

	ErrAlreadyClosed    = errors.New("segment: already closed")
	ErrOffsetOutOfRange = errors.New("segment: offset out of range")
	ErrStillReferenced  = errors.New("segment: still referenced, cannot destroy yet")
)
