package segment

// Config carries the per-segment sizing and page-cache knobs a Segment
// needs at construction time. Store-wide options (flush intervals, flush
// type, retention) live one layer up in internal/config and are not
// repeated here — a Segment only knows about its own file.
type Config struct {
	// FileSize is the fixed size every segment file is pre-truncated to
	// (mappedFileSizeCommitLog). All segments in a queue share one size.
	FileSize int64

	// WarmOnCreate, when true, sequentially writes every page on create
	// so the kernel backs the whole mapping with real pages before the
	// first append (warmMappedFile's "prefault").
	WarmOnCreate bool

	// LockOnCreate requests mlock on the mapping right after prefault,
	// pinning the segment in physical memory.
	LockOnCreate bool
}
