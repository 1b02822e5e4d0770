package segment

// warmup sequentially touches every page of the mapping by writing back
// the byte already there, forcing the kernel to back the whole file with
// real pages before the first real append ever blocks on a page fault.
// Mirrors warmMappedFile's write-every-OS_PAGE_SIZE-bytes loop.
func (s *Segment) warmup() {
	data := s.mm.data
	for i := int64(0); i < int64(len(data)); i += pageSize {
		data[i] = data[i]
	}
	// touch the final byte too, in case FileSize isn't page-aligned.
	if n := len(data); n > 0 {
		data[n-1] = data[n-1]
	}
}

// Mlock pins the segment's pages in physical memory, refusing to let the
// kernel swap or reclaim them.
func (s *Segment) Mlock() error { return s.mm.mlock() }

// Munlock releases a previous Mlock.
func (s *Segment) Munlock() error { return s.mm.munlock() }
