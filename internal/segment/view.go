package segment

// View is a refcounted window onto a Segment's mapped bytes, the
// equivalent of SelectMappedBufferResult: callers that hand a slice of
// live mmap'd memory off to a consumer (HA replication, a fetch path)
// must hold a reference so Destroy can't unmap out from under them.
type View struct {
	Data           []byte
	StartOffset    int64 // physical offset of Data[0] within the segment's log
	seg            *Segment
}

// Release drops the reference taken when the View was created via
// Segment.SelectView. Every SelectView call must be paired with exactly
// one Release.
func (v *View) Release() {
	if v.seg != nil {
		v.seg.release()
	}
}
