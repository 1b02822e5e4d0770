package ha

import "time"

// Service is the external collaborator a commit log hands newly
// committed bytes off to for replication. Only the interface is in
// scope here — the replication transport itself is out of scope.
type Service interface {
	// IsSlaveOK reports whether enough slaves have caught up to satisfy
	// a FlushSlaveTimeout-bounded PutMessage call.
	IsSlaveOK(masterPutWhere int64) bool

	// PushToSlave notifies the service that physical storage has
	// advanced to at least wroteOffset, so it can wake any waiter
	// blocked on slave-ack.
	PushToSlave(wroteOffset int64)
}

// NopService is the default when no slave replication is configured: it
// never blocks a put on slave ack.
type NopService struct{}

func (NopService) IsSlaveOK(int64) bool    { return true }
func (NopService) PushToSlave(int64)       {}

// WaitGroupService is a minimal in-process stand-in for a broker running with BrokerRole=SYNC_MASTER but no real transport
// wired yet: PushToSlave immediately marks every offset acked.
type WaitGroupService struct {
	ackedOffset int64
}

func (w *WaitGroupService) IsSlaveOK(masterPutWhere int64) bool {
	return w.ackedOffset >= masterPutWhere
}

func (w *WaitGroupService) PushToSlave(wroteOffset int64) {
	w.ackedOffset = wroteOffset
}

// WaitFor blocks until IsSlaveOK(offset) or the timeout elapses,
// matching the original's bounded wait in putMessage for
// FlushSlaveTimeout.
func WaitFor(svc Service, offset int64, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for !svc.IsSlaveOK(offset) {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
	return true
}
