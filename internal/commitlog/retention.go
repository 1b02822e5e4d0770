package commitlog

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"duraq/internal/xlog"
)

// retentionCheckInterval is how often the cleaner wakes up to check
// whether anything is eligible for deletion, independent of how long
// deleteWhen's window stays open.
const retentionCheckInterval = time.Minute

// minDeleteInterval throttles consecutive deletions within one sweep,
// matching deleteCommitLogFilesInterval.
const minDeleteInterval = 100 * time.Millisecond

// RetentionCleaner periodically sweeps an Engine's segment queue for
// files past fileReservedTime, gated by deleteWhen's hour-of-day window.
// Grounded on the teacher's RetentionCleaner (ticker + stopCh +
// sync.WaitGroup run loop) and on CommitLog's isTimeToDelete/
// ScheduledCleanService.
type RetentionCleaner struct {
	engine *Engine
	log    *xlog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func newRetentionCleaner(engine *Engine) *RetentionCleaner {
	return &RetentionCleaner{
		engine: engine,
		log:    xlog.New("retention"),
		stopCh: make(chan struct{}),
	}
}

func (rc *RetentionCleaner) Start() {
	rc.wg.Add(1)
	go rc.run()
}

func (rc *RetentionCleaner) run() {
	defer rc.wg.Done()

	ticker := time.NewTicker(retentionCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rc.sweep()
		case <-rc.stopCh:
			return
		}
	}
}

func (rc *RetentionCleaner) sweep() {
	cfg := rc.engine.cfg
	if !isTimeToDelete(cfg.DeleteWhen) {
		return
	}
	n := rc.engine.DeleteExpiredSegments(cfg.FileReservedTime, minDeleteInterval, cfg.DestroyMapedFileIntervalForcibly, false)
	if n > 0 {
		rc.log.Printf("deleted %d expired segment(s)", n)
	}
}

func (rc *RetentionCleaner) Stop() {
	close(rc.stopCh)
	rc.wg.Wait()
}

// isTimeToDelete reports whether the current hour of day is listed in
// deleteWhen, a comma-separated list of hours (e.g. "04,05") matching
// CommitLog's isTimeToDelete gate. An empty list always permits deletion.
func isTimeToDelete(deleteWhen string) bool {
	if strings.TrimSpace(deleteWhen) == "" {
		return true
	}
	hour := time.Now().Hour()
	for _, h := range strings.Split(deleteWhen, ",") {
		if n, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && n == hour {
			return true
		}
	}
	return false
}
