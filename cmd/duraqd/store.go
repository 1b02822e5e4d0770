package main

import (
	"fmt"
	"net"

	"duraq/internal/checkpoint"
	"duraq/internal/commitlog"
	"duraq/internal/config"
	"duraq/internal/dispatch"
	"duraq/internal/recovery"
	"duraq/internal/segment"
	"duraq/internal/xlog"
)

var storeLog = xlog.New("duraqd")

// loadConfig reads the config named by --config, falling back to
// built-in defaults when the flag is empty.
func loadConfig() (config.Config, error) {
	return config.Load(cfgFile)
}

// openEngine opens cfg's commit log directory, running whichever
// recovery pass its shutdown marker calls for before handing back an
// Engine ready to accept puts. This is the sequence internal/commitlog
// itself can't run end to end, since internal/recovery depends on it —
// cmd/duraqd is the one package allowed to import both.
func openEngine(cfg config.Config) (*commitlog.Engine, error) {
	queue, err := commitlog.NewSegmentQueue(cfg.StorePathCommitLog, segment.Config{
		FileSize: cfg.MappedFileSizeCommitLog,
	}, 32)
	if err != nil {
		return nil, fmt.Errorf("open segment queue: %w", err)
	}

	cp, err := checkpoint.Load(cfg.StorePathCheckpoint)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	cleanShutdown := recovery.WasCleanShutdown(cfg.StorePathCommitLog)
	topics := commitlog.NewTopicQueueTable()
	rec := recovery.New(queue, commitlog.NewOffsetRestoringSink(dispatch.NopSink{}, topics), cfg.CheckCRCOnRecover)

	var validOffset int64
	if cleanShutdown {
		validOffset, err = rec.RecoverNormally()
	} else {
		validOffset, err = rec.RecoverAbnormally(cp.CommitLogTimestamp)
	}
	if err != nil {
		cp.Close()
		return nil, fmt.Errorf("recover: %w", err)
	}
	storeLog.Printf("recovered, validOffset=%d cleanShutdown=%v", validOffset, cleanShutdown)

	if err := recovery.MarkRunning(cfg.StorePathCommitLog); err != nil {
		cp.Close()
		return nil, fmt.Errorf("mark running: %w", err)
	}

	storeHost := &net.TCPAddr{IP: net.IPv4zero, Port: 0}
	engine := commitlog.NewWithQueue(queue, cfg, storeHost, dispatch.NopSink{}, nil, nil, cp, topics)
	return engine, nil
}

// closeEngine flushes and closes engine and clears the shutdown marker,
// so the next openEngine call takes the fast RecoverNormally path.
func closeEngine(cfg config.Config, engine *commitlog.Engine) error {
	if err := engine.Close(); err != nil {
		return err
	}
	return recovery.MarkStopped(cfg.StorePathCommitLog)
}
