package main

import (
	"fmt"

	"duraq/internal/checkpoint"
	"duraq/internal/commitlog"
	"duraq/internal/dispatch"
	"duraq/internal/recovery"
	"duraq/internal/segment"

	"github.com/spf13/cobra"
)

var recoverForce string

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Run the startup recovery scan against a commit log directory",
	Long: `recover opens a commit log directory without starting an engine on
top of it and runs whichever scan its shutdown marker calls for: a
cheap RecoverNormally over the last few segments when the marker says
the previous process shut down cleanly, or a full RecoverAbnormally
forward scan from the last trustworthy segment otherwise.

--force overrides which pass runs regardless of the marker, for
exercising either path by hand.`,
	RunE: runRecover,
}

func init() {
	recoverCmd.Flags().StringVar(&recoverForce, "force", "", `force "normal" or "abnormal" recovery instead of reading the shutdown marker`)
}

func runRecover(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	queue, err := commitlog.NewSegmentQueue(cfg.StorePathCommitLog, segment.Config{
		FileSize: cfg.MappedFileSizeCommitLog,
	}, 32)
	if err != nil {
		return fmt.Errorf("open segment queue: %w", err)
	}
	defer queue.Close()

	runAbnormal := !recovery.WasCleanShutdown(cfg.StorePathCommitLog)
	switch recoverForce {
	case "normal":
		runAbnormal = false
	case "abnormal":
		runAbnormal = true
	case "":
	default:
		return fmt.Errorf("--force must be \"normal\" or \"abnormal\", got %q", recoverForce)
	}

	rec := recovery.New(queue, dispatch.NopSink{}, cfg.CheckCRCOnRecover)

	var validOffset int64
	var mode string
	if runAbnormal {
		cp, cpErr := checkpoint.Load(cfg.StorePathCheckpoint)
		if cpErr != nil {
			return fmt.Errorf("load checkpoint: %w", cpErr)
		}
		defer cp.Close()
		validOffset, err = rec.RecoverAbnormally(cp.CommitLogTimestamp)
		mode = "abnormal"
	} else {
		validOffset, err = rec.RecoverNormally()
		mode = "normal"
	}
	if err != nil {
		return fmt.Errorf("recover: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "mode=%s validOffset=%d\n", mode, validOffset)
	return recovery.MarkStopped(cfg.StorePathCommitLog)
}
