package main

import (
	"fmt"

	"duraq/internal/wire"

	"github.com/spf13/cobra"
)

var (
	fetchOffset int64
	fetchSize   int32
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Read and decode one record by physical offset",
	RunE:  runFetch,
}

func init() {
	fetchCmd.Flags().Int64Var(&fetchOffset, "offset", 0, "physical offset of the record (required)")
	fetchCmd.Flags().Int32Var(&fetchSize, "size", 0, "record size in bytes (required)")
	fetchCmd.MarkFlagRequired("offset")
	fetchCmd.MarkFlagRequired("size")
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	engine, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer closeEngine(cfg, engine)

	view, err := engine.Read(fetchOffset, fetchSize)
	if err != nil {
		return err
	}
	defer view.Release()

	result, err := wire.Decode(view.Data, cfg.CheckCRCOnRecover)
	if err != nil {
		return fmt.Errorf("decode record at offset %d: %w", fetchOffset, err)
	}
	if result.Record == nil {
		return fmt.Errorf("no record at offset %d", fetchOffset)
	}

	rec := result.Record
	fmt.Fprintf(cmd.OutOrStdout(), "topic=%s queue=%d queueOffset=%d storeTimestamp=%d bodyLen=%d\n",
		rec.Topic, rec.QueueId, rec.QueueOffset, rec.StoreTimestamp, len(rec.Body))
	cmd.OutOrStdout().Write(rec.Body)
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}
