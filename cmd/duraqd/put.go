package main

import (
	"fmt"
	"io"
	"os"

	"duraq/internal/wire"

	"github.com/spf13/cobra"
)

var (
	putTopic   string
	putQueueID int32
	putBody    string
)

var putCmd = &cobra.Command{
	Use:   "put",
	Short: "Append one record to the commit log",
	RunE:  runPut,
}

func init() {
	putCmd.Flags().StringVar(&putTopic, "topic", "", "topic name (required)")
	putCmd.Flags().Int32Var(&putQueueID, "queue", 0, "queue id within the topic")
	putCmd.Flags().StringVar(&putBody, "body", "", "record body; reads stdin if omitted")
	putCmd.MarkFlagRequired("topic")
}

func runPut(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	body := []byte(putBody)
	if putBody == "" {
		body, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read body from stdin: %w", err)
		}
	}

	engine, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer closeEngine(cfg, engine)

	msg := &wire.Message{
		Topic:   putTopic,
		QueueId: putQueueID,
		Body:    body,
	}

	result, err := engine.PutMessage(msg)
	if err != nil {
		return err
	}
	if !result.IsOK() {
		return fmt.Errorf("put failed: %s", result.Status)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "id=%s queueOffset=%d physicalOffset=%d size=%d\n",
		result.MessageID, result.QueueOffset, result.PhysicalOffset, result.RecordSize)
	return nil
}
