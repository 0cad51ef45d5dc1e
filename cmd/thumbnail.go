package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/spf13/cobra"
)

// thumbnailCmd 手动重放 S3 事件或指定对象键
var thumbnailCmd = &cobra.Command{
	Use:   "thumbnail",
	Short: "Generate thumbnails for given keys or a recorded S3 event",
	Long: `Run the thumbnail generator outside of Lambda.
Keys passed with --key are used as-is. --event reads an S3 event JSON document
from a file ("-" for stdin); its keys are URL-decoded like a live notification.`,
	Example: `  engi-tracker thumbnail --key avatars/user-1/1700000000000-abcd1234.jpg
  engi-tracker thumbnail --event event.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		keys, _ := cmd.Flags().GetStringSlice("key")
		eventPath, _ := cmd.Flags().GetString("event")
		if len(keys) == 0 && eventPath == "" {
			return fmt.Errorf("either --key or --event is required")
		}
		return runThumbnail(cmd.Context(), keys, eventPath)
	},
}

func init() {
	rootCmd.AddCommand(thumbnailCmd)
	thumbnailCmd.Flags().StringSlice("key", nil, "object key under avatars/ (repeatable)")
	thumbnailCmd.Flags().String("event", "", "path to an S3 event JSON file, - for stdin")
}

func runThumbnail(ctx context.Context, keys []string, eventPath string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, logger := bootstrap()
	defer func() { _ = logger.Sync() }()

	container := newContainer(ctx, cfg, logger)
	defer func() { _ = container.Close() }()
	generator := container.Thumbnails()

	if len(keys) > 0 {
		summary := generator.Process(ctx, keys)
		fmt.Printf("Keys: %d succeeded, %d failed, %d skipped\n", summary.Succeeded, summary.Failed, summary.Skipped)
	}

	if eventPath != "" {
		event, err := readS3Event(eventPath)
		if err != nil {
			return err
		}
		summary := generator.HandleS3Event(ctx, event)
		fmt.Printf("Event: %d succeeded, %d failed, %d skipped\n", summary.Succeeded, summary.Failed, summary.Skipped)
	}
	return nil
}

func readS3Event(path string) (events.S3Event, error) {
	var event events.S3Event

	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return event, fmt.Errorf("open event file: %w", err)
		}
		defer f.Close()
		r = f
	}

	if err := json.NewDecoder(r).Decode(&event); err != nil {
		return event, fmt.Errorf("decode S3 event: %w", err)
	}
	return event, nil
}
