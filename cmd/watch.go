package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/minio/minio-go/v7/pkg/notification"
	"github.com/spf13/cobra"

	"github.com/anoixa/engi-tracker/internal/avatar"
	"github.com/anoixa/engi-tracker/internal/worker"
	"github.com/anoixa/engi-tracker/storage"
)

// watchCmd 自托管部署下监听 MinIO 桶通知并生成缩略图
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Listen for MinIO bucket notifications and generate thumbnails",
	Long: `Listen for s3:ObjectCreated:* notifications under avatars/ on a MinIO bucket
and run the thumbnail generator for every notification batch.
Requires storage_type=minio.`,
	Run: func(cmd *cobra.Command, args []string) {
		runWatch()
	},
}

const (
	watchWorkers   = 2
	watchQueueSize = 64
)

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch() {
	cfg, logger := bootstrap()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container := newContainer(ctx, cfg, logger)
	defer func() { _ = container.Close() }()

	log := logger.Named("watch")
	if err := storage.CheckConfigured(container.Storage()); err != nil {
		log.Fatalf("Storage is not usable: %v", err)
	}
	ms, ok := container.Storage().(*storage.MinioStorage)
	if !ok {
		log.Fatalf("watch requires minio storage, got %s", container.Storage().Name())
	}
	generator := container.Thumbnails()

	// 通知批次交给协程池处理，监听循环不被单个批次阻塞
	pool := worker.NewPool(watchWorkers, watchQueueSize, logger)
	defer pool.Stop()

	for ctx.Err() == nil {
		log.Infow("Listening for bucket notifications", "bucket", ms.Bucket(), "prefix", avatar.AvatarsPrefix)
		ch := ms.Client().ListenBucketNotification(ctx, ms.Bucket(), avatar.AvatarsPrefix, "",
			[]string{"s3:ObjectCreated:*"})

		for info := range ch {
			if info.Err != nil {
				log.Errorw("Notification error", "error", info.Err)
				continue
			}
			if !pool.SubmitWait(ctx, func() {
				summary := handleNotification(ctx, generator, info)
				log.Infow("Notification processed", "records", len(info.Records),
					"succeeded", summary.Succeeded, "failed", summary.Failed, "skipped", summary.Skipped)
			}) {
				log.Warnw("Notification dropped during shutdown", "records", len(info.Records))
			}
		}

		// 连接断开后重新订阅
		select {
		case <-ctx.Done():
		case <-time.After(5 * time.Second):
		}
	}

	log.Info("Stopped")
}

func handleNotification(ctx context.Context, generator *avatar.Generator, info notification.Info) avatar.Summary {
	raw := make([]string, 0, len(info.Records))
	for _, record := range info.Records {
		raw = append(raw, record.S3.Object.Key)
	}
	return generator.HandleEncodedKeys(ctx, raw)
}
