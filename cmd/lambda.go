package cmd

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"

	"github.com/anoixa/engi-tracker/internal/avatar"
)

// lambdaCmd 以 AWS Lambda 函数运行缩略图生成器
var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Run the thumbnail generator as an AWS Lambda S3 event handler",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, logger := bootstrap()
		defer func() { _ = logger.Sync() }()

		container := newContainer(context.Background(), cfg, logger)
		generator := container.Thumbnails()

		// 返回 nil error，避免平台重试整批事件
		lambda.Start(func(ctx context.Context, event events.S3Event) (avatar.Summary, error) {
			logger.Named("lambda").Infow("S3 event received", "records", len(event.Records))
			return generator.HandleS3Event(ctx, event), nil
		})
	},
}

func init() {
	rootCmd.AddCommand(lambdaCmd)
}
