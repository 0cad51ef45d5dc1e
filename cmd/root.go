package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/anoixa/engi-tracker/config"
	"github.com/anoixa/engi-tracker/internal/app"
	"github.com/anoixa/engi-tracker/utils"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "engi-tracker",
	Short: "Avatar storage service for engi-tracker",
	Run: func(cmd *cobra.Command, args []string) {
		serveCmd.Run(cmd, args)
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (eg: /etc/engi-tracker/.env)")
	err := viper.BindPFlag("config_file_path", rootCmd.PersistentFlags().Lookup("config"))
	if err != nil {
		return
	}
}

// bootstrap 加载配置并创建日志
func bootstrap() (*config.Config, *zap.SugaredLogger) {
	config.InitConfig()
	cfg := config.Get()

	logger, err := utils.NewLogger(cfg.IsDevelopment())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		logger.Named("config").Warnf("Incomplete configuration, affected endpoints will fail on first use: %v", err)
	}
	return cfg, logger
}

// newContainer 初始化完整的依赖容器，失败时退出
func newContainer(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) *app.Container {
	container := app.NewContainer(cfg, logger)
	if err := container.Init(ctx); err != nil {
		logger.Fatalf("Failed to initialize container: %v", err)
	}
	return container
}
