package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/anoixa/engi-tracker/api/core"
	"github.com/anoixa/engi-tracker/config"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start API server",
	Run: func(cmd *cobra.Command, args []string) {
		RunServer()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func RunServer() {
	cfg, logger := bootstrap()
	defer func() { _ = logger.Sync() }()

	logger.Infof("engi-tracker %s (%s)", config.Version, config.CommitHash)

	container := newContainer(context.Background(), cfg, logger)

	// 启动gin
	server, cleanup := core.StartServer(core.NewDependencies(container))
	go func() {
		logger.Infof("Server started on %s", cfg.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed to start: %v", err)
		}
	}()

	// 处理退出signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	if cleanup != nil {
		cleanup()
		logger.Info("Cleanup tasks finished.")
	}

	// 关闭 DI 容器
	if err := container.Close(); err != nil {
		logger.Errorf("Error closing container: %v", err)
	}

	logger.Info("Server exited successfully")
}
