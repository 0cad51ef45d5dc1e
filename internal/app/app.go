package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/anoixa/engi-tracker/cache"
	"github.com/anoixa/engi-tracker/cache/types"
	"github.com/anoixa/engi-tracker/config"
	"github.com/anoixa/engi-tracker/database"
	"github.com/anoixa/engi-tracker/database/repo/orphans"
	"github.com/anoixa/engi-tracker/internal/auth"
	"github.com/anoixa/engi-tracker/internal/avatar"
	"github.com/anoixa/engi-tracker/storage"
)

// Container 依赖注入容器 - 管理所有服务的生命周期
type Container struct {
	config *config.Config
	logger *zap.SugaredLogger
	log    *zap.SugaredLogger

	storage  storage.Provider
	cache    types.Cache
	database database.Provider

	OrphansRepo *orphans.Repository

	verifier auth.Verifier
	admin    *auth.AdminClient

	avatars    *avatar.Service
	thumbnails *avatar.Generator
}

// NewContainer 创建新的依赖注入容器
func NewContainer(cfg *config.Config, logger *zap.SugaredLogger) *Container {
	return &Container{
		config: cfg,
		logger: logger,
		log:    logger.Named("container"),
	}
}

// Init 初始化所有服务
// 孤儿台账不可用时只告警，请求路径不依赖它
func (c *Container) Init(ctx context.Context) error {
	c.log.Info("Initializing DI container...")

	if err := c.InitStorage(ctx); err != nil {
		return err
	}
	if err := c.initCache(ctx); err != nil {
		return err
	}
	if err := c.InitDatabase(); err != nil {
		c.log.Warnf("Orphan ledger unavailable, failed deletes will only be logged: %v", err)
	}
	if err := c.InitServices(); err != nil {
		return err
	}

	c.log.Info("DI container initialized successfully")
	return nil
}

// InitStorage 初始化对象存储
func (c *Container) InitStorage(ctx context.Context) error {
	if c.storage != nil {
		return nil
	}
	p, err := storage.NewProvider(ctx, c.config, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.storage = p
	return nil
}

func (c *Container) initCache(ctx context.Context) error {
	cp, err := cache.New(ctx, c.config, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	c.cache = cp
	return nil
}

// InitDatabase 初始化孤儿台账数据库并迁移
func (c *Container) InitDatabase() error {
	if c.database != nil {
		return nil
	}
	p, err := database.NewGormProvider(c.config, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := database.Migrate(p); err != nil {
		_ = p.Close()
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	c.database = p
	c.OrphansRepo = orphans.NewRepository(p)
	c.log.Infof("Database '%s' initialized", p.Name())
	return nil
}

// InitServices 初始化认证与头像服务
func (c *Container) InitServices() error {
	verifier, err := auth.NewVerifier(c.config, c.cache, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize token verifier: %w", err)
	}
	c.verifier = verifier
	c.admin = auth.NewAdminClient(c.config.AuthURL, c.config.AuthServiceRoleKey, nil)

	resizer, err := avatar.NewResizer(c.config.ThumbnailEngine)
	if err != nil {
		return fmt.Errorf("failed to initialize resizer: %w", err)
	}

	recorder := c.orphanRecorder()
	c.avatars = avatar.NewService(c.storage, c.admin, recorder, avatar.Options{
		MaxUploadBytes: c.config.UploadMaxSizeBytes,
	}, c.logger)
	c.thumbnails = avatar.NewGenerator(c.storage, resizer, recorder, avatar.GeneratorOptions{
		Size:        c.config.ThumbnailSize,
		Quality:     c.config.ThumbnailQuality,
		Concurrency: c.config.ThumbnailConcurrency,
	}, c.logger)

	c.log.Infof("Services initialized, thumbnail engine: %s", resizer.Name())
	return nil
}

// orphanRecorder 台账未初始化时返回 nil 接口
func (c *Container) orphanRecorder() avatar.OrphanRecorder {
	if c.OrphansRepo == nil {
		return nil
	}
	return c.OrphansRepo
}

// HealthChecks 返回 /health 使用的依赖检查
func (c *Container) HealthChecks() map[string]func(ctx context.Context) error {
	checks := map[string]func(ctx context.Context) error{}
	if c.storage != nil {
		checks["storage"] = c.storage.Health
	}
	if c.database != nil {
		checks["database"] = c.database.Ping
	}
	return checks
}

func (c *Container) Config() *config.Config        { return c.config }
func (c *Container) Logger() *zap.SugaredLogger    { return c.logger }
func (c *Container) Storage() storage.Provider     { return c.storage }
func (c *Container) Cache() types.Cache            { return c.cache }
func (c *Container) Database() database.Provider   { return c.database }
func (c *Container) Verifier() auth.Verifier       { return c.verifier }
func (c *Container) Avatars() *avatar.Service      { return c.avatars }
func (c *Container) Thumbnails() *avatar.Generator { return c.thumbnails }

// Close 关闭所有服务
func (c *Container) Close() error {
	c.log.Info("Closing DI container...")

	if c.cache != nil {
		if err := c.cache.Close(); err != nil {
			c.log.Warnf("Error closing cache: %v", err)
		}
	}
	if c.database != nil {
		if err := c.database.Close(); err != nil {
			c.log.Warnf("Error closing database: %v", err)
		}
	}

	c.log.Info("DI container closed")
	return nil
}
