package core

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	handlerAvatar "github.com/anoixa/engi-tracker/api/handler/avatar"
	"github.com/anoixa/engi-tracker/api/handler/objects"
	"github.com/anoixa/engi-tracker/api/middleware"
	"github.com/anoixa/engi-tracker/config"
	"github.com/anoixa/engi-tracker/internal/auth"
	"github.com/anoixa/engi-tracker/internal/avatar"
	"github.com/anoixa/engi-tracker/storage"
)

// RouterDependencies 路由注册依赖
type RouterDependencies struct {
	Config       *config.Config
	Logger       *zap.SugaredLogger
	Storage      storage.Provider
	Verifier     auth.Verifier
	Avatars      *avatar.Service
	HealthChecks map[string]HealthCheck

	APIRateLimiter     *middleware.IPRateLimiter
	AccountRateLimiter *middleware.SimpleRateLimiter
	UploadLimiter      *middleware.ConcurrencyLimiter
}

// RegisterRoutes 注册所有路由
func RegisterRoutes(router *gin.Engine, deps *RouterDependencies) {
	// 基础路由
	registerBasicRoutes(router, deps)

	// 公共接口路由
	registerPublicRoutes(router, deps)

	// API 路由
	registerAPIRoutes(router, deps)
}

// registerBasicRoutes 注册基础路由
func registerBasicRoutes(router *gin.Engine, deps *RouterDependencies) {
	healthHandler := NewHealthHandler(deps.HealthChecks)
	router.GET("/health", healthHandler.Handle)

	router.GET("/version", func(context *gin.Context) {
		context.JSON(http.StatusOK, gin.H{
			"version": config.Version,
			"commit":  config.CommitHash,
		})
	})

	router.GET("/metrics", func(context *gin.Context) {
		context.JSON(http.StatusOK, middleware.GetMetrics())
	})
}

// registerPublicRoutes 本地与内存存储没有外部访问地址，由本服务提供读取
func registerPublicRoutes(router *gin.Engine, deps *RouterDependencies) {
	switch deps.Storage.Name() {
	case "local", "memory":
	default:
		return
	}

	objectHandler := objects.NewHandler(deps.Storage, deps.Logger)
	router.GET("/objects/*key", objectHandler.GetObject) // GET /objects/{key}
}

// registerAPIRoutes 注册需要认证的 API
func registerAPIRoutes(router *gin.Engine, deps *RouterDependencies) {
	avatarHandler := handlerAvatar.NewHandler(deps.Avatars, deps.Verifier, deps.Logger)

	apiGroup := router.Group("/api")
	apiGroup.Use(middleware.NoStore()) // 所有API禁止缓存
	if deps.APIRateLimiter != nil {
		apiGroup.Use(deps.APIRateLimiter.Middleware())
	}
	apiGroup.Use(middleware.BearerAuth(deps.Verifier, deps.Logger))
	{
		uploadHandlers := []gin.HandlerFunc{}
		if deps.UploadLimiter != nil {
			// 上传排队等待，超时返回 503
			uploadHandlers = append(uploadHandlers, deps.UploadLimiter.MiddlewareWithBlock(deps.Config.UploadQueueTimeout))
		}
		uploadHandlers = append(uploadHandlers, avatarHandler.UploadAvatar)
		apiGroup.POST("/upload-avatar", uploadHandlers...)          // POST /api/upload-avatar
		apiGroup.POST("/delete-avatar", avatarHandler.DeleteAvatar) // POST /api/delete-avatar

		accountHandlers := []gin.HandlerFunc{}
		if deps.AccountRateLimiter != nil {
			accountHandlers = append(accountHandlers, deps.AccountRateLimiter.Middleware())
		}
		accountHandlers = append(accountHandlers, avatarHandler.DeleteAccount)
		apiGroup.POST("/delete-account", accountHandlers...) // POST /api/delete-account
	}
}
