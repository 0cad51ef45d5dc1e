package core

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/anoixa/engi-tracker/api/middleware"
	"github.com/anoixa/engi-tracker/internal/app"
)

// multipart 头部与边界的额外开销
const multipartOverhead = 1 << 20

// NewDependencies 从容器组装路由依赖
func NewDependencies(container *app.Container) *RouterDependencies {
	checks := map[string]HealthCheck{}
	for name, check := range container.HealthChecks() {
		checks[name] = check
	}
	return &RouterDependencies{
		Config:       container.Config(),
		Logger:       container.Logger(),
		Storage:      container.Storage(),
		Verifier:     container.Verifier(),
		Avatars:      container.Avatars(),
		HealthChecks: checks,
	}
}

// setupRouter 启动gin
func setupRouter(deps *RouterDependencies) (*gin.Engine, func()) {
	cfg := deps.Config
	router := gin.New()

	// 全局中间件
	// 仅在开发环境启用 gin 日志
	if cfg.IsDevelopment() {
		router.Use(gin.Logger())
	}
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(cfg.AllowedOrigins())))

	_ = router.SetTrustedProxies(nil)

	// 超过上限的文件交给服务层返回 400，这里只拦截明显异常的请求体
	maxUpload := deps.Avatars.MaxUploadBytes()
	router.MaxMultipartMemory = maxUpload + multipartOverhead
	requestBodyLimit := 4 * (maxUpload + multipartOverhead)
	if requestBodyLimit < 32<<20 {
		requestBodyLimit = 32 << 20 // 最小 32MB
	}

	router.Use(middleware.NewConcurrencyLimiter(cfg.MaxConcurrentRequests).Middleware())
	router.Use(middleware.MaxBytesReader(requestBodyLimit))
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics())

	// 速率限制
	apiRateLimiter := middleware.NewIPRateLimiter(cfg.RateLimitApiRPS, cfg.RateLimitApiBurst, cfg.RateLimitExpireTime)
	deps.APIRateLimiter = apiRateLimiter
	deps.AccountRateLimiter = middleware.NewSimpleRateLimiter(1, 5)
	deps.UploadLimiter = middleware.NewConcurrencyLimiter(cfg.MaxConcurrentUploads)
	cleanup := func() {
		apiRateLimiter.StopCleanup()
	}

	RegisterRoutes(router, deps)
	return router, cleanup
}

// corsConfig 未配置来源或配置为 * 时允许任意来源，此时不允许携带凭据
func corsConfig(origins []string) cors.Config {
	cc := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cc.AllowAllOrigins = true
		return cc
	}
	cc.AllowOrigins = origins
	cc.AllowCredentials = true
	return cc
}

// StartServer 创建 http.Server
func StartServer(deps *RouterDependencies) (*http.Server, func()) {
	cfg := deps.Config
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router, clean := setupRouter(deps)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	return srv, clean
}
