package core

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/anoixa/engi-tracker/config"
)

var startTime = time.Now()

// HealthCheck 单项依赖检查
type HealthCheck func(ctx context.Context) error

// HealthHandler 健康检查处理器
type HealthHandler struct {
	checks  map[string]HealthCheck
	timeout time.Duration
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks, timeout: 5 * time.Second}
}

// Handle GET /health，任一检查失败返回 503
func (h *HealthHandler) Handle(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	results := gin.H{}
	status, httpStatus := "ok", http.StatusOK
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			results[name] = "error: " + err.Error()
			status, httpStatus = "degraded", http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	c.JSON(httpStatus, gin.H{
		"status":  status,
		"uptime":  time.Since(startTime).Round(time.Second).String(),
		"version": config.Version,
		"checks":  results,
	})
}
