package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/anoixa/engi-tracker/api/common"
)

// SimpleRateLimiter 进程级限流器，所有客户端共享一个令牌桶
// 用于账户删除这类需要遍历整个前缀的重操作
type SimpleRateLimiter struct {
	limiter *rate.Limiter
}

// NewSimpleRateLimiter 创建简单限流器
// rps: 每秒请求数
// burst: 突发请求数
func NewSimpleRateLimiter(rps float64, burst int) *SimpleRateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &SimpleRateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Middleware 返回 Gin 中间件
func (rl *SimpleRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.limiter.Allow() {
			common.RespondErrorAbort(c, http.StatusTooManyRequests, "Too many requests")
			return
		}
		c.Next()
	}
}
