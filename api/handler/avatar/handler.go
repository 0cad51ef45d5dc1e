package avatar

import (
	"go.uber.org/zap"

	"github.com/anoixa/engi-tracker/internal/auth"
	avatarSvc "github.com/anoixa/engi-tracker/internal/avatar"
)

// Handler 头像相关接口
type Handler struct {
	svc      *avatarSvc.Service
	verifier auth.Verifier
	logger   *zap.SugaredLogger
}

// NewHandler 头像处理器，verifier 用于注销后丢弃令牌缓存，可为 nil
func NewHandler(svc *avatarSvc.Service, verifier auth.Verifier, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, verifier: verifier, logger: logger}
}
