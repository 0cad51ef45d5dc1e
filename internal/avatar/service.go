// Package avatar 实现头像的上传、删除、账户清理与缩略图生成
package avatar

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/anoixa/engi-tracker/storage"
	"github.com/anoixa/engi-tracker/utils"
)

const (
	// DefaultMaxUploadBytes 上传大小上限 5 MiB（含）
	DefaultMaxUploadBytes int64 = 5 * 1024 * 1024

	uploadCacheControl    = "max-age=3600"
	thumbnailCacheControl = "max-age=31536000"
)

// IdentityDeleter 删除认证身份
type IdentityDeleter interface {
	DeleteUser(ctx context.Context, userID string) error
}

// OrphanRecorder 记录尽力删除失败的键或前缀，供离线清理
type OrphanRecorder interface {
	Record(ctx context.Context, keyOrPrefix string, isPrefix bool, reason string, cause error) error
}

// Options 服务参数
type Options struct {
	MaxUploadBytes int64
	// Now 用于生成文件名，测试可替换
	Now func() time.Time
}

// Service 头像生命周期中由用户请求触发的部分
type Service struct {
	store    storage.Provider
	identity IdentityDeleter
	orphans  OrphanRecorder
	opts     Options

	uploadLog  *zap.SugaredLogger
	deleteLog  *zap.SugaredLogger
	accountLog *zap.SugaredLogger
}

// NewService 创建服务，orphans 可以为 nil
func NewService(store storage.Provider, identity IdentityDeleter, orphans OrphanRecorder, opts Options, logger *zap.SugaredLogger) *Service {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:      store,
		identity:   identity,
		orphans:    orphans,
		opts:       opts,
		uploadLog:  logger.Named("upload"),
		deleteLog:  logger.Named("delete"),
		accountLog: logger.Named("account"),
	}
}

// MaxUploadBytes 返回上传大小上限
func (s *Service) MaxUploadBytes() int64 {
	return s.opts.MaxUploadBytes
}

// recordOrphan 写入孤儿台账，失败只记日志
func recordOrphan(ctx context.Context, rec OrphanRecorder, logger *zap.SugaredLogger, keyOrPrefix string, isPrefix bool, reason string, cause error) {
	if rec == nil {
		return
	}
	// 请求可能已结束，台账写入不跟随请求取消
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := rec.Record(ctx, keyOrPrefix, isPrefix, reason, cause); err != nil {
		logger.Warnf("Failed to record orphan %s: %v", utils.SanitizeLogKey(keyOrPrefix), err)
	}
}
