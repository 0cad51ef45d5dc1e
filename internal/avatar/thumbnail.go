package avatar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/anoixa/engi-tracker/database/models"
	"github.com/anoixa/engi-tracker/storage"
	"github.com/anoixa/engi-tracker/utils"
)

// maxSourceBytes 读取原图的上限，高于上传上限以容纳直接写入存储的对象
const maxSourceBytes = 64 << 20

// Outcome 单条记录的处理结果
type Outcome int

const (
	OutcomeSucceeded Outcome = iota
	OutcomeFailed
	OutcomeSkipped
)

// Summary 一次调用的统计
type Summary struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Total 处理的记录总数
func (s Summary) Total() int {
	return s.Succeeded + s.Failed + s.Skipped
}

func (s *Summary) add(o Outcome) {
	switch o {
	case OutcomeSucceeded:
		s.Succeeded++
	case OutcomeFailed:
		s.Failed++
	default:
		s.Skipped++
	}
}

// GeneratorOptions 缩略图参数
type GeneratorOptions struct {
	Size        int
	Quality     int
	Concurrency int
}

// Generator 对象创建通知触发的缩略图生成器
type Generator struct {
	store   storage.Provider
	resizer Resizer
	orphans OrphanRecorder
	opts    GeneratorOptions
	logger  *zap.SugaredLogger
}

// NewGenerator 创建生成器，orphans 可以为 nil
func NewGenerator(store storage.Provider, resizer Resizer, orphans OrphanRecorder, opts GeneratorOptions, logger *zap.SugaredLogger) *Generator {
	if opts.Size <= 0 {
		opts.Size = DefaultThumbnailSize
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultThumbnailQuality
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Generator{
		store:   store,
		resizer: resizer,
		orphans: orphans,
		opts:    opts,
		logger:  logger.Named("thumbnail"),
	}
}

// Process 并发处理一批已解码的对象键
// 每条记录独立处理，失败只计数，不向调用方返回错误
func (g *Generator) Process(ctx context.Context, keys []string) Summary {
	var (
		mu      sync.Mutex
		summary Summary
		eg      errgroup.Group
	)
	eg.SetLimit(g.opts.Concurrency)

	for _, key := range keys {
		eg.Go(func() error {
			outcome := g.processSafe(ctx, key)
			mu.Lock()
			summary.add(outcome)
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	g.logger.Infow("Processing complete",
		"succeeded", summary.Succeeded, "failed", summary.Failed, "skipped", summary.Skipped)
	return summary
}

// processSafe 拦截单条记录的 panic
func (g *Generator) processSafe(ctx context.Context, key string) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Errorw("Panic while processing record", "key", utils.SanitizeLogKey(key), "panic", r, "stack", string(debug.Stack()))
			outcome = OutcomeFailed
		}
	}()

	outcome, err := g.ProcessKey(ctx, key)
	if err != nil {
		g.logger.Errorw("Error processing record", "key", utils.SanitizeLogKey(key), "error", err)
	}
	return outcome
}

// ProcessKey 处理单个对象键：读取、缩放裁剪、写入缩略图，成功后删除原图
func (g *Generator) ProcessKey(ctx context.Context, key string) (Outcome, error) {
	if IsThumbnailKey(key) {
		g.logger.Debugw("Skipping thumbnail image", "key", utils.SanitizeLogKey(key))
		return OutcomeSkipped, nil
	}
	if len(key) <= len(AvatarsPrefix) || key[:len(AvatarsPrefix)] != AvatarsPrefix {
		g.logger.Warnw("Skipping object outside avatars prefix", "key", utils.SanitizeLogKey(key))
		return OutcomeSkipped, nil
	}

	g.logger.Infow("Processing image", "key", utils.SanitizeLogKey(key))

	data, err := g.fetch(ctx, key)
	if err != nil {
		return OutcomeFailed, err
	}

	thumb, err := g.resizer.Cover(data, g.opts.Size, g.opts.Quality)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("resize %s: %w", key, err)
	}

	thumbKey := ThumbnailKey(key)
	err = g.store.Put(ctx, thumbKey, bytes.NewReader(thumb), int64(len(thumb)), storage.PutOptions{
		ContentType:  "image/jpeg",
		CacheControl: thumbnailCacheControl,
	})
	if err != nil {
		return OutcomeFailed, fmt.Errorf("put thumbnail %s: %w", thumbKey, err)
	}
	g.logger.Infow("Thumbnail created", "key", thumbKey, "bytes", len(thumb))

	// 缩略图已落盘，原图删除失败不影响结果
	if err := g.store.Delete(ctx, key); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			g.logger.Infow("Original already removed", "key", utils.SanitizeLogKey(key))
		} else {
			g.logger.Errorw("Failed to delete original image", "key", utils.SanitizeLogKey(key), "error", err)
			recordOrphan(ctx, g.orphans, g.logger, key, false, models.OrphanReasonSourceDelete, err)
		}
	} else {
		g.logger.Infow("Original image deleted", "key", utils.SanitizeLogKey(key))
	}

	return OutcomeSucceeded, nil
}

func (g *Generator) fetch(ctx context.Context, key string) ([]byte, error) {
	rc, err := g.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(io.LimitReader(rc, maxSourceBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	if len(data) > maxSourceBytes {
		return nil, fmt.Errorf("source %s exceeds %d bytes", key, maxSourceBytes)
	}
	return data, nil
}
