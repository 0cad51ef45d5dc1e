package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/anoixa/engi-tracker/internal/apperr"
)

// MaxBatchDelete 单次批量删除允许的最大键数量（与 S3 DeleteObjects 上限一致）
const MaxBatchDelete = 1000

var (
	// ErrNotFound 对象不存在
	ErrNotFound = errors.New("object not found")
	// ErrBatchTooLarge 批量删除超过 MaxBatchDelete
	ErrBatchTooLarge = fmt.Errorf("batch delete accepts at most %d keys", MaxBatchDelete)
	// ErrNotConfigured 存储缺少必需配置，首次使用时返回
	ErrNotConfigured = fmt.Errorf("storage %w", apperr.ErrNotConfigured)
)

// PutOptions 写入对象时附带的元数据
type PutOptions struct {
	ContentType  string
	CacheControl string
}

// ListPage 分页列举结果
// NextToken 为空表示已到最后一页
type ListPage struct {
	Keys      []string
	NextToken string
}

// Provider 存储提供者接口
// 所有实现必须可被多个 goroutine 并发使用
type Provider interface {
	// Put 写入对象，size 未知时传 -1
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) error

	// Get 读取对象，不存在时返回 ErrNotFound
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete 删除单个对象
	Delete(ctx context.Context, key string) error

	// DeleteBatch 批量删除，最多 MaxBatchDelete 个键
	DeleteBatch(ctx context.Context, keys []string) error

	// List 按前缀分页列举对象键，token 为上一页返回的 NextToken
	List(ctx context.Context, prefix, token string, maxKeys int) (ListPage, error)

	// PublicURL 返回对象的公开访问地址
	PublicURL(key string) string

	// Health 检查存储健康状态
	Health(ctx context.Context) error

	// Name 返回存储名称
	Name() string
}

// BatchError 批量删除中部分键失败
type BatchError struct {
	Failed map[string]error
}

func (e *BatchError) Error() string {
	for key, err := range e.Failed {
		return fmt.Sprintf("batch delete failed for %d key(s), first %s: %v", len(e.Failed), key, err)
	}
	return "batch delete failed"
}

// checkBatch 校验批量删除的大小
func checkBatch(keys []string) error {
	if len(keys) > MaxBatchDelete {
		return ErrBatchTooLarge
	}
	return nil
}

// Walk 遍历前缀下的所有页，每页回调一次
// 回调返回错误时停止遍历
func Walk(ctx context.Context, p Provider, prefix string, fn func(keys []string) error) error {
	token := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := p.List(ctx, prefix, token, MaxBatchDelete)
		if err != nil {
			return fmt.Errorf("list %q: %w", prefix, err)
		}
		if len(page.Keys) > 0 {
			if err := fn(page.Keys); err != nil {
				return err
			}
		}
		if page.NextToken == "" {
			return nil
		}
		token = page.NextToken
	}
}
