package avatar

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/anoixa/engi-tracker/storage"
	"github.com/anoixa/engi-tracker/utils"
)

// PrefixDeleter 并发列举多个前缀，合并为一条键流，按 storage.MaxBatchDelete 分批删除
// 内存占用不超过一个批次，批量删除调用次数为 ceil(N/1000)
type PrefixDeleter struct {
	store  storage.Provider
	logger *zap.SugaredLogger
}

// NewPrefixDeleter 创建前缀删除器
func NewPrefixDeleter(store storage.Provider, logger *zap.SugaredLogger) *PrefixDeleter {
	return &PrefixDeleter{store: store, logger: logger}
}

// DeleteResult 删除统计
type DeleteResult struct {
	Listed  int
	Deleted int
	Batches int
}

// DeletePrefixes 删除所有前缀下的对象
// 某个前缀列举失败或某个批次删除失败不会中止其余工作，所有错误合并返回
func (d *PrefixDeleter) DeletePrefixes(ctx context.Context, prefixes ...string) (DeleteResult, error) {
	var res DeleteResult
	keysCh := make(chan string, storage.MaxBatchDelete)

	var listers errgroup.Group
	listErrs := make([]error, len(prefixes))
	for i, prefix := range prefixes {
		listers.Go(func() error {
			listErrs[i] = storage.Walk(ctx, d.store, prefix, func(keys []string) error {
				for _, k := range keys {
					select {
					case keysCh <- k:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
				return nil
			})
			return nil
		})
	}
	go func() {
		_ = listers.Wait()
		close(keysCh)
	}()

	var deleteErrs []error
	batch := make([]string, 0, storage.MaxBatchDelete)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		res.Batches++
		if err := d.store.DeleteBatch(ctx, batch); err != nil {
			d.logger.Errorw("Batch delete failed", "count", len(batch), "first", utils.SanitizeLogKey(batch[0]), "error", err)
			deleteErrs = append(deleteErrs, fmt.Errorf("delete batch of %d: %w", len(batch), err))
		} else {
			res.Deleted += len(batch)
		}
		batch = batch[:0]
	}

	for key := range keysCh {
		res.Listed++
		batch = append(batch, key)
		if len(batch) == storage.MaxBatchDelete {
			flush()
		}
	}
	flush()

	return res, errors.Join(append(listErrs, deleteErrs...)...)
}
