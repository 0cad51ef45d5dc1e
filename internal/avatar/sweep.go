package avatar

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/anoixa/engi-tracker/database/models"
	"github.com/anoixa/engi-tracker/storage"
	"github.com/anoixa/engi-tracker/utils"
)

// OrphanLedger 孤儿台账的读取与结算
type OrphanLedger interface {
	Pending(ctx context.Context, limit int) ([]models.StorageOrphan, error)
	Resolve(ctx context.Context, id uint) error
	MarkFailed(ctx context.Context, id uint, cause error) error
}

// SweepResult 一次清理的统计
type SweepResult struct {
	Pending  int
	Resolved int
	Failed   int
	Deleted  int
}

// Sweeper 离线重试尽力删除失败的键与前缀
type Sweeper struct {
	store   storage.Provider
	ledger  OrphanLedger
	deleter *PrefixDeleter
	logger  *zap.SugaredLogger
}

// NewSweeper 创建清理器
func NewSweeper(store storage.Provider, ledger OrphanLedger, logger *zap.SugaredLogger) *Sweeper {
	logger = logger.Named("clean")
	return &Sweeper{
		store:   store,
		ledger:  ledger,
		deleter: NewPrefixDeleter(store, logger),
		logger:  logger,
	}
}

// Sweep 处理最多 limit 条记录，dryRun 时只列出不删除
// 单条记录失败只累加尝试次数，不中止其余记录
func (s *Sweeper) Sweep(ctx context.Context, limit int, dryRun bool) (SweepResult, error) {
	var res SweepResult

	pending, err := s.ledger.Pending(ctx, limit)
	if err != nil {
		return res, fmt.Errorf("load pending orphans: %w", err)
	}
	res.Pending = len(pending)

	for _, o := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if dryRun {
			s.logger.Infow("Dry run, would delete", "key", utils.SanitizeLogKey(o.KeyOrPrefix),
				"prefix", o.IsPrefix, "reason", o.Reason, "attempts", o.Attempts)
			continue
		}

		deleted, err := s.sweepOne(ctx, o)
		res.Deleted += deleted
		if err != nil {
			res.Failed++
			s.logger.Warnw("Orphan cleanup failed", "key", utils.SanitizeLogKey(o.KeyOrPrefix), "attempts", o.Attempts+1, "error", err)
			if markErr := s.ledger.MarkFailed(ctx, o.ID, err); markErr != nil {
				s.logger.Errorw("Failed to update orphan record", "id", o.ID, "error", markErr)
			}
			continue
		}

		if err := s.ledger.Resolve(ctx, o.ID); err != nil {
			s.logger.Errorw("Failed to resolve orphan record", "id", o.ID, "error", err)
			res.Failed++
			continue
		}
		res.Resolved++
	}

	return res, nil
}

func (s *Sweeper) sweepOne(ctx context.Context, o models.StorageOrphan) (int, error) {
	if o.IsPrefix {
		r, err := s.deleter.DeletePrefixes(ctx, o.KeyOrPrefix)
		return r.Deleted, err
	}

	err := s.store.Delete(ctx, o.KeyOrPrefix)
	switch {
	case err == nil:
		return 1, nil
	case errors.Is(err, storage.ErrNotFound):
		return 0, nil
	default:
		return 0, err
	}
}
