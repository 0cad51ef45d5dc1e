package avatar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anoixa/engi-tracker/database/models"
	"github.com/anoixa/engi-tracker/internal/apperr"
	"github.com/anoixa/engi-tracker/storage"
	"github.com/anoixa/engi-tracker/storage/storagetest"
)

func TestDeleteAccount_MismatchForbidden(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "avatars/u2/a.png", []byte("x"))

	err := f.svc.DeleteAccount(context.Background(), "u1", "u2")
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	assert.Empty(t, f.store.Calls())
	assert.Empty(t, f.identity.Calls())
}

func TestDeleteAccount_MissingUserID(t *testing.T) {
	f := newFixture(t)

	err := f.svc.DeleteAccount(context.Background(), "u1", "")
	status, msg := apperr.Render(err)
	assert.Equal(t, 400, status)
	assert.Equal(t, "User ID is required", msg)
	assert.Empty(t, f.identity.Calls())
}

func TestDeleteAccount_RemovesBothPrefixes(t *testing.T) {
	f := newFixture(t)
	for i := range 3 {
		f.seed(t, fmt.Sprintf("avatars/u1/%d.png", i), []byte("o"))
		f.seed(t, fmt.Sprintf("thumbnails/avatars/u1/%d.png", i), []byte("t"))
	}
	f.seed(t, "avatars/u10/keep.png", []byte("other user"))
	f.seed(t, "thumbnails/avatars/u2/keep.png", []byte("other user"))

	require.NoError(t, f.svc.DeleteAccount(context.Background(), "u1", "u1"))

	assert.Equal(t, []string{"u1"}, f.identity.Calls())
	assert.Equal(t, 2, f.mem.Len())
	_, ok := f.mem.Object("avatars/u10/keep.png")
	assert.True(t, ok)
}

// 存储清理失败时仍调用身份删除，结果由身份删除决定
func TestDeleteAccount_StorageFailureDoesNotBlock(t *testing.T) {
	for _, identityErr := range []error{nil, errors.New("admin api down")} {
		t.Run(fmt.Sprintf("identity err %v", identityErr), func(t *testing.T) {
			f := newFixture(t)
			f.identity.err = identityErr
			for i := range 5 {
				f.seed(t, fmt.Sprintf("avatars/u1/%d.png", i), []byte("o"))
				f.seed(t, fmt.Sprintf("thumbnails/avatars/u1/%d.png", i), []byte("t"))
			}
			f.store.FailWith(func(op storagetest.Op, _ string) error {
				if op == storagetest.OpList || op == storagetest.OpDeleteBatch {
					return errors.New("access denied")
				}
				return nil
			})

			err := f.svc.DeleteAccount(context.Background(), "u1", "u1")

			assert.Equal(t, []string{"u1"}, f.identity.Calls())
			if identityErr == nil {
				require.NoError(t, err)
			} else {
				status, msg := apperr.Render(err)
				assert.Equal(t, 500, status)
				assert.Equal(t, "Failed to delete account", msg)
			}

			assert.ElementsMatch(t, []orphanEntry{
				{KeyOrPrefix: "avatars/u1/", IsPrefix: true, Reason: models.OrphanReasonAccountCleanup},
				{KeyOrPrefix: "thumbnails/avatars/u1/", IsPrefix: true, Reason: models.OrphanReasonAccountCleanup},
			}, f.orphans.Entries())
		})
	}
}

func TestPrefixDeleter_Chunking(t *testing.T) {
	tests := []struct {
		name     string
		avatars  int
		thumbs   int
		batches  int
		lastSize int
	}{
		{name: "2500 split across prefixes", avatars: 1250, thumbs: 1250, batches: 3, lastSize: 500},
		{name: "2500 in one prefix", avatars: 2500, thumbs: 0, batches: 3, lastSize: 500},
		{name: "exactly one batch", avatars: 600, thumbs: 400, batches: 1, lastSize: 1000},
		{name: "empty", avatars: 0, thumbs: 0, batches: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			for i := range tt.avatars {
				f.seed(t, fmt.Sprintf("avatars/u1/%05d.png", i), nil)
			}
			for i := range tt.thumbs {
				f.seed(t, fmt.Sprintf("thumbnails/avatars/u1/%05d.png", i), nil)
			}

			res, err := NewPrefixDeleter(f.store, f.logger).
				DeletePrefixes(context.Background(), UserAvatarPrefix("u1"), UserThumbnailPrefix("u1"))
			require.NoError(t, err)

			batches := f.store.CallsOf(storagetest.OpDeleteBatch)
			require.Len(t, batches, tt.batches)
			assert.Equal(t, tt.batches, res.Batches)
			assert.Equal(t, tt.avatars+tt.thumbs, res.Deleted)

			seen := make(map[string]bool)
			for i, b := range batches {
				assert.LessOrEqual(t, len(b.Keys), storage.MaxBatchDelete)
				if i < len(batches)-1 {
					assert.Len(t, b.Keys, storage.MaxBatchDelete)
				} else {
					assert.Len(t, b.Keys, tt.lastSize)
				}
				for _, k := range b.Keys {
					assert.False(t, seen[k], "duplicate key %s", k)
					assert.True(t, strings.HasPrefix(k, "avatars/u1/") || strings.HasPrefix(k, "thumbnails/avatars/u1/"))
					seen[k] = true
				}
			}
			assert.Equal(t, 0, f.mem.Len())
		})
	}
}

func TestPrefixDeleter_ContinuesAfterFailedBatch(t *testing.T) {
	f := newFixture(t)
	for i := range 1500 {
		f.seed(t, fmt.Sprintf("avatars/u1/%05d.png", i), nil)
	}
	var failed bool
	f.store.FailWith(func(op storagetest.Op, _ string) error {
		if op == storagetest.OpDeleteBatch && !failed {
			failed = true
			return errors.New("throttled")
		}
		return nil
	})

	res, err := NewPrefixDeleter(f.store, f.logger).DeletePrefixes(context.Background(), UserAvatarPrefix("u1"))
	require.Error(t, err)
	assert.Equal(t, 2, res.Batches)
	assert.Equal(t, 1500, res.Listed)
	assert.Equal(t, 500, res.Deleted)
}
