package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/anoixa/engi-tracker/config"
	"github.com/anoixa/engi-tracker/internal/apperr"
)

func TestMemoryStorage_Basic(t *testing.T) {
	s := NewMemoryStorage("http://localhost:8080/objects/")
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "avatars/u1/a.png", strings.NewReader("data"), 4, PutOptions{
		ContentType:  "image/png",
		CacheControl: "max-age=3600",
	}))

	obj, ok := s.Object("avatars/u1/a.png")
	require.True(t, ok)
	assert.Equal(t, "image/png", obj.ContentType)
	assert.Equal(t, "max-age=3600", obj.CacheControl)
	assert.Equal(t, "http://localhost:8080/objects/avatars/u1/a.png", s.PublicURL("avatars/u1/a.png"))

	assert.ErrorIs(t, s.Delete(ctx, "avatars/u1/missing.png"), ErrNotFound)
	_, err := s.Get(ctx, "avatars/u1/missing.png")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete(ctx, "avatars/u1/a.png"))
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStorage_DeleteBatchLimit(t *testing.T) {
	s := NewMemoryStorage("")
	keys := make([]string, MaxBatchDelete+1)
	for i := range keys {
		keys[i] = fmt.Sprintf("k%d", i)
	}

	err := s.DeleteBatch(context.Background(), keys)
	assert.ErrorIs(t, err, ErrBatchTooLarge)
	assert.NoError(t, s.DeleteBatch(context.Background(), keys[:MaxBatchDelete]))
}

func TestMemoryStorage_ConcurrentAccess(t *testing.T) {
	s := NewMemoryStorage("")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("avatars/u1/%d.png", i)
			_ = s.Put(ctx, key, strings.NewReader("x"), 1, PutOptions{})
			_, _ = s.List(ctx, "avatars/", "", 10)
			_ = s.Delete(ctx, key)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, s.Len())
}

func TestWalk(t *testing.T) {
	s := NewMemoryStorage("")
	ctx := context.Background()
	for i := 0; i < 2345; i++ {
		require.NoError(t, s.Put(ctx, fmt.Sprintf("avatars/u1/%05d.png", i), strings.NewReader("x"), 1, PutOptions{}))
	}

	var sizes []int
	err := Walk(ctx, s, "avatars/u1/", func(keys []string) error {
		sizes = append(sizes, len(keys))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1000, 1000, 345}, sizes)

	stop := errors.New("stop")
	calls := 0
	err = Walk(ctx, s, "avatars/u1/", func(keys []string) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)

	err = Walk(ctx, s, "avatars/nobody/", func(keys []string) error {
		t.Fatal("callback must not run for an empty prefix")
		return nil
	})
	assert.NoError(t, err)
}

func TestBatchError(t *testing.T) {
	err := &BatchError{Failed: map[string]error{"avatars/u1/a.png": errors.New("AccessDenied")}}
	assert.Contains(t, err.Error(), "1 key(s)")
	assert.Contains(t, err.Error(), "AccessDenied")
}

func TestNewProvider_MissingSettingsStillStarts(t *testing.T) {
	tests := []struct {
		name        string
		cfg         config.Config
		wantMissing string
	}{
		{"s3 without bucket", config.Config{StorageType: "s3", AWSRegion: "ap-northeast-1"}, "s3_bucket_name"},
		{"s3 without region", config.Config{StorageType: "s3", S3BucketName: "avatars"}, "aws_region"},
		{"minio without endpoint", config.Config{StorageType: "minio", S3BucketName: "avatars"}, "minio_endpoint"},
		{"webdav without url", config.Config{StorageType: "webdav"}, "webdav_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(context.Background(), &tt.cfg, zap.NewNop().Sugar())
			require.NoError(t, err)
			assert.Equal(t, tt.cfg.StorageType, p.Name())

			err = p.Put(context.Background(), "avatars/u1/a.png", strings.NewReader("x"), 1, PutOptions{})
			require.ErrorIs(t, err, ErrNotConfigured)
			assert.ErrorIs(t, err, apperr.ErrNotConfigured)
			assert.Contains(t, err.Error(), tt.wantMissing)

			_, err = p.List(context.Background(), "avatars/", "", 10)
			assert.ErrorIs(t, err, ErrNotConfigured)
			assert.ErrorIs(t, CheckConfigured(p), ErrNotConfigured)
		})
	}
}

func TestCheckConfigured(t *testing.T) {
	assert.NoError(t, CheckConfigured(NewMemoryStorage("")))
	assert.NoError(t, CheckConfigured(nil))
	assert.ErrorIs(t, CheckConfigured(NewUnconfiguredStorage("s3", []string{"s3_bucket_name"})), ErrNotConfigured)
}
