package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLocalStorage_PathTraversal_Prevention 测试路径遍历防护
func TestLocalStorage_PathTraversal_Prevention(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir(), "http://localhost/objects")
	require.NoError(t, err)

	ctx := context.Background()

	traversalAttempts := []string{
		"../../../etc/passwd",
		"..\\..\\..\\windows\\system32\\config\\sam",
		"../../.env",
		"..",
		".",
		"",
		"/etc/passwd",
		"avatars/u1/../../../etc/passwd",
		"avatars/./u1/a.png",
	}

	for _, attempt := range traversalAttempts {
		t.Run("put_"+attempt, func(t *testing.T) {
			err := storage.Put(ctx, attempt, strings.NewReader("x"), 1, PutOptions{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid")
		})
	}

	_, err = storage.Get(ctx, "../../../etc/passwd")
	assert.ErrorContains(t, err, "invalid")
	assert.ErrorContains(t, storage.Delete(ctx, "../../../etc/passwd"), "invalid")
}

// TestLocalStorage_RoundTrip 测试写入、读取、删除
func TestLocalStorage_RoundTrip(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir(), "http://localhost/objects/")
	require.NoError(t, err)
	ctx := context.Background()

	key := "avatars/u1/1700000000000-deadbeef.my file.png"
	require.NoError(t, storage.Put(ctx, key, strings.NewReader("png-bytes"), 9, PutOptions{ContentType: "image/png"}))

	rc, err := storage.Get(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	assert.Equal(t, "http://localhost/objects/"+key, storage.PublicURL(key))

	require.NoError(t, storage.Delete(ctx, key))
	assert.True(t, errors.Is(storage.Delete(ctx, key), ErrNotFound))

	_, err = storage.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, storage.Health(ctx))
	assert.Equal(t, "local", storage.Name())
}

// TestLocalStorage_ListPagination 测试分页列举与批量删除
func TestLocalStorage_ListPagination(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir(), "")
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		key := fmt.Sprintf("avatars/u1/%03d.jpg", i)
		require.NoError(t, storage.Put(ctx, key, strings.NewReader("x"), 1, PutOptions{}))
	}
	require.NoError(t, storage.Put(ctx, "avatars/u10/000.jpg", strings.NewReader("x"), 1, PutOptions{}))
	require.NoError(t, storage.Put(ctx, "thumbnails/avatars/u1/000.jpg", strings.NewReader("x"), 1, PutOptions{}))

	var all []string
	token := ""
	pages := 0
	for {
		page, err := storage.List(ctx, "avatars/u1/", token, 10)
		require.NoError(t, err)
		all = append(all, page.Keys...)
		pages++
		if page.NextToken == "" {
			break
		}
		token = page.NextToken
	}

	assert.Len(t, all, 25)
	assert.Equal(t, 3, pages)
	assert.Equal(t, "avatars/u1/000.jpg", all[0])
	assert.Equal(t, "avatars/u1/024.jpg", all[24])

	require.NoError(t, storage.DeleteBatch(ctx, all[:10]))
	page, err := storage.List(ctx, "avatars/u1/", "", 100)
	require.NoError(t, err)
	assert.Len(t, page.Keys, 15)

	page, err = storage.List(ctx, "avatars/missing/", "", 100)
	require.NoError(t, err)
	assert.Empty(t, page.Keys)
}

func TestIsValidStoragePath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"avatars/u1/a.png", true},
		{"thumbnails/avatars/u1/a b.jpg", true},
		{"avatars/u1/..hidden.png", true},
		{"", false},
		{"/abs/path", false},
		{"avatars/../x", false},
		{"avatars/u1/a\x00.png", false},
		{`avatars\u1\a.png`, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidStoragePath(tt.path))
		})
	}
}
