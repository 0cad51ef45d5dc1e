package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// MemoryObject 内存中的对象
type MemoryObject struct {
	Data         []byte
	ContentType  string
	CacheControl string
}

// MemoryStorage 进程内存储，用于开发环境与测试
type MemoryStorage struct {
	mu        sync.RWMutex
	objects   map[string]MemoryObject
	publicURL string
}

// NewMemoryStorage 创建内存存储
func NewMemoryStorage(publicBaseURL string) *MemoryStorage {
	return &MemoryStorage{
		objects:   make(map[string]MemoryObject),
		publicURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

func (s *MemoryStorage) Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("failed to read body for %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = MemoryObject{Data: data, ContentType: opts.ContentType, CacheControl: opts.CacheControl}
	return nil
}

func (s *MemoryStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return io.NopCloser(bytes.NewReader(obj.Data)), nil
}

func (s *MemoryStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	delete(s.objects, key)
	return nil
}

// DeleteBatch 与 S3 行为一致，不存在的键视为删除成功
func (s *MemoryStorage) DeleteBatch(ctx context.Context, keys []string) error {
	if err := checkBatch(keys); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.objects, key)
	}
	return nil
}

func (s *MemoryStorage) List(ctx context.Context, prefix, token string, maxKeys int) (ListPage, error) {
	if err := ctx.Err(); err != nil {
		return ListPage{}, err
	}
	if maxKeys <= 0 || maxKeys > MaxBatchDelete {
		maxKeys = MaxBatchDelete
	}

	s.mu.RLock()
	keys := make([]string, 0)
	for key := range s.objects {
		if strings.HasPrefix(key, prefix) && key > token {
			keys = append(keys, key)
		}
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	return pageAfter(keys, maxKeys), nil
}

// pageAfter 从已排序的键中截取一页，NextToken 为本页最后一个键
func pageAfter(sorted []string, maxKeys int) ListPage {
	if len(sorted) <= maxKeys {
		return ListPage{Keys: sorted}
	}
	page := sorted[:maxKeys]
	return ListPage{Keys: page, NextToken: page[len(page)-1]}
}

func (s *MemoryStorage) PublicURL(key string) string {
	return s.publicURL + "/" + key
}

func (s *MemoryStorage) Health(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStorage) Name() string {
	return "memory"
}

// Object 返回对象副本，用于测试断言
func (s *MemoryStorage) Object(key string) (MemoryObject, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	return obj, ok
}

// Len 返回对象数量
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
