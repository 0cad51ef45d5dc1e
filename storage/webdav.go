package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/studio-b12/gowebdav"
)

// WebDAVConfig WebDAV 配置结构
type WebDAVConfig struct {
	URL           string
	Username      string
	Password      string
	RootPath      string
	PublicBaseURL string
}

// WebDAVStorage WebDAV 存储实现
type WebDAVStorage struct {
	client    *gowebdav.Client
	baseURL   string
	rootPath  string
	publicURL string
}

// NewWebDAVStorage 创建 WebDAV 存储提供者
func NewWebDAVStorage(ctx context.Context, cfg WebDAVConfig) (*WebDAVStorage, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webdav URL is required")
	}

	rootPath := strings.Trim(cfg.RootPath, "/")
	if rootPath != "" {
		rootPath = "/" + rootPath
	}

	client := gowebdav.NewClient(cfg.URL, cfg.Username, cfg.Password)
	client.SetTimeout(30 * time.Second)

	s := &WebDAVStorage{
		client:    client,
		rootPath:  rootPath,
		baseURL:   strings.TrimRight(cfg.URL, "/"),
		publicURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}
	if s.publicURL == "" {
		s.publicURL = s.baseURL + rootPath
	}

	// 验证连接
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.Health(checkCtx); err != nil {
		return nil, fmt.Errorf("webdav connection test failed: %w", err)
	}

	return s, nil
}

// fullPath 生成完整的 WebDAV 路径
func (s *WebDAVStorage) fullPath(key string) string {
	key = strings.TrimLeft(key, "/")
	if s.rootPath != "" {
		return s.rootPath + "/" + key
	}
	return "/" + key
}

// do 在独立 goroutine 中执行阻塞调用，使其可被上下文取消
func do(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func (s *WebDAVStorage) Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) error {
	fullPath := s.fullPath(key)

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("failed to read file content: %w", err)
	}

	err = do(ctx, func() error {
		if err := s.client.MkdirAll(path.Dir(fullPath), 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", path.Dir(fullPath), err)
		}
		return s.client.Write(fullPath, data, 0644)
	})
	if err != nil {
		return fmt.Errorf("failed to write file %s: %w", key, err)
	}
	return nil
}

func (s *WebDAVStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	var data []byte
	err := do(ctx, func() error {
		var err error
		data, err = s.client.Read(s.fullPath(key))
		return err
	})
	if err != nil {
		if gowebdav.IsErrNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to read file %s: %w", key, err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *WebDAVStorage) Delete(ctx context.Context, key string) error {
	fullPath := s.fullPath(key)
	err := do(ctx, func() error {
		// gowebdav 删除不存在的路径不会报错，先 Stat 以区分
		if _, err := s.client.Stat(fullPath); err != nil {
			return err
		}
		return s.client.Remove(fullPath)
	})
	if err != nil {
		if gowebdav.IsErrNotFound(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("failed to delete file %s: %w", key, err)
	}
	return nil
}

func (s *WebDAVStorage) DeleteBatch(ctx context.Context, keys []string) error {
	if err := checkBatch(keys); err != nil {
		return err
	}

	failed := make(map[string]error)
	for _, key := range keys {
		if err := s.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
			failed[key] = err
		}
	}
	if len(failed) > 0 {
		return &BatchError{Failed: failed}
	}
	return nil
}

// List 递归遍历前缀所在目录
func (s *WebDAVStorage) List(ctx context.Context, prefix, token string, maxKeys int) (ListPage, error) {
	if maxKeys <= 0 || maxKeys > MaxBatchDelete {
		maxKeys = MaxBatchDelete
	}

	dir := prefix
	if !strings.HasSuffix(dir, "/") {
		dir = path.Dir(dir)
	}
	dir = strings.Trim(dir, "/.")

	var keys []string
	var walk func(rel string) error
	walk = func(rel string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		entries, err := s.client.ReadDir(s.fullPath(rel))
		if err != nil {
			if gowebdav.IsErrNotFound(err) {
				return nil
			}
			return err
		}
		for _, entry := range entries {
			child := path.Join(rel, entry.Name())
			if entry.IsDir() {
				if err := walk(child); err != nil {
					return err
				}
				continue
			}
			if strings.HasPrefix(child, prefix) && child > token {
				keys = append(keys, child)
			}
		}
		return nil
	}

	if err := do(ctx, func() error { return walk(dir) }); err != nil {
		return ListPage{}, fmt.Errorf("failed to list '%s': %w", prefix, err)
	}

	sort.Strings(keys)
	return pageAfter(keys, maxKeys), nil
}

func (s *WebDAVStorage) PublicURL(key string) string {
	return s.publicURL + "/" + key
}

// Health 检查存储健康状态
func (s *WebDAVStorage) Health(ctx context.Context) error {
	root := s.rootPath
	if root == "" {
		root = "/"
	}
	return do(ctx, func() error {
		_, err := s.client.ReadDir(root)
		if err != nil && gowebdav.IsErrNotFound(err) {
			return s.client.MkdirAll(root, os.FileMode(0755))
		}
		return err
	})
}

// Name 返回存储名称
func (s *WebDAVStorage) Name() string {
	return fmt.Sprintf("webdav:%s%s", s.baseURL, s.rootPath)
}
