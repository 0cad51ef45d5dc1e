package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// LocalStorage 本地文件存储实现
// 元数据（ContentType、CacheControl）不落盘
type LocalStorage struct {
	absBasePath string
	publicURL   string
}

// NewLocalStorage 创建本地存储提供者
func NewLocalStorage(basePath, publicBaseURL string) (*LocalStorage, error) {
	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for '%s': %w", basePath, err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create local storage directory '%s': %w", absPath, err)
	}

	testFile := filepath.Join(absPath, ".write_test_"+strconv.FormatInt(time.Now().UnixNano(), 10))
	f, err := os.Create(testFile)
	if err != nil {
		return nil, fmt.Errorf("local storage directory '%s' is not writable: %w", absPath, err)
	}
	_ = f.Close()
	_ = os.Remove(testFile)

	return &LocalStorage{
		absBasePath: absPath + string(os.PathSeparator),
		publicURL:   strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

// resolve 将对象键转换为磁盘路径，并防止目录遍历
func (s *LocalStorage) resolve(key string) (string, error) {
	if !IsValidStoragePath(key) {
		return "", fmt.Errorf("invalid storage path: %s", key)
	}
	fullPath := filepath.Join(s.absBasePath, filepath.FromSlash(key))
	if !strings.HasPrefix(fullPath, s.absBasePath) {
		return "", fmt.Errorf("invalid file path, potential directory traversal: %s", key)
	}
	return fullPath, nil
}

// Put 保存文件到本地存储
func (s *LocalStorage) Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dstPath, err := s.resolve(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory for '%s': %w", key, err)
	}

	// 先写临时文件再重命名，避免读到半截文件
	tmp, err := os.CreateTemp(filepath.Dir(dstPath), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for '%s': %w", key, err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to copy file content to '%s': %w", dstPath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file for '%s': %w", key, err)
	}
	if err := os.Rename(tmpPath, dstPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to move file into place '%s': %w", dstPath, err)
	}
	return nil
}

// Get 从本地存储获取文件
func (s *LocalStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fullPath, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to open file '%s': %w", key, err)
	}
	return file, nil
}

// Delete 从本地存储删除文件
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fullPath, err := s.resolve(key)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("failed to delete local file '%s': %w", fullPath, err)
	}
	return nil
}

// DeleteBatch 批量删除，不存在的文件忽略
func (s *LocalStorage) DeleteBatch(ctx context.Context, keys []string) error {
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

// List 遍历前缀所在目录，按字典序分页
func (s *LocalStorage) List(ctx context.Context, prefix, token string, maxKeys int) (ListPage, error) {
	if err := ctx.Err(); err != nil {
		return ListPage{}, err
	}
	if maxKeys <= 0 || maxKeys > MaxBatchDelete {
		maxKeys = MaxBatchDelete
	}

	// 前缀可能以不完整的文件名结尾，从其所在目录开始遍历
	dir := prefix
	if !strings.HasSuffix(dir, "/") {
		dir = path.Dir(dir)
	}
	root := s.absBasePath
	if dir != "" && dir != "." && dir != "/" {
		var err error
		if root, err = s.resolve(strings.TrimSuffix(dir, "/")); err != nil {
			return ListPage{}, err
		}
	}

	var keys []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}
		rel, err := filepath.Rel(s.absBasePath, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) && key > token {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return ListPage{}, fmt.Errorf("failed to list '%s': %w", prefix, err)
	}

	sort.Strings(keys)
	return pageAfter(keys, maxKeys), nil
}

func (s *LocalStorage) PublicURL(key string) string {
	return s.publicURL + "/" + key
}

// Health 检查存储健康状态
func (s *LocalStorage) Health(ctx context.Context) error {
	_, err := os.ReadDir(s.absBasePath)
	return err
}

// Name 返回存储名称
func (s *LocalStorage) Name() string {
	return "local"
}

// IsValidStoragePath 校验存储路径是否合法
func IsValidStoragePath(p string) bool {
	if p == "" {
		return false
	}

	// 不允许绝对路径
	if filepath.IsAbs(p) || strings.HasPrefix(p, "/") {
		return false
	}

	// 防止目录遍历
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." || seg == "." {
			return false
		}
	}

	for _, r := range p {
		if r == '\\' || unicode.IsControl(r) {
			return false
		}
	}

	return true
}
