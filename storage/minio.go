package storage

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinioConfig MinIO 存储配置
type MinioConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	BucketName      string
	PublicBaseURL   string
}

// MinioStorage 基于 minio-go 的存储实现，适用于自托管部署
type MinioStorage struct {
	client     *minio.Client
	bucketName string
	publicURL  string
}

// mustGetSystemCertPool 获取系统证书池
func mustGetSystemCertPool(logger *zap.SugaredLogger) *x509.CertPool {
	pool, err := x509.SystemCertPool()
	if err != nil {
		logger.Warnf("Failed to load system cert pool for MinIO: %v", err)
		return x509.NewCertPool()
	}
	return pool
}

// NewMinioStorage 创建 MinIO 存储提供者，桶不存在时自动创建
func NewMinioStorage(ctx context.Context, cfg MinioConfig, logger *zap.SugaredLogger) (*MinioStorage, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       time.Minute,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 10 * time.Second,
		DisableCompression:    true,
	}

	// SSL
	if cfg.UseSSL {
		transport.TLSClientConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
		if f := os.Getenv("SSL_CERT_FILE"); f != "" {
			rootCAs := mustGetSystemCertPool(logger)
			data, err := os.ReadFile(f)
			if err == nil {
				rootCAs.AppendCertsFromPEM(data)
			}
			transport.TLSClientConfig.RootCAs = rootCAs
		}
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure:    cfg.UseSSL,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(checkCtx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket '%s' exists: %w", cfg.BucketName, err)
	}
	if !exists {
		if err := client.MakeBucket(checkCtx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket '%s': %w", cfg.BucketName, err)
		}
		logger.Infof("Created MinIO bucket %s", cfg.BucketName)
	}

	publicURL := strings.TrimRight(cfg.PublicBaseURL, "/")
	if publicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.BucketName)
	}

	return &MinioStorage{
		client:     client,
		bucketName: cfg.BucketName,
		publicURL:  publicURL,
	}, nil
}

// Client 返回底层客户端，供桶通知监听使用
func (s *MinioStorage) Client() *minio.Client {
	return s.client
}

// Bucket 返回桶名称
func (s *MinioStorage) Bucket() string {
	return s.bucketName
}

func (s *MinioStorage) Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) error {
	_, err := s.client.PutObject(ctx, s.bucketName, key, body, size, minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		CacheControl: opts.CacheControl,
	})
	if err != nil {
		return fmt.Errorf("failed to upload object '%s' to minio: %w", key, err)
	}
	return nil
}

func (s *MinioStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.wrapErr("get", key, err)
	}
	// GetObject 延迟请求，Stat 才能暴露 NoSuchKey
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, s.wrapErr("get", key, err)
	}
	return obj, nil
}

func (s *MinioStorage) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucketName, key, minio.RemoveObjectOptions{}); err != nil {
		return s.wrapErr("delete", key, err)
	}
	return nil
}

func (s *MinioStorage) DeleteBatch(ctx context.Context, keys []string) error {
	if err := checkBatch(keys); err != nil {
		return err
	}

	objectsCh := make(chan minio.ObjectInfo, len(keys))
	for _, key := range keys {
		objectsCh <- minio.ObjectInfo{Key: key}
	}
	close(objectsCh)

	failed := make(map[string]error)
	for rErr := range s.client.RemoveObjects(ctx, s.bucketName, objectsCh, minio.RemoveObjectsOptions{}) {
		if minio.ToErrorResponse(rErr.Err).Code == "NoSuchKey" {
			continue
		}
		failed[rErr.ObjectName] = rErr.Err
	}
	if len(failed) > 0 {
		return &BatchError{Failed: failed}
	}
	return nil
}

// List 使用 StartAfter 分页，token 为上一页最后一个键
func (s *MinioStorage) List(ctx context.Context, prefix, token string, maxKeys int) (ListPage, error) {
	if maxKeys <= 0 || maxKeys > MaxBatchDelete {
		maxKeys = MaxBatchDelete
	}

	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	keys := make([]string, 0, maxKeys)
	for obj := range s.client.ListObjects(listCtx, s.bucketName, minio.ListObjectsOptions{
		Prefix:     prefix,
		Recursive:  true,
		StartAfter: token,
		MaxKeys:    maxKeys,
	}) {
		if obj.Err != nil {
			return ListPage{}, fmt.Errorf("failed to list objects under '%s': %w", prefix, obj.Err)
		}
		keys = append(keys, obj.Key)
		// 多取一个用于判断是否还有下一页
		if len(keys) > maxKeys {
			break
		}
	}

	return pageAfter(keys, maxKeys), nil
}

func (s *MinioStorage) PublicURL(key string) string {
	return s.publicURL + "/" + key
}

func (s *MinioStorage) Health(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket '%s' does not exist", s.bucketName)
	}
	return nil
}

func (s *MinioStorage) Name() string {
	return fmt.Sprintf("minio:%s", s.bucketName)
}

func (s *MinioStorage) wrapErr(op, key string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return fmt.Errorf("failed to %s object '%s' in minio: %w", op, key, err)
}
