package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/anoixa/engi-tracker/config"
)

// NewProvider 根据配置创建存储提供者
func NewProvider(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (Provider, error) {
	logger = logger.Named("storage")
	logger.Infof("Initializing storage provider, type: %s", cfg.StorageType)

	var (
		provider Provider
		err      error
	)

	if missing := missingSettings(cfg); len(missing) > 0 {
		logger.Warnf("'%s' storage is missing %v, storage operations will fail until configured",
			cfg.StorageType, missing)
		return NewUnconfiguredStorage(cfg.StorageType, missing), nil
	}

	switch cfg.StorageType {
	case "s3":
		provider, err = NewS3Storage(ctx, S3Config{
			Bucket:          cfg.S3BucketName,
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			Endpoint:        cfg.S3Endpoint,
			PublicBaseURL:   cfg.StoragePublicBaseURL,
		})
	case "minio":
		provider, err = NewMinioStorage(ctx, MinioConfig{
			Endpoint:        cfg.MinioEndpoint,
			AccessKeyID:     cfg.MinioAccessKeyID,
			SecretAccessKey: cfg.MinioSecretAccessKey,
			UseSSL:          cfg.MinioUseSSL,
			BucketName:      cfg.S3BucketName,
			PublicBaseURL:   cfg.StoragePublicBaseURL,
		}, logger)
	case "webdav":
		provider, err = NewWebDAVStorage(ctx, WebDAVConfig{
			URL:           cfg.WebDAVURL,
			Username:      cfg.WebDAVUsername,
			Password:      cfg.WebDAVPassword,
			RootPath:      cfg.WebDAVRootPath,
			PublicBaseURL: cfg.StoragePublicBaseURL,
		})
	case "local":
		provider, err = NewLocalStorage(cfg.LocalStoragePath, localPublicURL(cfg))
	case "memory":
		provider = NewMemoryStorage(localPublicURL(cfg))
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.StorageType)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s storage: %w", cfg.StorageType, err)
	}

	logger.Infof("Successfully initialized '%s' storage provider", provider.Name())
	return provider, nil
}

// missingSettings 返回所选存储类型缺少的必需配置项
func missingSettings(cfg *config.Config) []string {
	var missing []string
	switch cfg.StorageType {
	case "s3":
		if cfg.S3BucketName == "" {
			missing = append(missing, "s3_bucket_name")
		}
		if cfg.AWSRegion == "" {
			missing = append(missing, "aws_region")
		}
	case "minio":
		if cfg.MinioEndpoint == "" {
			missing = append(missing, "minio_endpoint")
		}
		if cfg.S3BucketName == "" {
			missing = append(missing, "s3_bucket_name")
		}
	case "webdav":
		if cfg.WebDAVURL == "" {
			missing = append(missing, "webdav_url")
		}
	}
	return missing
}

// localPublicURL 本地与内存存储默认通过本服务的 /objects 路由访问
func localPublicURL(cfg *config.Config) string {
	if cfg.StoragePublicBaseURL != "" {
		return cfg.StoragePublicBaseURL
	}
	return fmt.Sprintf("http://%s/objects", cfg.Addr())
}
