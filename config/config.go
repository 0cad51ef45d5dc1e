package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	globalConfig Config
	once         sync.Once
)

// Config 扁平化配置结构体
type Config struct {
	AppEnv string `mapstructure:"app_env"`

	// 服务器配置
	ServerHost           string        `mapstructure:"server_host"`
	ServerPort           int           `mapstructure:"server_port"`
	ServerReadTimeout    time.Duration `mapstructure:"server_read_timeout"`
	ServerWriteTimeout   time.Duration `mapstructure:"server_write_timeout"`
	ServerIdleTimeout    time.Duration `mapstructure:"server_idle_timeout"`
	ServerAllowedOrigins string        `mapstructure:"server_allowed_origins"`

	// 存储配置
	StorageType          string `mapstructure:"storage_type"`
	StoragePublicBaseURL string `mapstructure:"storage_public_base_url"`
	S3BucketName         string `mapstructure:"s3_bucket_name"`
	AWSRegion            string `mapstructure:"aws_region"`
	AWSAccessKeyID       string `mapstructure:"aws_access_key_id"`
	AWSSecretAccessKey   string `mapstructure:"aws_secret_access_key"`
	S3Endpoint           string `mapstructure:"s3_endpoint"`
	MinioEndpoint        string `mapstructure:"minio_endpoint"`
	MinioAccessKeyID     string `mapstructure:"minio_access_key_id"`
	MinioSecretAccessKey string `mapstructure:"minio_secret_access_key"`
	MinioUseSSL          bool   `mapstructure:"minio_use_ssl"`
	WebDAVURL            string `mapstructure:"webdav_url"`
	WebDAVUsername       string `mapstructure:"webdav_username"`
	WebDAVPassword       string `mapstructure:"webdav_password"`
	WebDAVRootPath       string `mapstructure:"webdav_root_path"`
	LocalStoragePath     string `mapstructure:"local_storage_path"`

	// 认证服务配置
	AuthURL              string        `mapstructure:"auth_url"`
	AuthAnonKey          string        `mapstructure:"auth_anon_key"`
	AuthServiceRoleKey   string        `mapstructure:"auth_service_role_key"`
	AuthJWTSecret        string        `mapstructure:"auth_jwt_secret"`
	AuthJWTPublicKeyPath string        `mapstructure:"auth_jwt_public_key_path"`
	AuthTokenCacheTTL    time.Duration `mapstructure:"auth_token_cache_ttl"`

	// 缓存提供者配置
	CacheType          string `mapstructure:"cache_type"`
	CacheRedisAddr     string `mapstructure:"cache_redis_addr"`
	CacheRedisPassword string `mapstructure:"cache_redis_password"`
	CacheRedisDB       int    `mapstructure:"cache_redis_db"`

	// 数据库配置（孤儿对象台账）
	DBType            string `mapstructure:"db_type"`
	DBHost            string `mapstructure:"db_host"`
	DBPort            int    `mapstructure:"db_port"`
	DBUsername        string `mapstructure:"db_username"`
	DBPassword        string `mapstructure:"db_password"`
	DBName            string `mapstructure:"db_name"`
	DBFilePath        string `mapstructure:"db_file_path"`
	DBMaxOpenConns    int    `mapstructure:"db_max_open_conns"`
	DBMaxIdleConns    int    `mapstructure:"db_max_idle_conns"`
	DBConnMaxLifetime int    `mapstructure:"db_conn_max_lifetime"`

	// 上传与缩略图配置
	UploadMaxSizeBytes   int64  `mapstructure:"upload_max_size_bytes"`
	ThumbnailSize        int    `mapstructure:"thumbnail_size"`
	ThumbnailQuality     int    `mapstructure:"thumbnail_quality"`
	ThumbnailConcurrency int    `mapstructure:"thumbnail_concurrency"`
	ThumbnailEngine      string `mapstructure:"thumbnail_engine"`

	// 限流配置
	RateLimitApiRPS       float64       `mapstructure:"rate_limit_api_rps"`
	RateLimitApiBurst     int           `mapstructure:"rate_limit_api_burst"`
	RateLimitExpireTime   time.Duration `mapstructure:"rate_limit_expire_time"`
	MaxConcurrentRequests int64         `mapstructure:"max_concurrent_requests"`
	MaxConcurrentUploads  int64         `mapstructure:"max_concurrent_uploads"`
	UploadQueueTimeout    time.Duration `mapstructure:"upload_queue_timeout"`
}

// InitConfig Initialize configuration
func InitConfig() {
	once.Do(func() {
		loadConfig()
	})
}

func Get() *Config {
	return &globalConfig
}

// loadConfig Core configuration loading
func loadConfig() {
	cfg, err := Load(viper.GetString("config_file_path"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: Unable to unmarshal config, %v\n", err)
		os.Exit(1)
	}
	globalConfig = *cfg
}

// Load 从指定文件（为空时为 .env）和环境变量加载配置
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		path = ".env"
	}
	v.SetConfigFile(path)
	if strings.HasSuffix(path, ".env") {
		v.SetConfigType("env")
	}

	if err := v.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Info: %s not found, using defaults and environment variables\n", path)
	} else {
		fmt.Fprintf(os.Stderr, "Info: Loaded configuration from %s\n", path)
	}

	v.AutomaticEnv()
	for _, key := range v.AllKeys() {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// ThumbnailConcurrency: -1 = 使用 CPU 线程数, 0 = 使用默认值
	switch {
	case cfg.ThumbnailConcurrency < 0:
		cfg.ThumbnailConcurrency = runtime.GOMAXPROCS(0)
	case cfg.ThumbnailConcurrency == 0:
		cfg.ThumbnailConcurrency = getCpus()
	}

	return &cfg, nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("app_env", "production")

	// 服务器配置默认值
	v.SetDefault("server_host", "127.0.0.1")
	v.SetDefault("server_port", 8080)
	v.SetDefault("server_read_timeout", "15s")
	v.SetDefault("server_write_timeout", "30s")
	v.SetDefault("server_idle_timeout", "120s")
	v.SetDefault("server_allowed_origins", "http://localhost:3000")

	// 存储配置默认值
	v.SetDefault("storage_type", "s3")
	v.SetDefault("storage_public_base_url", "")
	v.SetDefault("s3_bucket_name", "")
	v.SetDefault("aws_region", "ap-northeast-1")
	v.SetDefault("aws_access_key_id", "")
	v.SetDefault("aws_secret_access_key", "")
	v.SetDefault("s3_endpoint", "")
	v.SetDefault("minio_endpoint", "")
	v.SetDefault("minio_access_key_id", "")
	v.SetDefault("minio_secret_access_key", "")
	v.SetDefault("minio_use_ssl", true)
	v.SetDefault("webdav_url", "")
	v.SetDefault("webdav_username", "")
	v.SetDefault("webdav_password", "")
	v.SetDefault("webdav_root_path", "")
	v.SetDefault("local_storage_path", "./data/objects")

	// 认证配置默认值
	v.SetDefault("auth_url", "")
	v.SetDefault("auth_anon_key", "")
	v.SetDefault("auth_service_role_key", "")
	v.SetDefault("auth_jwt_secret", "")
	v.SetDefault("auth_jwt_public_key_path", "")
	v.SetDefault("auth_token_cache_ttl", "60s")

	// 缓存提供者配置默认值
	v.SetDefault("cache_type", "memory")
	v.SetDefault("cache_redis_addr", "localhost:6379")
	v.SetDefault("cache_redis_password", "")
	v.SetDefault("cache_redis_db", 0)

	// 数据库配置默认值
	v.SetDefault("db_type", "sqlite")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_username", "postgres")
	v.SetDefault("db_password", "")
	v.SetDefault("db_name", "engi-tracker")
	v.SetDefault("db_file_path", "./data/orphans.db")
	v.SetDefault("db_max_open_conns", 20)
	v.SetDefault("db_max_idle_conns", 5)
	v.SetDefault("db_conn_max_lifetime", 3600)

	// 上传与缩略图默认值
	v.SetDefault("upload_max_size_bytes", 5*1024*1024)
	v.SetDefault("thumbnail_size", 200)
	v.SetDefault("thumbnail_quality", 90)
	v.SetDefault("thumbnail_concurrency", 0) // 0 表示使用默认值
	v.SetDefault("thumbnail_engine", "imaging")

	// 限流配置默认值
	v.SetDefault("rate_limit_api_rps", 10.0)
	v.SetDefault("rate_limit_api_burst", 20)
	v.SetDefault("rate_limit_expire_time", "10m")
	v.SetDefault("max_concurrent_requests", 100)
	v.SetDefault("max_concurrent_uploads", 16)
	v.SetDefault("upload_queue_timeout", "10s")
}

// Validate 检查运行所需的外部服务配置，返回所有缺失项
// 缺失配置不会阻止启动，相关接口在首次使用时返回 500
func (c *Config) Validate() error {
	var errs []error

	switch c.StorageType {
	case "s3":
		if c.S3BucketName == "" {
			errs = append(errs, errors.New("missing S3_BUCKET_NAME"))
		}
		if c.AWSAccessKeyID == "" || c.AWSSecretAccessKey == "" {
			errs = append(errs, errors.New("missing AWS credentials"))
		}
	case "minio":
		if c.MinioEndpoint == "" || c.S3BucketName == "" {
			errs = append(errs, errors.New("missing MINIO_ENDPOINT or S3_BUCKET_NAME"))
		}
	case "webdav":
		if c.WebDAVURL == "" {
			errs = append(errs, errors.New("missing WEBDAV_URL"))
		}
	case "local", "memory":
	default:
		errs = append(errs, fmt.Errorf("unsupported storage type: %s", c.StorageType))
	}

	if c.AuthURL == "" {
		errs = append(errs, errors.New("missing AUTH_URL"))
	}
	if c.AuthJWTSecret == "" && c.AuthJWTPublicKeyPath == "" && c.AuthAnonKey == "" {
		errs = append(errs, errors.New("missing token verification settings (AUTH_JWT_SECRET, AUTH_JWT_PUBLIC_KEY_PATH or AUTH_ANON_KEY)"))
	}
	if c.AuthServiceRoleKey == "" {
		errs = append(errs, errors.New("missing AUTH_SERVICE_ROLE_KEY"))
	}

	return errors.Join(errs...)
}

// IsDevelopment 是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// Addr 返回监听地址，格式为 "host:port"
func (c *Config) Addr() string {
	host := c.ServerHost
	if host == "" {
		host = "0.0.0.0"
	}
	port := c.ServerPort
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// AllowedOrigins 解析逗号分隔的 CORS 来源
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.ServerAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// getCpus 获取默认线程数量
func getCpus() int {
	n := runtime.GOMAXPROCS(0)
	if n < 2 {
		return 2
	}
	return n
}
