package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/the127/chunkyard/internal/args"

	"github.com/docker/go-units"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Kv       KvConfig
	Blob     BlobStorageConfig
	Upload   UploadConfig
}

type ServerConfig struct {
	Port           int
	Host           string
	ExternalUrl    string
	AllowedOrigins []string
	Auth           AuthConfig
}

type AuthConfig struct {
	// Secret enables HS256 bearer authentication on the upload api when set.
	Secret string
	Issuer string
}

type DatabaseMode string

const (
	DatabaseModeInMemory DatabaseMode = "memory"
	DatabaseModePostgres DatabaseMode = "postgres"
)

// DatabaseConfig selects where the upload server keeps upload metadata. The
// in memory database loses unfinished uploads on restart.
type DatabaseConfig struct {
	Mode     DatabaseMode
	Postgres PostgresConfig
}

type KvMode string

const (
	KvModeInMemory KvMode = "memory"
	KvModeFile     KvMode = "file"
	KvModeRedis    KvMode = "redis"
	KvModePostgres KvMode = "postgres"
)

type KvConfig struct {
	Mode KvMode

	// Cache puts an in-process cache in front of redis or postgres.
	Cache    bool
	CacheTtl time.Duration

	File struct {
		Path string
	}
	Redis struct {
		Host      string
		Port      int
		Username  string
		Password  string
		Database  int
		KeyPrefix string
	}
	Postgres PostgresConfig
}

type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SslMode  string
}

type BlobStorageMode string

const (
	BlobStorageModeInMemory  BlobStorageMode = "memory"
	BlobStorageModeDirectory BlobStorageMode = "directory"
)

type BlobStorageConfig struct {
	Mode      BlobStorageMode
	Directory DirectoryBlobStorageConfig
}

type DirectoryBlobStorageConfig struct {
	Path     string
	TempPath string
}

type GatewayMode string

const (
	GatewayModeHttp  GatewayMode = "http"
	GatewayModeS3    GatewayMode = "s3"
	GatewayModeMinio GatewayMode = "minio"
)

type UploadConfig struct {
	// ChunkSize is a human readable size such as "10MB".
	ChunkSize      string        `validate:"required"`
	CheckpointTtl  time.Duration `validate:"gte=0"`
	Gateway        GatewayMode   `validate:"oneof=http s3 minio"`
	Http           HttpGatewayConfig
	S3             S3GatewayConfig
	Minio          MinioGatewayConfig
	chunkSizeBytes int64
}

func (u UploadConfig) ChunkSizeBytes() int64 {
	return u.chunkSizeBytes
}

type HttpGatewayConfig struct {
	BaseUrl  string `validate:"required_if=Enabled true"`
	Token    string
	RetryMax int           `validate:"gte=0"`
	Timeout  time.Duration `validate:"gte=0"`
	Enabled  bool
}

type S3GatewayConfig struct {
	Region       string
	Bucket       string `validate:"required_if=Enabled true"`
	Prefix       string
	Endpoint     string `validate:"omitempty,url"`
	UsePathStyle bool
	Enabled      bool
}

type MinioGatewayConfig struct {
	Endpoint  string `validate:"required_if=Enabled true"`
	AccessKey string
	SecretKey string
	Bucket    string `validate:"required_if=Enabled true"`
	Prefix    string
	UseSsl    bool
	Enabled   bool
}

var C Config

var k = koanf.New(".")

func Init() {
	if args.ConfigFilePath() != "" {
		_, err := os.Stat(args.ConfigFilePath())
		if err != nil {
			panic(fmt.Errorf("failed to stat config file: %w", err))
		}

		err = k.Load(file.Provider(args.ConfigFilePath()), yaml.Parser())
		if err != nil {
			panic(fmt.Errorf("failed to load config file: %w", err))
		}
	}

	err := k.Load(env.Provider(".", env.Opt{
		Prefix: "CHUNKYARD_",
		TransformFunc: func(k, v string) (string, any) {
			// Transform the key.
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, "CHUNKYARD_")), "_", ".")

			if strings.Contains(v, " ") {
				return k, strings.Split(v, " ")
			}

			return k, v
		},
	}), nil)
	if err != nil {
		panic(fmt.Errorf("failed to load env provider: %w", err))
	}

	err = k.Unmarshal("", &C)
	if err != nil {
		panic(fmt.Errorf("failed to unmarshal config: %w", err))
	}

	setDefaultsOrPanic()
}

func setDefaultsOrPanic() {
	setServerDefaultsOrPanic()
	setDatabaseDefaultsOrPanic()
	setKvDefaultsOrPanic()
	setBlobDefaultsOrPanic()
	setUploadDefaultsOrPanic()
}

func setServerDefaultsOrPanic() {
	if C.Server.Host == "" {
		if args.IsProduction() {
			panic("Server.Host must be set in production.")
		}

		C.Server.Host = "localhost"
	}

	if C.Server.Port == 0 {
		C.Server.Port = 8080
	}

	if C.Server.ExternalUrl == "" {
		if args.IsProduction() {
			panic("Server.ExternalUrl must be set in production.")
		}

		C.Server.ExternalUrl = fmt.Sprintf("http://%s:%d", C.Server.Host, C.Server.Port)
	}

	_, err := url.Parse(C.Server.ExternalUrl)
	if err != nil {
		panic(fmt.Errorf("failed to parse Server.ExternalUrl: %w", err))
	}

	if C.Server.Auth.Issuer == "" {
		C.Server.Auth.Issuer = "chunkyard"
	}

	if C.Server.Auth.Secret == "" && args.IsProduction() {
		panic("Server.Auth.Secret must be set in production.")
	}
}

func setDatabaseDefaultsOrPanic() {
	if C.Database.Mode == "" {
		C.Database.Mode = DatabaseModeInMemory
	}

	switch C.Database.Mode {
	case DatabaseModeInMemory:
		return

	case DatabaseModePostgres:
		setPostgresDefaultsOrPanic(&C.Database.Postgres, "Database.Postgres")

	default:
		panic(fmt.Errorf("unsupported database mode: %s", C.Database.Mode))
	}
}

func setKvDefaultsOrPanic() {
	if C.Kv.Mode == "" {
		C.Kv.Mode = KvModeFile
	}

	if C.Kv.CacheTtl == 0 {
		C.Kv.CacheTtl = time.Minute
	}

	switch C.Kv.Mode {
	case KvModeInMemory:
		return

	case KvModeFile:
		setKvFileDefaultsOrPanic()

	case KvModeRedis:
		setKvRedisDefaultsOrPanic()

	case KvModePostgres:
		setKvPostgresDefaultsOrPanic()

	default:
		panic(fmt.Errorf("unsupported kv mode: %s", C.Kv.Mode))
	}
}

func setKvFileDefaultsOrPanic() {
	if C.Kv.File.Path != "" {
		return
	}

	dir, err := os.UserCacheDir()
	if err != nil {
		panic(fmt.Errorf("Kv.File.Path is not set and no user cache dir is available: %w", err))
	}

	C.Kv.File.Path = filepath.Join(dir, "chunkyard", "checkpoints")
}

func setKvRedisDefaultsOrPanic() {
	if C.Kv.Redis.Host == "" {
		if args.IsProduction() {
			panic("Kv.Redis.Host must be set in production.")
		}

		C.Kv.Redis.Host = "localhost"
	}

	if C.Kv.Redis.Port == 0 {
		C.Kv.Redis.Port = 6379
	}

	if C.Kv.Redis.KeyPrefix == "" {
		C.Kv.Redis.KeyPrefix = "chunkyard:"
	}
}

func setKvPostgresDefaultsOrPanic() {
	setPostgresDefaultsOrPanic(&C.Kv.Postgres, "Kv.Postgres")
}

func setPostgresDefaultsOrPanic(pc *PostgresConfig, section string) {
	if pc.Host == "" {
		if args.IsProduction() {
			panic(fmt.Sprintf("%s.Host must be set in production.", section))
		}

		pc.Host = "localhost"
	}

	if pc.Port == 0 {
		pc.Port = 5432
	}

	if pc.Database == "" {
		pc.Database = "chunkyard"
	}

	if pc.SslMode == "" {
		pc.SslMode = "disable"
	}
}

func setBlobDefaultsOrPanic() {
	if C.Blob.Mode == "" {
		if args.IsProduction() {
			panic("Blob.Mode must be set in production.")
		}

		C.Blob.Mode = BlobStorageModeInMemory
	}

	switch C.Blob.Mode {
	case BlobStorageModeInMemory:
		return

	case BlobStorageModeDirectory:
		if C.Blob.Directory.Path == "" {
			panic("Blob.Directory.Path must be set.")
		}

		if C.Blob.Directory.TempPath == "" {
			C.Blob.Directory.TempPath = filepath.Join(C.Blob.Directory.Path, ".uploads")
		}

	default:
		panic(fmt.Errorf("unsupported blob storage mode: %s", C.Blob.Mode))
	}
}

func setUploadDefaultsOrPanic() {
	SetUploadDefaults(&C.Upload, C.Server)

	parsed, err := ParseUpload(C.Upload)
	if err != nil {
		panic(err)
	}

	C.Upload = parsed
}

// SetUploadDefaults fills unset upload options. The http gateway falls back
// to the server's own external url so a local serve + upload works without
// any configuration.
func SetUploadDefaults(u *UploadConfig, server ServerConfig) {
	if u.ChunkSize == "" {
		u.ChunkSize = "10MB"
	}

	if u.Gateway == "" {
		u.Gateway = GatewayModeHttp
	}

	if u.CheckpointTtl == 0 {
		u.CheckpointTtl = 7 * 24 * time.Hour
	}

	if u.Http.BaseUrl == "" {
		u.Http.BaseUrl = server.ExternalUrl
	}

	if u.Http.RetryMax == 0 {
		u.Http.RetryMax = 4
	}

	if u.Http.Timeout == 0 {
		u.Http.Timeout = 5 * time.Minute
	}

	if u.S3.Region == "" {
		u.S3.Region = "us-east-1"
	}

	u.Http.Enabled = u.Gateway == GatewayModeHttp
	u.S3.Enabled = u.Gateway == GatewayModeS3
	u.Minio.Enabled = u.Gateway == GatewayModeMinio
}

var validate = validator.New()

func ValidateUpload(u UploadConfig) error {
	err := validate.Struct(u)
	if err != nil {
		return fmt.Errorf("invalid upload config: %w", err)
	}

	chunkSize, err := units.RAMInBytes(u.ChunkSize)
	if err != nil {
		return fmt.Errorf("invalid Upload.ChunkSize %q: %w", u.ChunkSize, err)
	}

	if chunkSize <= 0 {
		return fmt.Errorf("Upload.ChunkSize must be positive, got %q", u.ChunkSize)
	}

	return nil
}

// ParseUpload validates u and resolves the chunk size into bytes.
func ParseUpload(u UploadConfig) (UploadConfig, error) {
	err := ValidateUpload(u)
	if err != nil {
		return u, err
	}

	u.chunkSizeBytes, _ = units.RAMInBytes(u.ChunkSize)
	return u, nil
}
