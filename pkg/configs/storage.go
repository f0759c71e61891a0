package configs

import (
	"fmt"

	"github.com/spf13/viper"
)

// StorageType 文件存储后端类型.
type StorageType string

const (
	StorageLocal StorageType = "local"
	StorageS3    StorageType = "s3"
)

const (
	DefaultStorageType       = StorageLocal
	DefaultLocalRoot         = "public/uploads" // 位于 public 目录下时返回直接访问路径
	DefaultLocalPublicDir    = "public"         // 公共静态目录
	DefaultPublicPrefix      = "/uploads"       // 直接访问路径前缀
	DefaultAPIPrefix         = "/api/file"      // 经由服务接口访问的路径前缀
	DefaultS3Endpoint        = "localhost:9000" // 默认S3端点
	DefaultS3AccessKeyID     = "minioadmin"     // 默认访问密钥ID
	DefaultS3SecretAccessKey = "minioadmin"     // 默认秘密访问密钥
	DefaultS3UseSSL          = false            // 默认是否使用SSL
	DefaultS3BucketName      = "dropvault"      // 默认存储桶名称
	DefaultS3Region          = "us-east-1"      // 默认区域
)

// StorageConfig 文件存储配置.
type StorageConfig struct {
	Type      StorageType        `mapstructure:"type"       rule:"oneof=local s3"`
	Local     LocalStorageConfig `mapstructure:"local"`
	S3        S3Config           `mapstructure:"s3"`
	APIPrefix string             `mapstructure:"api_prefix" rule:"required,startswith=/"`
}

// LocalStorageConfig 本地文件系统存储配置.
type LocalStorageConfig struct {
	Root         string `mapstructure:"root"          rule:"required"`
	PublicDir    string `mapstructure:"public_dir"`
	PublicPrefix string `mapstructure:"public_prefix" rule:"required,startswith=/"`
}

// S3Config MinIO S3存储配置.
type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
	Region          string `mapstructure:"region"`
	Prefix          string `mapstructure:"prefix"` // 对象键前缀，例如 "blobs/"
}

// GetEndpointURL 获取完整的端点URL.
func (c *S3Config) GetEndpointURL() string {
	scheme := "http"
	if c.UseSSL {
		scheme = "https"
	}

	return fmt.Sprintf("%s://%s", scheme, c.Endpoint)
}

// setDefaults 设置存储配置的默认值.
func (c *StorageConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("storage.type", DefaultStorageType)
	v.SetDefault("storage.api_prefix", DefaultAPIPrefix)

	v.SetDefault("storage.local.root", DefaultLocalRoot)
	v.SetDefault("storage.local.public_dir", DefaultLocalPublicDir)
	v.SetDefault("storage.local.public_prefix", DefaultPublicPrefix)

	v.SetDefault("storage.s3.endpoint", DefaultS3Endpoint)
	v.SetDefault("storage.s3.access_key_id", DefaultS3AccessKeyID)
	v.SetDefault("storage.s3.secret_access_key", DefaultS3SecretAccessKey)
	v.SetDefault("storage.s3.use_ssl", DefaultS3UseSSL)
	v.SetDefault("storage.s3.bucket_name", DefaultS3BucketName)
	v.SetDefault("storage.s3.region", DefaultS3Region)
	v.SetDefault("storage.s3.prefix", "")
}
