package blob

import (
	"context"
	"fmt"
	"io"
	"iter"
	"net/url"
	"strings"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yeisme/dropvault/pkg/configs"
	nlog "github.com/yeisme/dropvault/pkg/log"
)

// S3 基于 MinIO / S3 bucket 的 Store，locator 总是 API 路径.
type S3 struct {
	cli    *minio.Client
	bucket string
	prefix string // 对象键前缀
	loc    string // locator 前缀
}

var _ Store = (*S3)(nil)

func init() {
	RegisterFactory(configs.StorageS3, func(ctx context.Context, cfg configs.StorageConfig) (Store, error) {
		return NewS3(ctx, cfg)
	})
}

// NewS3 初始化 MinIO 客户端，bucket 不存在时尝试创建.
func NewS3(ctx context.Context, cfg configs.StorageConfig) (*S3, error) {
	s3cfg := cfg.S3
	endpoint := s3cfg.Endpoint
	// 允许用户传完整 schema endpoint（http:// 或 https://）
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			s3cfg.UseSSL = true
		}
	}

	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(s3cfg.AccessKeyID, s3cfg.SecretAccessKey, ""),
		Secure: s3cfg.UseSSL,
		Region: s3cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	cli.SetAppInfo(configs.AppName, configs.AppVersion)

	exists, err := cli.BucketExists(ctx, s3cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", s3cfg.BucketName, err)
	}

	if !exists {
		if err := cli.MakeBucket(ctx, s3cfg.BucketName, minio.MakeBucketOptions{Region: s3cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", s3cfg.BucketName, err)
		}

		nlog.Logger().Info().Str("bucket", s3cfg.BucketName).Msg("bucket created")
	}

	nlog.Logger().Info().Str("endpoint", s3cfg.Endpoint).Str("bucket", s3cfg.BucketName).Msg("s3 connected")

	return &S3{
		cli:    cli,
		bucket: s3cfg.BucketName,
		prefix: s3cfg.Prefix,
		loc:    NamingFrom(cfg).APIPrefix,
	}, nil
}

func (s *S3) key(locator string) (string, error) {
	name, err := NameFromLocator(locator)
	if err != nil {
		return "", err
	}

	return s.prefix + name, nil
}

// isNoSuchKey 判断是否为对象不存在的响应.
func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)

	return resp.Code == "NoSuchKey" || resp.StatusCode == 404
}

// Save 先 StatObject 确认名字未被占用再上传.
func (s *S3) Save(ctx context.Context, r io.Reader, size int64, originalName string) (string, error) {
	for range nameAttempts {
		name := NewName(originalName)
		key := s.prefix + name

		_, err := s.cli.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
		if err == nil {
			continue
		}

		if !isNoSuchKey(err) {
			return "", fmt.Errorf("%w: stat %s: %w", ErrStorageWrite, key, err)
		}

		if size < 0 {
			size = -1
		}

		_, err = s.cli.PutObject(ctx, s.bucket, key, &ctxReader{ctx: ctx, r: r}, size, minio.PutObjectOptions{
			ContentType: "application/octet-stream",
		})
		if err != nil {
			return "", fmt.Errorf("%w: put %s: %w", ErrStorageWrite, key, err)
		}

		return s.loc + "/" + name, nil
	}

	return "", fmt.Errorf("%w: no free object name after %d attempts", ErrStorageWrite, nameAttempts)
}

// Read 打开对象；GetObject 是惰性的，因此先 Stat 一次以区分不存在.
func (s *S3) Read(ctx context.Context, locator string) (io.ReadCloser, error) {
	key, err := s.key(locator)
	if err != nil {
		return nil, err
	}

	obj, err := s.cli.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}

	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()

		if isNoSuchKey(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, locator)
		}

		return nil, fmt.Errorf("stat %s: %w", key, err)
	}

	return obj, nil
}

// Delete 删除对象，不存在视为成功.
func (s *S3) Delete(ctx context.Context, locator string) error {
	key, err := s.key(locator)
	if err != nil {
		return err
	}

	if err := s.cli.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil && !isNoSuchKey(err) {
		return fmt.Errorf("%w: remove %s: %w", ErrStorageWrite, key, err)
	}

	return nil
}

// Stat 返回对象信息.
func (s *S3) Stat(ctx context.Context, locator string) (ObjectInfo, error) {
	key, err := s.key(locator)
	if err != nil {
		return ObjectInfo{}, err
	}

	st, err := s.cli.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return ObjectInfo{}, fmt.Errorf("%w: %s", ErrNotFound, locator)
		}

		return ObjectInfo{}, fmt.Errorf("stat %s: %w", key, err)
	}

	return s.info(st), nil
}

func (s *S3) info(st minio.ObjectInfo) ObjectInfo {
	name := strings.TrimPrefix(st.Key, s.prefix)

	return ObjectInfo{
		Name:    name,
		Locator: s.loc + "/" + name,
		Size:    st.Size,
		ModTime: st.LastModified.UTC(),
	}
}

// List 遍历前缀下的全部对象.
func (s *S3) List(ctx context.Context) iter.Seq2[ObjectInfo, error] {
	return func(yield func(ObjectInfo, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		for obj := range s.cli.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: s.prefix, Recursive: true}) {
			if obj.Err != nil {
				if !yield(ObjectInfo{}, obj.Err) {
					return
				}

				continue
			}

			// 跳过更深层级的键，它们不是本服务写入的
			if strings.Contains(strings.TrimPrefix(obj.Key, s.prefix), "/") {
				continue
			}

			if !yield(s.info(obj), nil) {
				return
			}
		}
	}
}

// Ping 通过列出桶来验证连接.
func (s *S3) Ping(ctx context.Context) error {
	_, err := s.cli.ListBuckets(ctx)

	return err
}

// Close 无实际操作.
func (s *S3) Close() error {
	return nil
}
