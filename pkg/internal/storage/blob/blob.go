// Package blob 保存上传文件的原始字节，按生成的名字存放并返回定位符（locator）.
// blob 层不感知元数据，也不会修改元数据.
package blob

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"io"
	"iter"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid"

	"github.com/yeisme/dropvault/pkg/configs"
	"github.com/yeisme/dropvault/pkg/rule"
)

var (
	// ErrNotFound 对象不存在或 locator 非法.
	ErrNotFound = errors.New("blob: not found")
	// ErrStorageWrite 写入或删除时发生 I/O 错误.
	ErrStorageWrite = errors.New("blob: storage write failed")
)

// ObjectInfo 存储中单个对象的信息.
type ObjectInfo struct {
	Name    string
	Locator string
	Size    int64
	ModTime time.Time
}

// Store blob 存储接口.
type Store interface {
	// Save 以新生成的名字写入 r，返回 locator；已存在的对象不会被覆盖.
	Save(ctx context.Context, r io.Reader, size int64, originalName string) (string, error)
	// Read 打开 locator 对应的对象，不存在时返回 ErrNotFound.
	Read(ctx context.Context, locator string) (io.ReadCloser, error)
	// Delete 删除对象，对象已不存在时返回 nil.
	Delete(ctx context.Context, locator string) error
	Stat(ctx context.Context, locator string) (ObjectInfo, error)
	// List 遍历全部对象，仅供孤儿回收使用.
	List(ctx context.Context) iter.Seq2[ObjectInfo, error]
	Ping(ctx context.Context) error
	Close() error
}

// Factory 根据存储配置创建 Store.
type Factory func(ctx context.Context, cfg configs.StorageConfig) (Store, error)

var factories = map[configs.StorageType]Factory{}

// RegisterFactory 注册存储后端.
func RegisterFactory(t configs.StorageType, f Factory) {
	factories[t] = f
}

// GetRegisteredTypes 返回已注册的存储类型.
func GetRegisteredTypes() []configs.StorageType {
	types := make([]configs.StorageType, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}

	return types
}

// Open 按配置创建 Store.
func Open(ctx context.Context, cfg configs.StorageConfig) (Store, error) {
	f, ok := factories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}

	return f(ctx, cfg)
}

// Naming 描述 locator 的两种前缀.
type Naming struct {
	PublicPrefix string // 直接访问路径，例如 /uploads
	APIPrefix    string // 经服务接口访问，例如 /api/file
}

// NamingFrom 从存储配置构建 Naming.
func NamingFrom(cfg configs.StorageConfig) Naming {
	return Naming{
		PublicPrefix: strings.TrimRight(cfg.Local.PublicPrefix, "/"),
		APIPrefix:    strings.TrimRight(cfg.APIPrefix, "/"),
	}
}

// Candidates 返回同一个对象名可能对应的 locator，API 前缀优先.
func (n Naming) Candidates(name string) []string {
	return []string{n.APIPrefix + "/" + name, n.PublicPrefix + "/" + name}
}

// NameFromLocator 取 locator 的最后一段作为对象名，拒绝空、"."、".." 与含分隔符的名字.
func NameFromLocator(locator string) (string, error) {
	name := locator
	if i := strings.LastIndexByte(locator, '/'); i >= 0 {
		name = locator[i+1:]
	}

	if !rule.IsBlobName(name) {
		return "", fmt.Errorf("%w: invalid locator %q", ErrNotFound, locator)
	}

	return name, nil
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(crand.Reader, 0)
)

const maxExtLen = 16

// NewName 生成不会重复的对象名：小写 ULID 加上原始文件的小写扩展名.
func NewName(originalName string) string {
	entropyMu.Lock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	entropyMu.Unlock()

	if err != nil {
		// 同一毫秒内单调熵耗尽时改用全新的随机熵
		id = ulid.MustNew(ulid.Timestamp(time.Now()), crand.Reader)
	}

	return strings.ToLower(id.String()) + safeExt(originalName)
}

// safeExt 返回只含字母数字的小写扩展名，不合法时返回空串.
func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > maxExtLen {
		return ""
	}

	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}

	return ext
}

// ctxReader 在每次 Read 前检查 ctx，客户端断开时尽早终止写入.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}

	return c.r.Read(p)
}
