package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/yeisme/dropvault/pkg/configs"
	nlog "github.com/yeisme/dropvault/pkg/log"
)

const (
	tempPrefix   = ".upload-"
	nameAttempts = 8
	dirPerm      = 0o755
)

// Local 基于本地文件系统目录的 Store.
type Local struct {
	root   string
	prefix string // 写入时使用的 locator 前缀
}

var _ Store = (*Local)(nil)

func init() {
	RegisterFactory(configs.StorageLocal, func(_ context.Context, cfg configs.StorageConfig) (Store, error) {
		return NewLocal(cfg)
	})
}

// NewLocal 创建本地存储，root 不存在时自动创建.
// root 位于 public 目录之下时返回直接访问路径，否则返回 API 路径.
func NewLocal(cfg configs.StorageConfig) (*Local, error) {
	root, err := filepath.Abs(cfg.Local.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}

	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, fmt.Errorf("create storage root %s: %w", root, err)
	}

	naming := NamingFrom(cfg)
	prefix := naming.APIPrefix

	if cfg.Local.PublicDir != "" {
		pub, err := filepath.Abs(cfg.Local.PublicDir)
		if err == nil && isWithin(pub, root) {
			prefix = naming.PublicPrefix
		}
	}

	nlog.Logger().Info().Str("root", root).Str("prefix", prefix).Msg("local blob store ready")

	return &Local{root: root, prefix: prefix}, nil
}

// isWithin 判断 path 是否位于 dir 之下（不含 dir 本身）.
func isWithin(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Root 返回存储目录的绝对路径.
func (l *Local) Root() string {
	return l.root
}

// Save 先写入 O_EXCL 临时文件并 fsync，再硬链接到最终名字；目标已存在时换名重试.
func (l *Local) Save(ctx context.Context, r io.Reader, size int64, originalName string) (string, error) {
	tmp, err := os.CreateTemp(l.root, tempPrefix+"*")
	if err != nil {
		return "", fmt.Errorf("%w: create temp file: %w", ErrStorageWrite, err)
	}

	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	n, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r})
	if err == nil && size >= 0 && n != size {
		err = fmt.Errorf("short write: %d of %d bytes", n, size)
	}

	if err == nil {
		err = tmp.Sync()
	}

	if cerr := tmp.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}

	for range nameAttempts {
		name := NewName(originalName)

		err = os.Link(tmpName, filepath.Join(l.root, name))
		if err == nil {
			return l.prefix + "/" + name, nil
		}

		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: link blob: %w", ErrStorageWrite, err)
		}
	}

	return "", fmt.Errorf("%w: no free blob name after %d attempts", ErrStorageWrite, nameAttempts)
}

func (l *Local) path(locator string) (string, error) {
	name, err := NameFromLocator(locator)
	if err != nil {
		return "", err
	}

	return filepath.Join(l.root, name), nil
}

// Read 打开对象.
func (l *Local) Read(_ context.Context, locator string) (io.ReadCloser, error) {
	p, err := l.path(locator)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, locator)
		}

		return nil, fmt.Errorf("open blob %s: %w", locator, err)
	}

	return f, nil
}

// Delete 删除对象，不存在视为成功.
func (l *Local) Delete(_ context.Context, locator string) error {
	p, err := l.path(locator)
	if err != nil {
		return err
	}

	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: remove %s: %w", ErrStorageWrite, locator, err)
	}

	return nil
}

// Stat 返回对象信息.
func (l *Local) Stat(_ context.Context, locator string) (ObjectInfo, error) {
	p, err := l.path(locator)
	if err != nil {
		return ObjectInfo{}, err
	}

	fi, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ObjectInfo{}, fmt.Errorf("%w: %s", ErrNotFound, locator)
		}

		return ObjectInfo{}, fmt.Errorf("stat blob %s: %w", locator, err)
	}

	if fi.IsDir() {
		return ObjectInfo{}, fmt.Errorf("%w: %s is a directory", ErrNotFound, locator)
	}

	return l.info(fi), nil
}

func (l *Local) info(fi fs.FileInfo) ObjectInfo {
	return ObjectInfo{
		Name:    fi.Name(),
		Locator: l.prefix + "/" + fi.Name(),
		Size:    fi.Size(),
		ModTime: fi.ModTime().UTC(),
	}
}

// List 遍历存储目录下的普通文件，跳过上传中的临时文件.
func (l *Local) List(ctx context.Context) iter.Seq2[ObjectInfo, error] {
	return func(yield func(ObjectInfo, error) bool) {
		entries, err := os.ReadDir(l.root)
		if err != nil {
			yield(ObjectInfo{}, fmt.Errorf("list %s: %w", l.root, err))

			return
		}

		for _, e := range entries {
			if ctx.Err() != nil {
				yield(ObjectInfo{}, ctx.Err())

				return
			}

			if e.IsDir() || strings.HasPrefix(e.Name(), tempPrefix) {
				continue
			}

			fi, err := e.Info()
			if err != nil {
				// 遍历期间被删除
				if errors.Is(err, fs.ErrNotExist) {
					continue
				}

				if !yield(ObjectInfo{}, err) {
					return
				}

				continue
			}

			if !yield(l.info(fi), nil) {
				return
			}
		}
	}
}

// Ping 检查存储目录可用.
func (l *Local) Ping(_ context.Context) error {
	fi, err := os.Stat(l.root)
	if err != nil {
		return fmt.Errorf("storage root unavailable: %w", err)
	}

	if !fi.IsDir() {
		return fmt.Errorf("storage root %s is not a directory", l.root)
	}

	return nil
}

// Close 无需释放资源.
func (l *Local) Close() error {
	return nil
}
