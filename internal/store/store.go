// Package store 提供持久化键值存储的各个后端
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound key不存在
var ErrNotFound = errors.New("store: key not found")

// Store 扁平的字符串键值存储，后写覆盖先写
type Store interface {
	Read(ctx context.Context, key string) (string, error)
	Write(ctx context.Context, key, value string) error
	Close() error
}

// Config 存储后端配置
type Config struct {
	Backend string `yaml:"backend"`
	// file/leveldb/bolt 的数据文件路径
	Path string `yaml:"path"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix"`
}

// Constructor 根据配置创建后端
type Constructor func(ctx context.Context, cfg Config) (Store, error)

var (
	mu       sync.RWMutex
	registry = map[string]Constructor{}
)

func init() {
	Register("memory", func(context.Context, Config) (Store, error) {
		return NewMemory(), nil
	})
	Register("file", func(_ context.Context, cfg Config) (Store, error) {
		return NewFile(cfg.Path)
	})
	Register("redis", func(ctx context.Context, cfg Config) (Store, error) {
		return NewRedis(ctx, cfg)
	})
	Register("leveldb", func(_ context.Context, cfg Config) (Store, error) {
		return NewLevelDB(cfg.Path)
	})
	Register("bolt", func(_ context.Context, cfg Config) (Store, error) {
		return NewBolt(cfg.Path)
	})
}

// Register 注册一个命名后端，同名覆盖
func Register(name string, ctor Constructor) {
	if name == "" || ctor == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	registry[strings.ToLower(name)] = ctor
}

// Open 创建配置指定的后端，未配置时退回内存存储
func Open(ctx context.Context, cfg Config) (Store, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = "memory"
	}

	mu.RLock()
	ctor, ok := registry[backend]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("store backend %q not registered: available backends=%v", backend, Backends())
	}

	s, err := ctor(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store backend %q: %w", backend, err)
	}
	return s, nil
}

// Backends 已注册的后端名称
func Backends() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
