package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DefaultDataFile 未指定路径时使用的数据文件
const DefaultDataFile = "box.dat"

// File 把整个存储保存为一个JSON对象文件，每次读写都重新加载
type File struct {
	mu   sync.Mutex
	path string
}

var _ Store = (*File)(nil)

func NewFile(p string) (*File, error) {
	if p == "" {
		p = DefaultDataFile
	}

	abs, err := filepath.Abs(p)
	if err != nil {
		return nil, err
	}

	return &File{path: abs}, nil
}

// ErrCorrupt 数据文件无法解析，写入会覆盖已有数据，因此拒绝写入
var ErrCorrupt = errors.New("store: data file corrupt")

// 文件不存在或为空时当作空存储
func (f *File) load() (map[string]string, error) {
	data := map[string]string{}

	content, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return data, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}

	if len(content) == 0 {
		return data, nil
	}

	if err := json.Unmarshal(content, &data); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, f.path, err)
	}
	return data, nil
}

// Read 数据文件损坏时按key不存在处理
func (f *File) Read(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if errors.Is(err, ErrCorrupt) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}

	v, ok := data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (f *File) Write(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		return err
	}
	data[key] = value

	content, err := json.Marshal(data)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	return writeFileAtomic(f.path, content)
}

// writeFileAtomic 先写临时文件再改名，中途失败不会留下半个文件
func writeFileAtomic(p string, content []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(p), filepath.Base(p)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), p)
}

func (f *File) Close() error { return nil }
