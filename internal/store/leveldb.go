package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/syndtr/goleveldb/leveldb"
)

type LevelDB struct {
	db *leveldb.DB
}

var _ Store = (*LevelDB)(nil)

func NewLevelDB(p string) (*LevelDB, error) {
	if p == "" {
		p = "box_leveldb"
	}

	db, err := leveldb.OpenFile(levelDBDir(p), nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

// levelDBDir leveldb需要目录，只把文件名里的扩展名换成 _db 这种形式
func levelDBDir(p string) string {
	ext := filepath.Ext(p)
	if ext == "" {
		return p
	}
	return strings.TrimSuffix(p, ext) + "_" + ext[1:]
}

func (l *LevelDB) Read(_ context.Context, key string) (string, error) {
	v, err := l.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func (l *LevelDB) Write(_ context.Context, key, value string) error {
	return l.db.Put([]byte(key), []byte(value), nil)
}

func (l *LevelDB) Close() error {
	return l.db.Close()
}
