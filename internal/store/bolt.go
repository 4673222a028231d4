package store

import (
	"context"

	"github.com/boltdb/bolt"
)

var boltBucket = []byte("boxjs")

type Bolt struct {
	db *bolt.DB
}

var _ Store = (*Bolt)(nil)

func NewBolt(p string) (*Bolt, error) {
	if p == "" {
		p = "box.db"
	}

	db, err := bolt.Open(p, 0600, nil)
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Bolt{db: db}, nil
}

func (b *Bolt) Read(_ context.Context, key string) (string, error) {
	var value string

	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(boltBucket).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		// v只在事务内有效
		value = string(v)
		return nil
	})

	return value, err
}

func (b *Bolt) Write(_ context.Context, key, value string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put([]byte(key), []byte(value))
	})
}

func (b *Bolt) Close() error {
	return b.db.Close()
}
