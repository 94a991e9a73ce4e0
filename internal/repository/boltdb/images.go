// Package boltdb keeps downloaded product images in a local bbolt file so
// the diary keeps showing thumbnails when the nutrition API is slow or down.
package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/sakif/food-diary/internal/apperror"
	"github.com/sakif/food-diary/internal/model"
	"github.com/sakif/food-diary/internal/repository"
)

var (
	bucketImages = []byte("images")
	// bucketOrder maps an insertion sequence number to an image URL, so the
	// oldest entry is the first key.
	bucketOrder = []byte("order")
)

// DefaultMaxEntries caps the cache when New is given a non-positive limit.
const DefaultMaxEntries = 2000

var _ repository.ImageCache = (*ImageStore)(nil)

// ImageStore is a bbolt-backed repository.ImageCache keyed by source URL.
// Once it holds maxEntries images, storing a new one evicts the oldest.
type ImageStore struct {
	db         *bbolt.DB
	maxEntries int
}

// New opens (or creates) the bbolt file at path.
func New(path string, maxEntries int) (*ImageStore, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("boltdb: opening %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		images, err := tx.CreateBucketIfNotExists(bucketImages)
		if err != nil {
			return err
		}
		if tx.Bucket(bucketOrder) != nil {
			return nil
		}
		// Files written before the order bucket existed: index what is there.
		order, err := tx.CreateBucket(bucketOrder)
		if err != nil {
			return err
		}
		return images.ForEach(func(k, _ []byte) error {
			return appendOrder(order, k)
		})
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltdb: creating buckets: %w", err)
	}

	return &ImageStore{db: db, maxEntries: maxEntries}, nil
}

func (s *ImageStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *ImageStore) GetImage(ctx context.Context, url string) (*model.CachedImage, error) {
	var img *model.CachedImage

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketImages).Get([]byte(url))
		if data == nil {
			return apperror.NotFound("image", url)
		}
		img = &model.CachedImage{}
		return json.Unmarshal(data, img)
	})
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, apperror.Storage("boltdb: reading image", err)
	}
	return img, nil
}

func (s *ImageStore) PutImage(ctx context.Context, img *model.CachedImage) error {
	data, err := json.Marshal(img)
	if err != nil {
		return apperror.Storage("boltdb: encoding image", err)
	}

	key := []byte(img.URL)
	err = s.db.Update(func(tx *bbolt.Tx) error {
		images, order := tx.Bucket(bucketImages), tx.Bucket(bucketOrder)
		if images.Get(key) == nil {
			if err := s.evict(images, order); err != nil {
				return err
			}
			if err := appendOrder(order, key); err != nil {
				return err
			}
		}
		return images.Put(key, data)
	})
	if err != nil {
		return apperror.Storage("boltdb: writing image", err)
	}
	return nil
}

// evict deletes the oldest images until there is room for one more.
func (s *ImageStore) evict(images, order *bbolt.Bucket) error {
	n := keyCount(images)
	c := order.Cursor()
	for seq, url := c.First(); seq != nil && n >= s.maxEntries; seq, url = c.First() {
		if images.Get(url) != nil {
			if err := images.Delete(url); err != nil {
				return err
			}
			n--
		}
		if err := c.Delete(); err != nil {
			return err
		}
	}
	return nil
}

// keyCount walks the bucket with a cursor. Bucket.Stats only sees committed
// pages, so it is wrong inside a write transaction that already changed b.
func keyCount(b *bbolt.Bucket) int {
	n := 0
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	return n
}

func appendOrder(order *bbolt.Bucket, url []byte) error {
	seq, err := order.NextSequence()
	if err != nil {
		return err
	}
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], seq)
	return order.Put(k[:], url)
}

// ClearImages drops every cached image and reports how many there were.
func (s *ImageStore) ClearImages(ctx context.Context) (int, error) {
	var n int
	err := s.db.Update(func(tx *bbolt.Tx) error {
		n = keyCount(tx.Bucket(bucketImages))
		for _, name := range [][]byte{bucketImages, bucketOrder} {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, apperror.Storage("boltdb: clearing images", err)
	}
	return n, nil
}
