// Package cache remembers which files were already fully formatted so they can be skipped on later runs.
package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
	bolt "go.etcd.io/bbolt"
)

// Entry records the state of a file at the time it was last known to be fully formatted.
type Entry struct {
	// Digest is a sha256 of the file contents.
	Digest []byte `msgpack:"digest"`
	// Signature identifies the formatter and resolved config which were applied.
	Signature []byte `msgpack:"signature"`
}

type Cache struct {
	db  *bolt.DB
	log *log.Logger
}

// Digest returns the digest used to identify file contents in the cache.
func Digest(contents string) []byte {
	sum := sha256.Sum256([]byte(contents))

	return sum[:]
}

// Path returns a unique local cache file path for the given root string, using its SHA-256 hash.
func Path(root string) (string, error) {
	digest := sha256.Sum256([]byte(root))

	name := hex.EncodeToString(digest[:])

	path, err := xdg.CacheFile(fmt.Sprintf("precisefmt/eval-cache/%v.db", name))
	if err != nil {
		return "", fmt.Errorf("could not resolve local path for the cache: %w", err)
	}

	return path, nil
}

// Open initialises and opens a Bolt database for the specified root path.
func Open(root string) (*Cache, error) {
	// determine the db location
	path, err := Path(root)
	if err != nil {
		return nil, err
	}

	// open db
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache db at %s: %w", path, err)
	}

	// ensure bucket exist
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := BucketPaths(tx)

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	l := log.WithPrefix("cache")
	l.Debugf("opened cache at %s", path)

	return &Cache{db: db, log: l}, nil
}

// Remove deletes the cache db for root, if there is one.
func Remove(root string) error {
	// determine the db location
	path, err := Path(root)
	if err != nil {
		return err
	}

	// If a precisefmt process is currently running with a db open at the same location, it will continue to function
	// as normal, however, when it exits the disk space its inode was referencing will be reclaimed.
	if err = os.Remove(path); !(err == nil || errors.Is(err, os.ErrNotExist)) {
		return fmt.Errorf("failed to remove cache db at %s: %w", path, err)
	}

	return nil
}

// IsFormatted returns true if the cache has an entry for path matching both digest and signature.
func (c *Cache) IsFormatted(path string, digest []byte, signature []byte) (bool, error) {
	var match bool

	err := c.db.View(func(tx *bolt.Tx) error {
		bucket, err := BucketPaths(tx)
		if err != nil {
			return err
		}

		entry, err := bucket.Get(path)
		if errors.Is(err, ErrKeyNotFound) {
			return nil
		} else if err != nil {
			return err
		}

		match = bytes.Equal(entry.Digest, digest) && bytes.Equal(entry.Signature, signature)

		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to read cache entry for %s: %w", path, err)
	}

	return match, nil
}

// MarkFormatted records that path is fully formatted.
// Concurrent calls are coalesced into a single transaction.
func (c *Cache) MarkFormatted(path string, digest []byte, signature []byte) error {
	err := c.db.Batch(func(tx *bolt.Tx) error {
		bucket, err := BucketPaths(tx)
		if err != nil {
			return err
		}

		return bucket.Put(path, &Entry{Digest: digest, Signature: signature})
	})
	if err != nil {
		return fmt.Errorf("failed to update cache entry for %s: %w", path, err)
	}

	return nil
}

// Forget removes any entry for path.
func (c *Cache) Forget(path string) error {
	err := c.db.Batch(func(tx *bolt.Tx) error {
		bucket, err := BucketPaths(tx)
		if err != nil {
			return err
		}

		return bucket.Delete(path)
	})
	if err != nil {
		return fmt.Errorf("failed to remove cache entry for %s: %w", path, err)
	}

	return nil
}

// Clear removes every entry from the cache.
func (c *Cache) Clear() error {
	return c.db.Update(func(tx *bolt.Tx) error { //nolint:wrapcheck
		bucket, err := BucketPaths(tx)
		if err != nil {
			return err
		}

		return bucket.DeleteAll()
	})
}

// Size returns the number of entries in the cache.
func (c *Cache) Size() (int, error) {
	var size int

	err := c.db.View(func(tx *bolt.Tx) error {
		bucket, err := BucketPaths(tx)
		if err != nil {
			return err
		}

		size = bucket.Size()

		return nil
	})

	return size, err //nolint:wrapcheck
}

func (c *Cache) Close() error {
	return c.db.Close() //nolint:wrapcheck
}
