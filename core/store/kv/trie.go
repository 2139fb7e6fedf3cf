package kv

import (
	"go.dedis.ch/optreg/core/store"
	"golang.org/x/xerrors"
)

// Trie is a store trie persisted in a bucket of a database. A stage is
// executed inside a single database update so that a failure of the callback
// rolls back every write of the stage.
//
// - implements store.Trie
type Trie struct {
	db     DB
	bucket []byte
}

// NewTrie returns a trie that stores the keys in the bucket of the database.
func NewTrie(db DB, bucket []byte) Trie {
	return Trie{
		db:     db,
		bucket: bucket,
	}
}

// Get implements store.Readable. It returns the value of the key, or nil if it
// is not set.
func (t Trie) Get(key []byte) ([]byte, error) {
	var value []byte

	err := t.db.View(func(tx ReadableTx) error {
		bucket := tx.GetBucket(t.bucket)
		if bucket == nil {
			return nil
		}

		value = copyBytes(bucket.Get(key))

		return nil
	})
	if err != nil {
		return nil, xerrors.Errorf("failed to read db: %v", err)
	}

	return value, nil
}

// Stage implements store.Trie. The trie itself is returned when the callback
// succeeds as the writes are committed to the database.
func (t Trie) Stage(fn func(store.Snapshot) error) (store.Trie, error) {
	err := t.db.Update(func(tx WritableTx) error {
		bucket, err := tx.GetBucketOrCreate(t.bucket)
		if err != nil {
			return xerrors.Errorf("failed to get bucket: %v", err)
		}

		return fn(bucketSnapshot{bucket: bucket})
	})
	if err != nil {
		return nil, err
	}

	return t, nil
}

// bucketSnapshot is a store snapshot over a bucket in a writable transaction.
//
// - implements store.Snapshot
type bucketSnapshot struct {
	bucket Bucket
}

// Get implements store.Readable.
func (s bucketSnapshot) Get(key []byte) ([]byte, error) {
	return copyBytes(s.bucket.Get(key)), nil
}

// Set implements store.Writable.
func (s bucketSnapshot) Set(key, value []byte) error {
	err := s.bucket.Set(key, copyBytes(value))
	if err != nil {
		return xerrors.Errorf("failed to set key %#x: %v", key, err)
	}

	return nil
}

// Delete implements store.Writable.
func (s bucketSnapshot) Delete(key []byte) error {
	err := s.bucket.Delete(key)
	if err != nil {
		return xerrors.Errorf("failed to delete key %#x: %v", key, err)
	}

	return nil
}

// copyBytes copies the buffer as values returned by the database are only
// valid while the transaction is open.
func copyBytes(buffer []byte) []byte {
	if buffer == nil {
		return nil
	}

	res := make([]byte, len(buffer))
	copy(res, buffer)

	return res
}
