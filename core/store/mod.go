// Package store defines the primitives of a simple key/value storage.
//
// A trie is the committed state of the store. Writes are never applied to it
// directly: they go through a staging callback and only become visible in the
// trie returned by a successful stage, which gives the atomicity of a
// transaction execution.
package store

// Readable is the interface for a readable store.
type Readable interface {
	// Get returns the value of the key, or nil if the key is not set.
	Get(key []byte) ([]byte, error)
}

// Writable is the interface for a writable store.
type Writable interface {
	Set(key []byte, value []byte) error

	Delete(key []byte) error
}

// Snapshot is a state of the store that can be read and write independently. A
// write is applied only to the snapshot reference.
type Snapshot interface {
	Readable
	Writable
}

// Trie is the committed state of a store.
type Trie interface {
	Readable

	// Stage creates a writable snapshot of the current trie and passes it to
	// the callback. If the callback returns an error, none of the writes are
	// kept and the error is returned. Otherwise the trie containing the
	// writes is returned.
	Stage(fn func(Snapshot) error) (Trie, error)
}
