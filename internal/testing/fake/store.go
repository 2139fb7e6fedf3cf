package fake

import "go.dedis.ch/optreg/core/store"

// InMemorySnapshot is a fake implementation of a store snapshot.
//
// - implements store.Snapshot
type InMemorySnapshot struct {
	values    map[string][]byte
	ErrRead   error
	ErrWrite  error
	ErrDelete error
}

// NewSnapshot creates a new empty snapshot.
func NewSnapshot() *InMemorySnapshot {
	return &InMemorySnapshot{
		values: make(map[string][]byte),
	}
}

// Get implements store.Snapshot.
func (snap *InMemorySnapshot) Get(key []byte) ([]byte, error) {
	return snap.values[string(key)], snap.ErrRead
}

// Set implements store.Snapshot.
func (snap *InMemorySnapshot) Set(key, value []byte) error {
	snap.values[string(key)] = value

	return snap.ErrWrite
}

// Delete implements store.Snapshot.
func (snap *InMemorySnapshot) Delete(key []byte) error {
	delete(snap.values, string(key))

	return snap.ErrDelete
}

// Len returns the number of keys set in the snapshot.
func (snap *InMemorySnapshot) Len() int {
	return len(snap.values)
}

// Trie is a fake implementation of a store trie. It stages on a copy of its
// snapshot.
//
// - implements store.Trie
type Trie struct {
	*InMemorySnapshot
	err error
}

// NewTrie returns an empty fake trie.
func NewTrie() Trie {
	return Trie{InMemorySnapshot: NewSnapshot()}
}

// NewBadTrie returns a fake trie that fails to stage.
func NewBadTrie() Trie {
	return Trie{InMemorySnapshot: NewSnapshot(), err: fakeErr}
}

// Stage implements store.Trie.
func (t Trie) Stage(fn func(store.Snapshot) error) (store.Trie, error) {
	if t.err != nil {
		return nil, t.err
	}

	snap := NewSnapshot()
	for k, v := range t.values {
		snap.values[k] = v
	}

	err := fn(snap)
	if err != nil {
		return nil, err
	}

	return Trie{InMemorySnapshot: snap}, nil
}
