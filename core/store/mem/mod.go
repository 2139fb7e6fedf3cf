// Package mem implements an in-memory trie.
//
// Each stage creates a child trie that only stores its own updates and falls
// back to its parent for the other keys. The chain is collapsed into a single
// layer after a bounded number of stages so that reads stay cheap.
package mem

import (
	"go.dedis.ch/optreg/core/store"
)

// maxDepth is the number of layers allowed before a trie is collapsed.
const maxDepth = 32

type item struct {
	value   []byte
	deleted bool
}

// Trie is an in-memory implementation of a store trie.
//
// - implements store.Trie
// - implements store.Snapshot
type Trie struct {
	parent *Trie
	depth  int
	store  map[string]item
}

// NewTrie returns a new empty trie.
func NewTrie() *Trie {
	return &Trie{
		store: make(map[string]item),
	}
}

// Get implements store.Readable. It returns the value of the key by looking up
// the layers from the most recent one, or nil if it is not set. The value is
// a copy that the caller can modify.
func (t *Trie) Get(key []byte) ([]byte, error) {
	for layer := t; layer != nil; layer = layer.parent {
		it, found := layer.store[string(key)]
		if found {
			if it.deleted {
				return nil, nil
			}

			value := make([]byte, len(it.value))
			copy(value, it.value)

			return value, nil
		}
	}

	return nil, nil
}

// Set implements store.Writable. It sets the value of the key in the current
// layer.
func (t *Trie) Set(key, value []byte) error {
	// The value is copied so that the caller can reuse its buffer.
	buffer := make([]byte, len(value))
	copy(buffer, value)

	t.store[string(key)] = item{value: buffer}

	return nil
}

// Delete implements store.Writable. It marks the key as deleted in the current
// layer so that the parent value is hidden.
func (t *Trie) Delete(key []byte) error {
	t.store[string(key)] = item{deleted: true}

	return nil
}

// Len returns the number of keys set in the trie.
func (t *Trie) Len() int {
	return len(t.flatten())
}

// Stage implements store.Trie. It creates a child layer and returns it when
// the callback succeeds. The current trie is never modified.
func (t *Trie) Stage(fn func(store.Snapshot) error) (store.Trie, error) {
	child := &Trie{
		parent: t,
		depth:  t.depth + 1,
		store:  make(map[string]item),
	}

	err := fn(child)
	if err != nil {
		return nil, err
	}

	if child.depth > maxDepth {
		return child.collapse(), nil
	}

	return child, nil
}

// collapse returns a single-layer trie with the same content.
func (t *Trie) collapse() *Trie {
	trie := NewTrie()
	trie.store = t.flatten()

	return trie
}

func (t *Trie) flatten() map[string]item {
	layers := []*Trie{}
	for layer := t; layer != nil; layer = layer.parent {
		layers = append(layers, layer)
	}

	res := make(map[string]item)

	// Apply the layers from the oldest one so that the most recent updates
	// take precedence.
	for i := len(layers) - 1; i >= 0; i-- {
		for key, it := range layers[i].store {
			if it.deleted {
				delete(res, key)
			} else {
				res[key] = it
			}
		}
	}

	return res
}
