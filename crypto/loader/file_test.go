package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/optreg/internal/testing/fake"
)

func TestFileLoader_LoadOrCreate(t *testing.T) {
	dir, err := os.MkdirTemp(os.TempDir(), "optreg-loader")
	require.NoError(t, err)

	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "private.key")

	generator := &fakeGenerator{}

	loader := NewFileLoader(path).(fileLoader)

	// Generate..
	data, err := loader.LoadOrCreate(generator)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, data)
	require.Equal(t, 1, generator.calls)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "010203", string(content))

	// Read from the file..
	data, err = loader.LoadOrCreate(generator)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, data)
	require.Equal(t, 1, generator.calls)

	require.NoError(t, os.Remove(path))
	_, err = loader.LoadOrCreate(&fakeGenerator{err: fake.GetError()})
	require.EqualError(t, err, fake.Err("generator failed"))

	loader.writeFn = func(string, []byte, os.FileMode) error {
		return fake.GetError()
	}
	_, err = loader.LoadOrCreate(generator)
	require.EqualError(t, err, fake.Err("while writing"))

	loader.statFn = func(path string) (os.FileInfo, error) {
		return nil, nil
	}
	loader.readFn = func(string) ([]byte, error) {
		return nil, fake.GetError()
	}
	_, err = loader.LoadOrCreate(generator)
	require.EqualError(t, err, fake.Err("failed to load file: while reading file"))
}

func TestFileLoader_Load(t *testing.T) {
	loader := NewFileLoader("").(fileLoader)

	loader.readFn = func(string) ([]byte, error) {
		return []byte("abcd\n"), nil
	}

	data, err := loader.Load()
	require.NoError(t, err)
	require.Equal(t, []byte{0xab, 0xcd}, data)

	loader.readFn = func(string) ([]byte, error) {
		return []byte("xyz"), nil
	}

	_, err = loader.Load()
	require.Regexp(t, "^malformed key: ", err)
}

// -----------------------------------------------------------------------------
// Utility functions

type fakeGenerator struct {
	calls int
	err   error
}

func (g *fakeGenerator) Generate() ([]byte, error) {
	g.calls++

	return []byte{1, 2, 3}, g.err
}
