package hashing

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Known keccak-256 vectors (not NIST SHA3).
const (
	emptyDigest = "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"
	helloDigest = "0x1c8aff950685c2ed4bc3174f3472287b56d9517b9c948127319a09a7a36deac8"
)

func TestHashVectors(t *testing.T) {
	assert.Equal(t, emptyDigest, Hash(nil))
	assert.Equal(t, helloDigest, Hash([]byte("hello")))
}

func TestIncrementalMatchesOneShot(t *testing.T) {
	data := bytes.Repeat([]byte("announcement-batch-"), 1000)

	h := New()
	for i := 0; i < len(data); i += 37 {
		end := min(i+37, len(data))
		h.Update(data[i:end])
	}

	assert.Equal(t, Hash(data), h.Digest())
	assert.Equal(t, int64(len(data)), h.Size())
}

func TestHashReader(t *testing.T) {
	got, err := HashReader(bytes.NewReader([]byte("hello")))
	require.NoError(t, err)
	assert.Equal(t, helloDigest, got)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("0xABCD", "abcd"))
	assert.False(t, Equal("0xabce", "0xabcd"))
}
