package assetpipe

import (
	"fmt"
	"hash"
	"io"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Default size for the buffer used when copying and hashing files
const defaultBufferSize = 32 * 1024 // 32KB

// assetIDLength is the length of a rendered asset ID.
const assetIDLength = 16

// bufferPool is a pool of byte slices used for file I/O
var bufferPool = sync.Pool{
	New: func() interface{} {
		buffer := make([]byte, defaultBufferSize)
		return &buffer
	},
}

// HashFunc defines a function that creates a new hash.Hash instance.
type HashFunc func() hash.Hash

// defaultHashFunc returns the default hash function (xxHash64).
func defaultHashFunc() hash.Hash {
	return xxhash.New()
}

// hashContent streams content into h using a pooled buffer.
func hashContent(content io.Reader, h hash.Hash) error {
	bufPtr := bufferPool.Get().(*[]byte)
	buffer := *bufPtr
	defer bufferPool.Put(bufPtr)

	if _, err := io.CopyBuffer(h, content, buffer); err != nil {
		return fmt.Errorf("failed to copy content: %w", err)
	}
	return nil
}

// hashKey hashes parts in order, each followed by a NUL separator, and
// returns a hex digest cut or padded to assetIDLength.
func hashKey(h hash.Hash, parts ...string) string {
	h.Reset()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	sum := fmt.Sprintf("%x", h.Sum(nil))
	for len(sum) < assetIDLength {
		sum = "0" + sum
	}
	return sum[:assetIDLength]
}

// validAssetID reports whether id is assetIDLength ASCII letters or digits.
func validAssetID(id string) bool {
	if len(id) != assetIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return true
}
