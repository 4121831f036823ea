package exporter

import (
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"golang.org/x/crypto/blake2b"
)

func newContentHash() hash.Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		// only fails for keys longer than 64 bytes
		panic(err)
	}
	return h
}

func formatETag(sum []byte) string {
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

// FileETag hashes the file at path with BLAKE2b and returns a quoted
// strong ETag
func FileETag(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := newContentHash()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return formatETag(h.Sum(nil)), nil
}
