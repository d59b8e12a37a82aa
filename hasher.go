package configcat

import (
	"crypto/sha256"
	"encoding/hex"
)

// ComparisonHasher computes the digests used by the sensitive (hashed)
// comparators. The comparison values in the config JSON hold digests
// produced the same way.
type ComparisonHasher interface {
	// Hash returns the hex-encoded digest of value salted with the
	// config-level salt and the context salt. The context salt is the
	// key of the evaluated setting, or the segment name for conditions
	// that belong to a segment.
	Hash(value []byte, configSalt, contextSalt string) string
}

// DefaultComparisonHasher returns the hasher used when Config.Hasher is nil.
// It computes SHA-256 over value, configSalt and contextSalt concatenated.
func DefaultComparisonHasher() ComparisonHasher {
	return sha256Hasher{}
}

type sha256Hasher struct{}

func (sha256Hasher) Hash(value []byte, configSalt, contextSalt string) string {
	h := sha256.New()
	h.Write(value)
	h.Write([]byte(configSalt))
	h.Write([]byte(contextSalt))
	return hex.EncodeToString(h.Sum(nil))
}
