package crypto

import (
	"crypto/sha256"
)

// SHA256 returns the SHA256 hash of the data.
func SHA256(data []byte) []byte {
	hasher := sha256.New()
	hasher.Write(data)
	hash := hasher.Sum(nil)
	return hash
}

// SHA256Concat returns the SHA256 hash of the concatenation of all the
// provided byte slices. It is used to compute message identities without
// building an intermediate buffer.
func SHA256Concat(parts ...[]byte) []byte {
	hasher := sha256.New()
	for _, p := range parts {
		hasher.Write(p)
	}
	return hasher.Sum(nil)
}
