package model

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"
)

// HashAlgorithm is a closed enumeration of supported hash algorithms.
// Each algorithm has a stable numeric index, a canonical text
// identifier, and a fixed digest size.
type HashAlgorithm int

// SHA2_256 is the SHA-256 algorithm, index 0.
const SHA2_256 HashAlgorithm = 0

// HashAlgorithms returns all supported algorithms in index order.
func HashAlgorithms() []HashAlgorithm {
	return []HashAlgorithm{SHA2_256}
}

// ParseHashAlgorithm resolves a canonical text identifier.
func ParseHashAlgorithm(text string) (HashAlgorithm, error) {
	switch text {
	case "SHA2_256":
		return SHA2_256, nil
	default:
		return 0, fmt.Errorf("unrecognized hash algorithm %q", text)
	}
}

func (a HashAlgorithm) String() string {
	switch a {
	case SHA2_256:
		return "SHA2_256"
	default:
		return fmt.Sprintf("HashAlgorithm(%d)", int(a))
	}
}

// Index returns the stable numeric index of the algorithm.
func (a HashAlgorithm) Index() int {
	return int(a)
}

// DigestSize returns the digest size in bytes.
func (a HashAlgorithm) DigestSize() int {
	switch a {
	case SHA2_256:
		return sha256.Size
	default:
		return 0
	}
}

// NewDigest returns a fresh digest for the algorithm.
func (a HashAlgorithm) NewDigest() hash.Hash {
	switch a {
	case SHA2_256:
		return sha256.New()
	default:
		panic(fmt.Sprintf("unrecognized hash algorithm index %d", int(a)))
	}
}

// Hash is an algorithm paired with a digest of that algorithm's size.
// Hash values are comparable and usable as map keys.
type Hash struct {
	algorithm HashAlgorithm
	value     string
}

// NewHash constructs a hash, checking the digest length against the
// algorithm.
func NewHash(algorithm HashAlgorithm, value []byte) (Hash, error) {
	if len(value) != algorithm.DigestSize() {
		return Hash{}, fmt.Errorf(
			"hash value for %s must be %d bytes long (received %d)",
			algorithm, algorithm.DigestSize(), len(value))
	}
	return Hash{algorithm: algorithm, value: string(value)}, nil
}

// ParseHash parses the textual form "ALGORITHM:HEX".
func ParseHash(text string) (Hash, error) {
	algorithmText, hexText, ok := strings.Cut(text, ":")
	if !ok {
		return Hash{}, fmt.Errorf("hash %q must be of the form ALGORITHM:HEX", text)
	}

	algorithm, err := ParseHashAlgorithm(algorithmText)
	if err != nil {
		return Hash{}, err
	}
	value, err := hex.DecodeString(hexText)
	if err != nil {
		return Hash{}, fmt.Errorf("hash %q: %w", text, err)
	}
	return NewHash(algorithm, value)
}

// MustHash is ParseHash, panicking on error.
func MustHash(text string) Hash {
	h, err := ParseHash(text)
	if err != nil {
		panic(err)
	}
	return h
}

// HashOf computes the hash of everything readable from r.
func HashOf(algorithm HashAlgorithm, r io.Reader) (Hash, error) {
	digest := algorithm.NewDigest()
	if _, err := io.Copy(digest, r); err != nil {
		return Hash{}, err
	}
	return Hash{
		algorithm: algorithm,
		value:     string(digest.Sum(nil)),
	}, nil
}

// Algorithm returns the hash algorithm.
func (h Hash) Algorithm() HashAlgorithm {
	return h.algorithm
}

// Value returns a copy of the digest bytes.
func (h Hash) Value() []byte {
	return []byte(h.value)
}

// HexValue returns the digest as upper-case hexadecimal.
func (h Hash) HexValue() string {
	return strings.ToUpper(hex.EncodeToString([]byte(h.value)))
}

func (h Hash) String() string {
	return h.algorithm.String() + ":" + h.HexValue()
}

// Compare orders hashes by algorithm index, then digest bytes.
func (h Hash) Compare(other Hash) int {
	if r := h.algorithm.Index() - other.algorithm.Index(); r != 0 {
		return r
	}
	return bytes.Compare([]byte(h.value), []byte(other.value))
}
