// Package shortid generates the public identifiers embedded in share
// links. IDs are drawn uniformly from an unambiguous alphanumeric
// alphabet with a CSPRNG; global uniqueness is enforced by the store,
// with the creation flow retrying on a uniqueness violation.
package shortid

import (
	"crypto/rand"
	"fmt"
)

// Alphabet excludes characters that are easy to confuse when a link is
// read aloud or retyped: 0/O, 1/l/I.
const Alphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// DefaultLength is the public identifier length.
const DefaultLength = 12

// New returns a fresh DefaultLength-character short id.
func New() (string, error) {
	return NewWithLength(DefaultLength)
}

// NewWithLength returns a fresh short id of n characters. Bytes from the
// CSPRNG are rejection-sampled so every alphabet character is equally
// likely.
func NewWithLength(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("invalid short id length: %d", n)
	}

	// Largest multiple of len(Alphabet) below 256; bytes at or above it
	// are discarded to avoid modulo bias.
	limit := byte(256 / len(Alphabet) * len(Alphabet))

	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("shortid: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, Alphabet[int(b)%len(Alphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
