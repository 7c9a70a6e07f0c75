// Package cryptox implements the client-side encryption engine: AES-256-GCM
// for content, argon2id for passphrase-based key derivation, and a
// SHA-256 verifier for passphrase checks.
//
// Everything persisted server-side is ciphertext, a nonce, a salt or a
// digest. Keys and plaintext exist only inside the sender's or
// recipient's own process; the exported key travels in the URL fragment,
// which never reaches a server.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"

	"github.com/voidnote/voidnote/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32

	// NonceSize is the GCM nonce length in bytes. One fresh random nonce
	// per Encrypt call; never reused for a given key.
	NonceSize = 12

	// SaltSize is the argon2id salt length in bytes.
	SaltSize = 16
)

// argon2id parameters: time=1, memory=64MiB, threads=4. Memory-hard,
// well above an iterated-hash KDF floor.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// GenerateKey returns a fresh random 256-bit symmetric key.
func GenerateKey() []byte {
	return common.GenerateRandByteArray(KeySize)
}

// GenerateSalt returns a fresh random key-derivation salt.
func GenerateSalt() []byte {
	return common.GenerateRandByteArray(SaltSize)
}

// DeriveKey derives a 256-bit key from a passphrase and salt using
// argon2id. Identical (passphrase, salt) inputs yield bit-identical keys.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, argonTime, argonMemory, argonThreads, KeySize)
}

// Encrypt seals plaintext with AES-256-GCM under key, generating a fresh
// random nonce. The ciphertext includes the GCM authentication tag.
func Encrypt(plaintext, key []byte) (ciphertext, nonce []byte, err error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, nil, err
	}

	nonce = common.GenerateRandByteArray(NonceSize)
	ciphertext = aead.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, nil
}

// Decrypt opens ciphertext produced by Encrypt. Every failure mode —
// wrong key, wrong passphrase-derived key, corrupted or truncated
// ciphertext, bad nonce — is reported as the single opaque
// common.ErrAuthentication. No partial plaintext is ever returned.
func Decrypt(ciphertext, nonce, key []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, common.ErrAuthentication
	}
	if len(nonce) != aead.NonceSize() {
		return nil, common.ErrAuthentication
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, common.ErrAuthentication
	}
	return plaintext, nil
}

// HashPassphrase returns a one-way digest of the passphrase, used only
// to verify that a recipient supplied the right passphrase before
// attempting derivation. It is independent of the derivation salt and
// never part of key material.
func HashPassphrase(passphrase []byte) []byte {
	h := sha256.Sum256(passphrase)
	return h[:]
}

// VerifyPassphrase reports whether passphrase matches the stored digest,
// in constant time.
func VerifyPassphrase(passphrase, digest []byte) bool {
	h := HashPassphrase(passphrase)
	return subtle.ConstantTimeCompare(h, digest) == 1
}

// ExportKey serializes a raw key for embedding in a URL fragment.
func ExportKey(key []byte) string {
	return base64.RawURLEncoding.EncodeToString(key)
}

// ImportKey reverses ExportKey. A malformed or wrong-length value is an
// authentication failure, indistinguishable from a wrong key.
func ImportKey(s string) ([]byte, error) {
	key, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil || len(key) != KeySize {
		return nil, common.ErrAuthentication
	}
	return key, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
