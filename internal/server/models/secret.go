// Package models defines the server-side data model: the secret record,
// its access rules, the request context evaluated against them, and the
// append-only access log entry.
package models

import (
	"errors"
	"time"
)

// UnlimitedViews is the MaxViews sentinel for secrets with no view cap.
const UnlimitedViews = -1

// Secret is the unit of sharing. Every payload field is opaque to the
// server: ciphertext, nonces, a salt and a passphrase digest. Plaintext
// and keys never appear here.
type Secret struct {
	// ID is the internal record identifier (uuid), never exposed in
	// share links.
	ID string

	// ShortID is the public link identifier.
	ShortID string

	// Ciphertext and ContentNonce hold the encrypted text payload.
	// Absent when the secret carries only a file.
	Ciphertext   []byte
	ContentNonce []byte

	// Encrypted file metadata. FileRef points into external blob
	// storage; the blob itself is opaque ciphertext.
	FileRef   string
	FileNonce []byte
	FileName  string
	FileType  string
	FileSize  int64

	// PassphraseHash verifies a supplied passphrase; it cannot decrypt.
	// KeyDerivationSalt is present iff PassphraseHash is present.
	PassphraseHash    []byte
	KeyDerivationSalt []byte

	// MaxViews is ≥ 1, or UnlimitedViews. ViewCount only grows.
	MaxViews  int
	ViewCount int

	ExpiresAt time.Time

	// IsBurned is terminal: once true, no reveal ever succeeds again.
	IsBurned bool

	AccessRules AccessRules

	// OwnerID identifies the sender for owner-initiated transitions.
	// Empty for anonymous senders.
	OwnerID string

	CreatedAt time.Time
}

// HasContent reports whether the secret carries an encrypted text payload.
func (s *Secret) HasContent() bool {
	return len(s.Ciphertext) > 0
}

// HasFile reports whether the secret carries an encrypted file payload.
func (s *Secret) HasFile() bool {
	return s.FileRef != ""
}

// HasPassphrase reports whether decryption requires a passphrase-derived
// key instead of a URL-embedded one.
func (s *Secret) HasPassphrase() bool {
	return len(s.PassphraseHash) > 0
}

// ExpiredAt reports whether the secret is expired at the given instant.
// Expiry is derived, not stored.
func (s *Secret) ExpiredAt(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// ViewsExhausted reports whether the view budget is spent.
func (s *Secret) ViewsExhausted() bool {
	return s.MaxViews != UnlimitedViews && s.ViewCount >= s.MaxViews
}

// Snapshot returns a copy of the record decoupled from any store-held
// instance, so callers can decrypt against the pre-mutation state.
func (s *Secret) Snapshot() *Secret {
	c := *s
	c.Ciphertext = append([]byte(nil), s.Ciphertext...)
	c.ContentNonce = append([]byte(nil), s.ContentNonce...)
	c.FileNonce = append([]byte(nil), s.FileNonce...)
	c.PassphraseHash = append([]byte(nil), s.PassphraseHash...)
	c.KeyDerivationSalt = append([]byte(nil), s.KeyDerivationSalt...)
	c.AccessRules.AllowedDomains = append([]string(nil), s.AccessRules.AllowedDomains...)
	c.AccessRules.CustomLabels = append([]string(nil), s.AccessRules.CustomLabels...)
	return &c
}

// Validate enforces the record invariants at the creation boundary.
func (s *Secret) Validate() error {
	if !s.HasContent() && !s.HasFile() {
		return errors.New("secret carries neither content nor file")
	}
	if s.HasContent() && len(s.ContentNonce) == 0 {
		return errors.New("content present without nonce")
	}
	if s.HasFile() && len(s.FileNonce) == 0 {
		return errors.New("file present without nonce")
	}
	if s.MaxViews != UnlimitedViews && s.MaxViews < 1 {
		return errors.New("max views must be >= 1 or unlimited")
	}
	if s.HasPassphrase() != (len(s.KeyDerivationSalt) > 0) {
		return errors.New("passphrase hash and derivation salt must be paired")
	}
	if s.ExpiresAt.IsZero() {
		return errors.New("missing expiry")
	}
	return nil
}
