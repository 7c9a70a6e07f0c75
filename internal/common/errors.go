// Package common defines shared constants and sentinel errors used across
// the voidnote components. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound     = errors.New("not found")
	ErrShortIDTaken = errors.New("short id already taken")

	// ErrStoreUnavailable reports a store operation that timed out or
	// failed before confirming its result. The outcome is unknown: a
	// caller must never assume a view was granted without positive
	// confirmation.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrAuthentication is the single opaque decryption failure. Wrong
	// key, wrong passphrase, truncated or corrupted ciphertext all map
	// here so a caller cannot tell the cases apart.
	ErrAuthentication = errors.New("authentication failed")

	// Lifecycle errors.
	ErrAlreadyBurned    = errors.New("secret already burned")
	ErrExpired          = errors.New("secret expired")
	ErrViewLimitReached = errors.New("view limit reached")

	// Access rule denials.
	ErrAuthRequired     = errors.New("authentication required")
	ErrDomainNotAllowed = errors.New("domain not allowed")

	// ErrCreationFailed reports short-id generation exhausting its
	// uniqueness-retry budget.
	ErrCreationFailed = errors.New("secret creation failed")

	// Owner-action errors.
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")

	// ErrSecretNotAvailable is the collapsed public-surface error for
	// not-found, expired, burned and view-limit conditions. The
	// specific guard that fired is recorded in the access log, not
	// reported to the viewer.
	ErrSecretNotAvailable = errors.New("secret not available")
)
