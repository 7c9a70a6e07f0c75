// Package blob handles the encrypted file payloads that live outside
// the record store. Blobs are opaque ciphertext: the server hands out
// upload and download URLs and deletes blobs when their secret is
// destroyed, but never sees keys or plaintext.
package blob

import "context"

// Store is the external blob collaborator.
type Store interface {
	// PresignPut returns a storage key and a short-lived URL the sender
	// uploads the encrypted file to.
	PresignPut(ctx context.Context) (key, url string, err error)

	// PresignGet returns a short-lived download URL for the given key.
	PresignGet(ctx context.Context, key string) (url string, err error)

	// Delete removes the blob. Called when its secret is destroyed.
	Delete(ctx context.Context, key string) error
}
