package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validSecret() *Secret {
	return &Secret{
		ID:           "id-1",
		ShortID:      "AbCdEfGhJkMn",
		Ciphertext:   []byte("ct"),
		ContentNonce: []byte("nonce"),
		MaxViews:     1,
		ExpiresAt:    time.Now().Add(time.Hour),
	}
}

func TestSecretValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Secret)
		wantErr bool
	}{
		{"valid content secret", func(s *Secret) {}, false},
		{"valid file secret", func(s *Secret) {
			s.Ciphertext, s.ContentNonce = nil, nil
			s.FileRef, s.FileNonce = "blob/key", []byte("n")
		}, false},
		{"content and file together", func(s *Secret) {
			s.FileRef, s.FileNonce = "blob/key", []byte("n")
		}, false},
		{"neither content nor file", func(s *Secret) {
			s.Ciphertext, s.ContentNonce = nil, nil
		}, true},
		{"content without nonce", func(s *Secret) {
			s.ContentNonce = nil
		}, true},
		{"file without nonce", func(s *Secret) {
			s.Ciphertext, s.ContentNonce = nil, nil
			s.FileRef = "blob/key"
		}, true},
		{"zero max views", func(s *Secret) {
			s.MaxViews = 0
		}, true},
		{"unlimited views", func(s *Secret) {
			s.MaxViews = UnlimitedViews
		}, false},
		{"hash without salt", func(s *Secret) {
			s.PassphraseHash = []byte("h")
		}, true},
		{"salt without hash", func(s *Secret) {
			s.KeyDerivationSalt = []byte("s")
		}, true},
		{"hash with salt", func(s *Secret) {
			s.PassphraseHash = []byte("h")
			s.KeyDerivationSalt = []byte("s")
		}, false},
		{"missing expiry", func(s *Secret) {
			s.ExpiresAt = time.Time{}
		}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := validSecret()
			tc.mutate(s)
			err := s.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestViewsExhausted(t *testing.T) {
	s := validSecret()
	s.MaxViews = 2

	s.ViewCount = 1
	assert.False(t, s.ViewsExhausted())

	s.ViewCount = 2
	assert.True(t, s.ViewsExhausted())

	s.MaxViews = UnlimitedViews
	s.ViewCount = 1_000_000
	assert.False(t, s.ViewsExhausted())
}

func TestExpiredAt(t *testing.T) {
	s := validSecret()
	now := time.Now()
	s.ExpiresAt = now

	assert.False(t, s.ExpiredAt(now))
	assert.True(t, s.ExpiredAt(now.Add(time.Second)))
}

func TestSnapshot_Decoupled(t *testing.T) {
	s := validSecret()
	s.AccessRules.AllowedDomains = []string{"example.com"}

	snap := s.Snapshot()
	s.Ciphertext[0] = 'X'
	s.AccessRules.AllowedDomains[0] = "evil.com"
	s.ViewCount = 99

	assert.Equal(t, byte('c'), snap.Ciphertext[0])
	assert.Equal(t, "example.com", snap.AccessRules.AllowedDomains[0])
	assert.Equal(t, 0, snap.ViewCount)
}
