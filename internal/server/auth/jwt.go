// Package auth implements the owner-auth collaborator: HS256 owner
// tokens minted at secret creation and verified before owner-initiated
// transitions (force burn, expiry extension, audit view). Viewers are
// never authenticated here; their identity arrives from outside in the
// request context.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/voidnote/voidnote/internal/common"
)

// Claims carries the registered claims and the owner id.
type Claims struct {
	jwt.RegisteredClaims
	OwnerID string
}

// GenerateToken mints a signed owner token valid for the given duration.
func GenerateToken(ownerID string, secretKey []byte, validity time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
		},
		OwnerID: ownerID,
	})

	return token.SignedString(secretKey)
}

// OwnerIDFromToken verifies the token signature and expiry and returns
// the embedded owner id. Any verification failure maps to
// common.ErrInvalidToken.
func OwnerIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			return secretKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return "", errors.Join(common.ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", common.ErrInvalidToken
	}

	return claims.OwnerID, nil
}
