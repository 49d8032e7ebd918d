package devserver

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// devSigningKey signs dev tokens. The dev server never verifies signatures,
// the key only keeps minted tokens structurally valid JWTs.
var devSigningKey = []byte("nestchat-dev")

// MintToken issues a development bearer token for the given user.
func MintToken(userID, name string) (string, error) {
	claims := jwt.MapClaims{
		"sub":  userID,
		"name": name,
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(24 * time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(devSigningKey)
}
