package models

import "github.com/golang-jwt/jwt/v5"

// IdentityClaims is the payload of access tokens minted by the external
// identity provider. Only the subject is trusted for authorization; roles are
// always looked up from the store.
type IdentityClaims struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	jwt.RegisteredClaims
}
