package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims is the access token payload accepted on mutating routes.
type JWTClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}
