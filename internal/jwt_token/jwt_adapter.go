package jwttoken

import (
	authmw "tradeledger/pkg/platform/middleware/auth"
)

// JWTServiceAdapter lets the auth middleware validate tokens without
// depending on this package's claim type.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*authmw.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &authmw.JWTClaims{UserID: claims.UserID, JTI: claims.ID}, nil
}
