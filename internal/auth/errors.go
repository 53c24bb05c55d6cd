package auth

import "errors"

var (
	ErrUnauthorized        = errors.New("auth: unauthorized")
	ErrForbidden           = errors.New("auth: forbidden")
	ErrInvalidToken        = errors.New("auth: invalid token")
	ErrExpiredToken        = errors.New("auth: token expired")
	ErrRevokedToken        = errors.New("auth: token revoked")
	ErrInvalidRefreshToken = errors.New("auth: invalid refresh token")
	ErrNotFound            = errors.New("auth: not found")
	ErrInvalidInput        = errors.New("auth: invalid input")
	ErrConflict            = errors.New("auth: already exists")
)
