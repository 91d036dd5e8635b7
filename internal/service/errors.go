package service

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrEmailTaken         = errors.New("email already registered")
	ErrAccountNotFound    = errors.New("account not found")
	ErrCredentialNotFound = errors.New("credential not found")
	ErrSaltReused         = errors.New("salt must change with the master password")

	ErrUnauthorizedPartner = errors.New("unauthorized partner")
	ErrTokenNotFound       = errors.New("login token not found")
	ErrTokenExpired        = errors.New("login token expired")
	ErrTokenAlreadyBound   = errors.New("login token already bound to another account")
)
