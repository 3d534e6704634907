package domain

import "errors"

var (
	ErrDocumentNotFound      = errors.New("document not found")
	ErrHashMismatch          = errors.New("document hash mismatch")
	ErrDuplicateSignature    = errors.New("duplicate signature")
	ErrOutOfOrderSigning     = errors.New("out of order signing")
	ErrRequestNotFound       = errors.New("signature request not found")
	ErrRequestExpired        = errors.New("signature request expired")
	ErrRequestClosed         = errors.New("signature request closed")
	ErrRequestExists         = errors.New("open signature request already exists")
	ErrSignatureNotFound     = errors.New("signature not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrSigningKeyUnavailable = errors.New("signing key unavailable")
	ErrInvalid               = errors.New("invalid request")
	ErrUnavailable           = errors.New("store unavailable")
)
