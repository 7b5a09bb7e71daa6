package service

import "context"

// TokenVerifier resolves a bearer token to a verified user id. Session
// issuance happens upstream; this is verification only.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (string, error)
}
