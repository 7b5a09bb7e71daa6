package firebase

import (
	"context"

	"firebase.google.com/go/v4/auth"

	"pasarlive/pkg/errors"
)

// FirebaseAuthClient verifies Firebase ID tokens for the HTTP API and the
// socket handshake.
type FirebaseAuthClient struct {
	client *auth.Client
}

func NewFirebaseAuthClient(client *auth.Client) *FirebaseAuthClient {
	return &FirebaseAuthClient{
		client: client,
	}
}

func (f *FirebaseAuthClient) VerifyToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", errors.Unauthorized("Token is required", nil)
	}

	result, err := f.client.VerifyIDToken(ctx, token)
	if err != nil {
		return "", errors.Unauthorized("Invalid or expired token", err)
	}

	return result.UID, nil
}
