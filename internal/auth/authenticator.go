// Package auth resolves bearer credentials to user identities at
// connection time. Validation failures yield the anonymous identity, never
// an error, so connection negotiation cannot crash on a bad token.
package auth

import (
	"context"

	"projectlink/backend/internal/models"
	"projectlink/backend/pkg/jwt"
	"projectlink/backend/pkg/logger"
)

// Identity is a resolved user. The zero value is anonymous.
type Identity struct {
	UserID        uint
	Email         string
	Authenticated bool
}

// Anonymous is the identity of an unauthenticated connection
var Anonymous = Identity{}

// UserDirectory is the slice of the durable store gateway used to confirm
// the token subject still exists.
type UserDirectory interface {
	ResolveUser(ctx context.Context, userID uint) (*models.User, error)
}

type Authenticator struct {
	directory UserDirectory
	log       *logger.Logger
}

func NewAuthenticator(directory UserDirectory, log *logger.Logger) *Authenticator {
	return &Authenticator{directory: directory, log: log}
}

// Resolve validates the credential's signature and expiry and looks the
// subject up in the user directory. Malformed, expired and unknown-subject
// credentials all resolve to Anonymous.
func (a *Authenticator) Resolve(ctx context.Context, credential string) Identity {
	if credential == "" {
		a.log.Warn("no credential provided")
		return Anonymous
	}

	claims, err := jwt.ValidateToken(credential)
	if err != nil {
		a.log.Warn("credential validation failed", "error", err.Error())
		return Anonymous
	}

	user, err := a.directory.ResolveUser(ctx, claims.UserID)
	if err != nil {
		a.log.Warn("credential subject not found", "user_id", claims.UserID)
		return Anonymous
	}

	return Identity{
		UserID:        user.ID,
		Email:         user.Email,
		Authenticated: true,
	}
}
