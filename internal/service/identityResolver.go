package service

import (
	"errors"
	"strings"

	"github.com/ds124wfegd/openmic-lineup/internal/entity"
	"github.com/ds124wfegd/openmic-lineup/pkg/auth"

	"github.com/google/uuid"
)

// TokenVerifier validates a signed credential and yields its subject.
type TokenVerifier interface {
	Verify(token string) (int64, error)
}

// IdentityResolver derives the canonical actor of a request or connection.
// A signed credential wins over a non-user cookie; with neither the caller
// is anonymous.
type IdentityResolver struct {
	verifier TokenVerifier
}

func NewIdentityResolver(verifier TokenVerifier) *IdentityResolver {
	return &IdentityResolver{verifier: verifier}
}

func (r *IdentityResolver) Resolve(credential, nonUserToken, remoteAddr, connID string) (entity.Identity, error) {
	credential = strings.TrimSpace(strings.TrimPrefix(credential, "Bearer "))
	if credential != "" {
		userID, err := r.verifier.Verify(credential)
		switch {
		case errors.Is(err, auth.ErrTokenExpired):
			return entity.Identity{}, entity.ErrTokenExpired
		case err != nil:
			return entity.Identity{}, entity.ErrTokenInvalid
		}
		return entity.UserIdentity(userID), nil
	}

	if token := strings.TrimSpace(nonUserToken); token != "" {
		if !ValidNonUserToken(token) {
			return entity.Identity{}, entity.ErrTokenInvalid
		}
		return entity.NonUserIdentity(token, remoteAddr), nil
	}

	return entity.AnonymousIdentity(connID), nil
}

// NewNonUserToken mints the value of the non-user cookie.
func NewNonUserToken() string {
	return uuid.NewString()
}

func ValidNonUserToken(token string) bool {
	_, err := uuid.Parse(token)
	return err == nil
}
