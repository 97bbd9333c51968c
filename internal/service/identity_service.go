package service

import (
	"context"
	"strings"

	"carecoins/internal/identity"
	"carecoins/internal/models"
	"carecoins/internal/repository"
)

// IdentityService maps verified identities onto local users
type IdentityService struct {
	userRepo *repository.UserRepository
}

// NewIdentityService creates a new identity service
func NewIdentityService(userRepo *repository.UserRepository) *IdentityService {
	return &IdentityService{userRepo: userRepo}
}

// ResolveUser creates or refreshes the user for id. Concurrent calls for the
// same subject converge on one row.
func (s *IdentityService) ResolveUser(ctx context.Context, id identity.Identity) (*models.User, error) {
	subject := strings.TrimSpace(id.Subject)
	if subject == "" {
		return nil, reject(ErrInvalidInput, "Identity has no subject.")
	}

	user, err := s.userRepo.UpsertBySubject(ctx, subject, strings.TrimSpace(id.Email), strings.TrimSpace(id.Name))
	if err != nil {
		return nil, storeError(err)
	}
	return user, nil
}
