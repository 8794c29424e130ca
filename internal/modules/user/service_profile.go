package user

import (
	"context"
	"strings"

	"github.com/heartguard/heartguard-api/internal/validation"
)

// GetProfile returns the user identified by userID.
func (s *service) GetProfile(ctx context.Context, userID string) (*User, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err := s.repo.FindByID(sctx, userID)
	if err != nil {
		return nil, s.storeErr("find user by id", err)
	}
	return user, nil
}

// UpdateUserDetails changes the non-security profile fields. Email, phone,
// password and role cannot be changed here.
func (s *service) UpdateUserDetails(ctx context.Context, userID string, in UpdateUserDetailsInput) (*User, error) {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, validation.Field("name", "cannot be empty")
		}
		in.Name = &name
	}
	if in.Name == nil && in.ProfilePicture == nil {
		return s.GetProfile(ctx, userID)
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err := s.repo.UpdateDetails(sctx, userID, in)
	if err != nil {
		return nil, s.storeErr("update user details", err)
	}
	s.logger.Info("user details updated", "user_id", userID)
	return user, nil
}
