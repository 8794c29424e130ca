package user

import (
	"context"

	"github.com/heartguard/heartguard-api/internal/httpx"
	"github.com/heartguard/heartguard-api/internal/session"
	"github.com/heartguard/heartguard-api/internal/validation"
)

// --- DTOs & Mappers ---

type GetProfileRequest struct{}

// ProfileResponse is the DTO for a user's own profile.
type ProfileResponse struct {
	Body UserBody
}

func toProfileResponse(user *User) *ProfileResponse {
	return &ProfileResponse{Body: toUserBody(user)}
}

// UpdateProfileRequest defines the fields that can be updated on a user's
// profile. Omitted fields are left unchanged.
type UpdateProfileRequest struct {
	Body struct {
		Name           *string `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
		ProfilePicture *string `json:"profilePicture,omitempty" validate:"omitempty,url,max=2048"`
	}
}

// --- Handlers ---

// GetProfileHandler retrieves the profile of the signed-in user.
func (h *Handler) GetProfileHandler(ctx context.Context, _ *GetProfileRequest) (*ProfileResponse, error) {
	claims, ok := session.ClaimsFromContext(ctx)
	if !ok {
		return nil, httpx.ToProblem(ctx, ErrUnauthorized)
	}

	user, err := h.service.GetProfile(ctx, claims.UserID())
	if err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}
	return toProfileResponse(user), nil
}

// UpdateProfileHandler updates name and profile picture of the signed-in user.
func (h *Handler) UpdateProfileHandler(ctx context.Context, input *UpdateProfileRequest) (*ProfileResponse, error) {
	if verr := validation.ValidateStruct(&input.Body); verr != nil {
		return nil, httpx.ToProblem(ctx, verr)
	}

	claims, ok := session.ClaimsFromContext(ctx)
	if !ok {
		return nil, httpx.ToProblem(ctx, ErrUnauthorized)
	}

	user, err := h.service.UpdateUserDetails(ctx, claims.UserID(), UpdateUserDetailsInput{
		Name:           input.Body.Name,
		ProfilePicture: input.Body.ProfilePicture,
	})
	if err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}
	return toProfileResponse(user), nil
}
