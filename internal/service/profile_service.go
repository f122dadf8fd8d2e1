package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bazaar/internal/auth"
	"bazaar/internal/models"
	"bazaar/internal/repository"

	"gorm.io/gorm"
)

const MaxPhoneNumberLength = 20

type ProfileService struct {
	profiles repository.ProfileRepository
}

func NewProfileService(profiles repository.ProfileRepository) *ProfileService {
	return &ProfileService{profiles: profiles}
}

func (s *ProfileService) GetByUserID(ctx context.Context, userID uint) (*models.Profile, error) {
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Profile", userID)
		}
		return nil, models.NewInternalError(err)
	}
	return profile, nil
}

// UpdatePhoneNumber changes the phone number on the caller's own profile.
// Profiles are provisioned when the identity is created, so a missing row
// is reported rather than silently created.
func (s *ProfileService) UpdatePhoneNumber(ctx context.Context, identity *auth.Identity, phoneNumber string) (*models.Profile, error) {
	if identity == nil {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	phoneNumber = strings.TrimSpace(phoneNumber)
	if len(phoneNumber) > MaxPhoneNumberLength {
		return nil, models.NewValidationError(fmt.Sprintf("Phone number must be at most %d characters", MaxPhoneNumberLength))
	}
	profile, err := s.GetByUserID(ctx, identity.UserID)
	if err != nil {
		return nil, err
	}
	profile.PhoneNumber = phoneNumber
	if err := s.profiles.Update(ctx, profile); err != nil {
		return nil, models.NewInternalError(err)
	}
	return profile, nil
}
