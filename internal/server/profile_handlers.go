package server

import (
	"bazaar/internal/middleware"
	"bazaar/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/profiles/me
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	identity := middleware.IdentityFromCtx(c)
	profile, err := s.profileService.GetByUserID(c.Context(), identity.UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}

// UpdateMyProfile handles PUT /api/profiles/me
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	identity := middleware.IdentityFromCtx(c)

	var body struct {
		PhoneNumber string `json:"phone_number"`
	}
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}

	profile, err := s.profileService.UpdatePhoneNumber(c.Context(), identity, body.PhoneNumber)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}

// GetProfile handles GET /api/profiles/:userId. Contact details are only
// shown to authenticated callers.
func (s *Server) GetProfile(c *fiber.Ctx) error {
	userID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}
	profile, err := s.profileService.GetByUserID(c.Context(), userID)
	if err != nil {
		return respondError(c, err)
	}
	if middleware.IdentityFromCtx(c) == nil {
		profile.PhoneNumber = ""
	}
	return c.JSON(profile)
}
