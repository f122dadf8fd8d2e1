package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"bazaar/internal/middleware"
	"bazaar/internal/models"
	"bazaar/internal/repository"
	"bazaar/internal/service"

	"github.com/gofiber/fiber/v2"
)

// graphRequest is the envelope for the query/mutation endpoint: one named
// operation plus its arguments.
type graphRequest struct {
	Operation string          `json:"operation"`
	Arguments json.RawMessage `json:"arguments"`
}

// graphImage carries an image upload through the JSON envelope: the file
// bytes travel base64-encoded in content.
type graphImage struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
}

func (g *graphImage) toUpload() (*service.ImageUpload, error) {
	if g == nil {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(g.Content)
	if err != nil {
		return nil, models.NewValidationError("Image content must be base64 encoded")
	}
	return &service.ImageUpload{
		Filename:    g.Filename,
		ContentType: g.ContentType,
		Content:     data,
	}, nil
}

type graphError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

type graphResponse struct {
	Data   any          `json:"data,omitempty"`
	Errors []graphError `json:"errors,omitempty"`
}

// GraphHandler handles POST /api/graph. Errors travel in the response
// body's errors list with HTTP 200, matching graph-style conventions;
// only a malformed envelope gets a 400.
func (s *Server) GraphHandler(c *fiber.Ctx) error {
	var req graphRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}
	if strings.TrimSpace(req.Operation) == "" {
		return respondError(c, models.NewValidationError("Operation is required"))
	}

	data, err := s.dispatchGraph(c, req)
	if err != nil {
		return c.JSON(graphResponse{Errors: []graphError{toGraphError(err)}})
	}
	return c.JSON(graphResponse{Data: data})
}

func toGraphError(err error) graphError {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return graphError{Message: appErr.Message, Code: appErr.Code}
	}
	return graphError{Message: err.Error(), Code: models.CodeInternal}
}

func (s *Server) dispatchGraph(c *fiber.Ctx, req graphRequest) (any, error) {
	ctx := c.Context()
	identity := middleware.IdentityFromCtx(c)

	decode := func(dest any) error {
		if len(req.Arguments) == 0 {
			return nil
		}
		if err := json.Unmarshal(req.Arguments, dest); err != nil {
			return models.NewValidationError("Invalid operation arguments")
		}
		return nil
	}

	switch req.Operation {
	case "listings":
		var args struct {
			Status   string `json:"status"`
			Category string `json:"category"`
			Tag      string `json:"tag"`
			Author   uint   `json:"author"`
			Search   string `json:"search"`
			Ordering string `json:"ordering"`
			Page     int    `json:"page"`
			PageSize int    `json:"page_size"`
		}
		if err := decode(&args); err != nil {
			return nil, err
		}
		return s.listingService.List(ctx, repository.ListingFilter{
			Status:   strings.ToUpper(strings.TrimSpace(args.Status)),
			Category: args.Category,
			Tag:      args.Tag,
			AuthorID: args.Author,
			Search:   args.Search,
			Ordering: args.Ordering,
			Page:     args.Page,
			PageSize: args.PageSize,
		})

	case "listing":
		var args struct {
			ID uint `json:"id"`
		}
		if err := decode(&args); err != nil {
			return nil, err
		}
		return s.listingService.Get(ctx, args.ID)

	case "categories":
		return s.taxonomy.ListCategories(ctx)

	case "tags":
		return s.taxonomy.ListTags(ctx)

	case "stats":
		if identity == nil {
			return nil, models.NewUnauthorizedError("Authentication required")
		}
		return s.statsService.Overview(ctx)

	case "createListing":
		var args struct {
			Title        string      `json:"title"`
			Description  string      `json:"description"`
			Price        float64     `json:"price"`
			CategoryName string      `json:"category_name"`
			TagNames     []string    `json:"tags"`
			ExpiresAt    *string     `json:"expires_at"`
			Image        *graphImage `json:"image"`
		}
		if err := decode(&args); err != nil {
			return nil, err
		}
		expires, err := parseExpiresAt(args.ExpiresAt)
		if err != nil {
			return nil, err
		}
		image, err := args.Image.toUpload()
		if err != nil {
			return nil, err
		}
		return s.listingService.Create(ctx, identity, service.CreateListingInput{
			Title:        args.Title,
			Description:  args.Description,
			Price:        args.Price,
			CategoryName: args.CategoryName,
			TagNames:     args.TagNames,
			ExpiresAt:    expires,
			Image:        image,
		})

	case "updateListing":
		var args struct {
			ID           uint        `json:"id"`
			Title        *string     `json:"title"`
			Description  *string     `json:"description"`
			Price        *float64    `json:"price"`
			Status       *string     `json:"status"`
			CategoryName *string     `json:"category_name"`
			TagNames     *[]string   `json:"tags"`
			ExpiresAt    *string     `json:"expires_at"`
			Image        *graphImage `json:"image"`
		}
		if err := decode(&args); err != nil {
			return nil, err
		}
		expires, err := parseExpiresAt(args.ExpiresAt)
		if err != nil {
			return nil, err
		}
		image, err := args.Image.toUpload()
		if err != nil {
			return nil, err
		}
		return s.listingService.Update(ctx, identity, args.ID, service.UpdateListingInput{
			Title:        args.Title,
			Description:  args.Description,
			Price:        args.Price,
			Status:       args.Status,
			CategoryName: args.CategoryName,
			TagNames:     args.TagNames,
			ExpiresAt:    expires,
			Image:        image,
		})

	case "createCategory":
		var args struct {
			Name string `json:"name"`
		}
		if err := decode(&args); err != nil {
			return nil, err
		}
		return s.taxonomy.CreateCategory(ctx, identity, args.Name)

	case "updateCategory":
		var args struct {
			ID   uint   `json:"id"`
			Name string `json:"name"`
		}
		if err := decode(&args); err != nil {
			return nil, err
		}
		return s.taxonomy.RenameCategory(ctx, identity, args.ID, args.Name)

	case "deleteCategory":
		var args struct {
			ID uint `json:"id"`
		}
		if err := decode(&args); err != nil {
			return nil, err
		}
		if err := s.taxonomy.DeleteCategory(ctx, identity, args.ID); err != nil {
			return nil, err
		}
		return fiber.Map{"deleted": true, "id": args.ID}, nil

	case "createTag":
		var args struct {
			Name string `json:"name"`
		}
		if err := decode(&args); err != nil {
			return nil, err
		}
		return s.taxonomy.CreateTag(ctx, identity, args.Name)

	case "updateTag":
		var args struct {
			ID   uint   `json:"id"`
			Name string `json:"name"`
		}
		if err := decode(&args); err != nil {
			return nil, err
		}
		return s.taxonomy.RenameTag(ctx, identity, args.ID, args.Name)

	case "deleteTag":
		var args struct {
			ID uint `json:"id"`
		}
		if err := decode(&args); err != nil {
			return nil, err
		}
		if err := s.taxonomy.DeleteTag(ctx, identity, args.ID); err != nil {
			return nil, err
		}
		return fiber.Map{"deleted": true, "id": args.ID}, nil

	case "deleteListing":
		var args struct {
			ID uint `json:"id"`
		}
		if err := decode(&args); err != nil {
			return nil, err
		}
		if err := s.listingService.Delete(ctx, identity, args.ID); err != nil {
			return nil, err
		}
		return fiber.Map{"deleted": true, "id": args.ID}, nil

	case "toggleFavorite":
		var args struct {
			ID uint `json:"id"`
		}
		if err := decode(&args); err != nil {
			return nil, err
		}
		favorited, err := s.listingService.ToggleFavorite(ctx, identity, args.ID)
		if err != nil {
			return nil, err
		}
		return fiber.Map{"listing_id": args.ID, "favorited": favorited}, nil

	case "updateProfile":
		var args struct {
			PhoneNumber string `json:"phone_number"`
		}
		if err := decode(&args); err != nil {
			return nil, err
		}
		return s.profileService.UpdatePhoneNumber(ctx, identity, args.PhoneNumber)

	default:
		return nil, models.NewValidationError(fmt.Sprintf("Unknown operation %q", req.Operation))
	}
}
