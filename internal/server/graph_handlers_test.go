package server

import (
	"encoding/base64"
	"net/http"
	"testing"
	"time"

	"bazaar/internal/models"
	"bazaar/internal/testutil"

	"github.com/gofiber/fiber/v2"
)

type graphTestResponse struct {
	Data   map[string]any `json:"data"`
	Errors []struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"errors"`
}

func postGraph(t *testing.T, app *fiber.App, token string, body map[string]any) graphTestResponse {
	t.Helper()
	resp := doJSON(t, app, http.MethodPost, "/api/graph", token, body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("graph endpoint: expected 200, got %d", resp.StatusCode)
	}
	var out graphTestResponse
	decodeBody(t, resp, &out)
	return out
}

func TestGraph_CreateAndQueryListing(t *testing.T) {
	app, _, _, _ := newTestServer(t)
	token := mintToken(t, testAuthor)

	created := postGraph(t, app, token, map[string]any{
		"operation": "createListing",
		"arguments": map[string]any{
			"title":         "Record player",
			"description":   "Spins at 33 and 45",
			"price":         60,
			"category_name": "Music",
			"tags":          []string{"vinyl"},
		},
	})
	if len(created.Errors) != 0 {
		t.Fatalf("unexpected graph errors: %+v", created.Errors)
	}
	if created.Data["status"] != models.StatusPending {
		t.Errorf("expected pending status, got %v", created.Data["status"])
	}

	fetched := postGraph(t, app, "", map[string]any{
		"operation": "listing",
		"arguments": map[string]any{"id": 1},
	})
	if len(fetched.Errors) != 0 {
		t.Fatalf("unexpected graph errors: %+v", fetched.Errors)
	}
	if fetched.Data["title"] != "Record player" {
		t.Errorf("expected title round-trip, got %v", fetched.Data["title"])
	}
}

func TestGraph_ErrorsCarryCodes(t *testing.T) {
	app, _, _, _ := newTestServer(t)

	cases := []struct {
		name string
		req  map[string]any
		code string
	}{
		{
			"anonymous mutation",
			map[string]any{"operation": "createListing", "arguments": map[string]any{
				"title": "x", "category_name": "Misc"}},
			models.CodeUnauthorized,
		},
		{
			"missing listing",
			map[string]any{"operation": "listing", "arguments": map[string]any{"id": 99}},
			models.CodeNotFound,
		},
		{
			"unknown operation",
			map[string]any{"operation": "dropEverything"},
			models.CodeValidation,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := postGraph(t, app, "", tc.req)
			if len(out.Errors) != 1 {
				t.Fatalf("expected one graph error, got %+v", out.Errors)
			}
			if out.Errors[0].Code != tc.code {
				t.Errorf("expected code %s, got %s", tc.code, out.Errors[0].Code)
			}
		})
	}
}

func TestGraph_ForbiddenUpdate(t *testing.T) {
	app, _, _, _ := newTestServer(t)
	authorToken := mintToken(t, testAuthor)

	_ = postGraph(t, app, authorToken, map[string]any{
		"operation": "createListing",
		"arguments": map[string]any{"title": "Kettle", "category_name": "Kitchen"},
	})

	out := postGraph(t, app, mintToken(t, testStranger), map[string]any{
		"operation": "updateListing",
		"arguments": map[string]any{"id": 1, "title": "Mine now"},
	})
	if len(out.Errors) != 1 || out.Errors[0].Code != models.CodeForbidden {
		t.Fatalf("expected forbidden graph error, got %+v", out.Errors)
	}

	out = postGraph(t, app, mintToken(t, testModerator), map[string]any{
		"operation": "updateListing",
		"arguments": map[string]any{"id": 1, "status": "REJECTED"},
	})
	if len(out.Errors) != 0 {
		t.Fatalf("unexpected graph errors: %+v", out.Errors)
	}
	if out.Data["status"] != models.StatusRejected {
		t.Errorf("expected rejected status, got %v", out.Data["status"])
	}
}

func TestGraph_TaxonomyMutationsRequireStaff(t *testing.T) {
	app, _, _, _ := newTestServer(t)

	out := postGraph(t, app, mintToken(t, testAuthor), map[string]any{
		"operation": "createCategory",
		"arguments": map[string]any{"name": "Gardening"},
	})
	if len(out.Errors) != 1 || out.Errors[0].Code != models.CodeForbidden {
		t.Fatalf("expected forbidden for non-staff, got %+v", out.Errors)
	}

	staffToken := mintToken(t, testStaff)
	out = postGraph(t, app, staffToken, map[string]any{
		"operation": "createCategory",
		"arguments": map[string]any{"name": "Gardening"},
	})
	if len(out.Errors) != 0 {
		t.Fatalf("staff create failed: %+v", out.Errors)
	}
	if out.Data["name"] != "Gardening" {
		t.Errorf("expected created category name, got %v", out.Data["name"])
	}

	out = postGraph(t, app, staffToken, map[string]any{
		"operation": "updateCategory",
		"arguments": map[string]any{"id": 1, "name": "Garden"},
	})
	if len(out.Errors) != 0 || out.Data["name"] != "Garden" {
		t.Fatalf("rename failed: data=%v errors=%+v", out.Data, out.Errors)
	}

	out = postGraph(t, app, staffToken, map[string]any{
		"operation": "createTag",
		"arguments": map[string]any{"name": "organic"},
	})
	if len(out.Errors) != 0 {
		t.Fatalf("staff tag create failed: %+v", out.Errors)
	}

	out = postGraph(t, app, staffToken, map[string]any{
		"operation": "deleteTag",
		"arguments": map[string]any{"id": 1},
	})
	if len(out.Errors) != 0 || out.Data["deleted"] != true {
		t.Fatalf("tag delete failed: data=%v errors=%+v", out.Data, out.Errors)
	}

	out = postGraph(t, app, staffToken, map[string]any{
		"operation": "deleteCategory",
		"arguments": map[string]any{"id": 1},
	})
	if len(out.Errors) != 0 || out.Data["deleted"] != true {
		t.Fatalf("category delete failed: data=%v errors=%+v", out.Data, out.Errors)
	}
}

func TestGraph_CreateListingWithImageAndExpiry(t *testing.T) {
	app, _, _, _ := newTestServer(t)

	out := postGraph(t, app, mintToken(t, testAuthor), map[string]any{
		"operation": "createListing",
		"arguments": map[string]any{
			"title":         "Tent",
			"description":   "Sleeps two",
			"price":         80,
			"category_name": "Outdoors",
			"expires_at":    time.Now().Add(30 * 24 * time.Hour).Format(time.RFC3339),
			"image": map[string]any{
				"filename":     "tent.png",
				"content_type": "image/png",
				"content":      base64.StdEncoding.EncodeToString(testutil.TinyPNG(t, 64, 48)),
			},
		},
	})
	if len(out.Errors) != 0 {
		t.Fatalf("create with image failed: %+v", out.Errors)
	}
	imageKey, _ := out.Data["image_key"].(string)
	thumbKey, _ := out.Data["thumbnail_key"].(string)
	if imageKey == "" || thumbKey == "" {
		t.Errorf("expected stored artifacts, got image=%q thumbnail=%q", imageKey, thumbKey)
	}
	if out.Data["expires_at"] == nil {
		t.Errorf("expected expires_at to round-trip, got nil")
	}

	out = postGraph(t, app, mintToken(t, testAuthor), map[string]any{
		"operation": "createListing",
		"arguments": map[string]any{
			"title":         "Stove",
			"category_name": "Outdoors",
			"image":         map[string]any{"filename": "x.png", "content": "not base64!"},
		},
	})
	if len(out.Errors) != 1 || out.Errors[0].Code != models.CodeValidation {
		t.Fatalf("expected validation error for bad image encoding, got %+v", out.Errors)
	}
}
