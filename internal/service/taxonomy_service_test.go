package service

import (
	"context"
	"testing"

	"bazaar/internal/cache"
	"bazaar/internal/models"
	"bazaar/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTaxonomyService() *TaxonomyService {
	return NewTaxonomyService(testutil.NewCategoryRepoStub(), testutil.NewTagRepoStub())
}

func TestTaxonomy_RequiresStaff(t *testing.T) {
	svc := newTaxonomyService()
	ctx := context.Background()

	_, err := svc.CreateCategory(ctx, nil, "Electronics")
	assertErrorCode(t, err, models.CodeUnauthorized)

	_, err = svc.CreateCategory(ctx, author, "Electronics")
	assertErrorCode(t, err, models.CodeForbidden)

	// Moderator group membership grants listing moderation, not taxonomy
	// management.
	_, err = svc.CreateTag(ctx, moderator, "sale")
	assertErrorCode(t, err, models.CodeForbidden)

	_, err = svc.CreateCategory(ctx, staff, "Electronics")
	require.NoError(t, err)
}

func TestTaxonomy_ExplicitDuplicateIsConflict(t *testing.T) {
	svc := newTaxonomyService()
	ctx := context.Background()

	created, err := svc.CreateCategory(ctx, staff, "Books")
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	_, err = svc.CreateCategory(ctx, staff, "Books")
	assertErrorCode(t, err, models.CodeConflict)

	_, err = svc.CreateTag(ctx, staff, "rare")
	require.NoError(t, err)
	_, err = svc.CreateTag(ctx, staff, "rare")
	assertErrorCode(t, err, models.CodeConflict)
}

func TestTaxonomy_RenameCollisionIsConflict(t *testing.T) {
	svc := newTaxonomyService()
	ctx := context.Background()

	books, err := svc.CreateCategory(ctx, staff, "Books")
	require.NoError(t, err)
	_, err = svc.CreateCategory(ctx, staff, "Music")
	require.NoError(t, err)

	_, err = svc.RenameCategory(ctx, staff, books.ID, "Music")
	assertErrorCode(t, err, models.CodeConflict)

	renamed, err := svc.RenameCategory(ctx, staff, books.ID, "Comics")
	require.NoError(t, err)
	assert.Equal(t, "Comics", renamed.Name)
}

func TestTaxonomy_ValidatesNames(t *testing.T) {
	svc := newTaxonomyService()
	ctx := context.Background()

	_, err := svc.CreateCategory(ctx, staff, "   ")
	assertErrorCode(t, err, models.CodeValidation)

	long := make([]byte, MaxTagNameLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = svc.CreateTag(ctx, staff, string(long))
	assertErrorCode(t, err, models.CodeValidation)
}

func TestTaxonomy_DeleteMissingIsNotFound(t *testing.T) {
	svc := newTaxonomyService()
	ctx := context.Background()

	err := svc.DeleteCategory(ctx, staff, 42)
	assertErrorCode(t, err, models.CodeNotFound)

	err = svc.DeleteTag(ctx, staff, 42)
	assertErrorCode(t, err, models.CodeNotFound)

	tag, err := svc.CreateTag(ctx, staff, "gone")
	require.NoError(t, err)
	require.NoError(t, svc.DeleteTag(ctx, staff, tag.ID))
	_, err = svc.GetTag(ctx, tag.ID)
	assertErrorCode(t, err, models.CodeNotFound)
}

func TestTaxonomy_WritesInvalidateListCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer cache.SetClient(nil)

	svc := newTaxonomyService()
	ctx := context.Background()

	category, err := svc.CreateCategory(ctx, staff, "Vehicles")
	require.NoError(t, err)

	keyBefore := cache.ListKey(ctx, "all")

	_, err = svc.RenameCategory(ctx, staff, category.ID, "Autos")
	require.NoError(t, err)
	keyAfterRename := cache.ListKey(ctx, "all")
	assert.NotEqual(t, keyBefore, keyAfterRename,
		"category rename must version away cached list pages")

	err = svc.DeleteCategory(ctx, staff, category.ID)
	require.NoError(t, err)
	assert.NotEqual(t, keyAfterRename, cache.ListKey(ctx, "all"),
		"category delete must version away cached list pages")

	tag, err := svc.CreateTag(ctx, staff, "vintage")
	require.NoError(t, err)
	keyBeforeTag := cache.ListKey(ctx, "all")

	_, err = svc.RenameTag(ctx, staff, tag.ID, "retro")
	require.NoError(t, err)
	assert.NotEqual(t, keyBeforeTag, cache.ListKey(ctx, "all"),
		"tag rename must version away cached list pages")
}
