package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wardrobeapi/dbhelper"
	"wardrobeapi/models"
	"wardrobeapi/test"
)

func queryVector(seed float32) []float32 {
	values := make([]float32, models.EmbeddingDim)
	values[0] = seed
	return values
}

func TestInsertRequiresImageAndEnums(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	repo := &WardrobeRepository{DB: db}

	err := repo.Insert(&models.WardrobeItem{
		Category: models.CategoryShirt,
		Style:    models.StyleCasual,
		Season:   models.SeasonAny,
	})
	assert.ErrorIs(t, err, ErrConstraintViolation)

	err = repo.Insert(&models.WardrobeItem{
		ImageURL: test.NewRefString("wardrobe/1/shirt.jpg"),
		Category: models.CategoryShirt,
		Style:    models.StyleCasual,
	})
	assert.ErrorIs(t, err, ErrConstraintViolation)
}

func TestInsertDefaultsToProcessing(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	repo := &WardrobeRepository{DB: db}

	item := &models.WardrobeItem{
		ImageURL: test.NewRefString("wardrobe/1/shirt.jpg"),
		Category: models.CategoryShirt,
		Style:    models.StyleCasual,
		Season:   models.SeasonAny,
	}
	require.NoError(t, repo.Insert(item))
	assert.Equal(t, models.ItemProcessing, item.Status)
	assert.False(t, item.Searchable())
}

func TestUpdateEmbeddingFlipsToReady(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	repo := &WardrobeRepository{DB: db}

	item := &models.WardrobeItem{
		ImageURL: test.NewRefString("wardrobe/1/shirt.jpg"),
		Category: models.CategoryShirt,
		Style:    models.StyleCasual,
		Season:   models.SeasonAny,
	}
	require.NoError(t, repo.Insert(item))

	updated, err := repo.UpdateEmbedding(item.ID, queryVector(0.5), "a blue shirt")
	require.NoError(t, err)
	assert.Equal(t, models.ItemReady, updated.Status)
	assert.True(t, updated.Searchable())
	require.NotNil(t, updated.Description)
	assert.Equal(t, "a blue shirt", *updated.Description)
}

func TestUpdateEmbeddingRejectsWrongDimension(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	repo := &WardrobeRepository{DB: db}

	_, err := repo.UpdateEmbedding(1, make([]float32, 100), "short vector")
	assert.ErrorIs(t, err, ErrConstraintViolation)
}

func TestUpdateEmbeddingMissingItem(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	repo := &WardrobeRepository{DB: db}

	_, err := repo.UpdateEmbedding(99999, queryVector(0.1), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkFailedIsIdempotent(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	repo := &WardrobeRepository{DB: db}

	item := &models.WardrobeItem{
		ImageURL: test.NewRefString("wardrobe/1/shirt.jpg"),
		Category: models.CategoryShirt,
		Style:    models.StyleCasual,
		Season:   models.SeasonAny,
	}
	require.NoError(t, repo.Insert(item))

	require.NoError(t, repo.MarkFailed(item.ID, "describe failed"))
	require.NoError(t, repo.MarkFailed(item.ID, "describe failed"))
	// absent rows are a no-op, not an error
	require.NoError(t, repo.MarkFailed(99999, "describe failed"))

	failed, err := repo.Get(item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ItemFailed, failed.Status)
	require.NotNil(t, failed.ProcessErrorMessage)
	assert.Equal(t, "describe failed", *failed.ProcessErrorMessage)
}

func TestQueryBySimilarityOrdersByDistance(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	repo := &WardrobeRepository{DB: db}
	user := test.FakeUser(db)

	far := test.FakeReadyItem(db, user.ID, models.CategoryShoes, 0.9)
	near := test.FakeReadyItem(db, user.ID, models.CategoryShirt, 0.1)
	mid := test.FakeReadyItem(db, user.ID, models.CategoryPants, 0.5)

	ranked, err := repo.QueryBySimilarity(queryVector(0), &user.ID, 10)
	require.NoError(t, err)
	require.Len(t, ranked, 3)
	assert.Equal(t, near.ID, ranked[0].Item.ID)
	assert.Equal(t, mid.ID, ranked[1].Item.ID)
	assert.Equal(t, far.ID, ranked[2].Item.ID)
	assert.True(t, ranked[0].Distance <= ranked[1].Distance)
	assert.True(t, ranked[1].Distance <= ranked[2].Distance)
}

func TestQueryBySimilaritySelfMatchIsClosest(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	repo := &WardrobeRepository{DB: db}
	user := test.FakeUser(db)

	target := test.FakeReadyItem(db, user.ID, models.CategoryShirt, 0.4)
	test.FakeReadyItem(db, user.ID, models.CategoryPants, 0.7)

	// query with the stored vector itself: distance to the item is zero
	ranked, err := repo.QueryBySimilarity(queryVector(0.4), &user.ID, 10)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, target.ID, ranked[0].Item.ID)
	assert.InDelta(t, 0.0, ranked[0].Distance, 1e-6)
	assert.Greater(t, ranked[1].Distance, ranked[0].Distance)
}

func TestQueryBySimilarityTieBreaksByInsertionOrder(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	repo := &WardrobeRepository{DB: db}
	user := test.FakeUser(db)

	first := test.FakeReadyItem(db, user.ID, models.CategoryShirt, 0.3)
	second := test.FakeReadyItem(db, user.ID, models.CategoryPants, 0.3)

	ranked, err := repo.QueryBySimilarity(queryVector(0), &user.ID, 10)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, first.ID, ranked[0].Item.ID)
	assert.Equal(t, second.ID, ranked[1].Item.ID)
}

func TestQueryBySimilaritySkipsUnsearchableItems(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	repo := &WardrobeRepository{DB: db}
	user := test.FakeUser(db)

	ready := test.FakeReadyItem(db, user.ID, models.CategoryShirt, 0.2)
	processing := &models.WardrobeItem{
		OwnerID:  &user.ID,
		ImageURL: test.NewRefString("wardrobe/1/pending.jpg"),
		Category: models.CategoryPants,
		Style:    models.StyleCasual,
		Season:   models.SeasonAny,
	}
	require.NoError(t, repo.Insert(processing))

	ranked, err := repo.QueryBySimilarity(queryVector(0), &user.ID, 10)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, ready.ID, ranked[0].Item.ID)
}

func TestQueryBySimilarityScopedToOwner(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	repo := &WardrobeRepository{DB: db}
	owner := test.FakeUser(db)
	other := test.FakeUserV2(db, "Other", "other@example.com")

	mine := test.FakeReadyItem(db, owner.ID, models.CategoryShirt, 0.2)
	test.FakeReadyItem(db, other.ID, models.CategoryShirt, 0.1)

	ranked, err := repo.QueryBySimilarity(queryVector(0), &owner.ID, 10)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, mine.ID, ranked[0].Item.ID)
}

func TestQueryByKeywordMatchesDescriptionAndTags(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	repo := &WardrobeRepository{DB: db}
	user := test.FakeUser(db)

	shirt := test.FakeReadyItem(db, user.ID, models.CategoryShirt, 0.2)
	db.Model(shirt).Updates(map[string]interface{}{
		"description": "a crisp OXFORD shirt",
	})
	tagged := test.FakeReadyItem(db, user.ID, models.CategoryPants, 0.3)
	db.Exec("UPDATE wardrobe_items SET tags = ARRAY['oxford-style'] WHERE id = ?", tagged.ID)
	test.FakeReadyItem(db, user.ID, models.CategoryShoes, 0.4)

	items, err := repo.QueryByKeyword("oxford", &user.ID, 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
}

func TestListByFiltersAnyOfColors(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	repo := &WardrobeRepository{DB: db}
	user := test.FakeUser(db)

	blue := test.FakeReadyItem(db, user.ID, models.CategoryShirt, 0.2)
	db.Exec("UPDATE wardrobe_items SET colors = ARRAY['blue','white'] WHERE id = ?", blue.ID)
	red := test.FakeReadyItem(db, user.ID, models.CategoryPants, 0.3)
	db.Exec("UPDATE wardrobe_items SET colors = ARRAY['red'] WHERE id = ?", red.ID)

	items, err := repo.ListByFilters(ItemFilters{OwnerID: &user.ID, Colors: []string{"blue", "green"}})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, blue.ID, items[0].ID)
}

func TestListByFiltersCategoryAndFreeText(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	repo := &WardrobeRepository{DB: db}
	user := test.FakeUser(db)

	shirt := test.FakeReadyItem(db, user.ID, models.CategoryShirt, 0.2)
	test.FakeReadyItem(db, user.ID, models.CategoryPants, 0.3)

	byCategory, err := repo.ListByFilters(ItemFilters{OwnerID: &user.ID, Category: "shirt"})
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	assert.Equal(t, shirt.ID, byCategory[0].ID)

	byText, err := repo.ListByFilters(ItemFilters{OwnerID: &user.ID, Query: "SHIRT"})
	require.NoError(t, err)
	require.Len(t, byText, 1)
	assert.Equal(t, shirt.ID, byText[0].ID)
}

func TestListByFiltersLimitCap(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	repo := &WardrobeRepository{DB: db}
	user := test.FakeUser(db)
	test.FakeReadyItem(db, user.ID, models.CategoryShirt, 0.2)

	items, err := repo.ListByFilters(ItemFilters{OwnerID: &user.ID, Limit: 100000})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}
