package recommend

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"wardrobeapi/models"
	"wardrobeapi/repository"
	"wardrobeapi/services"
)

type embedderStub struct {
	vector []float32
	err    error
}

func (e *embedderStub) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return e.vector, e.err
}

func (e *embedderStub) EmbedImage(ctx context.Context, data []byte, mimeType string) ([]float32, error) {
	return e.vector, e.err
}

func (e *embedderStub) DescribeImage(ctx context.Context, data []byte, mimeType string) (string, error) {
	return "", e.err
}

type searcherStub struct {
	ranked     []repository.RankedItem
	rankedErr  error
	keyword    []models.WardrobeItem
	keywordErr error

	similarityCalls int
	keywordCalls    int
}

func (s *searcherStub) QueryBySimilarity(queryVector []float32, ownerID *uint, limit int) ([]repository.RankedItem, error) {
	s.similarityCalls++
	return s.ranked, s.rankedErr
}

func (s *searcherStub) QueryByKeyword(pattern string, ownerID *uint, limit int) ([]models.WardrobeItem, error) {
	s.keywordCalls++
	return s.keyword, s.keywordErr
}

func rankerItem(id uint, category models.Category) models.WardrobeItem {
	item := models.WardrobeItem{Category: category, Style: models.StyleCasual, Season: models.SeasonAny, Status: models.ItemReady}
	item.ID = id
	return item
}

func TestRankVectorModeScoresDecayWithDistance(t *testing.T) {
	searcher := &searcherStub{
		ranked: []repository.RankedItem{
			{Item: rankerItem(1, models.CategoryShirt), Distance: 0},
			{Item: rankerItem(2, models.CategoryPants), Distance: 0.5},
			{Item: rankerItem(3, models.CategoryShoes), Distance: 2},
		},
	}
	ranker := &Ranker{Embedder: &embedderStub{vector: make([]float32, models.EmbeddingDim)}, Searcher: searcher}

	candidates, err := ranker.Rank(context.Background(), "casual friday", nil, 10)

	assert.NoError(t, err)
	assert.Len(t, candidates, 3)
	assert.InDelta(t, 1.0, candidates[0].Score, 1e-9)
	assert.InDelta(t, math.Exp(-0.5), candidates[1].Score, 1e-9)
	assert.InDelta(t, math.Exp(-2), candidates[2].Score, 1e-9)
	assert.True(t, candidates[0].Score > candidates[1].Score)
	assert.True(t, candidates[1].Score > candidates[2].Score)
	assert.Equal(t, 0, searcher.keywordCalls)
}

func TestRankFallsBackToKeywordSearch(t *testing.T) {
	searcher := &searcherStub{
		keyword: []models.WardrobeItem{
			rankerItem(1, models.CategoryShirt),
			rankerItem(2, models.CategoryPants),
			rankerItem(3, models.CategoryShoes),
		},
	}
	ranker := &Ranker{Embedder: &embedderStub{err: services.ErrEmbeddingUnavailable}, Searcher: searcher}

	candidates, err := ranker.Rank(context.Background(), "blue shirt", nil, 10)

	assert.NoError(t, err)
	assert.Len(t, candidates, 3)
	assert.InDelta(t, 0.5, candidates[0].Score, 1e-9)
	assert.InDelta(t, 0.45, candidates[1].Score, 1e-9)
	assert.InDelta(t, 0.40, candidates[2].Score, 1e-9)
	for _, candidate := range candidates {
		assert.Equal(t, float64(keywordFallbackDistance), candidate.Distance)
	}
	assert.Equal(t, 0, searcher.similarityCalls)
	assert.Equal(t, 1, searcher.keywordCalls)
}

func TestRankKeywordScoresGoNegativePastRankTen(t *testing.T) {
	var items []models.WardrobeItem
	for i := uint(1); i <= 12; i++ {
		items = append(items, rankerItem(i, models.CategoryShirt))
	}
	searcher := &searcherStub{keyword: items}
	ranker := &Ranker{Embedder: &embedderStub{err: services.ErrEmbeddingUnavailable}, Searcher: searcher}

	candidates, err := ranker.Rank(context.Background(), "shirt", nil, 20)

	assert.NoError(t, err)
	assert.Len(t, candidates, 12)
	assert.InDelta(t, 0.0, candidates[10].Score, 1e-9)
	assert.InDelta(t, -0.05, candidates[11].Score, 1e-9)
}

func TestRankBothPathsDownIsServiceUnavailable(t *testing.T) {
	searcher := &searcherStub{keywordErr: errors.New("db gone")}
	ranker := &Ranker{Embedder: &embedderStub{err: services.ErrEmbeddingUnavailable}, Searcher: searcher}

	candidates, err := ranker.Rank(context.Background(), "anything", nil, 10)

	assert.Nil(t, candidates)
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestRankNonOracleEmbedErrorPassesThrough(t *testing.T) {
	boom := errors.New("text cannot be empty")
	searcher := &searcherStub{}
	ranker := &Ranker{Embedder: &embedderStub{err: boom}, Searcher: searcher}

	_, err := ranker.Rank(context.Background(), "", nil, 10)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, searcher.keywordCalls)
}

func TestRankEmptyWardrobe(t *testing.T) {
	ranker := &Ranker{Embedder: &embedderStub{vector: make([]float32, models.EmbeddingDim)}, Searcher: &searcherStub{}}

	candidates, err := ranker.Rank(context.Background(), "office party", nil, 10)

	assert.NoError(t, err)
	assert.Empty(t, candidates)
}
