package recommend

import (
	"context"
	"errors"
	"log"
	"math"

	"wardrobeapi/models"
	"wardrobeapi/repository"
	"wardrobeapi/services"
)

var ErrServiceUnavailable = errors.New("recommendation service unavailable")

// keywordFallbackDistance marks a candidate that was never compared against a
// query vector.
const keywordFallbackDistance = 1e9

// Candidate is a retrieved wardrobe item with its relevance score in [0, 1]
// for vector mode. Keyword-mode scores start at 0.5 and decay by rank.
type Candidate struct {
	Item     models.WardrobeItem
	Score    float64
	Distance float64
}

type ItemSearcher interface {
	QueryBySimilarity(queryVector []float32, ownerID *uint, limit int) ([]repository.RankedItem, error)
	QueryByKeyword(pattern string, ownerID *uint, limit int) ([]models.WardrobeItem, error)
}

// Ranker retrieves candidate items for a free-text query. It prefers vector
// search and degrades to keyword search when the embedding oracle is down.
type Ranker struct {
	Embedder services.EmbeddingProvider
	Searcher ItemSearcher
}

func (r *Ranker) Rank(ctx context.Context, query string, ownerID *uint, limit int) ([]Candidate, error) {
	queryVector, err := r.Embedder.EmbedText(ctx, query)
	if err == nil {
		ranked, searchErr := r.Searcher.QueryBySimilarity(queryVector, ownerID, limit)
		if searchErr != nil {
			return nil, searchErr
		}
		candidates := make([]Candidate, 0, len(ranked))
		for _, row := range ranked {
			candidates = append(candidates, Candidate{
				Item:     row.Item,
				Score:    math.Exp(-row.Distance),
				Distance: row.Distance,
			})
		}
		return candidates, nil
	}
	if !errors.Is(err, services.ErrEmbeddingUnavailable) {
		return nil, err
	}

	log.Printf("[Ranker] embedding unavailable, falling back to keyword search: %v", err)
	items, searchErr := r.Searcher.QueryByKeyword(query, ownerID, limit)
	if searchErr != nil {
		return nil, ErrServiceUnavailable
	}
	candidates := make([]Candidate, 0, len(items))
	for rank, item := range items {
		candidates = append(candidates, Candidate{
			Item:     item,
			Score:    0.5 - 0.05*float64(rank),
			Distance: keywordFallbackDistance,
		})
	}
	return candidates, nil
}
