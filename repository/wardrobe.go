package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wardrobeapi/models"
)

var ErrNotFound = errors.New("wardrobe item not found")
var ErrConstraintViolation = errors.New("wardrobe item is missing required fields")

// RankedItem pairs an item with its raw L2 distance to a query vector.
type RankedItem struct {
	Item     models.WardrobeItem
	Distance float64
}

// ItemFilters is the listing/search filter set. Colors and Tags use any-of
// semantics: an item matches when it carries at least one requested value.
type ItemFilters struct {
	Category string
	Style    string
	Season   string
	Status   string
	OwnerID  *uint
	Colors   []string
	Tags     []string
	// free text, OR across category/style/tags/colors
	Query string

	Limit  int
	Offset int
	Sort   string // created_at | updated_at
	Dir    string // asc | desc
}

const maxListLimit = 100
const defaultListLimit = 50

type WardrobeRepository struct {
	DB *gorm.DB
}

func (r *WardrobeRepository) Insert(item *models.WardrobeItem) error {
	if item.ImageURL == nil || *item.ImageURL == "" {
		return fmt.Errorf("%w: image_url", ErrConstraintViolation)
	}
	if item.Category == "" || item.Style == "" || item.Season == "" {
		return fmt.Errorf("%w: category, style, season", ErrConstraintViolation)
	}
	if item.Status == "" {
		item.Status = models.ItemProcessing
	}
	return r.DB.Create(item).Error
}

func (r *WardrobeRepository) Get(id uint) (*models.WardrobeItem, error) {
	var item models.WardrobeItem
	result := r.DB.First(&item, id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &item, nil
}

// UpdateEmbedding stores the description + embedding and flips the item to
// ready. A ready row never carries a nil embedding.
func (r *WardrobeRepository) UpdateEmbedding(id uint, embedding []float32, description string) (*models.WardrobeItem, error) {
	if len(embedding) != models.EmbeddingDim {
		return nil, fmt.Errorf("%w: embedding must have %d dimensions, got %d", ErrConstraintViolation, models.EmbeddingDim, len(embedding))
	}
	item, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	vec := pgvector.NewVector(embedding)
	item.Embedding = &vec
	if description != "" {
		item.Description = &description
	}
	item.Status = models.ItemReady
	item.ProcessErrorMessage = nil
	if err := r.DB.Save(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

// MarkFailed is idempotent: repeating it, or calling it for an id that no
// longer exists, is a no-op.
func (r *WardrobeRepository) MarkFailed(id uint, reason string) error {
	updates := map[string]interface{}{
		"status":                models.ItemFailed,
		"process_error_message": reason,
	}
	return r.DB.Model(&models.WardrobeItem{}).Where("id = ?", id).Updates(updates).Error
}

// QueryBySimilarity returns ready items ordered by ascending L2 distance to
// the query vector. Ties keep insertion order (id ascending).
func (r *WardrobeRepository) QueryBySimilarity(queryVector []float32, ownerID *uint, limit int) ([]RankedItem, error) {
	if len(queryVector) != models.EmbeddingDim {
		return nil, fmt.Errorf("%w: query vector must have %d dimensions", ErrConstraintViolation, models.EmbeddingDim)
	}
	vec := pgvector.NewVector(queryVector)

	type rankedRow struct {
		models.WardrobeItem
		Distance float64
	}
	var rows []rankedRow

	query := r.DB.Table("wardrobe_items").
		Select("wardrobe_items.*, (embedding <-> ?) AS distance", vec).
		Where("status = ? AND embedding IS NOT NULL", models.ItemReady)
	if ownerID != nil {
		query = query.Where("owner_id = ?", *ownerID)
	}
	result := query.
		Order(clause.OrderBy{Expression: clause.Expr{SQL: "embedding <-> ? ASC, id ASC", Vars: []interface{}{vec}, WithoutParentheses: true}}).
		Limit(limit).
		Find(&rows)
	if result.Error != nil {
		return nil, result.Error
	}

	ranked := make([]RankedItem, 0, len(rows))
	for _, row := range rows {
		ranked = append(ranked, RankedItem{Item: row.WardrobeItem, Distance: row.Distance})
	}
	return ranked, nil
}

// QueryByKeyword is the degraded-mode search: case-insensitive substring
// match across description, category, style and serialized tags/colors,
// newest first.
func (r *WardrobeRepository) QueryByKeyword(pattern string, ownerID *uint, limit int) ([]models.WardrobeItem, error) {
	like := "%" + pattern + "%"
	query := r.DB.Where("status = ?", models.ItemReady).
		Where(
			"(description ILIKE ? OR category ILIKE ? OR style ILIKE ? OR array_to_string(tags, ',') ILIKE ? OR array_to_string(colors, ',') ILIKE ?)",
			like, like, like, like, like,
		)
	if ownerID != nil {
		query = query.Where("owner_id = ?", *ownerID)
	}
	var items []models.WardrobeItem
	result := query.Order("created_at DESC").Limit(limit).Find(&items)
	if result.Error != nil {
		return nil, result.Error
	}
	return items, nil
}

func (r *WardrobeRepository) ListByFilters(filters ItemFilters) ([]models.WardrobeItem, error) {
	query := r.DB.Model(&models.WardrobeItem{})

	if filters.Category != "" {
		query = query.Where("category = ?", filters.Category)
	}
	if filters.Style != "" {
		query = query.Where("style = ?", filters.Style)
	}
	if filters.Season != "" {
		query = query.Where("season = ?", filters.Season)
	}
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}
	if filters.OwnerID != nil {
		query = query.Where("owner_id = ?", *filters.OwnerID)
	}
	if len(filters.Colors) > 0 {
		query = query.Where("colors && ?", pq.Array(filters.Colors))
	}
	if len(filters.Tags) > 0 {
		query = query.Where("tags && ?", pq.Array(filters.Tags))
	}
	if filters.Query != "" {
		like := "%" + filters.Query + "%"
		query = query.Where(
			"(category ILIKE ? OR style ILIKE ? OR array_to_string(tags, ',') ILIKE ? OR array_to_string(colors, ',') ILIKE ?)",
			like, like, like, like,
		)
	}

	sortColumn := "created_at"
	if strings.ToLower(filters.Sort) == "updated_at" {
		sortColumn = "updated_at"
	}
	direction := "DESC"
	if strings.ToLower(filters.Dir) == "asc" {
		direction = "ASC"
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := filters.Offset
	if offset < 0 {
		offset = 0
	}

	var items []models.WardrobeItem
	result := query.Order(fmt.Sprintf("%s %s", sortColumn, direction)).Limit(limit).Offset(offset).Find(&items)
	if result.Error != nil {
		return nil, result.Error
	}
	return items, nil
}
