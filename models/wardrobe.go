package models

import (
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// EmbeddingDim is the stored vector size. Embeddings coming from different
// models are padded/truncated to this length so rows stay comparable.
const EmbeddingDim = 512

type WardrobeItem struct {
	JsonModel
	Owner   *UserAccount `json:"-"`
	OwnerID *uint        `json:"-"`
	// R2 object key of the uploaded image
	ImageURL    *string          `json:"image_url"`
	Description *string          `gorm:"type:text" json:"description"`
	Embedding   *pgvector.Vector `gorm:"type:vector(512)" json:"-"`

	Category Category       `json:"category"`
	Style    Style          `json:"style"`
	Season   Season         `json:"season"`
	Colors   pq.StringArray `gorm:"type:text[]" json:"colors"`
	Tags     pq.StringArray `gorm:"type:text[]" json:"tags"`

	Status              ItemStatus `gorm:"default:processing" json:"status"`
	ProcessRetryTimes   int        `json:"process_retry_times"`
	ProcessErrorMessage *string    `json:"process_error_message"`
	AlertWhenProcessed  bool       `json:"alert_when_processed"`
}

// Searchable reports whether the item is eligible for similarity search:
// ready and carrying a non-empty embedding.
func (item *WardrobeItem) Searchable() bool {
	return item.Status == ItemReady && item.Embedding != nil && len(item.Embedding.Slice()) > 0
}
