package controllers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"

	firebase "firebase.google.com/go/v4"
	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/lib/pq"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"wardrobeapi/models"
	"wardrobeapi/recommend"
	"wardrobeapi/repository"
	"wardrobeapi/services"
	"wardrobeapi/tasks"
)

type CreateWardrobeItemIn struct {
	FileName           *string  `json:"file_name" validate:"required,max=200"`
	Category           string   `json:"category" validate:"required,category"`
	Style              string   `json:"style" validate:"required,style"`
	Season             string   `json:"season" validate:"required,season"`
	Colors             []string `json:"colors" validate:"omitempty,max=10,dive,max=30"`
	Tags               []string `json:"tags" validate:"omitempty,max=20,dive,max=50"`
	AlertWhenProcessed *bool    `json:"alert_when_processed"`
}

type RecommendIn struct {
	Query string `json:"query" validate:"required,min=1,max=500"`
	Limit int    `json:"limit" validate:"omitempty,min=1,max=50"`
}

type WardrobeItemResponse struct {
	ID          uint     `json:"id"`
	ImageURL    *string  `json:"image_url,omitempty"`
	Description *string  `json:"description,omitempty"`
	Category    string   `json:"category"`
	Style       string   `json:"style"`
	Season      string   `json:"season"`
	Colors      []string `json:"colors"`
	Tags        []string `json:"tags"`
	Status      string   `json:"status"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

type WardrobeItemCreatedResponse struct {
	Item          WardrobeItemResponse `json:"item"`
	FileUploadUrl string               `json:"file_upload_url"`
}

type OutfitItemResponse struct {
	WardrobeItemResponse
	MatchScore string `json:"match_score"`
}

type OutfitResponse struct {
	Message      string               `json:"message"`
	IsComplete   bool                 `json:"is_complete"`
	Items        []OutfitItemResponse `json:"items"`
	AverageScore string               `json:"average_score"`
}

type WardrobeController struct {
	AWSService  services.AWSServiceProvider
	FirebaseApp *firebase.App
	URLCache    services.URLCacheServiceProvider
	Embedder    services.EmbeddingProvider
	Judge       services.JudgeProvider
}

func (controller *WardrobeController) WardrobeRoutes(g *echo.Group) {
	g.POST("/items", controller.CreateItem)
	g.GET("/items", controller.ListItems)
	g.POST("/recommend", controller.Recommend)
}

func formatScore(score float64) string {
	return fmt.Sprintf("%.1f%%", score*100)
}

func itemResponse(item models.WardrobeItem) WardrobeItemResponse {
	colors := []string(item.Colors)
	if colors == nil {
		colors = []string{}
	}
	tags := []string(item.Tags)
	if tags == nil {
		tags = []string{}
	}
	return WardrobeItemResponse{
		ID:          item.ID,
		Description: item.Description,
		Category:    string(item.Category),
		Style:       string(item.Style),
		Season:      string(item.Season),
		Colors:      colors,
		Tags:        tags,
		Status:      string(item.Status),
		CreatedAt:   item.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:   item.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func (controller *WardrobeController) CreateItem(c echo.Context) error {
	var req CreateWardrobeItemIn
	if err := c.Bind(&req); err != nil {
		fmt.Println(err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}
	asynqClient, ok := c.Get("__asynqclient").(*asynq.Client)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Service is not available, please try again a bit later"})
	}

	if !services.IsAllowedImageFileName(*req.FileName) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Only jpg, jpeg, png and webp images are supported"})
	}

	bucketName := services.GetEnv("R2_BUCKET_NAME", "")
	safeFileName := fmt.Sprintf("wardrobe/%v/%s", user.ID, *req.FileName)
	uploadUrl, presignErr := controller.AWSService.PresignLink(context.Background(), bucketName, safeFileName)
	if presignErr != nil {
		log.Printf("Unable to presign upload for %s!, %s", safeFileName, presignErr)
		sentry.CaptureException(presignErr)
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"message": "Error while creating wardrobe item, please try again",
		})
	}

	item := models.WardrobeItem{
		OwnerID:  UIntPointer(user.ID),
		ImageURL: &safeFileName,
		Category: models.Category(req.Category),
		Style:    models.Style(req.Style),
		Season:   models.Season(req.Season),
		Colors:   pq.StringArray(req.Colors),
		Tags:     pq.StringArray(req.Tags),
		Status:   models.ItemProcessing,
	}
	if req.AlertWhenProcessed != nil {
		item.AlertWhenProcessed = *req.AlertWhenProcessed
	}

	repo := &repository.WardrobeRepository{DB: db}
	if err := repo.Insert(&item); err != nil {
		if errors.Is(err, repository.ErrConstraintViolation) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Failed to save your item, please try again"})
	}

	if asynqClient != nil {
		task, err := tasks.NewWardrobeProcessTask(item.ID)
		if err != nil {
			sentry.CaptureException(err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not process item, please try again"})
		}
		info, err := asynqClient.Enqueue(task, asynq.MaxRetry(3), asynq.Queue("generate"))
		if err != nil {
			sentry.CaptureException(err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not process item, please try again"})
		}
		fmt.Println("[Queue] Process wardrobe item task submitted, Item ID: ", item.ID, " Task ID: ", info.ID)
	} else {
		log.Printf("[Queue] No broker configured, item %v left for manual processing", item.ID)
	}

	return c.JSON(http.StatusCreated, WardrobeItemCreatedResponse{
		Item:          itemResponse(item),
		FileUploadUrl: uploadUrl,
	})
}

func (controller *WardrobeController) ListItems(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}

	filters := repository.ItemFilters{
		Category: c.QueryParam("category"),
		Style:    c.QueryParam("style"),
		Season:   c.QueryParam("season"),
		Status:   c.QueryParam("status"),
		OwnerID:  UIntPointer(user.ID),
		Query:    c.QueryParam("q"),
		Sort:     c.QueryParam("sort"),
		Dir:      c.QueryParam("dir"),
	}
	// read-only peek at another user's catalogue
	if userId := c.QueryParam("userId"); userId != "" {
		parsed, err := strconv.ParseUint(userId, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid userId"})
		}
		filters.OwnerID = UIntPointer(uint(parsed))
	}
	if filters.Category != "" && !models.ValidateCategoryRaw(filters.Category) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Unknown category"})
	}
	if filters.Style != "" && !models.ValidateStyleRaw(filters.Style) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Unknown style"})
	}
	if filters.Season != "" && !models.ValidateSeasonRaw(filters.Season) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Unknown season"})
	}
	if filters.Status != "" && !models.ValidateItemStatusRaw(filters.Status) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Unknown status"})
	}
	if colors := c.QueryParam("colors"); colors != "" {
		filters.Colors = splitCSV(colors)
	}
	if tags := c.QueryParam("tags"); tags != "" {
		filters.Tags = splitCSV(tags)
	}
	if limit := c.QueryParam("limit"); limit != "" {
		parsed, err := strconv.Atoi(limit)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid limit"})
		}
		filters.Limit = parsed
	}
	if offset := c.QueryParam("offset"); offset != "" {
		parsed, err := strconv.Atoi(offset)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid offset"})
		}
		filters.Offset = parsed
	}

	repo := &repository.WardrobeRepository{DB: db}
	items, err := repo.ListByFilters(filters)
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch wardrobe items"})
	}

	responses := controller.populatePresignedItemImages(c.Request().Context(), items)
	return c.JSON(http.StatusOK, echo.Map{
		"items": responses,
	})
}

func (controller *WardrobeController) Recommend(c echo.Context) error {
	var req RecommendIn
	if err := c.Bind(&req); err != nil {
		fmt.Println(err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if req.Limit == 0 {
		req.Limit = 10
	}

	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}

	repo := &repository.WardrobeRepository{DB: db}
	ranker := &recommend.Ranker{Embedder: controller.Embedder, Searcher: repo}
	candidates, err := ranker.Rank(c.Request().Context(), req.Query, UIntPointer(user.ID), req.Limit)
	if err != nil {
		if errors.Is(err, recommend.ErrServiceUnavailable) {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"message": "Recommendations are temporarily unavailable, please try again later"})
		}
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Something went wrong, please try again"})
	}

	validator := &recommend.Validator{Judge: controller.Judge}
	validated := validator.Validate(c.Request().Context(), req.Query, candidates)

	outfit := recommend.CurateOutfit(req.Query, validated)

	outfitItems := controller.populatePresignedOutfitItems(c.Request().Context(), outfit.Items)
	return c.JSON(http.StatusOK, echo.Map{
		"outfit": OutfitResponse{
			Message:      outfit.Message,
			IsComplete:   outfit.IsComplete,
			Items:        outfitItems,
			AverageScore: formatScore(outfit.AverageScore),
		},
	})
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			cleaned = append(cleaned, part)
		}
	}
	return cleaned
}

// presignItemImage resolves the object key to a presigned read URL through
// the cache, with a direct presign fallback when the cache layer itself
// fails. An unresolvable image never fails the whole request.
func (controller *WardrobeController) presignItemImage(ctx context.Context, objectKey string) string {
	if objectKey == "" {
		return ""
	}
	url, err := controller.URLCache.GetReadURL(ctx, objectKey)
	if err == nil {
		return url
	}
	log.Printf("CACHE WARNING: Cache system failed for key '%s': %v. Triggering manual R2 fallback.", objectKey, err)
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("failure_type", "cache_system")
		scope.SetExtra("objectKey", objectKey)
		sentry.CaptureException(err)
	})

	bucketName := services.GetEnv("R2_BUCKET_NAME", "")
	fallbackUrl, fallbackErr := controller.AWSService.GetPresignedR2FileReadURL(ctx, bucketName, objectKey)
	if fallbackErr != nil {
		log.Printf("CRITICAL: Manual R2 fallback also failed for key '%s': %v", objectKey, fallbackErr)
		sentry.CaptureException(fallbackErr)
		return ""
	}
	return fallbackUrl
}

func (controller *WardrobeController) populatePresignedItemImages(ctx context.Context, items []models.WardrobeItem) []WardrobeItemResponse {
	if len(items) == 0 {
		return []WardrobeItemResponse{}
	}

	var wg sync.WaitGroup
	responses := make([]WardrobeItemResponse, len(items))
	for i, wardrobeItem := range items {
		wg.Add(1)
		go func(index int, item models.WardrobeItem) {
			defer wg.Done()
			response := itemResponse(item)
			if item.ImageURL != nil && *item.ImageURL != "" {
				url := controller.presignItemImage(ctx, *item.ImageURL)
				response.ImageURL = &url
			}
			responses[index] = response
		}(i, wardrobeItem)
	}
	wg.Wait()
	return responses
}

func (controller *WardrobeController) populatePresignedOutfitItems(ctx context.Context, candidates []recommend.Candidate) []OutfitItemResponse {
	if len(candidates) == 0 {
		return []OutfitItemResponse{}
	}

	var wg sync.WaitGroup
	responses := make([]OutfitItemResponse, len(candidates))
	for i, outfitCandidate := range candidates {
		wg.Add(1)
		go func(index int, candidate recommend.Candidate) {
			defer wg.Done()
			response := OutfitItemResponse{
				WardrobeItemResponse: itemResponse(candidate.Item),
				MatchScore:           formatScore(candidate.Score),
			}
			if candidate.Item.ImageURL != nil && *candidate.Item.ImageURL != "" {
				url := controller.presignItemImage(ctx, *candidate.Item.ImageURL)
				response.ImageURL = &url
			}
			responses[index] = response
		}(i, outfitCandidate)
	}
	wg.Wait()
	return responses
}
