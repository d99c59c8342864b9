package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"wardrobeapi/models"
	"wardrobeapi/repository"
	"wardrobeapi/services"
)

const TypeWardrobeProcessItem = "wardrobe:process_item"

const maxProcessRetries = 3

type WardrobeItemPayload struct {
	ItemID uint `json:"item_id"`
}

// Client initializes an asynq client for enqueuing tasks
func NewClient() (*asynq.Client, error) {
	return asynq.NewClient(asynq.RedisClientOpt{Addr: os.Getenv("ASYNC_BROKER_ADDRESS")}), nil
}

func NewWardrobeProcessTask(itemID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(WardrobeItemPayload{ItemID: itemID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeWardrobeProcessItem, payload), nil
}

func getItemImage(awsService services.AWSServiceProvider, item *models.WardrobeItem) ([]byte, string, error) {
	bucketName := os.Getenv("R2_BUCKET_NAME")
	if item.ImageURL == nil {
		return nil, "", fmt.Errorf("[Item: %v] Image URL is nil", item.ID)
	}
	fmt.Printf("[Item: %v] Request presigned download url..\n", item.ID)
	fileUrl, err := awsService.GetPresignedR2FileReadURL(context.TODO(), bucketName, *item.ImageURL)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Item: %v] Error on getting presigned URL for file %s", item.ID, *item.ImageURL))
		return nil, "", err
	}
	fileBytes, err := services.ReadFileFromUrl(fileUrl)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Item: %v] Error on downloading file %s: %v", item.ID, *item.ImageURL, err))
		return nil, "", err
	}
	return fileBytes, services.MimeTypeForFileName(*item.ImageURL), nil
}

// HandleProcessWardrobeItemTask runs the ingestion pipeline for one item:
// download the uploaded image, describe it, embed the description and mark
// the item ready. On terminal failure the item is marked failed and the
// stored binary is retracted so no half-ingested row keeps an orphan object.
func HandleProcessWardrobeItemTask(
	ctx context.Context, t *asynq.Task, db *gorm.DB, embedder services.EmbeddingProvider,
	awsService services.AWSServiceProvider, fbApp *firebase.App) error {

	var payload WardrobeItemPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return err
	}
	fmt.Printf("[Item: %v] Start Processing\n", payload.ItemID)

	repo := &repository.WardrobeRepository{DB: db}
	item, err := repo.Get(payload.ItemID)
	if errors.Is(err, repository.ErrNotFound) {
		sentry.CaptureException(fmt.Errorf("[QUEUE] Item %v scheduled for processing no longer exists", payload.ItemID))
		return nil
	}
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[QUEUE] Error on retrieving item for processing %v: %v", payload.ItemID, err))
		return err
	}
	if item.Status == models.ItemReady {
		fmt.Printf("[Item: %v] Already processed, skipping\n", payload.ItemID)
		return nil
	}

	fileBytes, mimeType, err := getItemImage(awsService, item)
	if err != nil {
		return saveItemProcessingFail(db, awsService, item, "Failed to read your item image, please upload it again", err)
	}
	fmt.Printf("[Item: %v] Downloaded file size: %d bytes\n", payload.ItemID, len(fileBytes))

	description, err := embedder.DescribeImage(ctx, fileBytes, mimeType)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Item: %v] Error on describing image %s: %v", payload.ItemID, *item.ImageURL, err))
		return saveItemProcessingFail(db, awsService, item, "Failed to analyze your item image, please try again", err)
	}
	fmt.Printf("[Item: %v] Described: %q\n", payload.ItemID, description)

	embedding, err := embedder.EmbedText(ctx, description)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Item: %v] Error on embedding description: %v", payload.ItemID, err))
		return saveItemProcessingFail(db, awsService, item, "Failed to index your item, please try again", err)
	}

	item, err = repo.UpdateEmbedding(item.ID, embedding, description)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Item: %v] Error on saving embedding: %v", payload.ItemID, err))
		return err
	}
	fmt.Printf("[Item: %v] Processing finished successfully\n", payload.ItemID)

	if item.AlertWhenProcessed && item.OwnerID != nil {
		fmt.Printf("[Item: %v] Sending notification to user %v\n", payload.ItemID, *item.OwnerID)
		services.SendNotification(fbApp, db, *item.OwnerID, "Your item is ready",
			fmt.Sprintf("Your %s is catalogued and ready for outfit recommendations", item.Category))
	}
	return nil
}

// saveItemProcessingFail counts the retry; once retries are exhausted the
// item goes terminal: failed status plus a compensating delete of the
// uploaded object.
func saveItemProcessingFail(db *gorm.DB, awsService services.AWSServiceProvider, item *models.WardrobeItem, msg string, cause error) error {
	item.ProcessRetryTimes = item.ProcessRetryTimes + 1
	item.ProcessErrorMessage = &msg
	if tx := db.Save(item); tx.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Fail Item %v] Error on saving item retry state: %v", item.ID, tx.Error))
		return tx.Error
	}
	if item.ProcessRetryTimes < maxProcessRetries {
		// returning the cause lets asynq retry the task
		return cause
	}

	repo := &repository.WardrobeRepository{DB: db}
	if err := repo.MarkFailed(item.ID, msg); err != nil {
		sentry.CaptureException(fmt.Errorf("[Fail Item %v] Error on marking item failed: %v", item.ID, err))
		return err
	}
	if item.ImageURL != nil && *item.ImageURL != "" {
		bucketName := os.Getenv("R2_BUCKET_NAME")
		if err := awsService.DeleteObject(context.Background(), bucketName, *item.ImageURL); err != nil {
			sentry.CaptureException(fmt.Errorf("[Fail Item %v] Compensating delete failed for %s: %v", item.ID, *item.ImageURL, err))
		}
	}
	fmt.Printf("[Item: %v] Marked failed after %d attempts: %s\n", item.ID, item.ProcessRetryTimes, msg)
	return nil
}
