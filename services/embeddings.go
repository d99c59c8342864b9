package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"wardrobeapi/models"
)

// ErrEmbeddingUnavailable signals the embedding/description oracle is down
// or returned nothing useful. Callers treat it as a degraded-mode signal and
// fall back (keyword search, fail-open), never as a request-fatal error.
var ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

// Blocking oracle calls get a hard deadline, after which they count as
// unavailable and the documented fallback paths kick in.
const oracleTimeout = 20 * time.Second

const embeddingModelName = "gemini-embedding-001"

const describePrompt = `You are a fashion-tagging assistant for an AI wardrobe system. ` +
	`For the input image of a clothing item, output english sentences describing the item in detail for outfit matching, ` +
	`along with the occasions it can be worn for. Be specific and factual, not marketing language. ` +
	`When a user later asks for a specific outfit, the description should be able to surface the right item.`

type EmbeddingProvider interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedImage(ctx context.Context, data []byte, mimeType string) ([]float32, error)
	DescribeImage(ctx context.Context, data []byte, mimeType string) (string, error)
}

// GoogleEmbeddingService talks to Gemini for text embeddings and image
// descriptions. The genai client is created once on first use and kept for
// the life of the process.
type GoogleEmbeddingService struct {
	clientOnce sync.Once
	client     *genai.Client
	clientErr  error

	DescribeModel LLMModelName
}

func (s *GoogleEmbeddingService) getClient(ctx context.Context) (*genai.Client, error) {
	s.clientOnce.Do(func() {
		s.client, s.clientErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  os.Getenv("GOOGLE_API_KEY"),
			Backend: genai.BackendGeminiAPI,
		})
	})
	if s.clientErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, s.clientErr)
	}
	return s.client, nil
}

// fitDimensions pads or truncates a native model vector to EmbeddingDim so
// stored embeddings stay comparable regardless of source model. A truncated
// native vector is not semantically equivalent to a natively-512 one; this
// is a compatibility shim, not a parity guarantee.
func fitDimensions(values []float32) []float32 {
	fitted := make([]float32, models.EmbeddingDim)
	copy(fitted, values)
	return fitted
}

func (s *GoogleEmbeddingService) EmbedText(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}
	client, err := s.getClient(ctx)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, oracleTimeout)
	defer cancel()

	result, err := client.Models.EmbedContent(ctx, embeddingModelName, genai.Text(text), nil)
	if err != nil {
		log.Printf("[Embeddings] EmbedContent failed: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("%w: model returned no embedding", ErrEmbeddingUnavailable)
	}
	return fitDimensions(result.Embeddings[0].Values), nil
}

// EmbedImage derives the vector from the generated description so that item
// vectors and query vectors live in the same text embedding space.
func (s *GoogleEmbeddingService) EmbedImage(ctx context.Context, data []byte, mimeType string) ([]float32, error) {
	description, err := s.DescribeImage(ctx, data, mimeType)
	if err != nil {
		return nil, err
	}
	return s.EmbedText(ctx, description)
}

func (s *GoogleEmbeddingService) DescribeImage(ctx context.Context, data []byte, mimeType string) (string, error) {
	client, err := s.getClient(ctx)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, oracleTimeout)
	defer cancel()

	tempPath, err := CreateTempFile(data, "wardrobe"+ExtForMimeType(mimeType))
	if err != nil {
		return "", err
	}
	// cleanup must run on every exit path, including timeouts
	defer os.Remove(tempPath)

	genFile, err := tryUploadGoogleStorage(ctx, client, tempPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}

	parts := []*genai.Part{
		{FileData: &genai.FileData{FileURI: genFile.URI, MIMEType: genFile.MIMEType}},
		{Text: "Describe this clothing item."},
	}
	result, err := client.Models.GenerateContent(ctx, s.DescribeModel.String(), []*genai.Content{{Parts: parts}}, &genai.GenerateContentConfig{
		CandidateCount:  1,
		MaxOutputTokens: 2000,
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: describePrompt}},
		},
	})
	if err != nil {
		log.Printf("[Embeddings] GenerateContent failed: %v", err)
		return "", fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if result.PromptFeedback != nil {
		return "", fmt.Errorf("content violation: %s", result.PromptFeedback.BlockReasonMessage)
	}
	description := strings.TrimSpace(result.Text())
	if description == "" {
		return "", fmt.Errorf("%w: model returned empty description", ErrEmbeddingUnavailable)
	}
	return description, nil
}

func tryUploadGoogleStorage(ctx context.Context, client *genai.Client, filePath string) (*genai.File, error) {
	var genFile *genai.File
	var err error
	maxUploadTimes := 3
	for i := range maxUploadTimes {
		genFile, err = client.Files.UploadFromPath(ctx, filePath, &genai.UploadFileConfig{})
		if err == nil {
			return genFile, nil
		}
		fmt.Printf("Error uploading file %s, attempt %d: %v\n", filePath, i+1, err)
	}
	return nil, fmt.Errorf("failed to upload file to google storage after %d attempts: %s", maxUploadTimes, filePath)
}
