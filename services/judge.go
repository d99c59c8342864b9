package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// CandidateSummary is the slice of a wardrobe item the judgment oracle sees.
type CandidateSummary struct {
	ItemID      uint     `json:"item_id"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Style       string   `json:"style"`
	Season      string   `json:"season"`
	Tags        []string `json:"tags"`
}

type CandidateAssessment struct {
	ItemID     uint   `json:"item_id"`
	Confidence int    `json:"confidence"`
	Reason     string `json:"reason"`
}

// JudgeProvider re-scores ranked candidates against the literal query intent
// with a 0-100 confidence per candidate.
type JudgeProvider interface {
	AssessCandidates(ctx context.Context, userQuery string, candidates []CandidateSummary) ([]CandidateAssessment, error)
}

const judgeSystemPrompt = `You are a strict fashion stylist judging whether wardrobe items match a user's outfit request. ` +
	`For each item, rate from 0 to 100 how well it matches the literal request. ` +
	`Be strict: only a score of 70 or above signals a true match for the request's occasion, season and formality. ` +
	`Give a short one-sentence reason per item. Return JSON only.`

type GoogleJudgeService struct {
	clientOnce sync.Once
	client     *genai.Client
	clientErr  error

	Model LLMModelName
}

func (s *GoogleJudgeService) getClient(ctx context.Context) (*genai.Client, error) {
	s.clientOnce.Do(func() {
		s.client, s.clientErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  os.Getenv("GOOGLE_API_KEY"),
			Backend: genai.BackendGeminiAPI,
		})
	})
	return s.client, s.clientErr
}

func (s *GoogleJudgeService) AssessCandidates(ctx context.Context, userQuery string, candidates []CandidateSummary) ([]CandidateAssessment, error) {
	client, err := s.getClient(ctx)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, oracleTimeout)
	defer cancel()

	candidatesJson, err := json.Marshal(candidates)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf("User request: %q\n\nWardrobe candidates:\n%s", userQuery, string(candidatesJson))
	result, err := client.Models.GenerateContent(ctx, s.Model.String(), []*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}}, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		CandidateCount:   1,
		MaxOutputTokens:  4000,
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: judgeSystemPrompt}},
		},
		ResponseSchema: &genai.Schema{
			Type: "object",
			Properties: map[string]*genai.Schema{
				"assessments": {
					Type: "array",
					Items: &genai.Schema{
						Type: "object",
						Properties: map[string]*genai.Schema{
							"item_id":    {Type: "integer"},
							"confidence": {Type: "integer"},
							"reason":     {Type: "string"},
						},
						Required: []string{"item_id", "confidence"},
					},
				},
			},
			Required: []string{"assessments"},
		},
	})
	if err != nil {
		log.Printf("[Judge] GenerateContent failed: %v", err)
		return nil, err
	}

	var parsed struct {
		Assessments []CandidateAssessment `json:"assessments"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(result.Text())), &parsed); err != nil {
		log.Printf("[Judge] Malformed judge payload: %v", err)
		return nil, err
	}
	return parsed.Assessments, nil
}
