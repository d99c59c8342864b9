package test

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/api/idtoken"
	"gorm.io/gorm"

	"wardrobeapi/models"
	"wardrobeapi/services"
)

func JsonString(model interface{}) string {
	bytes, _ := json.Marshal(model)
	return string(bytes)
}

func NewJSONRequest(method string, target string, param interface{}) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(JsonString(param)))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	return req
}

func GenerateUserToken(userPk string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userPk,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour * 72)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	})
	t, err := token.SignedString([]byte(os.Getenv("JWT_SECRET")))
	if err != nil {
		log.Fatalf("Error when signing user token for %s. Error %s ", userPk, err)
	}
	return t
}

func NewJSONAuthRequest(method string, target string, userPk string, param interface{}) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(JsonString(param)))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	token := GenerateUserToken(userPk)
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", token))
	return req
}

func NewAuthRequest(method string, target string, userPk string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Add("Accept", "application/json")
	token := GenerateUserToken(userPk)
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", token))
	return req
}

func NewRefString(data string) *string {
	return &data
}

func FakeUser(db *gorm.DB) *models.UserAccount {
	user := &models.UserAccount{
		Name:      "OurName",
		Email:     "email@example.com",
		GoogleID:  "12232",
		Platform:  models.PlatformIOS,
		LastIp:    "123.122.122.122",
		AvatarURL: "pictureurl",
	}
	db.Create(&user)
	tokenDb := models.UserPushToken{
		UserAccountID: user.ID,
		Platform:      models.PlatformAndroid,
		Token:         "cX-UZ3zwQEiPt-2GJkG2gA:APA91bGqRflaGrJrnynhRwZ442HdgUjVcO7mWMFnx6IwAdJ9RRKopvSP4QU7hbvTmk1XAp8XGvtHZLvo5JmOPTVKBbGqqvhfbZWKlXA9csEjx1hgpNvrWepU-rqG1sxS8_WCF5cGZchf",
		Active:        true,
	}
	db.Save(&tokenDb)
	return user
}

func FakeUserV2(db *gorm.DB, userName string, email string) *models.UserAccount {
	if email == "" {
		email = "email@example.com"
	}
	user := &models.UserAccount{
		Name:      userName,
		Email:     email,
		GoogleID:  "12232",
		Platform:  models.PlatformIOS,
		LastIp:    "123.122.122.122",
		AvatarURL: "pictureurl",
	}
	db.Create(&user)
	return user
}

// FakeReadyItem inserts a ready wardrobe item with an embedding derived from
// the given seed so similarity ordering in tests is deterministic.
func FakeReadyItem(db *gorm.DB, ownerID uint, category models.Category, seed float32) *models.WardrobeItem {
	values := make([]float32, models.EmbeddingDim)
	values[0] = seed
	vec := pgvector.NewVector(values)
	item := &models.WardrobeItem{
		OwnerID:     &ownerID,
		ImageURL:    NewRefString(fmt.Sprintf("wardrobe/%v/item-%s.jpg", ownerID, category)),
		Description: NewRefString(fmt.Sprintf("a %s for testing", category)),
		Embedding:   &vec,
		Category:    category,
		Style:       models.StyleCasual,
		Season:      models.SeasonAny,
		Status:      models.ItemReady,
	}
	db.Create(&item)
	return item
}

type GoogleServiceMock struct{}

func (gsm GoogleServiceMock) ValidateIdToken(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error) {
	return &idtoken.Payload{Issuer: "Issue", Audience: "AAA", Expires: 119919191919, IssuedAt: 12312321321, Subject: "fake@example.com", Claims: map[string]interface{}{
		"email":   "fake@example.com",
		"picture": "pictureurl",
		"name":    "Fake User",
		"sub":     "123googleid",
	}}, nil
}

type AWSProviderMock struct {
	MockUrl        string
	DeletedObjects []string
}

func (awsService *AWSProviderMock) InitPresignClient(ctx context.Context) error {
	return nil
}

func (awsService *AWSProviderMock) PresignLink(ctx context.Context, bucketName string, fileName string) (string, error) {
	return fmt.Sprintf("https://fakebucketurl.com/%s", fileName), nil
}

func (awsService *AWSProviderMock) GetPresignedR2FileReadURL(ctx context.Context, bucketName, fileKey string) (string, error) {
	return awsService.MockUrl, nil
}

func (awsService *AWSProviderMock) DeleteObject(ctx context.Context, bucketName, fileKey string) error {
	awsService.DeletedObjects = append(awsService.DeletedObjects, fileKey)
	return nil
}

// EmbedderMock returns a fixed vector and description; set Err to simulate
// the oracle being down.
type EmbedderMock struct {
	Vector      []float32
	Description string
	Err         error
}

func (m *EmbedderMock) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Vector != nil {
		return m.Vector, nil
	}
	return make([]float32, models.EmbeddingDim), nil
}

func (m *EmbedderMock) EmbedImage(ctx context.Context, data []byte, mimeType string) ([]float32, error) {
	return m.EmbedText(ctx, m.Description)
}

func (m *EmbedderMock) DescribeImage(ctx context.Context, data []byte, mimeType string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	if m.Description != "" {
		return m.Description, nil
	}
	return "a plain item", nil
}

// JudgeMock either replays canned assessments, approves everything at the
// given confidence, or fails.
type JudgeMock struct {
	Assessments []services.CandidateAssessment
	ApproveAll  int
	Err         error
}

func (m *JudgeMock) AssessCandidates(ctx context.Context, userQuery string, candidates []services.CandidateSummary) ([]services.CandidateAssessment, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Assessments != nil {
		return m.Assessments, nil
	}
	assessments := make([]services.CandidateAssessment, 0, len(candidates))
	for _, candidate := range candidates {
		assessments = append(assessments, services.CandidateAssessment{
			ItemID:     candidate.ItemID,
			Confidence: m.ApproveAll,
			Reason:     "mock",
		})
	}
	return assessments, nil
}

// URLCacheMock presigns without caching.
type URLCacheMock struct {
	MockUrl string
	Err     error
}

func (m *URLCacheMock) GetReadURL(ctx context.Context, objectKey string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	if m.MockUrl != "" {
		return m.MockUrl, nil
	}
	return fmt.Sprintf("https://fakebucketurl.com/%s", objectKey), nil
}
