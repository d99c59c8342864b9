package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wardrobeapi/dbhelper"
	"wardrobeapi/models"
	"wardrobeapi/test"
)

func TestGoogleSignInCreatesUser(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, &test.EmbedderMock{}, &test.JudgeMock{}, &test.URLCacheMock{})

	reqBody := models.GoogleAuthSignIn{IdToken: "fake-token", Platform: "ios"}
	req := test.NewJSONRequest("POST", "/auth/google", reqBody)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "fake@example.com", response["email"])
	assert.Equal(t, true, response["new"])
	assert.NotEmpty(t, response["access_token"])
	assert.NotEmpty(t, response["refresh_token"])

	var user models.UserAccount
	result := db.Where("google_id = ?", "123googleid").First(&user)
	require.NoError(t, result.Error)
	assert.Equal(t, "fake@example.com", user.Email)
}

func TestGoogleSignInExistingUserNotNew(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, &test.EmbedderMock{}, &test.JudgeMock{}, &test.URLCacheMock{})
	test.FakeUserV2(db, "Existing", "fake@example.com")

	reqBody := models.GoogleAuthSignIn{IdToken: "fake-token", Platform: "android"}
	req := test.NewJSONRequest("POST", "/auth/google", reqBody)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, false, response["new"])
}

func TestGoogleSignInInvalidPlatform(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, &test.EmbedderMock{}, &test.JudgeMock{}, &test.URLCacheMock{})

	reqBody := models.GoogleAuthSignIn{IdToken: "fake-token", Platform: "playstation"}
	req := test.NewJSONRequest("POST", "/auth/google", reqBody)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMeRequiresAuth(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, &test.EmbedderMock{}, &test.JudgeMock{}, &test.URLCacheMock{})

	req := httptest.NewRequest("GET", "/auth/me", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeReturnsProfile(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, &test.EmbedderMock{}, &test.JudgeMock{}, &test.URLCacheMock{})
	user := test.FakeUser(db)

	req := test.NewAuthRequest("GET", "/auth/me", fmt.Sprint(user.ID))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, user.Email, response["email"])
}

func TestRegisterPushToken(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, &test.EmbedderMock{}, &test.JudgeMock{}, &test.URLCacheMock{})
	user := test.FakeUserV2(db, "Pushy", "push@example.com")

	reqBody := UserPushIn{Token: "device-token-123", Platform: "android"}
	req := test.NewJSONAuthRequest("POST", "/auth/register-push", fmt.Sprint(user.ID), reqBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var count int64
	db.Model(&models.UserPushToken{}).Where("user_account_id = ?", user.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}
