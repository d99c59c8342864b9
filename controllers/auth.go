package controllers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"

	firebase "firebase.google.com/go/v4"
	"github.com/getsentry/sentry-go"
	"github.com/golang-jwt/jwt/v4"
	echojwt "github.com/labstack/echo-jwt"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"wardrobeapi/models"
	"wardrobeapi/services"
)

type UserSettingsIn struct {
	ReceiveNotifications bool `json:"receive_notifications"`
}

type UserPushIn struct {
	Token    string `json:"token" validate:"required,max=500"`
	Platform string `json:"platform" validate:"required,platform"`
}

type AuthController struct {
	Google      services.GoogleServiceProvider
	FirebaseApp *firebase.App
}

func (m *AuthController) AuthRoutes(g *echo.Group) {
	g.POST("/google", func(c echo.Context) (err error) {
		googleCreds := new(models.GoogleAuthSignIn)
		if err := c.Bind(googleCreds); err != nil {
			return err
		}
		if !models.ValidatePlatformRaw(googleCreds.Platform) {
			return c.JSON(http.StatusForbidden, map[string]interface{}{"message": "Please provide proper platform parameter"})
		}
		if err = c.Validate(googleCreds); err != nil {
			return err
		}

		payload, err := m.Google.ValidateIdToken(context.Background(), googleCreds.IdToken, os.Getenv("GOOGLE_CLIENT_ID"))
		if err != nil {
			fmt.Println(err)
			return c.JSON(http.StatusForbidden, map[string]interface{}{"message": "Couldn't verify credentials"})
		}
		sub, ok := payload.Claims["sub"]
		if !ok {
			sentry.CaptureMessage(fmt.Sprintf("Error when fetching user data %s", payload.Claims))
			return c.JSON(http.StatusForbidden, map[string]interface{}{"message": "Couldn't verify credentials"})
		}
		googleId := sub.(string)

		googleEmail, ok := payload.Claims["email"]
		if !ok {
			sentry.CaptureMessage(fmt.Sprintf("Error when fetching user data email %s", payload.Claims))
			return c.JSON(http.StatusForbidden, map[string]interface{}{"message": "Couldn't verify credentials"})
		}
		pictureUrl, _ := payload.Claims["picture"].(string)
		googleName, _ := payload.Claims["name"].(string)

		db := c.Get("__db").(*gorm.DB)
		var user *models.UserAccount
		r := db.Where("google_id = ? or email = ?", googleId, googleEmail).Limit(1).Find(&user)
		if r.Error != nil {
			return c.JSON(http.StatusInternalServerError, map[string]interface{}{"message": "Internal server error"})
		}
		isNew := r.RowsAffected == 0
		if isNew {
			user = &models.UserAccount{
				Name:      googleName,
				Email:     googleEmail.(string),
				GoogleID:  googleId,
				Platform:  models.ScanPlatform(googleCreds.Platform),
				LastIp:    c.RealIP(),
				AvatarURL: pictureUrl,
			}
			if err := db.Create(&user).Error; err != nil {
				sentry.CaptureException(err)
				return c.JSON(http.StatusInternalServerError, map[string]interface{}{"message": "Internal server error"})
			}
			fmt.Println("New user signed up: ", user.Email)
		} else {
			if user.Banned {
				return echo.ErrForbidden
			}
			user.GoogleID = googleId
			user.AvatarURL = pictureUrl
			if googleName != "" {
				user.Name = googleName
			}
			user.LastIp = c.RealIP()
			user.Platform = models.ScanPlatform(googleCreds.Platform)
			db.Save(&user)
		}

		refreshToken, err := GenerateRefreshToken(fmt.Sprint(user.ID))
		if err != nil {
			fmt.Println(err)
			return echo.ErrInternalServerError
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"id":            user.ID,
			"name":          user.Name,
			"email":         user.Email,
			"new":           isNew,
			"avatar":        user.AvatarURL,
			"access_token":  GenerateUserToken(fmt.Sprint(user.ID), c, 72),
			"refresh_token": refreshToken,
		})
	})

	g.POST("/refresh-token", func(c echo.Context) error {
		type tokenReqBody struct {
			RefreshToken string `json:"refresh_token"`
		}
		tokenReq := new(tokenReqBody)
		if err := c.Bind(&tokenReq); err != nil {
			fmt.Println(err)
			return echo.ErrBadRequest
		}
		if tokenReq.RefreshToken == "" {
			fmt.Println("Refresh token is empty")
			return echo.ErrBadRequest
		}
		token, err := jwt.Parse(tokenReq.RefreshToken, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("Unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(os.Getenv("JWT_SECRET")), nil
		})
		if err != nil {
			fmt.Println(err)
			return echo.ErrBadRequest
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok || !token.Valid {
			return echo.ErrBadRequest
		}

		db := c.Get("__db").(*gorm.DB)
		data, converted := claims["sub"].(string)
		if !converted {
			fmt.Println("Cannot convert sub to string!")
			return echo.ErrInternalServerError
		}
		userId, err := strconv.Atoi(data)
		if err != nil {
			fmt.Println("Error parsing sub of the user!!", err)
			return echo.ErrInternalServerError
		}
		if userId < 1 {
			return echo.ErrBadRequest
		}
		var user *models.UserAccount
		result := db.First(&user, userId)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			fmt.Println("Requested user not found!", userId)
			return echo.ErrForbidden
		}
		if result.Error != nil {
			fmt.Println("Error getting user while refreshing token", userId)
			return echo.ErrInternalServerError
		}
		if user.Banned {
			return echo.ErrUnauthorized
		}

		t := GenerateUserToken(fmt.Sprint(userId), c, 72)
		rt, err := GenerateRefreshToken(fmt.Sprint(userId))
		if err != nil {
			fmt.Println("Error refreshing token ", err)
			return echo.ErrInternalServerError
		}
		return c.JSON(http.StatusOK, echo.Map{
			"access_token":  t,
			"refresh_token": rt,
		})
	})

	g.GET("/me", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		return c.JSON(http.StatusOK, echo.Map{
			"id":                    user.ID,
			"name":                  user.Name,
			"email":                 user.Email,
			"avatar":                user.AvatarURL,
			"receive_notifications": user.ReceiveNotifications,
		})
	}, echojwt.JWT([]byte(os.Getenv("JWT_SECRET"))), UserMiddleware)

	g.POST("/settings", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)
		settingsIn := new(UserSettingsIn)
		if err := c.Bind(settingsIn); err != nil {
			return err
		}
		user.ReceiveNotifications = settingsIn.ReceiveNotifications
		db.Save(&user)
		return c.JSON(http.StatusOK, settingsIn)
	}, echojwt.JWT([]byte(os.Getenv("JWT_SECRET"))), UserMiddleware)

	g.POST("/register-push", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)
		tokenRequest := new(UserPushIn)
		if err := c.Bind(tokenRequest); err != nil {
			return err
		}
		if !models.ValidatePlatformRaw(tokenRequest.Platform) {
			return c.JSON(http.StatusForbidden, map[string]interface{}{"message": "Please provide proper platform parameter"})
		}
		pushData := models.UserPushToken{
			Platform:      models.ScanPlatform(tokenRequest.Platform),
			Token:         tokenRequest.Token,
			UserAccountID: user.ID,
			Active:        true,
		}

		// same token/device can sign in to diff accs and still receive pushes
		result := db.Where("token = ? and user_account_id = ?", tokenRequest.Token, user.ID).FirstOrCreate(&pushData)
		if result.Error != nil {
			log.Println(result.Error)
			return echo.ErrInternalServerError
		}
		return c.JSON(http.StatusOK, echo.Map{
			"message": "registered",
			"push_id": pushData.ID,
		})
	}, echojwt.JWT([]byte(os.Getenv("JWT_SECRET"))), UserMiddleware)

	g.POST("/delete-push", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)
		tokenRequest := new(UserPushIn)
		if err := c.Bind(tokenRequest); err != nil {
			return err
		}
		result := db.Where("token = ? and user_account_id = ?", tokenRequest.Token, user.ID).Delete(&models.UserPushToken{})
		if result.Error != nil {
			log.Println(result.Error)
			return echo.ErrInternalServerError
		}
		return c.JSON(http.StatusOK, echo.Map{
			"message": "deleted",
			"deleted": result.RowsAffected > 0,
		})
	}, echojwt.JWT([]byte(os.Getenv("JWT_SECRET"))), UserMiddleware)
}
