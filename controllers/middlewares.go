package controllers

import (
	"log"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"wardrobeapi/models"
)

func UserMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		db := c.Get("__db").(*gorm.DB)
		userRaw := c.Get("user")
		if userRaw == nil {
			return echo.ErrUnauthorized
		}
		user := userRaw.(*jwt.Token)
		claims := user.Claims.(jwt.MapClaims)
		userId := claims["sub"]
		if userId == nil || userId == "" {
			log.Println("Error while getting the token information!")
			return echo.ErrUnauthorized
		}

		var currentUser models.UserAccount
		result := db.First(&currentUser, "id = ?", userId)
		if result.Error != nil || currentUser.ID == 0 {
			return echo.ErrUnauthorized
		}
		if currentUser.Banned {
			return echo.ErrForbidden
		}

		c.Set("currentUser", currentUser)
		return next(c)
	}
}
