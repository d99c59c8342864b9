package services

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"gorm.io/gorm"

	"wardrobeapi/models"
)

// SendNotification pushes to all active device tokens of a user. Failures
// are logged only; a push is never worth failing the pipeline over.
func SendNotification(fbApp *firebase.App, db *gorm.DB, userId uint, title string, message string) {
	if fbApp == nil {
		return
	}
	client, err := fbApp.Messaging(context.Background())
	if err != nil {
		fmt.Println("Error initing FB client", err)
		fmt.Println("Abort push: ", title)
		return
	}
	var tokens []models.UserPushToken
	result := db.Model(models.UserPushToken{}).Where(
		"user_account_id = ? and active = true", userId,
	).Find(&tokens)
	if result.Error != nil {
		fmt.Println("Error fetching push tokens", result.Error)
		return
	}

	var messages []*messaging.Message
	for _, token := range tokens {
		messages = append(messages, &messaging.Message{
			Notification: &messaging.Notification{
				Title: title,
				Body:  message,
			},
			APNS: &messaging.APNSConfig{
				Payload: &messaging.APNSPayload{
					Aps: &messaging.Aps{
						ContentAvailable: true,
						Alert: &messaging.ApsAlert{
							Title: title,
							Body:  message,
						},
						Sound: "default",
					},
				},
			},
			Android: &messaging.AndroidConfig{
				Notification: &messaging.AndroidNotification{
					Priority:  messaging.AndroidNotificationPriority(messaging.PriorityMax),
					ChannelID: "wardrobe-high-priority",
				},
			},
			Token: token.Token,
		})
	}
	if len(messages) == 0 {
		return
	}
	br, err := client.SendEach(context.Background(), messages)
	if err != nil {
		fmt.Println("Error sending push notifications", err)
		return
	}
	if br.FailureCount > 0 {
		fmt.Println("Push fails: ", br.FailureCount)
	}
}
