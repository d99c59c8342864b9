package models

type UserAccount struct {
	JsonModel
	Name     string `json:"name"`
	Email    string `json:"email" gorm:"unique"`
	Banned   bool   `gorm:"default:false" json:"-"`
	LastIp   string `json:"-"`
	GoogleID string `json:"-"`
	Platform Platform `sql:"type:ENUM('ios', 'android', 'web')" json:"platform"`
	// user app image/avatar
	AvatarURL string `json:"avatar_url"`

	ReceiveNotifications bool `json:"receive_notifications"`
}

type UserPushToken struct {
	JsonModel
	UserAccountID uint
	UserAccount   UserAccount `json:"user_account"`
	Platform      Platform    `sql:"type:ENUM('ios', 'android', 'web')" json:"platform"`
	Token         string      `json:"token"`
	Active        bool        `gorm:"default:false" json:"-"`
}
