package model

import "time"

// User stores Telegram user metadata. Reminders are only delivered while
// NotificationsEnabled is set; it is the bot-side equivalent of a platform
// notification permission.
type User struct {
	ID                   uint  `gorm:"primaryKey"`
	TelegramID           int64 `gorm:"uniqueIndex"`
	FirstName            string
	LastName             string
	Username             string
	NotificationsEnabled bool `gorm:"default:true"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
