package model

import "time"

type NotificationType string

const (
	NotificationMatch           NotificationType = "match"
	NotificationMessage         NotificationType = "message"
	NotificationRatingReminder  NotificationType = "rating-reminder"
	NotificationRequestExpiring NotificationType = "request-expiring"
	NotificationSystem          NotificationType = "system"
)

type Notification struct {
	ID        uint64           `gorm:"primaryKey;autoIncrement"`
	UserUID   string           `gorm:"column:user_uid;size:128;index;not null"`
	Type      NotificationType `gorm:"column:type;size:64;not null"`
	Title     string           `gorm:"column:title;size:255"`
	Body      string           `gorm:"column:body;type:text"`
	Link      *string          `gorm:"column:link;size:255"`
	MatchID   *uint64          `gorm:"column:match_id;index"`
	ReadAt    *time.Time       `gorm:"column:read_at"`
	CreatedAt time.Time        `gorm:"autoCreateTime"`
}

func (Notification) TableName() string {
	return "notifications"
}

// All lists every persisted model, in migration order.
func All() []interface{} {
	return []interface{}{
		&Profile{},
		&Listing{},
		&NeedRequest{},
		&Match{},
		&Message{},
		&Rating{},
		&Notification{},
	}
}
