package model

import "time"

type Message struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	MatchID   uint64    `gorm:"column:match_id;index;not null"`
	SenderUID string    `gorm:"column:sender_uid;size:128;index"`
	Body      string    `gorm:"type:text;not null"`
	IsSystem  bool      `gorm:"column:is_system;not null;default:false"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Message) TableName() string {
	return "messages"
}
