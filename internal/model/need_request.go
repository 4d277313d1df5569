package model

import "time"

type NeedStatus string

const (
	NeedStatusOpen    NeedStatus = "open"
	NeedStatusMatched NeedStatus = "matched"
	NeedStatusClosed  NeedStatus = "closed"
)

func (s NeedStatus) Valid() bool {
	switch s {
	case NeedStatusOpen, NeedStatusMatched, NeedStatusClosed:
		return true
	}
	return false
}

// NeedRequest is a want-ad: a student looking for an item.
type NeedRequest struct {
	ID                uint64         `gorm:"primaryKey;autoIncrement"`
	RequesterUID      string         `gorm:"column:requester_uid;size:128;index;not null"`
	Title             string         `gorm:"size:120;not null"`
	Description       string         `gorm:"type:text;not null"`
	MaxBudget         uint           `gorm:"column:max_budget;not null"`
	Category          Category       `gorm:"column:category;size:32;index;not null"`
	PreferredLocation CampusLocation `gorm:"column:preferred_location;size:32;not null"`
	Status            NeedStatus     `gorm:"column:status;size:16;index;not null"`
	ExpiresAt         time.Time      `gorm:"column:expires_at;index;not null"`
	ExpiryNotifiedAt  *time.Time     `gorm:"column:expiry_notified_at"`
	CreatedAt         time.Time      `gorm:"autoCreateTime"`
	UpdatedAt         time.Time      `gorm:"autoUpdateTime"`
}

func (NeedRequest) TableName() string {
	return "need_requests"
}

func (r *NeedRequest) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}
