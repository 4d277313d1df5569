package model

import "time"

type Rating struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement"`
	MatchID       uint64    `gorm:"column:match_id;not null;uniqueIndex:uk_ratings_match_rater"`
	RaterUID      string    `gorm:"column:rater_uid;size:128;not null;uniqueIndex:uk_ratings_match_rater"`
	RatedUID      string    `gorm:"column:rated_uid;size:128;not null;index"`
	Overall       int       `gorm:"column:overall_rating;not null"`
	Communication int       `gorm:"column:communication_rating;not null"`
	Accuracy      int       `gorm:"column:accuracy_rating;not null"`
	Punctuality   int       `gorm:"column:punctuality_rating;not null"`
	Review        *string   `gorm:"column:review;type:text"`
	IsFlagged     bool      `gorm:"column:is_flagged;not null;default:false"`
	FlagReason    string    `gorm:"column:flag_reason;size:255"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

func (Rating) TableName() string {
	return "ratings"
}
