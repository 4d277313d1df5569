package model

import (
	"strings"
	"time"
)

type Badge string

const (
	BadgeNew       Badge = "new"
	BadgeTrusted   Badge = "trusted"
	BadgeTopSeller Badge = "top-seller"
)

type Profile struct {
	UID           string    `gorm:"column:uid;primaryKey;size:128"`
	Email         string    `gorm:"column:email;size:255;not null;uniqueIndex:uk_profiles_email"`
	Name          string    `gorm:"column:name;size:120;not null"`
	AvatarURL     *string   `gorm:"column:avatar_url;size:512"`
	CollegeDomain string    `gorm:"column:college_domain;size:255;not null;index"`
	TrustScore    float64   `gorm:"column:trust_score;not null;default:0"`
	TotalRatings  int       `gorm:"column:total_ratings;not null;default:0"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (Profile) TableName() string {
	return "profiles"
}

// Badge derives the reputation badge from the received ratings.
func (p *Profile) Badge() Badge {
	return BadgeFor(p.TrustScore, p.TotalRatings)
}

// College is the short college name taken from the email domain.
func (p *Profile) College() string {
	return CollegeName(p.Email)
}

func BadgeFor(trustScore float64, totalRatings int) Badge {
	if totalRatings >= 25 && trustScore >= 4.5 {
		return BadgeTopSeller
	}
	if totalRatings >= 10 && trustScore >= 4.0 {
		return BadgeTrusted
	}
	return BadgeNew
}

func CollegeName(email string) string {
	_, domain, ok := strings.Cut(email, "@")
	if !ok {
		return "University"
	}
	parts := strings.Split(domain, ".")
	if len(parts) >= 2 && parts[0] != "" {
		return strings.ToUpper(parts[0])
	}
	return "University"
}
