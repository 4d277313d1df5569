package model

import "time"

type ListingStatus string

const (
	ListingStatusAvailable ListingStatus = "available"
	ListingStatusReserved  ListingStatus = "reserved"
	ListingStatusSold      ListingStatus = "sold"
)

func (s ListingStatus) Valid() bool {
	switch s {
	case ListingStatusAvailable, ListingStatusReserved, ListingStatusSold:
		return true
	}
	return false
}

type Listing struct {
	ID          uint64         `gorm:"primaryKey;autoIncrement"`
	SellerUID   string         `gorm:"column:seller_uid;size:128;index;not null"`
	Title       string         `gorm:"size:120;not null"`
	Description string         `gorm:"type:text;not null"`
	Price       uint           `gorm:"not null"`
	Category    Category       `gorm:"column:category;size:32;index;not null"`
	Location    CampusLocation `gorm:"column:location;size:32;not null"`
	Images      []string       `gorm:"column:images;type:text;serializer:json"`
	Status      ListingStatus  `gorm:"column:status;size:16;index;not null"`
	CreatedAt   time.Time      `gorm:"autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime"`
}

func (Listing) TableName() string {
	return "listings"
}
