package model

import "time"

type MatchStatus string

const (
	MatchStatusPending          MatchStatus = "pending"
	MatchStatusChatting         MatchStatus = "chatting"
	MatchStatusMeetingScheduled MatchStatus = "meeting-scheduled"
	MatchStatusCompleted        MatchStatus = "completed"
	MatchStatusCancelled        MatchStatus = "cancelled"
)

var matchTransitions = map[MatchStatus][]MatchStatus{
	MatchStatusPending:          {MatchStatusChatting, MatchStatusMeetingScheduled, MatchStatusCompleted, MatchStatusCancelled},
	MatchStatusChatting:         {MatchStatusMeetingScheduled, MatchStatusCompleted, MatchStatusCancelled},
	MatchStatusMeetingScheduled: {MatchStatusMeetingScheduled, MatchStatusCompleted, MatchStatusCancelled},
}

// CanTransition reports whether a match may move from s to next.
// completed and cancelled are terminal.
func (s MatchStatus) CanTransition(next MatchStatus) bool {
	for _, v := range matchTransitions[s] {
		if v == next {
			return true
		}
	}
	return false
}

func (s MatchStatus) Terminal() bool {
	return s == MatchStatusCompleted || s == MatchStatusCancelled
}

// Match pairs a seller and a buyer around a listing or a need request.
// Exactly one of ListingID and RequestID is set.
type Match struct {
	ID              uint64         `gorm:"primaryKey;autoIncrement"`
	ListingID       *uint64        `gorm:"column:listing_id;index;uniqueIndex:uk_matches_listing_buyer"`
	RequestID       *uint64        `gorm:"column:request_id;index;uniqueIndex:uk_matches_request_seller"`
	SellerUID       string         `gorm:"column:seller_uid;size:128;index;not null;uniqueIndex:uk_matches_request_seller"`
	BuyerUID        string         `gorm:"column:buyer_uid;size:128;index;not null;uniqueIndex:uk_matches_listing_buyer"`
	Status          MatchStatus    `gorm:"column:status;size:32;index;not null"`
	MatchScore      int            `gorm:"column:match_score;not null;default:100"`
	MeetingLocation CampusLocation `gorm:"column:meeting_location;size:32"`
	MeetingTime     *time.Time     `gorm:"column:meeting_time"`
	CompletedAt     *time.Time     `gorm:"column:completed_at"`
	CreatedAt       time.Time      `gorm:"autoCreateTime"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime"`
}

func (Match) TableName() string {
	return "matches"
}

func (m *Match) HasParticipant(uid string) bool {
	return uid != "" && (m.SellerUID == uid || m.BuyerUID == uid)
}

// Counterpart returns the other participant, or "" when uid is not part of the match.
func (m *Match) Counterpart(uid string) string {
	switch uid {
	case m.SellerUID:
		return m.BuyerUID
	case m.BuyerUID:
		return m.SellerUID
	}
	return ""
}
