package repository

import (
	"context"

	"github.com/shinyyama/campus-exchange/internal/model"
	"gorm.io/gorm"
)

var openMatchStatuses = []model.MatchStatus{
	model.MatchStatusPending,
	model.MatchStatusChatting,
	model.MatchStatusMeetingScheduled,
}

type MatchRepository interface {
	Create(ctx context.Context, m *model.Match) error
	FindByID(ctx context.Context, id uint64) (*model.Match, error)
	FindByListingBuyer(ctx context.Context, listingID uint64, buyerUID string) (*model.Match, error)
	FindByRequestSeller(ctx context.Context, requestID uint64, sellerUID string) (*model.Match, error)
	ListByUser(ctx context.Context, uid string) ([]model.Match, error)
	ListOpenByListing(ctx context.Context, listingID uint64) ([]model.Match, error)
	ListOpenByRequest(ctx context.Context, requestID uint64) ([]model.Match, error)
	CountByListingStatus(ctx context.Context, listingID uint64, status model.MatchStatus) (int64, error)
	CountCompletedByUser(ctx context.Context, uid string) (int64, error)
	Update(ctx context.Context, m *model.Match) error
	TransitionStatus(ctx context.Context, id uint64, from []model.MatchStatus, to model.MatchStatus) (int64, error)
	SetDB(db *gorm.DB)
}

type matchRepository struct {
	dbRef
}

func NewMatchRepository(db *gorm.DB) MatchRepository {
	r := &matchRepository{}
	r.SetDB(db)
	return r
}

func (r *matchRepository) Create(ctx context.Context, m *model.Match) error {
	db := r.get()
	if db == nil {
		return ErrDBNotReady
	}
	return db.WithContext(ctx).Create(m).Error
}

func (r *matchRepository) FindByID(ctx context.Context, id uint64) (*model.Match, error) {
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var m model.Match
	if err := db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *matchRepository) FindByListingBuyer(ctx context.Context, listingID uint64, buyerUID string) (*model.Match, error) {
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var m model.Match
	if err := db.WithContext(ctx).
		Where("listing_id = ? AND buyer_uid = ?", listingID, buyerUID).
		First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *matchRepository) FindByRequestSeller(ctx context.Context, requestID uint64, sellerUID string) (*model.Match, error) {
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var m model.Match
	if err := db.WithContext(ctx).
		Where("request_id = ? AND seller_uid = ?", requestID, sellerUID).
		First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *matchRepository) ListByUser(ctx context.Context, uid string) ([]model.Match, error) {
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var list []model.Match
	if err := db.WithContext(ctx).
		Where("seller_uid = ? OR buyer_uid = ?", uid, uid).
		Order("created_at DESC").
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *matchRepository) ListOpenByListing(ctx context.Context, listingID uint64) ([]model.Match, error) {
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var list []model.Match
	if err := db.WithContext(ctx).
		Where("listing_id = ? AND status IN ?", listingID, openMatchStatuses).
		Order("id ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *matchRepository) ListOpenByRequest(ctx context.Context, requestID uint64) ([]model.Match, error) {
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var list []model.Match
	if err := db.WithContext(ctx).
		Where("request_id = ? AND status IN ?", requestID, openMatchStatuses).
		Order("id ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *matchRepository) CountByListingStatus(ctx context.Context, listingID uint64, status model.MatchStatus) (int64, error) {
	db := r.get()
	if db == nil {
		return 0, ErrDBNotReady
	}
	var cnt int64
	if err := db.WithContext(ctx).
		Model(&model.Match{}).
		Where("listing_id = ? AND status = ?", listingID, status).
		Count(&cnt).Error; err != nil {
		return 0, err
	}
	return cnt, nil
}

func (r *matchRepository) CountCompletedByUser(ctx context.Context, uid string) (int64, error) {
	db := r.get()
	if db == nil {
		return 0, ErrDBNotReady
	}
	var cnt int64
	if err := db.WithContext(ctx).
		Model(&model.Match{}).
		Where("(seller_uid = ? OR buyer_uid = ?) AND status = ?", uid, uid, model.MatchStatusCompleted).
		Count(&cnt).Error; err != nil {
		return 0, err
	}
	return cnt, nil
}

// Update writes the meetup fields. Status only moves through TransitionStatus.
func (r *matchRepository) Update(ctx context.Context, m *model.Match) error {
	db := r.get()
	if db == nil {
		return ErrDBNotReady
	}
	return db.WithContext(ctx).
		Model(m).
		Select("meeting_location", "meeting_time", "completed_at").
		Updates(m).Error
}

func (r *matchRepository) TransitionStatus(ctx context.Context, id uint64, from []model.MatchStatus, to model.MatchStatus) (int64, error) {
	db := r.get()
	if db == nil {
		return 0, ErrDBNotReady
	}
	res := db.WithContext(ctx).
		Model(&model.Match{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
