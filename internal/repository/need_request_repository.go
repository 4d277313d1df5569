package repository

import (
	"context"
	"time"

	"github.com/shinyyama/campus-exchange/internal/model"
	"gorm.io/gorm"
)

type NeedRequestFilter struct {
	Status       model.NeedStatus
	Category     model.Category
	RequesterUID string
	// ActiveAt hides requests that expired at or before this instant.
	ActiveAt *time.Time
	Limit    int
	Offset   int
}

type NeedRequestRepository interface {
	Create(ctx context.Context, r *model.NeedRequest) error
	FindByID(ctx context.Context, id uint64) (*model.NeedRequest, error)
	List(ctx context.Context, f NeedRequestFilter) ([]model.NeedRequest, int64, error)
	Delete(ctx context.Context, id uint64) error
	TransitionStatus(ctx context.Context, id uint64, from []model.NeedStatus, to model.NeedStatus) (int64, error)
	ListExpiredOpen(ctx context.Context, now time.Time) ([]model.NeedRequest, error)
	ListExpiringUnwarned(ctx context.Context, now, until time.Time) ([]model.NeedRequest, error)
	MarkExpiryNotified(ctx context.Context, id uint64, at time.Time) (bool, error)
	SetDB(db *gorm.DB)
}

type needRequestRepository struct {
	dbRef
}

func NewNeedRequestRepository(db *gorm.DB) NeedRequestRepository {
	r := &needRequestRepository{}
	r.SetDB(db)
	return r
}

func (r *needRequestRepository) Create(ctx context.Context, nr *model.NeedRequest) error {
	db := r.get()
	if db == nil {
		return ErrDBNotReady
	}
	return db.WithContext(ctx).Create(nr).Error
}

func (r *needRequestRepository) FindByID(ctx context.Context, id uint64) (*model.NeedRequest, error) {
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var nr model.NeedRequest
	if err := db.WithContext(ctx).First(&nr, id).Error; err != nil {
		return nil, err
	}
	return &nr, nil
}

func (r *needRequestRepository) List(ctx context.Context, f NeedRequestFilter) ([]model.NeedRequest, int64, error) {
	db := r.get()
	if db == nil {
		return nil, 0, ErrDBNotReady
	}
	q := db.WithContext(ctx).Model(&model.NeedRequest{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.RequesterUID != "" {
		q = q.Where("requester_uid = ?", f.RequesterUID)
	}
	if f.ActiveAt != nil {
		q = q.Where("expires_at > ?", *f.ActiveAt)
	}

	q = q.Session(&gorm.Session{})

	var (
		list  []model.NeedRequest
		total int64
	)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := q.
		Order("created_at DESC").
		Order("id DESC").
		Limit(clampLimit(f.Limit)).
		Offset(f.Offset).
		Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *needRequestRepository) Delete(ctx context.Context, id uint64) error {
	db := r.get()
	if db == nil {
		return ErrDBNotReady
	}
	return db.WithContext(ctx).Delete(&model.NeedRequest{}, id).Error
}

func (r *needRequestRepository) TransitionStatus(ctx context.Context, id uint64, from []model.NeedStatus, to model.NeedStatus) (int64, error) {
	db := r.get()
	if db == nil {
		return 0, ErrDBNotReady
	}
	res := db.WithContext(ctx).
		Model(&model.NeedRequest{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// ListExpiredOpen returns open requests whose expiry is at or before now.
func (r *needRequestRepository) ListExpiredOpen(ctx context.Context, now time.Time) ([]model.NeedRequest, error) {
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var list []model.NeedRequest
	if err := db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", model.NeedStatusOpen, now).
		Order("expires_at ASC").
		Limit(maxLimit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *needRequestRepository) ListExpiringUnwarned(ctx context.Context, now, until time.Time) ([]model.NeedRequest, error) {
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var list []model.NeedRequest
	if err := db.WithContext(ctx).
		Where("status = ? AND expiry_notified_at IS NULL AND expires_at > ? AND expires_at <= ?", model.NeedStatusOpen, now, until).
		Order("expires_at ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// MarkExpiryNotified stamps the warning time unless another sweep already did.
// It reports whether this call claimed the warning.
func (r *needRequestRepository) MarkExpiryNotified(ctx context.Context, id uint64, at time.Time) (bool, error) {
	db := r.get()
	if db == nil {
		return false, ErrDBNotReady
	}
	res := db.WithContext(ctx).
		Model(&model.NeedRequest{}).
		Where("id = ? AND expiry_notified_at IS NULL", id).
		Update("expiry_notified_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
