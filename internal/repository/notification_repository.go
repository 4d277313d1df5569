package repository

import (
	"context"

	"github.com/shinyyama/campus-exchange/internal/model"
	"gorm.io/gorm"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	FindByID(ctx context.Context, id uint64) (*model.Notification, error)
	ListByUser(ctx context.Context, userUID string, unreadOnly bool, limit int) ([]model.Notification, error)
	MarkRead(ctx context.Context, id uint64, userUID string) error
	MarkAllRead(ctx context.Context, userUID string) error
	CountUnread(ctx context.Context, userUID string) (int64, error)
	SetDB(db *gorm.DB)
}

type notificationRepository struct {
	dbRef
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	r := &notificationRepository{}
	r.SetDB(db)
	return r
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	db := r.get()
	if db == nil {
		return ErrDBNotReady
	}
	return db.WithContext(ctx).Create(n).Error
}

func (r *notificationRepository) FindByID(ctx context.Context, id uint64) (*model.Notification, error) {
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var n model.Notification
	if err := db.WithContext(ctx).First(&n, id).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userUID string, unreadOnly bool, limit int) ([]model.Notification, error) {
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var list []model.Notification
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	q := db.WithContext(ctx).Model(&model.Notification{}).Where("user_uid = ?", userUID)
	if unreadOnly {
		q = q.Where("read_at IS NULL")
	}
	if err := q.Order("created_at DESC").Limit(limit).Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id uint64, userUID string) error {
	db := r.get()
	if db == nil {
		return ErrDBNotReady
	}
	return db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("id = ? AND user_uid = ? AND read_at IS NULL", id, userUID).
		Update("read_at", db.NowFunc()).Error
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userUID string) error {
	db := r.get()
	if db == nil {
		return ErrDBNotReady
	}
	return db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("user_uid = ? AND read_at IS NULL", userUID).
		Update("read_at", db.NowFunc()).Error
}

func (r *notificationRepository) CountUnread(ctx context.Context, userUID string) (int64, error) {
	db := r.get()
	if db == nil {
		return 0, ErrDBNotReady
	}
	var cnt int64
	if err := db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("user_uid = ? AND read_at IS NULL", userUID).
		Count(&cnt).Error; err != nil {
		return 0, err
	}
	return cnt, nil
}
