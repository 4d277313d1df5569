package repository

import (
	"context"

	"github.com/shinyyama/campus-exchange/internal/model"
	"gorm.io/gorm"
)

type MessageRepository interface {
	Create(ctx context.Context, m *model.Message) error
	ListByMatch(ctx context.Context, matchID uint64) ([]model.Message, error)
	SetDB(db *gorm.DB)
}

type messageRepository struct {
	dbRef
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	r := &messageRepository{}
	r.SetDB(db)
	return r
}

func (r *messageRepository) Create(ctx context.Context, m *model.Message) error {
	db := r.get()
	if db == nil {
		return ErrDBNotReady
	}
	return db.WithContext(ctx).Create(m).Error
}

func (r *messageRepository) ListByMatch(ctx context.Context, matchID uint64) ([]model.Message, error) {
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var list []model.Message
	if err := db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
