package repository

import (
	"context"

	"github.com/shinyyama/campus-exchange/internal/model"
	"gorm.io/gorm"
)

type ProfileRepository interface {
	Create(ctx context.Context, p *model.Profile) error
	FindByUID(ctx context.Context, uid string) (*model.Profile, error)
	FindByEmail(ctx context.Context, email string) (*model.Profile, error)
	FindByUIDs(ctx context.Context, uids []string) ([]model.Profile, error)
	Update(ctx context.Context, p *model.Profile) error
	SetDB(db *gorm.DB)
}

type profileRepository struct {
	dbRef
}

func NewProfileRepository(db *gorm.DB) ProfileRepository {
	r := &profileRepository{}
	r.SetDB(db)
	return r
}

func (r *profileRepository) Create(ctx context.Context, p *model.Profile) error {
	db := r.get()
	if db == nil {
		return ErrDBNotReady
	}
	return db.WithContext(ctx).Create(p).Error
}

func (r *profileRepository) FindByUID(ctx context.Context, uid string) (*model.Profile, error) {
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var p model.Profile
	if err := db.WithContext(ctx).Where("uid = ?", uid).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *profileRepository) FindByEmail(ctx context.Context, email string) (*model.Profile, error) {
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var p model.Profile
	if err := db.WithContext(ctx).Where("email = ?", email).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *profileRepository) FindByUIDs(ctx context.Context, uids []string) ([]model.Profile, error) {
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	if len(uids) == 0 {
		return nil, nil
	}
	var list []model.Profile
	if err := db.WithContext(ctx).Where("uid IN ?", uids).Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// Update persists name and avatar only; reputation columns belong to the rating flow.
func (r *profileRepository) Update(ctx context.Context, p *model.Profile) error {
	db := r.get()
	if db == nil {
		return ErrDBNotReady
	}
	return db.WithContext(ctx).
		Model(&model.Profile{}).
		Where("uid = ?", p.UID).
		Updates(map[string]interface{}{
			"name":       p.Name,
			"avatar_url": p.AvatarURL,
		}).Error
}
