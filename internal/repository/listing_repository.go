package repository

import (
	"context"
	"strings"

	"github.com/shinyyama/campus-exchange/internal/model"
	"gorm.io/gorm"
)

type ListingFilter struct {
	Status    model.ListingStatus
	Category  model.Category
	SellerUID string
	Query     string
	Limit     int
	Offset    int
}

type ListingRepository interface {
	Create(ctx context.Context, l *model.Listing) error
	FindByID(ctx context.Context, id uint64) (*model.Listing, error)
	List(ctx context.Context, f ListingFilter) ([]model.Listing, int64, error)
	Update(ctx context.Context, l *model.Listing) error
	Delete(ctx context.Context, id uint64) error
	TransitionStatus(ctx context.Context, id uint64, from []model.ListingStatus, to model.ListingStatus) (int64, error)
	SetDB(db *gorm.DB)
}

type listingRepository struct {
	dbRef
}

func NewListingRepository(db *gorm.DB) ListingRepository {
	r := &listingRepository{}
	r.SetDB(db)
	return r
}

func (r *listingRepository) Create(ctx context.Context, l *model.Listing) error {
	db := r.get()
	if db == nil {
		return ErrDBNotReady
	}
	return db.WithContext(ctx).Create(l).Error
}

func (r *listingRepository) FindByID(ctx context.Context, id uint64) (*model.Listing, error) {
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var l model.Listing
	if err := db.WithContext(ctx).First(&l, id).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *listingRepository) List(ctx context.Context, f ListingFilter) ([]model.Listing, int64, error) {
	db := r.get()
	if db == nil {
		return nil, 0, ErrDBNotReady
	}
	q := db.WithContext(ctx).Model(&model.Listing{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.SellerUID != "" {
		q = q.Where("seller_uid = ?", f.SellerUID)
	}
	if s := strings.TrimSpace(f.Query); s != "" {
		like := "%" + s + "%"
		q = q.Where("(title LIKE ? OR description LIKE ?)", like, like)
	}

	q = q.Session(&gorm.Session{})

	var (
		list  []model.Listing
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

// Update writes the owner-editable fields. Status only moves through TransitionStatus.
func (r *listingRepository) Update(ctx context.Context, l *model.Listing) error {
	db := r.get()
	if db == nil {
		return ErrDBNotReady
	}
	return db.WithContext(ctx).
		Model(l).
		Select("title", "description", "price", "category", "location", "images").
		Updates(l).Error
}

func (r *listingRepository) Delete(ctx context.Context, id uint64) error {
	db := r.get()
	if db == nil {
		return ErrDBNotReady
	}
	return db.WithContext(ctx).Delete(&model.Listing{}, id).Error
}

// TransitionStatus moves the listing to `to` only when its current status is one of `from`.
// It returns the number of rows changed, 0 meaning someone else got there first.
func (r *listingRepository) TransitionStatus(ctx context.Context, id uint64, from []model.ListingStatus, to model.ListingStatus) (int64, error) {
	db := r.get()
	if db == nil {
		return 0, ErrDBNotReady
	}
	res := db.WithContext(ctx).
		Model(&model.Listing{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
