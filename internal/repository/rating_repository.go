package repository

import (
	"context"
	"math"

	"github.com/shinyyama/campus-exchange/internal/model"
	"gorm.io/gorm"
)

type RatingRepository interface {
	// CreateAndRecalc stores the rating and refreshes the rated user's
	// trust score and rating count in the same transaction.
	CreateAndRecalc(ctx context.Context, rt *model.Rating) error
	FindByMatchRater(ctx context.Context, matchID uint64, raterUID string) (*model.Rating, error)
	ListByRated(ctx context.Context, ratedUID string, limit int) ([]model.Rating, error)
	ListByMatch(ctx context.Context, matchID uint64) ([]model.Rating, error)
	SetDB(db *gorm.DB)
}

type ratingRepository struct {
	dbRef
}

func NewRatingRepository(db *gorm.DB) RatingRepository {
	r := &ratingRepository{}
	r.SetDB(db)
	return r
}

type trustAggregate struct {
	Avg   float64
	Total int64
}

func (r *ratingRepository) CreateAndRecalc(ctx context.Context, rt *model.Rating) error {
	db := r.get()
	if db == nil {
		return ErrDBNotReady
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rt).Error; err != nil {
			return err
		}
		var agg trustAggregate
		if err := tx.Model(&model.Rating{}).
			Select("COALESCE(AVG(overall_rating), 0) AS avg, COUNT(*) AS total").
			Where("rated_uid = ? AND is_flagged = ?", rt.RatedUID, false).
			Scan(&agg).Error; err != nil {
			return err
		}
		return tx.Model(&model.Profile{}).
			Where("uid = ?", rt.RatedUID).
			Updates(map[string]interface{}{
				"trust_score":   math.Round(agg.Avg*100) / 100,
				"total_ratings": agg.Total,
			}).Error
	})
}

func (r *ratingRepository) FindByMatchRater(ctx context.Context, matchID uint64, raterUID string) (*model.Rating, error) {
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var rt model.Rating
	if err := db.WithContext(ctx).
		Where("match_id = ? AND rater_uid = ?", matchID, raterUID).
		First(&rt).Error; err != nil {
		return nil, err
	}
	return &rt, nil
}

func (r *ratingRepository) ListByRated(ctx context.Context, ratedUID string, limit int) ([]model.Rating, error) {
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var list []model.Rating
	if err := db.WithContext(ctx).
		Where("rated_uid = ?", ratedUID).
		Order("created_at DESC").
		Limit(clampLimit(limit)).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *ratingRepository) ListByMatch(ctx context.Context, matchID uint64) ([]model.Rating, error) {
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var list []model.Rating
	if err := db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("id ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
