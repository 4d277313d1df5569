package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shinyyama/campus-exchange/internal/logging"
	"github.com/shinyyama/campus-exchange/internal/model"
	"github.com/shinyyama/campus-exchange/internal/repository"
	"gorm.io/gorm"
)

const maxReviewLen = 1000

// RatingInput holds the scores given by the rater. Sub-scores default to Overall.
type RatingInput struct {
	Overall       int
	Communication *int
	Accuracy      *int
	Punctuality   *int
	Review        *string
}

type RatingService interface {
	Create(ctx context.Context, matchID uint64, raterUID string, in RatingInput) (*model.Rating, error)
	ListForUser(ctx context.Context, ratedUID string, limit int) ([]model.Rating, error)
	ListForMatch(ctx context.Context, matchID uint64, uid string) ([]model.Rating, error)
}

type ratingService struct {
	ratings   repository.RatingRepository
	matches   repository.MatchRepository
	profiles  repository.ProfileRepository
	notifier  NotificationService
	moderator Moderator
	rec       Recorder
}

func NewRatingService(ratings repository.RatingRepository, matches repository.MatchRepository, profiles repository.ProfileRepository, notifier NotificationService, moderator Moderator, rec Recorder) RatingService {
	return &ratingService{
		ratings:   ratings,
		matches:   matches,
		profiles:  profiles,
		notifier:  notifier,
		moderator: moderator,
		rec:       orNopRecorder(rec),
	}
}

func (s *ratingService) Create(ctx context.Context, matchID uint64, raterUID string, in RatingInput) (*model.Rating, error) {
	m, err := participantMatch(ctx, s.matches, matchID, raterUID)
	if err != nil {
		return nil, err
	}
	if m.Status != model.MatchStatusCompleted {
		return nil, invalidf("only completed exchanges can be rated")
	}
	if !validScore(in.Overall) {
		return nil, invalidf("overall rating must be between 1 and 5")
	}
	rt := &model.Rating{
		MatchID:  matchID,
		RaterUID: raterUID,
		RatedUID: m.Counterpart(raterUID),
		Overall:  in.Overall,
	}
	for _, sub := range []struct {
		name string
		in   *int
		out  *int
	}{
		{"communication", in.Communication, &rt.Communication},
		{"accuracy", in.Accuracy, &rt.Accuracy},
		{"punctuality", in.Punctuality, &rt.Punctuality},
	} {
		*sub.out = in.Overall
		if sub.in != nil {
			if !validScore(*sub.in) {
				return nil, invalidf("%s rating must be between 1 and 5", sub.name)
			}
			*sub.out = *sub.in
		}
	}
	if review := trimOptional(in.Review); review != nil {
		if utf8.RuneCountInString(*review) > maxReviewLen {
			return nil, invalidf("review must be at most %d characters", maxReviewLen)
		}
		rt.Review = review
	}

	if _, err := s.ratings.FindByMatchRater(ctx, matchID, raterUID); err == nil {
		return nil, ErrAlreadyRated
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if rt.Review != nil && s.moderator != nil {
		flagged, reason, err := s.moderator.ModerateReview(ctx, *rt.Review)
		if err != nil {
			logging.FromContext(ctx).WithError(err).WithField("match_id", matchID).Warn("review moderation failed")
		} else if flagged {
			rt.IsFlagged = true
			rt.FlagReason = truncate(reason, 255)
		}
	}

	if err := s.ratings.CreateAndRecalc(ctx, rt); err != nil {
		if isDuplicate(err) {
			return nil, ErrAlreadyRated
		}
		return nil, err
	}
	s.rec.RatingCreated(rt.IsFlagged)

	s.notifier.Notify(ctx, rt.RatedUID, model.NotificationRatingReminder,
		"You received a rating!",
		fmt.Sprintf("%s rated your exchange", displayName(ctx, s.profiles, raterUID)),
		"/profile", uint64Ptr(matchID))
	return rt, nil
}

func (s *ratingService) ListForUser(ctx context.Context, ratedUID string, limit int) ([]model.Rating, error) {
	return s.ratings.ListByRated(ctx, ratedUID, limit)
}

func (s *ratingService) ListForMatch(ctx context.Context, matchID uint64, uid string) ([]model.Rating, error) {
	if _, err := participantMatch(ctx, s.matches, matchID, uid); err != nil {
		return nil, err
	}
	return s.ratings.ListByMatch(ctx, matchID)
}

func validScore(v int) bool {
	return v >= 1 && v <= 5
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
