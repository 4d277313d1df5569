package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shinyyama/campus-exchange/internal/logging"
	"github.com/shinyyama/campus-exchange/internal/model"
	"github.com/shinyyama/campus-exchange/internal/repository"
)

const (
	DefaultRequestTTL = 7 * 24 * time.Hour
	expiryWarning     = 24 * time.Hour
	maxBudget         = 10_000_000
)

type NeedRequestInput struct {
	Title             string
	Description       string
	MaxBudget         int64
	Category          model.Category
	PreferredLocation model.CampusLocation
}

// SweepResult reports what one expiry sweep changed.
type SweepResult struct {
	Closed int64
	Warned int
}

type NeedRequestService interface {
	Create(ctx context.Context, requesterUID string, in NeedRequestInput) (*model.NeedRequest, error)
	Get(ctx context.Context, id uint64) (*model.NeedRequest, error)
	List(ctx context.Context, f repository.NeedRequestFilter) ([]model.NeedRequest, int64, error)
	ListMine(ctx context.Context, requesterUID string) ([]model.NeedRequest, error)
	Delete(ctx context.Context, id uint64, uid string) error
	Close(ctx context.Context, id uint64, uid string) (*model.NeedRequest, error)
	SweepExpired(ctx context.Context) (SweepResult, error)
}

type needRequestService struct {
	repo     repository.NeedRequestRepository
	profiles repository.ProfileRepository
	matches  repository.MatchRepository
	chat     ChatService
	notifier NotificationService
	ttl      time.Duration
	now      func() time.Time
}

// NewNeedRequestService builds the request service. chat may be nil, in which
// case matches cancelled with their request get no system message.
func NewNeedRequestService(repo repository.NeedRequestRepository, profiles repository.ProfileRepository, matches repository.MatchRepository, chat ChatService, notifier NotificationService, ttl time.Duration) NeedRequestService {
	if ttl <= 0 {
		ttl = DefaultRequestTTL
	}
	return &needRequestService{repo: repo, profiles: profiles, matches: matches, chat: chat, notifier: notifier, ttl: ttl, now: utcNow}
}

func (s *needRequestService) Create(ctx context.Context, requesterUID string, in NeedRequestInput) (*model.NeedRequest, error) {
	if err := requireProfile(ctx, s.profiles, requesterUID); err != nil {
		return nil, err
	}
	title, description, err := validateText(in.Title, in.Description)
	if err != nil {
		return nil, err
	}
	if in.MaxBudget < 0 || in.MaxBudget > maxBudget {
		return nil, invalidf("max budget must be between 0 and %d", maxBudget)
	}
	if !in.Category.Valid() {
		return nil, invalidf("unknown category %q", in.Category)
	}
	if !in.PreferredLocation.Valid() {
		return nil, invalidf("unknown location %q", in.PreferredLocation)
	}

	nr := &model.NeedRequest{
		RequesterUID:      requesterUID,
		Title:             title,
		Description:       description,
		MaxBudget:         uint(in.MaxBudget),
		Category:          in.Category,
		PreferredLocation: in.PreferredLocation,
		Status:            model.NeedStatusOpen,
		ExpiresAt:         s.now().Add(s.ttl),
	}
	if err := s.repo.Create(ctx, nr); err != nil {
		return nil, err
	}
	return nr, nil
}

func (s *needRequestService) Get(ctx context.Context, id uint64) (*model.NeedRequest, error) {
	nr, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err)
	}
	return nr, nil
}

// List defaults to open requests; the open view never shows expired ones.
func (s *needRequestService) List(ctx context.Context, f repository.NeedRequestFilter) ([]model.NeedRequest, int64, error) {
	if f.Status == "" {
		f.Status = model.NeedStatusOpen
	}
	if !f.Status.Valid() {
		return nil, 0, invalidf("unknown status %q", f.Status)
	}
	if f.Category != "" && !f.Category.Valid() {
		return nil, 0, invalidf("unknown category %q", f.Category)
	}
	if f.Status == model.NeedStatusOpen {
		now := s.now()
		f.ActiveAt = &now
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.repo.List(ctx, f)
}

func (s *needRequestService) ListMine(ctx context.Context, requesterUID string) ([]model.NeedRequest, error) {
	list, _, err := s.repo.List(ctx, repository.NeedRequestFilter{RequesterUID: requesterUID, Limit: 100})
	return list, err
}

func (s *needRequestService) Delete(ctx context.Context, id uint64, uid string) error {
	nr, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return lookupErr(err)
	}
	if nr.RequesterUID != uid {
		return ErrForbidden
	}
	if nr.Status == model.NeedStatusMatched {
		return ErrRequestUnavailable
	}
	if err := s.cancelMatches(ctx, id, "❌ This request was removed by its owner."); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// Close withdraws an open request and cancels the offers still pending on it.
// A request with a scheduled meetup stays until that match completes or is cancelled.
func (s *needRequestService) Close(ctx context.Context, id uint64, uid string) (*model.NeedRequest, error) {
	nr, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err)
	}
	if nr.RequesterUID != uid {
		return nil, ErrForbidden
	}
	switch nr.Status {
	case model.NeedStatusClosed:
		return nil, ErrInvalidTransition
	case model.NeedStatusMatched:
		return nil, ErrRequestUnavailable
	}
	n, err := s.repo.TransitionStatus(ctx, id, []model.NeedStatus{model.NeedStatusOpen}, model.NeedStatusClosed)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrRequestUnavailable
	}
	nr.Status = model.NeedStatusClosed
	if err := s.cancelMatches(ctx, id, "❌ This request was closed by its owner."); err != nil {
		return nil, err
	}
	return nr, nil
}

// SweepExpired closes open requests past their expiry, cancelling their
// offers, and warns requesters whose request expires within the next day.
// Each request is warned once, even with several instances sweeping.
func (s *needRequestService) SweepExpired(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	now := s.now()
	log := logging.FromContext(ctx)

	expired, err := s.repo.ListExpiredOpen(ctx, now)
	if err != nil {
		return res, fmt.Errorf("list expired: %w", err)
	}
	for _, nr := range expired {
		n, err := s.repo.TransitionStatus(ctx, nr.ID, []model.NeedStatus{model.NeedStatusOpen}, model.NeedStatusClosed)
		if err != nil {
			return res, fmt.Errorf("close expired: %w", err)
		}
		if n == 0 {
			continue
		}
		res.Closed++
		if err := s.cancelMatches(ctx, nr.ID, "❌ This request expired, so the exchange was closed."); err != nil {
			log.WithError(err).WithField("request_id", nr.ID).Warn("cancel matches of expired request")
		}
	}

	expiring, err := s.repo.ListExpiringUnwarned(ctx, now, now.Add(expiryWarning))
	if err != nil {
		return res, fmt.Errorf("list expiring: %w", err)
	}
	for _, nr := range expiring {
		claimed, err := s.repo.MarkExpiryNotified(ctx, nr.ID, now)
		if err != nil {
			log.WithError(err).WithField("request_id", nr.ID).Warn("mark expiry notified")
			continue
		}
		if !claimed {
			continue
		}
		s.notifier.Notify(ctx, nr.RequesterUID, model.NotificationRequestExpiring,
			"Request expiring soon",
			fmt.Sprintf("Your request \"%s\" expires in less than a day", nr.Title),
			"/requests", nil)
		res.Warned++
	}
	return res, nil
}

// cancelMatches ends every open match on the request and tells the offerer.
func (s *needRequestService) cancelMatches(ctx context.Context, requestID uint64, body string) error {
	open, err := s.matches.ListOpenByRequest(ctx, requestID)
	if err != nil {
		return err
	}
	for _, m := range open {
		n, err := s.matches.TransitionStatus(ctx, m.ID, []model.MatchStatus{m.Status}, model.MatchStatusCancelled)
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		if s.chat != nil {
			if err := s.chat.PostSystem(ctx, m.ID, body); err != nil {
				logging.FromContext(ctx).WithError(err).WithField("match_id", m.ID).Warn("system message not stored")
			}
		}
		s.notifier.Notify(ctx, m.SellerUID, model.NotificationMatch,
			"Exchange closed", body, matchLink(m.ID), uint64Ptr(m.ID))
	}
	return nil
}
