package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shinyyama/campus-exchange/internal/logging"
	"github.com/shinyyama/campus-exchange/internal/model"
	"github.com/shinyyama/campus-exchange/internal/realtime"
	"github.com/shinyyama/campus-exchange/internal/repository"
	"gorm.io/gorm"
)

const defaultMatchScore = 100

// MatchView is a match with the listing or request it was made on.
type MatchView struct {
	Match   model.Match
	Listing *model.Listing
	Request *model.NeedRequest
}

type ScheduleInput struct {
	Location *model.CampusLocation
	Time     *time.Time
}

type MatchService interface {
	ExpressInterest(ctx context.Context, listingID uint64, buyerUID string) (*model.Match, error)
	OfferForRequest(ctx context.Context, requestID uint64, sellerUID string) (*model.Match, error)
	ListMine(ctx context.Context, uid string) ([]MatchView, error)
	Get(ctx context.Context, id uint64, uid string) (*MatchView, error)
	ScheduleMeeting(ctx context.Context, id uint64, uid string, in ScheduleInput) (*model.Match, error)
	Complete(ctx context.Context, id uint64, uid string) (*model.Match, error)
	Cancel(ctx context.Context, id uint64, uid string) (*model.Match, error)
}

type MatchDeps struct {
	Matches   repository.MatchRepository
	Listings  repository.ListingRepository
	Requests  repository.NeedRequestRepository
	Profiles  repository.ProfileRepository
	Chat      ChatService
	Notifier  NotificationService
	Publisher Publisher
	Recorder  Recorder
}

type matchService struct {
	matches  repository.MatchRepository
	listings repository.ListingRepository
	requests repository.NeedRequestRepository
	profiles repository.ProfileRepository
	chat     ChatService
	notifier NotificationService
	pub      Publisher
	rec      Recorder
	now      func() time.Time
}

func NewMatchService(d MatchDeps) MatchService {
	return &matchService{
		matches:  d.Matches,
		listings: d.Listings,
		requests: d.Requests,
		profiles: d.Profiles,
		chat:     d.Chat,
		notifier: d.Notifier,
		pub:      orNopPublisher(d.Publisher),
		rec:      orNopRecorder(d.Recorder),
		now:      utcNow,
	}
}

// ExpressInterest opens a match between a buyer and an available listing.
// A buyer gets one match per listing; repeating the call returns the existing
// match together with ErrAlreadyInterested.
func (s *matchService) ExpressInterest(ctx context.Context, listingID uint64, buyerUID string) (*model.Match, error) {
	if err := requireProfile(ctx, s.profiles, buyerUID); err != nil {
		return nil, err
	}
	l, err := s.listings.FindByID(ctx, listingID)
	if err != nil {
		return nil, lookupErr(err)
	}
	if l.SellerUID == buyerUID {
		return nil, invalidf("cannot express interest in your own listing")
	}
	if existing, err := s.matches.FindByListingBuyer(ctx, listingID, buyerUID); err == nil {
		return existing, ErrAlreadyInterested
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if l.Status != model.ListingStatusAvailable {
		return nil, ErrListingUnavailable
	}

	m := &model.Match{
		ListingID:       uint64Ptr(listingID),
		SellerUID:       l.SellerUID,
		BuyerUID:        buyerUID,
		Status:          model.MatchStatusPending,
		MatchScore:      defaultMatchScore,
		MeetingLocation: l.Location,
	}
	if err := s.matches.Create(ctx, m); err != nil {
		if isDuplicate(err) {
			if existing, ferr := s.matches.FindByListingBuyer(ctx, listingID, buyerUID); ferr == nil {
				return existing, ErrAlreadyInterested
			}
		}
		return nil, err
	}
	s.rec.MatchTransition(string(model.MatchStatusPending))

	s.notifier.Notify(ctx, l.SellerUID, model.NotificationMatch,
		"New Interest!",
		fmt.Sprintf("%s is interested in \"%s\"", displayName(ctx, s.profiles, buyerUID), l.Title),
		matchLink(m.ID), uint64Ptr(m.ID))
	return m, nil
}

// OfferForRequest opens a match between a seller and an open need request.
func (s *matchService) OfferForRequest(ctx context.Context, requestID uint64, sellerUID string) (*model.Match, error) {
	if err := requireProfile(ctx, s.profiles, sellerUID); err != nil {
		return nil, err
	}
	nr, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, lookupErr(err)
	}
	if nr.RequesterUID == sellerUID {
		return nil, invalidf("cannot offer on your own request")
	}
	if existing, err := s.matches.FindByRequestSeller(ctx, requestID, sellerUID); err == nil {
		return existing, ErrAlreadyOffered
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if nr.Status != model.NeedStatusOpen || nr.Expired(s.now()) {
		return nil, ErrRequestUnavailable
	}

	m := &model.Match{
		RequestID:       uint64Ptr(requestID),
		SellerUID:       sellerUID,
		BuyerUID:        nr.RequesterUID,
		Status:          model.MatchStatusPending,
		MatchScore:      defaultMatchScore,
		MeetingLocation: nr.PreferredLocation,
	}
	if err := s.matches.Create(ctx, m); err != nil {
		if isDuplicate(err) {
			if existing, ferr := s.matches.FindByRequestSeller(ctx, requestID, sellerUID); ferr == nil {
				return existing, ErrAlreadyOffered
			}
		}
		return nil, err
	}
	s.rec.MatchTransition(string(model.MatchStatusPending))

	s.notifier.Notify(ctx, nr.RequesterUID, model.NotificationMatch,
		"Someone has what you need!",
		fmt.Sprintf("%s might have \"%s\"", displayName(ctx, s.profiles, sellerUID), nr.Title),
		matchLink(m.ID), uint64Ptr(m.ID))
	return m, nil
}

func (s *matchService) ListMine(ctx context.Context, uid string) ([]MatchView, error) {
	list, err := s.matches.ListByUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	resp := make([]MatchView, 0, len(list))
	for _, m := range list {
		resp = append(resp, s.view(ctx, m))
	}
	return resp, nil
}

func (s *matchService) Get(ctx context.Context, id uint64, uid string) (*MatchView, error) {
	m, err := participantMatch(ctx, s.matches, id, uid)
	if err != nil {
		return nil, err
	}
	v := s.view(ctx, *m)
	return &v, nil
}

// view attaches the subject row; a deleted listing or request leaves it nil.
func (s *matchService) view(ctx context.Context, m model.Match) MatchView {
	v := MatchView{Match: m}
	if m.ListingID != nil {
		v.Listing, _ = s.listings.FindByID(ctx, *m.ListingID)
	}
	if m.RequestID != nil {
		v.Request, _ = s.requests.FindByID(ctx, *m.RequestID)
	}
	return v
}

// ScheduleMeeting proposes a meetup and reserves the listing (or marks the
// request matched) for this match. Calling it again while scheduled reschedules.
func (s *matchService) ScheduleMeeting(ctx context.Context, id uint64, uid string, in ScheduleInput) (*model.Match, error) {
	m, err := participantMatch(ctx, s.matches, id, uid)
	if err != nil {
		return nil, err
	}
	if !m.Status.CanTransition(model.MatchStatusMeetingScheduled) {
		return nil, ErrInvalidTransition
	}
	loc := m.MeetingLocation
	if in.Location != nil {
		loc = *in.Location
	}
	if !loc.Valid() {
		return nil, invalidf("unknown location %q", loc)
	}
	if in.Time != nil && !in.Time.After(s.now()) {
		return nil, invalidf("meeting time must be in the future")
	}

	if m.Status != model.MatchStatusMeetingScheduled {
		if err := s.reserve(ctx, m); err != nil {
			return nil, err
		}
		if err := s.transition(ctx, m, model.MatchStatusMeetingScheduled); err != nil {
			s.release(ctx, m)
			return nil, err
		}
	}
	m.MeetingLocation = loc
	if in.Time != nil {
		t := in.Time.UTC()
		m.MeetingTime = &t
	}
	if err := s.matches.Update(ctx, m); err != nil {
		return nil, err
	}

	name := displayName(ctx, s.profiles, uid)
	body := fmt.Sprintf("📍 Suggested meeting point: %s\n\n%s wants to schedule a meeting. Please confirm a date and time.", loc.Label(), name)
	if m.MeetingTime != nil {
		body += "\nProposed time: " + m.MeetingTime.Format(time.RFC1123)
	}
	s.systemMessage(ctx, m.ID, body)
	s.notifier.Notify(ctx, m.Counterpart(uid), model.NotificationMatch,
		"Meeting proposed",
		fmt.Sprintf("%s wants to meet at %s", name, loc.Label()),
		matchLink(m.ID), uint64Ptr(m.ID))
	s.publishUpdate(ctx, m.ID)
	return m, nil
}

// Complete closes the exchange: the listing is sold or the request closed,
// competing open matches on the same subject are cancelled, and both sides
// are reminded to rate each other.
func (s *matchService) Complete(ctx context.Context, id uint64, uid string) (*model.Match, error) {
	m, err := participantMatch(ctx, s.matches, id, uid)
	if err != nil {
		return nil, err
	}
	if !m.Status.CanTransition(model.MatchStatusCompleted) {
		return nil, ErrInvalidTransition
	}
	held := m.Status == model.MatchStatusMeetingScheduled

	if err := s.settle(ctx, m, held); err != nil {
		return nil, err
	}
	if err := s.transition(ctx, m, model.MatchStatusCompleted); err != nil {
		s.unsettle(ctx, m, held)
		return nil, err
	}
	now := s.now()
	m.CompletedAt = &now
	if err := s.matches.Update(ctx, m); err != nil {
		return nil, err
	}

	s.systemMessage(ctx, m.ID, "✅ Exchange marked as completed! Don't forget to rate each other.")
	s.cancelCompetitors(ctx, m)

	for _, p := range []string{m.SellerUID, m.BuyerUID} {
		other := m.Counterpart(p)
		s.notifier.Notify(ctx, p, model.NotificationRatingReminder,
			"Rate your exchange",
			fmt.Sprintf("How was your exchange with %s? Leave a rating.", displayName(ctx, s.profiles, other)),
			matchLink(m.ID), uint64Ptr(m.ID))
	}
	s.publishUpdate(ctx, m.ID)
	return m, nil
}

// Cancel ends a non-terminal match and gives back any reservation it held.
func (s *matchService) Cancel(ctx context.Context, id uint64, uid string) (*model.Match, error) {
	m, err := participantMatch(ctx, s.matches, id, uid)
	if err != nil {
		return nil, err
	}
	if !m.Status.CanTransition(model.MatchStatusCancelled) {
		return nil, ErrInvalidTransition
	}
	held := m.Status == model.MatchStatusMeetingScheduled
	if err := s.transition(ctx, m, model.MatchStatusCancelled); err != nil {
		return nil, err
	}
	if held {
		s.release(ctx, m)
	}

	name := displayName(ctx, s.profiles, uid)
	s.systemMessage(ctx, m.ID, fmt.Sprintf("❌ %s cancelled this exchange.", name))
	s.notifier.Notify(ctx, m.Counterpart(uid), model.NotificationMatch,
		"Exchange cancelled",
		fmt.Sprintf("%s cancelled the exchange", name),
		matchLink(m.ID), uint64Ptr(m.ID))
	s.publishUpdate(ctx, m.ID)
	return m, nil
}

func (s *matchService) transition(ctx context.Context, m *model.Match, next model.MatchStatus) error {
	n, err := s.matches.TransitionStatus(ctx, m.ID, []model.MatchStatus{m.Status}, next)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidTransition
	}
	m.Status = next
	s.rec.MatchTransition(string(next))
	return nil
}

// reserve claims the subject of m for a scheduled meetup.
func (s *matchService) reserve(ctx context.Context, m *model.Match) error {
	if m.ListingID != nil {
		n, err := s.listings.TransitionStatus(ctx, *m.ListingID,
			[]model.ListingStatus{model.ListingStatusAvailable}, model.ListingStatusReserved)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrListingUnavailable
		}
	}
	if m.RequestID != nil {
		nr, err := s.requests.FindByID(ctx, *m.RequestID)
		if err != nil {
			return lookupErr(err)
		}
		if nr.Expired(s.now()) {
			return ErrRequestUnavailable
		}
		n, err := s.requests.TransitionStatus(ctx, *m.RequestID,
			[]model.NeedStatus{model.NeedStatusOpen}, model.NeedStatusMatched)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrRequestUnavailable
		}
	}
	return nil
}

func (s *matchService) release(ctx context.Context, m *model.Match) {
	log := logging.FromContext(ctx).WithField("match_id", m.ID)
	if m.ListingID != nil {
		if _, err := s.listings.TransitionStatus(ctx, *m.ListingID,
			[]model.ListingStatus{model.ListingStatusReserved}, model.ListingStatusAvailable); err != nil {
			log.WithError(err).Warn("release listing")
		}
	}
	if m.RequestID != nil {
		if _, err := s.requests.TransitionStatus(ctx, *m.RequestID,
			[]model.NeedStatus{model.NeedStatusMatched}, model.NeedStatusOpen); err != nil {
			log.WithError(err).Warn("release request")
		}
	}
}

// settle marks the subject sold or closed. A match that did not hold the
// reservation may only settle a subject nobody else reserved.
func (s *matchService) settle(ctx context.Context, m *model.Match, held bool) error {
	if m.ListingID != nil {
		from := []model.ListingStatus{model.ListingStatusAvailable}
		if held {
			from = []model.ListingStatus{model.ListingStatusReserved}
		}
		n, err := s.listings.TransitionStatus(ctx, *m.ListingID, from, model.ListingStatusSold)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrListingUnavailable
		}
	}
	if m.RequestID != nil {
		from := []model.NeedStatus{model.NeedStatusOpen}
		if held {
			from = []model.NeedStatus{model.NeedStatusMatched}
		}
		n, err := s.requests.TransitionStatus(ctx, *m.RequestID, from, model.NeedStatusClosed)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrRequestUnavailable
		}
	}
	return nil
}

func (s *matchService) unsettle(ctx context.Context, m *model.Match, held bool) {
	log := logging.FromContext(ctx).WithField("match_id", m.ID)
	if m.ListingID != nil {
		to := model.ListingStatusAvailable
		if held {
			to = model.ListingStatusReserved
		}
		if _, err := s.listings.TransitionStatus(ctx, *m.ListingID, []model.ListingStatus{model.ListingStatusSold}, to); err != nil {
			log.WithError(err).Warn("revert listing")
		}
	}
	if m.RequestID != nil {
		to := model.NeedStatusOpen
		if held {
			to = model.NeedStatusMatched
		}
		if _, err := s.requests.TransitionStatus(ctx, *m.RequestID, []model.NeedStatus{model.NeedStatusClosed}, to); err != nil {
			log.WithError(err).Warn("revert request")
		}
	}
}

// cancelCompetitors closes the other open matches on the same listing or request.
func (s *matchService) cancelCompetitors(ctx context.Context, winner *model.Match) {
	log := logging.FromContext(ctx).WithField("match_id", winner.ID)
	var (
		others []model.Match
		err    error
	)
	switch {
	case winner.ListingID != nil:
		others, err = s.matches.ListOpenByListing(ctx, *winner.ListingID)
	case winner.RequestID != nil:
		others, err = s.matches.ListOpenByRequest(ctx, *winner.RequestID)
	}
	if err != nil {
		log.WithError(err).Warn("list competing matches")
		return
	}
	for _, o := range others {
		if o.ID == winner.ID {
			continue
		}
		n, err := s.matches.TransitionStatus(ctx, o.ID, []model.MatchStatus{o.Status}, model.MatchStatusCancelled)
		if err != nil {
			log.WithError(err).WithField("competitor_id", o.ID).Warn("cancel competing match")
			continue
		}
		if n == 0 {
			continue
		}
		s.rec.MatchTransition(string(model.MatchStatusCancelled))
		s.systemMessage(ctx, o.ID, "❌ This exchange was closed because it was completed with someone else.")

		loser := o.BuyerUID
		if winner.RequestID != nil {
			loser = o.SellerUID
		}
		s.notifier.Notify(ctx, loser, model.NotificationMatch,
			"Exchange closed",
			"This exchange was completed with someone else.",
			matchLink(o.ID), uint64Ptr(o.ID))
		s.publishUpdate(ctx, o.ID)
	}
}

func (s *matchService) systemMessage(ctx context.Context, matchID uint64, body string) {
	if err := s.chat.PostSystem(ctx, matchID, body); err != nil {
		logging.FromContext(ctx).WithError(err).WithField("match_id", matchID).Warn("system message not stored")
	}
}

func (s *matchService) publishUpdate(ctx context.Context, matchID uint64) {
	s.pub.Publish(ctx, realtime.MatchTopic(matchID), realtime.Change(realtime.EventUpdate, "matches", matchID))
}
