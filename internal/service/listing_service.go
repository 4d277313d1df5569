package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/shinyyama/campus-exchange/internal/model"
	"github.com/shinyyama/campus-exchange/internal/repository"
	"gorm.io/gorm"
)

const (
	maxTitleLen       = 120
	maxDescriptionLen = 4000
	maxListingImages  = 5
	maxListingPrice   = 10_000_000
	maxImageURLLen    = 1024
)

type ListingInput struct {
	Title       string
	Description string
	Price       int64
	Category    model.Category
	Location    model.CampusLocation
	Images      []string
}

// ListingPatch carries the fields an owner wants to change; nil means unchanged.
type ListingPatch struct {
	Title       *string
	Description *string
	Price       *int64
	Category    *model.Category
	Location    *model.CampusLocation
	Images      *[]string
	Status      *model.ListingStatus
}

type ListingService interface {
	Create(ctx context.Context, sellerUID string, in ListingInput) (*model.Listing, error)
	Get(ctx context.Context, id uint64) (*model.Listing, error)
	List(ctx context.Context, f repository.ListingFilter) ([]model.Listing, int64, error)
	ListMine(ctx context.Context, sellerUID string) ([]model.Listing, error)
	Update(ctx context.Context, id uint64, uid string, patch ListingPatch) (*model.Listing, error)
	Delete(ctx context.Context, id uint64, uid string) error
}

type listingService struct {
	repo     repository.ListingRepository
	profiles repository.ProfileRepository
	matches  repository.MatchRepository
	rec      Recorder
}

func NewListingService(repo repository.ListingRepository, profiles repository.ProfileRepository, matches repository.MatchRepository, rec Recorder) ListingService {
	return &listingService{repo: repo, profiles: profiles, matches: matches, rec: orNopRecorder(rec)}
}

func (s *listingService) Create(ctx context.Context, sellerUID string, in ListingInput) (*model.Listing, error) {
	if err := requireProfile(ctx, s.profiles, sellerUID); err != nil {
		return nil, err
	}
	title, description, err := validateText(in.Title, in.Description)
	if err != nil {
		return nil, err
	}
	if in.Price < 0 || in.Price > maxListingPrice {
		return nil, invalidf("price must be between 0 and %d", maxListingPrice)
	}
	if !in.Category.Valid() {
		return nil, invalidf("unknown category %q", in.Category)
	}
	if !in.Location.Valid() {
		return nil, invalidf("unknown location %q", in.Location)
	}
	images, err := validateImages(in.Images)
	if err != nil {
		return nil, err
	}

	l := &model.Listing{
		SellerUID:   sellerUID,
		Title:       title,
		Description: description,
		Price:       uint(in.Price),
		Category:    in.Category,
		Location:    in.Location,
		Images:      images,
		Status:      model.ListingStatusAvailable,
	}
	if err := s.repo.Create(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *listingService) Get(ctx context.Context, id uint64) (*model.Listing, error) {
	l, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err)
	}
	return l, nil
}

func (s *listingService) List(ctx context.Context, f repository.ListingFilter) ([]model.Listing, int64, error) {
	if f.Category != "" && !f.Category.Valid() {
		return nil, 0, invalidf("unknown category %q", f.Category)
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, invalidf("unknown status %q", f.Status)
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.repo.List(ctx, f)
}

func (s *listingService) ListMine(ctx context.Context, sellerUID string) ([]model.Listing, error) {
	list, _, err := s.repo.List(ctx, repository.ListingFilter{SellerUID: sellerUID, Limit: 100})
	return list, err
}

func (s *listingService) Update(ctx context.Context, id uint64, uid string, patch ListingPatch) (*model.Listing, error) {
	l, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err)
	}
	if l.SellerUID != uid {
		return nil, ErrForbidden
	}

	title, description := l.Title, l.Description
	if patch.Title != nil {
		title = *patch.Title
	}
	if patch.Description != nil {
		description = *patch.Description
	}
	if l.Title, l.Description, err = validateText(title, description); err != nil {
		return nil, err
	}
	if patch.Price != nil {
		if *patch.Price < 0 || *patch.Price > maxListingPrice {
			return nil, invalidf("price must be between 0 and %d", maxListingPrice)
		}
		l.Price = uint(*patch.Price)
	}
	if patch.Category != nil {
		if !patch.Category.Valid() {
			return nil, invalidf("unknown category %q", *patch.Category)
		}
		l.Category = *patch.Category
	}
	if patch.Location != nil {
		if !patch.Location.Valid() {
			return nil, invalidf("unknown location %q", *patch.Location)
		}
		l.Location = *patch.Location
	}
	if patch.Images != nil {
		images, err := validateImages(*patch.Images)
		if err != nil {
			return nil, err
		}
		l.Images = images
	}
	if patch.Status != nil && *patch.Status != l.Status {
		if err := s.checkManualStatus(ctx, l, *patch.Status); err != nil {
			return nil, err
		}
		n, err := s.repo.TransitionStatus(ctx, id, []model.ListingStatus{l.Status}, *patch.Status)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, ErrListingUnavailable
		}
		l.Status = *patch.Status
	}
	if err := s.repo.Update(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// checkManualStatus allows owners to flip a listing between available and
// sold while nobody has an open match on it. reserved belongs to meetups.
func (s *listingService) checkManualStatus(ctx context.Context, l *model.Listing, next model.ListingStatus) error {
	if !next.Valid() {
		return invalidf("unknown status %q", next)
	}
	if next == model.ListingStatusReserved {
		return invalidf("status can only be set to available or sold")
	}
	if l.Status == model.ListingStatusReserved {
		return ErrListingUnavailable
	}
	open, err := s.matches.ListOpenByListing(ctx, l.ID)
	if err != nil {
		return err
	}
	if len(open) > 0 {
		return ErrListingUnavailable
	}
	return nil
}

// Delete removes an owned listing and cancels the matches still open on it.
// A listing with a scheduled meetup cannot be deleted.
func (s *listingService) Delete(ctx context.Context, id uint64, uid string) error {
	l, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return lookupErr(err)
	}
	if l.SellerUID != uid {
		return ErrForbidden
	}
	scheduled, err := s.matches.CountByListingStatus(ctx, id, model.MatchStatusMeetingScheduled)
	if err != nil {
		return err
	}
	if scheduled > 0 {
		return ErrListingUnavailable
	}
	open, err := s.matches.ListOpenByListing(ctx, id)
	if err != nil {
		return err
	}
	for _, m := range open {
		if n, err := s.matches.TransitionStatus(ctx, m.ID, []model.MatchStatus{m.Status}, model.MatchStatusCancelled); err != nil {
			return err
		} else if n > 0 {
			s.rec.MatchTransition(string(model.MatchStatusCancelled))
		}
	}
	return s.repo.Delete(ctx, id)
}

func requireProfile(ctx context.Context, profiles repository.ProfileRepository, uid string) error {
	if uid == "" {
		return ErrForbidden
	}
	if _, err := profiles.FindByUID(ctx, uid); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProfileRequired
		}
		return err
	}
	return nil
}

func validateText(title, description string) (string, string, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" || utf8.RuneCountInString(title) > maxTitleLen {
		return "", "", invalidf("title must be 1 to %d characters", maxTitleLen)
	}
	if description == "" || utf8.RuneCountInString(description) > maxDescriptionLen {
		return "", "", invalidf("description must be 1 to %d characters", maxDescriptionLen)
	}
	return title, description, nil
}

func validateImages(images []string) ([]string, error) {
	if len(images) > maxListingImages {
		return nil, invalidf("at most %d images", maxListingImages)
	}
	out := make([]string, 0, len(images))
	for _, raw := range images {
		u := strings.TrimSpace(raw)
		if u == "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(u), "data:") {
			return nil, invalidf("images must be URLs, not data URIs")
		}
		if !strings.HasPrefix(u, "https://") && !strings.HasPrefix(u, "http://") {
			return nil, invalidf("image %q is not an http(s) URL", u)
		}
		if len(u) > maxImageURLLen {
			return nil, invalidf("image URL too long")
		}
		out = append(out, u)
	}
	return out, nil
}
