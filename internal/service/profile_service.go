package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/shinyyama/campus-exchange/internal/logging"
	"github.com/shinyyama/campus-exchange/internal/model"
	"github.com/shinyyama/campus-exchange/internal/repository"
	"gorm.io/gorm"
)

// collegeSuffixes are the email domain endings accepted at registration.
var collegeSuffixes = []string{
	"edu",
	"ac.in",
	"edu.in",
	"university.edu",
	"college.edu",
	"iit.ac.in",
	"nit.ac.in",
	"iiit.ac.in",
}

const (
	minNameLen = 2
	maxNameLen = 120
	maxBatch   = 100
)

// CollegeDomain returns the lower-cased domain of email when it belongs to a college.
func CollegeDomain(email string) (string, bool) {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "", false
	}
	domain := strings.ToLower(email[at+1:])
	for _, suffix := range collegeSuffixes {
		if domain == suffix || strings.HasSuffix(domain, "."+suffix) {
			return domain, true
		}
	}
	return "", false
}

type RegisterInput struct {
	UID       string
	Email     string
	Name      string
	AvatarURL *string
}

// ProfileView is a profile with its derived reputation fields.
type ProfileView struct {
	Profile        model.Profile
	Badge          model.Badge
	College        string
	TotalExchanges int64
}

type ProfileService interface {
	Register(ctx context.Context, in RegisterInput) (*model.Profile, error)
	Get(ctx context.Context, uid string) (*ProfileView, error)
	GetMany(ctx context.Context, uids []string) ([]model.Profile, error)
	UpdateMe(ctx context.Context, uid string, name, avatarURL *string) (*model.Profile, error)
}

type profileService struct {
	profiles  repository.ProfileRepository
	matches   repository.MatchRepository
	directory UserDirectory
}

func NewProfileService(profiles repository.ProfileRepository, matches repository.MatchRepository, directory UserDirectory) ProfileService {
	return &profileService{profiles: profiles, matches: matches, directory: directory}
}

func (s *profileService) Register(ctx context.Context, in RegisterInput) (*model.Profile, error) {
	if in.UID == "" {
		return nil, ErrForbidden
	}
	if s.directory != nil && (in.Name == "" || in.AvatarURL == nil || in.Email == "") {
		u, err := s.directory.LookupUser(ctx, in.UID)
		if err != nil {
			logging.FromContext(ctx).WithError(err).Warn("identity lookup failed")
		} else {
			if in.Email == "" {
				in.Email = u.Email
			}
			if strings.TrimSpace(in.Name) == "" {
				in.Name = u.DisplayName
			}
			if in.AvatarURL == nil && u.PhotoURL != "" {
				photo := u.PhotoURL
				in.AvatarURL = &photo
			}
		}
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	domain, ok := CollegeDomain(email)
	if !ok {
		return nil, ErrNotCollegeEmail
	}
	name, err := normalizeName(in.Name)
	if err != nil {
		return nil, err
	}

	if _, err := s.profiles.FindByUID(ctx, in.UID); err == nil {
		return nil, ErrProfileExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if _, err := s.profiles.FindByEmail(ctx, email); err == nil {
		return nil, ErrProfileExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	p := &model.Profile{
		UID:           in.UID,
		Email:         email,
		Name:          name,
		AvatarURL:     trimOptional(in.AvatarURL),
		CollegeDomain: domain,
	}
	if err := s.profiles.Create(ctx, p); err != nil {
		if isDuplicate(err) {
			return nil, ErrProfileExists
		}
		return nil, err
	}
	return p, nil
}

func (s *profileService) Get(ctx context.Context, uid string) (*ProfileView, error) {
	p, err := s.profiles.FindByUID(ctx, uid)
	if err != nil {
		return nil, lookupErr(err)
	}
	exchanges, err := s.matches.CountCompletedByUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	return &ProfileView{
		Profile:        *p,
		Badge:          p.Badge(),
		College:        p.College(),
		TotalExchanges: exchanges,
	}, nil
}

func (s *profileService) GetMany(ctx context.Context, uids []string) ([]model.Profile, error) {
	seen := make(map[string]struct{}, len(uids))
	ids := make([]string, 0, len(uids))
	for _, id := range uids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return []model.Profile{}, nil
	}
	if len(ids) > maxBatch {
		return nil, invalidf("at most %d ids per request", maxBatch)
	}
	return s.profiles.FindByUIDs(ctx, ids)
}

func (s *profileService) UpdateMe(ctx context.Context, uid string, name, avatarURL *string) (*model.Profile, error) {
	p, err := s.profiles.FindByUID(ctx, uid)
	if err != nil {
		return nil, lookupErr(err)
	}
	if name != nil {
		n, err := normalizeName(*name)
		if err != nil {
			return nil, err
		}
		p.Name = n
	}
	if avatarURL != nil {
		p.AvatarURL = trimOptional(avatarURL)
	}
	if err := s.profiles.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func normalizeName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	n := utf8.RuneCountInString(name)
	if n < minNameLen {
		return "", invalidf("name must be at least %d characters", minNameLen)
	}
	if n > maxNameLen {
		return "", invalidf("name must be at most %d characters", maxNameLen)
	}
	return name, nil
}

// trimOptional returns nil for absent or blank values.
func trimOptional(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
