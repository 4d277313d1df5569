package service

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shinyyama/campus-exchange/internal/model"
	"github.com/shinyyama/campus-exchange/internal/realtime"
	"github.com/shinyyama/campus-exchange/internal/repository"
	"gorm.io/gorm"
)

type fakeProfiles struct {
	mu   sync.Mutex
	byID map[string]*model.Profile
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{byID: map[string]*model.Profile{}}
}

func (f *fakeProfiles) Create(_ context.Context, p *model.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[p.UID]; ok {
		return gorm.ErrDuplicatedKey
	}
	cp := *p
	f.byID[p.UID] = &cp
	return nil
}

func (f *fakeProfiles) FindByUID(_ context.Context, uid string) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[uid]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProfiles) FindByEmail(_ context.Context, email string) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.byID {
		if p.Email == email {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeProfiles) FindByUIDs(_ context.Context, uids []string) ([]model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Profile
	for _, uid := range uids {
		if p, ok := f.byID[uid]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeProfiles) Update(_ context.Context, p *model.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.byID[p.UID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	cur.Name = p.Name
	cur.AvatarURL = p.AvatarURL
	return nil
}

func (f *fakeProfiles) SetDB(*gorm.DB) {}

func (f *fakeProfiles) add(uid, name string) {
	f.byID[uid] = &model.Profile{UID: uid, Name: name, Email: uid + "@iitb.ac.in", CollegeDomain: "iitb.ac.in"}
}

type fakeListings struct {
	mu     sync.Mutex
	nextID uint64
	byID   map[uint64]*model.Listing
}

func newFakeListings() *fakeListings {
	return &fakeListings{byID: map[uint64]*model.Listing{}}
}

func (f *fakeListings) Create(_ context.Context, l *model.Listing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	l.ID = f.nextID
	cp := *l
	f.byID[l.ID] = &cp
	return nil
}

func (f *fakeListings) FindByID(_ context.Context, id uint64) (*model.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *l
	return &cp, nil
}

func (f *fakeListings) List(_ context.Context, flt repository.ListingFilter) ([]model.Listing, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Listing
	for _, l := range f.byID {
		if flt.Status != "" && l.Status != flt.Status {
			continue
		}
		if flt.Category != "" && l.Category != flt.Category {
			continue
		}
		if flt.SellerUID != "" && l.SellerUID != flt.SellerUID {
			continue
		}
		if flt.Query != "" && !strings.Contains(l.Title+" "+l.Description, flt.Query) {
			continue
		}
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, int64(len(out)), nil
}

func (f *fakeListings) Update(_ context.Context, l *model.Listing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.byID[l.ID]
	if !ok {
		return nil
	}
	cp := *l
	cp.Status = cur.Status
	f.byID[l.ID] = &cp
	return nil
}

func (f *fakeListings) Delete(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
	return nil
}

func (f *fakeListings) TransitionStatus(_ context.Context, id uint64, from []model.ListingStatus, to model.ListingStatus) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.byID[id]
	if !ok {
		return 0, nil
	}
	for _, s := range from {
		if l.Status == s {
			l.Status = to
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeListings) SetDB(*gorm.DB) {}

func (f *fakeListings) status(id uint64) model.ListingStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id].Status
}

type fakeRequests struct {
	mu     sync.Mutex
	nextID uint64
	byID   map[uint64]*model.NeedRequest
}

func newFakeRequests() *fakeRequests {
	return &fakeRequests{byID: map[uint64]*model.NeedRequest{}}
}

func (f *fakeRequests) Create(_ context.Context, nr *model.NeedRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	nr.ID = f.nextID
	cp := *nr
	f.byID[nr.ID] = &cp
	return nil
}

func (f *fakeRequests) FindByID(_ context.Context, id uint64) (*model.NeedRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	nr, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *nr
	return &cp, nil
}

func (f *fakeRequests) List(_ context.Context, flt repository.NeedRequestFilter) ([]model.NeedRequest, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.NeedRequest
	for _, nr := range f.byID {
		if flt.Status != "" && nr.Status != flt.Status {
			continue
		}
		if flt.Category != "" && nr.Category != flt.Category {
			continue
		}
		if flt.RequesterUID != "" && nr.RequesterUID != flt.RequesterUID {
			continue
		}
		if flt.ActiveAt != nil && !nr.ExpiresAt.After(*flt.ActiveAt) {
			continue
		}
		out = append(out, *nr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, int64(len(out)), nil
}

func (f *fakeRequests) Delete(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
	return nil
}

func (f *fakeRequests) TransitionStatus(_ context.Context, id uint64, from []model.NeedStatus, to model.NeedStatus) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	nr, ok := f.byID[id]
	if !ok {
		return 0, nil
	}
	for _, s := range from {
		if nr.Status == s {
			nr.Status = to
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeRequests) ListExpiredOpen(_ context.Context, now time.Time) ([]model.NeedRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.NeedRequest
	for _, nr := range f.byID {
		if nr.Status == model.NeedStatusOpen && !nr.ExpiresAt.After(now) {
			out = append(out, *nr)
		}
	}
	return out, nil
}

func (f *fakeRequests) ListExpiringUnwarned(_ context.Context, now, until time.Time) ([]model.NeedRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.NeedRequest
	for _, nr := range f.byID {
		if nr.Status == model.NeedStatusOpen && nr.ExpiryNotifiedAt == nil &&
			nr.ExpiresAt.After(now) && !nr.ExpiresAt.After(until) {
			out = append(out, *nr)
		}
	}
	return out, nil
}

func (f *fakeRequests) MarkExpiryNotified(_ context.Context, id uint64, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	nr, ok := f.byID[id]
	if !ok || nr.ExpiryNotifiedAt != nil {
		return false, nil
	}
	t := at
	nr.ExpiryNotifiedAt = &t
	return true, nil
}

func (f *fakeRequests) SetDB(*gorm.DB) {}

func (f *fakeRequests) status(id uint64) model.NeedStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id].Status
}

type fakeMatches struct {
	mu     sync.Mutex
	nextID uint64
	byID   map[uint64]*model.Match
}

func newFakeMatches() *fakeMatches {
	return &fakeMatches{byID: map[uint64]*model.Match{}}
}

func (f *fakeMatches) Create(_ context.Context, m *model.Match) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.byID {
		if m.ListingID != nil && o.ListingID != nil && *o.ListingID == *m.ListingID && o.BuyerUID == m.BuyerUID {
			return gorm.ErrDuplicatedKey
		}
		if m.RequestID != nil && o.RequestID != nil && *o.RequestID == *m.RequestID && o.SellerUID == m.SellerUID {
			return gorm.ErrDuplicatedKey
		}
	}
	f.nextID++
	m.ID = f.nextID
	cp := *m
	f.byID[m.ID] = &cp
	return nil
}

func (f *fakeMatches) FindByID(_ context.Context, id uint64) (*model.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMatches) find(pred func(*model.Match) bool) (*model.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.byID {
		if pred(m) {
			cp := *m
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeMatches) FindByListingBuyer(_ context.Context, listingID uint64, buyerUID string) (*model.Match, error) {
	return f.find(func(m *model.Match) bool {
		return m.ListingID != nil && *m.ListingID == listingID && m.BuyerUID == buyerUID
	})
}

func (f *fakeMatches) FindByRequestSeller(_ context.Context, requestID uint64, sellerUID string) (*model.Match, error) {
	return f.find(func(m *model.Match) bool {
		return m.RequestID != nil && *m.RequestID == requestID && m.SellerUID == sellerUID
	})
}

func (f *fakeMatches) filter(pred func(*model.Match) bool) []model.Match {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Match
	for _, m := range f.byID {
		if pred(m) {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeMatches) ListByUser(_ context.Context, uid string) ([]model.Match, error) {
	out := f.filter(func(m *model.Match) bool { return m.SellerUID == uid || m.BuyerUID == uid })
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeMatches) ListOpenByListing(_ context.Context, listingID uint64) ([]model.Match, error) {
	return f.filter(func(m *model.Match) bool {
		return m.ListingID != nil && *m.ListingID == listingID && !m.Status.Terminal()
	}), nil
}

func (f *fakeMatches) ListOpenByRequest(_ context.Context, requestID uint64) ([]model.Match, error) {
	return f.filter(func(m *model.Match) bool {
		return m.RequestID != nil && *m.RequestID == requestID && !m.Status.Terminal()
	}), nil
}

func (f *fakeMatches) CountByListingStatus(_ context.Context, listingID uint64, status model.MatchStatus) (int64, error) {
	return int64(len(f.filter(func(m *model.Match) bool {
		return m.ListingID != nil && *m.ListingID == listingID && m.Status == status
	}))), nil
}

func (f *fakeMatches) CountCompletedByUser(_ context.Context, uid string) (int64, error) {
	return int64(len(f.filter(func(m *model.Match) bool {
		return (m.SellerUID == uid || m.BuyerUID == uid) && m.Status == model.MatchStatusCompleted
	}))), nil
}

func (f *fakeMatches) Update(_ context.Context, m *model.Match) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.byID[m.ID]
	if !ok {
		return nil
	}
	cur.MeetingLocation = m.MeetingLocation
	cur.MeetingTime = m.MeetingTime
	cur.CompletedAt = m.CompletedAt
	return nil
}

func (f *fakeMatches) TransitionStatus(_ context.Context, id uint64, from []model.MatchStatus, to model.MatchStatus) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byID[id]
	if !ok {
		return 0, nil
	}
	for _, s := range from {
		if m.Status == s {
			m.Status = to
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeMatches) SetDB(*gorm.DB) {}

func (f *fakeMatches) status(id uint64) model.MatchStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id].Status
}

type fakeMessages struct {
	mu   sync.Mutex
	list []model.Message
}

func (f *fakeMessages) Create(_ context.Context, m *model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.ID = uint64(len(f.list) + 1)
	f.list = append(f.list, *m)
	return nil
}

func (f *fakeMessages) ListByMatch(_ context.Context, matchID uint64) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Message
	for _, m := range f.list {
		if m.MatchID == matchID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMessages) SetDB(*gorm.DB) {}

type fakeRatings struct {
	mu       sync.Mutex
	list     []model.Rating
	profiles *fakeProfiles
}

func (f *fakeRatings) CreateAndRecalc(_ context.Context, rt *model.Rating) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.list {
		if r.MatchID == rt.MatchID && r.RaterUID == rt.RaterUID {
			return gorm.ErrDuplicatedKey
		}
	}
	rt.ID = uint64(len(f.list) + 1)
	f.list = append(f.list, *rt)

	var sum, n int
	for _, r := range f.list {
		if r.RatedUID == rt.RatedUID && !r.IsFlagged {
			sum += r.Overall
			n++
		}
	}
	f.profiles.mu.Lock()
	defer f.profiles.mu.Unlock()
	if p, ok := f.profiles.byID[rt.RatedUID]; ok {
		p.TotalRatings = n
		p.TrustScore = 0
		if n > 0 {
			p.TrustScore = math.Round(float64(sum)/float64(n)*100) / 100
		}
	}
	return nil
}

func (f *fakeRatings) FindByMatchRater(_ context.Context, matchID uint64, raterUID string) (*model.Rating, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.list {
		if r.MatchID == matchID && r.RaterUID == raterUID {
			cp := r
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRatings) ListByRated(_ context.Context, ratedUID string, _ int) ([]model.Rating, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Rating
	for _, r := range f.list {
		if r.RatedUID == ratedUID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRatings) ListByMatch(_ context.Context, matchID uint64) ([]model.Rating, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Rating
	for _, r := range f.list {
		if r.MatchID == matchID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRatings) SetDB(*gorm.DB) {}

type fakeNotifications struct {
	mu   sync.Mutex
	list []model.Notification
}

func (f *fakeNotifications) Create(_ context.Context, n *model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n.ID = uint64(len(f.list) + 1)
	f.list = append(f.list, *n)
	return nil
}

func (f *fakeNotifications) FindByID(_ context.Context, id uint64) (*model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.list {
		if n.ID == id {
			cp := n
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeNotifications) ListByUser(_ context.Context, userUID string, unreadOnly bool, _ int) ([]model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Notification
	for _, n := range f.list {
		if n.UserUID == userUID && (!unreadOnly || n.ReadAt == nil) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeNotifications) MarkRead(_ context.Context, id uint64, userUID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for i := range f.list {
		if f.list[i].ID == id && f.list[i].UserUID == userUID {
			f.list[i].ReadAt = &now
		}
	}
	return nil
}

func (f *fakeNotifications) MarkAllRead(_ context.Context, userUID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for i := range f.list {
		if f.list[i].UserUID == userUID && f.list[i].ReadAt == nil {
			f.list[i].ReadAt = &now
		}
	}
	return nil
}

func (f *fakeNotifications) CountUnread(_ context.Context, userUID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, x := range f.list {
		if x.UserUID == userUID && x.ReadAt == nil {
			n++
		}
	}
	return n, nil
}

func (f *fakeNotifications) SetDB(*gorm.DB) {}

func (f *fakeNotifications) forUser(uid string) []model.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Notification
	for _, n := range f.list {
		if n.UserUID == uid {
			out = append(out, n)
		}
	}
	return out
}

type publishedEvent struct {
	topic string
	ev    realtime.Event
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (f *fakePublisher) Publish(_ context.Context, topic string, ev realtime.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{topic: topic, ev: ev})
}

func (f *fakePublisher) topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.topic)
	}
	return out
}

type fakeModerator struct {
	flagWords []string
	err       error
}

func (f *fakeModerator) ModerateReview(_ context.Context, text string) (bool, string, error) {
	if f.err != nil {
		return false, "", f.err
	}
	for _, w := range f.flagWords {
		if strings.Contains(strings.ToLower(text), w) {
			return true, "contains " + w, nil
		}
	}
	return false, "", nil
}

type fakeDirectory struct {
	users map[string]*DirectoryUser
}

func (f *fakeDirectory) LookupUser(_ context.Context, uid string) (*DirectoryUser, error) {
	u, ok := f.users[uid]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

// env wires every service over shared fakes with a fixed clock.
type env struct {
	profiles      *fakeProfiles
	listings      *fakeListings
	requests      *fakeRequests
	matches       *fakeMatches
	messages      *fakeMessages
	ratings       *fakeRatings
	notifications *fakeNotifications
	pub           *fakePublisher
	moderator     *fakeModerator

	notifySvc  NotificationService
	profileSvc ProfileService
	listingSvc ListingService
	requestSvc NeedRequestService
	chatSvc    ChatService
	matchSvc   MatchService
	ratingSvc  RatingService
}

func newEnv() *env {
	e := &env{
		profiles:      newFakeProfiles(),
		listings:      newFakeListings(),
		requests:      newFakeRequests(),
		matches:       newFakeMatches(),
		messages:      &fakeMessages{},
		notifications: &fakeNotifications{},
		pub:           &fakePublisher{},
		moderator:     &fakeModerator{flagWords: []string{"scam"}},
	}
	e.ratings = &fakeRatings{profiles: e.profiles}
	clock := func() time.Time { return testNow }

	e.notifySvc = NewNotificationService(e.notifications, e.pub, nil)
	e.profileSvc = NewProfileService(e.profiles, e.matches, nil)
	e.listingSvc = NewListingService(e.listings, e.profiles, e.matches, nil)

	e.chatSvc = NewChatService(e.messages, e.matches, e.profiles, e.notifySvc, e.pub, nil)

	rs := NewNeedRequestService(e.requests, e.profiles, e.matches, e.chatSvc, e.notifySvc, 0).(*needRequestService)
	rs.now = clock
	e.requestSvc = rs

	ms := NewMatchService(MatchDeps{
		Matches:   e.matches,
		Listings:  e.listings,
		Requests:  e.requests,
		Profiles:  e.profiles,
		Chat:      e.chatSvc,
		Notifier:  e.notifySvc,
		Publisher: e.pub,
	}).(*matchService)
	ms.now = clock
	e.matchSvc = ms

	e.ratingSvc = NewRatingService(e.ratings, e.matches, e.profiles, e.notifySvc, e.moderator, nil)

	e.profiles.add("seller", "Asha")
	e.profiles.add("buyer", "Ravi")
	e.profiles.add("buyer2", "Meera")
	return e
}

func (e *env) listing(seller string) *model.Listing {
	l, err := e.listingSvc.Create(context.Background(), seller, ListingInput{
		Title:       "Engineering Mathematics",
		Description: "Third edition, barely used",
		Price:       350,
		Category:    model.CategoryBooks,
		Location:    model.LocationLibrary,
	})
	if err != nil {
		panic(err)
	}
	return l
}
