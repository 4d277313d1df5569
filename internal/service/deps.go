package service

import (
	"context"
	"time"

	"github.com/shinyyama/campus-exchange/internal/model"
	"github.com/shinyyama/campus-exchange/internal/realtime"
)

// Publisher pushes change events to realtime subscribers. Implemented by *realtime.Hub.
type Publisher interface {
	Publish(ctx context.Context, topic string, ev realtime.Event)
}

// Recorder receives domain counters. Implemented by *metrics.Metrics.
type Recorder interface {
	MatchTransition(status string)
	RatingCreated(flagged bool)
	NotificationSent(typ string)
}

// Moderator classifies free text written by users.
type Moderator interface {
	ModerateReview(ctx context.Context, text string) (flagged bool, reason string, err error)
}

// DirectoryUser is what the identity provider knows about a user.
type DirectoryUser struct {
	Email       string
	DisplayName string
	PhotoURL    string
}

type UserDirectory interface {
	LookupUser(ctx context.Context, uid string) (*DirectoryUser, error)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, realtime.Event) {}

type nopRecorder struct{}

func (nopRecorder) MatchTransition(string)  {}
func (nopRecorder) RatingCreated(bool)      {}
func (nopRecorder) NotificationSent(string) {}

func orNopPublisher(p Publisher) Publisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}

func orNopRecorder(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}

func utcNow() time.Time {
	return time.Now().UTC()
}

func uint64Ptr(v uint64) *uint64 {
	return &v
}

func matchLink(id uint64) string {
	return "/matches/" + model.FormatID(id)
}
