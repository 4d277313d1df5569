package service

import (
	"context"

	"github.com/shinyyama/campus-exchange/internal/logging"
	"github.com/shinyyama/campus-exchange/internal/model"
	"github.com/shinyyama/campus-exchange/internal/realtime"
	"github.com/shinyyama/campus-exchange/internal/repository"
)

type NotificationService interface {
	Notify(ctx context.Context, userUID string, typ model.NotificationType, title, body, link string, matchID *uint64)
	List(ctx context.Context, userUID string, unreadOnly bool, limit int) ([]model.Notification, int64, error)
	MarkRead(ctx context.Context, id uint64, userUID string) error
	MarkAllRead(ctx context.Context, userUID string) error
}

type notificationService struct {
	repo repository.NotificationRepository
	pub  Publisher
	rec  Recorder
}

func NewNotificationService(repo repository.NotificationRepository, pub Publisher, rec Recorder) NotificationService {
	return &notificationService{repo: repo, pub: orNopPublisher(pub), rec: orNopRecorder(rec)}
}

// Notify is best-effort; it logs errors but does not return them to avoid breaking main flows.
func (s *notificationService) Notify(ctx context.Context, userUID string, typ model.NotificationType, title, body, link string, matchID *uint64) {
	if userUID == "" || typ == "" {
		return
	}
	n := &model.Notification{
		UserUID: userUID,
		Type:    typ,
		Title:   title,
		Body:    body,
		MatchID: matchID,
	}
	if link != "" {
		n.Link = &link
	}
	if err := s.repo.Create(ctx, n); err != nil {
		logging.FromContext(ctx).WithError(err).WithField("type", typ).Warn("notification not stored")
		return
	}
	s.rec.NotificationSent(string(typ))
	s.pub.Publish(ctx, realtime.UserTopic(userUID), realtime.Change(realtime.EventInsert, "notifications", n.ID))
}

func (s *notificationService) List(ctx context.Context, userUID string, unreadOnly bool, limit int) ([]model.Notification, int64, error) {
	if userUID == "" {
		return nil, 0, nil
	}
	list, err := s.repo.ListByUser(ctx, userUID, unreadOnly, limit)
	if err != nil {
		return nil, 0, err
	}
	cnt, err := s.repo.CountUnread(ctx, userUID)
	if err != nil {
		return list, 0, err
	}
	return list, cnt, nil
}

func (s *notificationService) MarkRead(ctx context.Context, id uint64, userUID string) error {
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return lookupErr(err)
	}
	if n.UserUID != userUID {
		return ErrForbidden
	}
	if n.ReadAt != nil {
		return nil
	}
	return s.repo.MarkRead(ctx, id, userUID)
}

func (s *notificationService) MarkAllRead(ctx context.Context, userUID string) error {
	if userUID == "" {
		return nil
	}
	return s.repo.MarkAllRead(ctx, userUID)
}
