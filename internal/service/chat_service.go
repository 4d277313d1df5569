package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shinyyama/campus-exchange/internal/logging"
	"github.com/shinyyama/campus-exchange/internal/model"
	"github.com/shinyyama/campus-exchange/internal/realtime"
	"github.com/shinyyama/campus-exchange/internal/repository"
)

const (
	maxMessageLen = 2000
	previewLen    = 80
)

type ChatService interface {
	List(ctx context.Context, matchID uint64, uid string) ([]model.Message, error)
	Send(ctx context.Context, matchID uint64, uid, body string) (*model.Message, error)
	PostSystem(ctx context.Context, matchID uint64, body string) error
}

type chatService struct {
	messages repository.MessageRepository
	matches  repository.MatchRepository
	profiles repository.ProfileRepository
	notifier NotificationService
	pub      Publisher
	rec      Recorder
}

func NewChatService(messages repository.MessageRepository, matches repository.MatchRepository, profiles repository.ProfileRepository, notifier NotificationService, pub Publisher, rec Recorder) ChatService {
	return &chatService{
		messages: messages,
		matches:  matches,
		profiles: profiles,
		notifier: notifier,
		pub:      orNopPublisher(pub),
		rec:      orNopRecorder(rec),
	}
}

func (s *chatService) List(ctx context.Context, matchID uint64, uid string) ([]model.Message, error) {
	if _, err := participantMatch(ctx, s.matches, matchID, uid); err != nil {
		return nil, err
	}
	return s.messages.ListByMatch(ctx, matchID)
}

func (s *chatService) Send(ctx context.Context, matchID uint64, uid, body string) (*model.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" || utf8.RuneCountInString(body) > maxMessageLen {
		return nil, invalidf("message must be 1 to %d characters", maxMessageLen)
	}
	m, err := participantMatch(ctx, s.matches, matchID, uid)
	if err != nil {
		return nil, err
	}
	if m.Status.Terminal() {
		return nil, ErrMatchClosed
	}

	msg := &model.Message{MatchID: matchID, SenderUID: uid, Body: body}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	s.pub.Publish(ctx, realtime.MatchTopic(matchID), realtime.Change(realtime.EventInsert, "messages", msg.ID))

	if m.Status == model.MatchStatusPending {
		n, err := s.matches.TransitionStatus(ctx, matchID, []model.MatchStatus{model.MatchStatusPending}, model.MatchStatusChatting)
		if err != nil {
			logging.FromContext(ctx).WithError(err).WithField("match_id", matchID).Warn("pending to chatting failed")
		} else if n > 0 {
			s.rec.MatchTransition(string(model.MatchStatusChatting))
			s.pub.Publish(ctx, realtime.MatchTopic(matchID), realtime.Change(realtime.EventUpdate, "matches", matchID))
		}
	}

	s.notifier.Notify(ctx, m.Counterpart(uid), model.NotificationMessage,
		"New message",
		fmt.Sprintf("%s: %s", displayName(ctx, s.profiles, uid), preview(body)),
		matchLink(matchID), uint64Ptr(matchID))
	return msg, nil
}

// PostSystem appends an automated message with no sender.
func (s *chatService) PostSystem(ctx context.Context, matchID uint64, body string) error {
	msg := &model.Message{MatchID: matchID, Body: body, IsSystem: true}
	if err := s.messages.Create(ctx, msg); err != nil {
		return err
	}
	s.pub.Publish(ctx, realtime.MatchTopic(matchID), realtime.Change(realtime.EventInsert, "messages", msg.ID))
	return nil
}

func participantMatch(ctx context.Context, matches repository.MatchRepository, id uint64, uid string) (*model.Match, error) {
	m, err := matches.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err)
	}
	if !m.HasParticipant(uid) {
		return nil, ErrForbidden
	}
	return m, nil
}

// displayName falls back to a neutral label when the profile is unavailable.
func displayName(ctx context.Context, profiles repository.ProfileRepository, uid string) string {
	p, err := profiles.FindByUID(ctx, uid)
	if err != nil || p.Name == "" {
		return "Someone"
	}
	return p.Name
}

func preview(body string) string {
	if utf8.RuneCountInString(body) <= previewLen {
		return body
	}
	r := []rune(body)
	return string(r[:previewLen]) + "…"
}
