package service

import (
	"context"
	"strings"
	"testing"

	"github.com/shinyyama/campus-exchange/internal/model"
	"github.com/shinyyama/campus-exchange/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessage(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	l := e.listing("seller")
	m, err := e.matchSvc.ExpressInterest(ctx, l.ID, "buyer")
	require.NoError(t, err)

	msg, err := e.chatSvc.Send(ctx, m.ID, "seller", "  Yes, still available  ")
	require.NoError(t, err)
	assert.Equal(t, "Yes, still available", msg.Body)
	assert.False(t, msg.IsSystem)
	assert.Contains(t, e.pub.topics(), realtime.MatchTopic(m.ID))

	notes := e.notifications.forUser("buyer")
	require.Len(t, notes, 1)
	assert.Equal(t, model.NotificationMessage, notes[0].Type)
	assert.Equal(t, "Asha: Yes, still available", notes[0].Body)
	require.NotNil(t, notes[0].MatchID)
	assert.Equal(t, m.ID, *notes[0].MatchID)
}

func TestSendMessageRejects(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	l := e.listing("seller")
	m, err := e.matchSvc.ExpressInterest(ctx, l.ID, "buyer")
	require.NoError(t, err)

	_, err = e.chatSvc.Send(ctx, m.ID, "buyer", "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = e.chatSvc.Send(ctx, m.ID, "buyer", strings.Repeat("a", 2001))
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = e.chatSvc.Send(ctx, m.ID, "buyer2", "hi")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = e.chatSvc.List(ctx, m.ID, "buyer2")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = e.matchSvc.Cancel(ctx, m.ID, "buyer")
	require.NoError(t, err)
	_, err = e.chatSvc.Send(ctx, m.ID, "buyer", "hello?")
	assert.ErrorIs(t, err, ErrMatchClosed)
}

func TestMessagesListedInOrder(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	l := e.listing("seller")
	m, err := e.matchSvc.ExpressInterest(ctx, l.ID, "buyer")
	require.NoError(t, err)

	for _, body := range []string{"one", "two", "three"} {
		_, err := e.chatSvc.Send(ctx, m.ID, "buyer", body)
		require.NoError(t, err)
	}
	msgs, err := e.chatSvc.List(ctx, m.ID, "seller")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "one", msgs[0].Body)
	assert.Equal(t, "three", msgs[2].Body)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview("short"))
	long := strings.Repeat("é", 100)
	assert.Equal(t, strings.Repeat("é", 80)+"…", preview(long))
}
