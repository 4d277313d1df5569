package service

import (
	"context"
	"testing"

	"github.com/shinyyama/campus-exchange/internal/model"
	"github.com/shinyyama/campus-exchange/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyPublishesToUserTopic(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	e.notifySvc.Notify(ctx, "buyer", model.NotificationSystem, "Welcome", "Hello", "/", nil)
	e.notifySvc.Notify(ctx, "", model.NotificationSystem, "dropped", "", "", nil)

	require.Len(t, e.notifications.list, 1)
	require.Len(t, e.pub.events, 1)
	assert.Equal(t, realtime.UserTopic("buyer"), e.pub.events[0].topic)
	assert.Equal(t, "notifications", e.pub.events[0].ev.Table)
	assert.Equal(t, e.notifications.list[0].ID, e.pub.events[0].ev.ID)
}

func TestNotificationReadState(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		e.notifySvc.Notify(ctx, "buyer", model.NotificationMatch, "t", "b", "", nil)
	}
	e.notifySvc.Notify(ctx, "seller", model.NotificationMatch, "t", "b", "", nil)

	list, unread, err := e.notifySvc.List(ctx, "buyer", false, 20)
	require.NoError(t, err)
	assert.Len(t, list, 3)
	assert.Equal(t, int64(3), unread)

	assert.ErrorIs(t, e.notifySvc.MarkRead(ctx, 4, "buyer"), ErrForbidden)
	assert.ErrorIs(t, e.notifySvc.MarkRead(ctx, 99, "buyer"), ErrNotFound)
	require.NoError(t, e.notifySvc.MarkRead(ctx, 1, "buyer"))

	_, unread, err = e.notifySvc.List(ctx, "buyer", true, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	require.NoError(t, e.notifySvc.MarkAllRead(ctx, "buyer"))
	_, unread, err = e.notifySvc.List(ctx, "buyer", false, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(0), unread)
}
