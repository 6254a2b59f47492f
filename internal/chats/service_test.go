package chats

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"moderator/internal/models"
	"moderator/internal/recent"
	"moderator/internal/storage"
	"moderator/internal/storage/stubs"
)

type failingRegistry struct {
	*stubs.MockDB
	err error
}

func (f *failingRegistry) DeleteChat(ctx context.Context, chatID int64) error {
	return f.err
}

func newTestService() (*Service, *stubs.MockDB, *recent.Cache) {
	db := stubs.NewMockDB()
	cache := recent.New(recent.DefaultCapacity)
	return NewService(db, cache, zap.NewNop()), db, cache
}

func TestApplyMembership_PromotionRegistersChat(t *testing.T) {
	svc, db, _ := newTestService()
	ctx := context.Background()

	change, err := svc.ApplyMembership(ctx, 100, "Test Group", models.StatusAdministrator)
	require.NoError(t, err)
	assert.Equal(t, TransitionPromoted, change.Transition)
	assert.False(t, change.WasManaged)

	chat, err := db.GetChat(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "Test Group", chat.Title)

	// A repeated promotion updates the title and reports the chat as known
	change, err = svc.ApplyMembership(ctx, 100, "Renamed", models.StatusAdministrator)
	require.NoError(t, err)
	assert.True(t, change.WasManaged)

	chats, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "Renamed", chats[0].Title)
}

func TestApplyMembership_DemotionUnregistersAndDropsCache(t *testing.T) {
	for _, status := range []models.MemberStatus{models.StatusMember, models.StatusLeft, models.StatusKicked} {
		t.Run(string(status), func(t *testing.T) {
			svc, _, cache := newTestService()
			ctx := context.Background()

			_, err := svc.ApplyMembership(ctx, 100, "Test Group", models.StatusAdministrator)
			require.NoError(t, err)
			svc.Observe(100, models.RecentMember{UserID: 9, FirstName: "Nine"})
			svc.Observe(200, models.RecentMember{UserID: 9, FirstName: "Nine"})

			change, err := svc.ApplyMembership(ctx, 100, "", status)
			require.NoError(t, err)
			assert.Equal(t, TransitionDemoted, change.Transition)
			assert.True(t, change.WasManaged)
			assert.Equal(t, "Test Group", change.Title, "title falls back to the registered one")

			_, err = svc.Managed(ctx, 100)
			assert.ErrorIs(t, err, storage.ErrNotFound)
			assert.Empty(t, svc.Recent(100))
			assert.Equal(t, 1, cache.Len(200), "other chats keep their entries")
		})
	}
}

func TestApplyMembership_IdempotentDelivery(t *testing.T) {
	svc, db, _ := newTestService()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.ApplyMembership(ctx, 100, "Test Group", models.StatusAdministrator)
		require.NoError(t, err)
	}
	chats, err := db.ListChats(ctx)
	require.NoError(t, err)
	assert.Len(t, chats, 1)

	for i := 0; i < 3; i++ {
		_, err := svc.ApplyMembership(ctx, 100, "Test Group", models.StatusLeft)
		require.NoError(t, err)
	}
	chats, err = db.ListChats(ctx)
	require.NoError(t, err)
	assert.Empty(t, chats)
}

func TestApplyMembership_OtherStatusesIgnored(t *testing.T) {
	svc, db, _ := newTestService()
	ctx := context.Background()

	require.NoError(t, db.UpsertChat(ctx, models.ManagedChat{ChatID: 100, Title: "Test Group"}))
	svc.Observe(100, models.RecentMember{UserID: 9})

	before := testutil.ToFloat64(membershipTransitions.WithLabelValues(string(TransitionIgnored)))

	for _, status := range []models.MemberStatus{models.StatusRestricted, models.StatusCreator, "unknown"} {
		change, err := svc.ApplyMembership(ctx, 100, "Other", status)
		require.NoError(t, err)
		assert.Equal(t, TransitionIgnored, change.Transition)
	}

	chat, err := svc.Managed(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "Test Group", chat.Title)
	assert.Len(t, svc.Recent(100), 1)

	after := testutil.ToFloat64(membershipTransitions.WithLabelValues(string(TransitionIgnored)))
	assert.Equal(t, float64(3), after-before)
}

func TestApplyMembership_StoreFailure(t *testing.T) {
	db := stubs.NewMockDB()
	registry := &failingRegistry{MockDB: db, err: errors.New("store down")}
	svc := NewService(registry, recent.New(0), zap.NewNop())
	ctx := context.Background()

	_, err := svc.ApplyMembership(ctx, 100, "Test Group", models.StatusAdministrator)
	require.NoError(t, err)
	svc.Observe(100, models.RecentMember{UserID: 9})

	_, err = svc.ApplyMembership(ctx, 100, "", models.StatusKicked)
	assert.Error(t, err)
	assert.Empty(t, svc.Recent(100), "cache is dropped even when the store fails")
}

func TestObserveAndRecent(t *testing.T) {
	svc, _, _ := newTestService()

	svc.Observe(100, models.RecentMember{UserID: 1})
	svc.Observe(100, models.RecentMember{UserID: 2})
	svc.Observe(100, models.RecentMember{UserID: 1})

	members := svc.Recent(100)
	require.Len(t, members, 2)
	assert.Equal(t, int64(1), members[0].UserID)
	assert.Equal(t, int64(2), members[1].UserID)
	assert.Equal(t, 1, svc.CachedChats())
}

func TestObserveManaged_SkipsUnmanagedChats(t *testing.T) {
	svc, db, _ := newTestService()
	ctx := context.Background()

	assert.False(t, svc.ObserveManaged(ctx, 100, models.RecentMember{UserID: 9}))
	assert.Empty(t, svc.Recent(100))

	require.NoError(t, db.UpsertChat(ctx, models.ManagedChat{ChatID: 100, Title: "Test Group"}))
	assert.True(t, svc.ObserveManaged(ctx, 100, models.RecentMember{UserID: 9}))
	assert.Len(t, svc.Recent(100), 1)

	// a message delivered after the demotion must not bring the entry back
	_, err := svc.ApplyMembership(ctx, 100, "", models.StatusLeft)
	require.NoError(t, err)
	assert.False(t, svc.ObserveManaged(ctx, 100, models.RecentMember{UserID: 10}))
	assert.Empty(t, svc.Recent(100))
	assert.Equal(t, 0, svc.CachedChats())
}
