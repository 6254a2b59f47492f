package panel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"moderator/internal/chats"
	"moderator/internal/models"
	"moderator/internal/recent"
	"moderator/internal/storage/stubs"
	tgstubs "moderator/internal/telegram/stubs"
)

type fixture struct {
	db        *stubs.MockDB
	svc       *chats.Service
	transport *tgstubs.Transport
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := stubs.NewMockDB()
	require.NoError(t, db.UpsertChat(context.Background(), models.ManagedChat{ChatID: 100, Title: "Test Group"}))

	return &fixture{
		db:        db,
		svc:       chats.NewService(db, recent.New(0), zap.NewNop()),
		transport: tgstubs.NewTransport(),
	}
}

func (f *fixture) assembler(withPhotos bool) *Assembler {
	return NewAssembler(f.svc, f.transport, f.db, withPhotos, zap.NewNop())
}

func ids(members []models.PanelMember) []int64 {
	out := make([]int64, len(members))
	for i, m := range members {
		out[i] = m.ID
	}
	return out
}

func TestAssemble_AdminsThenRecentMembers(t *testing.T) {
	f := newFixture(t)
	f.transport.SetMember(100, models.ChatUser{ID: 7, FirstName: "Ann"}, models.StatusAdministrator)

	for i := 0; i < 3; i++ {
		f.svc.Observe(100, models.RecentMember{UserID: 9, FirstName: "Nine"})
	}

	data, err := f.assembler(false).Assemble(context.Background(), 100)
	require.NoError(t, err)

	assert.Equal(t, "Test Group", data.ChatTitle)
	require.Equal(t, []int64{7, 9}, ids(data.Members))
	assert.True(t, data.Members[0].IsAdmin)
	assert.False(t, data.Members[0].IsBanned)
	assert.False(t, data.Members[1].IsAdmin)
	assert.False(t, data.Members[1].IsBanned)
	assert.Equal(t, "Nine", data.Members[1].FirstName)

	// user 9 becomes an admin: listed once, as admin
	f.transport.SetMember(100, models.ChatUser{ID: 9, FirstName: "Nine"}, models.StatusAdministrator)

	data, err = f.assembler(false).Assemble(context.Background(), 100)
	require.NoError(t, err)
	require.Equal(t, []int64{7, 9}, ids(data.Members))
	assert.True(t, data.Members[1].IsAdmin)
}

func TestAssemble_RecentOrderAndBots(t *testing.T) {
	f := newFixture(t)
	f.transport.SetMember(100, models.ChatUser{ID: 7}, models.StatusCreator)
	f.transport.SetMember(100, models.ChatUser{ID: 99, IsBot: true}, models.StatusAdministrator)

	f.svc.Observe(100, models.RecentMember{UserID: 1})
	f.svc.Observe(100, models.RecentMember{UserID: 2})
	f.svc.Observe(100, models.RecentMember{UserID: 3})
	f.svc.Observe(100, models.RecentMember{UserID: 1})

	data, err := f.assembler(false).Assemble(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 1, 3, 2}, ids(data.Members))
}

func TestAssemble_BannedAnnotation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.Observe(100, models.RecentMember{UserID: 55})
	f.svc.Observe(100, models.RecentMember{UserID: 56})
	require.NoError(t, f.db.RecordBan(ctx, models.BanRecord{ChatID: 100, UserID: 55, AdminID: 7}))
	require.NoError(t, f.db.RecordBan(ctx, models.BanRecord{ChatID: 200, UserID: 56, AdminID: 7}))

	data, err := f.assembler(false).Assemble(ctx, 100)
	require.NoError(t, err)

	banned := map[int64]bool{}
	for _, m := range data.Members {
		banned[m.ID] = m.IsBanned
	}
	assert.True(t, banned[55])
	assert.False(t, banned[56], "bans in other chats do not leak")
}

func TestAssemble_NotManaged(t *testing.T) {
	f := newFixture(t)

	_, err := f.assembler(false).Assemble(context.Background(), 200)
	assert.ErrorIs(t, err, ErrNotManaged)
	assert.Empty(t, f.transport.Calls())
}

func TestAssemble_AdminListFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	f.svc.Observe(100, models.RecentMember{UserID: 9})
	f.transport.FailOn("GetChatAdministrators", errors.New("timeout"))

	_, err := f.assembler(false).Assemble(context.Background(), 100)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotManaged)
}

type brokenLedger struct {
	*stubs.MockDB
}

func (brokenLedger) ListBans(ctx context.Context, chatID int64) ([]models.BanRecord, error) {
	return nil, errors.New("store down")
}

func TestAssemble_LedgerFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	a := NewAssembler(f.svc, f.transport, brokenLedger{f.db}, false, zap.NewNop())

	_, err := a.Assemble(context.Background(), 100)
	assert.Error(t, err)
}

func TestAssemble_PhotosDegradePerMember(t *testing.T) {
	f := newFixture(t)
	f.transport.SetMember(100, models.ChatUser{ID: 7}, models.StatusAdministrator)
	f.transport.SetPhoto(7, "https://example.org/7.jpg")
	f.svc.Observe(100, models.RecentMember{UserID: 9})

	data, err := f.assembler(true).Assemble(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, data.Members, 2)
	assert.Equal(t, "https://example.org/7.jpg", data.Members[0].PhotoURL)
	assert.Empty(t, data.Members[1].PhotoURL)

	f.transport.FailOn("ProfilePhotoURL", errors.New("flood wait"))
	data, err = f.assembler(true).Assemble(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, data.Members, 2)
	assert.Empty(t, data.Members[0].PhotoURL)
}

func TestAssemble_PhotosOffByDefault(t *testing.T) {
	f := newFixture(t)
	f.transport.SetMember(100, models.ChatUser{ID: 7}, models.StatusAdministrator)
	f.transport.SetPhoto(7, "https://example.org/7.jpg")

	data, err := f.assembler(false).Assemble(context.Background(), 100)
	require.NoError(t, err)
	assert.Empty(t, data.Members[0].PhotoURL)
	assert.Empty(t, f.transport.CallsTo("ProfilePhotoURL"))
}
