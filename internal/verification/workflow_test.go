package verification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/fintechindex/internal/auth"
	"github.com/geocoder89/fintechindex/internal/domain/startup"
	"github.com/geocoder89/fintechindex/internal/notifications"
	"github.com/geocoder89/fintechindex/internal/repo/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capture struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (c *capture) Dispatch(_ context.Context, ev notifications.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

var admin = auth.Identity{SubjectID: "a1", Role: auth.RoleAdmin, Email: "admin@x.com"}

func seed(t *testing.T, store *memory.StartupsRepo, names ...string) []string {
	t.Helper()
	ids := make([]string, 0, len(names))
	for _, n := range names {
		s := startup.NewFromCreateRequest(startup.CreateRequest{Name: n, Country: "Kenya", Sector: "Payments", FoundedYear: 2019}, startup.Submitter{}, time.Now())
		_, err := store.Create(context.Background(), s)
		require.NoError(t, err)
		ids = append(ids, s.ID)
	}
	return ids
}

func TestVerifyOneApprovesAndNotifies(t *testing.T) {
	store := memory.NewStartupsRepo()
	ids := seed(t, store, "M-Pesa")
	events := &capture{}

	w := NewWorkflow(store, events)
	s, err := w.VerifyOne(context.Background(), ids[0], "approved", "", admin)
	require.NoError(t, err)

	assert.True(t, s.IsVerified)
	assert.Equal(t, startup.StatusApproved, s.VerificationStatus)
	assert.Equal(t, "admin@x.com", s.VerifiedBy)
	assert.Equal(t, "", s.AdminNotes)

	require.Len(t, events.events, 1)
	assert.Equal(t, notifications.KindStartupVerified, events.events[0].Kind)
}

func TestVerifyOneIsRepeatableAndRefreshesTimestamp(t *testing.T) {
	store := memory.NewStartupsRepo()
	ids := seed(t, store, "Wave")

	w := NewWorkflow(store, &capture{})
	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return clock }

	first, err := w.VerifyOne(context.Background(), ids[0], "approved", "", admin)
	require.NoError(t, err)

	clock = clock.Add(time.Hour)
	second, err := w.VerifyOne(context.Background(), ids[0], "approved", "", admin)
	require.NoError(t, err)

	assert.Equal(t, first.VerificationStatus, second.VerificationStatus)
	assert.True(t, second.VerifiedAt.After(*first.VerifiedAt))

	rejected, err := w.VerifyOne(context.Background(), ids[0], "rejected", "dup", admin)
	require.NoError(t, err)
	assert.False(t, rejected.IsVerified)
}

func TestVerifyOneErrors(t *testing.T) {
	store := memory.NewStartupsRepo()
	events := &capture{}
	w := NewWorkflow(store, events)

	_, err := w.VerifyOne(context.Background(), "missing", "approved", "", admin)
	assert.ErrorIs(t, err, startup.ErrNotFound)

	ids := seed(t, store, "Kuda")
	_, err = w.VerifyOne(context.Background(), ids[0], "pending", "", admin)
	assert.ErrorIs(t, err, startup.ErrInvalidStatus)

	assert.Empty(t, events.events)
}

func TestVerifyBulk(t *testing.T) {
	store := memory.NewStartupsRepo()
	ids := seed(t, store, "A", "B", "C")
	events := &capture{}
	w := NewWorkflow(store, events)

	n, err := w.VerifyBulk(context.Background(), []string{ids[0], ids[1], ids[0], "missing"}, "approved", "batch", admin)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	require.Len(t, events.events, 1)
	assert.Equal(t, notifications.KindStartupsBulkVerified, events.events[0].Kind)

	pending, err := store.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, ids[2], pending[0].ID)
}

func TestVerifyBulkValidation(t *testing.T) {
	w := NewWorkflow(memory.NewStartupsRepo(), &capture{})

	_, err := w.VerifyBulk(context.Background(), nil, "approved", "", admin)
	assert.ErrorIs(t, err, startup.ErrNoIDs)

	_, err = w.VerifyBulk(context.Background(), []string{"  "}, "approved", "", admin)
	assert.ErrorIs(t, err, startup.ErrNoIDs)

	_, err = w.VerifyBulk(context.Background(), []string{"x"}, "maybe", "", admin)
	assert.ErrorIs(t, err, startup.ErrInvalidStatus)
}

func TestVerifyBulkNothingMatchedSendsNothing(t *testing.T) {
	events := &capture{}
	w := NewWorkflow(memory.NewStartupsRepo(), events)

	n, err := w.VerifyBulk(context.Background(), []string{"missing"}, "rejected", "", admin)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, events.events)
}
