package usecase

import (
	"context"
	"testing"

	assigndomain "distributor-backend/internal/assignment/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSettingsService(f *fixture) *SettingsService {
	return NewSettingsService(f.mailboxes, f.resolver, testLogger())
}

func TestSettingsGetUnknownMailbox(t *testing.T) {
	f := newFixture(t)
	svc := newTestSettingsService(f)

	_, err := svc.Get(12345)
	assert.ErrorIs(t, err, ErrMailboxNotFound)
}

func TestSettingsUpdateRejectsEnabledEmptyPool(t *testing.T) {
	f := newFixture(t)
	svc := newTestSettingsService(f)
	mailbox := f.createMailbox(t, assigndomain.DefaultPolicy())

	policy := assigndomain.DefaultPolicy()
	policy.Enabled = true
	_, err := svc.Update(mailbox.ID, policy)
	assert.ErrorIs(t, err, ErrEmptyPool)

	// A disabled policy may have an empty pool.
	policy.Enabled = false
	saved, err := svc.Update(mailbox.ID, policy)
	require.NoError(t, err)
	assert.False(t, saved.Enabled)
}

func TestSettingsUpdatePreservesEnginePointer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := newTestSettingsService(f)

	f.activeAgents(t, 2, 5)
	mailbox := f.createMailbox(t, enabledPolicy(2, 5), 2, 5)

	conv := f.createConversation(t, mailbox.ID)
	require.NoError(t, f.assigner.AssignIfEnabled(ctx, conv.ID))
	require.Equal(t, uint(2), f.policy(t, mailbox.ID).LastAssignedUserID)

	// A client update that claims a different pointer does not move it.
	update := enabledPolicy(2, 5)
	update.LastAssignedUserID = 5
	saved, err := svc.Update(mailbox.ID, update)
	require.NoError(t, err)
	assert.Equal(t, uint(2), saved.LastAssignedUserID)

	// Shrinking the pool below the pointer resets the rotation.
	update = enabledPolicy(5)
	saved, err = svc.Update(mailbox.ID, update)
	require.NoError(t, err)
	assert.Zero(t, saved.LastAssignedUserID)
}

func TestSettingsUpdateNormalizesInput(t *testing.T) {
	f := newFixture(t)
	svc := newTestSettingsService(f)
	mailbox := f.createMailbox(t, assigndomain.DefaultPolicy())

	policy := assigndomain.DefaultPolicy()
	policy.Enabled = true
	policy.Users = []uint{5, 2, 5}
	policy.DeferMinutes = 500
	policy.StickyDays = 0
	policy.ExcludeTags = []string{" VIP ", "vip", "Billing"}

	saved, err := svc.Update(mailbox.ID, policy)
	require.NoError(t, err)
	assert.Equal(t, []uint{2, 5}, saved.Users)
	assert.Equal(t, assigndomain.DeferMinutesMax, saved.DeferMinutes)
	assert.Equal(t, assigndomain.StickyDaysMin, saved.StickyDays)
	assert.Equal(t, []string{"vip", "billing"}, saved.ExcludeTags)

	// What Update returned is exactly what a later Get resolves.
	got, err := svc.Get(mailbox.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.Users, got.Users)
	assert.Equal(t, saved.ExcludeTags, got.ExcludeTags)
}
