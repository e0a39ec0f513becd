package usecase

import (
	"testing"

	assigndomain "distributor-backend/internal/assignment/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver() *SettingsResolver {
	return NewSettingsResolver(assigndomain.DefaultPolicy())
}

func TestResolveEmptyAndMalformedBlobs(t *testing.T) {
	r := newTestResolver()

	for _, raw := range [][]byte{nil, {}, []byte("not json"), []byte(`"just a string"`), []byte(`[1,2,3]`)} {
		p := r.Resolve(raw)
		assert.False(t, p.Enabled)
		assert.Equal(t, assigndomain.ModeRoundRobin, p.Mode)
		assert.Equal(t, 5, p.DeferMinutes)
		assert.Equal(t, 60, p.StickyDays)
		assert.True(t, p.OverrideDefaultAssignee)
		assert.Empty(t, p.Users)
	}
}

func TestResolveCoercesScalarTypes(t *testing.T) {
	r := newTestResolver()

	p := r.Resolve([]byte(`{
		"enabled": "1",
		"mode": "least_open",
		"users": [9, "2", 5, 5, -3, "abc"],
		"defer_enabled": 1,
		"defer_minutes": "15",
		"sticky_enabled": "yes",
		"sticky_days": 400,
		"fallback_user_id": "7",
		"audit_enabled": true,
		"last_assigned_user_id": 2.0
	}`))

	assert.True(t, p.Enabled)
	assert.Equal(t, assigndomain.ModeLeastOpen, p.Mode)
	assert.Equal(t, []uint{2, 5, 9}, p.Users)
	assert.True(t, p.DeferEnabled)
	assert.Equal(t, 15, p.DeferMinutes)
	assert.True(t, p.StickyEnabled)
	assert.Equal(t, 365, p.StickyDays, "sticky_days clamped to its upper bound")
	assert.Equal(t, uint(7), p.FallbackUserID)
	assert.True(t, p.AuditEnabled)
	assert.Equal(t, uint(2), p.LastAssignedUserID)
}

func TestResolveClampsDeferMinutes(t *testing.T) {
	r := newTestResolver()

	low := r.Resolve([]byte(`{"defer_minutes": 0}`))
	assert.Equal(t, 1, low.DeferMinutes)

	high := r.Resolve([]byte(`{"defer_minutes": 1000}`))
	assert.Equal(t, 60, high.DeferMinutes)
}

func TestResolveInvalidModeFallsBack(t *testing.T) {
	r := newTestResolver()
	p := r.Resolve([]byte(`{"mode": "fastest_fingers"}`))
	assert.Equal(t, assigndomain.ModeRoundRobin, p.Mode)
}

func TestResolveExcludeTags(t *testing.T) {
	r := newTestResolver()

	fromString := r.Resolve([]byte(`{"exclude_tags": " VIP, Billing ,, vip "}`))
	assert.Equal(t, []string{"vip", "billing"}, fromString.ExcludeTags)

	fromArray := r.Resolve([]byte(`{"exclude_tags": ["Spam", "  URGENT "]}`))
	assert.Equal(t, []string{"spam", "urgent"}, fromArray.ExcludeTags)
}

func TestResolveTracksDroppedUsers(t *testing.T) {
	r := newTestResolver()

	invalidOnly := r.Resolve([]byte(`{"users": ["abc", -1, 0]}`))
	assert.Empty(t, invalidOnly.Users)
	assert.Equal(t, 3, invalidOnly.DroppedUsers)

	emptyPool := r.Resolve([]byte(`{"users": []}`))
	assert.Empty(t, emptyPool.Users)
	assert.Zero(t, emptyPool.DroppedUsers)
}

func TestNormalizeForSaveResetsStalePointer(t *testing.T) {
	r := newTestResolver()

	p := assigndomain.DefaultPolicy()
	p.Users = []uint{2, 5, 9}
	p.LastAssignedUserID = 5
	r.NormalizeForSave(&p)
	assert.Equal(t, uint(5), p.LastAssignedUserID, "pointer inside the pool survives")

	p.Users = []uint{2, 9}
	r.NormalizeForSave(&p)
	assert.Zero(t, p.LastAssignedUserID, "pointer outside the pool resets")
}

func TestMarshalResolveRoundTrip(t *testing.T) {
	r := newTestResolver()

	p := assigndomain.DefaultPolicy()
	p.Enabled = true
	p.Mode = assigndomain.ModeLeastOpen
	p.Users = []uint{3, 1}
	p.ExcludeTags = []string{"VIP"}
	p.LastAssignedUserID = 1
	r.NormalizeForSave(&p)

	raw := r.Marshal(p)
	require.NotEmpty(t, raw)

	back := r.Resolve(raw)
	assert.Equal(t, p.Enabled, back.Enabled)
	assert.Equal(t, p.Mode, back.Mode)
	assert.Equal(t, []uint{1, 3}, back.Users)
	assert.Equal(t, []string{"vip"}, back.ExcludeTags)
	assert.Equal(t, uint(1), back.LastAssignedUserID)
}
