package domain

// Mode selects the distribution algorithm configured for a mailbox
type Mode string

const (
	ModeRoundRobin Mode = "round_robin"
	ModeLeastOpen  Mode = "least_open"
)

// Defer/sticky bounds, shared by the resolver and the settings API.
const (
	DeferMinutesMin = 1
	DeferMinutesMax = 60
	StickyDaysMin   = 1
	StickyDaysMax   = 365
)

// Policy is the canonical, fully-defaulted distribution policy of one
// mailbox. Only the settings resolver builds it; no other component reads
// the raw blob.
type Policy struct {
	Enabled bool   `json:"enabled"`
	Mode    Mode   `json:"mode"`
	Users   []uint `json:"users"`

	DeferEnabled bool `json:"defer_enabled"`
	DeferMinutes int  `json:"defer_minutes"`
	WebFallback  bool `json:"web_fallback"`

	StickyEnabled bool `json:"sticky_enabled"`
	StickyDays    int  `json:"sticky_days"`

	ExcludeTags []string `json:"exclude_tags"`

	FallbackUserID uint `json:"fallback_user_id"`

	OverrideDefaultAssignee bool `json:"override_default_assignee"`

	AuditEnabled bool `json:"audit_enabled"`

	// LastAssignedUserID is the round-robin rotation pointer (0 = start of
	// the pool). Mutated only under the mailbox's exclusive lock.
	LastAssignedUserID uint `json:"last_assigned_user_id"`

	// DroppedUsers counts configured pool entries the resolver had to throw
	// away. It distinguishes an empty pool from a pool of invalid ids and is
	// never persisted.
	DroppedUsers int `json:"-"`
}

// DefaultPolicy returns the global defaults applied to missing or malformed
// mailbox settings.
func DefaultPolicy() Policy {
	return Policy{
		Enabled:                 false,
		Mode:                    ModeRoundRobin,
		Users:                   nil,
		DeferEnabled:            false,
		DeferMinutes:            5,
		WebFallback:             false,
		StickyEnabled:           false,
		StickyDays:              60,
		ExcludeTags:             nil,
		FallbackUserID:          0,
		OverrideDefaultAssignee: true,
		AuditEnabled:            false,
		LastAssignedUserID:      0,
	}
}

// HasUser reports whether id is part of the configured pool.
func (p *Policy) HasUser(id uint) bool {
	for _, u := range p.Users {
		if u == id {
			return true
		}
	}
	return false
}
