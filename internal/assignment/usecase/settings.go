package usecase

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	assigndomain "distributor-backend/internal/assignment/domain"
)

// SettingsResolver turns the raw, possibly partial or malformed settings
// blob of a mailbox into a canonical Policy. Resolve never fails: anything
// it cannot interpret falls back to the configured defaults.
type SettingsResolver struct {
	defaults assigndomain.Policy
}

// NewSettingsResolver creates a resolver seeded with global defaults.
func NewSettingsResolver(defaults assigndomain.Policy) *SettingsResolver {
	return &SettingsResolver{defaults: defaults}
}

// Resolve parses raw and returns a fully-populated policy. Unknown keys are
// ignored; wrong scalar types are coerced where a sane reading exists and
// defaulted otherwise.
func (r *SettingsResolver) Resolve(raw []byte) assigndomain.Policy {
	p := r.defaults
	p.Users = append([]uint(nil), r.defaults.Users...)
	p.ExcludeTags = append([]string(nil), r.defaults.ExcludeTags...)

	if len(raw) == 0 {
		return p
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return p
	}

	if v, ok := m["enabled"]; ok {
		p.Enabled = boolValue(v)
	}
	if v, ok := m["mode"]; ok {
		p.Mode = modeValue(v, p.Mode)
	}
	rawUserCount := -1
	if v, ok := m["users"]; ok {
		p.Users, rawUserCount = idListValue(v)
	}

	if v, ok := m["defer_enabled"]; ok {
		p.DeferEnabled = boolValue(v)
	}
	if v, ok := m["defer_minutes"]; ok {
		p.DeferMinutes = intValue(v, p.DeferMinutes)
	}
	if v, ok := m["web_fallback"]; ok {
		p.WebFallback = boolValue(v)
	}

	if v, ok := m["sticky_enabled"]; ok {
		p.StickyEnabled = boolValue(v)
	}
	if v, ok := m["sticky_days"]; ok {
		p.StickyDays = intValue(v, p.StickyDays)
	}

	if v, ok := m["exclude_tags"]; ok {
		p.ExcludeTags = tagListValue(v)
	}

	if v, ok := m["fallback_user_id"]; ok {
		p.FallbackUserID = uint(maxInt(0, intValue(v, 0)))
	}
	if v, ok := m["override_default_assignee"]; ok {
		p.OverrideDefaultAssignee = boolValue(v)
	}
	if v, ok := m["audit_enabled"]; ok {
		p.AuditEnabled = boolValue(v)
	}
	if v, ok := m["last_assigned_user_id"]; ok {
		p.LastAssignedUserID = uint(maxInt(0, intValue(v, 0)))
	}

	r.normalize(&p)
	if rawUserCount > 0 && len(p.Users) == 0 {
		p.DroppedUsers = rawUserCount
	}
	return p
}

// NormalizeForSave normalizes a policy about to be persisted and resets the
// rotation pointer when it no longer belongs to the pool.
func (r *SettingsResolver) NormalizeForSave(p *assigndomain.Policy) {
	r.normalize(p)
	if p.LastAssignedUserID != 0 && !p.HasUser(p.LastAssignedUserID) {
		p.LastAssignedUserID = 0
	}
}

// Marshal serializes the canonical policy back into the mailbox blob.
func (r *SettingsResolver) Marshal(p assigndomain.Policy) []byte {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil
	}
	return raw
}

func (r *SettingsResolver) normalize(p *assigndomain.Policy) {
	p.Users = normalizeIDs(p.Users)
	p.ExcludeTags = normalizeTags(p.ExcludeTags)

	if p.Mode != assigndomain.ModeRoundRobin && p.Mode != assigndomain.ModeLeastOpen {
		p.Mode = assigndomain.ModeRoundRobin
	}
	p.DeferMinutes = clampInt(p.DeferMinutes, assigndomain.DeferMinutesMin, assigndomain.DeferMinutesMax)
	p.StickyDays = clampInt(p.StickyDays, assigndomain.StickyDaysMin, assigndomain.StickyDaysMax)
}

// normalizeIDs deduplicates, drops non-positive ids and sorts ascending.
func normalizeIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	var out []uint
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// normalizeTag canonicalizes one tag token for comparison.
func normalizeTag(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

// normalizeTags trims, lowercases and deduplicates tag tokens.
func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	var out []string
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func boolValue(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case float64:
		return b != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "1", "true", "on", "yes":
			return true
		}
	}
	return false
}

func intValue(v interface{}, def int) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		if parsed, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return parsed
		}
	}
	return def
}

func modeValue(v interface{}, def assigndomain.Mode) assigndomain.Mode {
	if s, ok := v.(string); ok {
		switch assigndomain.Mode(s) {
		case assigndomain.ModeRoundRobin, assigndomain.ModeLeastOpen:
			return assigndomain.Mode(s)
		}
	}
	return def
}

// idListValue reads a user pool given as a JSON array of numbers or numeric
// strings. The second return is the raw element count before filtering.
func idListValue(v interface{}) ([]uint, int) {
	items, ok := v.([]interface{})
	if !ok {
		return nil, 0
	}
	var ids []uint
	for _, item := range items {
		if n := intValue(item, 0); n > 0 {
			ids = append(ids, uint(n))
		}
	}
	return ids, len(items)
}

// tagListValue reads exclude_tags given either as a comma-separated string
// (the historical storage format) or a JSON array.
func tagListValue(v interface{}) []string {
	switch t := v.(type) {
	case string:
		return strings.Split(t, ",")
	case []interface{}:
		var tags []string
		for _, item := range t {
			if s, ok := item.(string); ok {
				tags = append(tags, s)
			}
		}
		return tags
	}
	return nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
