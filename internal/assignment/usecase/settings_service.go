package usecase

import (
	"errors"

	assigndomain "distributor-backend/internal/assignment/domain"
	helprepo "distributor-backend/internal/helpdesk/repository"

	"github.com/rs/zerolog"
)

// Settings service errors surfaced to the HTTP layer.
var (
	ErrMailboxNotFound = errors.New("mailbox not found")
	ErrEmptyPool       = errors.New("an enabled policy needs at least one agent in the pool")
)

// SettingsService reads and writes a mailbox's distribution policy. It is
// the save-side counterpart of the resolver: everything persisted goes
// through normalization first.
type SettingsService struct {
	mailboxes helprepo.MailboxRepository
	resolver  *SettingsResolver
	log       zerolog.Logger
}

// NewSettingsService creates a new SettingsService.
func NewSettingsService(mailboxes helprepo.MailboxRepository, resolver *SettingsResolver, log zerolog.Logger) *SettingsService {
	return &SettingsService{
		mailboxes: mailboxes,
		resolver:  resolver,
		log:       log.With().Str("component", "settings_service").Logger(),
	}
}

// Get returns the resolved policy for a mailbox.
func (s *SettingsService) Get(mailboxID uint) (assigndomain.Policy, error) {
	mailbox, err := s.mailboxes.FindByID(mailboxID)
	if err != nil {
		return assigndomain.Policy{}, err
	}
	if mailbox == nil {
		return assigndomain.Policy{}, ErrMailboxNotFound
	}
	return s.resolver.Resolve(mailbox.Settings), nil
}

// Update validates, normalizes and persists a policy. The stored rotation
// pointer is preserved unless it fell outside the new pool, in which case it
// resets so the rotation restarts at the smallest id.
func (s *SettingsService) Update(mailboxID uint, policy assigndomain.Policy) (assigndomain.Policy, error) {
	mailbox, err := s.mailboxes.FindByID(mailboxID)
	if err != nil {
		return assigndomain.Policy{}, err
	}
	if mailbox == nil {
		return assigndomain.Policy{}, ErrMailboxNotFound
	}

	// The pointer is engine-owned state, not a form field.
	current := s.resolver.Resolve(mailbox.Settings)
	policy.LastAssignedUserID = current.LastAssignedUserID

	s.resolver.NormalizeForSave(&policy)

	if policy.Enabled && len(policy.Users) == 0 {
		return assigndomain.Policy{}, ErrEmptyPool
	}

	mailbox.Settings = s.resolver.Marshal(policy)
	if err := s.mailboxes.SaveSettings(mailbox); err != nil {
		return assigndomain.Policy{}, err
	}

	s.log.Info().
		Uint("mailbox_id", mailboxID).
		Bool("enabled", policy.Enabled).
		Str("mode", string(policy.Mode)).
		Int("pool_size", len(policy.Users)).
		Msg("assignment settings updated")

	return policy, nil
}
