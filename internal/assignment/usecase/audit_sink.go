package usecase

import (
	"encoding/json"

	assigndomain "distributor-backend/internal/assignment/domain"
	assignrepo "distributor-backend/internal/assignment/repository"

	"github.com/rs/zerolog"
)

// AuditEntry is one decision to be recorded by the sink.
type AuditEntry struct {
	MailboxID      uint
	ConversationID uint
	AssignedUserID *uint
	Action         assigndomain.AuditAction
	Mode           assigndomain.AuditMode
	Reason         string
	Meta           map[string]interface{}
}

// AuditSink writes the bounded per-mailbox decision log. It is the single
// place where persistence errors of the audit trail are discarded; nothing
// that goes through the sink can fail the assignment that produced it.
type AuditSink struct {
	audits assignrepo.AuditRepository
	log    zerolog.Logger
}

// NewAuditSink creates a new AuditSink.
func NewAuditSink(audits assignrepo.AuditRepository, log zerolog.Logger) *AuditSink {
	return &AuditSink{
		audits: audits,
		log:    log.With().Str("component", "audit_sink").Logger(),
	}
}

// Record persists the entry when auditing is enabled for the mailbox, then
// prunes that mailbox's trail down to the newest records. Both steps are
// best-effort.
func (s *AuditSink) Record(auditEnabled bool, e AuditEntry) {
	if !auditEnabled {
		return
	}

	var meta []byte
	if len(e.Meta) > 0 {
		raw, err := json.Marshal(e.Meta)
		if err != nil {
			s.log.Debug().Err(err).Uint("conversation_id", e.ConversationID).Msg("dropping unmarshalable audit meta")
		} else {
			meta = raw
		}
	}

	rec := &assigndomain.AuditRecord{
		MailboxID:      e.MailboxID,
		ConversationID: e.ConversationID,
		AssignedUserID: e.AssignedUserID,
		Action:         e.Action,
		Mode:           e.Mode,
		Reason:         e.Reason,
		Meta:           meta,
	}

	if err := s.audits.Insert(rec); err != nil {
		s.log.Debug().Err(err).Uint("mailbox_id", e.MailboxID).Msg("audit insert failed")
		return
	}

	if err := s.audits.PruneMailbox(e.MailboxID, assigndomain.AuditKeepPerMailbox); err != nil {
		s.log.Debug().Err(err).Uint("mailbox_id", e.MailboxID).Msg("audit prune failed")
	}
}
