package usecase

import (
	"context"
	"encoding/json"
	"time"

	assigndomain "distributor-backend/internal/assignment/domain"
	assignrepo "distributor-backend/internal/assignment/repository"
	helpdomain "distributor-backend/internal/helpdesk/domain"
	helprepo "distributor-backend/internal/helpdesk/repository"
	"distributor-backend/pkg/database"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Assignment trigger sources recorded in audit metadata.
const (
	SourceLive     = "live"
	SourceDeferred = "deferred"
	SourceManual   = "manual"
)

// Reasons attached to skipped, fallback and queue outcomes.
const (
	ReasonExcludedByTag      = "Excluded by tag"
	ReasonPoolEmpty          = "Pool empty"
	ReasonNoValidUsers       = "No valid users"
	ReasonNoMailboxAccess    = "Pool users have no mailbox access"
	ReasonPoolInactive       = "Pool users inactive"
	ReasonNoneSelected       = "No eligible assignee selected"
	ReasonDefaultAssignee    = "Mailbox default assignee takes precedence"
	ReasonAlreadyAssigned    = "Already assigned"
	ReasonConversationGone   = "Conversation not found"
	ReasonNoEligibleAssignee = "No eligible assignee"
)

// AssignContext describes what triggered an assignment run.
type AssignContext struct {
	Source string
	RunID  string
}

// Assigner is the assignment decision engine. It is the only component that
// mutates conversation and mailbox state, always inside a retryable
// transaction that locks the mailbox row first and the conversation row
// second.
type Assigner struct {
	db            *gorm.DB
	mailboxes     helprepo.MailboxRepository
	conversations helprepo.ConversationRepository
	users         helprepo.UserRepository
	folders       helprepo.FolderRepository
	pending       assignrepo.PendingRepository
	resolver      *SettingsResolver
	sink          *AuditSink
	log           zerolog.Logger
}

// NewAssigner creates a new Assigner.
func NewAssigner(
	db *gorm.DB,
	mailboxes helprepo.MailboxRepository,
	conversations helprepo.ConversationRepository,
	users helprepo.UserRepository,
	folders helprepo.FolderRepository,
	pending assignrepo.PendingRepository,
	resolver *SettingsResolver,
	sink *AuditSink,
	log zerolog.Logger,
) *Assigner {
	return &Assigner{
		db:            db,
		mailboxes:     mailboxes,
		conversations: conversations,
		users:         users,
		folders:       folders,
		pending:       pending,
		resolver:      resolver,
		sink:          sink,
		log:           log.With().Str("component", "assigner").Logger(),
	}
}

// AssignIfEnabled routes a newly created conversation, honoring the
// mailbox's deferral setting. Invoked synchronously on conversation
// creation.
func (a *Assigner) AssignIfEnabled(ctx context.Context, conversationID uint) error {
	return a.run(ctx, conversationID, AssignContext{Source: SourceLive}, true)
}

// AssignNow routes a conversation immediately, bypassing deferral. Used by
// the deferred queue drainer and the manual trigger.
func (a *Assigner) AssignNow(ctx context.Context, conversationID uint, actx AssignContext) error {
	return a.run(ctx, conversationID, actx, false)
}

// assignOutcome carries the decision and its audit entries out of the
// transaction; entries are flushed through the sink only after commit so a
// rolled-back attempt leaves no trace.
type assignOutcome struct {
	mailboxID    uint
	auditEnabled bool
	entries      []AuditEntry
}

func (a *Assigner) run(ctx context.Context, conversationID uint, actx AssignContext, allowDefer bool) error {
	var out *assignOutcome
	err := database.WithRetry(ctx, a.db, func(tx *gorm.DB) error {
		var txErr error
		out, txErr = a.assignLocked(tx, conversationID, actx, allowDefer)
		return txErr
	})
	if err != nil {
		a.log.Error().Err(err).
			Uint("conversation_id", conversationID).
			Str("source", actx.Source).
			Msg("assignment failed")
		if out != nil && out.mailboxID != 0 {
			a.sink.Record(out.auditEnabled, AuditEntry{
				MailboxID:      out.mailboxID,
				ConversationID: conversationID,
				Action:         assigndomain.AuditActionFailed,
				Reason:         err.Error(),
				Meta:           auditMeta(actx, nil),
			})
		}
		return err
	}

	a.flushOutcome(out)
	return nil
}

// flushOutcome records the collected audit entries after a committed run.
func (a *Assigner) flushOutcome(out *assignOutcome) {
	if out == nil {
		return
	}
	for _, e := range out.entries {
		a.sink.Record(out.auditEnabled, e)
	}
}

// assignLocked executes the shared decision procedure inside tx. The caller
// owns the transaction and retry policy; the pending processor reuses this
// from inside its own per-row transaction.
func (a *Assigner) assignLocked(tx *gorm.DB, conversationID uint, actx AssignContext, allowDefer bool) (*assignOutcome, error) {
	out := &assignOutcome{}

	convs := a.conversations.WithTx(tx)
	conv, err := convs.FindByID(conversationID)
	if err != nil {
		return out, err
	}
	if conv == nil || conv.Assigned() || conv.MailboxID == 0 {
		return out, nil
	}

	mailbox, err := a.mailboxes.WithTx(tx).LockByID(conv.MailboxID)
	if err != nil {
		return out, err
	}
	if mailbox == nil {
		return out, nil
	}
	out.mailboxID = mailbox.ID

	policy := a.resolver.Resolve(mailbox.Settings)
	out.auditEnabled = policy.AuditEnabled
	if !policy.Enabled {
		return out, nil
	}

	record := func(action assigndomain.AuditAction, mode assigndomain.AuditMode, reason string, assignee *uint, extra map[string]interface{}) {
		out.entries = append(out.entries, AuditEntry{
			MailboxID:      mailbox.ID,
			ConversationID: conv.ID,
			AssignedUserID: assignee,
			Action:         action,
			Mode:           mode,
			Reason:         reason,
			Meta:           auditMeta(actx, extra),
		})
	}

	if mailbox.DefaultUserID != 0 && !policy.OverrideDefaultAssignee {
		record(assigndomain.AuditActionSkipped, assigndomain.AuditModeNone, ReasonDefaultAssignee, nil, nil)
		return out, nil
	}

	// Exclusion by tag. A failed lookup is logged and treated as "no tags";
	// it must not block routing.
	if len(policy.ExcludeTags) > 0 {
		tags, tagErr := convs.TagNames(conv)
		if tagErr != nil {
			a.log.Warn().Err(tagErr).Uint("conversation_id", conv.ID).Msg("tag lookup failed, continuing without tags")
		}
		if hasExcludedTag(tags, policy.ExcludeTags) {
			record(assigndomain.AuditActionSkipped, assigndomain.AuditModeNone, ReasonExcludedByTag, nil, nil)
			return out, nil
		}
	}

	// Deferral: park the conversation for the drain instead of assigning.
	if allowDefer && policy.DeferEnabled {
		snapshot, _ := json.Marshal(assigndomain.PolicySnapshot{Mode: policy.Mode, Users: policy.Users})
		runAt := time.Now().Add(time.Duration(policy.DeferMinutes) * time.Minute)
		row := &assigndomain.PendingAssignment{
			MailboxID:      mailbox.ID,
			ConversationID: conv.ID,
			RunAt:          runAt,
			Snapshot:       snapshot,
		}
		if err := a.pending.WithTx(tx).Upsert(row); err != nil {
			return out, err
		}
		record(assigndomain.AuditActionEnqueued, assigndomain.AuditModeDeferred, "", nil,
			map[string]interface{}{"run_at": runAt.UTC().Format(time.RFC3339)})
		return out, nil
	}

	memberIDs, err := a.mailboxes.WithTx(tx).UserIDs(mailbox.ID)
	if err != nil {
		return out, err
	}

	// Eligibility: configured pool, narrowed to mailbox members, narrowed to
	// active agents. Each empty stage carries its own reason to the fallback.
	var failReason string
	eligible := policy.Users
	if len(eligible) == 0 {
		if policy.DroppedUsers > 0 {
			failReason = ReasonNoValidUsers
		} else {
			failReason = ReasonPoolEmpty
		}
	}
	if failReason == "" {
		eligible = intersectIDs(eligible, memberIDs)
		if len(eligible) == 0 {
			failReason = ReasonNoMailboxAccess
		}
	}
	if failReason == "" {
		active, actErr := a.users.WithTx(tx).ActiveIDs(eligible)
		if actErr != nil {
			return out, actErr
		}
		eligible = intersectIDs(eligible, active)
		if len(eligible) == 0 {
			failReason = ReasonPoolInactive
		}
	}

	var selected uint
	auditMode := assigndomain.AuditModeNone

	if failReason == "" {
		sel := NewSelector(convs)

		sticky, selErr := sel.Sticky(conv, &policy, eligible)
		if selErr != nil {
			return out, selErr
		}

		switch {
		case sticky != 0:
			// A sticky hit overrides the configured mode entirely.
			selected = sticky
			auditMode = assigndomain.AuditModeSticky
		case policy.Mode == assigndomain.ModeLeastOpen:
			selected, selErr = sel.LeastOpen(mailbox.ID, eligible, policy.LastAssignedUserID)
			if selErr != nil {
				return out, selErr
			}
			auditMode = assigndomain.AuditModeLeastOpen
		default:
			selected = sel.RoundRobin(eligible, policy.LastAssignedUserID)
			auditMode = assigndomain.AuditModeRoundRobin
		}

		if selected == 0 {
			failReason = ReasonNoneSelected
		}
	}

	var reason string
	if failReason != "" {
		selected = 0
		if policy.FallbackUserID != 0 && containsID(memberIDs, policy.FallbackUserID) {
			user, userErr := a.users.WithTx(tx).FindByID(policy.FallbackUserID)
			if userErr != nil {
				return out, userErr
			}
			if user != nil && user.IsActive() {
				selected = policy.FallbackUserID
				auditMode = assigndomain.AuditModeFallback
				reason = failReason
			}
		}
		if selected == 0 {
			record(assigndomain.AuditActionSkipped, assigndomain.AuditModeNone, failReason, nil, nil)
			return out, nil
		}
	}

	// Commit: re-read the conversation under its own lock. If another path
	// assigned it in the meantime, back off without mutation or audit.
	fresh, err := convs.LockByID(conv.ID)
	if err != nil {
		return out, err
	}
	if fresh == nil || fresh.Assigned() {
		return out, nil
	}

	oldFolderID := fresh.FolderID
	newFolderID, err := a.targetFolderID(tx, mailbox.ID, selected, oldFolderID)
	if err != nil {
		return out, err
	}

	if err := convs.Assign(fresh, selected, newFolderID); err != nil {
		return out, err
	}

	folders := a.folders.WithTx(tx)
	if oldFolderID != 0 && oldFolderID != newFolderID {
		if err := folders.RecalcCounters(oldFolderID); err != nil {
			return out, err
		}
	}
	if newFolderID != 0 {
		if err := folders.RecalcCounters(newFolderID); err != nil {
			return out, err
		}
	}

	// The rotation pointer advances only for rotation outcomes. Sticky and
	// fallback assignments leave the stored policy untouched, so the
	// persisted mode never reflects them even though the audit record does.
	if auditMode == assigndomain.AuditModeRoundRobin || auditMode == assigndomain.AuditModeLeastOpen {
		policy.LastAssignedUserID = selected
		a.resolver.NormalizeForSave(&policy)
		mailbox.Settings = a.resolver.Marshal(policy)
		if err := a.mailboxes.WithTx(tx).SaveSettings(mailbox); err != nil {
			return out, err
		}
	}

	assignee := selected
	record(assigndomain.AuditActionAssigned, auditMode, reason, &assignee, nil)
	return out, nil
}

// targetFolderID picks where an assigned conversation lands: the assignee's
// "mine" folder when the mailbox has one, otherwise the shared "assigned"
// folder, otherwise it stays where it is.
func (a *Assigner) targetFolderID(tx *gorm.DB, mailboxID, userID, currentFolderID uint) (uint, error) {
	folders := a.folders.WithTx(tx)

	mine, err := folders.FindByType(mailboxID, helpdomain.FolderTypeMine, userID)
	if err != nil {
		return 0, err
	}
	if mine != nil {
		return mine.ID, nil
	}

	assigned, err := folders.FindByType(mailboxID, helpdomain.FolderTypeAssigned, 0)
	if err != nil {
		return 0, err
	}
	if assigned != nil {
		return assigned.ID, nil
	}

	return currentFolderID, nil
}

func auditMeta(actx AssignContext, extra map[string]interface{}) map[string]interface{} {
	meta := map[string]interface{}{"source": actx.Source}
	if actx.RunID != "" {
		meta["run_id"] = actx.RunID
	}
	for k, v := range extra {
		meta[k] = v
	}
	return meta
}

func hasExcludedTag(tags []string, excluded []string) bool {
	for _, tag := range tags {
		tag = normalizeTag(tag)
		for _, ex := range excluded {
			if tag == ex {
				return true
			}
		}
	}
	return false
}

func intersectIDs(ids, allowed []uint) []uint {
	set := make(map[uint]bool, len(allowed))
	for _, id := range allowed {
		set[id] = true
	}
	var out []uint
	for _, id := range ids {
		if set[id] {
			out = append(out, id)
		}
	}
	return out
}

func containsID(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
