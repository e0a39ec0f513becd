package usecase

import (
	"context"
	"sync"
	"time"

	assigndomain "distributor-backend/internal/assignment/domain"
	assignrepo "distributor-backend/internal/assignment/repository"
	helprepo "distributor-backend/internal/helpdesk/repository"
	"distributor-backend/pkg/database"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// ProcessDue limit bounds.
const (
	ProcessLimitMin     = 1
	ProcessLimitMax     = 500
	ProcessLimitDefault = 50
)

// webFallbackLimit and webFallbackEvery throttle the opportunistic drain
// that runs on conversation creation for installs without a scheduler.
const (
	webFallbackLimit = 20
	webFallbackEvery = time.Minute
)

// PendingProcessor drains the deferred assignment queue.
type PendingProcessor struct {
	db            *gorm.DB
	pending       assignrepo.PendingRepository
	conversations helprepo.ConversationRepository
	assigner      *Assigner
	log           zerolog.Logger

	webFallbackMu   sync.Mutex
	webFallbackLast time.Time
}

// NewPendingProcessor creates a new PendingProcessor.
func NewPendingProcessor(
	db *gorm.DB,
	pending assignrepo.PendingRepository,
	conversations helprepo.ConversationRepository,
	assigner *Assigner,
	log zerolog.Logger,
) *PendingProcessor {
	return &PendingProcessor{
		db:            db,
		pending:       pending,
		conversations: conversations,
		assigner:      assigner,
		log:           log.With().Str("component", "pending_processor").Logger(),
	}
}

// ProcessDue drains up to limit due pending assignments, oldest first, and
// returns how many rows it examined. One row's failure never aborts the
// rest of the batch.
func (p *PendingProcessor) ProcessDue(ctx context.Context, limit int) (int, error) {
	limit = clampInt(limit, ProcessLimitMin, ProcessLimitMax)
	runID := uuid.New().String()

	rows, err := p.pending.Due(time.Now(), limit)
	if err != nil {
		return 0, err
	}

	examined := 0
	for i := range rows {
		examined++
		if err := p.processOne(ctx, rows[i].ID, runID); err != nil {
			p.log.Error().Err(err).
				Uint("pending_id", rows[i].ID).
				Uint("conversation_id", rows[i].ConversationID).
				Str("run_id", runID).
				Msg("pending assignment failed")
			p.markFailed(rows[i].ID, err)
		}
	}

	if examined > 0 {
		p.log.Info().Int("examined", examined).Str("run_id", runID).Msg("processed due assignments")
	}
	return examined, nil
}

// processOne handles a single queue row inside its own retryable
// transaction: claim the row under lock, run the engine, and record the
// terminal status from the conversation's post-run assignee.
func (p *PendingProcessor) processOne(ctx context.Context, pendingID uint, runID string) error {
	var out *assignOutcome

	err := database.WithRetry(ctx, p.db, func(tx *gorm.DB) error {
		out = nil

		// Locks here go pending-row first, then mailbox inside assignLocked,
		// the inverse of the live defer path (mailbox, then pending upsert).
		// A collision between the two surfaces as a deadlock error and is
		// absorbed by WithRetry.
		pendingTx := p.pending.WithTx(tx)
		locked, err := pendingTx.LockByID(pendingID)
		if err != nil {
			return err
		}
		if locked == nil || locked.Status != assigndomain.PendingStatusPending {
			// Claimed by a concurrent drain.
			return nil
		}

		conv, err := p.conversations.WithTx(tx).FindByID(locked.ConversationID)
		if err != nil {
			return err
		}
		if conv == nil {
			return pendingTx.MarkProcessed(locked, assigndomain.PendingStatusFailed, ReasonConversationGone)
		}
		if conv.Assigned() {
			return pendingTx.MarkProcessed(locked, assigndomain.PendingStatusSkipped, ReasonAlreadyAssigned)
		}

		actx := AssignContext{Source: SourceDeferred, RunID: runID}
		out, err = p.assigner.assignLocked(tx, conv.ID, actx, false)
		if err != nil {
			return err
		}

		// The engine may legitimately leave the conversation unassigned
		// (pool empty, excluded, raced). The row status follows the result.
		fresh, err := p.conversations.WithTx(tx).FindByID(conv.ID)
		if err != nil {
			return err
		}
		if fresh != nil && fresh.Assigned() {
			return pendingTx.MarkProcessed(locked, assigndomain.PendingStatusAssigned, "")
		}
		return pendingTx.MarkProcessed(locked, assigndomain.PendingStatusSkipped, ReasonNoEligibleAssignee)
	})
	if err != nil {
		return err
	}

	p.assigner.flushOutcome(out)
	return nil
}

// markFailed records a terminal failure on the row after its transaction
// gave up. Errors here are logged and dropped; the row stays pending and
// will be retried by a later drain only if this write also failed.
func (p *PendingProcessor) markFailed(pendingID uint, cause error) {
	row, err := p.pending.LockByID(pendingID)
	if err != nil || row == nil || row.Status != assigndomain.PendingStatusPending {
		return
	}
	if err := p.pending.MarkProcessed(row, assigndomain.PendingStatusFailed, cause.Error()); err != nil {
		p.log.Warn().Err(err).Uint("pending_id", pendingID).Msg("could not mark pending row failed")
	}
}

// WebFallbackDrain opportunistically drains a small batch of due rows. It
// exists for installs without the scheduler and is throttled process-wide.
func (p *PendingProcessor) WebFallbackDrain(ctx context.Context) {
	p.webFallbackMu.Lock()
	if time.Since(p.webFallbackLast) < webFallbackEvery {
		p.webFallbackMu.Unlock()
		return
	}
	p.webFallbackLast = time.Now()
	p.webFallbackMu.Unlock()

	if _, err := p.ProcessDue(ctx, webFallbackLimit); err != nil {
		p.log.Warn().Err(err).Msg("web fallback drain failed")
	}
}
