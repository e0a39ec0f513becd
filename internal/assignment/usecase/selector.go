package usecase

import (
	"regexp"
	"sort"
	"strings"
	"time"

	assigndomain "distributor-backend/internal/assignment/domain"
	helpdomain "distributor-backend/internal/helpdesk/domain"
	helprepo "distributor-backend/internal/helpdesk/repository"
)

// stickyLookbackLimit bounds how many prior conversations of the same
// customer are inspected for a sticky match.
const stickyLookbackLimit = 25

// maxSubjectStripPasses bounds how many leading reply/forward prefixes are
// removed during subject normalization.
const maxSubjectStripPasses = 5

var (
	replyPrefixRe = regexp.MustCompile(`^(re|fw|fwd|aw|sv|tr|wg|antwoord|antwort|vs|enc)\s*:\s*`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
)

// Selector holds the selection algorithms. LeastOpen and Sticky query
// through the conversation repository they are constructed with, so inside a
// transaction the selector must be built over the tx-bound repository.
type Selector struct {
	conversations helprepo.ConversationRepository
}

// NewSelector creates a selector reading through conversations.
func NewSelector(conversations helprepo.ConversationRepository) *Selector {
	return &Selector{conversations: conversations}
}

// RoundRobin returns the eligible agent immediately following last in
// ascending order, wrapping to the smallest id. A zero or unknown pointer
// starts the rotation at the smallest id. Returns 0 when eligible is empty.
func (s *Selector) RoundRobin(eligible []uint, last uint) uint {
	if len(eligible) == 0 {
		return 0
	}

	sorted := append([]uint(nil), eligible...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	if last == 0 {
		return sorted[0]
	}

	idx := -1
	for i, id := range sorted {
		if id == last {
			idx = i
			break
		}
	}
	if idx < 0 {
		return sorted[0]
	}

	return sorted[(idx+1)%len(sorted)]
}

// LeastOpen returns the eligible agent with the fewest open conversations in
// the mailbox, breaking ties with RoundRobin over the tied subset.
func (s *Selector) LeastOpen(mailboxID uint, eligible []uint, last uint) (uint, error) {
	if len(eligible) == 0 {
		return 0, nil
	}

	counts, err := s.conversations.OpenCountsByUser(mailboxID, eligible)
	if err != nil {
		return 0, err
	}

	min := -1
	var candidates []uint
	for _, id := range eligible {
		cnt := counts[id]
		switch {
		case min < 0 || cnt < min:
			min = cnt
			candidates = []uint{id}
		case cnt == min:
			candidates = append(candidates, id)
		}
	}

	return s.RoundRobin(candidates, last), nil
}

// Sticky returns the agent who handled the customer's most recent prior
// conversation with the same normalized subject, if that agent is still
// eligible. Returns 0 when sticky routing is off or nothing matches.
func (s *Selector) Sticky(conv *helpdomain.Conversation, policy *assigndomain.Policy, eligible []uint) (uint, error) {
	if !policy.StickyEnabled || conv.CustomerID == 0 {
		return 0, nil
	}

	subject := NormalizeSubject(conv.Subject)
	if subject == "" {
		return 0, nil
	}

	since := time.Now().AddDate(0, 0, -policy.StickyDays)
	recent, err := s.conversations.RecentAssignedByCustomer(conv.MailboxID, conv.CustomerID, conv.ID, since, stickyLookbackLimit)
	if err != nil {
		return 0, err
	}

	eligibleSet := make(map[uint]bool, len(eligible))
	for _, id := range eligible {
		eligibleSet[id] = true
	}

	for i := range recent {
		prev := &recent[i]
		if !prev.Assigned() {
			continue
		}
		if NormalizeSubject(prev.Subject) != subject {
			continue
		}
		if eligibleSet[*prev.UserID] {
			return *prev.UserID, nil
		}
		return 0, nil
	}

	return 0, nil
}

// NormalizeSubject canonicalizes a subject for sticky matching: lowercase,
// trim, strip up to five leading reply/forward prefixes ("re:", "fwd:",
// "aw:", ...) and collapse internal whitespace.
func NormalizeSubject(subject string) string {
	s := whitespaceRe.ReplaceAllString(subject, " ")
	s = strings.TrimSpace(strings.ToLower(s))

	for i := 0; i < maxSubjectStripPasses; i++ {
		stripped := replyPrefixRe.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = strings.TrimSpace(stripped)
	}

	return s
}
