// Package activity derives audit records from ticket mutations. The engine is
// pure: each operation returns drafts for the caller to persist, and the only
// state it ever touches is the resolved timestamp on a caller-supplied
// snapshot.
package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/spec-kit/support-desk/internal/actorctx"
	"github.com/spec-kit/support-desk/internal/domain"
)

// Draft is an in-memory, not-yet-persisted activity record.
type Draft struct {
	TicketID    string
	Action      domain.ActivityAction
	PerformedBy string
	Details     string
	Timestamp   time.Time
}

// Engine computes activity drafts for ticket mutations. The clock is injected
// so derivations are deterministic under test.
type Engine struct {
	now func() time.Time
}

// NewEngine builds an engine around the given clock. A nil clock defaults to
// time.Now.
func NewEngine(now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{now: now}
}

// DeriveUpdate diffs the old and new snapshots of a ticket and returns the
// activity drafts describing what changed, in fixed order: status (with a
// trailing resolved record when the ticket first becomes resolved), then
// priority, then assignee. A nil actor yields no drafts: an unattributable
// change is skipped silently rather than failed, since the underlying
// mutation is already committed.
//
// When the status transitions to resolved and the old snapshot had no
// resolved timestamp, the engine stamps newTicket.ResolvedAt. This is the one
// place it mutates state.
func (e *Engine) DeriveUpdate(oldTicket, newTicket *domain.Ticket, actor *domain.User) []Draft {
	if actor == nil {
		return nil
	}

	var drafts []Draft

	if oldTicket.Status != newTicket.Status {
		drafts = append(drafts, e.draft(newTicket.ID, domain.ActivityStatusChanged, actor,
			fmt.Sprintf("Status changed from %s to %s", oldTicket.Status.Label(), newTicket.Status.Label())))

		if newTicket.Status == domain.TicketStatusResolved && oldTicket.ResolvedAt == nil {
			now := e.now()
			newTicket.ResolvedAt = &now
			drafts = append(drafts, e.draft(newTicket.ID, domain.ActivityResolved, actor,
				"Ticket marked as resolved"))
		}
	}

	if oldTicket.Priority != newTicket.Priority {
		drafts = append(drafts, e.draft(newTicket.ID, domain.ActivityPriorityChanged, actor,
			fmt.Sprintf("Priority changed from %s to %s", oldTicket.Priority.Label(), newTicket.Priority.Label())))
	}

	if !sameAssignee(oldTicket.AssignedTo, newTicket.AssignedTo) {
		name := "Unassigned"
		if newTicket.AssignedTo != nil {
			name = newTicket.AssignedTo.Name
		}
		drafts = append(drafts, e.draft(newTicket.ID, domain.ActivityAssignedToChanged, actor,
			fmt.Sprintf("Ticket assigned to %s", name)))
	}

	return drafts
}

// DeriveCreate returns the single created record for a new ticket.
func (e *Engine) DeriveCreate(ticket *domain.Ticket, actor *domain.User) Draft {
	return e.draft(ticket.ID, domain.ActivityCreated, actor,
		fmt.Sprintf("Ticket created with topic: %s", ticket.Topic))
}

// DeriveMessage returns the message_added record for a new message. The
// ambient actor on ctx is preferred; when none is set the message's own
// author is attributed, so system-triggered message creation still gets a
// record.
func (e *Engine) DeriveMessage(ctx context.Context, msg *domain.TicketMessage) Draft {
	performedBy := msg.AuthorID
	if actor, ok := actorctx.From(ctx); ok {
		performedBy = actor.ID
	}
	who := "User"
	if msg.IsStaffMessage {
		who = "Staff"
	}
	return Draft{
		TicketID:    msg.TicketID,
		Action:      domain.ActivityMessageAdded,
		PerformedBy: performedBy,
		Details:     fmt.Sprintf("%s added a message", who),
		Timestamp:   e.now(),
	}
}

// DeriveAttachment returns the record for an attachment being added or
// removed, named by filename.
func (e *Engine) DeriveAttachment(att *domain.TicketAttachment, actor *domain.User, removed bool) Draft {
	action := domain.ActivityAttachmentAdded
	details := fmt.Sprintf("Attachment added: %s", att.FileName)
	if removed {
		action = domain.ActivityAttachmentRemoved
		details = fmt.Sprintf("Attachment deleted: %s", att.FileName)
	}
	return e.draft(att.TicketID, action, actor, details)
}

// DeriveDelete returns the deleted record for a ticket. Callers produce it
// before the ticket and its dependents are removed from storage; the record's
// ticket reference is expected to dangle afterwards, which is why activity
// rows are exempt from the cascade.
func (e *Engine) DeriveDelete(ticket *domain.Ticket, actor *domain.User) Draft {
	return e.draft(ticket.ID, domain.ActivityDeleted, actor,
		fmt.Sprintf("Ticket deleted: %s", ticket.Topic))
}

func (e *Engine) draft(ticketID string, action domain.ActivityAction, actor *domain.User, details string) Draft {
	d := Draft{
		TicketID:  ticketID,
		Action:    action,
		Details:   details,
		Timestamp: e.now(),
	}
	if actor != nil {
		d.PerformedBy = actor.ID
	}
	return d
}

func sameAssignee(a, b *domain.UserRef) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ID == b.ID
}
