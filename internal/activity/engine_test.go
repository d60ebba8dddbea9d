package activity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/actorctx"
	"github.com/spec-kit/support-desk/internal/domain"
)

var fixedNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func fixedEngine() *Engine {
	return NewEngine(func() time.Time { return fixedNow })
}

func agent() *domain.User {
	return &domain.User{ID: "agent-1", Name: "Dana", Role: domain.UserRoleAgent}
}

func baseTicket() *domain.Ticket {
	return &domain.Ticket{
		ID:       "ticket-1",
		OwnerID:  "customer-1",
		Topic:    "Payment failed",
		Status:   domain.TicketStatusOpen,
		Priority: domain.TicketPriorityLow,
	}
}

func TestDeriveUpdateNoChanges(t *testing.T) {
	oldT := baseTicket()
	newT := *oldT

	drafts := fixedEngine().DeriveUpdate(oldT, &newT, agent())
	assert.Empty(t, drafts)
}

func TestDeriveUpdateNilActor(t *testing.T) {
	oldT := baseTicket()
	newT := *oldT
	newT.Status = domain.TicketStatusResolved
	newT.Priority = domain.TicketPriorityCritical

	drafts := fixedEngine().DeriveUpdate(oldT, &newT, nil)
	assert.Empty(t, drafts)
	assert.Nil(t, newT.ResolvedAt, "no actor, no side effects")
}

func TestDeriveUpdatePriorityOnly(t *testing.T) {
	oldT := baseTicket()
	newT := *oldT
	newT.Priority = domain.TicketPriorityHigh

	drafts := fixedEngine().DeriveUpdate(oldT, &newT, agent())
	require.Len(t, drafts, 1)
	assert.Equal(t, domain.ActivityPriorityChanged, drafts[0].Action)
	assert.Equal(t, "Priority changed from Low to High", drafts[0].Details)
	assert.Equal(t, "agent-1", drafts[0].PerformedBy)
	assert.Equal(t, fixedNow, drafts[0].Timestamp)
}

func TestDeriveUpdateFirstResolve(t *testing.T) {
	oldT := baseTicket()
	newT := *oldT
	newT.Status = domain.TicketStatusResolved

	drafts := fixedEngine().DeriveUpdate(oldT, &newT, agent())
	require.Len(t, drafts, 2)
	assert.Equal(t, domain.ActivityStatusChanged, drafts[0].Action)
	assert.Equal(t, "Status changed from Open to Resolved", drafts[0].Details)
	assert.Equal(t, domain.ActivityResolved, drafts[1].Action)
	assert.Equal(t, "Ticket marked as resolved", drafts[1].Details)

	require.NotNil(t, newT.ResolvedAt)
	assert.Equal(t, fixedNow, *newT.ResolvedAt)
}

func TestDeriveUpdateResolveIsStampedOnce(t *testing.T) {
	firstResolve := fixedNow.Add(-48 * time.Hour)

	oldT := baseTicket()
	oldT.Status = domain.TicketStatusClosed
	oldT.ResolvedAt = &firstResolve

	newT := *oldT
	newT.Status = domain.TicketStatusResolved

	drafts := fixedEngine().DeriveUpdate(oldT, &newT, agent())
	require.Len(t, drafts, 1)
	assert.Equal(t, domain.ActivityStatusChanged, drafts[0].Action)

	require.NotNil(t, newT.ResolvedAt)
	assert.Equal(t, firstResolve, *newT.ResolvedAt, "original resolution timestamp preserved")
}

func TestDeriveUpdateEmissionOrder(t *testing.T) {
	oldT := baseTicket()
	oldT.Status = domain.TicketStatusInProgress

	newT := *oldT
	newT.Status = domain.TicketStatusResolved
	newT.Priority = domain.TicketPriorityMedium
	newT.AssignedTo = &domain.UserRef{ID: "agent-2", Name: "Lee"}

	drafts := fixedEngine().DeriveUpdate(oldT, &newT, agent())
	require.Len(t, drafts, 4)
	assert.Equal(t, domain.ActivityStatusChanged, drafts[0].Action)
	assert.Equal(t, domain.ActivityResolved, drafts[1].Action)
	assert.Equal(t, domain.ActivityPriorityChanged, drafts[2].Action)
	assert.Equal(t, domain.ActivityAssignedToChanged, drafts[3].Action)
	assert.Equal(t, "Ticket assigned to Lee", drafts[3].Details)
}

func TestDeriveUpdateUnassign(t *testing.T) {
	oldT := baseTicket()
	oldT.AssignedTo = &domain.UserRef{ID: "agent-2", Name: "Lee"}
	newT := *oldT
	newT.AssignedTo = nil

	drafts := fixedEngine().DeriveUpdate(oldT, &newT, agent())
	require.Len(t, drafts, 1)
	assert.Equal(t, domain.ActivityAssignedToChanged, drafts[0].Action)
	assert.Equal(t, "Ticket assigned to Unassigned", drafts[0].Details)
}

func TestDeriveUpdateSameAssigneeDifferentPointer(t *testing.T) {
	oldT := baseTicket()
	oldT.AssignedTo = &domain.UserRef{ID: "agent-2", Name: "Lee"}
	newT := *oldT
	newT.AssignedTo = &domain.UserRef{ID: "agent-2", Name: "Lee"}

	drafts := fixedEngine().DeriveUpdate(oldT, &newT, agent())
	assert.Empty(t, drafts)
}

func TestDeriveCreate(t *testing.T) {
	draft := fixedEngine().DeriveCreate(baseTicket(), agent())
	assert.Equal(t, domain.ActivityCreated, draft.Action)
	assert.Equal(t, "Ticket created with topic: Payment failed", draft.Details)
	assert.Equal(t, "agent-1", draft.PerformedBy)
}

func TestDeriveMessage(t *testing.T) {
	msg := &domain.TicketMessage{
		TicketID:       "ticket-1",
		AuthorID:       "customer-1",
		Body:           "Any update?",
		IsStaffMessage: false,
	}

	t.Run("ambient actor preferred", func(t *testing.T) {
		ctx := actorctx.With(context.Background(), agent())
		draft := fixedEngine().DeriveMessage(ctx, msg)
		assert.Equal(t, domain.ActivityMessageAdded, draft.Action)
		assert.Equal(t, "agent-1", draft.PerformedBy)
		assert.Equal(t, "User added a message", draft.Details)
	})

	t.Run("falls back to author without ambient actor", func(t *testing.T) {
		draft := fixedEngine().DeriveMessage(context.Background(), msg)
		assert.Equal(t, "customer-1", draft.PerformedBy)
	})

	t.Run("staff wording follows the message flag", func(t *testing.T) {
		staffMsg := *msg
		staffMsg.IsStaffMessage = true
		draft := fixedEngine().DeriveMessage(context.Background(), &staffMsg)
		assert.Equal(t, "Staff added a message", draft.Details)
	})
}

func TestDeriveAttachment(t *testing.T) {
	att := &domain.TicketAttachment{
		TicketID: "ticket-1",
		FileName: "receipt.pdf",
	}

	added := fixedEngine().DeriveAttachment(att, agent(), false)
	assert.Equal(t, domain.ActivityAttachmentAdded, added.Action)
	assert.Equal(t, "Attachment added: receipt.pdf", added.Details)

	removed := fixedEngine().DeriveAttachment(att, agent(), true)
	assert.Equal(t, domain.ActivityAttachmentRemoved, removed.Action)
	assert.Equal(t, "Attachment deleted: receipt.pdf", removed.Details)
}

func TestDeriveDelete(t *testing.T) {
	draft := fixedEngine().DeriveDelete(baseTicket(), agent())
	assert.Equal(t, domain.ActivityDeleted, draft.Action)
	assert.Equal(t, "Ticket deleted: Payment failed", draft.Details)
}

func TestNewEngineDefaultsClock(t *testing.T) {
	engine := NewEngine(nil)
	draft := engine.DeriveCreate(baseTicket(), agent())
	assert.WithinDuration(t, time.Now(), draft.Timestamp, time.Minute)
}
