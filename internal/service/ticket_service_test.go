package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/activity"
	"github.com/spec-kit/support-desk/internal/actorctx"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

var testNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

type fakeTicketRepo struct {
	tickets map[string]*domain.Ticket
	seq     int
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: map[string]*domain.Ticket{}}
}

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	cp := *t
	if t.AssignedTo != nil {
		ref := *t.AssignedTo
		cp.AssignedTo = &ref
	}
	if t.ResolvedAt != nil {
		ts := *t.ResolvedAt
		cp.ResolvedAt = &ts
	}
	return &cp
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.seq++
	ticket.ID = fmt.Sprintf("ticket-%d", r.seq)
	ticket.CreatedAt = testNow
	ticket.UpdatedAt = testNow
	r.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneTicket(ticket), nil
}

func (r *fakeTicketRepo) GetByIDForOwner(_ context.Context, id, ownerID string) (*domain.Ticket, error) {
	ticket, ok := r.tickets[id]
	if !ok || ticket.OwnerID != ownerID {
		return nil, pgx.ErrNoRows
	}
	return cloneTicket(ticket), nil
}

func (r *fakeTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if filter.OwnerID != nil && ticket.OwnerID != *filter.OwnerID {
			continue
		}
		if filter.AssigneeID != nil {
			if ticket.AssignedTo == nil || ticket.AssignedTo.ID != *filter.AssigneeID {
				continue
			}
		}
		result = append(result, *cloneTicket(ticket))
	}
	return result, nil
}

func (r *fakeTicketRepo) UpdateLocked(_ context.Context, id string, mutate func(before, after *domain.Ticket) error) (*domain.Ticket, *domain.Ticket, error) {
	stored, ok := r.tickets[id]
	if !ok {
		return nil, nil, pgx.ErrNoRows
	}
	before := cloneTicket(stored)
	after := cloneTicket(stored)
	if err := mutate(before, after); err != nil {
		return nil, nil, err
	}
	after.UpdatedAt = testNow
	r.tickets[id] = cloneTicket(after)
	return before, after, nil
}

func (r *fakeTicketRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.tickets, id)
	return nil
}

type fakeMessageRepo struct {
	messages map[string]*domain.TicketMessage
	seq      int
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: map[string]*domain.TicketMessage{}}
}

func (r *fakeMessageRepo) Create(_ context.Context, msg *domain.TicketMessage) error {
	r.seq++
	msg.ID = fmt.Sprintf("msg-%d", r.seq)
	msg.CreatedAt = testNow
	cp := *msg
	r.messages[msg.ID] = &cp
	return nil
}

func (r *fakeMessageRepo) GetByID(_ context.Context, id string) (*domain.TicketMessage, error) {
	msg, ok := r.messages[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *msg
	return &cp, nil
}

func (r *fakeMessageRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketMessage, error) {
	var result []domain.TicketMessage
	for _, msg := range r.messages {
		if msg.TicketID == ticketID {
			result = append(result, *msg)
		}
	}
	return result, nil
}

type fakeAttachmentRepo struct {
	attachments map[string]*domain.TicketAttachment
	seq         int
}

func newFakeAttachmentRepo() *fakeAttachmentRepo {
	return &fakeAttachmentRepo{attachments: map[string]*domain.TicketAttachment{}}
}

func (r *fakeAttachmentRepo) Create(_ context.Context, att *domain.TicketAttachment) error {
	r.seq++
	att.ID = fmt.Sprintf("att-%d", r.seq)
	att.UploadedAt = testNow
	cp := *att
	r.attachments[att.ID] = &cp
	return nil
}

func (r *fakeAttachmentRepo) GetByID(_ context.Context, id, ticketID string) (*domain.TicketAttachment, error) {
	att, ok := r.attachments[id]
	if !ok || att.TicketID != ticketID {
		return nil, pgx.ErrNoRows
	}
	cp := *att
	return &cp, nil
}

func (r *fakeAttachmentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketAttachment, error) {
	var result []domain.TicketAttachment
	for _, att := range r.attachments {
		if att.TicketID == ticketID {
			result = append(result, *att)
		}
	}
	return result, nil
}

func (r *fakeAttachmentRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.attachments[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.attachments, id)
	return nil
}

type fakeActivityRepo struct {
	records []domain.TicketActivity
	seq     int
}

func (r *fakeActivityRepo) Append(_ context.Context, activity *domain.TicketActivity) error {
	r.seq++
	activity.ID = fmt.Sprintf("act-%d", r.seq)
	r.records = append(r.records, *activity)
	return nil
}

func (r *fakeActivityRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketActivity, error) {
	var result []domain.TicketActivity
	for _, record := range r.records {
		if record.TicketID == ticketID {
			result = append(result, record)
		}
	}
	return result, nil
}

func (r *fakeActivityRepo) forTicket(ticketID string) []domain.TicketActivity {
	records, _ := r.ListByTicket(context.Background(), ticketID)
	return records
}

type fakeUserRepo struct {
	users map[string]*domain.User
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *domain.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return user, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type fakeOrderRepo struct {
	orders map[string]*domain.Order
}

func (r *fakeOrderRepo) GetByIDForUser(_ context.Context, id, userID string) (*domain.Order, error) {
	order, ok := r.orders[id]
	if !ok || order.UserID != userID {
		return nil, pgx.ErrNoRows
	}
	return order, nil
}

func (r *fakeOrderRepo) ListByUser(_ context.Context, userID string) ([]domain.Order, error) {
	var result []domain.Order
	for _, order := range r.orders {
		if order.UserID == userID {
			result = append(result, *order)
		}
	}
	return result, nil
}

type fakeObjectStore struct {
	seq     int
	removed []string
}

func (s *fakeObjectStore) Put(_ context.Context, ticketID string, r io.Reader, _ int64, _ string) (string, error) {
	_, _ = io.ReadAll(r)
	s.seq++
	return fmt.Sprintf("ticket_attachments/%s/obj-%d", ticketID, s.seq), nil
}

func (s *fakeObjectStore) PresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://files.example.com/" + key, nil
}

func (s *fakeObjectStore) Remove(_ context.Context, key string) error {
	s.removed = append(s.removed, key)
	return nil
}

type fixture struct {
	svc         *TicketService
	tickets     *fakeTicketRepo
	messages    *fakeMessageRepo
	attachments *fakeAttachmentRepo
	activities  *fakeActivityRepo
	users       *fakeUserRepo
	orders      *fakeOrderRepo
	store       *fakeObjectStore

	customer *domain.User
	stranger *domain.User
	agent    *domain.User
}

func newFixture() *fixture {
	f := &fixture{
		tickets:     newFakeTicketRepo(),
		messages:    newFakeMessageRepo(),
		attachments: newFakeAttachmentRepo(),
		activities:  &fakeActivityRepo{},
		users:       &fakeUserRepo{users: map[string]*domain.User{}},
		orders:      &fakeOrderRepo{orders: map[string]*domain.Order{}},
		store:       &fakeObjectStore{},
		customer:    &domain.User{ID: "customer-1", Name: "Avery", Role: domain.UserRoleCustomer},
		stranger:    &domain.User{ID: "customer-2", Name: "Blake", Role: domain.UserRoleCustomer},
		agent:       &domain.User{ID: "agent-1", Name: "Dana", Role: domain.UserRoleAgent},
	}
	for _, user := range []*domain.User{f.customer, f.stranger, f.agent} {
		f.users.users[user.ID] = user
	}
	f.svc = NewTicketService(TicketDependencies{
		TicketRepo:     f.tickets,
		MessageRepo:    f.messages,
		AttachmentRepo: f.attachments,
		ActivityRepo:   f.activities,
		UserRepo:       f.users,
		OrderRepo:      f.orders,
		Engine:         activity.NewEngine(func() time.Time { return testNow }),
		ObjectStore:    f.store,
	})
	return f
}

func (f *fixture) createTicket(t *testing.T) *domain.Ticket {
	t.Helper()
	ticket, err := f.svc.CreateTicket(context.Background(), f.customer, TicketCreateInput{
		Topic:       "Payment failed",
		Description: "Card declined at checkout",
	})
	require.NoError(t, err)
	return ticket
}

func errCode(t *testing.T, err error) string {
	t.Helper()
	var de *apperrors.DomainError
	require.ErrorAs(t, err, &de)
	return de.Code
}

func strPtr(s string) *string { return &s }

func statusPtr(s domain.TicketStatus) *domain.TicketStatus { return &s }

func priorityPtr(p domain.TicketPriority) *domain.TicketPriority { return &p }

func TestCreateTicketDefaultsAndRecordsActivity(t *testing.T) {
	f := newFixture()
	ticket := f.createTicket(t)

	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, domain.TicketPriorityLow, ticket.Priority, "priority defaults to low")

	records := f.activities.forTicket(ticket.ID)
	require.Len(t, records, 1)
	assert.Equal(t, domain.ActivityCreated, records[0].Action)
	assert.Equal(t, "Ticket created with topic: Payment failed", records[0].Details)
	assert.Equal(t, f.customer.ID, records[0].PerformedBy)
}

func TestCreateTicketRejectsForeignOrder(t *testing.T) {
	f := newFixture()
	f.orders.orders["order-1"] = &domain.Order{ID: "order-1", UserID: f.stranger.ID}

	_, err := f.svc.CreateTicket(context.Background(), f.customer, TicketCreateInput{
		OrderID:     strPtr("order-1"),
		Topic:       "Refund",
		Description: "Please refund order",
	})
	assert.Equal(t, "NOT_FOUND", errCode(t, err))
}

func TestUpdateTicketResolveStampsTimestampAndOrder(t *testing.T) {
	f := newFixture()
	ticket := f.createTicket(t)

	updated, err := f.svc.UpdateTicket(context.Background(), f.agent, ticket.ID, TicketUpdateInput{
		Status:   statusPtr(domain.TicketStatusResolved),
		Priority: priorityPtr(domain.TicketPriorityHigh),
	})
	require.NoError(t, err)

	require.NotNil(t, updated.ResolvedAt)
	assert.Equal(t, testNow, *updated.ResolvedAt)

	stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ResolvedAt, "resolved timestamp persists with the update")

	records := f.activities.forTicket(ticket.ID)
	require.Len(t, records, 4)
	assert.Equal(t, domain.ActivityCreated, records[0].Action)
	assert.Equal(t, domain.ActivityStatusChanged, records[1].Action)
	assert.Equal(t, "Status changed from Open to Resolved", records[1].Details)
	assert.Equal(t, domain.ActivityResolved, records[2].Action)
	assert.Equal(t, domain.ActivityPriorityChanged, records[3].Action)
}

func TestUpdateTicketClosedIsTerminal(t *testing.T) {
	f := newFixture()
	ticket := f.createTicket(t)

	_, err := f.svc.UpdateTicket(context.Background(), f.agent, ticket.ID, TicketUpdateInput{
		Status: statusPtr(domain.TicketStatusClosed),
	})
	require.NoError(t, err)
	recordsBefore := len(f.activities.forTicket(ticket.ID))

	_, err = f.svc.UpdateTicket(context.Background(), f.agent, ticket.ID, TicketUpdateInput{
		Status: statusPtr(domain.TicketStatusOpen),
	})
	assert.Equal(t, "CONFLICT", errCode(t, err))

	stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, stored.Status, "failed transition leaves the ticket untouched")
	assert.Len(t, f.activities.forTicket(ticket.ID), recordsBefore, "no activity for a rejected change")
}

func TestUpdateTicketAssignmentIsStaffOnly(t *testing.T) {
	f := newFixture()
	ticket := f.createTicket(t)

	_, err := f.svc.UpdateTicket(context.Background(), f.customer, ticket.ID, TicketUpdateInput{
		AssignedToID: strPtr(f.agent.ID),
	})
	assert.Equal(t, "FORBIDDEN", errCode(t, err))
}

func TestUpdateTicketAssigneeMustBeStaff(t *testing.T) {
	f := newFixture()
	ticket := f.createTicket(t)

	_, err := f.svc.UpdateTicket(context.Background(), f.agent, ticket.ID, TicketUpdateInput{
		AssignedToID: strPtr(f.stranger.ID),
	})
	assert.Equal(t, "VALIDATION_FAILED", errCode(t, err))
}

func TestUpdateTicketAssignAndUnassign(t *testing.T) {
	f := newFixture()
	ticket := f.createTicket(t)

	updated, err := f.svc.UpdateTicket(context.Background(), f.agent, ticket.ID, TicketUpdateInput{
		AssignedToID: strPtr(f.agent.ID),
	})
	require.NoError(t, err)
	require.NotNil(t, updated.AssignedTo)
	assert.Equal(t, f.agent.ID, updated.AssignedTo.ID)

	updated, err = f.svc.UpdateTicket(context.Background(), f.agent, ticket.ID, TicketUpdateInput{
		AssignedToID: strPtr(""),
	})
	require.NoError(t, err)
	assert.Nil(t, updated.AssignedTo)

	records := f.activities.forTicket(ticket.ID)
	require.Len(t, records, 3)
	assert.Equal(t, "Ticket assigned to Dana", records[1].Details)
	assert.Equal(t, "Ticket assigned to Unassigned", records[2].Details)
}

func TestDeleteTicketRequiresStaff(t *testing.T) {
	f := newFixture()
	ticket := f.createTicket(t)

	err := f.svc.DeleteTicket(context.Background(), f.customer, ticket.ID)
	assert.Equal(t, "FORBIDDEN", errCode(t, err))
}

func TestDeleteTicketAuditSurvivesRemoval(t *testing.T) {
	f := newFixture()
	ticket := f.createTicket(t)

	require.NoError(t, f.svc.DeleteTicket(context.Background(), f.agent, ticket.ID))

	_, err := f.tickets.GetByID(context.Background(), ticket.ID)
	assert.ErrorIs(t, err, pgx.ErrNoRows)

	records := f.activities.forTicket(ticket.ID)
	require.Len(t, records, 2)
	last := records[len(records)-1]
	assert.Equal(t, domain.ActivityDeleted, last.Action)
	assert.Equal(t, "Ticket deleted: Payment failed", last.Details)
	assert.Equal(t, f.agent.ID, last.PerformedBy)
}

func TestGetTicketForeignOwnerReadsAsNotFound(t *testing.T) {
	f := newFixture()
	ticket := f.createTicket(t)

	_, _, err := f.svc.GetTicket(context.Background(), f.stranger, ticket.ID)
	assert.Equal(t, "NOT_FOUND", errCode(t, err))

	_, _, err = f.svc.GetTicket(context.Background(), f.agent, ticket.ID)
	assert.NoError(t, err, "staff see every ticket")
}

func TestListTicketsScopedByRole(t *testing.T) {
	f := newFixture()
	f.createTicket(t)

	mine, err := f.svc.ListTickets(context.Background(), f.customer, TicketListFilter{})
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	theirs, err := f.svc.ListTickets(context.Background(), f.stranger, TicketListFilter{})
	require.NoError(t, err)
	assert.Empty(t, theirs)

	all, err := f.svc.ListTickets(context.Background(), f.agent, TicketListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestAddMessageRecordsActivity(t *testing.T) {
	f := newFixture()
	ticket := f.createTicket(t)

	ctx := actorctx.With(context.Background(), f.agent)
	msg, err := f.svc.AddMessage(ctx, f.agent, ticket.ID, "  We are looking into it.  ")
	require.NoError(t, err)
	assert.Equal(t, "We are looking into it.", msg.Body)
	assert.True(t, msg.IsStaffMessage)

	records := f.activities.forTicket(ticket.ID)
	require.Len(t, records, 2)
	assert.Equal(t, domain.ActivityMessageAdded, records[1].Action)
	assert.Equal(t, "Staff added a message", records[1].Details)
	assert.Equal(t, f.agent.ID, records[1].PerformedBy)
}

func TestAddMessageRejectsEmptyBody(t *testing.T) {
	f := newFixture()
	ticket := f.createTicket(t)

	_, err := f.svc.AddMessage(context.Background(), f.customer, ticket.ID, "   ")
	assert.Equal(t, "VALIDATION_FAILED", errCode(t, err))
}

func TestAddAttachmentUsesUploadMetadata(t *testing.T) {
	f := newFixture()
	ticket := f.createTicket(t)

	att, err := f.svc.AddAttachment(context.Background(), f.customer, ticket.ID, AttachmentUpload{
		Reader:      strings.NewReader("pdf-bytes"),
		FileName:    "receipt.pdf",
		SizeBytes:   9,
		ContentType: "application/pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, "receipt.pdf", att.FileName)
	assert.Equal(t, int64(9), att.SizeBytes)
	assert.Equal(t, f.customer.ID, att.UploadedBy)
	assert.Contains(t, att.StorageKey, "ticket_attachments/"+ticket.ID)

	records := f.activities.forTicket(ticket.ID)
	require.Len(t, records, 2)
	assert.Equal(t, domain.ActivityAttachmentAdded, records[1].Action)
	assert.Equal(t, "Attachment added: receipt.pdf", records[1].Details)
}

func TestRemoveAttachmentUploaderOrStaffOnly(t *testing.T) {
	f := newFixture()
	ticket := f.createTicket(t)

	att, err := f.svc.AddAttachment(context.Background(), f.agent, ticket.ID, AttachmentUpload{
		Reader:    strings.NewReader("x"),
		FileName:  "internal-notes.txt",
		SizeBytes: 1,
	})
	require.NoError(t, err)

	err = f.svc.RemoveAttachment(context.Background(), f.customer, ticket.ID, att.ID)
	assert.Equal(t, "FORBIDDEN", errCode(t, err), "ticket owner cannot remove someone else's upload")

	require.NoError(t, f.svc.RemoveAttachment(context.Background(), f.agent, ticket.ID, att.ID))
	assert.Equal(t, []string{att.StorageKey}, f.store.removed)

	records := f.activities.forTicket(ticket.ID)
	last := records[len(records)-1]
	assert.Equal(t, domain.ActivityAttachmentRemoved, last.Action)
	assert.Equal(t, "Attachment deleted: internal-notes.txt", last.Details)
}

func TestAttachmentURL(t *testing.T) {
	f := newFixture()
	ticket := f.createTicket(t)

	att, err := f.svc.AddAttachment(context.Background(), f.customer, ticket.ID, AttachmentUpload{
		Reader:    strings.NewReader("x"),
		FileName:  "photo.png",
		SizeBytes: 1,
	})
	require.NoError(t, err)

	url, err := f.svc.AttachmentURL(context.Background(), f.customer, ticket.ID, att.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.com/"+att.StorageKey, url)
}
