package service

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-desk/internal/activity"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

// ObjectStore abstracts attachment file storage.
type ObjectStore interface {
	Put(ctx context.Context, ticketID string, r io.Reader, size int64, contentType string) (string, error)
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	Remove(ctx context.Context, key string) error
}

// TicketService coordinates ticket workflows. Every mutation follows the same
// shape: authorize, apply the change via storage, hand the pre/post state to
// the activity engine, append whatever drafts it produced.
type TicketService struct {
	tickets     repository.TicketRepository
	messages    repository.TicketMessageRepository
	attachments repository.AttachmentRepository
	activities  repository.ActivityRepository
	users       repository.UserRepository
	orders      repository.OrderRepository
	engine      *activity.Engine
	store       ObjectStore
	dispatcher  events.Dispatcher
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	MessageRepo    repository.TicketMessageRepository
	AttachmentRepo repository.AttachmentRepository
	ActivityRepo   repository.ActivityRepository
	UserRepo       repository.UserRepository
	OrderRepo      repository.OrderRepository
	Engine         *activity.Engine
	ObjectStore    ObjectStore
	Dispatcher     events.Dispatcher
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	OrderID     *string
	Topic       string
	Description string
	Priority    domain.TicketPriority
}

// TicketUpdateInput describes a partial ticket update. Nil fields are left
// untouched. AssignedToID distinguishes "leave alone" (nil) from "unassign"
// (pointer to empty string).
type TicketUpdateInput struct {
	Topic        *string
	Description  *string
	Status       *domain.TicketStatus
	Priority     *domain.TicketPriority
	AssignedToID *string
}

// TicketListFilter describes listing parameters.
type TicketListFilter struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Limit      int
	Offset     int
}

// AttachmentUpload carries an uploaded file and its metadata as reported by
// the transport layer. Filename and size are recorded from here, never from
// a separate caller-supplied field.
type AttachmentUpload struct {
	Reader      io.Reader
	FileName    string
	SizeBytes   int64
	ContentType string
	MessageID   *string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:     deps.TicketRepo,
		messages:    deps.MessageRepo,
		attachments: deps.AttachmentRepo,
		activities:  deps.ActivityRepo,
		users:       deps.UserRepo,
		orders:      deps.OrderRepo,
		engine:      deps.Engine,
		store:       deps.ObjectStore,
		dispatcher:  deps.Dispatcher,
	}
}

// CreateTicket files a new ticket for the acting user.
func (s *TicketService) CreateTicket(ctx context.Context, actor *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	if input.OrderID != nil {
		if _, err := s.orders.GetByIDForUser(ctx, *input.OrderID, actor.ID); err != nil {
			if err == pgx.ErrNoRows {
				return nil, apperrors.NewNotFound("order", nil)
			}
			return nil, err
		}
	}

	ticket := &domain.Ticket{
		OwnerID:     actor.ID,
		OrderID:     input.OrderID,
		Topic:       strings.TrimSpace(input.Topic),
		Description: strings.TrimSpace(input.Description),
		Status:      domain.TicketStatusOpen,
		Priority:    input.Priority,
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityLow
	}
	if !ticket.Priority.Valid() {
		return nil, apperrors.NewValidationError("invalid priority", nil)
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}

	draft := s.engine.DeriveCreate(ticket, actor)
	if err := s.appendDrafts(ctx, draft); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    eventActor(actor),
		Payload: events.TicketCreatedPayload{
			Topic:    ticket.Topic,
			Priority: ticket.Priority,
			OrderID:  ticket.OrderID,
		},
	})
	return ticket, nil
}

// ListTickets returns tickets visible to the actor: staff see every ticket,
// customers only their own.
func (s *TicketService) ListTickets(ctx context.Context, actor *domain.User, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		Statuses:   filter.Statuses,
		Priorities: filter.Priorities,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	if !actor.IsStaff() {
		ownerID := actor.ID
		repoFilter.OwnerID = &ownerID
	}
	return s.tickets.ListWithFilter(ctx, repoFilter)
}

// ListAssignedTickets returns tickets assigned to the acting staff member.
func (s *TicketService) ListAssignedTickets(ctx context.Context, actor *domain.User) ([]domain.Ticket, error) {
	if !actor.IsStaff() {
		return nil, apperrors.NewForbidden("staff required")
	}
	assigneeID := actor.ID
	return s.tickets.ListWithFilter(ctx, repository.TicketFilter{AssigneeID: &assigneeID})
}

// GetTicket fetches a ticket the actor may see, with its messages.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, []domain.TicketMessage, error) {
	ticket, err := s.ticketForActor(ctx, actor, ticketID)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := s.messages.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, nil, err
	}
	return ticket, msgs, nil
}

// UpdateTicket applies a partial update under a row lock and records the
// resulting activity. The closed status is terminal: any transition out of it
// is a conflict. Assignment changes are reserved to staff.
func (s *TicketService) UpdateTicket(ctx context.Context, actor *domain.User, ticketID string, input TicketUpdateInput) (*domain.Ticket, error) {
	if _, err := s.ticketForActor(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	if input.AssignedToID != nil && !actor.IsStaff() {
		return nil, apperrors.NewForbidden("only staff can change assignment")
	}
	if input.Status != nil && !input.Status.Valid() {
		return nil, apperrors.NewValidationError("invalid status", nil)
	}
	if input.Priority != nil && !input.Priority.Valid() {
		return nil, apperrors.NewValidationError("invalid priority", nil)
	}

	var newAssignee *domain.UserRef
	if input.AssignedToID != nil && *input.AssignedToID != "" {
		assignee, err := s.users.GetByID(ctx, *input.AssignedToID)
		if err != nil {
			if err == pgx.ErrNoRows {
				return nil, apperrors.NewNotFound("assignee", nil)
			}
			return nil, err
		}
		if !assignee.IsStaff() {
			return nil, apperrors.NewValidationError("assignee must be staff", nil)
		}
		newAssignee = assignee.Ref()
	}

	var drafts []activity.Draft
	before, after, err := s.tickets.UpdateLocked(ctx, ticketID, func(before, after *domain.Ticket) error {
		if input.Topic != nil {
			after.Topic = strings.TrimSpace(*input.Topic)
		}
		if input.Description != nil {
			after.Description = strings.TrimSpace(*input.Description)
		}
		if input.Status != nil {
			if before.Status == domain.TicketStatusClosed && *input.Status != domain.TicketStatusClosed {
				return apperrors.NewConflict("closed tickets cannot be reopened", nil)
			}
			after.Status = *input.Status
		}
		if input.Priority != nil {
			after.Priority = *input.Priority
		}
		if input.AssignedToID != nil {
			after.AssignedTo = newAssignee
		}

		// Derivation runs against the locked pre-state so the resolved
		// timestamp the engine may stamp is persisted in the same write.
		drafts = s.engine.DeriveUpdate(before, after, actor)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.appendDrafts(ctx, drafts...); err != nil {
		return nil, err
	}
	s.publishUpdateEvents(ctx, actor, before, after, drafts)
	return after, nil
}

// DeleteTicket removes a ticket and its messages and attachments. Staff only.
// The deletion audit record is appended before the cascade runs; activity
// rows are exempt from it, so the record survives with a dangling ticket
// reference by design.
func (s *TicketService) DeleteTicket(ctx context.Context, actor *domain.User, ticketID string) error {
	if !actor.IsStaff() {
		return apperrors.NewForbidden("only staff can delete tickets")
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.NewNotFound("ticket", nil)
		}
		return err
	}

	draft := s.engine.DeriveDelete(ticket, actor)
	if err := s.appendDrafts(ctx, draft); err != nil {
		return err
	}
	if err := s.tickets.Delete(ctx, ticketID); err != nil {
		return err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketDeleted,
		TicketID: ticket.ID,
		Actor:    eventActor(actor),
		Payload:  events.TicketDeletedPayload{Topic: ticket.Topic},
	})
	return nil
}

// AddMessage appends a message to a ticket the actor may see.
func (s *TicketService) AddMessage(ctx context.Context, actor *domain.User, ticketID, body string) (*domain.TicketMessage, error) {
	ticket, err := s.ticketForActor(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("message body required", nil)
	}

	msg := &domain.TicketMessage{
		TicketID:       ticket.ID,
		AuthorID:       actor.ID,
		Body:           body,
		IsStaffMessage: actor.IsStaff(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	draft := s.engine.DeriveMessage(ctx, msg)
	if err := s.appendDrafts(ctx, draft); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketMessageAdded,
		TicketID: ticket.ID,
		Actor:    eventActor(actor),
		Payload: events.TicketMessageAddedPayload{
			MessageID:   msg.ID,
			AuthorID:    msg.AuthorID,
			IsStaff:     msg.IsStaffMessage,
			BodyPreview: stringPreview(msg.Body, 120),
		},
	})
	return msg, nil
}

// AddAttachment stores the uploaded file and records its metadata. Filename
// and size come from the upload itself.
func (s *TicketService) AddAttachment(ctx context.Context, actor *domain.User, ticketID string, upload AttachmentUpload) (*domain.TicketAttachment, error) {
	ticket, err := s.ticketForActor(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if upload.MessageID != nil {
		msg, err := s.messages.GetByID(ctx, *upload.MessageID)
		if err != nil || msg.TicketID != ticket.ID {
			return nil, apperrors.NewNotFound("message", nil)
		}
	}

	key, err := s.store.Put(ctx, ticket.ID, upload.Reader, upload.SizeBytes, upload.ContentType)
	if err != nil {
		return nil, err
	}

	attachment := &domain.TicketAttachment{
		TicketID:   ticket.ID,
		MessageID:  upload.MessageID,
		StorageKey: key,
		FileName:   upload.FileName,
		SizeBytes:  upload.SizeBytes,
		UploadedBy: actor.ID,
	}
	if err := s.attachments.Create(ctx, attachment); err != nil {
		return nil, err
	}

	draft := s.engine.DeriveAttachment(attachment, actor, false)
	if err := s.appendDrafts(ctx, draft); err != nil {
		return nil, err
	}
	return attachment, nil
}

// RemoveAttachment deletes an attachment. Only the uploader or staff may.
func (s *TicketService) RemoveAttachment(ctx context.Context, actor *domain.User, ticketID, attachmentID string) error {
	ticket, err := s.ticketForActor(ctx, actor, ticketID)
	if err != nil {
		return err
	}
	attachment, err := s.attachments.GetByID(ctx, attachmentID, ticket.ID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.NewNotFound("attachment", nil)
		}
		return err
	}
	if attachment.UploadedBy != actor.ID && !actor.IsStaff() {
		return apperrors.NewForbidden("only the uploader or staff can delete this attachment")
	}

	if err := s.store.Remove(ctx, attachment.StorageKey); err != nil {
		return err
	}
	if err := s.attachments.Delete(ctx, attachment.ID); err != nil {
		return err
	}

	draft := s.engine.DeriveAttachment(attachment, actor, true)
	return s.appendDrafts(ctx, draft)
}

// ListAttachments returns attachment metadata for a ticket.
func (s *TicketService) ListAttachments(ctx context.Context, actor *domain.User, ticketID string) ([]domain.TicketAttachment, error) {
	ticket, err := s.ticketForActor(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	return s.attachments.ListByTicket(ctx, ticket.ID)
}

// AttachmentURL returns a temporary download URL for an attachment.
func (s *TicketService) AttachmentURL(ctx context.Context, actor *domain.User, ticketID, attachmentID string) (string, error) {
	ticket, err := s.ticketForActor(ctx, actor, ticketID)
	if err != nil {
		return "", err
	}
	attachment, err := s.attachments.GetByID(ctx, attachmentID, ticket.ID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", apperrors.NewNotFound("attachment", nil)
		}
		return "", err
	}
	return s.store.PresignedURL(ctx, attachment.StorageKey, 15*time.Minute)
}

// ListActivities returns the audit trail for a ticket, oldest first.
func (s *TicketService) ListActivities(ctx context.Context, actor *domain.User, ticketID string) ([]domain.TicketActivity, error) {
	ticket, err := s.ticketForActor(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	return s.activities.ListByTicket(ctx, ticket.ID)
}

// ticketForActor loads a ticket applying the ownership filter: staff see any
// ticket, customers only their own, and a foreign ticket reads as not found.
func (s *TicketService) ticketForActor(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	var (
		ticket *domain.Ticket
		err    error
	)
	if actor.IsStaff() {
		ticket, err = s.tickets.GetByID(ctx, ticketID)
	} else {
		ticket, err = s.tickets.GetByIDForOwner(ctx, ticketID, actor.ID)
	}
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("ticket", nil)
		}
		return nil, err
	}
	return ticket, nil
}

func (s *TicketService) appendDrafts(ctx context.Context, drafts ...activity.Draft) error {
	for _, draft := range drafts {
		record := &domain.TicketActivity{
			TicketID:    draft.TicketID,
			Action:      draft.Action,
			PerformedBy: draft.PerformedBy,
			Details:     draft.Details,
			Timestamp:   draft.Timestamp,
		}
		if err := s.activities.Append(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

func (s *TicketService) publishUpdateEvents(ctx context.Context, actor *domain.User, before, after *domain.Ticket, drafts []activity.Draft) {
	for _, draft := range drafts {
		switch draft.Action {
		case domain.ActivityStatusChanged:
			s.publishEvent(ctx, events.Event{
				Type:     events.EventTicketStatusChanged,
				TicketID: after.ID,
				Actor:    eventActor(actor),
				Payload:  events.TicketStatusChangedPayload{OldStatus: before.Status, NewStatus: after.Status},
			})
		case domain.ActivityPriorityChanged:
			s.publishEvent(ctx, events.Event{
				Type:     events.EventTicketPriorityChanged,
				TicketID: after.ID,
				Actor:    eventActor(actor),
				Payload:  events.TicketPriorityChangedPayload{OldPriority: before.Priority, NewPriority: after.Priority},
			})
		case domain.ActivityAssignedToChanged:
			s.publishEvent(ctx, events.Event{
				Type:     events.EventTicketAssigned,
				TicketID: after.ID,
				Actor:    eventActor(actor),
				Payload:  events.TicketAssignedPayload{AssigneeID: after.AssigneeID()},
			})
		}
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func eventActor(actor *domain.User) events.Actor {
	return events.Actor{UserID: actor.ID, Role: actor.Role}
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}
