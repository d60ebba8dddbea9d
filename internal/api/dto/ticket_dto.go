package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	OrderID     *string               `json:"order_id"`
	Topic       string                `json:"topic"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
}

// UpdateTicketRequest payload. Absent fields are left untouched; an explicit
// empty assigned_to clears the assignment.
type UpdateTicketRequest struct {
	Topic       *string                `json:"topic"`
	Description *string                `json:"description"`
	Status      *domain.TicketStatus   `json:"status"`
	Priority    *domain.TicketPriority `json:"priority"`
	AssignedTo  *string                `json:"assigned_to"`
}

// TicketSummary response.
type TicketSummary struct {
	ID         string                `json:"id"`
	OrderID    *string               `json:"order_id,omitempty"`
	AssignedTo *AssigneeResponse     `json:"assigned_to,omitempty"`
	Topic      string                `json:"topic"`
	Status     domain.TicketStatus   `json:"status"`
	Priority   domain.TicketPriority `json:"priority"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
	ResolvedAt *time.Time            `json:"resolved_at,omitempty"`
}

// AssigneeResponse names the assigned staff member.
type AssigneeResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	ID          string                  `json:"id"`
	OrderID     *string                 `json:"order_id,omitempty"`
	AssignedTo  *AssigneeResponse       `json:"assigned_to,omitempty"`
	Topic       string                  `json:"topic"`
	Description string                  `json:"description"`
	Status      domain.TicketStatus     `json:"status"`
	Priority    domain.TicketPriority   `json:"priority"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
	ResolvedAt  *time.Time              `json:"resolved_at,omitempty"`
	Messages    []TicketMessageResponse `json:"messages"`
	Activities  []ActivityResponse      `json:"activities"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Body string `json:"body"`
}

// TicketMessageResponse represents a thread message.
type TicketMessageResponse struct {
	ID             string    `json:"id"`
	AuthorID       string    `json:"author_id"`
	Body           string    `json:"body"`
	IsStaffMessage bool      `json:"is_staff_message"`
	CreatedAt      time.Time `json:"created_at"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	ID         string    `json:"id"`
	MessageID  *string   `json:"message_id,omitempty"`
	FileName   string    `json:"file_name"`
	SizeBytes  int64     `json:"size_bytes"`
	UploadedBy string    `json:"uploaded_by"`
	UploadedAt time.Time `json:"uploaded_at"`
	URL        string    `json:"url,omitempty"`
}

// ActivityResponse is one audit trail entry.
type ActivityResponse struct {
	ID          string                `json:"id"`
	Action      domain.ActivityAction `json:"action"`
	PerformedBy string                `json:"performed_by"`
	Details     string                `json:"details"`
	Timestamp   time.Time             `json:"timestamp"`
}

// OrderResponse lists a purchase a ticket can reference.
type OrderResponse struct {
	ID          string             `json:"id"`
	OrderNumber string             `json:"order_number"`
	TotalPrice  string             `json:"total_price"`
	Status      domain.OrderStatus `json:"status"`
	CreatedAt   time.Time          `json:"created_at"`
}
