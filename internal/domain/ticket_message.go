package domain

import "time"

// TicketMessage is one entry in the conversation between a customer and
// support staff. Immutable after creation.
type TicketMessage struct {
	ID             string
	TicketID       string
	AuthorID       string
	Body           string
	IsStaffMessage bool
	CreatedAt      time.Time
}

// TicketAttachment stores metadata for a file uploaded to a ticket. The
// message link is optional; both reference the parent ticket independently.
// Filename and size come from the stored object, not from the caller.
type TicketAttachment struct {
	ID         string
	TicketID   string
	MessageID  *string
	StorageKey string
	FileName   string
	SizeBytes  int64
	UploadedBy string
	UploadedAt time.Time
}
