package domain

import "time"

// ActivityAction enumerates the kinds of audit records a ticket can accrue.
// The set is closed: persistence and reporting layers key off these values.
type ActivityAction string

const (
	ActivityCreated           ActivityAction = "created"
	ActivityStatusChanged     ActivityAction = "status_changed"
	ActivityPriorityChanged   ActivityAction = "priority_changed"
	ActivityMessageAdded      ActivityAction = "message_added"
	ActivityAttachmentAdded   ActivityAction = "attachment_added"
	ActivityAttachmentRemoved ActivityAction = "attachment_removed"
	ActivityAssignedToChanged ActivityAction = "assigned_to_changed"
	ActivityResolved          ActivityAction = "resolved"
	ActivityClosed            ActivityAction = "closed"
	ActivityDeleted           ActivityAction = "deleted"
)

// Valid reports whether the action is a member of the closed enumeration.
func (a ActivityAction) Valid() bool {
	switch a {
	case ActivityCreated, ActivityStatusChanged, ActivityPriorityChanged,
		ActivityMessageAdded, ActivityAttachmentAdded, ActivityAttachmentRemoved,
		ActivityAssignedToChanged, ActivityResolved, ActivityClosed, ActivityDeleted:
		return true
	}
	return false
}

// TicketActivity is an append-only, immutable audit record. Activities for a
// ticket are ordered by timestamp; they are never edited or reordered.
type TicketActivity struct {
	ID          string
	TicketID    string
	Action      ActivityAction
	PerformedBy string
	Details     string
	Timestamp   time.Time
}
