package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	OwnerID    *string
	AssigneeID *string
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Limit      int
	Offset     int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// GetByIDForOwner applies an ownership filter: a ticket belonging to a
	// different user reads as not found.
	GetByIDForOwner(ctx context.Context, id, ownerID string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// UpdateLocked re-reads the ticket under a row lock, calls mutate with the
	// locked pre-state and a mutable copy, persists the copy and returns both
	// snapshots. The lock guarantees the pre-state a caller diffs against is
	// the committed one, not a snapshot gone stale under a concurrent update.
	UpdateLocked(ctx context.Context, id string, mutate func(before, after *domain.Ticket) error) (*domain.Ticket, *domain.Ticket, error)
	Delete(ctx context.Context, id string) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `t.id, t.owner_user_id, t.order_id, t.assigned_to_user_id, a.name,
               t.topic, t.description, t.status, t.priority, t.created_at, t.updated_at, t.resolved_at`

const ticketFrom = ` FROM tickets t LEFT JOIN users a ON a.id = t.assigned_to_user_id`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (owner_user_id, order_id, assigned_to_user_id, topic, description, status, priority)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.OwnerID,
		ticket.OrderID,
		ticket.AssigneeID(),
		ticket.Topic,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ticketFrom + ` WHERE t.id=$1`
	return fetchTicketRow(r.pool.QueryRow(ctx, query, id))
}

func (r *ticketRepository) GetByIDForOwner(ctx context.Context, id, ownerID string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ticketFrom + ` WHERE t.id=$1 AND t.owner_user_id=$2`
	return fetchTicketRow(r.pool.QueryRow(ctx, query, id, ownerID))
}

func (r *ticketRepository) UpdateLocked(ctx context.Context, id string, mutate func(before, after *domain.Ticket) error) (*domain.Ticket, *domain.Ticket, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `SELECT ` + ticketColumns + ticketFrom + ` WHERE t.id=$1 FOR UPDATE OF t`
	before, err := fetchTicketRow(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, nil, err
	}

	after := *before
	if before.AssignedTo != nil {
		ref := *before.AssignedTo
		after.AssignedTo = &ref
	}
	if err := mutate(before, &after); err != nil {
		return nil, nil, err
	}

	const update = `
        UPDATE tickets SET order_id=$1, assigned_to_user_id=$2, topic=$3, description=$4,
            status=$5, priority=$6, resolved_at=$7, updated_at=NOW()
        WHERE id=$8
        RETURNING updated_at`
	if err := tx.QueryRow(ctx, update,
		after.OrderID,
		after.AssigneeID(),
		after.Topic,
		after.Description,
		after.Status,
		after.Priority,
		after.ResolvedAt,
		after.ID,
	).Scan(&after.UpdatedAt); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return before, &after, nil
}

func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		clauses = append(clauses, fmt.Sprintf("t.owner_user_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("t.assigned_to_user_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("t.status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("t.priority IN (%s)", strings.Join(placeholders, ",")))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s%s WHERE %s ORDER BY t.created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, ticketFrom, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func fetchTicketRow(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	var assigneeID, assigneeName *string
	if err := row.Scan(
		&ticket.ID,
		&ticket.OwnerID,
		&ticket.OrderID,
		&assigneeID,
		&assigneeName,
		&ticket.Topic,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ResolvedAt,
	); err != nil {
		return nil, err
	}
	if assigneeID != nil {
		ref := domain.UserRef{ID: *assigneeID}
		if assigneeName != nil {
			ref.Name = *assigneeName
		}
		ticket.AssignedTo = &ref
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := fetchTicketRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
