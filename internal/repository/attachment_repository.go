package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
)

// AttachmentRepository persists attachment metadata.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *domain.TicketAttachment) error
	GetByID(ctx context.Context, id, ticketID string) (*domain.TicketAttachment, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketAttachment, error)
	Delete(ctx context.Context, id string) error
}

type attachmentRepository struct {
	pool *pgxpool.Pool
}

// NewAttachmentRepository constructs repository.
func NewAttachmentRepository(pool *pgxpool.Pool) AttachmentRepository {
	return &attachmentRepository{pool: pool}
}

func (r *attachmentRepository) Create(ctx context.Context, attachment *domain.TicketAttachment) error {
	const query = `
        INSERT INTO ticket_attachments (ticket_id, message_id, storage_key, file_name, size_bytes, uploaded_by_user_id)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, uploaded_at`
	return r.pool.QueryRow(ctx, query,
		attachment.TicketID,
		attachment.MessageID,
		attachment.StorageKey,
		attachment.FileName,
		attachment.SizeBytes,
		attachment.UploadedBy,
	).Scan(&attachment.ID, &attachment.UploadedAt)
}

func (r *attachmentRepository) GetByID(ctx context.Context, id, ticketID string) (*domain.TicketAttachment, error) {
	const query = `
        SELECT id, ticket_id, message_id, storage_key, file_name, size_bytes, uploaded_by_user_id, uploaded_at
        FROM ticket_attachments WHERE id=$1 AND ticket_id=$2`
	var attachment domain.TicketAttachment
	if err := r.pool.QueryRow(ctx, query, id, ticketID).Scan(
		&attachment.ID,
		&attachment.TicketID,
		&attachment.MessageID,
		&attachment.StorageKey,
		&attachment.FileName,
		&attachment.SizeBytes,
		&attachment.UploadedBy,
		&attachment.UploadedAt,
	); err != nil {
		return nil, err
	}
	return &attachment, nil
}

func (r *attachmentRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketAttachment, error) {
	const query = `
        SELECT id, ticket_id, message_id, storage_key, file_name, size_bytes, uploaded_by_user_id, uploaded_at
        FROM ticket_attachments WHERE ticket_id=$1 ORDER BY uploaded_at DESC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketAttachment
	for rows.Next() {
		var attachment domain.TicketAttachment
		if err := rows.Scan(
			&attachment.ID,
			&attachment.TicketID,
			&attachment.MessageID,
			&attachment.StorageKey,
			&attachment.FileName,
			&attachment.SizeBytes,
			&attachment.UploadedBy,
			&attachment.UploadedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, attachment)
	}
	return result, rows.Err()
}

func (r *attachmentRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM ticket_attachments WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
