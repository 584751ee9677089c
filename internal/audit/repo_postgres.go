package audit

import (
	"context"
	"database/sql"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (
  id, business_id, type, decision, call_sid, message_sid, lead_id, message, metadata, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.BusinessID,
		string(e.Type),
		e.Decision,
		e.CallSID,
		e.MessageSID,
		e.LeadID,
		e.Message,
		e.Metadata,
		e.CreatedAt,
	)
	return err
}
