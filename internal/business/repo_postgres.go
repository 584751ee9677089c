package business

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresRepo assumes a `businesses` table with a unique constraint on
// twilio_phone_number (at most one tenant per provider inbound number)
// and a unique constraint on owner_user_id.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const businessColumns = `
id, name, owner_user_id, forwarding_number, notify_phone, twilio_phone_number,
missed_call_seconds, service_label_1, service_label_2, service_label_3,
record_calls, timezone, subscription_status, stripe_price_id, created_at, updated_at
`

func scanBusiness(row *sql.Row) (Business, error) {
	var b Business
	var notifyPhone, twilioNumber, priceID sql.NullString
	err := row.Scan(
		&b.ID,
		&b.Name,
		&b.OwnerUserID,
		&b.ForwardingNumber,
		&notifyPhone,
		&twilioNumber,
		&b.MissedCallSeconds,
		&b.ServiceLabel1,
		&b.ServiceLabel2,
		&b.ServiceLabel3,
		&b.RecordCalls,
		&b.Timezone,
		&b.SubscriptionStatus,
		&priceID,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Business{}, ErrNotFound
		}
		return Business{}, err
	}
	b.NotifyPhone = notifyPhone.String
	b.TwilioPhoneNumber = twilioNumber.String
	b.StripePriceID = priceID.String
	return b, nil
}

func (r *PostgresRepo) FindByInboundNumber(ctx context.Context, normalized, raw string) (Business, error) {
	if normalized == "" && raw == "" {
		return Business{}, ErrNotFound
	}
	const q = `
SELECT ` + businessColumns + `
FROM businesses
WHERE twilio_phone_number = $1 OR twilio_phone_number = $2
LIMIT 1
`
	return scanBusiness(r.db.QueryRowContext(ctx, q, normalized, raw))
}

func (r *PostgresRepo) GetByID(ctx context.Context, id string) (Business, error) {
	const q = `
SELECT ` + businessColumns + `
FROM businesses
WHERE id = $1
`
	return scanBusiness(r.db.QueryRowContext(ctx, q, id))
}

func (r *PostgresRepo) GetByOwner(ctx context.Context, ownerUserID string) (Business, error) {
	const q = `
SELECT ` + businessColumns + `
FROM businesses
WHERE owner_user_id = $1
`
	return scanBusiness(r.db.QueryRowContext(ctx, q, ownerUserID))
}

func (r *PostgresRepo) UpdateSettings(ctx context.Context, id string, s Settings) (Business, error) {
	if err := s.Validate(); err != nil {
		return Business{}, err
	}
	const q = `
UPDATE businesses
SET name = $2,
    forwarding_number = $3,
    notify_phone = NULLIF($4, ''),
    missed_call_seconds = $5,
    service_label_1 = $6,
    service_label_2 = $7,
    service_label_3 = $8,
    record_calls = $9,
    timezone = $10,
    updated_at = $11
WHERE id = $1
RETURNING ` + businessColumns + `
`
	return scanBusiness(r.db.QueryRowContext(ctx, q,
		id,
		s.Name,
		s.ForwardingNumber,
		s.NotifyPhone,
		s.MissedCallSeconds,
		s.ServiceLabel1,
		s.ServiceLabel2,
		s.ServiceLabel3,
		s.RecordCalls,
		s.Timezone,
		time.Now().UTC(),
	))
}
