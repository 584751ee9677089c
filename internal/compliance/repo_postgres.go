package compliance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const consentColumns = `
id, business_id, phone_normalized, phone_raw_last_seen,
opted_out, opted_out_at, opted_in_at,
last_keyword, last_message_sid, created_at, updated_at
`

func scanConsent(row *sql.Row) (Consent, error) {
	var c Consent
	var optedOutAt, optedInAt sql.NullTime
	var lastSID sql.NullString
	err := row.Scan(
		&c.ID,
		&c.BusinessID,
		&c.PhoneNormalized,
		&c.PhoneRawLastSeen,
		&c.OptedOut,
		&optedOutAt,
		&optedInAt,
		&c.LastKeyword,
		&lastSID,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return Consent{}, err
	}
	if optedOutAt.Valid {
		t := optedOutAt.Time
		c.OptedOutAt = &t
	}
	if optedInAt.Valid {
		t := optedInAt.Time
		c.OptedInAt = &t
	}
	if lastSID.Valid {
		s := lastSID.String
		c.LastMessageSID = &s
	}
	return c, nil
}

func (s *PostgresStore) UpsertPreference(ctx context.Context, p Preference) (Consent, error) {
	if p.BusinessID == "" || p.PhoneNormalized == "" {
		return Consent{}, ErrInvalidRecord
	}
	if p.Command != CommandStop && p.Command != CommandStart {
		return Consent{}, ErrInvalidRecord
	}

	at := p.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	optedOut := p.Command == CommandStop

	var optedOutAt, optedInAt *time.Time
	if optedOut {
		optedOutAt = &at
	} else {
		optedInAt = &at
	}

	const q = `
INSERT INTO sms_consents (
  id, business_id, phone_normalized, phone_raw_last_seen,
  opted_out, opted_out_at, opted_in_at,
  last_keyword, last_message_sid, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)
ON CONFLICT (business_id, phone_normalized) DO UPDATE SET
  phone_raw_last_seen = $4,
  opted_out           = $5,
  opted_out_at        = $6,
  opted_in_at         = $7,
  last_keyword        = $8,
  last_message_sid    = COALESCE($9, sms_consents.last_message_sid),
  updated_at          = $10
RETURNING ` + consentColumns + `
`
	row := s.db.QueryRowContext(ctx, q,
		uuid.NewString(),
		p.BusinessID,
		p.PhoneNormalized,
		p.PhoneRawLastSeen,
		optedOut,
		optedOutAt,
		optedInAt,
		string(p.Command),
		p.MessageSID,
		at,
	)
	return scanConsent(row)
}

func (s *PostgresStore) GetConsent(ctx context.Context, businessID, phoneNormalized string) (Consent, error) {
	const q = `
SELECT ` + consentColumns + `
FROM sms_consents
WHERE business_id = $1 AND phone_normalized = $2
`
	c, err := scanConsent(s.db.QueryRowContext(ctx, q, businessID, phoneNormalized))
	if errors.Is(err, sql.ErrNoRows) {
		return Consent{}, ErrNotFound
	}
	return c, err
}

func (s *PostgresStore) IsOptedOut(ctx context.Context, businessID, phoneNormalized string) (bool, error) {
	const q = `
SELECT opted_out
FROM sms_consents
WHERE business_id = $1 AND phone_normalized = $2
`
	var optedOut bool
	err := s.db.QueryRowContext(ctx, q, businessID, phoneNormalized).Scan(&optedOut)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return optedOut, nil
}
