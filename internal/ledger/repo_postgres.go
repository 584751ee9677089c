package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"callbackcloser/internal/conversation"
	"callbackcloser/pkg/utils"
)

// PostgresRepo assumes the following tables:
// - calls    (UNIQUE provider_call_sid)
// - leads    (UNIQUE call_id)
// - messages (UNIQUE provider_sid, nullable)
//
// All merge semantics live in the SQL (ON CONFLICT, conditional UPDATE)
// so concurrent webhook deliveries race inside the database, not in Go.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

type rowScanner interface {
	Scan(dest ...any) error
}

/* ===================== calls ===================== */

const callColumns = `
id, business_id, provider_call_sid, parent_call_sid, dial_call_sid,
from_phone, from_phone_normalized, to_phone, to_phone_normalized,
status, dial_call_status, answered, missed,
call_duration_seconds, dial_call_duration_seconds,
recording_sid, recording_url, recording_status, recording_duration_seconds,
raw_payload, created_at, updated_at
`

func scanCall(s rowScanner) (Call, error) {
	var c Call
	var parentSID, dialSID, dialStatus, recSID, recURL, recStatus sql.NullString
	var callDur, dialDur, recDur sql.NullInt64
	err := s.Scan(
		&c.ID,
		&c.BusinessID,
		&c.ProviderCallSID,
		&parentSID,
		&dialSID,
		&c.FromPhone,
		&c.FromPhoneNormalized,
		&c.ToPhone,
		&c.ToPhoneNormalized,
		&c.Status,
		&dialStatus,
		&c.Answered,
		&c.Missed,
		&callDur,
		&dialDur,
		&recSID,
		&recURL,
		&recStatus,
		&recDur,
		&c.RawPayload,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return Call{}, err
	}
	c.ParentCallSID = nullableString(parentSID)
	c.DialCallSID = nullableString(dialSID)
	c.DialCallStatus = nullableString(dialStatus)
	c.RecordingSID = nullableString(recSID)
	c.RecordingURL = nullableString(recURL)
	c.RecordingStatus = nullableString(recStatus)
	c.CallDurationSeconds = nullableInt(callDur)
	c.DialCallDurationSeconds = nullableInt(dialDur)
	c.RecordingDurationSeconds = nullableInt(recDur)
	return c, nil
}

func (r *PostgresRepo) UpsertCall(ctx context.Context, u CallUpsert) (Call, error) {
	if u.BusinessID == "" || u.ProviderCallSID == "" {
		return Call{}, ErrInvalidRecord
	}
	now := time.Now().UTC()

	// COALESCE against the stored row keeps sparse callbacks from
	// erasing fields an earlier callback already filled.
	const q = `
INSERT INTO calls (
  id, business_id, provider_call_sid, parent_call_sid, dial_call_sid,
  from_phone, from_phone_normalized, to_phone, to_phone_normalized,
  status, dial_call_status, answered, missed,
  call_duration_seconds, dial_call_duration_seconds,
  recording_sid, recording_url, recording_status, recording_duration_seconds,
  raw_payload, created_at, updated_at
) VALUES (
  $1, $2, $3, $4, $5,
  $6, $7, $8, $9,
  COALESCE($10, 'RECEIVED'), $11, COALESCE($12, FALSE), COALESCE($13, FALSE),
  $14, $15,
  $16, $17, $18, $19,
  $20, $21, $21
)
ON CONFLICT (provider_call_sid) DO UPDATE SET
  parent_call_sid            = COALESCE($4, calls.parent_call_sid),
  dial_call_sid              = COALESCE($5, calls.dial_call_sid),
  status                     = COALESCE($10, calls.status),
  dial_call_status           = COALESCE($11, calls.dial_call_status),
  answered                   = COALESCE($12, calls.answered),
  missed                     = COALESCE($13, calls.missed),
  call_duration_seconds      = COALESCE($14, calls.call_duration_seconds),
  dial_call_duration_seconds = COALESCE($15, calls.dial_call_duration_seconds),
  recording_sid              = COALESCE($16, calls.recording_sid),
  recording_url              = COALESCE($17, calls.recording_url),
  recording_status           = COALESCE($18, calls.recording_status),
  recording_duration_seconds = COALESCE($19, calls.recording_duration_seconds),
  raw_payload                = $20,
  updated_at                 = $21
RETURNING ` + callColumns + `
`
	row := r.db.QueryRowContext(ctx, q,
		uuid.NewString(),
		u.BusinessID,
		u.ProviderCallSID,
		u.ParentCallSID,
		u.DialCallSID,
		u.FromPhone,
		u.FromPhoneNormalized,
		u.ToPhone,
		u.ToPhoneNormalized,
		(*string)(u.Status),
		u.DialCallStatus,
		u.Answered,
		u.Missed,
		u.CallDurationSeconds,
		u.DialCallDurationSeconds,
		u.Recording.SID,
		u.Recording.URL,
		u.Recording.Status,
		u.Recording.DurationSeconds,
		u.RawPayload,
		now,
	)
	return scanCall(row)
}

func (r *PostgresRepo) UpdateCallRecording(ctx context.Context, providerCallSID string, rec RecordingMetadata, rawPayload string) (bool, error) {
	if providerCallSID == "" {
		return false, ErrInvalidRecord
	}
	const q = `
UPDATE calls
SET recording_sid              = COALESCE($2, recording_sid),
    recording_url              = COALESCE($3, recording_url),
    recording_status           = COALESCE($4, recording_status),
    recording_duration_seconds = COALESCE($5, recording_duration_seconds),
    raw_payload                = $6,
    updated_at                 = $7
WHERE provider_call_sid = $1
`
	res, err := r.db.ExecContext(ctx, q,
		providerCallSID,
		rec.SID,
		rec.URL,
		rec.Status,
		rec.DurationSeconds,
		rawPayload,
		time.Now().UTC(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *PostgresRepo) GetCallByProviderSID(ctx context.Context, providerCallSID string) (Call, error) {
	const q = `SELECT ` + callColumns + ` FROM calls WHERE provider_call_sid = $1`
	c, err := scanCall(r.db.QueryRowContext(ctx, q, providerCallSID))
	if errors.Is(err, sql.ErrNoRows) {
		return Call{}, ErrNotFound
	}
	return c, err
}

func (r *PostgresRepo) ListCallsInRange(ctx context.Context, businessID string, from, to time.Time) ([]Call, error) {
	const q = `
SELECT ` + callColumns + `
FROM calls
WHERE business_id = $1 AND created_at >= $2 AND created_at < $3
ORDER BY created_at DESC
`
	rows, err := r.db.QueryContext(ctx, q, businessID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Call, 0)
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

/* ===================== leads ===================== */

const leadColumns = `
id, business_id, call_id, caller_phone, caller_phone_normalized,
service_requested, service_selection_raw, urgency, zip_code, best_time, contact_name,
sms_state, status, billing_required,
sms_started_at, sms_completed_at, last_inbound_at, last_outbound_at,
last_interaction_at, owner_notified_at, created_at, updated_at
`

func scanLead(s rowScanner) (Lead, error) {
	var l Lead
	var service, serviceRaw, urgency, zip, bestTime, contactName sql.NullString
	var started, completed, lastIn, lastOut, lastInteraction, ownerNotified sql.NullTime
	err := s.Scan(
		&l.ID,
		&l.BusinessID,
		&l.CallID,
		&l.CallerPhone,
		&l.CallerPhoneNormalized,
		&service,
		&serviceRaw,
		&urgency,
		&zip,
		&bestTime,
		&contactName,
		&l.SmsState,
		&l.Status,
		&l.BillingRequired,
		&started,
		&completed,
		&lastIn,
		&lastOut,
		&lastInteraction,
		&ownerNotified,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return Lead{}, err
	}
	l.ServiceRequested = nullableString(service)
	l.ServiceSelectionRaw = nullableString(serviceRaw)
	l.Urgency = nullableString(urgency)
	l.ZipCode = nullableString(zip)
	l.BestTime = nullableString(bestTime)
	l.ContactName = nullableString(contactName)
	l.SmsStartedAt = nullableTime(started)
	l.SmsCompletedAt = nullableTime(completed)
	l.LastInboundAt = nullableTime(lastIn)
	l.LastOutboundAt = nullableTime(lastOut)
	l.LastInteractionAt = nullableTime(lastInteraction)
	l.OwnerNotifiedAt = nullableTime(ownerNotified)
	return l, nil
}

func (r *PostgresRepo) FindOrCreateLeadByCall(ctx context.Context, l Lead) (Lead, bool, error) {
	if l.BusinessID == "" || l.CallID == "" {
		return Lead{}, false, ErrInvalidRecord
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.SmsState == "" {
		l.SmsState = conversation.StateNotStarted
	}
	if l.Status == "" {
		l.Status = LeadNew
	}
	now := time.Now().UTC()

	// Insert-then-read-on-conflict closes the race between two concurrent
	// missed-call callbacks for the same call. Both statements share one
	// transaction so the conflict re-read observes the row the losing
	// insert collided with.
	const q = `
INSERT INTO leads (
  id, business_id, call_id, caller_phone, caller_phone_normalized,
  sms_state, status, billing_required, last_interaction_at, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)
ON CONFLICT (call_id) DO NOTHING
RETURNING ` + leadColumns + `
`
	const qByCall = `SELECT ` + leadColumns + ` FROM leads WHERE call_id = $1`

	var out Lead
	var created bool
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, q,
			l.ID,
			l.BusinessID,
			l.CallID,
			l.CallerPhone,
			l.CallerPhoneNormalized,
			l.SmsState,
			l.Status,
			l.BillingRequired,
			l.LastInteractionAt,
			now,
		)
		got, err := scanLead(row)
		if err == nil {
			out, created = got, true
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		existing, err := scanLead(tx.QueryRowContext(ctx, qByCall, l.CallID))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		out, created = existing, false
		return nil
	})
	if err != nil {
		return Lead{}, false, err
	}
	return out, created, nil
}

func (r *PostgresRepo) GetLeadByID(ctx context.Context, id string) (Lead, error) {
	const q = `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`
	l, err := scanLead(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return l, err
}

func (r *PostgresRepo) FindLeadByCallID(ctx context.Context, callID string) (Lead, error) {
	const q = `SELECT ` + leadColumns + ` FROM leads WHERE call_id = $1`
	l, err := scanLead(r.db.QueryRowContext(ctx, q, callID))
	if errors.Is(err, sql.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return l, err
}

func (r *PostgresRepo) FindLatestLeadForCaller(ctx context.Context, businessID, callerPhoneNormalized string) (Lead, error) {
	const active = `
SELECT ` + leadColumns + `
FROM leads
WHERE business_id = $1 AND caller_phone_normalized = $2 AND sms_state <> 'COMPLETED'
ORDER BY created_at DESC
LIMIT 1
`
	l, err := scanLead(r.db.QueryRowContext(ctx, active, businessID, callerPhoneNormalized))
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Lead{}, err
	}

	const latest = `
SELECT ` + leadColumns + `
FROM leads
WHERE business_id = $1 AND caller_phone_normalized = $2
ORDER BY created_at DESC
LIMIT 1
`
	l, err = scanLead(r.db.QueryRowContext(ctx, latest, businessID, callerPhoneNormalized))
	if errors.Is(err, sql.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return l, err
}

type patchBuilder struct {
	frags []string
	args  []any
}

func (b *patchBuilder) placeholder(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func addField[T any](b *patchBuilder, col string, f Field[T]) {
	if !f.Present {
		return
	}
	if f.Null {
		b.frags = append(b.frags, col+" = NULL")
		return
	}
	b.frags = append(b.frags, col+" = "+b.placeholder(f.Value))
}

func (r *PostgresRepo) UpdateLead(ctx context.Context, id string, p LeadPatch) (Lead, error) {
	if id == "" {
		return Lead{}, ErrInvalidRecord
	}

	b := &patchBuilder{}
	b.args = append(b.args, id) // $1
	addField(b, "sms_state", p.SmsState)
	addField(b, "status", p.Status)
	addField(b, "billing_required", p.BillingRequired)
	addField(b, "service_requested", p.ServiceRequested)
	addField(b, "service_selection_raw", p.ServiceSelectionRaw)
	addField(b, "urgency", p.Urgency)
	addField(b, "zip_code", p.ZipCode)
	addField(b, "best_time", p.BestTime)
	addField(b, "contact_name", p.ContactName)
	addField(b, "sms_started_at", p.SmsStartedAt)
	addField(b, "sms_completed_at", p.SmsCompletedAt)
	addField(b, "last_inbound_at", p.LastInboundAt)
	addField(b, "last_outbound_at", p.LastOutboundAt)
	addField(b, "last_interaction_at", p.LastInteractionAt)
	addField(b, "owner_notified_at", p.OwnerNotifiedAt)
	b.frags = append(b.frags, "updated_at = "+b.placeholder(time.Now().UTC()))

	q := "UPDATE leads SET " + strings.Join(b.frags, ", ") + " WHERE id = $1 RETURNING " + leadColumns
	l, err := scanLead(r.db.QueryRowContext(ctx, q, b.args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return l, err
}

func (r *PostgresRepo) MarkConversationStarted(ctx context.Context, id string, at time.Time) (bool, error) {
	// Conditional single-row claim: only one concurrent caller can see
	// sms_started_at transition from NULL.
	const q = `
UPDATE leads
SET sms_started_at = $2, updated_at = $3
WHERE id = $1 AND sms_started_at IS NULL
`
	res, err := r.db.ExecContext(ctx, q, id, at.UTC(), time.Now().UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *PostgresRepo) ClearConversationStart(ctx context.Context, id string) error {
	const q = `
UPDATE leads
SET sms_started_at = NULL, updated_at = $2
WHERE id = $1
`
	_, err := r.db.ExecContext(ctx, q, id, time.Now().UTC())
	return err
}

func (r *PostgresRepo) CountLeadsStartedBetween(ctx context.Context, businessID string, from, to time.Time) (int, error) {
	const q = `
SELECT COUNT(*)
FROM leads
WHERE business_id = $1 AND sms_started_at >= $2 AND sms_started_at < $3
`
	var n int
	if err := r.db.QueryRowContext(ctx, q, businessID, from, to).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *PostgresRepo) ListLeads(ctx context.Context, businessID string, f LeadFilter) ([]Lead, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	b := &patchBuilder{}
	b.args = append(b.args, businessID)
	where := "business_id = $1"
	if f.Status != "" {
		where += " AND status = " + b.placeholder(f.Status)
	}
	q := "SELECT " + leadColumns + " FROM leads WHERE " + where +
		" ORDER BY created_at DESC LIMIT " + b.placeholder(limit)

	rows, err := r.db.QueryContext(ctx, q, b.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Lead, 0)
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListLeadsInRange(ctx context.Context, businessID string, from, to time.Time) ([]Lead, error) {
	const q = `
SELECT ` + leadColumns + `
FROM leads
WHERE business_id = $1 AND created_at >= $2 AND created_at < $3
ORDER BY created_at DESC
`
	rows, err := r.db.QueryContext(ctx, q, businessID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Lead, 0)
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

/* ===================== messages ===================== */

const messageColumns = `
id, business_id, lead_id, provider_sid, direction, participant,
from_phone, to_phone, body, status, raw_payload, provider_created_at, created_at
`

func scanMessage(s rowScanner) (Message, error) {
	var m Message
	var leadID, providerSID, status sql.NullString
	var providerCreated sql.NullTime
	err := s.Scan(
		&m.ID,
		&m.BusinessID,
		&leadID,
		&providerSID,
		&m.Direction,
		&m.Participant,
		&m.FromPhone,
		&m.ToPhone,
		&m.Body,
		&status,
		&m.RawPayload,
		&providerCreated,
		&m.CreatedAt,
	)
	if err != nil {
		return Message{}, err
	}
	m.LeadID = nullableString(leadID)
	m.ProviderSID = nullableString(providerSID)
	m.Status = nullableString(status)
	m.ProviderCreatedAt = nullableTime(providerCreated)
	return m, nil
}

func (r *PostgresRepo) InsertMessage(ctx context.Context, m Message) (Message, bool, error) {
	if m.BusinessID == "" {
		return Message{}, false, ErrInvalidRecord
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	// Pre-check is an optimization; the unique constraint is the guarantee.
	if m.ProviderSID != nil && *m.ProviderSID != "" {
		if existing, err := r.FindMessageByProviderSID(ctx, *m.ProviderSID); err == nil {
			return existing, true, nil
		} else if !errors.Is(err, ErrNotFound) {
			return Message{}, false, err
		}
	}

	const q = `
INSERT INTO messages (
  id, business_id, lead_id, provider_sid, direction, participant,
  from_phone, to_phone, body, status, raw_payload, provider_created_at, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
RETURNING ` + messageColumns + `
`
	row := r.db.QueryRowContext(ctx, q,
		m.ID,
		m.BusinessID,
		m.LeadID,
		m.ProviderSID,
		m.Direction,
		m.Participant,
		m.FromPhone,
		m.ToPhone,
		m.Body,
		m.Status,
		m.RawPayload,
		m.ProviderCreatedAt,
		m.CreatedAt,
	)
	inserted, err := scanMessage(row)
	if err == nil {
		return inserted, false, nil
	}
	if isUniqueViolation(err) && m.ProviderSID != nil && *m.ProviderSID != "" {
		existing, findErr := r.FindMessageByProviderSID(ctx, *m.ProviderSID)
		if findErr == nil {
			return existing, true, nil
		}
		return Message{}, false, findErr
	}
	return Message{}, false, err
}

func (r *PostgresRepo) FindMessageByProviderSID(ctx context.Context, providerSID string) (Message, error) {
	const q = `SELECT ` + messageColumns + ` FROM messages WHERE provider_sid = $1`
	m, err := scanMessage(r.db.QueryRowContext(ctx, q, providerSID))
	if errors.Is(err, sql.ErrNoRows) {
		return Message{}, ErrNotFound
	}
	return m, err
}

func (r *PostgresRepo) ListMessagesForLead(ctx context.Context, leadID string) ([]Message, error) {
	const q = `
SELECT ` + messageColumns + `
FROM messages
WHERE lead_id = $1
ORDER BY created_at ASC
`
	rows, err := r.db.QueryContext(ctx, q, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

/* ===================== scan helpers ===================== */

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullableTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
