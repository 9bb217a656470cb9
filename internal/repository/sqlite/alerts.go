package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domain "github.com/oshokin/sos-responder/internal/domain/sos"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const selectAlert = `
SELECT id, originator_id, originator_name, originator_id_number, lat, lng, site, created_at,
	status, claimant_id, accepted_at, fanout_responders, fanout_contacts, fanout_at
FROM alerts WHERE id = ?`

// CreateAlert stores a new alert. A missing status is stored as open.
func (s *Store) CreateAlert(ctx context.Context, a *domain.Alert) error {
	if a == nil || a.ID == "" {
		return fmt.Errorf("create alert: %w", domain.ErrInvalidArgument)
	}

	status := a.Status
	if status == "" {
		status = domain.StatusOpen
	}

	if !status.Valid() {
		return fmt.Errorf("create alert %s: unknown status %q: %w", a.ID, status, domain.ErrInvalidArgument)
	}

	var lat, lng sql.NullFloat64
	if a.Location != nil {
		lat, lng = nullFloat(a.Location.Lat), nullFloat(a.Location.Lng)
	}

	const query = `
INSERT INTO alerts (id, originator_id, originator_name, originator_id_number, lat, lng, site, created_at,
	status, claimant_id, accepted_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.OriginatorID, a.OriginatorName, a.OriginatorIDNumber, lat, lng, a.Site, nullTime(a.CreatedAt),
		string(status), nullString(a.ClaimantID), nullTime(a.AcceptedAt))
	if err != nil {
		return fmt.Errorf("create alert %s: %w", a.ID, err)
	}

	return nil
}

// GetAlert loads an alert by id.
func (s *Store) GetAlert(ctx context.Context, id string) (*domain.Alert, error) {
	return getAlert(ctx, s.db, id)
}

func getAlert(ctx context.Context, q querier, id string) (*domain.Alert, error) {
	var (
		a                          domain.Alert
		lat, lng                   sql.NullFloat64
		createdAt, acceptedAt      sql.NullTime
		fanoutAt                   sql.NullTime
		claimant                   sql.NullString
		status                     string
		fanoutResponders, fanoutCC sql.NullInt64
	)

	err := q.QueryRowContext(ctx, selectAlert, id).Scan(
		&a.ID, &a.OriginatorID, &a.OriginatorName, &a.OriginatorIDNumber, &lat, &lng, &a.Site, &createdAt,
		&status, &claimant, &acceptedAt, &fanoutResponders, &fanoutCC, &fanoutAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("alert %s: %w", id, domain.ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("get alert %s: %w", id, err)
	}

	a.Status = domain.AlertStatus(status)
	a.ClaimantID = claimant.String
	a.CreatedAt = createdAt.Time
	a.AcceptedAt = acceptedAt.Time

	if lat.Valid || lng.Valid {
		a.Location = &domain.Location{Lat: floatPtr(lat), Lng: floatPtr(lng)}
	}

	if fanoutAt.Valid {
		a.Fanout = &domain.FanoutSummary{
			Responders: int(fanoutResponders.Int64),
			Contacts:   int(fanoutCC.Int64),
			At:         fanoutAt.Time,
		}
	}

	return &a, nil
}

// SetFanoutSummary records the SMS fallback counts on an alert.
func (s *Store) SetFanoutSummary(ctx context.Context, alertID string, summary domain.FanoutSummary) error {
	at := summary.At
	if at.IsZero() {
		at = s.now()
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE alerts SET fanout_responders = ?, fanout_contacts = ?, fanout_at = ? WHERE id = ?",
		summary.Responders, summary.Contacts, at.UTC(), alertID)
	if err != nil {
		return fmt.Errorf("set fan-out summary of %s: %w", alertID, err)
	}

	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("alert %s: %w", alertID, domain.ErrNotFound)
	}

	return nil
}
