package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	domain "github.com/oshokin/sos-responder/internal/domain/sos"
)

// ClaimRequest describes one claim attempt.
type ClaimRequest struct {
	// AlertID is the alert to accept.
	AlertID string
	// ClaimantID is the responder taking the alert.
	ClaimantID string
	// PairingID is the identifier of the pairing to create.
	PairingID string
	// At is the acceptance and pairing creation time.
	At time.Time
}

// ClaimAlert moves an open alert to accepted and creates its pairing in one
// transaction. It returns domain.ErrNotFound for a missing alert and
// domain.ErrAlreadyClaimed when the alert can no longer be accepted. Failing
// to obtain the write lock within the busy timeout says nothing about the
// alert and is returned as a transient error.
func (s *Store) ClaimAlert(ctx context.Context, req ClaimRequest) (*domain.Pairing, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, claimError(fmt.Errorf("begin claim: %w", err))
	}

	//nolint:errcheck // Rollback after Commit is a no-op.
	defer tx.Rollback()

	alert, err := getAlert(ctx, tx, req.AlertID)
	if err != nil {
		return nil, claimError(err)
	}

	if !alert.Status.CanTransition(domain.StatusAccepted) {
		return nil, fmt.Errorf("alert %s is %s: %w", alert.ID, alert.Status, domain.ErrAlreadyClaimed)
	}

	at := req.At.UTC()

	res, err := tx.ExecContext(ctx,
		"UPDATE alerts SET status = ?, claimant_id = ?, accepted_at = ? WHERE id = ? AND status = ?",
		string(domain.StatusAccepted), req.ClaimantID, at, alert.ID, string(domain.StatusOpen))
	if err != nil {
		return nil, claimError(fmt.Errorf("accept alert %s: %w", alert.ID, err))
	}

	if affected, _ := res.RowsAffected(); affected != 1 {
		return nil, fmt.Errorf("alert %s changed during claim: %w", alert.ID, domain.ErrAlreadyClaimed)
	}

	pairing := &domain.Pairing{
		ID:           req.PairingID,
		AlertID:      alert.ID,
		OriginatorID: alert.OriginatorID,
		ResponderID:  req.ClaimantID,
		CreatedAt:    at,
		Status:       domain.PairingStatusActive,
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO pairings (id, alert_id, originator_id, responder_id, created_at, status) VALUES (?, ?, ?, ?, ?, ?)",
		pairing.ID, pairing.AlertID, nullString(pairing.OriginatorID), pairing.ResponderID, at, pairing.Status)
	if err != nil {
		return nil, claimError(fmt.Errorf("create pairing for %s: %w", alert.ID, err))
	}

	if err = tx.Commit(); err != nil {
		return nil, claimError(fmt.Errorf("commit claim of %s: %w", alert.ID, err))
	}

	return pairing, nil
}

// claimError reports a pairing uniqueness violation as a lost claim race and
// lock contention as a retryable conflict.
func claimError(err error) error {
	switch {
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %w", domain.ErrAlreadyClaimed, err)
	case isConflict(err):
		return fmt.Errorf("%w: %w", errConflict, err)
	default:
		return err
	}
}

// ListPairings returns the pairings that reference an alert.
func (s *Store) ListPairings(ctx context.Context, alertID string) ([]domain.Pairing, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, alert_id, originator_id, responder_id, created_at, status FROM pairings WHERE alert_id = ?",
		alertID)
	if err != nil {
		return nil, fmt.Errorf("list pairings: %w", err)
	}
	defer rows.Close()

	var pairings []domain.Pairing

	for rows.Next() {
		var (
			p          domain.Pairing
			originator sql.NullString
		)

		if err = rows.Scan(&p.ID, &p.AlertID, &originator, &p.ResponderID, &p.CreatedAt, &p.Status); err != nil {
			return nil, fmt.Errorf("scan pairing: %w", err)
		}

		p.OriginatorID = originator.String
		pairings = append(pairings, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("list pairings: %w", err)
	}

	return pairings, nil
}
