package sqlite

import (
	"context"
	"fmt"

	domain "github.com/oshokin/sos-responder/internal/domain/sos"
)

// InsertOutboundMessage writes one SMS record for the SMS transport to pick up.
func (s *Store) InsertOutboundMessage(ctx context.Context, m *domain.OutboundMessage) error {
	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	const query = `
INSERT INTO outbound_messages (id, destination, channel_id, type, body, tag, alert_id, audience, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		m.ID, m.To, m.ChannelID, m.Type, m.Body, m.Tag, m.AlertID, string(m.Audience), createdAt.UTC())
	if err != nil {
		return fmt.Errorf("insert outbound message to %s: %w", m.To, err)
	}

	return nil
}

// ListOutboundMessages returns the SMS records written for an alert.
func (s *Store) ListOutboundMessages(ctx context.Context, alertID string) ([]domain.OutboundMessage, error) {
	const query = `
SELECT id, destination, channel_id, type, body, tag, alert_id, audience, created_at
FROM outbound_messages WHERE alert_id = ? ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, alertID)
	if err != nil {
		return nil, fmt.Errorf("list outbound messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.OutboundMessage

	for rows.Next() {
		var (
			m        domain.OutboundMessage
			audience string
		)

		err = rows.Scan(&m.ID, &m.To, &m.ChannelID, &m.Type, &m.Body, &m.Tag, &m.AlertID, &audience, &m.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan outbound message: %w", err)
		}

		m.Audience = domain.Audience(audience)
		messages = append(messages, m)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("list outbound messages: %w", err)
	}

	return messages, nil
}
