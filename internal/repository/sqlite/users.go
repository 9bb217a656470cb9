package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	domain "github.com/oshokin/sos-responder/internal/domain/sos"
)

// UpsertUser inserts the user or updates its profile fields.
// The role of an existing user is kept; new users without a role get domain.RoleUser.
func (s *Store) UpsertUser(ctx context.Context, u *domain.User) error {
	if u == nil || u.ID == "" {
		return fmt.Errorf("upsert user: %w", domain.ErrInvalidArgument)
	}

	role := u.Role
	if role == "" {
		role = domain.RoleUser
	}

	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	const query = `
INSERT INTO users (id, role, email, display_name, id_number, phone, site, on_duty, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	email        = excluded.email,
	display_name = excluded.display_name,
	id_number    = excluded.id_number,
	phone        = excluded.phone,
	site         = excluded.site,
	on_duty      = excluded.on_duty`

	_, err := s.db.ExecContext(ctx, query,
		u.ID, string(role), u.Email, u.DisplayName, u.IDNumber, u.Phone, u.Site, u.OnDuty, createdAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", u.ID, err)
	}

	return nil
}

// SetUserRole changes the role of an existing user.
func (s *Store) SetUserRole(ctx context.Context, id string, role domain.Role) error {
	res, err := s.db.ExecContext(ctx, "UPDATE users SET role = ? WHERE id = ?", string(role), id)
	if err != nil {
		return fmt.Errorf("set role of %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set role of %s: %w", id, err)
	}

	if affected == 0 {
		return fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// SetOnDuty toggles whether a responder receives alerts.
func (s *Store) SetOnDuty(ctx context.Context, id string, onDuty bool) error {
	res, err := s.db.ExecContext(ctx, "UPDATE users SET on_duty = ? WHERE id = ?", onDuty, id)
	if err != nil {
		return fmt.Errorf("set duty of %s: %w", id, err)
	}

	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// GetUser loads a user by id.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	const query = `
SELECT id, role, email, display_name, id_number, phone, site, on_duty, created_at
FROM users WHERE id = ?`

	var (
		u    domain.User
		role string
	)

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &role, &u.Email, &u.DisplayName, &u.IDNumber, &u.Phone, &u.Site, &u.OnDuty, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}

	u.Role = domain.Role(role)

	return &u, nil
}

// ListOnDutyResponders returns on-duty responders in a stable order,
// restricted to site when it is not empty.
func (s *Store) ListOnDutyResponders(ctx context.Context, site string) ([]domain.Responder, error) {
	query := `
SELECT u.id, u.phone,
	(SELECT COUNT(*) FROM push_addresses p WHERE p.user_id = u.id AND p.address <> '')
FROM users u
WHERE u.role = ? AND u.on_duty = 1`
	args := []any{string(domain.RoleResponder)}

	if site != "" {
		query += " AND u.site = ?"

		args = append(args, site)
	}

	query += " ORDER BY u.created_at, u.id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list responders: %w", err)
	}
	defer rows.Close()

	var responders []domain.Responder

	for rows.Next() {
		var r domain.Responder
		if err = rows.Scan(&r.ID, &r.Phone, &r.PushAddressCount); err != nil {
			return nil, fmt.Errorf("scan responder: %w", err)
		}

		responders = append(responders, r)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("list responders: %w", err)
	}

	return responders, nil
}

// AddPushAddress registers a device address for a user. Re-adding is a no-op.
func (s *Store) AddPushAddress(ctx context.Context, userID, address string) error {
	if userID == "" || strings.TrimSpace(address) == "" {
		return fmt.Errorf("add push address: %w", domain.ErrInvalidArgument)
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO push_addresses (user_id, address, created_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING",
		userID, address, s.now().UTC())
	if err != nil {
		return fmt.Errorf("add push address for %s: %w", userID, err)
	}

	return nil
}

// RevokePushAddress removes a single device address of a user.
func (s *Store) RevokePushAddress(ctx context.Context, userID, address string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM push_addresses WHERE user_id = ? AND address = ?", userID, address)
	if err != nil {
		return fmt.Errorf("revoke push address for %s: %w", userID, err)
	}

	return nil
}

// ListPushAddresses returns every push address registered by the given users.
// Duplicates across users are possible; callers de-duplicate.
func (s *Store) ListPushAddresses(ctx context.Context, userIDs []string) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(userIDs)), ",")
	args := make([]any, 0, len(userIDs))

	for _, id := range userIDs {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT address FROM push_addresses WHERE user_id IN ("+placeholders+") ORDER BY user_id, created_at",
		args...)
	if err != nil {
		return nil, fmt.Errorf("list push addresses: %w", err)
	}
	defer rows.Close()

	var addresses []string

	for rows.Next() {
		var address string
		if err = rows.Scan(&address); err != nil {
			return nil, fmt.Errorf("scan push address: %w", err)
		}

		addresses = append(addresses, address)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("list push addresses: %w", err)
	}

	return addresses, nil
}

// AddContact stores a trusted contact for ownerID.
func (s *Store) AddContact(ctx context.Context, ownerID string, c domain.Contact) error {
	if ownerID == "" {
		return fmt.Errorf("add contact: %w", domain.ErrInvalidArgument)
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO contacts (owner_id, name, phone, created_at) VALUES (?, ?, ?, ?)",
		ownerID, c.Name, c.Phone, s.now().UTC())
	if err != nil {
		return fmt.Errorf("add contact for %s: %w", ownerID, err)
	}

	return nil
}

// ListContacts returns the trusted contacts of ownerID in insertion order.
// An unknown owner yields an empty list.
func (s *Store) ListContacts(ctx context.Context, ownerID string) ([]domain.Contact, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, phone FROM contacts WHERE owner_id = ? ORDER BY id", ownerID)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []domain.Contact

	for rows.Next() {
		var c domain.Contact
		if err = rows.Scan(&c.Name, &c.Phone); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}

		contacts = append(contacts, c)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}

	return contacts, nil
}
