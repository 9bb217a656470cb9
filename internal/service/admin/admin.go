package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/sos-responder/internal/auth"
	"github.com/oshokin/sos-responder/internal/config"
	"github.com/oshokin/sos-responder/internal/domain/sos"
	"github.com/oshokin/sos-responder/internal/logger"
	"github.com/oshokin/sos-responder/internal/repository/sqlite"
)

// DefaultTokenTTL is the lifetime of issued tokens.
const DefaultTokenTTL = 30 * 24 * time.Hour

var (
	// errNoSigner is returned by IssueToken when no JWT secret is configured.
	errNoSigner = errors.New("jwt_secret is not configured")
	// errUserIDRequired is returned when a command misses the user id.
	errUserIDRequired = errors.New("user id must be provided")
)

// Store is the part of the directory the commands touch.
type Store interface {
	UpsertUser(ctx context.Context, u *sos.User) error
	GetUser(ctx context.Context, id string) (*sos.User, error)
	SetUserRole(ctx context.Context, id string, role sos.Role) error
	SetOnDuty(ctx context.Context, id string, onDuty bool) error
	AddPushAddress(ctx context.Context, userID, address string) error
	RevokePushAddress(ctx context.Context, userID, address string) error
	AddContact(ctx context.Context, ownerID string, c sos.Contact) error
	GetAlert(ctx context.Context, id string) (*sos.Alert, error)
	ListPairings(ctx context.Context, alertID string) ([]sos.Pairing, error)
	ListOutboundMessages(ctx context.Context, alertID string) ([]sos.OutboundMessage, error)
}

// Admin runs maintenance commands.
type Admin struct {
	// store is the directory.
	store Store
	// signer issues tokens, nil without a secret.
	signer *auth.Signer
	// out receives command output.
	out io.Writer
}

// New returns an Admin. signer may be nil.
func New(store Store, signer *auth.Signer, out io.Writer) *Admin {
	return &Admin{
		store:  store,
		signer: signer,
		out:    out,
	}
}

// Run loads the settings, opens the store and runs action against it.
func Run(ctx context.Context, configPath string, out io.Writer, action func(ctx context.Context, a *Admin) error) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "sos-admin")

	settings, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	store, err := sqlite.Open(ctx, settings.DatabasePath, sqlite.WithBusyTimeout(settings.Timeout))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	defer func() {
		if err := store.Close(); err != nil {
			logger.WarnKV(ctx, "Failed to close store", "error", err)
		}
	}()

	// Token issuing is the only command that needs the secret.
	var signer *auth.Signer

	if settings.JWTSecret != "" {
		if signer, err = auth.NewSigner(settings.JWTSecret); err != nil {
			return fmt.Errorf("create token signer: %w", err)
		}
	}

	return action(ctx, New(store, signer, out))
}

// UpsertUser creates or updates a directory user.
func (a *Admin) UpsertUser(ctx context.Context, u *sos.User) error {
	if u == nil || strings.TrimSpace(u.ID) == "" {
		return errUserIDRequired
	}

	if u.Role != "" {
		if _, ok := sos.ParseRole(string(u.Role)); !ok {
			return fmt.Errorf("%w: unknown role %q", sos.ErrInvalidArgument, u.Role)
		}
	}

	if err := a.store.UpsertUser(ctx, u); err != nil {
		return err
	}

	logger.InfoKV(ctx, "User saved", "uid", u.ID, "site", u.Site, "on_duty", u.OnDuty)

	return nil
}

// GrantRole changes the role of an existing user.
func (a *Admin) GrantRole(ctx context.Context, uid, role string) error {
	if uid == "" {
		return errUserIDRequired
	}

	parsed, ok := sos.ParseRole(role)
	if !ok {
		return fmt.Errorf("%w: unknown role %q", sos.ErrInvalidArgument, role)
	}

	if err := a.store.SetUserRole(ctx, uid, parsed); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Role granted", "uid", uid, "role", parsed)

	return nil
}

// SetOnDuty toggles whether a responder receives alerts.
func (a *Admin) SetOnDuty(ctx context.Context, uid string, onDuty bool) error {
	if uid == "" {
		return errUserIDRequired
	}

	if err := a.store.SetOnDuty(ctx, uid, onDuty); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Duty changed", "uid", uid, "on_duty", onDuty)

	return nil
}

// AddPushAddress registers a push address for a user.
func (a *Admin) AddPushAddress(ctx context.Context, uid, address string) error {
	if uid == "" {
		return errUserIDRequired
	}

	return a.store.AddPushAddress(ctx, uid, strings.TrimSpace(address))
}

// RevokePushAddress removes a push address.
func (a *Admin) RevokePushAddress(ctx context.Context, uid, address string) error {
	if uid == "" {
		return errUserIDRequired
	}

	return a.store.RevokePushAddress(ctx, uid, strings.TrimSpace(address))
}

// AddContact stores a trusted contact for a user.
func (a *Admin) AddContact(ctx context.Context, uid, name, phone string) error {
	if uid == "" {
		return errUserIDRequired
	}

	return a.store.AddContact(ctx, uid, sos.Contact{
		Name:  strings.TrimSpace(name),
		Phone: strings.TrimSpace(phone),
	})
}

// IssueToken signs a token carrying the user's current role and email and
// writes it to the output.
func (a *Admin) IssueToken(ctx context.Context, uid string, ttl time.Duration) error {
	if a.signer == nil {
		return errNoSigner
	}

	if uid == "" {
		return errUserIDRequired
	}

	user, err := a.store.GetUser(ctx, uid)
	if err != nil {
		return err
	}

	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	token, err := a.signer.Issue(&sos.Identity{
		UID:   user.ID,
		Role:  user.Role,
		Email: user.Email,
	}, ttl)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(a.out, token)

	return err
}

// alertReport is the YAML view printed by ShowAlert.
type alertReport struct {
	ID           string          `yaml:"id"`
	Status       string          `yaml:"status"`
	OriginatorID string          `yaml:"originator_id,omitempty"`
	Site         string          `yaml:"site,omitempty"`
	CreatedAt    string          `yaml:"created_at,omitempty"`
	ClaimantID   string          `yaml:"claimant_id,omitempty"`
	AcceptedAt   string          `yaml:"accepted_at,omitempty"`
	Fanout       *fanoutReport   `yaml:"fanout,omitempty"`
	Pairings     []pairingReport `yaml:"pairings,omitempty"`
	Messages     []messageReport `yaml:"messages,omitempty"`
}

type fanoutReport struct {
	Responders int    `yaml:"responders"`
	Contacts   int    `yaml:"contacts"`
	At         string `yaml:"at"`
}

type pairingReport struct {
	ID          string `yaml:"id"`
	ResponderID string `yaml:"responder_id"`
	Status      string `yaml:"status"`
}

type messageReport struct {
	To       string `yaml:"to"`
	Audience string `yaml:"audience"`
	Body     string `yaml:"body"`
}

// ShowAlert prints an alert with its pairings and SMS records.
func (a *Admin) ShowAlert(ctx context.Context, alertID string) error {
	alert, err := a.store.GetAlert(ctx, alertID)
	if err != nil {
		return err
	}

	pairings, err := a.store.ListPairings(ctx, alertID)
	if err != nil {
		return err
	}

	messages, err := a.store.ListOutboundMessages(ctx, alertID)
	if err != nil {
		return err
	}

	report := alertReport{
		ID:           alert.ID,
		Status:       string(alert.Status),
		OriginatorID: alert.OriginatorID,
		Site:         alert.Site,
		CreatedAt:    formatTime(alert.CreatedAt),
		ClaimantID:   alert.ClaimantID,
		AcceptedAt:   formatTime(alert.AcceptedAt),
	}

	if alert.Fanout != nil {
		report.Fanout = &fanoutReport{
			Responders: alert.Fanout.Responders,
			Contacts:   alert.Fanout.Contacts,
			At:         formatTime(alert.Fanout.At),
		}
	}

	for _, p := range pairings {
		report.Pairings = append(report.Pairings, pairingReport{ID: p.ID, ResponderID: p.ResponderID, Status: p.Status})
	}

	for _, m := range messages {
		report.Messages = append(report.Messages, messageReport{To: m.To, Audience: string(m.Audience), Body: m.Body})
	}

	encoder := yaml.NewEncoder(a.out)
	encoder.SetIndent(2)

	if err = encoder.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	return encoder.Close()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format(time.RFC3339)
}
