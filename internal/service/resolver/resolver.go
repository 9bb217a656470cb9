package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/oshokin/sos-responder/internal/domain/sos"
)

// FallbackName is used when the originator's name is unknown.
const FallbackName = "The user"

// Directory is the read side of the identity directory.
type Directory interface {
	ListOnDutyResponders(ctx context.Context, site string) ([]sos.Responder, error)
	ListPushAddresses(ctx context.Context, userIDs []string) ([]string, error)
	ListContacts(ctx context.Context, ownerID string) ([]sos.Contact, error)
	GetUser(ctx context.Context, id string) (*sos.User, error)
}

// Originator is the identity rendered into alert messages.
type Originator struct {
	// ID is the originator identity, empty when unknown.
	ID string
	// Name is never empty; FallbackName stands in for an unknown name.
	Name string
	// IDNumber is optional.
	IDNumber string
}

// Known reports whether the alert has an originator identity.
func (o Originator) Known() bool {
	return o.ID != ""
}

// Resolver answers recipient questions for the escalation engine.
type Resolver struct {
	// dir is the directory being read.
	dir Directory
}

// New returns a resolver over dir.
func New(dir Directory) *Resolver {
	return &Resolver{dir: dir}
}

// ResolveResponders returns every on-duty responder, limited to site when it is set.
func (r *Resolver) ResolveResponders(ctx context.Context, site string) ([]sos.Responder, error) {
	responders, err := r.dir.ListOnDutyResponders(ctx, strings.TrimSpace(site))
	if err != nil {
		return nil, fmt.Errorf("list on-duty responders: %w", err)
	}

	return responders, nil
}

// ResolveContacts returns the trusted contacts of originatorID.
// An empty originatorID yields no contacts.
func (r *Resolver) ResolveContacts(ctx context.Context, originatorID string) ([]sos.Contact, error) {
	if originatorID == "" {
		return nil, nil
	}

	contacts, err := r.dir.ListContacts(ctx, originatorID)
	if err != nil {
		return nil, fmt.Errorf("list contacts of %s: %w", originatorID, err)
	}

	return contacts, nil
}

// ResolveAddresses returns the de-duplicated, non-empty push addresses of responderIDs.
func (r *Resolver) ResolveAddresses(ctx context.Context, responderIDs []string) ([]string, error) {
	if len(responderIDs) == 0 {
		return nil, nil
	}

	addresses, err := r.dir.ListPushAddresses(ctx, responderIDs)
	if err != nil {
		return nil, fmt.Errorf("list push addresses: %w", err)
	}

	seen := make(map[string]struct{}, len(addresses))
	result := make([]string, 0, len(addresses))

	for _, address := range addresses {
		address = strings.TrimSpace(address)
		if address == "" {
			continue
		}

		if _, ok := seen[address]; ok {
			continue
		}

		seen[address] = struct{}{}
		result = append(result, address)
	}

	return result, nil
}

// ResolveOriginator completes the originator's name and id-number from the
// directory when the alert does not carry them.
func (r *Resolver) ResolveOriginator(ctx context.Context, alert *sos.Alert) (Originator, error) {
	o := Originator{
		ID:       alert.OriginatorID,
		Name:     strings.TrimSpace(alert.OriginatorName),
		IDNumber: strings.TrimSpace(alert.OriginatorIDNumber),
	}

	if alert.HasOriginator() && (o.Name == "" || o.IDNumber == "") {
		user, err := r.dir.GetUser(ctx, o.ID)

		switch {
		case errors.Is(err, sos.ErrNotFound):
		case err != nil:
			return Originator{}, fmt.Errorf("get originator %s: %w", o.ID, err)
		default:
			if o.Name == "" {
				o.Name = strings.TrimSpace(user.DisplayName)
			}

			if o.IDNumber == "" {
				o.IDNumber = strings.TrimSpace(user.IDNumber)
			}
		}
	}

	if o.Name == "" {
		o.Name = FallbackName
	}

	return o, nil
}

// Phones returns the non-empty phones of responders, at most limit of them, in order.
func Phones(responders []sos.Responder, limit int) []string {
	phones := make([]string, 0, min(len(responders), max(limit, 0)))

	for _, responder := range responders {
		if len(phones) >= limit {
			break
		}

		if phone := strings.TrimSpace(responder.Phone); phone != "" {
			phones = append(phones, phone)
		}
	}

	return phones
}

// ContactPhones returns the non-empty phones of contacts, at most limit of them, in order.
func ContactPhones(contacts []sos.Contact, limit int) []string {
	phones := make([]string, 0, min(len(contacts), max(limit, 0)))

	for _, contact := range contacts {
		if len(phones) >= limit {
			break
		}

		if phone := strings.TrimSpace(contact.Phone); phone != "" {
			phones = append(phones, phone)
		}
	}

	return phones
}

// IDs returns the identities of responders.
func IDs(responders []sos.Responder) []string {
	ids := make([]string, 0, len(responders))
	for _, responder := range responders {
		ids = append(ids, responder.ID)
	}

	return ids
}
