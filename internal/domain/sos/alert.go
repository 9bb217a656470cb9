package sos

import "time"

// AlertStatus is the lifecycle state of an alert.
type AlertStatus string

const (
	// StatusOpen means the alert waits for a responder.
	StatusOpen AlertStatus = "open"
	// StatusAccepted means a responder has claimed the alert.
	StatusAccepted AlertStatus = "accepted"
	// StatusResolved means the alert is closed.
	StatusResolved AlertStatus = "resolved"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s AlertStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusAccepted, StatusResolved:
		return true
	default:
		return false
	}
}

// rank orders statuses along the only allowed direction open -> accepted -> resolved.
func (s AlertStatus) rank() int {
	switch s {
	case StatusOpen:
		return 0
	case StatusAccepted:
		return 1
	case StatusResolved:
		return 2
	default:
		return -1
	}
}

// CanTransition reports whether moving from s to next keeps the lifecycle forward-only.
func (s AlertStatus) CanTransition(next AlertStatus) bool {
	return s.Valid() && next.Valid() && next.rank() == s.rank()+1
}

// Location is the geolocation attached to an alert.
// Latitude and longitude are independently optional.
type Location struct {
	// Lat is the latitude in decimal degrees.
	Lat *float64 `json:"lat,omitempty"`
	// Lng is the longitude in decimal degrees.
	Lng *float64 `json:"lng,omitempty"`
}

// Coordinates returns both coordinates when, and only when, both are present.
func (l *Location) Coordinates() (lat, lng float64, ok bool) {
	if l == nil || l.Lat == nil || l.Lng == nil {
		return 0, 0, false
	}

	return *l.Lat, *l.Lng, true
}

// Clone returns a deep copy of the location.
func (l *Location) Clone() *Location {
	if l == nil {
		return nil
	}

	cloned := new(Location)

	if l.Lat != nil {
		lat := *l.Lat
		cloned.Lat = &lat
	}

	if l.Lng != nil {
		lng := *l.Lng
		cloned.Lng = &lng
	}

	return cloned
}

// NewLocation is a shorthand for a location with both coordinates set.
func NewLocation(lat, lng float64) *Location {
	return &Location{Lat: &lat, Lng: &lng}
}

// FanoutSummary documents an SMS fallback for an alert.
type FanoutSummary struct {
	// Responders is the number of responder phones an SMS record was written for.
	Responders int `json:"responders"`
	// Contacts is the number of trusted-contact phones an SMS record was written for.
	Contacts int `json:"contacts"`
	// At is when the summary was written.
	At time.Time `json:"at"`
}

// Alert is a raised safety request.
type Alert struct {
	// ID is the opaque alert identifier.
	ID string `json:"id"`
	// OriginatorID identifies who raised the alert, empty when unknown.
	OriginatorID string `json:"originatorId,omitempty"`
	// OriginatorName is the display name of the originator.
	OriginatorName string `json:"originatorName,omitempty"`
	// OriginatorIDNumber is the originator's id-number (student id, badge), optional.
	OriginatorIDNumber string `json:"originatorIdNumber,omitempty"`
	// Location is where the alert was raised, optional.
	Location *Location `json:"location,omitempty"`
	// Site scopes the alert to a campus or site, empty means unscoped.
	Site string `json:"site,omitempty"`
	// CreatedAt is when the alert was raised, zero when the origin did not record it.
	CreatedAt time.Time `json:"createdAt,omitzero"`
	// Status is the lifecycle state.
	Status AlertStatus `json:"status"`
	// ClaimantID is the responder who accepted the alert.
	ClaimantID string `json:"claimantId,omitempty"`
	// AcceptedAt is when the alert was accepted.
	AcceptedAt time.Time `json:"acceptedAt,omitzero"`
	// Fanout is present only if the SMS fallback ran.
	Fanout *FanoutSummary `json:"fanout,omitempty"`
}

// HasOriginator reports whether the originator identity is known.
func (a *Alert) HasOriginator() bool {
	return a.OriginatorID != ""
}

// Clone returns a deep copy of the alert.
func (a *Alert) Clone() *Alert {
	if a == nil {
		return nil
	}

	cloned := *a
	cloned.Location = a.Location.Clone()

	if a.Fanout != nil {
		fanout := *a.Fanout
		cloned.Fanout = &fanout
	}

	return &cloned
}
