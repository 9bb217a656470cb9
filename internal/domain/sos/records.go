package sos

import "time"

// Audience tells which kind of recipient an outbound message targets.
type Audience string

const (
	// AudienceResponder targets an on-duty responder.
	AudienceResponder Audience = "responder"
	// AudienceContact targets a trusted contact of the originator.
	AudienceContact Audience = "contact"
)

const (
	// MessageTypeText is the only outbound message type written by this service.
	MessageTypeText = "text"
	// MessageTagSOS correlates outbound messages with alerts.
	MessageTagSOS = "sos"
)

// OutboundMessage is one SMS attempt handed to the SMS transport.
type OutboundMessage struct {
	// ID is the record identifier.
	ID string
	// To is the destination phone.
	To string
	// ChannelID identifies the sending channel at the SMS provider.
	ChannelID string
	// Type is the message type, always MessageTypeText.
	Type string
	// Body is the rendered text.
	Body string
	// Tag correlates the record, always MessageTagSOS.
	Tag string
	// AlertID links the record to the alert.
	AlertID string
	// Audience is the recipient kind.
	Audience Audience
	// CreatedAt is when the record was written.
	CreatedAt time.Time
}

// PairingStatusActive is the status of a freshly created pairing.
const PairingStatusActive = "active"

// Pairing links a claimed alert, its originator and the claimant.
type Pairing struct {
	// ID is the opaque pairing identifier.
	ID string
	// AlertID is the claimed alert.
	AlertID string
	// OriginatorID is the alert originator, empty when unknown.
	OriginatorID string
	// ResponderID is the claimant.
	ResponderID string
	// CreatedAt is when the pairing was created.
	CreatedAt time.Time
	// Status is PairingStatusActive on creation.
	Status string
}
