package escalation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/oshokin/sos-responder/internal/domain/sos"
	"github.com/oshokin/sos-responder/internal/logger"
	"github.com/oshokin/sos-responder/internal/message"
	"github.com/oshokin/sos-responder/internal/metrics"
	"github.com/oshokin/sos-responder/internal/repository/marker"
	"github.com/oshokin/sos-responder/internal/service/resolver"
	"github.com/oshokin/sos-responder/internal/transport/push"
)

// Defaults applied to zero Options fields.
const (
	DefaultResponderSMSLimit = 10
	DefaultContactSMSLimit   = 5
	DefaultDeepLinkBase      = "ruff://sos/"
	DefaultWriteConcurrency  = 8
	DefaultPushTimeout       = 5 * time.Second

	pushTypeSOS = "SOS"
)

// ErrNoRecordsWritten is returned when the SMS fallback had phones but every write failed.
var ErrNoRecordsWritten = errors.New("no SMS record written")

// Outcome is how one alert-created trigger ended.
type Outcome string

const (
	// OutcomePushDelivered means at least one push address accepted delivery.
	OutcomePushDelivered Outcome = metrics.OutcomePushDelivered
	// OutcomeSMSFallback means no push was delivered and SMS records were written.
	OutcomeSMSFallback Outcome = metrics.OutcomeSMSFallback
	// OutcomeDuplicate means the alert was already handled by an earlier trigger.
	OutcomeDuplicate Outcome = metrics.OutcomeDuplicate
)

// Result describes what an escalation did.
type Result struct {
	// Outcome is the branch the escalation took.
	Outcome Outcome
	// PushAddresses is the number of distinct push addresses resolved.
	PushAddresses int
	// PushSuccesses is the number of addresses that accepted the push.
	PushSuccesses int
	// ResponderSMS is the number of responder phones an SMS record was attempted for.
	ResponderSMS int
	// ContactSMS is the number of contact phones an SMS record was attempted for.
	ContactSMS int
	// FailedWrites is the number of SMS records that could not be written.
	FailedWrites int
}

// Outbox accepts outbound SMS records.
type Outbox interface {
	InsertOutboundMessage(ctx context.Context, m *sos.OutboundMessage) error
}

// SummaryWriter records the fan-out summary on an alert.
type SummaryWriter interface {
	SetFanoutSummary(ctx context.Context, alertID string, summary sos.FanoutSummary) error
}

// Options tunes the escalation.
type Options struct {
	// ResponderSMSLimit caps responder phones per alert.
	ResponderSMSLimit int
	// ContactSMSLimit caps trusted-contact phones per alert.
	ContactSMSLimit int
	// ChannelID is the SMS sending channel.
	ChannelID string
	// DeepLinkBase is prefixed to the alert id in the push payload.
	DeepLinkBase string
	// AppName brands message texts.
	AppName string
	// Location is the time zone used in message texts.
	Location *time.Location
	// WriteConcurrency bounds parallel SMS record writes.
	WriteConcurrency int
	// PushTimeout bounds a single push send.
	PushTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.ResponderSMSLimit <= 0 {
		o.ResponderSMSLimit = DefaultResponderSMSLimit
	}

	if o.ContactSMSLimit <= 0 {
		o.ContactSMSLimit = DefaultContactSMSLimit
	}

	if o.DeepLinkBase == "" {
		o.DeepLinkBase = DefaultDeepLinkBase
	}

	if o.Location == nil {
		o.Location = time.Local
	}

	if o.WriteConcurrency <= 0 {
		o.WriteConcurrency = DefaultWriteConcurrency
	}

	if o.PushTimeout <= 0 {
		o.PushTimeout = DefaultPushTimeout
	}

	return o
}

// Option customizes an Engine.
type Option func(*Engine)

// WithMarker guards against duplicate triggers for the same alert.
func WithMarker(m marker.Marker) Option {
	return func(e *Engine) {
		e.marker = m
	}
}

// WithMetrics records outcomes in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIDGenerator replaces the outbound message id generator.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) {
		e.newID = newID
	}
}

// Engine is the delivery escalation engine.
type Engine struct {
	// resolver answers who should be told.
	resolver *resolver.Resolver
	// sender delivers push messages.
	sender push.Sender
	// outbox receives SMS records.
	outbox Outbox
	// summaries receives the fan-out summary.
	summaries SummaryWriter
	// marker is optional.
	marker marker.Marker
	// metrics is optional.
	metrics *metrics.Metrics
	// composer renders message texts.
	composer message.Composer
	// opts holds limits and branding.
	opts Options
	// now returns the current time.
	now func() time.Time
	// newID returns a fresh outbound message id.
	newID func() string
}

// New builds an Engine.
func New(
	res *resolver.Resolver,
	sender push.Sender,
	outbox Outbox,
	summaries SummaryWriter,
	opts Options,
	options ...Option,
) *Engine {
	opts = opts.withDefaults()

	e := &Engine{
		resolver:  res,
		sender:    sender,
		outbox:    outbox,
		summaries: summaries,
		composer:  message.NewComposer(opts.AppName),
		opts:      opts,
		now:       time.Now,
		newID:     uuid.NewString,
	}

	for _, option := range options {
		option(e)
	}

	return e
}

// HandleAlertCreated escalates one alert.
//
// Errors are transient and are meant for the trigger's retry: resolution
// failures, or ErrNoRecordsWritten when not a single SMS record could be
// written. Push failures and partial write failures are handled here.
func (e *Engine) HandleAlertCreated(ctx context.Context, alert *sos.Alert) (*Result, error) {
	if alert == nil || strings.TrimSpace(alert.ID) == "" {
		return nil, fmt.Errorf("%w: alert id is required", sos.ErrInvalidArgument)
	}

	ctx = logger.WithName(ctx, "escalation")
	ctx = logger.WithKV(ctx, "alert_id", alert.ID)
	started := e.now()

	var marked bool

	if e.marker != nil {
		acquired, err := e.marker.Acquire(ctx, alert.ID)

		switch {
		case err != nil:
			logger.WarnKV(ctx, "Fan-out marker unavailable, escalating without duplicate guard", "error", err)
		case !acquired:
			logger.InfoKV(ctx, "Alert already escalated, skipping duplicate trigger")
			e.metrics.Escalation(metrics.OutcomeDuplicate, e.now().Sub(started))

			return &Result{Outcome: OutcomeDuplicate}, nil
		default:
			marked = true
		}
	}

	result, err := e.escalate(ctx, alert)
	if err != nil {
		// Nothing was written, so a retried trigger must be allowed to run.
		if marked {
			if releaseErr := e.marker.Release(context.WithoutCancel(ctx), alert.ID); releaseErr != nil {
				logger.ErrorKV(ctx, "Failed to release fan-out marker", "error", releaseErr)
			}
		}

		e.metrics.Escalation(metrics.OutcomeFailed, e.now().Sub(started))

		return nil, err
	}

	e.metrics.Escalation(string(result.Outcome), e.now().Sub(started))

	return result, nil
}

func (e *Engine) escalate(ctx context.Context, alert *sos.Alert) (*Result, error) {
	originator, err := e.resolver.ResolveOriginator(ctx, alert)
	if err != nil {
		return nil, fmt.Errorf("resolve originator: %w", err)
	}

	params := message.Params{
		Name:     originator.Name,
		IDNumber: originator.IDNumber,
		Location: alert.Location,
		Time:     message.FormatTime(alert.CreatedAt, e.now(), e.opts.Location),
	}
	contactBody := e.composer.ContactBody(params)
	responderBody := e.composer.ResponderBody(params)

	responders, err := e.resolver.ResolveResponders(ctx, alert.Site)
	if err != nil {
		return nil, fmt.Errorf("resolve responders: %w", err)
	}

	addresses, err := e.resolver.ResolveAddresses(ctx, resolver.IDs(responders))
	if err != nil {
		return nil, fmt.Errorf("resolve push addresses: %w", err)
	}

	result := &Result{PushAddresses: len(addresses)}

	if len(addresses) > 0 {
		result.PushSuccesses = e.sendPush(ctx, alert, originator.Name, addresses)
	}

	if result.PushSuccesses > 0 {
		logger.InfoKV(ctx, "Push delivered",
			"addresses", result.PushAddresses,
			"successes", result.PushSuccesses)

		result.Outcome = OutcomePushDelivered

		return result, nil
	}

	// The push may have used up the caller's deadline; the fallback must still run.
	ctx = context.WithoutCancel(ctx)

	responderPhones := resolver.Phones(responders, e.opts.ResponderSMSLimit)

	var contactPhones []string

	if originator.Known() {
		contacts, contactsErr := e.resolver.ResolveContacts(ctx, originator.ID)
		if contactsErr != nil {
			return nil, fmt.Errorf("resolve contacts: %w", contactsErr)
		}

		contactPhones = resolver.ContactPhones(contacts, e.opts.ContactSMSLimit)
	}

	result.Outcome = OutcomeSMSFallback
	result.ResponderSMS = len(responderPhones)
	result.ContactSMS = len(contactPhones)
	result.FailedWrites = e.writeMessages(ctx, alert.ID, []batch{
		{audience: sos.AudienceResponder, body: responderBody, phones: responderPhones},
		{audience: sos.AudienceContact, body: contactBody, phones: contactPhones},
	})

	if attempted := result.ResponderSMS + result.ContactSMS; attempted > 0 && result.FailedWrites == attempted {
		return nil, fmt.Errorf("write SMS fallback: %w (%d attempted)", ErrNoRecordsWritten, attempted)
	}

	summary := sos.FanoutSummary{
		Responders: result.ResponderSMS,
		Contacts:   result.ContactSMS,
		At:         e.now().UTC(),
	}

	if err = e.summaries.SetFanoutSummary(ctx, alert.ID, summary); err != nil {
		logger.WarnKV(ctx, "Failed to write fan-out summary", "error", err)
	}

	logger.InfoKV(ctx, "SMS fallback written",
		"push_addresses", result.PushAddresses,
		"responders", result.ResponderSMS,
		"contacts", result.ContactSMS,
		"failed", result.FailedWrites)

	return result, nil
}

// sendPush returns the number of accepted deliveries; any failure counts as zero.
func (e *Engine) sendPush(ctx context.Context, alert *sos.Alert, name string, addresses []string) int {
	var lat, lng *float64
	if alert.Location != nil {
		lat, lng = alert.Location.Lat, alert.Location.Lng
	}

	msg := &push.Message{
		Addresses: addresses,
		Data: map[string]string{
			"type":     pushTypeSOS,
			"alertId":  alert.ID,
			"userName": name,
			"lat":      message.Coordinate(lat),
			"lng":      message.Coordinate(lng),
			"deeplink": e.opts.DeepLinkBase + alert.ID,
		},
		Notification: push.Notification{
			Title: e.composer.PushTitle(),
			Body:  e.composer.PushBody(name),
		},
		AndroidPriority: push.AndroidPriorityHigh,
		APNSHeaders:     map[string]string{push.APNSPriorityHeader: push.APNSPriorityNow},
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.PushTimeout)
	defer cancel()

	successes, err := e.sender.Send(ctx, msg)
	e.metrics.Push(successes, err)

	if err != nil {
		logger.WarnKV(ctx, "Push send failed, falling back to SMS", "addresses", len(addresses), "error", err)

		return 0
	}

	return successes
}

// batch is one audience's share of the SMS fallback.
type batch struct {
	audience sos.Audience
	body     string
	phones   []string
}

// writeMessages writes one record per phone independently and returns how many failed.
func (e *Engine) writeMessages(ctx context.Context, alertID string, batches []batch) int {
	var (
		g      errgroup.Group
		failed atomic.Int32
	)

	g.SetLimit(e.opts.WriteConcurrency)

	for _, b := range batches {
		for _, phone := range b.phones {
			g.Go(func() error {
				record := &sos.OutboundMessage{
					ID:        e.newID(),
					To:        phone,
					ChannelID: e.opts.ChannelID,
					Type:      sos.MessageTypeText,
					Body:      b.body,
					Tag:       sos.MessageTagSOS,
					AlertID:   alertID,
					Audience:  b.audience,
					CreatedAt: e.now().UTC(),
				}

				err := e.outbox.InsertOutboundMessage(ctx, record)
				e.metrics.SMSRecord(string(b.audience), err)

				if err != nil {
					failed.Add(1)
					logger.ErrorKV(ctx, "Failed to write SMS record",
						"audience", b.audience,
						"to", phone,
						"error", err)
				}

				return nil
			})
		}
	}

	_ = g.Wait()

	return int(failed.Load())
}
