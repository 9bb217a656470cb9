package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/oshokin/sos-responder/internal/domain/sos"
	"github.com/oshokin/sos-responder/internal/logger"
)

// Defaults for the subscription.
const (
	DefaultSubject = "sos.alerts.created"
	DefaultQueue   = "sos-responder"
)

// errAlreadyStarted is returned by a second Start.
var errAlreadyStarted = errors.New("consumer already started")

// Dispatcher escalates alerts in the background.
type Dispatcher interface {
	Dispatch(alert *sos.Alert) <-chan error
}

// Subscriber is the subscription part of *nats.Conn.
type Subscriber interface {
	QueueSubscribe(subj, queue string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// Reply is the body sent back to request/reply publishers.
type Reply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

// Consumer subscribes to alert-created events.
type Consumer struct {
	// conn creates the subscription.
	conn Subscriber
	// dispatcher runs escalations.
	dispatcher Dispatcher
	// subject and queue name the subscription.
	subject, queue string
	// ctx carries the logger for message handling.
	ctx context.Context
	// sub is set by Start.
	sub *nats.Subscription
	// respond answers request/reply publishers.
	respond func(msg *nats.Msg, data []byte) error
}

// NewConsumer returns a consumer; empty subject or queue use the defaults.
func NewConsumer(conn Subscriber, dispatcher Dispatcher, subject, queue string) *Consumer {
	if subject == "" {
		subject = DefaultSubject
	}

	if queue == "" {
		queue = DefaultQueue
	}

	return &Consumer{
		conn:       conn,
		dispatcher: dispatcher,
		subject:    subject,
		queue:      queue,
		ctx:        context.Background(),
		respond: func(msg *nats.Msg, data []byte) error {
			return msg.Respond(data)
		},
	}
}

// Start subscribes. ctx supplies the logger used for every message.
func (c *Consumer) Start(ctx context.Context) error {
	if c.sub != nil {
		return errAlreadyStarted
	}

	c.ctx = logger.WithFields(logger.WithName(ctx, "events"), "subject", c.subject)

	sub, err := c.conn.QueueSubscribe(c.subject, c.queue, c.Handle)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", c.subject, err)
	}

	c.sub = sub

	logger.InfoKV(c.ctx, "Consuming alert-created events", "queue", c.queue)

	return nil
}

// Stop drains the subscription so in-flight messages are handed over.
func (c *Consumer) Stop() error {
	if c.sub == nil {
		return nil
	}

	if err := c.sub.Drain(); err != nil {
		return fmt.Errorf("drain %s: %w", c.subject, err)
	}

	return nil
}

// Handle processes one message.
func (c *Consumer) Handle(msg *nats.Msg) {
	var alert sos.Alert
	if err := json.Unmarshal(msg.Data, &alert); err != nil {
		logger.WarnKV(c.ctx, "Dropping malformed alert-created event", "error", err)
		c.reply(msg, fmt.Errorf("%w: %w", sos.ErrInvalidArgument, err))

		return
	}

	done := c.dispatcher.Dispatch(&alert)

	if msg.Reply == "" {
		return
	}

	go func() {
		c.reply(msg, <-done)
	}()
}

func (c *Consumer) reply(msg *nats.Msg, result error) {
	if msg.Reply == "" {
		return
	}

	body := Reply{OK: result == nil}
	if result != nil {
		kind := sos.Kind(result)
		body.Kind = kind.String()
		body.Error = result.Error()
	}

	data, err := json.Marshal(body)
	if err != nil {
		logger.ErrorKV(c.ctx, "Failed to encode event reply", "error", err)

		return
	}

	if err = c.respond(msg, data); err != nil {
		logger.WarnKV(c.ctx, "Failed to reply to alert-created event", "error", err)
	}
}
