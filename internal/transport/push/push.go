package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is the request subject of the push gateway.
const DefaultSubject = "push.send"

// Delivery priorities understood by the gateway.
const (
	AndroidPriorityHigh = "high"
	APNSPriorityHeader  = "apns-priority"
	APNSPriorityNow     = "10"
)

var (
	// errNoAddresses is returned for a message without destinations.
	errNoAddresses = errors.New("push message has no addresses")
	// errGateway wraps a failure reported by the gateway itself.
	errGateway = errors.New("push gateway error")
)

// Notification is the visible part of a push message.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Message is one batched push request.
type Message struct {
	// Addresses are the device addresses to deliver to.
	Addresses []string `json:"tokens"`
	// Data is the key-value payload delivered to the app.
	Data map[string]string `json:"data"`
	// Notification is shown by the device.
	Notification Notification `json:"notification"`
	// AndroidPriority is the Android delivery priority.
	AndroidPriority string `json:"androidPriority,omitempty"`
	// APNSHeaders are passed to Apple push as headers.
	APNSHeaders map[string]string `json:"apnsHeaders,omitempty"`
}

// Result is the gateway's answer.
type Result struct {
	SuccessCount int    `json:"successCount"`
	FailureCount int    `json:"failureCount"`
	Error        string `json:"error,omitempty"`
}

// Sender delivers a batched push message and reports how many addresses accepted it.
type Sender interface {
	Send(ctx context.Context, msg *Message) (int, error)
}

// Requester is the request/reply part of *nats.Conn.
type Requester interface {
	RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error)
}

// NATSSender sends push messages to the gateway over NATS request/reply.
type NATSSender struct {
	// conn performs the request.
	conn Requester
	// subject is the gateway's request subject.
	subject string
}

// NewNATSSender returns a sender that publishes requests on subject.
func NewNATSSender(conn Requester, subject string) *NATSSender {
	if subject == "" {
		subject = DefaultSubject
	}

	return &NATSSender{conn: conn, subject: subject}
}

// Send performs one request and returns the gateway's success count.
func (s *NATSSender) Send(ctx context.Context, msg *Message) (int, error) {
	if msg == nil || len(msg.Addresses) == 0 {
		return 0, errNoAddresses
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("marshal push message: %w", err)
	}

	reply, err := s.conn.RequestWithContext(ctx, s.subject, payload)
	if err != nil {
		return 0, fmt.Errorf("request push gateway: %w", err)
	}

	var result Result
	if err = json.Unmarshal(reply.Data, &result); err != nil {
		return 0, fmt.Errorf("decode push gateway reply: %w", err)
	}

	if result.Error != "" {
		return 0, fmt.Errorf("%w: %s", errGateway, result.Error)
	}

	return max(result.SuccessCount, 0), nil
}

// NoopSender accepts nothing; every alert falls back to SMS.
type NoopSender struct{}

// Send reports zero successes.
func (NoopSender) Send(context.Context, *Message) (int, error) {
	return 0, nil
}
