package escalation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/sos-responder/internal/domain/sos"
	"github.com/oshokin/sos-responder/internal/message"
	"github.com/oshokin/sos-responder/internal/metrics"
	"github.com/oshokin/sos-responder/internal/repository/marker"
	"github.com/oshokin/sos-responder/internal/service/resolver"
	"github.com/oshokin/sos-responder/internal/transport/push"
)

var errStore = errors.New("store unavailable")

// directory is an in-memory resolver.Directory.
type directory struct {
	responders  []sos.Responder
	addresses   map[string][]string
	contacts    map[string][]sos.Contact
	users       map[string]*sos.User
	respondErr  error
	contactsErr error
	sites       []string
}

func (d *directory) ListOnDutyResponders(_ context.Context, site string) ([]sos.Responder, error) {
	d.sites = append(d.sites, site)

	return d.responders, d.respondErr
}

func (d *directory) ListPushAddresses(_ context.Context, ids []string) ([]string, error) {
	var out []string
	for _, id := range ids {
		out = append(out, d.addresses[id]...)
	}

	return out, nil
}

func (d *directory) ListContacts(_ context.Context, ownerID string) ([]sos.Contact, error) {
	return d.contacts[ownerID], d.contactsErr
}

func (d *directory) GetUser(_ context.Context, id string) (*sos.User, error) {
	if u, ok := d.users[id]; ok {
		return u, nil
	}

	return nil, sos.ErrNotFound
}

// sender is a push.Sender with a hook.
type sender struct {
	mu    sync.Mutex
	sent  []*push.Message
	reply func(msg *push.Message) (int, error)
	// hang makes Send wait for its context like an unresponsive gateway.
	hang bool
}

func (s *sender) Send(ctx context.Context, msg *push.Message) (int, error) {
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()

	if s.hang {
		<-ctx.Done()

		return 0, ctx.Err()
	}

	if s.reply == nil {
		return 0, nil
	}

	return s.reply(msg)
}

// outbox collects records and fails for phones listed in failFor.
type outbox struct {
	mu      sync.Mutex
	records []*sos.OutboundMessage
	failFor map[string]bool
}

func (o *outbox) InsertOutboundMessage(ctx context.Context, m *sos.OutboundMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if o.failFor[m.To] {
		return fmt.Errorf("insert %s: %w", m.To, errStore)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.records = append(o.records, m)

	return nil
}

func (o *outbox) byAudience(a sos.Audience) []*sos.OutboundMessage {
	o.mu.Lock()
	defer o.mu.Unlock()

	var out []*sos.OutboundMessage
	for _, r := range o.records {
		if r.Audience == a {
			out = append(out, r)
		}
	}

	return out
}

// summaries records fan-out summaries.
type summaries struct {
	written map[string]sos.FanoutSummary
	err     error
}

func (s *summaries) SetFanoutSummary(ctx context.Context, alertID string, summary sos.FanoutSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.err != nil {
		return s.err
	}

	if s.written == nil {
		s.written = make(map[string]sos.FanoutSummary)
	}

	s.written[alertID] = summary

	return nil
}

// fixture wires an engine over in-memory collaborators.
type fixture struct {
	dir       *directory
	sender    *sender
	outbox    *outbox
	summaries *summaries
	engine    *Engine
}

var testNow = time.Date(2025, time.March, 7, 9, 5, 0, 0, time.UTC)

func newFixture(dir *directory, options ...Option) *fixture {
	return newFixtureWithOptions(dir, Options{}, options...)
}

func newFixtureWithOptions(dir *directory, opts Options, options ...Option) *fixture {
	f := &fixture{
		dir:       dir,
		sender:    new(sender),
		outbox:    &outbox{failFor: map[string]bool{}},
		summaries: new(summaries),
	}

	ids := 0
	var idMu sync.Mutex

	options = append([]Option{
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(func() string {
			idMu.Lock()
			defer idMu.Unlock()

			ids++

			return fmt.Sprintf("msg-%d", ids)
		}),
	}, options...)

	opts.ChannelID = "whatsapp:+100"
	opts.AppName = "Ruff"
	opts.Location = time.UTC

	f.engine = New(resolver.New(dir), f.sender, f.outbox, f.summaries, opts, options...)

	return f
}

func responders(n int, withPhone bool) []sos.Responder {
	out := make([]sos.Responder, 0, n)
	for i := range n {
		r := sos.Responder{ID: fmt.Sprintf("g%02d", i)}
		if withPhone {
			r.Phone = fmt.Sprintf("+91%02d", i)
		}

		out = append(out, r)
	}

	return out
}

func contacts(n int) []sos.Contact {
	out := make([]sos.Contact, 0, n)
	for i := range n {
		out = append(out, sos.Contact{Phone: fmt.Sprintf("+44%02d", i)})
	}

	return out
}

// TestHandleAlertCreated_PushDelivered verifies that a delivered push writes nothing else.
func TestHandleAlertCreated_PushDelivered(t *testing.T) {
	t.Parallel()

	f := newFixture(&directory{
		responders: responders(3, true),
		addresses:  map[string][]string{"g00": {"tok-1", "tok-2"}, "g01": {"tok-2"}},
		contacts:   map[string][]sos.Contact{"u1": contacts(2)},
	})
	f.sender.reply = func(*push.Message) (int, error) { return 1, nil }

	alert := &sos.Alert{
		ID:             "a-1",
		OriginatorID:   "u1",
		OriginatorName: "Asha",
		Location:       sos.NewLocation(12.9716, 77.5946),
		Site:           "north",
	}

	res, err := f.engine.HandleAlertCreated(context.Background(), alert)
	require.NoError(t, err)
	require.Equal(t, OutcomePushDelivered, res.Outcome)
	require.Equal(t, 2, res.PushAddresses)
	require.Equal(t, 1, res.PushSuccesses)
	require.Empty(t, f.outbox.records)
	require.Empty(t, f.summaries.written)
	require.Equal(t, []string{"north"}, f.dir.sites)

	require.Len(t, f.sender.sent, 1)
	msg := f.sender.sent[0]
	require.ElementsMatch(t, []string{"tok-1", "tok-2"}, msg.Addresses)
	require.Equal(t, map[string]string{
		"type":     "SOS",
		"alertId":  "a-1",
		"userName": "Asha",
		"lat":      "12.9716",
		"lng":      "77.5946",
		"deeplink": "ruff://sos/a-1",
	}, msg.Data)
	require.Equal(t, push.Notification{Title: "Ruff SOS Alert", Body: "Asha needs help"}, msg.Notification)
	require.Equal(t, push.AndroidPriorityHigh, msg.AndroidPriority)
	require.Equal(t, "10", msg.APNSHeaders["apns-priority"])
}

// TestHandleAlertCreated_Fallback verifies record counts and audiences on every fallback path.
func TestHandleAlertCreated_Fallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		responders     []sos.Responder
		addresses      map[string][]string
		contacts       int
		originatorID   string
		reply          func(*push.Message) (int, error)
		wantResponders int
		wantContacts   int
		wantPushCalls  int
	}{
		{
			name:           "no addresses",
			responders:     responders(3, true),
			contacts:       2,
			originatorID:   "u1",
			wantResponders: 3,
			wantContacts:   2,
		},
		{
			name:           "caps applied",
			responders:     responders(14, true),
			contacts:       8,
			originatorID:   "u1",
			wantResponders: 10,
			wantContacts:   5,
		},
		{
			name:           "push error",
			responders:     responders(2, true),
			addresses:      map[string][]string{"g00": {"tok"}},
			contacts:       1,
			originatorID:   "u1",
			reply:          func(*push.Message) (int, error) { return 0, errors.New("gateway down") },
			wantResponders: 2,
			wantContacts:   1,
			wantPushCalls:  1,
		},
		{
			name:           "zero successes",
			responders:     responders(2, true),
			addresses:      map[string][]string{"g01": {"tok"}},
			originatorID:   "u1",
			reply:          func(*push.Message) (int, error) { return 0, nil },
			wantResponders: 2,
			wantPushCalls:  1,
		},
		{
			name:           "anonymous originator gets no contacts",
			responders:     responders(2, true),
			contacts:       3,
			wantResponders: 2,
		},
		{
			name:         "responders without phones",
			responders:   responders(4, false),
			contacts:     1,
			originatorID: "u1",
			wantContacts: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(&directory{
				responders: tt.responders,
				addresses:  tt.addresses,
				contacts:   map[string][]sos.Contact{"u1": contacts(tt.contacts), "": contacts(tt.contacts)},
			})
			f.sender.reply = tt.reply

			res, err := f.engine.HandleAlertCreated(context.Background(), &sos.Alert{
				ID:           "a-1",
				OriginatorID: tt.originatorID,
			})
			require.NoError(t, err)
			require.Equal(t, OutcomeSMSFallback, res.Outcome)
			require.Equal(t, tt.wantResponders, res.ResponderSMS)
			require.Equal(t, tt.wantContacts, res.ContactSMS)
			require.Len(t, f.sender.sent, tt.wantPushCalls)

			require.Len(t, f.outbox.byAudience(sos.AudienceResponder), tt.wantResponders)
			require.Len(t, f.outbox.byAudience(sos.AudienceContact), tt.wantContacts)

			for _, r := range f.outbox.records {
				require.Equal(t, "a-1", r.AlertID)
				require.Equal(t, "whatsapp:+100", r.ChannelID)
				require.Equal(t, sos.MessageTypeText, r.Type)
				require.Equal(t, sos.MessageTagSOS, r.Tag)
				require.Equal(t, testNow, r.CreatedAt)
			}

			require.Equal(t, sos.FanoutSummary{
				Responders: tt.wantResponders,
				Contacts:   tt.wantContacts,
				At:         testNow,
			}, f.summaries.written["a-1"])
		})
	}
}

// TestHandleAlertCreated_CapsKeepResolutionOrder verifies that truncation keeps the first phones.
func TestHandleAlertCreated_CapsKeepResolutionOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(&directory{responders: responders(12, true)})

	_, err := f.engine.HandleAlertCreated(context.Background(), &sos.Alert{ID: "a-1"})
	require.NoError(t, err)

	var phones []string
	for _, r := range f.outbox.byAudience(sos.AudienceResponder) {
		phones = append(phones, r.To)
	}

	require.ElementsMatch(t, resolver.Phones(responders(12, true), 10), phones)
	require.NotContains(t, phones, "+9110")
	require.NotContains(t, phones, "+9111")
}

// TestHandleAlertCreated_Bodies verifies the rendered texts of both audiences.
func TestHandleAlertCreated_Bodies(t *testing.T) {
	t.Parallel()

	f := newFixture(&directory{
		responders: responders(1, true),
		contacts:   map[string][]sos.Contact{"u1": contacts(1)},
		users:      map[string]*sos.User{"u1": {ID: "u1", DisplayName: "Asha", IDNumber: "CS-42"}},
	})

	_, err := f.engine.HandleAlertCreated(context.Background(), &sos.Alert{
		ID:           "a-1",
		OriginatorID: "u1",
		CreatedAt:    time.Date(2025, time.January, 2, 15, 4, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	responderMsgs := f.outbox.byAudience(sos.AudienceResponder)
	require.Len(t, responderMsgs, 1)
	require.Contains(t, responderMsgs[0].Body, "User: Asha (ID: CS-42)")
	require.Contains(t, responderMsgs[0].Body, "GPS Location: "+message.Unavailable)
	require.Contains(t, responderMsgs[0].Body, "Time: 02-Jan-2025 15:04")

	contactMsgs := f.outbox.byAudience(sos.AudienceContact)
	require.Len(t, contactMsgs, 1)
	require.Contains(t, contactMsgs[0].Body, "Asha may need help.")
	require.Contains(t, contactMsgs[0].Body, "Last known location: "+message.Unavailable)

	for _, body := range []string{responderMsgs[0].Body, contactMsgs[0].Body} {
		require.NotContains(t, body, "undefined")
		require.NotContains(t, body, "null")
	}
}

// TestHandleAlertCreated_PartialWriteFailure verifies that SMS writes are independent.
func TestHandleAlertCreated_PartialWriteFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(&directory{
		responders: responders(3, true),
		contacts:   map[string][]sos.Contact{"u1": contacts(2)},
	})
	f.outbox.failFor["+9101"] = true
	f.summaries.err = errStore

	res, err := f.engine.HandleAlertCreated(context.Background(), &sos.Alert{ID: "a-1", OriginatorID: "u1"})
	require.NoError(t, err)
	require.Equal(t, 1, res.FailedWrites)
	require.Len(t, f.outbox.byAudience(sos.AudienceResponder), 2)
	require.Len(t, f.outbox.byAudience(sos.AudienceContact), 2)
	require.Equal(t, 3, res.ResponderSMS)
}

// TestHandleAlertCreated_SlowPushGateway verifies that a hung push send
// still leaves a working context for the SMS fallback.
func TestHandleAlertCreated_SlowPushGateway(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		pushTimeout time.Duration
		callerLimit time.Duration
	}{
		{name: "push timeout expires first", pushTimeout: 20 * time.Millisecond, callerLimit: time.Minute},
		{name: "caller deadline expires first", pushTimeout: time.Minute, callerLimit: 20 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := marker.NewMemoryMarker(time.Minute)
			f := newFixtureWithOptions(&directory{
				responders: responders(2, true),
				addresses:  map[string][]string{"g00": {"tok"}},
			}, Options{PushTimeout: tt.pushTimeout}, WithMarker(m))
			f.sender.hang = true

			ctx, cancel := context.WithTimeout(context.Background(), tt.callerLimit)
			defer cancel()

			res, err := f.engine.HandleAlertCreated(ctx, &sos.Alert{ID: "a-1"})
			require.NoError(t, err)
			require.Equal(t, OutcomeSMSFallback, res.Outcome)
			require.Zero(t, res.PushSuccesses)
			require.Zero(t, res.FailedWrites)
			require.Len(t, f.outbox.byAudience(sos.AudienceResponder), 2)
			require.Equal(t, sos.FanoutSummary{Responders: 2, At: testNow}, f.summaries.written["a-1"])
		})
	}
}

// TestHandleAlertCreated_NoRecordWritten verifies that a fallback with no
// successful write is reported for retry and releases the marker.
func TestHandleAlertCreated_NoRecordWritten(t *testing.T) {
	t.Parallel()

	m := marker.NewMemoryMarker(time.Minute)
	f := newFixture(&directory{responders: responders(2, true)}, WithMarker(m))
	f.outbox.failFor["+9100"] = true
	f.outbox.failFor["+9101"] = true

	res, err := f.engine.HandleAlertCreated(context.Background(), &sos.Alert{ID: "a-1"})
	require.ErrorIs(t, err, ErrNoRecordsWritten)
	require.Equal(t, sos.KindTransient, sos.Kind(err))
	require.Nil(t, res)
	require.Empty(t, f.summaries.written)

	// The retry is not swallowed as a duplicate.
	f.outbox.failFor = map[string]bool{}

	res, err = f.engine.HandleAlertCreated(context.Background(), &sos.Alert{ID: "a-1"})
	require.NoError(t, err)
	require.Equal(t, OutcomeSMSFallback, res.Outcome)
	require.Len(t, f.outbox.records, 2)
}

// TestHandleAlertCreated_ResolutionErrors verifies that store failures surface as transient errors.
func TestHandleAlertCreated_ResolutionErrors(t *testing.T) {
	t.Parallel()

	m := marker.NewMemoryMarker(time.Minute)
	f := newFixture(&directory{respondErr: errStore}, WithMarker(m))

	res, err := f.engine.HandleAlertCreated(context.Background(), &sos.Alert{ID: "a-1"})
	require.ErrorIs(t, err, errStore)
	require.Equal(t, sos.KindTransient, sos.Kind(err))
	require.Nil(t, res)
	require.Empty(t, f.outbox.records)

	// The marker was released, so a retry runs.
	f.dir.respondErr = nil
	f.dir.responders = responders(1, true)

	res, err = f.engine.HandleAlertCreated(context.Background(), &sos.Alert{ID: "a-1"})
	require.NoError(t, err)
	require.Equal(t, OutcomeSMSFallback, res.Outcome)

	f = newFixture(&directory{
		responders:  responders(1, true),
		contactsErr: errStore,
	})

	_, err = f.engine.HandleAlertCreated(context.Background(), &sos.Alert{ID: "a-2", OriginatorID: "u1"})
	require.ErrorIs(t, err, errStore)
	require.Empty(t, f.outbox.records)
	require.Empty(t, f.summaries.written)
}

// TestHandleAlertCreated_Duplicate verifies that a repeated trigger does not send twice.
func TestHandleAlertCreated_Duplicate(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	f := newFixture(
		&directory{responders: responders(2, true)},
		WithMarker(marker.NewMemoryMarker(time.Minute)),
		WithMetrics(metrics.New(reg)),
	)

	alert := &sos.Alert{ID: "a-1"}

	res, err := f.engine.HandleAlertCreated(context.Background(), alert)
	require.NoError(t, err)
	require.Equal(t, OutcomeSMSFallback, res.Outcome)

	res, err = f.engine.HandleAlertCreated(context.Background(), alert)
	require.NoError(t, err)
	require.Equal(t, OutcomeDuplicate, res.Outcome)
	require.Len(t, f.outbox.records, 2)

	series, err := testutil.GatherAndCount(reg, "sos_escalations_total")
	require.NoError(t, err)
	require.Equal(t, 2, series)
}

// brokenMarker fails every call.
type brokenMarker struct{}

func (brokenMarker) Acquire(context.Context, string) (bool, error) {
	return false, errStore
}

func (brokenMarker) Release(context.Context, string) error {
	return errStore
}

// TestHandleAlertCreated_MarkerDown verifies that escalation proceeds without the guard.
func TestHandleAlertCreated_MarkerDown(t *testing.T) {
	t.Parallel()

	f := newFixture(&directory{responders: responders(1, true)}, WithMarker(brokenMarker{}))

	res, err := f.engine.HandleAlertCreated(context.Background(), &sos.Alert{ID: "a-1"})
	require.NoError(t, err)
	require.Equal(t, OutcomeSMSFallback, res.Outcome)
	require.Len(t, f.outbox.records, 1)
}

// TestHandleAlertCreated_InvalidAlert verifies argument checks.
func TestHandleAlertCreated_InvalidAlert(t *testing.T) {
	t.Parallel()

	f := newFixture(&directory{})

	for _, alert := range []*sos.Alert{nil, {ID: "  "}} {
		_, err := f.engine.HandleAlertCreated(context.Background(), alert)
		require.ErrorIs(t, err, sos.ErrInvalidArgument)
	}
}
