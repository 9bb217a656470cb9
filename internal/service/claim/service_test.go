package claim

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/sos-responder/internal/domain/sos"
	"github.com/oshokin/sos-responder/internal/metrics"
	repo "github.com/oshokin/sos-responder/internal/repository/sqlite"
)

// fakeStore is a Store with a hook.
type fakeStore struct {
	calls   int
	claimFn func(req repo.ClaimRequest) (*sos.Pairing, error)
}

func (f *fakeStore) ClaimAlert(_ context.Context, req repo.ClaimRequest) (*sos.Pairing, error) {
	f.calls++

	return f.claimFn(req)
}

var (
	responder = &sos.Identity{UID: "g-1", Role: sos.RoleResponder}
	user      = &sos.Identity{UID: "u-1", Role: sos.RoleUser}
)

// TestClaim_Preconditions verifies that caller and argument checks run before the store.
func TestClaim_Preconditions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		caller  *sos.Identity
		alertID string
		want    sos.ErrorKind
	}{
		{name: "no identity", caller: nil, alertID: "a-1", want: sos.KindUnauthenticated},
		{name: "identity without uid", caller: &sos.Identity{Role: sos.RoleResponder}, alertID: "a-1", want: sos.KindUnauthenticated},
		{name: "not a responder", caller: user, alertID: "a-1", want: sos.KindPermissionDenied},
		{name: "denied before argument check", caller: user, alertID: "", want: sos.KindPermissionDenied},
		{name: "missing alert id", caller: responder, alertID: "  ", want: sos.KindInvalidArgument},
	}

	for _, tt := range tests {
		store := &fakeStore{}
		svc := New(store)

		pairingID, err := svc.Claim(context.Background(), tt.caller, tt.alertID)
		require.Error(t, err, tt.name)
		require.Empty(t, pairingID, tt.name)
		require.Equal(t, tt.want, sos.Kind(err), tt.name)
		require.Zero(t, store.calls, tt.name)
	}
}

// TestClaim_Store verifies request construction and error propagation.
func TestClaim_Store(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, time.March, 7, 9, 10, 0, 0, time.UTC)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	var got repo.ClaimRequest

	store := &fakeStore{
		claimFn: func(req repo.ClaimRequest) (*sos.Pairing, error) {
			got = req

			return &sos.Pairing{ID: req.PairingID}, nil
		},
	}
	svc := New(store,
		WithClock(func() time.Time { return at }),
		WithIDGenerator(func() string { return "p-1" }),
		WithMetrics(m))

	pairingID, err := svc.Claim(context.Background(), responder, " a-1 ")
	require.NoError(t, err)
	require.Equal(t, "p-1", pairingID)
	require.Equal(t, repo.ClaimRequest{AlertID: "a-1", ClaimantID: "g-1", PairingID: "p-1", At: at}, got)

	for _, storeErr := range []error{sos.ErrNotFound, sos.ErrAlreadyClaimed, errors.New("disk I/O error")} {
		store.claimFn = func(repo.ClaimRequest) (*sos.Pairing, error) { return nil, storeErr }

		_, err = svc.Claim(context.Background(), responder, "a-1")
		require.ErrorIs(t, err, storeErr)
	}

	series, err := testutil.GatherAndCount(reg, "sos_claims_total")
	require.NoError(t, err)
	require.Equal(t, 4, series)
}

// newStore opens a real database for end-to-end claim tests.
func newStore(t *testing.T) *repo.Store {
	t.Helper()

	store, err := repo.Open(context.Background(), filepath.Join(t.TempDir(), "sos.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

// TestClaim_TwoResponders verifies that concurrent claims produce exactly one winner and one pairing.
func TestClaim_TwoResponders(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.CreateAlert(ctx, &sos.Alert{ID: "a-1", OriginatorID: "u-1"}))

	svc := New(store)

	type outcome struct {
		uid       string
		pairingID string
		err       error
	}

	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		results = make(chan outcome, 2)
	)

	for i := range 2 {
		wg.Add(1)

		go func(uid string) {
			defer wg.Done()
			<-start

			pairingID, err := svc.Claim(ctx, &sos.Identity{UID: uid, Role: sos.RoleResponder}, "a-1")
			results <- outcome{uid: uid, pairingID: pairingID, err: err}
		}(fmt.Sprintf("g-%d", i))
	}

	close(start)
	wg.Wait()
	close(results)

	var winners, alreadyClaimed []outcome

	for r := range results {
		if r.err == nil {
			winners = append(winners, r)

			continue
		}

		require.Equal(t, sos.KindAlreadyClaimed, sos.Kind(r.err))
		alreadyClaimed = append(alreadyClaimed, r)
	}

	require.Len(t, winners, 1)
	require.Len(t, alreadyClaimed, 1)
	require.NotEmpty(t, winners[0].pairingID)

	alert, err := store.GetAlert(ctx, "a-1")
	require.NoError(t, err)
	require.Equal(t, sos.StatusAccepted, alert.Status)
	require.Equal(t, winners[0].uid, alert.ClaimantID)

	pairings, err := store.ListPairings(ctx, "a-1")
	require.NoError(t, err)
	require.Len(t, pairings, 1)
	require.Equal(t, winners[0].pairingID, pairings[0].ID)
	require.Equal(t, "u-1", pairings[0].OriginatorID)

	// Retrying, even by the winner, is rejected.
	_, err = svc.Claim(ctx, &sos.Identity{UID: winners[0].uid, Role: sos.RoleResponder}, "a-1")
	require.ErrorIs(t, err, sos.ErrAlreadyClaimed)
}

// TestClaim_NonResponderLeavesNoTrace verifies that a denied claim mutates nothing.
func TestClaim_NonResponderLeavesNoTrace(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.CreateAlert(ctx, &sos.Alert{ID: "a-1"}))

	_, err := New(store).Claim(ctx, user, "a-1")
	require.ErrorIs(t, err, sos.ErrPermissionDenied)

	alert, err := store.GetAlert(ctx, "a-1")
	require.NoError(t, err)
	require.Equal(t, sos.StatusOpen, alert.Status)
	require.Empty(t, alert.ClaimantID)

	pairings, err := store.ListPairings(ctx, "a-1")
	require.NoError(t, err)
	require.Empty(t, pairings)

	_, err = New(store).Claim(ctx, responder, "missing")
	require.ErrorIs(t, err, sos.ErrNotFound)
}
