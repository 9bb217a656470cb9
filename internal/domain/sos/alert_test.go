package sos

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestAlertClone verifies that Clone deep-copies location and fan-out summary and handles nil safely.
func TestAlertClone(t *testing.T) {
	t.Parallel()
	require.Nil(t, (*Alert)(nil).Clone())

	a := &Alert{
		ID:             "alert-1",
		OriginatorID:   "u-1",
		OriginatorName: "Asha Rao",
		Location:       NewLocation(12.9716, 77.5946),
		Status:         StatusOpen,
		Fanout:         &FanoutSummary{Responders: 2, Contacts: 1, At: time.Unix(100, 0)},
	}

	b := a.Clone()
	require.Equal(t, a, b)
	require.NotSame(t, a, b)
	require.NotSame(t, a.Location, b.Location)
	require.NotSame(t, a.Location.Lat, b.Location.Lat)
	require.NotSame(t, a.Fanout, b.Fanout)
}

// TestLocationCoordinates checks that a lone coordinate is treated as absent.
func TestLocationCoordinates(t *testing.T) {
	t.Parallel()

	lat := 10.5

	_, _, ok := (&Location{Lat: &lat}).Coordinates()
	require.False(t, ok)

	_, _, ok = (*Location)(nil).Coordinates()
	require.False(t, ok)

	gotLat, gotLng, ok := NewLocation(1.25, -2.5).Coordinates()
	require.True(t, ok)
	require.InDelta(t, 1.25, gotLat, 0)
	require.InDelta(t, -2.5, gotLng, 0)
}

// TestAlertStatusTransitions asserts the lifecycle only moves forward one step at a time.
func TestAlertStatusTransitions(t *testing.T) {
	t.Parallel()

	require.True(t, StatusOpen.CanTransition(StatusAccepted))
	require.True(t, StatusAccepted.CanTransition(StatusResolved))

	require.False(t, StatusOpen.CanTransition(StatusResolved))
	require.False(t, StatusAccepted.CanTransition(StatusOpen))
	require.False(t, StatusResolved.CanTransition(StatusAccepted))
	require.False(t, AlertStatus("pending").CanTransition(StatusAccepted))
}

// TestKind maps wrapped sentinel errors to their kinds.
func TestKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want ErrorKind
	}{
		{err: ErrUnauthenticated, want: KindUnauthenticated},
		{err: fmt.Errorf("claim: %w", ErrPermissionDenied), want: KindPermissionDenied},
		{err: ErrInvalidArgument, want: KindInvalidArgument},
		{err: fmt.Errorf("load alert: %w", ErrNotFound), want: KindNotFound},
		{err: ErrAlreadyClaimed, want: KindAlreadyClaimed},
		{err: errors.New("database is locked"), want: KindTransient},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Kind(tc.err), tc.err.Error())
	}

	require.True(t, KindTransient.Retryable())
	require.False(t, KindAlreadyClaimed.Retryable())
	require.Equal(t, "already_claimed", KindAlreadyClaimed.String())
}

// TestParseRole accepts only assignable roles.
func TestParseRole(t *testing.T) {
	t.Parallel()

	role, ok := ParseRole("responder")
	require.True(t, ok)
	require.Equal(t, RoleResponder, role)

	_, ok = ParseRole("admin")
	require.False(t, ok)

	require.True(t, (&Identity{UID: "g", Role: RoleResponder}).IsResponder())
	require.False(t, (&Identity{UID: "u", Role: RoleUser}).IsResponder())
	require.False(t, (*Identity)(nil).IsResponder())
}
