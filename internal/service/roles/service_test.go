package roles

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/sos-responder/internal/domain/sos"
)

// fakeStore records role writes.
type fakeStore struct {
	roles map[string]sos.Role
}

func (f *fakeStore) SetUserRole(_ context.Context, id string, role sos.Role) error {
	if _, ok := f.roles[id]; !ok {
		return sos.ErrNotFound
	}

	f.roles[id] = role

	return nil
}

// TestEmailAllowlist verifies normalization of both the list and the caller.
func TestEmailAllowlist(t *testing.T) {
	t.Parallel()

	policy := EmailAllowlist(ParseEmailList(" Admin@Campus.edu ,, ops@campus.edu"))

	require.True(t, policy(&sos.Identity{UID: "a", Email: "admin@campus.edu"}))
	require.True(t, policy(&sos.Identity{UID: "a", Email: " OPS@campus.edu "}))
	require.False(t, policy(&sos.Identity{UID: "a", Email: "someone@campus.edu"}))
	require.False(t, policy(&sos.Identity{UID: "a"}))
	require.False(t, policy(nil))
	require.False(t, EmailAllowlist(nil)(&sos.Identity{UID: "a", Email: "admin@campus.edu"}))

	require.Equal(t, []string{"admin@campus.edu", "ops@campus.edu"}, ParseEmailList(" Admin@Campus.edu ,, ops@campus.edu"))
	require.Empty(t, ParseEmailList(""))
}

// TestSetUserRole verifies the checks and the write.
func TestSetUserRole(t *testing.T) {
	t.Parallel()

	store := &fakeStore{roles: map[string]sos.Role{"u-1": sos.RoleUser}}
	svc := New(store, EmailAllowlist([]string{"admin@campus.edu"}))
	ctx := context.Background()

	admin := &sos.Identity{UID: "adm", Email: "admin@campus.edu"}

	tests := []struct {
		name   string
		caller *sos.Identity
		uid    string
		role   string
		want   sos.ErrorKind
	}{
		{name: "anonymous", caller: nil, uid: "u-1", role: "responder", want: sos.KindUnauthenticated},
		{name: "not admin", caller: &sos.Identity{UID: "x", Email: "x@campus.edu"}, uid: "u-1", role: "responder", want: sos.KindPermissionDenied},
		{name: "missing uid", caller: admin, uid: "", role: "responder", want: sos.KindInvalidArgument},
		{name: "missing role", caller: admin, uid: "u-1", role: " ", want: sos.KindInvalidArgument},
		{name: "unknown role", caller: admin, uid: "u-1", role: "superuser", want: sos.KindInvalidArgument},
		{name: "unknown user", caller: admin, uid: "ghost", role: "responder", want: sos.KindNotFound},
	}

	for _, tt := range tests {
		err := svc.SetUserRole(ctx, tt.caller, tt.uid, tt.role)
		require.Error(t, err, tt.name)
		require.Equal(t, tt.want, sos.Kind(err), tt.name)
	}

	require.Equal(t, sos.RoleUser, store.roles["u-1"])

	require.NoError(t, svc.SetUserRole(ctx, admin, "u-1", "responder"))
	require.Equal(t, sos.RoleResponder, store.roles["u-1"])

	require.ErrorIs(t, New(store, nil).SetUserRole(ctx, admin, "u-1", "user"), sos.ErrPermissionDenied)
}
