package authz

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"awaydesk/backend/internal/domain"
)

func TestAuthorizer_DefaultPolicies(t *testing.T) {
	a, err := New(DefaultPolicies())
	require.NoError(t, err)

	tests := []struct {
		name  string
		roles []domain.MembershipRole
		want  bool
	}{
		{name: "admin", roles: []domain.MembershipRole{domain.MembershipRoleAdmin}, want: true},
		{name: "owner", roles: []domain.MembershipRole{domain.MembershipRoleOwner}, want: true},
		{name: "member", roles: []domain.MembershipRole{domain.MembershipRoleMember}, want: false},
		{name: "member in one team admin in another", roles: []domain.MembershipRole{domain.MembershipRoleMember, domain.MembershipRoleAdmin}, want: true},
		{name: "no shared team", roles: nil, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.CanManageMember(tt.roles)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestAuthorizer_OtherActionsDenied(t *testing.T) {
	a, err := New(DefaultPolicies())
	require.NoError(t, err)

	ok, err := a.Allowed([]domain.MembershipRole{domain.MembershipRoleOwner}, ObjectEntry, "purge")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAuthorizer_ManagingRoles(t *testing.T) {
	a, err := New(DefaultPolicies())
	require.NoError(t, err)
	require.ElementsMatch(t, []domain.MembershipRole{domain.MembershipRoleAdmin, domain.MembershipRoleOwner}, a.ManagingRoles())

	restricted, err := New([]Policy{{Role: domain.MembershipRoleOwner, Object: ObjectEntry, Action: ActionManageMember}})
	require.NoError(t, err)
	ok, err := restricted.CanManageMember([]domain.MembershipRole{domain.MembershipRoleAdmin})
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, []domain.MembershipRole{domain.MembershipRoleOwner}, restricted.ManagingRoles())
}

func TestAuthorizer_ConcurrentChecks(t *testing.T) {
	a, err := New(DefaultPolicies())
	require.NoError(t, err)

	const callers = 16
	results := make(chan bool, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := a.CanManageMember([]domain.MembershipRole{domain.MembershipRoleMember, domain.MembershipRoleAdmin})
			results <- ok && err == nil
		}()
	}
	wg.Wait()
	close(results)

	for ok := range results {
		require.True(t, ok)
	}
}
