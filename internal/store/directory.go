package store

import (
	"context"

	"awaydesk/backend/internal/domain"
)

// Directory answers questions about users, teams and reasons. It never writes.
type Directory interface {
	GetUser(ctx context.Context, id int64) (domain.User, error)
	GetReason(ctx context.Context, id int64) (domain.Reason, error)

	// SharedTeamRoles lists the roles actorID holds in accepted teams where targetID is an accepted member.
	SharedTeamRoles(ctx context.Context, actorID, targetID int64) ([]domain.MembershipRole, error)
	// SharesTeam reports whether candidateID belongs to a team where ownerID is an accepted member.
	SharesTeam(ctx context.Context, ownerID, candidateID int64) (bool, error)
	AcceptedTeamIDs(ctx context.Context, userID int64) ([]int64, error)
	// ManagedMemberIDs lists accepted members of teams where managerID holds one of roles.
	ManagedMemberIDs(ctx context.Context, managerID int64, roles []domain.MembershipRole) ([]int64, error)
}
