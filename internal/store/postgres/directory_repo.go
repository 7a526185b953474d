package postgres

import (
	"context"
	"database/sql"

	"github.com/go-faster/errors"
	"github.com/uptrace/bun"

	"awaydesk/backend/internal/domain"
	"awaydesk/backend/internal/store"
)

type DirectoryRepo struct {
	db *bun.DB
}

func NewDirectoryRepo(db *bun.DB) *DirectoryRepo {
	return &DirectoryRepo{db: db}
}

func (r *DirectoryRepo) GetUser(ctx context.Context, id int64) (domain.User, error) {
	var u domain.User
	if err := r.db.NewSelect().Model(&u).Where("u.id = ?", id).Limit(1).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, store.ErrNotFound
		}
		return domain.User{}, errors.Wrap(err, "get user")
	}
	return u, nil
}

func (r *DirectoryRepo) GetReason(ctx context.Context, id int64) (domain.Reason, error) {
	var reason domain.Reason
	if err := r.db.NewSelect().Model(&reason).Where("r.id = ?", id).Limit(1).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Reason{}, store.ErrNotFound
		}
		return domain.Reason{}, errors.Wrap(err, "get reason")
	}
	return reason, nil
}

func (r *DirectoryRepo) SharedTeamRoles(ctx context.Context, actorID, targetID int64) ([]domain.MembershipRole, error) {
	var roles []domain.MembershipRole
	err := r.db.NewSelect().
		TableExpr("memberships AS actor").
		Join("JOIN memberships AS target ON target.team_id = actor.team_id").
		ColumnExpr("DISTINCT actor.role").
		Where("actor.user_id = ?", actorID).
		Where("actor.accepted").
		Where("target.user_id = ?", targetID).
		Where("target.accepted").
		Scan(ctx, &roles)
	if err != nil {
		return nil, errors.Wrap(err, "shared team roles")
	}
	return roles, nil
}

func (r *DirectoryRepo) SharesTeam(ctx context.Context, ownerID, candidateID int64) (bool, error) {
	ok, err := r.db.NewSelect().
		TableExpr("memberships AS owner").
		Join("JOIN memberships AS candidate ON candidate.team_id = owner.team_id").
		Where("owner.user_id = ?", ownerID).
		Where("owner.accepted").
		Where("candidate.user_id = ?", candidateID).
		Exists(ctx)
	if err != nil {
		return false, errors.Wrap(err, "shares team")
	}
	return ok, nil
}

func (r *DirectoryRepo) AcceptedTeamIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := r.db.NewSelect().
		Model((*domain.Membership)(nil)).
		Column("team_id").
		Where("user_id = ?", userID).
		Where("accepted").
		Order("team_id").
		Scan(ctx, &ids)
	if err != nil {
		return nil, errors.Wrap(err, "accepted team ids")
	}
	return ids, nil
}

func (r *DirectoryRepo) ManagedMemberIDs(ctx context.Context, managerID int64, roles []domain.MembershipRole) ([]int64, error) {
	if len(roles) == 0 {
		return nil, nil
	}

	var ids []int64
	err := r.db.NewSelect().
		TableExpr("memberships AS manager").
		Join("JOIN memberships AS member ON member.team_id = manager.team_id").
		ColumnExpr("DISTINCT member.user_id").
		Where("manager.user_id = ?", managerID).
		Where("manager.accepted").
		Where("manager.role IN (?)", bun.In(roles)).
		Where("member.accepted").
		OrderExpr("member.user_id").
		Scan(ctx, &ids)
	if err != nil {
		return nil, errors.Wrap(err, "managed member ids")
	}
	return ids, nil
}
