package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/uptrace/bun"

	"awaydesk/backend/internal/domain"
	"awaydesk/backend/internal/store"
)

type WebhookRepo struct {
	db *bun.DB
}

func NewWebhookRepo(db *bun.DB) *WebhookRepo {
	return &WebhookRepo{db: db}
}

// Subscribers returns active subscriptions for the trigger owned by the user, any of the
// user's teams, or the user's organization.
func (r *WebhookRepo) Subscribers(ctx context.Context, q store.SubscriberQuery) ([]domain.WebhookSubscription, error) {
	var rows []domain.WebhookSubscription
	err := r.db.NewSelect().
		Model(&rows).
		Where("w.active").
		Where("? = ANY(w.event_triggers)", q.Trigger).
		WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			sq = sq.WhereOr("w.user_id = ?", q.UserID)
			if len(q.TeamIDs) > 0 {
				sq = sq.WhereOr("w.team_id IN (?)", bun.In(q.TeamIDs))
			}
			if q.OrgID != nil {
				sq = sq.WhereOr("w.team_id = ?", *q.OrgID)
			}
			return sq
		}).
		OrderExpr("w.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list webhook subscribers")
	}
	return rows, nil
}
