package store

import (
	"context"

	"awaydesk/backend/internal/domain"
)

type SubscriberQuery struct {
	UserID  int64
	TeamIDs []int64
	OrgID   *int64
	Trigger string
}

type WebhookSubscriptions interface {
	Subscribers(ctx context.Context, q SubscriberQuery) ([]domain.WebhookSubscription, error)
}
