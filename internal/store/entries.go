package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"awaydesk/backend/internal/domain"
)

// EntryRepository persists out-of-office entries. Writes go through InOwnerTransaction so that
// the overlap check, the redirect check and the upsert observe one consistent snapshot.
type EntryRepository interface {
	// InOwnerTransaction runs fn in a transaction that holds an exclusive lock for every user in
	// lockUserIDs until commit.
	InOwnerTransaction(ctx context.Context, lockUserIDs []int64, fn func(ctx context.Context, tx EntryTx) error) error

	FindByUUID(ctx context.Context, id uuid.UUID) (domain.Entry, error)
	List(ctx context.Context, q ListQuery) ([]domain.Entry, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type EntryTx interface {
	FindOverlapping(ctx context.Context, ownerID int64, span domain.Interval, excludeUUID uuid.UUID) ([]domain.Entry, error)
	// FindRedirectEdges returns delegated entries overlapping span. A nil fromUserIDs means any owner.
	FindRedirectEdges(ctx context.Context, span domain.Interval, fromUserIDs []int64, excludeUUID uuid.UUID) ([]domain.RedirectEdge, error)
	FindByUUID(ctx context.Context, id uuid.UUID) (domain.Entry, error)
	UpsertByUUID(ctx context.Context, e domain.Entry) (domain.Entry, error)
}

type ListQuery struct {
	UserIDs    []int64
	EndsAfter  time.Time
	SearchTerm string
	Limit      int
	Offset     int
}
