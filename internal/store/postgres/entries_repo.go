package postgres

import (
	"context"
	"database/sql"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"awaydesk/backend/internal/domain"
	"awaydesk/backend/internal/store"
)

const (
	noOverlapConstraint = "ooo_entries_no_overlap"

	pgExclusionViolation = "23P01"
)

type EntryRepo struct {
	db *bun.DB
}

func NewEntryRepo(db *bun.DB) *EntryRepo {
	return &EntryRepo{db: db}
}

type entryTx struct {
	tx bun.Tx
}

func (r *EntryRepo) InOwnerTransaction(ctx context.Context, lockUserIDs []int64, fn func(ctx context.Context, tx store.EntryTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, id := range lockOrder(lockUserIDs) {
			if err := lockUser(ctx, tx, id); err != nil {
				return errors.Wrapf(err, "lock user %d", id)
			}
		}
		return fn(ctx, entryTx{tx: tx})
	})
}

// lockOrder dedupes and sorts ids so concurrent writers always acquire locks in the same order.
func lockOrder(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func lockUser(ctx context.Context, tx bun.Tx, userID int64) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", "ooo:"+strconv.FormatInt(userID, 10)).Exec(ctx)
	return err
}

func (r *EntryRepo) FindByUUID(ctx context.Context, id uuid.UUID) (domain.Entry, error) {
	return findByUUID(ctx, r.db, id)
}

func (r *EntryRepo) List(ctx context.Context, q store.ListQuery) ([]domain.Entry, int, error) {
	if len(q.UserIDs) == 0 {
		return nil, 0, nil
	}

	var rows []domain.Entry
	sel := r.db.NewSelect().
		Model(&rows).
		Relation("User").
		Relation("ToUser").
		Relation("Reason").
		Where("e.user_id IN (?)", bun.In(q.UserIDs))
	if !q.EndsAfter.IsZero() {
		sel = sel.Where("e.end_time >= ?", q.EndsAfter)
	}
	if term := strings.TrimSpace(q.SearchTerm); term != "" {
		pattern := "%" + escapeLike(term) + "%"
		sel = sel.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.
				WhereOr(`"user"."username" ILIKE ?`, pattern).
				WhereOr(`"user"."name" ILIKE ?`, pattern).
				WhereOr(`"user"."email" ILIKE ?`, pattern)
		})
	}

	count, err := sel.
		OrderExpr("e.start_time ASC, e.id ASC").
		Limit(q.Limit).
		Offset(q.Offset).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list entries")
	}
	return rows, count, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *EntryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*domain.Entry)(nil)).
		Where("uuid = ?", id).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "delete entry")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t entryTx) FindOverlapping(ctx context.Context, ownerID int64, span domain.Interval, excludeUUID uuid.UUID) ([]domain.Entry, error) {
	var rows []domain.Entry
	q := t.tx.NewSelect().
		Model(&rows).
		Where("user_id = ?", ownerID).
		Where("start_time <= ?", span.End).
		Where("end_time >= ?", span.Start)
	if excludeUUID != uuid.Nil {
		q = q.Where("uuid <> ?", excludeUUID)
	}
	if err := q.OrderExpr("start_time ASC").Scan(ctx); err != nil {
		return nil, errors.Wrap(err, "find overlapping entries")
	}
	return rows, nil
}

func (t entryTx) FindRedirectEdges(ctx context.Context, span domain.Interval, fromUserIDs []int64, excludeUUID uuid.UUID) ([]domain.RedirectEdge, error) {
	if fromUserIDs != nil && len(fromUserIDs) == 0 {
		return nil, nil
	}

	var rows []domain.Entry
	q := t.tx.NewSelect().
		Model(&rows).
		Column("uuid", "user_id", "to_user_id", "start_time", "end_time").
		Where("to_user_id IS NOT NULL").
		Where("start_time <= ?", span.End).
		Where("end_time >= ?", span.Start)
	if fromUserIDs != nil {
		q = q.Where("user_id IN (?)", bun.In(fromUserIDs))
	}
	if excludeUUID != uuid.Nil {
		q = q.Where("uuid <> ?", excludeUUID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, errors.Wrap(err, "find redirect edges")
	}

	edges := make([]domain.RedirectEdge, 0, len(rows))
	for _, e := range rows {
		if edge, ok := e.RedirectEdge(); ok {
			edges = append(edges, edge)
		}
	}
	return edges, nil
}

func (t entryTx) FindByUUID(ctx context.Context, id uuid.UUID) (domain.Entry, error) {
	return findByUUID(ctx, t.tx, id)
}

func (t entryTx) UpsertByUUID(ctx context.Context, e domain.Entry) (domain.Entry, error) {
	m := domain.Entry{
		UUID:      e.UUID,
		UserID:    e.UserID,
		ToUserID:  e.ToUserID,
		ReasonID:  e.ReasonID,
		Notes:     e.Notes,
		StartTime: e.StartTime.UTC(),
		EndTime:   e.EndTime.UTC(),
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = time.Now().UTC()
	}

	_, err := t.tx.NewInsert().
		Model(&m).
		On("CONFLICT (uuid) DO UPDATE").
		Set("user_id = EXCLUDED.user_id").
		Set("to_user_id = EXCLUDED.to_user_id").
		Set("reason_id = EXCLUDED.reason_id").
		Set("notes = EXCLUDED.notes").
		Set("start_time = EXCLUDED.start_time").
		Set("end_time = EXCLUDED.end_time").
		Set("updated_at = EXCLUDED.updated_at").
		Returning("*").
		Exec(ctx)
	if err != nil {
		if isConstraintViolation(err, pgExclusionViolation, noOverlapConstraint) {
			return domain.Entry{}, store.ErrConflict
		}
		return domain.Entry{}, errors.Wrap(err, "upsert entry")
	}
	return m, nil
}

func isConstraintViolation(err error, code, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == code && (constraint == "" || pgErr.ConstraintName == constraint)
}

func findByUUID(ctx context.Context, db bun.IDB, id uuid.UUID) (domain.Entry, error) {
	var e domain.Entry
	err := db.NewSelect().
		Model(&e).
		Relation("User").
		Relation("ToUser").
		Relation("Reason").
		Where("e.uuid = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Entry{}, store.ErrNotFound
		}
		return domain.Entry{}, errors.Wrap(err, "find entry")
	}
	return e, nil
}
