// Package memory is an in-process store used by service and transport tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"awaydesk/backend/internal/domain"
	"awaydesk/backend/internal/store"
)

// Store keeps every table in maps. Write transactions are serialized by txMu, which gives the
// same guarantee as the per-owner advisory locks of the postgres store, only coarser.
type Store struct {
	txMu sync.Mutex

	mu       sync.RWMutex
	nextID   atomic.Int64
	users    map[int64]domain.User
	reasons  map[int64]domain.Reason
	members  []domain.Membership
	entries  map[uuid.UUID]domain.Entry
	webhooks []domain.WebhookSubscription
	now      func() time.Time
}

func New() *Store {
	return &Store{
		users:   make(map[int64]domain.User),
		reasons: make(map[int64]domain.Reason),
		entries: make(map[uuid.UUID]domain.Entry),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) PutUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) PutReason(r domain.Reason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reasons[r.ID] = r
}

func (s *Store) PutMembership(m domain.Membership) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members = append(s.members, m)
}

func (s *Store) PutWebhook(w domain.WebhookSubscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	s.webhooks = append(s.webhooks, w)
}

// PutEntry stores e without any overlap check. Used to seed fixtures.
func (s *Store) PutEntry(e domain.Entry) domain.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.UUID == uuid.Nil {
		e.UUID = uuid.New()
	}
	if e.ID == 0 {
		e.ID = s.nextID.Add(1)
	}
	s.entries[e.UUID] = e
	return e
}

// Entries returns every stored entry ordered by start.
func (s *Store) Entries() []domain.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sortEntries(out)
	return out
}

func (s *Store) InOwnerTransaction(ctx context.Context, lockUserIDs []int64, fn func(ctx context.Context, tx store.EntryTx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{s: s, staged: make(map[uuid.UUID]domain.Entry)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return s.commit(tx)
}

func (s *Store) commit(tx *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range tx.staged {
		for otherID, other := range s.entries {
			if otherID == id || other.UserID != e.UserID {
				continue
			}
			if _, restaged := tx.staged[otherID]; restaged {
				continue
			}
			if other.Interval().Overlaps(e.Interval()) {
				return store.ErrConflict
			}
		}
	}
	for id, e := range tx.staged {
		s.entries[id] = e
	}
	return nil
}

func (s *Store) FindByUUID(ctx context.Context, id uuid.UUID) (domain.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return domain.Entry{}, store.ErrNotFound
	}
	return s.withRelations(e), nil
}

func (s *Store) List(ctx context.Context, q store.ListQuery) ([]domain.Entry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owners := make(map[int64]struct{}, len(q.UserIDs))
	for _, id := range q.UserIDs {
		owners[id] = struct{}{}
	}
	term := strings.ToLower(strings.TrimSpace(q.SearchTerm))

	var matched []domain.Entry
	for _, e := range s.entries {
		if _, ok := owners[e.UserID]; !ok {
			continue
		}
		if !q.EndsAfter.IsZero() && e.EndTime.Before(q.EndsAfter) {
			continue
		}
		if term != "" {
			u := s.users[e.UserID]
			if !containsFold(u.Username, term) && !containsFold(u.Name, term) && !containsFold(u.Email, term) {
				continue
			}
		}
		matched = append(matched, s.withRelations(e))
	}
	sortEntries(matched)

	total := len(matched)
	if q.Offset >= total {
		return nil, total, nil
	}
	end := total
	if q.Limit > 0 && q.Offset+q.Limit < end {
		end = q.Offset + q.Limit
	}
	return matched[q.Offset:end], total, nil
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.entries, id)
	return nil
}

func (s *Store) withRelations(e domain.Entry) domain.Entry {
	if u, ok := s.users[e.UserID]; ok {
		e.User = &u
	}
	if e.ToUserID != nil {
		if u, ok := s.users[*e.ToUserID]; ok {
			e.ToUser = &u
		}
	}
	if r, ok := s.reasons[e.ReasonID]; ok {
		e.Reason = &r
	}
	return e
}

func containsFold(s, lowerTerm string) bool {
	return strings.Contains(strings.ToLower(s), lowerTerm)
}

func sortEntries(entries []domain.Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].StartTime.Equal(entries[j].StartTime) {
			return entries[i].StartTime.Before(entries[j].StartTime)
		}
		return entries[i].ID < entries[j].ID
	})
}

type memTx struct {
	s      *Store
	staged map[uuid.UUID]domain.Entry
}

// view merges committed entries with the ones staged in this transaction.
func (t *memTx) view() map[uuid.UUID]domain.Entry {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	out := make(map[uuid.UUID]domain.Entry, len(t.s.entries)+len(t.staged))
	for id, e := range t.s.entries {
		out[id] = e
	}
	for id, e := range t.staged {
		out[id] = e
	}
	return out
}

func (t *memTx) FindOverlapping(ctx context.Context, ownerID int64, span domain.Interval, excludeUUID uuid.UUID) ([]domain.Entry, error) {
	var out []domain.Entry
	for id, e := range t.view() {
		if e.UserID != ownerID || id == excludeUUID {
			continue
		}
		if e.Interval().Overlaps(span) {
			out = append(out, e)
		}
	}
	sortEntries(out)
	return out, nil
}

func (t *memTx) FindRedirectEdges(ctx context.Context, span domain.Interval, fromUserIDs []int64, excludeUUID uuid.UUID) ([]domain.RedirectEdge, error) {
	var from map[int64]struct{}
	if fromUserIDs != nil {
		from = make(map[int64]struct{}, len(fromUserIDs))
		for _, id := range fromUserIDs {
			from[id] = struct{}{}
		}
	}

	var out []domain.RedirectEdge
	for id, e := range t.view() {
		if id == excludeUUID {
			continue
		}
		if from != nil {
			if _, ok := from[e.UserID]; !ok {
				continue
			}
		}
		edge, ok := e.RedirectEdge()
		if !ok || !edge.Interval.Overlaps(span) {
			continue
		}
		out = append(out, edge)
	}
	return out, nil
}

func (t *memTx) FindByUUID(ctx context.Context, id uuid.UUID) (domain.Entry, error) {
	e, ok := t.view()[id]
	if !ok {
		return domain.Entry{}, store.ErrNotFound
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return t.s.withRelations(e), nil
}

func (t *memTx) UpsertByUUID(ctx context.Context, e domain.Entry) (domain.Entry, error) {
	now := t.s.now()
	e.User, e.ToUser, e.Reason = nil, nil, nil
	e.StartTime = e.StartTime.UTC()
	e.EndTime = e.EndTime.UTC()
	if e.UUID == uuid.Nil {
		e.UUID = uuid.New()
	}

	if existing, ok := t.view()[e.UUID]; ok {
		e.ID = existing.ID
		e.CreatedAt = existing.CreatedAt
	} else {
		e.ID = t.s.nextID.Add(1)
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
	}
	e.UpdatedAt = now

	t.staged[e.UUID] = e
	return e, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetReason(ctx context.Context, id int64) (domain.Reason, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reasons[id]
	if !ok {
		return domain.Reason{}, store.ErrNotFound
	}
	return r, nil
}

func (s *Store) SharedTeamRoles(ctx context.Context, actorID, targetID int64) ([]domain.MembershipRole, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[domain.MembershipRole]struct{})
	var roles []domain.MembershipRole
	for _, actor := range s.members {
		if actor.UserID != actorID || !actor.Accepted {
			continue
		}
		for _, target := range s.members {
			if target.UserID != targetID || !target.Accepted || target.TeamID != actor.TeamID {
				continue
			}
			if _, ok := seen[actor.Role]; !ok {
				seen[actor.Role] = struct{}{}
				roles = append(roles, actor.Role)
			}
		}
	}
	return roles, nil
}

func (s *Store) SharesTeam(ctx context.Context, ownerID, candidateID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, owner := range s.members {
		if owner.UserID != ownerID || !owner.Accepted {
			continue
		}
		for _, candidate := range s.members {
			if candidate.UserID == candidateID && candidate.TeamID == owner.TeamID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *Store) AcceptedTeamIDs(ctx context.Context, userID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []int64
	for _, m := range s.members {
		if m.UserID == userID && m.Accepted {
			ids = append(ids, m.TeamID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Store) ManagedMemberIDs(ctx context.Context, managerID int64, roles []domain.MembershipRole) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	allowed := make(map[domain.MembershipRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	teams := make(map[int64]struct{})
	for _, m := range s.members {
		if m.UserID != managerID || !m.Accepted {
			continue
		}
		if _, ok := allowed[m.Role]; ok {
			teams[m.TeamID] = struct{}{}
		}
	}

	seen := make(map[int64]struct{})
	var ids []int64
	for _, m := range s.members {
		if _, ok := teams[m.TeamID]; !ok || !m.Accepted {
			continue
		}
		if _, dup := seen[m.UserID]; dup {
			continue
		}
		seen[m.UserID] = struct{}{}
		ids = append(ids, m.UserID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Store) Subscribers(ctx context.Context, q store.SubscriberQuery) ([]domain.WebhookSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	teams := make(map[int64]struct{}, len(q.TeamIDs)+1)
	for _, id := range q.TeamIDs {
		teams[id] = struct{}{}
	}
	if q.OrgID != nil {
		teams[*q.OrgID] = struct{}{}
	}

	var out []domain.WebhookSubscription
	for _, w := range s.webhooks {
		if !w.Active || !w.Handles(q.Trigger) {
			continue
		}
		owned := w.UserID != nil && *w.UserID == q.UserID
		if !owned && w.TeamID != nil {
			_, owned = teams[*w.TeamID]
		}
		if owned {
			out = append(out, w)
		}
	}
	return out, nil
}

var (
	_ store.EntryRepository      = (*Store)(nil)
	_ store.Directory            = (*Store)(nil)
	_ store.WebhookSubscriptions = (*Store)(nil)
	_ store.EntryTx              = (*memTx)(nil)
)
