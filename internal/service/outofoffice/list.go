package outofoffice

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"awaydesk/backend/internal/domain"
	"awaydesk/backend/internal/store"
)

const maxListLimit = 100

type ListInput struct {
	Limit                   int
	Cursor                  int
	FetchTeamMembersEntries bool
	SearchTerm              string
}

type ListResult struct {
	Rows          []EntryView
	NextCursor    *int
	TotalRowCount int
}

// List pages through the actor's current and upcoming entries, or those of the members of teams
// the actor manages when FetchTeamMembersEntries is set.
func (s *Service) List(ctx context.Context, actor Actor, in ListInput) (ListResult, error) {
	if in.Limit < 1 || in.Limit > maxListLimit {
		return ListResult{}, validationError(KeyInvalidLimit)
	}
	if in.Cursor < 0 {
		return ListResult{}, validationError(KeyInvalidCursor)
	}

	owners := []int64{actor.UserID}
	if in.FetchTeamMembersEntries {
		members, err := s.directory.ManagedMemberIDs(ctx, actor.UserID, s.authz.ManagingRoles())
		if err != nil {
			return ListResult{}, errors.Wrap(err, "load managed members")
		}
		owners = owners[:0]
		for _, id := range members {
			if id != actor.UserID {
				owners = append(owners, id)
			}
		}
		if len(owners) == 0 {
			return ListResult{Rows: []EntryView{}}, nil
		}
	}

	rows, total, err := s.entries.List(ctx, store.ListQuery{
		UserIDs:    owners,
		EndsAfter:  domain.StartOfDay(s.now()),
		SearchTerm: strings.TrimSpace(in.SearchTerm),
		Limit:      in.Limit,
		Offset:     in.Cursor,
	})
	if err != nil {
		return ListResult{}, errors.Wrap(err, "list entries")
	}

	out := ListResult{Rows: make([]EntryView, 0, len(rows)), TotalRowCount: total}
	for _, e := range rows {
		out.Rows = append(out.Rows, newEntryView(e))
	}
	if next := in.Cursor + len(rows); len(rows) > 0 && next < total {
		out.NextCursor = &next
	}
	return out, nil
}

// Delete removes an entry. Only its owner or a manager of one of the owner's teams may do so.
func (s *Service) Delete(ctx context.Context, actor Actor, entryUUID string) error {
	id, err := uuid.Parse(strings.TrimSpace(entryUUID))
	if err != nil {
		return validationError(KeyInvalidUUID)
	}

	entry, err := s.entries.FindByUUID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return notFoundError(KeyEntryNotFound)
	}
	if err != nil {
		return errors.Wrap(err, "load entry")
	}

	if entry.UserID != actor.UserID {
		ok, err := s.canManage(ctx, actor.UserID, entry.UserID)
		if err != nil {
			return err
		}
		if !ok {
			return authorizationError(KeyOnlyAdminCanDelete)
		}
	}

	if err := s.entries.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundError(KeyEntryNotFound)
		}
		return errors.Wrap(err, "delete entry")
	}
	return nil
}
