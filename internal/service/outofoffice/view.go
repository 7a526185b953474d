package outofoffice

import (
	"time"

	"github.com/google/uuid"

	"awaydesk/backend/internal/domain"
)

// EntryView is the public projection of a stored entry.
type EntryView struct {
	ID     int64
	UUID   uuid.UUID
	Start  time.Time
	End    time.Time
	Notes  *string
	Reason *ReasonView
	User   domain.UserRef
	ToUser *domain.UserRef
}

type ReasonView struct {
	ID     int64
	Reason string
	Emoji  string
}

func newEntryView(e domain.Entry) EntryView {
	v := EntryView{
		ID:    e.ID,
		UUID:  e.UUID,
		Start: e.StartTime.UTC(),
		End:   e.EndTime.UTC(),
		Notes: e.Notes,
		User:  domain.UserRef{ID: e.UserID},
	}
	if e.User != nil {
		v.User = e.User.Ref()
	}
	if e.ToUser != nil {
		ref := e.ToUser.Ref()
		v.ToUser = &ref
	} else if e.ToUserID != nil {
		v.ToUser = &domain.UserRef{ID: *e.ToUserID}
	}
	if e.Reason != nil {
		v.Reason = &ReasonView{ID: e.Reason.ID, Reason: e.Reason.Reason, Emoji: e.Reason.Emoji}
	}
	return v
}
