package domain

import "time"

type OOOEntryPayload struct {
	OOOEntry OOOEntryData `json:"oooEntry"`
}

type OOOEntryData struct {
	ID        int64         `json:"id"`
	Start     string        `json:"start"`
	End       string        `json:"end"`
	CreatedAt string        `json:"createdAt"`
	UpdatedAt string        `json:"updatedAt"`
	Notes     *string       `json:"notes"`
	Reason    PayloadReason `json:"reason"`
	ReasonID  int64         `json:"reasonId"`
	User      PayloadUser   `json:"user"`
	ToUser    *PayloadUser  `json:"toUser"`
	UUID      string        `json:"uuid"`
}

type PayloadReason struct {
	Emoji  string `json:"emoji,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type PayloadUser struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	TimeZone string `json:"timeZone"`
}

const (
	zonedLayout = "2006-01-02T15:04:05-07:00"
	isoLayout   = "2006-01-02T15:04:05.000Z"
)

func NewOOOEntryPayload(e Entry, owner UserRef, delegate *UserRef, reason *Reason) OOOEntryPayload {
	data := OOOEntryData{
		ID:        e.ID,
		Start:     FormatInZone(e.StartTime, owner.TimeZone),
		End:       FormatInZone(e.EndTime, owner.TimeZone),
		CreatedAt: e.CreatedAt.UTC().Format(isoLayout),
		UpdatedAt: e.UpdatedAt.UTC().Format(isoLayout),
		Notes:     e.Notes,
		ReasonID:  e.ReasonID,
		User:      payloadUser(owner),
		UUID:      e.UUID.String(),
	}
	if reason != nil {
		data.Reason = PayloadReason{Emoji: reason.Emoji, Reason: reason.Reason}
	}
	if delegate != nil {
		u := payloadUser(*delegate)
		data.ToUser = &u
	}
	return OOOEntryPayload{OOOEntry: data}
}

func payloadUser(u UserRef) PayloadUser {
	return PayloadUser{
		ID:       u.ID,
		Name:     u.Name,
		Username: u.Username,
		Email:    u.Email,
		TimeZone: u.TimeZone,
	}
}

// FormatInZone keeps the UTC wall clock of t and labels it with tz's offset, so a
// 00:00 UTC day start reads as 00:00 local time for the owner.
func FormatInZone(t time.Time, tz string) string {
	loc, err := time.LoadLocation(tz)
	if err != nil || tz == "" {
		loc = time.UTC
	}
	u := t.UTC()
	local := time.Date(u.Year(), u.Month(), u.Day(), u.Hour(), u.Minute(), u.Second(), u.Nanosecond(), loc)
	return local.Format(zonedLayout)
}
