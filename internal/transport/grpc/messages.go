package grpc

import (
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// Date accepts either a calendar date ("2026-01-05") or an RFC 3339 timestamp.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(string(b), `"`)
	if raw == "" || raw == "null" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			d.Time = t
			return nil
		}
	}
	return errors.Errorf("invalid date %q", raw)
}

type DateRange struct {
	StartDate *Date `json:"startDate"`
	EndDate   *Date `json:"endDate"`
}

type CreateOrUpdateRequest struct {
	ForUserID    *int64    `json:"forUserId,omitempty"`
	DateRange    DateRange `json:"dateRange"`
	Offset       int       `json:"offset"`
	ToTeamUserID *int64    `json:"toTeamUserId"`
	ReasonID     int64     `json:"reasonId"`
	Notes        *string   `json:"notes,omitempty"`
	UUID         *string   `json:"uuid,omitempty"`
}

type CreateOrUpdateResponse struct {
	Entry Entry `json:"entry"`
}

type Entry struct {
	ID     int64     `json:"id"`
	UUID   string    `json:"uuid"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Notes  *string   `json:"notes"`
	Reason *Reason   `json:"reason"`
	User   User      `json:"user"`
	ToUser *User     `json:"toUser"`
}

type Reason struct {
	ID     int64  `json:"id"`
	Reason string `json:"reason"`
	Emoji  string `json:"emoji"`
}

type User struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	TimeZone string `json:"timeZone"`
}

type ListEntriesRequest struct {
	Limit                   int    `json:"limit"`
	Cursor                  int    `json:"cursor"`
	FetchTeamMembersEntries bool   `json:"fetchTeamMembersEntries"`
	SearchTerm              string `json:"searchTerm,omitempty"`
}

type ListEntriesResponse struct {
	Rows       []Entry  `json:"rows"`
	NextCursor *int     `json:"nextCursor"`
	Meta       ListMeta `json:"meta"`
}

type ListMeta struct {
	TotalRowCount int `json:"totalRowCount"`
}

type DeleteEntryRequest struct {
	OutOfOfficeUID string `json:"outOfOfficeUid"`
}

type DeleteEntryResponse struct{}
