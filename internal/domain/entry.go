package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type MembershipRole string

const (
	MembershipRoleMember MembershipRole = "MEMBER"
	MembershipRoleAdmin  MembershipRole = "ADMIN"
	MembershipRoleOwner  MembershipRole = "OWNER"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID             int64  `bun:"id,pk,autoincrement"`
	Username       string `bun:"username"`
	Name           string `bun:"name"`
	Email          string `bun:"email,notnull"`
	TimeZone       string `bun:"time_zone,notnull"`
	Locale         string `bun:"locale"`
	OrganizationID *int64 `bun:"organization_id"`
}

func (u User) Ref() UserRef {
	return UserRef{
		ID:       u.ID,
		Name:     u.Name,
		Username: u.Username,
		Email:    u.Email,
		TimeZone: u.TimeZone,
	}
}

// UserRef is the public projection of a user carried in views, notices and webhook payloads.
type UserRef struct {
	ID       int64
	Name     string
	Username string
	Email    string
	TimeZone string
}

type Membership struct {
	bun.BaseModel `bun:"table:memberships,alias:m"`

	ID       int64          `bun:"id,pk,autoincrement"`
	UserID   int64          `bun:"user_id,notnull"`
	TeamID   int64          `bun:"team_id,notnull"`
	Role     MembershipRole `bun:"role,notnull"`
	Accepted bool           `bun:"accepted,notnull"`
}

type Reason struct {
	bun.BaseModel `bun:"table:ooo_reasons,alias:r"`

	ID      int64  `bun:"id,pk,autoincrement"`
	Reason  string `bun:"reason,notnull"`
	Emoji   string `bun:"emoji,notnull"`
	Enabled bool   `bun:"enabled,notnull"`
}

// Entry is an out-of-office window for UserID, optionally redirecting to ToUserID.
// StartTime and EndTime are UTC instants aligned to the start and end of a day.
type Entry struct {
	bun.BaseModel `bun:"table:ooo_entries,alias:e"`

	ID        int64     `bun:"id,pk,autoincrement"`
	UUID      uuid.UUID `bun:"uuid,type:uuid,notnull,unique"`
	UserID    int64     `bun:"user_id,notnull"`
	ToUserID  *int64    `bun:"to_user_id"`
	ReasonID  int64     `bun:"reason_id,notnull"`
	Notes     *string   `bun:"notes"`
	StartTime time.Time `bun:"start_time,notnull"`
	EndTime   time.Time `bun:"end_time,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`

	User   *User   `bun:"rel:belongs-to,join:user_id=id"`
	ToUser *User   `bun:"rel:belongs-to,join:to_user_id=id"`
	Reason *Reason `bun:"rel:belongs-to,join:reason_id=id"`
}

func (e Entry) Interval() Interval {
	return Interval{Start: e.StartTime, End: e.EndTime}
}

func (e *Entry) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if e.UUID == uuid.Nil {
			e.UUID = uuid.New()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		if e.UpdatedAt.IsZero() {
			e.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		e.UpdatedAt = now
	}
	return nil
}

const TriggerOOOCreated = "OOO_CREATED"

type WebhookSubscription struct {
	bun.BaseModel `bun:"table:webhooks,alias:w"`

	ID              uuid.UUID `bun:"id,pk,type:uuid"`
	UserID          *int64    `bun:"user_id"`
	TeamID          *int64    `bun:"team_id"`
	AppID           *string   `bun:"app_id"`
	SubscriberURL   string    `bun:"subscriber_url,notnull"`
	Secret          *string   `bun:"secret"`
	PayloadTemplate *string   `bun:"payload_template"`
	EventTriggers   []string  `bun:"event_triggers,array,notnull"`
	Active          bool      `bun:"active,notnull"`
	CreatedAt       time.Time `bun:"created_at,notnull"`
}

func (w WebhookSubscription) Handles(trigger string) bool {
	for _, t := range w.EventTriggers {
		if t == trigger {
			return true
		}
	}
	return false
}
