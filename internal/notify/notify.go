// Package notify hands redirect notices to the mail worker.
package notify

import (
	"context"
	"log/slog"

	"golang.org/x/text/language"

	"awaydesk/backend/internal/domain"
)

const defaultLocale = "en"

// Message is one redirect notice addressed to a delegate.
type Message struct {
	Action    domain.NoticeAction `json:"action"`
	Locale    string              `json:"locale"`
	To        Recipient           `json:"to"`
	Absent    Recipient           `json:"absentUser"`
	Dates     string              `json:"dates"`
	OldDates  string              `json:"oldDates,omitempty"`
	EntryUUID string              `json:"entryUuid"`
}

type Recipient struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	TimeZone string `json:"timeZone"`
}

func RecipientFrom(u domain.UserRef) Recipient {
	return Recipient{ID: u.ID, Name: u.Name, Email: u.Email, TimeZone: u.TimeZone}
}

// NewMessage builds the message for notice. absent is the owner of the entry.
func NewMessage(notice domain.RedirectNotice, absent domain.UserRef, entryUUID, locale string) Message {
	return Message{
		Action:    notice.Action,
		Locale:    CanonicalLocale(locale),
		To:        RecipientFrom(notice.To),
		Absent:    RecipientFrom(absent),
		Dates:     notice.Dates,
		OldDates:  notice.OldDates,
		EntryUUID: entryUUID,
	}
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// CanonicalLocale normalizes a BCP 47 tag, falling back to English for empty or malformed input.
func CanonicalLocale(raw string) string {
	if raw == "" {
		return defaultLocale
	}
	tag, err := language.Parse(raw)
	if err != nil || tag == language.Und {
		return defaultLocale
	}
	return tag.String()
}

// LogSender only logs. Used when no Redis is configured.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	if log == nil {
		log = slog.Default()
	}
	return &LogSender{log: log.With(slog.String("component", "notify"))}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.log.InfoContext(ctx, "redirect notice",
		slog.String("action", string(msg.Action)),
		slog.Int64("to_user_id", msg.To.ID),
		slog.String("dates", msg.Dates),
		slog.String("locale", msg.Locale),
		slog.String("entry_uuid", msg.EntryUUID),
	)
	return nil
}
