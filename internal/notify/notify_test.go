package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"awaydesk/backend/internal/domain"
)

type fakeStream struct {
	xaddFn func(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

func (f *fakeStream) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	if f.xaddFn == nil {
		panic("unexpected XAdd")
	}
	return f.xaddFn(ctx, a)
}

func TestCanonicalLocale(t *testing.T) {
	tests := map[string]string{
		"":      "en",
		"en":    "en",
		"pt-br": "pt-BR",
		"de-DE": "de-DE",
		"!!":    "en",
	}
	for in, want := range tests {
		require.Equal(t, want, CanonicalLocale(in), "locale %q", in)
	}
}

func TestNewMessage(t *testing.T) {
	notice := domain.RedirectNotice{
		Action:   domain.NoticeUpdate,
		To:       domain.UserRef{ID: 2, Name: "Grace", Email: "grace@example.com", TimeZone: "UTC"},
		Dates:    "3/6/2024 - 3/8/2024",
		OldDates: "3/5/2024 - 3/8/2024",
	}
	owner := domain.UserRef{ID: 1, Name: "Ada", Email: "ada@example.com", TimeZone: "Europe/London"}

	msg := NewMessage(notice, owner, "entry-1", "fr")

	require.Equal(t, domain.NoticeUpdate, msg.Action)
	require.Equal(t, "fr", msg.Locale)
	require.Equal(t, int64(2), msg.To.ID)
	require.Equal(t, "Ada", msg.Absent.Name)
	require.Equal(t, notice.OldDates, msg.OldDates)
	require.Equal(t, "entry-1", msg.EntryUUID)
}

func TestStreamSender_AppendsMessage(t *testing.T) {
	var got *redis.XAddArgs
	fake := &fakeStream{xaddFn: func(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
		got = a
		return redis.NewStringResult("1-0", nil)
	}}
	sender := NewStreamSender(fake, "")

	msg := Message{Action: domain.NoticeAdd, To: Recipient{ID: 2, Email: "grace@example.com"}, Dates: "1/5/2026 - 1/9/2026"}
	require.NoError(t, sender.Send(context.Background(), msg))

	require.NotNil(t, got)
	require.Equal(t, DefaultStream, got.Stream)
	values, ok := got.Values.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "add", values["action"])
	require.Equal(t, "grace@example.com", values["to"])

	var decoded Message
	require.NoError(t, json.Unmarshal([]byte(values["payload"].(string)), &decoded))
	require.Equal(t, msg.Dates, decoded.Dates)
}

func TestStreamSender_PropagatesRedisError(t *testing.T) {
	boom := errors.New("connection refused")
	fake := &fakeStream{xaddFn: func(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
		return redis.NewStringResult("", boom)
	}}

	err := NewStreamSender(fake, "custom").Send(context.Background(), Message{Action: domain.NoticeCancel})
	require.ErrorIs(t, err, boom)
}

func TestLogSender_NeverFails(t *testing.T) {
	require.NoError(t, NewLogSender(nil).Send(context.Background(), Message{Action: domain.NoticeAdd}))
}
