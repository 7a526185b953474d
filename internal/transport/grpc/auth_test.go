package grpc

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"awaydesk/backend/internal/authz"
	"awaydesk/backend/internal/domain"
	"awaydesk/backend/internal/logging"
	"awaydesk/backend/internal/notify"
	"awaydesk/backend/internal/service/outofoffice"
	"awaydesk/backend/internal/store/memory"
	"awaydesk/backend/internal/webhooks"
)

const (
	testSecret = "test-secret"
	testIssuer = "awaydesk"
)

func signToken(t *testing.T, secret string, userID int64, issuer string, method jwt.SigningMethod) string {
	t.Helper()
	token := jwt.NewWithClaims(method, jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	raw, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

func TestAuthenticator_UserID(t *testing.T) {
	a := NewAuthenticator(testSecret, testIssuer)

	id, err := a.UserID(signToken(t, testSecret, 42, testIssuer, jwt.SigningMethodHS256))
	if err != nil || id != 42 {
		t.Fatalf("UserID = %d, %v; want 42, nil", id, err)
	}

	cases := map[string]string{
		"wrong secret": signToken(t, "other", 42, testIssuer, jwt.SigningMethodHS256),
		"wrong issuer": signToken(t, testSecret, 42, "someone-else", jwt.SigningMethodHS256),
		"wrong method": signToken(t, testSecret, 42, testIssuer, jwt.SigningMethodHS512),
		"garbage":      "not.a.token",
	}
	for name, raw := range cases {
		if _, err := a.UserID(raw); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: err = %v, want ErrInvalidToken", name, err)
		}
	}
}

func TestBearerToken(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer  abc "))
	if got := bearerToken(ctx); got != "abc" {
		t.Fatalf("bearerToken = %q, want %q", got, "abc")
	}
	ctx = metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Basic abc"))
	if got := bearerToken(ctx); got != "" {
		t.Fatalf("bearerToken = %q, want empty", got)
	}
	if got := bearerToken(context.Background()); got != "" {
		t.Fatalf("bearerToken = %q, want empty", got)
	}
}

type nopDispatcher struct{}

func (nopDispatcher) Dispatch(ctx context.Context, trigger string, subs []domain.WebhookSubscription, payload any) []webhooks.Delivery {
	return nil
}

func startServer(t *testing.T) *Client {
	t.Helper()

	st := memory.New()
	st.PutUser(domain.User{ID: 1, Username: "ada", Name: "Ada", Email: "ada@example.com", TimeZone: "UTC"})
	st.PutUser(domain.User{ID: 2, Username: "grace", Name: "Grace", Email: "grace@example.com", TimeZone: "UTC"})
	st.PutMembership(domain.Membership{UserID: 1, TeamID: 10, Role: domain.MembershipRoleMember, Accepted: true})
	st.PutMembership(domain.Membership{UserID: 2, TeamID: 10, Role: domain.MembershipRoleMember, Accepted: true})
	st.PutReason(domain.Reason{ID: 1, Reason: "unspecified", Emoji: "🏝️", Enabled: true})

	az, err := authz.New(authz.DefaultPolicies())
	if err != nil {
		t.Fatalf("authz.New: %v", err)
	}
	log := logging.Discard()
	svc := outofoffice.NewService(outofoffice.Deps{
		Entries:    st,
		Directory:  st,
		Webhooks:   st,
		Authz:      az,
		Notifier:   notify.NewLogSender(log),
		Dispatcher: nopDispatcher{},
		Log:        log,
	}, outofoffice.Options{
		Now: func() time.Time { return time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC) },
	})

	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer(grpc.ChainUnaryInterceptor(
		MetricsInterceptor(),
		NewAuthenticator(testSecret, testIssuer).UnaryInterceptor(),
	))
	RegisterOutOfOfficeServiceServer(server, NewOutOfOfficeServer(svc, log))
	go func() {
		_ = server.Serve(lis)
	}()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return NewClient(conn)
}

func withToken(t *testing.T, userID int64) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(),
		"authorization", "Bearer "+signToken(t, testSecret, userID, testIssuer, jwt.SigningMethodHS256))
}

func TestServer_EndToEnd(t *testing.T) {
	client := startServer(t)

	_, err := client.ListEntries(context.Background(), &ListEntriesRequest{Limit: 10})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.Unauthenticated)
	}

	ctx := withToken(t, 1)
	delegate := int64(2)
	created, err := client.CreateOrUpdate(ctx, &CreateOrUpdateRequest{
		DateRange: DateRange{
			StartDate: &Date{time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)},
			EndDate:   &Date{time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC)},
		},
		ToTeamUserID: &delegate,
		ReasonID:     1,
	})
	if err != nil {
		t.Fatalf("CreateOrUpdate error: %v", err)
	}
	if created.Entry.User.ID != 1 || created.Entry.ToUser == nil || created.Entry.ToUser.ID != 2 {
		t.Fatalf("unexpected entry: %+v", created.Entry)
	}

	_, err = client.CreateOrUpdate(ctx, &CreateOrUpdateRequest{
		DateRange: DateRange{
			StartDate: &Date{time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC)},
			EndDate:   &Date{time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)},
		},
		ReasonID: 1,
	})
	st := status.Convert(err)
	if st.Code() != codes.FailedPrecondition || errorInfo(t, st).GetMetadata()["message_key"] != outofoffice.KeyEntryExists {
		t.Fatalf("status = %s %q", st.Code(), st.Message())
	}

	list, err := client.ListEntries(ctx, &ListEntriesRequest{Limit: 10})
	if err != nil {
		t.Fatalf("ListEntries error: %v", err)
	}
	if len(list.Rows) != 1 || list.Meta.TotalRowCount != 1 || list.Rows[0].UUID != created.Entry.UUID {
		t.Fatalf("unexpected list: %+v", list)
	}

	_, err = client.DeleteEntry(withToken(t, 2), &DeleteEntryRequest{OutOfOfficeUID: created.Entry.UUID})
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.PermissionDenied)
	}
	if _, err := client.DeleteEntry(ctx, &DeleteEntryRequest{OutOfOfficeUID: created.Entry.UUID}); err != nil {
		t.Fatalf("DeleteEntry error: %v", err)
	}
}
