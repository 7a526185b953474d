package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"awaydesk/backend/internal/domain"
	"awaydesk/backend/internal/service/outofoffice"
)

type fakeOutOfOfficeService struct {
	createOrUpdateFn func(ctx context.Context, actor outofoffice.Actor, in outofoffice.CreateOrUpdateInput) (outofoffice.Result, error)
	listFn           func(ctx context.Context, actor outofoffice.Actor, in outofoffice.ListInput) (outofoffice.ListResult, error)
	deleteFn         func(ctx context.Context, actor outofoffice.Actor, entryUUID string) error
}

func (f *fakeOutOfOfficeService) CreateOrUpdate(ctx context.Context, actor outofoffice.Actor, in outofoffice.CreateOrUpdateInput) (outofoffice.Result, error) {
	if f.createOrUpdateFn == nil {
		panic("CreateOrUpdate not configured")
	}
	return f.createOrUpdateFn(ctx, actor, in)
}

func (f *fakeOutOfOfficeService) List(ctx context.Context, actor outofoffice.Actor, in outofoffice.ListInput) (outofoffice.ListResult, error) {
	if f.listFn == nil {
		panic("List not configured")
	}
	return f.listFn(ctx, actor, in)
}

func (f *fakeOutOfOfficeService) Delete(ctx context.Context, actor outofoffice.Actor, entryUUID string) error {
	if f.deleteFn == nil {
		panic("Delete not configured")
	}
	return f.deleteFn(ctx, actor, entryUUID)
}

func authed(userID int64) context.Context {
	return WithActor(context.Background(), userID)
}

func TestCreateOrUpdate_RequiresActor(t *testing.T) {
	srv := NewOutOfOfficeServer(&fakeOutOfOfficeService{}, slog.Default())

	_, err := srv.CreateOrUpdate(context.Background(), &CreateOrUpdateRequest{})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.Unauthenticated)
	}
}

func TestCreateOrUpdate_RejectsNilRequest(t *testing.T) {
	srv := NewOutOfOfficeServer(&fakeOutOfOfficeService{}, slog.Default())

	_, err := srv.CreateOrUpdate(authed(1), nil)
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.InvalidArgument)
	}
}

func TestCreateOrUpdate_PassesInputToService(t *testing.T) {
	var (
		gotActor outofoffice.Actor
		gotIn    outofoffice.CreateOrUpdateInput
	)
	id := uuid.MustParse("00000000-0000-0000-0000-000000000010")
	srv := NewOutOfOfficeServer(&fakeOutOfOfficeService{
		createOrUpdateFn: func(ctx context.Context, actor outofoffice.Actor, in outofoffice.CreateOrUpdateInput) (outofoffice.Result, error) {
			gotActor, gotIn = actor, in
			return outofoffice.Result{Entry: outofoffice.EntryView{
				ID:     7,
				UUID:   id,
				User:   domain.UserRef{ID: 3, Name: "Ada"},
				ToUser: &domain.UserRef{ID: 4},
				Reason: &outofoffice.ReasonView{ID: 1, Reason: "vacation", Emoji: "🏖️"},
			}}, nil
		},
	}, slog.Default())

	var req CreateOrUpdateRequest
	body := `{"forUserId":3,"dateRange":{"startDate":"2026-01-05","endDate":"2026-01-09T00:00:00Z"},"offset":-60,"toTeamUserId":4,"reasonId":1}`
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("unmarshal request: %v", err)
	}

	resp, err := srv.CreateOrUpdate(authed(9), &req)
	if err != nil {
		t.Fatalf("CreateOrUpdate error: %v", err)
	}
	if gotActor.UserID != 9 {
		t.Fatalf("actor = %d, want 9", gotActor.UserID)
	}
	if gotIn.ForUserID == nil || *gotIn.ForUserID != 3 {
		t.Fatalf("forUserId = %v, want 3", gotIn.ForUserID)
	}
	if want := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC); !gotIn.DateRange.StartDate.Equal(want) {
		t.Fatalf("start = %v, want %v", gotIn.DateRange.StartDate, want)
	}
	if gotIn.Offset != -60 || gotIn.ReasonID != 1 || *gotIn.ToTeamUserID != 4 {
		t.Fatalf("unexpected input: %+v", gotIn)
	}
	if resp.Entry.UUID != id.String() || resp.Entry.ToUser == nil || resp.Entry.Reason.Emoji != "🏖️" {
		t.Fatalf("unexpected response: %+v", resp.Entry)
	}
}

func TestCreateOrUpdate_MissingDatesReachService(t *testing.T) {
	srv := NewOutOfOfficeServer(&fakeOutOfOfficeService{
		createOrUpdateFn: func(ctx context.Context, actor outofoffice.Actor, in outofoffice.CreateOrUpdateInput) (outofoffice.Result, error) {
			if in.DateRange.StartDate != nil || in.DateRange.EndDate != nil {
				t.Fatalf("expected nil dates, got %+v", in.DateRange)
			}
			return outofoffice.Result{}, &outofoffice.Error{Kind: outofoffice.KindValidation, Key: outofoffice.KeyDatesRequired}
		},
	}, slog.Default())

	_, err := srv.CreateOrUpdate(authed(1), &CreateOrUpdateRequest{})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.InvalidArgument)
	}
}

func TestCreateOrUpdate_MissingEntryAfterSaveIsInternal(t *testing.T) {
	srv := NewOutOfOfficeServer(&fakeOutOfOfficeService{
		createOrUpdateFn: func(ctx context.Context, actor outofoffice.Actor, in outofoffice.CreateOrUpdateInput) (outofoffice.Result, error) {
			return outofoffice.Result{}, nil
		},
	}, slog.Default())

	_, err := srv.CreateOrUpdate(authed(1), &CreateOrUpdateRequest{})
	if status.Code(err) != codes.Internal {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.Internal)
	}
}

func TestCreateOrUpdate_MapsErrorKinds(t *testing.T) {
	tests := []struct {
		kind outofoffice.Kind
		key  string
		code codes.Code
	}{
		{outofoffice.KindValidation, outofoffice.KeyStartAfterEnd, codes.InvalidArgument},
		{outofoffice.KindAuthorization, outofoffice.KeyOnlyAdminCanCreate, codes.PermissionDenied},
		{outofoffice.KindNotFound, outofoffice.KeyUserNotFound, codes.NotFound},
		{outofoffice.KindConflict, outofoffice.KeyEntryExists, codes.FailedPrecondition},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			srv := NewOutOfOfficeServer(&fakeOutOfOfficeService{
				createOrUpdateFn: func(ctx context.Context, actor outofoffice.Actor, in outofoffice.CreateOrUpdateInput) (outofoffice.Result, error) {
					return outofoffice.Result{}, &outofoffice.Error{Kind: tt.kind, Key: tt.key}
				},
			}, slog.Default())

			_, err := srv.CreateOrUpdate(authed(1), &CreateOrUpdateRequest{})
			st := status.Convert(err)
			if st.Code() != tt.code {
				t.Fatalf("code = %s, want %s", st.Code(), tt.code)
			}
			info := errorInfo(t, st)
			if info.GetReason() != string(tt.kind) || info.GetDomain() != errorDomain {
				t.Fatalf("error info = %+v", info)
			}
			if got := info.GetMetadata()["message_key"]; got != tt.key {
				t.Fatalf("message_key = %q, want %q", got, tt.key)
			}
		})
	}
}

func TestCreateOrUpdate_HidesInfrastructureErrors(t *testing.T) {
	srv := NewOutOfOfficeServer(&fakeOutOfOfficeService{
		createOrUpdateFn: func(ctx context.Context, actor outofoffice.Actor, in outofoffice.CreateOrUpdateInput) (outofoffice.Result, error) {
			return outofoffice.Result{}, errors.New("connection reset")
		},
	}, slog.Default())

	_, err := srv.CreateOrUpdate(authed(1), &CreateOrUpdateRequest{})
	st := status.Convert(err)
	if st.Code() != codes.Internal || st.Message() != "internal error" {
		t.Fatalf("status = %s %q", st.Code(), st.Message())
	}
}

func TestListEntries_ReturnsPageAndMeta(t *testing.T) {
	next := 2
	srv := NewOutOfOfficeServer(&fakeOutOfOfficeService{
		listFn: func(ctx context.Context, actor outofoffice.Actor, in outofoffice.ListInput) (outofoffice.ListResult, error) {
			if in.Limit != 2 || !in.FetchTeamMembersEntries || in.SearchTerm != "ada" {
				t.Fatalf("unexpected input: %+v", in)
			}
			return outofoffice.ListResult{
				Rows:          []outofoffice.EntryView{{ID: 1, UUID: uuid.New()}, {ID: 2, UUID: uuid.New()}},
				NextCursor:    &next,
				TotalRowCount: 5,
			}, nil
		},
	}, slog.Default())

	resp, err := srv.ListEntries(authed(1), &ListEntriesRequest{Limit: 2, FetchTeamMembersEntries: true, SearchTerm: "ada"})
	if err != nil {
		t.Fatalf("ListEntries error: %v", err)
	}
	if len(resp.Rows) != 2 || resp.Meta.TotalRowCount != 5 || resp.NextCursor == nil || *resp.NextCursor != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestDeleteEntry_MapsNotFound(t *testing.T) {
	srv := NewOutOfOfficeServer(&fakeOutOfOfficeService{
		deleteFn: func(ctx context.Context, actor outofoffice.Actor, entryUUID string) error {
			return &outofoffice.Error{Kind: outofoffice.KindNotFound, Key: outofoffice.KeyEntryNotFound}
		},
	}, slog.Default())

	_, err := srv.DeleteEntry(authed(1), &DeleteEntryRequest{OutOfOfficeUID: "00000000-0000-0000-0000-000000000020"})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.NotFound)
	}
}

func TestDate_UnmarshalRejectsGarbage(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`"next tuesday"`), &d); err == nil {
		t.Fatalf("expected error")
	}
}

func errorInfo(t *testing.T, st *status.Status) *errdetails.ErrorInfo {
	t.Helper()
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			return info
		}
	}
	t.Fatalf("status has no ErrorInfo detail: %v", st.Details())
	return nil
}
