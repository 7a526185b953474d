package grpc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"awaydesk/backend/internal/domain"
	"awaydesk/backend/internal/metrics"
	"awaydesk/backend/internal/service/outofoffice"
)

const errorDomain = "awaydesk"

type OutOfOfficeServer struct {
	svc outOfOfficeService
	log *slog.Logger
}

type outOfOfficeService interface {
	CreateOrUpdate(ctx context.Context, actor outofoffice.Actor, in outofoffice.CreateOrUpdateInput) (outofoffice.Result, error)
	List(ctx context.Context, actor outofoffice.Actor, in outofoffice.ListInput) (outofoffice.ListResult, error)
	Delete(ctx context.Context, actor outofoffice.Actor, entryUUID string) error
}

var _ OutOfOfficeServiceServer = (*OutOfOfficeServer)(nil)

func NewOutOfOfficeServer(svc outOfOfficeService, log *slog.Logger) *OutOfOfficeServer {
	if log == nil {
		log = slog.Default()
	}
	return &OutOfOfficeServer{
		svc: svc,
		log: log.With(slog.String("component", "grpc.outofoffice")),
	}
}

func (s *OutOfOfficeServer) CreateOrUpdate(ctx context.Context, req *CreateOrUpdateRequest) (*CreateOrUpdateResponse, error) {
	log := s.log.With(slog.String("rpc", "CreateOrUpdate"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	log = log.With(slog.Int64("actor_id", actor.UserID))

	res, err := s.svc.CreateOrUpdate(ctx, actor, outofoffice.CreateOrUpdateInput{
		ForUserID: req.ForUserID,
		DateRange: outofoffice.DateRange{
			StartDate: dateOrNil(req.DateRange.StartDate),
			EndDate:   dateOrNil(req.DateRange.EndDate),
		},
		Offset:       req.Offset,
		ToTeamUserID: req.ToTeamUserID,
		ReasonID:     req.ReasonID,
		Notes:        req.Notes,
		UUID:         req.UUID,
	})
	if err != nil {
		return nil, statusError(log, "ooo entry save", err)
	}
	if res.Entry.UUID == uuid.Nil {
		log.Error("ooo entry missing after save")
		return nil, status.Error(codes.Internal, "internal error")
	}

	log.Info(
		"ooo entry saved",
		slog.String("uuid", res.Entry.UUID.String()),
		slog.Int64("owner_id", res.Entry.User.ID),
	)

	return &CreateOrUpdateResponse{Entry: toEntry(res.Entry)}, nil
}

func (s *OutOfOfficeServer) ListEntries(ctx context.Context, req *ListEntriesRequest) (*ListEntriesResponse, error) {
	log := s.log.With(slog.String("rpc", "ListEntries"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	log = log.With(slog.Int64("actor_id", actor.UserID))

	res, err := s.svc.List(ctx, actor, outofoffice.ListInput{
		Limit:                   req.Limit,
		Cursor:                  req.Cursor,
		FetchTeamMembersEntries: req.FetchTeamMembersEntries,
		SearchTerm:              req.SearchTerm,
	})
	if err != nil {
		return nil, statusError(log, "ooo entries list", err)
	}

	out := make([]Entry, 0, len(res.Rows))
	for _, v := range res.Rows {
		out = append(out, toEntry(v))
	}

	log.Debug(
		"ooo entries listed",
		slog.Int("count", len(out)),
		slog.Int("total", res.TotalRowCount),
		slog.Bool("team", req.FetchTeamMembersEntries),
	)

	return &ListEntriesResponse{
		Rows:       out,
		NextCursor: res.NextCursor,
		Meta:       ListMeta{TotalRowCount: res.TotalRowCount},
	}, nil
}

func (s *OutOfOfficeServer) DeleteEntry(ctx context.Context, req *DeleteEntryRequest) (*DeleteEntryResponse, error) {
	log := s.log.With(slog.String("rpc", "DeleteEntry"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	log = log.With(slog.Int64("actor_id", actor.UserID), slog.String("uuid", req.OutOfOfficeUID))

	if err := s.svc.Delete(ctx, actor, req.OutOfOfficeUID); err != nil {
		return nil, statusError(log, "ooo entry delete", err)
	}

	log.Info("ooo entry deleted")
	return &DeleteEntryResponse{}, nil
}

// MetricsInterceptor records the latency and status code of every unary call.
func MetricsInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		metrics.ObserveRPC(info.FullMethod, status.Code(err).String(), time.Since(start))
		return resp, err
	}
}

func actorFrom(ctx context.Context) (outofoffice.Actor, error) {
	id, ok := ActorFromContext(ctx)
	if !ok {
		return outofoffice.Actor{}, status.Error(codes.Unauthenticated, "authentication required")
	}
	return outofoffice.Actor{UserID: id}, nil
}

func statusError(log *slog.Logger, op string, err error) error {
	var e *outofoffice.Error
	if !errors.As(err, &e) {
		log.Error(op+" failed", slog.Any("err", err))
		return status.Error(codes.Internal, "internal error")
	}

	code := codeForKind(e.Kind)
	log.Info(op+" rejected", slog.String("kind", string(e.Kind)), slog.String("message_key", e.Key))

	st := status.New(code, e.Key)
	detailed, derr := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   string(e.Kind),
		Domain:   errorDomain,
		Metadata: map[string]string{"message_key": e.Key},
	})
	if derr != nil {
		return st.Err()
	}
	return detailed.Err()
}

func codeForKind(k outofoffice.Kind) codes.Code {
	switch k {
	case outofoffice.KindValidation:
		return codes.InvalidArgument
	case outofoffice.KindAuthorization:
		return codes.PermissionDenied
	case outofoffice.KindNotFound:
		return codes.NotFound
	case outofoffice.KindConflict:
		return codes.FailedPrecondition
	default:
		return codes.Internal
	}
}

func dateOrNil(d *Date) *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}

func toEntry(v outofoffice.EntryView) Entry {
	out := Entry{
		ID:    v.ID,
		UUID:  v.UUID.String(),
		Start: v.Start,
		End:   v.End,
		Notes: v.Notes,
		User:  toUser(v.User),
	}
	if v.Reason != nil {
		out.Reason = &Reason{ID: v.Reason.ID, Reason: v.Reason.Reason, Emoji: v.Reason.Emoji}
	}
	if v.ToUser != nil {
		u := toUser(*v.ToUser)
		out.ToUser = &u
	}
	return out
}

func toUser(u domain.UserRef) User {
	return User{
		ID:       u.ID,
		Name:     u.Name,
		Username: u.Username,
		Email:    u.Email,
		TimeZone: u.TimeZone,
	}
}
