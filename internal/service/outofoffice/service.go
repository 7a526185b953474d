package outofoffice

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"awaydesk/backend/internal/domain"
	"awaydesk/backend/internal/metrics"
	"awaydesk/backend/internal/notify"
	"awaydesk/backend/internal/store"
	"awaydesk/backend/internal/webhooks"
)

const defaultSideEffectTTL = 30 * time.Second

type Authorizer interface {
	CanManageMember(roles []domain.MembershipRole) (bool, error)
	ManagingRoles() []domain.MembershipRole
}

type WebhookDispatcher interface {
	Dispatch(ctx context.Context, trigger string, subs []domain.WebhookSubscription, payload any) []webhooks.Delivery
}

type Deps struct {
	Entries    store.EntryRepository
	Directory  store.Directory
	Webhooks   store.WebhookSubscriptions
	Authz      Authorizer
	Notifier   notify.Sender
	Dispatcher WebhookDispatcher
	Log        *slog.Logger
}

type Options struct {
	Now                func() time.Time
	RedirectGuard      domain.RedirectGuard
	SideEffectsTimeout time.Duration

	// OnSideEffects, when set, receives the report of each background side-effect run.
	OnSideEffects func(entryUUID uuid.UUID, report SideEffectReport)
}

type Service struct {
	entries    store.EntryRepository
	directory  store.Directory
	webhooks   store.WebhookSubscriptions
	authz      Authorizer
	notifier   notify.Sender
	dispatcher WebhookDispatcher
	log        *slog.Logger
	validate   *validator.Validate

	now               func() time.Time
	guard             domain.RedirectGuard
	sideEffectTimeout time.Duration
	onSideEffects     func(entryUUID uuid.UUID, report SideEffectReport)
	inflight          sync.WaitGroup
}

func NewService(deps Deps, opts Options) *Service {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.RedirectGuard.MaxDepth < 1 {
		opts.RedirectGuard = domain.DefaultRedirectGuard()
	}
	if opts.SideEffectsTimeout <= 0 {
		opts.SideEffectsTimeout = defaultSideEffectTTL
	}
	return &Service{
		entries:           deps.Entries,
		directory:         deps.Directory,
		webhooks:          deps.Webhooks,
		authz:             deps.Authz,
		notifier:          deps.Notifier,
		dispatcher:        deps.Dispatcher,
		log:               log.With(slog.String("component", "outofoffice")),
		validate:          validator.New(),
		now:               opts.Now,
		guard:             opts.RedirectGuard,
		sideEffectTimeout: opts.SideEffectsTimeout,
		onSideEffects:     opts.OnSideEffects,
	}
}

// Actor is the authenticated caller.
type Actor struct {
	UserID int64
}

type DateRange struct {
	StartDate *time.Time
	EndDate   *time.Time
}

type CreateOrUpdateInput struct {
	ForUserID    *int64
	DateRange    DateRange
	Offset       int `validate:"gte=-840,lte=840"`
	ToTeamUserID *int64
	ReasonID     int64
	Notes        *string `validate:"omitempty,max=1000"`
	UUID         *string `validate:"omitempty,uuid"`
}

type Result struct {
	Entry EntryView
}

// CreateOrUpdate validates, authorizes and persists an entry, then notifies the delegate and
// fans the change out to webhook subscribers in the background. It returns once the entry is committed.
func (s *Service) CreateOrUpdate(ctx context.Context, actor Actor, in CreateOrUpdateInput) (Result, error) {
	res, err := s.createOrUpdate(ctx, actor, in)
	if kind, ok := KindOf(err); ok {
		metrics.ObserveUpsert(string(kind))
	} else if err != nil {
		metrics.ObserveUpsert("error")
	} else {
		metrics.ObserveUpsert(metrics.OutcomeOK)
	}
	return res, err
}

func (s *Service) createOrUpdate(ctx context.Context, actor Actor, in CreateOrUpdateInput) (Result, error) {
	if in.DateRange.StartDate == nil || in.DateRange.EndDate == nil {
		return Result{}, validationError(KeyDatesRequired)
	}
	if err := s.checkShape(in); err != nil {
		return Result{}, err
	}

	span := domain.DayAligned(*in.DateRange.StartDate, *in.DateRange.EndDate, in.Offset)
	if !span.Ordered() {
		return Result{}, validationError(KeyStartAfterEnd)
	}
	if span.Start.Before(domain.EarliestStart(s.now())) {
		return Result{}, validationError(KeyStartInPast)
	}

	onBehalf := in.ForUserID != nil && *in.ForUserID != actor.UserID
	owner, err := s.resolveOwner(ctx, actor, in.ForUserID, onBehalf)
	if err != nil {
		return Result{}, err
	}

	var delegate *domain.User
	if in.ToTeamUserID != nil {
		d, err := s.resolveDelegate(ctx, owner.ID, *in.ToTeamUserID, onBehalf)
		if err != nil {
			return Result{}, err
		}
		delegate = &d
	}

	var requested uuid.UUID
	if in.UUID != nil && *in.UUID != "" {
		requested = uuid.MustParse(*in.UUID)
	}

	lockIDs := []int64{owner.ID}
	if delegate != nil {
		lockIDs = append(lockIDs, delegate.ID)
	}

	var (
		saved  domain.Entry
		prior  *domain.Entry
		reason domain.Reason
	)
	err = s.entries.InOwnerTransaction(ctx, lockIDs, func(ctx context.Context, tx store.EntryTx) error {
		existing, err := tx.FindOverlapping(ctx, owner.ID, span, requested)
		if err != nil {
			return err
		}
		if domain.HasConflict(existing, span, requested) {
			return conflictError(KeyEntryExists)
		}

		if in.ReasonID == 0 {
			return validationError(KeyReasonRequired)
		}
		reason, err = s.directory.GetReason(ctx, in.ReasonID)
		if errors.Is(err, store.ErrNotFound) {
			return validationError(KeyReasonNotFound)
		}
		if err != nil {
			return errors.Wrap(err, "load reason")
		}

		if delegate != nil {
			if err := s.checkRedirect(ctx, tx, owner.ID, delegate.ID, span, requested, onBehalf); err != nil {
				return err
			}
		}

		if requested != uuid.Nil {
			p, err := tx.FindByUUID(ctx, requested)
			switch {
			case errors.Is(err, store.ErrNotFound):
			case err != nil:
				return errors.Wrap(err, "load prior entry")
			case p.UserID != owner.ID:
				return notFoundError(KeyEntryNotFound)
			default:
				prior = &p
			}
		}

		next := domain.Entry{
			UUID:      uuid.New(),
			UserID:    owner.ID,
			ReasonID:  reason.ID,
			Notes:     in.Notes,
			StartTime: span.Start,
			EndTime:   span.End,
		}
		if prior != nil {
			next.UUID = prior.UUID
			next.CreatedAt = prior.CreatedAt
		}
		if delegate != nil {
			id := delegate.ID
			next.ToUserID = &id
		}

		if _, err := tx.UpsertByUUID(ctx, next); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return conflictError(KeyEntryExists)
			}
			return errors.Wrap(err, "upsert entry")
		}

		saved, err = tx.FindByUUID(ctx, next.UUID)
		if err != nil {
			return errors.Wrap(err, "reload entry after upsert")
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return Result{}, conflictError(KeyEntryExists)
		}
		return Result{}, err
	}

	s.log.InfoContext(ctx, "ooo entry saved",
		slog.String("uuid", saved.UUID.String()),
		slog.Int64("owner_id", owner.ID),
		slog.Int64("actor_id", actor.UserID),
		slog.Bool("updated", prior != nil),
	)

	s.startSideEffects(ctx, actor, owner, delegate, prior, saved, reason)
	return Result{Entry: newEntryView(saved)}, nil
}

func (s *Service) checkShape(in CreateOrUpdateInput) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &Error{Kind: KindValidation, Key: KeyInvalidInput, Err: err}
	}
	switch fieldErrs[0].Field() {
	case "Offset":
		return validationError(KeyInvalidOffset)
	case "Notes":
		return validationError(KeyNotesTooLong)
	case "UUID":
		return validationError(KeyInvalidUUID)
	default:
		return validationError(KeyInvalidInput)
	}
}

func (s *Service) resolveOwner(ctx context.Context, actor Actor, forUserID *int64, onBehalf bool) (domain.User, error) {
	ownerID := actor.UserID
	if onBehalf {
		ok, err := s.canManage(ctx, actor.UserID, *forUserID)
		if err != nil {
			return domain.User{}, err
		}
		if !ok {
			return domain.User{}, authorizationError(KeyOnlyAdminCanCreate)
		}
		ownerID = *forUserID
	}

	owner, err := s.directory.GetUser(ctx, ownerID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, notFoundError(KeyUserNotFound)
	}
	if err != nil {
		return domain.User{}, errors.Wrap(err, "load owner")
	}
	return owner, nil
}

func (s *Service) canManage(ctx context.Context, actorID, targetID int64) (bool, error) {
	roles, err := s.directory.SharedTeamRoles(ctx, actorID, targetID)
	if err != nil {
		return false, errors.Wrap(err, "load shared team roles")
	}
	ok, err := s.authz.CanManageMember(roles)
	if err != nil {
		return false, errors.Wrap(err, "authorize")
	}
	return ok, nil
}

func (s *Service) resolveDelegate(ctx context.Context, ownerID, delegateID int64, onBehalf bool) (domain.User, error) {
	missing := notFoundError(KeyUserNotFound)
	if onBehalf {
		missing = notFoundError(KeyForwardToTeamMemberOnly)
	}

	ok, err := s.directory.SharesTeam(ctx, ownerID, delegateID)
	if err != nil {
		return domain.User{}, errors.Wrap(err, "check delegate team")
	}
	if !ok {
		return domain.User{}, missing
	}

	delegate, err := s.directory.GetUser(ctx, delegateID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, missing
	}
	if err != nil {
		return domain.User{}, errors.Wrap(err, "load delegate")
	}
	return delegate, nil
}

func (s *Service) checkRedirect(ctx context.Context, tx store.EntryTx, ownerID, delegateID int64, span domain.Interval, exclude uuid.UUID, onBehalf bool) error {
	// A single hop only needs the delegate's own redirects; deeper walks need every edge in the window.
	var from []int64
	if s.guard.MaxDepth <= 1 {
		from = []int64{delegateID}
	}
	edges, err := tx.FindRedirectEdges(ctx, span, from, exclude)
	if err != nil {
		return errors.Wrap(err, "load redirect edges")
	}
	if !s.guard.CreatesCycle(ownerID, delegateID, span, edges) {
		return nil
	}
	if onBehalf {
		return validationError(KeyTeamRedirectInfinite)
	}
	return validationError(KeyRedirectInfinite)
}
