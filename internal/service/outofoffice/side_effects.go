package outofoffice

import (
	"context"
	"log/slog"

	"github.com/go-faster/errors"
	"github.com/sourcegraph/conc"

	"awaydesk/backend/internal/domain"
	"awaydesk/backend/internal/metrics"
	"awaydesk/backend/internal/notify"
	"awaydesk/backend/internal/store"
	"awaydesk/backend/internal/webhooks"
)

// SideEffectReport records what happened after the entry was committed. The entry is saved
// whatever it says.
type SideEffectReport struct {
	Notices             []NoticeOutcome
	Webhooks            []webhooks.Delivery
	SubscriberLookupErr error
}

type NoticeOutcome struct {
	Action   domain.NoticeAction
	ToUserID int64
	Err      error
}

// Delivered reports whether every notice and webhook went out.
func (r SideEffectReport) Delivered() bool {
	if r.SubscriberLookupErr != nil {
		return false
	}
	for _, n := range r.Notices {
		if n.Err != nil {
			return false
		}
	}
	for _, d := range r.Webhooks {
		if d.Err != nil {
			return false
		}
	}
	return true
}

// startSideEffects runs notices and webhook fan-out in the background on a context detached
// from the request. The caller never waits for them; Wait drains them on shutdown.
func (s *Service) startSideEffects(ctx context.Context, actor Actor, owner domain.User, delegate *domain.User, prior *domain.Entry, saved domain.Entry, reason domain.Reason) {
	ctx = context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		report := s.runSideEffects(ctx, actor, owner, delegate, prior, saved, reason)
		s.log.InfoContext(ctx, "ooo side effects finished",
			slog.String("uuid", saved.UUID.String()),
			slog.Int("notices", len(report.Notices)),
			slog.Int("webhooks", len(report.Webhooks)),
			slog.Bool("delivered", report.Delivered()),
		)
		if s.onSideEffects != nil {
			s.onSideEffects(saved.UUID, report)
		}
	}()
}

// Wait blocks until every background side effect started so far has finished.
func (s *Service) Wait() {
	s.inflight.Wait()
}

func (s *Service) runSideEffects(ctx context.Context, actor Actor, owner domain.User, delegate *domain.User, prior *domain.Entry, saved domain.Entry, reason domain.Reason) SideEffectReport {
	ctx, cancel := context.WithTimeout(ctx, s.sideEffectTimeout)
	defer cancel()

	var report SideEffectReport
	var wg conc.WaitGroup
	if delegate != nil {
		wg.Go(func() {
			report.Notices = s.sendNotices(ctx, actor, owner, delegate, prior, saved)
		})
	}
	wg.Go(func() {
		report.Webhooks, report.SubscriberLookupErr = s.fanOut(ctx, owner, delegate, saved, reason)
	})
	if r := wg.WaitAndRecover(); r != nil {
		s.log.ErrorContext(ctx, "side effect panicked", slog.String("panic", r.String()))
	}
	return report
}

func (s *Service) sendNotices(ctx context.Context, actor Actor, owner domain.User, delegate *domain.User, prior *domain.Entry, saved domain.Entry) []NoticeOutcome {
	var prev *domain.RedirectState
	if prior != nil {
		prev = &domain.RedirectState{Interval: prior.Interval()}
		if prior.ToUser != nil {
			ref := prior.ToUser.Ref()
			prev.Delegate = &ref
		} else if prior.ToUserID != nil {
			prev.Delegate = &domain.UserRef{ID: *prior.ToUserID}
		}
	}
	next := delegate.Ref()
	notices := domain.PlanRedirectNotices(prev, domain.RedirectState{Delegate: &next, Interval: saved.Interval()})
	if len(notices) == 0 {
		return nil
	}

	locale := s.actorLocale(ctx, actor, owner)
	outcomes := make([]NoticeOutcome, 0, len(notices))
	for _, n := range notices {
		msg := notify.NewMessage(n, owner.Ref(), saved.UUID.String(), locale)
		err := s.notifier.Send(ctx, msg)
		metrics.ObserveSideEffect(metrics.SideEffectNotification, err)
		if err != nil {
			s.log.WarnContext(ctx, "redirect notice failed",
				slog.String("action", string(n.Action)),
				slog.Int64("to_user_id", n.To.ID),
				slog.String("uuid", saved.UUID.String()),
				slog.Any("err", err),
			)
		}
		outcomes = append(outcomes, NoticeOutcome{Action: n.Action, ToUserID: n.To.ID, Err: err})
	}
	return outcomes
}

// actorLocale is the locale of whoever made the change, so admins get notices in their language.
func (s *Service) actorLocale(ctx context.Context, actor Actor, owner domain.User) string {
	if actor.UserID == owner.ID {
		return owner.Locale
	}
	u, err := s.directory.GetUser(ctx, actor.UserID)
	if err != nil {
		return ""
	}
	return u.Locale
}

func (s *Service) fanOut(ctx context.Context, owner domain.User, delegate *domain.User, saved domain.Entry, reason domain.Reason) ([]webhooks.Delivery, error) {
	teamIDs, err := s.directory.AcceptedTeamIDs(ctx, owner.ID)
	if err != nil {
		return nil, s.subscriberLookupFailed(ctx, errors.Wrap(err, "load owner teams"))
	}
	subs, err := s.webhooks.Subscribers(ctx, store.SubscriberQuery{
		UserID:  owner.ID,
		TeamIDs: teamIDs,
		OrgID:   owner.OrganizationID,
		Trigger: domain.TriggerOOOCreated,
	})
	if err != nil {
		return nil, s.subscriberLookupFailed(ctx, errors.Wrap(err, "load webhook subscribers"))
	}
	if len(subs) == 0 {
		return nil, nil
	}

	var delegateRef *domain.UserRef
	if delegate != nil {
		ref := delegate.Ref()
		delegateRef = &ref
	}
	payload := domain.NewOOOEntryPayload(saved, owner.Ref(), delegateRef, &reason)

	deliveries := s.dispatcher.Dispatch(ctx, domain.TriggerOOOCreated, subs, payload)
	for _, d := range deliveries {
		metrics.ObserveSideEffect(metrics.SideEffectWebhook, d.Err)
	}
	return deliveries, nil
}

func (s *Service) subscriberLookupFailed(ctx context.Context, err error) error {
	metrics.ObserveSideEffect(metrics.SideEffectWebhook, err)
	s.log.WarnContext(ctx, "webhook subscriber lookup failed", slog.Any("err", err))
	return err
}
