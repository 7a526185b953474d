// Package webhooks delivers event payloads to subscriber URLs.
package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"awaydesk/backend/internal/domain"
)

const (
	HeaderSignature = "X-Awaydesk-Signature-256"
	HeaderTrigger   = "X-Awaydesk-Trigger"

	noSecretSignature = "no-secret-provided"
	createdAtLayout   = "2006-01-02T15:04:05.000Z"

	defaultTimeout        = 10 * time.Second
	defaultMaxConcurrency = 8
)

// Envelope is the default request body.
type Envelope struct {
	TriggerEvent string `json:"triggerEvent"`
	CreatedAt    string `json:"createdAt"`
	Payload      any    `json:"payload"`
}

// Delivery is the outcome of one POST. Err is nil when the subscriber answered 2xx.
type Delivery struct {
	SubscriptionID uuid.UUID
	URL            string
	StatusCode     int
	Err            error
}

type indexedDelivery struct {
	index int
	Delivery
}

type Options struct {
	Client         *http.Client
	Timeout        time.Duration
	MaxConcurrency int
	Now            func() time.Time
}

type Dispatcher struct {
	client         *http.Client
	timeout        time.Duration
	maxConcurrency int
	now            func() time.Time
	log            *slog.Logger
}

func NewDispatcher(log *slog.Logger, opts Options) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = defaultMaxConcurrency
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Dispatcher{
		client:         opts.Client,
		timeout:        opts.Timeout,
		maxConcurrency: opts.MaxConcurrency,
		now:            opts.Now,
		log:            log.With(slog.String("component", "webhooks")),
	}
}

// Dispatch posts payload to every subscriber concurrently. A failing or panicking delivery
// never affects the others. Results are returned in subscriber order.
func (d *Dispatcher) Dispatch(ctx context.Context, trigger string, subs []domain.WebhookSubscription, payload any) []Delivery {
	if len(subs) == 0 {
		return nil
	}

	createdAt := d.now().UTC().Format(createdAtLayout)
	p := pool.NewWithResults[indexedDelivery]().WithMaxGoroutines(d.maxConcurrency)
	for i, sub := range subs {
		i, sub := i, sub
		p.Go(func() (out indexedDelivery) {
			out = indexedDelivery{index: i, Delivery: Delivery{SubscriptionID: sub.ID, URL: sub.SubscriberURL}}
			defer func() {
				if r := recover(); r != nil {
					out.Err = errors.Errorf("webhook delivery panicked: %v", r)
				}
			}()
			out.StatusCode, out.Err = d.deliver(ctx, trigger, createdAt, sub, payload)
			return out
		})
	}

	ordered := make([]Delivery, len(subs))
	for _, dv := range p.Wait() {
		ordered[dv.index] = dv.Delivery
	}

	for _, dv := range ordered {
		if dv.Err != nil {
			d.log.WarnContext(ctx, "webhook delivery failed",
				slog.String("trigger", trigger),
				slog.String("subscription_id", dv.SubscriptionID.String()),
				slog.Int("status", dv.StatusCode),
				slog.Any("err", dv.Err),
			)
		}
	}
	return ordered
}

func (d *Dispatcher) deliver(ctx context.Context, trigger, createdAt string, sub domain.WebhookSubscription, payload any) (int, error) {
	body, contentType, err := buildBody(trigger, createdAt, sub.PayloadTemplate, payload)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.SubscriberURL, bytes.NewReader(body))
	if err != nil {
		return 0, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(HeaderTrigger, trigger)
	req.Header.Set(HeaderSignature, Sign(sub.Secret, body))

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, "post webhook")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, errors.Errorf("subscriber responded %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func buildBody(trigger, createdAt string, template *string, payload any) ([]byte, string, error) {
	if template != nil && *template != "" {
		vars, err := templateVars(trigger, createdAt, payload)
		if err != nil {
			return nil, "", err
		}
		body := []byte(ApplyTemplate(*template, vars))
		if json.Valid(body) {
			return body, "application/json", nil
		}
		return body, "text/plain; charset=utf-8", nil
	}

	body, err := json.Marshal(Envelope{TriggerEvent: trigger, CreatedAt: createdAt, Payload: payload})
	if err != nil {
		return nil, "", errors.Wrap(err, "encode webhook envelope")
	}
	return body, "application/json", nil
}

// Sign returns the hex HMAC-SHA256 of body keyed by secret.
func Sign(secret *string, body []byte) string {
	if secret == nil || *secret == "" {
		return noSecretSignature
	}
	mac := hmac.New(sha256.New, []byte(*secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
