package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

const DefaultStream = "awaydesk:notifications"

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

const redisPingTimeout = 5 * time.Second

func OpenRedis(opts RedisOptions) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return rdb, nil
}

// StreamAdder is the subset of a redis client StreamSender needs.
type StreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// StreamSender appends each message to a Redis stream consumed by the mail worker.
type StreamSender struct {
	rdb    StreamAdder
	stream string
}

func NewStreamSender(rdb StreamAdder, stream string) *StreamSender {
	if stream == "" {
		stream = DefaultStream
	}
	return &StreamSender{rdb: rdb, stream: stream}
}

func (s *StreamSender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "encode notice")
	}
	err = s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"action":  string(msg.Action),
			"to":      msg.To.Email,
			"payload": string(body),
		},
	}).Err()
	if err != nil {
		return errors.Wrapf(err, "xadd %s", s.stream)
	}
	return nil
}
