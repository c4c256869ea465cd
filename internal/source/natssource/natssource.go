// Package natssource streams update events published as JSON records on a
// NATS JetStream stream.
//
// An ordered consumer replays the stream from its first message, which gives
// the backfill, and keeps delivering new messages afterwards. Ordered
// consumers are ephemeral and need no acks.
package natssource

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	ferrors "git.home.luguber.info/inful/diffwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/diffwatch/internal/logfields"
	"git.home.luguber.info/inful/diffwatch/internal/source"
	"git.home.luguber.info/inful/diffwatch/internal/update"
)

// Config names the server, stream and subject filter.
type Config struct {
	URL     string
	Stream  string
	Subject string
}

// Source implements source.Source over JetStream.
type Source struct {
	cfg   Config
	hooks source.Hooks

	mu      sync.Mutex
	lastSeq uint64
}

// New creates a NATS source. It does not connect until Stream.
func New(cfg Config, hooks source.Hooks) *Source {
	return &Source{cfg: cfg, hooks: hooks}
}

func (s *Source) Name() string { return "nats" }

// Stream implements source.Source. A reconnect resumes after the last stream
// sequence handled, including records that were rejected.
func (s *Source) Stream(ctx context.Context, out chan<- update.Event) error {
	log := s.hooks.Log().With(logfields.Source(s.Name()))

	nc, err := nats.Connect(s.cfg.URL, nats.Name("diffwatch"))
	if err != nil {
		return networkError(err, "connect")
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return networkError(err, "create JetStream context")
	}

	stream, err := js.Stream(ctx, s.cfg.Stream)
	if err != nil {
		if errors.Is(err, jetstream.ErrStreamNotFound) {
			return ferrors.SourceError("JetStream stream not found").
				WithContext("stream", s.cfg.Stream).
				WithRetry(ferrors.RetryBackoff).
				Build()
		}
		return networkError(err, "look up stream")
	}

	cons, err := stream.OrderedConsumer(ctx, s.consumerConfig())
	if err != nil {
		return networkError(err, "create ordered consumer")
	}
	msgs, err := cons.Messages()
	if err != nil {
		return networkError(err, "start message iterator")
	}
	defer msgs.Stop()

	stop := context.AfterFunc(ctx, msgs.Stop)
	defer stop()

	log.Info("Consuming JetStream updates",
		slog.String("stream", s.cfg.Stream),
		slog.String("subject", s.cfg.Subject))

	for {
		msg, err := msgs.Next()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return networkError(err, "receive message")
		}
		if err := s.handle(ctx, out, msg.Data(), sequenceOf(msg)); err != nil {
			return err
		}
	}
}

// handle decodes one message and delivers it. Undecodable records are
// rejected and skipped.
func (s *Source) handle(ctx context.Context, out chan<- update.Event, data []byte, seq uint64) error {
	e, err := update.Decode(data)
	if err != nil {
		s.hooks.Reject(data, err)
		s.advance(seq)
		return nil
	}
	if err := source.Send(ctx, out, e); err != nil {
		return err
	}
	s.advance(seq)
	return nil
}

func (s *Source) consumerConfig() jetstream.OrderedConsumerConfig {
	cfg := jetstream.OrderedConsumerConfig{DeliverPolicy: jetstream.DeliverAllPolicy}
	if s.cfg.Subject != "" {
		cfg.FilterSubjects = []string{s.cfg.Subject}
	}
	if seq := s.cursor(); seq > 0 {
		cfg.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		cfg.OptStartSeq = seq + 1
	}
	return cfg
}

func sequenceOf(msg jetstream.Msg) uint64 {
	meta, err := msg.Metadata()
	if err != nil {
		return 0
	}
	return meta.Sequence.Stream
}

func (s *Source) cursor() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeq
}

func (s *Source) advance(seq uint64) {
	s.mu.Lock()
	if seq > s.lastSeq {
		s.lastSeq = seq
	}
	s.mu.Unlock()
}

func networkError(err error, op string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return ferrors.WrapError(err, ferrors.CategoryNetwork, "nats "+op+" failed").
		Retryable().
		Build()
}

var _ source.Source = (*Source)(nil)
