package audit

import (
	"context"
	"time"

	"certledger/internal/domain"
)

// Sink is where events land. Implementations must be safe for concurrent use.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Publisher captures structured audit events. It is append-only and delegates
// persistence to a sink so tests can swap one in easily.
type Publisher struct {
	sink  Sink
	clock func() time.Time
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithClock injects the timestamp source for testability.
func WithClock(clock func() time.Time) Option {
	return func(p *Publisher) {
		if clock != nil {
			p.clock = clock
		}
	}
}

func NewPublisher(sink Sink, opts ...Option) *Publisher {
	p := &Publisher{
		sink:  sink,
		clock: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = p.clock()
	}
	return p.sink.Append(ctx, event)
}

// ListByToken is available when the sink retains events (the memory sink
// does; the Kafka sink does not).
func (p *Publisher) ListByToken(ctx context.Context, tokenID domain.TokenID) ([]Event, error) {
	lister, ok := p.sink.(interface {
		ListByToken(ctx context.Context, tokenID domain.TokenID) ([]Event, error)
	})
	if !ok {
		return nil, nil
	}
	return lister.ListByToken(ctx, tokenID)
}
