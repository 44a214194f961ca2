package action

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/audit"
)

// Notifier publishes the events of a committed invocation.
type Notifier interface {
	Publish(ctx context.Context, rec audit.Record) error
}

// LogNotifier writes every event to the log.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier that logs at info level.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Publish(_ context.Context, rec audit.Record) error {
	for _, ev := range rec.Events {
		n.logger.Info("action event",
			zap.String("topic", ev.Topic),
			zap.String("action", rec.Action),
			zap.String("audit_id", rec.ID),
			zap.Any("payload", ev.Payload),
		)
	}
	return nil
}

// Broker fans events out to in-process subscribers by topic.
type Broker struct {
	mu   sync.RWMutex
	subs map[string][]func(audit.Event)
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[string][]func(audit.Event))}
}

// Subscribe registers fn for topic. "*" receives every topic.
func (b *Broker) Subscribe(topic string, fn func(audit.Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = append(b.subs[topic], fn)
}

func (b *Broker) Publish(_ context.Context, rec audit.Record) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ev := range rec.Events {
		for _, fn := range b.subs[ev.Topic] {
			fn(ev)
		}
		for _, fn := range b.subs["*"] {
			fn(ev)
		}
	}
	return nil
}

// Notifiers publishes to each notifier in turn.
type Notifiers []Notifier

func (ns Notifiers) Publish(ctx context.Context, rec audit.Record) error {
	for _, n := range ns {
		if err := n.Publish(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
