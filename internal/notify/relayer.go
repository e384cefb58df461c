package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"gorm.io/gorm"

	"windplex/internal/models"
)

// Sink delivers events of the types it accepts.
type Sink interface {
	Name() string
	Accepts(eventType string) bool
	Deliver(ctx context.Context, ev Event) error
}

type RelayerOptions struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
}

// Relayer moves outbox rows to sinks.
type Relayer struct {
	repo   *outboxRepository
	sinks  []Sink
	opts   RelayerOptions
	logger *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRelayer(db *gorm.DB, sinks []Sink, opts RelayerOptions, logger *slog.Logger) *Relayer {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Relayer{
		repo:   &outboxRepository{db: db},
		sinks:  sinks,
		opts:   opts,
		logger: logger.With("component", "notify"),
	}
}

// Start runs the relayer in the background until ctx is cancelled or Close
// is called.
func (r *Relayer) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.Run(ctx)
	}()
}

// Run drains the outbox every interval until ctx is cancelled.
func (r *Relayer) Run(ctx context.Context) {
	t := time.NewTicker(r.opts.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.DrainOnce(ctx)
		}
	}
}

// DrainOnce delivers one batch of pending events and returns how many were
// delivered to every accepting sink. A sink that took an event is not given
// it again when another sink's failure causes a retry.
func (r *Relayer) DrainOnce(ctx context.Context) int {
	rows, err := r.repo.listPending(ctx, r.opts.BatchSize)
	if err != nil {
		r.logger.Error("outbox query failed", "err", err)
		return 0
	}

	sent := 0
	for _, row := range rows {
		ev := Event{
			Key:       row.EventKey,
			Type:      row.EventType,
			Payload:   json.RawMessage(row.Payload),
			CreatedAt: row.CreatedAt,
		}
		delivered, err := r.deliver(ctx, ev, splitSinks(row.DeliveredSinks))
		if err != nil {
			r.logger.Warn("event delivery failed", "event", ev.Type, "key", ev.Key, "retry", row.Retry+1, "err", err)
			if uerr := r.repo.markRetry(ctx, row, delivered, err, r.opts.MaxRetries); uerr != nil {
				r.logger.Error("outbox update failed", "id", row.ID, "err", uerr)
			}
			continue
		}
		if err := r.repo.markSent(ctx, row.ID, delivered); err != nil {
			r.logger.Error("outbox update failed", "id", row.ID, "err", err)
			continue
		}
		sent++
	}
	return sent
}

// deliver hands ev to every accepting sink not in done and returns done
// extended with the sinks that succeeded.
func (r *Relayer) deliver(ctx context.Context, ev Event, done []string) ([]string, error) {
	var errs []error
	for _, s := range r.sinks {
		if !s.Accepts(ev.Type) || slices.Contains(done, s.Name()) {
			continue
		}
		if err := s.Deliver(ctx, ev); err != nil {
			errs = append(errs, errors.New(s.Name()+": "+err.Error()))
			continue
		}
		done = append(done, s.Name())
	}
	return done, errors.Join(errs...)
}

// Close stops a started relayer, waits for an in-flight drain to finish and
// then releases sinks that hold connections.
func (r *Relayer) Close() error {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()

	var errs []error
	for _, s := range r.sinks {
		if c, ok := s.(interface{ Close() error }); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// Pending counts undelivered events; used by health output and tests.
func (r *Relayer) Pending(ctx context.Context) (int64, error) {
	var n int64
	err := r.repo.db.WithContext(ctx).Model(&models.NotificationOutbox{}).
		Where("status = ?", models.OutboxPending).Count(&n).Error
	return n, err
}

// LogSink writes every event to the log. It is installed when no other sink
// is configured so events are still visible.
type LogSink struct {
	Logger *slog.Logger
}

func (LogSink) Name() string { return "log" }

func (LogSink) Accepts(string) bool { return true }

func (s LogSink) Deliver(ctx context.Context, ev Event) error {
	s.Logger.InfoContext(ctx, "wiki event", "type", ev.Type, "key", ev.Key, "payload", string(ev.Payload))
	return nil
}
