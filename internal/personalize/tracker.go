package personalize

import (
	"context"
	"sync"
	"time"

	"github.com/khanglvm/kimo/internal/logger"
	"github.com/khanglvm/kimo/internal/metrics"
	"github.com/khanglvm/kimo/internal/storage"
)

const (
	// defaultQueueSize is the buffer size for the event queue.
	// If full, events are dropped (non-blocking).
	defaultQueueSize = 1000

	// defaultBatchSize is the number of events that triggers an immediate flush.
	defaultBatchSize = 10

	// defaultFlushInterval is how often pending events are flushed.
	defaultFlushInterval = 50 * time.Millisecond

	// flushTimeout bounds one batch write.
	flushTimeout = 5 * time.Second
)

// TrackerConfig tunes the background writer.
type TrackerConfig struct {
	QueueSize     int           `koanf:"queue_size" validate:"gte=0"`
	BatchSize     int           `koanf:"batch_size" validate:"gte=0"`
	FlushInterval time.Duration `koanf:"flush_interval" validate:"gte=0"`
}

// Tracker appends interaction events in the background with non-blocking
// enqueue. Events from one caller reach storage in the order they were
// tracked.
type Tracker struct {
	store   storage.HistoryStore
	log     logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	queue         chan InteractionEvent
	batchSize     int
	flushInterval time.Duration

	// mu guards stopped against enqueues racing Stop.
	mu       sync.RWMutex
	stopped  bool
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

// NewTracker starts a tracker writing to store.
func NewTracker(store storage.HistoryStore, cfg TrackerConfig, log logger.Logger, m *metrics.Metrics, opts ...TrackerOption) *Tracker {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}

	t := &Tracker{
		store:         store,
		log:           log,
		metrics:       m,
		now:           time.Now,
		queue:         make(chan InteractionEvent, cfg.QueueSize),
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		stopChan:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}

	t.wg.Add(1)
	go t.processEvents()

	return t
}

// TrackInteraction validates and enqueues one interaction. Only malformed
// input is reported; a full queue or a stopped tracker drops the event with
// a warning.
func (t *Tracker) TrackInteraction(eventType EventType, data InteractionData) error {
	e, err := NewInteractionEvent(eventType, data, t.now())
	if err != nil {
		return err
	}
	t.enqueue(e)
	return nil
}

// TrackSearch records a search and its extracted entities.
func (t *Tracker) TrackSearch(query string, metadata map[string]string) error {
	return t.TrackInteraction(Search, InteractionData{Query: query, Metadata: metadata})
}

// Track enqueues a prebuilt event.
func (t *Tracker) Track(e InteractionEvent) error {
	if err := e.Validate(); err != nil {
		return err
	}
	t.enqueue(e)
	return nil
}

func (t *Tracker) enqueue(e InteractionEvent) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.stopped || t.store == nil {
		t.log.Warn("tracker not running, dropping event", logger.String("event", e.String()))
		t.metrics.EventDropped()
		return
	}

	select {
	case t.queue <- e:
		t.metrics.EventQueued()
	default:
		t.log.Warn("tracker queue full, dropping event", logger.String("event", e.String()))
		t.metrics.EventDropped()
	}
}

// Stop drains the queue, flushes remaining events and stops the writer.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() {
		t.mu.Lock()
		t.stopped = true
		t.mu.Unlock()

		close(t.stopChan)
		t.wg.Wait()
	})
}

// QueueLen returns the number of events waiting to be written.
func (t *Tracker) QueueLen() int {
	return len(t.queue)
}

func (t *Tracker) processEvents() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.flushInterval)
	defer ticker.Stop()

	batch := make([]InteractionEvent, 0, t.batchSize)

	for {
		select {
		case e := <-t.queue:
			batch = append(batch, e)
			if len(batch) >= t.batchSize {
				t.flush(batch)
				batch = make([]InteractionEvent, 0, t.batchSize)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				t.flush(batch)
				batch = make([]InteractionEvent, 0, t.batchSize)
			}

		case <-t.stopChan:
			for {
				select {
				case e := <-t.queue:
					batch = append(batch, e)
					if len(batch) >= t.batchSize {
						t.flush(batch)
						batch = make([]InteractionEvent, 0, t.batchSize)
					}
				default:
					t.flush(batch)
					return
				}
			}
		}
	}
}

func (t *Tracker) flush(events []InteractionEvent) {
	if len(events) == 0 || t.store == nil {
		return
	}

	rows := make([]storage.Interaction, len(events))
	for i, e := range events {
		rows[i] = e.ToStorage()
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	if err := t.store.RecordInteractions(ctx, rows); err != nil {
		t.log.Warn("failed to record interactions",
			logger.Int("count", len(rows)),
			logger.Error(err),
		)
	}
}
