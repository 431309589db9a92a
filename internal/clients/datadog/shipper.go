package datadog

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"cardlink/internal/logging"
	"cardlink/internal/terminal/domain"
	"cardlink/internal/terminal/events"
)

const (
	defaultQueueSize = 256
	maxBatch         = 50
)

// ShipperConfig describes how lifecycle events are labelled in Datadog
type ShipperConfig struct {
	Service   string
	Source    string
	Tags      string
	Component domain.Component
	QueueSize int
}

// Shipper forwards status and error events to Datadog as logs. Listeners only
// enqueue; a single worker submits in batches so a slow intake never blocks
// the terminal's callback path.
type Shipper struct {
	submitter LogSubmitter
	cfg       ShipperConfig
	hostname  string
	logger    *logging.Logger

	mu      sync.Mutex
	queue   chan domain.Event
	ids     []events.ListenerID
	source  EventSource
	stopped bool
	done    chan struct{}
}

// NewShipper creates a shipper; call Start to attach it to an event source
func NewShipper(submitter LogSubmitter, cfg ShipperConfig, logger *logging.Logger) *Shipper {
	if logger == nil {
		logger = logging.NewDefaultLogger("datadog")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	hostname, _ := os.Hostname()
	return &Shipper{
		submitter: submitter,
		cfg:       cfg,
		hostname:  hostname,
		logger:    logger,
		queue:     make(chan domain.Event, cfg.QueueSize),
		done:      make(chan struct{}),
	}
}

// Start subscribes to status and error events on source and starts the worker.
// The worker exits when ctx is cancelled or Stop is called.
func (s *Shipper) Start(ctx context.Context, source EventSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, kind := range []domain.EventKind{domain.EventStatus, domain.EventError} {
		id, err := source.Subscribe(kind, s.enqueue)
		if err != nil {
			for _, prev := range s.ids {
				source.Unsubscribe(prev)
			}
			s.ids = nil
			return fmt.Errorf("subscribe datadog shipper: %w", err)
		}
		s.ids = append(s.ids, id)
	}
	s.source = source

	go s.run(ctx)
	return nil
}

// Stop unsubscribes, ships whatever is queued and waits for the worker
func (s *Shipper) Stop() {
	s.mu.Lock()
	if s.stopped || s.source == nil {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	for _, id := range s.ids {
		s.source.Unsubscribe(id)
	}
	s.ids = nil
	close(s.queue)
	s.mu.Unlock()

	<-s.done
}

func (s *Shipper) enqueue(evt domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	select {
	case s.queue <- evt:
	default:
		s.logger.Warn("Datadog queue full, dropping %s event %q", evt.Kind, evt.Message)
	}
}

func (s *Shipper) run(ctx context.Context) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-s.queue:
			if !ok {
				return
			}
			batch := []domain.Event{evt}
			batch, open := s.drain(batch)
			s.submit(batch)
			if !open {
				return
			}
		}
	}
}

// drain appends queued events without blocking; open is false once the queue is closed
func (s *Shipper) drain(batch []domain.Event) ([]domain.Event, bool) {
	for len(batch) < maxBatch {
		select {
		case evt, ok := <-s.queue:
			if !ok {
				return batch, false
			}
			batch = append(batch, evt)
		default:
			return batch, true
		}
	}
	return batch, true
}

func (s *Shipper) submit(batch []domain.Event) {
	items := make([]datadogV2.HTTPLogItem, 0, len(batch))
	for _, evt := range batch {
		items = append(items, s.logItem(evt))
	}

	if _, _, err := s.submitter.SubmitLogs(items, nil); err != nil {
		s.logger.Error("Failed to ship %d events to Datadog: %v", len(items), err)
		return
	}
	s.logger.Debug("Shipped %d events to Datadog", len(items))
}

func (s *Shipper) logItem(evt domain.Event) datadogV2.HTTPLogItem {
	item := datadogV2.NewHTTPLogItem(evt.Message)
	if s.cfg.Service != "" {
		item.SetService(s.cfg.Service)
	}
	if s.cfg.Source != "" {
		item.SetDdsource(s.cfg.Source)
	}
	if s.hostname != "" {
		item.SetHostname(s.hostname)
	}
	item.SetDdtags(s.tags(evt))
	return *item
}

func (s *Shipper) tags(evt domain.Event) string {
	tags := []string{"event:" + string(evt.Kind)}
	if s.cfg.Component != "" {
		tags = append(tags, "component:"+string(s.cfg.Component))
	}
	if extra := strings.TrimSpace(s.cfg.Tags); extra != "" {
		tags = append(tags, extra)
	}
	return strings.Join(tags, ",")
}
