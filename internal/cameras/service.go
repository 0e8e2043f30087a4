package cameras

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ajay443/smart-social-distancing/internal/annotate"
	"github.com/ajay443/smart-social-distancing/internal/events"
	"github.com/ajay443/smart-social-distancing/internal/framestore"
	"github.com/ajay443/smart-social-distancing/internal/ingest"
	"github.com/ajay443/smart-social-distancing/internal/logging"
	"github.com/ajay443/smart-social-distancing/internal/metrics"
	"github.com/ajay443/smart-social-distancing/internal/publisher"
	"github.com/ajay443/smart-social-distancing/internal/sim"
	"github.com/ajay443/smart-social-distancing/internal/vision"
)

// EventPublisher publishes camera lifecycle events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// SourceFactory builds the engine source for a camera spec.
type SourceFactory func(spec CameraSpec) (vision.Source, error)

// DefaultSourceFactory maps spec.Source to the built-in source types.
func DefaultSourceFactory(spec CameraSpec) (vision.Source, error) {
	switch spec.Source {
	case SourceSim:
		return sim.New(sim.Config{
			CameraID: spec.ID,
			Width:    spec.Width,
			Height:   spec.Height,
			FPS:      spec.FPS,
			People:   spec.People,
			Birdseye: spec.Birdseye,
		}), nil
	case SourceZMQ:
		return ingest.New(ingest.Config{
			CameraID: spec.ID,
			Endpoint: spec.Endpoint,
		}), nil
	default:
		return nil, fmt.Errorf("unknown source type %q", spec.Source)
	}
}

// Feed is one running camera: its spec, the live frame slot readers pull
// from, and the pipeline stages that fill it.
type Feed struct {
	Spec  CameraSpec
	Store *framestore.Store

	source    vision.Source
	publisher *publisher.Publisher
}

// Service owns the camera feed lifecycle. Apply reconciles the running
// set against a desired spec set; everything else reads.
type Service struct {
	mu        sync.RWMutex
	feeds     map[string]*Feed
	ctx       context.Context
	factory   SourceFactory
	bus       EventPublisher
	annotator annotate.Annotator
	threshold float64
	logger    *slog.Logger
}

// ServiceOptions carries optional service wiring, mainly for tests.
type ServiceOptions struct {
	SourceFactory SourceFactory // nil uses DefaultSourceFactory
}

// NewService creates the feed manager. threshold is the violation
// distance in pixels used for box coloring and counting.
func NewService(bus EventPublisher, threshold float64, opts *ServiceOptions) *Service {
	factory := DefaultSourceFactory
	if opts != nil && opts.SourceFactory != nil {
		factory = opts.SourceFactory
	}
	return &Service{
		feeds:     make(map[string]*Feed),
		ctx:       context.Background(),
		factory:   factory,
		bus:       bus,
		annotator: annotate.NewRenderer(threshold),
		threshold: threshold,
		logger:    logging.GetLogger("cameras"),
	}
}

// Start fixes the context feeds run under. Feeds started by later Apply
// calls inherit it.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
}

// Apply reconciles running feeds against the desired spec set: feeds
// absent from specs stop, changed specs restart, new specs start. A feed
// that fails to start does not block the others.
func (s *Service) Apply(specs map[string]CameraSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, feed := range s.feeds {
		next, keep := specs[id]
		if keep && next == feed.Spec {
			continue
		}
		s.stopFeedLocked(feed)
	}

	ids := make([]string, 0, len(specs))
	for id := range specs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var errs []error
	for _, id := range ids {
		if _, running := s.feeds[id]; running {
			continue
		}
		if err := s.startFeedLocked(specs[id]); err != nil {
			errs = append(errs, fmt.Errorf("camera %s: %w", id, err))
		}
	}

	return errors.Join(errs...)
}

func (s *Service) startFeedLocked(spec CameraSpec) error {
	source, err := s.factory(spec)
	if err != nil {
		return err
	}

	store := framestore.New()
	pub := publisher.New(spec.ID, source.Results(), s.annotator, store, s.threshold)

	if err := source.Start(s.ctx); err != nil {
		return fmt.Errorf("failed to start source: %w", err)
	}
	if err := pub.Start(s.ctx); err != nil {
		source.Stop()
		return fmt.Errorf("failed to start publisher: %w", err)
	}

	s.feeds[spec.ID] = &Feed{
		Spec:      spec,
		Store:     store,
		source:    source,
		publisher: pub,
	}

	s.logger.Info("Camera feed started", "camera", spec.ID, "source", spec.Source)
	s.bus.Publish(events.CameraOnlineEvent{
		CameraID:  spec.ID,
		Name:      spec.Name,
		Birdseye:  spec.Birdseye,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return nil
}

func (s *Service) stopFeedLocked(feed *Feed) {
	if err := feed.source.Stop(); err != nil {
		s.logger.Warn("Source stop failed", "camera", feed.Spec.ID, "error", err)
	}
	feed.publisher.Stop()
	delete(s.feeds, feed.Spec.ID)
	metrics.DeleteFeedMetrics(feed.Spec.ID)

	s.logger.Info("Camera feed stopped", "camera", feed.Spec.ID)
	s.bus.Publish(events.CameraOfflineEvent{
		CameraID:  feed.Spec.ID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Get returns the running feed for a camera id.
func (s *Service) Get(id string) (*Feed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	feed, ok := s.feeds[id]
	if !ok {
		return nil, fmt.Errorf("camera %s: %w", id, ErrCameraNotFound)
	}
	return feed, nil
}

// List returns running feeds sorted by camera id.
func (s *Service) List() []*Feed {
	s.mu.RLock()
	defer s.mu.RUnlock()
	feeds := make([]*Feed, 0, len(s.feeds))
	for _, feed := range s.feeds {
		feeds = append(feeds, feed)
	}
	sort.Slice(feeds, func(i, j int) bool { return feeds[i].Spec.ID < feeds[j].Spec.ID })
	return feeds
}

// DefaultFeed picks the feed served at the bare /video_feed route: the
// first camera by id, preferring street-level views over birdseye maps.
func (s *Service) DefaultFeed() (*Feed, error) {
	feeds := s.List()
	if len(feeds) == 0 {
		return nil, ErrCameraNotFound
	}
	for _, feed := range feeds {
		if !feed.Spec.Birdseye {
			return feed, nil
		}
	}
	return feeds[0], nil
}

// Count returns the number of running feeds.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.feeds)
}

// Stop shuts down all feeds.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, feed := range s.feeds {
		s.stopFeedLocked(feed)
	}
}
