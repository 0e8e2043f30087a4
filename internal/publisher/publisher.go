// Package publisher bridges a frame source to the live frame slot.
//
// One publisher runs per feed. It consumes engine results, renders the
// overlay, and replaces the feed's current frame. The publisher never
// waits on stream readers; a publish with zero connected clients costs
// one lock acquisition.
package publisher

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ajay443/smart-social-distancing/internal/annotate"
	"github.com/ajay443/smart-social-distancing/internal/framestore"
	"github.com/ajay443/smart-social-distancing/internal/logging"
	"github.com/ajay443/smart-social-distancing/internal/metrics"
	"github.com/ajay443/smart-social-distancing/internal/vision"
)

// Publisher drives one feed's annotate-and-publish loop.
type Publisher struct {
	cameraID  string
	results   <-chan vision.Result
	annotator annotate.Annotator
	store     *framestore.Store
	threshold float64
	logger    *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a publisher for one feed. threshold is the distance below
// which a detection pair counts as a violation.
func New(cameraID string, results <-chan vision.Result, annotator annotate.Annotator, store *framestore.Store, threshold float64) *Publisher {
	return &Publisher{
		cameraID:  cameraID,
		results:   results,
		annotator: annotator,
		store:     store,
		threshold: threshold,
		logger:    logging.GetLogger("publisher"),
	}
}

// Start launches the publish loop. The loop ends when the context is done
// or the source channel closes.
func (p *Publisher) Start(ctx context.Context) error {
	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go p.run(ctx)
	return nil
}

// Stop ends the publish loop and waits for it to finish.
func (p *Publisher) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *Publisher) run(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-p.results:
			if !ok {
				p.logger.Info("Source closed, stopping publisher", "camera", p.cameraID)
				return
			}
			p.publish(res)
		}
	}
}

// publish renders one result and replaces the live frame. A render failure
// drops this result only; the loop stays alive for the next one.
func (p *Publisher) publish(res vision.Result) {
	violations := res.Distances.ViolationPairs(p.threshold)

	img, err := p.annotator.Annotate(res)
	if err != nil {
		p.logger.Warn("Skipping unrenderable result", "camera", p.cameraID, "error", err)
		metrics.IncResultsDropped(p.cameraID)
		return
	}

	seq := p.store.Publish(img, res.Timestamp)
	metrics.IncFramesPublished(p.cameraID)
	metrics.SetVisionStats(p.cameraID, seq, res.FPS, len(res.Detections), violations)
}
