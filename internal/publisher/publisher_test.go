package publisher

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ajay443/smart-social-distancing/internal/framestore"
	"github.com/ajay443/smart-social-distancing/internal/metrics"
	"github.com/ajay443/smart-social-distancing/internal/vision"
)

// stubAnnotator passes images through, optionally failing the first call.
type stubAnnotator struct {
	failFirst bool
	calls     atomic.Int32
}

func (a *stubAnnotator) Annotate(res vision.Result) (*image.RGBA, error) {
	n := a.calls.Add(1)
	if a.failFirst && n == 1 {
		return nil, errors.New("render failed")
	}
	if res.Image == nil {
		return nil, errors.New("no image")
	}
	return res.Image, nil
}

func testResult(fps *float64) vision.Result {
	return vision.Result{
		CameraID: "pub-test",
		Image:    image.NewRGBA(image.Rect(0, 0, 8, 8)),
		Detections: []vision.Detection{
			{ID: "a", Box: vision.NormalizedRect{X0: 0.1, Y0: 0.1, X1: 0.2, Y1: 0.2}},
			{ID: "b", Box: vision.NormalizedRect{X0: 0.12, Y0: 0.1, X1: 0.22, Y1: 0.2}},
		},
		Distances: vision.DistanceMatrix{
			{0, 50},
			{50, 0},
		},
		FPS:       fps,
		Timestamp: time.Now(),
	}
}

func waitForSeq(t *testing.T, store *framestore.Store, want uint64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if store.Seq() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("store never reached seq %d, at %d", want, store.Seq())
}

func TestPublisherPublishesResults(t *testing.T) {
	camera := "pub-publishes"
	metrics.DeleteFeedMetrics(camera)
	defer metrics.DeleteFeedMetrics(camera)

	results := make(chan vision.Result)
	store := framestore.New()
	p := New(camera, results, &stubAnnotator{}, store, 150)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer p.Stop()

	fps := 24.5
	results <- testResult(&fps)
	results <- testResult(&fps)
	waitForSeq(t, store, 2)

	f, ok := store.Snapshot()
	if !ok {
		t.Fatal("expected a published frame")
	}
	if f.Seq != 2 {
		t.Errorf("Seq = %d, want 2", f.Seq)
	}
}

func TestPublisherUpdatesFeedStats(t *testing.T) {
	camera := "pub-stats"
	metrics.DeleteFeedMetrics(camera)
	defer metrics.DeleteFeedMetrics(camera)

	results := make(chan vision.Result)
	store := framestore.New()
	p := New(camera, results, &stubAnnotator{}, store, 150)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer p.Stop()

	fps := 30.0
	results <- testResult(&fps)
	waitForSeq(t, store, 1)

	stats := metrics.GetFeedStats(camera)
	if stats == nil {
		t.Fatal("expected feed stats after publish")
	}
	if stats.Seq != 1 {
		t.Errorf("Seq = %d, want 1", stats.Seq)
	}
	if stats.People != 2 {
		t.Errorf("People = %d, want 2", stats.People)
	}
	if stats.Violations != 1 {
		t.Errorf("Violations = %d, want 1", stats.Violations)
	}
	if stats.FPS == nil || *stats.FPS != 30.0 {
		t.Errorf("FPS = %v, want 30.0", stats.FPS)
	}
}

func TestPublisherSkipsFailedRender(t *testing.T) {
	camera := "pub-skips"
	metrics.DeleteFeedMetrics(camera)
	defer metrics.DeleteFeedMetrics(camera)

	results := make(chan vision.Result)
	store := framestore.New()
	p := New(camera, results, &stubAnnotator{failFirst: true}, store, 150)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer p.Stop()

	// First result fails to render and must not be published.
	results <- testResult(nil)
	// Second succeeds.
	results <- testResult(nil)
	waitForSeq(t, store, 1)

	if store.Seq() != 1 {
		t.Errorf("Seq = %d, want 1 (failed render skipped)", store.Seq())
	}
}

func TestPublisherStopsWhenSourceCloses(t *testing.T) {
	results := make(chan vision.Result)
	store := framestore.New()
	p := New("pub-close", results, &stubAnnotator{}, store, 150)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	close(results)

	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return after source closed")
	}
}

func TestPublisherStopsOnContextCancel(t *testing.T) {
	results := make(chan vision.Result)
	store := framestore.New()
	p := New("pub-cancel", results, &stubAnnotator{}, store, 150)

	ctx, cancel := context.WithCancel(context.Background())
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	cancel()

	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return after context cancel")
	}
}
