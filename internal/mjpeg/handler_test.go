package mjpeg

import (
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ajay443/smart-social-distancing/internal/cameras"
	"github.com/ajay443/smart-social-distancing/internal/framestore"
)

var (
	red   = color.RGBA{R: 255, A: 255}
	green = color.RGBA{G: 255, A: 255}
)

type fakeFeeds struct {
	feeds map[string]*cameras.Feed
}

func (f *fakeFeeds) Get(id string) (*cameras.Feed, error) {
	feed, ok := f.feeds[id]
	if !ok {
		return nil, cameras.ErrCameraNotFound
	}
	return feed, nil
}

func (f *fakeFeeds) DefaultFeed() (*cameras.Feed, error) {
	for _, feed := range f.feeds {
		return feed, nil
	}
	return nil, cameras.ErrCameraNotFound
}

func newFeed(id string) *cameras.Feed {
	return &cameras.Feed{
		Spec:  cameras.CameraSpec{ID: id, Name: id, Source: cameras.SourceSim},
		Store: framestore.New(),
	}
}

func newStreamServer(t *testing.T, feeds *fakeFeeds, cfg Config) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	NewHandler(feeds, cfg).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig() Config {
	return Config{Quality: 80, FrameInterval: 2 * time.Millisecond}
}

func solid(c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

func centerRGBA(img image.Image) color.RGBA {
	b := img.Bounds()
	return color.RGBAModel.Convert(img.At((b.Min.X+b.Max.X)/2, (b.Min.Y+b.Max.Y)/2)).(color.RGBA)
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

// sameColor tolerates JPEG quantization loss on solid-color frames.
func sameColor(got, want color.RGBA) bool {
	return absDiff(got.R, want.R) < 40 && absDiff(got.G, want.G) < 40 && absDiff(got.B, want.B) < 40
}

func readPart(t *testing.T, mr *multipart.Reader) image.Image {
	t.Helper()
	part, err := mr.NextPart()
	if err != nil {
		t.Fatalf("NextPart() = %v", err)
	}
	if ct := part.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("part content type = %q, want image/jpeg", ct)
	}
	img, err := jpeg.Decode(part)
	if err != nil {
		t.Fatalf("jpeg.Decode() = %v", err)
	}
	return img
}

func TestVideoFeedServesPublishedFrames(t *testing.T) {
	feed := newFeed("cam")
	feed.Store.Publish(solid(red), time.Now())
	srv := newStreamServer(t, &fakeFeeds{feeds: map[string]*cameras.Feed{"cam": feed}}, testConfig())

	res, err := http.Get(srv.URL + "/cameras/cam/video_feed")
	if err != nil {
		t.Fatalf("GET = %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); ct != "multipart/x-mixed-replace; boundary=frame" {
		t.Fatalf("content type = %q", ct)
	}

	mr := multipart.NewReader(res.Body, Boundary)
	if got := centerRGBA(readPart(t, mr)); !sameColor(got, red) {
		t.Fatalf("first frame center = %v, want red", got)
	}

	feed.Store.Publish(solid(green), time.Now())

	// The loop re-serves the current frame each tick, so the switch to
	// green lands within a few parts.
	for i := 0; i < 100; i++ {
		if got := centerRGBA(readPart(t, mr)); sameColor(got, green) {
			return
		}
	}
	t.Fatal("stream never served the newly published frame")
}

func TestVideoFeedWaitsForFirstFrame(t *testing.T) {
	feed := newFeed("cam")
	srv := newStreamServer(t, &fakeFeeds{feeds: map[string]*cameras.Feed{"cam": feed}}, testConfig())

	res, err := http.Get(srv.URL + "/cameras/cam/video_feed")
	if err != nil {
		t.Fatalf("GET = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}

	go func() {
		time.Sleep(30 * time.Millisecond)
		feed.Store.Publish(solid(red), time.Now())
	}()

	mr := multipart.NewReader(res.Body, Boundary)
	if got := centerRGBA(readPart(t, mr)); !sameColor(got, red) {
		t.Errorf("first served frame center = %v, want red", got)
	}
}

func TestVideoFeedChunkFormat(t *testing.T) {
	feed := newFeed("cam")
	feed.Store.Publish(solid(red), time.Now())
	srv := newStreamServer(t, &fakeFeeds{feeds: map[string]*cameras.Feed{"cam": feed}}, testConfig())

	res, err := http.Get(srv.URL + "/cameras/cam/video_feed")
	if err != nil {
		t.Fatalf("GET = %v", err)
	}
	defer res.Body.Close()

	wantHeader := "--frame\r\nContent-Type: image/jpeg\r\n\r\n"
	head := make([]byte, len(wantHeader)+2)
	if _, err := io.ReadFull(res.Body, head); err != nil {
		t.Fatalf("reading chunk head: %v", err)
	}
	if got := string(head[:len(wantHeader)]); got != wantHeader {
		t.Errorf("chunk header = %q, want %q", got, wantHeader)
	}
	if head[len(wantHeader)] != 0xFF || head[len(wantHeader)+1] != 0xD8 {
		t.Errorf("payload does not start with JPEG SOI marker: % X", head[len(wantHeader):])
	}
}

func TestVideoFeedUnknownCamera(t *testing.T) {
	srv := newStreamServer(t, &fakeFeeds{feeds: map[string]*cameras.Feed{}}, testConfig())

	res, err := http.Get(srv.URL + "/cameras/ghost/video_feed")
	if err != nil {
		t.Fatalf("GET = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", res.StatusCode)
	}
}

func TestDefaultVideoFeed(t *testing.T) {
	feed := newFeed("cam")
	feed.Store.Publish(solid(green), time.Now())
	srv := newStreamServer(t, &fakeFeeds{feeds: map[string]*cameras.Feed{"cam": feed}}, testConfig())

	res, err := http.Get(srv.URL + "/video_feed")
	if err != nil {
		t.Fatalf("GET = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}

	mr := multipart.NewReader(res.Body, Boundary)
	if got := centerRGBA(readPart(t, mr)); !sameColor(got, green) {
		t.Errorf("frame center = %v, want green", got)
	}
}

func TestDefaultVideoFeedNoCameras(t *testing.T) {
	srv := newStreamServer(t, &fakeFeeds{feeds: map[string]*cameras.Feed{}}, testConfig())

	res, err := http.Get(srv.URL + "/video_feed")
	if err != nil {
		t.Fatalf("GET = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", res.StatusCode)
	}
}

func TestSnapshot(t *testing.T) {
	feed := newFeed("cam")
	feed.Store.Publish(solid(red), time.Now())
	srv := newStreamServer(t, &fakeFeeds{feeds: map[string]*cameras.Feed{"cam": feed}}, testConfig())

	res, err := http.Get(srv.URL + "/cameras/cam/snapshot")
	if err != nil {
		t.Fatalf("GET = %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("content type = %q, want image/jpeg", ct)
	}

	img, err := jpeg.Decode(res.Body)
	if err != nil {
		t.Fatalf("jpeg.Decode() = %v", err)
	}
	if got := centerRGBA(img); !sameColor(got, red) {
		t.Errorf("snapshot center = %v, want red", got)
	}
}

func TestSnapshotBeforeFirstFrame(t *testing.T) {
	feed := newFeed("cam")
	srv := newStreamServer(t, &fakeFeeds{feeds: map[string]*cameras.Feed{"cam": feed}}, testConfig())

	res, err := http.Get(srv.URL + "/cameras/cam/snapshot")
	if err != nil {
		t.Fatalf("GET = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", res.StatusCode)
	}
}

func TestSnapshotUnknownCamera(t *testing.T) {
	srv := newStreamServer(t, &fakeFeeds{feeds: map[string]*cameras.Feed{}}, testConfig())

	res, err := http.Get(srv.URL + "/cameras/ghost/snapshot")
	if err != nil {
		t.Fatalf("GET = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", res.StatusCode)
	}
}

func TestMaxClientsRejectsExcess(t *testing.T) {
	feed := newFeed("cam")
	feed.Store.Publish(solid(red), time.Now())
	cfg := testConfig()
	cfg.MaxClients = 1
	srv := newStreamServer(t, &fakeFeeds{feeds: map[string]*cameras.Feed{"cam": feed}}, cfg)

	first, err := http.Get(srv.URL + "/cameras/cam/video_feed")
	if err != nil {
		t.Fatalf("GET = %v", err)
	}
	defer first.Body.Close()
	readPart(t, multipart.NewReader(first.Body, Boundary))

	second, err := http.Get(srv.URL + "/cameras/cam/video_feed")
	if err != nil {
		t.Fatalf("second GET = %v", err)
	}
	second.Body.Close()
	if second.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("second client status = %d, want 503", second.StatusCode)
	}

	first.Body.Close()

	// The slot frees once the server notices the disconnect.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		res, err := http.Get(srv.URL + "/cameras/cam/video_feed")
		if err != nil {
			t.Fatalf("retry GET = %v", err)
		}
		if res.StatusCode == http.StatusOK {
			res.Body.Close()
			return
		}
		res.Body.Close()
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("slot never freed after client disconnect")
}

func TestClientDisconnectDoesNotStopOthers(t *testing.T) {
	feed := newFeed("cam")
	feed.Store.Publish(solid(red), time.Now())
	srv := newStreamServer(t, &fakeFeeds{feeds: map[string]*cameras.Feed{"cam": feed}}, testConfig())

	first, err := http.Get(srv.URL + "/cameras/cam/video_feed")
	if err != nil {
		t.Fatalf("GET = %v", err)
	}
	second, err := http.Get(srv.URL + "/cameras/cam/video_feed")
	if err != nil {
		first.Body.Close()
		t.Fatalf("second GET = %v", err)
	}
	defer second.Body.Close()

	secondReader := multipart.NewReader(second.Body, Boundary)
	readPart(t, multipart.NewReader(first.Body, Boundary))
	readPart(t, secondReader)

	first.Body.Close()
	feed.Store.Publish(solid(green), time.Now())

	for i := 0; i < 100; i++ {
		if got := centerRGBA(readPart(t, secondReader)); sameColor(got, green) {
			return
		}
	}
	t.Fatal("surviving client stopped receiving fresh frames")
}

// unencodable reports bounds past the JPEG size limit so every encode of
// it fails without allocating pixels.
type unencodable struct{}

func (unencodable) ColorModel() color.Model { return color.RGBAModel }
func (unencodable) Bounds() image.Rectangle { return image.Rect(0, 0, 1<<16, 1<<16) }
func (unencodable) At(x, y int) color.Color { return color.RGBA{A: 255} }

func TestTightLoopSurvivesEncodeFailure(t *testing.T) {
	feed := newFeed("cam")
	feed.Store.Publish(unencodable{}, time.Now())

	cfg := testConfig()
	cfg.FrameInterval = 0
	srv := newStreamServer(t, &fakeFeeds{feeds: map[string]*cameras.Feed{"cam": feed}}, cfg)

	res, err := http.Get(srv.URL + "/cameras/cam/video_feed")
	if err != nil {
		t.Fatalf("GET = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}

	// The loop is skipping encode failures; once a good frame lands it
	// must go out on the same session.
	go func() {
		time.Sleep(30 * time.Millisecond)
		feed.Store.Publish(solid(green), time.Now())
	}()

	mr := multipart.NewReader(res.Body, Boundary)
	if got := centerRGBA(readPart(t, mr)); !sameColor(got, green) {
		t.Errorf("first served frame center = %v, want green", got)
	}
}

type nonFlusher struct {
	http.ResponseWriter
}

func TestStreamRequiresFlusher(t *testing.T) {
	feed := newFeed("cam")
	feed.Store.Publish(solid(red), time.Now())

	mux := http.NewServeMux()
	NewHandler(&fakeFeeds{feeds: map[string]*cameras.Feed{"cam": feed}}, testConfig()).Register(mux)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/cameras/cam/video_feed", nil)
	mux.ServeHTTP(nonFlusher{rec}, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
