package app

import (
	"errors"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/evergreen/internal/capture"
	"github.com/ayusman/evergreen/internal/choreo"
	"github.com/ayusman/evergreen/internal/config"
	"github.com/ayusman/evergreen/internal/detector"
	"github.com/ayusman/evergreen/internal/gesture"
	"github.com/ayusman/evergreen/internal/placement"
	"github.com/ayusman/evergreen/internal/store"
)

// stepClock advances by a fixed step on every reading so each poll clears
// the gesture throttle.
type stepClock struct {
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

func testSettings() config.Config {
	cfg := config.Default()
	cfg.Groups = []placement.GroupConfig{
		{ID: "balls", Type: placement.Ball, Count: 8, Scale: 1, Seed: 1},
		{ID: "photos", Type: placement.Photo, Count: 10, Scale: 1, Seed: 1},
		{ID: "snow", Type: placement.Snow, Count: 10, Scale: 1, Seed: 1},
	}
	return cfg
}

type harness struct {
	app      *App
	detector *detector.MockDetector
	camera   *capture.MockCamera
	store    *store.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	s, err := store.New("")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	frame := gocv.NewMatWithSize(capture.DefaultHeight, capture.DefaultWidth, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { frame.Close() })

	h := &harness{
		detector: detector.NewMockDetector(),
		camera:   capture.NewMockCamera([]*gocv.Mat{&frame}, true),
		store:    s,
	}
	h.app, err = New(Config{
		Settings: testSettings(),
		Store:    s,
		Camera:   h.camera,
		Detector: h.detector,
		Clock:    &stepClock{now: time.Unix(0, 0), step: 150 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() { h.app.Close() })

	if err := h.camera.Open(); err != nil {
		t.Fatalf("open camera: %v", err)
	}
	return h
}

func TestNew_WithoutTracking(t *testing.T) {
	settings := testSettings()
	settings.Tracking.Enabled = false

	a, err := New(Config{Settings: settings})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.Close()

	status := a.Status()
	if !status.Degraded {
		t.Error("expected degraded status without tracking")
	}
	if status.GestureEnabled {
		t.Error("expected gesture control off")
	}
	if a.Store() == nil || a.Store().Path() != store.MemoryPath {
		t.Error("expected an in-memory store")
	}

	f := a.Step(0.016)
	if !f.Degraded {
		t.Error("expected frame to report degraded")
	}
}

func TestNew_InvalidSettings(t *testing.T) {
	settings := testSettings()
	settings.Server.FrameRate = 0

	if _, err := New(Config{Settings: settings}); !errors.Is(err, config.ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}

func TestNew_RestoresPhotoCount(t *testing.T) {
	s, err := store.New("")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer s.Close()

	if _, err := s.Photos().Add([]*store.Photo{{Source: "a.jpg"}, {Source: "b.jpg"}}); err != nil {
		t.Fatalf("add: %v", err)
	}

	settings := testSettings()
	settings.Tracking.Enabled = false
	a, err := New(Config{Settings: settings, Store: s})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.Close()

	if f := a.Step(0.016); f.Photos != 2 {
		t.Errorf("expected 2 photos restored, got %d", f.Photos)
	}
}

func TestStep_AppliesQueuedEvents(t *testing.T) {
	h := newHarness(t)

	if err := h.app.Enqueue(choreo.Event{Type: choreo.EventToggle}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := h.app.Enqueue(choreo.Event{Type: "bogus"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	f := h.app.Step(0.016)
	if f.TargetMix != 0 {
		t.Errorf("expected toggle applied, got target %v", f.TargetMix)
	}
	if h.app.Last() != f {
		t.Error("expected Last to return the newest frame")
	}
	if h.app.Status().Seq != 1 {
		t.Errorf("expected seq 1, got %d", h.app.Status().Seq)
	}
}

func TestEnqueue_Full(t *testing.T) {
	h := newHarness(t)

	for i := range EventQueueSize {
		if err := h.app.Enqueue(choreo.Event{Type: choreo.EventToggle}); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if err := h.app.Enqueue(choreo.Event{Type: choreo.EventToggle}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}

	h.app.Step(0.016)
	if err := h.app.Enqueue(choreo.Event{Type: choreo.EventToggle}); err != nil {
		t.Errorf("expected room after a tick, got %v", err)
	}
}

func TestTrackOnce_OpenHandScatters(t *testing.T) {
	h := newHarness(t)
	h.detector.SetHands([]detector.HandLandmarks{detector.OpenPalmLandmarks()})

	sample, fresh := h.app.TrackOnce()
	if !fresh {
		t.Fatal("expected a fresh sample")
	}
	if !sample.Detected || !sample.Open {
		t.Errorf("expected a detected open hand, got %+v", sample)
	}

	f := h.app.Step(0.016)
	if f.TargetMix != 0 {
		t.Errorf("expected open hand to scatter, got target %v", f.TargetMix)
	}
	if f.Orientation.Mode.String() != "GRABBED" {
		t.Errorf("expected grabbed orientation, got %s", f.Orientation.Mode)
	}

	if _, fresh := h.app.TrackOnce(); !fresh {
		t.Error("expected each poll to latch a new sample")
	}
	h.app.Step(0.016)
	if pendingSample(h.app) {
		t.Error("expected Step to consume the sample")
	}
}

func pendingSample(a *App) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sampleSeq != a.appliedSeq
}

func TestTrackOnce_FistForms(t *testing.T) {
	h := newHarness(t)
	h.app.Enqueue(choreo.Event{Type: choreo.EventSetTargetMix, Value: 0})
	h.app.Step(0.016)

	h.detector.SetHands([]detector.HandLandmarks{detector.FistLandmarks()})
	h.app.TrackOnce()

	if f := h.app.Step(0.016); f.TargetMix != 1 {
		t.Errorf("expected a fist to form the tree, got target %v", f.TargetMix)
	}
}

func TestTrackOnce_DetectorUnavailable(t *testing.T) {
	h := newHarness(t)
	h.detector.SetError(detector.ErrUnavailable)

	h.app.TrackOnce()
	f := h.app.Step(0.016)
	if !f.Degraded {
		t.Error("expected degraded mode when the detector is unavailable")
	}

	h.detector.SetError(nil)
	h.detector.SetHands(nil)
	h.app.TrackOnce()
	if f := h.app.Step(0.016); f.Degraded {
		t.Error("expected recovery once the detector answers again")
	}
}

func TestTrackOnce_DetectorErrorIsMiss(t *testing.T) {
	h := newHarness(t)
	h.detector.SetHands([]detector.HandLandmarks{detector.OpenPalmLandmarks()})
	h.app.TrackOnce()

	h.detector.SetError(errors.New("bad frame"))
	sample, _ := h.app.TrackOnce()
	if !sample.Detected {
		t.Error("expected a single failed detection to be debounced")
	}
	if h.app.Status().Degraded {
		t.Error("expected an ordinary error not to degrade")
	}
}

func TestTrackOnce_GestureDisabled(t *testing.T) {
	h := newHarness(t)
	h.detector.SetHands([]detector.HandLandmarks{detector.OpenPalmLandmarks()})
	h.app.SetGestureEnabled(false)

	if _, fresh := h.app.TrackOnce(); fresh {
		t.Error("expected no sample while gesture control is off")
	}
	if h.detector.Calls() != 0 {
		t.Errorf("expected no detector calls, got %d", h.detector.Calls())
	}
	if !h.app.Step(0.016).Degraded {
		t.Error("expected degraded while gesture control is off")
	}
	if h.store.Settings().Bool(store.SettingGestureEnabled, true) {
		t.Error("expected the setting to be persisted")
	}
}

func TestLatch_DropsStaleGeneration(t *testing.T) {
	h := newHarness(t)

	h.app.mu.RLock()
	gen := h.app.gen
	h.app.mu.RUnlock()

	h.app.latch(gen-1, gesture.Sample{Detected: true, Open: true})
	if pendingSample(h.app) {
		t.Error("expected a sample from a stopped run to be dropped")
	}

	h.app.latch(gen, gesture.Sample{Detected: true, Open: true})
	if !pendingSample(h.app) {
		t.Error("expected a sample from the current run to be latched")
	}
}

func TestPhotos_Lifecycle(t *testing.T) {
	h := newHarness(t)

	n, err := h.app.AddPhotos([]*store.Photo{{Source: "1.jpg"}, {Source: "2.jpg"}, {Source: "3.jpg"}})
	if err != nil {
		t.Fatalf("add photos: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 photos, got %d", n)
	}

	f := h.app.Step(0)
	if !f.Overlay || f.TargetMix != 0 {
		t.Errorf("expected upload to disperse behind the overlay, got overlay %v target %v", f.Overlay, f.TargetMix)
	}
	for range 6 {
		f = h.app.Step(0.1)
	}
	if f.Photos != 3 {
		t.Errorf("expected 3 photos after the swap, got %d", f.Photos)
	}

	if _, err := h.app.ClearPhotos(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	for range 15 {
		f = h.app.Step(0.1)
	}
	if f.Photos != 0 || f.TargetMix != 1 {
		t.Errorf("expected cleared and reformed, got %d photos target %v", f.Photos, f.TargetMix)
	}
}

func TestPhotos_Delete(t *testing.T) {
	h := newHarness(t)
	photos := []*store.Photo{{Source: "1.jpg"}, {Source: "2.jpg"}}
	if _, err := h.app.AddPhotos(photos); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := h.app.DeletePhoto(photos[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := h.app.DeletePhoto(photos[0].ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	var f *choreo.Frame
	for range 15 {
		f = h.app.Step(0.1)
	}
	if f.Photos != 1 {
		t.Errorf("expected 1 photo, got %d", f.Photos)
	}
}

func TestPresets(t *testing.T) {
	h := newHarness(t)
	h.app.Step(0.016)

	if _, err := h.app.SavePreset("base"); err != nil {
		t.Fatalf("save: %v", err)
	}

	preset := &store.Preset{
		Name:      "sparse",
		TargetMix: 0,
		Groups:    []placement.GroupConfig{{ID: "stars", Type: placement.Star, Count: 4, Scale: 1}},
	}
	if err := h.store.Presets().Save(preset); err != nil {
		t.Fatalf("save sparse: %v", err)
	}

	if _, err := h.app.ApplyPreset("sparse"); err != nil {
		t.Fatalf("apply: %v", err)
	}
	f := h.app.Step(0.016)
	if len(f.Transforms) != 4 || f.TargetMix != 0 {
		t.Errorf("expected 4 stars scattering, got %d transforms target %v", len(f.Transforms), f.TargetMix)
	}
	if g := h.app.Groups(); len(g) != 1 || g[0].ID != "stars" {
		t.Errorf("expected the active groups to follow the preset, got %+v", g)
	}

	if _, err := h.app.ApplyPreset("base"); err != nil {
		t.Fatalf("apply base: %v", err)
	}
	if f := h.app.Step(0.016); len(f.Transforms) != 28 {
		t.Errorf("expected the base scene back with 28 transforms, got %d", len(f.Transforms))
	}

	if _, err := h.app.ApplyPreset("missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSubscribe(t *testing.T) {
	h := newHarness(t)

	frames, cancel := h.app.Subscribe()
	h.app.Step(0.016)
	h.app.Step(0.016)

	f := <-frames
	if f.Seq != 1 {
		t.Errorf("expected the first frame kept and the second dropped, got seq %d", f.Seq)
	}

	cancel()
	if _, ok := <-frames; ok {
		t.Error("expected channel closed after cancel")
	}
	cancel()
}

func TestStartStop(t *testing.T) {
	h := newHarness(t)
	h.detector.SetHands(nil)

	if err := h.app.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.app.Start(); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if !h.app.Running() {
		t.Error("expected running")
	}

	frames, cancel := h.app.Subscribe()
	defer cancel()

	select {
	case f := <-frames:
		if f == nil {
			t.Fatal("expected a frame")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame")
	}

	h.app.Stop()
	h.app.Stop()
	if h.app.Running() {
		t.Error("expected stopped")
	}
	if h.camera.IsOpen() {
		t.Error("expected camera closed on stop")
	}
}

func TestReconfigure(t *testing.T) {
	h := newHarness(t)

	queued, err := h.app.Reconfigure(testSettings().Groups)
	if err != nil {
		t.Fatalf("reconfigure: %v", err)
	}
	if queued {
		t.Error("expected identical groups to be skipped")
	}

	groups := []placement.GroupConfig{{ID: "balls", Type: placement.Ball, Count: 3, Scale: 1, Seed: 1}}
	queued, err = h.app.Reconfigure(groups)
	if err != nil {
		t.Fatalf("reconfigure: %v", err)
	}
	if !queued {
		t.Fatal("expected a configure event")
	}

	f := h.app.Step(0.016)
	if len(f.Transforms) != 3 {
		t.Errorf("expected 3 transforms, got %d", len(f.Transforms))
	}
	if got := h.app.Groups(); len(got) != 1 {
		t.Errorf("expected 1 active group, got %d", len(got))
	}
}
