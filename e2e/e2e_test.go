package e2e

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"

	"github.com/ayusman/evergreen/internal/app"
	"github.com/ayusman/evergreen/internal/capture"
	"github.com/ayusman/evergreen/internal/choreo"
	"github.com/ayusman/evergreen/internal/config"
	"github.com/ayusman/evergreen/internal/detector"
	"github.com/ayusman/evergreen/internal/placement"
	"github.com/ayusman/evergreen/internal/server"
	"github.com/ayusman/evergreen/internal/store"
)

type liveSystem struct {
	app      *app.App
	detector *detector.MockDetector
	ts       *httptest.Server
	store    *store.Store
}

// startLive runs the full service with its loops on a mock camera and
// detector.
func startLive(t *testing.T) *liveSystem {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	settings := config.Default()
	settings.Groups = []placement.GroupConfig{
		{ID: "top-star", Type: placement.TopStar, Count: 1, Scale: 1},
		{ID: "balls", Type: placement.Ball, Count: 20, Scale: 1, Seed: 3},
		{ID: "photos", Type: placement.Photo, Count: 10, Scale: 1, Seed: 3},
		{ID: "snow", Type: placement.Snow, Count: 30, Scale: 1, Seed: 3},
	}

	frame := gocv.NewMatWithSize(capture.DefaultHeight, capture.DefaultWidth, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { frame.Close() })

	det := detector.NewMockDetector()
	a, err := app.New(app.Config{
		Settings: settings,
		Store:    s,
		Camera:   capture.NewMockCamera([]*gocv.Mat{&frame}, true),
		Detector: det,
	})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })

	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	ts := httptest.NewServer(server.New(server.Config{App: a}))
	t.Cleanup(ts.Close)

	return &liveSystem{app: a, detector: det, ts: ts, store: s}
}

func (l *liveSystem) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(l.ts.URL, "http") + "/api/frames"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitFrame reads frames until ok accepts one or the timeout passes.
func waitFrame(t *testing.T, conn *websocket.Conn, timeout time.Duration, ok func(choreo.Frame) bool) choreo.Frame {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		conn.SetReadDeadline(deadline)
		var f choreo.Frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("no matching frame before timeout: %v", err)
		}
		if ok(f) {
			return f
		}
	}
}

func TestE2E_GestureDrivesScene(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	l := startLive(t)
	conn := l.dial(t)

	t.Run("LoopsRunning", func(t *testing.T) {
		f := waitFrame(t, conn, 2*time.Second, func(f choreo.Frame) bool { return f.Seq > 0 })
		if f.Degraded {
			t.Error("expected hand tracking available with camera and detector")
		}
		if f.EulerOrder != "YXZ" {
			t.Errorf("expected euler order YXZ, got %s", f.EulerOrder)
		}
	})

	t.Run("OpenHandScatters", func(t *testing.T) {
		l.detector.SetHands([]detector.HandLandmarks{detector.OpenPalmLandmarks()})
		f := waitFrame(t, conn, 3*time.Second, func(f choreo.Frame) bool { return f.TargetMix == 0 && f.Mix < 0.5 })
		if f.Orientation.Mode.String() != "GRABBED" {
			t.Errorf("expected grabbed orientation, got %s", f.Orientation.Mode)
		}
	})

	t.Run("FistForms", func(t *testing.T) {
		l.detector.SetHands([]detector.HandLandmarks{detector.FistLandmarks()})
		waitFrame(t, conn, 3*time.Second, func(f choreo.Frame) bool { return f.TargetMix == 1 && f.Mix > 0.99 })
	})

	t.Run("HandLostReturnsToSpin", func(t *testing.T) {
		l.detector.SetHands(nil)
		waitFrame(t, conn, 3*time.Second, func(f choreo.Frame) bool {
			return f.Orientation.Mode.String() == "IDLE_SPIN"
		})
	})

	t.Run("DisableGesture", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPut, l.ts.URL+"/api/gesture", strings.NewReader(`{"enabled": false}`))
		resp, err := l.ts.Client().Do(req)
		if err != nil {
			t.Fatalf("PUT /api/gesture error = %v", err)
		}
		resp.Body.Close()

		waitFrame(t, conn, 2*time.Second, func(f choreo.Frame) bool { return f.Degraded })

		enabled := l.store.Settings().Bool(store.SettingGestureEnabled, true)
		if enabled {
			t.Error("expected the disabled setting to be stored")
		}
	})
}

func TestE2E_PhotoUploadLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	l := startLive(t)
	conn := l.dial(t)
	client := l.ts.Client()

	resp, err := client.Post(
		l.ts.URL+"/api/photos",
		"application/json",
		strings.NewReader(`{"photos": [{"name": "a", "source": "blob:a"}, {"name": "b", "source": "blob:b"}, {"name": "c", "source": "blob:c"}]}`),
	)
	if err != nil {
		t.Fatalf("upload error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	waitFrame(t, conn, 2*time.Second, func(f choreo.Frame) bool { return f.Overlay && f.TargetMix == 0 })
	f := waitFrame(t, conn, 3*time.Second, func(f choreo.Frame) bool { return !f.Overlay && f.TargetMix == 1 })
	if f.Photos != 3 {
		t.Errorf("expected 3 photos after reform, got %d", f.Photos)
	}

	resp, err = client.Get(l.ts.URL + "/api/state")
	if err != nil {
		t.Fatalf("state error = %v", err)
	}
	var st app.Status
	json.NewDecoder(resp.Body).Decode(&st)
	resp.Body.Close()
	if !st.Running || st.Photos != 3 {
		t.Errorf("expected running with 3 photos, got %+v", st)
	}
}
