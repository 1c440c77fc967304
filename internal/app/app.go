// Package app wires the camera, hand tracker, choreographer and stores into
// the running evergreen service.
package app

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ayusman/evergreen/internal/capture"
	"github.com/ayusman/evergreen/internal/choreo"
	"github.com/ayusman/evergreen/internal/config"
	"github.com/ayusman/evergreen/internal/detector"
	"github.com/ayusman/evergreen/internal/gesture"
	"github.com/ayusman/evergreen/internal/placement"
	"github.com/ayusman/evergreen/internal/store"
)

// EventQueueSize is the number of input events buffered between ticks.
const EventQueueSize = 256

// ErrQueueFull is returned by Enqueue when the frame loop is behind.
var ErrQueueFull = errors.New("event queue is full")

// Config holds the collaborators and settings of an App. Nil collaborators
// are created from Settings: a webcam, the MediaPipe detector and an
// in-memory store.
type Config struct {
	Settings config.Config
	Store    *store.Store
	Camera   capture.Camera
	Detector detector.Detector
	// Clock drives gesture throttling; nil uses the system clock.
	Clock gesture.Clock
}

// Status is a snapshot of the service for the status surfaces.
type Status struct {
	Running        bool           `json:"running"`
	GestureEnabled bool           `json:"gestureEnabled"`
	Degraded       bool           `json:"degraded"`
	CameraOpen     bool           `json:"cameraOpen"`
	Photos         int            `json:"photos"`
	Mix            float64        `json:"mix"`
	TargetMix      float64        `json:"targetMix"`
	Seq            uint64         `json:"seq"`
	Hand           gesture.Sample `json:"hand"`
}

// App owns the Choreographer and runs two loops: the tracker, which polls
// camera and detector and latches the latest gesture sample, and the frame
// loop, which drains input events, ticks the scene and publishes frames.
// Only the frame loop (or Step, when the loops are not running) touches
// the Choreographer.
type App struct {
	settings config.Config
	store    *store.Store
	ownStore bool

	camera    capture.Camera
	motion    *capture.MotionDetector
	pacer     *capture.Pacer
	detector  detector.Detector
	processor *gesture.Processor
	trackMu   sync.Mutex

	stepMu sync.Mutex
	scene  *choreo.Choreographer
	events chan choreo.Event

	mu             sync.RWMutex
	gestureEnabled bool
	cameraOK       bool
	cameraFails    int
	detectorOK     bool
	sample         gesture.Sample
	sampleSeq      uint64
	appliedSeq     uint64
	gen            uint64
	last           *choreo.Frame
	groups         []placement.GroupConfig
	stopCh         chan struct{}
	wg             sync.WaitGroup

	subMu  sync.Mutex
	subs   map[uint64]chan *choreo.Frame
	nextID uint64
}

// New creates an App. It fails only on invalid settings or an unusable
// store; a missing camera or detector leaves the app in degraded mode.
func New(cfg Config) (*App, error) {
	settings := cfg.Settings
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		settings: settings,
		store:    cfg.Store,
		camera:   cfg.Camera,
		detector: cfg.Detector,
		motion:   capture.NewMotionDetector(settings.Tracking.MotionThreshold),
		pacer: &capture.Pacer{
			Active:   time.Duration(settings.Tracking.PollMS) * time.Millisecond,
			Idle:     time.Duration(settings.Tracking.IdlePollMS) * time.Millisecond,
			Cooldown: 10,
		},
		processor: gesture.NewProcessor(settings.GestureOptions(), cfg.Clock),
		events:    make(chan choreo.Event, EventQueueSize),
		subs:      make(map[uint64]chan *choreo.Frame),
	}
	a.pacer.Reset()

	if a.store == nil {
		s, err := store.New(settings.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.store = s
		a.ownStore = true
	}

	scene, err := choreo.New(settings.ChoreoOptions())
	if err != nil {
		a.closeStore()
		return nil, err
	}
	a.scene = scene
	a.groups = scene.Groups()

	if n, err := a.store.Photos().Count(); err != nil {
		log.Printf("Failed to count photos: %v", err)
	} else {
		scene.SetPhotoCount(n)
	}

	a.gestureEnabled = settings.Tracking.Enabled &&
		a.store.Settings().Bool(store.SettingGestureEnabled, true)

	if a.camera == nil {
		a.camera = capture.NewCamera(capture.Options{DeviceID: settings.Tracking.Device})
	}

	if a.detector == nil && settings.Tracking.Enabled {
		dc := detector.DefaultConfig()
		dc.MinConfidence = settings.Tracking.MinConfidence
		mp, err := detector.NewMediaPipeDetector(dc)
		if err != nil {
			log.Printf("Hand tracking unavailable (%v), pointer input only", err)
		} else {
			a.detector = mp
			log.Println("Using MediaPipe hand detection")
		}
	}
	a.detectorOK = a.detector != nil

	a.scene.SetGestureAvailable(a.gestureAvailableLocked())
	return a, nil
}

// Start opens the camera and launches the tracker and frame loops. A camera
// that fails to open is logged and the app runs degraded.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}

	if a.settings.Tracking.Enabled && a.detectorOK {
		if err := a.camera.Open(); err != nil {
			log.Printf("Camera unavailable (%v), pointer input only", err)
			a.cameraOK = false
		} else {
			a.camera.SetFPS(capture.DefaultFPS)
			a.cameraOK = true
		}
	}

	a.gen++
	a.stopCh = make(chan struct{})

	if a.cameraOK {
		a.wg.Add(1)
		go a.runTracker(a.stopCh, a.gen)
	}
	a.wg.Add(1)
	go a.runFrames(a.stopCh)

	log.Printf("Frame loop started at %d fps", a.settings.Server.FrameRate)
	return nil
}

// Stop halts both loops and waits for them. Samples from a poll that was in
// flight are discarded. Collaborators stay usable until Close.
func (a *App) Stop() {
	a.mu.Lock()
	if a.stopCh == nil {
		a.mu.Unlock()
		return
	}
	close(a.stopCh)
	a.stopCh = nil
	a.gen++
	a.mu.Unlock()

	a.wg.Wait()

	if err := a.camera.Close(); err != nil {
		log.Printf("Error closing camera: %v", err)
	}
	a.mu.Lock()
	a.cameraOK = false
	a.mu.Unlock()

	log.Println("Frame loop stopped")
}

// Close stops the app and releases the detector, the motion detector and a
// store the app opened itself.
func (a *App) Close() error {
	a.Stop()
	a.motion.Close()

	var errs []error
	if a.detector != nil {
		errs = append(errs, a.detector.Close())
	}
	errs = append(errs, a.closeStore())
	a.closeSubscribers()
	return errors.Join(errs...)
}

func (a *App) closeStore() error {
	if a.ownStore && a.store != nil {
		return a.store.Close()
	}
	return nil
}

// Running reports whether the loops are active.
func (a *App) Running() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stopCh != nil
}

// Enqueue queues an input event for the next tick.
func (a *App) Enqueue(e choreo.Event) error {
	select {
	case a.events <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Step runs one tick of dt seconds: queued events are applied in order, the
// latest gesture sample is routed, the scene advances and the frame is
// published. The frame loop calls it; tests call it directly.
func (a *App) Step(dt float64) *choreo.Frame {
	a.stepMu.Lock()
	defer a.stepMu.Unlock()

	configured := false
drain:
	for {
		select {
		case e := <-a.events:
			if err := a.scene.Apply(e); err != nil {
				log.Printf("Rejected %s event: %v", e.Type, err)
			}
			configured = configured || e.Type == choreo.EventConfigure
		default:
			break drain
		}
	}

	a.mu.Lock()
	available := a.gestureAvailableLocked()
	sample, fresh := a.sample, a.sampleSeq != a.appliedSeq
	a.appliedSeq = a.sampleSeq
	a.mu.Unlock()

	if available == a.scene.Degraded() {
		a.scene.SetGestureAvailable(available)
		if available {
			log.Println("Hand tracking available")
		} else {
			log.Println("Hand tracking unavailable, pointer input only")
		}
	}
	if fresh {
		a.scene.OnGestureSample(sample)
	}

	f := a.scene.Tick(dt)
	frame := &f

	a.mu.Lock()
	a.last = frame
	if configured {
		a.groups = a.scene.Groups()
	}
	a.mu.Unlock()

	a.publish(frame)
	return frame
}

// Last returns the most recent frame, or nil before the first tick.
func (a *App) Last() *choreo.Frame {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.last
}

// Groups returns the active group list.
func (a *App) Groups() []placement.GroupConfig {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]placement.GroupConfig(nil), a.groups...)
}

// Status returns a snapshot for the status surfaces.
func (a *App) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s := Status{
		Running:        a.stopCh != nil,
		GestureEnabled: a.gestureEnabled,
		Degraded:       !a.gestureAvailableLocked(),
		CameraOpen:     a.cameraOK,
		Hand:           a.sample,
	}
	if a.last != nil {
		s.Photos = a.last.Photos
		s.Mix = a.last.Mix
		s.TargetMix = a.last.TargetMix
		s.Seq = a.last.Seq
	}
	return s
}

// SetGestureEnabled turns hand control on or off and remembers the choice.
func (a *App) SetGestureEnabled(enabled bool) {
	a.mu.Lock()
	changed := a.gestureEnabled != enabled
	a.gestureEnabled = enabled
	a.mu.Unlock()

	if !changed {
		return
	}
	if err := a.store.Settings().SetBool(store.SettingGestureEnabled, enabled); err != nil {
		log.Printf("Failed to save gesture setting: %v", err)
	}
	log.Printf("Gesture control enabled: %v", enabled)
}

// GestureEnabled reports whether hand control is switched on.
func (a *App) GestureEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.gestureEnabled
}

// gestureAvailableLocked reports whether gesture samples should steer the
// scene. While loops are stopped only the detector matters, so Step and
// TrackOnce work without a real camera.
func (a *App) gestureAvailableLocked() bool {
	if !a.gestureEnabled || !a.detectorOK {
		return false
	}
	return a.stopCh == nil || a.cameraOK
}

// Camera returns the camera, for the preview stream.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// Store returns the database.
func (a *App) Store() *store.Store {
	return a.store
}

// Subscribe registers a frame subscriber. Frames are delivered without
// blocking; a subscriber that has not taken the previous frame misses the
// next one. The returned function unsubscribes.
func (a *App) Subscribe() (<-chan *choreo.Frame, func()) {
	a.subMu.Lock()
	defer a.subMu.Unlock()

	id := a.nextID
	a.nextID++
	ch := make(chan *choreo.Frame, 1)
	a.subs[id] = ch

	return ch, func() {
		a.subMu.Lock()
		defer a.subMu.Unlock()
		if c, ok := a.subs[id]; ok {
			delete(a.subs, id)
			close(c)
		}
	}
}

func (a *App) publish(f *choreo.Frame) {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	for _, ch := range a.subs {
		select {
		case ch <- f:
		default:
		}
	}
}

func (a *App) closeSubscribers() {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	for id, ch := range a.subs {
		delete(a.subs, id)
		close(ch)
	}
}
