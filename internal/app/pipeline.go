package app

import (
	"errors"
	"log"
	"time"

	"github.com/ayusman/evergreen/internal/detector"
	"github.com/ayusman/evergreen/internal/gesture"
)

// cameraFailLimit is the number of consecutive failed reads after which the
// camera is considered lost. Polling continues so it can recover.
const cameraFailLimit = 10

// runTracker polls the camera and detector at the pacer's rate until stop
// is closed. gen identifies this run; samples from an older run are dropped.
func (a *App) runTracker(stop <-chan struct{}, gen uint64) {
	defer a.wg.Done()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-timer.C:
			timer.Reset(a.trackOnce(gen))
		}
	}
}

// TrackOnce runs a single tracker poll outside the tracker loop and returns
// the sample it latched, if any.
func (a *App) TrackOnce() (gesture.Sample, bool) {
	a.mu.RLock()
	gen := a.gen
	a.mu.RUnlock()

	a.trackOnce(gen)

	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sample, a.sampleSeq != a.appliedSeq
}

// trackOnce reads one frame, feeds the motion detector and the hand detector
// and latches the processed sample. It returns the delay until the next poll.
func (a *App) trackOnce(gen uint64) time.Duration {
	a.trackMu.Lock()
	defer a.trackMu.Unlock()

	if !a.GestureEnabled() || a.detector == nil {
		a.processor.Reset()
		return a.pacer.Idle
	}

	frame, err := a.camera.ReadFrame()
	if err != nil {
		a.cameraFailed(err)
		return a.pacer.Observe(false, false)
	}
	defer frame.Close()
	a.cameraRecovered()

	moving, _ := a.motion.Detect(frame)

	hands, err := a.detector.Detect(frame)
	if err != nil {
		if errors.Is(err, detector.ErrUnavailable) {
			a.setDetectorOK(false, err)
			return a.pacer.Idle
		}
		// A failed detection counts as a frame without a hand.
		log.Printf("Error detecting hands: %v", err)
		hands = nil
	} else {
		a.setDetectorOK(true, nil)
	}

	sample, ok := a.processor.Process(gesture.FrameFromHands(hands))
	if ok {
		a.latch(gen, sample)
	}
	return a.pacer.Observe(moving, sample.Detected)
}

// latch stores sample for the frame loop unless the run that produced it
// has been stopped.
func (a *App) latch(gen uint64, s gesture.Sample) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.gen {
		return
	}
	a.sample = s
	a.sampleSeq++
}

func (a *App) cameraFailed(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cameraFails++
	if a.cameraFails == cameraFailLimit && a.cameraOK {
		a.cameraOK = false
		log.Printf("Camera lost after %d failed reads: %v", a.cameraFails, err)
	}
}

func (a *App) cameraRecovered() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.cameraOK && a.cameraFails >= cameraFailLimit {
		log.Println("Camera recovered")
	}
	a.cameraFails = 0
	a.cameraOK = true
}

func (a *App) setDetectorOK(ok bool, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.detectorOK == ok {
		return
	}
	a.detectorOK = ok
	if !ok {
		log.Printf("Hand detector unavailable: %v", err)
	}
}

// runFrames ticks the scene at the configured frame rate until stop is
// closed. dt is measured, so a late tick carries a larger step; the
// choreographer clamps it.
func (a *App) runFrames(stop <-chan struct{}) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.settings.FrameInterval())
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			a.Step(dt)
		}
	}
}
