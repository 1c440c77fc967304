// Package tray provides a system tray menu for the evergreen service.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/evergreen/internal/app"
)

// Tray represents the system tray application.
type Tray struct {
	onMix     func()
	onGesture func(enabled bool)
	onOpen    func()
	onQuit    func()
	enabled   bool
	mu        sync.RWMutex

	// Menu items stored for later updates
	menuMix     *systray.MenuItem
	menuGesture *systray.MenuItem
	menuStatus  *systray.MenuItem
}

// New creates a new Tray. enabled is the initial hand control state.
func New(enabled bool) *Tray {
	return &Tray{
		enabled: enabled,
	}
}

// OnMixToggle sets the callback for the formed/scattered menu item.
func (t *Tray) OnMixToggle(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onMix = fn
}

// OnGestureToggle sets the callback called when hand control is toggled.
func (t *Tray) OnGestureToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onGesture = fn
}

// OnOpen sets the callback for the open-in-browser menu item.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit stops a running tray.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Evergreen")
	systray.SetTooltip("Evergreen particle tree")

	t.mu.Lock()
	t.menuMix = systray.AddMenuItem("Scatter / Form", "Toggle between tree and scattered particles")
	t.menuGesture = systray.AddMenuItem(gestureTitle(t.enabled), "Toggle hand control")
	systray.AddSeparator()

	t.menuStatus = systray.AddMenuItem("Starting...", "Scene status")
	t.menuStatus.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open in Browser...", "Open the renderer")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Evergreen")

	go func() {
		for {
			select {
			case <-t.menuMix.ClickedCh:
				t.handleMix()
			case <-t.menuGesture.ClickedCh:
				t.handleGesture()
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

func (t *Tray) handleMix() {
	t.mu.RLock()
	callback := t.onMix
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleGesture() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuGesture != nil {
		t.menuGesture.SetTitle(gestureTitle(enabled))
	}
	callback := t.onGesture
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetStatus updates the status line and the hand control item.
func (t *Tray) SetStatus(st app.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.enabled = st.GestureEnabled
	if t.menuStatus != nil {
		t.menuStatus.SetTitle(StatusTitle(st))
	}
	if t.menuGesture != nil {
		t.menuGesture.SetTitle(gestureTitle(st.GestureEnabled))
	}
}

// IsEnabled returns the current hand control state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// StatusTitle renders a status snapshot as a one-line menu title.
func StatusTitle(st app.Status) string {
	shape := "Tree"
	switch {
	case st.TargetMix == 0 && st.Mix < 0.5:
		shape = "Scattered"
	case st.TargetMix == 0:
		shape = "Scattering"
	case st.Mix < 0.99:
		shape = "Forming"
	}

	hand := "hands off"
	switch {
	case st.Degraded:
		hand = "pointer only"
	case st.Hand.Detected:
		hand = "hand seen"
	}
	return fmt.Sprintf("%s · %d photos · %s", shape, st.Photos, hand)
}

func gestureTitle(enabled bool) string {
	if enabled {
		return "● Hand Control"
	}
	return "○ Hand Control"
}
