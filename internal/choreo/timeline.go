package choreo

import (
	"fmt"
	"sort"
	"time"
)

// Phase is one discrete step of the photo upload lifecycle.
type Phase int

const (
	// Disperse scatters the tree so the data swap is hidden.
	Disperse Phase = iota
	// ShowOverlay raises the loading overlay.
	ShowOverlay
	// DataSwap applies the pending photo set and regenerates the PHOTO group.
	DataSwap
	// HideOverlay drops the loading overlay.
	HideOverlay
	// Reform gathers the tree again.
	Reform
)

var phaseNames = [...]string{"disperse", "showOverlay", "dataSwap", "hideOverlay", "reform"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("Phase(%d)", int(p))
	}
	return phaseNames[p]
}

// ParsePhase converts a phase name to a Phase.
func ParsePhase(s string) (Phase, error) {
	for i, name := range phaseNames {
		if name == s {
			return Phase(i), nil
		}
	}
	return 0, fmt.Errorf("%w: phase %q", ErrUnknownEvent, s)
}

// Step is a phase scheduled at an offset from the start of a sequence.
type Step struct {
	At    time.Duration
	Phase Phase
}

// Lifecycle delays.
const (
	DataSwapDelay    = 600 * time.Millisecond
	HideOverlayDelay = 1200 * time.Millisecond
	ReformDelay      = 1400 * time.Millisecond
)

// UploadSequence disperses behind the loading overlay, swaps the photo set,
// drops the overlay and reforms.
func UploadSequence() []Step {
	return []Step{
		{At: 0, Phase: Disperse},
		{At: 0, Phase: ShowOverlay},
		{At: DataSwapDelay, Phase: DataSwap},
		{At: HideOverlayDelay, Phase: HideOverlay},
		{At: ReformDelay, Phase: Reform},
	}
}

// ClearSequence disperses, clears the photo set and reforms without an overlay.
func ClearSequence() []Step {
	return []Step{
		{At: 0, Phase: Disperse},
		{At: DataSwapDelay, Phase: DataSwap},
		{At: ReformDelay, Phase: Reform},
	}
}

// Timeline plays one scheduled sequence of phases against tick time.
// Scheduling a new sequence replaces whatever was pending.
type Timeline struct {
	steps   []Step
	next    int
	elapsed time.Duration
}

// Schedule starts a new sequence at elapsed zero.
func (t *Timeline) Schedule(steps []Step) {
	t.steps = append(t.steps[:0], steps...)
	sort.SliceStable(t.steps, func(i, j int) bool { return t.steps[i].At < t.steps[j].At })
	t.next = 0
	t.elapsed = 0
}

// Advance moves time forward by dt and returns the phases that became due,
// in schedule order. A zero dt still releases steps scheduled at zero.
func (t *Timeline) Advance(dt time.Duration) []Phase {
	if t.next >= len(t.steps) {
		return nil
	}
	if dt > 0 {
		t.elapsed += dt
	}

	var due []Phase
	for t.next < len(t.steps) && t.steps[t.next].At <= t.elapsed {
		due = append(due, t.steps[t.next].Phase)
		t.next++
	}
	return due
}

// Cancel drops all pending steps.
func (t *Timeline) Cancel() {
	t.steps = t.steps[:0]
	t.next = 0
	t.elapsed = 0
}

// Pending reports whether any step has not fired yet.
func (t *Timeline) Pending() bool {
	return t.next < len(t.steps)
}
