// Package detector provides the hand pose estimation interface and landmark types
// consumed by the gesture signal processor.
package detector

import "math"

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// FingerBases lists the knuckle (MCP) landmark of the index, middle, ring and
// pinky fingers, paired index-for-index with FingerTips.
var FingerBases = [4]int{IndexMCP, MiddleMCP, RingMCP, PinkyMCP}

// FingerTips lists the tip landmark of the index, middle, ring and pinky fingers.
var FingerTips = [4]int{IndexTip, MiddleTip, RingTip, PinkyTip}

// Point3D represents a landmark position. X and Y are normalized image
// coordinates in [0,1]; Z is relative depth.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Finite reports whether all coordinates are finite numbers.
func (p Point3D) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0) &&
		!math.IsNaN(p.Z) && !math.IsInf(p.Z, 0)
}

// PlanarDistance returns the Euclidean distance between two points in the
// image plane, ignoring depth.
func PlanarDistance(a, b Point3D) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// HandLandmarks represents the 21 hand landmarks detected by MediaPipe.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// Wrist returns the wrist landmark.
func (h *HandLandmarks) Wrist() Point3D {
	return h.Points[Wrist]
}

// Usable reports whether every landmark the gesture processor reads (the
// wrist plus the four finger base/tip pairs) has finite coordinates.
// Thumb and intermediate joints are ignored.
func (h *HandLandmarks) Usable() bool {
	if h == nil {
		return false
	}
	if !h.Points[Wrist].Finite() {
		return false
	}
	for i := range FingerBases {
		if !h.Points[FingerBases[i]].Finite() || !h.Points[FingerTips[i]].Finite() {
			return false
		}
	}
	return true
}

// Openness returns the ratio between the mean wrist-to-fingertip distance and
// the mean wrist-to-knuckle distance over the four fingers. An open palm
// scores well above 1.5, a fist close to 1. The denominator is floored at
// epsilon so a degenerate hand cannot divide by zero.
func (h *HandLandmarks) Openness(epsilon float64) float64 {
	wrist := h.Points[Wrist]

	var baseSum, tipSum float64
	for i := range FingerBases {
		baseSum += PlanarDistance(wrist, h.Points[FingerBases[i]])
		tipSum += PlanarDistance(wrist, h.Points[FingerTips[i]])
	}

	n := float64(len(FingerBases))
	return (tipSum / n) / math.Max(baseSum/n, epsilon)
}
