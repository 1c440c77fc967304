package detector

import (
	"errors"
	"math"
	"testing"
)

const epsilon = 1e-9

func TestHandLandmarks_Openness(t *testing.T) {
	t.Run("open palm scores well above open threshold", func(t *testing.T) {
		hand := OpenPalmLandmarks()

		ratio := hand.Openness(1e-6)
		if ratio < 3.0 || ratio > 3.8 {
			t.Errorf("expected open palm ratio around 3.4, got %f", ratio)
		}
	})

	t.Run("fist scores near one", func(t *testing.T) {
		hand := FistLandmarks()

		ratio := hand.Openness(1e-6)
		if ratio < 0.9 || ratio > 1.15 {
			t.Errorf("expected fist ratio around 1.0, got %f", ratio)
		}
	})

	t.Run("synthetic hand matches requested ratio", func(t *testing.T) {
		for _, want := range []float64{0.8, 1.0, 1.3, 1.7, 2.5} {
			hand := SyntheticHand(Point3D{X: 0.4, Y: 0.6}, want)
			got := hand.Openness(1e-6)
			if math.Abs(got-want) > 1e-9 {
				t.Errorf("expected ratio %f, got %f", want, got)
			}
		}
	})

	t.Run("degenerate hand uses epsilon floor", func(t *testing.T) {
		var hand HandLandmarks
		for i := range FingerTips {
			hand.Points[FingerTips[i]] = Point3D{X: 0.01}
		}

		got := hand.Openness(0.01)
		if math.Abs(got-1.0) > epsilon {
			t.Errorf("expected ratio 1.0 with epsilon floor, got %f", got)
		}
	})

	t.Run("depth is ignored", func(t *testing.T) {
		flat := SyntheticHand(Point3D{X: 0.5, Y: 0.5}, 2.0)
		deep := flat
		for i := range FingerTips {
			deep.Points[FingerTips[i]].Z = 5.0
		}

		if math.Abs(flat.Openness(1e-6)-deep.Openness(1e-6)) > epsilon {
			t.Error("expected depth to have no effect on openness")
		}
	})
}

func TestHandLandmarks_Usable(t *testing.T) {
	t.Run("finite hand is usable", func(t *testing.T) {
		hand := OpenPalmLandmarks()
		if !hand.Usable() {
			t.Error("expected open palm to be usable")
		}
	})

	t.Run("nil hand is not usable", func(t *testing.T) {
		var hand *HandLandmarks
		if hand.Usable() {
			t.Error("expected nil hand to be unusable")
		}
	})

	t.Run("NaN wrist is not usable", func(t *testing.T) {
		hand := OpenPalmLandmarks()
		hand.Points[Wrist].X = math.NaN()
		if hand.Usable() {
			t.Error("expected NaN wrist to be unusable")
		}
	})

	t.Run("infinite fingertip is not usable", func(t *testing.T) {
		hand := OpenPalmLandmarks()
		hand.Points[RingTip].Y = math.Inf(1)
		if hand.Usable() {
			t.Error("expected infinite fingertip to be unusable")
		}
	})

	t.Run("NaN thumb is ignored", func(t *testing.T) {
		hand := OpenPalmLandmarks()
		hand.Points[ThumbTip].X = math.NaN()
		if !hand.Usable() {
			t.Error("expected thumb to be ignored")
		}
	})
}

func TestPlanarDistance(t *testing.T) {
	got := PlanarDistance(Point3D{X: 0, Y: 0, Z: 1}, Point3D{X: 3, Y: 4, Z: -7})
	if math.Abs(got-5.0) > epsilon {
		t.Errorf("expected 5.0, got %f", got)
	}
}

func TestMockDetector(t *testing.T) {
	t.Run("returns empty hands by default", func(t *testing.T) {
		mock := NewMockDetector()

		hands, err := mock.Detect(nil)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if hands != nil {
			t.Errorf("expected nil hands, got %v", hands)
		}
	})

	t.Run("returns configured hands", func(t *testing.T) {
		mock := NewMockDetector()

		mock.SetHands([]HandLandmarks{FistLandmarks(), OpenPalmLandmarks()})

		hands, err := mock.Detect(nil)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if len(hands) != 2 {
			t.Errorf("expected 2 hands, got %d", len(hands))
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		mock := NewMockDetector()

		expectedErr := errors.New("detection failed")
		mock.SetError(expectedErr)

		hands, err := mock.Detect(nil)

		if !errors.Is(err, expectedErr) {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if hands != nil {
			t.Errorf("expected nil hands on error, got %v", hands)
		}
	})

	t.Run("scripted results are consumed in order", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetHands([]HandLandmarks{FistLandmarks()})
		mock.Queue([]HandLandmarks{OpenPalmLandmarks()}, nil)

		first, _ := mock.Detect(nil)
		if len(first) != 1 || first[0].Openness(1e-6) < 3.0 {
			t.Errorf("expected scripted open palm first, got %v", first)
		}

		second, _ := mock.Detect(nil)
		if second != nil {
			t.Errorf("expected scripted miss second, got %v", second)
		}

		third, _ := mock.Detect(nil)
		if len(third) != 1 || third[0].Openness(1e-6) > 1.2 {
			t.Errorf("expected fallback fist third, got %v", third)
		}

		if mock.Calls() != 3 {
			t.Errorf("expected 3 calls, got %d", mock.Calls())
		}
	})

	t.Run("close succeeds", func(t *testing.T) {
		mock := NewMockDetector()
		if err := mock.Close(); err != nil {
			t.Errorf("unexpected error on close: %v", err)
		}
	})
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.MaxHands != 1 {
		t.Errorf("expected MaxHands 1, got %d", config.MaxHands)
	}
	if config.MinConfidence != 0.5 {
		t.Errorf("expected MinConfidence 0.5, got %f", config.MinConfidence)
	}
}
