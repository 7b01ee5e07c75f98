package audio

import (
	"math"
	"reflect"
	"testing"
)

func rampSignal(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i%100)/100.0 - 0.5
	}
	return out
}

func TestPan_CenterIsBalanced(t *testing.T) {
	mono := rampSignal(480)
	left, right := Pan(mono, 0.0, 24000)

	if len(left) != len(mono) {
		t.Fatalf("center pan should add no delay: got %d samples, want %d", len(left), len(mono))
	}
	for i := range left {
		if left[i] != right[i] {
			t.Fatalf("sample %d: left %f != right %f, center must be balanced", i, left[i], right[i])
		}
	}
}

func TestPan_ChannelLengthsAlwaysEqual(t *testing.T) {
	mono := rampSignal(333)
	positions := []float64{-1.0, -0.7, -0.4, -0.1, 0.0, 0.1, 0.4, 0.7, 1.0}
	for _, pos := range positions {
		left, right := Pan(mono, pos, 24000)
		if len(left) != len(right) {
			t.Errorf("position %v: left %d samples, right %d samples", pos, len(left), len(right))
		}
	}
}

func TestPan_SymmetryLaw(t *testing.T) {
	mono := rampSignal(1000)
	for _, pos := range []float64{0.2, 0.4, 0.8, 1.0} {
		l1, r1 := Pan(mono, pos, 24000)
		l2, r2 := Pan(mono, -pos, 24000)
		if !reflect.DeepEqual(l1, r2) {
			t.Errorf("position %v: left(+pos) must equal right(-pos)", pos)
		}
		if !reflect.DeepEqual(r1, l2) {
			t.Errorf("position %v: right(+pos) must equal left(-pos)", pos)
		}
	}
}

func TestPan_DelayOnOppositeChannel(t *testing.T) {
	mono := make([]float32, 100)
	for i := range mono {
		mono[i] = 0.5
	}
	// position 0.5 at 24 kHz: delay = round(0.5 * 0.6 * 24) = 7 samples
	left, right := Pan(mono, 0.5, 24000)

	wantDelay := 7
	if len(left) != len(mono)+wantDelay {
		t.Fatalf("expected %d samples, got %d", len(mono)+wantDelay, len(left))
	}
	for i := 0; i < wantDelay; i++ {
		if left[i] != 0 {
			t.Errorf("left sample %d should be leading silence, got %f", i, left[i])
		}
	}
	if left[wantDelay] == 0 {
		t.Error("left channel signal should start after the delay")
	}
	if right[0] == 0 {
		t.Error("right channel (source side) should not be delayed")
	}
	for i := len(mono); i < len(right); i++ {
		if right[i] != 0 {
			t.Errorf("right sample %d should be trailing silence, got %f", i, right[i])
		}
	}
}

func TestPan_EqualPowerCurve(t *testing.T) {
	for _, pos := range []float64{-1.0, -0.5, 0.0, 0.3, 0.9, 1.0} {
		lg, rg := panGains(pos)
		power := float64(lg)*float64(lg) + float64(rg)*float64(rg)
		if math.Abs(power-1.0) > 1e-6 {
			t.Errorf("position %v: total power %f, want 1.0", pos, power)
		}
	}
}

func TestPan_FullLeftSilencesRight(t *testing.T) {
	mono := []float32{0.5, 0.5, 0.5}
	left, right := Pan(mono, -1.0, 24000)

	if left[0] == 0 {
		t.Error("full left pan should keep the left channel audible")
	}
	for i, s := range right {
		if math.Abs(float64(s)) > 1e-6 {
			t.Errorf("right sample %d should be silent at full left pan, got %f", i, s)
		}
	}
}

func TestPan_Deterministic(t *testing.T) {
	mono := rampSignal(500)
	l1, r1 := Pan(mono, 0.4, 24000)
	l2, r2 := Pan(mono, 0.4, 24000)
	if !reflect.DeepEqual(l1, l2) || !reflect.DeepEqual(r1, r2) {
		t.Error("identical input must produce bit-identical output")
	}
}

func TestDelaySamples(t *testing.T) {
	tests := []struct {
		position   float64
		sampleRate int
		want       int
	}{
		{0.0, 24000, 0},
		{1.0, 24000, 14},  // 0.6 ms * 24 samples/ms = 14.4 -> 14
		{-1.0, 24000, 14}, // magnitude only
		{0.5, 24000, 7},   // 7.2 -> 7
		{1.0, 16000, 10},  // 9.6 -> 10
		{0.01, 24000, 0},  // rounds to zero
	}
	for _, tt := range tests {
		got := delaySamples(tt.position, tt.sampleRate)
		if got != tt.want {
			t.Errorf("delaySamples(%v, %d) = %d, want %d", tt.position, tt.sampleRate, got, tt.want)
		}
	}
}
