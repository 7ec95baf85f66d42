package fslm

import "testing"

func TestQuantizerRoundTrip(t *testing.T) {
	q := NewEqualSizeBinQuantizer(20)
	// Half a bin, plus float32 rounding slack: at exact bin-midpoint
	// ties (x = 2, 6, 14, ...) the error equals half a bin in exact
	// arithmetic, and float32 values near 14 are ~1e-6 apart.
	maxErr := float32(20)/(2*255) + 1e-6
	for i := 0; i <= 200; i++ {
		x := float32(i) / 10 // 0.0 .. 20.0
		got := q.Decode(q.Encode(x))
		diff := got - x
		if diff < 0 {
			diff = -diff
		}
		if diff > maxErr {
			t.Errorf("x=%g: |Decode(Encode(x))-x| = %g > %g", x, diff, maxErr)
		}
	}
}

func TestQuantizerClamps(t *testing.T) {
	q := NewEqualSizeBinQuantizer(20)
	if got := q.Encode(-5); got != 0 {
		t.Errorf("Encode(-5) = %d; want 0", got)
	}
	if got := q.Encode(100); got != 255 {
		t.Errorf("Encode(100) = %d; want 255", got)
	}
	if got := q.Decode(255); got != 20 {
		t.Errorf("Decode(255) = %g; want 20", got)
	}
}
