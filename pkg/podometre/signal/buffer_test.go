package signal

import (
	"math"
	"testing"
)

func newTestBuffer(t *testing.T, capacity int) *Buffer {
	t.Helper()
	b, err := NewBuffer(capacity)
	if err != nil {
		t.Fatalf("NewBuffer(%d) failed: %v", capacity, err)
	}
	return b
}

func TestNewBufferRejectsNonPowerOfTwo(t *testing.T) {
	for _, c := range []int{0, -8, 3, 100, 1000} {
		if _, err := NewBuffer(c); err == nil {
			t.Errorf("Expected error for capacity %d", c)
		}
	}
	for _, c := range []int{1, 2, 64, 1024} {
		if _, err := NewBuffer(c); err != nil {
			t.Errorf("Unexpected error for capacity %d: %v", c, err)
		}
	}
}

func TestPushNeverExceedsCapacity(t *testing.T) {
	b := newTestBuffer(t, 8)

	for i := 0; i < 50; i++ {
		b.Push(float64(i))
		if b.Len() > b.Cap() {
			t.Fatalf("Buffer length %d exceeds capacity %d after %d pushes", b.Len(), b.Cap(), i+1)
		}
	}
	if !b.Full() {
		t.Error("Expected buffer to be full")
	}
}

func TestPushKeepsMostRecentInOrder(t *testing.T) {
	b := newTestBuffer(t, 4)

	b.PushAll([]float64{1, 2, 3, 4, 5, 6, 7})

	got := b.Ordered()
	want := []float64{4, 5, 6, 7}
	if len(got) != len(want) {
		t.Fatalf("Expected %d samples, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Sample %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestOrderedIsReadOnly(t *testing.T) {
	b := newTestBuffer(t, 4)
	b.PushAll([]float64{1, 2, 3})

	first := b.Ordered()
	first[0] = 99

	second := b.Ordered()
	if b.Len() != 3 {
		t.Errorf("Expected length 3 after Ordered, got %d", b.Len())
	}
	if second[0] != 1 || second[1] != 2 || second[2] != 3 {
		t.Errorf("Ordered mutated buffer contents: %v", second)
	}
}

func TestOrderedCoercesMissingSamples(t *testing.T) {
	b := newTestBuffer(t, 4)
	b.PushAll([]float64{1, math.NaN(), math.Inf(1), 2})

	got := b.Ordered()
	want := []float64{1, 0, 0, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Sample %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestReset(t *testing.T) {
	b := newTestBuffer(t, 4)
	b.PushAll([]float64{1, 2, 3, 4, 5})
	b.Reset()

	if b.Len() != 0 {
		t.Errorf("Expected empty buffer after reset, got %d", b.Len())
	}
	b.Push(9)
	if got := b.Ordered(); len(got) != 1 || got[0] != 9 {
		t.Errorf("Expected [9] after reset and push, got %v", got)
	}
}

func TestResizeKeepsNewest(t *testing.T) {
	b := newTestBuffer(t, 8)
	b.PushAll([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})

	if err := b.Resize(4); err != nil {
		t.Fatalf("Resize failed: %v", err)
	}
	got := b.Ordered()
	want := []float64{7, 8, 9, 10}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Sample %d: expected %v, got %v", i, want[i], got[i])
		}
	}

	if err := b.Resize(16); err != nil {
		t.Fatalf("Resize failed: %v", err)
	}
	if b.Len() != 4 || b.Cap() != 16 {
		t.Errorf("Expected len 4 cap 16, got len %d cap %d", b.Len(), b.Cap())
	}
	b.Push(11)
	if got := b.Ordered(); got[len(got)-1] != 11 || got[0] != 7 {
		t.Errorf("Unexpected contents after grow: %v", got)
	}

	if err := b.Resize(12); err == nil {
		t.Error("Expected error resizing to non power of two")
	}
}

func TestResetPolicyValid(t *testing.T) {
	if !PolicyReset.Valid() || !PolicySliding.Valid() {
		t.Error("Expected built-in policies to be valid")
	}
	if ResetPolicy("hybrid").Valid() {
		t.Error("Expected unknown policy to be invalid")
	}
}
