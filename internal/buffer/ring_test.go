package buffer

import "testing"

func TestRingKeepsMostRecent(t *testing.T) {
	ring := NewRing[int](3)
	for i := 1; i <= 5; i++ {
		ring.Add(i)
	}

	if ring.Len() != 3 {
		t.Fatalf("expected len 3, got %d", ring.Len())
	}
	got := ring.List()
	want := []int{3, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestRingPartialFill(t *testing.T) {
	ring := NewRing[string](4)
	ring.Add("a")
	ring.Add("b")

	got := ring.List()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("expected [a b], got %v", got)
	}
}

func TestRingEmpty(t *testing.T) {
	ring := NewRing[int](2)
	if ring.Len() != 0 {
		t.Fatalf("expected empty ring, got len %d", ring.Len())
	}
	if ring.List() != nil {
		t.Fatalf("expected nil list, got %v", ring.List())
	}
}
