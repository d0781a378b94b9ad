package oval

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"
)

func shuffled(edges []Edge, seed int64, flip bool) []Edge {
	out := make([]Edge, len(edges))
	copy(out, edges)
	r := rand.New(rand.NewSource(seed))
	r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	if flip {
		for i := range out {
			if r.Intn(2) == 0 {
				out[i] = out[i].Reversed()
			}
		}
	}
	return out
}

func sameEdgeSet(a, b []Edge) bool {
	ca, cb := Canonical(a), Canonical(b)
	if len(ca) != len(cb) {
		return false
	}
	for i := range ca {
		if ca[i] != cb[i] {
			return false
		}
	}
	return true
}

func TestOrderFaceOval(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		input := shuffled(FaceOval, seed, seed%2 == 1)

		order, err := Order(input)
		if err != nil {
			t.Fatalf("seed %d: Order() error = %v", seed, err)
		}
		if len(order) != len(FaceOval) {
			t.Fatalf("seed %d: len = %d, want %d", seed, len(order), len(FaceOval))
		}
		for i := 0; i < len(order)-1; i++ {
			if order[i].To != order[i+1].From {
				t.Fatalf("seed %d: edge %d %+v does not chain into %+v", seed, i, order[i], order[i+1])
			}
		}
		if order[len(order)-1].To != order[0].From {
			t.Fatalf("seed %d: chain not closed", seed)
		}
		if !sameEdgeSet(order, FaceOval) {
			t.Fatalf("seed %d: edge set changed", seed)
		}
	}
}

func TestOrderIsStable(t *testing.T) {
	first, err := Order(FaceOval)
	if err != nil {
		t.Fatal(err)
	}
	again, err := Order(shuffled(FaceOval, 42, true))
	if err != nil {
		t.Fatal(err)
	}
	for i := range first {
		if first[i] != again[i] {
			t.Fatalf("order differs at %d: %+v vs %+v", i, first[i], again[i])
		}
	}
}

func TestOrderMalformed(t *testing.T) {
	tests := []struct {
		name  string
		edges []Edge
	}{
		{"empty", nil},
		{"too short", []Edge{{1, 2}, {2, 1}}},
		{"open chain", []Edge{{1, 2}, {2, 3}, {3, 4}}},
		{"branch", []Edge{{1, 2}, {2, 3}, {3, 1}, {1, 4}}},
		{"two cycles", []Edge{{1, 2}, {2, 3}, {3, 1}, {4, 5}, {5, 6}, {6, 4}}},
		{"self loop", []Edge{{1, 1}, {1, 2}, {2, 1}}},
		{"duplicate", []Edge{{1, 2}, {2, 1}, {2, 3}, {3, 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Order(tt.edges)
			if !errors.Is(err, ErrMalformedTopology) {
				t.Errorf("Order() error = %v, want ErrMalformedTopology", err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	if err := Validate([]Edge{{1, 2}, {2, 3}, {3, 1}}); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if err := Validate([]Edge{{1, 2}, {3, 2}, {3, 1}}); !errors.Is(err, ErrMalformedTopology) {
		t.Errorf("Validate() error = %v, want ErrMalformedTopology", err)
	}
	if v := Vertices([]Edge{{1, 2}, {2, 3}, {3, 1}}); len(v) != 3 || v[0] != 1 || v[2] != 3 {
		t.Errorf("Vertices() = %v", v)
	}
}

func TestFingerprintIgnoresListing(t *testing.T) {
	a := Fingerprint(FaceOval)
	b := Fingerprint(shuffled(FaceOval, 7, true))
	if a != b {
		t.Errorf("fingerprints differ: %s vs %s", a, b)
	}
	if a == Fingerprint(FaceOval[:10]) {
		t.Error("different topologies share a fingerprint")
	}
}

func TestCache(t *testing.T) {
	cache, err := NewCache(context.Background(), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	want, err := Order(FaceOval)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		got, err := cache.Order(shuffled(FaceOval, int64(i), true))
		if err != nil {
			t.Fatalf("Order() error = %v", err)
		}
		if len(got) != len(want) {
			t.Fatalf("len = %d, want %d", len(got), len(want))
		}
		for j := range want {
			if got[j] != want[j] {
				t.Fatalf("call %d: edge %d = %+v, want %+v", i, j, got[j], want[j])
			}
		}
	}
	if cache.Len() != 1 {
		t.Errorf("Len() = %d, want 1", cache.Len())
	}

	if _, err := cache.Order([]Edge{{1, 2}, {2, 3}}); !errors.Is(err, ErrMalformedTopology) {
		t.Errorf("Order() error = %v, want ErrMalformedTopology", err)
	}
}

func TestCachePutLookup(t *testing.T) {
	cache, err := NewCache(context.Background(), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	fp := Fingerprint(FaceOval)
	if _, ok, err := cache.Lookup(fp); ok || err != nil {
		t.Fatalf("Lookup() on empty cache = %v, %v", ok, err)
	}

	order, err := Order(FaceOval)
	if err != nil {
		t.Fatal(err)
	}
	got, err := cache.Put(order)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if got != fp {
		t.Errorf("Put() fingerprint = %s, want %s", got, fp)
	}

	cached, ok, err := cache.Lookup(fp)
	if !ok || err != nil {
		t.Fatalf("Lookup() = %v, %v", ok, err)
	}
	for i := range order {
		if cached[i] != order[i] {
			t.Fatalf("edge %d = %+v, want %+v", i, cached[i], order[i])
		}
	}

	if _, err := cache.Put([]Edge{{1, 2}, {3, 1}}); !errors.Is(err, ErrMalformedTopology) {
		t.Errorf("Put() error = %v, want ErrMalformedTopology", err)
	}
	if cache.Len() != 1 {
		t.Errorf("Len() = %d, want 1", cache.Len())
	}
}
