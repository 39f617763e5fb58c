package main

import "testing"

func gridWith(cells ...Pos) *Grid {
	g := NewGrid(1, GridSize{W: 4, H: 4}, 100)
	for i, p := range cells {
		g.place(p, BlockRef(i))
	}
	return g
}

func TestReachableChain(t *testing.T) {
	g := gridWith(Pos{1, 0}, Pos{2, 0}, Pos{1, 1})
	reach := Reachable(g)
	if len(reach) != 3 {
		t.Fatalf("expected 3 reachable cells, got %v", reach)
	}
	for _, p := range []Pos{{1, 0}, {2, 0}, {1, 1}} {
		if _, ok := reach[p]; !ok {
			t.Errorf("expected %v reachable", p)
		}
	}
}

func TestReachableGap(t *testing.T) {
	g := gridWith(Pos{1, 0}, Pos{3, 0})
	reach := Reachable(g)
	if len(reach) != 1 {
		t.Fatalf("expected only (1,0), got %v", reach)
	}
	if _, ok := reach[Pos{1, 0}]; !ok {
		t.Error("expected (1,0) reachable")
	}
	dis := Disconnected(g)
	if len(dis) != 1 || dis[0] != (Pos{3, 0}) {
		t.Errorf("expected (3,0) disconnected, got %v", dis)
	}
}

func TestReachableEmpty(t *testing.T) {
	if reach := Reachable(gridWith()); len(reach) != 0 {
		t.Errorf("empty grid should reach nothing, got %v", reach)
	}
}

func TestReachableDiagonalDoesNotConnect(t *testing.T) {
	g := gridWith(Pos{-1, -1}, Pos{1, -1})
	if reach := Reachable(g); len(reach) != 0 {
		t.Errorf("diagonal cells must not be reachable, got %v", reach)
	}
	if dis := Disconnected(g); len(dis) != 2 {
		t.Errorf("expected 2 disconnected cells, got %v", dis)
	}
}

func TestReachableDoesNotMutate(t *testing.T) {
	g := gridWith(Pos{1, 0}, Pos{3, 0})
	Reachable(g)
	Disconnected(g)
	if g.Len() != 2 {
		t.Errorf("analysis changed the grid: %d cells", g.Len())
	}
}

func TestDisconnectedScanOrder(t *testing.T) {
	g := gridWith(Pos{0, -3}, Pos{3, 0}, Pos{-3, 0}, Pos{-2, -2})
	got := Disconnected(g)
	want := []Pos{{-3, 0}, {3, 0}, {-2, -2}, {0, -3}}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
