package main

import (
	"context"
	"time"
)

// EngineConfig configures the grids and release policy of a View
type EngineConfig struct {
	Grid         GridConfig
	Release      RetryPolicy
	TickDuration time.Duration
}

// View is one owner's picture of the world: the blocks it has seen, its own
// grid and the grids of every other owner it tracks.
type View struct {
	Self       OwnerID
	Scene      *Scene
	Registry   *Registry
	Reconciler *Reconciler
}

// NewView creates a view for self backed by store
func NewView(self OwnerID, store OwnershipStore, cfg EngineConfig) *View {
	scene := NewScene()
	reg := NewRegistry(scene, cfg.Grid)
	return &View{
		Self:       self,
		Scene:      scene,
		Registry:   reg,
		Reconciler: NewReconciler(self, reg, store, cfg.Release, cfg.TickDuration),
	}
}

// Sync spawns any newly seen blocks and reconciles every grid against snap
func (v *View) Sync(ctx context.Context, snap *Snapshot) []PassReport {
	for _, rec := range snap.Records() {
		v.Scene.Spawn(rec.ID, rec.X, rec.Y)
	}
	return v.Reconciler.Reconcile(ctx, snap)
}

// AttachRequest attaches a seen block to the local grid
func (v *View) AttachRequest(id BlockID) bool {
	ref, ok := v.Scene.Lookup(id)
	if !ok {
		return false
	}
	return v.Registry.AttachRequest(ref, v.Self)
}

// Local returns the grid of Self
func (v *View) Local() *Grid {
	return v.Registry.Track(v.Self)
}

// Release gives up the local block at pos
func (v *View) Release(pos Pos) bool {
	return v.Reconciler.Release(pos)
}

// GridView is the read-only picture of one grid handed to renderers
type GridView struct {
	Owner    OwnerID     `msgpack:"o" json:"o"`
	Load     uint32      `msgpack:"l" json:"l"`
	Capacity uint32      `msgpack:"c" json:"c"`
	Next     *Pos        `msgpack:"n,omitempty" json:"n,omitempty"`
	Cells    []CellState `msgpack:"cells" json:"cells"`
}

// CellState is one occupied cell
type CellState struct {
	Pos   Pos     `msgpack:"p" json:"p"`
	Block BlockID `msgpack:"b" json:"b"`
}

// Describe returns the render view of an owner's grid
func (v *View) Describe(owner OwnerID) (GridView, bool) {
	g, ok := v.Registry.Grid(owner)
	if !ok {
		return GridView{}, false
	}
	gv := GridView{
		Owner:    g.Owner,
		Load:     g.Load,
		Capacity: g.Capacity,
		Cells:    make([]CellState, 0, g.Len()),
	}
	if p, ok := g.NextFreePos(); ok {
		gv.Next = &p
	}
	for _, p := range g.Positions() {
		ref, _ := g.At(p)
		id, _ := v.Scene.ID(ref)
		gv.Cells = append(gv.Cells, CellState{Pos: p, Block: id})
	}
	return gv, true
}
