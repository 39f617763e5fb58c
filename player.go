package main

// Player is a connected owner and its view of the world
type Player struct {
	ID         OwnerID
	Name       string
	View       *View
	Attaches   int
	JoinedTick uint64
}

// NewPlayer creates a player with an empty grid
func NewPlayer(id OwnerID, name string, store OwnershipStore, cfg EngineConfig, events BlockEvents) *Player {
	v := NewView(id, store, cfg)
	v.Reconciler.SetEvents(events)
	return &Player{
		ID:   id,
		Name: name,
		View: v,
	}
}

// State builds the frame this player's client renders
func (p *Player) State(tick uint64, free []BlockRecord) GridState {
	st := GridState{
		Tick: tick,
		Self: p.ID,
		Free: free,
	}
	st.Local, _ = p.View.Describe(p.ID)
	for _, owner := range p.View.Registry.Owners() {
		if owner == p.ID {
			continue
		}
		if gv, ok := p.View.Describe(owner); ok {
			st.Remotes = append(st.Remotes, gv)
		}
	}
	return st
}

// restore places persisted cells back into the local grid. Cells whose block
// the view has not seen, or that no longer fit, are skipped; the next
// reconciliation pass settles the rest.
func (p *Player) restore(gv GridView) int {
	n := 0
	for _, c := range gv.Cells {
		ref, ok := p.View.Scene.Lookup(c.Block)
		if !ok {
			continue
		}
		if p.View.Registry.restore(p.ID, c.Pos, ref) {
			n++
		}
	}
	return n
}
