package main

import (
	"context"
	"log"
	"time"
)

// Block event kinds reported to a BlockEvents sink
const (
	EvtBlockAttach        = "block_attach"
	EvtBlockClaim         = "block_claim"
	EvtBlockDisconnect    = "block_disconnect"
	EvtBlockDetach        = "block_detach"
	EvtBlockReassign      = "block_reassign"
	EvtBlockRelease       = "block_release"
	EvtBlockReleaseFailed = "block_release_failed"
)

// BlockEvents receives grid changes, e.g. for analytics
type BlockEvents interface {
	BlockEvent(kind string, owner OwnerID, id BlockID)
}

type noEvents struct{}

func (noEvents) BlockEvent(string, OwnerID, BlockID) {}

// PassReport summarizes one reconciliation pass over one grid
type PassReport struct {
	Owner        OwnerID
	Local        bool
	Disconnected int
	Detached     int
	Reassigned   int
	Claimed      int
	Released     int
	RetryFailed  int
	Skipped      int
}

// Reconciler aligns the grids of one view with the ownership store. The grid
// of Self is released actively; every other grid is a read-only reflection.
type Reconciler struct {
	Self OwnerID

	reg     *Registry
	store   OwnershipStore
	policy  RetryPolicy
	tickDur time.Duration
	events  BlockEvents
	queues  map[OwnerID]*releaseQueue
	claims  map[BlockID]uint64 // claim written on tick, not yet visible
	tick    uint64
}

// NewReconciler creates a reconciler over a registry
func NewReconciler(self OwnerID, reg *Registry, store OwnershipStore, policy RetryPolicy, tickDur time.Duration) *Reconciler {
	r := &Reconciler{
		Self:    self,
		reg:     reg,
		store:   store,
		policy:  policy,
		tickDur: tickDur,
		events:  noEvents{},
		queues:  make(map[OwnerID]*releaseQueue),
		claims:  make(map[BlockID]uint64),
	}
	reg.Track(self)
	return r
}

// SetEvents installs an event sink
func (r *Reconciler) SetEvents(ev BlockEvents) {
	if ev == nil {
		ev = noEvents{}
	}
	r.events = ev
}

// PendingReleases returns how many blocks the local owner is still releasing
func (r *Reconciler) PendingReleases() int {
	return r.queue(r.Self).len()
}

func (r *Reconciler) queue(owner OwnerID) *releaseQueue {
	q, ok := r.queues[owner]
	if !ok {
		q = newReleaseQueue(owner, r.policy, r.tickDur, owner != r.Self)
		r.queues[owner] = q
	}
	return q
}

// Reconcile runs one pass over the local grid and then over every tracked
// remote grid, all against the same snapshot.
func (r *Reconciler) Reconcile(ctx context.Context, snap *Snapshot) []PassReport {
	r.tick++

	remotes := make(map[OwnerID]struct{})
	for _, owner := range snap.Owners() {
		if owner != r.Self {
			remotes[owner] = struct{}{}
			r.reg.Track(owner)
		}
	}
	for _, owner := range r.reg.Owners() {
		if owner == r.Self {
			continue
		}
		if _, ok := remotes[owner]; ok {
			continue
		}
		// no longer owns anything in the store
		if g, _ := r.reg.Grid(owner); g.Len() == 0 {
			r.reg.Untrack(owner)
			delete(r.queues, owner)
		}
	}

	reports := make([]PassReport, 0, len(r.reg.grids))
	reports = append(reports, r.pass(ctx, r.reg.Track(r.Self), snap, true))
	for _, owner := range r.reg.Owners() {
		if owner == r.Self {
			continue
		}
		g, _ := r.reg.Grid(owner)
		reports = append(reports, r.pass(ctx, g, snap, false))
	}
	return reports
}

type removal struct {
	pos      Pos
	reassign bool
}

func (r *Reconciler) pass(ctx context.Context, g *Grid, snap *Snapshot, local bool) PassReport {
	rep := PassReport{Owner: g.Owner, Local: local}
	scene := r.reg.scene
	q := r.queue(g.Owner)
	q.settle(snap, r.tick)

	r.prune(g, q, snap, &rep)
	if local {
		r.settleClaims(snap)
	}

	// diff the remaining cells against the snapshot
	var removals []removal
	for _, pos := range g.Positions() {
		ref, _ := g.At(pos)
		id, ok := scene.ID(ref)
		if !ok {
			log.Printf("reconcile: owner %d cell %v holds unknown ref %d", g.Owner, pos, ref)
			rep.Skipped++
			continue
		}
		rec, ok := snap.Get(id)
		if !ok {
			log.Printf("reconcile: block %d missing from ownership snapshot", id)
			rep.Skipped++
			continue
		}
		switch rec.Owner.Kind {
		case OwnerNone:
			if _, inflight := r.claims[id]; inflight && local {
				continue
			}
			removals = append(removals, removal{pos: pos})
		case OwnerPlayer:
			if rec.Owner.Player != g.Owner {
				removals = append(removals, removal{pos: pos, reassign: true})
			}
		}
	}
	for _, rm := range removals {
		ref, ok := r.reg.detach(g, rm.pos)
		if !ok {
			continue
		}
		id, _ := scene.ID(ref)
		if rm.reassign {
			rep.Reassigned++
			r.events.BlockEvent(EvtBlockReassign, g.Owner, id)
		} else {
			rep.Detached++
			r.events.BlockEvent(EvtBlockDetach, g.Owner, id)
		}
	}
	if len(removals) > 0 {
		// a removed cell may have been the only path to others
		r.prune(g, q, snap, &rep)
	}

	if local {
		res := q.flush(ctx, r.store, r.tick)
		rep.Released = len(res.written)
		rep.RetryFailed = len(res.failed) + len(res.dropped)
		for _, id := range res.written {
			r.events.BlockEvent(EvtBlockRelease, g.Owner, id)
		}
		for _, id := range res.dropped {
			r.events.BlockEvent(EvtBlockReleaseFailed, g.Owner, id)
		}
	}

	// claim blocks the store assigns to this owner that the grid lacks
	known := make(map[BlockRef]struct{}, g.Len())
	for _, ref := range g.cells {
		known[ref] = struct{}{}
	}
	for _, ref := range scene.Spawned() {
		if _, ok := known[ref]; ok {
			continue
		}
		id, _ := scene.ID(ref)
		rec, ok := snap.Get(id)
		if !ok || !rec.Owner.Is(g.Owner) || q.pending(id) {
			continue
		}
		if g.Full() {
			break
		}
		pos, ok := g.allocate()
		if !ok {
			break
		}
		if link, linked := scene.Link(ref); linked && link.OwningGrid != g.Owner {
			// the snapshot moved it here; the other grid's cell is stale
			if other, ok := r.reg.Grid(link.OwningGrid); ok {
				r.reg.detach(other, link.GridOffset)
				other.syncCursor()
				r.events.BlockEvent(EvtBlockReassign, other.Owner, id)
			} else {
				scene.clearLink(ref)
			}
		}
		r.reg.link(g, pos, ref)
		rep.Claimed++
		r.events.BlockEvent(EvtBlockClaim, g.Owner, id)
	}

	g.syncCursor()
	return rep
}

// Claimed marks a local block whose claim was just written. Its cell
// survives snapshots that still show it free until the claim becomes
// visible or VisibilityTicks pass.
func (r *Reconciler) Claimed(id BlockID) {
	r.claims[id] = r.tick
}

func (r *Reconciler) settleClaims(snap *Snapshot) {
	for id, since := range r.claims {
		rec, ok := snap.Get(id)
		expired := r.policy.VisibilityTicks > 0 && r.tick-since > r.policy.VisibilityTicks
		if !ok || !rec.Owner.IsNone() || expired {
			delete(r.claims, id)
		}
	}
}

// prune detaches every cell cut off from the origin. Only blocks the
// snapshot still assigns to the grid's owner are queued for release.
func (r *Reconciler) prune(g *Grid, q *releaseQueue, snap *Snapshot, rep *PassReport) {
	scene := r.reg.scene
	for _, pos := range Disconnected(g) {
		ref, _ := r.reg.detach(g, pos)
		rep.Disconnected++
		id, ok := scene.ID(ref)
		if !ok {
			log.Printf("reconcile: owner %d cell %v holds unknown ref %d", g.Owner, pos, ref)
			rep.Skipped++
			continue
		}
		r.events.BlockEvent(EvtBlockDisconnect, g.Owner, id)
		rec, ok := snap.Get(id)
		switch {
		case !ok:
			log.Printf("reconcile: block %d missing from ownership snapshot", id)
			rep.Skipped++
		case rec.Owner.Is(g.Owner):
			x, y := scene.Position(ref)
			q.add(id, x, y, r.tick)
		case rec.Owner.IsNone():
			rep.Detached++
			r.events.BlockEvent(EvtBlockDetach, g.Owner, id)
		default:
			rep.Reassigned++
			r.events.BlockEvent(EvtBlockReassign, g.Owner, id)
		}
	}
}

// Release gives up the local block at pos. The cell is cleared now and the
// store write happens on the next pass.
func (r *Reconciler) Release(pos Pos) bool {
	g := r.reg.Track(r.Self)
	ref, ok := r.reg.detach(g, pos)
	if !ok {
		return false
	}
	g.syncCursor()
	id, ok := r.reg.scene.ID(ref)
	if !ok {
		return true
	}
	x, y := r.reg.scene.Position(ref)
	r.queue(r.Self).add(id, x, y, r.tick+1)
	return true
}

// Abandon empties the local grid and hands over the local release queue
// holding every block the owner still has. Entries are rescheduled onto the
// caller's tick clock, due at once.
func (r *Reconciler) Abandon(now uint64) *releaseQueue {
	g := r.reg.Track(r.Self)
	q := r.queue(r.Self)
	for _, pos := range g.Positions() {
		ref, _ := r.reg.detach(g, pos)
		id, ok := r.reg.scene.ID(ref)
		if !ok {
			continue
		}
		x, y := r.reg.scene.Position(ref)
		q.add(id, x, y, now)
	}
	g.syncCursor()
	delete(r.queues, r.Self)
	clear(r.claims)
	q.rebase(now)
	return q
}
