package main

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy bounds how failed release writes are retried
type RetryPolicy struct {
	MaxAttempts     int           `yaml:"max_attempts" json:"max_attempts" env:"MAX_ATTEMPTS"`
	InitialInterval time.Duration `yaml:"initial_interval" json:"initial_interval" env:"INITIAL_INTERVAL"`
	MaxInterval     time.Duration `yaml:"max_interval" json:"max_interval" env:"MAX_INTERVAL"`
	Multiplier      float64       `yaml:"multiplier" json:"multiplier" env:"MULTIPLIER"`
	// VisibilityTicks is how long a written release may stay invisible in
	// snapshots before it is written again.
	VisibilityTicks uint64 `yaml:"visibility_ticks" json:"visibility_ticks" env:"VISIBILITY_TICKS"`
}

// DefaultRetryPolicy retries on the next tick and backs off up to 2s
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     8,
		InitialInterval: TickDuration,
		MaxInterval:     2 * time.Second,
		Multiplier:      2,
		VisibilityTicks: 4 * TickRate,
	}
}

type release struct {
	id       BlockID
	x, y     int32
	attempts int
	due      uint64
	written  bool
	since    uint64
	bo       *backoff.ExponentialBackOff
}

// releaseQueue holds blocks an owner gave up but the store still assigns to
// it. While a block sits here it is never reclaimed. A read-only queue never
// writes; it only hides blocks until the owner's own process releases them.
type releaseQueue struct {
	owner    OwnerID
	policy   RetryPolicy
	tickDur  time.Duration
	readOnly bool
	entries  map[BlockID]*release
}

func newReleaseQueue(owner OwnerID, policy RetryPolicy, tickDur time.Duration, readOnly bool) *releaseQueue {
	if tickDur <= 0 {
		tickDur = TickDuration
	}
	return &releaseQueue{
		owner:    owner,
		policy:   policy,
		tickDur:  tickDur,
		readOnly: readOnly,
		entries:  make(map[BlockID]*release),
	}
}

func (q *releaseQueue) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = q.policy.InitialInterval
	bo.MaxInterval = q.policy.MaxInterval
	bo.Multiplier = q.policy.Multiplier
	bo.RandomizationFactor = 0
	bo.Reset()
	return bo
}

// add queues a release due on the given tick
func (q *releaseQueue) add(id BlockID, x, y int32, tick uint64) {
	if _, ok := q.entries[id]; ok {
		return
	}
	q.entries[id] = &release{
		id:      id,
		x:       x,
		y:       y,
		due:     tick,
		written: q.readOnly,
		since:   tick,
		bo:      q.newBackOff(),
	}
}

// rebase moves every entry onto another tick clock
func (q *releaseQueue) rebase(now uint64) {
	for _, e := range q.entries {
		e.due = now
		e.since = now
	}
}

func (q *releaseQueue) pending(id BlockID) bool {
	_, ok := q.entries[id]
	return ok
}

func (q *releaseQueue) len() int {
	return len(q.entries)
}

// settle drops entries the snapshot no longer assigns to the owner, and
// re-arms written entries that stayed invisible for too long.
func (q *releaseQueue) settle(snap *Snapshot, tick uint64) {
	for id, e := range q.entries {
		rec, ok := snap.Get(id)
		if !ok || !rec.Owner.Is(q.owner) {
			delete(q.entries, id)
			continue
		}
		if e.written && q.policy.VisibilityTicks > 0 && tick-e.since >= q.policy.VisibilityTicks {
			if q.readOnly {
				delete(q.entries, id)
				continue
			}
			e.written = false
			e.due = tick
			e.since = tick
		}
	}
}

// flushResult counts what one flush did
type flushResult struct {
	written []BlockID
	failed  []BlockID
	dropped []BlockID
}

// flush writes every due release. Failures are rescheduled with backoff
// until MaxAttempts is reached, then dropped.
func (q *releaseQueue) flush(ctx context.Context, store OwnershipStore, tick uint64) flushResult {
	var res flushResult
	if q.readOnly || store == nil {
		return res
	}
	ids := make([]BlockID, 0, len(q.entries))
	for id, e := range q.entries {
		if !e.written && e.due <= tick {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		e := q.entries[id]
		err := store.SetOwner(ctx, id, NoOwner(), e.x, e.y)
		if err == nil {
			e.written = true
			e.since = tick
			res.written = append(res.written, id)
			continue
		}
		e.attempts++
		if q.policy.MaxAttempts > 0 && e.attempts >= q.policy.MaxAttempts {
			log.Printf("reconcile: owner %d giving up release of block %d after %d attempts: %v", q.owner, id, e.attempts, err)
			delete(q.entries, id)
			res.dropped = append(res.dropped, id)
			continue
		}
		e.due = tick + q.ticks(e.bo.NextBackOff())
		log.Printf("reconcile: owner %d release of block %d failed (attempt %d, retry at tick %d): %v", q.owner, id, e.attempts, e.due, err)
		res.failed = append(res.failed, id)
	}
	return res
}

func (q *releaseQueue) ticks(d time.Duration) uint64 {
	n := uint64(d / q.tickDur)
	if n < 1 {
		n = 1
	}
	return n
}
