// Package tracker owns the lifecycle of observed evaluation results. A
// result is a long-running background job on the backend; the tracker polls
// it at a fixed interval while observed and non-terminal, caches the latest
// known state in the result store, and fans updates out to subscribers.
//
// Callers manage observation explicitly: Observe registers interest and
// Release drops it. There is no framework teardown hook to lean on, so every
// consumer that stops watching a result must call Release or orphan a timer.
package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxproof/eval-console/internal/observability"
	"github.com/voxproof/eval-console/internal/result"
	"github.com/voxproof/eval-console/internal/store"
)

// DefaultInterval is the fixed delay between follow-up polls. Evaluations
// complete within tens of seconds, so the interval is deterministic and
// bounded rather than exponential.
const DefaultInterval = 4 * time.Second

// Fetcher is the slice of the eval backend client the tracker needs.
type Fetcher interface {
	GetResult(ctx context.Context, id string) (*result.EvaluationResult, error)
	ReEvaluate(ctx context.Context, id string) error
	DeleteResults(ctx context.Context, ids []string) error
}

// View is a read-only snapshot of one tracked result.
type View struct {
	ID        string                   `json:"id"`
	Result    *result.EvaluationResult `json:"result,omitempty"`
	Status    result.Status            `json:"status,omitempty"`
	FetchedAt time.Time                `json:"fetched_at,omitempty"`
	InFlight  bool                     `json:"in_flight"`
	Stale     bool                     `json:"stale"`

	// TransientError is the last fetch failure while polling continues. It
	// clears on the next successful fetch and never stops the poll loop.
	TransientError string `json:"transient_error,omitempty"`

	// Deleted marks a result removed by a bulk delete while being watched.
	Deleted bool `json:"deleted,omitempty"`
}

// pollJob is the per-result polling state. One exists for each id with at
// least one observer, plus short-lived ones for observer-less refreshes.
type pollJob struct {
	id        string
	observers int

	// gen invalidates in-flight completions: a completion whose captured gen
	// no longer matches is discarded on arrival instead of applied.
	gen uint64

	inFlight bool

	// timerSeq invalidates fired-but-not-yet-run timer callbacks after a
	// timer is cancelled or replaced.
	timer    *time.Timer
	timerSeq uint64

	lastStatus   result.Status
	transientErr string
}

// Tracker is the finite-state poller over all observed results.
type Tracker struct {
	fetcher  Fetcher
	store    *store.Store
	interval time.Duration
	log      zerolog.Logger

	mu      sync.Mutex
	jobs    map[string]*pollJob
	subs    map[string]map[uint64]chan View
	nextSub uint64
}

// New creates a tracker polling at the given fixed interval. A non-positive
// interval falls back to DefaultInterval.
func New(fetcher Fetcher, st *store.Store, interval time.Duration) *Tracker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Tracker{
		fetcher:  fetcher,
		store:    st,
		interval: interval,
		log:      observability.GetLogger().With().Str("component", "tracker").Logger(),
		jobs:     make(map[string]*pollJob),
		subs:     make(map[string]map[uint64]chan View),
	}
}

// Observe registers interest in a result id. The first observer triggers an
// immediate fetch when nothing is cached or the cache is stale; a fresh
// non-terminal cache entry just (re)arms the poll timer.
func (t *Tracker) Observe(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observeLocked(id)
}

func (t *Tracker) observeLocked(id string) {
	job := t.jobs[id]
	if job == nil {
		job = &pollJob{id: id}
		t.jobs[id] = job
	}
	job.observers++
	if job.observers == 1 {
		observability.RecordObserve()
	}

	cached, ok, stale := t.store.Get(id)
	switch {
	case !ok || stale:
		t.startFetchLocked(job)
	case !cached.Status.Terminal():
		job.lastStatus = cached.Status
		t.scheduleLocked(job)
	default:
		job.lastStatus = cached.Status
	}
}

// Release drops one observer for id. It is idempotent past zero observers.
// When the last observer leaves, the pending timer is cancelled synchronously
// and any in-flight fetch is marked discard-on-arrival.
func (t *Tracker) Release(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job := t.jobs[id]
	if job == nil {
		return
	}
	if job.observers > 0 {
		job.observers--
	}
	if job.observers == 0 {
		t.dropJobLocked(job, true)
	}
}

// dropJobLocked removes a job, invalidating its timer and any in-flight
// completion.
func (t *Tracker) dropJobLocked(job *pollJob, recordRelease bool) {
	job.gen++
	t.cancelTimerLocked(job)
	delete(t.jobs, job.id)
	if recordRelease {
		observability.RecordRelease()
	}
}

// Refresh performs an immediate fetch for id, bypassing the schedule. It is
// coalesced with any fetch already in flight. Refreshing an unobserved id
// runs a one-shot fetch that does not arm follow-up polling.
func (t *Tracker) Refresh(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job := t.jobs[id]
	if job == nil {
		job = &pollJob{id: id}
		t.jobs[id] = job
	}
	t.startFetchLocked(job)
}

// ReEvaluate asks the backend to restart evaluation for id. On success the
// cached status rolls back to queued and polling resumes; on failure the
// cache is left untouched so the UI cannot show a false success state.
func (t *Tracker) ReEvaluate(ctx context.Context, id string) error {
	if err := t.fetcher.ReEvaluate(ctx, id); err != nil {
		observability.RecordMutation("reevaluate", false)
		return err
	}
	observability.RecordMutation("reevaluate", true)

	t.mu.Lock()
	defer t.mu.Unlock()

	if cached, ok, _ := t.store.Get(id); ok {
		reset := *cached
		reset.Status = result.StatusQueued
		reset.ErrorMessage = ""
		reset.MetricScores = result.MetricScores{}
		t.store.Put(id, &reset)
	} else {
		t.store.Invalidate(id)
	}

	if job := t.jobs[id]; job != nil {
		job.lastStatus = result.StatusQueued
		t.startFetchLocked(job)
	}
	t.notifyLocked(id)
	return nil
}

// Delete removes the given results from the backend and, on success,
// invalidates their cache entries and stops their polling. Watchers are sent
// a final tombstone view.
func (t *Tracker) Delete(ctx context.Context, ids []string) error {
	if err := t.fetcher.DeleteResults(ctx, ids); err != nil {
		observability.RecordMutation("delete", false)
		return err
	}
	observability.RecordMutation("delete", true)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.store.Invalidate(ids...)
	for _, id := range ids {
		if job := t.jobs[id]; job != nil {
			t.dropJobLocked(job, job.observers > 0)
		}
		for _, ch := range t.subs[id] {
			select {
			case ch <- View{ID: id, Deleted: true}:
			default:
			}
		}
	}
	return nil
}

// Snapshot returns the current view of a result id.
func (t *Tracker) Snapshot(id string) View {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.viewLocked(id)
}

// Subscribe observes id and returns a channel of views pushed after every
// applied state change. The returned cancel function closes the channel and
// releases the observation; it is safe to call more than once.
func (t *Tracker) Subscribe(id string) (<-chan View, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.observeLocked(id)

	key := t.nextSub
	t.nextSub++
	ch := make(chan View, 8)
	if t.subs[id] == nil {
		t.subs[id] = make(map[uint64]chan View)
	}
	t.subs[id][key] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()

			if m := t.subs[id]; m != nil {
				delete(m, key)
				if len(m) == 0 {
					delete(t.subs, id)
				}
			}
			close(ch)

			if job := t.jobs[id]; job != nil {
				if job.observers > 0 {
					job.observers--
				}
				if job.observers == 0 {
					t.dropJobLocked(job, true)
				}
			}
		})
	}
	return ch, cancel
}

// startFetchLocked begins a fetch for the job unless one is already in
// flight (the at-most-one-in-flight invariant). A pending timer is cancelled
// so a refresh does not double-schedule.
func (t *Tracker) startFetchLocked(job *pollJob) {
	if job.inFlight {
		return
	}
	job.inFlight = true
	t.cancelTimerLocked(job)

	gen := job.gen
	go t.fetch(job, gen)
}

// scheduleLocked arms exactly one follow-up fetch after the fixed interval.
func (t *Tracker) scheduleLocked(job *pollJob) {
	if job.timer != nil || job.inFlight {
		return
	}

	job.timerSeq++
	seq := job.timerSeq
	job.timer = time.AfterFunc(t.interval, func() {
		t.mu.Lock()
		defer t.mu.Unlock()

		// Pointer identity guards against a released-and-reobserved id: the
		// new observation gets a fresh job, so a stale callback never runs
		// against it.
		if t.jobs[job.id] != job || job.timerSeq != seq {
			return // cancelled or superseded while queued
		}
		job.timer = nil
		if job.inFlight {
			return // coalesced, never queued behind the in-flight fetch
		}
		t.startFetchLocked(job)
	})
}

func (t *Tracker) cancelTimerLocked(job *pollJob) {
	if job.timer != nil {
		job.timer.Stop()
		job.timer = nil
	}
	job.timerSeq++
}

// fetch runs outside the lock and applies its completion under it.
// Completions are applied in the order they resolve; a completion for a
// released or superseded observation is discarded.
func (t *Tracker) fetch(job *pollJob, gen uint64) {
	id := job.id
	start := time.Now()
	res, err := t.fetcher.GetResult(context.Background(), id)
	elapsed := time.Since(start).Seconds()

	t.mu.Lock()
	defer t.mu.Unlock()

	// Identity and generation must both hold: Release deletes the job (a
	// re-observe builds a fresh one), and Delete bumps gen, so a completion
	// from before either is discarded instead of applied.
	if t.jobs[id] != job || job.gen != gen {
		observability.RecordPoll("discarded", elapsed)
		return
	}
	job.inFlight = false

	if err != nil {
		// Transient failure: keep the last known good state and keep
		// polling, the job on the backend may well still be progressing.
		job.transientErr = err.Error()
		observability.RecordPoll("error", elapsed)
		t.log.Warn().Err(err).Str("result_id", id).Msg("result fetch failed")

		if job.observers > 0 && !job.lastStatus.Terminal() {
			t.scheduleLocked(job)
		} else if job.observers == 0 {
			t.dropJobLocked(job, false)
		}
		t.notifyLocked(id)
		return
	}

	job.transientErr = ""
	if res.Status != job.lastStatus {
		observability.RecordStatusTransition(string(res.Status))
		t.log.Debug().
			Str("result_id", id).
			Str("from", string(job.lastStatus)).
			Str("to", string(res.Status)).
			Msg("result status changed")
	}
	job.lastStatus = res.Status
	t.store.Put(id, res)
	observability.RecordPoll("success", elapsed)

	if job.observers == 0 {
		// One-shot refresh of an unobserved id: apply and stand down.
		t.dropJobLocked(job, false)
	} else if !res.Status.Terminal() {
		t.scheduleLocked(job)
	}
	t.notifyLocked(id)
}

func (t *Tracker) viewLocked(id string) View {
	v := View{ID: id}
	if res, ok, stale := t.store.Get(id); ok {
		v.Result = res
		v.Status = res.Status
		v.Stale = stale
		if at, ok := t.store.FetchedAt(id); ok {
			v.FetchedAt = at
		}
	}
	if job := t.jobs[id]; job != nil {
		v.InFlight = job.inFlight
		v.TransientError = job.transientErr
		if v.Status == "" {
			v.Status = job.lastStatus
		}
	}
	return v
}

func (t *Tracker) notifyLocked(id string) {
	subs := t.subs[id]
	if len(subs) == 0 {
		return
	}
	v := t.viewLocked(id)
	for _, ch := range subs {
		select {
		case ch <- v:
		default: // slow consumer, drop rather than block the tracker
		}
	}
}
