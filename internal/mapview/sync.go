package mapview

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/samirrijal/turbinemap/internal/core/domain"
	"github.com/samirrijal/turbinemap/internal/pkg/logging"
)

// Querier is the query contract the map engine talks to. HTTPClient
// implements it over the REST API; usecases.TurbineService implements it
// in process.
type Querier interface {
	InBoundingBox(ctx context.Context, box domain.BoundingBox, limit int) ([]domain.Turbine, error)
	Nearest(ctx context.Context, p domain.GeoPoint, k int) ([]domain.NearbyTurbine, error)
}

// State is the fetch state of a Sync.
type State int

const (
	Idle State = iota
	Fetching
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Error:
		return "error"
	}
	return "unknown"
}

// Status is what change listeners receive.
type Status struct {
	State State
	Err   error  // set in Error
	Seq   uint64 // sequence of the applied snapshot
	Count int    // turbines in the applied snapshot
}

// Sync re-fetches the working set whenever the viewport settles. Responses
// may arrive in any order; only the response to the most recent request is
// applied, anything superseded is discarded on arrival. The working set is
// swapped atomically, so readers never see a partial snapshot.
type Sync struct {
	client Querier
	limit  int

	current atomic.Pointer[WorkingSet]

	mu        sync.Mutex
	viewport  *Viewport
	nextSeq   uint64 // last issued sequence
	issuedBox domain.BoundingBox
	state     State
	lastErr   error
	listeners []func(Status)
	version   uint64 // bumped on every status change

	notifyMu  sync.Mutex
	delivered uint64 // version of the last status handed to listeners

	wg sync.WaitGroup
}

// NewSync creates a Sync. limit is passed to every bounding-box query; 0
// means the server maximum.
func NewSync(client Querier, limit int) *Sync {
	s := &Sync{client: client, limit: limit}
	s.current.Store(emptyWorkingSet())
	return s
}

// OnChange registers fn to run after every state or snapshot change. fn
// runs on the goroutine that caused the change (Settle or Refresh for
// Fetching, the fetch goroutine otherwise), never concurrently with another
// listener call. A status overtaken by a newer one before delivery is
// dropped, so listeners never see an out-of-date state last.
func (s *Sync) OnChange(fn func(Status)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Snapshot returns the current working set. It is never nil.
func (s *Sync) Snapshot() *WorkingSet { return s.current.Load() }

// State returns the fetch state.
func (s *Sync) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError returns the failure of the newest request while in Error.
func (s *Sync) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Viewport returns the last settled viewport.
func (s *Sync) Viewport() (Viewport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.viewport == nil {
		return Viewport{}, false
	}
	return *s.viewport, true
}

// Start runs the initial fetch for vp.
func (s *Sync) Start(ctx context.Context, vp Viewport) (bool, error) {
	return s.Settle(ctx, vp)
}

// Settle records vp as the current viewport and fetches its bounding box
// unless that box was already requested and has not failed. It reports
// whether a fetch was started.
func (s *Sync) Settle(ctx context.Context, vp Viewport) (bool, error) {
	if err := vp.Validate(); err != nil {
		return false, err
	}
	box := vp.Bounds()

	s.mu.Lock()
	s.viewport = &vp
	if s.nextSeq > 0 && s.state != Error && box == s.issuedBox {
		s.mu.Unlock()
		logging.FromContext(ctx).Debug("viewport unchanged, fetch skipped", "bbox", box.String())
		return false, nil
	}
	s.fetchLocked(ctx, box)
	return true, nil
}

// Refresh re-fetches the current viewport even if it has not moved. It is
// a no-op before the first settle.
func (s *Sync) Refresh(ctx context.Context) bool {
	s.mu.Lock()
	if s.viewport == nil {
		s.mu.Unlock()
		return false
	}
	s.fetchLocked(ctx, s.viewport.Bounds())
	return true
}

// Wait blocks until every in-flight fetch has completed.
func (s *Sync) Wait() { s.wg.Wait() }

// fetchLocked issues a request and unlocks s.mu.
func (s *Sync) fetchLocked(ctx context.Context, box domain.BoundingBox) {
	s.nextSeq++
	seq := s.nextSeq
	s.issuedBox = box
	s.state = Fetching
	status, version := s.changedLocked()
	listeners := s.listeners
	s.wg.Add(1)
	s.mu.Unlock()

	s.publish(listeners, status, version)
	logging.FromContext(ctx).Debug("fetching viewport", "seq", seq, "bbox", box.String())

	go func() {
		defer s.wg.Done()
		records, err := s.client.InBoundingBox(ctx, box, s.limit)
		s.complete(ctx, seq, box, records, err)
	}()
}

func (s *Sync) complete(ctx context.Context, seq uint64, box domain.BoundingBox, records []domain.Turbine, err error) {
	logger := logging.FromContext(ctx).With("seq", seq)

	s.mu.Lock()
	if seq != s.nextSeq {
		// a newer request will decide the state and the working set
		newest := s.nextSeq
		s.mu.Unlock()
		logger.Debug("superseded response discarded", "newest", newest, "error", err)
		return
	}

	if err != nil {
		s.state = Error
		s.lastErr = err
		status, version := s.changedLocked()
		listeners := s.listeners
		s.mu.Unlock()

		logger.Warn("viewport fetch failed", "error", err)
		s.publish(listeners, status, version)
		return
	}

	s.current.Store(NewWorkingSet(seq, box, records))
	s.state = Idle
	s.lastErr = nil
	status, version := s.changedLocked()
	listeners := s.listeners
	s.mu.Unlock()

	logger.Debug("working set replaced", "count", status.Count)
	s.publish(listeners, status, version)
}

func (s *Sync) changedLocked() (Status, uint64) {
	s.version++
	ws := s.current.Load()
	return Status{State: s.state, Err: s.lastErr, Seq: ws.Seq(), Count: ws.Len()}, s.version
}

// publish hands st to listeners unless a newer status was already delivered.
func (s *Sync) publish(listeners []func(Status), st Status, version uint64) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if version <= s.delivered {
		return
	}
	s.delivered = version
	notify(listeners, st)
}

func notify(listeners []func(Status), st Status) {
	for _, fn := range listeners {
		fn(st)
	}
}
