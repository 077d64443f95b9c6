package stats

// WindowPolicy selects one of the four canonical window behaviors.
type WindowPolicy int

const (
	// PolicySliding keeps the most recent chunks in a count-bounded deque,
	// evicting the oldest on overflow.
	PolicySliding WindowPolicy = iota
	// PolicyChunkedSliding is PolicySliding over multi-observation chunks;
	// the deque bound counts chunks, giving coarser granularity.
	PolicyChunkedSliding
	// PolicyContinuous keeps a single running aggregate with no eviction,
	// optionally reset after a configured number of insertions.
	PolicyContinuous
	// PolicyChunkedContinuous keeps a logarithmically consolidated queue of
	// chunk aggregates, optionally reset after a configured number of chunks.
	PolicyChunkedContinuous
)

// WindowState tracks whether the window has reached its bound.
type WindowState int

const (
	// StateAccumulating means the window is still below its bound.
	StateAccumulating WindowState = iota
	// StateSteady means the bound has been reached at least once. The
	// transition is monotonic: a window never returns to accumulating
	// except through an explicit Clear.
	StateSteady
)

// WindowConfig describes a window instance. MaxChunks bounds sliding deques
// and sets the reset threshold of continuous windows (0 means never reset).
// MaxDuration, when positive, additionally evicts chunks from the front of
// sliding deques until the covered duration fits; Capacity pre-sizes the
// deque for duration-bounded windows (defaults to MaxChunks).
type WindowConfig struct {
	Policy       WindowPolicy
	MaxChunks    int
	MaxDuration  int64 // ms
	Capacity     int
	TimeWeighted bool

	// VarianceClass must be set when any variance/covariance/trend-family
	// statistic will be queried. Sliding windows then recompute the merged
	// aggregate from the deque instead of inverse-merging evictions, which
	// would accumulate unbounded floating-point drift.
	VarianceClass bool
}

// Window maintains the live bounded sequence of closed chunk aggregates and
// their associative combination.
type Window struct {
	cfg   WindowConfig
	queue windowQueue
	state WindowState
}

type windowQueue interface {
	insert(Aggregate)
	size() int
	clear()
	aggregate() Aggregate
}

// NewWindow builds the window engine for the given policy. Configuration is
// assumed validated; the engine does not re-check it.
func NewWindow(cfg WindowConfig) *Window {
	w := &Window{cfg: cfg}
	switch cfg.Policy {
	case PolicySliding, PolicyChunkedSliding:
		capacity := cfg.MaxChunks
		if cfg.Capacity > capacity {
			capacity = cfg.Capacity
		}
		w.queue = newSlidingQueue(capacity, cfg)
	case PolicyContinuous:
		w.queue = &runningSingular{timeWeighted: cfg.TimeWeighted}
	case PolicyChunkedContinuous:
		w.queue = newRunningQueue(cfg.MaxChunks, cfg.TimeWeighted)
	}
	return w
}

// Push appends a closed chunk, evicting or resetting per policy, and updates
// the window state.
func (w *Window) Push(chunk Aggregate) {
	switch w.cfg.Policy {
	case PolicySliding, PolicyChunkedSliding:
		q := w.queue.(*slidingQueue)
		if w.cfg.MaxChunks > 0 {
			for q.size() >= w.cfg.MaxChunks {
				q.evict()
			}
		}
		q.insert(chunk)
		// Duration bound: drop whole chunks from the front until the covered
		// span fits. Zero or more may go per push since chunk durations need
		// not divide the window duration.
		if w.cfg.MaxDuration > 0 {
			for q.size() > 1 && q.totalDuration() > w.cfg.MaxDuration {
				q.evict()
			}
		}
		if w.atBound() {
			w.state = StateSteady
		}
	default:
		if w.cfg.MaxChunks > 0 && w.queue.size() >= w.cfg.MaxChunks {
			// Session restart for long-running continuous statistics.
			w.queue.clear()
		}
		w.queue.insert(chunk)
		if w.cfg.MaxChunks > 0 && w.queue.size() >= w.cfg.MaxChunks {
			w.state = StateSteady
		}
	}
}

func (w *Window) atBound() bool {
	if w.cfg.MaxChunks > 0 && w.queue.size() >= w.cfg.MaxChunks {
		return true
	}
	if w.cfg.MaxDuration > 0 {
		if q, ok := w.queue.(*slidingQueue); ok && q.totalDuration() >= w.cfg.MaxDuration {
			return true
		}
	}
	return false
}

// Aggregate returns the merged aggregate over all live chunks.
func (w *Window) Aggregate() Aggregate { return w.queue.aggregate() }

// Size returns the number of live chunks.
func (w *Window) Size() int { return w.queue.size() }

// State reports whether the bound has been reached.
func (w *Window) State() WindowState { return w.state }

// Clear discards all chunks and returns the window to accumulating.
func (w *Window) Clear() {
	w.queue.clear()
	w.state = StateAccumulating
}

// Seed inserts a restored aggregate as a single chunk without stepping the
// bound logic, used by restore-on-boot of continuous windows.
func (w *Window) Seed(a Aggregate) {
	if a.Count() == 0 {
		return
	}
	w.queue.insert(a)
}

// slidingQueue is a ring buffer of closed chunk aggregates. Two maintenance
// strategies for the merged total:
//
//   - variance-class windows mark the cached total dirty on every change and
//     recompute it by merging the deque back to front (most recent first, so
//     the combine steps see comparable weights);
//   - cheap windows (min/max/count/mean only) update the total incrementally,
//     inverse-merging evicted chunks and rescanning the deque's extrema only
//     when the evicted chunk owned the current one.
type slidingQueue struct {
	buf  []Aggregate
	head int
	n    int

	timeWeighted  bool
	varianceClass bool

	total  Aggregate
	dirty  bool
	spanMs int64
}

func newSlidingQueue(capacity int, cfg WindowConfig) *slidingQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &slidingQueue{
		buf:           make([]Aggregate, capacity),
		timeWeighted:  cfg.TimeWeighted,
		varianceClass: cfg.VarianceClass,
	}
}

func (q *slidingQueue) size() int { return q.n }

func (q *slidingQueue) totalDuration() int64 { return q.spanMs }

func (q *slidingQueue) at(i int) Aggregate {
	return q.buf[(q.head+i)%len(q.buf)]
}

func (q *slidingQueue) insert(a Aggregate) {
	if q.n == len(q.buf) {
		q.evict()
	}
	q.buf[(q.head+q.n)%len(q.buf)] = a
	q.n++
	q.spanMs += a.Duration()
	if q.varianceClass {
		q.dirty = true
	} else {
		q.total = Combine(q.total, a, q.timeWeighted)
	}
}

func (q *slidingQueue) evict() {
	if q.n == 0 {
		return
	}
	e := q.buf[q.head]
	q.head = (q.head + 1) % len(q.buf)
	q.n--
	q.spanMs -= e.Duration()
	if q.varianceClass {
		q.dirty = true
		return
	}
	q.total = q.subtract(q.total, e)
}

// subtract inverse-merges an evicted chunk out of the running total. Valid
// for count/duration/mean; extrema are rescanned when the evicted chunk held
// them. Second moments are not maintained on this path.
func (q *slidingQueue) subtract(total, e Aggregate) Aggregate {
	if q.n == 0 {
		return Aggregate{}
	}
	r := total
	r.count -= e.count
	r.duration -= e.duration
	r.durationSq -= e.durationSq

	var tW, eW float64
	if q.timeWeighted {
		tW, eW = float64(total.duration), float64(e.duration)
	} else {
		tW, eW = float64(total.count), float64(e.count)
	}
	r.mean = (tW*total.mean - eW*e.mean) / (tW - eW)

	if e.min == total.min && e.argMin == total.argMin {
		r.min, r.argMin = q.rescanMin()
	}
	if e.max == total.max && e.argMax == total.argMax {
		r.max, r.argMax = q.rescanMax()
	}
	return r
}

func (q *slidingQueue) rescanMin() (float64, int64) {
	m, at := q.at(0).min, q.at(0).argMin
	for i := 1; i < q.n; i++ {
		c := q.at(i)
		if c.min < m || (c.min == m && c.argMin < at) {
			m, at = c.min, c.argMin
		}
	}
	return m, at
}

func (q *slidingQueue) rescanMax() (float64, int64) {
	m, at := q.at(0).max, q.at(0).argMax
	for i := 1; i < q.n; i++ {
		c := q.at(i)
		if c.max > m || (c.max == m && c.argMax < at) {
			m, at = c.max, c.argMax
		}
	}
	return m, at
}

func (q *slidingQueue) aggregate() Aggregate {
	if !q.varianceClass {
		return q.total
	}
	if q.dirty {
		total := Aggregate{}
		for i := q.n - 1; i >= 0; i-- {
			total = Combine(total, q.at(i), q.timeWeighted)
		}
		q.total = total
		q.dirty = false
	}
	return q.total
}

func (q *slidingQueue) clear() {
	q.head = 0
	q.n = 0
	q.total = Aggregate{}
	q.dirty = false
	q.spanMs = 0
}

// runningSingular is the continuous window's storage: one running aggregate,
// no eviction.
type runningSingular struct {
	running      Aggregate
	n            int
	timeWeighted bool
}

func (r *runningSingular) insert(a Aggregate) {
	r.running = Combine(r.running, a, r.timeWeighted)
	r.n++
}

func (r *runningSingular) size() int            { return r.n }
func (r *runningSingular) aggregate() Aggregate { return r.running }

func (r *runningSingular) clear() {
	r.running = Aggregate{}
	r.n = 0
}

// defaultRunningSlots caps the consolidation queue when no reset bound is
// configured; 32 slots cover far more chunks than a device would see.
const defaultRunningSlots = 32

// runningQueue stores chunk aggregates in a logarithmically consolidated
// queue: inserting merges the tail while its count does not exceed the
// incoming aggregate's, so n chunks occupy at most log2(n)+1 slots and the
// combine steps always pair comparable weights. This keeps long continuous
// windows numerically stable with tiny memory.
type runningQueue struct {
	slots        []Aggregate
	index        int
	n            int
	timeWeighted bool
}

func newRunningQueue(chunkCapacity int, timeWeighted bool) *runningQueue {
	slots := defaultRunningSlots
	if chunkCapacity > 0 {
		slots = ceilLog2(chunkCapacity) + 1
	}
	return &runningQueue{slots: make([]Aggregate, slots), timeWeighted: timeWeighted}
}

func ceilLog2(n int) int {
	k := 0
	for v := n - 1; v > 0; v >>= 1 {
		k++
	}
	return k
}

func (r *runningQueue) insert(a Aggregate) {
	for r.index > 0 && r.slots[r.index-1].Count() <= a.Count() {
		r.index--
		a = Combine(a, r.slots[r.index], r.timeWeighted)
	}

	// Out of slots: consolidate everything. Repeated overflow consolidation
	// erodes stability; configuration should size the window to avoid it.
	if r.index == len(r.slots) {
		r.slots[0] = r.aggregate()
		r.index = 1
	}

	r.slots[r.index] = a
	r.index++
	r.n++
}

func (r *runningQueue) size() int { return r.n }

func (r *runningQueue) aggregate() Aggregate {
	total := Aggregate{}
	for i := r.index - 1; i >= 0; i-- {
		total = Combine(total, r.slots[i], r.timeWeighted)
	}
	return total
}

func (r *runningQueue) clear() {
	r.index = 0
	r.n = 0
}
