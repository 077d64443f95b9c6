package stats

// ChunkManager partitions the observation stream into chunks, each summarized
// by one Aggregate. Only the open chunk is mutable; once its closing
// condition is met the frozen aggregate is handed to the window engine and a
// fresh chunk opens. Chunking is not sample-lossy: every observation belongs
// to exactly one chunk.
//
// Exactly one closing condition is active: a target observation count
// (size > 0) or a target elapsed duration. Configuration validation
// guarantees the pair is well formed before the manager is built.
type ChunkManager struct {
	size         int   // observations per chunk; 0 selects duration mode
	duration     int64 // target elapsed ms per chunk when size == 0
	timeWeighted bool

	open    Aggregate
	count   int
	elapsed int64
}

// NewChunkManager builds a manager closing chunks after size observations,
// or, when size is 0, after duration milliseconds have elapsed.
func NewChunkManager(size int, duration int64, timeWeighted bool) *ChunkManager {
	return &ChunkManager{size: size, duration: duration, timeWeighted: timeWeighted}
}

// Add absorbs one observation. When a chunk closes, its frozen aggregate is
// returned with ok true. A count trigger closes the chunk with the
// triggering observation as its last member; a duration trigger closes the
// chunk that was open and the triggering observation becomes the first of
// the next one. Duration-closed chunks carry at least one observation.
func (m *ChunkManager) Add(value float64, duration int64, timestamp int64) (closed Aggregate, ok bool) {
	if m.size == 0 && m.count > 0 && m.elapsed+duration >= m.duration {
		closed, ok = m.close()
	}

	m.open = Combine(m.open, NewAggregate(value, duration, timestamp), m.timeWeighted)
	m.count++
	m.elapsed += duration

	if m.size > 0 && m.count >= m.size {
		closed, ok = m.close()
	}
	return closed, ok
}

func (m *ChunkManager) close() (Aggregate, bool) {
	closed := m.open
	m.open = Aggregate{}
	m.count = 0
	m.elapsed = 0
	return closed, true
}

// Open returns the aggregate of the not-yet-closed chunk.
func (m *ChunkManager) Open() Aggregate { return m.open }

// Reset discards the open chunk.
func (m *ChunkManager) Reset() {
	m.open = Aggregate{}
	m.count = 0
	m.elapsed = 0
}
