package stats

import (
	"math"

	"go.uber.org/zap"
)

// AverageType selects how observations are weighted within aggregates.
type AverageType int

const (
	// AverageSimple weighs every observation equally.
	AverageSimple AverageType = iota
	// AverageTimeWeighted weighs each reading by how long it was current;
	// the previous value is credited with the elapsed gap.
	AverageTimeWeighted
)

// Precision selects the numeric precision of published values.
type Precision int

const (
	// PrecisionDouble publishes full float64 values.
	PrecisionDouble Precision = iota
	// PrecisionSingle rounds published values through float32, matching
	// devices that store aggregates in single precision.
	PrecisionSingle
)

// DigestConfig enables the quantile digest on an instance.
type DigestConfig struct {
	Capacity int
	Scale    ScaleFunc
	// DurationWeighted feeds each observation with its elapsed duration in
	// seconds as weight instead of the default weight of 1.
	DurationWeighted bool
	// Quantiles to publish on every firing, each in [0, 1].
	Quantiles []float64
}

// InstanceConfig fixes an instance's behavior at construction. All fields
// are validated by the configuration layer; the engine never re-checks them.
type InstanceConfig struct {
	Name string

	Window        WindowConfig
	ChunkSize     int
	ChunkDuration int64 // ms; used when ChunkSize == 0

	Average   AverageType
	Group     GroupType
	Precision Precision

	// TimeFactor converts milliseconds to the configured time unit for
	// covariance (divides) and trend (multiplies), e.g. 1000 for seconds.
	TimeFactor float64

	Statistics []Statistic
	Digest     *DigestConfig

	SendEvery   int
	SendFirstAt int
}

// Result carries one publication's derived statistics. Undefined statistics
// (below their minimum observation count) are omitted rather than published
// as NaN.
type Result struct {
	Instance  string
	Timestamp int64
	Values    map[Statistic]float64
}

// Instance glues one source sensor's chunk manager, window engine, scheduler
// and optional quantile digest together. All methods must be called from a
// single goroutine; the processor serializes observation delivery and the
// external reset/force-publish actions between observations.
type Instance struct {
	cfg    InstanceConfig
	chunks *ChunkManager
	window *Window
	sched  *Scheduler
	digest *Digest
	logger *zap.Logger

	prevValue     float64
	prevTimestamp int64
	havePrev      bool
}

// NewInstance builds an instance from validated configuration.
func NewInstance(cfg InstanceConfig, logger *zap.Logger) *Instance {
	timeWeighted := cfg.Average == AverageTimeWeighted

	wcfg := cfg.Window
	wcfg.TimeWeighted = timeWeighted
	for _, s := range cfg.Statistics {
		if varianceClass(s) {
			wcfg.VarianceClass = true
			break
		}
	}

	chunkSize := cfg.ChunkSize
	if chunkSize == 0 && cfg.ChunkDuration == 0 {
		// Non-chunked operation: every observation is its own chunk.
		chunkSize = 1
	}

	inst := &Instance{
		cfg:    cfg,
		chunks: NewChunkManager(chunkSize, cfg.ChunkDuration, timeWeighted),
		window: NewWindow(wcfg),
		sched:  NewScheduler(cfg.SendEvery, cfg.SendFirstAt),
		logger: logger,
	}
	if cfg.Digest != nil {
		inst.digest = NewDigest(cfg.Digest.Capacity, cfg.Digest.Scale)
	}

	logger.Info("statistics instance initialized",
		zap.String("instance", cfg.Name),
		zap.Int("window_policy", int(wcfg.Policy)),
		zap.Int("max_chunks", wcfg.MaxChunks),
		zap.Int("send_every", cfg.SendEvery),
		zap.Bool("time_weighted", timeWeighted),
		zap.Bool("digest", inst.digest != nil),
	)
	return inst
}

// Observe ingests one reading with its arrival timestamp in monotonic
// milliseconds. It returns a Result and true when the publication scheduler
// fires. All work is bounded-time arithmetic on fixed-size structures.
func (s *Instance) Observe(value float64, timestamp int64) (Result, bool) {
	var duration int64
	if s.havePrev {
		duration = timestamp - s.prevTimestamp
	}

	// Time-weighted averages credit the elapsed gap to the value that was
	// current during it, so the previous reading is what gets inserted.
	insert := value
	if s.cfg.Average == AverageTimeWeighted && s.havePrev {
		insert = s.prevValue
	}
	s.prevValue = value
	s.prevTimestamp = timestamp
	s.havePrev = true

	if s.digest != nil {
		weight := 1.0
		if s.cfg.Digest.DurationWeighted {
			weight = float64(duration) / 1000.0
		}
		s.digest.Insert(value, weight)
	}

	chunk, closed := s.chunks.Add(insert, duration, timestamp)
	if !closed {
		return Result{}, false
	}
	s.window.Push(chunk)

	if !s.sched.Tick() {
		return Result{}, false
	}
	return s.compute(timestamp), true
}

// ForcePublish computes and returns the current statistics immediately,
// regardless of schedule. Safe to invoke between observations.
func (s *Instance) ForcePublish(timestamp int64) Result {
	return s.compute(timestamp)
}

// Reset clears all accumulators, the window deque, the digest and the
// scheduler counters, discarding accumulated history immediately.
func (s *Instance) Reset() {
	s.chunks.Reset()
	s.window.Clear()
	s.sched.Reset()
	if s.digest != nil {
		s.digest.Reset()
	}
	s.havePrev = false
	s.logger.Info("statistics instance reset", zap.String("instance", s.cfg.Name))
}

// Window exposes the window engine, primarily for tests and snapshots.
func (s *Instance) Window() *Window { return s.window }

func (s *Instance) compute(timestamp int64) Result {
	agg := s.window.Aggregate()
	values := make(map[Statistic]float64, len(s.cfg.Statistics))

	timeWeighted := s.cfg.Average == AverageTimeWeighted
	for _, stat := range s.cfg.Statistics {
		var v float64
		switch stat {
		case StatMean:
			v = agg.Mean()
		case StatMin:
			v = agg.Min()
		case StatMax:
			v = agg.Max()
		case StatVariance:
			v = agg.Variance(timeWeighted, s.cfg.Group)
		case StatStdDev:
			v = agg.StdDev(timeWeighted, s.cfg.Group)
		case StatCovariance:
			v = agg.Covariance(timeWeighted, s.cfg.Group) / s.cfg.TimeFactor
		case StatTrend:
			v = agg.Trend() * s.cfg.TimeFactor
		case StatCount:
			v = float64(agg.Count())
		case StatDuration:
			v = float64(agg.Duration())
		case StatArgMin:
			v = agg.ArgMin()
		case StatArgMax:
			v = agg.ArgMax()
		case StatCoefficientOfDetermination:
			v = agg.CoefficientOfDetermination()
		default:
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if s.cfg.Precision == PrecisionSingle {
			v = float64(float32(v))
		}
		values[stat] = v
	}

	if s.digest != nil {
		for _, q := range s.cfg.Digest.Quantiles {
			if v := s.digest.Quantile(q); !math.IsNaN(v) {
				values[QuantileKey(q)] = v
			}
		}
	}

	return Result{Instance: s.cfg.Name, Timestamp: timestamp, Values: values}
}

// InstanceSnapshot is the serializable state used for restore-on-boot. Only
// the merged aggregate's sufficient statistics are persisted; it restores
// exactly for continuous windows and seeds sliding ones as a single chunk.
type InstanceSnapshot struct {
	Aggregate     Snapshot `json:"aggregate"`
	PrevValue     float64  `json:"prev_value"`
	PrevTimestamp int64    `json:"prev_timestamp"`
	HavePrev      bool     `json:"have_prev"`
}

// SnapshotState exports the instance's running aggregate state.
func (s *Instance) SnapshotState() InstanceSnapshot {
	return InstanceSnapshot{
		Aggregate:     s.window.Aggregate().Snapshot(),
		PrevValue:     s.prevValue,
		PrevTimestamp: s.prevTimestamp,
		HavePrev:      s.havePrev,
	}
}

// RestoreState seeds the window with a previously exported aggregate.
func (s *Instance) RestoreState(snap InstanceSnapshot) {
	s.window.Seed(FromSnapshot(snap.Aggregate))
	s.prevValue = snap.PrevValue
	s.prevTimestamp = snap.PrevTimestamp
	s.havePrev = snap.HavePrev
}
