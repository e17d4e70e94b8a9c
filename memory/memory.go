package memory

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ladybuglabs/crystal-go/crystal"
	"github.com/ladybuglabs/crystal-go/field"
	"github.com/ladybuglabs/crystal-go/fingerprint"
)

// ErrEmptyMemory is returned by Infer and Learn when no crystals are stored.
var ErrEmptyMemory = errors.New("memory: no crystals stored")

// CrystalMemory maps attractor-basin ids to crystals and serves associative
// recall over them. Reads are safe concurrently; Add and Learn are
// serialized internally (one writer at a time).
type CrystalMemory struct {
	mu     sync.RWMutex
	cfg    *Config
	basins map[uint32]*crystal.Crystal

	id      string
	logger  *logrus.Logger
	log     *logrus.Entry
	metrics *Collector
	store   Store
	cache   *ristretto.Cache
}

// Option configures a CrystalMemory.
type Option func(*CrystalMemory)

// WithLogger sets the logger. Defaults to the logrus standard logger.
func WithLogger(l *logrus.Logger) Option {
	return func(m *CrystalMemory) { m.logger = l }
}

// WithMetrics attaches a Prometheus collector.
func WithMetrics(c *Collector) Option {
	return func(m *CrystalMemory) { m.metrics = c }
}

// WithStore attaches a persistence backend for Sync and Restore. The caller
// keeps ownership of the store; Close does not close it.
func WithStore(s Store) Option {
	return func(m *CrystalMemory) { m.store = s }
}

// New creates an empty CrystalMemory. A nil cfg uses DefaultConfig.
func New(cfg *Config, opts ...Option) (*CrystalMemory, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	m := &CrystalMemory{
		cfg:    cfg,
		basins: make(map[uint32]*crystal.Crystal),
		id:     uuid.NewString(),
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.logger.WithFields(logrus.Fields{
		"component": "crystal_memory",
		"memory_id": m.id,
	})

	if cfg.CacheEnabled {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: cfg.CacheMaxEntries * 10,
			MaxCost:     cfg.CacheMaxEntries,
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("create expand cache: %w", err)
		}
		m.cache = cache
	}

	m.log.WithFields(logrus.Fields{
		"width":          cfg.Width,
		"basin_capacity": cfg.BasinCapacity,
	}).Debug("crystal memory created")
	return m, nil
}

// Add stores a crystal under its content-derived basin id, overwriting any
// crystal already in that basin. Returns the basin id.
func (m *CrystalMemory) Add(c *crystal.Crystal) (uint32, error) {
	if err := m.checkWidth(c); err != nil {
		return 0, err
	}
	id := m.basinFor(c)

	m.mu.Lock()
	_, collided := m.basins[id]
	m.basins[id] = c.Clone()
	m.mu.Unlock()

	m.cacheDel(id)
	if m.metrics != nil {
		m.metrics.AddTotal.Inc()
	}
	m.log.WithFields(logrus.Fields{
		"basin_id":  id,
		"overwrote": collided,
	}).Debug("stored crystal")
	return id, nil
}

// Get returns the crystal in a basin, if any. The returned crystal is a
// copy and safe to keep.
func (m *CrystalMemory) Get(basinID uint32) (*crystal.Crystal, bool) {
	m.mu.RLock()
	c, ok := m.basins[basinID]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

// Infer returns a copy of the stored crystal nearest to the query by total
// axis Hamming distance. Ties break to the lowest basin id, so results are
// deterministic. The scan is exact (no index, no approximation) and fans
// out across CPUs once the collection passes ParallelScanThreshold.
func (m *CrystalMemory) Infer(query *crystal.Crystal) (*crystal.Crystal, error) {
	if err := m.checkWidth(query); err != nil {
		return nil, err
	}
	start := time.Now()

	entries := m.snapshot()
	if len(entries) == 0 {
		return nil, ErrEmptyMemory
	}

	best := m.scan(entries, query)

	if m.metrics != nil {
		m.metrics.InferTotal.Inc()
		m.metrics.InferDuration.Observe(time.Since(start).Seconds())
	}
	m.log.WithFields(logrus.Fields{
		"basin_id": best.id,
		"distance": best.dist,
		"scanned":  len(entries),
	}).Debug("inference complete")
	return best.c.Clone(), nil
}

// Learn moves the stored crystal nearest to input toward target: per axis
// projection, a rate-fraction of the bits that differ from target is
// flipped (lowest bit index first). rate=1 converges exactly in one call;
// rate=0 is a no-op. The sculpted crystal keeps its basin id.
func (m *CrystalMemory) Learn(input, target *crystal.Crystal, rate float64) error {
	if err := m.checkWidth(input); err != nil {
		return err
	}
	if err := m.checkWidth(target); err != nil {
		return err
	}
	if rate < 0 || rate > 1 {
		return fmt.Errorf("memory: learn rate %v out of range [0,1]", rate)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entries := make([]basinEntry, 0, len(m.basins))
	for id, c := range m.basins {
		d, _ := crystal.Distance(c, input)
		entries = append(entries, basinEntry{id: id, c: c, dist: d})
	}
	if len(entries) == 0 {
		return ErrEmptyMemory
	}
	best := reduceNearest(entries)

	var axes [crystal.Axes]*fingerprint.Fingerprint
	totalFlips := 0
	for _, axis := range []field.Axis{field.AxisX, field.AxisY, field.AxisZ} {
		cur := best.c.Axis(axis)
		want := target.Axis(axis)
		diff, err := fingerprint.Distance(cur, want)
		if err != nil {
			return err
		}
		flips := int(math.Round(rate * float64(diff)))
		sculpted, err := fingerprint.Sculpt(cur, want, flips)
		if err != nil {
			return err
		}
		axes[axis] = sculpted
		totalFlips += flips
	}

	updated, err := crystal.New(axes[0], axes[1], axes[2])
	if err != nil {
		return err
	}
	m.basins[best.id] = updated

	m.cacheDel(best.id)
	if m.metrics != nil {
		m.metrics.LearnBitsFlipped.Add(float64(totalFlips))
	}
	m.log.WithFields(logrus.Fields{
		"basin_id":     best.id,
		"bits_flipped": totalFlips,
		"rate":         rate,
	}).Debug("sculpted crystal")
	return nil
}

// Crystallize runs the full write path for one pattern: inject into a fresh
// field, settle within the configured step budget, compress, store. Returns
// the basin id and the stored crystal. Non-convergence within the budget is
// reported in the logs and metrics, not as an error.
func (m *CrystalMemory) Crystallize(pattern *fingerprint.Fingerprint) (uint32, *crystal.Crystal, error) {
	if pattern.Width() != m.cfg.Width {
		return 0, nil, fmt.Errorf("%w: memory is %d bits, got %d",
			fingerprint.ErrDimensionMismatch, m.cfg.Width, pattern.Width())
	}

	f, err := field.NewWithWidth(m.cfg.QuorumThreshold, m.cfg.Width)
	if err != nil {
		return 0, nil, err
	}
	if err := f.Inject(pattern); err != nil {
		return 0, nil, err
	}

	steps, converged := f.Settle(m.cfg.SettleSteps)
	if m.metrics != nil {
		m.metrics.SettleSteps.Observe(float64(steps))
	}
	m.log.WithFields(logrus.Fields{
		"steps":     steps,
		"converged": converged,
	}).Debug("field settled")

	c, err := crystal.FromField(f)
	if err != nil {
		return 0, nil, err
	}
	id, err := m.Add(c)
	if err != nil {
		return 0, nil, err
	}
	return id, c, nil
}

// Expand reconstructs the approximate QuorumField for a stored basin.
// Expansion re-derives all 125 cells, so results are cached; the returned
// field is always a private copy the caller may mutate.
func (m *CrystalMemory) Expand(basinID uint32) (*field.QuorumField, error) {
	if m.cache != nil {
		if v, ok := m.cache.Get(uint64(basinID)); ok {
			if m.metrics != nil {
				m.metrics.CacheHits.Inc()
			}
			return v.(*field.QuorumField).Clone(), nil
		}
		if m.metrics != nil {
			m.metrics.CacheMisses.Inc()
		}
	}

	c, ok := m.Get(basinID)
	if !ok {
		return nil, fmt.Errorf("memory: basin %d not found", basinID)
	}
	f, err := crystal.ExpandApprox(c)
	if err != nil {
		return nil, err
	}
	if m.cache != nil {
		m.cache.Set(uint64(basinID), f.Clone(), 1)
	}
	return f, nil
}

// Sync persists every stored crystal to the attached store.
func (m *CrystalMemory) Sync(ctx context.Context) error {
	if m.store == nil {
		return errors.New("memory: no store attached")
	}
	entries := m.snapshot()
	for _, e := range entries {
		if err := m.store.Save(ctx, e.id, e.c); err != nil {
			return fmt.Errorf("sync basin %d: %w", e.id, err)
		}
	}
	m.log.WithField("count", len(entries)).Info("memory synced to store")
	return nil
}

// Restore replaces the in-memory contents with the attached store's
// records. Basin ids are taken from the records, not recomputed, so
// externally assigned ids survive a round trip.
func (m *CrystalMemory) Restore(ctx context.Context) error {
	if m.store == nil {
		return errors.New("memory: no store attached")
	}
	loaded, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	for id, c := range loaded {
		if c.Width() != m.cfg.Width {
			return fmt.Errorf("restore basin %d: %w: memory is %d bits, record is %d",
				id, fingerprint.ErrDimensionMismatch, m.cfg.Width, c.Width())
		}
	}

	m.mu.Lock()
	m.basins = loaded
	m.mu.Unlock()
	if m.cache != nil {
		m.cache.Clear()
	}

	m.log.WithField("count", len(loaded)).Info("memory restored from store")
	return nil
}

// Len returns the number of stored crystals.
func (m *CrystalMemory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.basins)
}

// MemoryStats summarizes a CrystalMemory.
type MemoryStats struct {
	Count         int
	BasinCapacity int
	Width         int
	CrystalBytes  int
	TotalBytes    int
}

// Stats derives sizes from the configured width rather than quoting
// documentation figures.
func (m *CrystalMemory) Stats() MemoryStats {
	per := crystal.RecordSize(m.cfg.Width)
	count := m.Len()
	return MemoryStats{
		Count:         count,
		BasinCapacity: m.cfg.BasinCapacity,
		Width:         m.cfg.Width,
		CrystalBytes:  per,
		TotalBytes:    count * per,
	}
}

// Close releases the expand cache. It does not close an attached store;
// the store's owner does that.
func (m *CrystalMemory) Close() error {
	if m.cache != nil {
		m.cache.Close()
	}
	return nil
}

// basinFor assigns the content-derived basin id: FNV-1a over the three axis
// projections, modulo the basin capacity.
func (m *CrystalMemory) basinFor(c *crystal.Crystal) uint32 {
	h := fnv.New64a()
	for _, axis := range []field.Axis{field.AxisX, field.AxisY, field.AxisZ} {
		h.Write(c.Axis(axis).Bytes())
	}
	return uint32(h.Sum64() % uint64(m.cfg.BasinCapacity))
}

func (m *CrystalMemory) checkWidth(c *crystal.Crystal) error {
	if c.Width() != m.cfg.Width {
		return fmt.Errorf("%w: memory is %d bits, crystal is %d",
			fingerprint.ErrDimensionMismatch, m.cfg.Width, c.Width())
	}
	return nil
}

func (m *CrystalMemory) cacheDel(basinID uint32) {
	if m.cache != nil {
		m.cache.Del(uint64(basinID))
	}
}

type basinEntry struct {
	id   uint32
	c    *crystal.Crystal
	dist int
}

// snapshot copies the basin table under the read lock. Crystal pointers are
// immutable once stored (Learn swaps in a new crystal), so the snapshot can
// be scanned without holding the lock.
func (m *CrystalMemory) snapshot() []basinEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]basinEntry, 0, len(m.basins))
	for id, c := range m.basins {
		out = append(out, basinEntry{id: id, c: c})
	}
	return out
}

// scan finds the nearest entry to the query, splitting the collection
// across CPUs when it is large enough to be worth it.
func (m *CrystalMemory) scan(entries []basinEntry, query *crystal.Crystal) basinEntry {
	score := func(part []basinEntry) basinEntry {
		for i := range part {
			// Width was validated against the config, so Distance
			// cannot fail.
			part[i].dist, _ = crystal.Distance(part[i].c, query)
		}
		return reduceNearest(part)
	}

	if len(entries) < m.cfg.ParallelScanThreshold {
		return score(entries)
	}

	workers := runtime.NumCPU()
	chunk := (len(entries) + workers - 1) / workers
	partial := make([]basinEntry, 0, workers)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * chunk
		if lo >= len(entries) {
			break
		}
		hi := lo + chunk
		if hi > len(entries) {
			hi = len(entries)
		}
		wg.Add(1)
		go func(part []basinEntry) {
			defer wg.Done()
			local := score(part)
			mu.Lock()
			partial = append(partial, local)
			mu.Unlock()
		}(entries[lo:hi])
	}
	wg.Wait()
	return reduceNearest(partial)
}

// reduceNearest picks the minimum-distance entry, breaking ties toward the
// lowest basin id.
func reduceNearest(entries []basinEntry) basinEntry {
	best := entries[0]
	for _, e := range entries[1:] {
		if e.dist < best.dist || (e.dist == best.dist && e.id < best.id) {
			best = e
		}
	}
	return best
}
