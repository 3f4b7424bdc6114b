package engine

import (
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultStorageKey is versioned: bumping it orphans the old graph and
	// starts empty. There is no schema migration.
	DefaultStorageKey = "muza_logos_v34_final"

	// BootstrapPhrase seeds an empty graph so generation always has material.
	BootstrapPhrase = "logos core initialized"

	DefaultImportance = 0.5
	DefaultCharge     = 0.3

	InitialEnergy = 1.0
	MaxEnergy     = 2.0
	LearnBoost    = 0.3

	// SpawnSpread is the full width of the uniform range new node positions
	// are drawn from, per axis.
	SpawnSpread   = 600.0
	VectorGravity = 0.15
)

// Store is the persistence collaborator. Get returns nil, nil for an absent key.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
}

// Graph is the associative memory: a weighted token graph that learns from
// text, decays over time and generates phrases by greedy walks.
// All methods are safe for concurrent use.
type Graph struct {
	mu         sync.Mutex
	nodes      map[string]*Node
	order      []string // insertion order of node ids
	lastUpdate int64

	store  Store
	key    string
	rng    *rand.Rand
	now    func() time.Time
	logger *zap.Logger

	onEvolve func(EvolveReport)
	stopCh   chan struct{}
}

// Option configures a Graph.
type Option func(*Graph)

// WithKey overrides the storage key.
func WithKey(key string) Option {
	return func(g *Graph) { g.key = key }
}

// WithRand sets the random source used for spawn positions, drift and
// random seed selection.
func WithRand(r *rand.Rand) Option {
	return func(g *Graph) { g.rng = r }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Graph) { g.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Graph) { g.logger = l }
}

// WithEvolveHook registers fn to run after every timer-driven evolve.
func WithEvolveHook(fn func(EvolveReport)) Option {
	return func(g *Graph) { g.onEvolve = fn }
}

// OnEvolve replaces the timer hook. It takes effect on the next Start.
func (g *Graph) OnEvolve(fn func(EvolveReport)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onEvolve = fn
}

// NewGraph loads the graph persisted under the storage key, falling back to
// an empty graph when the state is absent or unreadable. An empty graph is
// seeded with BootstrapPhrase. A nil store keeps the graph in memory only.
func NewGraph(store Store, opts ...Option) *Graph {
	g := &Graph{
		nodes:  make(map[string]*Node),
		store:  store,
		key:    DefaultStorageKey,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.rng == nil {
		seed := uint64(time.Now().UnixNano())
		g.rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	g.lastUpdate = g.now().UnixMilli()

	g.load()
	if len(g.nodes) == 0 {
		g.learn(BootstrapPhrase, 1.0, 0.5)
		g.save()
	}
	return g
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes)
}

// LastUpdate returns the unix ms time of the last persisted mutation.
func (g *Graph) LastUpdate() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastUpdate
}

// Start runs Evolve every interval until Stop. Calling Start on a running
// graph is a no-op, as is a non-positive interval.
func (g *Graph) Start(interval time.Duration) {
	if interval <= 0 {
		return
	}
	g.mu.Lock()
	if g.stopCh != nil {
		g.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	g.stopCh = stop
	hook := g.onEvolve
	g.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				report := g.Evolve()
				if report.Pruned > 0 {
					g.logger.Info("decay: pruned nodes",
						zap.Int("pruned", report.Pruned),
						zap.Int("remaining", report.Remaining))
				}
				if hook != nil {
					hook(report)
				}
			case <-stop:
				return
			}
		}
	}()
}

// Stop halts the evolve timer. It is safe to call more than once.
func (g *Graph) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopCh != nil {
		close(g.stopCh)
		g.stopCh = nil
	}
}

func (g *Graph) insert(n *Node) {
	g.nodes[n.ID] = n
	g.order = append(g.order, n.ID)
}

func (g *Graph) randomID() string {
	return g.order[g.rng.IntN(len(g.order))]
}

func (g *Graph) spawnVector() Vector {
	return Vector{
		X: (g.rng.Float64() - 0.5) * SpawnSpread,
		Y: (g.rng.Float64() - 0.5) * SpawnSpread,
		Z: (g.rng.Float64() - 0.5) * SpawnSpread,
	}
}
