package engine

import (
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.UnixMilli(1_700_000_000_000)

// memStore is an in-memory Store with failure injection.
type memStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	setErr error
	sets   int
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.data[key], nil
}

func (m *memStore) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memStore) setCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}

func testGraph(t *testing.T, store Store, opts ...Option) *Graph {
	t.Helper()
	base := []Option{
		WithRand(rand.New(rand.NewPCG(7, 11))),
		WithClock(func() time.Time { return testEpoch }),
	}
	g := NewGraph(store, append(base, opts...)...)
	t.Cleanup(g.Stop)
	return g
}

// emptyGraph returns an in-memory graph with the bootstrap phrase removed.
func emptyGraph(t *testing.T) *Graph {
	t.Helper()
	g := testGraph(t, nil)
	g.nodes = make(map[string]*Node)
	g.order = nil
	return g
}

func TestNewGraphBootstraps(t *testing.T) {
	store := newMemStore()
	g := testGraph(t, store)

	require.Equal(t, 3, g.Len())
	for _, id := range []string{"logos", "core", "initialized"} {
		n, ok := g.Node(id)
		require.True(t, ok, id)
		assert.Equal(t, 1.0, n.Importance)
		assert.Equal(t, 0.5, n.EmotionalCharge)
		assert.Equal(t, InitialEnergy, n.Energy)
	}
	assert.NotNil(t, store.data[DefaultStorageKey], "bootstrap is persisted")
	assert.Equal(t, testEpoch.UnixMilli(), g.LastUpdate())
}

func TestNewGraphLoadsExisting(t *testing.T) {
	store := newMemStore()
	g1 := testGraph(t, store)
	g1.Learn("rivers remember rain", 0.7, 0.2)

	g2 := testGraph(t, store)
	assert.Equal(t, 6, g2.Len(), "no second bootstrap")
	assert.Equal(t, g1.FullNetwork(), g2.FullNetwork())
}

func TestNewGraphBadState(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"garbage", "not json at all"},
		{"array", `[1,2,3]`},
		{"missing nodes", `{"lastUpdate":5}`},
		{"nodes not object", `{"nodes":[]}`},
		{"null nodes", `{"nodes":null}`},
		{"node not object", `{"nodes":{"moon":5}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			store.data[DefaultStorageKey] = []byte(tt.data)

			g := testGraph(t, store)
			assert.Equal(t, 3, g.Len(), "falls back to a bootstrapped graph")
			_, ok := g.Node("moon")
			assert.False(t, ok)
		})
	}
}

func TestNewGraphReadError(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("disk on fire")

	g := testGraph(t, store)
	assert.Equal(t, 3, g.Len())
}

func TestWithKey(t *testing.T) {
	store := newMemStore()
	testGraph(t, store, WithKey("muza_test"))

	assert.Contains(t, store.data, "muza_test")
	assert.NotContains(t, store.data, DefaultStorageKey)
}

func TestStartIgnoresNonPositiveInterval(t *testing.T) {
	g := testGraph(t, nil)

	assert.NotPanics(t, func() {
		g.Start(0)
		g.Start(-time.Second)
	})
	g.mu.Lock()
	assert.Nil(t, g.stopCh)
	g.mu.Unlock()
}

func TestStartStop(t *testing.T) {
	reports := make(chan EvolveReport, 16)
	g := testGraph(t, nil, WithEvolveHook(func(r EvolveReport) {
		select {
		case reports <- r:
		default:
		}
	}))

	g.Start(5 * time.Millisecond)
	g.Start(5 * time.Millisecond) // no-op while running

	for i := 0; i < 2; i++ {
		select {
		case r := <-reports:
			assert.Equal(t, 3, r.Remaining)
		case <-time.After(2 * time.Second):
			t.Fatal("timer did not evolve")
		}
	}

	g.Stop()
	g.Stop()

	n, _ := g.Node("logos")
	assert.Less(t, n.Energy, InitialEnergy)
}

func TestOnEvolveReplacesHook(t *testing.T) {
	fired := make(chan struct{}, 1)
	g := testGraph(t, nil)
	g.OnEvolve(func(EvolveReport) {
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	g.Start(5 * time.Millisecond)
	defer g.Stop()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("hook not called")
	}
}
