package engine

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/muza/internal/store"
)

func TestMarshalFormat(t *testing.T) {
	g := emptyGraph(t)
	g.Learn("north star", 0.6, 0.2)

	data, err := g.Marshal()
	require.NoError(t, err)

	var doc struct {
		Nodes      map[string]map[string]any `json:"nodes"`
		LastUpdate int64                     `json:"lastUpdate"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, testEpoch.UnixMilli(), doc.LastUpdate)

	north := doc.Nodes["north"]
	require.NotNil(t, north)
	for _, field := range []string{"id", "energy", "importance", "emotionalCharge", "isCrystallized", "associations", "lastSeen", "vector"} {
		assert.Contains(t, north, field)
	}
	assert.Equal(t, map[string]any{"star": 1.0}, north["associations"])
	assert.Equal(t, false, north["isCrystallized"])
}

func TestRoundTripPreservesOrder(t *testing.T) {
	ms := newMemStore()
	g1 := testGraph(t, ms)
	g1.LearnDefault("go left")
	g1.LearnDefault("go right")
	g1.LearnDefault("zebra apple mango")
	g1.nodes["zebra"].Crystallized = true
	g1.Evolve()

	g2 := testGraph(t, ms)

	d1, err := g1.Marshal()
	require.NoError(t, err)
	d2, err := g2.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, string(d1), string(d2))
	assert.Equal(t, string(d1), string(d2), "byte-identical, including order")

	assert.Equal(t, g1.order, g2.order)
	assert.Equal(t, "go left", g2.Generate("go", 1), "tie-break survives reload")
	assert.Equal(t, 1, g2.Stats().Crystallized)
}

func TestDecodeDefaults(t *testing.T) {
	ms := newMemStore()
	ms.data[DefaultStorageKey] = []byte(`{
		"nodes": {
			"moon": {},
			"sun": {
				"id": "other",
				"energy": 5,
				"importance": 0.9,
				"associations": {"moon": 2, "gone": -1, "text": "x", "zero": 0, "half": 1.6},
				"vector": {"x": 1, "y": 2, "z": 3},
				"lastSeen": 42
			},
			"dim": {"energy": -3, "associations": null}
		},
		"lastUpdate": 1234
	}`)

	g := testGraph(t, ms)
	require.Equal(t, 3, g.Len())
	assert.Equal(t, []string{"moon", "sun", "dim"}, g.order)

	moon, _ := g.Node("moon")
	assert.Equal(t, InitialEnergy, moon.Energy)
	assert.Equal(t, DefaultImportance, moon.Importance)
	assert.Equal(t, DefaultCharge, moon.EmotionalCharge)
	assert.Equal(t, Vector{}, moon.Vector)
	assert.Equal(t, int64(1234), moon.LastSeen)
	assert.Empty(t, moon.Associations)

	sun, _ := g.Node("sun")
	assert.Equal(t, "sun", sun.ID, "map key wins")
	assert.Equal(t, MaxEnergy, sun.Energy)
	assert.Equal(t, 0.9, sun.Importance)
	assert.Equal(t, int64(42), sun.LastSeen)
	assert.Equal(t, Vector{X: 1, Y: 2, Z: 3}, sun.Vector)
	assert.Equal(t, []Edge{
		{Source: "sun", Target: "moon", Weight: 2},
		{Source: "sun", Target: "half", Weight: 2},
	}, sun.Associations)

	dim, _ := g.Node("dim")
	assert.Equal(t, 0.0, dim.Energy)
}

func TestSaveFailureIsIgnored(t *testing.T) {
	ms := newMemStore()
	g := testGraph(t, ms)
	ms.setErr = errors.New("quota exceeded")

	assert.NotPanics(t, func() {
		g.LearnDefault("still learning")
		g.Evolve()
	})
	_, ok := g.Node("learning")
	assert.True(t, ok, "in-memory graph stays authoritative")
}

func TestPersistsToSQLite(t *testing.T) {
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	g1 := testGraph(t, db)
	g1.LearnDefault("stored in sqlite")

	raw, err := db.Get(DefaultStorageKey)
	require.NoError(t, err)
	require.NotNil(t, raw)

	g2 := testGraph(t, db)
	assert.Equal(t, g1.Stats(), g2.Stats())
	_, ok := g2.Node("sqlite")
	assert.True(t, ok)
}
