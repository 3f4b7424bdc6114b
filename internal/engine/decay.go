package engine

import "math"

// Decay tuning. A tick removes BaseDecay energy (a tenth of it for
// crystallized nodes) and jitters non-crystallized positions.
const (
	BaseDecay          = 0.002
	CrystalDecayFactor = 0.1
	DriftStrength      = 0.8

	// PruneFloor is the energy below which a node is forgotten, but only
	// while the graph holds more than MinRetention nodes.
	PruneFloor   = 0.05
	MinRetention = 50
)

// EvolveReport summarizes one decay pass.
type EvolveReport struct {
	Decayed   int `json:"decayed"`
	Pruned    int `json:"pruned"`
	Remaining int `json:"remaining"`
}

// Evolve runs one decay pass over every node, prunes exhausted nodes when
// the graph is large enough, and persists the result.
func (g *Graph) Evolve() EvolveReport {
	g.mu.Lock()
	defer g.mu.Unlock()

	total := len(g.nodes)
	for _, id := range g.order {
		n := g.nodes[id]
		decay := BaseDecay
		if n.Crystallized {
			decay *= CrystalDecayFactor
		}
		n.Energy = math.Max(0, n.Energy-decay)

		if !n.Crystallized {
			n.Vector.X += (g.rng.Float64() - 0.5) * DriftStrength
			n.Vector.Y += (g.rng.Float64() - 0.5) * DriftStrength
			n.Vector.Z += (g.rng.Float64() - 0.5) * DriftStrength
		}
	}

	pruned := 0
	if total > MinRetention {
		kept := g.order[:0]
		for _, id := range g.order {
			if g.nodes[id].Energy < PruneFloor {
				delete(g.nodes, id)
				pruned++
				continue
			}
			kept = append(kept, id)
		}
		g.order = kept
	}

	g.save()
	return EvolveReport{Decayed: total, Pruned: pruned, Remaining: len(g.nodes)}
}
