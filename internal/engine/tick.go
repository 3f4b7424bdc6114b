package engine

import "math"

const (
	// MotionThreshold is the energy above which Tick animates a node.
	MotionThreshold = 0.05
	// ActiveThreshold is the energy above which a node appears in snapshots.
	ActiveThreshold = 0.1
	TickDecayFactor = 0.999
	SnapshotNeurons = 80
)

// Status values reported in CoreState.
const (
	StatusProcessing = "PROCESSING"
	StatusIdle       = "IDLE"
)

// Neuron is a node as rendered by the live visualizer.
type Neuron struct {
	ID        string  `json:"id"`
	Token     string  `json:"token"`
	Vector    Vector  `json:"vector"`
	Weight    float64 `json:"weight"`
	Charge    float64 `json:"charge"`
	Timestamp int64   `json:"timestamp"`
}

// Synapse is an edge between two rendered neurons.
type Synapse struct {
	Source   string  `json:"source"`
	Target   string  `json:"target"`
	Strength float64 `json:"strength"`
}

// CoreState is one animation frame.
type CoreState struct {
	Neurons  []Neuron  `json:"neurons"`
	Synapses []Synapse `json:"synapses"`
	// Energy is the mean neuron charge normalized to [0,1]; Entropy is its complement.
	Energy  float64 `json:"energy"`
	Entropy float64 `json:"entropy"`
	Status  string  `json:"status"`
}

// Tick advances the live animation one frame: active nodes drift along a
// smooth clock-driven oscillation and lose a little energy. Tick does not
// persist; the next learning or decay pass saves whatever it changed.
func (g *Graph) Tick() CoreState {
	g.mu.Lock()
	defer g.mu.Unlock()

	t := float64(g.now().UnixMilli())
	for _, id := range g.order {
		n := g.nodes[id]
		if n.Energy <= MotionThreshold {
			continue
		}
		n.Vector.X += math.Sin(t*0.0002+n.Vector.Y*0.5) * 0.02
		n.Vector.Y += math.Cos(t*0.0003+n.Vector.X*0.5) * 0.02
		n.Vector.Z += math.Sin(t*0.0001+n.Vector.Z*0.5) * 0.02
		n.Energy *= TickDecayFactor
	}
	return g.snapshot()
}

// Snapshot returns the current frame without changing anything.
func (g *Graph) Snapshot() CoreState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshot()
}

func (g *Graph) snapshot() CoreState {
	active := g.topByEnergy(SnapshotNeurons, func(n *Node) bool {
		return n.Energy > ActiveThreshold
	})

	state := CoreState{
		Neurons:  make([]Neuron, 0, len(active)),
		Synapses: []Synapse{},
		Status:   StatusIdle,
		Entropy:  1,
	}
	if len(active) == 0 {
		return state
	}

	ids := make(map[string]bool, len(active))
	var total float64
	for _, n := range active {
		ids[n.ID] = true
		total += n.Energy
		state.Neurons = append(state.Neurons, Neuron{
			ID:        n.ID,
			Token:     n.ID,
			Vector:    n.Vector,
			Weight:    n.Importance,
			Charge:    n.Energy,
			Timestamp: n.LastSeen,
		})
	}
	for _, n := range active {
		n.Associations.Each(func(target string, count int) bool {
			if ids[target] {
				state.Synapses = append(state.Synapses, Synapse{
					Source:   n.ID,
					Target:   target,
					Strength: float64(count),
				})
			}
			return true
		})
	}

	state.Energy = total / float64(len(active)) / MaxEnergy
	state.Entropy = 1 - state.Energy
	state.Status = StatusProcessing
	return state
}
