package engine

import "sort"

const (
	// Coherence is a fixed placeholder reported by Stats.
	Coherence = 0.95

	FullNetworkNodes   = 100
	FullNetworkEdges   = 200
	DefaultVisualNodes = 60
)

// Stats holds graph counts.
type Stats struct {
	Nodes        int     `json:"nodes"`
	Crystallized int     `json:"crystallized"`
	Synapses     int     `json:"synapses"`
	Coherence    float64 `json:"coherence"`
}

// Stats counts nodes, crystallized nodes and outgoing edges.
func (g *Graph) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := Stats{Nodes: len(g.nodes), Coherence: Coherence}
	for _, n := range g.nodes {
		if n.Crystallized {
			s.Crystallized++
		}
		s.Synapses += n.Associations.Len()
	}
	return s
}

// NetworkNode is a node as exposed for force-directed rendering.
type NetworkNode struct {
	ID              string  `json:"id"`
	Energy          float64 `json:"energy"`
	EmotionalCharge float64 `json:"emotionalCharge"`
	Crystallized    bool    `json:"isCrystallized"`
	Vector          Vector  `json:"vector"`
}

// Edge is a directed association.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Weight int    `json:"weight"`
}

// Network is a capped view of the graph.
type Network struct {
	Nodes []NetworkNode `json:"nodes"`
	Links []Edge        `json:"links"`
}

// FullNetwork returns the first FullNetworkNodes nodes and the first
// FullNetworkEdges edges, both in insertion order. Edges may reference
// nodes outside the node cap.
func (g *Graph) FullNetwork() Network {
	g.mu.Lock()
	defer g.mu.Unlock()

	net := Network{Nodes: []NetworkNode{}, Links: []Edge{}}
	for _, id := range g.order {
		if len(net.Nodes) == FullNetworkNodes {
			break
		}
		n := g.nodes[id]
		net.Nodes = append(net.Nodes, NetworkNode{
			ID:              n.ID,
			Energy:          n.Energy,
			EmotionalCharge: n.EmotionalCharge,
			Crystallized:    n.Crystallized,
			Vector:          n.Vector,
		})
	}

	for _, id := range g.order {
		if len(net.Links) == FullNetworkEdges {
			break
		}
		g.nodes[id].Associations.Each(func(target string, count int) bool {
			net.Links = append(net.Links, Edge{Source: id, Target: target, Weight: count})
			return len(net.Links) < FullNetworkEdges
		})
	}
	return net
}

// VisualNode is a node in the reduced rendering view.
type VisualNode struct {
	ID     string  `json:"id"`
	Energy float64 `json:"val"`
}

// VisualNetwork is the top-N view of the graph.
type VisualNetwork struct {
	Nodes []VisualNode `json:"nodes"`
	Links []Edge       `json:"links"`
}

// VisualNetwork returns the maxNodes most energetic nodes and the edges
// between them. maxNodes <= 0 selects DefaultVisualNodes.
func (g *Graph) VisualNetwork(maxNodes int) VisualNetwork {
	if maxNodes <= 0 {
		maxNodes = DefaultVisualNodes
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	top := g.topByEnergy(maxNodes, nil)
	kept := make(map[string]bool, len(top))
	for _, n := range top {
		kept[n.ID] = true
	}

	vis := VisualNetwork{Nodes: make([]VisualNode, 0, len(top)), Links: []Edge{}}
	for _, n := range top {
		vis.Nodes = append(vis.Nodes, VisualNode{ID: n.ID, Energy: n.Energy})
		n.Associations.Each(func(target string, count int) bool {
			if kept[target] {
				vis.Links = append(vis.Links, Edge{Source: n.ID, Target: target, Weight: count})
			}
			return true
		})
	}
	return vis
}

// Focus returns the ids of the n most energetic nodes.
func (g *Graph) Focus(n int) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	top := g.topByEnergy(n, nil)
	ids := make([]string, len(top))
	for i, node := range top {
		ids[i] = node.ID
	}
	return ids
}

// topByEnergy returns up to limit nodes accepted by keep (all when nil),
// highest energy first; equal energies keep insertion order.
func (g *Graph) topByEnergy(limit int, keep func(*Node) bool) []*Node {
	nodes := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		if n := g.nodes[id]; keep == nil || keep(n) {
			nodes = append(nodes, n)
		}
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Energy > nodes[j].Energy
	})
	if len(nodes) > limit {
		nodes = nodes[:limit]
	}
	return nodes
}

// NodeDetail is the full view of a single node.
type NodeDetail struct {
	ID              string  `json:"id"`
	Energy          float64 `json:"energy"`
	Importance      float64 `json:"importance"`
	EmotionalCharge float64 `json:"emotionalCharge"`
	Crystallized    bool    `json:"isCrystallized"`
	LastSeen        int64   `json:"lastSeen"`
	Vector          Vector  `json:"vector"`
	Associations    []Edge  `json:"associations"`
}

// Node returns a copy of the node with the given id.
func (g *Graph) Node(id string) (NodeDetail, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[id]
	if !ok {
		return NodeDetail{}, false
	}
	d := NodeDetail{
		ID:              n.ID,
		Energy:          n.Energy,
		Importance:      n.Importance,
		EmotionalCharge: n.EmotionalCharge,
		Crystallized:    n.Crystallized,
		LastSeen:        n.LastSeen,
		Vector:          n.Vector,
		Associations:    []Edge{},
	}
	n.Associations.Each(func(target string, count int) bool {
		d.Associations = append(d.Associations, Edge{Source: n.ID, Target: target, Weight: count})
		return true
	})
	return d, true
}
