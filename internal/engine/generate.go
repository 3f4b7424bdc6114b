package engine

import "strings"

const (
	// Placeholder is returned by Generate when the graph has no nodes.
	Placeholder = "..."

	DefaultGenerateLength = 8

	ReflectMinNodes = 5
	ReflectLength   = 6
	MoodThoughtful  = "THOUGHTFUL"
)

// Generate walks the graph greedily from the last token of seed, following
// the strongest edge at each step, for at most length steps. The walk stops
// early at a node without edges or when the next token was already emitted.
// An unknown seed starts from a random node.
func (g *Graph) Generate(seed string, length int) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.generate(seed, length)
}

func (g *Graph) generate(seed string, length int) string {
	var current string
	if tokens := Tokenize(seed); len(tokens) > 0 {
		current = tokens[len(tokens)-1]
	}
	if _, ok := g.nodes[current]; !ok {
		if len(g.order) == 0 {
			return Placeholder
		}
		current = g.randomID()
	}

	result := []string{current}
	emitted := map[string]bool{current: true}
	for i := 0; i < length; i++ {
		n, ok := g.nodes[current]
		if !ok {
			break
		}
		next, _, ok := n.Associations.Strongest()
		if !ok || emitted[next] {
			break
		}
		result = append(result, next)
		emitted[next] = true
		current = next
	}
	return strings.Join(result, " ")
}

// Reflection is a phrase the graph produced on its own.
type Reflection struct {
	Thought string `json:"thought"`
	Mood    string `json:"mood"`
}

// Reflect generates a short phrase from a random node. It reports false
// while the graph holds fewer than ReflectMinNodes nodes.
func (g *Graph) Reflect() (Reflection, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.nodes) < ReflectMinNodes {
		return Reflection{}, false
	}
	thought := g.generate(g.randomID(), ReflectLength)
	return Reflection{Thought: thought, Mood: MoodThoughtful}, true
}
