package engine

import "math"

// Source identifies who produced a piece of conversational text.
type Source string

const (
	SourceUser Source = "user"
	SourceAI   Source = "ai"
)

const (
	UserImportance     = 0.9
	AIImportance       = 0.5
	ConversationCharge = 0.5
	ConversationBoost  = 0.5
	// EmbeddingBlend is the weight of the text vector in the moving average.
	EmbeddingBlend = 0.1
)

// Learn ingests text: new tokens become nodes, known tokens gain energy,
// and each adjacent token pair strengthens the edge between them.
// Non-finite weights fall back to DefaultImportance and DefaultCharge.
// Text that tokenizes to nothing leaves the graph untouched.
func (g *Graph) Learn(text string, importance, charge float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.learn(text, importance, charge) {
		g.save()
	}
}

// LearnDefault is Learn with the default weights.
func (g *Graph) LearnDefault(text string) {
	g.Learn(text, DefaultImportance, DefaultCharge)
}

func (g *Graph) learn(text string, importance, charge float64) bool {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return false
	}
	if !isFinite(importance) {
		importance = DefaultImportance
	}
	if !isFinite(charge) {
		charge = DefaultCharge
	}

	now := g.now().UnixMilli()
	seen := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		if seen[tok] {
			continue
		}
		seen[tok] = true

		if n, ok := g.nodes[tok]; ok {
			n.Energy = math.Min(MaxEnergy, n.Energy+LearnBoost)
			n.LastSeen = now
			continue
		}
		g.insert(&Node{
			ID:              tok,
			Energy:          InitialEnergy,
			Importance:      importance,
			EmotionalCharge: charge,
			LastSeen:        now,
			Vector:          g.spawnVector(),
		})
	}

	for i := 0; i+1 < len(tokens); i++ {
		src, dst := g.nodes[tokens[i]], g.nodes[tokens[i+1]]
		src.Associations.Add(dst.ID, 1)
		src.Vector = src.Vector.Toward(dst.Vector, VectorGravity)
	}
	return true
}

// ProcessInput ingests one conversational turn. It learns the text with a
// source-derived importance, then pulls every token's position toward the
// text's hash vector and reinforces its energy.
func (g *Graph) ProcessInput(text string, source Source) {
	g.mu.Lock()
	defer g.mu.Unlock()

	importance := AIImportance
	if source == SourceUser {
		importance = UserImportance
	}
	if !g.learn(text, importance, ConversationCharge) {
		return
	}

	vec := TextVector(text)
	for _, tok := range Tokenize(text) {
		n, ok := g.nodes[tok]
		if !ok {
			continue
		}
		n.Vector = n.Vector.Blend(vec, EmbeddingBlend)
		n.Energy = math.Min(MaxEnergy, n.Energy+ConversationBoost)
	}
	g.save()
}
