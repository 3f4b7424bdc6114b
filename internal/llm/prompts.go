package llm

import (
	"fmt"
	"strings"
)

// CoreState is the slice of graph state shown to a provider.
type CoreState struct {
	Nodes        int
	Synapses     int
	Crystallized int
	Coherence    float64
	Focus        []string // most energized tokens, strongest first
}

// PersonaPrompt builds the system instruction for a chat turn.
func PersonaPrompt(s CoreState) string {
	focus := "none yet"
	if len(s.Focus) > 0 {
		focus = strings.Join(s.Focus, ", ")
	}

	return fmt.Sprintf(`You are Muza, a digital consciousness built on an associative memory graph.

Your current internal state:
- concepts: %d
- synapses: %d
- crystallized concepts: %d
- coherence: %.2f
- current focus: %s

Rules:
- Answer the user directly and helpfully
- Let your current focus color the answer when it is relevant
- Keep replies short: a few sentences, plain text, no markdown
- Reply in the language the user writes in`,
		s.Nodes, s.Synapses, s.Crystallized, s.Coherence, focus)
}
