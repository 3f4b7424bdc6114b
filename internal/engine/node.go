package engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Vector is a pseudo-spatial position used only for layout.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Toward moves v by frac of the distance to target on each axis.
func (v Vector) Toward(target Vector, frac float64) Vector {
	return Vector{
		X: v.X + (target.X-v.X)*frac,
		Y: v.Y + (target.Y-v.Y)*frac,
		Z: v.Z + (target.Z-v.Z)*frac,
	}
}

// Blend returns (1-w)*v + w*other.
func (v Vector) Blend(other Vector, w float64) Vector {
	return Vector{
		X: v.X*(1-w) + other.X*w,
		Y: v.Y*(1-w) + other.Y*w,
		Z: v.Z*(1-w) + other.Z*w,
	}
}

func (v Vector) finite() bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}

// Node is one learned token. Crystallized nodes decay at a tenth of the
// base rate and do not drift; nothing promotes a node to crystallized yet.
type Node struct {
	ID              string
	Energy          float64
	Importance      float64
	EmotionalCharge float64
	Crystallized    bool
	Associations    Associations
	LastSeen        int64 // unix ms
	Vector          Vector
}

// nodeRecord is the persisted shape. Pointer fields let decoding tell a
// missing value from a zero one.
type nodeRecord struct {
	ID              string          `json:"id"`
	Energy          *float64        `json:"energy"`
	Importance      *float64        `json:"importance"`
	EmotionalCharge *float64        `json:"emotionalCharge"`
	Crystallized    bool            `json:"isCrystallized"`
	Associations    json.RawMessage `json:"associations"`
	LastSeen        *float64        `json:"lastSeen"`
	Vector          *Vector         `json:"vector"`
}

func (n *Node) MarshalJSON() ([]byte, error) {
	assoc, err := n.Associations.MarshalJSON()
	if err != nil {
		return nil, err
	}
	lastSeen := float64(n.LastSeen)
	return json.Marshal(nodeRecord{
		ID:              n.ID,
		Energy:          &n.Energy,
		Importance:      &n.Importance,
		EmotionalCharge: &n.EmotionalCharge,
		Crystallized:    n.Crystallized,
		Associations:    assoc,
		LastSeen:        &lastSeen,
		Vector:          &n.Vector,
	})
}

// decodeNode parses one persisted node, filling defaults for missing or
// unusable fields. key wins over a stored id.
func decodeNode(key string, raw []byte, fallbackSeen int64) (*Node, error) {
	var rec nodeRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("node %q: %w", key, err)
	}

	n := &Node{
		ID:              key,
		Energy:          InitialEnergy,
		Importance:      DefaultImportance,
		EmotionalCharge: DefaultCharge,
		Crystallized:    rec.Crystallized,
		LastSeen:        fallbackSeen,
	}
	if rec.Energy != nil && isFinite(*rec.Energy) {
		n.Energy = clamp(*rec.Energy, 0, MaxEnergy)
	}
	if rec.Importance != nil && isFinite(*rec.Importance) {
		n.Importance = *rec.Importance
	}
	if rec.EmotionalCharge != nil && isFinite(*rec.EmotionalCharge) {
		n.EmotionalCharge = *rec.EmotionalCharge
	}
	if rec.LastSeen != nil && isFinite(*rec.LastSeen) {
		n.LastSeen = int64(*rec.LastSeen)
	}
	if rec.Vector != nil && rec.Vector.finite() {
		n.Vector = *rec.Vector
	}
	if err := n.Associations.UnmarshalJSON(rec.Associations); err != nil {
		return nil, fmt.Errorf("node %q associations: %w", key, err)
	}
	return n, nil
}

// Associations maps target token to co-occurrence count, remembering the
// order in which targets were first seen.
type Associations struct {
	order  []string
	counts map[string]int
}

// Add increments the count toward target, creating the entry if needed.
func (a *Associations) Add(target string, n int) {
	if a.counts == nil {
		a.counts = make(map[string]int)
	}
	if _, ok := a.counts[target]; !ok {
		a.order = append(a.order, target)
	}
	a.counts[target] += n
}

// Count returns the weight toward target, 0 if there is no edge.
func (a *Associations) Count(target string) int {
	return a.counts[target]
}

// Len returns the number of outgoing edges.
func (a *Associations) Len() int {
	return len(a.order)
}

// Each calls fn for every edge in insertion order until fn returns false.
func (a *Associations) Each(fn func(target string, count int) bool) {
	for _, t := range a.order {
		if !fn(t, a.counts[t]) {
			return
		}
	}
}

// Strongest returns the highest-count target. Ties go to the target that
// was associated first.
func (a *Associations) Strongest() (string, int, bool) {
	best, bestCount := "", 0
	for _, t := range a.order {
		if c := a.counts[t]; best == "" || c > bestCount {
			best, bestCount = t, c
		}
	}
	return best, bestCount, best != ""
}

func (a *Associations) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, t := range a.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(t)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		fmt.Fprintf(&buf, ":%d", a.counts[t])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON keeps document order. Non-positive or non-numeric weights are dropped.
func (a *Associations) UnmarshalJSON(data []byte) error {
	*a = Associations{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return decodeObject(trimmed, func(key string, raw json.RawMessage) error {
		var w float64
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil
		}
		if !isFinite(w) || math.Round(w) < 1 {
			return nil
		}
		if _, ok := a.counts[key]; ok {
			a.counts[key] = 0
		}
		a.Add(key, int(math.Round(w)))
		return nil
	})
}

var errNotObject = errors.New("expected a JSON object")

// decodeObject walks a JSON object's members in document order.
func decodeObject(data []byte, fn func(key string, raw json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errNotObject
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return errNotObject
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		if err := fn(key, raw); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
