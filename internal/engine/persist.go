package engine

import (
	"bytes"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// Marshal serializes the graph as {"nodes": {...}, "lastUpdate": ms},
// nodes and associations in insertion order.
func (g *Graph) Marshal() ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.marshal()
}

func (g *Graph) marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"nodes":{`)
	for i, id := range g.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		v, err := g.nodes[id].MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("marshal node %q: %w", id, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	fmt.Fprintf(&buf, `},"lastUpdate":%d}`, g.lastUpdate)
	return buf.Bytes(), nil
}

type document struct {
	Nodes      json.RawMessage `json:"nodes"`
	LastUpdate *float64        `json:"lastUpdate"`
}

// unmarshal parses a persisted graph into fresh node tables. The receiver is
// only modified on success.
func (g *Graph) unmarshal(data []byte) error {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode graph: %w", err)
	}
	if len(doc.Nodes) == 0 {
		return fmt.Errorf("decode graph: missing nodes")
	}

	lastUpdate := g.lastUpdate
	if doc.LastUpdate != nil && isFinite(*doc.LastUpdate) {
		lastUpdate = int64(*doc.LastUpdate)
	}

	nodes := make(map[string]*Node)
	var order []string
	err := decodeObject(doc.Nodes, func(key string, raw json.RawMessage) error {
		n, err := decodeNode(key, raw, lastUpdate)
		if err != nil {
			return err
		}
		if _, dup := nodes[key]; !dup {
			order = append(order, key)
		}
		nodes[key] = n
		return nil
	})
	if err != nil {
		return fmt.Errorf("decode graph nodes: %w", err)
	}

	g.nodes = nodes
	g.order = order
	g.lastUpdate = lastUpdate
	return nil
}

func (g *Graph) load() {
	if g.store == nil {
		return
	}
	data, err := g.store.Get(g.key)
	if err != nil {
		g.logger.Warn("load: read failed, starting empty", zap.String("key", g.key), zap.Error(err))
		return
	}
	if data == nil {
		return
	}
	if err := g.unmarshal(data); err != nil {
		g.logger.Warn("load: corrupt state, starting empty", zap.String("key", g.key), zap.Error(err))
		return
	}
	g.logger.Debug("load: restored graph", zap.String("key", g.key), zap.Int("nodes", len(g.nodes)))
}

// save persists the graph. Failures are logged and otherwise ignored: the
// in-memory graph stays authoritative until a later save succeeds.
func (g *Graph) save() {
	g.lastUpdate = g.now().UnixMilli()
	if g.store == nil {
		return
	}
	data, err := g.marshal()
	if err != nil {
		g.logger.Warn("save: encode failed", zap.Error(err))
		return
	}
	if err := g.store.Set(g.key, data); err != nil {
		g.logger.Warn("save: write failed", zap.String("key", g.key), zap.Error(err))
	}
}
