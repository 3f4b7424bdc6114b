package cli

import (
	"context"

	"github.com/lazypower/muza/internal/client"
	"github.com/lazypower/muza/internal/engine"
)

// backend is the graph surface the memory commands use. It is either a
// running server or a graph opened directly from the store.
type backend interface {
	Stats() (engine.Stats, error)
	Learn(text string, importance, charge float64) (engine.Stats, error)
	Input(text string, source engine.Source) (engine.Stats, error)
	Generate(seed string, length int) (string, error)
	Reflect() (engine.Reflection, bool, error)
	Evolve() (engine.EvolveReport, error)
	Network() (engine.Network, error)
	VisualNetwork(maxNodes int) (engine.VisualNetwork, error)
	Chat(message string) (engine.ChatReply, error)
	Close() error
}

// openBackend prefers a reachable server so the CLI never writes the
// storage key underneath it.
func openBackend(ctx context.Context) (backend, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if !localOnly {
		c := client.New("http://" + cfg.ListenAddr())
		if c.Healthy() {
			return remoteBackend{c}, nil
		}
	}
	rt, err := openRuntime(ctx, cfg, false)
	if err != nil {
		return nil, err
	}
	return &localBackend{rt: rt, ctx: ctx}, nil
}

type remoteBackend struct {
	*client.Client
}

func (remoteBackend) Close() error { return nil }

type localBackend struct {
	rt  *runtime
	ctx context.Context
}

func (b *localBackend) graph() *engine.Graph { return b.rt.engine.Graph }

func (b *localBackend) Stats() (engine.Stats, error) {
	return b.graph().Stats(), nil
}

func (b *localBackend) Learn(text string, importance, charge float64) (engine.Stats, error) {
	b.rt.engine.Learn(text, importance, charge)
	return b.graph().Stats(), nil
}

func (b *localBackend) Input(text string, source engine.Source) (engine.Stats, error) {
	b.rt.engine.ProcessInput(text, source)
	return b.graph().Stats(), nil
}

func (b *localBackend) Generate(seed string, length int) (string, error) {
	return b.graph().Generate(seed, length), nil
}

func (b *localBackend) Reflect() (engine.Reflection, bool, error) {
	r, ok := b.graph().Reflect()
	return r, ok, nil
}

func (b *localBackend) Evolve() (engine.EvolveReport, error) {
	return b.rt.engine.Evolve(), nil
}

func (b *localBackend) Network() (engine.Network, error) {
	return b.graph().FullNetwork(), nil
}

func (b *localBackend) VisualNetwork(maxNodes int) (engine.VisualNetwork, error) {
	return b.graph().VisualNetwork(maxNodes), nil
}

func (b *localBackend) Chat(message string) (engine.ChatReply, error) {
	return b.rt.engine.Chat(b.ctx, message)
}

func (b *localBackend) Close() error {
	return b.rt.Close()
}
