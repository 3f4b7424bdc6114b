package cli

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/lazypower/muza/internal/config"
	"github.com/lazypower/muza/internal/engine"
	"github.com/lazypower/muza/internal/llm"
	"github.com/lazypower/muza/internal/logging"
	"github.com/lazypower/muza/internal/metrics"
	"github.com/lazypower/muza/internal/store"
)

// defaultConfigPath returns ~/.muza/muza.yaml, or MUZA_CONFIG when set.
func defaultConfigPath() string {
	if p := os.Getenv("MUZA_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".muza", "muza.yaml")
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// runtime is a fully wired graph host: store, graph, optional provider and engine.
type runtime struct {
	cfg     config.Config
	logger  *zap.Logger
	kv      store.KV
	where   string
	engine  *engine.Engine
	metrics *metrics.Collector
}

// openRuntime wires every component from cfg. withMetrics attaches a
// Prometheus collector to the engine.
func openRuntime(ctx context.Context, cfg config.Config, withMetrics bool) (*runtime, error) {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	kv, where, err := store.OpenFromConfig(ctx, cfg.Database)
	if err != nil {
		logger.Sync()
		return nil, err
	}

	graphOpts := []engine.Option{
		engine.WithKey(cfg.Graph.StorageKey),
		engine.WithLogger(logger.Named("graph")),
	}
	if cfg.Graph.Seed != 0 {
		seed := uint64(cfg.Graph.Seed)
		graphOpts = append(graphOpts, engine.WithRand(rand.New(rand.NewPCG(seed, seed>>1|1))))
	}
	g := engine.NewGraph(kv, graphOpts...)

	client, err := llm.NewClient(ctx, cfg.LLM)
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		client = nil
	case err != nil:
		logger.Warn("llm: provider unavailable, using local core", zap.String("provider", cfg.LLM.Provider), zap.Error(err))
		client = nil
	}

	engineOpts := []engine.EngineOption{
		engine.WithTemperature(cfg.LLM.Temperature),
		engine.WithTimeout(cfg.LLM.Timeout),
	}
	var collector *metrics.Collector
	if withMetrics {
		collector = metrics.NewCollector()
		engineOpts = append(engineOpts, engine.WithRecorder(collector))
	}

	return &runtime{
		cfg:     cfg,
		logger:  logger,
		kv:      kv,
		where:   where,
		engine:  engine.NewEngine(g, client, engineOpts...),
		metrics: collector,
	}, nil
}

func (rt *runtime) provider() string {
	if rt.engine.LLM == nil {
		return engine.OutcomeLocal
	}
	return rt.cfg.LLM.Provider
}

// Close stops the timers and releases the store.
func (rt *runtime) Close() error {
	rt.engine.Stop()
	err := rt.kv.Close()
	rt.logger.Sync()
	return err
}
