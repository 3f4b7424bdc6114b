package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/lazypower/muza/internal/events"
	"github.com/lazypower/muza/internal/llm"
)

// Chat reply prefixes for answers produced by the graph instead of a provider.
const (
	LocalPrefix    = "[LOCAL CORE]: "
	FallbackPrefix = "[core unavailable, local fallback]: "
)

// ChatHistory is how many turns of conversation are sent to the provider.
const ChatHistory = 10

// Chat outcomes reported to the Recorder.
const (
	OutcomeOK    = "ok"
	OutcomeLocal = "local"
	OutcomeError = "error"
	OutcomeOpen  = "open"
)

// ErrEmptyMessage is returned by Chat for blank input.
var ErrEmptyMessage = errors.New("engine: empty message")

var errEmptyReply = errors.New("provider returned an empty reply")

// Recorder receives engine activity for metrics.
type Recorder interface {
	ObserveLearn()
	ObserveInput(source Source)
	ObserveEvolve(r EvolveReport)
	ObserveChat(provider, outcome string)
	ObserveGraph(s Stats)
}

type nopRecorder struct{}

func (nopRecorder) ObserveLearn() {}
func (nopRecorder) ObserveInput(Source) {}
func (nopRecorder) ObserveEvolve(EvolveReport) {}
func (nopRecorder) ObserveChat(string, string) {}
func (nopRecorder) ObserveGraph(Stats) {}

// breakerSuccess keeps a caller giving up from counting against the provider.
func breakerSuccess(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

// ChatReply is the answer to one chat message.
type ChatReply struct {
	Text     string `json:"text"`
	Provider string `json:"provider"`
	Fallback bool   `json:"fallback"`
}

// Engine hosts a Graph: it routes chat through an optional LLM provider,
// runs the reflection loop, publishes events and records metrics.
type Engine struct {
	Graph *Graph
	LLM   llm.Client // nil answers every chat from the graph

	bus         *events.Bus
	rec         Recorder
	logger      *zap.Logger
	breaker     *gobreaker.CircuitBreaker
	temperature float64
	timeout     time.Duration

	histMu  sync.Mutex
	history []llm.Turn

	stopMu sync.Mutex
	stopCh chan struct{}
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithBus publishes engine events on b.
func WithBus(b *events.Bus) EngineOption {
	return func(e *Engine) { e.bus = b }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) { e.rec = r }
}

// WithTemperature sets the provider sampling temperature.
func WithTemperature(t float64) EngineOption {
	return func(e *Engine) { e.temperature = t }
}

// WithTimeout bounds each provider call.
func WithTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.timeout = d }
}

// WithBreaker overrides the provider circuit breaker settings.
func WithBreaker(st gobreaker.Settings) EngineOption {
	return func(e *Engine) { e.breaker = gobreaker.NewCircuitBreaker(st) }
}

// NewEngine wraps g. client may be nil.
func NewEngine(g *Graph, client llm.Client, opts ...EngineOption) *Engine {
	e := &Engine{
		Graph:       g,
		LLM:         client,
		bus:         events.NewBus(0),
		rec:         nopRecorder{},
		logger:      g.logger,
		temperature: 0.7,
		timeout:     60 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.breaker == nil {
		e.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "llm",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
			IsSuccessful: breakerSuccess,
			OnStateChange: func(name string, from, to gobreaker.State) {
				e.logger.Warn("chat: breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		})
	}

	g.OnEvolve(e.afterEvolve)
	e.rec.ObserveGraph(g.Stats())
	return e
}

// Bus returns the event bus.
func (e *Engine) Bus() *events.Bus {
	return e.bus
}

// Learn teaches the graph and records it.
func (e *Engine) Learn(text string, importance, charge float64) {
	e.Graph.Learn(text, importance, charge)
	e.rec.ObserveLearn()
	e.rec.ObserveGraph(e.Graph.Stats())
	e.bus.Publish(events.Event{Type: events.TypeLearn, Message: text})
}

// ProcessInput feeds conversational text to the graph and records it.
func (e *Engine) ProcessInput(text string, source Source) {
	e.Graph.ProcessInput(text, source)
	e.rec.ObserveInput(source)
	e.rec.ObserveGraph(e.Graph.Stats())
}

// Evolve runs one decay pass on demand.
func (e *Engine) Evolve() EvolveReport {
	report := e.Graph.Evolve()
	e.afterEvolve(report)
	return report
}

func (e *Engine) afterEvolve(report EvolveReport) {
	e.rec.ObserveEvolve(report)
	e.rec.ObserveGraph(e.Graph.Stats())
	e.bus.Publish(events.Event{Type: events.TypeEvolve, Data: report})
}

// Chat answers message. The message is always learned. A provider reply is
// learned as well; when there is no provider, the breaker is open or the
// call fails, the graph answers and that answer is not fed back.
func (e *Engine) Chat(ctx context.Context, message string) (ChatReply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return ChatReply{}, ErrEmptyMessage
	}
	e.ProcessInput(message, SourceUser)

	if e.LLM == nil {
		reply := ChatReply{
			Text:     LocalPrefix + e.Graph.Generate(message, DefaultGenerateLength),
			Provider: OutcomeLocal,
		}
		e.rec.ObserveChat(OutcomeLocal, OutcomeLocal)
		e.publishChat(message, reply)
		return reply, nil
	}

	stats := e.Graph.Stats()
	req := llm.Request{
		System: llm.PersonaPrompt(llm.CoreState{
			Nodes:        stats.Nodes,
			Synapses:     stats.Synapses,
			Crystallized: stats.Crystallized,
			Coherence:    stats.Coherence,
			Focus:        e.Graph.Focus(5),
		}),
		History:     e.recentHistory(),
		Prompt:      message,
		Temperature: e.temperature,
	}

	out, err := e.breaker.Execute(func() (interface{}, error) {
		cctx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()
		resp, err := e.LLM.Complete(cctx, req)
		if err != nil {
			return nil, err
		}
		if resp == nil || strings.TrimSpace(resp.Content) == "" {
			return nil, errEmptyReply
		}
		return resp, nil
	})
	if err != nil {
		outcome := OutcomeError
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = OutcomeOpen
		}
		e.logger.Warn("chat: provider unavailable, answering locally",
			zap.String("outcome", outcome), zap.Error(err))

		reply := ChatReply{
			Text:     FallbackPrefix + e.Graph.Generate(message, DefaultGenerateLength),
			Provider: OutcomeLocal,
			Fallback: true,
		}
		e.rec.ObserveChat(OutcomeLocal, outcome)
		e.publishChat(message, reply)
		return reply, nil
	}

	resp := out.(*llm.Response)
	e.ProcessInput(resp.Content, SourceAI)
	e.appendHistory(message, resp.Content)

	reply := ChatReply{Text: resp.Content, Provider: resp.Provider}
	e.rec.ObserveChat(resp.Provider, OutcomeOK)
	e.publishChat(message, reply)
	return reply, nil
}

func (e *Engine) publishChat(message string, reply ChatReply) {
	e.bus.Publish(events.Event{
		Type:    events.TypeChat,
		Message: reply.Text,
		Data:    map[string]any{"input": message, "provider": reply.Provider, "fallback": reply.Fallback},
	})
}

func (e *Engine) recentHistory() []llm.Turn {
	e.histMu.Lock()
	defer e.histMu.Unlock()
	out := make([]llm.Turn, len(e.history))
	copy(out, e.history)
	return out
}

func (e *Engine) appendHistory(message, reply string) {
	e.histMu.Lock()
	defer e.histMu.Unlock()
	e.history = append(e.history,
		llm.Turn{Role: llm.RoleUser, Text: message},
		llm.Turn{Role: llm.RoleAssistant, Text: reply})
	if len(e.history) > ChatHistory {
		e.history = e.history[len(e.history)-ChatHistory:]
	}
}

// ReflectOnce runs one reflection. A produced thought is fed back into the
// graph as AI input and published.
func (e *Engine) ReflectOnce() (Reflection, bool) {
	r, ok := e.Graph.Reflect()
	if !ok {
		return r, false
	}
	e.ProcessInput(r.Thought, SourceAI)
	e.bus.Publish(events.Event{Type: events.TypeReflection, Message: r.Thought, Data: r})
	e.logger.Debug("reflect: thought", zap.String("thought", r.Thought))
	return r, true
}

// StartReflection runs ReflectOnce every interval until Stop. A second call
// while running is a no-op.
func (e *Engine) StartReflection(interval time.Duration) {
	if interval <= 0 {
		return
	}
	e.stopMu.Lock()
	if e.stopCh != nil {
		e.stopMu.Unlock()
		return
	}
	stop := make(chan struct{})
	e.stopCh = stop
	e.stopMu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				e.ReflectOnce()
			case <-stop:
				return
			}
		}
	}()
}

// Stop halts the reflection loop and the graph's evolve timer.
func (e *Engine) Stop() {
	e.stopMu.Lock()
	if e.stopCh != nil {
		close(e.stopCh)
		e.stopCh = nil
	}
	e.stopMu.Unlock()
	e.Graph.Stop()
}
