package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/muza/internal/events"
	"github.com/lazypower/muza/internal/llm"
)

type fakeRecorder struct {
	mu      sync.Mutex
	learns  int
	inputs  []Source
	evolves []EvolveReport
	chats   [][2]string
	stats   Stats
}

func (f *fakeRecorder) ObserveLearn() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.learns++
}

func (f *fakeRecorder) ObserveInput(s Source) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, s)
}

func (f *fakeRecorder) ObserveEvolve(r EvolveReport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evolves = append(f.evolves, r)
}

func (f *fakeRecorder) ObserveChat(provider, outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = append(f.chats, [2]string{provider, outcome})
}

func (f *fakeRecorder) ObserveGraph(s Stats) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats = s
}

func testEngine(t *testing.T, client llm.Client, opts ...EngineOption) (*Engine, *fakeRecorder) {
	t.Helper()
	rec := &fakeRecorder{}
	g := testGraph(t, nil)
	e := NewEngine(g, client, append([]EngineOption{WithRecorder(rec)}, opts...)...)
	t.Cleanup(e.Stop)
	return e, rec
}

func TestNewEngineRecordsInitialStats(t *testing.T) {
	_, rec := testEngine(t, nil)
	assert.Equal(t, 3, rec.stats.Nodes)
}

func TestChatWithoutProvider(t *testing.T) {
	e, rec := testEngine(t, nil)

	reply, err := e.Chat(context.Background(), "logos core")
	require.NoError(t, err)
	assert.Equal(t, LocalPrefix+"core initialized", reply.Text)
	assert.Equal(t, OutcomeLocal, reply.Provider)
	assert.False(t, reply.Fallback)

	assert.Equal(t, []Source{SourceUser}, rec.inputs, "local replies are not learned")
	assert.Equal(t, [][2]string{{OutcomeLocal, OutcomeLocal}}, rec.chats)

	logos, _ := e.Graph.Node("logos")
	assert.Equal(t, 2, logos.Associations[0].Weight, "user message was learned")
}

func TestChatEmptyMessage(t *testing.T) {
	e, _ := testEngine(t, nil)
	_, err := e.Chat(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestChatWithProvider(t *testing.T) {
	mock := &llm.MockClient{Response: &llm.Response{Content: "bright answer", Provider: "mock"}}
	e, rec := testEngine(t, mock, WithTemperature(0.4))

	reply, err := e.Chat(context.Background(), "tell me something")
	require.NoError(t, err)
	assert.Equal(t, ChatReply{Text: "bright answer", Provider: "mock"}, reply)

	require.Equal(t, 1, mock.CallCount())
	req := mock.Calls[0]
	assert.Equal(t, "tell me something", req.Prompt)
	assert.Equal(t, 0.4, req.Temperature)
	assert.Empty(t, req.History)
	assert.Contains(t, req.System, "concepts: 6")

	answer, ok := e.Graph.Node("answer")
	require.True(t, ok, "provider reply is learned")
	assert.Equal(t, AIImportance, answer.Importance)
	assert.Equal(t, []Source{SourceUser, SourceAI}, rec.inputs)
	assert.Equal(t, [][2]string{{"mock", OutcomeOK}}, rec.chats)

	_, err = e.Chat(context.Background(), "and again")
	require.NoError(t, err)
	assert.Equal(t, []llm.Turn{
		{Role: llm.RoleUser, Text: "tell me something"},
		{Role: llm.RoleAssistant, Text: "bright answer"},
	}, mock.Calls[1].History)
}

func TestChatHistoryIsBounded(t *testing.T) {
	mock := &llm.MockClient{Response: &llm.Response{Content: "ok then", Provider: "mock"}}
	e, _ := testEngine(t, mock)

	for i := 0; i < 8; i++ {
		_, err := e.Chat(context.Background(), "message number")
		require.NoError(t, err)
	}
	last := mock.Calls[len(mock.Calls)-1]
	assert.Len(t, last.History, ChatHistory)
	assert.Equal(t, llm.RoleUser, last.History[0].Role)
}

func TestChatProviderFailureFallsBack(t *testing.T) {
	mock := &llm.MockClient{Err: errors.New("upstream 500")}
	e, rec := testEngine(t, mock)

	reply, err := e.Chat(context.Background(), "logos core")
	require.NoError(t, err)
	assert.Equal(t, FallbackPrefix+"core initialized", reply.Text)
	assert.True(t, reply.Fallback)
	assert.Equal(t, [][2]string{{OutcomeLocal, OutcomeError}}, rec.chats)
	assert.Equal(t, []Source{SourceUser}, rec.inputs)
}

func TestChatEmptyReplyFallsBack(t *testing.T) {
	mock := &llm.MockClient{Response: &llm.Response{Content: "  ", Provider: "mock"}}
	e, _ := testEngine(t, mock)

	reply, err := e.Chat(context.Background(), "hello there")
	require.NoError(t, err)
	assert.True(t, reply.Fallback)
}

func TestChatBreakerOpens(t *testing.T) {
	mock := &llm.MockClient{Err: errors.New("timeout")}
	e, rec := testEngine(t, mock, WithBreaker(gobreaker.Settings{
		Name:    "test",
		Timeout: time.Hour,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 1
		},
	}))

	_, err := e.Chat(context.Background(), "first try")
	require.NoError(t, err)
	reply, err := e.Chat(context.Background(), "second try")
	require.NoError(t, err)

	assert.True(t, reply.Fallback)
	assert.Equal(t, 1, mock.CallCount(), "open breaker skips the provider")
	assert.Equal(t, [][2]string{{OutcomeLocal, OutcomeError}, {OutcomeLocal, OutcomeOpen}}, rec.chats)
}

func TestChatCancellationKeepsBreakerClosed(t *testing.T) {
	mock := &llm.MockClient{Err: fmt.Errorf("ollama api: %w", context.Canceled)}
	e, rec := testEngine(t, mock)

	for i := 0; i < 4; i++ {
		reply, err := e.Chat(context.Background(), "client went away")
		require.NoError(t, err)
		assert.True(t, reply.Fallback)
	}

	assert.Equal(t, 4, mock.CallCount(), "cancelled calls must not trip the breaker")
	assert.Equal(t, gobreaker.StateClosed, e.breaker.State())
	for _, c := range rec.chats {
		assert.Equal(t, OutcomeError, c[1])
	}
}

func TestChatPublishesEvent(t *testing.T) {
	e, _ := testEngine(t, nil)
	_, err := e.Chat(context.Background(), "logos")
	require.NoError(t, err)

	evs := e.Bus().Recent(0)
	require.Len(t, evs, 1)
	assert.Equal(t, events.TypeChat, evs[0].Type)
}

func TestLearnRecordsAndPublishes(t *testing.T) {
	e, rec := testEngine(t, nil)
	e.Learn("new knowledge arrives", DefaultImportance, DefaultCharge)

	assert.Equal(t, 1, rec.learns)
	assert.Equal(t, 6, rec.stats.Nodes)
	evs := e.Bus().Recent(0)
	require.Len(t, evs, 1)
	assert.Equal(t, events.TypeLearn, evs[0].Type)
}

func TestEvolveRecordsAndPublishes(t *testing.T) {
	e, rec := testEngine(t, nil)
	report := e.Evolve()

	assert.Equal(t, []EvolveReport{report}, rec.evolves)
	evs := e.Bus().Recent(0)
	require.Len(t, evs, 1)
	assert.Equal(t, events.TypeEvolve, evs[0].Type)
}

func TestTimerEvolvePublishes(t *testing.T) {
	e, _ := testEngine(t, nil)
	ch, cancel := e.Bus().Subscribe(8)
	defer cancel()

	e.Graph.Start(5 * time.Millisecond)

	select {
	case ev := <-ch:
		assert.Equal(t, events.TypeEvolve, ev.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no evolve event from the timer")
	}
}

func TestReflectOnce(t *testing.T) {
	e, rec := testEngine(t, nil)

	_, ok := e.ReflectOnce()
	assert.False(t, ok, "bootstrap alone is too small")
	assert.Empty(t, rec.inputs)

	e.Learn("waves break on stones", DefaultImportance, DefaultCharge)
	r, ok := e.ReflectOnce()
	require.True(t, ok)
	assert.Equal(t, MoodThoughtful, r.Mood)
	assert.Equal(t, []Source{SourceAI}, rec.inputs, "thought is fed back")

	evs := e.Bus().Recent(0)
	assert.Equal(t, events.TypeReflection, evs[len(evs)-1].Type)
}

func TestStartReflection(t *testing.T) {
	e, _ := testEngine(t, nil)
	e.Learn("waves break on stones", DefaultImportance, DefaultCharge)

	ch, cancel := e.Bus().Subscribe(8)
	defer cancel()

	e.StartReflection(5 * time.Millisecond)
	e.StartReflection(5 * time.Millisecond)

	select {
	case ev := <-ch:
		assert.Equal(t, events.TypeReflection, ev.Type)
		assert.NotEmpty(t, ev.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("no reflection")
	}

	e.Stop()
	e.Stop()
}
