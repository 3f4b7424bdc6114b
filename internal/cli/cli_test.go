package cli

import (
	"bytes"
	"math/rand/v2"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/muza/internal/engine"
	"github.com/lazypower/muza/internal/server"
)

// isolate points the CLI at a fresh database and an unreachable server.
func isolate(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "muza.db")
	t.Setenv("MUZA_DB_PATH", dbPath)
	t.Setenv("MUZA_URL", "http://127.0.0.1:1")
	t.Setenv("MUZA_LOG_LEVEL", "error")
	t.Setenv("MUZA_LLM_PROVIDER", "local")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	return dbPath
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, "", args...)
	require.NoError(t, err, "muza %s", strings.Join(args, " "))
	return out
}

func TestVersion(t *testing.T) {
	out := mustRun(t, "version")
	assert.True(t, strings.HasPrefix(out, "muza dev"), out)
}

func TestLearnPersistsAcrossInvocations(t *testing.T) {
	isolate(t)

	out := mustRun(t, "learn", "night", "river", "flows")
	assert.Equal(t, "learned: 6 concepts, 4 synapses\n", out)

	assert.Equal(t, "night river flows\n", mustRun(t, "generate", "night"))
	assert.Equal(t, "night river\n", mustRun(t, "generate", "night", "-n", "1"))

	stats := mustRun(t, "stats")
	assert.Contains(t, stats, "concepts:      6")
	assert.Contains(t, stats, "synapses:      4")
	assert.Contains(t, stats, "coherence:     0.95")
}

func TestGenerateLengthBounds(t *testing.T) {
	isolate(t)

	for _, n := range []string{"0", "65"} {
		_, err := run(t, "", "generate", "logos", "-n", n)
		assert.Error(t, err, "length %s", n)
	}
	assert.Equal(t, "logos core initialized\n", mustRun(t, "generate", "logos", "-n", "64"))
}

func TestLearnRejectsBadWeights(t *testing.T) {
	isolate(t)
	_, err := run(t, "", "learn", "--importance", "2", "text here")
	assert.Error(t, err)
}

func TestInput(t *testing.T) {
	isolate(t)

	out := mustRun(t, "input", "--source", "ai", "hello there")
	assert.Equal(t, "processed: 5 concepts, 3 synapses\n", out)

	_, err := run(t, "", "input", "--source", "bot", "hello")
	assert.Error(t, err)
}

func TestReflect(t *testing.T) {
	isolate(t)

	out := mustRun(t, "reflect")
	assert.Contains(t, out, "not enough memory")

	mustRun(t, "learn", "alpha beta gamma")
	out = mustRun(t, "reflect")
	assert.True(t, strings.HasPrefix(out, "["+engine.MoodThoughtful+"] "), out)
}

func TestEvolve(t *testing.T) {
	isolate(t)

	out := mustRun(t, "evolve", "--times", "3")
	assert.Equal(t, "evolved 3 passes: pruned 0, 3 remaining\n", out)

	out = mustRun(t, "evolve", "--times", "2")
	assert.Equal(t, "evolved 2 passes: pruned 0, 3 remaining\n", out)

	out = mustRun(t, "evolve")
	assert.Equal(t, "evolved 1 pass: pruned 0, 3 remaining\n", out)

	_, err := run(t, "", "evolve", "--times", "0")
	assert.Error(t, err)
}

func TestNetwork(t *testing.T) {
	isolate(t)

	out := mustRun(t, "network")
	assert.Contains(t, out, `"source": "logos"`)
	assert.Contains(t, out, `"isCrystallized": false`)

	out = mustRun(t, "network", "--visual", "--max", "1")
	assert.Equal(t, 1, strings.Count(out, `"val"`))
}

func TestChatLocal(t *testing.T) {
	isolate(t)

	out := mustRun(t, "chat", "logos", "core")
	assert.Equal(t, engine.LocalPrefix+"core initialized\n", out)

	out, err := run(t, "logos core\n\nlogos\n", "chat")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, engine.LocalPrefix+"logos core initialized", lines[1])
}

func TestKeysAndReset(t *testing.T) {
	isolate(t)
	mustRun(t, "learn", "night river flows")

	out := mustRun(t, "keys")
	assert.Contains(t, out, "* "+engine.DefaultStorageKey)

	out = mustRun(t, "reset")
	assert.Equal(t, "deleted "+engine.DefaultStorageKey+"\n", out)

	assert.Contains(t, mustRun(t, "stats"), "concepts:      3")
}

func TestRemoteBackend(t *testing.T) {
	isolate(t)

	g := engine.NewGraph(nil, engine.WithRand(rand.New(rand.NewPCG(5, 6))))
	eng := engine.NewEngine(g, nil)
	t.Cleanup(eng.Stop)
	ts := httptest.NewServer(server.New(eng, "test"))
	t.Cleanup(ts.Close)
	t.Setenv("MUZA_URL", ts.URL)

	out := mustRun(t, "learn", "night river flows")
	assert.Equal(t, "learned: 6 concepts, 4 synapses\n", out)
	assert.Equal(t, 6, g.Len())

	_, err := run(t, "", "reset")
	assert.Error(t, err, "reset must refuse while the server owns the key")

	// --local bypasses the server; the on-disk graph was never touched.
	assert.Contains(t, mustRun(t, "--local", "stats"), "concepts:      3")
}
