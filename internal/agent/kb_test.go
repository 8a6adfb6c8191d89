package agent

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"foreman/internal/kb"
	"foreman/internal/reasoner"
	"foreman/internal/state"
)

// testKBStore opens a throwaway store with no embedder, so retrieval runs
// the keyword path deterministically.
func testKBStore(t *testing.T) *kb.Store {
	t.Helper()
	store, err := kb.OpenStore(filepath.Join(t.TempDir(), "kb.db"), nil, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.Add(ctx, "The deploy pipeline runs nightly at 02:00 UTC.", "ops.md"))
	require.NoError(t, store.Add(ctx, "Rollbacks use the previous container image tag.", "ops.md"))
	return store
}

func TestKBWorkerRelevantDocsGenerateAnswer(t *testing.T) {
	client := &reasoner.FakeClient{
		Completions: []string{
			"yes", // relevance grade
			"The deploy pipeline runs nightly at 02:00 UTC. Sources: [1] ops.md",
		},
	}

	w := NewKBWorker(client, testKBStore(t), 5, 3, zap.NewNop())
	st := state.New("goal")
	st.Instruction = "When does the deploy pipeline run?"

	outcome, err := w.Run(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, RouteSupervisor, outcome.Route)
	assert.Equal(t, []string{"ops.md"}, outcome.Update.Sources)

	last := outcome.Update.Messages[len(outcome.Update.Messages)-1]
	assert.Contains(t, last.Content, "02:00 UTC")
	assert.Equal(t, 2, client.CompleteCalls)
}

func TestKBWorkerRewriteThenGenerate(t *testing.T) {
	client := &reasoner.FakeClient{
		Completions: []string{
			"no",                             // first grade
			"deploy pipeline nightly timing", // rewrite
			"yes",                            // second grade
			"It runs nightly.",               // answer
		},
	}

	w := NewKBWorker(client, testKBStore(t), 5, 3, zap.NewNop())
	st := state.New("goal")
	st.Instruction = "deploy pipeline when"

	outcome, err := w.Run(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, RouteSupervisor, outcome.Route)

	// The rewrite announcement lands in the transcript.
	var announced bool
	for _, m := range outcome.Update.Messages {
		if m.Role == state.RoleAI && m.Content != "" && m.Content != "It runs nightly." {
			announced = true
		}
	}
	assert.True(t, announced, "rewrite announcement missing")
}

func TestKBWorkerRewriteCeilingBestEffort(t *testing.T) {
	client := &reasoner.FakeClient{
		Completions: []string{
			"no", "deploy pipeline schedule", // attempt 0
			"no", "deploy pipeline nightly", // attempt 1
			"no",                 // attempt 2 hits the ceiling
			"Best-effort answer", // forced generate
		},
	}

	w := NewKBWorker(client, testKBStore(t), 5, 2, zap.NewNop())
	st := state.New("goal")
	st.Instruction = "deploy pipeline when"

	outcome, err := w.Run(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, RouteSupervisor, outcome.Route)

	last := outcome.Update.Messages[len(outcome.Update.Messages)-1]
	assert.Equal(t, "Best-effort answer", last.Content)
	assert.Equal(t, 6, client.CompleteCalls, "grading stops at the rewrite ceiling")
}

func TestKBWorkerEmptyStore(t *testing.T) {
	store, err := kb.OpenStore(filepath.Join(t.TempDir(), "kb.db"), nil, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	// No reasoner calls needed: empty retrieval grades as irrelevant
	// without the model, and the canned fallback answer is used.
	client := &reasoner.FakeClient{
		Completions: []string{"rw1", "rw2", "rw3"},
	}

	w := NewKBWorker(client, store, 5, 3, zap.NewNop())
	st := state.New("goal")
	st.Instruction = "anything"

	outcome, err := w.Run(context.Background(), st)
	require.NoError(t, err)

	last := outcome.Update.Messages[len(outcome.Update.Messages)-1]
	assert.Contains(t, last.Content, "couldn't find relevant information")
}
