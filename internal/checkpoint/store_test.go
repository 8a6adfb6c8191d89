package checkpoint

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foreman/internal/state"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "checkpoints.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveLoadRoundtrip(t *testing.T) {
	store := openTestStore(t)

	st := state.New("deploy the service")
	st.Apply(state.Update{
		Plan:      []state.Step{{Description: "build", Substeps: []string{"compile"}}},
		Messages:  []state.Message{state.HumanMessage("please deploy")},
		PastSteps: []state.PastStep{{Step: "prep", Result: "ok"}},
	})

	require.NoError(t, store.Save("run-1", st, StatusSuspended, "Which env?"))

	snap, err := store.Load("run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSuspended, snap.Status)
	assert.Equal(t, "Which env?", snap.Prompt)
	assert.Equal(t, st.Input, snap.State.Input)
	assert.Equal(t, st.Plan, snap.State.Plan)
	assert.Equal(t, st.PastSteps, snap.State.PastSteps)
}

func TestSaveOverwrites(t *testing.T) {
	store := openTestStore(t)
	st := state.New("goal")

	require.NoError(t, store.Save("run-1", st, StatusRunning, ""))
	st.Apply(state.Update{Response: "done"})
	require.NoError(t, store.Save("run-1", st, StatusDone, ""))

	snap, err := store.Load("run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusDone, snap.Status)
	assert.Equal(t, "done", snap.State.Response)

	snaps, err := store.List()
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestLoadMissing(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Load("ghost")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDelete(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Save("run-1", state.New("goal"), StatusRunning, ""))
	require.NoError(t, store.Delete("run-1"))

	_, err := store.Load("run-1")
	assert.True(t, errors.Is(err, ErrNotFound))
}
