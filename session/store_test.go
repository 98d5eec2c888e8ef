package session

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripmesh/tripmesh/core"
	"github.com/tripmesh/tripmesh/internal/testutil"
)

// storeUnderTest exercises the ThreadStore contract shared by all backends.
func storeUnderTest(t *testing.T, store core.ThreadStore) {
	t.Helper()

	th, err := store.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", th.ID)

	require.NoError(t, store.ApplyDelta("t1", map[string]string{"city": "Lisbon", "season": "summer"}))
	require.NoError(t, store.ApplyDelta("t1", map[string]string{"city": "Porto", "season": ""}))

	th, err = store.Get("t1")
	require.NoError(t, err)
	v, _ := th.Slot("city")
	assert.Equal(t, "Porto", v)
	v, _ = th.Slot("season")
	assert.Equal(t, "summer", v, "empty delta value must not clobber")

	require.NoError(t, store.AppendEvent("t1", core.NewUserMessageEvent("turn-1", "hello")))
	require.NoError(t, store.AppendEvent("t1", core.NewMessageEvent("assistant", "hi there")))

	th, err = store.Get("t1")
	require.NoError(t, err)
	require.Len(t, th.GetEvents(), 2)
	assert.Equal(t, "hello", th.GetEvents()[0].Content.Text())

	receipt := core.NewReceipt("turn-1", "weather", 0.9, "regex")
	receipt.AddSource("open-meteo", "forecast", "")
	require.NoError(t, store.SetReceipt("t1", receipt))

	th, err = store.Get("t1")
	require.NoError(t, err)
	require.NotNil(t, th.LastReceipt())
	assert.Equal(t, "weather", th.LastReceipt().Intent)

	require.NoError(t, store.RemoveSlots("t1", []string{"season"}))
	th, _ = store.Get("t1")
	_, ok := th.Slot("season")
	assert.False(t, ok)

	require.NoError(t, store.Clear("t1"))
	th, err = store.Get("t1")
	require.NoError(t, err)
	assert.Empty(t, th.SlotSnapshot())
	assert.Empty(t, th.GetEvents())
	assert.Nil(t, th.LastReceipt())
}

func TestInMemoryStore(t *testing.T) {
	storeUnderTest(t, NewInMemoryStore())
}

func TestFileStore(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	storeUnderTest(t, store)
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	store, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.ApplyDelta("t2", map[string]string{"city": "Kyoto"}))

	call := testutil.NewEventBuilder().
		Author("weather").
		Turn("turn-1").
		FunctionCall("call-1", "geocode_city", `{"city":"Kyoto"}`).
		Build()
	resp := testutil.NewEventBuilder().
		Author("weather").
		Turn("turn-1").
		FunctionResponse("call-1", "geocode_city", map[string]any{"lat": 35.01, "lon": 135.77}).
		SlotDelta("month", "April").
		Build()
	require.NoError(t, store.AppendEvent("t2", call))
	require.NoError(t, store.AppendEvent("t2", resp))

	reopened, err := NewFileStore(dir)
	require.NoError(t, err)

	th, err := reopened.Get("t2")
	require.NoError(t, err)
	v, _ := th.Slot("city")
	assert.Equal(t, "Kyoto", v)

	events := th.GetEvents()
	require.Len(t, events, 2)
	calls := events[0].GetFunctionCalls()
	require.Len(t, calls, 1, "function call parts must survive the JSON round trip")
	assert.Equal(t, "geocode_city", calls[0].Name)
	require.Len(t, events[1].GetFunctionResponses(), 1)
	assert.Equal(t, "April", events[1].Actions.SlotDelta["month"])
}

func TestFileStore_RejectsUnsafeIDs(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get("../escape")
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(t.TempDir(), "..", "escape.json"))
}

func TestInMemoryStore_ReturnsClones(t *testing.T) {
	store := NewInMemoryStore()
	th, err := store.Get("t3")
	require.NoError(t, err)

	th.SetSlot("city", "Oslo")

	fresh, err := store.Get("t3")
	require.NoError(t, err)
	_, ok := fresh.Slot("city")
	assert.False(t, ok, "mutating a returned clone must not touch the store")
}
