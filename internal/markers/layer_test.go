package markers

import (
	"errors"
	"testing"

	"github.com/kitchen360/catalog/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRenderer struct {
	rendered map[string]bool
	calls    []string
	fail     error
	onSelect func(id string)
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{rendered: map[string]bool{}}
}

func (r *fakeRenderer) AddMarker(desc core.MarkerDescriptor) error {
	if r.fail != nil {
		return r.fail
	}
	r.calls = append(r.calls, "add:"+desc.ID)
	r.rendered[desc.ID] = true
	return nil
}

func (r *fakeRenderer) RemoveMarker(id string) error {
	r.calls = append(r.calls, "remove:"+id)
	delete(r.rendered, id)
	return nil
}

func (r *fakeRenderer) ClearMarkers() error {
	r.calls = append(r.calls, "clear")
	r.rendered = map[string]bool{}
	return nil
}

func (r *fakeRenderer) OnSelect(fn func(id string)) { r.onSelect = fn }

func desc(id string) core.MarkerDescriptor {
	return core.MarkerDescriptor{ID: id, Position: core.Position{Yaw: 1, Zoom: 50}, Content: core.PlainText(id)}
}

func TestAdd_DuplicateID(t *testing.T) {
	r := newFakeRenderer()
	l := New(r, nil)

	require.NoError(t, l.Add(desc("a")))
	err := l.Add(desc("a"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateID)

	var dup *DuplicateIDError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "a", dup.ID)
	assert.Equal(t, 1, l.Len())
	assert.Equal(t, []string{"add:a"}, r.calls)
}

func TestAdd_RenderFailureLeavesLayerUnchanged(t *testing.T) {
	r := newFakeRenderer()
	r.fail = errors.New("gone")
	l := New(r, nil)

	assert.ErrorIs(t, l.Add(desc("a")), r.fail)
	assert.Zero(t, l.Len())
}

func TestRemove_Idempotent(t *testing.T) {
	r := newFakeRenderer()
	l := New(r, nil)

	require.NoError(t, l.Add(desc("a")))
	require.NoError(t, l.Add(desc("b")))
	require.NoError(t, l.Remove("a"))
	require.NoError(t, l.Remove("a"))
	require.NoError(t, l.Remove("never"))

	assert.Equal(t, []string{"b"}, l.IDs())
	assert.Equal(t, []string{"add:a", "add:b", "remove:a"}, r.calls)
}

func TestClear(t *testing.T) {
	r := newFakeRenderer()
	l := New(r, nil)

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, l.Add(desc(id)))
	}
	assert.Equal(t, []string{"c", "a", "b"}, l.IDs())
	assert.Equal(t, []string{"a", "b", "c"}, l.SortedIDs())

	require.NoError(t, l.Clear())
	assert.Zero(t, l.Len())
	assert.Empty(t, r.rendered)
	_, ok := l.Get("a")
	assert.False(t, ok)
}

// A resync is always Clear followed by Add for every entity. Repeating it with the
// same input must leave the same set and never report duplicates.
func TestFullRebuildIsIdempotent(t *testing.T) {
	r := newFakeRenderer()
	l := New(r, nil)
	ids := []string{"x", "y", "z"}

	resync := func() {
		require.NoError(t, l.Clear())
		for _, id := range ids {
			require.NoError(t, l.Add(desc(id)))
		}
	}
	resync()
	first := l.SortedIDs()
	resync()

	assert.Equal(t, first, l.SortedIDs())
	assert.Len(t, r.rendered, 3)
}

func TestOnSelected_GuardsRemovedMarkers(t *testing.T) {
	r := newFakeRenderer()
	l := New(r, nil)

	var got []string
	l.OnSelected(func(id string) { got = append(got, id) })

	require.NoError(t, l.Add(desc("a")))
	require.NoError(t, l.Add(desc("b")))
	r.onSelect("a")

	require.NoError(t, l.Remove("a"))
	r.onSelect("a")

	require.NoError(t, l.Clear())
	r.onSelect("b")

	assert.Equal(t, []string{"a"}, got)
}

func TestRelease(t *testing.T) {
	r := newFakeRenderer()
	l := New(r, nil)

	called := false
	l.OnSelected(func(string) { called = true })
	require.NoError(t, l.Add(desc("a")))

	l.Release()
	r.onSelect("a")
	assert.False(t, called)
	assert.Zero(t, l.Len())
}

func TestGet(t *testing.T) {
	l := New(newFakeRenderer(), nil)
	require.NoError(t, l.Add(desc("a")))

	got, ok := l.Get("a")
	require.True(t, ok)
	assert.Equal(t, core.PlainText("a"), got.Content)
}
