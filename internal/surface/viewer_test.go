package surface

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kitchen360/catalog/internal/projector"
	"github.com/kitchen360/catalog/pkg/core"
	"github.com/kitchen360/catalog/pkg/streaming"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticLoader(info ImageInfo, err error) ImageLoader {
	return LoaderFunc(func(ctx context.Context, rawURL string) (ImageInfo, error) {
		info.URL = rawURL
		return info, err
	})
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Loader = staticLoader(ImageInfo{Format: "jpeg", Width: 4000, Height: 2000}, nil)
	return opts
}

func waitReady(t *testing.T, v *Viewer) {
	t.Helper()
	select {
	case <-v.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("surface never became ready")
	}
}

func mountReady(t *testing.T, rec *Recorder, opts Options) *Viewer {
	t.Helper()
	v, err := Mount(rec, "/pano.jpg", opts)
	require.NoError(t, err)
	waitReady(t, v)
	return v
}

func TestMount_ContainerNotAttached(t *testing.T) {
	rec := NewRecorder()
	rec.Detach()

	_, err := Mount(rec, "/pano.jpg", testOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMount)

	var me *MountError
	require.True(t, errors.As(err, &me))
	assert.Contains(t, me.Reason, "not attached")
	assert.Empty(t, rec.Rendered())

	_, err = Mount(nil, "/pano.jpg", testOptions())
	assert.ErrorIs(t, err, ErrMount)
}

func TestMount_EmptyURL(t *testing.T) {
	_, err := Mount(NewRecorder(), "", testOptions())
	assert.ErrorIs(t, err, ErrMount)
}

func TestMount_RendersOptions(t *testing.T) {
	rec := NewRecorder()
	v := mountReady(t, rec, testOptions())

	rendered := rec.Rendered()
	require.NotEmpty(t, rendered)
	assert.Equal(t, streaming.TypeMount, rendered[0].Type)

	var msg streaming.MountPayload
	require.NoError(t, rendered[0].Decode(&msg))
	assert.Equal(t, "/pano.jpg", msg.ImageURL)
	assert.Equal(t, []string{"zoom", "move", "download", "fullscreen"}, msg.Navbar)
	assert.Equal(t, []string{"markers"}, msg.Plugins)
	assert.Equal(t, 50.0, msg.DefaultZoom)

	zoom, err := v.Zoom()
	require.NoError(t, err)
	assert.Equal(t, 50.0, zoom)

	info := v.Info()
	assert.True(t, info.Equirectangular())
	assert.Equal(t, "/pano.jpg", info.URL)
}

func TestMount_ImageLoadErrorIsAsync(t *testing.T) {
	boom := errors.New("404")
	var got atomic.Value

	opts := testOptions()
	opts.Loader = staticLoader(ImageInfo{}, boom)
	opts.OnLoadError = func(err error) { got.Store(err) }
	opts.OnLoad = func(ImageInfo) { t.Error("OnLoad must not run on failure") }

	v, err := Mount(NewRecorder(), "/missing.jpg", opts)
	require.NoError(t, err)
	waitReady(t, v)

	require.Eventually(t, func() bool { return got.Load() != nil }, time.Second, 5*time.Millisecond)
	loadErr := got.Load().(error)
	assert.ErrorIs(t, loadErr, ErrImageLoad)
	assert.ErrorIs(t, loadErr, boom)

	var ile *ImageLoadError
	require.True(t, errors.As(loadErr, &ile))
	assert.Equal(t, "/missing.jpg", ile.URL)
	assert.ErrorIs(t, v.LoadError(), ErrImageLoad)

	plugin, err := v.Plugin(PluginMarkers)
	require.NoError(t, err)
	assert.Nil(t, plugin)
}

func TestLoadAfterDestroyIsIgnored(t *testing.T) {
	release := make(chan struct{})
	var loaded, failed atomic.Bool

	opts := testOptions()
	opts.Loader = LoaderFunc(func(ctx context.Context, rawURL string) (ImageInfo, error) {
		<-release
		return ImageInfo{Width: 2, Height: 1}, nil
	})
	opts.OnLoad = func(ImageInfo) { loaded.Store(true) }
	opts.OnLoadError = func(error) { failed.Store(true) }

	v, err := Mount(NewRecorder(), "/slow.jpg", opts)
	require.NoError(t, err)

	require.NoError(t, v.Destroy())
	close(release)

	assert.Never(t, func() bool { return loaded.Load() || failed.Load() }, 100*time.Millisecond, 5*time.Millisecond)
}

func TestPluginBeforeLoadIsNil(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	opts := testOptions()
	opts.Loader = LoaderFunc(func(ctx context.Context, rawURL string) (ImageInfo, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return ImageInfo{}, ctx.Err()
	})

	v, err := Mount(NewRecorder(), "/slow.jpg", opts)
	require.NoError(t, err)
	defer v.Destroy()

	plugin, err := v.Plugin(PluginMarkers)
	require.NoError(t, err)
	assert.Nil(t, plugin)
}

func TestPluginNotRequested(t *testing.T) {
	opts := testOptions()
	opts.Plugins = []PluginKind{}
	v := mountReady(t, NewRecorder(), opts)

	plugin, err := v.Plugin(PluginMarkers)
	require.NoError(t, err)
	assert.Nil(t, plugin)
}

func TestSetPosition_RoundTrip(t *testing.T) {
	v := mountReady(t, NewRecorder(), testOptions())
	proj := projector.Default()

	positions := []core.Position{
		{Yaw: 0, Pitch: 0, Zoom: 0},
		{Yaw: 1.2, Pitch: -0.3, Zoom: 40},
		{Yaw: math.Pi, Pitch: math.Pi / 2, Zoom: 100},
		{Yaw: 2*math.Pi - 1e-9, Pitch: -math.Pi / 2, Zoom: 73.5},
	}
	for _, p := range positions {
		require.NoError(t, v.SetPosition(p))
		got, err := proj.CurrentPosition(v)
		require.NoError(t, err)
		assert.True(t, p.ApproxEqual(got, 1e-9), "want %+v got %+v", p, got)
	}
}

func TestSetPosition_RendersAndClamps(t *testing.T) {
	rec := NewRecorder()
	v := mountReady(t, rec, testOptions())
	rec.Reset()

	require.NoError(t, v.SetPosition(core.Position{Yaw: -math.Pi / 2, Pitch: 0.1, Zoom: 140}))

	rendered := rec.Rendered()
	require.Len(t, rendered, 1)
	assert.Equal(t, streaming.TypeSetPosition, rendered[0].Type)

	var p core.Position
	require.NoError(t, rendered[0].Decode(&p))
	assert.InDelta(t, 3*math.Pi/2, p.Yaw, 1e-12)
	assert.Equal(t, 100.0, p.Zoom)
}

func TestPositionChanged_EchoSuppressedOnce(t *testing.T) {
	rec := NewRecorder()
	v := mountReady(t, rec, testOptions())

	var mu sync.Mutex
	var events []Event
	require.NoError(t, v.On(EventPositionChanged, func(ev Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}))

	p := core.Position{Yaw: 0.7, Pitch: 0.2, Zoom: 60}
	require.NoError(t, v.SetPosition(p))
	assert.Empty(t, events, "SetPosition must not emit synchronously")

	rec.Emit(streaming.TypePositionChanged, p)
	assert.Empty(t, events, "echo of the applied position is dropped")

	rec.Emit(streaming.TypePositionChanged, p)
	require.Len(t, events, 1)

	moved := core.Position{Yaw: 0.9, Pitch: 0.1, Zoom: 60}
	rec.Emit(streaming.TypePositionChanged, moved)
	require.Len(t, events, 2)
	assert.Equal(t, EventPositionChanged, events[1].Kind)
	assert.True(t, moved.ApproxEqual(events[1].Position, 1e-12))

	current, err := v.Position()
	require.NoError(t, err)
	assert.True(t, moved.ApproxEqual(current, 1e-12))
}

func TestClickEvent(t *testing.T) {
	rec := NewRecorder()
	v := mountReady(t, rec, testOptions())

	var got []Event
	require.NoError(t, v.On(EventClick, func(ev Event) { got = append(got, ev) }))

	zoom := 40.0
	rec.Emit(streaming.TypeClick, streaming.ClickPayload{Yaw: 1.2, Pitch: -0.3, Zoom: &zoom})
	rec.Emit(streaming.TypeClick, streaming.ClickPayload{Yaw: 0.1, Pitch: 0.2})

	require.Len(t, got, 2)
	assert.Equal(t, projector.Click{Yaw: 1.2, Pitch: -0.3}, got[0].Click)
	assert.Equal(t, 40.0, got[0].Zoom)
	assert.Equal(t, 50.0, got[1].Zoom, "current zoom is used when the click carries none")
}

func TestMalformedMessagesAreDropped(t *testing.T) {
	rec := NewRecorder()
	v := mountReady(t, rec, testOptions())

	called := false
	require.NoError(t, v.On(EventClick, func(Event) { called = true }))

	rec.Emit(streaming.TypeClick, "not an object")
	assert.False(t, called)
}

func TestDestroy(t *testing.T) {
	rec := NewRecorder()
	v := mountReady(t, rec, testOptions())

	clicks := 0
	require.NoError(t, v.On(EventClick, func(Event) { clicks++ }))
	plugin, err := v.Plugin(PluginMarkers)
	require.NoError(t, err)
	require.NotNil(t, plugin)

	require.NoError(t, v.Destroy())

	types := rec.RenderedTypes()
	assert.Equal(t, streaming.TypeDestroy, types[len(types)-1])
	for _, msgType := range inboundTypes {
		assert.False(t, rec.Handled(msgType), msgType)
	}
	assert.False(t, rec.Emit(streaming.TypeClick, streaming.ClickPayload{}))
	assert.Zero(t, clicks)

	assert.ErrorIs(t, v.Destroy(), ErrDestroyed)
	assert.ErrorIs(t, v.On(EventClick, func(Event) {}), ErrDestroyed)
	assert.ErrorIs(t, v.SetPosition(core.Position{}), ErrDestroyed)
	_, err = v.Position()
	assert.ErrorIs(t, err, ErrDestroyed)
	_, _, err = v.Orientation()
	assert.ErrorIs(t, err, ErrDestroyed)
	_, err = v.Zoom()
	assert.ErrorIs(t, err, ErrDestroyed)
	_, err = v.Plugin(PluginMarkers)
	assert.ErrorIs(t, err, ErrDestroyed)

	assert.ErrorIs(t, plugin.AddMarker(core.MarkerDescriptor{ID: "a"}), ErrDestroyed)
	assert.Zero(t, plugin.Len())
}

func TestParseNavbar(t *testing.T) {
	n, err := ParseNavbar([]string{"Zoom", " fullscreen "})
	require.NoError(t, err)
	assert.True(t, n.Has(NavZoom))
	assert.True(t, n.Has(NavFullscreen))
	assert.False(t, n.Has(NavMove))
	assert.Equal(t, []string{"zoom", "fullscreen"}, n.Names())

	n, err = ParseNavbar(nil)
	require.NoError(t, err)
	assert.Empty(t, n.Names())

	_, err = ParseNavbar([]string{"compass"})
	assert.Error(t, err)
}
