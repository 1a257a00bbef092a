package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitchen360/catalog/internal/dispatcher"
	"github.com/kitchen360/catalog/internal/logging"
	"github.com/kitchen360/catalog/internal/surface"
	"github.com/kitchen360/catalog/pkg/core"
	"github.com/kitchen360/catalog/pkg/streaming"
)

// testServer accepts one viewer connection per request and hands the server side
// to the test.
func testServer(t *testing.T) (*httptest.Server, <-chan *Conn) {
	t.Helper()
	conns := make(chan *Conn, 4)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d, err := dispatcher.New(logging.NewDispatcherLogger(nil))
		if err != nil {
			t.Errorf("dispatcher: %v", err)
			return
		}
		c, err := Upgrader{}.Accept(w, r, d)
		if err != nil {
			t.Logf("accept error: %v", err)
			return
		}
		conns <- c
		_ = c.Serve(context.Background())
	}))
	t.Cleanup(srv.Close)
	return srv, conns
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func accept(t *testing.T, conns <-chan *Conn) *Conn {
	t.Helper()
	select {
	case c := <-conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("server never accepted the connection")
		return nil
	}
}

func staticOptions() surface.Options {
	opts := surface.DefaultOptions()
	opts.Loader = surface.LoaderFunc(func(ctx context.Context, rawURL string) (surface.ImageInfo, error) {
		return surface.ImageInfo{URL: rawURL, Width: 2048, Height: 1024}, nil
	})
	return opts
}

func TestViewerOverWebSocket(t *testing.T) {
	srv, conns := testServer(t)

	client, err := Dial(wsURL(srv), nil, nil)
	require.NoError(t, err)
	defer client.Close()

	conn := accept(t, conns)
	assert.True(t, conn.Attached())

	v, err := surface.Mount(conn, "/api/images/abc", staticOptions())
	require.NoError(t, err)

	env, err := client.Await(streaming.TypeMount, 2*time.Second)
	require.NoError(t, err)
	var mount streaming.MountPayload
	require.NoError(t, env.Decode(&mount))
	assert.Equal(t, "/api/images/abc", mount.ImageURL)

	clicks := make(chan surface.Event, 1)
	require.NoError(t, v.On(surface.EventClick, func(ev surface.Event) { clicks <- ev }))

	zoom := 40.0
	require.NoError(t, client.Send(streaming.TypeClick, streaming.ClickPayload{Yaw: 1.2, Pitch: -0.3, Zoom: &zoom}))

	select {
	case ev := <-clicks:
		assert.Equal(t, 1.2, ev.Click.Yaw)
		assert.Equal(t, -0.3, ev.Click.Pitch)
		assert.Equal(t, 40.0, ev.Zoom)
	case <-time.After(2 * time.Second):
		t.Fatal("click never reached the surface")
	}

	target := core.Position{Yaw: 2, Pitch: 0.5, Zoom: 70}
	require.NoError(t, v.SetPosition(target))
	env, err = client.Await(streaming.TypeSetPosition, 2*time.Second)
	require.NoError(t, err)
	var got core.Position
	require.NoError(t, env.Decode(&got))
	assert.True(t, target.ApproxEqual(got, 1e-12))

	require.NoError(t, v.Destroy())
	_, err = client.Await(streaming.TypeDestroy, 2*time.Second)
	require.NoError(t, err)
}

func TestConn_IgnoresUnknownAndMalformed(t *testing.T) {
	srv, conns := testServer(t)

	client, err := Dial(wsURL(srv), nil, nil)
	require.NoError(t, err)
	defer client.Close()
	conn := accept(t, conns)

	got := make(chan streaming.Envelope, 1)
	conn.Handle(streaming.TypeCancelCreation, func(env streaming.Envelope) { got <- env })

	require.NoError(t, client.Send("no_such_type", map[string]int{"a": 1}))
	client.sendCh <- []byte("not json")
	require.NoError(t, client.Send(streaming.TypeCancelCreation, nil))

	select {
	case env := <-got:
		assert.Equal(t, streaming.TypeCancelCreation, env.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not reached after bad messages")
	}
	assert.True(t, conn.Attached())
}

func TestConn_UnhandleStopsRouting(t *testing.T) {
	srv, conns := testServer(t)

	client, err := Dial(wsURL(srv), nil, nil)
	require.NoError(t, err)
	defer client.Close()
	conn := accept(t, conns)

	calls := make(chan struct{}, 4)
	conn.Handle(streaming.TypeOpenView, func(streaming.Envelope) { calls <- struct{}{} })
	conn.Unhandle(streaming.TypeOpenView)
	conn.Handle(streaming.TypeCancelCreation, func(streaming.Envelope) { calls <- struct{}{} })

	require.NoError(t, client.Send(streaming.TypeOpenView, streaming.OpenViewPayload{ViewID: "v"}))
	require.NoError(t, client.Send(streaming.TypeCancelCreation, nil))

	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("cancel handler not reached")
	}
	assert.Never(t, func() bool { return len(calls) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestConn_CloseDetaches(t *testing.T) {
	srv, conns := testServer(t)

	client, err := Dial(wsURL(srv), nil, nil)
	require.NoError(t, err)
	defer client.Close()
	conn := accept(t, conns)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	assert.False(t, conn.Attached())
	assert.ErrorIs(t, conn.Render(streaming.Envelope{Type: streaming.TypeClearMarkers}), ErrClosed)

	_, err = surface.Mount(conn, "/pano.jpg", staticOptions())
	assert.ErrorIs(t, err, surface.ErrMount)

	select {
	case <-conn.Done():
	default:
		t.Fatal("done channel should be closed")
	}
}

func TestConn_ClientDisconnectEndsServe(t *testing.T) {
	d, err := dispatcher.New(logging.NewDispatcherLogger(nil))
	require.NoError(t, err)

	served := make(chan error, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := Upgrader{}.Accept(w, r, d)
		if err != nil {
			served <- err
			return
		}
		served <- c.Serve(context.Background())
	}))
	defer srv.Close()

	c, _, err := ws.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	require.NoError(t, c.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, "")))
	c.Close()

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after the client left")
	}
}

func TestUpgrader_CheckOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://catalog.local/ws", nil)

	assert.True(t, Upgrader{}.checkOrigin(req), "no origin header")

	req.Header.Set("Origin", "http://catalog.local")
	assert.True(t, Upgrader{}.checkOrigin(req), "same host")

	req.Header.Set("Origin", "http://evil.example")
	assert.False(t, Upgrader{}.checkOrigin(req))
	assert.True(t, Upgrader{AllowedOrigins: []string{"http://evil.example"}}.checkOrigin(req))
	assert.True(t, Upgrader{AllowedOrigins: []string{"*"}}.checkOrigin(req))
}

func TestConn_PositionUpdatesDoNotBlockReads(t *testing.T) {
	srv, conns := testServer(t)

	client, err := Dial(wsURL(srv), nil, nil)
	require.NoError(t, err)
	defer client.Close()
	conn := accept(t, conns)

	gate := make(chan struct{})
	positions := make(chan float64, 4)
	conn.Handle(streaming.TypePositionChanged, func(env streaming.Envelope) {
		<-gate
		var p core.Position
		if err := env.Decode(&p); err == nil {
			positions <- p.Yaw
		}
	})
	clicks := make(chan struct{}, 1)
	conn.Handle(streaming.TypeClick, func(streaming.Envelope) { clicks <- struct{}{} })

	require.NoError(t, client.Send(streaming.TypePositionChanged, core.Position{Yaw: 1, Zoom: 50}))
	require.NoError(t, client.Send(streaming.TypePositionChanged, core.Position{Yaw: 2, Zoom: 50}))
	require.NoError(t, client.Send(streaming.TypeClick, streaming.ClickPayload{Yaw: 0.5}))

	select {
	case <-clicks:
	case <-time.After(2 * time.Second):
		t.Fatal("click was held behind a pending position update")
	}

	close(gate)
	for _, want := range []float64{1, 2} {
		select {
		case got := <-positions:
			assert.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatal("position update never delivered")
		}
	}

	conn.Unhandle(streaming.TypePositionChanged)
	conn.Unhandle(streaming.TypeClick)
}
