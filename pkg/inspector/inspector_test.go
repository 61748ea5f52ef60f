package inspector

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/valyala/fasthttp"

	"github.com/fractalforge/coordplane/pkg/core"
	"github.com/fractalforge/coordplane/pkg/plane"
)

func testSnapshot() plane.Snapshot {
	return plane.Snapshot{
		ID:         "test-session",
		Function:   "mandelbrot",
		Width:      4,
		Height:     4,
		Escaped:    5,
		NotEscaped: 10,
		Trapped:    1,
		Threads:    2,
	}
}

func TestHandleStatus_NoSnapshot(t *testing.T) {
	i := New("", "", core.NopLogger{})

	ctx := &fasthttp.RequestCtx{}
	ctx.Request.SetRequestURI("/status")
	i.handleStatus(ctx)

	if ctx.Response.StatusCode() != fasthttp.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", ctx.Response.StatusCode(), fasthttp.StatusServiceUnavailable)
	}
}

func TestHandleStatus_ReturnsLatestSnapshot(t *testing.T) {
	i := New("", "", core.NopLogger{})
	i.Publish(testSnapshot())

	ctx := &fasthttp.RequestCtx{}
	ctx.Request.SetRequestURI("/status")
	i.handleStatus(ctx)

	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("status = %d, want 200", ctx.Response.StatusCode())
	}

	var got plane.Snapshot
	if err := json.Unmarshal(ctx.Response.Body(), &got); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if got.ID != "test-session" || got.Escaped != 5 {
		t.Errorf("snapshot = %+v", got)
	}
}

func TestRoute(t *testing.T) {
	i := New("", "", core.NopLogger{})
	i.Publish(testSnapshot())

	handler := i.route(func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString("metrics")
	})

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{"/live", fasthttp.StatusOK, `{"status":"up"}`},
		{"/status", fasthttp.StatusOK, `"function":"mandelbrot"`},
		{"/metrics", fasthttp.StatusOK, "metrics"},
		{"/nope", fasthttp.StatusNotFound, ""},
	}

	for _, tt := range tests {
		ctx := &fasthttp.RequestCtx{}
		ctx.Request.SetRequestURI(tt.path)
		handler(ctx)

		if ctx.Response.StatusCode() != tt.wantStatus {
			t.Errorf("%s: status = %d, want %d", tt.path, ctx.Response.StatusCode(), tt.wantStatus)
		}
		if tt.wantBody != "" && !strings.Contains(string(ctx.Response.Body()), tt.wantBody) {
			t.Errorf("%s: body %q does not contain %q", tt.path, ctx.Response.Body(), tt.wantBody)
		}
	}
}

func TestWebSocketFeed(t *testing.T) {
	i := New("", "", core.NopLogger{})
	i.Publish(testSnapshot())

	srv := httptest.NewServer(http.HandlerFunc(i.handleWebSocket))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The current snapshot arrives on connect.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first plane.Snapshot
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read initial snapshot: %v", err)
	}
	if first.ID != "test-session" {
		t.Errorf("initial snapshot ID = %q", first.ID)
	}

	// Published updates are pushed.
	next := testSnapshot()
	next.Escaped = 9
	next.IterationCount = 42

	deadline := time.Now().Add(2 * time.Second)
	for {
		i.Publish(next)
		conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		var got plane.Snapshot
		if err := conn.ReadJSON(&got); err == nil && got.Escaped == 9 {
			if got.IterationCount != 42 {
				t.Errorf("pushed snapshot = %+v", got)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("never received the pushed snapshot")
		}
	}
}
